package rbac

import "testing"

func TestCan(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleSecretariat, ActionAdministrate, true},
		{RoleSecretariat, ActionGrade, false},
		{RoleProfessor, ActionManageTopics, true},
		{RoleProfessor, ActionGrade, true},
		{RoleProfessor, ActionAdministrate, false},
		{RoleStudent, ActionViewOwnThesis, true},
		{RoleStudent, ActionUploadThesisFile, true},
		{RoleStudent, ActionManageCommittee, false},
		{Role("intruder"), ActionViewOwnThesis, false},
	}
	for _, tc := range tests {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalizeUnknownRoleDeniesEverything(t *testing.T) {
	role := Normalize("administrator")
	if role != "" {
		t.Fatalf("Normalize(administrator) = %q, want empty", role)
	}
	if Can(role, ActionViewOwnThesis) {
		t.Fatal("empty role must not be granted any action")
	}
}
