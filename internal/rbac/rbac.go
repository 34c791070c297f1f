package rbac

type Role string
type Action string

const (
	RoleStudent     Role = "student"
	RoleProfessor   Role = "professor"
	RoleSecretariat Role = "secretariat"
)

const (
	ActionViewOwnThesis    Action = "view_own_thesis"
	ActionManageTopics     Action = "manage_topics"
	ActionManageCommittee  Action = "manage_committee"
	ActionGrade            Action = "grade"
	ActionAdministrate     Action = "administrate"
	ActionUploadThesisFile Action = "upload_thesis_file"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleSecretariat:
		return action == ActionAdministrate
	case RoleProfessor:
		return action == ActionManageTopics || action == ActionManageCommittee || action == ActionGrade
	case RoleStudent:
		return action == ActionViewOwnThesis || action == ActionUploadThesisFile
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleStudent, RoleProfessor, RoleSecretariat:
		return Role(role)
	default:
		return ""
	}
}
