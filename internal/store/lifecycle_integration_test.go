package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func openLifecycleTestStore(t *testing.T) (*sql.DB, *PostgresStore) {
	t.Helper()

	dsn := strings.TrimSpace(os.Getenv("THESISDESK_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("THESISDESK_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db, NewPostgresStore(db)
}

func seedLifecycleUser(ctx context.Context, t *testing.T, db *sql.DB, email, role string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO users (name, surname, email, role)
		VALUES ('Lifecycle', 'Fixture', $1, $2)
		ON CONFLICT (email) DO UPDATE SET updated_at=NOW()
		RETURNING id
	`, email, role).Scan(&id)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return id
}

func seedLifecycleThesis(ctx context.Context, t *testing.T, db *sql.DB, supervisorID, studentID int64, status string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowContext(ctx, `
		INSERT INTO thesis (title, supervisor_id, student_id, status, assignment_date)
		VALUES ('Lifecycle fixture thesis', $1, $2, $3, NOW())
		RETURNING id
	`, supervisorID, studentID, status).Scan(&id)
	if err != nil {
		t.Fatalf("seed thesis: %v", err)
	}
	t.Cleanup(func() {
		_, _ = db.ExecContext(context.Background(), `DELETE FROM thesis WHERE id=$1`, id)
	})
	return id
}

func invitationIDFor(ctx context.Context, t *testing.T, db *sql.DB, thesisID, professorID int64) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowContext(ctx, `
		SELECT id FROM committee_invitations
		WHERE thesis_id=$1 AND invited_professor_id=$2
	`, thesisID, professorID).Scan(&id)
	if err != nil {
		t.Fatalf("look up invitation for professor %d: %v", professorID, err)
	}
	return id
}

// TestRespondInvitationConcurrentLastAcceptances races two final acceptances
// for the same thesis. The thesis row lock serializes the quorum checks, so
// exactly one response observes the activating count and the member rows are
// never duplicated or lost.
func TestRespondInvitationConcurrentLastAcceptances(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, st := openLifecycleTestStore(t)

	supervisorID := seedLifecycleUser(ctx, t, db, "lc-supervisor@test.local", "professor")
	studentID := seedLifecycleUser(ctx, t, db, "lc-student@test.local", "student")
	memberA := seedLifecycleUser(ctx, t, db, "lc-member-a@test.local", "professor")
	memberB := seedLifecycleUser(ctx, t, db, "lc-member-b@test.local", "professor")

	thesisID := seedLifecycleThesis(ctx, t, db, supervisorID, studentID, "under_assignment")

	for _, professorID := range []int64{memberA, memberB} {
		ok, err := st.CreateInvitation(ctx, thesisID, professorID)
		if err != nil {
			t.Fatalf("create invitation for %d: %v", professorID, err)
		}
		if !ok {
			t.Fatalf("invitation for %d already existed", professorID)
		}
	}

	invitations := []int64{
		invitationIDFor(ctx, t, db, thesisID, memberA),
		invitationIDFor(ctx, t, db, thesisID, memberB),
	}
	professors := []int64{memberA, memberB}

	var wg sync.WaitGroup
	oks := make([]bool, 2)
	activations := make([]bool, 2)
	errs := make([]error, 2)
	for i := range invitations {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			oks[i], activations[i], errs[i] = st.RespondInvitation(ctx, invitations[i], professors[i], true, 2)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("respond %d: %v", i, err)
		}
		if !oks[i] {
			t.Fatalf("respond %d did not find its pending invitation", i)
		}
	}

	activated := 0
	for _, a := range activations {
		if a {
			activated++
		}
	}
	if activated != 1 {
		t.Errorf("activations = %d, want exactly 1", activated)
	}

	var status string
	if err := db.QueryRowContext(ctx, `SELECT status FROM thesis WHERE id=$1`, thesisID).Scan(&status); err != nil {
		t.Fatalf("load thesis status: %v", err)
	}
	if status != "active" {
		t.Errorf("thesis status = %s, want active", status)
	}

	var memberRows, supervisorRows int
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FILTER (WHERE role='member'), COUNT(*) FILTER (WHERE role='supervisor')
		FROM committee_members WHERE thesis_id=$1
	`, thesisID).Scan(&memberRows, &supervisorRows); err != nil {
		t.Fatalf("count committee members: %v", err)
	}
	if memberRows != 2 {
		t.Errorf("member rows = %d, want 2", memberRows)
	}
	if supervisorRows != 1 {
		t.Errorf("supervisor rows = %d, want 1", supervisorRows)
	}
}

// TestResetAssignmentCascadeAtomicity makes the committee-member DELETE fail
// mid-cascade and checks that nothing else in the cancellation was applied.
func TestResetAssignmentCascadeAtomicity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, st := openLifecycleTestStore(t)

	supervisorID := seedLifecycleUser(ctx, t, db, "lc-atomic-supervisor@test.local", "professor")
	studentID := seedLifecycleUser(ctx, t, db, "lc-atomic-student@test.local", "student")
	memberID := seedLifecycleUser(ctx, t, db, "lc-atomic-member@test.local", "professor")

	thesisID := seedLifecycleThesis(ctx, t, db, supervisorID, studentID, "active")

	if _, err := db.ExecContext(ctx, `
		INSERT INTO committee_invitations (thesis_id, invited_professor_id, status, response_date)
		VALUES ($1, $2, 'accepted', NOW())
	`, thesisID, memberID); err != nil {
		t.Fatalf("seed invitation: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO committee_members (thesis_id, professor_id, role)
		VALUES ($1, $2, 'supervisor'), ($1, $3, 'member')
	`, thesisID, supervisorID, memberID); err != nil {
		t.Fatalf("seed committee members: %v", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE OR REPLACE FUNCTION lifecycle_test_block_member_delete()
		RETURNS TRIGGER AS $$
		BEGIN
			RAISE EXCEPTION 'committee member delete blocked for test';
		END;
		$$ LANGUAGE plpgsql
	`); err != nil {
		t.Fatalf("create guard function: %v", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TRIGGER trg_lifecycle_test_block_member_delete
		BEFORE DELETE ON committee_members
		FOR EACH ROW EXECUTE FUNCTION lifecycle_test_block_member_delete()
	`); err != nil {
		t.Fatalf("create guard trigger: %v", err)
	}
	dropGuard := func() {
		_, _ = db.ExecContext(context.Background(), `DROP TRIGGER IF EXISTS trg_lifecycle_test_block_member_delete ON committee_members`)
		_, _ = db.ExecContext(context.Background(), `DROP FUNCTION IF EXISTS lifecycle_test_block_member_delete()`)
	}
	t.Cleanup(dropGuard)

	// The cascade orders thesis UPDATE, invitation DELETE, member DELETE; the
	// guard fires on the last step, so the first two must roll back with it.
	if _, err := st.ResetAssignment(ctx, thesisID, "Assignment cancelled by the supervisor"); err == nil {
		t.Fatal("expected reset to fail while the guard trigger is installed")
	}

	var status string
	var student sql.NullInt64
	if err := db.QueryRowContext(ctx, `
		SELECT status, student_id FROM thesis WHERE id=$1
	`, thesisID).Scan(&status, &student); err != nil {
		t.Fatalf("load thesis after failed reset: %v", err)
	}
	if status != "active" {
		t.Errorf("status after failed reset = %s, want active", status)
	}
	if !student.Valid || student.Int64 != studentID {
		t.Errorf("student after failed reset = %v, want %d", student, studentID)
	}

	var invitationRows, memberRows int
	if err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM committee_invitations WHERE thesis_id=$1),
			(SELECT COUNT(*) FROM committee_members WHERE thesis_id=$1)
	`, thesisID).Scan(&invitationRows, &memberRows); err != nil {
		t.Fatalf("count rows after failed reset: %v", err)
	}
	if invitationRows != 1 || memberRows != 2 {
		t.Errorf("rows after failed reset = %d invitations, %d members; want 1 and 2", invitationRows, memberRows)
	}

	dropGuard()

	ok, err := st.ResetAssignment(ctx, thesisID, "Assignment cancelled by the supervisor")
	if err != nil {
		t.Fatalf("reset after removing guard: %v", err)
	}
	if !ok {
		t.Fatal("reset after removing guard was a no-op")
	}

	var reason sql.NullString
	if err := db.QueryRowContext(ctx, `
		SELECT status, student_id, cancellation_reason FROM thesis WHERE id=$1
	`, thesisID).Scan(&status, &student, &reason); err != nil {
		t.Fatalf("load thesis after reset: %v", err)
	}
	if status != "under_assignment" {
		t.Errorf("status after reset = %s, want under_assignment", status)
	}
	if student.Valid {
		t.Errorf("student after reset = %d, want unassigned", student.Int64)
	}
	if !reason.Valid || reason.String != "Assignment cancelled by the supervisor" {
		t.Errorf("cancellation reason after reset = %v", reason)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM committee_invitations WHERE thesis_id=$1),
			(SELECT COUNT(*) FROM committee_members WHERE thesis_id=$1)
	`, thesisID).Scan(&invitationRows, &memberRows); err != nil {
		t.Fatalf("count rows after reset: %v", err)
	}
	if invitationRows != 0 || memberRows != 0 {
		t.Errorf("rows after reset = %d invitations, %d members; want 0 and 0", invitationRows, memberRows)
	}
}
