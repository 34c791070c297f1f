package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const userColumns = `id, name, surname, email, password_hash, role, COALESCE(topic, ''),
	COALESCE(landline, ''), COALESCE(mobile, ''), COALESCE(street, ''), COALESCE(street_number, ''),
	COALESCE(city, ''), COALESCE(postal_code, ''), COALESCE(department, ''), COALESCE(university, ''),
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	err := row.Scan(
		&user.ID, &user.Name, &user.Surname, &user.Email, &user.PasswordHash, &user.Role,
		&user.Topic, &user.Landline, &user.Mobile, &user.Street, &user.StreetNumber,
		&user.City, &user.PostalCode, &user.Department, &user.University,
		&user.CreatedAt, &user.UpdatedAt,
	)
	return user, err
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	return scanUser(row)
}

func (s *PostgresStore) ListProfessors(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role='professor'
		ORDER BY surname, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list professors: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan professor: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate professors: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, userID int64, profile ProfileUpdate) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET landline=$2, mobile=$3, street=$4, street_number=$5, city=$6, postal_code=$7,
			email=COALESCE(NULLIF($8, ''), email), updated_at=NOW()
		WHERE id=$1
	`, userID, profile.Landline, profile.Mobile, profile.Street, profile.StreetNumber,
		profile.City, profile.PostalCode, profile.Email)
	if err != nil {
		return false, fmt.Errorf("update user profile: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update user profile rows: %w", err)
	}
	return affected > 0, nil
}

// ImportUsers inserts the batch in one transaction, skipping emails that
// already exist. Returns the number of rows actually inserted.
func (s *PostgresStore) ImportUsers(ctx context.Context, users []User) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, user := range users {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO users (name, surname, email, password_hash, role, topic, landline, mobile,
				street, street_number, city, postal_code, department, university)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (email) DO NOTHING
		`, user.Name, user.Surname, user.Email, user.PasswordHash, user.Role, user.Topic,
			user.Landline, user.Mobile, user.Street, user.StreetNumber, user.City,
			user.PostalCode, user.Department, user.University)
		if err != nil {
			return 0, fmt.Errorf("import user %s: %w", user.Email, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("import user rows: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import tx: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, user User, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, user.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.name, u.surname, u.role
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var user User
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&user.ID, &user.Name, &user.Surname, &user.Role)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

const thesisColumns = `t.id, t.title, COALESCE(t.description, ''), COALESCE(t.description_pdf_url, ''),
	t.supervisor_id, COALESCE(t.student_id, 0), t.status, t.assignment_date,
	t.presentation_date, COALESCE(t.presentation_location, ''), t.grade,
	COALESCE(t.gs_approval_protocol, ''), COALESCE(t.cancellation_reason, ''),
	COALESCE(t.repository_url, ''), t.created_at, t.updated_at,
	CONCAT(sup.name, ' ', sup.surname),
	COALESCE(CONCAT(stu.name, ' ', stu.surname), '')`

const thesisJoins = `
	FROM thesis t
	JOIN users sup ON sup.id = t.supervisor_id
	LEFT JOIN users stu ON stu.id = t.student_id`

func scanThesis(row interface{ Scan(...any) error }) (Thesis, error) {
	var item Thesis
	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &item.DescriptionPDFURL,
		&item.SupervisorID, &item.StudentID, &item.Status, &item.AssignmentDate,
		&item.PresentationDate, &item.PresentationLocation, &item.Grade,
		&item.GSApprovalProtocol, &item.CancellationReason,
		&item.RepositoryURL, &item.CreatedAt, &item.UpdatedAt,
		&item.SupervisorName, &item.StudentName,
	)
	return item, err
}

func (s *PostgresStore) GetThesis(ctx context.Context, thesisID int64) (Thesis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+thesisColumns+thesisJoins+` WHERE t.id=$1`, thesisID)
	return scanThesis(row)
}

// GetThesisByStudent returns the student's current thesis. Cancelled theses do
// not count; a student whose thesis was cancelled can be assigned a new one.
func (s *PostgresStore) GetThesisByStudent(ctx context.Context, studentID int64) (Thesis, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+thesisColumns+thesisJoins+`
		WHERE t.student_id=$1 AND t.status <> 'cancelled'
		ORDER BY t.created_at DESC
		LIMIT 1
	`, studentID)
	return scanThesis(row)
}

func (s *PostgresStore) ListTopicsBySupervisor(ctx context.Context, supervisorID int64) ([]Thesis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+thesisColumns+thesisJoins+`
		WHERE t.supervisor_id=$1
		ORDER BY t.created_at DESC
	`, supervisorID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return collectTheses(rows)
}

// ListThesesByProfessor returns theses where the professor is supervisor or an
// accepted committee member, optionally filtered by status.
func (s *PostgresStore) ListThesesByProfessor(ctx context.Context, professorID int64, status, role string) ([]Thesis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+thesisColumns+thesisJoins+`
		WHERE (($3='' OR $3='supervisor') AND t.supervisor_id=$1
			OR ($3='' OR $3='committee')
				AND EXISTS(SELECT 1 FROM committee_members cm
					WHERE cm.thesis_id=t.id AND cm.professor_id=$1 AND cm.role='member'))
			AND ($2='' OR t.status=$2)
		ORDER BY t.created_at DESC
	`, professorID, status, role)
	if err != nil {
		return nil, fmt.Errorf("list professor theses: %w", err)
	}
	return collectTheses(rows)
}

// ListThesesUnderway backs the secretariat board: everything currently
// assigned and not yet finalized.
func (s *PostgresStore) ListThesesUnderway(ctx context.Context) ([]Thesis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+thesisColumns+thesisJoins+`
		WHERE t.status IN ('active', 'under_review')
		ORDER BY t.assignment_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list theses underway: %w", err)
	}
	return collectTheses(rows)
}

func collectTheses(rows *sql.Rows) ([]Thesis, error) {
	defer rows.Close()
	items := make([]Thesis, 0)
	for rows.Next() {
		item, err := scanThesis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thesis: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate theses: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateTopic(ctx context.Context, topic Thesis) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO thesis (title, description, description_pdf_url, supervisor_id, status)
		VALUES ($1, $2, NULLIF($3, ''), $4, 'under_assignment')
		RETURNING id
	`, topic.Title, topic.Description, topic.DescriptionPDFURL, topic.SupervisorID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create topic: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateTopic(ctx context.Context, thesisID, supervisorID int64, title, description, pdfURL string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET title=$3, description=$4, description_pdf_url=NULLIF($5, ''), updated_at=NOW()
		WHERE id=$1 AND supervisor_id=$2
	`, thesisID, supervisorID, title, description, pdfURL)
	if err != nil {
		return false, fmt.Errorf("update topic: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update topic rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) AssignStudent(ctx context.Context, thesisID, studentID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET student_id=$2, assignment_date=NOW(), updated_at=NOW()
		WHERE id=$1 AND status='under_assignment' AND student_id IS NULL
	`, thesisID, studentID)
	if err != nil {
		return false, fmt.Errorf("assign student: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("assign student rows: %w", err)
	}
	return affected > 0, nil
}

// UndoAssignment detaches the student from a thesis still under assignment and
// discards any committee state gathered so far, all in one transaction.
func (s *PostgresStore) UndoAssignment(ctx context.Context, thesisID int64) (bool, error) {
	return s.resetToUnderAssignment(ctx, thesisID, `
		UPDATE thesis
		SET student_id=NULL, assignment_date=NULL, updated_at=NOW()
		WHERE id=$1 AND status='under_assignment' AND student_id IS NOT NULL
	`)
}

// ResetAssignment is the supervisor's cancellation of an assignment: the
// thesis returns to under_assignment with no student, no invitations, and no
// committee, and the cancellation reason on record. Allowed from
// under_assignment and active.
func (s *PostgresStore) ResetAssignment(ctx context.Context, thesisID int64, reason string) (bool, error) {
	return s.resetToUnderAssignment(ctx, thesisID, `
		UPDATE thesis
		SET status='under_assignment', student_id=NULL, assignment_date=NULL, grade=NULL,
			cancellation_reason=$2, updated_at=NOW()
		WHERE id=$1 AND status IN ('under_assignment', 'active')
	`, reason)
}

func (s *PostgresStore) resetToUnderAssignment(ctx context.Context, thesisID int64, thesisUpdate string, args ...any) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, thesisUpdate, append([]any{thesisID}, args...)...)
	if err != nil {
		return false, fmt.Errorf("reset thesis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset thesis rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM committee_invitations WHERE thesis_id=$1`, thesisID); err != nil {
		return false, fmt.Errorf("delete invitations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM committee_members WHERE thesis_id=$1`, thesisID); err != nil {
		return false, fmt.Errorf("delete committee members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reset tx: %w", err)
	}
	return true, nil
}

// CancelActive records the supervisor's cancellation of a long-running active
// thesis with its general-assembly protocol reference.
func (s *PostgresStore) CancelActive(ctx context.Context, thesisID int64, protocol, reason string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET status='cancelled', gs_approval_protocol=$2, cancellation_reason=$3, updated_at=NOW()
		WHERE id=$1 AND status='active'
	`, thesisID, protocol, reason)
	if err != nil {
		return false, fmt.Errorf("cancel active thesis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel active thesis rows: %w", err)
	}
	return affected > 0, nil
}

// CancelThesis is the secretariat's administrative cancellation, allowed from
// any non-terminal status.
func (s *PostgresStore) CancelThesis(ctx context.Context, thesisID int64, protocol, reason string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET status='cancelled', gs_approval_protocol=$2, cancellation_reason=$3, updated_at=NOW()
		WHERE id=$1 AND status NOT IN ('completed', 'cancelled')
	`, thesisID, protocol, reason)
	if err != nil {
		return false, fmt.Errorf("cancel thesis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel thesis rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetUnderReview(ctx context.Context, thesisID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET status='under_review', updated_at=NOW()
		WHERE id=$1 AND status='active'
	`, thesisID)
	if err != nil {
		return false, fmt.Errorf("set under review: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set under review rows: %w", err)
	}
	return affected > 0, nil
}

// CompleteThesis finalizes a graded thesis. The grade and repository link
// preconditions live in the WHERE clause so a stale caller is a no-op.
func (s *PostgresStore) CompleteThesis(ctx context.Context, thesisID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET status='completed', updated_at=NOW()
		WHERE id=$1 AND status='under_review' AND grade IS NOT NULL AND COALESCE(repository_url, '') <> ''
	`, thesisID)
	if err != nil {
		return false, fmt.Errorf("complete thesis: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete thesis rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetGSProtocol(ctx context.Context, thesisID int64, protocol string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET gs_approval_protocol=$2, updated_at=NOW()
		WHERE id=$1 AND status NOT IN ('completed', 'cancelled')
	`, thesisID, protocol)
	if err != nil {
		return false, fmt.Errorf("set gs protocol: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set gs protocol rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetPresentation(ctx context.Context, thesisID, studentID int64, date time.Time, location string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET presentation_date=$3, presentation_location=$4, updated_at=NOW()
		WHERE id=$1 AND student_id=$2 AND status IN ('active', 'under_review')
	`, thesisID, studentID, date, location)
	if err != nil {
		return false, fmt.Errorf("set presentation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set presentation rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) SetRepositoryURL(ctx context.Context, thesisID, studentID int64, url string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE thesis
		SET repository_url=$3, updated_at=NOW()
		WHERE id=$1 AND student_id=$2 AND status='under_review'
	`, thesisID, studentID, url)
	if err != nil {
		return false, fmt.Errorf("set repository url: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set repository url rows: %w", err)
	}
	return affected > 0, nil
}

// SubmitGrade writes a committee member's grade. When the grader is the
// supervisor, the thesis-level grade follows the supervisor's grade in the
// same transaction.
func (s *PostgresStore) SubmitGrade(ctx context.Context, thesisID, professorID int64, grade float64, details string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin grade tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var role string
	err = tx.QueryRowContext(ctx, `
		UPDATE committee_members
		SET grade=$3, grade_details=$4
		WHERE thesis_id=$1 AND professor_id=$2
		RETURNING role
	`, thesisID, professorID, grade, details).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("submit grade: %w", err)
	}

	if role == "supervisor" {
		if _, err := tx.ExecContext(ctx, `UPDATE thesis SET grade=$2, updated_at=NOW() WHERE id=$1`, thesisID, grade); err != nil {
			return false, fmt.Errorf("record thesis grade: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit grade tx: %w", err)
	}
	return true, nil
}

func (s *PostgresStore) ListCommitteeMembers(ctx context.Context, thesisID int64) ([]CommitteeMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cm.id, cm.thesis_id, cm.professor_id, cm.role, cm.grade, COALESCE(cm.grade_details, ''),
			cm.created_at, CONCAT(u.name, ' ', u.surname)
		FROM committee_members cm
		JOIN users u ON u.id = cm.professor_id
		WHERE cm.thesis_id=$1
		ORDER BY cm.role DESC, cm.created_at ASC
	`, thesisID)
	if err != nil {
		return nil, fmt.Errorf("list committee members: %w", err)
	}
	defer rows.Close()

	items := make([]CommitteeMember, 0)
	for rows.Next() {
		var item CommitteeMember
		if err := rows.Scan(&item.ID, &item.ThesisID, &item.ProfessorID, &item.Role, &item.Grade,
			&item.GradeDetails, &item.CreatedAt, &item.ProfessorName); err != nil {
			return nil, fmt.Errorf("scan committee member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate committee members: %w", err)
	}
	return items, nil
}

// CreateInvitation is idempotent per (thesis, professor); a duplicate invite
// reports false.
func (s *PostgresStore) CreateInvitation(ctx context.Context, thesisID, professorID int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO committee_invitations (thesis_id, invited_professor_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (thesis_id, invited_professor_id) DO NOTHING
	`, thesisID, professorID)
	if err != nil {
		return false, fmt.Errorf("create invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create invitation rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListPendingInvitations(ctx context.Context, professorID int64) ([]CommitteeInvitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.id, ci.thesis_id, ci.invited_professor_id, ci.status, ci.created_at, ci.response_date,
			CONCAT(u.name, ' ', u.surname), t.title
		FROM committee_invitations ci
		JOIN thesis t ON t.id = ci.thesis_id
		JOIN users u ON u.id = t.supervisor_id
		WHERE ci.invited_professor_id=$1 AND ci.status='pending'
		ORDER BY ci.created_at ASC
	`, professorID)
	if err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	return collectInvitations(rows)
}

func (s *PostgresStore) GetInvitation(ctx context.Context, invitationID int64) (CommitteeInvitation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ci.id, ci.thesis_id, ci.invited_professor_id, ci.status, ci.created_at, ci.response_date,
			CONCAT(u.name, ' ', u.surname), t.title
		FROM committee_invitations ci
		JOIN thesis t ON t.id = ci.thesis_id
		JOIN users u ON u.id = ci.invited_professor_id
		WHERE ci.id=$1
	`, invitationID)

	var item CommitteeInvitation
	if err := row.Scan(&item.ID, &item.ThesisID, &item.InvitedProfessorID, &item.Status,
		&item.CreatedAt, &item.ResponseDate, &item.ProfessorName, &item.ThesisTitle); err != nil {
		return CommitteeInvitation{}, fmt.Errorf("get invitation: %w", err)
	}
	return item, nil
}

func (s *PostgresStore) ListThesisInvitations(ctx context.Context, thesisID int64) ([]CommitteeInvitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.id, ci.thesis_id, ci.invited_professor_id, ci.status, ci.created_at, ci.response_date,
			CONCAT(u.name, ' ', u.surname), t.title
		FROM committee_invitations ci
		JOIN thesis t ON t.id = ci.thesis_id
		JOIN users u ON u.id = ci.invited_professor_id
		WHERE ci.thesis_id=$1
		ORDER BY ci.created_at ASC
	`, thesisID)
	if err != nil {
		return nil, fmt.Errorf("list thesis invitations: %w", err)
	}
	return collectInvitations(rows)
}

func collectInvitations(rows *sql.Rows) ([]CommitteeInvitation, error) {
	defer rows.Close()
	items := make([]CommitteeInvitation, 0)
	for rows.Next() {
		var item CommitteeInvitation
		if err := rows.Scan(&item.ID, &item.ThesisID, &item.InvitedProfessorID, &item.Status,
			&item.CreatedAt, &item.ResponseDate, &item.ProfessorName, &item.ThesisTitle); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitations: %w", err)
	}
	return items, nil
}

// RespondInvitation records the invited professor's answer. An acceptance
// inserts the member row and re-evaluates the quorum in the same transaction,
// with the thesis row locked so two concurrent final acceptances cannot both
// activate. Returns ok=false when the invitation is not a pending one
// addressed to this professor, and activated=true when this acceptance moved
// the thesis to active.
func (s *PostgresStore) RespondInvitation(ctx context.Context, invitationID, professorID int64, accept bool, requiredMembers int) (ok bool, activated bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("begin respond tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var thesisID int64
	err = tx.QueryRowContext(ctx, `
		SELECT thesis_id
		FROM committee_invitations
		WHERE id=$1 AND invited_professor_id=$2 AND status='pending'
		FOR UPDATE
	`, invitationID, professorID).Scan(&thesisID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("lock invitation: %w", err)
	}

	status := "declined"
	if accept {
		status = "accepted"
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE committee_invitations
		SET status=$2, response_date=NOW()
		WHERE id=$1
	`, invitationID, status); err != nil {
		return false, false, fmt.Errorf("record invitation response: %w", err)
	}

	if !accept {
		if err := tx.Commit(); err != nil {
			return false, false, fmt.Errorf("commit respond tx: %w", err)
		}
		return true, false, nil
	}

	var supervisorID int64
	if err := tx.QueryRowContext(ctx, `
		SELECT supervisor_id FROM thesis WHERE id=$1 FOR UPDATE
	`, thesisID).Scan(&supervisorID); err != nil {
		return false, false, fmt.Errorf("lock thesis: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO committee_members (thesis_id, professor_id, role)
		VALUES ($1, $2, 'member')
		ON CONFLICT (thesis_id, professor_id) DO NOTHING
	`, thesisID, professorID); err != nil {
		return false, false, fmt.Errorf("insert committee member: %w", err)
	}

	var accepted int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM committee_members WHERE thesis_id=$1 AND role='member'
	`, thesisID).Scan(&accepted); err != nil {
		return false, false, fmt.Errorf("count accepted members: %w", err)
	}

	if accepted >= requiredMembers {
		result, err := tx.ExecContext(ctx, `
			UPDATE thesis
			SET status='active', updated_at=NOW()
			WHERE id=$1 AND status='under_assignment'
		`, thesisID)
		if err != nil {
			return false, false, fmt.Errorf("activate thesis: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return false, false, fmt.Errorf("activate thesis rows: %w", err)
		}
		if affected > 0 {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO committee_members (thesis_id, professor_id, role)
				VALUES ($1, $2, 'supervisor')
				ON CONFLICT (thesis_id, professor_id) DO NOTHING
			`, thesisID, supervisorID); err != nil {
				return false, false, fmt.Errorf("insert supervisor member: %w", err)
			}
			// The committee is complete; outstanding invitations are moot.
			if _, err := tx.ExecContext(ctx, `
				UPDATE committee_invitations
				SET status='declined', response_date=NOW()
				WHERE thesis_id=$1 AND status='pending'
			`, thesisID); err != nil {
				return false, false, fmt.Errorf("decline leftover invitations: %w", err)
			}
			activated = true
		}
	}

	if err := tx.Commit(); err != nil {
		return false, false, fmt.Errorf("commit respond tx: %w", err)
	}
	return true, activated, nil
}

func (s *PostgresStore) InsertProgressNote(ctx context.Context, note ProgressNote) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_notes (thesis_id, author_id, note)
		VALUES ($1, $2, $3)
	`, note.ThesisID, note.AuthorID, note.Note)
	if err != nil {
		return fmt.Errorf("insert progress note: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListProgressNotes(ctx context.Context, thesisID int64) ([]ProgressNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thesis_id, author_id, note, created_at
		FROM progress_notes
		WHERE thesis_id=$1
		ORDER BY created_at ASC
	`, thesisID)
	if err != nil {
		return nil, fmt.Errorf("list progress notes: %w", err)
	}
	defer rows.Close()

	items := make([]ProgressNote, 0)
	for rows.Next() {
		var item ProgressNote
		if err := rows.Scan(&item.ID, &item.ThesisID, &item.AuthorID, &item.Note, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan progress note: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertThesisFile(ctx context.Context, file ThesisFile) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO thesis_files (thesis_id, uploader_id, file_type, object_key, url, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, file.ThesisID, file.UploaderID, file.FileType, file.ObjectKey, file.URL, file.Description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert thesis file: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListThesisFiles(ctx context.Context, thesisID int64) ([]ThesisFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thesis_id, uploader_id, file_type, object_key, COALESCE(url, ''), COALESCE(description, ''), uploaded_at
		FROM thesis_files
		WHERE thesis_id=$1
		ORDER BY uploaded_at DESC
	`, thesisID)
	if err != nil {
		return nil, fmt.Errorf("list thesis files: %w", err)
	}
	defer rows.Close()

	items := make([]ThesisFile, 0)
	for rows.Next() {
		var item ThesisFile
		if err := rows.Scan(&item.ID, &item.ThesisID, &item.UploaderID, &item.FileType,
			&item.ObjectKey, &item.URL, &item.Description, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan thesis file: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thesis files: %w", err)
	}
	return items, nil
}

// LatestDraft returns the most recent draft upload for a thesis.
func (s *PostgresStore) LatestDraft(ctx context.Context, thesisID int64) (ThesisFile, error) {
	var item ThesisFile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, thesis_id, uploader_id, file_type, object_key, COALESCE(url, ''), COALESCE(description, ''), uploaded_at
		FROM thesis_files
		WHERE thesis_id=$1 AND file_type='draft'
		ORDER BY uploaded_at DESC
		LIMIT 1
	`, thesisID).Scan(&item.ID, &item.ThesisID, &item.UploaderID, &item.FileType,
		&item.ObjectKey, &item.URL, &item.Description, &item.UploadedAt)
	if err != nil {
		return ThesisFile{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetProfessorStats(ctx context.Context, professorID int64) (ProfessorStats, error) {
	var stats ProfessorStats

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status='completed'),
			AVG(EXTRACT(EPOCH FROM (updated_at - assignment_date)) / 86400) FILTER (WHERE status='completed' AND assignment_date IS NOT NULL),
			AVG(grade) FILTER (WHERE status='completed')
		FROM thesis
		WHERE supervisor_id=$1
	`, professorID).Scan(&stats.SupervisedTotal, &stats.SupervisedCompleted, &stats.SupervisedAvgDays, &stats.SupervisedAvgGrade)
	if err != nil {
		return ProfessorStats{}, fmt.Errorf("supervised stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE t.status='completed'),
			AVG(EXTRACT(EPOCH FROM (t.updated_at - t.assignment_date)) / 86400) FILTER (WHERE t.status='completed' AND t.assignment_date IS NOT NULL),
			AVG(t.grade) FILTER (WHERE t.status='completed')
		FROM thesis t
		JOIN committee_members cm ON cm.thesis_id = t.id
		WHERE cm.professor_id=$1 AND cm.role='member'
	`, professorID).Scan(&stats.CommitteeTotal, &stats.CommitteeCompleted, &stats.CommitteeAvgDays, &stats.CommitteeAvgGrade)
	if err != nil {
		return ProfessorStats{}, fmt.Errorf("committee stats: %w", err)
	}

	return stats, nil
}
