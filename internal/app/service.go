package app

import (
	"context"
	"time"

	"thesisdesk/api/internal/auth"
	"thesisdesk/api/internal/authpw"
	"thesisdesk/api/internal/config"
	"thesisdesk/api/internal/email"
	"thesisdesk/api/internal/files"
	"thesisdesk/api/internal/lifecycle"
	"thesisdesk/api/internal/rbac"
	"thesisdesk/api/internal/search"
	"thesisdesk/api/internal/store"
	"thesisdesk/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       int64
	UserName     string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the persistence surface the service depends on. The production
// implementation is store.PostgresStore; tests swap in a function-field fake.
type dataStore interface {
	GetUserByID(context.Context, int64) (store.User, error)
	ListProfessors(context.Context) ([]store.User, error)
	UpdateUserProfile(context.Context, int64, store.ProfileUpdate) (bool, error)
	ImportUsers(context.Context, []store.User) (int, error)

	GetThesis(context.Context, int64) (store.Thesis, error)
	GetThesisByStudent(context.Context, int64) (store.Thesis, error)
	ListTopicsBySupervisor(context.Context, int64) ([]store.Thesis, error)
	ListThesesByProfessor(context.Context, int64, string, string) ([]store.Thesis, error)
	ListThesesUnderway(context.Context) ([]store.Thesis, error)
	CreateTopic(context.Context, store.Thesis) (int64, error)
	UpdateTopic(context.Context, int64, int64, string, string, string) (bool, error)
	AssignStudent(context.Context, int64, int64) (bool, error)
	UndoAssignment(context.Context, int64) (bool, error)
	ResetAssignment(context.Context, int64, string) (bool, error)
	CancelActive(context.Context, int64, string, string) (bool, error)
	CancelThesis(context.Context, int64, string, string) (bool, error)
	SetUnderReview(context.Context, int64) (bool, error)
	CompleteThesis(context.Context, int64) (bool, error)
	SetGSProtocol(context.Context, int64, string) (bool, error)
	SetPresentation(context.Context, int64, int64, time.Time, string) (bool, error)
	SetRepositoryURL(context.Context, int64, int64, string) (bool, error)
	SubmitGrade(context.Context, int64, int64, float64, string) (bool, error)

	ListCommitteeMembers(context.Context, int64) ([]store.CommitteeMember, error)
	CreateInvitation(context.Context, int64, int64) (bool, error)
	GetInvitation(context.Context, int64) (store.CommitteeInvitation, error)
	ListPendingInvitations(context.Context, int64) ([]store.CommitteeInvitation, error)
	ListThesisInvitations(context.Context, int64) ([]store.CommitteeInvitation, error)
	RespondInvitation(context.Context, int64, int64, bool, int) (bool, bool, error)

	InsertProgressNote(context.Context, store.ProgressNote) error
	ListProgressNotes(context.Context, int64) ([]store.ProgressNote, error)
	InsertThesisFile(context.Context, store.ThesisFile) (int64, error)
	ListThesisFiles(context.Context, int64) ([]store.ThesisFile, error)
	LatestDraft(context.Context, int64) (store.ThesisFile, error)
	GetProfessorStats(context.Context, int64) (store.ProfessorStats, error)

	Ping(ctx context.Context) error
}

// SessionStore holds refresh sessions and the access-token revocation set.
// Redis backs it when configured, Postgres otherwise.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  SessionStore
	passwords *authpw.Service
	search    *search.Service
	email     *email.Service
	files     *files.Store
	rules     lifecycle.Rules
}

// New wires the service. searchSvc, emailSvc and fileStore may be nil or
// unconfigured; the affected operations degrade instead of failing.
func New(
	cfg config.Config,
	dataStore *store.PostgresStore,
	sessions SessionStore,
	passwords *authpw.Service,
	searchSvc *search.Service,
	emailSvc *email.Service,
	fileStore *files.Store,
) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		passwords: passwords,
		search:    searchSvc,
		email:     emailSvc,
		files:     fileStore,
		rules: lifecycle.Rules{
			RequiredMembers: cfg.CommitteeRequiredMembers,
			MinActiveTenure: cfg.MinActiveTenure,
		},
	}
}

func (s *Service) Login(ctx context.Context, emailAddr, password string) (Session, error) {
	user, err := s.passwords.SignIn(ctx, authpw.SignInRequest{Email: emailAddr, Password: password})
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: fullName(user),
		Role: user.Role,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     fullName(user),
		Role:         user.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.sessions.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	return Session{
		Token:     token,
		UserID:    claims.Sub,
		UserName:  claims.Name,
		Role:      claims.Role,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.sessions.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func fullName(user store.User) string {
	if user.Surname == "" {
		return user.Name
	}
	return user.Name + " " + user.Surname
}

func actorFromSession(session Session) lifecycle.Actor {
	return lifecycle.Actor{ID: session.UserID, Role: session.Role}
}

func lifecycleView(t store.Thesis) lifecycle.Thesis {
	return lifecycle.Thesis{
		ID:             t.ID,
		SupervisorID:   t.SupervisorID,
		StudentID:      t.StudentID,
		Status:         lifecycle.Status(t.Status),
		AssignmentDate: t.AssignmentDate,
		Grade:          t.Grade,
		RepositoryURL:  t.RepositoryURL,
	}
}

func thesisPayload(t store.Thesis) map[string]any {
	return map[string]any{
		"id":                   t.ID,
		"title":                t.Title,
		"description":          t.Description,
		"descriptionPdfUrl":    nilIfEmpty(t.DescriptionPDFURL),
		"supervisorId":         t.SupervisorID,
		"supervisorName":       t.SupervisorName,
		"studentId":            nilIfZero(t.StudentID),
		"studentName":          nilIfEmpty(t.StudentName),
		"status":               t.Status,
		"assignmentDate":       t.AssignmentDate,
		"presentationDate":     t.PresentationDate,
		"presentationLocation": nilIfEmpty(t.PresentationLocation),
		"grade":                t.Grade,
		"gsApprovalProtocol":   nilIfEmpty(t.GSApprovalProtocol),
		"cancellationReason":   nilIfEmpty(t.CancellationReason),
		"repositoryUrl":        nilIfEmpty(t.RepositoryURL),
		"createdAt":            t.CreatedAt,
		"updatedAt":            t.UpdatedAt,
	}
}

func thesesPayload(items []store.Thesis) []map[string]any {
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, thesisPayload(item))
	}
	return payload
}

func invitationPayload(inv store.CommitteeInvitation) map[string]any {
	return map[string]any{
		"id":           inv.ID,
		"thesisId":     inv.ThesisID,
		"professorId":  inv.InvitedProfessorID,
		"status":       inv.Status,
		"createdAt":    inv.CreatedAt,
		"responseDate": inv.ResponseDate,
		"professor":    inv.ProfessorName,
		"thesisTitle":  inv.ThesisTitle,
	}
}

func invitationsPayload(items []store.CommitteeInvitation) []map[string]any {
	payload := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload = append(payload, invitationPayload(item))
	}
	return payload
}

func committeePayload(members []store.CommitteeMember) []map[string]any {
	payload := make([]map[string]any, 0, len(members))
	for _, member := range members {
		payload = append(payload, map[string]any{
			"id":           member.ID,
			"professorId":  member.ProfessorID,
			"professor":    member.ProfessorName,
			"role":         member.Role,
			"grade":        member.Grade,
			"gradeDetails": nilIfEmpty(member.GradeDetails),
		})
	}
	return payload
}

func filePayload(file store.ThesisFile) map[string]any {
	return map[string]any{
		"id":          file.ID,
		"thesisId":    file.ThesisID,
		"fileType":    file.FileType,
		"url":         nilIfEmpty(file.URL),
		"description": nilIfEmpty(file.Description),
		"uploadedAt":  file.UploadedAt,
	}
}

func daysSince(t *time.Time, now time.Time) any {
	if t == nil {
		return nil
	}
	return int(now.Sub(*t).Hours() / 24)
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nilIfZero(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
