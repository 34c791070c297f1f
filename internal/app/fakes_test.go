package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"thesisdesk/api/internal/authpw"
	"thesisdesk/api/internal/config"
	"thesisdesk/api/internal/lifecycle"
	"thesisdesk/api/internal/store"
)

// fakeStore implements dataStore (and authpw.UserStore) with overridable
// function fields. Unset fields return not-found or empty results.
type fakeStore struct {
	getUserByEmail    func(context.Context, string) (store.User, error)
	getUserByID       func(context.Context, int64) (store.User, error)
	listProfessors    func(context.Context) ([]store.User, error)
	updateUserProfile func(context.Context, int64, store.ProfileUpdate) (bool, error)
	importUsers       func(context.Context, []store.User) (int, error)

	getThesis              func(context.Context, int64) (store.Thesis, error)
	getThesisByStudent     func(context.Context, int64) (store.Thesis, error)
	listTopicsBySupervisor func(context.Context, int64) ([]store.Thesis, error)
	listThesesByProfessor  func(context.Context, int64, string, string) ([]store.Thesis, error)
	listThesesUnderway     func(context.Context) ([]store.Thesis, error)
	createTopic            func(context.Context, store.Thesis) (int64, error)
	updateTopic            func(context.Context, int64, int64, string, string, string) (bool, error)
	assignStudent          func(context.Context, int64, int64) (bool, error)
	undoAssignment         func(context.Context, int64) (bool, error)
	resetAssignment        func(context.Context, int64, string) (bool, error)
	cancelActive           func(context.Context, int64, string, string) (bool, error)
	cancelThesis           func(context.Context, int64, string, string) (bool, error)
	setUnderReview         func(context.Context, int64) (bool, error)
	completeThesis         func(context.Context, int64) (bool, error)
	setGSProtocol          func(context.Context, int64, string) (bool, error)
	setPresentation        func(context.Context, int64, int64, time.Time, string) (bool, error)
	setRepositoryURL       func(context.Context, int64, int64, string) (bool, error)
	submitGrade            func(context.Context, int64, int64, float64, string) (bool, error)

	listCommitteeMembers   func(context.Context, int64) ([]store.CommitteeMember, error)
	createInvitation       func(context.Context, int64, int64) (bool, error)
	getInvitation          func(context.Context, int64) (store.CommitteeInvitation, error)
	listPendingInvitations func(context.Context, int64) ([]store.CommitteeInvitation, error)
	listThesisInvitations  func(context.Context, int64) ([]store.CommitteeInvitation, error)
	respondInvitation      func(context.Context, int64, int64, bool, int) (bool, bool, error)

	insertProgressNote func(context.Context, store.ProgressNote) error
	listProgressNotes  func(context.Context, int64) ([]store.ProgressNote, error)
	insertThesisFile   func(context.Context, store.ThesisFile) (int64, error)
	listThesisFiles    func(context.Context, int64) ([]store.ThesisFile, error)
	latestDraft        func(context.Context, int64) (store.ThesisFile, error)
	getProfessorStats  func(context.Context, int64) (store.ProfessorStats, error)
}

func (f *fakeStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if f.getUserByEmail == nil {
		return store.User{}, sql.ErrNoRows
	}
	return f.getUserByEmail(ctx, email)
}

func (f *fakeStore) GetUserByID(ctx context.Context, id int64) (store.User, error) {
	if f.getUserByID == nil {
		return store.User{}, sql.ErrNoRows
	}
	return f.getUserByID(ctx, id)
}

func (f *fakeStore) ListProfessors(ctx context.Context) ([]store.User, error) {
	if f.listProfessors == nil {
		return []store.User{}, nil
	}
	return f.listProfessors(ctx)
}

func (f *fakeStore) UpdateUserProfile(ctx context.Context, id int64, profile store.ProfileUpdate) (bool, error) {
	if f.updateUserProfile == nil {
		return false, nil
	}
	return f.updateUserProfile(ctx, id, profile)
}

func (f *fakeStore) ImportUsers(ctx context.Context, users []store.User) (int, error) {
	if f.importUsers == nil {
		return 0, nil
	}
	return f.importUsers(ctx, users)
}

func (f *fakeStore) GetThesis(ctx context.Context, id int64) (store.Thesis, error) {
	if f.getThesis == nil {
		return store.Thesis{}, sql.ErrNoRows
	}
	return f.getThesis(ctx, id)
}

func (f *fakeStore) GetThesisByStudent(ctx context.Context, studentID int64) (store.Thesis, error) {
	if f.getThesisByStudent == nil {
		return store.Thesis{}, sql.ErrNoRows
	}
	return f.getThesisByStudent(ctx, studentID)
}

func (f *fakeStore) ListTopicsBySupervisor(ctx context.Context, supervisorID int64) ([]store.Thesis, error) {
	if f.listTopicsBySupervisor == nil {
		return []store.Thesis{}, nil
	}
	return f.listTopicsBySupervisor(ctx, supervisorID)
}

func (f *fakeStore) ListThesesByProfessor(ctx context.Context, professorID int64, status, role string) ([]store.Thesis, error) {
	if f.listThesesByProfessor == nil {
		return []store.Thesis{}, nil
	}
	return f.listThesesByProfessor(ctx, professorID, status, role)
}

func (f *fakeStore) ListThesesUnderway(ctx context.Context) ([]store.Thesis, error) {
	if f.listThesesUnderway == nil {
		return []store.Thesis{}, nil
	}
	return f.listThesesUnderway(ctx)
}

func (f *fakeStore) CreateTopic(ctx context.Context, topic store.Thesis) (int64, error) {
	if f.createTopic == nil {
		return 0, nil
	}
	return f.createTopic(ctx, topic)
}

func (f *fakeStore) UpdateTopic(ctx context.Context, thesisID, supervisorID int64, title, description, pdfURL string) (bool, error) {
	if f.updateTopic == nil {
		return false, nil
	}
	return f.updateTopic(ctx, thesisID, supervisorID, title, description, pdfURL)
}

func (f *fakeStore) AssignStudent(ctx context.Context, thesisID, studentID int64) (bool, error) {
	if f.assignStudent == nil {
		return false, nil
	}
	return f.assignStudent(ctx, thesisID, studentID)
}

func (f *fakeStore) UndoAssignment(ctx context.Context, thesisID int64) (bool, error) {
	if f.undoAssignment == nil {
		return false, nil
	}
	return f.undoAssignment(ctx, thesisID)
}

func (f *fakeStore) ResetAssignment(ctx context.Context, thesisID int64, reason string) (bool, error) {
	if f.resetAssignment == nil {
		return false, nil
	}
	return f.resetAssignment(ctx, thesisID, reason)
}

func (f *fakeStore) CancelActive(ctx context.Context, thesisID int64, protocol, reason string) (bool, error) {
	if f.cancelActive == nil {
		return false, nil
	}
	return f.cancelActive(ctx, thesisID, protocol, reason)
}

func (f *fakeStore) CancelThesis(ctx context.Context, thesisID int64, protocol, reason string) (bool, error) {
	if f.cancelThesis == nil {
		return false, nil
	}
	return f.cancelThesis(ctx, thesisID, protocol, reason)
}

func (f *fakeStore) SetUnderReview(ctx context.Context, thesisID int64) (bool, error) {
	if f.setUnderReview == nil {
		return false, nil
	}
	return f.setUnderReview(ctx, thesisID)
}

func (f *fakeStore) CompleteThesis(ctx context.Context, thesisID int64) (bool, error) {
	if f.completeThesis == nil {
		return false, nil
	}
	return f.completeThesis(ctx, thesisID)
}

func (f *fakeStore) SetGSProtocol(ctx context.Context, thesisID int64, protocol string) (bool, error) {
	if f.setGSProtocol == nil {
		return false, nil
	}
	return f.setGSProtocol(ctx, thesisID, protocol)
}

func (f *fakeStore) SetPresentation(ctx context.Context, thesisID, studentID int64, date time.Time, location string) (bool, error) {
	if f.setPresentation == nil {
		return false, nil
	}
	return f.setPresentation(ctx, thesisID, studentID, date, location)
}

func (f *fakeStore) SetRepositoryURL(ctx context.Context, thesisID, studentID int64, url string) (bool, error) {
	if f.setRepositoryURL == nil {
		return false, nil
	}
	return f.setRepositoryURL(ctx, thesisID, studentID, url)
}

func (f *fakeStore) SubmitGrade(ctx context.Context, thesisID, professorID int64, grade float64, details string) (bool, error) {
	if f.submitGrade == nil {
		return false, nil
	}
	return f.submitGrade(ctx, thesisID, professorID, grade, details)
}

func (f *fakeStore) ListCommitteeMembers(ctx context.Context, thesisID int64) ([]store.CommitteeMember, error) {
	if f.listCommitteeMembers == nil {
		return []store.CommitteeMember{}, nil
	}
	return f.listCommitteeMembers(ctx, thesisID)
}

func (f *fakeStore) CreateInvitation(ctx context.Context, thesisID, professorID int64) (bool, error) {
	if f.createInvitation == nil {
		return false, nil
	}
	return f.createInvitation(ctx, thesisID, professorID)
}

func (f *fakeStore) GetInvitation(ctx context.Context, invitationID int64) (store.CommitteeInvitation, error) {
	if f.getInvitation == nil {
		return store.CommitteeInvitation{}, sql.ErrNoRows
	}
	return f.getInvitation(ctx, invitationID)
}

func (f *fakeStore) ListPendingInvitations(ctx context.Context, professorID int64) ([]store.CommitteeInvitation, error) {
	if f.listPendingInvitations == nil {
		return []store.CommitteeInvitation{}, nil
	}
	return f.listPendingInvitations(ctx, professorID)
}

func (f *fakeStore) ListThesisInvitations(ctx context.Context, thesisID int64) ([]store.CommitteeInvitation, error) {
	if f.listThesisInvitations == nil {
		return []store.CommitteeInvitation{}, nil
	}
	return f.listThesisInvitations(ctx, thesisID)
}

func (f *fakeStore) RespondInvitation(ctx context.Context, invitationID, professorID int64, accept bool, requiredMembers int) (bool, bool, error) {
	if f.respondInvitation == nil {
		return false, false, nil
	}
	return f.respondInvitation(ctx, invitationID, professorID, accept, requiredMembers)
}

func (f *fakeStore) InsertProgressNote(ctx context.Context, note store.ProgressNote) error {
	if f.insertProgressNote == nil {
		return nil
	}
	return f.insertProgressNote(ctx, note)
}

func (f *fakeStore) ListProgressNotes(ctx context.Context, thesisID int64) ([]store.ProgressNote, error) {
	if f.listProgressNotes == nil {
		return []store.ProgressNote{}, nil
	}
	return f.listProgressNotes(ctx, thesisID)
}

func (f *fakeStore) InsertThesisFile(ctx context.Context, file store.ThesisFile) (int64, error) {
	if f.insertThesisFile == nil {
		return 0, nil
	}
	return f.insertThesisFile(ctx, file)
}

func (f *fakeStore) ListThesisFiles(ctx context.Context, thesisID int64) ([]store.ThesisFile, error) {
	if f.listThesisFiles == nil {
		return []store.ThesisFile{}, nil
	}
	return f.listThesisFiles(ctx, thesisID)
}

func (f *fakeStore) LatestDraft(ctx context.Context, thesisID int64) (store.ThesisFile, error) {
	if f.latestDraft == nil {
		return store.ThesisFile{}, sql.ErrNoRows
	}
	return f.latestDraft(ctx, thesisID)
}

func (f *fakeStore) GetProfessorStats(ctx context.Context, professorID int64) (store.ProfessorStats, error) {
	if f.getProfessorStats == nil {
		return store.ProfessorStats{}, nil
	}
	return f.getProfessorStats(ctx, professorID)
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

// fakeSessions is an in-memory SessionStore.
type fakeSessions struct {
	mu      sync.Mutex
	refresh map[string]store.User
	revoked map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{
		refresh: make(map[string]store.User),
		revoked: make(map[string]bool),
	}
}

func (f *fakeSessions) SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh[tokenHash] = user
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.refresh[tokenHash]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeSessions) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refresh, tokenHash)
	return nil
}

func (f *fakeSessions) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeSessions) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:                "test-secret",
		AccessTTL:                time.Hour,
		RefreshTTL:               24 * time.Hour,
		CommitteeRequiredMembers: 2,
		MinActiveTenure:          2 * 365 * 24 * time.Hour,
	}
}

func newTestService(fs *fakeStore) (*Service, *fakeSessions) {
	sessions := newFakeSessions()
	cfg := testConfig()
	return &Service{
		cfg:       cfg,
		store:     fs,
		sessions:  sessions,
		passwords: authpw.NewService(fs),
		rules: lifecycle.Rules{
			RequiredMembers: cfg.CommitteeRequiredMembers,
			MinActiveTenure: cfg.MinActiveTenure,
		},
	}, sessions
}
