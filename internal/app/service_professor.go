package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"thesisdesk/api/internal/export"
	"thesisdesk/api/internal/lifecycle"
	"thesisdesk/api/internal/search"
	"thesisdesk/api/internal/store"
)

const maxProgressNoteLength = 300

type TopicInput struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	DescriptionPDFURL string `json:"descriptionPdfUrl"`
}

func (s *Service) ListTopics(ctx context.Context, session Session) (map[string]any, error) {
	topics, err := s.store.ListTopicsBySupervisor(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"topics": thesesPayload(topics)}, nil
}

func (s *Service) CreateTopic(ctx context.Context, session Session, input TopicInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errValidation("title is required", nil)
	}

	id, err := s.store.CreateTopic(ctx, store.Thesis{
		Title:             title,
		Description:       strings.TrimSpace(input.Description),
		DescriptionPDFURL: strings.TrimSpace(input.DescriptionPDFURL),
		SupervisorID:      session.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.indexTopic(ctx, id)
	topic, err := s.store.GetThesis(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"topic": thesisPayload(topic)}, nil
}

func (s *Service) UpdateTopic(ctx context.Context, session Session, thesisID int64, input TopicInput) (map[string]any, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errValidation("title is required", nil)
	}

	ok, err := s.store.UpdateTopic(ctx, thesisID, session.UserID, title,
		strings.TrimSpace(input.Description), strings.TrimSpace(input.DescriptionPDFURL))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotFound("topic not found")
	}

	s.indexTopic(ctx, thesisID)
	topic, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"topic": thesisPayload(topic)}, nil
}

func (s *Service) AssignStudent(ctx context.Context, session Session, thesisID, studentID int64) (map[string]any, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	student, err := s.store.GetUserByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Role != lifecycle.RoleStudent {
		return nil, errValidation("assignee must be a student", nil)
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventAssignStudent, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.store.AssignStudent(ctx, thesisID, studentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPreconditionFailed("topic is no longer available for assignment")
	}

	// An assigned topic is no longer searchable by students.
	if s.search != nil {
		s.search.DeleteTopic(thesisID)
	}

	updated, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"thesis": thesisPayload(updated)}, nil
}

func (s *Service) UndoAssignment(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventUndoAssignment, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.store.UndoAssignment(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPreconditionFailed("thesis has no undoable assignment")
	}

	s.indexTopic(ctx, thesisID)
	return map[string]any{"ok": true}, nil
}

func (s *Service) ListProfessorTheses(ctx context.Context, session Session, status, role string) (map[string]any, error) {
	if status != "" && !lifecycle.Status(status).Valid() {
		return nil, errValidation("unknown status filter", map[string]any{"status": status})
	}
	if role != "" && role != "supervisor" && role != "committee" {
		return nil, errValidation("role filter must be supervisor or committee", map[string]any{"role": role})
	}
	theses, err := s.store.ListThesesByProfessor(ctx, session.UserID, status, role)
	if err != nil {
		return nil, err
	}
	return map[string]any{"theses": thesesPayload(theses)}, nil
}

func (s *Service) GetProfessorThesis(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	thesis, members, err := s.committeeThesis(ctx, session, thesisID)
	if err != nil {
		return nil, err
	}

	payload := thesisPayload(thesis)
	payload["committee"] = committeePayload(members)
	payload["daysSinceAssignment"] = daysSince(thesis.AssignmentDate, time.Now())
	return map[string]any{"thesis": payload}, nil
}

func (s *Service) ExportProfessorTheses(ctx context.Context, session Session, status, format string) (*export.Result, error) {
	theses, err := s.store.ListThesesByProfessor(ctx, session.UserID, status, "")
	if err != nil {
		return nil, err
	}

	rows := make([]export.ThesisRow, 0, len(theses))
	for _, t := range theses {
		rows = append(rows, export.ThesisRow{
			ID:             t.ID,
			Title:          t.Title,
			Status:         t.Status,
			StudentName:    t.StudentName,
			SupervisorName: t.SupervisorName,
			AssignmentDate: t.AssignmentDate,
			Grade:          t.Grade,
			RepositoryURL:  t.RepositoryURL,
		})
	}

	switch export.Format(format) {
	case export.FormatCSV:
		return export.ThesesCSV(rows)
	case export.FormatJSON, "":
		data, err := json.MarshalIndent(map[string]any{"theses": thesesPayload(theses)}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal theses export: %w", err)
		}
		return &export.Result{Data: data, Filename: "theses.json", MimeType: "application/json"}, nil
	}
	return nil, errValidation("unsupported export format", map[string]any{"format": format})
}

func (s *Service) PendingInvitations(ctx context.Context, session Session) (map[string]any, error) {
	invitations, err := s.store.ListPendingInvitations(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"invitations": invitationsPayload(invitations)}, nil
}

func (s *Service) RespondInvitation(ctx context.Context, session Session, invitationID int64, accept bool) (map[string]any, error) {
	ok, activated, err := s.store.RespondInvitation(ctx, invitationID, session.UserID, accept, s.rules.RequiredMembers)
	if err != nil {
		return nil, err
	}
	if !ok {
		invitation, err := s.store.GetInvitation(ctx, invitationID)
		if err != nil {
			return nil, err
		}
		if invitation.InvitedProfessorID != session.UserID {
			return nil, errForbidden("invitation is addressed to another professor")
		}
		return nil, errInvalidTransition("invitation has already been answered")
	}

	s.notifyInvitationResponse(ctx, invitationID, session.UserName, accept)

	return map[string]any{
		"ok":        true,
		"accepted":  accept,
		"activated": activated,
	}, nil
}

func (s *Service) ThesisInvitations(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if thesis.SupervisorID != session.UserID {
		return nil, errForbidden("only the supervisor sees the invitation roster")
	}

	invitations, err := s.store.ListThesisInvitations(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"invitations": invitationsPayload(invitations)}, nil
}

func (s *Service) InviteProfessor(ctx context.Context, session Session, thesisID, professorID int64) (map[string]any, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if thesis.SupervisorID != session.UserID {
		return nil, errForbidden("only the supervisor invites committee members")
	}
	if thesis.Status != string(lifecycle.StatusUnderAssignment) {
		return nil, errInvalidTransition("invitations are only sent while the thesis is under assignment")
	}
	if thesis.StudentID == 0 {
		return nil, errPreconditionFailed("assign a student before inviting the committee")
	}
	if professorID == session.UserID {
		return nil, errValidation("the supervisor is already on the committee", nil)
	}

	invitee, err := s.store.GetUserByID(ctx, professorID)
	if err != nil {
		return nil, err
	}
	if invitee.Role != lifecycle.RoleProfessor {
		return nil, errValidation("invitee must be a professor", nil)
	}

	ok, err := s.store.CreateInvitation(ctx, thesisID, professorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errPreconditionFailed("professor already invited to this committee")
	}

	s.notifyInvitation(invitee, session.UserName, thesis.Title)
	return map[string]any{"ok": true}, nil
}

func (s *Service) CancelAssignment(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventCancelAssignment, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.store.ResetAssignment(ctx, thesisID, "Assignment cancelled by the supervisor")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("thesis can no longer return to assignment")
	}

	s.indexTopic(ctx, thesisID)
	return map[string]any{"ok": true}, nil
}

func (s *Service) CancelActive(ctx context.Context, session Session, thesisID int64, gsProtocol, gsYear string) (map[string]any, error) {
	if strings.TrimSpace(gsProtocol) == "" || strings.TrimSpace(gsYear) == "" {
		return nil, errValidation("general assembly protocol number and year are required", nil)
	}

	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventCancelActive, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	protocol := fmt.Sprintf("%s/%s", strings.TrimSpace(gsProtocol), strings.TrimSpace(gsYear))
	reason := "Cancelled by the supervisor following a general assembly decision"
	ok, err := s.store.CancelActive(ctx, thesisID, protocol, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("thesis is no longer active")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) SetUnderReview(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventSetUnderReview, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.store.SetUnderReview(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("thesis is no longer active")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) SubmitGrade(ctx context.Context, session Session, thesisID int64, grade float64, details string) (map[string]any, error) {
	if grade < 0 || grade > 10 {
		return nil, errValidation("grade must be between 0 and 10", map[string]any{"grade": grade})
	}

	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if _, err := s.rules.Next(lifecycleView(thesis), lifecycle.EventSubmitGrade, actorFromSession(session), time.Now()); err != nil {
		return nil, err
	}

	ok, err := s.store.SubmitGrade(ctx, thesisID, session.UserID, grade, strings.TrimSpace(details))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errForbidden("only committee members grade this thesis")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) ListGrades(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	_, members, err := s.committeeThesis(ctx, session, thesisID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"grades": committeePayload(members)}, nil
}

func (s *Service) AddProgressNote(ctx context.Context, session Session, thesisID int64, text string) (map[string]any, error) {
	note := strings.TrimSpace(text)
	if note == "" {
		return nil, errValidation("note text is required", nil)
	}
	if len([]rune(note)) > maxProgressNoteLength {
		return nil, errValidation("note exceeds 300 characters", map[string]any{"maxLength": maxProgressNoteLength})
	}

	thesis, _, err := s.committeeThesis(ctx, session, thesisID)
	if err != nil {
		return nil, err
	}
	if thesis.Status != string(lifecycle.StatusActive) && thesis.Status != string(lifecycle.StatusUnderReview) {
		return nil, errInvalidTransition("progress notes are recorded while the thesis is underway")
	}

	if err := s.store.InsertProgressNote(ctx, store.ProgressNote{
		ThesisID: thesisID,
		AuthorID: session.UserID,
		Note:     note,
	}); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) ListProgressNotes(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	if _, _, err := s.committeeThesis(ctx, session, thesisID); err != nil {
		return nil, err
	}

	notes, err := s.store.ListProgressNotes(ctx, thesisID)
	if err != nil {
		return nil, err
	}
	payload := make([]map[string]any, 0, len(notes))
	for _, note := range notes {
		payload = append(payload, map[string]any{
			"id":        note.ID,
			"authorId":  note.AuthorID,
			"note":      note.Note,
			"createdAt": note.CreatedAt,
		})
	}
	return map[string]any{"notes": payload}, nil
}

func (s *Service) LatestDraft(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	if _, _, err := s.committeeThesis(ctx, session, thesisID); err != nil {
		return nil, err
	}

	draft, err := s.store.LatestDraft(ctx, thesisID)
	if err != nil {
		return nil, err
	}

	if draft.ObjectKey != "" && s.files != nil {
		url, err := s.files.PresignedGetURL(ctx, draft.ObjectKey, 15*time.Minute)
		if err == nil {
			draft.URL = url
		} else {
			log.Printf("app: presign draft %d: %v", draft.ID, err)
		}
	}
	return map[string]any{"draft": filePayload(draft)}, nil
}

func (s *Service) PresentationAnnouncement(ctx context.Context, session Session, thesisID int64) (map[string]any, error) {
	thesis, _, err := s.committeeThesis(ctx, session, thesisID)
	if err != nil {
		return nil, err
	}
	if thesis.PresentationDate == nil {
		return nil, errPreconditionFailed("presentation has not been scheduled")
	}

	location := thesis.PresentationLocation
	if location == "" {
		location = "a location to be announced"
	}
	announcement := fmt.Sprintf(
		"The public presentation of the diploma thesis %q by %s, supervised by %s, will take place on %s at %s.",
		thesis.Title,
		thesis.StudentName,
		thesis.SupervisorName,
		thesis.PresentationDate.Format("January 2, 2006 15:04"),
		location,
	)
	return map[string]any{
		"announcement":     announcement,
		"presentationDate": thesis.PresentationDate,
		"location":         nilIfEmpty(thesis.PresentationLocation),
	}, nil
}

func (s *Service) ProfessorStats(ctx context.Context, session Session) (map[string]any, error) {
	stats, err := s.store.GetProfessorStats(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"supervised": map[string]any{
			"total":           stats.SupervisedTotal,
			"completed":       stats.SupervisedCompleted,
			"avgDaysToFinish": stats.SupervisedAvgDays,
			"avgGrade":        stats.SupervisedAvgGrade,
		},
		"committee": map[string]any{
			"total":           stats.CommitteeTotal,
			"completed":       stats.CommitteeCompleted,
			"avgDaysToFinish": stats.CommitteeAvgDays,
			"avgGrade":        stats.CommitteeAvgGrade,
		},
	}, nil
}

// committeeThesis loads a thesis and verifies the professor is its supervisor
// or sits on its committee.
func (s *Service) committeeThesis(ctx context.Context, session Session, thesisID int64) (store.Thesis, []store.CommitteeMember, error) {
	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		return store.Thesis{}, nil, err
	}

	members, err := s.store.ListCommitteeMembers(ctx, thesisID)
	if err != nil {
		return store.Thesis{}, nil, err
	}

	if thesis.SupervisorID == session.UserID {
		return thesis, members, nil
	}
	for _, member := range members {
		if member.ProfessorID == session.UserID {
			return thesis, members, nil
		}
	}
	return store.Thesis{}, nil, errForbidden("thesis belongs to another committee")
}

func (s *Service) indexTopic(ctx context.Context, thesisID int64) {
	if s.search == nil {
		return
	}
	topic, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		log.Printf("app: reload topic %d for indexing: %v", thesisID, err)
		return
	}
	if topic.Status != string(lifecycle.StatusUnderAssignment) || topic.StudentID != 0 {
		s.search.DeleteTopic(thesisID)
		return
	}
	s.search.IndexTopic(search.TopicRecord{
		ID:          topic.ID,
		Title:       topic.Title,
		Description: topic.Description,
		Supervisor:  topic.SupervisorName,
	})
}

func (s *Service) notifyInvitation(invitee store.User, supervisorName, thesisTitle string) {
	if s.email == nil || !s.email.IsConfigured() || invitee.Email == "" {
		return
	}
	inviteeName := fullName(invitee)
	go func() {
		if err := s.email.SendInvitationEmail(invitee.Email, inviteeName, supervisorName, thesisTitle); err != nil {
			log.Printf("app: invitation email to %s: %v", invitee.Email, err)
		}
	}()
}

func (s *Service) notifyInvitationResponse(ctx context.Context, invitationID int64, professorName string, accepted bool) {
	if s.email == nil || !s.email.IsConfigured() {
		return
	}

	invitation, err := s.store.GetInvitation(ctx, invitationID)
	if err != nil {
		log.Printf("app: load invitation %d for notification: %v", invitationID, err)
		return
	}
	thesis, err := s.store.GetThesis(ctx, invitation.ThesisID)
	if err != nil {
		log.Printf("app: load thesis %d for notification: %v", invitation.ThesisID, err)
		return
	}
	supervisor, err := s.store.GetUserByID(ctx, thesis.SupervisorID)
	if err != nil || supervisor.Email == "" {
		return
	}

	supervisorName := fullName(supervisor)
	go func() {
		if err := s.email.SendInvitationResponseEmail(supervisor.Email, supervisorName, professorName, thesis.Title, accepted); err != nil {
			log.Printf("app: invitation response email to %s: %v", supervisor.Email, err)
		}
	}()
}
