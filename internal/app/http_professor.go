package app

import (
	"net/http"
)

// routeProfessor dispatches /api/professor/... requests. parts holds the path
// segments after the facade prefix. Returns false when no route matched.
func (s *HTTPServer) routeProfessor(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	switch {
	case len(parts) == 1 && parts[0] == "topics":
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListTopics(r.Context(), session)
			s.respond(w, payload, err)
		case http.MethodPost:
			var body TopicInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.CreateTopic(r.Context(), session, body)
			s.respond(w, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 2 && parts[0] == "topics":
		id, ok := requireID(w, parts[1])
		if !ok {
			return true
		}
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return true
		}
		var body TopicInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.UpdateTopic(r.Context(), session, id, body)
		s.respond(w, payload, err)
		return true

	case len(parts) == 1 && parts[0] == "assign":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			ThesisID  int64 `json:"thesisId"`
			StudentID int64 `json:"studentId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		if body.ThesisID <= 0 || body.StudentID <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "thesisId and studentId are required", nil)
			return true
		}
		payload, err := s.service.AssignStudent(r.Context(), session, body.ThesisID, body.StudentID)
		s.respond(w, payload, err)
		return true

	case len(parts) == 2 && parts[0] == "assign":
		id, ok := requireID(w, parts[1])
		if !ok {
			return true
		}
		if r.Method != http.MethodDelete {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.UndoAssignment(r.Context(), session, id)
		s.respond(w, payload, err)
		return true

	case len(parts) == 1 && parts[0] == "theses":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.ListProfessorTheses(r.Context(), session,
			r.URL.Query().Get("status"), r.URL.Query().Get("role"))
		s.respond(w, payload, err)
		return true

	case len(parts) == 2 && parts[0] == "theses" && parts[1] == "export":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		result, err := s.service.ExportProfessorTheses(r.Context(), session,
			r.URL.Query().Get("status"), r.URL.Query().Get("format"))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeExport(w, result)
		return true

	case len(parts) == 2 && parts[0] == "theses":
		id, ok := requireID(w, parts[1])
		if !ok {
			return true
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.GetProfessorThesis(r.Context(), session, id)
		s.respond(w, payload, err)
		return true

	case len(parts) == 1 && parts[0] == "committee-invitations":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.PendingInvitations(r.Context(), session)
		s.respond(w, payload, err)
		return true

	case len(parts) == 3 && parts[0] == "committee-invitations":
		id, ok := requireID(w, parts[1])
		if !ok {
			return true
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		switch parts[2] {
		case "accept":
			payload, err := s.service.RespondInvitation(r.Context(), session, id, true)
			s.respond(w, payload, err)
		case "reject":
			payload, err := s.service.RespondInvitation(r.Context(), session, id, false)
			s.respond(w, payload, err)
		default:
			return false
		}
		return true

	case len(parts) == 3 && parts[0] == "theses":
		id, ok := requireID(w, parts[1])
		if !ok {
			return true
		}
		return s.routeProfessorThesis(w, r, session, id, parts[2])

	case len(parts) == 1 && parts[0] == "stats":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.ProfessorStats(r.Context(), session)
		s.respond(w, payload, err)
		return true
	}
	return false
}

func (s *HTTPServer) routeProfessorThesis(w http.ResponseWriter, r *http.Request, session Session, thesisID int64, action string) bool {
	switch action {
	case "committee-invitations":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.ThesisInvitations(r.Context(), session, thesisID)
		s.respond(w, payload, err)
		return true

	case "invite":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			ProfessorID int64 `json:"professorId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		if body.ProfessorID <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "professorId is required", nil)
			return true
		}
		payload, err := s.service.InviteProfessor(r.Context(), session, thesisID, body.ProfessorID)
		s.respond(w, payload, err)
		return true

	case "cancel-assignment":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.CancelAssignment(r.Context(), session, thesisID)
		s.respond(w, payload, err)
		return true

	case "cancel-active":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			GSProtocol string `json:"gsProtocol"`
			GSYear     string `json:"gsYear"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.CancelActive(r.Context(), session, thesisID, body.GSProtocol, body.GSYear)
		s.respond(w, payload, err)
		return true

	case "set-under-review":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.SetUnderReview(r.Context(), session, thesisID)
		s.respond(w, payload, err)
		return true

	case "grade":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			Grade   float64 `json:"grade"`
			Details string  `json:"details"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.SubmitGrade(r.Context(), session, thesisID, body.Grade, body.Details)
		s.respond(w, payload, err)
		return true

	case "grades":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.ListGrades(r.Context(), session, thesisID)
		s.respond(w, payload, err)
		return true

	case "note":
		switch r.Method {
		case http.MethodPost:
			var body struct {
				Note string `json:"note"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return true
			}
			payload, err := s.service.AddProgressNote(r.Context(), session, thesisID, body.Note)
			s.respond(w, payload, err)
		case http.MethodGet:
			payload, err := s.service.ListProgressNotes(r.Context(), session, thesisID)
			s.respond(w, payload, err)
		default:
			methodNotAllowed(w)
		}
		return true

	case "draft":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.LatestDraft(r.Context(), session, thesisID)
		s.respond(w, payload, err)
		return true

	case "presentation-announcement":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.PresentationAnnouncement(r.Context(), session, thesisID)
		s.respond(w, payload, err)
		return true
	}
	return false
}

// respond writes a payload or a mapped error, whichever the service returned.
func (s *HTTPServer) respond(w http.ResponseWriter, payload map[string]any, err error) {
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func requireID(w http.ResponseWriter, raw string) (int64, bool) {
	id, ok := parseID(raw)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
}
