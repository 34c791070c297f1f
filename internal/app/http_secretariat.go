package app

import (
	"net/http"
)

// routeSecretariat dispatches /api/secretariat/... requests.
func (s *HTTPServer) routeSecretariat(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) != 1 {
		return false
	}

	switch parts[0] {
	case "theses":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.ListThesesUnderway(r.Context())
		s.respond(w, payload, err)
		return true

	case "gs-protocol":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			ThesisID int64  `json:"thesisId"`
			Protocol string `json:"protocol"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		if body.ThesisID <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "thesisId is required", nil)
			return true
		}
		payload, err := s.service.RecordGSProtocol(r.Context(), body.ThesisID, body.Protocol)
		s.respond(w, payload, err)
		return true

	case "cancel-assignment":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			ThesisID int64  `json:"thesisId"`
			Protocol string `json:"protocol"`
			Reason   string `json:"reason"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		if body.ThesisID <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "thesisId is required", nil)
			return true
		}
		payload, err := s.service.SecretariatCancel(r.Context(), session, body.ThesisID, body.Protocol, body.Reason)
		s.respond(w, payload, err)
		return true

	case "complete":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			ThesisID int64 `json:"thesisId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		if body.ThesisID <= 0 {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "thesisId is required", nil)
			return true
		}
		payload, err := s.service.CompleteThesis(r.Context(), session, body.ThesisID)
		s.respond(w, payload, err)
		return true

	case "import-users":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			Users []UserImport `json:"users"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.ImportUsers(r.Context(), body.Users)
		s.respond(w, payload, err)
		return true
	}
	return false
}
