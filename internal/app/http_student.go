package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxUploadBytes = 32 << 20

// routeStudent dispatches /api/student/... requests.
func (s *HTTPServer) routeStudent(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	switch {
	case len(parts) == 1 && parts[0] == "thesis":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.MyThesis(r.Context(), session)
		s.respond(w, payload, err)
		return true

	case len(parts) == 1 && parts[0] == "profile":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return true
		}
		var body ProfileInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.UpdateProfile(r.Context(), session, body)
		s.respond(w, payload, err)
		return true

	case len(parts) == 1 && parts[0] == "professors":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		payload, err := s.service.ProfessorDirectory(r.Context())
		s.respond(w, payload, err)
		return true

	case len(parts) == 2 && parts[0] == "topics" && parts[1] == "search":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		limit := queryInt(r, "limit", 20)
		offset := queryInt(r, "offset", 0)
		payload, err := s.service.SearchTopics(r.Context(), query, limit, offset)
		s.respond(w, payload, err)
		return true

	case len(parts) == 2 && parts[0] == "thesis" && parts[1] == "files":
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.ListMyFiles(r.Context(), session)
			s.respond(w, payload, err)
		case http.MethodPost:
			s.handleStudentFileUpload(w, r, session)
		default:
			methodNotAllowed(w)
		}
		return true

	case len(parts) == 2 && parts[0] == "thesis" && parts[1] == "presentation":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			Date     string `json:"date"`
			Location string `json:"location"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		date, err := time.Parse(time.RFC3339, body.Date)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "date must be RFC 3339", nil)
			return true
		}
		payload, err := s.service.SchedulePresentation(r.Context(), session, date, body.Location)
		s.respond(w, payload, err)
		return true

	case len(parts) == 2 && parts[0] == "thesis" && parts[1] == "repository-url":
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return true
		}
		var body struct {
			URL string `json:"url"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return true
		}
		payload, err := s.service.SubmitRepositoryURL(r.Context(), session, body.URL)
		s.respond(w, payload, err)
		return true

	case len(parts) == 1 && parts[0] == "examination-report":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return true
		}
		result, err := s.service.ExaminationReport(r.Context(), session, r.URL.Query().Get("format"))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return true
		}
		writeExport(w, result)
		return true
	}
	return false
}

// handleStudentFileUpload accepts either a multipart upload (binary into
// object storage) or a JSON body carrying an external link.
func (s *HTTPServer) handleStudentFileUpload(w http.ResponseWriter, r *http.Request, session Session) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "could not parse multipart form", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file field is required", nil)
			return
		}
		defer file.Close()

		payload, err := s.service.UploadFile(
			r.Context(),
			session,
			r.FormValue("fileType"),
			header.Filename,
			header.Header.Get("Content-Type"),
			file,
			header.Size,
			r.FormValue("description"),
		)
		s.respond(w, payload, err)
		return
	}

	var body struct {
		FileType    string `json:"fileType"`
		URL         string `json:"url"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	payload, err := s.service.AttachFileURL(r.Context(), session, body.FileType, body.URL, body.Description)
	s.respond(w, payload, err)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
