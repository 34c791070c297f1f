package app

import (
	"context"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"thesisdesk/api/internal/export"
	"thesisdesk/api/internal/files"
	"thesisdesk/api/internal/lifecycle"
	"thesisdesk/api/internal/search"
	"thesisdesk/api/internal/store"
)

type ProfileInput struct {
	Landline     string `json:"landline"`
	Mobile       string `json:"mobile"`
	Street       string `json:"street"`
	StreetNumber string `json:"streetNumber"`
	City         string `json:"city"`
	PostalCode   string `json:"postalCode"`
	Email        string `json:"email"`
}

func (s *Service) MyThesis(ctx context.Context, session Session) (map[string]any, error) {
	thesis, err := s.store.GetThesisByStudent(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListCommitteeMembers(ctx, thesis.ID)
	if err != nil {
		return nil, err
	}

	payload := thesisPayload(thesis)
	payload["committee"] = committeePayload(members)
	payload["daysSinceAssignment"] = daysSince(thesis.AssignmentDate, time.Now())
	return map[string]any{"thesis": payload}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, input ProfileInput) (map[string]any, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, errValidation("email is required", nil)
	}

	ok, err := s.store.UpdateUserProfile(ctx, session.UserID, store.ProfileUpdate{
		Landline:     strings.TrimSpace(input.Landline),
		Mobile:       strings.TrimSpace(input.Mobile),
		Street:       strings.TrimSpace(input.Street),
		StreetNumber: strings.TrimSpace(input.StreetNumber),
		City:         strings.TrimSpace(input.City),
		PostalCode:   strings.TrimSpace(input.PostalCode),
		Email:        email,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNotFound("profile not found")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) ProfessorDirectory(ctx context.Context) (map[string]any, error) {
	professors, err := s.store.ListProfessors(ctx)
	if err != nil {
		return nil, err
	}

	payload := make([]map[string]any, 0, len(professors))
	for _, professor := range professors {
		payload = append(payload, map[string]any{
			"id":         professor.ID,
			"name":       fullName(professor),
			"email":      professor.Email,
			"topic":      nilIfEmpty(professor.Topic),
			"department": nilIfEmpty(professor.Department),
			"university": nilIfEmpty(professor.University),
		})
	}
	return map[string]any{"professors": payload}, nil
}

func (s *Service) SearchTopics(ctx context.Context, q string, limit, offset int) (map[string]any, error) {
	if s.search == nil {
		return map[string]any{"results": []any{}, "total": 0, "query": q}, nil
	}

	response := s.search.Search(search.Query{Text: q, Limit: limit, Offset: offset})
	results := make([]map[string]any, 0, len(response.Results))
	for _, result := range response.Results {
		results = append(results, map[string]any{
			"id":         result.ID,
			"title":      result.Title,
			"snippet":    result.Snippet,
			"supervisor": result.Supervisor,
		})
	}
	return map[string]any{
		"results": results,
		"total":   response.Total,
		"query":   response.Query,
	}, nil
}

// AttachFileURL records an externally hosted thesis file by link. It is the
// fallback path when object storage is not configured.
func (s *Service) AttachFileURL(ctx context.Context, session Session, fileType, fileURL, description string) (map[string]any, error) {
	if !validFileType(fileType) {
		return nil, errValidation("fileType must be draft, final or other", nil)
	}
	if !validHTTPURL(fileURL) {
		return nil, errValidation("a valid http(s) url is required", nil)
	}

	thesis, err := s.uploadableThesis(ctx, session)
	if err != nil {
		return nil, err
	}

	id, err := s.store.InsertThesisFile(ctx, store.ThesisFile{
		ThesisID:    thesis.ID,
		UploaderID:  session.UserID,
		FileType:    fileType,
		URL:         fileURL,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "url": fileURL}, nil
}

func (s *Service) UploadFile(ctx context.Context, session Session, fileType, filename, contentType string, r io.Reader, size int64, description string) (map[string]any, error) {
	if s.files == nil {
		return nil, errPreconditionFailed("file storage is not configured; submit a link instead")
	}
	if !validFileType(fileType) {
		return nil, errValidation("fileType must be draft, final or other", nil)
	}

	thesis, err := s.uploadableThesis(ctx, session)
	if err != nil {
		return nil, err
	}

	key := files.ObjectKey(thesis.ID, fileType, filename)
	if err := s.files.Upload(ctx, key, r, size, contentType); err != nil {
		return nil, err
	}

	id, err := s.store.InsertThesisFile(ctx, store.ThesisFile{
		ThesisID:    thesis.ID,
		UploaderID:  session.UserID,
		FileType:    fileType,
		ObjectKey:   key,
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"id": id, "objectKey": key}
	if presigned, err := s.files.PresignedGetURL(ctx, key, 15*time.Minute); err == nil {
		payload["url"] = presigned
	}
	return payload, nil
}

func (s *Service) ListMyFiles(ctx context.Context, session Session) (map[string]any, error) {
	thesis, err := s.store.GetThesisByStudent(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	fileRows, err := s.store.ListThesisFiles(ctx, thesis.ID)
	if err != nil {
		return nil, err
	}

	payload := make([]map[string]any, 0, len(fileRows))
	for _, file := range fileRows {
		if file.ObjectKey != "" && s.files != nil {
			if presigned, err := s.files.PresignedGetURL(ctx, file.ObjectKey, 15*time.Minute); err == nil {
				file.URL = presigned
			} else {
				log.Printf("app: presign file %d: %v", file.ID, err)
			}
		}
		payload = append(payload, filePayload(file))
	}
	return map[string]any{"files": payload}, nil
}

func (s *Service) SchedulePresentation(ctx context.Context, session Session, date time.Time, location string) (map[string]any, error) {
	if date.IsZero() {
		return nil, errValidation("presentation date is required", nil)
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, errValidation("presentation location is required", nil)
	}

	thesis, err := s.store.GetThesisByStudent(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.SetPresentation(ctx, thesis.ID, session.UserID, date, location)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("presentation details are recorded while the thesis is underway")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) SubmitRepositoryURL(ctx context.Context, session Session, repositoryURL string) (map[string]any, error) {
	if !validHTTPURL(repositoryURL) {
		return nil, errValidation("a valid http(s) repository link is required", nil)
	}

	thesis, err := s.store.GetThesisByStudent(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.SetRepositoryURL(ctx, thesis.ID, session.UserID, repositoryURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errInvalidTransition("repository link is recorded while the thesis is under review")
	}
	return map[string]any{"ok": true}, nil
}

func (s *Service) ExaminationReport(ctx context.Context, session Session, format string) (*export.Result, error) {
	thesis, err := s.store.GetThesisByStudent(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	student, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	members, err := s.store.ListCommitteeMembers(ctx, thesis.ID)
	if err != nil {
		return nil, err
	}

	committee := make([]export.ReportCommitteeMember, 0, len(members))
	for _, member := range members {
		committee = append(committee, export.ReportCommitteeMember{
			Name:         member.ProfessorName,
			Role:         member.Role,
			Grade:        member.Grade,
			GradeDetails: member.GradeDetails,
		})
	}

	data := export.ReportData{
		ThesisTitle:          thesis.Title,
		Description:          thesis.Description,
		StudentName:          fullName(student),
		StudentEmail:         student.Email,
		Department:           student.Department,
		University:           student.University,
		SupervisorName:       thesis.SupervisorName,
		Status:               thesis.Status,
		AssignmentDate:       thesis.AssignmentDate,
		PresentationDate:     thesis.PresentationDate,
		PresentationLocation: thesis.PresentationLocation,
		Grade:                thesis.Grade,
		RepositoryURL:        thesis.RepositoryURL,
		GSApprovalProtocol:   thesis.GSApprovalProtocol,
		Committee:            committee,
		GeneratedAt:          time.Now(),
	}

	if export.Format(format) == export.FormatPDF {
		return export.ReportPDF(data)
	}

	html, err := export.RenderReportHTML(data)
	if err != nil {
		return nil, err
	}
	return &export.Result{
		Data:     []byte(html),
		Filename: "examination-report.html",
		MimeType: "text/html; charset=utf-8",
	}, nil
}

// uploadableThesis loads the caller's thesis and checks it is still underway.
func (s *Service) uploadableThesis(ctx context.Context, session Session) (store.Thesis, error) {
	thesis, err := s.store.GetThesisByStudent(ctx, session.UserID)
	if err != nil {
		return store.Thesis{}, err
	}
	if thesis.Status != string(lifecycle.StatusActive) && thesis.Status != string(lifecycle.StatusUnderReview) {
		return store.Thesis{}, errInvalidTransition("files are submitted while the thesis is underway")
	}
	return thesis, nil
}

func validFileType(fileType string) bool {
	switch fileType {
	case "draft", "final", "other":
		return true
	}
	return false
}

func validHTTPURL(raw string) bool {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
