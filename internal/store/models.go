package store

import "time"

type User struct {
	ID           int64
	Name         string
	Surname      string
	Email        string
	PasswordHash string
	Role         string
	Topic        string
	Landline     string
	Mobile       string
	Street       string
	StreetNumber string
	City         string
	PostalCode   string
	Department   string
	University   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Thesis struct {
	ID                   int64
	Title                string
	Description          string
	DescriptionPDFURL    string
	SupervisorID         int64
	StudentID            int64 // 0 while unassigned
	Status               string
	AssignmentDate       *time.Time
	PresentationDate     *time.Time
	PresentationLocation string
	Grade                *float64
	GSApprovalProtocol   string
	CancellationReason   string
	RepositoryURL        string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	// Joined fields for API responses
	SupervisorName string
	StudentName    string
}

type CommitteeInvitation struct {
	ID                 int64
	ThesisID           int64
	InvitedProfessorID int64
	Status             string // pending, accepted, declined
	CreatedAt          time.Time
	ResponseDate       *time.Time
	// Joined fields for API responses
	ProfessorName string
	ThesisTitle   string
}

type CommitteeMember struct {
	ID           int64
	ThesisID     int64
	ProfessorID  int64
	Role         string // supervisor, member
	Grade        *float64
	GradeDetails string
	CreatedAt    time.Time
	// Joined field for API responses
	ProfessorName string
}

type ProgressNote struct {
	ID        int64
	ThesisID  int64
	AuthorID  int64
	Note      string
	CreatedAt time.Time
}

type ThesisFile struct {
	ID          int64
	ThesisID    int64
	UploaderID  int64
	FileType    string // draft, final, other
	ObjectKey   string
	URL         string
	Description string
	UploadedAt  time.Time
}

// ProfessorStats aggregates a professor's supervision and committee record.
type ProfessorStats struct {
	SupervisedTotal     int
	SupervisedCompleted int
	SupervisedAvgDays   *float64
	SupervisedAvgGrade  *float64
	CommitteeTotal      int
	CommitteeCompleted  int
	CommitteeAvgDays    *float64
	CommitteeAvgGrade   *float64
}

// ProfileUpdate carries the student-editable contact fields.
type ProfileUpdate struct {
	Landline     string
	Mobile       string
	Street       string
	StreetNumber string
	City         string
	PostalCode   string
	Email        string
}
