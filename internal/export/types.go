// Package export renders thesis data as CSV, HTML, and PDF.
package export

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ThesisRow is one thesis in a tabular export.
type ThesisRow struct {
	ID             int64
	Title          string
	Status         string
	StudentName    string
	SupervisorName string
	AssignmentDate *time.Time
	Grade          *float64
	RepositoryURL  string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
