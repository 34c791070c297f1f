package export

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower":  strings.ToLower,
		"orDash": orDash,
		"formatDate": func(t *time.Time) string {
			if t == nil {
				return "Not recorded"
			}
			return t.Format("January 2, 2006")
		},
		"formatGrade": func(g *float64) string {
			if g == nil {
				return "Not recorded"
			}
			return strconv.FormatFloat(*g, 'f', 2, 64)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackReportTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// ReportData holds everything the examination report page needs.
type ReportData struct {
	ThesisTitle          string
	Description          string
	StudentName          string
	StudentEmail         string
	Department           string
	University           string
	SupervisorName       string
	Status               string
	AssignmentDate       *time.Time
	PresentationDate     *time.Time
	PresentationLocation string
	Grade                *float64
	RepositoryURL        string
	GSApprovalProtocol   string
	Committee            []ReportCommitteeMember
	GeneratedAt          time.Time
}

// ReportCommitteeMember is one committee row on the report.
type ReportCommitteeMember struct {
	Name         string
	Role         string
	Grade        *float64
	GradeDetails string
}

// RenderReportHTML renders the examination report template with provided data
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ReportPDF renders the examination report and converts it to PDF.
func ReportPDF(data ReportData) (*Result, error) {
	html, err := RenderReportHTML(data)
	if err != nil {
		return nil, err
	}
	return exportPDF(html, "examination-report-"+sanitizeFilename(data.StudentName))
}

// fallbackReportTemplate is used if the embedded template fails to load
const fallbackReportTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Examination Report</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border: 1px solid #ccc; padding: 0.5rem; text-align: left; }
  </style>
</head>
<body>
  <h1>Thesis Examination Report</h1>
  <p><strong>{{.ThesisTitle}}</strong></p>
  <p>Student: {{orDash .StudentName}} ({{orDash .StudentEmail}})</p>
  <p>Supervisor: {{.SupervisorName}}</p>
  <p>Presentation: {{formatDate .PresentationDate}} at {{orDash .PresentationLocation}}</p>
  <p>Final grade: {{formatGrade .Grade}}</p>
  <table>
    <tr><th>Committee member</th><th>Role</th><th>Grade</th></tr>
    {{range .Committee}}<tr><td>{{.Name}}</td><td>{{.Role}}</td><td>{{formatGrade .Grade}}</td></tr>{{end}}
  </table>
</body>
</html>`
