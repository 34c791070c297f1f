package export

import (
	"strings"
	"testing"
	"time"
)

func TestThesesCSV(t *testing.T) {
	assigned := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	grade := 9.5
	rows := []ThesisRow{
		{
			ID:             1,
			Title:          "Stream processing for sensor networks",
			Status:         "completed",
			StudentName:    "Nikos Ioannou",
			SupervisorName: "Eleni Papadaki",
			AssignmentDate: &assigned,
			Grade:          &grade,
			RepositoryURL:  "https://nemertes.example/thesis/1",
		},
		{
			ID:             2,
			Title:          "Topic with, comma and \"quotes\"",
			Status:         "under_assignment",
			SupervisorName: "Eleni Papadaki",
		},
	}

	result, err := ThesesCSV(rows)
	if err != nil {
		t.Fatalf("ThesesCSV() error = %v", err)
	}
	if result.Filename != "theses.csv" {
		t.Errorf("filename = %s", result.Filename)
	}

	csvText := string(result.Data)
	lines := strings.Split(strings.TrimSpace(csvText), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if lines[0] != "id,title,status,student,supervisor,assignment_date,grade,repository_url" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "2024-03-10") {
		t.Errorf("expected assignment date in row: %s", lines[1])
	}
	if !strings.Contains(lines[1], "9.50") {
		t.Errorf("expected grade in row: %s", lines[1])
	}

	// Unset optionals come out as dashes, and commas/quotes stay quoted.
	if !strings.Contains(lines[2], "-") {
		t.Errorf("expected dash placeholders in row: %s", lines[2])
	}
	if !strings.Contains(lines[2], `"Topic with, comma and ""quotes"""`) {
		t.Errorf("expected quoted field in row: %s", lines[2])
	}
}

func TestRenderReportHTML(t *testing.T) {
	presentation := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	grade := 8.75
	data := ReportData{
		ThesisTitle:          "Stream processing for sensor networks",
		StudentName:          "Nikos Ioannou",
		StudentEmail:         "up1099999@upatras.gr",
		Department:           "Computer Engineering",
		University:           "University of Patras",
		SupervisorName:       "Eleni Papadaki",
		Status:               "under_review",
		PresentationDate:     &presentation,
		PresentationLocation: "Room B3",
		Grade:                &grade,
		Committee: []ReportCommitteeMember{
			{Name: "Eleni Papadaki", Role: "supervisor", Grade: &grade},
			{Name: "Nikos Ioannou", Role: "member"},
		},
		GeneratedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	if !strings.Contains(html, "Stream processing for sensor networks") {
		t.Error("HTML missing thesis title")
	}
	if !strings.Contains(html, "Nikos Ioannou") {
		t.Error("HTML missing student name")
	}
	if !strings.Contains(html, "Room B3") {
		t.Error("HTML missing presentation location")
	}
	if !strings.Contains(html, "8.75") {
		t.Error("HTML missing grade")
	}
}

func TestRenderReportHTMLPlaceholders(t *testing.T) {
	data := ReportData{
		ThesisTitle:    "Unscheduled thesis",
		SupervisorName: "Eleni Papadaki",
		Status:         "active",
		GeneratedAt:    time.Now(),
	}

	html, err := RenderReportHTML(data)
	if err != nil {
		t.Fatalf("RenderReportHTML() error = %v", err)
	}

	// Missing dates and grades render as readable placeholders, never blank.
	if !strings.Contains(html, "Not recorded") {
		t.Error("expected 'Not recorded' placeholder for missing date/grade")
	}
	if !strings.Contains(html, "-") {
		t.Error("expected '-' placeholder for missing text fields")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Document v1.2", "My-Document-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "document"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},       // Spaces encoded as %20, not +
		{"test+sign", "test%2Bsign"},           // + signs are encoded
		{"special<>", "special%3C%3E"},         // Special chars encoded
		{"normal-text.txt", "normal-text.txt"}, // Unreserved chars pass through
		{"", ""},                               // Empty string
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
