package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// ThesesCSV renders thesis rows as a CSV file. Empty optional fields are
// written as '-' so spreadsheets show every column.
func ThesesCSV(rows []ThesisRow) (*Result, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"id", "title", "status", "student", "supervisor", "assignment_date", "grade", "repository_url"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, row := range rows {
		assignmentDate := "-"
		if row.AssignmentDate != nil {
			assignmentDate = row.AssignmentDate.Format("2006-01-02")
		}
		grade := "-"
		if row.Grade != nil {
			grade = strconv.FormatFloat(*row.Grade, 'f', 2, 64)
		}
		record := []string{
			strconv.FormatInt(row.ID, 10),
			row.Title,
			row.Status,
			orDash(row.StudentName),
			row.SupervisorName,
			assignmentDate,
			grade,
			orDash(row.RepositoryURL),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return &Result{
		Data:     buf.Bytes(),
		Filename: "theses.csv",
		MimeType: "text/csv; charset=utf-8",
	}, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
