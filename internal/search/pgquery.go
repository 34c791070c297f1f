package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgTopics implements Searcher using a plain ILIKE scan over the thesis table
// as a fallback when Meilisearch is unavailable.
type PgTopics struct {
	db *sql.DB
}

// NewPgTopics creates a PostgreSQL topic searcher.
func NewPgTopics(db *sql.DB) *PgTopics {
	return &PgTopics{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgTopics) Healthy() bool {
	return true
}

// Search matches the query text against title and description of topics still
// open for assignment.
func (p *PgTopics) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	const where = `
		FROM thesis t
		JOIN users sup ON sup.id = t.supervisor_id
		WHERE t.status = 'under_assignment' AND t.student_id IS NULL
			AND (t.title ILIKE '%' || $1 || '%' OR t.description ILIKE '%' || $1 || '%')
	`

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) `+where, q.Text).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pg topic count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT t.id, t.title, LEFT(COALESCE(t.description, ''), 200),
			CONCAT(sup.name, ' ', sup.surname), COALESCE(sup.department, '')
		%s
		ORDER BY t.created_at DESC
		LIMIT %d OFFSET %d
	`, where, limit, offset), q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pg topic query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Title, &r.Snippet, &r.Supervisor, &r.Department); err != nil {
			return nil, 0, fmt.Errorf("pg topic scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all open topics for full reindexing.
func (p *PgTopics) LoadAllRecords(ctx context.Context) ([]TopicRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT t.id, t.title, COALESCE(t.description, ''),
			CONCAT(sup.name, ' ', sup.surname), COALESCE(sup.department, '')
		FROM thesis t
		JOIN users sup ON sup.id = t.supervisor_id
		WHERE t.status = 'under_assignment' AND t.student_id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("load topics: %w", err)
	}
	defer rows.Close()

	topics := make([]TopicRecord, 0)
	for rows.Next() {
		var topic TopicRecord
		if err := rows.Scan(&topic.ID, &topic.Title, &topic.Description, &topic.Supervisor, &topic.Department); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topics: %w", err)
	}
	return topics, nil
}
