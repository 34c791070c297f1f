package search

import (
	"context"
	"log"
)

// Service is the facade that tries Meilisearch first and falls back to
// querying Postgres directly.
type Service struct {
	meili *Meili
	pg    *PgTopics
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pg *PgTopics) *Service {
	return &Service{meili: meili, pg: pg}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to postgres: %v", err)
	}

	results, total, err := s.pg.Search(q)
	if err != nil {
		log.Printf("search: postgres topic search error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTopic indexes a topic (fire-and-forget to Meilisearch).
func (s *Service) IndexTopic(topic TopicRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTopic(topic); err != nil {
			log.Printf("search: index topic %d: %v", topic.ID, err)
		}
	}()
}

// DeleteTopic removes a topic from the index, typically once a student has
// been assigned (fire-and-forget to Meilisearch).
func (s *Service) DeleteTopic(id int64) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTopic(id); err != nil {
			log.Printf("search: delete topic %d: %v", id, err)
		}
	}()
}

// ReindexAllFromPG reindexes all open topics from PostgreSQL into Meilisearch.
// Called during startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	topics, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		log.Printf("search: reindex load failed: %v", err)
		return
	}
	if len(topics) == 0 {
		return
	}
	if err := s.meili.IndexTopics(topics); err != nil {
		log.Printf("search: reindex topics: %v", err)
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
