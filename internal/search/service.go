package search

import (
	"context"
	"log"

	"funnel/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	return &Service{meili: meili, pgfts: pgfts}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to pgfts: %v", err)
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		log.Printf("search: pgfts error: %v", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexDeal pushes a deal into the search index (fire-and-forget to Meilisearch).
func (s *Service) IndexDeal(d store.Deal) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := dealRecord{
		ID:          d.ID,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Status:      string(d.Status),
		Stage:       string(d.Stage),
	}
	go func() {
		if err := s.meili.indexDeal(rec); err != nil {
			log.Printf("search: index deal %s: %v", rec.ID, err)
		}
	}()
}

// IndexTask pushes a task into the search index (fire-and-forget to Meilisearch).
func (s *Service) IndexTask(t store.Task) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := taskRecord{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
	}
	go func() {
		if err := s.meili.indexTask(rec); err != nil {
			log.Printf("search: index task %s: %v", rec.ID, err)
		}
	}()
}

// IndexContact pushes a contact into the search index (fire-and-forget to Meilisearch).
func (s *Service) IndexContact(c store.Contact) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	rec := contactRecord{
		ID:     c.ID,
		UserID: c.UserID,
		Name:   c.Name,
		Email:  c.Email,
	}
	if c.JobTitle != nil {
		rec.JobTitle = *c.JobTitle
	}
	go func() {
		if err := s.meili.indexContact(rec); err != nil {
			log.Printf("search: index contact %s: %v", rec.ID, err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
