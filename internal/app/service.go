package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"funnel/api/internal/config"
	"funnel/api/internal/demo"
	"funnel/api/internal/export"
	"funnel/api/internal/search"
	"funnel/api/internal/store"
)

const (
	// defaultPageLimit matches the store's documented page-size default.
	defaultPageLimit = 50
	// derivedFetchLimit caps the single fetch behind every derived view.
	// Aggregates are therefore sample-bounded, not exact at scale.
	derivedFetchLimit = 1000
	// draftCountLimit caps the draft-status samples in the summary.
	draftCountLimit = 100
)

type dataStore interface {
	ListTasks(ctx context.Context, userID string, status store.TaskStatus, limit int, lastKey string) (store.TaskPage, error)
	ListDeals(ctx context.Context, userID string, status store.DealStatus, limit int, lastKey string) (store.DealPage, error)
	GetTask(ctx context.Context, userID, id string) (store.Task, error)
	GetDeal(ctx context.Context, userID, id string) (store.Deal, error)
	UpdateTask(ctx context.Context, id string, patch store.TaskPatch) error
	UpdateDeal(ctx context.Context, id string, patch store.DealPatch) error
	ListContacts(ctx context.Context, userID string, limit int) ([]store.Contact, error)
	CompanyNames(ctx context.Context, userID string, ids []string) (map[string]string, error)
	Ping(ctx context.Context) error
}

type searchService interface {
	Search(ctx context.Context, q search.Query) search.Response
	IndexDeal(d store.Deal)
	IndexTask(t store.Task)
}

type exportStore interface {
	Put(ctx context.Context, userID, kind string, header []string, rows [][]string) (export.Object, error)
	Get(ctx context.Context, key string) (export.Download, error)
}

type demoService interface {
	Start(ctx context.Context, userID string) (demo.Snapshot, error)
	Current(ctx context.Context, userID string) (demo.Snapshot, error)
	Continue(ctx context.Context, userID string) (demo.Snapshot, error)
	Reset(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
}

type Service struct {
	cfg     config.Config
	store   dataStore
	search  searchService
	exports exportStore
	demo    demoService
	now     func() time.Time
}

func New(cfg config.Config, dataStore *store.PostgresStore) *Service {
	return &Service{
		cfg:   cfg,
		store: dataStore,
		now:   time.Now,
	}
}

func (s *Service) WithSearch(svc *search.Service) *Service {
	s.search = svc
	return s
}

func (s *Service) WithExports(svc *export.Service) *Service {
	s.exports = svc
	return s
}

func (s *Service) WithDemo(svc *demo.Service) *Service {
	s.demo = svc
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) DemoPing(ctx context.Context) error {
	if s.demo == nil {
		return nil
	}
	return s.demo.Ping(ctx)
}

// TaskList is a read result that keeps "genuinely empty" distinguishable
// from "backing store unreachable": Degraded pages carry no items but the
// response still renders instead of failing the dashboard.
type TaskList struct {
	Page     store.TaskPage
	Degraded bool
}

type DealList struct {
	Page     store.DealPage
	Degraded bool
}

func (s *Service) ListTasks(ctx context.Context, userID string, status store.TaskStatus, limit int, lastKey string) (TaskList, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	page, err := s.store.ListTasks(ctx, userID, status, limit, lastKey)
	if err != nil {
		if errors.Is(err, store.ErrBadCursor) {
			return TaskList{}, domainError(http.StatusBadRequest, "INVALID_CURSOR", "lastKey is not a valid continuation token", nil)
		}
		log.Printf("list tasks for %s: %v", userID, err)
		return TaskList{Page: store.TaskPage{Items: []store.Task{}}, Degraded: true}, nil
	}
	if page.Items == nil {
		page.Items = []store.Task{}
	}
	return TaskList{Page: page}, nil
}

func (s *Service) ListDeals(ctx context.Context, userID string, status store.DealStatus, limit int, lastKey string) (DealList, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	page, err := s.store.ListDeals(ctx, userID, status, limit, lastKey)
	if err != nil {
		if errors.Is(err, store.ErrBadCursor) {
			return DealList{}, domainError(http.StatusBadRequest, "INVALID_CURSOR", "lastKey is not a valid continuation token", nil)
		}
		log.Printf("list deals for %s: %v", userID, err)
		return DealList{Page: store.DealPage{Items: []store.Deal{}}, Degraded: true}, nil
	}
	if page.Items == nil {
		page.Items = []store.Deal{}
	}
	return DealList{Page: page}, nil
}

// GetTask returns nil when the task does not exist for this user. A store
// failure degrades to not-found, matching the read-path contract.
func (s *Service) GetTask(ctx context.Context, userID, id string) *store.Task {
	task, err := s.store.GetTask(ctx, userID, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("get task %s: %v", id, err)
		}
		return nil
	}
	return &task
}

func (s *Service) GetDeal(ctx context.Context, userID, id string) *store.Deal {
	deal, err := s.store.GetDeal(ctx, userID, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("get deal %s: %v", id, err)
		}
		return nil
	}
	return &deal
}

// UpdateTask applies a partial update. The patch type cannot carry an id,
// so the key attribute is immutable by construction.
func (s *Service) UpdateTask(ctx context.Context, userID, id string, patch store.TaskPatch) error {
	if err := s.store.UpdateTask(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "Task not found", nil)
		}
		log.Printf("update task %s: %v", id, err)
		return domainError(http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update task", nil)
	}
	if s.search != nil {
		if task := s.GetTask(ctx, userID, id); task != nil {
			s.search.IndexTask(*task)
		}
	}
	return nil
}

func (s *Service) UpdateDeal(ctx context.Context, userID, id string, patch store.DealPatch) error {
	if err := s.store.UpdateDeal(ctx, id, patch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "Deal not found", nil)
		}
		log.Printf("update deal %s: %v", id, err)
		return domainError(http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update deal", nil)
	}
	if s.search != nil {
		if deal := s.GetDeal(ctx, userID, id); deal != nil {
			s.search.IndexDeal(*deal)
		}
	}
	return nil
}

func (s *Service) ListContacts(ctx context.Context, userID string, limit int) []store.Contact {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	contacts, err := s.store.ListContacts(ctx, userID, limit)
	if err != nil {
		log.Printf("list contacts for %s: %v", userID, err)
		return []store.Contact{}
	}
	if contacts == nil {
		contacts = []store.Contact{}
	}
	return contacts
}

func (s *Service) Search(ctx context.Context, userID, text, filterType string, limit int) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	if limit <= 0 {
		limit = 20
	}
	return s.search.Search(ctx, search.Query{
		UserID: userID,
		Text:   text,
		Type:   filterType,
		Limit:  limit,
	})
}
