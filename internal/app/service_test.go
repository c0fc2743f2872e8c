package app

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"funnel/api/internal/config"
	"funnel/api/internal/search"
	"funnel/api/internal/store"
)

type fakeStore struct {
	listTasksFn    func(context.Context, string, store.TaskStatus, int, string) (store.TaskPage, error)
	listDealsFn    func(context.Context, string, store.DealStatus, int, string) (store.DealPage, error)
	getTaskFn      func(context.Context, string, string) (store.Task, error)
	getDealFn      func(context.Context, string, string) (store.Deal, error)
	updateTaskFn   func(context.Context, string, store.TaskPatch) error
	updateDealFn   func(context.Context, string, store.DealPatch) error
	listContactsFn func(context.Context, string, int) ([]store.Contact, error)
	companyNamesFn func(context.Context, string, []string) (map[string]string, error)
	pingFn         func(context.Context) error
}

func (f *fakeStore) ListTasks(ctx context.Context, userID string, status store.TaskStatus, limit int, lastKey string) (store.TaskPage, error) {
	if f.listTasksFn != nil {
		return f.listTasksFn(ctx, userID, status, limit, lastKey)
	}
	return store.TaskPage{Items: []store.Task{}}, nil
}

func (f *fakeStore) ListDeals(ctx context.Context, userID string, status store.DealStatus, limit int, lastKey string) (store.DealPage, error) {
	if f.listDealsFn != nil {
		return f.listDealsFn(ctx, userID, status, limit, lastKey)
	}
	return store.DealPage{Items: []store.Deal{}}, nil
}

func (f *fakeStore) GetTask(ctx context.Context, userID, id string) (store.Task, error) {
	if f.getTaskFn != nil {
		return f.getTaskFn(ctx, userID, id)
	}
	return store.Task{}, sql.ErrNoRows
}

func (f *fakeStore) GetDeal(ctx context.Context, userID, id string) (store.Deal, error) {
	if f.getDealFn != nil {
		return f.getDealFn(ctx, userID, id)
	}
	return store.Deal{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateTask(ctx context.Context, id string, patch store.TaskPatch) error {
	if f.updateTaskFn != nil {
		return f.updateTaskFn(ctx, id, patch)
	}
	return nil
}

func (f *fakeStore) UpdateDeal(ctx context.Context, id string, patch store.DealPatch) error {
	if f.updateDealFn != nil {
		return f.updateDealFn(ctx, id, patch)
	}
	return nil
}

func (f *fakeStore) ListContacts(ctx context.Context, userID string, limit int) ([]store.Contact, error) {
	if f.listContactsFn != nil {
		return f.listContactsFn(ctx, userID, limit)
	}
	return []store.Contact{}, nil
}

func (f *fakeStore) CompanyNames(ctx context.Context, userID string, ids []string) (map[string]string, error) {
	if f.companyNamesFn != nil {
		return f.companyNamesFn(ctx, userID, ids)
	}
	return map[string]string{}, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

type fakeSearch struct {
	searchFn     func(context.Context, search.Query) search.Response
	indexedDeals []store.Deal
	indexedTasks []store.Task
}

func (f *fakeSearch) Search(ctx context.Context, q search.Query) search.Response {
	if f.searchFn != nil {
		return f.searchFn(ctx, q)
	}
	return search.Response{Results: []search.Result{}, Query: q.Text}
}

func (f *fakeSearch) IndexDeal(d store.Deal) { f.indexedDeals = append(f.indexedDeals, d) }
func (f *fakeSearch) IndexTask(t store.Task) { f.indexedTasks = append(f.indexedTasks, t) }

func testConfig() config.Config {
	return config.Config{
		TokenSecret:        "test-secret",
		AccessTTL:          time.Hour,
		HighValueThreshold: 100000,
	}
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg:   testConfig(),
		store: fs,
		now:   time.Now,
	}
}

func strPtr(s string) *string        { return &s }
func f64Ptr(f float64) *float64      { return &f }
func intPtr(n int) *int              { return &n }
func timePtr(t time.Time) *time.Time { return &t }

func TestListTasksAppliesDefaultLimit(t *testing.T) {
	var gotLimit int
	fs := &fakeStore{
		listTasksFn: func(_ context.Context, _ string, _ store.TaskStatus, limit int, _ string) (store.TaskPage, error) {
			gotLimit = limit
			return store.TaskPage{Items: []store.Task{}}, nil
		},
	}
	svc := newTestService(fs)

	if _, err := svc.ListTasks(context.Background(), "user-1", "", 0, ""); err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if gotLimit != defaultPageLimit {
		t.Errorf("expected default limit %d, got %d", defaultPageLimit, gotLimit)
	}
}

func TestListTasksRejectsBadCursor(t *testing.T) {
	fs := &fakeStore{
		listTasksFn: func(context.Context, string, store.TaskStatus, int, string) (store.TaskPage, error) {
			return store.TaskPage{}, store.ErrBadCursor
		},
	}
	svc := newTestService(fs)

	_, err := svc.ListTasks(context.Background(), "user-1", "", 10, "garbage")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if domainErr.Status != 400 || domainErr.Code != "INVALID_CURSOR" {
		t.Errorf("expected 400 INVALID_CURSOR, got %d %s", domainErr.Status, domainErr.Code)
	}
}

func TestListTasksDegradesOnStoreFailure(t *testing.T) {
	fs := &fakeStore{
		listTasksFn: func(context.Context, string, store.TaskStatus, int, string) (store.TaskPage, error) {
			return store.TaskPage{}, errors.New("connection refused")
		},
	}
	svc := newTestService(fs)

	list, err := svc.ListTasks(context.Background(), "user-1", "", 10, "")
	if err != nil {
		t.Fatalf("expected degraded result, got error %v", err)
	}
	if !list.Degraded {
		t.Error("expected Degraded flag")
	}
	if list.Page.Items == nil || len(list.Page.Items) != 0 {
		t.Errorf("expected empty non-nil items, got %v", list.Page.Items)
	}
}

func TestListDealsDegradesOnStoreFailure(t *testing.T) {
	fs := &fakeStore{
		listDealsFn: func(context.Context, string, store.DealStatus, int, string) (store.DealPage, error) {
			return store.DealPage{}, errors.New("connection refused")
		},
	}
	svc := newTestService(fs)

	list, err := svc.ListDeals(context.Background(), "user-1", "", 10, "")
	if err != nil {
		t.Fatalf("expected degraded result, got error %v", err)
	}
	if !list.Degraded || len(list.Page.Items) != 0 {
		t.Errorf("expected degraded empty page, got %+v", list)
	}
}

func TestGetTaskMissingReturnsNil(t *testing.T) {
	svc := newTestService(&fakeStore{})

	if task := svc.GetTask(context.Background(), "user-1", "task-1"); task != nil {
		t.Errorf("expected nil, got %+v", task)
	}
}

func TestGetTaskStoreFailureReadsAsMissing(t *testing.T) {
	fs := &fakeStore{
		getTaskFn: func(context.Context, string, string) (store.Task, error) {
			return store.Task{}, errors.New("connection refused")
		},
	}
	svc := newTestService(fs)

	if task := svc.GetTask(context.Background(), "user-1", "task-1"); task != nil {
		t.Errorf("expected nil on store failure, got %+v", task)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	fs := &fakeStore{
		updateTaskFn: func(context.Context, string, store.TaskPatch) error {
			return sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	err := svc.UpdateTask(context.Background(), "user-1", "task-1", store.TaskPatch{Title: strPtr("x")})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 404 {
		t.Errorf("expected 404 DomainError, got %v", err)
	}
}

func TestUpdateTaskStoreFailure(t *testing.T) {
	fs := &fakeStore{
		updateTaskFn: func(context.Context, string, store.TaskPatch) error {
			return errors.New("connection refused")
		},
	}
	svc := newTestService(fs)

	err := svc.UpdateTask(context.Background(), "user-1", "task-1", store.TaskPatch{})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 500 || domainErr.Code != "UPDATE_FAILED" {
		t.Errorf("expected 500 UPDATE_FAILED, got %v", err)
	}
}

func TestUpdateTaskReindexesOnSuccess(t *testing.T) {
	task := store.Task{ID: "task-1", UserID: "user-1", Title: "Follow up"}
	fs := &fakeStore{
		getTaskFn: func(context.Context, string, string) (store.Task, error) {
			return task, nil
		},
	}
	fsearch := &fakeSearch{}
	svc := newTestService(fs)
	svc.search = fsearch

	if err := svc.UpdateTask(context.Background(), "user-1", "task-1", store.TaskPatch{Title: strPtr("Follow up")}); err != nil {
		t.Fatalf("UpdateTask failed: %v", err)
	}
	if len(fsearch.indexedTasks) != 1 || fsearch.indexedTasks[0].ID != "task-1" {
		t.Errorf("expected task reindexed, got %+v", fsearch.indexedTasks)
	}
}

func TestUpdateDealNotFound(t *testing.T) {
	fs := &fakeStore{
		updateDealFn: func(context.Context, string, store.DealPatch) error {
			return sql.ErrNoRows
		},
	}
	svc := newTestService(fs)

	err := svc.UpdateDeal(context.Background(), "user-1", "deal-1", store.DealPatch{})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != 404 {
		t.Errorf("expected 404 DomainError, got %v", err)
	}
}

func TestSearchWithoutBackend(t *testing.T) {
	svc := newTestService(&fakeStore{})

	resp := svc.Search(context.Background(), "user-1", "acme", "", 0)
	if resp.Query != "acme" {
		t.Errorf("expected query echoed, got %q", resp.Query)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty non-nil results, got %v", resp.Results)
	}
}

func TestSearchScopesToUser(t *testing.T) {
	var gotQuery search.Query
	fsearch := &fakeSearch{
		searchFn: func(_ context.Context, q search.Query) search.Response {
			gotQuery = q
			return search.Response{Results: []search.Result{}, Query: q.Text}
		},
	}
	svc := newTestService(&fakeStore{})
	svc.search = fsearch

	svc.Search(context.Background(), "user-1", "acme", "deal", 0)
	if gotQuery.UserID != "user-1" {
		t.Errorf("expected search scoped to user-1, got %q", gotQuery.UserID)
	}
	if gotQuery.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", gotQuery.Limit)
	}
	if gotQuery.Type != "deal" {
		t.Errorf("expected type filter passed through, got %q", gotQuery.Type)
	}
}
