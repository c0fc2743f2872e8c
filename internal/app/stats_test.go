package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"funnel/api/internal/store"
)

func TestComputeSummary(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -10)
	old := now.AddDate(0, 0, -40)

	deals := []store.Deal{
		{ID: "won", Status: store.DealStatusWon, Value: f64Ptr(1000), CreatedAt: old},
		{ID: "open", Status: store.DealStatusAccepted, Value: f64Ptr(500),
			ExpectedCloseDate: timePtr(now.AddDate(0, 0, 3)), CreatedAt: recent},
		{ID: "draft", Status: store.DealStatusDraft, CreatedAt: recent},
	}

	stats := computeSummary(4, 2, 9, deals, now)

	if stats.DraftTasks != 4 || stats.DraftDeals != 2 {
		t.Errorf("draft counts wrong: %+v", stats)
	}
	if stats.TotalTasks != 9 || stats.TotalDeals != 3 {
		t.Errorf("totals wrong: %+v", stats)
	}
	if stats.Revenue != 1500 {
		t.Errorf("expected revenue 1500, got %v", stats.Revenue)
	}
	if stats.ActiveDeals != 2 {
		t.Errorf("expected 2 active deals, got %d", stats.ActiveDeals)
	}
	if stats.ClosingThisWeek != 1 {
		t.Errorf("expected 1 closing this week, got %d", stats.ClosingThisWeek)
	}
	// 1 won of 3 → 33.
	if stats.ConversionRate != 33 {
		t.Errorf("expected conversion 33, got %d", stats.ConversionRate)
	}
	if stats.NewContacts != 2 {
		t.Errorf("expected 2 new contacts, got %d", stats.NewContacts)
	}
}

func TestComputeSummaryClosingWindowIsInclusive(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	deals := []store.Deal{
		{ID: "today", ExpectedCloseDate: timePtr(now)},
		{ID: "boundary", ExpectedCloseDate: timePtr(now.Add(7 * 24 * time.Hour))},
		{ID: "past", ExpectedCloseDate: timePtr(now.Add(-time.Hour))},
		{ID: "beyond", ExpectedCloseDate: timePtr(now.Add(7*24*time.Hour + time.Hour))},
	}

	stats := computeSummary(0, 0, 0, deals, now)
	if stats.ClosingThisWeek != 2 {
		t.Errorf("expected both boundary deals counted, got %d", stats.ClosingThisWeek)
	}
}

func TestComputeSummaryConversionRounds(t *testing.T) {
	deals := []store.Deal{
		{Status: store.DealStatusWon},
		{Status: store.DealStatusWon},
		{Status: store.DealStatusLost},
	}
	stats := computeSummary(0, 0, 0, deals, time.Now())
	// 2 of 3 → 66.67 rounds to 67.
	if stats.ConversionRate != 67 {
		t.Errorf("expected conversion 67, got %d", stats.ConversionRate)
	}
}

func TestComputeSummaryEmpty(t *testing.T) {
	stats := computeSummary(0, 0, 0, nil, time.Now())
	if stats.ConversionRate != 0 || stats.Revenue != 0 {
		t.Errorf("expected zero stats, got %+v", stats)
	}
}

func TestSummaryStatsZeroesOnAnyFetchFailure(t *testing.T) {
	fs := &fakeStore{
		listTasksFn: func(_ context.Context, _ string, status store.TaskStatus, _ int, _ string) (store.TaskPage, error) {
			if status == store.TaskStatusDraft {
				return store.TaskPage{}, errors.New("connection refused")
			}
			return store.TaskPage{Items: []store.Task{{ID: "t"}}, Count: 1}, nil
		},
		listDealsFn: func(context.Context, string, store.DealStatus, int, string) (store.DealPage, error) {
			return store.DealPage{Items: []store.Deal{{ID: "d", Value: f64Ptr(100)}}, Count: 1}, nil
		},
	}
	svc := newTestService(fs)

	stats := svc.SummaryStatsFor(context.Background(), "user-1")
	if stats != (SummaryStats{}) {
		t.Errorf("expected all-zero stats on partial failure, got %+v", stats)
	}
}

func TestSummaryStatsUsesCappedFetches(t *testing.T) {
	limits := map[store.TaskStatus]int{}
	fs := &fakeStore{
		listTasksFn: func(_ context.Context, _ string, status store.TaskStatus, limit int, _ string) (store.TaskPage, error) {
			limits[status] = limit
			return store.TaskPage{Items: []store.Task{}}, nil
		},
	}
	svc := newTestService(fs)

	svc.SummaryStatsFor(context.Background(), "user-1")
	if limits[store.TaskStatusDraft] != draftCountLimit {
		t.Errorf("expected draft fetch capped at %d, got %d", draftCountLimit, limits[store.TaskStatusDraft])
	}
	if limits[""] != derivedFetchLimit {
		t.Errorf("expected full fetch capped at %d, got %d", derivedFetchLimit, limits[""])
	}
}
