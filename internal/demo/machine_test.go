package demo

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	svc := NewService(NewStoreWithClient(client), time.Hour)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestStartBeginsShowingInput(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	snap, err := svc.Start(ctx, "user-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if snap.Stage != StageShowingInput {
		t.Errorf("expected stage %s, got %s", StageShowingInput, snap.Stage)
	}
	if snap.EmailIndex != 0 {
		t.Errorf("expected email index 0, got %d", snap.EmailIndex)
	}
	if snap.TotalEmails != 5 {
		t.Errorf("expected 5 fixture emails, got %d", snap.TotalEmails)
	}
	if snap.Email == nil || snap.Email.ID != "demo-email-1" {
		t.Errorf("expected first email view, got %+v", snap.Email)
	}
	if snap.Extraction != nil {
		t.Error("extraction should not be visible before results stage")
	}
	if len(snap.Deals) != 0 || len(snap.Tasks) != 0 {
		t.Error("accumulated state should start empty")
	}
}

func TestTimedStagesAdvance(t *testing.T) {
	svc, now := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	steps := []struct {
		after time.Duration
		want  Stage
	}{
		{1500 * time.Millisecond, StageAnalyzing},
		{2 * time.Second, StageShowingResults},
		{2500 * time.Millisecond, StageUpdating},
		{time.Second, StageReadyForNext},
	}

	for _, step := range steps {
		*now = now.Add(step.after)
		snap, err := svc.Current(ctx, "user-1")
		if err != nil {
			t.Fatalf("Current failed: %v", err)
		}
		if snap.Stage != step.want {
			t.Fatalf("after +%v expected stage %s, got %s", step.after, step.want, snap.Stage)
		}
	}

	snap, err := svc.Current(ctx, "user-1")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if len(snap.Deals) != 1 || len(snap.Tasks) != 1 || len(snap.Contacts) != 1 {
		t.Errorf("expected first email accumulated, got %d deals %d tasks %d contacts",
			len(snap.Deals), len(snap.Tasks), len(snap.Contacts))
	}
	if len(snap.ProcessedEmails) != 1 || snap.ProcessedEmails[0] != "demo-email-1" {
		t.Errorf("unexpected processed emails: %v", snap.ProcessedEmails)
	}
}

func TestResultsStageRevealsExtraction(t *testing.T) {
	svc, now := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	*now = now.Add(3500 * time.Millisecond) // past showing_input and analyzing
	snap, err := svc.Current(ctx, "user-1")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if snap.Stage != StageShowingResults {
		t.Fatalf("expected showing_results, got %s", snap.Stage)
	}
	if snap.Extraction == nil || len(snap.Extraction.Deals) != 1 {
		t.Fatalf("expected extraction preview, got %+v", snap.Extraction)
	}
	// Results are previewed, not yet applied.
	if len(snap.Deals) != 0 {
		t.Error("deals should not accumulate before updating stage")
	}
}

func TestStaleSessionCatchesUp(t *testing.T) {
	svc, now := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Lunch break. All four timed stages became due long ago.
	*now = now.Add(10 * time.Minute)
	snap, err := svc.Current(ctx, "user-1")
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if snap.Stage != StageReadyForNext {
		t.Errorf("expected ready_for_next, got %s", snap.Stage)
	}
	if len(snap.ProcessedEmails) != 1 {
		t.Errorf("extraction should apply exactly once, got %v", snap.ProcessedEmails)
	}
}

func TestContinueRequiresReadyForNext(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := svc.Continue(ctx, "user-1"); err != ErrNotReady {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestCurrentWithoutSession(t *testing.T) {
	svc, _ := setupTestService(t)

	if _, err := svc.Current(context.Background(), "user-1"); err != ErrNoSession {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func runFullSession(t *testing.T, svc *Service, now *time.Time, userID string) Snapshot {
	t.Helper()
	ctx := context.Background()

	if _, err := svc.Start(ctx, userID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var snap Snapshot
	var err error
	for i := 0; i < 5; i++ {
		*now = now.Add(10 * time.Second)
		snap, err = svc.Current(ctx, userID)
		if err != nil {
			t.Fatalf("Current failed: %v", err)
		}
		if snap.Stage == StageComplete {
			break
		}
		if snap.Stage != StageReadyForNext {
			t.Fatalf("email %d: expected ready_for_next, got %s", i, snap.Stage)
		}
		if snap, err = svc.Continue(ctx, userID); err != nil {
			t.Fatalf("Continue failed: %v", err)
		}
	}
	return snap
}

func TestFullRunAccumulatesAndCompletes(t *testing.T) {
	svc, now := setupTestService(t)
	snap := runFullSession(t, svc, now, "user-1")

	if snap.Stage != StageComplete {
		t.Fatalf("expected complete, got %s", snap.Stage)
	}
	if len(snap.Deals) != 3 {
		t.Errorf("expected 3 deals, got %d", len(snap.Deals))
	}
	if len(snap.Tasks) != 7 {
		t.Errorf("expected 7 tasks, got %d", len(snap.Tasks))
	}
	// Email 5 repeats the TechCorp contact; dedupe leaves 4.
	if len(snap.Contacts) != 4 {
		t.Errorf("expected 4 deduplicated contacts, got %d", len(snap.Contacts))
	}
	if len(snap.ProcessedEmails) != 5 {
		t.Errorf("expected 5 processed emails, got %d", len(snap.ProcessedEmails))
	}
}

func TestFifthEmailPromotesFirstDeal(t *testing.T) {
	svc, now := setupTestService(t)
	snap := runFullSession(t, svc, now, "user-1")

	var found bool
	for _, d := range snap.Deals {
		if d.ID == "demo-deal-1" {
			found = true
			if d.Stage != "negotiation" {
				t.Errorf("expected demo-deal-1 promoted to negotiation, got %s", d.Stage)
			}
		}
	}
	if !found {
		t.Fatal("demo-deal-1 missing from accumulated deals")
	}
}

func TestCompletionStats(t *testing.T) {
	svc, now := setupTestService(t)
	snap := runFullSession(t, svc, now, "user-1")

	if snap.Stats == nil {
		t.Fatal("expected stats on completion")
	}
	st := snap.Stats
	if st.TotalDeals != 3 || st.TotalTasks != 7 || st.TotalContacts != 4 {
		t.Errorf("unexpected totals: %+v", st)
	}
	if st.TotalValue != 25000000 {
		t.Errorf("expected total value 25000000, got %v", st.TotalValue)
	}
	// Confidence >= 0.9: deals 0.95 and 0.93; tasks 0.92, 0.9, 0.91, 0.93, 0.9.
	if st.HighConfidenceItems != 7 {
		t.Errorf("expected 7 high-confidence items, got %d", st.HighConfidenceItems)
	}
	// Every fixture deal and task arrives accepted.
	if st.AutoApprovedItems != 10 {
		t.Errorf("expected 10 auto-approved items, got %d", st.AutoApprovedItems)
	}
	if st.TimeSavedMinutes != 3*10+7*5 {
		t.Errorf("expected 65 minutes saved, got %d", st.TimeSavedMinutes)
	}
}

func TestResetDiscardsSession(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Reset(ctx, "user-1"); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := svc.Current(ctx, "user-1"); err != ErrNoSession {
		t.Errorf("expected ErrNoSession after reset, got %v", err)
	}
}

func TestSessionsAreIsolatedPerUser(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "user-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := svc.Current(ctx, "user-2"); err != ErrNoSession {
		t.Errorf("expected ErrNoSession for other user, got %v", err)
	}
}
