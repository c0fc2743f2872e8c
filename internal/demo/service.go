package demo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"funnel/api/internal/store"
)

// ErrNotReady indicates a continue request arrived while the session was
// not waiting at ready_for_next.
var ErrNotReady = errors.New("demo session not ready for next email")

// Estimated manual-entry minutes replaced by one extracted record.
const (
	minutesPerDeal = 10
	minutesPerTask = 5

	highConfidenceFloor = 0.9
)

// Stats summarizes a completed demo run.
type Stats struct {
	TotalDeals          int     `json:"total_deals"`
	TotalValue          float64 `json:"total_value"`
	TotalTasks          int     `json:"total_tasks"`
	TotalContacts       int     `json:"total_contacts"`
	HighConfidenceItems int     `json:"high_confidence_items"`
	AutoApprovedItems   int     `json:"auto_approved_items"`
	TimeSavedMinutes    int     `json:"time_saved_minutes"`
}

// EmailView is the displayable part of the email being processed.
type EmailView struct {
	ID       string `json:"id"`
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
}

// Snapshot is the externally visible state of a demo session.
type Snapshot struct {
	Stage           Stage           `json:"stage"`
	EmailIndex      int             `json:"email_index"`
	TotalEmails     int             `json:"total_emails"`
	Remaining       int             `json:"remaining"`
	Email           *EmailView      `json:"email,omitempty"`
	Extraction      *Extraction     `json:"extraction,omitempty"`
	Deals           []store.Deal    `json:"deals"`
	Tasks           []store.Task    `json:"tasks"`
	Contacts        []store.Contact `json:"contacts"`
	ProcessedEmails []string        `json:"processed_emails"`
	StageEndsAt     *time.Time      `json:"stage_ends_at,omitempty"`
	Stats           *Stats          `json:"stats,omitempty"`
}

// Service runs demo sessions on top of the Redis store.
type Service struct {
	store *Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a demo service. ttl bounds how long an idle session
// survives between requests.
func NewService(sessions *Store, ttl time.Duration) *Service {
	return &Service{store: sessions, ttl: ttl, now: time.Now}
}

// Start begins a fresh session, replacing any existing one.
func (s *Service) Start(ctx context.Context, userID string) (Snapshot, error) {
	now := s.now()
	emails, err := materializeEmails(userID, now)
	if err != nil {
		return Snapshot{}, fmt.Errorf("materialize demo emails: %w", err)
	}

	sess := newSession(userID, emails, now)
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(sess), nil
}

// Current returns the session state after applying any due timed
// transitions.
func (s *Service) Current(ctx context.Context, userID string) (Snapshot, error) {
	sess, err := s.store.Load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	before := sess.Stage
	sess.advance(s.now())
	if sess.Stage != before {
		if err := s.store.Save(ctx, sess, s.ttl); err != nil {
			return Snapshot{}, err
		}
	}
	return s.snapshot(sess), nil
}

// Continue moves a session waiting at ready_for_next on to the next email.
func (s *Service) Continue(ctx context.Context, userID string) (Snapshot, error) {
	sess, err := s.store.Load(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	now := s.now()
	sess.advance(now)
	if !sess.continueNext(now) {
		return Snapshot{}, ErrNotReady
	}
	if err := s.store.Save(ctx, sess, s.ttl); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(sess), nil
}

// Reset discards the user's session.
func (s *Service) Reset(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

// Ping checks the backing session store.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) snapshot(sess *session) Snapshot {
	snap := Snapshot{
		Stage:           sess.Stage,
		EmailIndex:      sess.EmailIndex,
		TotalEmails:     len(sess.Emails),
		Remaining:       len(sess.Emails) - (sess.EmailIndex + 1),
		Deals:           sess.Deals,
		Tasks:           sess.Tasks,
		Contacts:        sess.Contacts,
		ProcessedEmails: sess.ProcessedEmails,
	}

	switch sess.Stage {
	case StageShowingInput, StageAnalyzing, StageShowingResults, StageUpdating:
		e := sess.Emails[sess.EmailIndex]
		snap.Email = &EmailView{
			ID:       e.ID,
			From:     e.From,
			FromName: e.FromName,
			Subject:  e.Subject,
			Body:     e.Body,
		}
		deadline := sess.StageDeadline
		snap.StageEndsAt = &deadline
	}

	// Extraction results become visible at the reveal stage.
	if sess.Stage == StageShowingResults || sess.Stage == StageUpdating {
		ex := sess.Emails[sess.EmailIndex].Extraction
		snap.Extraction = &ex
	}

	if sess.Stage == StageComplete {
		st := computeStats(sess)
		snap.Stats = &st
	}
	return snap
}

func computeStats(sess *session) Stats {
	st := Stats{
		TotalDeals:    len(sess.Deals),
		TotalTasks:    len(sess.Tasks),
		TotalContacts: len(sess.Contacts),
	}

	for _, d := range sess.Deals {
		if d.Value != nil {
			st.TotalValue += *d.Value
		}
		if d.Confidence >= highConfidenceFloor {
			st.HighConfidenceItems++
		}
		if d.Status == store.DealStatusAccepted {
			st.AutoApprovedItems++
		}
	}
	for _, t := range sess.Tasks {
		if t.Confidence >= highConfidenceFloor {
			st.HighConfidenceItems++
		}
		if t.Status == store.TaskStatusAccepted {
			st.AutoApprovedItems++
		}
	}

	st.TimeSavedMinutes = st.TotalDeals*minutesPerDeal + st.TotalTasks*minutesPerTask
	return st
}
