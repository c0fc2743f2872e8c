package app

import (
	"context"
	"errors"

	"funnel/api/internal/demo"
)

func (s *Service) demoConfigured() error {
	if s.demo == nil {
		return domainError(503, "DEMO_UNAVAILABLE", "Demo mode not configured", nil)
	}
	return nil
}

// StartDemo begins a fresh demo session for the user.
func (s *Service) StartDemo(ctx context.Context, userID string) (demo.Snapshot, error) {
	if err := s.demoConfigured(); err != nil {
		return demo.Snapshot{}, err
	}
	snap, err := s.demo.Start(ctx, userID)
	if err != nil {
		return demo.Snapshot{}, domainError(500, "DEMO_FAILED", "Could not start demo session", nil)
	}
	return snap, nil
}

// DemoSession returns the current demo state, applying any due timed
// transitions first.
func (s *Service) DemoSession(ctx context.Context, userID string) (demo.Snapshot, error) {
	if err := s.demoConfigured(); err != nil {
		return demo.Snapshot{}, err
	}
	snap, err := s.demo.Current(ctx, userID)
	if err != nil {
		return demo.Snapshot{}, mapDemoError(err)
	}
	return snap, nil
}

// ContinueDemo advances a session waiting at ready_for_next.
func (s *Service) ContinueDemo(ctx context.Context, userID string) (demo.Snapshot, error) {
	if err := s.demoConfigured(); err != nil {
		return demo.Snapshot{}, err
	}
	snap, err := s.demo.Continue(ctx, userID)
	if err != nil {
		return demo.Snapshot{}, mapDemoError(err)
	}
	return snap, nil
}

// ResetDemo discards the user's demo session.
func (s *Service) ResetDemo(ctx context.Context, userID string) error {
	if err := s.demoConfigured(); err != nil {
		return err
	}
	if err := s.demo.Reset(ctx, userID); err != nil {
		return domainError(500, "DEMO_FAILED", "Could not reset demo session", nil)
	}
	return nil
}

func mapDemoError(err error) error {
	switch {
	case errors.Is(err, demo.ErrNoSession):
		return domainError(404, "NO_SESSION", "No active demo session", nil)
	case errors.Is(err, demo.ErrNotReady):
		return domainError(409, "NOT_READY", "Demo session is not waiting for the next email", nil)
	default:
		return domainError(500, "DEMO_FAILED", "Demo session error", nil)
	}
}
