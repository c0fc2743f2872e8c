// Package demo simulates inbound email processing against fixture data.
// Sessions walk an explicit state machine whose timed stages advance
// lazily: transitions that became due while nobody was looking are
// applied on the next read.
package demo

import (
	"time"

	"funnel/api/internal/store"
)

// Stage is one state of the demo session machine.
type Stage string

const (
	StageIdle           Stage = "idle"
	StageShowingInput   Stage = "showing_input"
	StageAnalyzing      Stage = "analyzing"
	StageShowingResults Stage = "showing_results"
	StageUpdating       Stage = "updating"
	StageReadyForNext   Stage = "ready_for_next"
	StageComplete       Stage = "complete"
)

// stageDurations holds how long each timed stage runs before the machine
// moves on. Untimed stages wait for an explicit event.
var stageDurations = map[Stage]time.Duration{
	StageShowingInput:   1500 * time.Millisecond,
	StageAnalyzing:      2 * time.Second,
	StageShowingResults: 2500 * time.Millisecond,
	StageUpdating:       1 * time.Second,
}

// session is the persisted state of one user's demo run.
type session struct {
	UserID          string          `json:"user_id"`
	EmailIndex      int             `json:"email_index"`
	Stage           Stage           `json:"stage"`
	StageDeadline   time.Time       `json:"stage_deadline"`
	Emails          []Email         `json:"emails"`
	Deals           []store.Deal    `json:"deals"`
	Tasks           []store.Task    `json:"tasks"`
	Contacts        []store.Contact `json:"contacts"`
	ProcessedEmails []string        `json:"processed_emails"`
	StartedAt       time.Time       `json:"started_at"`
}

func newSession(userID string, emails []Email, now time.Time) *session {
	return &session{
		UserID:          userID,
		EmailIndex:      0,
		Stage:           StageShowingInput,
		StageDeadline:   now.Add(stageDurations[StageShowingInput]),
		Emails:          emails,
		Deals:           []store.Deal{},
		Tasks:           []store.Task{},
		Contacts:        []store.Contact{},
		ProcessedEmails: []string{},
		StartedAt:       now,
	}
}

// tickNext maps a timed stage to its successor. The updating stage
// resolves to ready_for_next or complete depending on queue position,
// which the caller decides.
func tickNext(st Stage) (Stage, bool) {
	switch st {
	case StageShowingInput:
		return StageAnalyzing, true
	case StageAnalyzing:
		return StageShowingResults, true
	case StageShowingResults:
		return StageUpdating, true
	default:
		return st, false
	}
}

// advance applies every timed transition whose deadline has passed.
// Deadlines chain off each other rather than off now, so a session read
// long after its deadlines still walks the same sequence of states.
func (s *session) advance(now time.Time) {
	for {
		if _, timed := stageDurations[s.Stage]; !timed {
			return
		}
		if now.Before(s.StageDeadline) {
			return
		}

		if s.Stage == StageUpdating {
			if s.EmailIndex < len(s.Emails)-1 {
				s.Stage = StageReadyForNext
			} else {
				s.Stage = StageComplete
			}
			return
		}

		next, ok := tickNext(s.Stage)
		if !ok {
			return
		}
		s.Stage = next
		s.StageDeadline = s.StageDeadline.Add(stageDurations[next])

		// Entering updating is when the email's extraction lands in
		// the accumulated dashboard state.
		if next == StageUpdating {
			s.applyExtraction(s.Emails[s.EmailIndex])
		}
	}
}

// continueNext moves a ready_for_next session to the next email.
func (s *session) continueNext(now time.Time) bool {
	if s.Stage != StageReadyForNext {
		return false
	}
	s.EmailIndex++
	s.Stage = StageShowingInput
	s.StageDeadline = now.Add(stageDurations[StageShowingInput])
	return true
}

// applyExtraction folds one email's extraction results into the session.
// Contacts deduplicate by email address; an email may also promote an
// already-extracted deal to a later pipeline stage.
func (s *session) applyExtraction(e Email) {
	s.Deals = append(s.Deals, e.Extraction.Deals...)
	s.Tasks = append(s.Tasks, e.Extraction.Tasks...)

	seen := make(map[string]bool, len(s.Contacts))
	for _, c := range s.Contacts {
		seen[c.Email] = true
	}
	for _, c := range e.Extraction.Contacts {
		if seen[c.Email] {
			continue
		}
		seen[c.Email] = true
		s.Contacts = append(s.Contacts, c)
	}

	if e.PromotesDealID != "" {
		for i := range s.Deals {
			if s.Deals[i].ID == e.PromotesDealID {
				s.Deals[i].Stage = store.DealStage(e.PromotesToStage)
				break
			}
		}
	}

	s.ProcessedEmails = append(s.ProcessedEmails, e.ID)
}
