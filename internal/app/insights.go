package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"funnel/api/internal/store"
)

const (
	insightInactiveDeal = "inactive_deal"
	insightHighInterest = "high_interest"
	insightBestTime     = "best_time"

	severityWarning  = "warning"
	severityPositive = "positive"
	severityInfo     = "info"

	inactivityWindow = 4 * 24 * time.Hour
	urgencyWindow    = 7 * 24 * time.Hour

	maxInsights = 3
)

// bestTimeMessage is a canned placeholder until real reply-time analytics
// exist.
const bestTimeMessage = "Best time to reach your prospects is 10:00-11:00 AM based on typical reply patterns."

type Insight struct {
	Type          string `json:"type"`
	Severity      string `json:"severity"`
	Message       string `json:"message"`
	DealID        string `json:"deal_id,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

// Insights evaluates the three dashboard heuristics over the user's active
// deals. A failed fetch degrades to no insights.
func (s *Service) Insights(ctx context.Context, userID string) []Insight {
	page, err := s.store.ListDeals(ctx, userID, "", derivedFetchLimit, "")
	if err != nil {
		log.Printf("insights for %s: %v", userID, err)
		return []Insight{}
	}
	return buildInsights(page.Items, s.now(), s.cfg.HighValueThreshold)
}

// buildInsights emits at most one insight per heuristic, in fixed order:
// inactivity, urgent high-value, best contact time. The output is never
// re-sorted by severity.
func buildInsights(deals []store.Deal, now time.Time, highValueThreshold float64) []Insight {
	active := make([]store.Deal, 0, len(deals))
	for _, deal := range deals {
		if deal.Status == store.DealStatusWon || deal.Status == store.DealStatusLost {
			continue
		}
		active = append(active, deal)
	}

	insights := make([]Insight, 0, maxInsights)

	for _, deal := range active {
		if now.Sub(deal.UpdatedAt) > inactivityWindow {
			insights = append(insights, Insight{
				Type:     insightInactiveDeal,
				Severity: severityWarning,
				Message:  fmt.Sprintf("Deal %q has had no activity for over 4 days. Consider a follow-up.", deal.Title),
				DealID:   deal.ID,
			})
			break
		}
	}

	for _, deal := range active {
		if deal.ExpectedCloseDate == nil || deal.Value == nil {
			continue
		}
		until := deal.ExpectedCloseDate.Sub(now)
		if until < 0 || until > urgencyWindow {
			continue
		}
		if *deal.Value < highValueThreshold {
			continue
		}
		days := int(math.Ceil(until.Hours() / 24))
		insights = append(insights, Insight{
			Type:          insightHighInterest,
			Severity:      severityPositive,
			Message:       fmt.Sprintf("High-value deal %q closes in %d day(s). Prioritize it.", deal.Title, days),
			DealID:        deal.ID,
			DaysRemaining: days,
		})
		break
	}

	if len(active) > 0 {
		insights = append(insights, Insight{
			Type:     insightBestTime,
			Severity: severityInfo,
			Message:  bestTimeMessage,
		})
	}

	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}
