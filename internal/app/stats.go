package app

import (
	"context"
	"log"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"funnel/api/internal/store"
)

// SummaryStats is the dashboard headline block. Every figure is computed
// from capped fetches, so the numbers are approximate once a user's data
// outgrows the sample limits.
type SummaryStats struct {
	DraftTasks      int     `json:"draft_tasks"`
	DraftDeals      int     `json:"draft_deals"`
	TotalTasks      int     `json:"total_tasks"`
	TotalDeals      int     `json:"total_deals"`
	Revenue         float64 `json:"revenue"`
	ActiveDeals     int     `json:"active_deals"`
	ClosingThisWeek int     `json:"closing_this_week"`
	ConversionRate  int     `json:"conversion_rate"`
	NewContacts     int     `json:"new_contacts"`
}

// SummaryStatsFor runs the four backing fetches concurrently and joins on
// all of them. Any failure zeroes the whole block rather than serving a
// partial average.
func (s *Service) SummaryStatsFor(ctx context.Context, userID string) SummaryStats {
	var (
		draftTasks store.TaskPage
		draftDeals store.DealPage
		allTasks   store.TaskPage
		allDeals   store.DealPage
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		draftTasks, err = s.store.ListTasks(ctx, userID, store.TaskStatusDraft, draftCountLimit, "")
		return err
	})
	g.Go(func() (err error) {
		draftDeals, err = s.store.ListDeals(ctx, userID, store.DealStatusDraft, draftCountLimit, "")
		return err
	})
	g.Go(func() (err error) {
		allTasks, err = s.store.ListTasks(ctx, userID, "", derivedFetchLimit, "")
		return err
	})
	g.Go(func() (err error) {
		allDeals, err = s.store.ListDeals(ctx, userID, "", derivedFetchLimit, "")
		return err
	})
	if err := g.Wait(); err != nil {
		log.Printf("summary stats for %s: %v", userID, err)
		return SummaryStats{}
	}

	return computeSummary(draftTasks.Count, draftDeals.Count, allTasks.Count, allDeals.Items, s.now())
}

func computeSummary(draftTasks, draftDeals, totalTasks int, deals []store.Deal, now time.Time) SummaryStats {
	stats := SummaryStats{
		DraftTasks: draftTasks,
		DraftDeals: draftDeals,
		TotalTasks: totalTasks,
		TotalDeals: len(deals),
	}

	weekEnd := now.Add(7 * 24 * time.Hour)
	monthAgo := now.AddDate(0, 0, -30)
	won := 0

	for _, deal := range deals {
		if deal.Value != nil {
			stats.Revenue += *deal.Value
		}
		if deal.Status != store.DealStatusWon && deal.Status != store.DealStatusLost {
			stats.ActiveDeals++
		}
		if deal.Status == store.DealStatusWon {
			won++
		}
		if ecd := deal.ExpectedCloseDate; ecd != nil && !ecd.Before(now) && !ecd.After(weekEnd) {
			stats.ClosingThisWeek++
		}
		// Proxy figure: deal creation dates stand in for a real contacts
		// timeline. Kept for dashboard compatibility.
		if deal.CreatedAt.After(monthAgo) {
			stats.NewContacts++
		}
	}

	if len(deals) > 0 {
		stats.ConversionRate = int(math.Round(100 * float64(won) / float64(len(deals))))
	}
	return stats
}
