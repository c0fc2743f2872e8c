package app

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"funnel/api/internal/store"
)

const (
	hotDealLimit   = 5
	todayTaskLimit = 10

	unknownCompanyName = "Unknown company"
	defaultProbability = 50
)

// HotDeal is the dashboard projection of an actionable deal: soonest to
// close first, most confident first among ties.
type HotDeal struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	CompanyName       string          `json:"company_name"`
	Value             *float64        `json:"value,omitempty"`
	ExpectedCloseDate time.Time       `json:"expected_close_date"`
	Confidence        int             `json:"confidence"`
	Stage             store.DealStage `json:"stage"`
	Probability       int             `json:"probability"`
}

// TodayTask is the projection of an accepted task due today or overdue.
type TodayTask struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    store.TaskPriority `json:"priority"`
	DueDate     time.Time          `json:"due_date"`
	Status      store.TaskStatus   `json:"status"`
	DealID      *string            `json:"deal_id,omitempty"`
}

// HotDeals ranks a user's open deals by close-date proximity. The backing
// fetch is capped, so the ranking sees a sample on very large datasets.
func (s *Service) HotDeals(ctx context.Context, userID string) []HotDeal {
	page, err := s.store.ListDeals(ctx, userID, "", derivedFetchLimit, "")
	if err != nil {
		log.Printf("hot deals for %s: %v", userID, err)
		return []HotDeal{}
	}

	ranked := rankHotDeals(page.Items, hotDealLimit)

	var companyIDs []string
	for _, deal := range ranked {
		if deal.CompanyID != nil {
			companyIDs = append(companyIDs, *deal.CompanyID)
		}
	}
	names, err := s.store.CompanyNames(ctx, userID, companyIDs)
	if err != nil {
		log.Printf("company names for %s: %v", userID, err)
		names = map[string]string{}
	}

	out := make([]HotDeal, 0, len(ranked))
	for _, deal := range ranked {
		companyName := unknownCompanyName
		if deal.CompanyID != nil {
			if name, ok := names[*deal.CompanyID]; ok {
				companyName = name
			}
		}
		probability := defaultProbability
		if deal.Probability != nil {
			probability = *deal.Probability
		}
		out = append(out, HotDeal{
			ID:                deal.ID,
			Title:             deal.Title,
			CompanyName:       companyName,
			Value:             deal.Value,
			ExpectedCloseDate: *deal.ExpectedCloseDate,
			Confidence:        int(math.Round(deal.Confidence * 100)),
			Stage:             deal.Stage,
			Probability:       probability,
		})
	}
	return out
}

// rankHotDeals keeps open deals with a known close date, ordered by close
// date ascending then confidence descending. The sort is stable so equal
// keys preserve fetch order.
func rankHotDeals(deals []store.Deal, top int) []store.Deal {
	filtered := make([]store.Deal, 0, len(deals))
	for _, deal := range deals {
		if deal.Status == store.DealStatusWon || deal.Status == store.DealStatusLost {
			continue
		}
		if deal.ExpectedCloseDate == nil {
			continue
		}
		filtered = append(filtered, deal)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if !a.ExpectedCloseDate.Equal(*b.ExpectedCloseDate) {
			return a.ExpectedCloseDate.Before(*b.ExpectedCloseDate)
		}
		return a.Confidence > b.Confidence
	})

	if len(filtered) > top {
		filtered = filtered[:top]
	}
	return filtered
}

// TodaysTasks surfaces accepted tasks due today or overdue, most urgent
// first: priority rank, then oldest due date.
func (s *Service) TodaysTasks(ctx context.Context, userID string) []TodayTask {
	page, err := s.store.ListTasks(ctx, userID, store.TaskStatusAccepted, derivedFetchLimit, "")
	if err != nil {
		log.Printf("today's tasks for %s: %v", userID, err)
		return []TodayTask{}
	}

	ranked := rankTodaysTasks(page.Items, s.now(), todayTaskLimit)

	out := make([]TodayTask, 0, len(ranked))
	for _, task := range ranked {
		priority := task.Priority
		if priority == "" {
			priority = store.TaskPriorityMedium
		}
		out = append(out, TodayTask{
			ID:          task.ID,
			Title:       task.Title,
			Description: task.Description,
			Priority:    priority,
			DueDate:     *task.DueDate,
			Status:      task.Status,
			DealID:      task.DealID,
		})
	}
	return out
}

// rankTodaysTasks keeps tasks due before tomorrow's midnight; tasks with no
// due date never qualify regardless of status.
func rankTodaysTasks(tasks []store.Task, now time.Time, top int) []store.Task {
	year, month, day := now.Date()
	startOfTomorrow := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	filtered := make([]store.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.DueDate == nil {
			continue
		}
		if !task.DueDate.Before(startOfTomorrow) {
			continue
		}
		filtered = append(filtered, task)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		if priorityRank(a.Priority) != priorityRank(b.Priority) {
			return priorityRank(a.Priority) < priorityRank(b.Priority)
		}
		return a.DueDate.Before(*b.DueDate)
	})

	if len(filtered) > top {
		filtered = filtered[:top]
	}
	return filtered
}

// priorityRank orders high before medium before low; anything else,
// including a missing priority, sorts last.
func priorityRank(p store.TaskPriority) int {
	switch p {
	case store.TaskPriorityHigh:
		return 0
	case store.TaskPriorityMedium:
		return 1
	case store.TaskPriorityLow:
		return 2
	default:
		return 3
	}
}
