package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"funnel/api/internal/export"
	"funnel/api/internal/store"
)

// CreateExport snapshots one entity collection to CSV in object storage.
func (s *Service) CreateExport(ctx context.Context, userID, kind string) (export.Object, error) {
	if s.exports == nil {
		return export.Object{}, domainError(503, "EXPORTS_UNAVAILABLE", "Export storage not configured", nil)
	}

	var header []string
	var rows [][]string

	switch export.Kind(kind) {
	case export.KindTasks:
		page, err := s.store.ListTasks(ctx, userID, "", derivedFetchLimit, "")
		if err != nil {
			return export.Object{}, domainError(500, "EXPORT_FAILED", "Could not read tasks", nil)
		}
		header, rows = taskRows(page.Items)
	case export.KindDeals:
		page, err := s.store.ListDeals(ctx, userID, "", derivedFetchLimit, "")
		if err != nil {
			return export.Object{}, domainError(500, "EXPORT_FAILED", "Could not read deals", nil)
		}
		header, rows = dealRows(page.Items)
	case export.KindContacts:
		contacts, err := s.store.ListContacts(ctx, userID, derivedFetchLimit)
		if err != nil {
			return export.Object{}, domainError(500, "EXPORT_FAILED", "Could not read contacts", nil)
		}
		header, rows = contactRows(contacts)
	default:
		return export.Object{}, domainError(400, "VALIDATION_ERROR", fmt.Sprintf("unknown export kind %q", kind), nil)
	}

	obj, err := s.exports.Put(ctx, userID, kind, header, rows)
	if err != nil {
		return export.Object{}, domainError(500, "EXPORT_FAILED", "Could not store export", nil)
	}
	return obj, nil
}

// GetExport retrieves a previously stored export by key. Keys are
// prefixed with the owning user id, so foreign keys read as missing.
func (s *Service) GetExport(ctx context.Context, userID, key string) (export.Download, error) {
	if s.exports == nil {
		return export.Download{}, domainError(503, "EXPORTS_UNAVAILABLE", "Export storage not configured", nil)
	}
	if !isOwnedKey(userID, key) {
		return export.Download{}, domainError(404, "NOT_FOUND", "Export not found", nil)
	}

	dl, err := s.exports.Get(ctx, key)
	if err != nil {
		if errors.Is(err, export.ErrNotFound) {
			return export.Download{}, domainError(404, "NOT_FOUND", "Export not found", nil)
		}
		return export.Download{}, domainError(500, "EXPORT_FAILED", "Could not read export", nil)
	}
	return dl, nil
}

func isOwnedKey(userID, key string) bool {
	return len(key) > len(userID)+1 && key[:len(userID)] == userID && key[len(userID)] == '/'
}

func taskRows(tasks []store.Task) ([]string, [][]string) {
	header := []string{"id", "title", "status", "priority", "due_date", "assignee", "confidence", "created_at"}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			t.Title,
			string(t.Status),
			string(t.Priority),
			formatTime(t.DueDate),
			deref(t.Assignee),
			strconv.FormatFloat(t.Confidence, 'f', -1, 64),
			t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return header, rows
}

func dealRows(deals []store.Deal) ([]string, [][]string) {
	header := []string{"id", "title", "value", "currency", "status", "stage", "probability", "expected_close_date", "created_at"}
	rows := make([][]string, 0, len(deals))
	for _, d := range deals {
		value := ""
		if d.Value != nil {
			value = strconv.FormatFloat(*d.Value, 'f', -1, 64)
		}
		probability := ""
		if d.Probability != nil {
			probability = strconv.Itoa(*d.Probability)
		}
		rows = append(rows, []string{
			d.ID,
			d.Title,
			value,
			d.Currency,
			string(d.Status),
			string(d.Stage),
			probability,
			formatTime(d.ExpectedCloseDate),
			d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return header, rows
}

func contactRows(contacts []store.Contact) ([]string, [][]string) {
	header := []string{"id", "name", "email", "phone", "job_title", "source", "created_at"}
	rows := make([][]string, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, []string{
			c.ID,
			c.Name,
			c.Email,
			deref(c.Phone),
			deref(c.JobTitle),
			string(c.Source),
			c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return header, rows
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
