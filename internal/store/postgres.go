package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore offers the four document-store primitives the API needs:
// point lookup by id, partial update that never touches the key, a limited
// scan with an opaque continuation token, and a (user_id, status) index
// query ordered by creation time descending.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var taskColumns = []string{
	"id", "user_id", "title", "description", "status", "priority",
	"due_date", "assignee", "deal_id", "source_email_id", "confidence",
	"agent", "audit_snippet", "created_at", "updated_at",
}

var dealColumns = []string{
	"id", "user_id", "title", "description", "value", "currency", "status",
	"stage", "probability", "contact_id", "company_id",
	"expected_close_date", "source_email_id", "confidence", "agent",
	"audit_snippet", "created_at", "updated_at",
}

// ListTasks returns one page of a user's tasks. With a status it uses the
// (user_id, status, created_at DESC) index; without one it walks the whole
// collection in id order, which is scan-grade and only acceptable on the
// small datasets this dashboard serves.
func (s *PostgresStore) ListTasks(ctx context.Context, userID string, status TaskStatus, limit int, lastKey string) (TaskPage, error) {
	builder := psql.Select(taskColumns...).From("tasks").Where(sq.Eq{"user_id": userID})
	builder, err := applyListWindow(builder, string(status), limit, lastKey)
	if err != nil {
		return TaskPage{}, err
	}
	if status != "" {
		builder = builder.Where(sq.Eq{"status": status})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return TaskPage{}, fmt.Errorf("build task list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return TaskPage{}, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var items []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return TaskPage{}, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return TaskPage{}, fmt.Errorf("iterate tasks: %w", err)
	}

	page := TaskPage{Items: items, Count: len(items)}
	if len(items) == limit && limit > 0 {
		last := items[len(items)-1]
		page.LastKey = nextKey(string(status), last.ID, last.CreatedAt)
	}
	return page, nil
}

func (s *PostgresStore) ListDeals(ctx context.Context, userID string, status DealStatus, limit int, lastKey string) (DealPage, error) {
	builder := psql.Select(dealColumns...).From("deals").Where(sq.Eq{"user_id": userID})
	builder, err := applyListWindow(builder, string(status), limit, lastKey)
	if err != nil {
		return DealPage{}, err
	}
	if status != "" {
		builder = builder.Where(sq.Eq{"status": status})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return DealPage{}, fmt.Errorf("build deal list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return DealPage{}, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	var items []Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return DealPage{}, fmt.Errorf("scan deal: %w", err)
		}
		items = append(items, deal)
	}
	if err := rows.Err(); err != nil {
		return DealPage{}, fmt.Errorf("iterate deals: %w", err)
	}

	page := DealPage{Items: items, Count: len(items)}
	if len(items) == limit && limit > 0 {
		last := items[len(items)-1]
		page.LastKey = nextKey(string(status), last.ID, last.CreatedAt)
	}
	return page, nil
}

// applyListWindow adds ordering, the limit, and the continuation-token
// boundary. Status-filtered listings page on (created_at, id) descending;
// scans page on id ascending. A token the store did not mint fails with
// ErrBadCursor before any query runs.
func applyListWindow(builder sq.SelectBuilder, status string, limit int, lastKey string) (sq.SelectBuilder, error) {
	if status != "" {
		builder = builder.OrderBy("created_at DESC", "id DESC")
	} else {
		builder = builder.OrderBy("id ASC")
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if lastKey == "" {
		return builder, nil
	}

	cur, err := decodeCursor(lastKey)
	if err != nil {
		return builder, err
	}
	if status != "" {
		if cur.CreatedAt == nil {
			return builder, ErrBadCursor
		}
		builder = builder.Where(sq.Expr("(created_at, id) < (?, ?)", *cur.CreatedAt, cur.ID))
	} else {
		builder = builder.Where(sq.Gt{"id": cur.ID})
	}
	return builder, nil
}

func nextKey(status, id string, createdAt time.Time) string {
	if status != "" {
		return encodeCursor(cursor{CreatedAt: &createdAt, ID: id})
	}
	return encodeCursor(cursor{ID: id})
}

// GetTask scopes by owner: an id that exists under another user resolves to
// sql.ErrNoRows, never to the foreign record.
func (s *PostgresStore) GetTask(ctx context.Context, userID, id string) (Task, error) {
	query, args, err := psql.Select(taskColumns...).From("tasks").
		Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return Task{}, fmt.Errorf("build task get: %w", err)
	}
	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

func (s *PostgresStore) GetDeal(ctx context.Context, userID, id string) (Deal, error) {
	query, args, err := psql.Select(dealColumns...).From("deals").
		Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return Deal{}, fmt.Errorf("build deal get: %w", err)
	}
	deal, err := scanDeal(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return Deal{}, err
	}
	return deal, nil
}

// UpdateTask applies a partial update and stamps updated_at. The id column
// never appears in the SET list; TaskPatch cannot carry one.
func (s *PostgresStore) UpdateTask(ctx context.Context, id string, patch TaskPatch) error {
	query, args, err := taskUpdateQuery(id, patch, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("build task update: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateDeal(ctx context.Context, id string, patch DealPatch) error {
	query, args, err := dealUpdateQuery(id, patch, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("build deal update: %w", err)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update deal %s: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func taskUpdateQuery(id string, patch TaskPatch, now time.Time) (string, []any, error) {
	builder := psql.Update("tasks").Set("updated_at", now)
	if patch.Title != nil {
		builder = builder.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		builder = builder.Set("description", *patch.Description)
	}
	if patch.Status != nil {
		builder = builder.Set("status", *patch.Status)
	}
	if patch.Priority != nil {
		builder = builder.Set("priority", *patch.Priority)
	}
	if patch.DueDate != nil {
		builder = builder.Set("due_date", *patch.DueDate)
	}
	if patch.Assignee != nil {
		builder = builder.Set("assignee", *patch.Assignee)
	}
	if patch.DealID != nil {
		builder = builder.Set("deal_id", *patch.DealID)
	}
	return builder.Where(sq.Eq{"id": id}).ToSql()
}

func dealUpdateQuery(id string, patch DealPatch, now time.Time) (string, []any, error) {
	builder := psql.Update("deals").Set("updated_at", now)
	if patch.Title != nil {
		builder = builder.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		builder = builder.Set("description", *patch.Description)
	}
	if patch.Value != nil {
		builder = builder.Set("value", *patch.Value)
	}
	if patch.Currency != nil {
		builder = builder.Set("currency", *patch.Currency)
	}
	if patch.Status != nil {
		builder = builder.Set("status", *patch.Status)
	}
	if patch.Stage != nil {
		builder = builder.Set("stage", *patch.Stage)
	}
	if patch.Probability != nil {
		builder = builder.Set("probability", *patch.Probability)
	}
	if patch.ContactID != nil {
		builder = builder.Set("contact_id", *patch.ContactID)
	}
	if patch.CompanyID != nil {
		builder = builder.Set("company_id", *patch.CompanyID)
	}
	if patch.ExpectedCloseDate != nil {
		builder = builder.Set("expected_close_date", *patch.ExpectedCloseDate)
	}
	return builder.Where(sq.Eq{"id": id}).ToSql()
}

func (s *PostgresStore) ListContacts(ctx context.Context, userID string, limit int) ([]Contact, error) {
	builder := psql.Select(
		"id", "user_id", "email", "name", "first_name", "last_name",
		"phone", "company_id", "job_title", "last_contact_date", "source",
		"created_at", "updated_at",
	).From("contacts").Where(sq.Eq{"user_id": userID}).OrderBy("created_at DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build contact list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	var items []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(
			&c.ID, &c.UserID, &c.Email, &c.Name, &c.FirstName, &c.LastName,
			&c.Phone, &c.CompanyID, &c.JobTitle, &c.LastContactDate,
			&c.Source, &c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return items, nil
}

// CompanyNames resolves company ids to display names for one user.
func (s *PostgresStore) CompanyNames(ctx context.Context, userID string, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	query, args, err := psql.Select("id", "name").From("companies").
		Where(sq.Eq{"user_id": userID, "id": ids}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build company lookup: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("lookup companies: %w", err)
	}
	defer rows.Close()

	names := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	return names, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.DueDate, &t.Assignee, &t.DealID, &t.SourceEmailID, &t.Confidence,
		&t.Agent, &t.AuditSnippet, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func scanDeal(row rowScanner) (Deal, error) {
	var d Deal
	err := row.Scan(
		&d.ID, &d.UserID, &d.Title, &d.Description, &d.Value, &d.Currency,
		&d.Status, &d.Stage, &d.Probability, &d.ContactID, &d.CompanyID,
		&d.ExpectedCloseDate, &d.SourceEmailID, &d.Confidence, &d.Agent,
		&d.AuditSnippet, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}
