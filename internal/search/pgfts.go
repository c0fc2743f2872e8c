package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements full-text search against PostgreSQL, used as the
// fallback when Meilisearch is down or not configured.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true; if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across deals, tasks, and contacts
// using plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.UserID}

	var subQueries []string

	if q.Type == "" || q.Type == string(ResultDeal) {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'deal'::text AS type, d.id, d.title,
				ts_headline('english', coalesce(d.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				d.status, d.stage,
				ts_rank(d.fts, %s) AS rank
			FROM deals d
			WHERE d.user_id = $2 AND d.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.Type == "" || q.Type == string(ResultTask) {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'task'::text AS type, t.id, t.title,
				ts_headline('english', coalesce(t.description, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				t.status, ''::text AS stage,
				ts_rank(t.fts, %s) AS rank
			FROM tasks t
			WHERE t.user_id = $2 AND t.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.Type == "" || q.Type == string(ResultContact) {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'contact'::text AS type, c.id, c.name AS title,
				ts_headline('english', coalesce(c.email, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS status, ''::text AS stage,
				ts_rank(c.fts, %s) AS rank
			FROM contacts c
			WHERE c.user_id = $2 AND c.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, status, stage
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit)

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Status, &r.Stage); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}
