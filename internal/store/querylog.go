package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/davitacols/recall-sub001/internal/search"
)

// AppendQueryLog inserts one immutable analytics row. Rows are never
// updated or deleted.
func (c *Catalog) AppendQueryLog(ctx context.Context, entry search.QueryLogEntry) error {
	if entry.ID == "" || entry.OrganizationID == "" {
		return errors.New("query log entry requires id and organization")
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx, `
                INSERT INTO search_query_log (id, org_id, user_id, query_text, results_count, response_time_ms, created_at)
                VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.OrganizationID, nullString(entry.UserID), entry.Query,
		entry.ResultsCount, entry.ResponseTimeMS, millis(createdAt))
	if err != nil {
		return fmt.Errorf("append query log: %w", err)
	}
	return nil
}

// TrendingQueries returns the most frequent queries inside the window.
func (c *Catalog) TrendingQueries(ctx context.Context, orgID string, since time.Time, limit int) ([]search.TrendingQuery, error) {
	if limit <= 0 {
		limit = 10
	}
	rows := []struct {
		Query string `db:"query_text"`
		Count int    `db:"count"`
	}{}
	err := c.db.SelectContext(ctx, &rows, `
                SELECT query_text, COUNT(*) AS count
                FROM search_query_log
                WHERE org_id = ? AND created_at >= ?
                GROUP BY query_text
                ORDER BY count DESC, query_text
                LIMIT ?`,
		orgID, millis(since), limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate trending queries: %w", err)
	}
	out := make([]search.TrendingQuery, 0, len(rows))
	for _, row := range rows {
		out = append(out, search.TrendingQuery{Query: row.Query, Count: row.Count})
	}
	return out, nil
}

// QueryTotals aggregates search activity inside the window.
func (c *Catalog) QueryTotals(ctx context.Context, orgID string, since time.Time) (search.Totals, error) {
	row := struct {
		Total    int             `db:"total"`
		Distinct int             `db:"distinct_queries"`
		AvgTime  sql.NullFloat64 `db:"avg_time"`
		AvgHits  sql.NullFloat64 `db:"avg_hits"`
	}{}
	err := c.db.GetContext(ctx, &row, `
                SELECT
                        COUNT(*) AS total,
                        COUNT(DISTINCT query_text) AS distinct_queries,
                        AVG(response_time_ms) AS avg_time,
                        AVG(results_count) AS avg_hits
                FROM search_query_log
                WHERE org_id = ? AND created_at >= ?`,
		orgID, millis(since))
	if err != nil {
		return search.Totals{}, fmt.Errorf("aggregate query totals: %w", err)
	}
	return search.Totals{
		TotalSearches:     row.Total,
		DistinctQueries:   row.Distinct,
		AvgResponseTimeMS: row.AvgTime.Float64,
		AvgResultsCount:   row.AvgHits.Float64,
	}, nil
}
