package search

import (
	"context"
	"time"
)

// defaultTrendingWindowDays is the trailing window used when the caller does
// not specify one.
const defaultTrendingWindowDays = 7

// QueryLogEntry is one immutable row of search analytics. Rows are appended
// on every completed search and never mutated.
type QueryLogEntry struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id,omitempty"`
	Query          string    `json:"query_text"`
	ResultsCount   int       `json:"results_count"`
	ResponseTimeMS int64     `json:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// TrendingQuery aggregates how often a query was issued inside the window.
type TrendingQuery struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// Totals summarizes search activity over a trailing window.
type Totals struct {
	TotalSearches     int     `json:"total_searches"`
	DistinctQueries   int     `json:"distinct_queries"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
	AvgResultsCount   float64 `json:"avg_results_count"`
}

// LogStore persists and aggregates the append-only query log.
type LogStore interface {
	AppendQueryLog(ctx context.Context, entry QueryLogEntry) error
	TrendingQueries(ctx context.Context, orgID string, since time.Time, limit int) ([]TrendingQuery, error)
	QueryTotals(ctx context.Context, orgID string, since time.Time) (Totals, error)
}

// Trending returns the top queries by count over the trailing window of the
// given number of days.
func (e *Engine) Trending(ctx context.Context, orgID string, days, limit int) ([]TrendingQuery, error) {
	if e.logs == nil {
		return []TrendingQuery{}, nil
	}
	if days <= 0 {
		days = defaultTrendingWindowDays
	}
	if limit <= 0 {
		limit = 10
	}
	since := e.now().AddDate(0, 0, -days)
	return e.logs.TrendingQueries(ctx, orgID, since, limit)
}

// Analytics returns aggregate totals over the default trailing window.
func (e *Engine) Analytics(ctx context.Context, orgID string) (Totals, error) {
	if e.logs == nil {
		return Totals{}, nil
	}
	since := e.now().AddDate(0, 0, -defaultTrendingWindowDays)
	return e.logs.QueryTotals(ctx, orgID, since)
}
