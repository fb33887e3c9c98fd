// Package search implements the hybrid retrieval engine: per-query BM25
// indexes per entity type, multi-type fan-out with merge and dedup, a
// substring fallback, prefix suggestions, and query analytics.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/text"
)

// ErrQueryTooShort rejects structurally invalid queries before any work is
// done. It is a validation failure, never retried.
var ErrQueryTooShort = errors.New("query must be at least 2 characters")

const minQueryLength = 2

// fallbackScore is assigned to substring matches that BM25 did not surface.
const fallbackScore = 0.05

// Config tunes the engine.
type Config struct {
	DefaultLimit    int
	CandidateWindow int
	PreviewLength   int
	K1              float64
	B               float64
	// FanOutTypes are the entity types queried when the caller gives no
	// type filter.
	FanOutTypes []entity.Type
}

// DefaultConfig returns the standard retrieval settings.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:    20,
		CandidateWindow: 500,
		PreviewLength:   200,
		K1:              defaultK1,
		B:               defaultB,
		FanOutTypes: []entity.Type{
			entity.TypeConversation,
			entity.TypeDecision,
			entity.TypeWorkItem,
			entity.TypeBlocker,
		},
	}
}

// Request describes one search invocation. Filters are applied to the
// candidate set before tokenization and scoring, never to ranked output.
type Request struct {
	Query          string
	OrganizationID string
	UserID         string
	Types          []entity.Type
	Filters        entity.Filters
	Limit          int
}

// ResultItem is one ranked, deduplicated hit.
type ResultItem struct {
	ID             string      `json:"id"`
	Type           entity.Type `json:"type"`
	Title          string      `json:"title"`
	ContentPreview string      `json:"content_preview"`
	Score          float64     `json:"score"`
	Status         string      `json:"status,omitempty"`
	Priority       string      `json:"priority,omitempty"`
	Tags           []string    `json:"tags,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Response carries the ranked page plus the total number of hits found.
type Response struct {
	Results []ResultItem `json:"results"`
	Total   int          `json:"total"`
}

// Engine answers free-text queries over the organization's entities. All
// state is request-scoped; nothing is shared between invocations.
type Engine struct {
	config   Config
	accessor entity.Accessor
	logs     LogStore
	tags     TagSource
	now      func() time.Time
}

// TagSource lists the distinct tags in use within an organization, bounded.
type TagSource interface {
	Tags(ctx context.Context, orgID string, limit int) ([]string, error)
}

// NewEngine wires the accessor, query log, and tag source into an engine.
func NewEngine(cfg Config, accessor entity.Accessor, logs LogStore, tags TagSource) *Engine {
	defaults := DefaultConfig()
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = defaults.DefaultLimit
	}
	if cfg.CandidateWindow <= 0 {
		cfg.CandidateWindow = defaults.CandidateWindow
	}
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = defaults.PreviewLength
	}
	if cfg.K1 <= 0 {
		cfg.K1 = defaults.K1
	}
	if cfg.B <= 0 {
		cfg.B = defaults.B
	}
	if len(cfg.FanOutTypes) == 0 {
		cfg.FanOutTypes = defaults.FanOutTypes
	}
	return &Engine{config: cfg, accessor: accessor, logs: logs, tags: tags, now: time.Now}
}

// Search runs the multi-type fan-out and returns the merged, deduplicated,
// score-ordered page. A failure in one type's index degrades that type to
// empty; the others still return.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	start := e.now()
	query := strings.TrimSpace(req.Query)
	if len(query) < minQueryLength {
		return Response{}, fmt.Errorf("%w: got %d characters", ErrQueryTooShort, len(query))
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}
	types := req.Types
	if len(types) == 0 {
		types = e.config.FanOutTypes
	}
	logger := common.Logger()
	queryTerms := text.Tokenize(query)

	var merged []ResultItem
	seen := make(map[string]struct{})
	candidatesByType := make(map[entity.Type][]entity.Entity, len(types))
	for _, t := range types {
		results, candidates, err := e.searchType(ctx, req.OrganizationID, t, req.Filters, queryTerms)
		if err != nil {
			logger.Warn("search: type fan-out degraded", "type", t, "error", err)
			continue
		}
		candidatesByType[t] = candidates
		merged = append(merged, results...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score == merged[j].Score {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].Score > merged[j].Score
	})
	deduped := make([]ResultItem, 0, len(merged))
	for _, item := range merged {
		key := string(item.Type) + ":" + item.ID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, item)
	}
	// Substring fallback fills the page when BM25 comes up short; dedup
	// keeps the first-seen (ranked) entry for anything both methods find.
	if len(deduped) < limit {
		for _, t := range types {
			for _, candidate := range e.substringMatches(candidatesByType[t], query) {
				key := string(candidate.Type) + ":" + candidate.ID
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				deduped = append(deduped, candidate)
			}
		}
	}
	total := len(deduped)
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	elapsed := e.now().Sub(start)
	e.appendLog(ctx, req, query, total, elapsed)
	return Response{Results: deduped, Total: total}, nil
}

// searchType builds a fresh BM25 index over the pre-filtered candidate set of
// one type and scores it. The candidate set is returned so the fallback pass
// can reuse it without a second fetch.
func (e *Engine) searchType(ctx context.Context, orgID string, t entity.Type, filters entity.Filters, queryTerms []string) ([]ResultItem, []entity.Entity, error) {
	candidates, err := e.accessor.Query(ctx, orgID, t, filters, e.config.CandidateWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch %s candidates: %w", t, err)
	}
	idx := newIndex(candidates, e.config.K1, e.config.B)
	scored := idx.search(queryTerms)
	results := make([]ResultItem, 0, len(scored))
	for _, hit := range scored {
		results = append(results, e.toResult(hit.source, hit.score))
	}
	return results, candidates, nil
}

func (e *Engine) substringMatches(candidates []entity.Entity, query string) []ResultItem {
	needle := strings.ToLower(query)
	var out []ResultItem
	for _, candidate := range candidates {
		haystack := strings.ToLower(candidate.Title + " " + candidate.Body)
		if !strings.Contains(haystack, needle) {
			continue
		}
		out = append(out, e.toResult(candidate, fallbackScore))
	}
	return out
}

func (e *Engine) toResult(source entity.Entity, score float64) ResultItem {
	return ResultItem{
		ID:             source.ID,
		Type:           source.Type,
		Title:          source.Title,
		ContentPreview: preview(source.Body, e.config.PreviewLength),
		Score:          score,
		Status:         source.Status,
		Priority:       source.Priority,
		Tags:           source.Tags,
		CreatedAt:      source.CreatedAt,
	}
}

func (e *Engine) appendLog(ctx context.Context, req Request, query string, total int, elapsed time.Duration) {
	if e.logs == nil {
		return
	}
	entry := QueryLogEntry{
		ID:             uuid.NewString(),
		OrganizationID: req.OrganizationID,
		UserID:         req.UserID,
		Query:          query,
		ResultsCount:   total,
		ResponseTimeMS: elapsed.Milliseconds(),
		CreatedAt:      e.now(),
	}
	if err := e.logs.AppendQueryLog(ctx, entry); err != nil {
		common.Logger().Warn("search: query log append failed", "error", err)
	}
}

func preview(body string, limit int) string {
	body = strings.TrimSpace(body)
	if limit <= 0 || len(body) <= limit {
		return body
	}
	runes := []rune(body)
	if len(runes) <= limit {
		return body
	}
	return strings.TrimSpace(string(runes[:limit]))
}
