package search

import (
	"context"
	"strings"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
)

// Suggestion is one autocomplete candidate.
type Suggestion struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Value string `json:"value"`
}

// Per-type caps keep any single source from dominating the suggestion list.
const (
	suggestTagCap          = 3
	suggestConversationCap = 3
	suggestSprintCap       = 2
	suggestWorkItemCap     = 2
	suggestScanWindow      = 100
)

// Suggestions performs prefix matching across tags, titles of open entities,
// and sprint names. Queries under one character yield an empty list, not an
// error.
func (e *Engine) Suggestions(ctx context.Context, orgID, partial string, limit int) []Suggestion {
	prefix := strings.ToLower(strings.TrimSpace(partial))
	if prefix == "" {
		return []Suggestion{}
	}
	if limit <= 0 {
		limit = suggestTagCap + suggestConversationCap + suggestSprintCap + suggestWorkItemCap
	}
	logger := common.Logger()
	out := make([]Suggestion, 0, limit)

	if e.tags != nil {
		tags, err := e.tags.Tags(ctx, orgID, suggestScanWindow)
		if err != nil {
			logger.Warn("search: tag suggestions degraded", "error", err)
		} else {
			count := 0
			for _, tag := range tags {
				if count == suggestTagCap {
					break
				}
				if strings.HasPrefix(strings.ToLower(tag), prefix) {
					out = append(out, Suggestion{Type: "tag", Text: tag, Value: tag})
					count++
				}
			}
		}
	}

	buckets := []struct {
		entityType entity.Type
		kind       string
		cap        int
		openOnly   bool
	}{
		{entity.TypeConversation, "conversation", suggestConversationCap, true},
		{entity.TypeSprint, "sprint", suggestSprintCap, false},
		{entity.TypeWorkItem, "work_item", suggestWorkItemCap, true},
	}
	for _, bucket := range buckets {
		filters := entity.Filters{}
		if bucket.openOnly {
			filters.Status = "open"
		}
		candidates, err := e.accessor.Query(ctx, orgID, bucket.entityType, filters, suggestScanWindow)
		if err != nil {
			logger.Warn("search: title suggestions degraded", "type", bucket.entityType, "error", err)
			continue
		}
		count := 0
		for _, candidate := range candidates {
			if count == bucket.cap {
				break
			}
			if strings.HasPrefix(strings.ToLower(candidate.Title), prefix) {
				out = append(out, Suggestion{Type: bucket.kind, Text: candidate.Title, Value: candidate.ID})
				count++
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
