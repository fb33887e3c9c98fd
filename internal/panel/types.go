// Package panel derives and caches the per-entity context panel: related
// entities bucketed by type, candidate experts, similar historical decisions
// with outcomes, and risk indicators.
package panel

import (
	"context"
	"time"

	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/linkgraph"
)

// RelatedItem is one entry in a related-entities bucket, carrying the edge
// metadata it was resolved from.
type RelatedItem struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	LinkType linkgraph.LinkType `json:"link_type"`
	Strength float64           `json:"strength"`
}

// Expert is a candidate subject-matter expert with a human-readable
// justification.
type Expert struct {
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason"`
}

// SimilarItem is a historical decision with a terminal outcome. Similarity is
// a documented placeholder constant; semantic ranking belongs to the
// retrieval engine.
type SimilarItem struct {
	ID            string      `json:"id"`
	Type          entity.Type `json:"type"`
	Title         string      `json:"title"`
	Outcome       string      `json:"outcome"`
	WasSuccessful *bool       `json:"was_successful,omitempty"`
	Similarity    float64     `json:"similarity"`
	Lessons       string      `json:"lessons,omitempty"`
}

// Panel is the cached context record for one entity. One panel exists per
// (entity type, entity id, organization); recomputation upserts in place.
type Panel struct {
	OrganizationID       string        `json:"organization_id"`
	Entity               entity.Ref    `json:"entity"`
	RelatedConversations []RelatedItem `json:"related_conversations"`
	RelatedDecisions     []RelatedItem `json:"related_decisions"`
	RelatedTasks         []RelatedItem `json:"related_tasks"`
	RelatedDocuments     []RelatedItem `json:"related_documents"`
	ExpertUsers          []Expert      `json:"expert_users"`
	SimilarPastItems     []SimilarItem `json:"similar_past_items"`
	RiskIndicators       []string      `json:"risk_indicators"`
	LastComputed         time.Time     `json:"last_computed"`
}

// Store persists computed panels keyed by (entity type, entity id,
// organization). Concurrent upserts follow last-writer-wins semantics.
type Store interface {
	GetPanel(ctx context.Context, orgID string, ref entity.Ref) (Panel, bool, error)
	UpsertPanel(ctx context.Context, p Panel) error
}

// AuthorCount aggregates how many entities a user authored under a keyword.
type AuthorCount struct {
	UserID string
	Count  int
}

// ExpertSource counts prior authorship per keyword within an organization.
// Implementations operate over a bounded candidate window.
type ExpertSource interface {
	AuthorCounts(ctx context.Context, orgID, keyword string, limit int) ([]AuthorCount, error)
}

// HistorySource lists decisions with a terminal status (implemented or
// rejected), ordered by most-recently-reviewed, then most-recently-
// implemented, then most-recently-created.
type HistorySource interface {
	TerminalDecisions(ctx context.Context, orgID string, exclude entity.Ref, limit int) ([]entity.Entity, error)
}

// Config controls panel composition.
type Config struct {
	StalenessThreshold time.Duration
	RelatedPerBucket   int
	MaxExperts         int
	MaxSimilarItems    int
	ExpertKeywords     int
	// LinkFetchLimit bounds how many edges are resolved per recompute.
	LinkFetchLimit int
	// SimilarityPlaceholder is the constant similarity assigned to similar
	// past items in this layer.
	SimilarityPlaceholder float64
	// DeadlineRiskWindow flags entities whose deadline falls inside it.
	DeadlineRiskWindow time.Duration
	// MinRationaleLength is the shortest rationale accepted for high or
	// urgent priority work.
	MinRationaleLength int
}

// DefaultConfig returns the baseline panel composition settings.
func DefaultConfig() Config {
	return Config{
		StalenessThreshold:    time.Hour,
		RelatedPerBucket:      10,
		MaxExperts:            5,
		MaxSimilarItems:       5,
		ExpertKeywords:        3,
		LinkFetchLimit:        200,
		SimilarityPlaceholder: 0.8,
		DeadlineRiskWindow:    7 * 24 * time.Hour,
		MinRationaleLength:    50,
	}
}
