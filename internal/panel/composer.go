package panel

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/linkgraph"
	"github.com/davitacols/recall-sub001/internal/text"
)

// Composer produces and caches context panels. Panels are either fresh
// (younger than the staleness threshold) or stale; GetContext is the only
// transition from stale to fresh. There is no invalidation on edge writes:
// a panel may lag the graph by up to the threshold, which is the accepted
// staleness bound.
type Composer struct {
	config   Config
	panels   Store
	links    linkgraph.Store
	accessor entity.Accessor
	users    entity.UserDirectory
	experts  ExpertSource
	history  HistorySource

	group singleflight.Group
	now   func() time.Time
}

// Option adjusts composer construction.
type Option func(*Composer)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) {
		if now != nil {
			c.now = now
		}
	}
}

// NewComposer wires the backing services into a panel composer.
func NewComposer(cfg Config, panels Store, links linkgraph.Store, accessor entity.Accessor, users entity.UserDirectory, experts ExpertSource, history HistorySource, opts ...Option) *Composer {
	defaults := DefaultConfig()
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = defaults.StalenessThreshold
	}
	if cfg.RelatedPerBucket <= 0 {
		cfg.RelatedPerBucket = defaults.RelatedPerBucket
	}
	if cfg.MaxExperts <= 0 {
		cfg.MaxExperts = defaults.MaxExperts
	}
	if cfg.MaxSimilarItems <= 0 {
		cfg.MaxSimilarItems = defaults.MaxSimilarItems
	}
	if cfg.ExpertKeywords <= 0 {
		cfg.ExpertKeywords = defaults.ExpertKeywords
	}
	if cfg.LinkFetchLimit <= 0 {
		cfg.LinkFetchLimit = defaults.LinkFetchLimit
	}
	if cfg.SimilarityPlaceholder <= 0 {
		cfg.SimilarityPlaceholder = defaults.SimilarityPlaceholder
	}
	if cfg.DeadlineRiskWindow <= 0 {
		cfg.DeadlineRiskWindow = defaults.DeadlineRiskWindow
	}
	if cfg.MinRationaleLength <= 0 {
		cfg.MinRationaleLength = defaults.MinRationaleLength
	}
	c := &Composer{
		config:   cfg,
		panels:   panels,
		links:    links,
		accessor: accessor,
		users:    users,
		experts:  experts,
		history:  history,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// GetContext returns the cached panel when it is fresh, recomputing it
// otherwise. Concurrent calls for the same stale panel collapse into one
// computation.
func (c *Composer) GetContext(ctx context.Context, orgID string, ref entity.Ref) (Panel, error) {
	if !ref.Valid() {
		return Panel{}, fmt.Errorf("invalid entity reference %q", ref.String())
	}
	if cached, ok, err := c.panels.GetPanel(ctx, orgID, ref); err != nil {
		common.Logger().Warn("panel: cache lookup failed", "entity", ref.String(), "error", err)
	} else if ok && c.now().Sub(cached.LastComputed) < c.config.StalenessThreshold {
		return cached, nil
	}
	key := orgID + "|" + ref.String()
	result, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.ComputeContext(ctx, orgID, ref)
	})
	if err != nil {
		return Panel{}, err
	}
	return result.(Panel), nil
}

// ComputeContext always recomputes the panel from current graph state and
// upserts it. It is a pure function of that state, so a concurrent lost
// update only costs a redundant recomputation.
func (c *Composer) ComputeContext(ctx context.Context, orgID string, ref entity.Ref) (Panel, error) {
	source, err := c.accessor.Get(ctx, orgID, ref)
	if err != nil {
		return Panel{}, fmt.Errorf("resolve %s: %w", ref.String(), err)
	}
	p := Panel{
		OrganizationID:       orgID,
		Entity:               ref,
		RelatedConversations: []RelatedItem{},
		RelatedDecisions:     []RelatedItem{},
		RelatedTasks:         []RelatedItem{},
		RelatedDocuments:     []RelatedItem{},
		ExpertUsers:          []Expert{},
		SimilarPastItems:     []SimilarItem{},
		RiskIndicators:       []string{},
	}
	c.fillRelated(ctx, &p, orgID, ref)
	p.ExpertUsers = c.detectExperts(ctx, orgID, source)
	p.SimilarPastItems = c.similarPastItems(ctx, orgID, source)
	p.RiskIndicators = c.riskIndicators(source, p.SimilarPastItems)
	p.LastComputed = c.now()
	if err := c.panels.UpsertPanel(ctx, p); err != nil {
		return Panel{}, fmt.Errorf("persist panel for %s: %w", ref.String(), err)
	}
	return p, nil
}

func (c *Composer) fillRelated(ctx context.Context, p *Panel, orgID string, ref entity.Ref) {
	logger := common.Logger()
	links, err := c.links.LinksFor(ctx, orgID, ref, c.config.LinkFetchLimit)
	if err != nil {
		logger.Warn("panel: link lookup failed", "entity", ref.String(), "error", err)
		return
	}
	for _, link := range links {
		other := link.Other(ref)
		resolved, err := c.accessor.Get(ctx, orgID, other)
		if err != nil {
			// Dangling edges are expected; the target may have been
			// removed by its owning collaborator.
			logger.Debug("panel: skipping unresolved edge", "entity", ref.String(), "target", other.String(), "error", err)
			continue
		}
		item := RelatedItem{
			ID:       resolved.ID,
			Title:    resolved.Title,
			LinkType: link.Type,
			Strength: link.Strength,
		}
		switch resolved.Type {
		case entity.TypeConversation:
			p.RelatedConversations = appendCapped(p.RelatedConversations, item, c.config.RelatedPerBucket)
		case entity.TypeDecision:
			p.RelatedDecisions = appendCapped(p.RelatedDecisions, item, c.config.RelatedPerBucket)
		case entity.TypeTask:
			p.RelatedTasks = appendCapped(p.RelatedTasks, item, c.config.RelatedPerBucket)
		case entity.TypeDocument:
			p.RelatedDocuments = appendCapped(p.RelatedDocuments, item, c.config.RelatedPerBucket)
		}
	}
}

func appendCapped(items []RelatedItem, item RelatedItem, limit int) []RelatedItem {
	if len(items) >= limit {
		return items
	}
	return append(items, item)
}

func (c *Composer) detectExperts(ctx context.Context, orgID string, source entity.Entity) []Expert {
	keywords := topKeywords(source, c.config.ExpertKeywords)
	if len(keywords) == 0 {
		return []Expert{}
	}
	logger := common.Logger()
	type candidate struct {
		count   int
		keyword string
	}
	best := make(map[string]candidate)
	for _, keyword := range keywords {
		counts, err := c.experts.AuthorCounts(ctx, orgID, keyword, c.config.MaxExperts*2)
		if err != nil {
			logger.Warn("panel: expert lookup failed", "keyword", keyword, "error", err)
			continue
		}
		for _, count := range counts {
			if count.UserID == "" || count.UserID == source.AuthorID {
				continue
			}
			if existing, ok := best[count.UserID]; !ok || count.Count > existing.count {
				best[count.UserID] = candidate{count: count.Count, keyword: keyword}
			}
		}
	}
	userIDs := make([]string, 0, len(best))
	for userID := range best {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool {
		left, right := best[userIDs[i]], best[userIDs[j]]
		if left.count == right.count {
			return userIDs[i] < userIDs[j]
		}
		return left.count > right.count
	})
	if len(userIDs) > c.config.MaxExperts {
		userIDs = userIDs[:c.config.MaxExperts]
	}
	experts := make([]Expert, 0, len(userIDs))
	for _, userID := range userIDs {
		cand := best[userID]
		score := float64(cand.count) / 10
		if score > 1 {
			score = 1
		}
		name := userID
		if c.users != nil {
			if resolved, err := c.users.UserName(ctx, userID); err == nil && resolved != "" {
				name = resolved
			}
		}
		experts = append(experts, Expert{
			UserID:         userID,
			Name:           name,
			RelevanceScore: score,
			Reason:         fmt.Sprintf("Authored %d prior items tagged %q", cand.count, cand.keyword),
		})
	}
	return experts
}

func topKeywords(source entity.Entity, max int) []string {
	keywords := source.Keywords
	if len(keywords) == 0 {
		keywords = text.UniqueTokens(source.Title)
	}
	out := make([]string, 0, max)
	for _, keyword := range keywords {
		trimmed := strings.ToLower(strings.TrimSpace(keyword))
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
		if len(out) == max {
			break
		}
	}
	return out
}

func (c *Composer) similarPastItems(ctx context.Context, orgID string, source entity.Entity) []SimilarItem {
	exclude := entity.Ref{}
	if source.Type == entity.TypeDecision {
		exclude = source.Ref()
	}
	decisions, err := c.history.TerminalDecisions(ctx, orgID, exclude, c.config.MaxSimilarItems)
	if err != nil {
		common.Logger().Warn("panel: similar item lookup failed", "entity", source.Ref().String(), "error", err)
		return []SimilarItem{}
	}
	items := make([]SimilarItem, 0, len(decisions))
	for _, decision := range decisions {
		items = append(items, SimilarItem{
			ID:            decision.ID,
			Type:          decision.Type,
			Title:         decision.Title,
			Outcome:       decision.Outcome,
			WasSuccessful: decision.WasSuccessful,
			Similarity:    c.config.SimilarityPlaceholder,
			Lessons:       decision.Lessons,
		})
	}
	return items
}

// riskIndicators evaluates the fixed checklist against the entity and its
// similar-item history. Attributes the entity type does not carry are
// skipped without flagging.
func (c *Composer) riskIndicators(source entity.Entity, similar []SimilarItem) []string {
	indicators := []string{}

	var failed, reviewed int
	for _, item := range similar {
		if item.WasSuccessful == nil {
			continue
		}
		reviewed++
		if !*item.WasSuccessful {
			failed++
		}
	}
	if failed >= 2 {
		indicators = append(indicators, fmt.Sprintf("%d similar past decisions did not succeed", failed))
	}
	if reviewed >= 3 {
		rate := failed * 100 / reviewed
		if rate >= 50 {
			indicators = append(indicators, fmt.Sprintf("%d%% of reviewed similar decisions failed", rate))
		}
	}
	if source.Type.SupportsConversationRef() && strings.TrimSpace(source.ConversationID) == "" {
		indicators = append(indicators, "No prior discussion is linked to this item")
	}
	if source.Type.SupportsDeadline() && source.Deadline != nil {
		if !source.Deadline.After(c.now().Add(c.config.DeadlineRiskWindow)) {
			days := int(c.config.DeadlineRiskWindow / (24 * time.Hour))
			indicators = append(indicators, fmt.Sprintf("Deadline falls within the next %d days", days))
		}
	}
	if source.Type.SupportsStakeholders() && len(source.Stakeholders) == 0 {
		indicators = append(indicators, "No stakeholders are recorded")
	}
	priority := strings.ToLower(strings.TrimSpace(source.Priority))
	if priority == "high" || priority == "urgent" {
		if len(strings.TrimSpace(source.Rationale)) < c.config.MinRationaleLength {
			indicators = append(indicators, "High priority without a substantive rationale")
		}
	}
	return indicators
}
