// Package linker discovers relationships between content entities and writes
// them to the link graph. Linking favors availability over completeness: a
// failing candidate is logged and skipped, never aborting the run.
package linker

import (
	"context"
	"strings"
	"time"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/linkgraph"
)

// Config tunes candidate selection and strength mapping.
type Config struct {
	// CandidateWindow bounds how many recent entities are fetched per
	// target type.
	CandidateWindow int
	// BaseStrength and StrengthStep map keyword overlap counts onto edge
	// strength: base + step*overlap, capped at 1.
	BaseStrength float64
	StrengthStep float64
	// ConversationContainment and DefaultContainment are the flat strengths
	// assigned to title-containment matches, per target type.
	ConversationContainment float64
	DefaultContainment      float64
	// TargetTypes lists the entity types scanned for link candidates.
	TargetTypes []entity.Type
	// MinTitleWordLength filters the fallback keyword set derived from the
	// source title.
	MinTitleWordLength int
}

// DefaultConfig returns the standard linking thresholds.
func DefaultConfig() Config {
	return Config{
		CandidateWindow:         50,
		BaseStrength:            0.5,
		StrengthStep:            0.15,
		ConversationContainment: 0.7,
		DefaultContainment:      0.6,
		TargetTypes: []entity.Type{
			entity.TypeConversation,
			entity.TypeDecision,
			entity.TypeTask,
			entity.TypeMeeting,
			entity.TypeDocument,
			entity.TypeWorkItem,
			entity.TypeBlocker,
		},
		MinTitleWordLength: 4,
	}
}

// AutoLinker proposes relates_to edges for a source entity based on keyword
// overlap or title containment.
type AutoLinker struct {
	config   Config
	accessor entity.Accessor
	links    linkgraph.Store
	now      func() time.Time
}

// Option adjusts linker construction.
type Option func(*AutoLinker)

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(l *AutoLinker) {
		if now != nil {
			l.now = now
		}
	}
}

// New wires the accessor and link store into an auto-linker.
func New(cfg Config, accessor entity.Accessor, links linkgraph.Store, opts ...Option) *AutoLinker {
	defaults := DefaultConfig()
	if cfg.CandidateWindow <= 0 {
		cfg.CandidateWindow = defaults.CandidateWindow
	}
	if cfg.BaseStrength <= 0 {
		cfg.BaseStrength = defaults.BaseStrength
	}
	if cfg.StrengthStep <= 0 {
		cfg.StrengthStep = defaults.StrengthStep
	}
	if cfg.ConversationContainment <= 0 {
		cfg.ConversationContainment = defaults.ConversationContainment
	}
	if cfg.DefaultContainment <= 0 {
		cfg.DefaultContainment = defaults.DefaultContainment
	}
	if len(cfg.TargetTypes) == 0 {
		cfg.TargetTypes = defaults.TargetTypes
	}
	if cfg.MinTitleWordLength <= 0 {
		cfg.MinTitleWordLength = defaults.MinTitleWordLength
	}
	l := &AutoLinker{config: cfg, accessor: accessor, links: links, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// LinkContent scans the organization for entities worth linking to the source
// and upserts a relates_to edge for every scoring candidate. Re-running on an
// unchanged entity updates strengths in place and never duplicates edges.
func (l *AutoLinker) LinkContent(ctx context.Context, source entity.Entity) error {
	logger := common.Logger()
	sourceKeywords := l.sourceKeywords(source)
	titleWords := l.titleWords(source.Title)
	if len(sourceKeywords) == 0 && len(titleWords) == 0 {
		logger.Debug("linker: nothing to match on", "entity", source.Ref().String())
		return nil
	}
	var written int
	for _, targetType := range l.config.TargetTypes {
		exclude := source.Ref()
		candidates, err := l.accessor.Query(ctx, source.OrganizationID, targetType, entity.Filters{ExcludeRef: &exclude}, l.config.CandidateWindow)
		if err != nil {
			logger.Warn("linker: candidate query failed", "entity", source.Ref().String(), "target_type", targetType, "error", err)
			continue
		}
		for _, candidate := range candidates {
			strength := l.score(source, sourceKeywords, titleWords, candidate)
			if strength <= 0 {
				continue
			}
			link := linkgraph.Link{
				OrganizationID:  source.OrganizationID,
				Source:          source.Ref(),
				Target:          candidate.Ref(),
				Type:            linkgraph.LinkRelatesTo,
				Strength:        strength,
				IsAutoGenerated: true,
				CreatedAt:       l.now(),
			}
			if err := l.links.UpsertLink(ctx, link); err != nil {
				logger.Warn("linker: edge upsert failed", "source", link.Source.String(), "target", link.Target.String(), "error", err)
				continue
			}
			written++
		}
	}
	logger.Debug("linker: run complete", "entity", source.Ref().String(), "edges", written)
	return nil
}

// score maps a candidate onto an edge strength, or 0 when the pair should not
// be linked. Thresholding beyond zero happens at read time, not here.
func (l *AutoLinker) score(source entity.Entity, sourceKeywords, titleWords []string, candidate entity.Entity) float64 {
	candidateKeywords := keywordSet(candidate)
	if len(sourceKeywords) > 0 && len(candidateKeywords) > 0 {
		overlap := overlapCount(sourceKeywords, candidateKeywords)
		if overlap == 0 {
			return 0
		}
		strength := l.config.BaseStrength + l.config.StrengthStep*float64(overlap)
		if strength > 1 {
			strength = 1
		}
		return strength
	}
	if containsAny(candidate, titleWords) {
		if candidate.Type == entity.TypeConversation {
			return l.config.ConversationContainment
		}
		return l.config.DefaultContainment
	}
	return 0
}

func (l *AutoLinker) sourceKeywords(source entity.Entity) []string {
	if len(source.Keywords) > 0 {
		return normalizeSet(source.Keywords)
	}
	return l.titleWords(source.Title)
}

func (l *AutoLinker) titleWords(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		trimmed := strings.Trim(field, ".,;:!?\"'()")
		if len(trimmed) < l.config.MinTitleWordLength {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func keywordSet(candidate entity.Entity) []string {
	if len(candidate.Keywords) > 0 {
		return normalizeSet(candidate.Keywords)
	}
	if len(candidate.Tags) > 0 {
		return normalizeSet(candidate.Tags)
	}
	return nil
}

func containsAny(candidate entity.Entity, words []string) bool {
	if len(words) == 0 {
		return false
	}
	haystack := strings.ToLower(candidate.Title + " " + candidate.Body)
	for _, word := range words {
		if strings.Contains(haystack, word) {
			return true
		}
	}
	return false
}

func normalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.ToLower(strings.TrimSpace(value))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func overlapCount(left, right []string) int {
	rightSet := make(map[string]struct{}, len(right))
	for _, value := range right {
		rightSet[value] = struct{}{}
	}
	count := 0
	for _, value := range left {
		if _, ok := rightSet[value]; ok {
			count++
		}
	}
	return count
}

// Jaccard computes |a ∩ b| / |a ∪ b| over two keyword sets. Both inputs are
// treated as sets; duplicates do not inflate the score.
func Jaccard(left, right []string) float64 {
	a := normalizeSet(left)
	b := normalizeSet(right)
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	overlap := overlapCount(a, b)
	union := len(a) + len(b) - overlap
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}
