// Package linkgraph models the typed, strength-weighted edges connecting
// content entities and the persistence contract backing them.
package linkgraph

import (
	"context"
	"time"

	"github.com/davitacols/recall-sub001/internal/entity"
)

// LinkType enumerates the supported edge semantics.
type LinkType string

const (
	LinkReferences  LinkType = "references"
	LinkImplements  LinkType = "implements"
	LinkBlocks      LinkType = "blocks"
	LinkRelatesTo   LinkType = "relates_to"
	LinkSupersedes  LinkType = "supersedes"
	LinkDerivedFrom LinkType = "derived_from"
)

// Link is a directed edge between two content entities. At most one link
// exists per ordered (source, target) pair within an organization; re-deriving
// the same pair updates strength in place.
type Link struct {
	OrganizationID  string     `json:"organization_id"`
	Source          entity.Ref `json:"source"`
	Target          entity.Ref `json:"target"`
	Type            LinkType   `json:"link_type"`
	Strength        float64    `json:"strength"`
	IsAutoGenerated bool       `json:"is_auto_generated"`
	CreatedBy       string     `json:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Store persists link edges. Upsert must be atomic per (source, target) key so
// concurrent auto-linking of the same pair never produces duplicates. Edges
// are never deleted by the core, only updated.
type Store interface {
	UpsertLink(ctx context.Context, link Link) error
	// LinksFor returns edges touching the reference in either direction,
	// strongest first, bounded by limit.
	LinksFor(ctx context.Context, orgID string, ref entity.Ref, limit int) ([]Link, error)
}

// Other returns the endpoint of the link that is not the given reference.
func (l Link) Other(ref entity.Ref) entity.Ref {
	if l.Source == ref {
		return l.Target
	}
	return l.Source
}
