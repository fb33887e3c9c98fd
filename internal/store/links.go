package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/linkgraph"
)

type linkRow struct {
	OrgID           string         `db:"org_id"`
	SourceType      string         `db:"source_type"`
	SourceID        string         `db:"source_id"`
	TargetType      string         `db:"target_type"`
	TargetID        string         `db:"target_id"`
	LinkType        string         `db:"link_type"`
	Strength        float64        `db:"strength"`
	IsAutoGenerated bool           `db:"is_auto_generated"`
	CreatedBy       sql.NullString `db:"created_by"`
	CreatedAt       int64          `db:"created_at"`
	UpdatedAt       int64          `db:"updated_at"`
}

func (r linkRow) toLink() linkgraph.Link {
	return linkgraph.Link{
		OrganizationID:  r.OrgID,
		Source:          entity.Ref{Type: entity.Type(r.SourceType), ID: r.SourceID},
		Target:          entity.Ref{Type: entity.Type(r.TargetType), ID: r.TargetID},
		Type:            linkgraph.LinkType(r.LinkType),
		Strength:        r.Strength,
		IsAutoGenerated: r.IsAutoGenerated,
		CreatedBy:       r.CreatedBy.String,
		CreatedAt:       fromMillis(r.CreatedAt),
	}
}

// UpsertLink writes one directed edge. The primary key on the ordered
// (source, target) pair makes the upsert atomic: concurrent derivations of
// the same pair update strength in place and never duplicate the edge.
func (c *Catalog) UpsertLink(ctx context.Context, link linkgraph.Link) error {
	if link.OrganizationID == "" || !link.Source.Valid() || !link.Target.Valid() {
		return fmt.Errorf("link requires organization and valid endpoints")
	}
	if link.Source == link.Target {
		return fmt.Errorf("self link rejected for %s", link.Source.String())
	}
	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := c.db.ExecContext(ctx, `
                INSERT INTO content_links (
                        org_id, source_type, source_id, target_type, target_id,
                        link_type, strength, is_auto_generated, created_by,
                        created_at, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT (org_id, source_type, source_id, target_type, target_id) DO UPDATE SET
                        link_type = excluded.link_type,
                        strength = excluded.strength,
                        is_auto_generated = excluded.is_auto_generated,
                        updated_at = excluded.updated_at`,
		link.OrganizationID, string(link.Source.Type), link.Source.ID,
		string(link.Target.Type), link.Target.ID, string(link.Type),
		link.Strength, link.IsAutoGenerated, nullString(link.CreatedBy),
		millis(createdAt), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert link %s -> %s: %w", link.Source.String(), link.Target.String(), err)
	}
	return nil
}

// LinksFor returns edges touching the reference in either direction,
// strongest first.
func (c *Catalog) LinksFor(ctx context.Context, orgID string, ref entity.Ref, limit int) ([]linkgraph.Link, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []linkRow
	err := c.db.SelectContext(ctx, &rows, `
                SELECT * FROM content_links
                WHERE org_id = ?
                  AND ((source_type = ? AND source_id = ?) OR (target_type = ? AND target_id = ?))
                ORDER BY strength DESC, created_at DESC
                LIMIT ?`,
		orgID, string(ref.Type), ref.ID, string(ref.Type), ref.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("query links for %s: %w", ref.String(), err)
	}
	out := make([]linkgraph.Link, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toLink())
	}
	return out, nil
}
