package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/panel"
)

// GetPanel loads the cached panel for one entity, reporting whether a row
// exists.
func (c *Catalog) GetPanel(ctx context.Context, orgID string, ref entity.Ref) (panel.Panel, bool, error) {
	row := struct {
		Payload      string `db:"payload"`
		LastComputed int64  `db:"last_computed"`
	}{}
	err := c.db.GetContext(ctx, &row, `
                SELECT payload, last_computed FROM context_panels
                WHERE org_id = ? AND entity_type = ? AND entity_id = ?`,
		orgID, string(ref.Type), ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return panel.Panel{}, false, nil
	}
	if err != nil {
		return panel.Panel{}, false, fmt.Errorf("get panel for %s: %w", ref.String(), err)
	}
	var p panel.Panel
	if err := json.Unmarshal([]byte(row.Payload), &p); err != nil {
		return panel.Panel{}, false, fmt.Errorf("decode panel for %s: %w", ref.String(), err)
	}
	p.LastComputed = fromMillis(row.LastComputed)
	return p, true, nil
}

// UpsertPanel persists a computed panel keyed by (org, entity type, entity
// id). Concurrent writers race benignly: the last writer wins and the
// computation is idempotent over current graph state.
func (c *Catalog) UpsertPanel(ctx context.Context, p panel.Panel) error {
	if p.OrganizationID == "" || !p.Entity.Valid() {
		return errors.New("panel requires organization and valid entity reference")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode panel for %s: %w", p.Entity.String(), err)
	}
	lastComputed := p.LastComputed
	if lastComputed.IsZero() {
		lastComputed = time.Now()
	}
	_, err = c.db.ExecContext(ctx, `
                INSERT INTO context_panels (org_id, entity_type, entity_id, payload, last_computed)
                VALUES (?, ?, ?, ?, ?)
                ON CONFLICT (org_id, entity_type, entity_id) DO UPDATE SET
                        payload = excluded.payload,
                        last_computed = excluded.last_computed`,
		p.OrganizationID, string(p.Entity.Type), p.Entity.ID, string(payload), millis(lastComputed))
	if err != nil {
		return fmt.Errorf("upsert panel for %s: %w", p.Entity.String(), err)
	}
	return nil
}
