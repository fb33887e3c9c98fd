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

const defaultQueryLimit = 100

type entityRow struct {
	ID             string         `db:"id"`
	OrgID          string         `db:"org_id"`
	Type           string         `db:"type"`
	Title          string         `db:"title"`
	Body           string         `db:"body"`
	Tags           string         `db:"tags"`
	Keywords       string         `db:"keywords"`
	AuthorID       sql.NullString `db:"author_id"`
	Status         sql.NullString `db:"status"`
	Priority       sql.NullString `db:"priority"`
	Outcome        sql.NullString `db:"outcome"`
	WasSuccessful  sql.NullBool   `db:"was_successful"`
	Rationale      sql.NullString `db:"rationale"`
	Lessons        sql.NullString `db:"lessons"`
	ConversationID sql.NullString `db:"conversation_id"`
	Stakeholders   sql.NullString `db:"stakeholders"`
	Deadline       sql.NullInt64  `db:"deadline"`
	ReviewedAt     sql.NullInt64  `db:"reviewed_at"`
	ImplementedAt  sql.NullInt64  `db:"implemented_at"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

func (r entityRow) toEntity() (entity.Entity, error) {
	t, err := entity.ParseType(r.Type)
	if err != nil {
		return entity.Entity{}, err
	}
	e := entity.Entity{
		ID:             r.ID,
		OrganizationID: r.OrgID,
		Type:           t,
		Title:          r.Title,
		Body:           r.Body,
		AuthorID:       r.AuthorID.String,
		Status:         r.Status.String,
		Priority:       r.Priority.String,
		Outcome:        r.Outcome.String,
		Rationale:      r.Rationale.String,
		Lessons:        r.Lessons.String,
		ConversationID: r.ConversationID.String,
		Deadline:       timePtr(r.Deadline),
		ReviewedAt:     timePtr(r.ReviewedAt),
		ImplementedAt:  timePtr(r.ImplementedAt),
		CreatedAt:      fromMillis(r.CreatedAt),
	}
	if r.WasSuccessful.Valid {
		value := r.WasSuccessful.Bool
		e.WasSuccessful = &value
	}
	if err := decodeStrings(r.Tags, &e.Tags); err != nil {
		return entity.Entity{}, fmt.Errorf("decode tags for %s: %w", r.ID, err)
	}
	if err := decodeStrings(r.Keywords, &e.Keywords); err != nil {
		return entity.Entity{}, fmt.Errorf("decode keywords for %s: %w", r.ID, err)
	}
	if r.Stakeholders.Valid && r.Stakeholders.String != "" {
		if err := decodeStrings(r.Stakeholders.String, &e.Stakeholders); err != nil {
			return entity.Entity{}, fmt.Errorf("decode stakeholders for %s: %w", r.ID, err)
		}
	}
	return e, nil
}

func decodeStrings(raw string, target *[]string) error {
	if raw == "" || raw == "[]" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}

func encodeStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "[]", nil
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// UpsertEntity writes an entity row, replacing any previous version of the
// same (org, type, id). The caller is the external CRUD collaborator; the
// core itself only reads.
func (c *Catalog) UpsertEntity(ctx context.Context, e entity.Entity) error {
	if e.ID == "" || e.OrganizationID == "" {
		return errors.New("entity id and organization required")
	}
	if _, err := entity.ParseType(string(e.Type)); err != nil {
		return err
	}
	tags, err := encodeStrings(e.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	keywords, err := encodeStrings(e.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}
	var stakeholders interface{}
	if e.Stakeholders != nil {
		encoded, err := encodeStrings(e.Stakeholders)
		if err != nil {
			return fmt.Errorf("encode stakeholders: %w", err)
		}
		stakeholders = encoded
	}
	var wasSuccessful interface{}
	if e.WasSuccessful != nil {
		wasSuccessful = *e.WasSuccessful
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err = c.db.ExecContext(ctx, `
                INSERT INTO entities (
                        id, org_id, type, title, body, tags, keywords, author_id,
                        status, priority, outcome, was_successful, rationale, lessons,
                        conversation_id, stakeholders, deadline, reviewed_at,
                        implemented_at, created_at, updated_at
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT (org_id, type, id) DO UPDATE SET
                        title = excluded.title,
                        body = excluded.body,
                        tags = excluded.tags,
                        keywords = excluded.keywords,
                        author_id = excluded.author_id,
                        status = excluded.status,
                        priority = excluded.priority,
                        outcome = excluded.outcome,
                        was_successful = excluded.was_successful,
                        rationale = excluded.rationale,
                        lessons = excluded.lessons,
                        conversation_id = excluded.conversation_id,
                        stakeholders = excluded.stakeholders,
                        deadline = excluded.deadline,
                        reviewed_at = excluded.reviewed_at,
                        implemented_at = excluded.implemented_at,
                        updated_at = excluded.updated_at`,
		e.ID, e.OrganizationID, string(e.Type), e.Title, e.Body, tags, keywords,
		nullString(e.AuthorID), nullString(e.Status), nullString(e.Priority),
		nullString(e.Outcome), wasSuccessful, nullString(e.Rationale),
		nullString(e.Lessons), nullString(e.ConversationID), stakeholders,
		nullMillis(e.Deadline), nullMillis(e.ReviewedAt), nullMillis(e.ImplementedAt),
		millis(createdAt), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert entity %s: %w", e.ID, err)
	}
	return nil
}

func nullString(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

// Get resolves a typed reference within an organization.
func (c *Catalog) Get(ctx context.Context, orgID string, ref entity.Ref) (entity.Entity, error) {
	var row entityRow
	err := c.db.GetContext(ctx, &row, `
                SELECT * FROM entities WHERE org_id = ? AND type = ? AND id = ?`,
		orgID, string(ref.Type), ref.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Entity{}, fmt.Errorf("%s: %w", ref.String(), entity.ErrNotFound)
	}
	if err != nil {
		return entity.Entity{}, fmt.Errorf("get entity %s: %w", ref.String(), err)
	}
	return row.toEntity()
}

// Query lists entities of one type, newest first, with filters applied in
// SQL before any scoring happens. The limit is always bounded.
func (c *Catalog) Query(ctx context.Context, orgID string, t entity.Type, filters entity.Filters, limit int) ([]entity.Entity, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultQueryLimit
	}
	query := `SELECT * FROM entities WHERE org_id = ? AND type = ?`
	args := []interface{}{orgID, string(t)}
	if filters.Status != "" {
		query += ` AND status = ?`
		args = append(args, filters.Status)
	}
	if filters.Priority != "" {
		query += ` AND priority = ?`
		args = append(args, filters.Priority)
	}
	if filters.DateFrom != nil {
		query += ` AND created_at >= ?`
		args = append(args, filters.DateFrom.UnixMilli())
	}
	if filters.DateTo != nil {
		query += ` AND created_at <= ?`
		args = append(args, filters.DateTo.UnixMilli())
	}
	if filters.ExcludeRef != nil {
		query += ` AND NOT (type = ? AND id = ?)`
		args = append(args, string(filters.ExcludeRef.Type), filters.ExcludeRef.ID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	var rows []entityRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query %s entities: %w", t, err)
	}
	return rowsToEntities(rows)
}

// TerminalDecisions lists decisions with an implemented or rejected status,
// most recently reviewed first, then most recently implemented, then most
// recently created. SQLite sorts NULL timestamps last under DESC.
func (c *Catalog) TerminalDecisions(ctx context.Context, orgID string, exclude entity.Ref, limit int) ([]entity.Entity, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `
                SELECT * FROM entities
                WHERE org_id = ? AND type = ? AND status IN ('implemented', 'rejected')`
	args := []interface{}{orgID, string(entity.TypeDecision)}
	if exclude.Valid() {
		query += ` AND NOT (type = ? AND id = ?)`
		args = append(args, string(exclude.Type), exclude.ID)
	}
	query += ` ORDER BY reviewed_at DESC, implemented_at DESC, created_at DESC LIMIT ?`
	args = append(args, limit)

	var rows []entityRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query terminal decisions: %w", err)
	}
	return rowsToEntities(rows)
}

// AuthorCounts counts prior entities per author carrying the keyword in
// their tag or keyword sets. The JSON columns are matched on the quoted
// element to avoid substring false positives.
func (c *Catalog) AuthorCounts(ctx context.Context, orgID, keyword string, limit int) ([]panel.AuthorCount, error) {
	if keyword == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	needle := `%"` + keyword + `"%`
	rows := []struct {
		AuthorID string `db:"author_id"`
		Count    int    `db:"count"`
	}{}
	err := c.db.SelectContext(ctx, &rows, `
                SELECT author_id, COUNT(*) AS count
                FROM entities
                WHERE org_id = ? AND author_id IS NOT NULL
                  AND (tags LIKE ? OR keywords LIKE ?)
                GROUP BY author_id
                ORDER BY count DESC, author_id
                LIMIT ?`,
		orgID, needle, needle, limit)
	if err != nil {
		return nil, fmt.Errorf("count authors for %q: %w", keyword, err)
	}
	out := make([]panel.AuthorCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, panel.AuthorCount{UserID: row.AuthorID, Count: row.Count})
	}
	return out, nil
}

// Tags returns the distinct tags of recent entities, bounded by limit.
func (c *Catalog) Tags(ctx context.Context, orgID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	var encoded []string
	err := c.db.SelectContext(ctx, &encoded, `
                SELECT tags FROM entities
                WHERE org_id = ? AND tags != '[]'
                ORDER BY created_at DESC
                LIMIT 500`, orgID)
	if err != nil {
		return nil, fmt.Errorf("scan tags: %w", err)
	}
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range encoded {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			continue
		}
		for _, tag := range tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
			if len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func rowsToEntities(rows []entityRow) ([]entity.Entity, error) {
	out := make([]entity.Entity, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntity()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
