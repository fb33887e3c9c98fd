package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertUser records a user for expert attribution. The user directory is
// owned by an external collaborator; this mirror only serves name lookups.
func (c *Catalog) UpsertUser(ctx context.Context, id, name string) error {
	if id == "" {
		return errors.New("user id required")
	}
	_, err := c.db.ExecContext(ctx, `
                INSERT INTO users (id, name) VALUES (?, ?)
                ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		id, name)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", id, err)
	}
	return nil
}

// UserName resolves a user id to a display name.
func (c *Catalog) UserName(ctx context.Context, userID string) (string, error) {
	var name string
	err := c.db.GetContext(ctx, &name, `SELECT name FROM users WHERE id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("user %s not found", userID)
	}
	if err != nil {
		return "", fmt.Errorf("resolve user %s: %w", userID, err)
	}
	return name, nil
}
