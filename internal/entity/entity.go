// Package entity defines the normalized content-entity model shared by the
// link graph, the context composer, and the retrieval engine. Entity
// lifecycle is owned by external collaborators; this package only describes
// the read-side view.
package entity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Type discriminates the concrete kind of a content entity.
type Type string

const (
	TypeConversation Type = "conversation"
	TypeDecision     Type = "decision"
	TypeTask         Type = "task"
	TypeMeeting      Type = "meeting"
	TypeDocument     Type = "document"
	TypeSprint       Type = "sprint"
	TypeWorkItem     Type = "work_item"
	TypeBlocker      Type = "blocker"
)

// ErrNotFound is returned when an entity reference does not resolve.
var ErrNotFound = errors.New("entity not found")

var knownTypes = map[Type]struct{}{
	TypeConversation: {},
	TypeDecision:     {},
	TypeTask:         {},
	TypeMeeting:      {},
	TypeDocument:     {},
	TypeSprint:       {},
	TypeWorkItem:     {},
	TypeBlocker:      {},
}

// ParseType validates a type string received from a caller.
func ParseType(value string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := knownTypes[t]; !ok {
		return "", fmt.Errorf("unknown entity type %q", value)
	}
	return t, nil
}

// Ref is a typed reference to a content entity. It replaces the generic
// foreign-key pattern with an explicit discriminated pair resolved through
// the Accessor.
type Ref struct {
	Type Type   `json:"type"`
	ID   string `json:"id"`
}

func (r Ref) String() string {
	return string(r.Type) + ":" + r.ID
}

// Valid reports whether the reference carries both a known type and an id.
func (r Ref) Valid() bool {
	_, ok := knownTypes[r.Type]
	return ok && strings.TrimSpace(r.ID) != ""
}

// Entity is the normalized read-side view of any content record. Fields that
// only exist on some concrete types are optional; consumers check the type's
// capabilities before interpreting them.
type Entity struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Type           Type       `json:"type"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	Tags           []string   `json:"tags,omitempty"`
	Keywords       []string   `json:"keywords,omitempty"`
	AuthorID       string     `json:"author_id,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Outcome        string     `json:"outcome,omitempty"`
	WasSuccessful  *bool      `json:"was_successful,omitempty"`
	Rationale      string     `json:"rationale,omitempty"`
	Lessons        string     `json:"lessons,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty"`
	Stakeholders   []string   `json:"stakeholders,omitempty"`
	Deadline       *time.Time `json:"deadline,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ImplementedAt  *time.Time `json:"implemented_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Ref returns the typed reference for the entity.
func (e Entity) Ref() Ref {
	return Ref{Type: e.Type, ID: e.ID}
}

// Filters narrow entity queries before any scoring happens.
type Filters struct {
	Status     string
	Priority   string
	DateFrom   *time.Time
	DateTo     *time.Time
	ExcludeRef *Ref
}

// Accessor is the read-only facade over the concrete entity storage. Get
// returns ErrNotFound (possibly wrapped) when the reference does not resolve.
type Accessor interface {
	Get(ctx context.Context, orgID string, ref Ref) (Entity, error)
	Query(ctx context.Context, orgID string, t Type, filters Filters, limit int) ([]Entity, error)
}

// UserDirectory resolves author ids to display names for expert attribution.
type UserDirectory interface {
	UserName(ctx context.Context, userID string) (string, error)
}

var typesWithStakeholders = map[Type]struct{}{
	TypeDecision: {},
	TypeMeeting:  {},
	TypeSprint:   {},
}

var typesWithDeadline = map[Type]struct{}{
	TypeDecision: {},
	TypeTask:     {},
	TypeSprint:   {},
	TypeWorkItem: {},
	TypeBlocker:  {},
}

var typesWithConversationRef = map[Type]struct{}{
	TypeDecision: {},
	TypeTask:     {},
	TypeBlocker:  {},
}

// SupportsStakeholders reports whether the type carries a stakeholder
// collection at all; absence of the attribute is distinct from an empty list.
func (t Type) SupportsStakeholders() bool {
	_, ok := typesWithStakeholders[t]
	return ok
}

// SupportsDeadline reports whether the type exposes a deadline attribute.
func (t Type) SupportsDeadline() bool {
	_, ok := typesWithDeadline[t]
	return ok
}

// SupportsConversationRef reports whether the type can point back at an
// originating conversation.
func (t Type) SupportsConversationRef() bool {
	_, ok := typesWithConversationRef[t]
	return ok
}
