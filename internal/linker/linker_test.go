package linker

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/linkgraph"
)

type fakeAccessor struct {
	byType map[entity.Type][]entity.Entity
}

func (f *fakeAccessor) Get(ctx context.Context, orgID string, ref entity.Ref) (entity.Entity, error) {
	for _, candidates := range f.byType {
		for _, candidate := range candidates {
			if candidate.Ref() == ref {
				return candidate, nil
			}
		}
	}
	return entity.Entity{}, entity.ErrNotFound
}

func (f *fakeAccessor) Query(ctx context.Context, orgID string, t entity.Type, filters entity.Filters, limit int) ([]entity.Entity, error) {
	var out []entity.Entity
	for _, candidate := range f.byType[t] {
		if filters.ExcludeRef != nil && candidate.Ref() == *filters.ExcludeRef {
			continue
		}
		out = append(out, candidate)
	}
	return out, nil
}

type fakeLinkStore struct {
	edges map[string]linkgraph.Link
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{edges: make(map[string]linkgraph.Link)}
}

func (f *fakeLinkStore) UpsertLink(ctx context.Context, link linkgraph.Link) error {
	key := link.Source.String() + "->" + link.Target.String()
	f.edges[key] = link
	return nil
}

func (f *fakeLinkStore) LinksFor(ctx context.Context, orgID string, ref entity.Ref, limit int) ([]linkgraph.Link, error) {
	var out []linkgraph.Link
	for _, link := range f.edges {
		if link.Source == ref || link.Target == ref {
			out = append(out, link)
		}
	}
	return out, nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestJaccard(t *testing.T) {
	got := Jaccard([]string{"auth", "jwt"}, []string{"auth", "oauth"})
	if !almostEqual(got, 1.0/3.0) {
		t.Fatalf("expected 1/3, got %f", got)
	}
	if got := Jaccard(nil, []string{"auth"}); got != 0 {
		t.Fatalf("expected 0 for empty left set, got %f", got)
	}
	if got := Jaccard([]string{"a", "a", "b"}, []string{"a", "b"}); !almostEqual(got, 1) {
		t.Fatalf("duplicates inflated the score: %f", got)
	}
}

func TestLinkContentKeywordOverlapStrength(t *testing.T) {
	source := entity.Entity{
		ID: "d1", OrganizationID: "org", Type: entity.TypeDecision,
		Title: "Adopt JWT authentication", Keywords: []string{"auth", "jwt"},
	}
	oneOverlap := entity.Entity{
		ID: "t1", OrganizationID: "org", Type: entity.TypeTask,
		Title: "Rotate signing keys", Keywords: []string{"jwt", "rotation"},
	}
	twoOverlap := entity.Entity{
		ID: "t2", OrganizationID: "org", Type: entity.TypeTask,
		Title: "Harden login flow", Keywords: []string{"auth", "jwt", "login"},
	}
	accessor := &fakeAccessor{byType: map[entity.Type][]entity.Entity{
		entity.TypeTask: {oneOverlap, twoOverlap},
	}}
	links := newFakeLinkStore()
	l := New(Config{}, accessor, links, WithClock(func() time.Time { return time.Unix(1700000000, 0) }))

	if err := l.LinkContent(context.Background(), source); err != nil {
		t.Fatalf("link content: %v", err)
	}
	if len(links.edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(links.edges))
	}
	one := links.edges["decision:d1->task:t1"]
	if !almostEqual(one.Strength, 0.65) {
		t.Fatalf("one-overlap strength: got %f want 0.65", one.Strength)
	}
	two := links.edges["decision:d1->task:t2"]
	if !almostEqual(two.Strength, 0.8) {
		t.Fatalf("two-overlap strength: got %f want 0.8", two.Strength)
	}
	if one.Type != linkgraph.LinkRelatesTo || !one.IsAutoGenerated {
		t.Fatalf("unexpected edge metadata: %+v", one)
	}
}

func TestLinkContentStrengthCapped(t *testing.T) {
	keywords := []string{"one", "two", "three", "four", "five"}
	source := entity.Entity{ID: "d1", OrganizationID: "org", Type: entity.TypeDecision, Title: "x", Keywords: keywords}
	candidate := entity.Entity{ID: "t1", OrganizationID: "org", Type: entity.TypeTask, Title: "y", Keywords: keywords}
	accessor := &fakeAccessor{byType: map[entity.Type][]entity.Entity{entity.TypeTask: {candidate}}}
	links := newFakeLinkStore()
	l := New(Config{}, accessor, links)
	if err := l.LinkContent(context.Background(), source); err != nil {
		t.Fatalf("link content: %v", err)
	}
	edge := links.edges["decision:d1->task:t1"]
	if !almostEqual(edge.Strength, 1) {
		t.Fatalf("expected capped strength 1, got %f", edge.Strength)
	}
}

func TestLinkContentTitleContainmentFallback(t *testing.T) {
	source := entity.Entity{
		ID: "m1", OrganizationID: "org", Type: entity.TypeMeeting,
		Title: "Payments migration kickoff",
	}
	conversation := entity.Entity{
		ID: "c1", OrganizationID: "org", Type: entity.TypeConversation,
		Title: "Thread about the payments cutover",
	}
	document := entity.Entity{
		ID: "doc1", OrganizationID: "org", Type: entity.TypeDocument,
		Title: "Migration runbook",
	}
	unrelated := entity.Entity{
		ID: "c2", OrganizationID: "org", Type: entity.TypeConversation,
		Title: "Lunch plans",
	}
	accessor := &fakeAccessor{byType: map[entity.Type][]entity.Entity{
		entity.TypeConversation: {conversation, unrelated},
		entity.TypeDocument:     {document},
	}}
	links := newFakeLinkStore()
	l := New(Config{}, accessor, links)
	if err := l.LinkContent(context.Background(), source); err != nil {
		t.Fatalf("link content: %v", err)
	}
	if len(links.edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %v", len(links.edges), links.edges)
	}
	if got := links.edges["meeting:m1->conversation:c1"].Strength; !almostEqual(got, 0.7) {
		t.Fatalf("conversation containment strength: got %f want 0.7", got)
	}
	if got := links.edges["meeting:m1->document:doc1"].Strength; !almostEqual(got, 0.6) {
		t.Fatalf("document containment strength: got %f want 0.6", got)
	}
}

func TestLinkContentIdempotent(t *testing.T) {
	source := entity.Entity{ID: "d1", OrganizationID: "org", Type: entity.TypeDecision, Title: "x", Keywords: []string{"auth"}}
	candidate := entity.Entity{ID: "t1", OrganizationID: "org", Type: entity.TypeTask, Title: "y", Keywords: []string{"auth"}}
	accessor := &fakeAccessor{byType: map[entity.Type][]entity.Entity{entity.TypeTask: {candidate}}}
	links := newFakeLinkStore()
	l := New(Config{}, accessor, links)
	for i := 0; i < 3; i++ {
		if err := l.LinkContent(context.Background(), source); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(links.edges) != 1 {
		t.Fatalf("re-running duplicated edges: %d", len(links.edges))
	}
}

func TestLinkContentExcludesSelf(t *testing.T) {
	source := entity.Entity{ID: "d1", OrganizationID: "org", Type: entity.TypeDecision, Title: "x", Keywords: []string{"auth"}}
	accessor := &fakeAccessor{byType: map[entity.Type][]entity.Entity{entity.TypeDecision: {source}}}
	links := newFakeLinkStore()
	l := New(Config{}, accessor, links)
	if err := l.LinkContent(context.Background(), source); err != nil {
		t.Fatalf("link content: %v", err)
	}
	if len(links.edges) != 0 {
		t.Fatalf("self-link written: %v", links.edges)
	}
}
