package search

import (
	"math"
	"strings"

	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/text"
)

// BM25 parameters. k1 controls term-frequency saturation, b controls length
// normalization.
const (
	defaultK1 = 1.5
	defaultB  = 0.75
)

// rankingDoc is the ephemeral query-scoped view of one entity. It is built
// fresh from current entity state per invocation and never persisted.
type rankingDoc struct {
	source entity.Entity
	terms  map[string]int
	length int
}

// bm25Index is an in-memory term-frequency index over one entity type's
// candidate set. Indexes are rebuilt per query: organizational corpora are
// small, and rebuilding sidesteps incremental-index staleness entirely. The
// tradeoff is a rebuild cost that grows with corpus size.
type bm25Index struct {
	docs   []rankingDoc
	df     map[string]int
	avgLen float64
	k1     float64
	b      float64
}

func newIndex(entities []entity.Entity, k1, b float64) *bm25Index {
	if k1 <= 0 {
		k1 = defaultK1
	}
	if b <= 0 {
		b = defaultB
	}
	idx := &bm25Index{df: make(map[string]int), k1: k1, b: b}
	var totalLen int
	for _, ent := range entities {
		corpus := ent.Title + " " + ent.Body + " " + strings.Join(ent.Keywords, " ") + " " + strings.Join(ent.Tags, " ")
		tokens := text.Tokenize(corpus)
		if len(tokens) == 0 {
			continue
		}
		doc := rankingDoc{source: ent, terms: make(map[string]int, len(tokens)), length: len(tokens)}
		for _, token := range tokens {
			doc.terms[token]++
		}
		for term := range doc.terms {
			idx.df[term]++
		}
		totalLen += doc.length
		idx.docs = append(idx.docs, doc)
	}
	if len(idx.docs) > 0 {
		idx.avgLen = float64(totalLen) / float64(len(idx.docs))
	}
	return idx
}

// search scores every indexed document against the query terms and returns
// the positive matches, unordered. Callers sort after merging types.
func (idx *bm25Index) search(queryTerms []string) []scoredEntity {
	if len(idx.docs) == 0 || len(queryTerms) == 0 {
		return nil
	}
	n := float64(len(idx.docs))
	var out []scoredEntity
	for _, doc := range idx.docs {
		var score float64
		for _, term := range queryTerms {
			tf := float64(doc.terms[term])
			if tf == 0 {
				continue
			}
			df := float64(idx.df[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - idx.b + idx.b*float64(doc.length)/idx.avgLen
			score += idf * (tf * (idx.k1 + 1)) / (tf + idx.k1*norm)
		}
		if score > 0 {
			out = append(out, scoredEntity{source: doc.source, score: score})
		}
	}
	return out
}

type scoredEntity struct {
	source entity.Entity
	score  float64
}
