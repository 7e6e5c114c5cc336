package types

import (
	"fmt"
	"time"
)

// Item represents a fingerprinted image known to the engine. Items are
// created by the scanning collaborator and removed when the source file is
// deleted or fails an integrity check. The ID is opaque, stable, unique,
// and never reused after deletion.
type Item struct {
	ID          string      `json:"id"`
	Fingerprint Fingerprint `json:"fingerprint"`
	SourceRoot  string      `json:"source_root,omitempty"`
	CreatedAt   time.Time   `json:"created_at,omitempty"`
}

// Validate checks if the item has valid field values
func (i *Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if len(i.Fingerprint) == 0 {
		return fmt.Errorf("item %s has no fingerprint", i.ID)
	}
	return nil
}

// Pair is an unordered pair of item ids stored in canonical order
// (smaller id first, bytewise). Canonical ordering prevents (a,b) and
// (b,a) from being stored as two different rows.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewPair builds a canonical pair from two item ids in any order.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Validate checks that the pair is canonical and references two distinct items
func (p Pair) Validate() error {
	if p.A == "" || p.B == "" {
		return fmt.Errorf("pair endpoints must be non-empty")
	}
	if p.A == p.B {
		return fmt.Errorf("pair endpoints must differ (got %s twice)", p.A)
	}
	if p.A > p.B {
		return fmt.Errorf("pair (%s, %s) is not in canonical order", p.A, p.B)
	}
	return nil
}

func (p Pair) String() string {
	return p.A + "<->" + p.B
}

// RelationKind classifies the relationship between the two items of a pair.
// Exactly one kind is current per pair at any time.
type RelationKind string

const (
	// KindNewMatch marks a freshly discovered, unreviewed pair. It is the
	// only kind the discovery path may write.
	KindNewMatch RelationKind = "new_match"

	// User decision kinds. Once one of these is set, rediscovery must never
	// revert the pair to new_match; only an explicit SetKind may.
	KindNotDuplicate  RelationKind = "not_duplicate"
	KindNearDuplicate RelationKind = "near_duplicate"
	KindSimilar       RelationKind = "similar"
	KindSameSet       RelationKind = "same_set"
)

// IsValid checks if the relation kind value is valid
func (k RelationKind) IsValid() bool {
	switch k {
	case KindNewMatch, KindNotDuplicate, KindNearDuplicate, KindSimilar, KindSameSet:
		return true
	}
	return false
}

// Annotated reports whether the kind records a user decision.
func (k RelationKind) Annotated() bool {
	return k.IsValid() && k != KindNewMatch
}

// Relation is a persisted relationship between two items. The pair identity
// is immutable; the kind is the only mutable field.
type Relation struct {
	Pair      Pair         `json:"pair"`
	Kind      RelationKind `json:"kind"`
	Distance  int          `json:"distance"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// Validate checks if the relation has valid field values
func (r *Relation) Validate() error {
	if err := r.Pair.Validate(); err != nil {
		return err
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid relation kind: %s", r.Kind)
	}
	if r.Distance < 0 {
		return fmt.Errorf("distance cannot be negative (got %d)", r.Distance)
	}
	return nil
}

// Candidate is a pair produced by the candidate generator, before it has
// been reconciled against the relation store. Its implied kind (new_match)
// is provisional until the store has been consulted.
type Candidate struct {
	Pair     Pair
	Distance int
}

// ClusterInfo describes a persistent sticky cluster and its members.
type ClusterInfo struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Members   []string  `json:"members,omitempty"`
}

// Scope restricts an operation to items scanned from the given source
// roots. An empty scope matches everything.
type Scope struct {
	Roots []string
}

// IsEmpty reports whether the scope imposes no restriction.
func (s Scope) IsEmpty() bool {
	return len(s.Roots) == 0
}

// Matches reports whether an item with the given source root is in scope.
func (s Scope) Matches(sourceRoot string) bool {
	if s.IsEmpty() {
		return true
	}
	for _, r := range s.Roots {
		if r == sourceRoot {
			return true
		}
	}
	return false
}
