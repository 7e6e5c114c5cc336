// Package storage defines the durable relation store: the single source of
// truth for items, relations between item pairs, scan roots, and sticky
// clusters. Every write path runs inside its own transaction, and the
// cascade on item deletion is atomic: there is never an intermediate state
// where an item is gone but its relations remain.
package storage

import (
	"context"

	"github.com/dupescan/dupescan/internal/types"
)

// Store is the interface all relation store backends implement. All
// cross-cutting invariants (referential integrity, canonical pair ordering,
// never-regress-an-annotation) are enforced here at the store boundary, not
// scattered across callers.
type Store interface {
	// Items
	AddItems(ctx context.Context, items []types.Item) error
	GetItem(ctx context.Context, id string) (*types.Item, error)
	ListItems(ctx context.Context, scope types.Scope) ([]types.Item, error)

	// DeleteItem removes the item and every relation and cluster
	// membership referencing it in a single transaction. Returns
	// ErrNotFound if the item does not exist.
	DeleteItem(ctx context.Context, id string) error

	// Relations

	// UpsertRelationsIfAbsent inserts candidate pairs with kind new_match,
	// leaving existing rows completely untouched (not even distance is
	// updated). This is the only write path for freshly discovered pairs.
	// Entries referencing non-live items are reported individually; the
	// valid remainder still commits. Returns the number of rows actually
	// inserted.
	UpsertRelationsIfAbsent(ctx context.Context, candidates []types.Candidate) (int, []EntryError, error)

	// SetKind overwrites the kind of an existing relation, leaving its
	// distance unchanged. Returns ErrNotFound if the pair has no row.
	// This is the explicit, user-driven annotation path, including the
	// reset back to new_match.
	SetKind(ctx context.Context, pair types.Pair, kind types.RelationKind) error

	// GetKind returns the current kind for a pair, with ok=false when the
	// pair has no row.
	GetKind(ctx context.Context, pair types.Pair) (types.RelationKind, bool, error)

	// GetRelations batch-reads the authoritative rows for the given pairs.
	// Pairs without rows are simply absent from the result map.
	GetRelations(ctx context.Context, pairs []types.Pair) (map[types.Pair]types.Relation, error)

	ListRelations(ctx context.Context) ([]types.Relation, error)

	// SweepOrphans removes relations whose endpoints are not both live and
	// returns how many were removed. Non-zero is a correctness anomaly,
	// not routine maintenance.
	SweepOrphans(ctx context.Context) (int, error)

	// Scan roots (source location registry)
	AddScanRoot(ctx context.Context, path string) error
	RemoveScanRoot(ctx context.Context, path string) error
	ListScanRoots(ctx context.Context) ([]string, error)

	// Sticky clusters
	CreateCluster(ctx context.Context, name string) (int64, error)
	AddClusterMembers(ctx context.Context, clusterID int64, itemIDs []string) error
	ClusterAssignments(ctx context.Context) (map[string]int64, error)
	ListClusters(ctx context.Context) ([]types.ClusterInfo, error)
	DeleteCluster(ctx context.Context, clusterID int64) error

	Close() error
}
