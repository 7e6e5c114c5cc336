// Package cluster projects pairwise relations into persistent groups.
//
// Clustering is a projection, not new truth: it derives connected
// components from the relations the user has already confirmed (plus items
// sharing an identical fingerprint) and never invents a pairwise decision.
// not_duplicate acts as a hard separator: two items the user declared
// distinct are never placed in the same cluster, even if a chain of
// confirmed pairs would transitively connect them.
//
// Clusters are sticky. Once an item lands in a cluster, re-projection keeps
// it there; new members join the existing cluster instead of spawning a
// fresh one.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
)

// Options controls which relations count as cluster edges.
type Options struct {
	// Kinds are the annotation kinds that link two items into one cluster.
	Kinds []types.RelationKind

	// IncludeExact links items sharing an identical fingerprint even
	// without a stored relation.
	IncludeExact bool
}

// DefaultOptions clusters on confirmed duplicates and set membership.
func DefaultOptions() Options {
	return Options{
		Kinds:        []types.RelationKind{types.KindNearDuplicate, types.KindSameSet},
		IncludeExact: true,
	}
}

// Projector derives and persists sticky clusters from the relation store.
type Projector struct {
	store  storage.Store
	logger *slog.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithLogger sets the logger for conflict reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Projector) { p.logger = logger }
}

// New creates a Projector backed by the given store.
func New(store storage.Store, opts ...Option) *Projector {
	p := &Projector{store: store, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Project computes clusters over the in-scope items, persists them
// stickily, and returns the resulting clusters with sorted members.
// Singleton components are not persisted.
func (p *Projector) Project(ctx context.Context, scope types.Scope, opts Options) ([]types.ClusterInfo, error) {
	if len(opts.Kinds) == 0 && !opts.IncludeExact {
		return nil, fmt.Errorf("no edge source enabled")
	}

	items, err := p.store.ListItems(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	ordinal := make(map[string]int, len(items))
	for i, it := range items {
		ordinal[it.ID] = i
	}
	uf := newUnionFind(len(items))

	relations, err := p.store.ListRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	// Separators first, so every union attempt sees the full constraint set.
	for _, rel := range relations {
		if rel.Kind != types.KindNotDuplicate {
			continue
		}
		a, okA := ordinal[rel.Pair.A]
		b, okB := ordinal[rel.Pair.B]
		if okA && okB {
			uf.separate(a, b)
		}
	}

	linkKind := make(map[types.RelationKind]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		linkKind[k] = true
	}
	for _, rel := range relations {
		if !linkKind[rel.Kind] {
			continue
		}
		a, okA := ordinal[rel.Pair.A]
		b, okB := ordinal[rel.Pair.B]
		if !okA || !okB {
			continue
		}
		if !uf.union(a, b) {
			p.logger.Warn("link conflicts with a not_duplicate separator, skipping",
				"pair", rel.Pair.String())
		}
	}

	if opts.IncludeExact {
		byFingerprint := make(map[string]int)
		for i, it := range items {
			key := it.Fingerprint.String()
			if first, ok := byFingerprint[key]; ok {
				if !uf.union(first, i) {
					p.logger.Warn("identical fingerprints conflict with a not_duplicate separator, skipping",
						"items", []string{items[first].ID, it.ID})
				}
				continue
			}
			byFingerprint[key] = i
		}
	}

	components := make(map[int][]string)
	for i, it := range items {
		root := uf.find(i)
		components[root] = append(components[root], it.ID)
	}

	return p.persist(ctx, components)
}

// persist maps each multi-member component onto a cluster: the lowest
// existing cluster id among its members when one exists, a fresh cluster
// otherwise.
func (p *Projector) persist(ctx context.Context, components map[int][]string) ([]types.ClusterInfo, error) {
	assignments, err := p.store.ClusterAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster assignments: %w", err)
	}

	// Deterministic persistence order regardless of map iteration.
	roots := make([]int, 0, len(components))
	for root, members := range components {
		if len(members) < 2 {
			continue
		}
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		return components[roots[i]][0] < components[roots[j]][0]
	})

	var result []types.ClusterInfo
	for _, root := range roots {
		members := components[root]
		sort.Strings(members)

		clusterID := int64(0)
		for _, id := range members {
			if existing, ok := assignments[id]; ok && (clusterID == 0 || existing < clusterID) {
				clusterID = existing
			}
		}
		if clusterID == 0 {
			clusterID, err = p.store.CreateCluster(ctx, "")
			if err != nil {
				return nil, fmt.Errorf("failed to create cluster: %w", err)
			}
		}
		if err := p.store.AddClusterMembers(ctx, clusterID, members); err != nil {
			return nil, fmt.Errorf("failed to add members to cluster %d: %w", clusterID, err)
		}
		result = append(result, types.ClusterInfo{ID: clusterID, Members: members})
	}
	return result, nil
}

// unionFind is a disjoint-set forest with union by rank, path compression,
// and per-root separator sets for not_duplicate constraints.
type unionFind struct {
	parent  []int
	rank    []int
	enemies []map[int]bool
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent:  make([]int, n),
		rank:    make([]int, n),
		enemies: make([]map[int]bool, n),
	}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// separate records that the components of a and b must never merge.
func (uf *unionFind) separate(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.enemies[ra] == nil {
		uf.enemies[ra] = make(map[int]bool)
	}
	if uf.enemies[rb] == nil {
		uf.enemies[rb] = make(map[int]bool)
	}
	uf.enemies[ra][rb] = true
	uf.enemies[rb][ra] = true
}

// union merges the components of a and b unless a separator forbids it.
// Returns false when the merge was refused.
func (uf *unionFind) union(a, b int) bool {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return true
	}
	if uf.enemies[ra][rb] {
		return false
	}

	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}

	// The absorbed root's separators transfer to the surviving root.
	for enemy := range uf.enemies[rb] {
		re := uf.find(enemy)
		if uf.enemies[ra] == nil {
			uf.enemies[ra] = make(map[int]bool)
		}
		uf.enemies[ra][re] = true
		if uf.enemies[re] == nil {
			uf.enemies[re] = make(map[int]bool)
		}
		uf.enemies[re][ra] = true
	}
	uf.enemies[rb] = nil
	return true
}
