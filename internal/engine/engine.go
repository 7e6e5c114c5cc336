// Package engine is the top-level facade over the duplicate relation
// pipeline: ingest fingerprinted items, find duplicates, annotate pairs,
// project clusters. It wires the candidate generator, the reconciler, and
// the cluster projector over one relation store.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dupescan/dupescan/internal/cluster"
	"github.com/dupescan/dupescan/internal/config"
	"github.com/dupescan/dupescan/internal/generator"
	"github.com/dupescan/dupescan/internal/index"
	"github.com/dupescan/dupescan/internal/reconcile"
	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
)

// Engine coordinates discovery, reconciliation, and clustering.
type Engine struct {
	store  storage.Store
	rec    *reconcile.Reconciler
	proj   *cluster.Projector
	cfg    *config.Config
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine over the given store. A nil cfg means defaults.
func New(store storage.Store, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		store:  store,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	e.rec = reconcile.New(store, reconcile.WithLogger(e.logger))
	e.proj = cluster.New(store, cluster.WithLogger(e.logger))
	return e, nil
}

// Ingest stores fingerprinted items. Items without an id are assigned a
// fresh one; source roots seen for the first time are registered. Returns
// the ids in input order.
func (e *Engine) Ingest(ctx context.Context, items []types.Item) ([]string, error) {
	// Work on a copy; id assignment must not reach into the caller's slice.
	items = append([]types.Item(nil), items...)

	ids := make([]string, len(items))
	roots := make(map[string]bool)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		ids[i] = items[i].ID
		if items[i].Fingerprint.Bits() != e.cfg.FingerprintBits {
			return nil, fmt.Errorf("item %s: fingerprint is %d bits, expected %d",
				items[i].ID, items[i].Fingerprint.Bits(), e.cfg.FingerprintBits)
		}
		if items[i].SourceRoot != "" {
			roots[items[i].SourceRoot] = true
		}
	}

	if err := e.store.AddItems(ctx, items); err != nil {
		return nil, err
	}
	for root := range roots {
		if err := e.store.AddScanRoot(ctx, root); err != nil {
			return nil, err
		}
	}
	e.logger.Info("ingested items", "count", len(items))
	return ids, nil
}

// FindOptions controls one discovery run.
type FindOptions struct {
	// Threshold overrides the configured maximum distance when positive.
	Threshold int

	// Scope restricts discovery to items from the given source roots.
	Scope types.Scope

	// IncludeAnnotated surfaces already-reviewed pairs alongside fresh
	// matches.
	IncludeAnnotated bool

	// Progress, when set, receives throttled advancement callbacks.
	Progress generator.Progress
}

// Stats summarizes one discovery run.
type Stats struct {
	Items      int
	Candidates int
	Inserted   int
}

// Result is a discovery run's visible relations plus bookkeeping.
type Result struct {
	Relations []types.Relation
	Warnings  []reconcile.Warning
	Stats     Stats
}

// FindDuplicates runs a full discovery pass: generate candidates among the
// in-scope items, reconcile them against the store, and return the visible
// relations with their authoritative kinds.
func (e *Engine) FindDuplicates(ctx context.Context, opts FindOptions) (*Result, error) {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = e.cfg.Threshold
	}
	if threshold > e.cfg.FingerprintBits {
		return nil, fmt.Errorf("threshold %d exceeds fingerprint width %d", threshold, e.cfg.FingerprintBits)
	}

	items, err := e.store.ListItems(ctx, opts.Scope)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	candidates, err := generator.Generate(ctx, items, generator.Options{
		Threshold: threshold,
		Workers:   e.cfg.Workers,
		Index: index.Options{
			Bits:              e.cfg.FingerprintBits,
			Prefilter:         e.cfg.Prefilter,
			PrefilterSlices:   e.cfg.PrefilterSlices,
			PrefilterMinItems: e.cfg.PrefilterMinItems,
		},
		Progress: opts.Progress,
	})
	if err != nil {
		return nil, err
	}

	rr, err := e.rec.Reconcile(ctx, candidates, opts.IncludeAnnotated)
	if err != nil {
		return nil, err
	}

	e.logger.Info("discovery pass complete",
		"items", len(items),
		"candidates", len(candidates),
		"inserted", rr.Inserted,
		"visible", len(rr.Relations),
		"warnings", len(rr.Warnings))

	return &Result{
		Relations: rr.Relations,
		Warnings:  rr.Warnings,
		Stats: Stats{
			Items:      len(items),
			Candidates: len(candidates),
			Inserted:   rr.Inserted,
		},
	}, nil
}

// Annotate records a user decision for a discovered pair. The pair must
// already have a relation row; annotating an undiscovered pair is an error.
func (e *Engine) Annotate(ctx context.Context, a, b string, kind types.RelationKind) error {
	if !kind.IsValid() {
		return fmt.Errorf("invalid relation kind %q", kind)
	}
	pair := types.NewPair(a, b)
	if err := e.store.SetKind(ctx, pair, kind); err != nil {
		return err
	}
	e.logger.Info("pair annotated", "pair", pair.String(), "kind", string(kind))
	return nil
}

// ItemDeleted removes an item and atomically cascades over every relation
// and cluster membership that references it.
func (e *Engine) ItemDeleted(ctx context.Context, id string) error {
	if err := e.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	e.logger.Info("item deleted", "id", id)
	return nil
}

// IntegrityCheck sweeps for relations with dead endpoints. Zero removed is
// the healthy outcome; anything else means a deletion path bypassed the
// cascade.
func (e *Engine) IntegrityCheck(ctx context.Context) (int, error) {
	removed, err := e.store.SweepOrphans(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		return removed, fmt.Errorf("removed %d orphaned relation(s): %w",
			removed, storage.ErrIntegrityAnomaly)
	}
	return 0, nil
}

// ProjectClusters derives sticky clusters from annotated relations and
// identical fingerprints.
func (e *Engine) ProjectClusters(ctx context.Context, scope types.Scope) ([]types.ClusterInfo, error) {
	return e.proj.Project(ctx, scope, cluster.DefaultOptions())
}

// Items lists stored items, optionally restricted to a scope.
func (e *Engine) Items(ctx context.Context, scope types.Scope) ([]types.Item, error) {
	return e.store.ListItems(ctx, scope)
}

// Relations lists every stored relation.
func (e *Engine) Relations(ctx context.Context) ([]types.Relation, error) {
	return e.store.ListRelations(ctx)
}

// Clusters lists persisted clusters with their members.
func (e *Engine) Clusters(ctx context.Context) ([]types.ClusterInfo, error) {
	return e.store.ListClusters(ctx)
}

// AddRoot registers a source location for scoped operations.
func (e *Engine) AddRoot(ctx context.Context, path string) error {
	return e.store.AddScanRoot(ctx, path)
}

// RemoveRoot unregisters a source location.
func (e *Engine) RemoveRoot(ctx context.Context, path string) error {
	return e.store.RemoveScanRoot(ctx, path)
}

// Roots lists registered source locations.
func (e *Engine) Roots(ctx context.Context) ([]string, error) {
	return e.store.ListScanRoots(ctx)
}

// Close releases the underlying store.
func (e *Engine) Close() error {
	return e.store.Close()
}
