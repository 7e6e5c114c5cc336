// Package reconcile merges freshly generated candidates with the durable
// relation store and produces the relations a caller should see.
//
// The store is the single source of truth. After the candidate batch is
// written, every pair's kind is re-read from the store rather than assumed
// from the write: a pair the user annotated last year surfaces with that
// annotation, never as a fresh match. Partial failures degrade to warnings
// and the affected pairs are excluded from the result. A pair whose
// authoritative kind could not be read is dropped, not defaulted.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
)

// readChunk caps how many pairs one authoritative re-read covers, so a
// single failed read degrades one chunk instead of the whole run.
const readChunk = 500

// Warning records a non-fatal failure during reconciliation and the pairs
// it excluded from the result.
type Warning struct {
	Pairs []types.Pair
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("%d pair(s) excluded: %v", len(w.Pairs), w.Err)
}

// Result is the outcome of one reconciliation run.
type Result struct {
	// Relations are the visible pairs with their authoritative kinds.
	// Distance reflects this run's measurement; the stored row keeps the
	// distance from first discovery.
	Relations []types.Relation

	// Warnings lists pairs excluded by partial failures.
	Warnings []Warning

	// Inserted is how many pairs were new to the store this run.
	Inserted int
}

// Reconciler writes candidate batches and re-reads their authoritative state.
type Reconciler struct {
	store  storage.Store
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for warning reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// New creates a Reconciler backed by the given store.
func New(store storage.Store, opts ...Option) *Reconciler {
	r := &Reconciler{store: store, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Reconcile writes the candidate batch, re-reads authoritative kinds, and
// applies the visibility filter. With includeAnnotated false only
// unreviewed (new_match) pairs are returned; with it true, annotated pairs
// are returned as well, carrying their annotations.
func (r *Reconciler) Reconcile(ctx context.Context, candidates []types.Candidate, includeAnnotated bool) (*Result, error) {
	result := &Result{}
	if len(candidates) == 0 {
		return result, nil
	}

	inserted, entryErrs, err := r.store.UpsertRelationsIfAbsent(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to write candidate batch: %w", err)
	}
	result.Inserted = inserted

	excluded := make(map[types.Pair]bool, len(entryErrs))
	for _, ee := range entryErrs {
		excluded[ee.Pair] = true
		result.Warnings = append(result.Warnings, Warning{Pairs: []types.Pair{ee.Pair}, Err: ee.Err})
		r.logger.Warn("candidate rejected by store", "pair", ee.Pair.String(), "error", ee.Err)
	}

	var live []types.Candidate
	for _, c := range candidates {
		if !excluded[c.Pair] {
			live = append(live, c)
		}
	}

	for start := 0; start < len(live); start += readChunk {
		end := start + readChunk
		if end > len(live) {
			end = len(live)
		}
		chunk := live[start:end]

		pairs := make([]types.Pair, len(chunk))
		for i, c := range chunk {
			pairs[i] = c.Pair
		}
		rows, err := r.store.GetRelations(ctx, pairs)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			result.Warnings = append(result.Warnings, Warning{Pairs: pairs, Err: err})
			r.logger.Warn("authoritative re-read failed for chunk",
				"pairs", len(pairs), "error", err)
			continue
		}

		for _, c := range chunk {
			row, ok := rows[c.Pair]
			if !ok {
				// Written moments ago but already gone: a concurrent item
				// deletion cascaded over it. Trust the store.
				continue
			}
			if !includeAnnotated && row.Kind.Annotated() {
				continue
			}
			result.Relations = append(result.Relations, types.Relation{
				Pair:      row.Pair,
				Kind:      row.Kind,
				Distance:  c.Distance,
				CreatedAt: row.CreatedAt,
			})
		}
	}
	return result, nil
}
