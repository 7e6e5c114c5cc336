// Package generator produces candidate pairs for the reconciliation engine.
//
// Generation runs in two passes. The exact pass groups items by identical
// fingerprint and emits every intra-group pair at distance zero without
// touching an index. The fuzzy pass builds a search index over the distinct
// fingerprints and queries each one at the configured threshold, emitting
// inter-group pairs. Group-level deduplication makes the output independent
// of worker scheduling: each unordered pair appears exactly once.
//
// Candidates are proposals only. They carry no relation kind; the store
// decides what happens when a candidate meets an existing row.
package generator

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dupescan/dupescan/internal/index"
	"github.com/dupescan/dupescan/internal/types"
)

// Progress reports fuzzy-pass advancement: done probes out of total.
// Callbacks are throttled; the final call is always (total, total).
type Progress func(done, total int)

// Options configures a generation run.
type Options struct {
	// Threshold is the maximum Hamming distance for fuzzy candidates.
	// Zero disables the fuzzy pass; exact duplicates are still found.
	Threshold int

	// Workers bounds fuzzy-pass query concurrency. Zero means GOMAXPROCS.
	Workers int

	// Index selects the search structure. A zero Bits is filled in from
	// the first item's fingerprint width.
	Index index.Options

	// Progress, when set, receives throttled advancement callbacks.
	Progress Progress

	// ProgressInterval is the minimum time between Progress callbacks.
	ProgressInterval time.Duration
}

// DefaultOptions returns generation options for standard 64-bit codes.
func DefaultOptions() Options {
	return Options{
		Threshold:        10,
		Index:            index.DefaultOptions(),
		ProgressInterval: 200 * time.Millisecond,
	}
}

// group is one distinct fingerprint and every item id that carries it.
type group struct {
	fp  types.Fingerprint
	ids []string
}

// groupHit is a fuzzy match between two groups, identified by ordinal.
type groupHit struct {
	lo, hi uint32
	dist   int
}

// probeResult is the outcome of querying one group's fingerprint.
type probeResult struct {
	hits []groupHit
}

// Generate produces all candidate pairs among the given items whose
// Hamming distance is at most opts.Threshold. Output is sorted by pair
// and contains each unordered pair exactly once.
func Generate(ctx context.Context, items []types.Item, opts Options) ([]types.Candidate, error) {
	if opts.Threshold < 0 {
		return nil, fmt.Errorf("negative threshold %d", opts.Threshold)
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Index.PrefilterSlices == 0 {
		prefilter := opts.Index.Prefilter
		bits := opts.Index.Bits
		opts.Index = index.DefaultOptions()
		opts.Index.Prefilter = prefilter
		opts.Index.Bits = bits
	}
	if opts.Index.Bits == 0 {
		if len(items) > 0 {
			opts.Index.Bits = items[0].Fingerprint.Bits()
		} else {
			opts.Index.Bits = types.FingerprintBits
		}
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 200 * time.Millisecond
	}

	groups := buildGroups(items)

	var candidates []types.Candidate
	for _, g := range groups {
		for x := 0; x < len(g.ids); x++ {
			for y := x + 1; y < len(g.ids); y++ {
				candidates = append(candidates, types.Candidate{
					Pair: types.NewPair(g.ids[x], g.ids[y]),
				})
			}
		}
	}

	if opts.Threshold > 0 && len(groups) >= 2 {
		fuzzy, err := fuzzyPass(ctx, groups, items, opts)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, fuzzy...)
	} else if opts.Progress != nil {
		opts.Progress(len(groups), len(groups))
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Pair.A != candidates[j].Pair.A {
			return candidates[i].Pair.A < candidates[j].Pair.A
		}
		return candidates[i].Pair.B < candidates[j].Pair.B
	})
	return candidates, nil
}

// buildGroups collapses items into distinct-fingerprint groups, preserving
// first-occurrence order.
func buildGroups(items []types.Item) []group {
	byKey := make(map[string]int, len(items))
	var groups []group
	for _, it := range items {
		key := it.Fingerprint.String()
		if gi, ok := byKey[key]; ok {
			groups[gi].ids = append(groups[gi].ids, it.ID)
			continue
		}
		byKey[key] = len(groups)
		groups = append(groups, group{fp: it.Fingerprint, ids: []string{it.ID}})
	}
	return groups
}

// fuzzyPass queries the index once per distinct fingerprint, fanning out
// across workers, and expands group-level hits into id-level candidates.
func fuzzyPass(ctx context.Context, groups []group, items []types.Item, opts Options) ([]types.Candidate, error) {
	idx, err := index.Build(items, opts.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to build index: %w", err)
	}

	ordinals := make(map[string]uint32, len(groups))
	for i, g := range groups {
		ordinals[g.fp.String()] = uint32(i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	results := make(chan probeResult, opts.Workers)

	var workerErr error
	go func() {
		defer close(results)
		for i := range groups {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				matches := idx.Query(groups[i].fp, opts.Threshold)
				hits := make([]groupHit, 0, len(matches))
				for _, m := range matches {
					j := ordinals[m.Fingerprint.String()]
					if j == uint32(i) {
						continue
					}
					lo, hi := uint32(i), j
					if hi < lo {
						lo, hi = hi, lo
					}
					hits = append(hits, groupHit{lo: lo, hi: hi, dist: m.Distance})
				}
				select {
				case results <- probeResult{hits: hits}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}
		workerErr = g.Wait()
	}()

	// Both endpoints of a group pair probe for each other, so every hit
	// arrives twice; the bitmap keeps the first and drops the echo.
	seen := roaring64.New()
	throttle := rate.Sometimes{Interval: opts.ProgressInterval}
	var candidates []types.Candidate
	done, total := 0, len(groups)
	for res := range results {
		for _, h := range res.hits {
			key := uint64(h.lo)<<32 | uint64(h.hi)
			if !seen.CheckedAdd(key) {
				continue
			}
			for _, a := range groups[h.lo].ids {
				for _, b := range groups[h.hi].ids {
					candidates = append(candidates, types.Candidate{
						Pair:     types.NewPair(a, b),
						Distance: h.dist,
					})
				}
			}
		}
		done++
		if opts.Progress != nil {
			throttle.Do(func() { opts.Progress(done, total) })
		}
	}
	if workerErr != nil {
		return nil, workerErr
	}
	if opts.Progress != nil {
		opts.Progress(total, total)
	}
	return candidates, nil
}
