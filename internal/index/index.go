// Package index provides fuzzy-matching search structures over fixed-width
// binary fingerprints. All implementations answer bounded-distance queries:
// given a probe fingerprint and a maximum Hamming distance, return every
// indexed fingerprint within that radius.
//
// Indexes are built once per scan pass and are immutable afterwards, which
// makes concurrent queries safe without locking. There is no deletion:
// removed items are simply excluded from the next build.
//
// Every implementation must return result sets identical to a brute-force
// scan (the Flat index); the tree and prefilter are purely asymptotic
// optimizations.
package index

import (
	"fmt"

	"github.com/dupescan/dupescan/internal/types"
)

// Match is a single query hit: one distinct fingerprint, the ids of all
// items sharing it, and its Hamming distance from the probe.
type Match struct {
	Fingerprint types.Fingerprint
	IDs         []string
	Distance    int
}

// Index is a search structure over binary fingerprints. One index node
// exists per distinct fingerprint; items with identical fingerprints share
// a node.
type Index interface {
	// Add inserts a fingerprint with the given item ids. Adding a
	// fingerprint that is already present merges the ids into the
	// existing node.
	Add(fp types.Fingerprint, ids ...string) error

	// Query returns all indexed fingerprints within radius of the probe.
	// The result is finite and one-shot; order is unspecified.
	Query(fp types.Fingerprint, radius int) []Match

	// Len returns the number of distinct fingerprints indexed.
	Len() int
}

// ErrWidthMismatch indicates a fingerprint whose bit width does not match
// the index's configured width.
type ErrWidthMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrWidthMismatch) Error() string {
	return fmt.Sprintf("fingerprint width mismatch: expected %d bits, got %d", e.Expected, e.Actual)
}

// Options controls which index structure Build selects.
type Options struct {
	// Bits is the fingerprint width. Every added fingerprint must match.
	Bits int

	// Prefilter enables the multi-index-hashing layer for large
	// populations. It is exact only for query radii below PrefilterSlices;
	// wider queries fall back to a full verify pass.
	Prefilter bool

	// PrefilterSlices is the number of equal-width fingerprint slices.
	PrefilterSlices int

	// PrefilterMinItems is the minimum number of distinct fingerprints
	// before the prefilter is preferred over the tree.
	PrefilterMinItems int
}

// DefaultOptions returns index options for standard 64-bit pHash codes.
func DefaultOptions() Options {
	return Options{
		Bits:              types.FingerprintBits,
		Prefilter:         false,
		PrefilterSlices:   8,
		PrefilterMinItems: 50000,
	}
}

// Build constructs an index over the full item set. Items sharing a
// fingerprint collapse into one node.
func Build(items []types.Item, opts Options) (Index, error) {
	// Group by distinct fingerprint first so the structure choice can see
	// the real population size.
	type group struct {
		fp  types.Fingerprint
		ids []string
	}
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

	var idx Index
	if opts.Prefilter && len(groups) >= opts.PrefilterMinItems {
		m, err := NewMIH(opts.Bits, opts.PrefilterSlices)
		if err != nil {
			return nil, err
		}
		idx = m
	} else {
		idx = NewBKTree(opts.Bits)
	}

	for _, g := range groups {
		if err := idx.Add(g.fp, g.ids...); err != nil {
			return nil, err
		}
	}
	return idx, nil
}
