package index

import (
	"github.com/dupescan/dupescan/internal/types"
)

// Flat is a brute-force index: every query scans all entries. It is the
// correctness oracle the other index structures are tested against, and it
// is perfectly adequate for small populations.
type Flat struct {
	entries []flatEntry
	byKey   map[string]int
	bits    int
}

type flatEntry struct {
	fp  types.Fingerprint
	ids []string
}

// NewFlat creates an empty brute-force index.
func NewFlat(bits int) *Flat {
	return &Flat{byKey: make(map[string]int), bits: bits}
}

// Len returns the number of distinct fingerprints indexed.
func (f *Flat) Len() int {
	return len(f.entries)
}

// Add inserts a fingerprint, merging ids when it is already present.
func (f *Flat) Add(fp types.Fingerprint, ids ...string) error {
	if fp.Bits() != f.bits {
		return &ErrWidthMismatch{Expected: f.bits, Actual: fp.Bits()}
	}
	key := fp.String()
	if i, ok := f.byKey[key]; ok {
		f.entries[i].ids = append(f.entries[i].ids, ids...)
		return nil
	}
	f.byKey[key] = len(f.entries)
	f.entries = append(f.entries, flatEntry{fp: fp, ids: ids})
	return nil
}

// Query scans every entry and returns those within radius.
func (f *Flat) Query(fp types.Fingerprint, radius int) []Match {
	if radius < 0 {
		return nil
	}
	var results []Match
	for _, e := range f.entries {
		if d := e.fp.Hamming(fp); d <= radius {
			results = append(results, Match{Fingerprint: e.fp, IDs: e.ids, Distance: d})
		}
	}
	return results
}
