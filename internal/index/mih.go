package index

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/dupescan/dupescan/internal/types"
)

// MIH is a multi-index-hashing prefilter for very large fingerprint
// populations. The fingerprint is partitioned into slices of equal width,
// each with its own exact-match bucket table. A query fans out across the
// slice tables, unions the bucket contents as coarse candidates, then
// verifies each candidate by exact Hamming distance.
//
// Exactness rests on the pigeonhole principle: two codes within distance t
// split across k slices must agree exactly on at least one slice whenever
// t < k. Query therefore uses the bucket path only for radius < slices and
// falls back to verifying every entry otherwise, so the result set is
// always identical to the tree's.
type MIH struct {
	entries   []flatEntry
	byKey     map[string]int
	buckets   []map[uint64]*roaring.Bitmap // per slice: slice value -> entry ordinals
	bits      int
	slices    int
	sliceBits int
}

// NewMIH creates an empty prefilter index. The slice count must divide the
// fingerprint width and each slice must fit in 64 bits.
func NewMIH(bits, slices int) (*MIH, error) {
	if slices < 2 {
		return nil, fmt.Errorf("mih requires at least 2 slices (got %d)", slices)
	}
	if bits%slices != 0 {
		return nil, fmt.Errorf("slice count %d must divide fingerprint width %d", slices, bits)
	}
	sliceBits := bits / slices
	if sliceBits > 64 {
		return nil, fmt.Errorf("slice width %d exceeds 64 bits", sliceBits)
	}
	buckets := make([]map[uint64]*roaring.Bitmap, slices)
	for i := range buckets {
		buckets[i] = make(map[uint64]*roaring.Bitmap)
	}
	return &MIH{
		byKey:     make(map[string]int),
		buckets:   buckets,
		bits:      bits,
		slices:    slices,
		sliceBits: sliceBits,
	}, nil
}

// Len returns the number of distinct fingerprints indexed.
func (m *MIH) Len() int {
	return len(m.entries)
}

// Add inserts a fingerprint, merging ids when it is already present.
func (m *MIH) Add(fp types.Fingerprint, ids ...string) error {
	if fp.Bits() != m.bits {
		return &ErrWidthMismatch{Expected: m.bits, Actual: fp.Bits()}
	}
	key := fp.String()
	if i, ok := m.byKey[key]; ok {
		m.entries[i].ids = append(m.entries[i].ids, ids...)
		return nil
	}
	ord := uint32(len(m.entries))
	m.byKey[key] = len(m.entries)
	m.entries = append(m.entries, flatEntry{fp: fp, ids: ids})

	for s := 0; s < m.slices; s++ {
		v := m.slice(fp, s)
		bm, ok := m.buckets[s][v]
		if !ok {
			bm = roaring.New()
			m.buckets[s][v] = bm
		}
		bm.Add(ord)
	}
	return nil
}

// Query returns all fingerprints within radius of the probe.
func (m *MIH) Query(fp types.Fingerprint, radius int) []Match {
	if radius < 0 {
		return nil
	}

	// The pigeonhole guarantee only covers radius < slices; beyond that,
	// verify everything rather than risk recall loss.
	if radius >= m.slices {
		var results []Match
		for _, e := range m.entries {
			if d := e.fp.Hamming(fp); d <= radius {
				results = append(results, Match{Fingerprint: e.fp, IDs: e.ids, Distance: d})
			}
		}
		return results
	}

	candidates := roaring.New()
	for s := 0; s < m.slices; s++ {
		if bm, ok := m.buckets[s][m.slice(fp, s)]; ok {
			candidates.Or(bm)
		}
	}

	var results []Match
	it := candidates.Iterator()
	for it.HasNext() {
		e := m.entries[it.Next()]
		if d := e.fp.Hamming(fp); d <= radius {
			results = append(results, Match{Fingerprint: e.fp, IDs: e.ids, Distance: d})
		}
	}
	return results
}

// slice extracts the s-th slice of the fingerprint as a uint64. Slices may
// straddle a word boundary.
func (m *MIH) slice(fp types.Fingerprint, s int) uint64 {
	start := s * m.sliceBits
	word := start / 64
	off := uint(start % 64)

	v := fp[word] >> off
	if int(off)+m.sliceBits > 64 && word+1 < len(fp) {
		v |= fp[word+1] << (64 - off)
	}
	if m.sliceBits < 64 {
		v &= (1 << uint(m.sliceBits)) - 1
	}
	return v
}
