package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/dupescan/dupescan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func genItems(t *testing.T, n int, seed int64, dupEvery int) []types.Item {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	items := make([]types.Item, 0, n)
	for i := 0; i < n; i++ {
		var fp types.Fingerprint
		if dupEvery > 0 && i%dupEvery == 0 && i > 0 {
			fp = append(types.Fingerprint(nil), items[i-1].Fingerprint...)
		} else {
			fp = types.Fingerprint{rng.Uint64()}
		}
		items = append(items, types.Item{ID: fmt.Sprintf("item-%03d", i), Fingerprint: fp})
	}
	return items
}

// bruteForce returns every unordered pair within threshold, sorted.
func bruteForce(items []types.Item, threshold int) []types.Candidate {
	var out []types.Candidate
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			d := items[i].Fingerprint.Hamming(items[j].Fingerprint)
			if d <= threshold {
				out = append(out, types.Candidate{
					Pair:     types.NewPair(items[i].ID, items[j].ID),
					Distance: d,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pair.A != out[j].Pair.A {
			return out[i].Pair.A < out[j].Pair.A
		}
		return out[i].Pair.B < out[j].Pair.B
	})
	return out
}

func TestGenerateMatchesBruteForce(t *testing.T) {
	items := genItems(t, 120, 42, 7)

	for _, threshold := range []int{0, 1, 5, 12, 30} {
		t.Run(fmt.Sprintf("threshold=%d", threshold), func(t *testing.T) {
			got, err := Generate(context.Background(), items, Options{Threshold: threshold})
			require.NoError(t, err)
			assert.Equal(t, bruteForce(items, threshold), got)
		})
	}
}

func TestGenerateExactDuplicatesWithoutFuzzyPass(t *testing.T) {
	items := []types.Item{
		{ID: "a", Fingerprint: types.Fingerprint{0xff}},
		{ID: "b", Fingerprint: types.Fingerprint{0xff}},
		{ID: "c", Fingerprint: types.Fingerprint{0xff}},
		{ID: "d", Fingerprint: types.Fingerprint{0x00}},
	}

	got, err := Generate(context.Background(), items, Options{Threshold: 0})
	require.NoError(t, err)
	require.Len(t, got, 3, "three intra-group pairs among a, b, c")
	for _, c := range got {
		assert.Zero(t, c.Distance)
		assert.NoError(t, c.Pair.Validate())
	}
}

func TestGenerateEachPairOnce(t *testing.T) {
	items := genItems(t, 200, 7, 5)

	got, err := Generate(context.Background(), items, Options{Threshold: 20, Workers: 4})
	require.NoError(t, err)

	seen := make(map[types.Pair]bool, len(got))
	for _, c := range got {
		require.False(t, seen[c.Pair], "pair %s emitted twice", c.Pair)
		seen[c.Pair] = true
	}
}

func TestGenerateEmptyAndSingle(t *testing.T) {
	got, err := Generate(context.Background(), nil, Options{Threshold: 10})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Generate(context.Background(), []types.Item{
		{ID: "only", Fingerprint: types.Fingerprint{1}},
	}, Options{Threshold: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerateNegativeThreshold(t *testing.T) {
	_, err := Generate(context.Background(), nil, Options{Threshold: -1})
	assert.Error(t, err)
}

func TestGenerateCancellation(t *testing.T) {
	items := genItems(t, 50, 3, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, items, Options{Threshold: 10})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateProgressFinishes(t *testing.T) {
	items := genItems(t, 40, 11, 0)

	var lastDone, lastTotal int
	_, err := Generate(context.Background(), items, Options{
		Threshold: 5,
		Progress:  func(done, total int) { lastDone, lastTotal = done, total },
	})
	require.NoError(t, err)
	assert.Equal(t, lastTotal, lastDone, "final callback reports completion")
	assert.Equal(t, 40, lastTotal)
}
