package index

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/dupescan/dupescan/internal/types"
	"github.com/stretchr/testify/require"
)

// genFingerprints produces deterministic fingerprint populations for the
// oracle tests. "clustered" concentrates codes around a few centers so that
// queries return many hits; "uniform" is the well-distributed case.
func genFingerprints(t *testing.T, dist string, n, words int, seed int64) []types.Fingerprint {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	fps := make([]types.Fingerprint, 0, n)

	switch dist {
	case "uniform":
		for i := 0; i < n; i++ {
			fp := make(types.Fingerprint, words)
			for w := range fp {
				fp[w] = rng.Uint64()
			}
			fps = append(fps, fp)
		}
	case "clustered":
		centers := make([]types.Fingerprint, 4)
		for c := range centers {
			fp := make(types.Fingerprint, words)
			for w := range fp {
				fp[w] = rng.Uint64()
			}
			centers[c] = fp
		}
		for i := 0; i < n; i++ {
			base := centers[rng.Intn(len(centers))]
			fp := make(types.Fingerprint, words)
			copy(fp, base)
			// Flip a handful of random bits.
			for f := rng.Intn(6); f > 0; f-- {
				bit := rng.Intn(words * 64)
				fp[bit/64] ^= 1 << uint(bit%64)
			}
			fps = append(fps, fp)
		}
	case "duplicate-heavy":
		distinct := n / 4
		if distinct < 1 {
			distinct = 1
		}
		pool := genFingerprints(t, "uniform", distinct, words, seed+1)
		for i := 0; i < n; i++ {
			fps = append(fps, pool[rng.Intn(len(pool))])
		}
	default:
		t.Fatalf("unknown distribution %q", dist)
	}
	return fps
}

// sortMatches normalizes a result set so equivalence checks ignore order.
func sortMatches(ms []Match) []Match {
	out := make([]Match, len(ms))
	copy(out, ms)
	for i := range out {
		ids := make([]string, len(out[i].IDs))
		copy(ids, out[i].IDs)
		sort.Strings(ids)
		out[i].IDs = ids
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Fingerprint.String() < out[j].Fingerprint.String()
	})
	return out
}

func buildAll(t *testing.T, fps []types.Fingerprint, bits int) (oracle *Flat, tree *BKTree, mih *MIH) {
	t.Helper()
	oracle = NewFlat(bits)
	tree = NewBKTree(bits)
	m, err := NewMIH(bits, 8)
	require.NoError(t, err)

	for i, fp := range fps {
		id := fmt.Sprintf("item-%d", i)
		require.NoError(t, oracle.Add(fp, id))
		require.NoError(t, tree.Add(fp, id))
		require.NoError(t, m.Add(fp, id))
	}
	return oracle, tree, m
}

// TestOracleEquivalence checks that the BK-tree and the MIH prefilter
// return exactly the brute-force result set for every probe and radius,
// across fingerprint distributions.
func TestOracleEquivalence(t *testing.T) {
	for _, dist := range []string{"uniform", "clustered", "duplicate-heavy"} {
		t.Run(dist, func(t *testing.T) {
			fps := genFingerprints(t, dist, 300, 1, 42)
			oracle, tree, mih := buildAll(t, fps, 64)

			// Radii both below and above the slice count, to exercise the
			// MIH bucket path and its fallback path.
			for _, radius := range []int{0, 2, 5, 7, 10, 20} {
				for i := 0; i < len(fps); i += 7 {
					want := sortMatches(oracle.Query(fps[i], radius))
					gotTree := sortMatches(tree.Query(fps[i], radius))
					gotMIH := sortMatches(mih.Query(fps[i], radius))

					require.Equal(t, want, gotTree, "tree diverged from oracle (dist=%s radius=%d probe=%d)", dist, radius, i)
					require.Equal(t, want, gotMIH, "mih diverged from oracle (dist=%s radius=%d probe=%d)", dist, radius, i)
				}
			}
		})
	}
}

func TestOracleEquivalenceWideFingerprints(t *testing.T) {
	fps := genFingerprints(t, "clustered", 200, 4, 7) // 256-bit codes
	oracle := NewFlat(256)
	tree := NewBKTree(256)
	for i, fp := range fps {
		id := fmt.Sprintf("item-%d", i)
		require.NoError(t, oracle.Add(fp, id))
		require.NoError(t, tree.Add(fp, id))
	}
	for _, radius := range []int{0, 3, 12} {
		for i := 0; i < len(fps); i += 11 {
			require.Equal(t,
				sortMatches(oracle.Query(fps[i], radius)),
				sortMatches(tree.Query(fps[i], radius)))
		}
	}
}

func TestBuildSelectsStructure(t *testing.T) {
	items := []types.Item{
		{ID: "1", Fingerprint: types.Fingerprint{0x1}},
		{ID: "2", Fingerprint: types.Fingerprint{0x3}},
		{ID: "3", Fingerprint: types.Fingerprint{0x1}}, // shares a node with item 1
	}

	opts := DefaultOptions()
	idx, err := Build(items, opts)
	require.NoError(t, err)
	require.IsType(t, &BKTree{}, idx)
	require.Equal(t, 2, idx.Len(), "identical fingerprints must collapse into one node")

	opts.Prefilter = true
	opts.PrefilterMinItems = 1
	idx, err = Build(items, opts)
	require.NoError(t, err)
	require.IsType(t, &MIH{}, idx)
	require.Equal(t, 2, idx.Len())

	// Shared node carries both ids.
	ms := idx.Query(types.Fingerprint{0x1}, 0)
	require.Len(t, ms, 1)
	require.ElementsMatch(t, []string{"1", "3"}, ms[0].IDs)
}

func TestQueryEdgeCases(t *testing.T) {
	tree := NewBKTree(64)
	require.Empty(t, tree.Query(types.Fingerprint{0x1}, 5), "empty tree returns nothing")

	require.NoError(t, tree.Add(types.Fingerprint{0x1}, "a"))
	require.Empty(t, tree.Query(types.Fingerprint{0x1}, -1), "negative radius returns nothing")

	ms := tree.Query(types.Fingerprint{0x1}, 0)
	require.Len(t, ms, 1)
	require.Equal(t, 0, ms[0].Distance)
}

func TestAddRejectsWidthMismatch(t *testing.T) {
	tree := NewBKTree(64)
	err := tree.Add(types.Fingerprint{0x1, 0x2}, "a")
	require.Error(t, err)
	var wm *ErrWidthMismatch
	require.ErrorAs(t, err, &wm)
	require.Equal(t, 64, wm.Expected)
	require.Equal(t, 128, wm.Actual)
}

func TestNewMIHValidation(t *testing.T) {
	_, err := NewMIH(64, 1)
	require.Error(t, err)
	_, err = NewMIH(64, 7) // does not divide 64
	require.Error(t, err)
	_, err = NewMIH(64, 8)
	require.NoError(t, err)
}
