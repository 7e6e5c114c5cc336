package sqlite

import (
	"context"
	"testing"

	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPair(t *testing.T, store *SQLiteStore) types.Pair {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.AddItems(ctx, []types.Item{
		{ID: "1", Fingerprint: types.Fingerprint{0x1}},
		{ID: "2", Fingerprint: types.Fingerprint{0x3}},
	}))
	pair := types.NewPair("1", "2")
	inserted, failed, err := store.UpsertRelationsIfAbsent(ctx, []types.Candidate{{Pair: pair, Distance: 1}})
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Equal(t, 1, inserted)
	return pair
}

func TestUpsertIfAbsentInsertsNewMatch(t *testing.T) {
	store := setupTestDB(t)
	pair := seedPair(t, store)

	kind, ok, err := store.GetKind(context.Background(), pair)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.KindNewMatch, kind)
}

func TestUpsertIfAbsentNeverOverwritesAnnotation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	pair := seedPair(t, store)

	require.NoError(t, store.SetKind(ctx, pair, types.KindNotDuplicate))

	// Rediscovery, at the same and at a different distance.
	for _, distance := range []int{1, 7} {
		inserted, failed, err := store.UpsertRelationsIfAbsent(ctx, []types.Candidate{{Pair: pair, Distance: distance}})
		require.NoError(t, err)
		require.Empty(t, failed)
		assert.Zero(t, inserted, "existing row must not be re-inserted")

		kind, ok, err := store.GetKind(ctx, pair)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, types.KindNotDuplicate, kind, "rediscovery must never regress an annotation")
	}

	// Distance is part of the untouched row too.
	rels, err := store.GetRelations(ctx, []types.Pair{pair})
	require.NoError(t, err)
	assert.Equal(t, 1, rels[pair].Distance)
}

func TestUpsertIfAbsentReportsDeadEndpoints(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, store.AddItems(ctx, []types.Item{
		{ID: "1", Fingerprint: types.Fingerprint{0x1}},
		{ID: "2", Fingerprint: types.Fingerprint{0x3}},
	}))

	good := types.NewPair("1", "2")
	dead := types.NewPair("1", "ghost")
	inserted, failed, err := store.UpsertRelationsIfAbsent(ctx, []types.Candidate{
		{Pair: good, Distance: 1},
		{Pair: dead, Distance: 2},
	})
	require.NoError(t, err, "one dead entry must not abort the batch")
	assert.Equal(t, 1, inserted)
	require.Len(t, failed, 1)
	assert.Equal(t, dead, failed[0].Pair)
	assert.ErrorIs(t, failed[0].Err, storage.ErrConstraintViolation)

	// The valid entry committed.
	_, ok, err := store.GetKind(ctx, good)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpsertIfAbsentRejectsMalformedPairs(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	require.NoError(t, store.AddItems(ctx, []types.Item{{ID: "1", Fingerprint: types.Fingerprint{0x1}}}))

	_, failed, err := store.UpsertRelationsIfAbsent(ctx, []types.Candidate{
		{Pair: types.Pair{A: "1", B: "1"}, Distance: 0},
	})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[0].Err, storage.ErrConstraintViolation)
}

func TestSetKind(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	pair := seedPair(t, store)

	require.NoError(t, store.SetKind(ctx, pair, types.KindSimilar))
	kind, ok, err := store.GetKind(ctx, pair)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.KindSimilar, kind)

	// Explicit reset back to new_match is allowed here, and only here.
	require.NoError(t, store.SetKind(ctx, pair, types.KindNewMatch))
	kind, _, err = store.GetKind(ctx, pair)
	require.NoError(t, err)
	assert.Equal(t, types.KindNewMatch, kind)
}

func TestSetKindErrors(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	pair := seedPair(t, store)

	err := store.SetKind(ctx, types.NewPair("1", "zz"), types.KindSimilar)
	assert.ErrorIs(t, err, storage.ErrNotFound, "annotating a pair with no row")

	err = store.SetKind(ctx, pair, types.RelationKind("duplicate-ish"))
	assert.ErrorIs(t, err, storage.ErrConstraintViolation, "invalid kind")
}

func TestGetKindAbsent(t *testing.T) {
	store := setupTestDB(t)

	kind, ok, err := store.GetKind(context.Background(), types.NewPair("x", "y"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, kind)
}

func TestGetRelationsBatch(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// More pairs than one chunk to exercise the chunked read.
	var items []types.Item
	var cands []types.Candidate
	var pairs []types.Pair
	for i := 0; i < 450; i++ {
		id := itemKey(i)
		items = append(items, types.Item{ID: id, Fingerprint: types.Fingerprint{uint64(i + 1)}})
		if i > 0 {
			p := types.NewPair(itemKey(0), id)
			cands = append(cands, types.Candidate{Pair: p, Distance: i})
			pairs = append(pairs, p)
		}
	}
	require.NoError(t, store.AddItems(ctx, items))
	inserted, failed, err := store.UpsertRelationsIfAbsent(ctx, cands)
	require.NoError(t, err)
	require.Empty(t, failed)
	require.Equal(t, len(cands), inserted)

	// Include one absent pair; it should simply be missing from the map.
	pairs = append(pairs, types.NewPair("never", "seen"))
	rels, err := store.GetRelations(ctx, pairs)
	require.NoError(t, err)
	assert.Len(t, rels, len(cands))
	for _, c := range cands {
		rel, ok := rels[c.Pair]
		require.True(t, ok, "missing pair %s", c.Pair)
		assert.Equal(t, types.KindNewMatch, rel.Kind)
		assert.Equal(t, c.Distance, rel.Distance)
	}
}

// itemKey builds zero-padded ids so lexicographic pair order matches the
// insertion order in batch tests.
func itemKey(i int) string {
	const digits = "0123456789"
	return string([]byte{
		digits[i/100%10],
		digits[i/10%10],
		digits[i%10],
	})
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	pair := seedPair(t, store)

	inserted, failed, err := store.UpsertRelationsIfAbsent(ctx, []types.Candidate{{Pair: pair, Distance: 1}})
	require.NoError(t, err)
	require.Empty(t, failed)
	assert.Zero(t, inserted)

	relations, err := store.ListRelations(ctx)
	require.NoError(t, err)
	assert.Len(t, relations, 1)
}
