package sqlite

import (
	"context"
	"testing"

	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRoots(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.AddScanRoot(ctx, "/photos"))
	require.NoError(t, store.AddScanRoot(ctx, "/archive"))
	require.NoError(t, store.AddScanRoot(ctx, "/photos"), "re-registering is a no-op")

	roots, err := store.ListScanRoots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/archive", "/photos"}, roots)

	require.NoError(t, store.RemoveScanRoot(ctx, "/archive"))
	require.NoError(t, store.RemoveScanRoot(ctx, "/never-registered"))

	roots, err = store.ListScanRoots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/photos"}, roots)
}

func TestAddScanRootRejectsEmpty(t *testing.T) {
	store := setupTestDB(t)

	err := store.AddScanRoot(context.Background(), "")
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)
}

func TestClusterLifecycle(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	addTestItems(t, store, types.Fingerprint{1}, types.Fingerprint{2}, types.Fingerprint{3})

	id, err := store.CreateCluster(ctx, "vacation shots")
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, store.AddClusterMembers(ctx, id, []string{"1", "2"}))
	require.NoError(t, store.AddClusterMembers(ctx, id, []string{"2", "3"}), "re-adding a member is a no-op")

	clusters, err := store.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, id, clusters[0].ID)
	assert.Equal(t, "vacation shots", clusters[0].Name)
	assert.Equal(t, []string{"1", "2", "3"}, clusters[0].Members)
}

func TestClusterAssignmentsPreferLowestID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	addTestItems(t, store, types.Fingerprint{1}, types.Fingerprint{2})

	first, err := store.CreateCluster(ctx, "")
	require.NoError(t, err)
	second, err := store.CreateCluster(ctx, "")
	require.NoError(t, err)

	require.NoError(t, store.AddClusterMembers(ctx, first, []string{"1"}))
	require.NoError(t, store.AddClusterMembers(ctx, second, []string{"1", "2"}))

	assignments, err := store.ClusterAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, assignments["1"])
	assert.Equal(t, second, assignments["2"])
}

func TestAddClusterMembersRejectsDeadItem(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	addTestItems(t, store, types.Fingerprint{1})

	id, err := store.CreateCluster(ctx, "")
	require.NoError(t, err)

	err = store.AddClusterMembers(ctx, id, []string{"ghost"})
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)
}

func TestDeleteClusterCascadesMembers(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	addTestItems(t, store, types.Fingerprint{1})

	id, err := store.CreateCluster(ctx, "")
	require.NoError(t, err)
	require.NoError(t, store.AddClusterMembers(ctx, id, []string{"1"}))

	require.NoError(t, store.DeleteCluster(ctx, id))

	assignments, err := store.ClusterAssignments(ctx)
	require.NoError(t, err)
	assert.Empty(t, assignments)

	err = store.DeleteCluster(ctx, id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteItemDropsMembership(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	addTestItems(t, store, types.Fingerprint{1}, types.Fingerprint{2})

	id, err := store.CreateCluster(ctx, "")
	require.NoError(t, err)
	require.NoError(t, store.AddClusterMembers(ctx, id, []string{"1", "2"}))

	require.NoError(t, store.DeleteItem(ctx, "1"))

	clusters, err := store.ListClusters(ctx)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.Equal(t, []string{"2"}, clusters[0].Members)
}
