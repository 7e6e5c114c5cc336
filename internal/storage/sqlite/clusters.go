package sqlite

import (
	"context"
	"fmt"

	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
)

// AddScanRoot registers a source location.
func (s *SQLiteStore) AddScanRoot(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty scan root", storage.ErrConstraintViolation)
	}
	return storage.WithRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO scan_roots (path) VALUES (?)`, path)
		return classify(err)
	})
}

// RemoveScanRoot unregisters a source location. Removing an unknown root
// is not an error.
func (s *SQLiteStore) RemoveScanRoot(ctx context.Context, path string) error {
	return storage.WithRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM scan_roots WHERE path = ?`, path)
		return classify(err)
	})
}

// ListScanRoots returns all registered source locations.
func (s *SQLiteStore) ListScanRoots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path FROM scan_roots ORDER BY path`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list scan roots: %w", err))
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, classify(err)
		}
		roots = append(roots, p)
	}
	return roots, rows.Err()
}

// CreateCluster creates an empty sticky cluster and returns its id.
func (s *SQLiteStore) CreateCluster(ctx context.Context, name string) (int64, error) {
	var id int64
	err := storage.WithRetry(ctx, s.retry, func() error {
		res, err := s.db.ExecContext(ctx, `INSERT INTO clusters (name) VALUES (?)`, name)
		if err != nil {
			return classify(fmt.Errorf("failed to create cluster: %w", err))
		}
		id, err = res.LastInsertId()
		return classify(err)
	})
	return id, err
}

// AddClusterMembers adds items to a cluster in one transaction. Existing
// memberships are left alone; referencing a non-live item or unknown
// cluster is a constraint violation.
func (s *SQLiteStore) AddClusterMembers(ctx context.Context, clusterID int64, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	return storage.WithRetry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classify(fmt.Errorf("failed to begin transaction: %w", err))
		}
		defer tx.Rollback()

		for _, id := range itemIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO cluster_members (cluster_id, item_id) VALUES (?, ?)
			`, clusterID, id)
			if err != nil {
				return classify(fmt.Errorf("failed to add member %s to cluster %d: %w", id, clusterID, err))
			}
		}
		return classify(tx.Commit())
	})
}

// ClusterAssignments returns the current item -> cluster mapping. An item
// held by multiple clusters reports the lowest cluster id.
func (s *SQLiteStore) ClusterAssignments(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, MIN(cluster_id) FROM cluster_members GROUP BY item_id
	`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read cluster assignments: %w", err))
	}
	defer rows.Close()

	assignments := make(map[string]int64)
	for rows.Next() {
		var (
			itemID    string
			clusterID int64
		)
		if err := rows.Scan(&itemID, &clusterID); err != nil {
			return nil, classify(err)
		}
		assignments[itemID] = clusterID
	}
	return assignments, rows.Err()
}

// ListClusters returns all clusters with their member item ids.
func (s *SQLiteStore) ListClusters(ctx context.Context) ([]types.ClusterInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM clusters ORDER BY id`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list clusters: %w", err))
	}
	defer rows.Close()

	var clusters []types.ClusterInfo
	byID := make(map[int64]int)
	for rows.Next() {
		var c types.ClusterInfo
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, classify(err)
		}
		byID[c.ID] = len(clusters)
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	memberRows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, item_id FROM cluster_members ORDER BY cluster_id, item_id
	`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list cluster members: %w", err))
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var (
			clusterID int64
			itemID    string
		)
		if err := memberRows.Scan(&clusterID, &itemID); err != nil {
			return nil, classify(err)
		}
		if i, ok := byID[clusterID]; ok {
			clusters[i].Members = append(clusters[i].Members, itemID)
		}
	}
	return clusters, memberRows.Err()
}

// DeleteCluster removes a cluster and its memberships (cascade).
func (s *SQLiteStore) DeleteCluster(ctx context.Context, clusterID int64) error {
	return storage.WithRetry(ctx, s.retry, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM clusters WHERE id = ?`, clusterID)
		if err != nil {
			return classify(fmt.Errorf("failed to delete cluster %d: %w", clusterID, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if n == 0 {
			return fmt.Errorf("cluster %d: %w", clusterID, storage.ErrNotFound)
		}
		return nil
	})
}
