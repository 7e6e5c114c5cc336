package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
)

// AddItems upserts a batch of items in a single transaction. Re-adding an
// existing id updates its fingerprint and source root (re-fingerprinting
// after a file changed).
func (s *SQLiteStore) AddItems(ctx context.Context, items []types.Item) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	return storage.WithRetry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classify(fmt.Errorf("failed to begin transaction: %w", err))
		}
		defer tx.Rollback()

		now := time.Now()
		for _, it := range items {
			createdAt := it.CreatedAt
			if createdAt.IsZero() {
				createdAt = now
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO items (id, fingerprint, source_root, created_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					fingerprint = excluded.fingerprint,
					source_root = excluded.source_root
			`, it.ID, it.Fingerprint.String(), it.SourceRoot, createdAt)
			if err != nil {
				return classify(fmt.Errorf("failed to upsert item %s: %w", it.ID, err))
			}
		}
		return classify(tx.Commit())
	})
}

// GetItem retrieves an item by id. Returns nil without error when the item
// does not exist.
func (s *SQLiteStore) GetItem(ctx context.Context, id string) (*types.Item, error) {
	var (
		item  types.Item
		fpHex string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, source_root, created_at
		FROM items
		WHERE id = ?
	`, id).Scan(&item.ID, &fpHex, &item.SourceRoot, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get item: %w", err))
	}

	item.Fingerprint, err = types.ParseFingerprint(fpHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt fingerprint for item %s: %w", id, err)
	}
	return &item, nil
}

// ListItems returns all live items, optionally restricted to a scope of
// source roots. Results are ordered by id for deterministic output.
func (s *SQLiteStore) ListItems(ctx context.Context, scope types.Scope) ([]types.Item, error) {
	query := `SELECT id, fingerprint, source_root, created_at FROM items`
	var args []interface{}
	if !scope.IsEmpty() {
		placeholders := strings.Repeat("?,", len(scope.Roots))
		query += fmt.Sprintf(" WHERE source_root IN (%s)", placeholders[:len(placeholders)-1])
		for _, r := range scope.Roots {
			args = append(args, r)
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list items: %w", err))
	}
	defer rows.Close()

	var items []types.Item
	for rows.Next() {
		var (
			item  types.Item
			fpHex string
		)
		if err := rows.Scan(&item.ID, &fpHex, &item.SourceRoot, &item.CreatedAt); err != nil {
			return nil, classify(fmt.Errorf("failed to scan item: %w", err))
		}
		item.Fingerprint, err = types.ParseFingerprint(fpHex)
		if err != nil {
			return nil, fmt.Errorf("corrupt fingerprint for item %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DeleteItem removes an item and, through the schema's ON DELETE CASCADE,
// every relation and cluster membership referencing it, all inside one
// transaction. There is no intermediate state where the item is gone but
// its relations remain.
func (s *SQLiteStore) DeleteItem(ctx context.Context, id string) error {
	return storage.WithRetry(ctx, s.retry, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return classify(fmt.Errorf("failed to begin transaction: %w", err))
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
		if err != nil {
			return classify(fmt.Errorf("failed to delete item %s: %w", id, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if n == 0 {
			return fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
		}
		return classify(tx.Commit())
	})
}
