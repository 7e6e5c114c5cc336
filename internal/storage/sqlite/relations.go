package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dupescan/dupescan/internal/storage"
	"github.com/dupescan/dupescan/internal/types"
)

// getRelationsChunk caps how many pairs one batch-read statement matches.
const getRelationsChunk = 200

// UpsertRelationsIfAbsent inserts candidate pairs with kind new_match.
// Existing rows are left completely untouched (not even distance is
// updated), which is what guarantees rediscovery can never overwrite an
// annotation. Candidates referencing non-live items are reported in the
// returned entry errors while the valid remainder still commits; the whole
// batch runs in one immediate transaction and rolls back entirely on
// storage failure.
func (s *SQLiteStore) UpsertRelationsIfAbsent(ctx context.Context, candidates []types.Candidate) (int, []storage.EntryError, error) {
	if len(candidates) == 0 {
		return 0, nil, nil
	}

	// Validate shape up front; malformed pairs never reach the database.
	var valid []types.Candidate
	var failed []storage.EntryError
	for _, c := range candidates {
		if err := c.Pair.Validate(); err != nil {
			failed = append(failed, storage.EntryError{Pair: c.Pair, Err: fmt.Errorf("%w: %v", storage.ErrConstraintViolation, err)})
			continue
		}
		if c.Distance < 0 {
			failed = append(failed, storage.EntryError{Pair: c.Pair, Err: fmt.Errorf("%w: negative distance %d", storage.ErrConstraintViolation, c.Distance)})
			continue
		}
		valid = append(valid, c)
	}

	inserted := 0
	var notLive []storage.EntryError
	err := storage.WithRetry(ctx, s.retry, func() error {
		// Reset per attempt; a retried transaction re-derives both.
		inserted = 0
		notLive = notLive[:0]

		// A dedicated connection lets us run BEGIN IMMEDIATE, acquiring
		// the write lock up front so the liveness check and the inserts
		// see one consistent database state.
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return classify(fmt.Errorf("failed to acquire connection: %w", err))
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return classify(fmt.Errorf("failed to begin immediate transaction: %w", err))
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
			}
		}()

		// Pre-validate endpoint liveness so a dead id surfaces as a
		// reported entry instead of aborting the batch on a foreign key
		// failure.
		live, err := liveIDs(ctx, conn, valid)
		if err != nil {
			return err
		}

		for _, c := range valid {
			if !live[c.Pair.A] || !live[c.Pair.B] {
				notLive = append(notLive, storage.EntryError{
					Pair: c.Pair,
					Err:  fmt.Errorf("%w: endpoint not live", storage.ErrConstraintViolation),
				})
				continue
			}
			res, err := conn.ExecContext(ctx, `
				INSERT INTO relations (id1, id2, kind, distance)
				VALUES (?, ?, ?, ?)
				ON CONFLICT(id1, id2) DO NOTHING
			`, c.Pair.A, c.Pair.B, types.KindNewMatch, c.Distance)
			if err != nil {
				return classify(fmt.Errorf("failed to insert relation %s: %w", c.Pair, err))
			}
			n, err := res.RowsAffected()
			if err != nil {
				return classify(err)
			}
			inserted += int(n)
		}

		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return classify(fmt.Errorf("failed to commit transaction: %w", err))
		}
		committed = true
		return nil
	})
	failed = append(failed, notLive...)
	if err != nil {
		return 0, failed, err
	}
	return inserted, failed, nil
}

// liveIDs returns the set of candidate endpoint ids that exist in items.
func liveIDs(ctx context.Context, conn *sql.Conn, candidates []types.Candidate) (map[string]bool, error) {
	idSet := make(map[string]bool)
	var ids []string
	for _, c := range candidates {
		for _, id := range []string{c.Pair.A, c.Pair.B} {
			if !idSet[id] {
				idSet[id] = true
				ids = append(ids, id)
			}
		}
	}

	live := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += getRelationsChunk {
		end := start + getRelationsChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		placeholders := strings.Repeat("?,", len(chunk))
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		rows, err := conn.QueryContext(ctx,
			fmt.Sprintf("SELECT id FROM items WHERE id IN (%s)", placeholders[:len(placeholders)-1]),
			args...)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to check item liveness: %w", err))
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, classify(err)
			}
			live[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, classify(err)
		}
		rows.Close()
	}
	return live, nil
}

// SetKind overwrites the kind of an existing relation, leaving its distance
// unchanged. This is the only path that may move a pair out of new_match,
// or explicitly back into it.
func (s *SQLiteStore) SetKind(ctx context.Context, pair types.Pair, kind types.RelationKind) error {
	if err := pair.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrConstraintViolation, err)
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: invalid relation kind %q", storage.ErrConstraintViolation, kind)
	}

	return storage.WithRetry(ctx, s.retry, func() error {
		res, err := s.db.ExecContext(ctx, `
			UPDATE relations SET kind = ? WHERE id1 = ? AND id2 = ?
		`, kind, pair.A, pair.B)
		if err != nil {
			return classify(fmt.Errorf("failed to set kind for %s: %w", pair, err))
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if n == 0 {
			return fmt.Errorf("relation %s: %w", pair, storage.ErrNotFound)
		}
		return nil
	})
}

// GetKind returns the current kind for a pair, with ok=false when the pair
// has no row.
func (s *SQLiteStore) GetKind(ctx context.Context, pair types.Pair) (types.RelationKind, bool, error) {
	var kind types.RelationKind
	err := s.db.QueryRowContext(ctx, `
		SELECT kind FROM relations WHERE id1 = ? AND id2 = ?
	`, pair.A, pair.B).Scan(&kind)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(fmt.Errorf("failed to get kind for %s: %w", pair, err))
	}
	return kind, true, nil
}

// GetRelations batch-reads the authoritative rows for the given pairs.
// Pairs without rows are absent from the result map. This is the read the
// reconciliation engine trusts over any in-memory candidate state.
func (s *SQLiteStore) GetRelations(ctx context.Context, pairs []types.Pair) (map[types.Pair]types.Relation, error) {
	result := make(map[types.Pair]types.Relation, len(pairs))

	for start := 0; start < len(pairs); start += getRelationsChunk {
		end := start + getRelationsChunk
		if end > len(pairs) {
			end = len(pairs)
		}
		chunk := pairs[start:end]

		clauses := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*2)
		for i, p := range chunk {
			clauses[i] = "(id1 = ? AND id2 = ?)"
			args = append(args, p.A, p.B)
		}
		query := fmt.Sprintf(`
			SELECT id1, id2, kind, distance, created_at
			FROM relations
			WHERE %s
		`, strings.Join(clauses, " OR "))

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to batch-read relations: %w", err))
		}
		for rows.Next() {
			var rel types.Relation
			if err := rows.Scan(&rel.Pair.A, &rel.Pair.B, &rel.Kind, &rel.Distance, &rel.CreatedAt); err != nil {
				rows.Close()
				return nil, classify(err)
			}
			result[rel.Pair] = rel
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, classify(err)
		}
		rows.Close()
	}
	return result, nil
}

// ListRelations returns every stored relation.
func (s *SQLiteStore) ListRelations(ctx context.Context) ([]types.Relation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id1, id2, kind, distance, created_at
		FROM relations
		ORDER BY id1, id2
	`)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list relations: %w", err))
	}
	defer rows.Close()

	var relations []types.Relation
	for rows.Next() {
		var rel types.Relation
		if err := rows.Scan(&rel.Pair.A, &rel.Pair.B, &rel.Kind, &rel.Distance, &rel.CreatedAt); err != nil {
			return nil, classify(err)
		}
		relations = append(relations, rel)
	}
	return relations, rows.Err()
}

// SweepOrphans removes relations whose endpoints are not both live. With
// the delete cascade enforced this should always remove zero rows; a
// non-zero count means some path bypassed DeleteItem and is logged as an
// integrity anomaly, never treated as routine maintenance.
func (s *SQLiteStore) SweepOrphans(ctx context.Context) (int, error) {
	var removed int64
	err := storage.WithRetry(ctx, s.retry, func() error {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM relations
			WHERE id1 NOT IN (SELECT id FROM items)
			   OR id2 NOT IN (SELECT id FROM items)
		`)
		if err != nil {
			return classify(fmt.Errorf("failed to sweep orphans: %w", err))
		}
		removed, err = res.RowsAffected()
		return classify(err)
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Warn("orphan relations removed; a deletion path bypassed the atomic cascade",
			"count", removed, "error", storage.ErrIntegrityAnomaly)
	}
	return int(removed), nil
}
