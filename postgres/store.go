// Package postgres persists Atlas's cursor, graph-state snapshot, and IPFS
// pre-fetch cache, grounded on pgxpool transactional patterns.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// recordID keys the single-row cursor and state tables: Atlas persists
// exactly one pipeline's checkpoint per database.
const recordID = "atlas"

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the tables Atlas needs if they don't already exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS atlas_cursor (
			id TEXT PRIMARY KEY,
			cursor TEXT NOT NULL,
			block_number TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS atlas_graph_state (
			id TEXT PRIMARY KEY,
			state BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS ipfs_cache (
			uri TEXT PRIMARY KEY,
			content BYTEA,
			block TEXT NOT NULL,
			space_id TEXT NOT NULL,
			is_errored BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS ipfs_cache_space_id_idx ON ipfs_cache (space_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

// LoadCheckpoint loads the persisted cursor, block number, and graph-state
// snapshot. found is false when no checkpoint has ever been persisted.
func (s *Store) LoadCheckpoint(ctx context.Context) (cursor string, blockNumber uint64, state []byte, found bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", 0, nil, false, fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var blockStr string
	err = tx.QueryRow(ctx, `SELECT cursor, block_number FROM atlas_cursor WHERE id = $1`, recordID).Scan(&cursor, &blockStr)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, nil, false, nil
	}
	if err != nil {
		return "", 0, nil, false, fmt.Errorf("postgres: load cursor: %w", err)
	}

	err = tx.QueryRow(ctx, `SELECT state FROM atlas_graph_state WHERE id = $1`, recordID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, nil, false, nil
	}
	if err != nil {
		return "", 0, nil, false, fmt.Errorf("postgres: load state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", 0, nil, false, fmt.Errorf("postgres: commit: %w", err)
	}

	n, convErr := strconv.ParseUint(blockStr, 10, 64)
	if convErr != nil {
		return "", 0, nil, false, fmt.Errorf("postgres: parse block_number: %w", convErr)
	}
	return cursor, n, state, true, nil
}

// PersistCheckpoint writes cursor, blockNumber, and state in a single
// transaction. The pipeline calls this before each emission, with the state
// as of the event that changed the canonical graph and the cursor of the
// block that event belongs to, so a crash between persist and emit replays the same
// block and re-emits idempotently; a crash before persist re-processes the
// block from the prior cursor, which GraphState.Apply tolerates.
func (s *Store) PersistCheckpoint(ctx context.Context, cursor string, blockNumber uint64, state []byte) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_cursor (id, cursor, block_number) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET cursor = $2, block_number = $3`,
		recordID, cursor, strconv.FormatUint(blockNumber, 10))
	if err != nil {
		return fmt.Errorf("postgres: persist cursor: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO atlas_graph_state (id, state, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET state = $2, updated_at = now()`,
		recordID, state)
	if err != nil {
		return fmt.Errorf("postgres: persist state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit checkpoint: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
