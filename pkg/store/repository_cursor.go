// Copyright 2025 CL8Y Bridge Contributors
//
// Cursor repository - per-chain, per-pipeline watcher progress, advanced
// atomically with the event batch it covers.

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CursorRepository handles chain-cursor persistence.
type CursorRepository struct {
	db *sql.DB
}

// NewCursorRepository creates a new cursor repository.
func NewCursorRepository(client *Client) *CursorRepository {
	return &CursorRepository{db: client.DB()}
}

// Get retrieves the cursor for (chainKey, scope), or ErrCursorNotFound if
// the owning pipeline has never advanced it.
func (r *CursorRepository) Get(ctx context.Context, chainKey []byte, scope string) (*ChainCursor, error) {
	query := `
		SELECT chain_key, scope, chain_name, last_block, COALESCE(last_block_hash, ''), updated_at
		FROM chain_cursors
		WHERE chain_key = $1 AND scope = $2`

	c := &ChainCursor{}
	err := r.db.QueryRowContext(ctx, query, chainKey, scope).Scan(
		&c.ChainKey, &c.Scope, &c.ChainName, &c.LastBlock, &c.LastBlockHash, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCursorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain cursor: %w", err)
	}

	return c, nil
}

// Initialize creates a cursor row at startBlock if one doesn't already exist;
// it is a no-op otherwise, so a restart never rewinds an advanced cursor.
func (r *CursorRepository) Initialize(ctx context.Context, chainKey []byte, scope, chainName string, startBlock int64) error {
	query := `
		INSERT INTO chain_cursors (chain_key, scope, chain_name, last_block, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (chain_key, scope) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, chainKey, scope, chainName, startBlock)
	if err != nil {
		return fmt.Errorf("failed to initialize chain cursor: %w", err)
	}
	return nil
}

// Advance moves the cursor forward to block/blockHash. Callers must only
// advance monotonically; each pipeline enforces this by construction since a
// single goroutine owns each (chain, scope) cursor.
func (r *CursorRepository) Advance(ctx context.Context, chainKey []byte, scope string, block int64, blockHash string) error {
	result, err := r.db.ExecContext(ctx, advanceCursorSQL, chainKey, scope, block, blockHash)
	if err != nil {
		return fmt.Errorf("failed to advance chain cursor: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrCursorNotFound
	}
	return nil
}

// AdvanceTx is Advance inside an already-open transaction, used by the
// watcher to commit an event batch and its cursor atomically.
func (r *CursorRepository) AdvanceTx(ctx context.Context, tx *sql.Tx, chainKey []byte, scope string, block int64, blockHash string) error {
	result, err := tx.ExecContext(ctx, advanceCursorSQL, chainKey, scope, block, blockHash)
	if err != nil {
		return fmt.Errorf("failed to advance chain cursor: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrCursorNotFound
	}
	return nil
}

// Rewind moves the cursor backwards after a detected reorg, so the watcher
// re-scans the replaced range. This is the single exception to cursor
// monotonicity and only the owning watcher calls it.
func (r *CursorRepository) Rewind(ctx context.Context, chainKey []byte, scope string, block int64) error {
	query := `
		UPDATE chain_cursors
		SET last_block = $3, last_block_hash = NULL, updated_at = now()
		WHERE chain_key = $1 AND scope = $2`

	result, err := r.db.ExecContext(ctx, query, chainKey, scope, block)
	if err != nil {
		return fmt.Errorf("failed to rewind chain cursor: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrCursorNotFound
	}
	return nil
}

const advanceCursorSQL = `
	UPDATE chain_cursors
	SET last_block = $3, last_block_hash = $4, updated_at = now()
	WHERE chain_key = $1 AND scope = $2`
