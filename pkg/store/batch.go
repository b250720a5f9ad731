// Copyright 2025 CL8Y Bridge Contributors
//
// BatchWriter - the watcher's atomic commit: one event batch and its cursor
// advance land in a single transaction, so a crash can never leave the
// cursor ahead of its events.

package store

import (
	"context"
	"database/sql"
	"fmt"
)

// BatchWriter commits a polled deposit batch together with the cursor
// position that covers it.
type BatchWriter struct {
	db       *sql.DB
	deposits *DepositRepository
	cursors  *CursorRepository
}

// NewBatchWriter builds a BatchWriter over the shared client.
func NewBatchWriter(client *Client) *BatchWriter {
	return &BatchWriter{
		db:       client.DB(),
		deposits: NewDepositRepository(client),
		cursors:  NewCursorRepository(client),
	}
}

// CommitBatch upserts deposits and advances the (chainKey, scope) cursor to
// block/blockHash in one transaction. Duplicate deposits are skipped, so
// replaying a batch after a crash between upsert and cursor commit is a
// no-op.
func (w *BatchWriter) CommitBatch(ctx context.Context, deposits []*ObservedDeposit, chainKey []byte, scope string, block int64, blockHash string) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range deposits {
		if err := w.deposits.InsertTx(ctx, tx, d); err != nil {
			return err
		}
	}
	if err := w.cursors.AdvanceTx(ctx, tx, chainKey, scope, block, blockHash); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit watch batch: %w", err)
	}
	return nil
}
