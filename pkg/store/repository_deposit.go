// Copyright 2025 CL8Y Bridge Contributors
//
// Deposit repository - CRUD and queue operations for observed deposits.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// DepositRepository handles observed-deposit persistence.
type DepositRepository struct {
	db *sql.DB
}

// NewDepositRepository creates a new deposit repository.
func NewDepositRepository(client *Client) *DepositRepository {
	return &DepositRepository{db: client.DB()}
}

// Insert inserts a newly observed deposit. Returns ErrDuplicateDeposit if the
// (source_chain, tx_hash, log_index) tuple already exists.
func (r *DepositRepository) Insert(ctx context.Context, d *ObservedDeposit) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	query := `
		INSERT INTO observed_deposits (
			id, source_chain, dest_chain, sender, recipient, token,
			amount, nonce, transfer_hash, tx_hash, log_index, block_number,
			block_hash, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (source_chain, tx_hash, log_index) DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		d.ID, d.SourceChain, d.DestChain, d.Sender, d.Recipient, d.Token,
		d.Amount, d.Nonce, d.TransferHash, d.TxHash, d.LogIndex, d.BlockNumber,
		d.BlockHash, StatusNew,
	).Scan(&d.CreatedAt, &d.UpdatedAt)

	if err == sql.ErrNoRows {
		return ErrDuplicateDeposit
	}
	if err != nil {
		return fmt.Errorf("failed to insert deposit: %w", err)
	}

	d.Status = StatusNew
	return nil
}

// InsertTx is Insert inside an already-open transaction, used by the watcher
// to commit a polled event batch atomically with its cursor advance. A
// duplicate (source_chain, tx_hash, log_index) tuple is silently skipped so
// replays after a crash between upsert and cursor commit stay idempotent.
func (r *DepositRepository) InsertTx(ctx context.Context, tx *sql.Tx, d *ObservedDeposit) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	query := `
		INSERT INTO observed_deposits (
			id, source_chain, dest_chain, sender, recipient, token,
			amount, nonce, transfer_hash, tx_hash, log_index, block_number,
			block_hash, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (source_chain, tx_hash, log_index) DO NOTHING`

	_, err := tx.ExecContext(ctx, query,
		d.ID, d.SourceChain, d.DestChain, d.Sender, d.Recipient, d.Token,
		d.Amount, d.Nonce, d.TransferHash, d.TxHash, d.LogIndex, d.BlockNumber,
		d.BlockHash, StatusNew,
	)
	if err != nil {
		return fmt.Errorf("failed to insert deposit: %w", err)
	}

	return nil
}

// MarkReorgedFrom flags every not-yet-terminal deposit on chainKey at or
// above block as reorged. The watcher re-emits each one under a fresh
// (tx_hash, log_index) when it reappears on the canonical chain.
func (r *DepositRepository) MarkReorgedFrom(ctx context.Context, chainKey []byte, block int64) (int64, error) {
	query := `
		UPDATE observed_deposits
		SET status = $3, updated_at = now()
		WHERE source_chain = $1 AND block_number >= $2 AND status IN ($4, $5)`

	result, err := r.db.ExecContext(ctx, query, chainKey, block, StatusReorged, StatusNew, StatusVerified)
	if err != nil {
		return 0, fmt.Errorf("failed to mark reorged deposits: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}

// Get retrieves a deposit by id.
func (r *DepositRepository) Get(ctx context.Context, id uuid.UUID) (*ObservedDeposit, error) {
	query := `
		SELECT id, source_chain, dest_chain, sender, recipient, token,
			amount, nonce, transfer_hash, tx_hash, log_index, block_number,
			block_hash, status, COALESCE(error, ''), attempts, created_at, updated_at
		FROM observed_deposits
		WHERE id = $1`

	d := &ObservedDeposit{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.SourceChain, &d.DestChain, &d.Sender, &d.Recipient, &d.Token,
		&d.Amount, &d.Nonce, &d.TransferHash, &d.TxHash, &d.LogIndex, &d.BlockNumber,
		&d.BlockHash, &d.Status, &d.Error, &d.Attempts, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	return d, nil
}

// FetchPending returns up to limit deposits in "new" status, locking each row
// so that only one verifier instance processes it at a time.
func (r *DepositRepository) FetchPending(ctx context.Context, limit int) ([]*ObservedDeposit, error) {
	query := `
		SELECT id, source_chain, dest_chain, sender, recipient, token,
			amount, nonce, transfer_hash, tx_hash, log_index, block_number,
			block_hash, status, COALESCE(error, ''), attempts, created_at, updated_at
		FROM observed_deposits
		WHERE status = $1
		ORDER BY block_number ASC, log_index ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, StatusNew, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending deposits: %w", err)
	}
	defer rows.Close()

	var deposits []*ObservedDeposit
	for rows.Next() {
		d := &ObservedDeposit{}
		if err := rows.Scan(
			&d.ID, &d.SourceChain, &d.DestChain, &d.Sender, &d.Recipient, &d.Token,
			&d.Amount, &d.Nonce, &d.TransferHash, &d.TxHash, &d.LogIndex, &d.BlockNumber,
			&d.BlockHash, &d.Status, &d.Error, &d.Attempts, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, d)
	}

	return deposits, rows.Err()
}

// MarkStatus transitions a deposit to a new status, optionally recording an
// error message. StatusFailed is terminal: FetchPending only returns rows
// in "new", so a failed deposit is not picked up again.
func (r *DepositRepository) MarkStatus(ctx context.Context, id uuid.UUID, status DepositStatus, errMsg string) error {
	query := `
		UPDATE observed_deposits
		SET status = $2, error = NULLIF($3, ''), attempts = attempts + 1, updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update deposit status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrDepositNotFound
	}

	return nil
}

// CountByStatus returns the number of deposits currently in status.
func (r *DepositRepository) CountByStatus(ctx context.Context, status DepositStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM observed_deposits WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count deposits: %w", err)
	}
	return count, nil
}

// GetByTransferHash looks up a deposit by its computed transfer hash, used by
// the canceler to re-derive and cross-check a destination-chain approval.
func (r *DepositRepository) GetByTransferHash(ctx context.Context, hash []byte) (*ObservedDeposit, error) {
	query := `
		SELECT id, source_chain, dest_chain, sender, recipient, token,
			amount, nonce, transfer_hash, tx_hash, log_index, block_number,
			block_hash, status, COALESCE(error, ''), attempts, created_at, updated_at
		FROM observed_deposits
		WHERE transfer_hash = $1`

	d := &ObservedDeposit{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&d.ID, &d.SourceChain, &d.DestChain, &d.Sender, &d.Recipient, &d.Token,
		&d.Amount, &d.Nonce, &d.TransferHash, &d.TxHash, &d.LogIndex, &d.BlockNumber,
		&d.BlockHash, &d.Status, &d.Error, &d.Attempts, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit by transfer hash: %w", err)
	}

	return d, nil
}

