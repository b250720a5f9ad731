// Copyright 2025 CL8Y Bridge Contributors
//
// Approval repository - CRUD and queue operations for destination-chain
// approvals.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ApprovalRepository handles approval persistence.
type ApprovalRepository struct {
	db *sql.DB
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(client *Client) *ApprovalRepository {
	return &ApprovalRepository{db: client.DB()}
}

// Insert inserts a verified approval derived from a deposit. Returns
// ErrDuplicateApproval if the (source_chain, nonce, dest_chain) tuple
// already exists.
func (r *ApprovalRepository) Insert(ctx context.Context, a *Approval) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `
		INSERT INTO approvals (
			id, deposit_id, source_chain, dest_chain, sender, recipient, token,
			amount, nonce, transfer_hash, fee, fee_recipient, deduct_from_amount,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (source_chain, nonce, dest_chain) DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.DepositID, a.SourceChain, a.DestChain, a.Sender, a.Recipient, a.Token,
		a.Amount, a.Nonce, a.TransferHash, a.Fee, a.FeeRecipient, a.DeductFromAmount,
		StatusVerified,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err == sql.ErrNoRows {
		return ErrDuplicateApproval
	}
	if err != nil {
		return fmt.Errorf("failed to insert approval: %w", err)
	}

	a.Status = StatusVerified
	return nil
}

// Get retrieves an approval by id.
func (r *ApprovalRepository) Get(ctx context.Context, id uuid.UUID) (*Approval, error) {
	query := approvalSelect + ` WHERE id = $1`

	a := &Approval{}
	err := scanApproval(r.db.QueryRowContext(ctx, query, id), a)
	if err == sql.ErrNoRows {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return a, nil
}

// FetchPendingSubmission returns approvals ready for the submitter (status
// "verified" or "pending" retry), locked for exclusive processing.
func (r *ApprovalRepository) FetchPendingSubmission(ctx context.Context, limit int) ([]*Approval, error) {
	query := approvalSelect + `
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, StatusVerified, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending approvals: %w", err)
	}
	defer rows.Close()

	return scanApprovals(rows)
}

// FetchSubmittedForConfirmation returns approvals awaiting confirmation-depth
// checks on the destination chain.
func (r *ApprovalRepository) FetchSubmittedForConfirmation(ctx context.Context, limit int) ([]*Approval, error) {
	query := approvalSelect + `
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, StatusSubmitted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submitted approvals: %w", err)
	}
	defer rows.Close()

	return scanApprovals(rows)
}

// MarkSubmitted records the destination-chain submit tx hash and transitions
// the approval to "submitted".
func (r *ApprovalRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error {
	query := `
		UPDATE approvals
		SET status = $2, submit_tx_hash = $3, last_attempt_at = now(), updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, StatusSubmitted, txHash)
	if err != nil {
		return fmt.Errorf("failed to mark approval submitted: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrApprovalNotFound
	}
	return nil
}

// MarkConfirmed transitions the approval to "confirmed" at the given
// destination-chain height.
func (r *ApprovalRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, height int64) error {
	query := `
		UPDATE approvals
		SET status = $2, confirmed_height = $3, updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, StatusConfirmed, height)
	if err != nil {
		return fmt.Errorf("failed to mark approval confirmed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrApprovalNotFound
	}
	return nil
}

// MarkStatus transitions an approval to an arbitrary status, recording an
// optional error, stamping the attempt time, and incrementing the attempt
// counter.
func (r *ApprovalRepository) MarkStatus(ctx context.Context, id uuid.UUID, status DepositStatus, errMsg string) error {
	query := `
		UPDATE approvals
		SET status = $2, error = NULLIF($3, ''), attempts = attempts + 1,
			last_attempt_at = now(), updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update approval status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrApprovalNotFound
	}
	return nil
}

// CountByStatus returns the number of approvals currently in status.
func (r *ApprovalRepository) CountByStatus(ctx context.Context, status DepositStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approvals WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return count, nil
}

// GetByTransferHash looks up an approval by its transfer hash.
func (r *ApprovalRepository) GetByTransferHash(ctx context.Context, hash []byte) (*Approval, error) {
	query := approvalSelect + ` WHERE transfer_hash = $1`

	a := &Approval{}
	err := scanApproval(r.db.QueryRowContext(ctx, query, hash), a)
	if err == sql.ErrNoRows {
		return nil, ErrApprovalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get approval by transfer hash: %w", err)
	}
	return a, nil
}

const approvalSelect = `
	SELECT id, deposit_id, source_chain, dest_chain, sender, recipient, token,
		amount, nonce, transfer_hash, fee, COALESCE(fee_recipient, ''::bytea),
		deduct_from_amount, status, COALESCE(submit_tx_hash, ''),
		COALESCE(confirmed_height, 0), COALESCE(error, ''), attempts,
		last_attempt_at, created_at, updated_at
	FROM approvals`

func scanApproval(row rowScanner, a *Approval) error {
	return row.Scan(
		&a.ID, &a.DepositID, &a.SourceChain, &a.DestChain, &a.Sender, &a.Recipient, &a.Token,
		&a.Amount, &a.Nonce, &a.TransferHash, &a.Fee, &a.FeeRecipient,
		&a.DeductFromAmount, &a.Status, &a.SubmitTxHash,
		&a.ConfirmedHeight, &a.Error, &a.Attempts,
		&a.LastAttemptAt, &a.CreatedAt, &a.UpdatedAt,
	)
}

func scanApprovals(rows *sql.Rows) ([]*Approval, error) {
	var approvals []*Approval
	for rows.Next() {
		a := &Approval{}
		if err := scanApproval(rows, a); err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, a)
	}
	return approvals, rows.Err()
}
