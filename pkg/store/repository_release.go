// Copyright 2025 CL8Y Bridge Contributors
//
// Release repository - CRUD and queue operations for Cosmos-destination
// releases, the WithdrawApprove analogue of the approvals table.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ReleaseRepository handles release persistence.
type ReleaseRepository struct {
	db *sql.DB
}

// NewReleaseRepository creates a new release repository.
func NewReleaseRepository(client *Client) *ReleaseRepository {
	return &ReleaseRepository{db: client.DB()}
}

// Insert inserts a verified release derived from a deposit. Returns
// ErrDuplicateApproval if the (source_chain, nonce, dest_chain) tuple
// already exists.
func (r *ReleaseRepository) Insert(ctx context.Context, rel *Release) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}

	query := `
		INSERT INTO releases (
			id, deposit_id, source_chain, dest_chain, sender, recipient, token,
			amount, nonce, transfer_hash, fee, fee_recipient, deduct_from_amount,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (source_chain, nonce, dest_chain) DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		rel.ID, rel.DepositID, rel.SourceChain, rel.DestChain, rel.Sender, rel.Recipient, rel.Token,
		rel.Amount, rel.Nonce, rel.TransferHash, rel.Fee, rel.FeeRecipient, rel.DeductFromAmount,
		StatusVerified,
	).Scan(&rel.CreatedAt, &rel.UpdatedAt)

	if err == sql.ErrNoRows {
		return ErrDuplicateApproval
	}
	if err != nil {
		return fmt.Errorf("failed to insert release: %w", err)
	}

	rel.Status = StatusVerified
	return nil
}

// Get retrieves a release by id.
func (r *ReleaseRepository) Get(ctx context.Context, id uuid.UUID) (*Release, error) {
	query := releaseSelect + ` WHERE id = $1`

	rel := &Release{}
	err := scanRelease(r.db.QueryRowContext(ctx, query, id), rel)
	if err == sql.ErrNoRows {
		return nil, ErrReleaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release: %w", err)
	}
	return rel, nil
}

// FetchPendingSubmission returns releases ready for the submitter, locked for
// exclusive processing.
func (r *ReleaseRepository) FetchPendingSubmission(ctx context.Context, limit int) ([]*Release, error) {
	query := releaseSelect + `
		WHERE status IN ($1, $2)
		ORDER BY created_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, StatusVerified, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending releases: %w", err)
	}
	defer rows.Close()

	return scanReleases(rows)
}

// FetchSubmittedForConfirmation returns releases awaiting confirmation-depth
// checks on the destination chain.
func (r *ReleaseRepository) FetchSubmittedForConfirmation(ctx context.Context, limit int) ([]*Release, error) {
	query := releaseSelect + `
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`

	rows, err := r.db.QueryContext(ctx, query, StatusSubmitted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submitted releases: %w", err)
	}
	defer rows.Close()

	return scanReleases(rows)
}

// MarkSubmitted records the destination-chain submit tx hash and transitions
// the release to "submitted".
func (r *ReleaseRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error {
	query := `
		UPDATE releases
		SET status = $2, submit_tx_hash = $3, last_attempt_at = now(), updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, StatusSubmitted, txHash)
	if err != nil {
		return fmt.Errorf("failed to mark release submitted: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrReleaseNotFound
	}
	return nil
}

// MarkConfirmed transitions the release to "confirmed" at the given
// destination-chain height.
func (r *ReleaseRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, height int64) error {
	query := `
		UPDATE releases
		SET status = $2, confirmed_height = $3, updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, StatusConfirmed, height)
	if err != nil {
		return fmt.Errorf("failed to mark release confirmed: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrReleaseNotFound
	}
	return nil
}

// MarkStatus transitions a release to an arbitrary status, recording an
// optional error and incrementing the attempt counter.
func (r *ReleaseRepository) MarkStatus(ctx context.Context, id uuid.UUID, status DepositStatus, errMsg string) error {
	query := `
		UPDATE releases
		SET status = $2, error = NULLIF($3, ''), attempts = attempts + 1,
			last_attempt_at = now(), updated_at = now()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("failed to update release status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrReleaseNotFound
	}
	return nil
}

// CountByStatus returns the number of releases currently in status.
func (r *ReleaseRepository) CountByStatus(ctx context.Context, status DepositStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM releases WHERE status = $1`, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count releases: %w", err)
	}
	return count, nil
}

const releaseSelect = `
	SELECT id, deposit_id, source_chain, dest_chain, sender, recipient, token,
		amount, nonce, transfer_hash, fee, COALESCE(fee_recipient, ''::bytea),
		deduct_from_amount, status, COALESCE(submit_tx_hash, ''),
		COALESCE(confirmed_height, 0), COALESCE(error, ''), attempts,
		last_attempt_at, created_at, updated_at
	FROM releases`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelease(row rowScanner, rel *Release) error {
	return row.Scan(
		&rel.ID, &rel.DepositID, &rel.SourceChain, &rel.DestChain, &rel.Sender, &rel.Recipient, &rel.Token,
		&rel.Amount, &rel.Nonce, &rel.TransferHash, &rel.Fee, &rel.FeeRecipient,
		&rel.DeductFromAmount, &rel.Status, &rel.SubmitTxHash,
		&rel.ConfirmedHeight, &rel.Error, &rel.Attempts,
		&rel.LastAttemptAt, &rel.CreatedAt, &rel.UpdatedAt,
	)
}

func scanReleases(rows *sql.Rows) ([]*Release, error) {
	var releases []*Release
	for rows.Next() {
		rel := &Release{}
		if err := scanRelease(rows, rel); err != nil {
			return nil, fmt.Errorf("failed to scan release: %w", err)
		}
		releases = append(releases, rel)
	}
	return releases, rows.Err()
}
