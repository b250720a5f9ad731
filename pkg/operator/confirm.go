// Copyright 2025 CL8Y Bridge Contributors

package operator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
)

// txNotFoundGrace is how long after the last attempt a missing transaction
// is still treated as "propagating" rather than dropped by a reorg.
const txNotFoundGrace = 2 * time.Minute

// ConfirmationTracker promotes submitted approvals and releases to
// confirmed once the destination chain has buried the transaction under its
// required confirmation depth, querying the chain rather than trusting the
// broadcast.
type ConfirmationTracker struct {
	registry  *chain.Registry
	approvals ApprovalQueue
	releases  ReleaseQueue
	batchSize int
	logger    *log.Logger
	now       func() time.Time
}

// NewConfirmationTracker builds a tracker over the shared store queues.
func NewConfirmationTracker(registry *chain.Registry, approvals ApprovalQueue, releases ReleaseQueue) *ConfirmationTracker {
	return &ConfirmationTracker{
		registry:  registry,
		approvals: approvals,
		releases:  releases,
		batchSize: 50,
		logger:    log.New(log.Writer(), "[Confirmations] ", log.LstdFlags),
		now:       time.Now,
	}
}

// RunOnce checks one batch of submitted rows.
func (t *ConfirmationTracker) RunOnce(ctx context.Context) error {
	approvals, err := t.approvals.FetchSubmittedForConfirmation(ctx, t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch submitted approvals: %w", err)
	}
	for _, a := range approvals {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.track(ctx, rowView{
			id:           a.ID.String(),
			destChain:    sliceTo32(a.DestChain),
			transferHash: sliceTo32(a.TransferHash),
			lastAttempt:  a.LastAttemptAt,
			markStatus: func(status store.DepositStatus, msg string) error {
				return t.approvals.MarkStatus(ctx, a.ID, status, msg)
			},
		}, a.SubmitTxHash, func(height int64) error {
			return t.approvals.MarkConfirmed(ctx, a.ID, height)
		})
	}

	releases, err := t.releases.FetchSubmittedForConfirmation(ctx, t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch submitted releases: %w", err)
	}
	for _, rel := range releases {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.track(ctx, rowView{
			id:           rel.ID.String(),
			destChain:    sliceTo32(rel.DestChain),
			transferHash: sliceTo32(rel.TransferHash),
			lastAttempt:  rel.LastAttemptAt,
			markStatus: func(status store.DepositStatus, msg string) error {
				return t.releases.MarkStatus(ctx, rel.ID, status, msg)
			},
		}, rel.SubmitTxHash, func(height int64) error {
			return t.releases.MarkConfirmed(ctx, rel.ID, height)
		})
	}
	return nil
}

func (t *ConfirmationTracker) track(ctx context.Context, row rowView, txHash string, markConfirmed func(int64) error) {
	dest, ok := t.registry.ByKey(row.destChain)
	if !ok {
		t.logger.Printf("row %s: destination chain no longer configured", row.id)
		return
	}

	txHeight, err := dest.TransactionHeight(ctx, txHash)
	if err != nil {
		if errors.Is(err, chain.ErrTxNotFound) {
			// Recently broadcast transactions take a moment to index;
			// a long-missing one was dropped by a reorg, so the row
			// goes back to pending for resubmission.
			if row.lastAttempt != nil && t.now().Sub(*row.lastAttempt) > txNotFoundGrace {
				t.logger.Printf("row %s: tx %s no longer on %s, reverting to pending", row.id, txHash, dest.Name())
				if err := row.markStatus(store.StatusPending, "transaction dropped by reorg"); err != nil {
					t.logger.Printf("row %s: failed to revert: %v", row.id, err)
				}
			}
			return
		}
		t.logger.Printf("row %s: confirmation check failed: %v", row.id, err)
		return
	}

	latest, err := dest.LatestHeight(ctx)
	if err != nil {
		t.logger.Printf("row %s: failed to query %s head: %v", row.id, dest.Name(), err)
		return
	}

	if latest < txHeight+int64(dest.FinalityBlocks()) {
		return // keep waiting
	}

	if err := markConfirmed(txHeight); err != nil {
		t.logger.Printf("row %s: failed to mark confirmed: %v", row.id, err)
		return
	}
	t.logger.Printf("row %s: confirmed on %s at height %d", row.id, dest.Name(), txHeight)
}
