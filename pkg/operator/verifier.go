// Copyright 2025 CL8Y Bridge Contributors

package operator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
	"github.com/cl8y-bridge/bridge-core/pkg/xchainerr"
)

// Verifier promotes observed deposits into approvals or releases once the
// deposit's block is final and the on-chain contract confirms the transfer
// hash.
type Verifier struct {
	registry  *chain.Registry
	deposits  DepositQueue
	approvals ApprovalQueue
	releases  ReleaseQueue
	batchSize int
	logger    *log.Logger
}

// NewVerifier builds a verifier over the shared store queues.
func NewVerifier(registry *chain.Registry, deposits DepositQueue, approvals ApprovalQueue, releases ReleaseQueue) *Verifier {
	return &Verifier{
		registry:  registry,
		deposits:  deposits,
		approvals: approvals,
		releases:  releases,
		batchSize: 50,
		logger:    log.New(log.Writer(), "[Verifier] ", log.LstdFlags),
	}
}

// RunOnce processes one batch of pending deposits. Deposits whose source
// block isn't final yet, or whose check hits a transient error, stay in
// "new" for a later pass; a deposit whose block was replaced is flagged
// reorged; everything else reaches approved or a terminal failure with a
// recorded reason.
func (v *Verifier) RunOnce(ctx context.Context) error {
	deposits, err := v.deposits.FetchPending(ctx, v.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending deposits: %w", err)
	}

	for _, d := range deposits {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.verify(ctx, d); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			// Transient: leave the row in "new" and try again next pass.
			v.logger.Printf("deposit %s: verification deferred: %v", d.ID, err)
		}
	}
	return nil
}

func (v *Verifier) verify(ctx context.Context, d *store.ObservedDeposit) error {
	src, ok := v.registry.ByKey(sliceTo32(d.SourceChain))
	if !ok {
		return v.fail(ctx, d, xchainerr.ErrUnknownSourceChain)
	}
	dest, ok := v.registry.ByKey(sliceTo32(d.DestChain))
	if !ok {
		return v.fail(ctx, d, xchainerr.ErrUnknownDestChain)
	}

	// Finality: deep enough below the head, and the recorded block still
	// canonical.
	latest, err := src.LatestHeight(ctx)
	if err != nil {
		return err
	}
	if d.BlockNumber > latest-int64(src.FinalityBlocks()) {
		return nil // not final yet, re-check next pass
	}
	blockHash, err := src.BlockHash(ctx, d.BlockNumber)
	if err != nil {
		return err
	}
	if blockHash != d.BlockHash {
		v.logger.Printf("deposit %s: block %d replaced, flagging reorged", d.ID, d.BlockNumber)
		return v.deposits.MarkStatus(ctx, d.ID, store.StatusReorged, "")
	}

	// Recompute the transfer hash locally; a mismatch against the row
	// means the watcher stored fields the hash doesn't cover, which only
	// happens across a code change, so it's terminal rather than retried.
	hash := xchain.TransferHash(
		src.RegistryID(), dest.RegistryID(),
		sliceTo32(d.Sender), sliceTo32(d.Recipient), sliceTo32(d.Token),
		d.Amount.BigInt(), nonceBig(d.Nonce),
	)
	if len(d.TransferHash) == 32 && !isZero32(d.TransferHash) && !bytes.Equal(hash[:], d.TransferHash) {
		return v.fail(ctx, d, xchainerr.ErrHashMismatch)
	}

	// The source contract must have indexed the same hash.
	exists, err := src.HasDeposit(ctx, hash)
	if err != nil {
		return err
	}
	if !exists {
		return v.fail(ctx, d, xchainerr.ErrDepositNotOnChain)
	}

	if err := v.deposits.MarkStatus(ctx, d.ID, store.StatusVerified, ""); err != nil {
		return err
	}

	srcKey := src.ChainKey()
	destKey := dest.ChainKey()

	switch dest.Platform() {
	case chain.PlatformCosmos:
		rel := &store.Release{
			DepositID:    d.ID,
			SourceChain:  srcKey[:],
			DestChain:    destKey[:],
			Sender:       d.Sender,
			Recipient:    d.Recipient,
			Token:        d.Token,
			Amount:       d.Amount,
			Nonce:        d.Nonce,
			TransferHash: hash[:],
		}
		err = v.releases.Insert(ctx, rel)
	default:
		a := &store.Approval{
			DepositID:    d.ID,
			SourceChain:  srcKey[:],
			DestChain:    destKey[:],
			Sender:       d.Sender,
			Recipient:    d.Recipient,
			Token:        d.Token,
			Amount:       d.Amount,
			Nonce:        d.Nonce,
			TransferHash: hash[:],
		}
		err = v.approvals.Insert(ctx, a)
	}

	if err != nil && !errors.Is(err, store.ErrDuplicateApproval) {
		return err
	}

	if err := v.deposits.MarkStatus(ctx, d.ID, store.StatusApproved, ""); err != nil {
		return err
	}

	v.logger.Printf("deposit %s verified: %s -> %s, hash %x", d.ID, src.Name(), dest.Name(), hash[:8])
	return nil
}

// fail records one of the xchainerr terminal sentinels as the row's
// failure reason.
func (v *Verifier) fail(ctx context.Context, d *store.ObservedDeposit, reason error) error {
	v.logger.Printf("deposit %s failed verification: %s", d.ID, reason)
	return v.deposits.MarkStatus(ctx, d.ID, store.StatusFailed, reason.Error())
}
