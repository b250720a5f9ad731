// Copyright 2025 CL8Y Bridge Contributors
//
// Package canceler audits every WithdrawApproved event any operator
// produces. For each approval it re-derives the transfer hash from the
// destination bridge's own pending-withdraw record and checks the source
// chain actually indexed a matching deposit; an unbacked approval is vetoed
// with a cancel transaction inside the on-chain delay window.
//
// The canceler keeps no work queue beyond a per-chain cursor: every
// approval is evaluated once on first observation, and re-evaluation after
// a restart is safe because cancel is idempotent on the contract side.
package canceler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"math/rand"
	"time"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// Poll cadence, jittered the same way as the deposit watcher.
const (
	EVMPollInterval    = 2 * time.Second
	CosmosPollInterval = 3 * time.Second

	// MaxBlockRange bounds one approval scan window.
	MaxBlockRange = 500

	maxConsecutiveFailures = 10
)

// Verdict is the outcome of auditing one approval.
type Verdict string

const (
	VerdictOK        Verdict = "ok"
	VerdictCancelled Verdict = "cancelled"
	VerdictSkipped   Verdict = "skipped"
)

// CursorStore is the slice of the cursor repository the canceler drives.
type CursorStore interface {
	Get(ctx context.Context, chainKey []byte, scope string) (*store.ChainCursor, error)
	Initialize(ctx context.Context, chainKey []byte, scope, chainName string, startBlock int64) error
	Advance(ctx context.Context, chainKey []byte, scope string, block int64, blockHash string) error
	Rewind(ctx context.Context, chainKey []byte, scope string, block int64) error
}

// MetricsRecorder receives cancel outcomes. A nil recorder disables
// instrumentation.
type MetricsRecorder interface {
	IncCancel(chain string)
}

// Pipeline audits one destination chain's approvals.
type Pipeline struct {
	dest     chain.Chain
	registry *chain.Registry
	cursors  CursorStore
	interval time.Duration
	logger   *log.Logger
	metrics  MetricsRecorder
}

// SetMetrics attaches a metrics recorder.
func (p *Pipeline) SetMetrics(m MetricsRecorder) {
	p.metrics = m
}

// New builds a canceler pipeline for destination chain dest. The registry
// routes each approval's source-chain verification.
func New(dest chain.Chain, registry *chain.Registry, cursors CursorStore) *Pipeline {
	interval := EVMPollInterval
	if dest.Platform() == chain.PlatformCosmos {
		interval = CosmosPollInterval
	}

	return &Pipeline{
		dest:     dest,
		registry: registry,
		cursors:  cursors,
		interval: interval,
		logger:   log.New(log.Writer(), fmt.Sprintf("[Canceler:%s] ", dest.Name()), log.LstdFlags),
	}
}

// Run polls until ctx is cancelled, mirroring the deposit watcher's failure
// handling: transient errors retry on the next tick, a sustained streak
// bubbles up to the supervisor.
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.initCursor(ctx); err != nil {
		return err
	}

	p.logger.Printf("auditing approvals (interval %s)", p.interval)

	failures := 0
	for {
		select {
		case <-ctx.Done():
			p.logger.Println("shutting down")
			return nil
		case <-time.After(jittered(p.interval)):
		}

		if err := p.poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			failures++
			p.logger.Printf("poll failed (%d consecutive): %v", failures, err)
			if failures >= maxConsecutiveFailures {
				return fmt.Errorf("canceler %s failing persistently: %w", p.dest.Name(), err)
			}
			continue
		}
		failures = 0
	}
}

func (p *Pipeline) initCursor(ctx context.Context) error {
	key := p.dest.ChainKey()

	_, err := p.cursors.Get(ctx, key[:], store.CursorScopeApprovals)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrCursorNotFound) {
		return err
	}

	latest, err := p.dest.LatestHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to query %s head for cursor init: %w", p.dest.Name(), err)
	}
	start := latest - int64(p.dest.FinalityBlocks())
	if start < 0 {
		start = 0
	}
	return p.cursors.Initialize(ctx, key[:], store.CursorScopeApprovals, p.dest.Name(), start)
}

func (p *Pipeline) poll(ctx context.Context) error {
	key := p.dest.ChainKey()

	cursor, err := p.cursors.Get(ctx, key[:], store.CursorScopeApprovals)
	if err != nil {
		return err
	}

	if cursor.LastBlockHash != "" {
		hash, err := p.dest.BlockHash(ctx, cursor.LastBlock)
		if err != nil {
			return err
		}
		if hash != cursor.LastBlockHash {
			// No rows to flag: re-scanning the replaced range re-runs
			// audits, which is safe.
			rewindTo := cursor.LastBlock - int64(p.dest.FinalityBlocks())
			if rewindTo < 0 {
				rewindTo = 0
			}
			p.logger.Printf("reorg at block %d: rewinding cursor to %d", cursor.LastBlock, rewindTo)
			return p.cursors.Rewind(ctx, key[:], store.CursorScopeApprovals, rewindTo)
		}
	}

	latest, err := p.dest.LatestHeight(ctx)
	if err != nil {
		return err
	}

	from := cursor.LastBlock + 1
	to := latest - int64(p.dest.FinalityBlocks())
	if to >= from+MaxBlockRange {
		to = from + MaxBlockRange - 1
	}
	if to < from {
		return nil
	}

	approvals, err := p.dest.FetchApprovals(ctx, from, to)
	if err != nil {
		return err
	}

	for i := range approvals {
		if err := ctx.Err(); err != nil {
			return err
		}
		verdict, err := p.Audit(ctx, &approvals[i])
		if err != nil {
			// One approval's RPC failure aborts the rest of the batch;
			// the cursor stays put so the whole batch re-runs next tick.
			return err
		}
		if verdict != VerdictOK {
			p.logger.Printf("approval %x: %s", approvals[i].WithdrawHash[:8], verdict)
		}
	}

	toHash, err := p.dest.BlockHash(ctx, to)
	if err != nil {
		return err
	}
	if err := p.cursors.Advance(ctx, key[:], store.CursorScopeApprovals, to, toHash); err != nil {
		return err
	}

	if len(approvals) > 0 {
		p.logger.Printf("audited %d approval(s) in blocks [%d, %d]", len(approvals), from, to)
	}
	return nil
}

// Audit evaluates one approval event end to end and submits a cancel when
// the approval has no backing deposit on its claimed source chain.
func (p *Pipeline) Audit(ctx context.Context, ev *chain.ApprovalEvent) (Verdict, error) {
	record, err := p.dest.PendingWithdraw(ctx, ev.WithdrawHash)
	if err != nil {
		return VerdictSkipped, err
	}
	if !record.Exists {
		// Approval event without a stored record: nothing to execute
		// against, so nothing to veto.
		p.logger.Printf("approval %x has no pending-withdraw record", ev.WithdrawHash[:8])
		return VerdictSkipped, nil
	}
	if record.Cancelled || record.Executed {
		return VerdictOK, nil
	}

	// Re-derive the transfer hash from the destination bridge's own
	// record. A mismatch means the approval's hash doesn't identify the
	// tuple it claims to, which is fraud by construction.
	derived := xchain.TransferHash(
		record.SrcChain, p.dest.RegistryID(),
		record.SrcAccount, record.DestAccount, record.Token,
		record.Amount, new(big.Int).SetUint64(record.Nonce),
	)
	if !bytes.Equal(derived[:], ev.WithdrawHash[:]) {
		return p.cancel(ctx, ev.WithdrawHash, "hash mismatch")
	}

	src, ok := p.registry.ByID(record.SrcChain)
	if !ok {
		// A source chain we can't reach can't be verified; leave the
		// approval alone rather than veto on ignorance.
		p.logger.Printf("approval %x claims unknown source chain %x", ev.WithdrawHash[:8], record.SrcChain)
		return VerdictSkipped, nil
	}

	exists, err := src.HasDeposit(ctx, ev.WithdrawHash)
	if err != nil {
		return VerdictSkipped, err
	}
	if exists {
		return VerdictOK, nil
	}

	return p.cancel(ctx, ev.WithdrawHash, "no matching source deposit")
}

func (p *Pipeline) cancel(ctx context.Context, withdrawHash [32]byte, reason string) (Verdict, error) {
	p.logger.Printf("cancelling approval %x: %s", withdrawHash[:8], reason)

	txHash, err := p.dest.SubmitCancel(ctx, withdrawHash)
	if err != nil {
		return VerdictSkipped, fmt.Errorf("failed to submit cancel for %x: %w", withdrawHash[:8], err)
	}

	if p.metrics != nil {
		p.metrics.IncCancel(p.dest.Name())
	}
	p.logger.Printf("cancel submitted for %x as %s", withdrawHash[:8], txHash)
	return VerdictCancelled, nil
}

func jittered(interval time.Duration) time.Duration {
	spread := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(interval) * spread)
}
