// Copyright 2025 CL8Y Bridge Contributors

package operator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/xchainerr"
)

const (
	// MaxSubmitAttempts caps retries before a row is parked as failed
	// for operator intervention.
	MaxSubmitAttempts = 10

	// Exponential backoff between attempts on the same row, with full
	// jitter.
	backoffBase = 1 * time.Second
	backoffCap  = 60 * time.Second
)

// MetricsRecorder receives submission outcomes. A nil recorder disables
// instrumentation.
type MetricsRecorder interface {
	IncSubmission(chain string, ok bool)
	ObserveSubmitDuration(chain string, d time.Duration)
}

// Submitter drives pending approvals and releases onto their destination
// chains. Re-submitting the same fields after a transient failure is safe
// because the contract keys approvals by transfer hash.
type Submitter struct {
	registry  *chain.Registry
	approvals ApprovalQueue
	releases  ReleaseQueue
	batchSize int
	logger    *log.Logger
	now       func() time.Time
	metrics   MetricsRecorder
}

// NewSubmitter builds a submitter over the shared store queues.
func NewSubmitter(registry *chain.Registry, approvals ApprovalQueue, releases ReleaseQueue) *Submitter {
	return &Submitter{
		registry:  registry,
		approvals: approvals,
		releases:  releases,
		batchSize: 25,
		logger:    log.New(log.Writer(), "[Submitter] ", log.LstdFlags),
		now:       time.Now,
	}
}

// SetMetrics attaches a metrics recorder.
func (s *Submitter) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// RunOnce processes one batch of pending approvals and releases.
func (s *Submitter) RunOnce(ctx context.Context) error {
	approvals, err := s.approvals.FetchPendingSubmission(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending approvals: %w", err)
	}
	for _, a := range approvals {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.submitApproval(ctx, a)
	}

	releases, err := s.releases.FetchPendingSubmission(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending releases: %w", err)
	}
	for _, rel := range releases {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.submitRelease(ctx, rel)
	}
	return nil
}

func (s *Submitter) submitApproval(ctx context.Context, a *store.Approval) {
	submission := chain.ApprovalSubmission{
		SrcChainKey: sliceTo32(a.SourceChain),
		SrcAccount:  sliceTo32(a.Sender),
		DestAccount: sliceTo32(a.Recipient),
		Token:       sliceTo32(a.Token),
		Amount:      a.Amount.BigInt(),
		Nonce:       a.Nonce,
		Fee:         a.Fee.BigInt(),
	}
	if len(a.FeeRecipient) == 32 {
		submission.FeeRecipient = sliceTo32(a.FeeRecipient)
	}
	submission.DeductFromAmount = a.DeductFromAmount

	s.submit(ctx, rowView{
		id:           a.ID.String(),
		destChain:    sliceTo32(a.DestChain),
		transferHash: sliceTo32(a.TransferHash),
		attempts:     a.Attempts,
		lastAttempt:  a.LastAttemptAt,
		markSubmitted: func(txHash string) error {
			return s.approvals.MarkSubmitted(context.WithoutCancel(ctx), a.ID, txHash)
		},
		markConfirmed: func() error {
			return s.approvals.MarkConfirmed(context.WithoutCancel(ctx), a.ID, 0)
		},
		markStatus: func(status store.DepositStatus, msg string) error {
			return s.approvals.MarkStatus(ctx, a.ID, status, msg)
		},
	}, submission)
}

func (s *Submitter) submitRelease(ctx context.Context, rel *store.Release) {
	submission := chain.ApprovalSubmission{
		SrcChainKey: sliceTo32(rel.SourceChain),
		SrcAccount:  sliceTo32(rel.Sender),
		DestAccount: sliceTo32(rel.Recipient),
		Token:       sliceTo32(rel.Token),
		Amount:      rel.Amount.BigInt(),
		Nonce:       rel.Nonce,
		Fee:         rel.Fee.BigInt(),
	}
	if len(rel.FeeRecipient) == 32 {
		submission.FeeRecipient = sliceTo32(rel.FeeRecipient)
	}
	submission.DeductFromAmount = rel.DeductFromAmount

	s.submit(ctx, rowView{
		id:           rel.ID.String(),
		destChain:    sliceTo32(rel.DestChain),
		transferHash: sliceTo32(rel.TransferHash),
		attempts:     rel.Attempts,
		lastAttempt:  rel.LastAttemptAt,
		markSubmitted: func(txHash string) error {
			return s.releases.MarkSubmitted(context.WithoutCancel(ctx), rel.ID, txHash)
		},
		markConfirmed: func() error {
			return s.releases.MarkConfirmed(context.WithoutCancel(ctx), rel.ID, 0)
		},
		markStatus: func(status store.DepositStatus, msg string) error {
			return s.releases.MarkStatus(ctx, rel.ID, status, msg)
		},
	}, submission)
}

// rowView abstracts an approval or release row down to what the submit path
// needs, so both share one state machine.
type rowView struct {
	id            string
	destChain     [32]byte
	transferHash  [32]byte
	attempts      int
	lastAttempt   *time.Time
	markSubmitted func(txHash string) error
	markConfirmed func() error
	markStatus    func(status store.DepositStatus, msg string) error
}

func (s *Submitter) submit(ctx context.Context, row rowView, submission chain.ApprovalSubmission) {
	if row.attempts >= MaxSubmitAttempts {
		s.markOrLog(row, store.StatusFailed, "attempts exhausted")
		return
	}
	if !s.backoffElapsed(row) {
		return
	}

	dest, ok := s.registry.ByKey(row.destChain)
	if !ok {
		s.markOrLog(row, store.StatusFailed, xchainerr.ErrUnknownDestChain.Error())
		return
	}

	start := s.now()
	txHash, err := dest.SubmitApproval(ctx, submission)
	if s.metrics != nil {
		s.metrics.IncSubmission(dest.Name(), err == nil)
		s.metrics.ObserveSubmitDuration(dest.Name(), s.now().Sub(start))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.handleSubmitError(ctx, row, dest, err)
		return
	}

	// Past this point the broadcast has succeeded: the row update must
	// land even if shutdown is racing us, so detach from cancellation.
	if err := row.markSubmitted(txHash); err != nil {
		s.logger.Printf("row %s: broadcast %s succeeded but row update failed: %v", row.id, txHash, err)
		return
	}
	s.logger.Printf("row %s: submitted to %s as %s", row.id, dest.Name(), txHash)
}

func (s *Submitter) handleSubmitError(ctx context.Context, row rowView, dest chain.Chain, submitErr error) {
	// A revert can mean the approval is already on chain (another
	// operator, or our own earlier attempt whose status update was
	// lost); re-read the contract before treating it as a failure.
	if xchainerr.IsRevert(submitErr) {
		state, err := dest.ApprovalState(ctx, row.transferHash)
		if err == nil && state.IsApproved && !state.Cancelled {
			s.logger.Printf("row %s: already approved on %s, recording confirmed", row.id, dest.Name())
			if err := row.markConfirmed(); err != nil {
				s.logger.Printf("row %s: failed to record confirmed: %v", row.id, err)
			}
			return
		}
	}

	s.logger.Printf("row %s: submission attempt failed: %v", row.id, submitErr)
	s.markOrLog(row, store.StatusPending, submitErr.Error())
}

func (s *Submitter) markOrLog(row rowView, status store.DepositStatus, msg string) {
	if err := row.markStatus(status, msg); err != nil {
		s.logger.Printf("row %s: failed to update status: %v", row.id, err)
	}
}

// backoffElapsed applies exponential backoff with full jitter between
// attempts on the same row: base 1s, factor 2, cap 60s.
func (s *Submitter) backoffElapsed(row rowView) bool {
	if row.attempts == 0 || row.lastAttempt == nil {
		return true
	}

	backoff := backoffBase << uint(row.attempts-1)
	if backoff > backoffCap || backoff <= 0 {
		backoff = backoffCap
	}
	wait := time.Duration(rand.Float64() * float64(backoff))
	return s.now().After(row.lastAttempt.Add(wait))
}
