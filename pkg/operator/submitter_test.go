// Copyright 2025 CL8Y Bridge Contributors

package operator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
)

func pendingApproval(src, dest *fakeChain, nonce uint64) *store.Approval {
	d := testDeposit(src, dest, nonce)
	return &store.Approval{
		ID:           uuid.New(),
		DepositID:    uuid.New(),
		SourceChain:  d.SourceChain,
		DestChain:    d.DestChain,
		Sender:       d.Sender,
		Recipient:    d.Recipient,
		Token:        d.Token,
		Amount:       d.Amount,
		Nonce:        d.Nonce,
		TransferHash: d.TransferHash,
		Fee:          decimal.Zero,
		Status:       store.StatusVerified,
	}
}

func submitterFixture() (*Submitter, *fakeChain, *fakeChain, *memApprovals, *memReleases) {
	src := newFakeChain("src-evm", chain.PlatformEVM, 1)
	dest := newFakeChain("dest-evm", chain.PlatformEVM, 2)
	approvals := newMemApprovals()
	releases := newMemReleases()
	s := NewSubmitter(mustRegistry(src, dest), approvals, releases)
	return s, src, dest, approvals, releases
}

func TestSubmitter_HappyPath(t *testing.T) {
	s, src, dest, approvals, _ := submitterFixture()

	a := pendingApproval(src, dest, 1)
	approvals.rows[a.ID] = a

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if a.Status != store.StatusSubmitted {
		t.Fatalf("status = %s, want submitted", a.Status)
	}
	if a.SubmitTxHash != "0xsubmitted" {
		t.Errorf("tx hash = %q", a.SubmitTxHash)
	}

	if len(dest.submissions) != 1 {
		t.Fatalf("submissions = %d, want 1", len(dest.submissions))
	}
	sub := dest.submissions[0]
	if sub.Nonce != 1 || sub.Amount.Int64() != 1_000_000 {
		t.Errorf("submission carried (%d, %s)", sub.Nonce, sub.Amount)
	}
	if sub.SrcChainKey != src.key {
		t.Errorf("submission srcChainKey = %x", sub.SrcChainKey)
	}
}

// S5: transient broadcast failure, then success on retry. Exactly one
// effective submission, attempts recorded.
func TestSubmitter_TransientFailureThenSuccess(t *testing.T) {
	s, src, dest, approvals, _ := submitterFixture()
	s.now = func() time.Time { return time.Now().Add(time.Hour) } // backoff always elapsed

	a := pendingApproval(src, dest, 1)
	approvals.rows[a.ID] = a
	dest.submitErrs = []error{errors.New("connection reset by peer")}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if a.Status != store.StatusPending {
		t.Fatalf("status after failure = %s, want pending", a.Status)
	}
	if a.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", a.Attempts)
	}
	if a.Error == "" {
		t.Error("failure reason not recorded")
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if a.Status != store.StatusSubmitted {
		t.Fatalf("status after retry = %s, want submitted", a.Status)
	}
	if len(dest.submissions) != 2 {
		t.Errorf("broadcast attempts = %d, want 2", len(dest.submissions))
	}
}

func TestSubmitter_AttemptsExhausted(t *testing.T) {
	s, src, dest, approvals, _ := submitterFixture()

	a := pendingApproval(src, dest, 1)
	a.Status = store.StatusPending
	a.Attempts = MaxSubmitAttempts
	approvals.rows[a.ID] = a

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if a.Status != store.StatusFailed {
		t.Fatalf("status = %s, want failed", a.Status)
	}
	if len(dest.submissions) != 0 {
		t.Error("broadcast attempted past the attempt cap")
	}
}

// A chain-returned revert whose on-chain state already reflects our intent
// is success, not failure.
func TestSubmitter_RevertWithExistingApproval(t *testing.T) {
	s, src, dest, approvals, _ := submitterFixture()

	a := pendingApproval(src, dest, 1)
	approvals.rows[a.ID] = a
	dest.submitErrs = []error{errors.New("execution reverted: already approved")}
	dest.approvalState = &chain.ApprovalState{IsApproved: true}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if a.Status != store.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed via idempotence check", a.Status)
	}
}

func TestSubmitter_BackoffDefersRetry(t *testing.T) {
	s, src, dest, approvals, _ := submitterFixture()

	recent := time.Now()
	a := pendingApproval(src, dest, 1)
	a.Status = store.StatusPending
	a.Attempts = 5
	a.LastAttemptAt = &recent
	approvals.rows[a.ID] = a

	// Freeze "now" at the last attempt: no backoff window has elapsed.
	s.now = func() time.Time { return recent }

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(dest.submissions) != 0 {
		t.Error("broadcast attempted inside the backoff window")
	}
	if a.Status != store.StatusPending {
		t.Errorf("status = %s, want pending", a.Status)
	}
}

func TestSubmitter_ReleasesRouteToCosmos(t *testing.T) {
	src := newFakeChain("src-evm", chain.PlatformEVM, 1)
	dest := newFakeChain("dest-cosmos", chain.PlatformCosmos, 3)
	approvals := newMemApprovals()
	releases := newMemReleases()
	s := NewSubmitter(mustRegistry(src, dest), approvals, releases)

	d := testDeposit(src, dest, 2)
	rel := &store.Release{
		ID:           uuid.New(),
		DepositID:    uuid.New(),
		SourceChain:  d.SourceChain,
		DestChain:    d.DestChain,
		Sender:       d.Sender,
		Recipient:    d.Recipient,
		Token:        d.Token,
		Amount:       d.Amount,
		Nonce:        d.Nonce,
		TransferHash: d.TransferHash,
		Fee:          decimal.Zero,
		Status:       store.StatusVerified,
	}
	releases.rows[rel.ID] = rel

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if rel.Status != store.StatusSubmitted {
		t.Fatalf("release status = %s, want submitted", rel.Status)
	}
	if len(dest.submissions) != 1 {
		t.Errorf("cosmos submissions = %d, want 1", len(dest.submissions))
	}
}
