// Copyright 2025 CL8Y Bridge Contributors

package operator

import (
	"context"
	"testing"
	"time"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
)

func trackerFixture() (*ConfirmationTracker, *fakeChain, *fakeChain, *memApprovals) {
	src := newFakeChain("src-evm", chain.PlatformEVM, 1)
	dest := newFakeChain("dest-evm", chain.PlatformEVM, 2)
	approvals := newMemApprovals()
	releases := newMemReleases()
	tr := NewConfirmationTracker(mustRegistry(src, dest), approvals, releases)
	return tr, src, dest, approvals
}

func submittedApproval(src, dest *fakeChain, approvals *memApprovals) *store.Approval {
	a := pendingApproval(src, dest, 1)
	a.Status = store.StatusSubmitted
	a.SubmitTxHash = "0xapproval"
	now := time.Now()
	a.LastAttemptAt = &now
	approvals.rows[a.ID] = a
	return a
}

func TestConfirmationTracker_PromotesAtDepth(t *testing.T) {
	tr, src, dest, approvals := trackerFixture()

	a := submittedApproval(src, dest, approvals)
	dest.txHeights["0xapproval"] = 90
	dest.latest = 93 // height + finality(3)

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if a.Status != store.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", a.Status)
	}
	if a.ConfirmedHeight != 90 {
		t.Errorf("confirmed height = %d, want 90", a.ConfirmedHeight)
	}
}

func TestConfirmationTracker_WaitsBelowDepth(t *testing.T) {
	tr, src, dest, approvals := trackerFixture()

	a := submittedApproval(src, dest, approvals)
	dest.txHeights["0xapproval"] = 90
	dest.latest = 92 // one confirmation short

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if a.Status != store.StatusSubmitted {
		t.Errorf("status = %s, want still submitted", a.Status)
	}
}

func TestConfirmationTracker_MissingTxWithinGrace(t *testing.T) {
	tr, src, dest, approvals := trackerFixture()

	a := submittedApproval(src, dest, approvals)
	// tx never lands in dest.txHeights: ErrTxNotFound, but the broadcast
	// was moments ago.

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if a.Status != store.StatusSubmitted {
		t.Errorf("status = %s, want still submitted during grace", a.Status)
	}
}

// A transaction missing long past the grace window was dropped by a reorg;
// the row goes back to pending so the submitter re-broadcasts.
func TestConfirmationTracker_ReorgRevertsToPending(t *testing.T) {
	tr, src, dest, approvals := trackerFixture()

	a := submittedApproval(src, dest, approvals)
	old := time.Now().Add(-10 * time.Minute)
	a.LastAttemptAt = &old

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if a.Status != store.StatusPending {
		t.Fatalf("status = %s, want pending after reorg", a.Status)
	}
	if a.Error == "" {
		t.Error("reorg reason not recorded")
	}
}
