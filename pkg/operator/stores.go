// Copyright 2025 CL8Y Bridge Contributors

package operator

import (
	"context"

	"github.com/google/uuid"

	"github.com/cl8y-bridge/bridge-core/pkg/store"
)

// The operator consumes narrow slices of the repositories so the pipeline
// stages can be exercised against in-memory fakes.

// DepositQueue is the verifier's view of the deposit repository.
type DepositQueue interface {
	FetchPending(ctx context.Context, limit int) ([]*store.ObservedDeposit, error)
	MarkStatus(ctx context.Context, id uuid.UUID, status store.DepositStatus, errMsg string) error
}

// ApprovalQueue is the submitter's and confirmation tracker's view of the
// approval repository.
type ApprovalQueue interface {
	Insert(ctx context.Context, a *store.Approval) error
	FetchPendingSubmission(ctx context.Context, limit int) ([]*store.Approval, error)
	FetchSubmittedForConfirmation(ctx context.Context, limit int) ([]*store.Approval, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error
	MarkConfirmed(ctx context.Context, id uuid.UUID, height int64) error
	MarkStatus(ctx context.Context, id uuid.UUID, status store.DepositStatus, errMsg string) error
}

// ReleaseQueue mirrors ApprovalQueue for Cosmos-destination releases.
type ReleaseQueue interface {
	Insert(ctx context.Context, rel *store.Release) error
	FetchPendingSubmission(ctx context.Context, limit int) ([]*store.Release, error)
	FetchSubmittedForConfirmation(ctx context.Context, limit int) ([]*store.Release, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error
	MarkConfirmed(ctx context.Context, id uuid.UUID, height int64) error
	MarkStatus(ctx context.Context, id uuid.UUID, status store.DepositStatus, errMsg string) error
}
