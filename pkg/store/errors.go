// Copyright 2025 CL8Y Bridge Contributors
//
// Package store provides sentinel errors for repository operations.

package store

import "errors"

// Sentinel errors for store operations
var (
	// ErrNotFound is returned when a requested entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrDepositNotFound is returned when an observed deposit is not found
	ErrDepositNotFound = errors.New("deposit not found")

	// ErrApprovalNotFound is returned when an approval is not found
	ErrApprovalNotFound = errors.New("approval not found")

	// ErrReleaseNotFound is returned when a release record is not found
	ErrReleaseNotFound = errors.New("release not found")

	// ErrCursorNotFound is returned when a chain cursor is not found
	ErrCursorNotFound = errors.New("chain cursor not found")

	// ErrDiscoveredChainNotFound is returned when a discovered chain row is not found
	ErrDiscoveredChainNotFound = errors.New("discovered chain not found")

	// ErrDuplicateDeposit is returned when a (source_chain, tx_hash, log_index)
	// tuple already exists
	ErrDuplicateDeposit = errors.New("duplicate deposit")

	// ErrDuplicateApproval is returned when a (src_chain, nonce, dest_chain)
	// tuple already exists
	ErrDuplicateApproval = errors.New("duplicate approval")

	// ErrInvalidStateTransition is returned when a status update would violate
	// the approval/deposit state machine
	ErrInvalidStateTransition = errors.New("invalid state transition")
)
