// Copyright 2025 CL8Y Bridge Contributors

package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DepositStatus is the lifecycle state of an ObservedDeposit / Approval.
type DepositStatus string

const (
	StatusNew       DepositStatus = "new"
	StatusVerified  DepositStatus = "verified"
	StatusApproved  DepositStatus = "approved"
	StatusPending   DepositStatus = "pending"
	StatusSubmitted DepositStatus = "submitted"
	StatusConfirmed DepositStatus = "confirmed"
	StatusFailed    DepositStatus = "failed"
	StatusReorged   DepositStatus = "reorged"
)

// ObservedDeposit is a bridge deposit event captured by a watcher.
type ObservedDeposit struct {
	ID           uuid.UUID
	SourceChain  []byte // 32-byte UniversalAddress chain key
	DestChain    []byte
	Sender       []byte // 32-byte UniversalAddress
	Recipient    []byte
	Token        []byte
	Amount       decimal.Decimal
	Nonce        uint64
	TransferHash []byte // 32-byte keccak256 output
	TxHash       string
	LogIndex     int
	BlockNumber  int64
	BlockHash    string
	Status       DepositStatus
	Error        string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Approval is the destination-chain approval derived from an ObservedDeposit.
type Approval struct {
	ID               uuid.UUID
	DepositID        uuid.UUID
	SourceChain      []byte
	DestChain        []byte
	Sender           []byte
	Recipient        []byte
	Token            []byte
	Amount           decimal.Decimal
	Nonce            uint64
	TransferHash     []byte
	Fee              decimal.Decimal
	FeeRecipient     []byte
	DeductFromAmount bool
	Status           DepositStatus
	SubmitTxHash     string
	ConfirmedHeight  int64
	Error            string
	Attempts         int
	LastAttemptAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Release is the Cosmos-destination analogue of an Approval: the verifier
// creates one when a deposit's destination is a Cosmos chain, and the
// submitter drives it through the same pending/submitted/confirmed
// lifecycle with a WithdrawApprove execute message instead of an EVM
// approveWithdraw call.
type Release struct {
	ID               uuid.UUID
	DepositID        uuid.UUID
	SourceChain      []byte
	DestChain        []byte
	Sender           []byte
	Recipient        []byte
	Token            []byte
	Amount           decimal.Decimal
	Nonce            uint64
	TransferHash     []byte
	Fee              decimal.Decimal
	FeeRecipient     []byte
	DeductFromAmount bool
	Status           DepositStatus
	SubmitTxHash     string
	ConfirmedHeight  int64
	Error            string
	Attempts         int
	LastAttemptAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Cursor scopes. A chain has one cursor per consuming pipeline, so the
// operator's deposit watcher and the canceler's approval watcher advance
// independently over the same chain.
const (
	CursorScopeDeposits  = "deposits"
	CursorScopeApprovals = "approvals"
)

// ChainCursor tracks the last block one pipeline has processed for one chain.
type ChainCursor struct {
	ChainKey      []byte
	Scope         string
	ChainName     string
	LastBlock     int64
	LastBlockHash string
	UpdatedAt     time.Time
}

// DiscoveredChain is an advisory chain-discovery result row.
type DiscoveredChain struct {
	ChainKey      []byte
	NativeID      decimal.Decimal
	ChainType     string // "evm" | "cosmos"
	BridgeAddress string
	DisplayName   string
	Enabled       bool
	DiscoveredAt  time.Time
}
