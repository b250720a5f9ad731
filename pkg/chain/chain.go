// Copyright 2025 CL8Y Bridge Contributors
//
// Package chain is a thin dispatch layer over the per-platform clients in
// pkg/evmchain and pkg/cosmoschain, giving the watcher, operator, and
// canceler one interface to drive regardless of which platform a configured
// chain runs on.
package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// Platform identifies which execution environment a Chain wraps.
type Platform string

const (
	// PlatformEVM covers Ethereum and EVM-compatible chains.
	PlatformEVM Platform = "evm"

	// PlatformCosmos covers Cosmos SDK chains running the bridge's
	// CosmWasm contract, namely Terra Classic.
	PlatformCosmos Platform = "cosmos"
)

// ErrTxNotFound is returned by TransactionHeight while a broadcast
// transaction has not landed in a block yet, or has been dropped by a
// reorg.
var ErrTxNotFound = errors.New("transaction not found on chain")

// Deposit is the chain-agnostic view of a bridge deposit event, decoded from
// either an EVM DepositRequest log or a Cosmos wasm deposit event.
type Deposit struct {
	DestChainKey [32]byte
	DestToken    [32]byte // destination-token universal form, the hash's token field
	DestAccount  [32]byte
	SrcAccount   xchain.UniversalAddress
	Amount       *big.Int
	Nonce        uint64
	TxHash       string
	LogIndex     uint
	BlockNumber  int64
	BlockHash    string
}

// ApprovalEvent is the chain-agnostic view of a WithdrawApproved event, the
// canceler's watch input.
type ApprovalEvent struct {
	WithdrawHash [32]byte
	SrcChainKey  [32]byte
	Amount       *big.Int
	Nonce        uint64
	TxHash       string
	LogIndex     uint
	BlockNumber  int64
	BlockHash    string
}

// PendingWithdraw is the destination bridge's stored record for an approved
// withdrawal: the full transfer tuple plus approval metadata. The canceler
// treats it as the ground truth of what an operator claims happened on the
// source chain.
type PendingWithdraw struct {
	Exists      bool
	SrcChain    xchain.ChainID
	SrcAccount  [32]byte
	DestAccount [32]byte
	Token       [32]byte
	Amount      *big.Int
	Nonce       uint64
	CreatedAt   int64
	Cancelled   bool
	Executed    bool
}

// ApprovalSubmission carries the fields of a destination-chain approval
// call, populated from an approval or release row.
type ApprovalSubmission struct {
	SrcChainKey      [32]byte
	SrcAccount       [32]byte
	DestAccount      [32]byte
	Token            [32]byte // destination-token universal form
	Amount           *big.Int
	Nonce            uint64
	Fee              *big.Int
	FeeRecipient     [32]byte
	DeductFromAmount bool
}

// ApprovalState is the destination bridge's current view of an approval,
// used as the submitter's idempotence check when a broadcast reverts.
type ApprovalState struct {
	IsApproved bool
	Cancelled  bool
	Executed   bool
}

// Chain is the interface the watcher, operator, and canceler drive against,
// independent of platform.
type Chain interface {
	// Platform identifies which execution environment this Chain wraps.
	Platform() Platform

	// Name is the configured human-readable chain name.
	Name() string

	// ChainKey is the derived 32-byte chain key used to index per-chain
	// store rows, distinct from the 4-byte RegistryID used inside the
	// transfer hash itself.
	ChainKey() [32]byte

	// RegistryID is the bridge registry's 4-byte chain id.
	RegistryID() xchain.ChainID

	// FinalityBlocks is the confirmation depth the watcher waits for
	// before treating a block as settled, and the confirmation tracker
	// requires before promoting a submitted approval.
	FinalityBlocks() int

	// LatestHeight returns the chain's current head height.
	LatestHeight(ctx context.Context) (int64, error)

	// BlockHash returns the hash of the block at height, used for reorg
	// detection against a previously stored cursor or deposit row.
	BlockHash(ctx context.Context, height int64) (string, error)

	// FetchDeposits returns bridge deposit events observed in
	// [fromHeight, toHeight].
	FetchDeposits(ctx context.Context, fromHeight, toHeight int64) ([]Deposit, error)

	// FetchApprovals returns WithdrawApproved events observed in
	// [fromHeight, toHeight].
	FetchApprovals(ctx context.Context, fromHeight, toHeight int64) ([]ApprovalEvent, error)

	// HasDeposit reports whether the bridge contract indexed a deposit
	// under transferHash.
	HasDeposit(ctx context.Context, transferHash [32]byte) (bool, error)

	// PendingWithdraw returns the bridge's stored pending-withdraw record
	// for withdrawHash; Exists is false for an unknown hash.
	PendingWithdraw(ctx context.Context, withdrawHash [32]byte) (*PendingWithdraw, error)

	// ApprovalState returns the bridge's current approval flags for
	// withdrawHash.
	ApprovalState(ctx context.Context, withdrawHash [32]byte) (*ApprovalState, error)

	// SubmitApproval submits an approval transaction on this chain as the
	// destination, returning the submitted transaction hash.
	SubmitApproval(ctx context.Context, submission ApprovalSubmission) (txHash string, err error)

	// SubmitCancel submits a cancellation for a previously approved but
	// unbacked withdrawal. Cancel is idempotent on the contract side, so
	// re-submission after a restart is safe.
	SubmitCancel(ctx context.Context, withdrawHash [32]byte) (txHash string, err error)

	// TransactionHeight returns the inclusion height of a previously
	// submitted transaction, or ErrTxNotFound while it hasn't landed.
	TransactionHeight(ctx context.Context, txHash string) (int64, error)
}
