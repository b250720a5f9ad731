// Copyright 2025 CL8Y Bridge Contributors
//
// Package xchainerr classifies the failure modes the operator and canceler
// share: terminal verification outcomes as errors.Is-compatible sentinels,
// and the node-returned rejection classes that can only be recognized by
// message substring because the upstream clients surface them as opaque
// strings (go-ethereum RPC rejections and the Cosmos sequence check). Those
// substring checks live here so every component classifies the same string
// the same way; the Postgres bootstrap probe is the one substring check
// kept in pkg/store.
package xchainerr

import (
	"errors"
	"strings"
)

// Terminal verification outcomes. The sentinel message is the reason
// recorded on the failed row, so operators grepping the store see the same
// token the code branches on.
var (
	// ErrDepositNotOnChain: the source contract never indexed the
	// deposit's transfer hash.
	ErrDepositNotOnChain = errors.New("DepositNotOnChain")

	// ErrUnknownSourceChain: the deposit row references a source chain
	// key with no configured client.
	ErrUnknownSourceChain = errors.New("UnknownSourceChain")

	// ErrUnknownDestChain: the deposit's destination chain key has no
	// configured client, so no approval can ever be built for it.
	ErrUnknownDestChain = errors.New("UnknownDestinationChain")

	// ErrHashMismatch: the locally re-derived transfer hash disagrees
	// with the stored one.
	ErrHashMismatch = errors.New("TransferHashMismatch")
)

// IsTerminal reports whether err is one of the terminal verification
// sentinels, as opposed to a transient I/O failure worth retrying.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrDepositNotOnChain) ||
		errors.Is(err, ErrUnknownSourceChain) ||
		errors.Is(err, ErrUnknownDestChain) ||
		errors.Is(err, ErrHashMismatch)
}

// IsRetryableBroadcast reports whether an EVM node rejected a broadcast for
// a reason the submitter resolves by re-bumping gas or re-reserving the
// nonce and trying again.
func IsRetryableBroadcast(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "replacement transaction underpriced") ||
		strings.Contains(msg, "transaction underpriced") ||
		strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "already known")
}

// IsRevert reports whether a broadcast or call error was a chain-returned
// revert rather than a transport failure. The submitter follows up with an
// on-chain idempotence check, since a revert on a duplicate approval means
// the intended state is already there.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert")
}

// IsSequenceMismatch reports whether a Cosmos broadcast rejection was the
// chain's account-sequence check, the one class the broadcaster retries
// in-place after refetching the account state.
func IsSequenceMismatch(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "account sequence mismatch")
}
