// Copyright 2025 CL8Y Bridge Contributors

package cosmoschain

import (
	"context"
	"fmt"
	"sync"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cl8y-bridge/bridge-core/pkg/xchainerr"
)

// SequenceManager reserves per-account sequences for the submitter so that
// two concurrently in-flight broadcasts never race on the same value. The
// mutex is held only across the local reservation arithmetic, never across
// the LCD round-trip that follows.
type SequenceManager struct {
	mu       sync.Mutex
	reserved map[string]uint64
}

// NewSequenceManager returns an empty SequenceManager.
func NewSequenceManager() *SequenceManager {
	return &SequenceManager{reserved: make(map[string]uint64)}
}

// Reserve returns the next sequence to use for addr: max(lcdSequence,
// lastReserved+1). Callers release the reservation if the broadcast never
// happened.
func (m *SequenceManager) Reserve(addr string, lcdSequence uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := lcdSequence
	if last, ok := m.reserved[addr]; ok && last+1 > next {
		next = last + 1
	}
	m.reserved[addr] = next
	return next
}

// Release rolls the reservation back by one, used when a reserved sequence
// was never broadcast.
func (m *SequenceManager) Release(addr string, sequence uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.reserved[addr]; ok && last == sequence {
		m.reserved[addr] = sequence - 1
	}
}

// Reset drops the local reservation for addr so the next Reserve starts
// from the LCD-reported sequence again, used after a sequence-mismatch
// rejection.
func (m *SequenceManager) Reset(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.reserved, addr)
}

// Broadcaster signs and broadcasts wasm execute messages against the bridge
// contract for one chain, managing account number and sequence.
type Broadcaster struct {
	client    *Client
	signer    *Signer
	chainID   string
	gasLimit  uint64
	sequences *SequenceManager
}

// NewBroadcaster binds a signer to a chain's LCD client.
func NewBroadcaster(client *Client, signer *Signer, chainID string, gasLimit uint64) *Broadcaster {
	return &Broadcaster{
		client:    client,
		signer:    signer,
		chainID:   chainID,
		gasLimit:  gasLimit,
		sequences: NewSequenceManager(),
	}
}

// Execute signs and broadcasts msg as a MsgExecuteContract against the
// bridge contract, returning the broadcast tx hash. On a sequence-mismatch
// rejection the LCD-reported sequence is refetched and the broadcast retried
// once before the error is surfaced to the caller's transient-retry loop.
func (b *Broadcaster) Execute(ctx context.Context, msg any, funds sdk.Coins) (string, error) {
	txHash, err := b.executeOnce(ctx, msg, funds)
	if err == nil {
		return txHash, nil
	}
	if !xchainerr.IsSequenceMismatch(err) {
		return "", err
	}

	b.sequences.Reset(b.signer.Address())
	txHash, retryErr := b.executeOnce(ctx, msg, funds)
	if retryErr != nil {
		return "", fmt.Errorf("broadcast failed after sequence refresh: %w", retryErr)
	}
	return txHash, nil
}

func (b *Broadcaster) executeOnce(ctx context.Context, msg any, funds sdk.Coins) (string, error) {
	accountNumber, lcdSequence, err := b.client.AccountInfo(ctx, b.signer.Address())
	if err != nil {
		return "", err
	}
	sequence := b.sequences.Reserve(b.signer.Address(), lcdSequence)

	txBytes, err := BuildExecuteContractTx(
		ctx, b.signer, b.client.BridgeAddress(), msg, funds,
		accountNumber, sequence, b.chainID, b.gasLimit,
	)
	if err != nil {
		b.sequences.Release(b.signer.Address(), sequence)
		return "", err
	}

	txHash, err := b.client.BroadcastTx(ctx, txBytes)
	if err != nil {
		b.sequences.Release(b.signer.Address(), sequence)
		return "", err
	}
	return txHash, nil
}
