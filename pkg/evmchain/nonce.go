// Copyright 2025 CL8Y Bridge Contributors

package evmchain

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceManager reserves per-account nonces for the submitter so that two
// concurrently in-flight submissions never race on the same value. The
// mutex is held only across the local reservation arithmetic, never across
// the RPC round-trip that follows.
type NonceManager struct {
	mu       sync.Mutex
	reserved map[common.Address]uint64
}

// NewNonceManager returns an empty NonceManager.
func NewNonceManager() *NonceManager {
	return &NonceManager{reserved: make(map[common.Address]uint64)}
}

// Reserve returns the next nonce to use for address: max(rpcNonce,
// lastReserved+1). The caller is responsible for calling Release if the
// reserved nonce ultimately goes unused (e.g. the submission failed before
// broadcast), so a later Reserve call doesn't skip it forever.
func (m *NonceManager) Reserve(ctx context.Context, address common.Address, rpcNonce uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := rpcNonce
	if last, ok := m.reserved[address]; ok && last+1 > next {
		next = last + 1
	}
	m.reserved[address] = next
	return next
}

// Release rolls the reservation back by one, used when a reserved nonce was
// never broadcast.
func (m *NonceManager) Release(address common.Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.reserved[address]; ok && last == nonce {
		m.reserved[address] = nonce - 1
	}
}
