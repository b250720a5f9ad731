// Copyright 2025 CL8Y Bridge Contributors

package cosmoschain

import (
	"testing"
)

func TestSequenceManager_ReserveAdvances(t *testing.T) {
	m := NewSequenceManager()
	addr := "terra1signer"

	if n := m.Reserve(addr, 3); n != 3 {
		t.Fatalf("first reserve = %d, want 3", n)
	}
	// Stale LCD sequence must not be reused while a broadcast is in
	// flight.
	if n := m.Reserve(addr, 3); n != 4 {
		t.Fatalf("second reserve = %d, want 4", n)
	}
	if n := m.Reserve(addr, 9); n != 9 {
		t.Fatalf("fresher LCD view ignored: got %d, want 9", n)
	}
}

func TestSequenceManager_ReleaseAndReset(t *testing.T) {
	m := NewSequenceManager()
	addr := "terra1signer"

	n := m.Reserve(addr, 3)
	m.Release(addr, n)
	if got := m.Reserve(addr, 3); got != 3 {
		t.Fatalf("reserve after release = %d, want 3", got)
	}

	m.Reserve(addr, 3)
	m.Reset(addr)
	if got := m.Reserve(addr, 2); got != 2 {
		t.Fatalf("reserve after reset = %d, want LCD value 2", got)
	}
}
