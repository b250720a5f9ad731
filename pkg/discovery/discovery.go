// Copyright 2025 CL8Y Bridge Contributors
//
// Package discovery periodically enumerates the on-chain chain registry
// from one bootstrap chain and records the result. Discovery is advisory:
// a discovered chain still needs static configuration (RPC URL, signer)
// before the supervisor can watch it, so the task's job is surfacing drift
// between the registry and the deployment, not reconfiguring the process.
package discovery

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// Interval between registry scans after the startup run.
const Interval = 4 * time.Hour

// ChainStore is the slice of the discovered-chain repository the task
// writes through.
type ChainStore interface {
	Upsert(ctx context.Context, c *store.DiscoveredChain) error
}

// Task runs periodic chain discovery against one bootstrap chain.
type Task struct {
	bootstrap  chain.RegistryEnumerator
	registry   *chain.Registry
	discovered ChainStore
	interval   time.Duration
	logger     *log.Logger
}

// New builds a discovery task. The registry is consulted only to match
// discovered chains against the statically configured ones: for each row's
// display name and to log which discovered chains are not configured.
func New(bootstrap chain.RegistryEnumerator, registry *chain.Registry, discovered ChainStore) *Task {
	return &Task{
		bootstrap:  bootstrap,
		registry:   registry,
		discovered: discovered,
		interval:   Interval,
		logger:     log.New(log.Writer(), "[Discovery] ", log.LstdFlags),
	}
}

// Run performs one scan at startup and then every 4 hours until ctx is
// cancelled. A failed scan is logged and retried at the next tick; the
// registry's contents don't change often enough to warrant tighter retry.
func (t *Task) Run(ctx context.Context) error {
	t.logger.Printf("chain discovery starting (bootstrap %s, every %s)", t.bootstrap.Name(), t.interval)

	if err := t.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.logger.Printf("startup discovery failed: %v", err)
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Println("shutting down")
			return nil
		case <-ticker.C:
		}

		if err := t.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			t.logger.Printf("discovery failed: %v", err)
		}
	}
}

// RunOnce scans the bootstrap chain's registry and upserts every row.
func (t *Task) RunOnce(ctx context.Context) error {
	registrations, err := t.bootstrap.RegisteredChains(ctx)
	if err != nil {
		return err
	}

	known := 0
	for _, reg := range registrations {
		key := discoveredKey(reg)

		row := &store.DiscoveredChain{
			ChainKey:      key[:],
			NativeID:      decimal.NewFromBigInt(reg.NativeID, 0),
			ChainType:     string(reg.ChainType),
			BridgeAddress: reg.BridgeAddress,
			DisplayName:   displayName(t.registry, reg),
			Enabled:       true,
		}
		if err := t.discovered.Upsert(ctx, row); err != nil {
			return err
		}

		if _, ok := t.registry.ByID(reg.ChainID); ok {
			known++
		} else {
			t.logger.Printf("registry lists chain %x (%s) with no static configuration", reg.ChainID, reg.ChainType)
		}
	}

	t.logger.Printf("discovery complete: %d registered, %d configured locally", len(registrations), known)
	return nil
}

// discoveredKey derives the store key for a registration. EVM chain keys
// are derivable from the native id; for Cosmos entries the registry's
// 4-byte id is used left-padded, since the chain-id string behind the real
// key only exists in static configuration.
func discoveredKey(reg chain.Registration) [32]byte {
	if reg.ChainType == chain.PlatformEVM && reg.NativeID != nil {
		if key, err := xchain.EVMChainKey(reg.NativeID.Uint64()); err == nil {
			return key
		}
	}
	var key [32]byte
	copy(key[28:], reg.ChainID[:])
	return key
}

func displayName(registry *chain.Registry, reg chain.Registration) string {
	if c, ok := registry.ByID(reg.ChainID); ok {
		return c.Name()
	}
	return "unconfigured"
}
