// Copyright 2025 CL8Y Bridge Contributors
//
// Package watcher polls one chain for bridge deposit events and lands them
// in the persistent store. Each watcher owns its chain's deposit cursor
// outright: a single goroutine advances it, so cursor monotonicity holds by
// construction.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// Poll cadence per platform, jittered ±20% so a fleet of watchers doesn't
// phase-lock its RPC load.
const (
	EVMPollInterval    = 2 * time.Second
	CosmosPollInterval = 3 * time.Second

	// MaxBlockRange bounds a single get-logs / tx-scan window so a
	// watcher catching up after downtime doesn't issue unbounded range
	// queries.
	MaxBlockRange = 500
)

// DepositStore is the slice of the deposit repository the watcher writes
// through.
type DepositStore interface {
	MarkReorgedFrom(ctx context.Context, chainKey []byte, block int64) (int64, error)
}

// BatchStore commits one polled batch atomically with its cursor advance.
type BatchStore interface {
	CommitBatch(ctx context.Context, deposits []*store.ObservedDeposit, chainKey []byte, scope string, block int64, blockHash string) error
}

// CursorStore is the slice of the cursor repository the watcher drives.
type CursorStore interface {
	Get(ctx context.Context, chainKey []byte, scope string) (*store.ChainCursor, error)
	Initialize(ctx context.Context, chainKey []byte, scope, chainName string, startBlock int64) error
	Rewind(ctx context.Context, chainKey []byte, scope string, block int64) error
}

// Watcher polls a single chain for deposits.
type Watcher struct {
	chain    chain.Chain
	registry *chain.Registry
	deposits DepositStore
	cursors  CursorStore
	batches  BatchStore
	interval time.Duration
	logger   *log.Logger
}

// New builds a watcher for c. The registry resolves a deposit's destination
// chain key to its 4-byte registry id when deriving the transfer hash.
func New(c chain.Chain, registry *chain.Registry, deposits DepositStore, cursors CursorStore, batches BatchStore) *Watcher {
	interval := EVMPollInterval
	if c.Platform() == chain.PlatformCosmos {
		interval = CosmosPollInterval
	}

	return &Watcher{
		chain:    c,
		registry: registry,
		deposits: deposits,
		cursors:  cursors,
		batches:  batches,
		interval: interval,
		logger:   log.New(log.Writer(), fmt.Sprintf("[Watcher:%s] ", c.Name()), log.LstdFlags),
	}
}

// maxConsecutiveFailures bounds how long a watcher tolerates a failing
// dependency before surfacing the error to the supervisor, which restarts
// the task after its cooldown.
const maxConsecutiveFailures = 10

// Run polls until ctx is cancelled. A failed iteration is logged and
// retried on the next tick; a sustained failure streak bubbles up to the
// supervisor instead of spinning forever against a dead dependency.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.initCursor(ctx); err != nil {
		return err
	}

	w.logger.Printf("watching deposits (interval %s, finality %d)", w.interval, w.chain.FinalityBlocks())

	failures := 0
	for {
		select {
		case <-ctx.Done():
			w.logger.Println("shutting down")
			return nil
		case <-time.After(jittered(w.interval)):
		}

		if err := w.poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			failures++
			w.logger.Printf("poll failed (%d consecutive): %v", failures, err)
			if failures >= maxConsecutiveFailures {
				return fmt.Errorf("watcher %s failing persistently: %w", w.chain.Name(), err)
			}
			continue
		}
		failures = 0
	}
}

// initCursor seeds the cursor at the chain's current finalized tip on first
// startup, so a fresh deployment doesn't replay the chain's history.
func (w *Watcher) initCursor(ctx context.Context) error {
	key := w.chain.ChainKey()

	_, err := w.cursors.Get(ctx, key[:], store.CursorScopeDeposits)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrCursorNotFound) {
		return err
	}

	latest, err := w.chain.LatestHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to query %s head for cursor init: %w", w.chain.Name(), err)
	}
	start := latest - int64(w.chain.FinalityBlocks())
	if start < 0 {
		start = 0
	}
	return w.cursors.Initialize(ctx, key[:], store.CursorScopeDeposits, w.chain.Name(), start)
}

func (w *Watcher) poll(ctx context.Context) error {
	key := w.chain.ChainKey()

	cursor, err := w.cursors.Get(ctx, key[:], store.CursorScopeDeposits)
	if err != nil {
		return err
	}

	// Reorg check: the block our cursor last settled on must still be
	// canonical. If not, flag the replaced range and rewind so the
	// canonical events are re-emitted.
	if cursor.LastBlockHash != "" {
		hash, err := w.chain.BlockHash(ctx, cursor.LastBlock)
		if err != nil {
			return err
		}
		if hash != cursor.LastBlockHash {
			return w.handleReorg(ctx, cursor)
		}
	}

	latest, err := w.chain.LatestHeight(ctx)
	if err != nil {
		return err
	}

	from := cursor.LastBlock + 1
	to := latest - int64(w.chain.FinalityBlocks())
	if to >= from+MaxBlockRange {
		to = from + MaxBlockRange - 1
	}
	if to < from {
		return nil
	}

	deposits, err := w.chain.FetchDeposits(ctx, from, to)
	if err != nil {
		return err
	}

	toHash, err := w.chain.BlockHash(ctx, to)
	if err != nil {
		return err
	}

	rows := make([]*store.ObservedDeposit, len(deposits))
	for i := range deposits {
		rows[i] = w.toRow(&deposits[i])
	}
	if err := w.batches.CommitBatch(ctx, rows, key[:], store.CursorScopeDeposits, to, toHash); err != nil {
		return err
	}

	if len(deposits) > 0 {
		w.logger.Printf("observed %d deposit(s) in blocks [%d, %d]", len(deposits), from, to)
	}
	return nil
}

func (w *Watcher) handleReorg(ctx context.Context, cursor *store.ChainCursor) error {
	key := w.chain.ChainKey()

	rewindTo := cursor.LastBlock - int64(w.chain.FinalityBlocks())
	if rewindTo < 0 {
		rewindTo = 0
	}

	flagged, err := w.deposits.MarkReorgedFrom(ctx, key[:], rewindTo+1)
	if err != nil {
		return err
	}
	if err := w.cursors.Rewind(ctx, key[:], store.CursorScopeDeposits, rewindTo); err != nil {
		return err
	}

	w.logger.Printf("reorg at block %d: flagged %d deposit(s), rewound cursor to %d",
		cursor.LastBlock, flagged, rewindTo)
	return nil
}

// toRow maps a chain-level deposit to its store row, deriving the transfer
// hash when the destination chain is registered. An unknown destination
// leaves a zero hash; the verifier turns that row into a terminal failure
// with a recorded reason rather than dropping the observation.
func (w *Watcher) toRow(d *chain.Deposit) *store.ObservedDeposit {
	srcKey := w.chain.ChainKey()

	var transferHash [32]byte
	if dest, ok := w.registry.ByKey(d.DestChainKey); ok {
		transferHash = xchain.TransferHash(
			w.chain.RegistryID(), dest.RegistryID(),
			[32]byte(d.SrcAccount), d.DestAccount, d.DestToken,
			d.Amount, new(big.Int).SetUint64(d.Nonce),
		)
	}

	return &store.ObservedDeposit{
		SourceChain:  srcKey[:],
		DestChain:    d.DestChainKey[:],
		Sender:       d.SrcAccount.Bytes(),
		Recipient:    d.DestAccount[:],
		Token:        d.DestToken[:],
		Amount:       decimal.NewFromBigInt(d.Amount, 0),
		Nonce:        d.Nonce,
		TransferHash: transferHash[:],
		TxHash:       d.TxHash,
		LogIndex:     int(d.LogIndex),
		BlockNumber:  d.BlockNumber,
		BlockHash:    d.BlockHash,
	}
}

// jittered spreads interval by ±20%.
func jittered(interval time.Duration) time.Duration {
	spread := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(interval) * spread)
}
