// Copyright 2025 CL8Y Bridge Contributors
//
// Package operator implements the verify and submit stages of the bridge's
// off-chain coordination plane, plus the confirmation tracker that promotes
// submitted approvals once the destination chain buries them.
package operator

import (
	"context"
	"log"
	"math/big"
	"time"
)

// DefaultPollInterval is the cadence of the verify/submit/confirm loops
// when no override is configured.
const DefaultPollInterval = 5 * time.Second

// Operator bundles the three pipeline stages behind one Run loop each, so
// the supervisor can start them as independent tasks sharing the store.
type Operator struct {
	Verifier      *Verifier
	Submitter     *Submitter
	Confirmations *ConfirmationTracker
	interval      time.Duration
	logger        *log.Logger
}

// New assembles an operator. interval 0 selects DefaultPollInterval.
func New(verifier *Verifier, submitter *Submitter, confirmations *ConfirmationTracker, interval time.Duration) *Operator {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Operator{
		Verifier:      verifier,
		Submitter:     submitter,
		Confirmations: confirmations,
		interval:      interval,
		logger:        log.New(log.Writer(), "[Operator] ", log.LstdFlags),
	}
}

// RunVerifier loops the verify stage until ctx is cancelled.
func (o *Operator) RunVerifier(ctx context.Context) error {
	return o.loop(ctx, "verifier", o.Verifier.RunOnce)
}

// RunSubmitter loops the submit stage until ctx is cancelled.
func (o *Operator) RunSubmitter(ctx context.Context) error {
	return o.loop(ctx, "submitter", o.Submitter.RunOnce)
}

// RunConfirmations loops the confirmation tracker until ctx is cancelled.
func (o *Operator) RunConfirmations(ctx context.Context) error {
	return o.loop(ctx, "confirmations", o.Confirmations.RunOnce)
}

func (o *Operator) loop(ctx context.Context, name string, step func(context.Context) error) error {
	o.logger.Printf("%s loop starting (interval %s)", name, o.interval)

	for {
		select {
		case <-ctx.Done():
			o.logger.Printf("%s loop shutting down", name)
			return nil
		case <-time.After(o.interval):
		}

		if err := step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// Store-level failures surface here; the supervisor
			// restarts the task after its cooldown.
			return err
		}
	}
}

// Helpers shared by the pipeline stages.

func sliceTo32(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

func isZero32(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func nonceBig(n uint64) *big.Int {
	return new(big.Int).SetUint64(n)
}
