// Copyright 2025 CL8Y Bridge Contributors

package xchainerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTerminal(t *testing.T) {
	for _, err := range []error{
		ErrDepositNotOnChain,
		ErrUnknownSourceChain,
		ErrUnknownDestChain,
		ErrHashMismatch,
	} {
		if !IsTerminal(err) {
			t.Errorf("IsTerminal(%v) = false", err)
		}
		// Wrapped sentinels still classify.
		if !IsTerminal(fmt.Errorf("verify deposit: %w", err)) {
			t.Errorf("wrapped %v not recognized", err)
		}
	}

	if IsTerminal(errors.New("connection reset by peer")) {
		t.Error("transient error classified terminal")
	}
	if IsTerminal(nil) {
		t.Error("nil classified terminal")
	}
}

func TestIsRetryableBroadcast(t *testing.T) {
	cases := map[string]bool{
		"replacement transaction underpriced": true,
		"transaction underpriced":             true,
		"nonce too low":                       true,
		"already known":                       true,
		"insufficient funds for gas":          false,
		"execution reverted: dup approval":    false,
	}
	for msg, want := range cases {
		if got := IsRetryableBroadcast(errors.New(msg)); got != want {
			t.Errorf("IsRetryableBroadcast(%q) = %v, want %v", msg, got, want)
		}
	}
	if IsRetryableBroadcast(nil) {
		t.Error("nil classified retryable")
	}
}

func TestIsRevert(t *testing.T) {
	if !IsRevert(errors.New("execution reverted: withdraw already approved")) {
		t.Error("revert not recognized")
	}
	if IsRevert(errors.New("connection reset by peer")) {
		t.Error("transport error misclassified as revert")
	}
	if IsRevert(nil) {
		t.Error("nil misclassified as revert")
	}
}

func TestIsSequenceMismatch(t *testing.T) {
	err := errors.New("broadcast rejected (code 32): account sequence mismatch, expected 5, got 4")
	if !IsSequenceMismatch(err) {
		t.Error("sequence mismatch not recognized")
	}
	if IsSequenceMismatch(errors.New("out of gas")) {
		t.Error("unrelated error misclassified")
	}
	if IsSequenceMismatch(nil) {
		t.Error("nil misclassified")
	}
}
