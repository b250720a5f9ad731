// Copyright 2025 CL8Y Bridge Contributors

package cosmoschain

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"
)

const bridgeAddr = "terra1bridge000000000000000000000000000000000"

func depositEvent() wasmRawEvent {
	return wasmRawEvent{
		Type: "wasm",
		Attributes: []wasmRawAttribute{
			{Key: "_contract_address", Value: bridgeAddr},
			{Key: "action", Value: "deposit"},
			{Key: "dest_chain_key", Value: strings.Repeat("11", 32)},
			{Key: "dest_token", Value: strings.Repeat("22", 32)},
			{Key: "dest_account", Value: strings.Repeat("33", 32)},
			{Key: "sender", Value: "terra1sender00000000000000000000000000000000"},
			{Key: "token", Value: "uluna"},
			{Key: "amount", Value: "1000000"},
			{Key: "nonce", Value: "1"},
		},
	}
}

func TestGroupWasmEvents(t *testing.T) {
	events := []wasmRawEvent{
		{Type: "transfer", Attributes: []wasmRawAttribute{{Key: "amount", Value: "1uluna"}}},
		depositEvent(),
		{Type: "wasm", Attributes: []wasmRawAttribute{
			{Key: "_contract_address", Value: "terra1other"},
			{Key: "action", Value: "something_else"},
		}},
		depositEvent(),
	}

	grouped := GroupWasmEvents(events)
	if len(grouped) != 3 {
		t.Fatalf("grouped %d events, want 3", len(grouped))
	}

	// Two separate deposit events from the bridge stay separate
	// instances rather than merging attributes.
	bridgeCount := 0
	for _, ev := range grouped {
		if ev.ContractAddress == bridgeAddr {
			bridgeCount++
			if ev.Attributes["action"] != "deposit" {
				t.Errorf("bridge event action = %q", ev.Attributes["action"])
			}
			if _, ok := ev.Attributes["_contract_address"]; ok {
				t.Error("_contract_address leaked into attributes")
			}
		}
	}
	if bridgeCount != 2 {
		t.Errorf("bridge events = %d, want 2", bridgeCount)
	}
}

func TestGroupWasmEvents_SkipsContractlessEvents(t *testing.T) {
	events := []wasmRawEvent{
		{Type: "wasm", Attributes: []wasmRawAttribute{{Key: "action", Value: "deposit"}}},
	}
	if got := GroupWasmEvents(events); len(got) != 0 {
		t.Errorf("grouped %d events, want 0", len(got))
	}
}

func TestEventValue(t *testing.T) {
	events := []wasmRawEvent{depositEvent()}

	v, ok := EventValue(events, "wasm", "amount")
	if !ok || v != "1000000" {
		t.Errorf("EventValue = (%q, %v)", v, ok)
	}
	if _, ok := EventValue(events, "wasm", "missing"); ok {
		t.Error("found a value for a missing attribute")
	}
	if _, ok := EventValue(events, "transfer", "amount"); ok {
		t.Error("found a value under the wrong event type")
	}
}

func TestParseDepositObserved(t *testing.T) {
	grouped := GroupWasmEvents([]wasmRawEvent{depositEvent()})
	rec, err := ParseDepositObserved(grouped[0])
	if err != nil {
		t.Fatalf("ParseDepositObserved: %v", err)
	}

	wantKey, _ := hex.DecodeString(strings.Repeat("11", 32))
	if rec.DestChainKey != [32]byte(wantKey) {
		t.Errorf("destChainKey = %x", rec.DestChainKey)
	}
	if rec.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("amount = %s", rec.Amount)
	}
	if rec.Nonce != 1 {
		t.Errorf("nonce = %d", rec.Nonce)
	}
	if rec.Sender != "terra1sender00000000000000000000000000000000" {
		t.Errorf("sender = %q", rec.Sender)
	}
	if rec.Token != "uluna" {
		t.Errorf("token = %q", rec.Token)
	}
}

func TestParseDepositObserved_MissingAttribute(t *testing.T) {
	ev := depositEvent()
	var trimmed []wasmRawAttribute
	for _, attr := range ev.Attributes {
		if attr.Key != "amount" {
			trimmed = append(trimmed, attr)
		}
	}
	ev.Attributes = trimmed

	grouped := GroupWasmEvents([]wasmRawEvent{ev})
	if _, err := ParseDepositObserved(grouped[0]); err == nil {
		t.Error("expected error for missing amount attribute")
	}
}

func TestParseDepositObserved_UnknownAttributesIgnored(t *testing.T) {
	ev := depositEvent()
	ev.Attributes = append(ev.Attributes, wasmRawAttribute{Key: "some_future_field", Value: "x"})

	grouped := GroupWasmEvents([]wasmRawEvent{ev})
	if _, err := ParseDepositObserved(grouped[0]); err != nil {
		t.Errorf("unknown attribute broke parsing: %v", err)
	}
}

func TestParseWithdrawApproved(t *testing.T) {
	ev := wasmRawEvent{
		Type: "wasm",
		Attributes: []wasmRawAttribute{
			{Key: "_contract_address", Value: bridgeAddr},
			{Key: "action", Value: "withdraw_approve"},
			{Key: "withdraw_hash", Value: strings.Repeat("aa", 32)},
			{Key: "src_chain_key", Value: strings.Repeat("bb", 32)},
			{Key: "recipient", Value: "terra1recipient"},
			{Key: "token", Value: "uluna"},
			{Key: "amount", Value: "42"},
			{Key: "nonce", Value: "9"},
		},
	}

	grouped := GroupWasmEvents([]wasmRawEvent{ev})
	rec, err := ParseWithdrawApproved(grouped[0])
	if err != nil {
		t.Fatalf("ParseWithdrawApproved: %v", err)
	}
	if rec.Nonce != 9 || rec.Amount.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("parsed (%d, %s)", rec.Nonce, rec.Amount)
	}
}

func TestParseWithdrawCancelled_WrongAction(t *testing.T) {
	grouped := GroupWasmEvents([]wasmRawEvent{depositEvent()})
	if _, err := ParseWithdrawCancelled(grouped[0]); err == nil {
		t.Error("expected error for wrong action")
	}
}
