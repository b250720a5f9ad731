// Copyright 2025 CL8Y Bridge Contributors

package cosmoschain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// wasmRawEvent mirrors a single cometbft ABCI event as returned by the LCD's
// tx_response.events field: a type tag plus a flat list of key/value
// attributes.
type wasmRawEvent struct {
	Type       string             `json:"type"`
	Attributes []wasmRawAttribute `json:"attributes"`
}

type wasmRawAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WasmEvent is one decoded wasm contract event instance, its attributes
// keyed by name with the emitting contract address split out.
type WasmEvent struct {
	ContractAddress string
	Attributes      map[string]string
}

// EventValue scans events for the first attribute named attrKey on an event
// of type eventType, the flat linear attribute walk the bridge's wasm event
// parsing is grounded on.
func EventValue(events []wasmRawEvent, eventType, attrKey string) (string, bool) {
	for _, event := range events {
		if event.Type != eventType {
			continue
		}
		for _, attr := range event.Attributes {
			if attr.Key == attrKey {
				return attr.Value, true
			}
		}
	}
	return "", false
}

// GroupWasmEvents splits "wasm"-typed events into per-instance WasmEvents,
// each bounded by its _contract_address attribute. Events without a
// contract address are skipped; a transaction touching several contracts
// yields one entry per emitting event, in emission order.
func GroupWasmEvents(events []wasmRawEvent) []WasmEvent {
	var out []WasmEvent

	for _, event := range events {
		if event.Type != "wasm" {
			continue
		}

		var contractAddress string
		for _, attr := range event.Attributes {
			if attr.Key == "_contract_address" {
				contractAddress = attr.Value
				break
			}
		}
		if contractAddress == "" {
			continue
		}

		entry := WasmEvent{ContractAddress: contractAddress, Attributes: make(map[string]string)}
		for _, attr := range event.Attributes {
			if attr.Key == "_contract_address" {
				continue
			}
			entry.Attributes[attr.Key] = attr.Value
		}
		out = append(out, entry)
	}

	return out
}

// Bridge event actions, the contract's "action" attribute values.
const (
	ActionDeposit         = "deposit"
	ActionWithdrawApprove = "withdraw_approve"
	ActionWithdrawCancel  = "withdraw_cancel"
	ActionWithdrawExecute = "withdraw_execute"
)

// DepositObserved is a typed bridge deposit record materialized from a wasm
// event's attributes.
type DepositObserved struct {
	DestChainKey [32]byte
	DestToken    [32]byte
	DestAccount  [32]byte
	Sender       string // bech32 depositor
	Token        string // denom or cw20 address on the source side
	Amount       *big.Int
	Nonce        uint64
}

// WithdrawApprovedRecord is a typed withdraw-approval record, the canceler's
// watch input on a Cosmos destination.
type WithdrawApprovedRecord struct {
	WithdrawHash [32]byte
	SrcChainKey  [32]byte
	Recipient    string // bech32
	Token        string
	Amount       *big.Int
	Nonce        uint64
}

// WithdrawCancelledRecord is a typed withdraw-cancellation record.
type WithdrawCancelledRecord struct {
	WithdrawHash [32]byte
}

// WithdrawExecutedRecord is a typed withdraw-execution record.
type WithdrawExecutedRecord struct {
	WithdrawHash [32]byte
}

// ParseDepositObserved materializes a DepositObserved from ev's attributes.
// Returns an error when ev is not a deposit event or a required attribute
// is missing; the caller logs and drops the record rather than failing the
// batch.
func ParseDepositObserved(ev WasmEvent) (*DepositObserved, error) {
	if ev.Attributes["action"] != ActionDeposit {
		return nil, fmt.Errorf("event action %q is not %q", ev.Attributes["action"], ActionDeposit)
	}

	destChainKey, err := attrBytes32(ev, "dest_chain_key")
	if err != nil {
		return nil, err
	}
	destToken, err := attrBytes32(ev, "dest_token")
	if err != nil {
		return nil, err
	}
	destAccount, err := attrBytes32(ev, "dest_account")
	if err != nil {
		return nil, err
	}
	amount, err := attrAmount(ev, "amount")
	if err != nil {
		return nil, err
	}
	nonce, err := attrUint64(ev, "nonce")
	if err != nil {
		return nil, err
	}
	sender, ok := ev.Attributes["sender"]
	if !ok {
		return nil, fmt.Errorf("deposit event missing sender attribute")
	}

	return &DepositObserved{
		DestChainKey: destChainKey,
		DestToken:    destToken,
		DestAccount:  destAccount,
		Sender:       sender,
		Token:        ev.Attributes["token"],
		Amount:       amount,
		Nonce:        nonce,
	}, nil
}

// ParseWithdrawApproved materializes a WithdrawApprovedRecord from ev's
// attributes.
func ParseWithdrawApproved(ev WasmEvent) (*WithdrawApprovedRecord, error) {
	if ev.Attributes["action"] != ActionWithdrawApprove {
		return nil, fmt.Errorf("event action %q is not %q", ev.Attributes["action"], ActionWithdrawApprove)
	}

	withdrawHash, err := attrBytes32(ev, "withdraw_hash")
	if err != nil {
		return nil, err
	}
	srcChainKey, err := attrBytes32(ev, "src_chain_key")
	if err != nil {
		return nil, err
	}
	amount, err := attrAmount(ev, "amount")
	if err != nil {
		return nil, err
	}
	nonce, err := attrUint64(ev, "nonce")
	if err != nil {
		return nil, err
	}
	recipient, ok := ev.Attributes["recipient"]
	if !ok {
		return nil, fmt.Errorf("withdraw_approve event missing recipient attribute")
	}

	return &WithdrawApprovedRecord{
		WithdrawHash: withdrawHash,
		SrcChainKey:  srcChainKey,
		Recipient:    recipient,
		Token:        ev.Attributes["token"],
		Amount:       amount,
		Nonce:        nonce,
	}, nil
}

// ParseWithdrawCancelled materializes a WithdrawCancelledRecord.
func ParseWithdrawCancelled(ev WasmEvent) (*WithdrawCancelledRecord, error) {
	if ev.Attributes["action"] != ActionWithdrawCancel {
		return nil, fmt.Errorf("event action %q is not %q", ev.Attributes["action"], ActionWithdrawCancel)
	}
	withdrawHash, err := attrBytes32(ev, "withdraw_hash")
	if err != nil {
		return nil, err
	}
	return &WithdrawCancelledRecord{WithdrawHash: withdrawHash}, nil
}

// ParseWithdrawExecuted materializes a WithdrawExecutedRecord.
func ParseWithdrawExecuted(ev WasmEvent) (*WithdrawExecutedRecord, error) {
	if ev.Attributes["action"] != ActionWithdrawExecute {
		return nil, fmt.Errorf("event action %q is not %q", ev.Attributes["action"], ActionWithdrawExecute)
	}
	withdrawHash, err := attrBytes32(ev, "withdraw_hash")
	if err != nil {
		return nil, err
	}
	return &WithdrawExecutedRecord{WithdrawHash: withdrawHash}, nil
}

func attrBytes32(ev WasmEvent, key string) ([32]byte, error) {
	var out [32]byte
	v, ok := ev.Attributes[key]
	if !ok {
		return out, fmt.Errorf("event missing %s attribute", key)
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(v, "0x"))
	if err != nil {
		return out, fmt.Errorf("event attribute %s is not hex: %w", key, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("event attribute %s is %d bytes, want 32", key, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func attrAmount(ev WasmEvent, key string) (*big.Int, error) {
	v, ok := ev.Attributes[key]
	if !ok {
		return nil, fmt.Errorf("event missing %s attribute", key)
	}
	amount, ok := new(big.Int).SetString(v, 10)
	if !ok {
		return nil, fmt.Errorf("event attribute %s is not a decimal integer: %q", key, v)
	}
	return amount, nil
}

func attrUint64(ev WasmEvent, key string) (uint64, error) {
	v, ok := ev.Attributes[key]
	if !ok {
		return 0, fmt.Errorf("event missing %s attribute", key)
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("event attribute %s is not a uint: %w", key, err)
	}
	return n, nil
}
