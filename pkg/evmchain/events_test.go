// Copyright 2025 CL8Y Bridge Contributors

package evmchain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func depositRequestLog(t *testing.T) types.Log {
	t.Helper()

	token := common.HexToAddress("0x0000000000000000000000000000000000000def")
	data, err := depositRequestDataArgs.Pack(token, big.NewInt(1_000_000), big.NewInt(7))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	destChainKey := common.HexToHash("0x01")
	destToken := common.HexToHash("0x02")
	destAccount := common.HexToHash("0x03")

	return types.Log{
		Topics:      []common.Hash{DepositRequestSignature, destChainKey, destToken, destAccount},
		Data:        data,
		TxHash:      common.HexToHash("0xaa"),
		Index:       3,
		BlockNumber: 100,
		BlockHash:   common.HexToHash("0xbb"),
	}
}

func TestDecodeDepositRequestLog(t *testing.T) {
	log := depositRequestLog(t)

	ev, err := DecodeDepositRequestLog(log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if ev.DestChainKey != [32]byte(common.HexToHash("0x01")) {
		t.Errorf("destChainKey = %x", ev.DestChainKey)
	}
	if ev.DestToken != [32]byte(common.HexToHash("0x02")) {
		t.Errorf("destToken = %x", ev.DestToken)
	}
	if ev.DestAccount != [32]byte(common.HexToHash("0x03")) {
		t.Errorf("destAccount = %x", ev.DestAccount)
	}
	if ev.Amount.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("amount = %s", ev.Amount)
	}
	if ev.Nonce != 7 {
		t.Errorf("nonce = %d", ev.Nonce)
	}
	if ev.LogIndex != 3 || ev.BlockNumber != 100 {
		t.Errorf("log position = (%d, %d)", ev.BlockNumber, ev.LogIndex)
	}
}

func TestDecodeDepositRequestLog_WrongSignature(t *testing.T) {
	log := depositRequestLog(t)
	log.Topics[0] = WithdrawApprovedSignature

	if _, err := DecodeDepositRequestLog(log); err == nil {
		t.Error("expected error for mismatched topic0")
	}
}

func TestDecodeDepositRequestLog_MissingTopics(t *testing.T) {
	log := depositRequestLog(t)
	log.Topics = log.Topics[:2]

	if _, err := DecodeDepositRequestLog(log); err == nil {
		t.Error("expected error for missing indexed topics")
	}
}

func TestDecodeWithdrawApprovedLog(t *testing.T) {
	to := common.HexToAddress("0x1111")
	feeRecipient := common.HexToAddress("0x2222")
	data, err := withdrawApprovedDataArgs.Pack(
		to, big.NewInt(500), big.NewInt(9), big.NewInt(25), feeRecipient, true,
	)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}

	withdrawHash := common.HexToHash("0x0a")
	srcChainKey := common.HexToHash("0x0b")
	token := common.HexToAddress("0x3333")

	log := types.Log{
		Topics: []common.Hash{
			WithdrawApprovedSignature,
			withdrawHash,
			srcChainKey,
			common.BytesToHash(token.Bytes()),
		},
		Data:        data,
		TxHash:      common.HexToHash("0xcc"),
		Index:       1,
		BlockNumber: 200,
	}

	ev, err := DecodeWithdrawApprovedLog(log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if ev.WithdrawHash != [32]byte(withdrawHash) {
		t.Errorf("withdrawHash = %x", ev.WithdrawHash)
	}
	if ev.SrcChainKey != [32]byte(srcChainKey) {
		t.Errorf("srcChainKey = %x", ev.SrcChainKey)
	}
	if ev.Token != token {
		t.Errorf("token = %s", ev.Token.Hex())
	}
	if ev.To != to {
		t.Errorf("to = %s", ev.To.Hex())
	}
	if ev.Amount.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("amount = %s", ev.Amount)
	}
	if ev.Nonce != 9 {
		t.Errorf("nonce = %d", ev.Nonce)
	}
	if ev.Fee.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("fee = %s", ev.Fee)
	}
	if ev.FeeRecipient != feeRecipient {
		t.Errorf("feeRecipient = %s", ev.FeeRecipient.Hex())
	}
	if !ev.DeductFromAmount {
		t.Error("deductFromAmount = false, want true")
	}
}
