// Copyright 2025 CL8Y Bridge Contributors

package evmchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Event signatures for the CL8YBridge contract, keccak256 of the canonical
// event declarations.
var (
	// DepositRequest(bytes32 indexed destChainKey, bytes32 indexed destTokenAddress,
	//                bytes32 indexed destAccount, address token, uint256 amount, uint256 nonce)
	DepositRequestSignature = crypto.Keccak256Hash(
		[]byte("DepositRequest(bytes32,bytes32,bytes32,address,uint256,uint256)"),
	)

	// WithdrawApproved(bytes32 indexed withdrawHash, bytes32 indexed srcChainKey,
	//                  address indexed token, address to, uint256 amount, uint256 nonce,
	//                  uint256 fee, address feeRecipient, bool deductFromAmount)
	WithdrawApprovedSignature = crypto.Keccak256Hash(
		[]byte("WithdrawApproved(bytes32,bytes32,address,address,uint256,uint256,uint256,address,bool)"),
	)

	// WithdrawApprovalCancelled(bytes32 indexed withdrawHash)
	WithdrawApprovalCancelledSignature = crypto.Keccak256Hash(
		[]byte("WithdrawApprovalCancelled(bytes32)"),
	)
)

var (
	depositRequestDataArgs   abi.Arguments
	withdrawApprovedDataArgs abi.Arguments
)

func init() {
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)

	// Non-indexed tail of DepositRequest.
	depositRequestDataArgs = abi.Arguments{
		{Type: addressTy}, // token (source-chain address)
		{Type: uint256Ty}, // amount
		{Type: uint256Ty}, // nonce
	}

	// Non-indexed tail of WithdrawApproved.
	withdrawApprovedDataArgs = abi.Arguments{
		{Type: addressTy}, // to
		{Type: uint256Ty}, // amount
		{Type: uint256Ty}, // nonce
		{Type: uint256Ty}, // fee
		{Type: addressTy}, // feeRecipient
		{Type: boolTy},    // deductFromAmount
	}
}

// DepositRequestEvent is a decoded bridge DepositRequest log. The depositor
// account is not part of the event; the watcher resolves it from the
// transaction sender.
type DepositRequestEvent struct {
	DestChainKey [32]byte
	DestToken    [32]byte
	DestAccount  [32]byte
	Token        common.Address
	Amount       *big.Int
	Nonce        uint64
	TxHash       common.Hash
	LogIndex     uint
	BlockNumber  uint64
	BlockHash    common.Hash
}

// DecodeDepositRequestLog unpacks a raw log into a DepositRequestEvent.
// Callers should have already filtered on DepositRequestSignature as
// topics[0].
func DecodeDepositRequestLog(log types.Log) (*DepositRequestEvent, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("DepositRequest log has %d topics, want 4", len(log.Topics))
	}
	if log.Topics[0] != DepositRequestSignature {
		return nil, fmt.Errorf("log topic0 does not match DepositRequest signature")
	}

	values, err := depositRequestDataArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack DepositRequest data: %w", err)
	}

	token, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected token type in DepositRequest log")
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amount type in DepositRequest log")
	}
	nonce, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected nonce type in DepositRequest log")
	}

	ev := &DepositRequestEvent{
		Token:       token,
		Amount:      amount,
		Nonce:       nonce.Uint64(),
		TxHash:      log.TxHash,
		LogIndex:    uint(log.Index),
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash,
	}
	copy(ev.DestChainKey[:], log.Topics[1][:])
	copy(ev.DestToken[:], log.Topics[2][:])
	copy(ev.DestAccount[:], log.Topics[3][:])
	return ev, nil
}

// WithdrawApprovedEvent is a decoded bridge WithdrawApproved log, the input
// to the canceler's audit pipeline.
type WithdrawApprovedEvent struct {
	WithdrawHash     [32]byte
	SrcChainKey      [32]byte
	Token            common.Address
	To               common.Address
	Amount           *big.Int
	Nonce            uint64
	Fee              *big.Int
	FeeRecipient     common.Address
	DeductFromAmount bool
	TxHash           common.Hash
	LogIndex         uint
	BlockNumber      uint64
	BlockHash        common.Hash
}

// DecodeWithdrawApprovedLog unpacks a raw log into a WithdrawApprovedEvent.
func DecodeWithdrawApprovedLog(log types.Log) (*WithdrawApprovedEvent, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("WithdrawApproved log has %d topics, want 4", len(log.Topics))
	}
	if log.Topics[0] != WithdrawApprovedSignature {
		return nil, fmt.Errorf("log topic0 does not match WithdrawApproved signature")
	}

	values, err := withdrawApprovedDataArgs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack WithdrawApproved data: %w", err)
	}

	to, ok := values[0].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected to type in WithdrawApproved log")
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected amount type in WithdrawApproved log")
	}
	nonce, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected nonce type in WithdrawApproved log")
	}
	fee, ok := values[3].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected fee type in WithdrawApproved log")
	}
	feeRecipient, ok := values[4].(common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected feeRecipient type in WithdrawApproved log")
	}
	deduct, ok := values[5].(bool)
	if !ok {
		return nil, fmt.Errorf("unexpected deductFromAmount type in WithdrawApproved log")
	}

	ev := &WithdrawApprovedEvent{
		To:               to,
		Amount:           amount,
		Nonce:            nonce.Uint64(),
		Fee:              fee,
		FeeRecipient:     feeRecipient,
		DeductFromAmount: deduct,
		TxHash:           log.TxHash,
		LogIndex:         uint(log.Index),
		BlockNumber:      log.BlockNumber,
		BlockHash:        log.BlockHash,
	}
	copy(ev.WithdrawHash[:], log.Topics[1][:])
	copy(ev.SrcChainKey[:], log.Topics[2][:])
	ev.Token = common.BytesToAddress(log.Topics[3][:])
	return ev, nil
}
