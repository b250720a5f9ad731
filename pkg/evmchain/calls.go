// Copyright 2025 CL8Y Bridge Contributors
//
// View calls against the CL8YBridge contract. Each wrapper packs the
// selector + arguments, runs eth_call, and unpacks the fixed return tuple.

package evmchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type viewMethod struct {
	selector [4]byte
	inputs   abi.Arguments
	outputs  abi.Arguments
}

func newViewMethod(signature string, inputs, outputs abi.Arguments) viewMethod {
	var m viewMethod
	copy(m.selector[:], crypto.Keccak256([]byte(signature))[:4])
	m.inputs = inputs
	m.outputs = outputs
	return m
}

var (
	getDepositMethod          viewMethod
	getWithdrawApprovalMethod viewMethod
	getWithdrawFromHashMethod viewMethod
	withdrawDelayMethod       viewMethod
	getRegisteredChainsMethod viewMethod
)

func init() {
	bytes4Ty, _ := abi.NewType("bytes4", "", nil)
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	uint64Ty, _ := abi.NewType("uint64", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)
	bytes4ArrTy, _ := abi.NewType("bytes4[]", "", nil)
	uint256ArrTy, _ := abi.NewType("uint256[]", "", nil)
	bytes32ArrTy, _ := abi.NewType("bytes32[]", "", nil)
	uint8ArrTy, _ := abi.NewType("uint8[]", "", nil)

	getDepositMethod = newViewMethod(
		"getDeposit(bytes32)",
		abi.Arguments{{Type: bytes32Ty}},
		abi.Arguments{
			{Type: bytes4Ty},  // destChain
			{Type: bytes32Ty}, // srcAccount
			{Type: bytes32Ty}, // destAccount
			{Type: addressTy}, // token
			{Type: uint256Ty}, // amount
			{Type: uint64Ty},  // nonce
			{Type: uint256Ty}, // fee
			{Type: uint256Ty}, // timestamp
		},
	)

	getWithdrawApprovalMethod = newViewMethod(
		"getWithdrawApproval(bytes32)",
		abi.Arguments{{Type: bytes32Ty}},
		abi.Arguments{
			{Type: uint256Ty}, // fee
			{Type: addressTy}, // feeRecipient
			{Type: uint64Ty},  // approvedAt
			{Type: boolTy},    // isApproved
			{Type: boolTy},    // deductFromAmount
			{Type: boolTy},    // cancelled
			{Type: boolTy},    // executed
		},
	)

	getWithdrawFromHashMethod = newViewMethod(
		"getWithdrawFromHash(bytes32)",
		abi.Arguments{{Type: bytes32Ty}},
		abi.Arguments{
			{Type: bytes4Ty},  // srcChain
			{Type: bytes32Ty}, // srcAccount
			{Type: bytes32Ty}, // destAccount
			{Type: bytes32Ty}, // token (destination-token universal form)
			{Type: uint256Ty}, // amount
			{Type: uint256Ty}, // nonce
			{Type: uint256Ty}, // createdAt
		},
	)

	withdrawDelayMethod = newViewMethod(
		"withdrawDelay()",
		nil,
		abi.Arguments{{Type: uint256Ty}},
	)

	getRegisteredChainsMethod = newViewMethod(
		"getRegisteredChains()",
		nil,
		abi.Arguments{
			{Type: bytes4ArrTy},  // chain ids
			{Type: uint256ArrTy}, // native ids
			{Type: bytes32ArrTy}, // bridge addresses (universal form)
			{Type: uint8ArrTy},   // chain types
		},
	)
}

func (c *Client) view(ctx context.Context, m viewMethod, args ...any) ([]any, error) {
	var data []byte
	if len(args) > 0 {
		packed, err := m.inputs.Pack(args...)
		if err != nil {
			return nil, fmt.Errorf("failed to abi-encode call arguments: %w", err)
		}
		data = packed
	}

	calldata := make([]byte, 0, 4+len(data))
	calldata = append(calldata, m.selector[:]...)
	calldata = append(calldata, data...)

	out, err := c.CallContract(ctx, calldata)
	if err != nil {
		return nil, err
	}

	values, err := m.outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("failed to abi-decode call result: %w", err)
	}
	return values, nil
}

// DepositRecord is the contract's stored view of a deposit, indexed by its
// transfer hash.
type DepositRecord struct {
	DestChain   [4]byte
	SrcAccount  [32]byte
	DestAccount [32]byte
	Token       common.Address
	Amount      *big.Int
	Nonce       uint64
	Fee         *big.Int
	Timestamp   *big.Int
}

// Exists reports whether the record corresponds to a real deposit; the
// contract returns a zeroed struct for an unknown hash, so a zero timestamp
// means absent.
func (d *DepositRecord) Exists() bool {
	return d.Timestamp != nil && d.Timestamp.Sign() != 0
}

// GetDeposit queries the bridge's deposit record for transferHash.
func (c *Client) GetDeposit(ctx context.Context, transferHash [32]byte) (*DepositRecord, error) {
	values, err := c.view(ctx, getDepositMethod, transferHash)
	if err != nil {
		return nil, fmt.Errorf("getDeposit call failed: %w", err)
	}

	rec := &DepositRecord{
		DestChain:   values[0].([4]byte),
		SrcAccount:  values[1].([32]byte),
		DestAccount: values[2].([32]byte),
		Token:       values[3].(common.Address),
		Amount:      values[4].(*big.Int),
		Nonce:       values[5].(uint64),
		Fee:         values[6].(*big.Int),
		Timestamp:   values[7].(*big.Int),
	}
	return rec, nil
}

// WithdrawApprovalRecord is the contract's stored view of an approval,
// indexed by its withdraw hash.
type WithdrawApprovalRecord struct {
	Fee              *big.Int
	FeeRecipient     common.Address
	ApprovedAt       uint64
	IsApproved       bool
	DeductFromAmount bool
	Cancelled        bool
	Executed         bool
}

// GetWithdrawApproval queries the bridge's approval record for withdrawHash,
// the idempotence check the submitter runs when a broadcast reverts.
func (c *Client) GetWithdrawApproval(ctx context.Context, withdrawHash [32]byte) (*WithdrawApprovalRecord, error) {
	values, err := c.view(ctx, getWithdrawApprovalMethod, withdrawHash)
	if err != nil {
		return nil, fmt.Errorf("getWithdrawApproval call failed: %w", err)
	}

	rec := &WithdrawApprovalRecord{
		Fee:              values[0].(*big.Int),
		FeeRecipient:     values[1].(common.Address),
		ApprovedAt:       values[2].(uint64),
		IsApproved:       values[3].(bool),
		DeductFromAmount: values[4].(bool),
		Cancelled:        values[5].(bool),
		Executed:         values[6].(bool),
	}
	return rec, nil
}

// PendingWithdrawRecord is the contract's stored pending-withdraw tuple for
// an approved withdrawal: the full 7-field transfer identity plus the
// approval's creation timestamp, the canceler's ground truth for what an
// operator claims happened on the source chain.
type PendingWithdrawRecord struct {
	SrcChain    [4]byte
	SrcAccount  [32]byte
	DestAccount [32]byte
	Token       [32]byte
	Amount      *big.Int
	Nonce       uint64
	CreatedAt   *big.Int
}

// Exists reports whether the record corresponds to a real approval.
func (w *PendingWithdrawRecord) Exists() bool {
	return w.CreatedAt != nil && w.CreatedAt.Sign() != 0
}

// GetWithdrawFromHash queries the bridge's pending-withdraw record for
// withdrawHash.
func (c *Client) GetWithdrawFromHash(ctx context.Context, withdrawHash [32]byte) (*PendingWithdrawRecord, error) {
	values, err := c.view(ctx, getWithdrawFromHashMethod, withdrawHash)
	if err != nil {
		return nil, fmt.Errorf("getWithdrawFromHash call failed: %w", err)
	}

	rec := &PendingWithdrawRecord{
		SrcChain:    values[0].([4]byte),
		SrcAccount:  values[1].([32]byte),
		DestAccount: values[2].([32]byte),
		Token:       values[3].([32]byte),
		Amount:      values[4].(*big.Int),
		CreatedAt:   values[6].(*big.Int),
	}
	rec.Nonce = values[5].(*big.Int).Uint64()
	return rec, nil
}

// WithdrawDelay queries the enforced delay, in seconds, between approval and
// executable withdrawal.
func (c *Client) WithdrawDelay(ctx context.Context) (*big.Int, error) {
	values, err := c.view(ctx, withdrawDelayMethod)
	if err != nil {
		return nil, fmt.Errorf("withdrawDelay call failed: %w", err)
	}
	return values[0].(*big.Int), nil
}

// RegisteredChain is one row of the on-chain chain registry.
type RegisteredChain struct {
	ChainID       [4]byte
	NativeID      *big.Int
	BridgeAddress [32]byte
	ChainType     uint8
}

// GetRegisteredChains enumerates the bridge's chain registry, the discovery
// task's bootstrap query.
func (c *Client) GetRegisteredChains(ctx context.Context) ([]RegisteredChain, error) {
	values, err := c.view(ctx, getRegisteredChainsMethod)
	if err != nil {
		return nil, fmt.Errorf("getRegisteredChains call failed: %w", err)
	}

	ids := values[0].([][4]byte)
	nativeIDs := values[1].([]*big.Int)
	bridges := values[2].([][32]byte)
	chainTypes := values[3].([]uint8)

	if len(nativeIDs) != len(ids) || len(bridges) != len(ids) || len(chainTypes) != len(ids) {
		return nil, fmt.Errorf("registry arrays have mismatched lengths")
	}

	chains := make([]RegisteredChain, len(ids))
	for i := range ids {
		chains[i] = RegisteredChain{
			ChainID:       ids[i],
			NativeID:      nativeIDs[i],
			BridgeAddress: bridges[i],
			ChainType:     chainTypes[i],
		}
	}
	return chains, nil
}
