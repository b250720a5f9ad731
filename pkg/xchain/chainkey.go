// Copyright 2025 CL8Y Bridge Contributors

package xchain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	abiString, _  = abi.NewType("string", "", nil)
	abiUint256, _ = abi.NewType("uint256", "", nil)
	abiBytes32, _ = abi.NewType("bytes32", "", nil)
)

// EVMChainKey derives the 32-byte chain key for an EVM chain identified by
// its native chain id, matching the on-chain contracts'
// keccak256(abi.encode(string("EVM"), uint256(nativeID))).
func EVMChainKey(nativeID uint64) ([32]byte, error) {
	args := abi.Arguments{{Type: abiString}, {Type: abiUint256}}
	packed, err := args.Pack("EVM", new(big.Int).SetUint64(nativeID))
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to abi-encode EVM chain key input: %w", err)
	}
	return Keccak256(packed), nil
}

// CosmosChainKey derives the 32-byte chain key for a Cosmos chain identified
// by its chain-id string, matching
// keccak256(abi.encode(string("COSMW"), bytes32(keccak256(abi.encode(string(chainID)))))).
func CosmosChainKey(chainID string) ([32]byte, error) {
	innerArgs := abi.Arguments{{Type: abiString}}
	innerPacked, err := innerArgs.Pack(chainID)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to abi-encode cosmos chain id: %w", err)
	}
	inner := Keccak256(innerPacked)

	outerArgs := abi.Arguments{{Type: abiString}, {Type: abiBytes32}}
	outerPacked, err := outerArgs.Pack("COSMW", inner)
	if err != nil {
		return [32]byte{}, fmt.Errorf("failed to abi-encode cosmos chain key input: %w", err)
	}
	return Keccak256(outerPacked), nil
}
