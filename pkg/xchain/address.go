// Copyright 2025 CL8Y Bridge Contributors
//
// Package xchain implements the cross-chain address codec and transfer
// hashing that every bridge component uses to agree with the on-chain
// contracts on a transfer's identity.
package xchain

import (
	"encoding/binary"
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/common"
)

// ChainType is the 4-byte discriminant stored in a UniversalAddress.
type ChainType uint32

const (
	ChainTypeEVM     ChainType = 1
	ChainTypeCosmos  ChainType = 2
	ChainTypeSolana  ChainType = 3
	ChainTypeBitcoin ChainType = 4
)

// UniversalAddress is the bridge's chain-agnostic 32-byte address format:
// [chain type: 4 bytes][raw address: 20 bytes][reserved: 8 bytes].
type UniversalAddress [32]byte

// ChainTypeOf returns the chain type discriminant stored in a.
func (a UniversalAddress) ChainTypeOf() ChainType {
	return ChainType(binary.BigEndian.Uint32(a[0:4]))
}

// Raw returns the 20-byte raw address payload.
func (a UniversalAddress) Raw() [20]byte {
	var raw [20]byte
	copy(raw[:], a[4:24])
	return raw
}

// Bytes returns the 32-byte wire representation.
func (a UniversalAddress) Bytes() []byte {
	out := make([]byte, 32)
	copy(out, a[:])
	return out
}

// EncodeEVM builds a UniversalAddress from a 20-byte EVM address.
func EncodeEVM(addr common.Address) UniversalAddress {
	var ua UniversalAddress
	binary.BigEndian.PutUint32(ua[0:4], uint32(ChainTypeEVM))
	copy(ua[4:24], addr[:])
	return ua
}

// DecodeToEVM extracts the EVM address from a UniversalAddress, failing if
// it was not tagged ChainTypeEVM.
func DecodeToEVM(a UniversalAddress) (common.Address, error) {
	if a.ChainTypeOf() != ChainTypeEVM {
		return common.Address{}, fmt.Errorf("universal address is not an EVM address (chain type %d)", a.ChainTypeOf())
	}
	raw := a.Raw()
	return common.BytesToAddress(raw[:]), nil
}

// EncodeCosmos builds a UniversalAddress from a bech32-decoded Cosmos
// account address. Cosmos account addresses are conventionally 20 bytes,
// matching the EVM raw-address width.
func EncodeCosmos(raw []byte) (UniversalAddress, error) {
	if len(raw) != 20 {
		return UniversalAddress{}, fmt.Errorf("cosmos raw address must be 20 bytes, got %d", len(raw))
	}
	var ua UniversalAddress
	binary.BigEndian.PutUint32(ua[0:4], uint32(ChainTypeCosmos))
	copy(ua[4:24], raw)
	return ua, nil
}

// DecodeToCosmos extracts the bech32 string for a UniversalAddress tagged
// ChainTypeCosmos, using prefix as the bech32 human-readable part.
func DecodeToCosmos(a UniversalAddress, prefix string) (string, error) {
	if a.ChainTypeOf() != ChainTypeCosmos {
		return "", fmt.Errorf("universal address is not a Cosmos address (chain type %d)", a.ChainTypeOf())
	}
	raw := a.Raw()
	return bech32.ConvertAndEncode(prefix, raw[:])
}

// DecodeCosmosBech32 parses a bech32 Cosmos address string into its raw
// 20-byte payload and the address's own human-readable prefix.
func DecodeCosmosBech32(addr string) (prefix string, raw []byte, err error) {
	hrp, bz, err := bech32.DecodeAndConvert(addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode bech32 address: %w", err)
	}
	if len(bz) != 20 {
		return "", nil, fmt.Errorf("decoded cosmos address must be 20 bytes, got %d", len(bz))
	}
	return hrp, bz, nil
}
