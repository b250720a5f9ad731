// Copyright 2025 CL8Y Bridge Contributors

package xchain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

// Keccak256 hashes data and returns the 32-byte digest.
func Keccak256(data []byte) [32]byte {
	var out [32]byte
	copy(out[:], crypto.Keccak256(data))
	return out
}

// ChainID is the bridge's 4-byte on-chain chain identifier (Solidity
// bytes4), distinct from the 32-byte keccak256 chain key used to index
// per-chain store rows.
type ChainID [4]byte

// TransferHash computes the bit-exact transfer identity the on-chain bridge
// contracts verify against:
//
//	keccak256(abi.encode(
//	    bytes32(srcChain), bytes32(destChain), srcAccount, destAccount,
//	    token, uint256(amount), uint256(nonce)
//	))
//
// srcChain/destChain are 4-byte chain ids left-padded to their 32-byte word,
// matching the on-chain contracts' own hash derivation rather than the
// right-pad a bare Solidity bytesN-to-bytes32 cast would otherwise imply.
// Every field is already a static 32-byte ABI word, so the encoding is a
// direct 224-byte concatenation rather than a dynamic abi.encode call.
func TransferHash(srcChain, destChain ChainID, srcAccount, destAccount, token [32]byte, amount, nonce *big.Int) [32]byte {
	data := make([]byte, 0, 224)
	data = append(data, leftPadBytesTo32(srcChain[:])...)
	data = append(data, leftPadBytesTo32(destChain[:])...)
	data = append(data, srcAccount[:]...)
	data = append(data, destAccount[:]...)
	data = append(data, token[:]...)
	data = append(data, leftPadTo32(amount)...)
	data = append(data, leftPadTo32(nonce)...)

	return Keccak256(data)
}

// leftPadTo32 renders n as a big-endian, zero-left-padded 32-byte word, the
// layout abi.encode uses for a static uintN argument.
func leftPadTo32(n *big.Int) []byte {
	word := make([]byte, 32)
	b := n.Bytes()
	copy(word[32-len(b):], b)
	return word
}

// leftPadBytesTo32 zero-left-pads b into a 32-byte word.
func leftPadBytesTo32(b []byte) []byte {
	word := make([]byte, 32)
	copy(word[32-len(b):], b)
	return word
}
