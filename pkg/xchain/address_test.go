// Copyright 2025 CL8Y Bridge Contributors

package xchain

import (
	"bytes"
	"testing"

	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeEVM_RoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x000000000000000000000000000000000D15EA5E")

	ua := EncodeEVM(addr)
	if ua.ChainTypeOf() != ChainTypeEVM {
		t.Fatalf("chain type = %d, want %d", ua.ChainTypeOf(), ChainTypeEVM)
	}

	back, err := DecodeToEVM(ua)
	if err != nil {
		t.Fatalf("DecodeToEVM: %v", err)
	}
	if back != addr {
		t.Errorf("round trip = %s, want %s", back.Hex(), addr.Hex())
	}

	// Re-encoding the decode must reproduce the identical 32 bytes.
	if EncodeEVM(back) != ua {
		t.Error("encode(decode(x)) != x")
	}
}

func TestEncodeEVM_ReservedBytesZero(t *testing.T) {
	ua := EncodeEVM(common.HexToAddress("0xffffffffffffffffffffffffffffffffffffffff"))
	for i := 24; i < 32; i++ {
		if ua[i] != 0 {
			t.Fatalf("reserved byte %d = %#x, want 0", i, ua[i])
		}
	}
}

func TestEncodeCosmos_RoundTrip(t *testing.T) {
	raw := bytes.Repeat([]byte{0xab}, 20)
	addr, err := bech32.ConvertAndEncode("terra", raw)
	if err != nil {
		t.Fatal(err)
	}

	hrp, decoded, err := DecodeCosmosBech32(addr)
	if err != nil {
		t.Fatalf("DecodeCosmosBech32: %v", err)
	}
	if hrp != "terra" {
		t.Errorf("hrp = %q, want terra", hrp)
	}

	ua, err := EncodeCosmos(decoded)
	if err != nil {
		t.Fatalf("EncodeCosmos: %v", err)
	}
	if ua.ChainTypeOf() != ChainTypeCosmos {
		t.Fatalf("chain type = %d, want %d", ua.ChainTypeOf(), ChainTypeCosmos)
	}

	back, err := DecodeToCosmos(ua, "terra")
	if err != nil {
		t.Fatalf("DecodeToCosmos: %v", err)
	}
	if back != addr {
		t.Errorf("round trip = %q, want %q", back, addr)
	}
}

func TestEncodeCosmos_WrongLength(t *testing.T) {
	if _, err := EncodeCosmos(make([]byte, 19)); err == nil {
		t.Error("expected error for 19-byte payload")
	}
	if _, err := EncodeCosmos(make([]byte, 32)); err == nil {
		t.Error("expected error for 32-byte payload")
	}
}

func TestDecode_WrongChainType(t *testing.T) {
	evm := EncodeEVM(common.HexToAddress("0x1"))
	if _, err := DecodeToCosmos(evm, "terra"); err == nil {
		t.Error("expected error decoding EVM address as Cosmos")
	}

	cosmos, err := EncodeCosmos(bytes.Repeat([]byte{1}, 20))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeToEVM(cosmos); err == nil {
		t.Error("expected error decoding Cosmos address as EVM")
	}
}

func TestDecodeCosmosBech32_Invalid(t *testing.T) {
	if _, _, err := DecodeCosmosBech32("not-a-bech32-address"); err == nil {
		t.Error("expected error for malformed bech32")
	}
	if _, _, err := DecodeCosmosBech32(""); err == nil {
		t.Error("expected error for empty address")
	}
}
