// Copyright 2025 CL8Y Bridge Contributors

package cosmoschain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	"github.com/cosmos/cosmos-sdk/client"
	clienttx "github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	cryptocodec "github.com/cosmos/cosmos-sdk/crypto/codec"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	xauthsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
	authtx "github.com/cosmos/cosmos-sdk/x/auth/tx"
)

// Signer holds a secp256k1 private key and the derived bech32 account
// address it signs transactions as.
type Signer struct {
	privKey *secp256k1.PrivKey
	bech32  string
}

// NewSigner parses a hex-encoded secp256k1 private key and derives its
// bech32 address using bech32Prefix.
func NewSigner(privateKeyHex, bech32Prefix string) (*Signer, error) {
	keyBytes, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cosmos private key: %w", err)
	}

	privKey := &secp256k1.PrivKey{Key: keyBytes}
	addr := sdk.AccAddress(privKey.PubKey().Address())

	bech32Addr, err := bech32.ConvertAndEncode(bech32Prefix, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bech32-encode signer address: %w", err)
	}

	return &Signer{privKey: privKey, bech32: bech32Addr}, nil
}

// Address returns the signer's bech32 account address.
func (s *Signer) Address() string {
	return s.bech32
}

// newTxConfig builds a minimal protobuf TxConfig, registering only the
// interfaces a wasm MsgExecuteContract signed transaction needs, since the
// bridge client has no reason to depend on a full application's codec.
func newTxConfig() client.TxConfig {
	registry := codectypes.NewInterfaceRegistry()
	cryptocodec.RegisterInterfaces(registry)
	sdk.RegisterInterfaces(registry)
	wasmtypes.RegisterInterfaces(registry)

	protoCodec := codec.NewProtoCodec(registry)
	return authtx.NewTxConfig(protoCodec, authtx.DefaultSignModes)
}

// BuildExecuteContractTx builds and signs a MsgExecuteContract call against
// contractAddress, returning protobuf-encoded tx bytes ready to broadcast.
func BuildExecuteContractTx(
	ctx context.Context,
	signer *Signer,
	contractAddress string,
	msg any,
	funds sdk.Coins,
	accountNumber, sequence uint64,
	chainID string,
	gasLimit uint64,
) ([]byte, error) {
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execute msg: %w", err)
	}

	execMsg := &wasmtypes.MsgExecuteContract{
		Sender:   signer.Address(),
		Contract: contractAddress,
		Msg:      wasmtypes.RawContractMessage(msgJSON),
		Funds:    funds,
	}

	cfg := newTxConfig()

	builder := cfg.NewTxBuilder()
	builder.SetGasLimit(gasLimit)
	if err := builder.SetMsgs(execMsg); err != nil {
		return nil, fmt.Errorf("failed to set tx messages: %w", err)
	}

	sigMode := cfg.SignModeHandler().DefaultMode()
	placeholder := signing.SignatureV2{
		PubKey: signer.privKey.PubKey(),
		Data: &signing.SingleSignatureData{
			SignMode:  sigMode,
			Signature: nil,
		},
		Sequence: sequence,
	}
	if err := builder.SetSignatures(placeholder); err != nil {
		return nil, fmt.Errorf("failed to set placeholder signature: %w", err)
	}

	signerData := xauthsigning.SignerData{
		Address:       signer.Address(),
		ChainID:       chainID,
		AccountNumber: accountNumber,
		Sequence:      sequence,
	}

	finalSig, err := clienttx.SignWithPrivKey(
		ctx,
		sigMode,
		signerData,
		builder,
		signer.privKey,
		cfg,
		sequence,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := builder.SetSignatures(finalSig); err != nil {
		return nil, fmt.Errorf("failed to set final signature: %w", err)
	}

	txBytes, err := cfg.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction: %w", err)
	}
	return txBytes, nil
}
