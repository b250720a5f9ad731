// Copyright 2025 CL8Y Bridge Contributors

package evmchain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cl8y-bridge/bridge-core/pkg/xchainerr"
)

var (
	approveWithdrawArgs     abi.Arguments
	approveWithdrawSelector [4]byte
	cancelWithdrawSelector  [4]byte
	bytes32Args             abi.Arguments
)

func init() {
	bytes32Ty, _ := abi.NewType("bytes32", "", nil)
	addressTy, _ := abi.NewType("address", "", nil)
	uint256Ty, _ := abi.NewType("uint256", "", nil)
	boolTy, _ := abi.NewType("bool", "", nil)

	// approveWithdraw(bytes32 srcChainKey, address token, address to,
	//                 bytes32 destAccount, uint256 amount, uint256 nonce,
	//                 uint256 fee, address feeRecipient, bool deductFromAmount)
	approveWithdrawArgs = abi.Arguments{
		{Type: bytes32Ty},
		{Type: addressTy},
		{Type: addressTy},
		{Type: bytes32Ty},
		{Type: uint256Ty},
		{Type: uint256Ty},
		{Type: uint256Ty},
		{Type: addressTy},
		{Type: boolTy},
	}

	sig := crypto.Keccak256([]byte("approveWithdraw(bytes32,address,address,bytes32,uint256,uint256,uint256,address,bool)"))
	copy(approveWithdrawSelector[:], sig[:4])

	sig = crypto.Keccak256([]byte("cancelWithdrawApproval(bytes32)"))
	copy(cancelWithdrawSelector[:], sig[:4])

	bytes32Args = abi.Arguments{{Type: bytes32Ty}}
}

// ApproveWithdrawParams carries the full argument set of the bridge's
// approveWithdraw entry point.
type ApproveWithdrawParams struct {
	SrcChainKey      [32]byte
	Token            common.Address
	To               common.Address
	DestAccount      [32]byte
	Amount           *big.Int
	Nonce            uint64
	Fee              *big.Int
	FeeRecipient     common.Address
	DeductFromAmount bool
}

// ApproveWithdrawCallData builds the calldata for approveWithdraw.
func ApproveWithdrawCallData(p ApproveWithdrawParams) ([]byte, error) {
	fee := p.Fee
	if fee == nil {
		fee = big.NewInt(0)
	}
	packed, err := approveWithdrawArgs.Pack(
		p.SrcChainKey, p.Token, p.To, p.DestAccount,
		p.Amount, new(big.Int).SetUint64(p.Nonce),
		fee, p.FeeRecipient, p.DeductFromAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to abi-encode approveWithdraw call: %w", err)
	}

	data := make([]byte, 0, 4+len(packed))
	data = append(data, approveWithdrawSelector[:]...)
	data = append(data, packed...)
	return data, nil
}

// CancelWithdrawApprovalCallData builds the calldata for
// cancelWithdrawApproval.
func CancelWithdrawApprovalCallData(withdrawHash [32]byte) ([]byte, error) {
	packed, err := bytes32Args.Pack(withdrawHash)
	if err != nil {
		return nil, fmt.Errorf("failed to abi-encode cancelWithdrawApproval call: %w", err)
	}

	data := make([]byte, 0, 4+len(packed))
	data = append(data, cancelWithdrawSelector[:]...)
	data = append(data, packed...)
	return data, nil
}

// MinGasPriceWei is the floor the submitter enforces so a transaction never
// gets stuck unmined on an underpriced node estimate.
var MinGasPriceWei = big.NewInt(1_000_000_000) // 1 gwei

// gasBump is the per-retry re-bump applied after an underpriced rejection,
// as a percentage of the prior attempt's price.
const gasBump = 125

// SubmitOpts configures SubmitCall.
type SubmitOpts struct {
	GasLimit   uint64
	MaxRetries int
	RetryDelay time.Duration

	// GasMultiplier scales the node's suggested gas price on the first
	// attempt. Zero means 1.0.
	GasMultiplier float64

	// MaxGasPriceWei is the ceiling every attempt's price is clamped to,
	// including re-bumps. Nil disables the ceiling.
	MaxGasPriceWei *big.Int
}

// DefaultSubmitOpts returns the submitter's default gas and retry settings.
func DefaultSubmitOpts() SubmitOpts {
	return SubmitOpts{
		GasLimit:       300_000,
		MaxRetries:     5,
		RetryDelay:     2 * time.Second,
		GasMultiplier:  1.0,
		MaxGasPriceWei: new(big.Int).Mul(big.NewInt(500), big.NewInt(1_000_000_000)), // 500 gwei
	}
}

// nextGasPrice picks the price for one broadcast attempt: the multiplied
// suggested price on the first attempt, or a compounding x1.25 re-bump of
// the prior attempt's price after an underpriced rejection. The result is
// always floored at MinGasPriceWei and clamped to opts.MaxGasPriceWei.
func nextGasPrice(prev, suggested *big.Int, opts SubmitOpts) *big.Int {
	var price *big.Int
	if prev == nil {
		multiplier := opts.GasMultiplier
		if multiplier <= 0 {
			multiplier = 1.0
		}
		scaled := new(big.Float).Mul(big.NewFloat(multiplier), new(big.Float).SetInt(suggested))
		price, _ = scaled.Int(nil)
	} else {
		price = new(big.Int).Div(new(big.Int).Mul(prev, big.NewInt(gasBump)), big.NewInt(100))
	}

	if price.Cmp(MinGasPriceWei) < 0 {
		price = new(big.Int).Set(MinGasPriceWei)
	}
	if opts.MaxGasPriceWei != nil && price.Cmp(opts.MaxGasPriceWei) > 0 {
		price = new(big.Int).Set(opts.MaxGasPriceWei)
	}
	return price
}

// SubmitCall signs and broadcasts a state-changing call against the bridge
// contract, re-bumping the gas price when the node reports the prior
// attempt as underpriced, already known, or stuck on a stale nonce.
func (c *Client) SubmitCall(ctx context.Context, signer *Signer, calldata []byte, opts SubmitOpts) (common.Hash, error) {
	var lastErr error
	var gasPrice *big.Int

	for attempt := 0; attempt < opts.MaxRetries; attempt++ {
		rpcNonce, err := c.PendingNonceAt(ctx, signer.Address)
		if err != nil {
			return common.Hash{}, err
		}
		nonce := c.nonces.Reserve(ctx, signer.Address, rpcNonce)

		suggested, err := c.SuggestGasPrice(ctx)
		if err != nil {
			c.nonces.Release(signer.Address, nonce)
			return common.Hash{}, err
		}
		gasPrice = nextGasPrice(gasPrice, suggested, opts)

		tx := types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &c.bridgeAddress,
			Value:    big.NewInt(0),
			Gas:      opts.GasLimit,
			GasPrice: gasPrice,
			Data:     calldata,
		})

		signedTx, err := signer.SignTx(tx)
		if err != nil {
			c.nonces.Release(signer.Address, nonce)
			return common.Hash{}, err
		}

		err = c.SendSignedTransaction(ctx, signedTx)
		if err == nil {
			return signedTx.Hash(), nil
		}

		lastErr = err
		c.nonces.Release(signer.Address, nonce)

		if !xchainerr.IsRetryableBroadcast(err) || attempt == opts.MaxRetries-1 {
			return common.Hash{}, fmt.Errorf("failed to submit after %d attempts: %w", attempt+1, err)
		}

		select {
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}

	return common.Hash{}, fmt.Errorf("failed to submit: %w", lastErr)
}
