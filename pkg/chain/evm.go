// Copyright 2025 CL8Y Bridge Contributors

package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/cl8y-bridge/bridge-core/pkg/config"
	"github.com/cl8y-bridge/bridge-core/pkg/evmchain"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// EVM adapts an evmchain.Client to the Chain interface.
type EVM struct {
	name       string
	registryID xchain.ChainID
	chainKey   [32]byte
	client     *evmchain.Client
	signer     *evmchain.Signer
	submitOpts evmchain.SubmitOpts
}

// NewEVM builds an EVM chain from its static configuration. signer may be
// nil for a watch-only chain; SubmitApproval and SubmitCancel then return
// an error.
func NewEVM(cfg config.EVMChainConfig, client *evmchain.Client, signer *evmchain.Signer) (*EVM, error) {
	chainKey, err := xchain.EVMChainKey(cfg.NativeID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive chain key for %s: %w", cfg.Name, err)
	}

	var registryID xchain.ChainID
	registryID[0] = byte(cfg.RegistryID >> 24)
	registryID[1] = byte(cfg.RegistryID >> 16)
	registryID[2] = byte(cfg.RegistryID >> 8)
	registryID[3] = byte(cfg.RegistryID)

	submitOpts := evmchain.DefaultSubmitOpts()
	if cfg.GasMultiplier > 0 {
		submitOpts.GasMultiplier = cfg.GasMultiplier
	}
	if cfg.MaxGasPriceGwei > 0 {
		submitOpts.MaxGasPriceWei = new(big.Int).Mul(big.NewInt(cfg.MaxGasPriceGwei), big.NewInt(1_000_000_000))
	}

	return &EVM{
		name:       cfg.Name,
		registryID: registryID,
		chainKey:   chainKey,
		client:     client,
		signer:     signer,
		submitOpts: submitOpts,
	}, nil
}

func (e *EVM) Platform() Platform { return PlatformEVM }
func (e *EVM) Name() string { return e.name }
func (e *EVM) ChainKey() [32]byte { return e.chainKey }
func (e *EVM) RegistryID() xchain.ChainID { return e.registryID }
func (e *EVM) FinalityBlocks() int { return e.client.FinalityBlocks() }

func (e *EVM) LatestHeight(ctx context.Context) (int64, error) {
	return e.client.LatestBlockNumber(ctx)
}

func (e *EVM) BlockHash(ctx context.Context, height int64) (string, error) {
	hash, err := e.client.BlockHash(ctx, height)
	if err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (e *EVM) FetchDeposits(ctx context.Context, fromHeight, toHeight int64) ([]Deposit, error) {
	logs, err := e.client.FilterLogs(ctx, fromHeight, toHeight,
		[][]common.Hash{{evmchain.DepositRequestSignature}})
	if err != nil {
		return nil, err
	}

	// The DepositRequest event doesn't carry the depositor, so resolve
	// each transaction's sender once and share it across its logs.
	senders := make(map[common.Hash]common.Address)

	deposits := make([]Deposit, 0, len(logs))
	for _, log := range logs {
		ev, err := evmchain.DecodeDepositRequestLog(log)
		if err != nil {
			return nil, fmt.Errorf("failed to decode DepositRequest log %s/%d: %w", log.TxHash.Hex(), log.Index, err)
		}

		sender, ok := senders[ev.TxHash]
		if !ok {
			sender, err = e.client.TransactionSender(ctx, ev.TxHash)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve depositor for %s: %w", ev.TxHash.Hex(), err)
			}
			senders[ev.TxHash] = sender
		}

		deposits = append(deposits, Deposit{
			DestChainKey: ev.DestChainKey,
			DestToken:    ev.DestToken,
			DestAccount:  ev.DestAccount,
			SrcAccount:   xchain.EncodeEVM(sender),
			Amount:       ev.Amount,
			Nonce:        ev.Nonce,
			TxHash:       ev.TxHash.Hex(),
			LogIndex:     ev.LogIndex,
			BlockNumber:  int64(ev.BlockNumber),
			BlockHash:    ev.BlockHash.Hex(),
		})
	}
	return deposits, nil
}

func (e *EVM) FetchApprovals(ctx context.Context, fromHeight, toHeight int64) ([]ApprovalEvent, error) {
	logs, err := e.client.FilterLogs(ctx, fromHeight, toHeight,
		[][]common.Hash{{evmchain.WithdrawApprovedSignature}})
	if err != nil {
		return nil, err
	}

	approvals := make([]ApprovalEvent, 0, len(logs))
	for _, log := range logs {
		ev, err := evmchain.DecodeWithdrawApprovedLog(log)
		if err != nil {
			return nil, fmt.Errorf("failed to decode WithdrawApproved log %s/%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		approvals = append(approvals, ApprovalEvent{
			WithdrawHash: ev.WithdrawHash,
			SrcChainKey:  ev.SrcChainKey,
			Amount:       ev.Amount,
			Nonce:        ev.Nonce,
			TxHash:       ev.TxHash.Hex(),
			LogIndex:     ev.LogIndex,
			BlockNumber:  int64(ev.BlockNumber),
			BlockHash:    ev.BlockHash.Hex(),
		})
	}
	return approvals, nil
}

func (e *EVM) HasDeposit(ctx context.Context, transferHash [32]byte) (bool, error) {
	rec, err := e.client.GetDeposit(ctx, transferHash)
	if err != nil {
		return false, err
	}
	return rec.Exists(), nil
}

func (e *EVM) PendingWithdraw(ctx context.Context, withdrawHash [32]byte) (*PendingWithdraw, error) {
	rec, err := e.client.GetWithdrawFromHash(ctx, withdrawHash)
	if err != nil {
		return nil, err
	}
	if !rec.Exists() {
		return &PendingWithdraw{}, nil
	}

	approval, err := e.client.GetWithdrawApproval(ctx, withdrawHash)
	if err != nil {
		return nil, err
	}

	return &PendingWithdraw{
		Exists:      true,
		SrcChain:    xchain.ChainID(rec.SrcChain),
		SrcAccount:  rec.SrcAccount,
		DestAccount: rec.DestAccount,
		Token:       rec.Token,
		Amount:      rec.Amount,
		Nonce:       rec.Nonce,
		CreatedAt:   rec.CreatedAt.Int64(),
		Cancelled:   approval.Cancelled,
		Executed:    approval.Executed,
	}, nil
}

func (e *EVM) ApprovalState(ctx context.Context, withdrawHash [32]byte) (*ApprovalState, error) {
	rec, err := e.client.GetWithdrawApproval(ctx, withdrawHash)
	if err != nil {
		return nil, err
	}
	return &ApprovalState{
		IsApproved: rec.IsApproved,
		Cancelled:  rec.Cancelled,
		Executed:   rec.Executed,
	}, nil
}

func (e *EVM) SubmitApproval(ctx context.Context, submission ApprovalSubmission) (string, error) {
	if e.signer == nil {
		return "", fmt.Errorf("chain %s has no signer configured", e.name)
	}

	token, err := xchain.DecodeToEVM(xchain.UniversalAddress(submission.Token))
	if err != nil {
		return "", fmt.Errorf("approval token is not an EVM address: %w", err)
	}
	to, err := xchain.DecodeToEVM(xchain.UniversalAddress(submission.DestAccount))
	if err != nil {
		return "", fmt.Errorf("approval recipient is not an EVM address: %w", err)
	}

	var feeRecipient common.Address
	if xchain.UniversalAddress(submission.FeeRecipient) != (xchain.UniversalAddress{}) {
		feeRecipient, err = xchain.DecodeToEVM(xchain.UniversalAddress(submission.FeeRecipient))
		if err != nil {
			return "", fmt.Errorf("fee recipient is not an EVM address: %w", err)
		}
	}

	calldata, err := evmchain.ApproveWithdrawCallData(evmchain.ApproveWithdrawParams{
		SrcChainKey:      submission.SrcChainKey,
		Token:            token,
		To:               to,
		DestAccount:      submission.DestAccount,
		Amount:           submission.Amount,
		Nonce:            submission.Nonce,
		Fee:              submission.Fee,
		FeeRecipient:     feeRecipient,
		DeductFromAmount: submission.DeductFromAmount,
	})
	if err != nil {
		return "", err
	}

	txHash, err := e.client.SubmitCall(ctx, e.signer, calldata, e.submitOpts)
	if err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

func (e *EVM) SubmitCancel(ctx context.Context, withdrawHash [32]byte) (string, error) {
	if e.signer == nil {
		return "", fmt.Errorf("chain %s has no signer configured", e.name)
	}

	calldata, err := evmchain.CancelWithdrawApprovalCallData(withdrawHash)
	if err != nil {
		return "", err
	}

	txHash, err := e.client.SubmitCall(ctx, e.signer, calldata, e.submitOpts)
	if err != nil {
		return "", err
	}
	return txHash.Hex(), nil
}

func (e *EVM) TransactionHeight(ctx context.Context, txHash string) (int64, error) {
	receipt, err := e.client.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return 0, ErrTxNotFound
		}
		return 0, err
	}
	return receipt.BlockNumber.Int64(), nil
}
