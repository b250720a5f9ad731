// Copyright 2025 CL8Y Bridge Contributors

package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/cl8y-bridge/bridge-core/pkg/config"
	"github.com/cl8y-bridge/bridge-core/pkg/cosmoschain"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

// Cosmos adapts a cosmoschain.Client to the Chain interface.
type Cosmos struct {
	name           string
	registryID     xchain.ChainID
	chainKey       [32]byte
	finalityBlocks int
	client         *cosmoschain.Client
	broadcaster    *cosmoschain.Broadcaster
	logger         *log.Logger
}

// NewCosmos builds a Cosmos chain from its static configuration.
// broadcaster may be nil for a watch-only chain.
func NewCosmos(cfg config.CosmosChainConfig, client *cosmoschain.Client, broadcaster *cosmoschain.Broadcaster) (*Cosmos, error) {
	chainKey, err := xchain.CosmosChainKey(cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive chain key for %s: %w", cfg.Name, err)
	}

	var registryID xchain.ChainID
	registryID[0] = byte(cfg.RegistryID >> 24)
	registryID[1] = byte(cfg.RegistryID >> 16)
	registryID[2] = byte(cfg.RegistryID >> 8)
	registryID[3] = byte(cfg.RegistryID)

	return &Cosmos{
		name:           cfg.Name,
		registryID:     registryID,
		chainKey:       chainKey,
		finalityBlocks: cfg.FinalityBlocks,
		client:         client,
		broadcaster:    broadcaster,
		logger:         log.New(log.Writer(), fmt.Sprintf("[Chain:%s] ", cfg.Name), log.LstdFlags),
	}, nil
}

func (c *Cosmos) Platform() Platform { return PlatformCosmos }
func (c *Cosmos) Name() string { return c.name }
func (c *Cosmos) ChainKey() [32]byte { return c.chainKey }
func (c *Cosmos) RegistryID() xchain.ChainID { return c.registryID }
func (c *Cosmos) FinalityBlocks() int { return c.finalityBlocks }

func (c *Cosmos) LatestHeight(ctx context.Context) (int64, error) {
	return c.client.LatestHeight(ctx)
}

func (c *Cosmos) BlockHash(ctx context.Context, height int64) (string, error) {
	return c.client.BlockHash(ctx, height)
}

func (c *Cosmos) FetchDeposits(ctx context.Context, fromHeight, toHeight int64) ([]Deposit, error) {
	var deposits []Deposit

	for height := fromHeight; height <= toHeight; height++ {
		txs, err := c.client.TxsAtHeight(ctx, height)
		if err != nil {
			return nil, err
		}
		if len(txs) == 0 {
			continue
		}

		blockHash, err := c.client.BlockHash(ctx, height)
		if err != nil {
			return nil, err
		}

		for _, tx := range txs {
			logIndex := uint(0)
			for _, ev := range cosmoschain.GroupWasmEvents(tx.Events) {
				if ev.ContractAddress != c.client.BridgeAddress() {
					continue
				}
				if ev.Attributes["action"] != cosmoschain.ActionDeposit {
					continue
				}
				idx := logIndex
				logIndex++

				rec, err := cosmoschain.ParseDepositObserved(ev)
				if err != nil {
					// A malformed event is dropped, never a batch failure.
					c.logger.Printf("dropping deposit event in %s: %v", tx.TxHash, err)
					continue
				}

				_, raw, err := xchain.DecodeCosmosBech32(rec.Sender)
				if err != nil {
					c.logger.Printf("dropping deposit event in %s: bad sender: %v", tx.TxHash, err)
					continue
				}
				sender, err := xchain.EncodeCosmos(raw)
				if err != nil {
					c.logger.Printf("dropping deposit event in %s: bad sender: %v", tx.TxHash, err)
					continue
				}

				deposits = append(deposits, Deposit{
					DestChainKey: rec.DestChainKey,
					DestToken:    rec.DestToken,
					DestAccount:  rec.DestAccount,
					SrcAccount:   sender,
					Amount:       rec.Amount,
					Nonce:        rec.Nonce,
					TxHash:       tx.TxHash,
					LogIndex:     idx,
					BlockNumber:  height,
					BlockHash:    blockHash,
				})
			}
		}
	}
	return deposits, nil
}

func (c *Cosmos) FetchApprovals(ctx context.Context, fromHeight, toHeight int64) ([]ApprovalEvent, error) {
	var approvals []ApprovalEvent

	for height := fromHeight; height <= toHeight; height++ {
		txs, err := c.client.TxsAtHeight(ctx, height)
		if err != nil {
			return nil, err
		}
		if len(txs) == 0 {
			continue
		}

		blockHash, err := c.client.BlockHash(ctx, height)
		if err != nil {
			return nil, err
		}

		for _, tx := range txs {
			logIndex := uint(0)
			for _, ev := range cosmoschain.GroupWasmEvents(tx.Events) {
				if ev.ContractAddress != c.client.BridgeAddress() {
					continue
				}
				if ev.Attributes["action"] != cosmoschain.ActionWithdrawApprove {
					continue
				}
				idx := logIndex
				logIndex++

				rec, err := cosmoschain.ParseWithdrawApproved(ev)
				if err != nil {
					c.logger.Printf("dropping withdraw_approve event in %s: %v", tx.TxHash, err)
					continue
				}

				approvals = append(approvals, ApprovalEvent{
					WithdrawHash: rec.WithdrawHash,
					SrcChainKey:  rec.SrcChainKey,
					Amount:       rec.Amount,
					Nonce:        rec.Nonce,
					TxHash:       tx.TxHash,
					LogIndex:     idx,
					BlockNumber:  height,
					BlockHash:    blockHash,
				})
			}
		}
	}
	return approvals, nil
}

func (c *Cosmos) HasDeposit(ctx context.Context, transferHash [32]byte) (bool, error) {
	var resp cosmoschain.XchainHashIdResponse
	query := cosmoschain.XchainHashIdQuery{
		XchainHashId: cosmoschain.XchainHashIdQueryInner{Hash: hex.EncodeToString(transferHash[:])},
	}
	if err := c.client.SmartQuery(ctx, c.client.BridgeAddress(), query, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (c *Cosmos) PendingWithdraw(ctx context.Context, withdrawHash [32]byte) (*PendingWithdraw, error) {
	var resp cosmoschain.PendingWithdrawResponse
	query := cosmoschain.PendingWithdrawQuery{
		PendingWithdraw: cosmoschain.PendingWithdrawQueryInner{WithdrawHash: hex.EncodeToString(withdrawHash[:])},
	}
	if err := c.client.SmartQuery(ctx, c.client.BridgeAddress(), query, &resp); err != nil {
		return nil, err
	}
	if !resp.Exists {
		return &PendingWithdraw{}, nil
	}

	srcChain, err := hexChainID(resp.SrcChain)
	if err != nil {
		return nil, fmt.Errorf("pending withdraw has bad src_chain: %w", err)
	}
	srcAccount, err := hexBytes32(resp.SrcAccount)
	if err != nil {
		return nil, fmt.Errorf("pending withdraw has bad src_account: %w", err)
	}
	destAccount, err := hexBytes32(resp.DestAccount)
	if err != nil {
		return nil, fmt.Errorf("pending withdraw has bad dest_account: %w", err)
	}
	token, err := hexBytes32(resp.Token)
	if err != nil {
		return nil, fmt.Errorf("pending withdraw has bad token: %w", err)
	}
	amount, ok := new(big.Int).SetString(resp.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("pending withdraw has bad amount: %q", resp.Amount)
	}
	nonce, err := strconv.ParseUint(resp.Nonce, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("pending withdraw has bad nonce: %w", err)
	}
	createdAt, _ := strconv.ParseInt(resp.CreatedAt, 10, 64)

	return &PendingWithdraw{
		Exists:      true,
		SrcChain:    srcChain,
		SrcAccount:  srcAccount,
		DestAccount: destAccount,
		Token:       token,
		Amount:      amount,
		Nonce:       nonce,
		CreatedAt:   createdAt,
		Cancelled:   resp.Cancelled,
		Executed:    resp.Executed,
	}, nil
}

func (c *Cosmos) ApprovalState(ctx context.Context, withdrawHash [32]byte) (*ApprovalState, error) {
	pw, err := c.PendingWithdraw(ctx, withdrawHash)
	if err != nil {
		return nil, err
	}
	return &ApprovalState{
		IsApproved: pw.Exists,
		Cancelled:  pw.Cancelled,
		Executed:   pw.Executed,
	}, nil
}

func (c *Cosmos) SubmitApproval(ctx context.Context, submission ApprovalSubmission) (string, error) {
	if c.broadcaster == nil {
		return "", fmt.Errorf("chain %s has no signer configured", c.name)
	}

	recipient, err := xchain.DecodeToCosmos(xchain.UniversalAddress(submission.DestAccount), c.client.Bech32Prefix())
	if err != nil {
		return "", fmt.Errorf("approval recipient is not a Cosmos address: %w", err)
	}
	token, err := xchain.DecodeToCosmos(xchain.UniversalAddress(submission.Token), c.client.Bech32Prefix())
	if err != nil {
		return "", fmt.Errorf("approval token is not a Cosmos address: %w", err)
	}

	fee := submission.Fee
	if fee == nil {
		fee = big.NewInt(0)
	}

	msg := cosmoschain.WithdrawApproveExecuteMsg{
		WithdrawApprove: cosmoschain.WithdrawApproveMsg{
			SrcChainKey:      hex.EncodeToString(submission.SrcChainKey[:]),
			SrcAccount:       hex.EncodeToString(submission.SrcAccount[:]),
			Recipient:        recipient,
			Token:            token,
			Amount:           submission.Amount.String(),
			Nonce:            strconv.FormatUint(submission.Nonce, 10),
			Fee:              fee.String(),
			DeductFromAmount: submission.DeductFromAmount,
		},
	}

	return c.broadcaster.Execute(ctx, msg, sdk.Coins{})
}

func (c *Cosmos) SubmitCancel(ctx context.Context, withdrawHash [32]byte) (string, error) {
	if c.broadcaster == nil {
		return "", fmt.Errorf("chain %s has no signer configured", c.name)
	}

	msg := cosmoschain.WithdrawCancelExecuteMsg{
		WithdrawCancel: cosmoschain.WithdrawCancelMsg{
			WithdrawHash: hex.EncodeToString(withdrawHash[:]),
		},
	}
	return c.broadcaster.Execute(ctx, msg, sdk.Coins{})
}

func (c *Cosmos) TransactionHeight(ctx context.Context, txHash string) (int64, error) {
	height, _, err := c.client.TxStatus(ctx, txHash)
	if err != nil {
		// The LCD answers 404 until the transaction is indexed.
		if strings.Contains(err.Error(), "status 404") {
			return 0, ErrTxNotFound
		}
		return 0, err
	}
	return height, nil
}

func hexBytes32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("value is %d bytes, want 32", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func hexChainID(s string) (xchain.ChainID, error) {
	var out xchain.ChainID
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 4 {
		return out, fmt.Errorf("chain id is %d bytes, want 4", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}
