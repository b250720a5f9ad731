// Copyright 2025 CL8Y Bridge Contributors
//
// Package evmchain wraps go-ethereum's ethclient for the bridge's EVM-side
// watcher, submitter, and confirmation tracker.
package evmchain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an EVM JSON-RPC connection for one configured chain.
type Client struct {
	client         *ethclient.Client
	chainID        *big.Int
	bridgeAddress  common.Address
	finalityBlocks int
	nonces         *NonceManager
}

// NewClient dials rpcURL and returns a Client scoped to one bridge contract.
func NewClient(rpcURL string, chainID int64, bridgeAddress common.Address, finalityBlocks int) (*Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to EVM RPC: %w", err)
	}

	return &Client{
		client:         client,
		chainID:        big.NewInt(chainID),
		bridgeAddress:  bridgeAddress,
		finalityBlocks: finalityBlocks,
		nonces:         NewNonceManager(),
	}, nil
}

// ChainID returns the configured EVM chain id.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// BridgeAddress returns the bridge contract address this client watches.
func (c *Client) BridgeAddress() common.Address {
	return c.bridgeAddress
}

// FinalityBlocks returns the configured confirmation depth for this chain.
func (c *Client) FinalityBlocks() int {
	return c.finalityBlocks
}

// rpcTimeout bounds every outbound JSON-RPC call.
const rpcTimeout = 30 * time.Second

func withRPCTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, rpcTimeout)
}

// LatestBlockNumber returns the chain's current head height.
func (c *Client) LatestBlockNumber(ctx context.Context) (int64, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return int64(n), nil
}

// BlockHash returns the hash of the block at height.
func (c *Client) BlockHash(ctx context.Context, height int64) (common.Hash, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	header, err := c.client.HeaderByNumber(ctx, big.NewInt(height))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get block header: %w", err)
	}
	return header.Hash(), nil
}

// FilterLogs queries the bridge contract's logs in [fromBlock, toBlock],
// the single call both the watcher and the canceler's approval audit use.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock int64, topics [][]common.Hash) ([]types.Log, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	query := ethereum.FilterQuery{
		FromBlock: big.NewInt(fromBlock),
		ToBlock:   big.NewInt(toBlock),
		Addresses: []common.Address{c.bridgeAddress},
		Topics:    topics,
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}
	return logs, nil
}

// CallContract runs a read-only eth_call against the bridge contract at the
// latest block.
func (c *Client) CallContract(ctx context.Context, calldata []byte) ([]byte, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	msg := ethereum.CallMsg{
		To:   &c.bridgeAddress,
		Data: calldata,
	}
	out, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contract call failed: %w", err)
	}
	return out, nil
}

// TransactionSender recovers the from-address of the transaction txHash.
// The watcher uses it to attribute a DepositRequest event to its depositor,
// since the event itself doesn't carry the source account.
func (c *Client) TransactionSender(ctx context.Context, txHash common.Hash) (common.Address, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	tx, _, err := c.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover transaction sender: %w", err)
	}
	return sender, nil
}

// TransactionReceipt fetches the receipt for txHash, or an error if the
// transaction hasn't been mined yet.
func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	receipt, err := c.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}
	return receipt, nil
}

// SuggestGasPrice returns the node's current suggested gas price.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas price: %w", err)
	}
	return price, nil
}

// PendingNonceAt returns the next nonce the node would assign to address,
// the RPC-observed floor the NonceManager reconciles against its own
// locally reserved counter.
func (c *Client) PendingNonceAt(ctx context.Context, address common.Address) (uint64, error) {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	nonce, err := c.client.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to get pending nonce: %w", err)
	}
	return nonce, nil
}

// SendSignedTransaction broadcasts a signed transaction.
func (c *Client) SendSignedTransaction(ctx context.Context, tx *types.Transaction) error {
	ctx, cancel := withRPCTimeout(ctx)
	defer cancel()

	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return fmt.Errorf("failed to send transaction: %w", err)
	}
	return nil
}

// Nonces returns the per-account nonce manager for this chain.
func (c *Client) Nonces() *NonceManager {
	return c.nonces
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.client.Close()
}

// Signer derives the public address and a bind.TransactOpts-compatible
// signer function from a hex-encoded private key.
type Signer struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
	chainID    *big.Int
}

// NewSigner parses privateKeyHex and binds it to chainID.
func NewSigner(privateKeyHex string, chainID *big.Int) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to derive public key")
	}

	return &Signer{
		PrivateKey: privateKey,
		Address:    crypto.PubkeyToAddress(*publicKey),
		chainID:    chainID,
	}, nil
}

// SignTx signs tx with the wrapped private key using the latest signer for
// the configured chain id.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(s.chainID)
	signed, err := types.SignTx(tx, signer, s.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return signed, nil
}

// TransactOpts builds a bind.TransactOpts for contract-binding style calls,
// kept for parity with generated contract bindings if the bridge ABI is
// later vendored in.
func (s *Signer) TransactOpts() (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(s.PrivateKey, s.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	return auth, nil
}
