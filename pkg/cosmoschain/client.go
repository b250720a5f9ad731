// Copyright 2025 CL8Y Bridge Contributors
//
// Package cosmoschain talks to a Cosmos-SDK chain's LCD REST gateway for the
// bridge's Cosmos-side watcher, submitter, and confirmation tracker.
//
// "LCD" denotes the chain's REST light-client-daemon gateway, so queries
// and broadcasts go over plain net/http rather than gRPC; transaction
// building, address codec, and signing still go through cosmos-sdk.
package cosmoschain

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is an LCD REST client scoped to one configured Cosmos chain.
type Client struct {
	baseURL       string
	bridgeAddress string
	bech32Prefix  string
	httpClient    *http.Client
}

// NewClient returns a Client for the LCD gateway at baseURL.
func NewClient(baseURL, bridgeAddress, bech32Prefix string) *Client {
	return &Client{
		baseURL:       baseURL,
		bridgeAddress: bridgeAddress,
		bech32Prefix:  bech32Prefix,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}
}

// BridgeAddress returns the configured bridge contract address.
func (c *Client) BridgeAddress() string {
	return c.bridgeAddress
}

// Bech32Prefix returns the chain's account address human-readable prefix.
func (c *Client) Bech32Prefix() string {
	return c.bech32Prefix
}

type latestBlockResponse struct {
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// LatestHeight queries the chain's current block height via
// /cosmos/base/tendermint/v1beta1/blocks/latest.
func (c *Client) LatestHeight(ctx context.Context) (int64, error) {
	var resp latestBlockResponse
	if err := c.get(ctx, "/cosmos/base/tendermint/v1beta1/blocks/latest", &resp); err != nil {
		return 0, fmt.Errorf("failed to query latest height: %w", err)
	}

	var height int64
	if _, err := fmt.Sscanf(resp.Block.Header.Height, "%d", &height); err != nil {
		return 0, fmt.Errorf("failed to parse block height: %w", err)
	}
	return height, nil
}

type blockAtHeightResponse struct {
	BlockID struct {
		Hash string `json:"hash"`
	} `json:"block_id"`
	Block struct {
		Header struct {
			Height string `json:"height"`
		} `json:"header"`
	} `json:"block"`
}

// BlockHash returns the base64-encoded hash of the block at height, used by
// the watcher for reorg detection against a stored cursor.
func (c *Client) BlockHash(ctx context.Context, height int64) (string, error) {
	var resp blockAtHeightResponse
	path := fmt.Sprintf("/cosmos/base/tendermint/v1beta1/blocks/%d", height)
	if err := c.get(ctx, path, &resp); err != nil {
		return "", fmt.Errorf("failed to query block at height %d: %w", height, err)
	}
	if resp.BlockID.Hash == "" {
		return "", fmt.Errorf("block at height %d has no hash", height)
	}
	return resp.BlockID.Hash, nil
}

// BlockTx is one transaction's worth of events at a given height.
type BlockTx struct {
	TxHash string
	Height int64
	Events []wasmRawEvent
}

type txsAtHeightResponse struct {
	TxResponses []struct {
		TxHash string         `json:"txhash"`
		Height string         `json:"height"`
		Code   int            `json:"code"`
		Events []wasmRawEvent `json:"events"`
	} `json:"tx_responses"`
}

// TxsAtHeight returns the successful transactions included at height with
// their emitted events, via the LCD's event-indexed tx search.
func (c *Client) TxsAtHeight(ctx context.Context, height int64) ([]BlockTx, error) {
	var resp txsAtHeightResponse
	path := fmt.Sprintf("/cosmos/tx/v1beta1/txs?events=tx.height%%3D%d&pagination.limit=100", height)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to query txs at height %d: %w", height, err)
	}

	txs := make([]BlockTx, 0, len(resp.TxResponses))
	for _, tr := range resp.TxResponses {
		if tr.Code != 0 {
			continue
		}
		var h int64
		if _, err := fmt.Sscanf(tr.Height, "%d", &h); err != nil {
			continue
		}
		txs = append(txs, BlockTx{TxHash: tr.TxHash, Height: h, Events: tr.Events})
	}
	return txs, nil
}

type accountResponse struct {
	Account struct {
		AccountNumber string `json:"account_number"`
		Sequence      string `json:"sequence"`
	} `json:"account"`
}

// AccountInfo queries the account number and current sequence for addr via
// /cosmos/auth/v1beta1/accounts/{addr}.
func (c *Client) AccountInfo(ctx context.Context, addr string) (accountNumber, sequence uint64, err error) {
	var resp accountResponse
	path := fmt.Sprintf("/cosmos/auth/v1beta1/accounts/%s", addr)
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, 0, fmt.Errorf("failed to query account info: %w", err)
	}

	if _, err := fmt.Sscanf(resp.Account.AccountNumber, "%d", &accountNumber); err != nil {
		return 0, 0, fmt.Errorf("failed to parse account number: %w", err)
	}
	if _, err := fmt.Sscanf(resp.Account.Sequence, "%d", &sequence); err != nil {
		return 0, 0, fmt.Errorf("failed to parse account sequence: %w", err)
	}
	return accountNumber, sequence, nil
}

// SmartQuery performs a wasm smart contract query against contractAddress,
// decoding the JSON response into out.
func (c *Client) SmartQuery(ctx context.Context, contractAddress string, query any, out any) error {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return fmt.Errorf("failed to marshal smart query: %w", err)
	}
	encoded := base64URLEncode(queryJSON)

	path := fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s", contractAddress, encoded)
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return fmt.Errorf("failed to run smart query: %w", err)
	}

	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("failed to decode smart query result: %w", err)
	}
	return nil
}

// BroadcastTx submits a base64-encoded signed transaction via
// /cosmos/tx/v1beta1/txs, returning the resulting tx hash.
func (c *Client) BroadcastTx(ctx context.Context, txBytes []byte) (txHash string, err error) {
	body := map[string]any{
		"tx_bytes": base64StdEncode(txBytes),
		"mode":     "BROADCAST_MODE_SYNC",
	}

	var resp struct {
		TxResponse struct {
			TxHash string `json:"txhash"`
			Code   int    `json:"code"`
			RawLog string `json:"raw_log"`
		} `json:"tx_response"`
	}

	if err := c.post(ctx, "/cosmos/tx/v1beta1/txs", body, &resp); err != nil {
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	if resp.TxResponse.Code != 0 {
		return "", fmt.Errorf("broadcast rejected (code %d): %s", resp.TxResponse.Code, resp.TxResponse.RawLog)
	}

	return resp.TxResponse.TxHash, nil
}

type txQueryResponse struct {
	TxResponse struct {
		Height string          `json:"height"`
		Code   int             `json:"code"`
		Events []wasmRawEvent  `json:"events"`
		RawLog string          `json:"raw_log"`
		Logs   json.RawMessage `json:"logs"`
	} `json:"tx_response"`
}

// TxStatus queries a broadcast transaction's inclusion height and events via
// /cosmos/tx/v1beta1/txs/{hash}.
func (c *Client) TxStatus(ctx context.Context, txHash string) (height int64, events []wasmRawEvent, err error) {
	var resp txQueryResponse
	path := fmt.Sprintf("/cosmos/tx/v1beta1/txs/%s", txHash)
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	if resp.TxResponse.Code != 0 {
		return 0, nil, fmt.Errorf("transaction failed (code %d): %s", resp.TxResponse.Code, resp.TxResponse.RawLog)
	}

	if _, err := fmt.Sscanf(resp.TxResponse.Height, "%d", &height); err != nil {
		return 0, nil, fmt.Errorf("failed to parse tx height: %w", err)
	}

	return height, resp.TxResponse.Events, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("LCD returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, jsonReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("LCD returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
