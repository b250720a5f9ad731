// Copyright 2025 CL8Y Bridge Contributors

package cosmoschain

// Execute messages and smart queries for the CosmWasm bridge contract.
// Byte fields travel as lowercase hex strings and amounts as decimal
// strings, matching the contract's JSON schema.

// WithdrawApproveExecuteMsg approves a transfer observed on another chain,
// the counterpart of the EVM bridge's approveWithdraw entry point. Unlike
// approveWithdraw it carries the source account and a bech32 recipient
// instead of a 32-byte destination account.
type WithdrawApproveExecuteMsg struct {
	WithdrawApprove WithdrawApproveMsg `json:"withdraw_approve"`
}

type WithdrawApproveMsg struct {
	SrcChainKey      string `json:"src_chain_key"` // hex, 32 bytes
	SrcAccount       string `json:"src_account"`   // hex, 32 bytes
	Recipient        string `json:"recipient"`     // bech32 destination account
	Token            string `json:"token"`         // denom or cw20 address
	Amount           string `json:"amount"`
	Nonce            string `json:"nonce"`
	Fee              string `json:"fee"`
	FeeRecipient     string `json:"fee_recipient,omitempty"`
	DeductFromAmount bool   `json:"deduct_from_amount"`
}

// WithdrawCancelExecuteMsg revokes an approval the canceler could not
// re-verify against the source chain within the cancel window. Cancelling
// an already-cancelled hash is accepted by the contract, so resubmission
// after a restart is safe.
type WithdrawCancelExecuteMsg struct {
	WithdrawCancel WithdrawCancelMsg `json:"withdraw_cancel"`
}

type WithdrawCancelMsg struct {
	WithdrawHash string `json:"withdraw_hash"` // hex, 32 bytes
}

// PendingWithdrawQuery looks up the contract's pending-withdraw record: the
// full transfer tuple plus the approval timestamp.
type PendingWithdrawQuery struct {
	PendingWithdraw PendingWithdrawQueryInner `json:"pending_withdraw"`
}

type PendingWithdrawQueryInner struct {
	WithdrawHash string `json:"withdraw_hash"`
}

// PendingWithdrawResponse is the decoded response to PendingWithdrawQuery.
// A nil/absent record decodes with Exists == false.
type PendingWithdrawResponse struct {
	Exists      bool   `json:"exists"`
	SrcChain    string `json:"src_chain"`    // hex, 4 bytes
	SrcAccount  string `json:"src_account"`  // hex, 32 bytes
	DestAccount string `json:"dest_account"` // hex, 32 bytes
	Token       string `json:"token"`        // hex, 32 bytes (universal form)
	Amount      string `json:"amount"`
	Nonce       string `json:"nonce"`
	CreatedAt   string `json:"created_at"` // unix seconds
	Cancelled   bool   `json:"cancelled"`
	Executed    bool   `json:"executed"`
}

// XchainHashIdQuery asks whether the contract indexed a deposit under the
// given transfer hash, the Cosmos analogue of the EVM getDeposit existence
// check.
type XchainHashIdQuery struct {
	XchainHashId XchainHashIdQueryInner `json:"xchain_hash_id"`
}

type XchainHashIdQueryInner struct {
	Hash string `json:"hash"`
}

// XchainHashIdResponse is the decoded response to XchainHashIdQuery.
type XchainHashIdResponse struct {
	Exists bool   `json:"exists"`
	Nonce  string `json:"nonce,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// RegisteredChainsQuery enumerates the contract's chain registry, used by
// discovery when the bootstrap chain is the Cosmos side.
type RegisteredChainsQuery struct {
	RegisteredChains struct{} `json:"registered_chains"`
}

// RegisteredChainEntry is one registry row.
type RegisteredChainEntry struct {
	ChainID       string `json:"chain_id"`  // hex, 4 bytes
	NativeID      string `json:"native_id"` // decimal string
	ChainType     string `json:"chain_type"`
	BridgeAddress string `json:"bridge_address"`
}

// RegisteredChainsResponse is the decoded response to RegisteredChainsQuery.
type RegisteredChainsResponse struct {
	Chains []RegisteredChainEntry `json:"chains"`
}
