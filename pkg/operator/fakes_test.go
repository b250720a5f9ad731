// Copyright 2025 CL8Y Bridge Contributors
//
// In-memory fakes for the pipeline-stage tests: a scriptable chain and
// store queues with the same uniqueness semantics as the SQL layer.

package operator

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

func nowStamp() time.Time {
	return time.Now()
}

type fakeChain struct {
	name     string
	platform chain.Platform
	key      [32]byte
	id       xchain.ChainID
	finality int

	latest      int64
	blockHashes map[int64]string
	deposits    map[[32]byte]bool
	txHeights   map[string]int64

	approvalState *chain.ApprovalState
	pending       *chain.PendingWithdraw

	submitTx    string
	submitErrs  []error // popped per call; nil entry = success
	submissions []chain.ApprovalSubmission
	cancels     [][32]byte
}

func newFakeChain(name string, platform chain.Platform, idByte byte) *fakeChain {
	c := &fakeChain{
		name:        name,
		platform:    platform,
		finality:    3,
		latest:      100,
		blockHashes: make(map[int64]string),
		deposits:    make(map[[32]byte]bool),
		txHeights:   make(map[string]int64),
		submitTx:    "0xsubmitted",
	}
	c.key[0] = idByte
	c.id[3] = idByte
	return c
}

func (f *fakeChain) Platform() chain.Platform { return f.platform }
func (f *fakeChain) Name() string { return f.name }
func (f *fakeChain) ChainKey() [32]byte { return f.key }
func (f *fakeChain) RegistryID() xchain.ChainID { return f.id }
func (f *fakeChain) FinalityBlocks() int { return f.finality }

func (f *fakeChain) LatestHeight(ctx context.Context) (int64, error) {
	return f.latest, nil
}

func (f *fakeChain) BlockHash(ctx context.Context, height int64) (string, error) {
	if h, ok := f.blockHashes[height]; ok {
		return h, nil
	}
	return fmt.Sprintf("hash-%d", height), nil
}

func (f *fakeChain) FetchDeposits(ctx context.Context, from, to int64) ([]chain.Deposit, error) {
	return nil, nil
}

func (f *fakeChain) FetchApprovals(ctx context.Context, from, to int64) ([]chain.ApprovalEvent, error) {
	return nil, nil
}

func (f *fakeChain) HasDeposit(ctx context.Context, transferHash [32]byte) (bool, error) {
	return f.deposits[transferHash], nil
}

func (f *fakeChain) PendingWithdraw(ctx context.Context, withdrawHash [32]byte) (*chain.PendingWithdraw, error) {
	if f.pending == nil {
		return &chain.PendingWithdraw{}, nil
	}
	return f.pending, nil
}

func (f *fakeChain) ApprovalState(ctx context.Context, withdrawHash [32]byte) (*chain.ApprovalState, error) {
	if f.approvalState == nil {
		return &chain.ApprovalState{}, nil
	}
	return f.approvalState, nil
}

func (f *fakeChain) SubmitApproval(ctx context.Context, submission chain.ApprovalSubmission) (string, error) {
	f.submissions = append(f.submissions, submission)
	if len(f.submitErrs) > 0 {
		err := f.submitErrs[0]
		f.submitErrs = f.submitErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.submitTx, nil
}

func (f *fakeChain) SubmitCancel(ctx context.Context, withdrawHash [32]byte) (string, error) {
	f.cancels = append(f.cancels, withdrawHash)
	return "0xcancel", nil
}

func (f *fakeChain) TransactionHeight(ctx context.Context, txHash string) (int64, error) {
	h, ok := f.txHeights[txHash]
	if !ok {
		return 0, chain.ErrTxNotFound
	}
	return h, nil
}

// memDeposits implements DepositQueue.
type memDeposits struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*store.ObservedDeposit
}

func newMemDeposits() *memDeposits {
	return &memDeposits{rows: make(map[uuid.UUID]*store.ObservedDeposit)}
}

func (m *memDeposits) add(d *store.ObservedDeposit) *store.ObservedDeposit {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = store.StatusNew
	}
	m.rows[d.ID] = d
	return d
}

func (m *memDeposits) FetchPending(ctx context.Context, limit int) ([]*store.ObservedDeposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.ObservedDeposit
	for _, d := range m.rows {
		if d.Status == store.StatusNew && len(out) < limit {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDeposits) MarkStatus(ctx context.Context, id uuid.UUID, status store.DepositStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return store.ErrDepositNotFound
	}
	d.Status = status
	d.Error = errMsg
	d.Attempts++
	return nil
}

// memApprovals implements ApprovalQueue with the table's uniqueness rule.
type memApprovals struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*store.Approval
}

func newMemApprovals() *memApprovals {
	return &memApprovals{rows: make(map[uuid.UUID]*store.Approval)}
}

func (m *memApprovals) Insert(ctx context.Context, a *store.Approval) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if string(existing.SourceChain) == string(a.SourceChain) &&
			existing.Nonce == a.Nonce &&
			string(existing.DestChain) == string(a.DestChain) {
			return store.ErrDuplicateApproval
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Status = store.StatusVerified
	m.rows[a.ID] = a
	return nil
}

func (m *memApprovals) FetchPendingSubmission(ctx context.Context, limit int) ([]*store.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Approval
	for _, a := range m.rows {
		if (a.Status == store.StatusVerified || a.Status == store.StatusPending) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memApprovals) FetchSubmittedForConfirmation(ctx context.Context, limit int) ([]*store.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Approval
	for _, a := range m.rows {
		if a.Status == store.StatusSubmitted && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memApprovals) MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return store.ErrApprovalNotFound
	}
	a.Status = store.StatusSubmitted
	a.SubmitTxHash = txHash
	now := nowStamp()
	a.LastAttemptAt = &now
	return nil
}

func (m *memApprovals) MarkConfirmed(ctx context.Context, id uuid.UUID, height int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return store.ErrApprovalNotFound
	}
	a.Status = store.StatusConfirmed
	a.ConfirmedHeight = height
	return nil
}

func (m *memApprovals) MarkStatus(ctx context.Context, id uuid.UUID, status store.DepositStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return store.ErrApprovalNotFound
	}
	a.Status = status
	a.Error = errMsg
	a.Attempts++
	now := nowStamp()
	a.LastAttemptAt = &now
	return nil
}

func (m *memApprovals) all() []*store.Approval {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Approval
	for _, a := range m.rows {
		out = append(out, a)
	}
	return out
}

// memReleases implements ReleaseQueue.
type memReleases struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*store.Release
}

func newMemReleases() *memReleases {
	return &memReleases{rows: make(map[uuid.UUID]*store.Release)}
}

func (m *memReleases) Insert(ctx context.Context, rel *store.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if string(existing.SourceChain) == string(rel.SourceChain) &&
			existing.Nonce == rel.Nonce &&
			string(existing.DestChain) == string(rel.DestChain) {
			return store.ErrDuplicateApproval
		}
	}
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	rel.Status = store.StatusVerified
	m.rows[rel.ID] = rel
	return nil
}

func (m *memReleases) FetchPendingSubmission(ctx context.Context, limit int) ([]*store.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Release
	for _, rel := range m.rows {
		if (rel.Status == store.StatusVerified || rel.Status == store.StatusPending) && len(out) < limit {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (m *memReleases) FetchSubmittedForConfirmation(ctx context.Context, limit int) ([]*store.Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Release
	for _, rel := range m.rows {
		if rel.Status == store.StatusSubmitted && len(out) < limit {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (m *memReleases) MarkSubmitted(ctx context.Context, id uuid.UUID, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.rows[id]
	if !ok {
		return store.ErrReleaseNotFound
	}
	rel.Status = store.StatusSubmitted
	rel.SubmitTxHash = txHash
	now := nowStamp()
	rel.LastAttemptAt = &now
	return nil
}

func (m *memReleases) MarkConfirmed(ctx context.Context, id uuid.UUID, height int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.rows[id]
	if !ok {
		return store.ErrReleaseNotFound
	}
	rel.Status = store.StatusConfirmed
	rel.ConfirmedHeight = height
	return nil
}

func (m *memReleases) MarkStatus(ctx context.Context, id uuid.UUID, status store.DepositStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rel, ok := m.rows[id]
	if !ok {
		return store.ErrReleaseNotFound
	}
	rel.Status = status
	rel.Error = errMsg
	rel.Attempts++
	now := nowStamp()
	rel.LastAttemptAt = &now
	return nil
}

func (m *memReleases) all() []*store.Release {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Release
	for _, rel := range m.rows {
		out = append(out, rel)
	}
	return out
}

// testDeposit builds a finalized deposit row from src to dest with the
// correct transfer hash pre-computed, the shape the watcher would store.
func testDeposit(src, dest *fakeChain, nonce uint64) *store.ObservedDeposit {
	var sender, recipient, token [32]byte
	sender[31] = 0xaa
	recipient[31] = 0xbb
	token[31] = 0xcc

	amount := big.NewInt(1_000_000)
	hash := xchain.TransferHash(src.id, dest.id, sender, recipient, token, amount, new(big.Int).SetUint64(nonce))

	return &store.ObservedDeposit{
		SourceChain:  src.key[:],
		DestChain:    dest.key[:],
		Sender:       sender[:],
		Recipient:    recipient[:],
		Token:        token[:],
		Amount:       decimal.NewFromBigInt(amount, 0),
		Nonce:        nonce,
		TransferHash: hash[:],
		TxHash:       "0xdeposit",
		LogIndex:     0,
		BlockNumber:  50,
		BlockHash:    "hash-50",
	}
}

func mustRegistry(chains ...chain.Chain) *chain.Registry {
	r, err := chain.NewRegistry(chains)
	if err != nil {
		panic(err)
	}
	return r
}
