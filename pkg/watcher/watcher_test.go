// Copyright 2025 CL8Y Bridge Contributors

package watcher

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/cl8y-bridge/bridge-core/pkg/chain"
	"github.com/cl8y-bridge/bridge-core/pkg/store"
	"github.com/cl8y-bridge/bridge-core/pkg/xchain"
)

type fakeChain struct {
	name     string
	key      [32]byte
	id       xchain.ChainID
	finality int

	latest      int64
	blockHashes map[int64]string
	deposits    []chain.Deposit
}

func newFakeChain(name string, idByte byte) *fakeChain {
	c := &fakeChain{
		name:        name,
		finality:    3,
		latest:      100,
		blockHashes: make(map[int64]string),
	}
	c.key[0] = idByte
	c.id[3] = idByte
	return c
}

func (f *fakeChain) Platform() chain.Platform { return chain.PlatformEVM }
func (f *fakeChain) Name() string { return f.name }
func (f *fakeChain) ChainKey() [32]byte { return f.key }
func (f *fakeChain) RegistryID() xchain.ChainID { return f.id }
func (f *fakeChain) FinalityBlocks() int { return f.finality }

func (f *fakeChain) LatestHeight(ctx context.Context) (int64, error) { return f.latest, nil }

func (f *fakeChain) BlockHash(ctx context.Context, height int64) (string, error) {
	if h, ok := f.blockHashes[height]; ok {
		return h, nil
	}
	return fmt.Sprintf("hash-%d", height), nil
}

func (f *fakeChain) FetchDeposits(ctx context.Context, from, to int64) ([]chain.Deposit, error) {
	var out []chain.Deposit
	for _, d := range f.deposits {
		if d.BlockNumber >= from && d.BlockNumber <= to {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeChain) FetchApprovals(ctx context.Context, from, to int64) ([]chain.ApprovalEvent, error) {
	return nil, nil
}

func (f *fakeChain) HasDeposit(ctx context.Context, transferHash [32]byte) (bool, error) {
	return false, nil
}

func (f *fakeChain) PendingWithdraw(ctx context.Context, withdrawHash [32]byte) (*chain.PendingWithdraw, error) {
	return &chain.PendingWithdraw{}, nil
}

func (f *fakeChain) ApprovalState(ctx context.Context, withdrawHash [32]byte) (*chain.ApprovalState, error) {
	return &chain.ApprovalState{}, nil
}

func (f *fakeChain) SubmitApproval(ctx context.Context, submission chain.ApprovalSubmission) (string, error) {
	return "", fmt.Errorf("watcher never submits")
}

func (f *fakeChain) SubmitCancel(ctx context.Context, withdrawHash [32]byte) (string, error) {
	return "", fmt.Errorf("watcher never cancels")
}

func (f *fakeChain) TransactionHeight(ctx context.Context, txHash string) (int64, error) {
	return 0, chain.ErrTxNotFound
}

// memStore backs all three watcher-facing interfaces with the store's
// semantics: batch commits are atomic and deposit upserts dedupe on
// (source_chain, tx_hash, log_index).
type memStore struct {
	mu      sync.Mutex
	rows    []*store.ObservedDeposit
	cursors map[string]*store.ChainCursor
	reorged int64
	commits int
}

func newMemStore() *memStore {
	return &memStore{cursors: make(map[string]*store.ChainCursor)}
}

func (m *memStore) key(chainKey []byte, scope string) string {
	return string(chainKey) + "/" + scope
}

func (m *memStore) Get(ctx context.Context, chainKey []byte, scope string) (*store.ChainCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[m.key(chainKey, scope)]
	if !ok {
		return nil, store.ErrCursorNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) Initialize(ctx context.Context, chainKey []byte, scope, chainName string, startBlock int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.key(chainKey, scope)
	if _, ok := m.cursors[key]; !ok {
		m.cursors[key] = &store.ChainCursor{ChainKey: chainKey, Scope: scope, ChainName: chainName, LastBlock: startBlock}
	}
	return nil
}

func (m *memStore) Rewind(ctx context.Context, chainKey []byte, scope string, block int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[m.key(chainKey, scope)]
	if !ok {
		return store.ErrCursorNotFound
	}
	c.LastBlock = block
	c.LastBlockHash = ""
	return nil
}

func (m *memStore) MarkReorgedFrom(ctx context.Context, chainKey []byte, block int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flagged int64
	for _, d := range m.rows {
		if string(d.SourceChain) == string(chainKey) && d.BlockNumber >= block && d.Status == store.StatusNew {
			d.Status = store.StatusReorged
			flagged++
		}
	}
	m.reorged += flagged
	return flagged, nil
}

func (m *memStore) CommitBatch(ctx context.Context, deposits []*store.ObservedDeposit, chainKey []byte, scope string, block int64, blockHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cursors[m.key(chainKey, scope)]
	if !ok {
		return store.ErrCursorNotFound
	}

	for _, d := range deposits {
		dup := false
		for _, existing := range m.rows {
			if string(existing.SourceChain) == string(d.SourceChain) &&
				existing.TxHash == d.TxHash && existing.LogIndex == d.LogIndex {
				dup = true
				break
			}
		}
		if !dup {
			d.Status = store.StatusNew
			m.rows = append(m.rows, d)
		}
	}

	c.LastBlock = block
	c.LastBlockHash = blockHash
	m.commits++
	return nil
}

func fixture(t *testing.T) (*Watcher, *fakeChain, *fakeChain, *memStore) {
	t.Helper()

	src := newFakeChain("src", 1)
	dest := newFakeChain("dest", 2)
	registry, err := chain.NewRegistry([]chain.Chain{src, dest})
	if err != nil {
		t.Fatal(err)
	}

	ms := newMemStore()
	w := New(src, registry, ms, ms, ms)
	return w, src, dest, ms
}

func testChainDeposit(dest *fakeChain, nonce uint64, block int64) chain.Deposit {
	var destAccount, destToken [32]byte
	destAccount[31] = 0xbb
	destToken[31] = 0xcc

	var sender xchain.UniversalAddress
	sender[31] = 0xaa

	return chain.Deposit{
		DestChainKey: dest.key,
		DestToken:    destToken,
		DestAccount:  destAccount,
		SrcAccount:   sender,
		Amount:       big.NewInt(1_000_000),
		Nonce:        nonce,
		TxHash:       fmt.Sprintf("0xtx-%d", nonce),
		LogIndex:     0,
		BlockNumber:  block,
		BlockHash:    fmt.Sprintf("hash-%d", block),
	}
}

func TestPoll_StoresDepositsAndAdvancesCursor(t *testing.T) {
	w, src, dest, ms := fixture(t)

	key := src.key
	if err := ms.Initialize(context.Background(), key[:], store.CursorScopeDeposits, "src", 40); err != nil {
		t.Fatal(err)
	}
	src.deposits = []chain.Deposit{testChainDeposit(dest, 1, 50)}

	if err := w.poll(context.Background()); err != nil {
		t.Fatalf("poll: %v", err)
	}

	if len(ms.rows) != 1 {
		t.Fatalf("stored %d deposits, want 1", len(ms.rows))
	}
	row := ms.rows[0]
	if row.Status != store.StatusNew {
		t.Errorf("status = %s, want new", row.Status)
	}

	// Transfer hash must match the canonical derivation.
	d := src.deposits[0]
	want := xchain.TransferHash(src.id, dest.id,
		[32]byte(d.SrcAccount), d.DestAccount, d.DestToken,
		d.Amount, new(big.Int).SetUint64(d.Nonce))
	if string(row.TransferHash) != string(want[:]) {
		t.Errorf("transfer hash = %x, want %x", row.TransferHash, want)
	}

	c, err := ms.Get(context.Background(), key[:], store.CursorScopeDeposits)
	if err != nil {
		t.Fatal(err)
	}
	wantCursor := src.latest - int64(src.finality)
	if c.LastBlock != wantCursor {
		t.Errorf("cursor = %d, want %d", c.LastBlock, wantCursor)
	}
}

// S4: the same event observed twice (restart between upsert and cursor
// commit) produces exactly one row.
func TestPoll_DuplicateEventIsNoOp(t *testing.T) {
	w, src, dest, ms := fixture(t)

	key := src.key
	if err := ms.Initialize(context.Background(), key[:], store.CursorScopeDeposits, "src", 40); err != nil {
		t.Fatal(err)
	}
	src.deposits = []chain.Deposit{testChainDeposit(dest, 1, 50)}

	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Simulate the crash-replay: rewind the cursor below the event and
	// poll again.
	if err := ms.Rewind(context.Background(), key[:], store.CursorScopeDeposits, 40); err != nil {
		t.Fatal(err)
	}
	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(ms.rows) != 1 {
		t.Errorf("stored %d deposits after replay, want 1", len(ms.rows))
	}
}

// S3: the cursor's settled block is replaced. Affected rows are flagged
// and the cursor rewound so the canonical events re-emit.
func TestPoll_ReorgFlagsAndRewinds(t *testing.T) {
	w, src, dest, ms := fixture(t)

	key := src.key
	if err := ms.Initialize(context.Background(), key[:], store.CursorScopeDeposits, "src", 40); err != nil {
		t.Fatal(err)
	}
	src.deposits = []chain.Deposit{testChainDeposit(dest, 1, 96)}

	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ms.rows) != 1 {
		t.Fatalf("stored %d deposits, want 1", len(ms.rows))
	}

	// The chain replaces the cursor's block.
	cursorBlock := src.latest - int64(src.finality)
	src.blockHashes[cursorBlock] = "replaced"

	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}

	if ms.rows[0].Status != store.StatusReorged {
		t.Errorf("deposit status = %s, want reorged", ms.rows[0].Status)
	}
	c, err := ms.Get(context.Background(), key[:], store.CursorScopeDeposits)
	if err != nil {
		t.Fatal(err)
	}
	if c.LastBlock != cursorBlock-int64(src.finality) {
		t.Errorf("cursor = %d, want %d", c.LastBlock, cursorBlock-int64(src.finality))
	}

	// The deposit re-appears at a new block; a fresh poll stores it
	// again under its new coordinates.
	delete(src.blockHashes, cursorBlock)
	reborn := testChainDeposit(dest, 1, 97)
	reborn.TxHash = "0xtx-1-reorged"
	src.deposits = []chain.Deposit{reborn}

	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(ms.rows) != 2 {
		t.Errorf("stored %d rows after re-emission, want 2", len(ms.rows))
	}
}

func TestPoll_ClampsToMaxRange(t *testing.T) {
	w, src, _, ms := fixture(t)

	src.latest = 10_000
	key := src.key
	if err := ms.Initialize(context.Background(), key[:], store.CursorScopeDeposits, "src", 0); err != nil {
		t.Fatal(err)
	}

	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}

	c, err := ms.Get(context.Background(), key[:], store.CursorScopeDeposits)
	if err != nil {
		t.Fatal(err)
	}
	if c.LastBlock != MaxBlockRange {
		t.Errorf("cursor = %d, want clamp at %d", c.LastBlock, MaxBlockRange)
	}
}

func TestPoll_NothingFinalized(t *testing.T) {
	w, src, _, ms := fixture(t)

	key := src.key
	if err := ms.Initialize(context.Background(), key[:], store.CursorScopeDeposits, "src", 97); err != nil {
		t.Fatal(err)
	}

	if err := w.poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ms.commits != 0 {
		t.Error("committed a batch with no finalized range")
	}
}

func TestInitCursor_SeedsAtFinalizedTip(t *testing.T) {
	w, src, _, ms := fixture(t)

	if err := w.initCursor(context.Background()); err != nil {
		t.Fatal(err)
	}

	key := src.key
	c, err := ms.Get(context.Background(), key[:], store.CursorScopeDeposits)
	if err != nil {
		t.Fatal(err)
	}
	if c.LastBlock != src.latest-int64(src.finality) {
		t.Errorf("seed = %d, want %d", c.LastBlock, src.latest-int64(src.finality))
	}

	// Re-running must not rewind an existing cursor.
	src.latest = 200
	if err := w.initCursor(context.Background()); err != nil {
		t.Fatal(err)
	}
	c2, _ := ms.Get(context.Background(), key[:], store.CursorScopeDeposits)
	if c2.LastBlock != c.LastBlock {
		t.Error("initCursor rewound an existing cursor")
	}
}
