package node

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/internal/consensus"
	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/internal/mempool"
	"github.com/novafoundation/nova-core/internal/statetree"
	"github.com/novafoundation/nova-core/internal/storage"
	"github.com/novafoundation/nova-core/pkg/types"
)

// fakeStore is a minimal in-memory storage.KVStore, used where a Node
// needs a non-nil store but the test never exercises persistence
// failure modes.
type fakeStore struct {
	data map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{data: make(map[string][]byte)} }

func storeKey(table storage.Table, key []byte) string { return string(table) + ":" + string(key) }

func (s *fakeStore) Get(_ context.Context, table storage.Table, key []byte) ([]byte, error) {
	v, ok := s.data[storeKey(table, key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (s *fakeStore) Put(_ context.Context, table storage.Table, key, value []byte) error {
	s.data[storeKey(table, key)] = value
	return nil
}

func (s *fakeStore) Delete(_ context.Context, table storage.Table, key []byte) error {
	delete(s.data, storeKey(table, key))
	return nil
}

func (s *fakeStore) AtomicBatch(ctx context.Context, ops []storage.BatchOp) error {
	for _, op := range ops {
		if op.Delete {
			s.Delete(ctx, op.Table, op.Key)
			continue
		}
		s.Put(ctx, op.Table, op.Key, op.Value)
	}
	return nil
}

func (s *fakeStore) IterPrefix(context.Context, storage.Table, []byte, func(key, value []byte) error) error {
	return nil
}

func (s *fakeStore) Close() {}

// New assembles a Node around a live *p2p.Node (a real libp2p host), so
// it and the gossip/sync wiring it performs are exercised in
// integration testing rather than here. This file constructs a Node
// literal directly to cover the chain-reader/indexing logic that
// doesn't require a network.

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestNode(t *testing.T) (*Node, *crypto.Keypair) {
	t.Helper()
	proposer, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	tree := statetree.New()
	pool := mempool.New(mempool.DefaultConfig())
	vs := consensus.NewValidatorSet([]consensus.Validator{{Address: proposer.Address(), PublicKey: proposer.PublicKey(), Stake: 100}})
	genesis := types.Genesis(tree.Root(), uint64(time.Now().UnixMilli()))
	engine := consensus.New(consensus.DefaultConfig(), tree, pool, vs, genesis, quietLog())

	n := &Node{
		log:            quietLog(),
		Identity:       proposer,
		Store:          newFakeStore(),
		Tree:           tree,
		Mempool:        pool,
		Engine:         engine,
		blocksByHeight: make(map[uint64]*types.Block),
		blocksByHash:   make(map[types.Hash]*types.Block),
		txIndex:        make(map[types.Hash]txLocation),
	}
	return n, proposer
}

func TestHeightReflectsEngineTip(t *testing.T) {
	n, _ := newTestNode(t)
	require.Equal(t, uint64(0), n.Height())
}

func TestGetAccountReadsThroughToTree(t *testing.T) {
	n, _ := newTestNode(t)
	addr := types.DeriveAddress([]byte("alice"))

	_, ok := n.GetAccount(addr)
	require.False(t, ok)
}

func TestIndexBlockThenLookupByHeightAndHash(t *testing.T) {
	n, _ := newTestNode(t)
	block := &types.Block{Header: types.BlockHeader{Height: 5, Proposer: types.Address{1}}}

	n.indexBlock(block)

	byHeight, ok := n.GetBlockByHeight(5)
	require.True(t, ok)
	require.Equal(t, block, byHeight)

	byHash, ok := n.GetBlockByHash(block.Hash())
	require.True(t, ok)
	require.Equal(t, block, byHash)
}

func TestGetBlockByHeightMissingReturnsFalse(t *testing.T) {
	n, _ := newTestNode(t)
	_, ok := n.GetBlockByHeight(999)
	require.False(t, ok)
}

func TestProvideBlockRangeStopsAtFirstGap(t *testing.T) {
	n, _ := newTestNode(t)
	n.indexBlock(&types.Block{Header: types.BlockHeader{Height: 1}})
	n.indexBlock(&types.Block{Header: types.BlockHeader{Height: 2}})
	// height 3 missing
	n.indexBlock(&types.Block{Header: types.BlockHeader{Height: 4}})

	blocks := n.provideBlockRange(1, 10)
	require.Len(t, blocks, 2)
	require.Equal(t, uint64(1), blocks[0].Header.Height)
	require.Equal(t, uint64(2), blocks[1].Header.Height)
}

func TestPersistFinalizedBlockIndexesTransactions(t *testing.T) {
	n, proposer := newTestNode(t)
	tx := types.NewTransaction(types.TxTransfer, proposer.Address(), types.DeriveAddress([]byte("to")), types.Amount{Value: 1, Currency: types.NativeCurrency}, 1000, 0, uint64(time.Now().UnixMilli()))
	block := &types.Block{Header: types.BlockHeader{Height: 7}, Transactions: []*types.Transaction{tx}}

	n.persistFinalizedBlock(block)

	got, ok := n.GetTransaction(tx.Id)
	require.True(t, ok)
	require.Equal(t, tx, got)
}

func TestHeightKeyIsBigEndianAndOrdered(t *testing.T) {
	require.Less(t, string(heightKey(1)), string(heightKey(2)))
	require.Less(t, string(heightKey(255)), string(heightKey(256)))
}

func TestSubmitRejectsStructurallyInvalidTransactionBeforeGossip(t *testing.T) {
	n, proposer := newTestNode(t)
	tx := types.NewTransaction(types.TxTransfer, proposer.Address(), types.DeriveAddress([]byte("to")), types.Amount{Value: 1, Currency: types.NativeCurrency}, 0, 0, uint64(time.Now().UnixMilli()))

	err := n.Submit(tx)
	require.Error(t, err)
}
