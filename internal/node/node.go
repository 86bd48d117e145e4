// Package node wires the protocol components (storage, state tree,
// mempool, consensus, p2p, gossip, sync, NTP) into one running daemon,
// assembled into a reusable type rather than built directly in main
// so cmd/novad stays a thin CLI wrapper and internal/rpc gets a
// ChainReader/TxSubmitter without importing consensus internals
// directly into its HTTP layer.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/novafoundation/nova-core/internal/config"
	"github.com/novafoundation/nova-core/internal/consensus"
	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/internal/gossip"
	"github.com/novafoundation/nova-core/internal/mempool"
	"github.com/novafoundation/nova-core/internal/ntp"
	"github.com/novafoundation/nova-core/internal/p2p"
	"github.com/novafoundation/nova-core/internal/statetree"
	"github.com/novafoundation/nova-core/internal/storage"
	"github.com/novafoundation/nova-core/pkg/types"
)

// Node bundles a running NOVA settlement node's components and the
// glue between them. Exported so cmd/novad and internal/rpc.Backend
// adapters can reach into it; internal lifecycle state stays
// unexported.
type Node struct {
	log *logrus.Logger
	cfg config.Config

	Identity *crypto.Keypair

	Store    storage.KVStore
	Tree     *statetree.Tree
	Mempool  *mempool.Mempool
	Engine   *consensus.Engine
	P2P      *p2p.Node
	Gossip   *gossip.Layer
	Sync     *p2p.SyncManager
	Sessions *ntp.Manager

	mu          sync.RWMutex
	blocksByHeight map[uint64]*types.Block
	blocksByHash   map[types.Hash]*types.Block
	txIndex        map[types.Hash]txLocation

	cancel context.CancelFunc
}

type txLocation struct {
	tx     *types.Transaction
	height uint64
}

// New assembles a Node from its already-constructed pieces. Callers
// (cmd/novad) are responsible for building store, tree, mempool,
// validators and genesis, since those choices (fresh chain vs.
// resuming from storage) are deployment decisions outside this
// package's scope.
func New(cfg config.Config, identity *crypto.Keypair, store storage.KVStore, tree *statetree.Tree, pool *mempool.Mempool, engine *consensus.Engine, p2pNode *p2p.Node, log *logrus.Logger) (*Node, error) {
	if log == nil {
		log = logrus.New()
	}

	gossipLayer, err := gossip.New(p2pNode, log)
	if err != nil {
		return nil, fmt.Errorf("node: build gossip layer: %w", err)
	}

	n := &Node{
		log:            log,
		cfg:            cfg,
		Identity:       identity,
		Store:          store,
		Tree:           tree,
		Mempool:        pool,
		Engine:         engine,
		P2P:            p2pNode,
		Gossip:         gossipLayer,
		Sessions:       ntp.NewManager(identity),
		blocksByHeight: make(map[uint64]*types.Block),
		blocksByHash:   make(map[types.Hash]*types.Block),
		txIndex:        make(map[types.Hash]txLocation),
	}

	n.Sync = p2p.NewSyncManager(p2pNode, n.applyHistoricalBlock, nil, log)
	n.Sync.SetRangeProvider(n.provideBlockRange)

	n.wireGossipHandlers()
	return n, nil
}

// Start joins the gossip topics, begins peer maintenance, and starts
// the settlement-timeout sweep. It does not start block production;
// callers that want this node to propose blocks call RunProposerLoop
// separately, since not every running node is a validator.
func (n *Node) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	n.P2P.Start()

	height, _ := n.Engine.Tip()
	if err := n.Sync.Start(runCtx, height); err != nil {
		n.log.WithFields(logrus.Fields{"component": "node"}).Warn("sync start: ", err)
	}

	go n.sweepSettlementTimeouts(runCtx)
}

// Stop tears down the node's background goroutines and network
// connections.
func (n *Node) Stop() error {
	if n.cancel != nil {
		n.cancel()
	}
	return n.P2P.Close()
}

// RunProposerLoop drives block production for validator nodes: each
// round it checks whether this node is the expected proposer, builds
// and gossips a block when it is, signs and gossips its own vote for
// whichever block is current for the round, and advances the round on
// timeout if nothing finalized. Non-validator nodes never call this.
func (n *Node) RunProposerLoop(ctx context.Context) {
	cfg := consensus.DefaultConfig()
	ticker := time.NewTicker(cfg.RoundTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			before, _ := n.Engine.Tip()
			n.tryProposeAndVote()
			if after, _ := n.Engine.Tip(); after == before {
				n.Engine.AdvanceRoundOnTimeout()
			}
		}
	}
}

func (n *Node) tryProposeAndVote() {
	expected, ok := n.Engine.ExpectedProposer()
	if !ok || expected.Address != n.Identity.Address() {
		return
	}

	block, err := n.Engine.ProposeBlock(n.Identity)
	if err != nil {
		n.log.WithFields(logrus.Fields{"component": "node"}).Warn("propose block: ", err)
		return
	}
	n.indexBlock(block)

	if err := n.Gossip.Broadcast(p2p.BlockTopic, p2p.EncodeBlock(block)); err != nil {
		n.log.WithFields(logrus.Fields{"component": "node"}).Warn("broadcast block: ", err)
	}

	vote := &types.Vote{
		BlockHash:      block.Hash(),
		Height:         block.Header.Height,
		Round:          n.Engine.Round(),
		VoterPublicKey: n.Identity.PublicKey(),
	}
	vote.Signature = n.Identity.Sign(vote.SigningBytes())

	if err := n.Engine.RecordVote(vote, vote.VoterPublicKey); err != nil {
		n.log.WithFields(logrus.Fields{"component": "node"}).Warn("record own vote: ", err)
		return
	}
	if err := n.Gossip.Broadcast(p2p.VoteTopic, p2p.EncodeVote(vote)); err != nil {
		n.log.WithFields(logrus.Fields{"component": "node"}).Warn("broadcast vote: ", err)
		return
	}
	if finalized, err := n.Engine.TryFinalize(block, vote.Round); err == nil && finalized {
		n.persistFinalizedBlock(block)
	}
}

func (n *Node) sweepSettlementTimeouts(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range n.Sessions.SweepTimeouts() {
				n.log.WithFields(logrus.Fields{"component": "ntp", "session_id": s.ID.String()}).
					Info("settlement timed out")
			}
		}
	}
}

func (n *Node) wireGossipHandlers() {
	n.Gossip.OnTopic(p2p.TransactionTopic, n.handleGossipTransaction)
	n.Gossip.OnTopic(p2p.BlockTopic, n.handleGossipBlock)
	n.Gossip.OnTopic(p2p.VoteTopic, n.handleGossipVote)
}

func (n *Node) handleGossipTransaction(_ context.Context, payload []byte) error {
	tx, err := p2p.DecodeTransaction(payload)
	if err != nil {
		return fmt.Errorf("node: decode gossiped tx: %w", err)
	}
	return n.Mempool.Add(tx, time.Now())
}

func (n *Node) handleGossipBlock(_ context.Context, payload []byte) error {
	block, err := p2p.DecodeBlock(payload)
	if err != nil {
		return fmt.Errorf("node: decode gossiped block: %w", err)
	}
	round := n.Engine.Round()
	if err := n.Engine.ValidateBlock(block, round); err != nil {
		return fmt.Errorf("node: validate gossiped block: %w", err)
	}
	n.indexBlock(block)
	return nil
}

func (n *Node) handleGossipVote(_ context.Context, payload []byte) error {
	vote, err := p2p.DecodeVote(payload)
	if err != nil {
		return fmt.Errorf("node: decode gossiped vote: %w", err)
	}
	if err := n.Engine.RecordVote(vote, vote.VoterPublicKey); err != nil {
		return fmt.Errorf("node: record vote: %w", err)
	}
	if block, ok := n.GetBlockByHash(vote.BlockHash); ok {
		if finalized, err := n.Engine.TryFinalize(block, vote.Round); err == nil && finalized {
			n.persistFinalizedBlock(block)
		}
	}
	return nil
}

// applyHistoricalBlock is the SyncManager's ApplyFunc: it applies a
// block received during catch-up directly to the state tree, bypassing
// live vote tallying (historical blocks are already final).
func (n *Node) applyHistoricalBlock(block *types.Block) error {
	if err := n.Tree.ApplyBlock(block); err != nil {
		return fmt.Errorf("node: apply historical block: %w", err)
	}
	n.persistFinalizedBlock(block)
	return nil
}

func (n *Node) persistFinalizedBlock(block *types.Block) {
	n.indexBlock(block)

	height := block.Header.Height
	ctx := context.Background()
	encoded := p2p.EncodeBlock(block)
	if err := n.Store.Put(ctx, storage.TableBlocks, heightKey(height), encoded); err != nil {
		n.log.WithFields(logrus.Fields{"component": "node", "height": height}).Warn("persist block: ", err)
	}

	n.mu.Lock()
	for _, tx := range block.Transactions {
		n.txIndex[tx.Id] = txLocation{tx: tx, height: height}
	}
	n.mu.Unlock()
}

func (n *Node) indexBlock(block *types.Block) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.blocksByHeight[block.Header.Height] = block
	n.blocksByHash[block.Hash()] = block
}

func (n *Node) provideBlockRange(fromHeight uint64, count uint32) []*types.Block {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []*types.Block
	for h := fromHeight; h < fromHeight+uint64(count); h++ {
		if b, ok := n.blocksByHeight[h]; ok {
			out = append(out, b)
		} else {
			break
		}
	}
	return out
}

func heightKey(height uint64) []byte {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(height >> (8 * i))
	}
	return buf
}

// --- rpc.ChainReader / rpc.TxSubmitter -------------------------------------

// Height returns the current finalized chain height.
func (n *Node) Height() uint64 {
	h, _ := n.Engine.Tip()
	return h
}

// Syncing reports whether the node is still catching up to its peers.
func (n *Node) Syncing() bool {
	return n.Sync.IsSyncing()
}

// GetAccount returns a copy of the state-tree account for addr. The
// bool is false when the tree holds only the default, empty account.
func (n *Node) GetAccount(addr types.Address) (*types.Account, bool) {
	acc := n.Tree.Get(addr)
	exists := acc.Nonce != 0 || acc.Balance != 0 || acc.Frozen ||
		len(acc.TokenBalances) != 0 || len(acc.CreditLines) != 0
	return acc, exists
}

// GetBlockByHeight returns a block by height, checking the in-memory
// index first and falling back to storage. The in-memory index also
// holds proposed and gossiped blocks that have not been finalized yet.
func (n *Node) GetBlockByHeight(height uint64) (*types.Block, bool) {
	n.mu.RLock()
	block, ok := n.blocksByHeight[height]
	n.mu.RUnlock()
	if ok {
		return block, true
	}

	raw, err := n.Store.Get(context.Background(), storage.TableBlocks, heightKey(height))
	if err != nil {
		return nil, false
	}
	block, err = p2p.DecodeBlock(raw)
	if err != nil {
		return nil, false
	}
	return block, true
}

// GetBlockByHash returns an indexed block by its header hash; like
// GetBlockByHeight's index, this includes blocks not yet finalized.
func (n *Node) GetBlockByHash(hash types.Hash) (*types.Block, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	block, ok := n.blocksByHash[hash]
	return block, ok
}

// GetTransaction returns a confirmed transaction by id.
func (n *Node) GetTransaction(id types.Hash) (*types.Transaction, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	loc, ok := n.txIndex[id]
	if !ok {
		return nil, false
	}
	return loc.tx, true
}

// Validators returns the active validator set.
func (n *Node) Validators() []consensus.Validator {
	return n.Engine.Validators()
}

// Submit validates and admits tx into the mempool, then gossips it.
func (n *Node) Submit(tx *types.Transaction) error {
	now := time.Now()
	if err := tx.ValidateStructure(uint64(now.UnixMilli())); err != nil {
		return fmt.Errorf("node: reject transaction: %w", err)
	}
	if err := n.Mempool.Add(tx, now); err != nil {
		return err
	}
	return n.Gossip.Broadcast(p2p.TransactionTopic, p2p.EncodeTransaction(tx))
}
