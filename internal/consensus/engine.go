package consensus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/internal/mempool"
	"github.com/novafoundation/nova-core/internal/statetree"
	"github.com/novafoundation/nova-core/pkg/common"
	"github.com/novafoundation/nova-core/pkg/types"
)

// Engine errors.
var (
	ErrWrongProposer     = errors.New("consensus: block proposer does not match the round's expected proposer")
	ErrPreviousHashMismatch = errors.New("consensus: block does not link to the current finalized tip")
	ErrBadProposerSignature = errors.New("consensus: invalid proposer signature")
	ErrAlreadyFinalizedHeight = errors.New("consensus: height already finalized")
	ErrUnknownVoter      = errors.New("consensus: vote from an address outside the active validator set")
	ErrEquivocation      = errors.New("consensus: voter signed conflicting blocks for the same round")
	ErrClockSkew         = errors.New("consensus: block timestamp deviates from local clock beyond tolerance")
)

// Config holds consensus tuning parameters.
type Config struct {
	RoundTimeout time.Duration
	BlockTimeMs  uint64
	MaxBlockTxs  int
	MaxBlockBytes int
}

// DefaultConfig returns the protocol's default tuning.
func DefaultConfig() *Config {
	return &Config{
		RoundTimeout:  2000 * time.Millisecond,
		BlockTimeMs:   2000,
		MaxBlockTxs:   2000,
		MaxBlockBytes: 4 * 1024 * 1024,
	}
}

// roundKey identifies one (blockHash, round) vote tally.
type roundKey struct {
	blockHash types.Hash
	round     uint32
}

// Engine drives proposer rotation, vote aggregation, and finalization
// against a state tree and mempool. An RWMutex guards the engine: an
// exclusive writer during block apply, concurrent readers otherwise.
type Engine struct {
	mu sync.RWMutex

	cfg      *Config
	log      *logrus.Logger
	tree     *statetree.Tree
	pool     *mempool.Mempool
	validators *ValidatorSet

	finalizedHeight uint64
	finalizedHash   types.Hash
	round           uint32

	// votes maps (blockHash, round) to voter -> cast vote, for
	// aggregation and equivocation detection.
	votes map[roundKey]map[types.Address]*types.Vote
	// votedRound records, per voter per round, which block hash they
	// already voted for, so a conflicting second vote is detectable.
	votedRound map[uint32]map[types.Address]types.Hash
	equivocators map[types.Address]bool
}

// New constructs a consensus engine over an existing state tree and
// mempool, seeded with a genesis block already reflected in tree.
func New(cfg *Config, tree *statetree.Tree, pool *mempool.Mempool, validators *ValidatorSet, genesis *types.Block, log *logrus.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		cfg:             cfg,
		log:             log,
		tree:            tree,
		pool:            pool,
		validators:      validators,
		finalizedHeight: genesis.Header.Height,
		finalizedHash:   genesis.Hash(),
		votes:           make(map[roundKey]map[types.Address]*types.Vote),
		votedRound:      make(map[uint32]map[types.Address]types.Hash),
		equivocators:    make(map[types.Address]bool),
	}
}

// Tip returns the currently finalized height and block hash.
func (e *Engine) Tip() (uint64, types.Hash) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.finalizedHeight, e.finalizedHash
}

// Round returns the current voting round for the next height.
func (e *Engine) Round() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.round
}

// UpdateValidatorSet publishes a new validator-set snapshot atomically,
// called at block finalization.
func (e *Engine) UpdateValidatorSet(vs *ValidatorSet) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators = vs
}

// ExpectedProposer returns the validator expected to propose the next
// block at the engine's current round.
func (e *Engine) ExpectedProposer() (Validator, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validators.ProposerForRound(e.finalizedHeight+1, e.round)
}

// Validators returns the active validator set snapshot.
func (e *Engine) Validators() []Validator {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validators.Validators()
}

// ProposeBlock snapshots the mempool, builds a block whose header
// references the current finalized tip, and signs it with the
// proposer's keypair.
func (e *Engine) ProposeBlock(proposer *crypto.Keypair) (*types.Block, error) {
	e.mu.RLock()
	height := e.finalizedHeight + 1
	round := e.round
	prevHash := e.finalizedHash
	e.mu.RUnlock()

	expected, ok := e.ExpectedProposer()
	if !ok || expected.Address != proposer.Address() {
		return nil, ErrWrongProposer
	}

	txs := e.pool.SelectForBlock(e.cfg.MaxBlockTxs, e.cfg.MaxBlockBytes)

	stateRootAfterBody, err := e.simulateApply(txs)
	if err != nil {
		return nil, fmt.Errorf("consensus: simulate block body: %w", err)
	}

	e.log.WithFields(logrus.Fields{"height": height, "round": round, "txs": len(txs)}).Debug("proposing block")

	header := types.BlockHeader{
		PreviousHash: prevHash,
		Height:       height,
		TimestampMs:  uint64(time.Now().UnixMilli()),
		Proposer:     proposer.Address(),
		StateRoot:    stateRootAfterBody,
		TxRoot:       txRoot(txs),
	}

	block := &types.Block{Header: header, Transactions: txs}
	block.ProposerSignature = proposer.Sign(header.Hash().Bytes())
	return block, nil
}

// simulateApply clones the tree's effect of applying txs without
// mutating live state, returning the resulting root. Validators run the
// same simulation to check a proposed block's declared StateRoot.
func (e *Engine) simulateApply(txs []*types.Transaction) (types.Hash, error) {
	scratch := statetree.New()
	for _, addr := range touchedAddresses(txs) {
		scratch.Put(e.tree.Get(addr))
	}
	for i, tx := range txs {
		if err := scratch.ApplyTransaction(tx); err != nil {
			return types.Hash{}, fmt.Errorf("tx %d: %w", i, err)
		}
	}
	return scratch.Root(), nil
}

func touchedAddresses(txs []*types.Transaction) []types.Address {
	seen := make(map[types.Address]bool)
	var out []types.Address
	for _, tx := range txs {
		if !seen[tx.Sender] {
			seen[tx.Sender] = true
			out = append(out, tx.Sender)
		}
		if !seen[tx.Receiver] {
			seen[tx.Receiver] = true
			out = append(out, tx.Receiver)
		}
	}
	return out
}

func txRoot(txs []*types.Transaction) types.Hash {
	if len(txs) == 0 {
		return types.EmptyHash
	}
	level := make([]types.Hash, len(txs))
	for i, tx := range txs {
		level[i] = tx.Id
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, len(level)/2)
		for i := 0; i < len(next); i++ {
			next[i] = crypto.HashConcat(level[2*i][:], level[2*i+1][:])
		}
		level = next
	}
	return level[0]
}

// ValidateBlock checks a proposed block against the voting rules:
// expected proposer, previous-hash linkage, signature, the proposer's
// timestamp against this validator's own clock, and every contained
// transaction's structural validity and sender signature. ZK proof
// verification (when present) is the caller's responsibility, since it
// requires the NTP session's commitment, which this package does not
// hold.
func (e *Engine) ValidateBlock(block *types.Block, round uint32) error {
	e.mu.RLock()
	prevHash := e.finalizedHash
	vs := e.validators
	e.mu.RUnlock()

	expected, ok := vs.ProposerForRound(block.Header.Height, round)
	if !ok || expected.Address != block.Header.Proposer {
		return ErrWrongProposer
	}
	if block.Header.PreviousHash != prevHash {
		return ErrPreviousHashMismatch
	}

	if err := crypto.Verify(expected.PublicKey, block.Header.Hash().Bytes(), block.ProposerSignature); err != nil {
		return ErrBadProposerSignature
	}

	now := uint64(time.Now().UnixMilli())
	if common.AbsDiff(block.Header.TimestampMs, now) > types.MaxClockSkewMs {
		return ErrClockSkew
	}

	for i, tx := range block.Transactions {
		if err := tx.ValidateStructure(now); err != nil {
			return fmt.Errorf("consensus: tx %d: %w", i, err)
		}
		if err := crypto.VerifyTransaction(tx); err != nil {
			return fmt.Errorf("consensus: tx %d: %w", i, err)
		}
	}
	return nil
}

// RecordVote registers a validator's vote for (block_hash, round),
// verifying the voter is in the active set and the signature is valid
// over the vote's signing bytes. Duplicate identical votes are
// idempotent; a second vote from the same voter for the same round but
// a different block hash is recorded as equivocation and does not
// count toward either tally.
func (e *Engine) RecordVote(vote *types.Vote, voterPublicKey []byte) error {
	voterAddr := types.DeriveAddress(voterPublicKey)

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.validators.ByAddress(voterAddr); !ok {
		return ErrUnknownVoter
	}
	if err := crypto.Verify(voterPublicKey, vote.SigningBytes(), vote.Signature); err != nil {
		return ErrBadProposerSignature
	}

	if byVoter, ok := e.votedRound[vote.Round]; ok {
		if prevHash, voted := byVoter[voterAddr]; voted && prevHash != vote.BlockHash {
			e.equivocators[voterAddr] = true
			e.log.WithFields(logrus.Fields{"voter": voterAddr.Encode(types.MainnetPrefix), "round": vote.Round}).
				Warn("equivocating vote discarded")
			return ErrEquivocation
		}
	} else {
		e.votedRound[vote.Round] = make(map[types.Address]types.Hash)
	}
	e.votedRound[vote.Round][voterAddr] = vote.BlockHash

	key := roundKey{blockHash: vote.BlockHash, round: vote.Round}
	if e.votes[key] == nil {
		e.votes[key] = make(map[types.Address]*types.Vote)
	}
	e.votes[key][voterAddr] = vote
	return nil
}

// TallyStake returns the aggregate stake of non-equivocating voters for
// (blockHash, round).
func (e *Engine) TallyStake(blockHash types.Hash, round uint32) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	key := roundKey{blockHash: blockHash, round: round}
	var total uint64
	for addr := range e.votes[key] {
		if e.equivocators[addr] {
			continue
		}
		if v, ok := e.validators.ByAddress(addr); ok {
			total += v.Stake
		}
	}
	return total
}

// TryFinalize finalizes block if its vote tally at round reaches
// quorum. On success it applies the block's transactions to the state
// tree in order, purges included ids from the mempool, and advances to
// height+1 round 0.
func (e *Engine) TryFinalize(block *types.Block, round uint32) (bool, error) {
	if e.TallyStake(block.Hash(), round) < e.currentQuorum() {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if block.Header.Height != e.finalizedHeight+1 {
		return false, ErrAlreadyFinalizedHeight
	}

	for i, tx := range block.Transactions {
		if err := e.tree.ApplyTransaction(tx); err != nil {
			return false, fmt.Errorf("consensus: finalize tx %d: %w", i, err)
		}
	}
	e.pool.RemoveConfirmed(block)

	e.finalizedHeight = block.Header.Height
	e.finalizedHash = block.Hash()
	e.round = 0

	e.log.WithFields(logrus.Fields{"height": e.finalizedHeight, "block": e.finalizedHash.String()}).
		Info("block finalized")
	return true, nil
}

func (e *Engine) currentQuorum() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.validators.QuorumThreshold()
}

// AdvanceRoundOnTimeout moves to the next round for the current height,
// selecting a new proposer. It increments the round unconditionally;
// callers invoke it once a round has gone cfg.RoundTimeout without
// finalizing.
func (e *Engine) AdvanceRoundOnTimeout() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.round++
	return e.round
}
