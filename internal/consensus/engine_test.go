package consensus

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/internal/mempool"
	"github.com/novafoundation/nova-core/internal/statetree"
	"github.com/novafoundation/nova-core/pkg/types"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newTestEngine(t *testing.T, stake uint64) (*Engine, *crypto.Keypair) {
	t.Helper()
	proposer, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	tree := statetree.New()
	pool := mempool.New(mempool.DefaultConfig())
	vs := NewValidatorSet([]Validator{{Address: proposer.Address(), PublicKey: proposer.PublicKey(), Stake: stake}})
	genesis := types.Genesis(tree.Root(), uint64(time.Now().UnixMilli()))
	engine := New(DefaultConfig(), tree, pool, vs, genesis, quietLogger())
	return engine, proposer
}

func TestProposeBlockRejectsNonExpectedProposer(t *testing.T) {
	engine, _ := newTestEngine(t, 100)
	impostor, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	_, err = engine.ProposeBlock(impostor)
	require.ErrorIs(t, err, ErrWrongProposer)
}

func TestProposeValidateFinalizeWithSignedTransaction(t *testing.T) {
	engine, proposer := newTestEngine(t, 100)

	sender, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	receiver := types.DeriveAddress([]byte("receiver"))
	tx := types.NewTransaction(types.TxTransfer, sender.Address(), receiver, types.Amount{Value: 1000, Currency: types.NativeCurrency}, 100_000, 0, uint64(time.Now().UnixMilli()))
	crypto.SignTransaction(sender, tx)

	funded := engine.tree.Get(sender.Address())
	funded.Balance = 1_000_000
	engine.tree.Put(funded)

	pool := mempool.New(mempool.DefaultConfig())
	require.NoError(t, pool.Add(tx, time.Now()))
	engine.pool = pool

	block, err := engine.ProposeBlock(proposer)
	require.NoError(t, err)
	require.Len(t, block.Transactions, 1)
	require.NoError(t, engine.ValidateBlock(block, 0))

	vote := &types.Vote{BlockHash: block.Hash(), Height: block.Header.Height, Round: 0, VoterPublicKey: proposer.PublicKey()}
	vote.Signature = proposer.Sign(vote.SigningBytes())
	require.NoError(t, engine.RecordVote(vote, proposer.PublicKey()))

	finalized, err := engine.TryFinalize(block, 0)
	require.NoError(t, err)
	require.True(t, finalized)
}

func TestProposeVoteAndFinalizeHappyPath(t *testing.T) {
	engine, proposer := newTestEngine(t, 100)

	block, err := engine.ProposeBlock(proposer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), block.Header.Height)

	require.NoError(t, engine.ValidateBlock(block, 0))

	vote := &types.Vote{BlockHash: block.Hash(), Height: block.Header.Height, Round: 0, VoterPublicKey: proposer.PublicKey()}
	vote.Signature = proposer.Sign(vote.SigningBytes())
	require.NoError(t, engine.RecordVote(vote, proposer.PublicKey()))

	finalized, err := engine.TryFinalize(block, 0)
	require.NoError(t, err)
	require.True(t, finalized)

	height, hash := engine.Tip()
	require.Equal(t, uint64(1), height)
	require.Equal(t, block.Hash(), hash)
}

func TestValidateBlockRejectsExcessiveClockSkew(t *testing.T) {
	engine, proposer := newTestEngine(t, 100)

	block, err := engine.ProposeBlock(proposer)
	require.NoError(t, err)

	block.Header.TimestampMs += types.MaxClockSkewMs + 1000
	block.ProposerSignature = proposer.Sign(block.Header.Hash().Bytes())

	require.ErrorIs(t, engine.ValidateBlock(block, 0), ErrClockSkew)
}

func TestValidateBlockRejectsUnsignedTransaction(t *testing.T) {
	engine, proposer := newTestEngine(t, 100)

	sender, err := crypto.GenerateKeypair()
	require.NoError(t, err)
	receiver := types.DeriveAddress([]byte("receiver"))
	tx := types.NewTransaction(types.TxTransfer, sender.Address(), receiver, types.Amount{Value: 1000, Currency: types.NativeCurrency}, 100_000, 0, uint64(time.Now().UnixMilli()))
	// deliberately unsigned

	block, err := engine.ProposeBlock(proposer)
	require.NoError(t, err)
	block.Transactions = []*types.Transaction{tx}
	block.Header.TxRoot = txRoot(block.Transactions)
	block.ProposerSignature = proposer.Sign(block.Header.Hash().Bytes())

	require.ErrorIs(t, engine.ValidateBlock(block, 0), types.ErrMissingSignature)
}

func TestRecordVoteRejectsUnknownVoter(t *testing.T) {
	engine, _ := newTestEngine(t, 100)
	stranger, err := crypto.GenerateKeypair()
	require.NoError(t, err)

	vote := &types.Vote{BlockHash: types.Hash{1}, Height: 1, Round: 0, VoterPublicKey: stranger.PublicKey()}
	vote.Signature = stranger.Sign(vote.SigningBytes())
	require.ErrorIs(t, engine.RecordVote(vote, stranger.PublicKey()), ErrUnknownVoter)
}

func TestRecordVoteRejectsBadSignature(t *testing.T) {
	engine, proposer := newTestEngine(t, 100)
	vote := &types.Vote{BlockHash: types.Hash{1}, Height: 1, Round: 0, VoterPublicKey: proposer.PublicKey()}
	vote.Signature = make([]byte, 64)
	require.ErrorIs(t, engine.RecordVote(vote, proposer.PublicKey()), ErrBadProposerSignature)
}

func TestRecordVoteDetectsEquivocation(t *testing.T) {
	engine, proposer := newTestEngine(t, 100)

	first := &types.Vote{BlockHash: types.Hash{1}, Height: 1, Round: 0, VoterPublicKey: proposer.PublicKey()}
	first.Signature = proposer.Sign(first.SigningBytes())
	require.NoError(t, engine.RecordVote(first, proposer.PublicKey()))

	second := &types.Vote{BlockHash: types.Hash{2}, Height: 1, Round: 0, VoterPublicKey: proposer.PublicKey()}
	second.Signature = proposer.Sign(second.SigningBytes())
	require.ErrorIs(t, engine.RecordVote(second, proposer.PublicKey()), ErrEquivocation)

	require.Equal(t, uint64(0), engine.TallyStake(first.BlockHash, 0))
}

func TestTryFinalizeBelowQuorumDoesNothing(t *testing.T) {
	engine, proposer := newTestEngine(t, 1)
	block, err := engine.ProposeBlock(proposer)
	require.NoError(t, err)

	vote := &types.Vote{BlockHash: block.Hash(), Height: block.Header.Height, Round: 0, VoterPublicKey: proposer.PublicKey()}
	vote.Signature = proposer.Sign(vote.SigningBytes())
	require.NoError(t, engine.RecordVote(vote, proposer.PublicKey()))

	finalized, err := engine.TryFinalize(block, 0)
	require.NoError(t, err)
	require.False(t, finalized)
}

func TestAdvanceRoundOnTimeoutIncrementsRound(t *testing.T) {
	engine, _ := newTestEngine(t, 100)
	require.Equal(t, uint32(0), engine.Round())
	require.Equal(t, uint32(1), engine.AdvanceRoundOnTimeout())
	require.Equal(t, uint32(1), engine.Round())
}
