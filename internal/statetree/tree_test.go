package statetree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/novafoundation/nova-core/pkg/types"
)

func TestGetUnseenAddressReturnsDefaultAccount(t *testing.T) {
	tree := New()
	addr := types.DeriveAddress([]byte("unseen"))
	acc := tree.Get(addr)
	require.Equal(t, addr, acc.Address)
	require.Zero(t, acc.Balance)
	require.Zero(t, acc.Nonce)
}

func TestPutThenGetRoundTrips(t *testing.T) {
	tree := New()
	addr := types.DeriveAddress([]byte("alice"))
	acc := types.NewAccount(addr)
	acc.Balance = 500
	tree.Put(acc)

	got := tree.Get(addr)
	require.Equal(t, uint64(500), got.Balance)

	// mutating the returned copy must not affect the tree.
	got.Balance = 0
	require.Equal(t, uint64(500), tree.Get(addr).Balance)
}

func transferTx(sender, receiver types.Address, amount, fee, nonce uint64) *types.Transaction {
	return types.NewTransaction(types.TxTransfer, sender, receiver, types.Amount{Value: amount, Currency: types.NativeCurrency}, fee, nonce, 1_700_000_000_000)
}

func TestApplyTransactionDebitsAndCreditsBalances(t *testing.T) {
	tree := New()
	sender := types.DeriveAddress([]byte("sender"))
	receiver := types.DeriveAddress([]byte("receiver"))

	senderAcc := types.NewAccount(sender)
	senderAcc.Balance = 10_000
	tree.Put(senderAcc)

	tx := transferTx(sender, receiver, 1000, 100, 0)
	require.NoError(t, tree.ApplyTransaction(tx))

	require.Equal(t, uint64(10_000-1100), tree.Get(sender).Balance)
	require.Equal(t, uint64(1), tree.Get(sender).Nonce)
	require.Equal(t, uint64(1000), tree.Get(receiver).Balance)
}

func TestApplyTransactionRejectsFrozenSender(t *testing.T) {
	tree := New()
	sender := types.DeriveAddress([]byte("frozen"))
	senderAcc := types.NewAccount(sender)
	senderAcc.Balance = 10_000
	senderAcc.Frozen = true
	tree.Put(senderAcc)

	tx := transferTx(sender, types.DeriveAddress([]byte("receiver")), 100, 10, 0)
	require.ErrorIs(t, tree.ApplyTransaction(tx), ErrAccountFrozen)
}

func TestApplyTransactionRejectsNonceMismatch(t *testing.T) {
	tree := New()
	sender := types.DeriveAddress([]byte("nonced"))
	senderAcc := types.NewAccount(sender)
	senderAcc.Balance = 10_000
	tree.Put(senderAcc)

	tx := transferTx(sender, types.DeriveAddress([]byte("receiver")), 100, 10, 5)
	require.ErrorIs(t, tree.ApplyTransaction(tx), ErrNonceMismatch)
}

func TestApplyTransactionRejectsInsufficientFunds(t *testing.T) {
	tree := New()
	sender := types.DeriveAddress([]byte("poor"))
	senderAcc := types.NewAccount(sender)
	senderAcc.Balance = 50
	tree.Put(senderAcc)

	tx := transferTx(sender, types.DeriveAddress([]byte("receiver")), 1000, 10, 0)
	require.ErrorIs(t, tree.ApplyTransaction(tx), ErrInsufficientFunds)
}

func TestApplyBlockStopsAtFailingTransactionButKeepsEarlierEffects(t *testing.T) {
	tree := New()
	sender := types.DeriveAddress([]byte("block-sender"))
	receiver := types.DeriveAddress([]byte("block-receiver"))
	senderAcc := types.NewAccount(sender)
	senderAcc.Balance = 1000
	tree.Put(senderAcc)

	ok := transferTx(sender, receiver, 100, 10, 0)
	bad := transferTx(sender, receiver, 100, 10, 0) // stale nonce, will fail

	block := &types.Block{Transactions: []*types.Transaction{ok, bad}}
	err := tree.ApplyBlock(block)
	require.Error(t, err)
	require.Equal(t, uint64(890), tree.Get(sender).Balance)
	require.Equal(t, uint64(1), tree.Get(sender).Nonce)
}

func TestRootIsDeterministicAndOrderIndependent(t *testing.T) {
	addrA := types.DeriveAddress([]byte("a"))
	addrB := types.DeriveAddress([]byte("b"))

	treeOne := New()
	accA := types.NewAccount(addrA)
	accA.Balance = 10
	accB := types.NewAccount(addrB)
	accB.Balance = 20
	treeOne.Put(accA)
	treeOne.Put(accB)

	treeTwo := New()
	treeTwo.Put(accB)
	treeTwo.Put(accA)

	require.Equal(t, treeOne.Root(), treeTwo.Root())
}

func TestRootOfEmptyTreeIsEmptyHash(t *testing.T) {
	tree := New()
	require.Equal(t, types.EmptyHash, tree.Root())
}

func TestRootChangesWithAccountMutation(t *testing.T) {
	tree := New()
	addr := types.DeriveAddress([]byte("mutate"))
	acc := types.NewAccount(addr)
	acc.Balance = 1
	tree.Put(acc)
	before := tree.Root()

	acc.Balance = 2
	tree.Put(acc)
	require.NotEqual(t, before, tree.Root())
}
