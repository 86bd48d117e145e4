// Package statetree implements the deterministic address-keyed account
// map and its binary Merkle root.
package statetree

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/pkg/types"
)

// Errors returned by transaction application.
var (
	ErrAccountFrozen     = errors.New("statetree: sender account is frozen")
	ErrNonceMismatch     = errors.New("statetree: transaction nonce does not match sender's next nonce")
	ErrInsufficientFunds = errors.New("statetree: sender balance cannot cover amount plus fee")
	ErrAmountOverflow    = errors.New("statetree: amount plus fee overflows")
	ErrBalanceOverflow   = errors.New("statetree: credit overflows receiver balance")
)

// Tree is the authoritative address→account map. Reads dominate writes:
// block production and RPC lookups read constantly, while writes happen
// only during block apply. A single readers-writer lock protects the
// whole map.
type Tree struct {
	mu       sync.RWMutex
	accounts map[types.Address]*types.Account
}

// New returns an empty state tree.
func New() *Tree {
	return &Tree{accounts: make(map[types.Address]*types.Account)}
}

// Get returns a copy of the account at address, or a fresh default
// account if none exists yet. The zero value of a never-seen address
// never gets an entry in the underlying map until it is mutated.
func (t *Tree) Get(address types.Address) *types.Account {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if acc, ok := t.accounts[address]; ok {
		return acc.Clone()
	}
	return types.NewAccount(address)
}

// Put inserts or overwrites the account at its own address.
func (t *Tree) Put(account *types.Account) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.accounts[account.Address] = account.Clone()
}

// ApplyTransaction applies tx to the tree in place, following a fixed
// validation order. It takes the tree's write lock for the
// duration, since sender and receiver may be the same account and the
// whole operation must be atomic.
func (t *Tree) ApplyTransaction(tx *types.Transaction) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	sender := t.getLocked(tx.Sender)
	if sender.Frozen {
		return ErrAccountFrozen
	}
	if tx.Nonce != sender.Nonce {
		return ErrNonceMismatch
	}

	debit, overflowed := addOverflows(tx.Amount.Value, tx.Fee)
	if overflowed {
		return ErrAmountOverflow
	}
	if !sender.CanSpend(tx.Amount, tx.Fee) {
		return ErrInsufficientFunds
	}
	if tx.Receiver != tx.Sender {
		if _, overflowed := addOverflows(t.getLocked(tx.Receiver).Balance, tx.Amount.Value); overflowed {
			return ErrBalanceOverflow
		}
	}

	sender.Balance -= debit
	sender.Nonce++
	t.accounts[sender.Address] = sender

	receiver := t.getLocked(tx.Receiver)
	newBalance, overflowed := addOverflows(receiver.Balance, tx.Amount.Value)
	if overflowed {
		return ErrBalanceOverflow
	}
	receiver.Balance = newBalance
	t.accounts[receiver.Address] = receiver

	return nil
}

// getLocked returns the live account for address, creating a default
// one if absent. Callers must hold t.mu.
func (t *Tree) getLocked(address types.Address) *types.Account {
	if acc, ok := t.accounts[address]; ok {
		return acc
	}
	return types.NewAccount(address)
}

func addOverflows(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum < a
}

// Root computes the binary Merkle root over every non-empty account,
// sorted by address. Leaves are H(address_bytes || canonical_account_bytes).
// An odd final level duplicates its last node. The empty tree's root is
// the all-zero hash. Root depends only on account contents, never on
// insertion order.
func (t *Tree) Root() types.Hash {
	t.mu.RLock()
	defer t.mu.RUnlock()

	addresses := make([]types.Address, 0, len(t.accounts))
	for addr, acc := range t.accounts {
		if isDefault(acc) {
			continue
		}
		addresses = append(addresses, addr)
	}
	if len(addresses) == 0 {
		return types.EmptyHash
	}

	sort.Slice(addresses, func(i, j int) bool {
		return bytesLess(addresses[i][:], addresses[j][:])
	})

	level := make([]types.Hash, len(addresses))
	for i, addr := range addresses {
		level[i] = leafHash(addr, t.accounts[addr])
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

func isDefault(acc *types.Account) bool {
	if acc.Nonce != 0 || acc.Balance != 0 || acc.Frozen || len(acc.CreditLines) != 0 {
		return false
	}
	return len(acc.TokenBalances) == 0
}

func bytesLess(a, b []byte) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func leafHash(addr types.Address, acc *types.Account) types.Hash {
	return crypto.HashConcat(addr[:], canonicalAccountBytes(acc))
}

// canonicalAccountBytes serializes an account deterministically:
// nonce, balance, frozen flag, token balances sorted by ticker, and
// credit-line ids sorted lexicographically.
func canonicalAccountBytes(acc *types.Account) []byte {
	buf := make([]byte, 0, 32+len(acc.TokenBalances)*24+len(acc.CreditLines)*types.HashSize)
	buf = appendUint64(buf, acc.Nonce)
	buf = appendUint64(buf, acc.Balance)
	if acc.Frozen {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	tickers := make([]string, 0, len(acc.TokenBalances))
	for ticker := range acc.TokenBalances {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	buf = appendUint64(buf, uint64(len(tickers)))
	for _, ticker := range tickers {
		buf = appendUint64(buf, uint64(len(ticker)))
		buf = append(buf, ticker...)
		buf = appendUint64(buf, acc.TokenBalances[ticker])
	}

	lines := append([]types.Hash(nil), acc.CreditLines...)
	sort.Slice(lines, func(i, j int) bool { return bytesLess(lines[i][:], lines[j][:]) })
	buf = appendUint64(buf, uint64(len(lines)))
	for _, line := range lines {
		buf = append(buf, line[:]...)
	}

	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp, v)
	return append(buf, tmp...)
}

// ApplyBlock applies every transaction in a block in order, returning
// an error that names the failing transaction's index without applying
// partial effects of that transaction (earlier transactions in the
// block remain applied: within a finalized block, transactions apply
// in the proposer-chosen order).
func (t *Tree) ApplyBlock(block *types.Block) error {
	for i, tx := range block.Transactions {
		if err := t.ApplyTransaction(tx); err != nil {
			return fmt.Errorf("statetree: apply tx %d (%s): %w", i, tx.Id, err)
		}
	}
	return nil
}
