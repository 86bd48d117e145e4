// Package mempool implements the priority-ordered, deduplicated,
// bounded pool of pending transactions.
package mempool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/pkg/types"
)

// Mempool errors.
var (
	ErrPoolFull        = errors.New("mempool: pool is full and candidate fee rate does not beat the lowest resident")
	ErrTxAlreadyExists = errors.New("mempool: transaction already present")
)

// Entry wraps a transaction with mempool bookkeeping: arrival time and
// the fee-per-byte rate used for priority ordering.
type Entry struct {
	Tx         *types.Transaction
	ReceivedAt time.Time
	FeePerByte float64
	Expired    bool
}

// Config holds mempool tuning parameters.
type Config struct {
	MaxSize       int
	MaxTxPerBlock int
	TTL           time.Duration
}

// DefaultConfig returns the protocol defaults: tx expiry matches the
// protocol's frozen 300-second TTL.
func DefaultConfig() *Config {
	return &Config{
		MaxSize:       10000,
		MaxTxPerBlock: 2000,
		TTL:           300 * time.Second,
	}
}

// Mempool is a map of tx id to entry, guarded by a single
// readers-writer lock: writes are rare (insert, evict on commit or
// expiry) and reads dominate (block production, RPC lookup).
type Mempool struct {
	mu    sync.RWMutex
	byID  map[types.Hash]*Entry
	queue []*Entry
	cfg   *Config
}

// New constructs an empty mempool.
func New(cfg *Config) *Mempool {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Mempool{
		byID: make(map[types.Hash]*Entry),
		cfg:  cfg,
	}
}

// Add inserts tx, deduplicating by id and enforcing structural validity
// and the fee-per-byte eviction rule.
func (m *Mempool) Add(tx *types.Transaction, now time.Time) error {
	if err := tx.ValidateStructure(uint64(now.UnixMilli())); err != nil {
		return fmt.Errorf("mempool: structural validation: %w", err)
	}
	if err := crypto.VerifyTransaction(tx); err != nil {
		return fmt.Errorf("mempool: signature validation: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byID[tx.Id]; exists {
		return ErrTxAlreadyExists
	}

	feePerByte := tx.FeePerByte()

	if len(m.byID) >= m.cfg.MaxSize {
		if !m.evictLowestPriorityLocked(feePerByte) {
			return ErrPoolFull
		}
	}

	entry := &Entry{Tx: tx, ReceivedAt: now, FeePerByte: feePerByte}
	m.byID[tx.Id] = entry
	m.insertIntoQueueLocked(entry)
	return nil
}

// Remove deletes tx by id, if present.
func (m *Mempool) Remove(id types.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
}

func (m *Mempool) removeLocked(id types.Hash) {
	if _, exists := m.byID[id]; !exists {
		return
	}
	delete(m.byID, id)
	for i, e := range m.queue {
		if e.Tx.Id == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
}

// Get returns the transaction with the given id, or nil.
func (m *Mempool) Get(id types.Hash) *types.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.byID[id]; ok {
		return e.Tx
	}
	return nil
}

// Has reports whether id is currently resident.
func (m *Mempool) Has(id types.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byID[id]
	return ok
}

// Size returns the number of resident transactions.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// SelectForBlock iterates entries in descending fee-per-byte, breaking
// ties by earliest ReceivedAt, until maxCount transactions or maxBytes
// of payload are selected.
func (m *Mempool) SelectForBlock(maxCount, maxBytes int) []*types.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if maxCount <= 0 || maxCount > m.cfg.MaxTxPerBlock {
		maxCount = m.cfg.MaxTxPerBlock
	}

	selected := make([]*types.Transaction, 0, maxCount)
	usedBytes := 0
	for _, e := range m.queue {
		if len(selected) >= maxCount {
			break
		}
		size := e.Tx.Size()
		if usedBytes+size > maxBytes {
			continue
		}
		selected = append(selected, e.Tx)
		usedBytes += size
	}
	return selected
}

// RemoveConfirmed purges every transaction included in block.
func (m *Mempool) RemoveConfirmed(block *types.Block) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range block.Transactions {
		m.removeLocked(tx.Id)
	}
}

// ExpireOlderThan marks every entry whose ReceivedAt predates the
// configured TTL as Expired and evicts it, returning the expired ids.
func (m *Mempool) ExpireOlderThan(now time.Time) []types.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []types.Hash
	for id, e := range m.byID {
		if now.Sub(e.ReceivedAt) >= m.cfg.TTL {
			e.Expired = true
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		m.removeLocked(id)
	}
	return expired
}

func (m *Mempool) insertIntoQueueLocked(e *Entry) {
	idx := sort.Search(len(m.queue), func(i int) bool {
		if m.queue[i].FeePerByte != e.FeePerByte {
			return m.queue[i].FeePerByte < e.FeePerByte
		}
		return m.queue[i].ReceivedAt.After(e.ReceivedAt)
	})
	m.queue = append(m.queue, nil)
	copy(m.queue[idx+1:], m.queue[idx:])
	m.queue[idx] = e
}

// evictLowestPriorityLocked evicts the queue's lowest fee-per-byte
// resident if the candidate rate strictly exceeds it. Callers must hold
// m.mu.
func (m *Mempool) evictLowestPriorityLocked(candidateFeePerByte float64) bool {
	if len(m.queue) == 0 {
		return false
	}
	lowest := m.queue[len(m.queue)-1]
	if candidateFeePerByte <= lowest.FeePerByte {
		return false
	}
	m.removeLocked(lowest.Tx.Id)
	return true
}
