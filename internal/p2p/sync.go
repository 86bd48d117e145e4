// Package p2p provides linear-height chain synchronization. Unlike a
// DAG sync that waits for orphan blocks' parents to arrive in any
// order, NOVA's chain is strictly linear: catching up means
// requesting contiguous height ranges from whichever peer is furthest
// ahead and applying them in order.
package p2p

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/sirupsen/logrus"

	"github.com/novafoundation/nova-core/pkg/types"
)

// SyncProtocolID is the direct request/response stream protocol used
// for block-range catch-up, separate from the broadcast gossip topics.
const SyncProtocolID protocol.ID = "/nova/sync/1.0.0"

// Sync errors.
var (
	ErrNoSyncPeers  = errors.New("p2p: no peer is ahead of the local chain")
	ErrSyncTimeout  = errors.New("p2p: block range request timed out")
	ErrInvalidBlock = errors.New("p2p: received block failed validation")
)

// ApplyFunc applies a single synced block to local state. It is
// supplied by the caller (internal/node applies the block to its state
// tree) so this package stays independent of consensus internals.
type ApplyFunc func(block *types.Block) error

// SyncManager drives catch-up: track peer heights, request missing
// ranges from the furthest-ahead peer, and apply them strictly in
// height order.
type SyncManager struct {
	mu sync.RWMutex

	node  *Node
	log   *logrus.Logger
	apply ApplyFunc

	syncing      bool
	syncTarget   uint64
	syncProgress uint64

	peerHeights map[peer.ID]uint64

	rangeProvider RangeProvider

	batchSize      int
	requestTimeout time.Duration
}

// SyncConfig holds synchronization configuration.
type SyncConfig struct {
	BatchSize      int
	RequestTimeout time.Duration
}

// DefaultSyncConfig returns the package defaults.
func DefaultSyncConfig() *SyncConfig {
	return &SyncConfig{
		BatchSize:      100,
		RequestTimeout: 30 * time.Second,
	}
}

// NewSyncManager creates a sync manager over node, applying synced
// blocks through apply.
func NewSyncManager(node *Node, apply ApplyFunc, cfg *SyncConfig, log *logrus.Logger) *SyncManager {
	if cfg == nil {
		cfg = DefaultSyncConfig()
	}
	if log == nil {
		log = logrus.New()
	}
	sm := &SyncManager{
		node:           node,
		log:            log,
		apply:          apply,
		peerHeights:    make(map[peer.ID]uint64),
		batchSize:      cfg.BatchSize,
		requestTimeout: cfg.RequestTimeout,
	}
	node.RegisterProtocol(SyncProtocolID, sm.handleSyncStream)
	return sm
}

// NotePeerHeight records a peer's last-advertised chain height, learned
// from an exchanged StatusMessage.
func (sm *SyncManager) NotePeerHeight(id peer.ID, height uint64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.peerHeights[id] = height
}

// Start compares the local height against known peers and, if behind,
// launches a background catch-up to the furthest-ahead peer.
func (sm *SyncManager) Start(ctx context.Context, localHeight uint64) error {
	bestPeer, bestHeight := sm.findBestPeer()
	if bestPeer == "" || bestHeight <= localHeight {
		return nil
	}

	sm.mu.Lock()
	if sm.syncing {
		sm.mu.Unlock()
		return nil
	}
	sm.syncing = true
	sm.syncTarget = bestHeight
	sm.syncProgress = localHeight
	sm.mu.Unlock()

	go sm.syncLoop(ctx, bestPeer, localHeight, bestHeight)
	return nil
}

func (sm *SyncManager) syncLoop(ctx context.Context, p peer.ID, start, target uint64) {
	defer func() {
		sm.mu.Lock()
		sm.syncing = false
		sm.mu.Unlock()
	}()

	// start is the local tip, already held; fetch start+1 through target.
	current := start + 1
	for current <= target {
		select {
		case <-ctx.Done():
			return
		default:
		}

		count := uint32(sm.batchSize)
		if remaining := target - current + 1; remaining < uint64(count) {
			count = uint32(remaining)
		}

		blocks, err := sm.requestRange(ctx, p, current, count)
		if err != nil {
			sm.log.WithError(err).WithFields(logrus.Fields{"peer": p.String(), "from": current}).
				Warn("block range request failed, aborting sync")
			return
		}

		for _, block := range blocks {
			if block.Header.Height != current {
				sm.log.WithFields(logrus.Fields{"want": current, "got": block.Header.Height}).
					Warn("out-of-order block in sync response, aborting")
				return
			}
			if err := sm.apply(block); err != nil {
				sm.log.WithError(err).WithField("height", current).Warn("failed to apply synced block")
				return
			}
			sm.mu.Lock()
			sm.syncProgress = current
			sm.mu.Unlock()
			current++
		}

		if len(blocks) == 0 {
			return
		}
	}
}

// requestRange opens a direct stream to p, sends a GetBlocksMessage,
// and reads back up to count framed blocks.
func (sm *SyncManager) requestRange(ctx context.Context, p peer.ID, from uint64, count uint32) ([]*types.Block, error) {
	streamCtx, cancel := context.WithTimeout(ctx, sm.requestTimeout)
	defer cancel()

	stream, err := sm.node.host.NewStream(streamCtx, p, SyncProtocolID)
	if err != nil {
		return nil, fmt.Errorf("p2p: open sync stream: %w", err)
	}
	defer stream.Close()

	req := EncodeGetBlocks(&GetBlocksMessage{FromHeight: from, Count: count})
	if err := writeFrame(stream, req); err != nil {
		return nil, fmt.Errorf("p2p: send range request: %w", err)
	}

	reader := bufio.NewReader(stream)
	countFrame, err := readFrame(reader)
	if err != nil {
		return nil, fmt.Errorf("p2p: read response count: %w", err)
	}
	respCount, ok := (&byteReader{data: countFrame}).readUint32()
	if !ok {
		return nil, ErrInvalidBlock
	}

	blocks := make([]*types.Block, 0, respCount)
	for i := uint32(0); i < respCount; i++ {
		frame, err := readFrame(reader)
		if err != nil {
			return nil, fmt.Errorf("p2p: read block frame %d: %w", i, err)
		}
		block, err := DecodeBlock(frame)
		if err != nil {
			return nil, fmt.Errorf("p2p: decode block frame %d: %w", i, err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// handleSyncStream serves an incoming GetBlocks request using the
// handler registered via SetRangeProvider.
func (sm *SyncManager) handleSyncStream(stream network.Stream) {
	defer stream.Close()

	reader := bufio.NewReader(stream)
	frame, err := readFrame(reader)
	if err != nil {
		return
	}
	req, err := DecodeGetBlocks(frame)
	if err != nil {
		return
	}

	sm.mu.RLock()
	provider := sm.rangeProvider
	sm.mu.RUnlock()
	if provider == nil {
		writeFrame(stream, (&byteReader{}).emptyUint32())
		return
	}

	blocks := provider(req.FromHeight, req.Count)
	countBuf := make([]byte, 0, 4)
	countBuf = appendUint32Raw(countBuf, uint32(len(blocks)))
	if err := writeFrame(stream, countBuf); err != nil {
		return
	}
	for _, block := range blocks {
		if err := writeFrame(stream, EncodeBlock(block)); err != nil {
			return
		}
	}
}

// RangeProvider returns up to count finalized blocks starting at
// fromHeight, in ascending height order.
type RangeProvider func(fromHeight uint64, count uint32) []*types.Block

// SetRangeProvider installs the callback used to answer peers' GetBlocks
// requests.
func (sm *SyncManager) SetRangeProvider(p RangeProvider) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.rangeProvider = p
}

func (sm *SyncManager) findBestPeer() (peer.ID, uint64) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	var bestPeer peer.ID
	var bestHeight uint64
	for id, height := range sm.peerHeights {
		if height > bestHeight {
			bestHeight = height
			bestPeer = id
		}
	}
	return bestPeer, bestHeight
}

// IsSyncing reports whether a catch-up is in progress.
func (sm *SyncManager) IsSyncing() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.syncing
}

// Progress returns the current and target heights of an in-progress
// sync.
func (sm *SyncManager) Progress() (current, target uint64) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.syncProgress, sm.syncTarget
}

func writeFrame(w interface{ Write([]byte) (int, error) }, data []byte) error {
	lenBuf := appendUint32Raw(nil, uint32(len(data)))
	if _, err := w.Write(lenBuf); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readFrame(r *bufio.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := fillBuf(r, lenBuf); err != nil {
		return nil, err
	}
	n, ok := (&byteReader{data: lenBuf}).readUint32()
	if !ok || n > MaxMessageSize {
		return nil, ErrInvalidBlock
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := fillBuf(r, buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func fillBuf(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func appendUint32Raw(buf []byte, v uint32) []byte {
	b := make([]byte, 4)
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return append(buf, b...)
}

func (r *byteReader) emptyUint32() []byte {
	return appendUint32Raw(nil, 0)
}
