package p2p

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
)

// SyncManager's request/response paths open real libp2p streams and are
// exercised in integration testing rather than here. This file covers
// the pure peer-height bookkeeping and the framed wire protocol.

func newTestSyncManager() *SyncManager {
	return &SyncManager{peerHeights: make(map[peer.ID]uint64)}
}

func TestFindBestPeerReturnsHighestHeight(t *testing.T) {
	sm := newTestSyncManager()
	sm.NotePeerHeight(peer.ID("a"), 10)
	sm.NotePeerHeight(peer.ID("b"), 50)
	sm.NotePeerHeight(peer.ID("c"), 30)

	best, height := sm.findBestPeer()
	require.Equal(t, peer.ID("b"), best)
	require.Equal(t, uint64(50), height)
}

func TestFindBestPeerWithNoPeersReturnsZero(t *testing.T) {
	sm := newTestSyncManager()
	best, height := sm.findBestPeer()
	require.Equal(t, peer.ID(""), best)
	require.Equal(t, uint64(0), height)
}

func TestIsSyncingAndProgressReflectState(t *testing.T) {
	sm := newTestSyncManager()
	require.False(t, sm.IsSyncing())

	sm.syncing = true
	sm.syncProgress = 5
	sm.syncTarget = 20

	require.True(t, sm.IsSyncing())
	current, target := sm.Progress()
	require.Equal(t, uint64(5), current)
	require.Equal(t, uint64(20), target)
}

func TestDefaultSyncConfig(t *testing.T) {
	cfg := DefaultSyncConfig()
	require.Equal(t, 100, cfg.BatchSize)
}

func TestWriteFrameReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("block data")
	require.NoError(t, writeFrame(&buf, payload))

	got, err := readFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	lenBuf := appendUint32Raw(nil, MaxMessageSize+1)
	got, err := readFrame(bufio.NewReader(bytes.NewReader(lenBuf)))
	require.ErrorIs(t, err, ErrInvalidBlock)
	require.Nil(t, got)
}

func TestReadFrameHandlesZeroLengthFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, nil))

	got, err := readFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	require.Empty(t, got)
}
