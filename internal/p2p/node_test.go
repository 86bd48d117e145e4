package p2p

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// NewNode brings up a real libp2p host, DHT, and GossipSub mesh and is
// exercised in integration testing rather than here. This file covers
// the pure configuration defaults.

func TestDefaultConfigListensOnProtocolPort(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, []string{"/ip4/0.0.0.0/tcp/9740"}, cfg.ListenAddrs)
	require.Equal(t, 50, cfg.MaxPeers)
	require.True(t, cfg.EnableMDNS)
}
