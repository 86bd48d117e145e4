// Package p2p implements the libp2p GossipSub transport underlying the
// application-layer epidemic propagation in internal/gossip.
package p2p

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"
)

// ProtocolID and topic names. Default port (9740) matches the
// protocol's frozen default.
const (
	ProtocolID       = "/nova/1.0.0"
	BlockTopic       = "nova/blocks"
	TransactionTopic = "nova/transactions"
	VoteTopic        = "nova/votes"
	NTPTopic         = "nova/ntp"

	DefaultP2PPort = 9740
	rendezvous     = "nova-settlement-network"
)

// Node is a NOVA P2P network node: a libp2p host with GossipSub over
// four topics and DHT-backed peer discovery.
type Node struct {
	mu sync.RWMutex

	host      host.Host
	dht       *dht.IpfsDHT
	pubsub    *pubsub.PubSub
	discovery *drouting.RoutingDiscovery
	log       *logrus.Logger

	topics map[string]*pubsub.Topic
	subs   map[string]*pubsub.Subscription

	handlers map[string]MessageHandler

	peers    map[peer.ID]*PeerInfo
	maxPeers int

	ctx    context.Context
	cancel context.CancelFunc
}

// PeerInfo holds information about a connected peer.
type PeerInfo struct {
	ID          peer.ID
	Addrs       []multiaddr.Multiaddr
	ConnectedAt time.Time
	LastSeen    time.Time
	Height      uint64
}

// MessageHandler processes one inbound pubsub message.
type MessageHandler func(ctx context.Context, msg *pubsub.Message) error

// Config holds P2P node configuration.
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	PrivateKey     crypto.PrivKey
	MaxPeers       int
	EnableMDNS     bool
}

// DefaultConfig returns the protocol defaults: max 50 peers.
func DefaultConfig() *Config {
	return &Config{
		ListenAddrs: []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", DefaultP2PPort)},
		MaxPeers:    50,
		EnableMDNS:  true,
	}
}

// NewNode creates and starts a P2P node joining all four protocol
// topics.
func NewNode(ctx context.Context, cfg *Config, log *logrus.Logger) (*Node, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.New()
	}

	nodeCtx, cancel := context.WithCancel(ctx)

	privKey := cfg.PrivateKey
	if privKey == nil {
		var err error
		privKey, _, err = crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("p2p: generate host key: %w", err)
		}
	}

	listenAddrs := make([]multiaddr.Multiaddr, len(cfg.ListenAddrs))
	for i, addr := range cfg.ListenAddrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("p2p: invalid listen address %q: %w", addr, err)
		}
		listenAddrs[i] = ma
	}

	h, err := libp2p.New(
		libp2p.Identity(privKey),
		libp2p.ListenAddrs(listenAddrs...),
		libp2p.EnableNATService(),
		libp2p.EnableRelay(),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("p2p: create host: %w", err)
	}

	kadDHT, err := dht.New(nodeCtx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("p2p: create dht: %w", err)
	}

	ps, err := pubsub.NewGossipSub(nodeCtx, h)
	if err != nil {
		kadDHT.Close()
		h.Close()
		cancel()
		return nil, fmt.Errorf("p2p: create gossipsub: %w", err)
	}

	node := &Node{
		host:     h,
		dht:      kadDHT,
		pubsub:   ps,
		log:      log,
		topics:   make(map[string]*pubsub.Topic),
		subs:     make(map[string]*pubsub.Subscription),
		handlers: make(map[string]MessageHandler),
		peers:    make(map[peer.ID]*PeerInfo),
		maxPeers: cfg.MaxPeers,
		ctx:      nodeCtx,
		cancel:   cancel,
	}

	h.Network().Notify(&network.NotifyBundle{
		ConnectedF:    node.onPeerConnected,
		DisconnectedF: node.onPeerDisconnected,
	})

	if err := kadDHT.Bootstrap(nodeCtx); err != nil {
		node.Close()
		return nil, fmt.Errorf("p2p: bootstrap dht: %w", err)
	}

	for _, peerAddr := range cfg.BootstrapPeers {
		if err := node.connectToPeer(peerAddr); err != nil {
			log.WithError(err).WithField("peer", peerAddr).Warn("failed to connect to bootstrap peer")
		}
	}

	if cfg.EnableMDNS {
		if err := node.setupMDNS(); err != nil {
			log.WithError(err).Warn("mdns setup failed")
		}
	}

	node.discovery = drouting.NewRoutingDiscovery(kadDHT)

	if err := node.joinTopic(BlockTopic); err != nil {
		node.Close()
		return nil, err
	}
	if err := node.joinTopic(TransactionTopic); err != nil {
		node.Close()
		return nil, err
	}
	if err := node.joinTopic(VoteTopic); err != nil {
		node.Close()
		return nil, err
	}
	if err := node.joinTopic(NTPTopic); err != nil {
		node.Close()
		return nil, err
	}

	return node, nil
}

func (n *Node) joinTopic(name string) error {
	topic, err := n.pubsub.Join(name)
	if err != nil {
		return fmt.Errorf("p2p: join topic %q: %w", name, err)
	}
	sub, err := topic.Subscribe()
	if err != nil {
		return fmt.Errorf("p2p: subscribe to topic %q: %w", name, err)
	}
	n.topics[name] = topic
	n.subs[name] = sub
	return nil
}

// Start begins processing messages on every joined topic.
func (n *Node) Start() {
	for name, sub := range n.subs {
		go n.processMessages(name, sub)
	}
	go n.maintainPeers()
}

func (n *Node) processMessages(topic string, sub *pubsub.Subscription) {
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			continue
		}
		if msg.ReceivedFrom == n.host.ID() {
			continue
		}

		n.mu.Lock()
		if p, exists := n.peers[msg.ReceivedFrom]; exists {
			p.LastSeen = time.Now()
		}
		handler := n.handlers[topic]
		n.mu.Unlock()

		if handler != nil {
			if err := handler(n.ctx, msg); err != nil {
				n.log.WithError(err).WithField("topic", topic).Warn("message handler failed")
			}
		}
	}
}

func (n *Node) maintainPeers() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.ctx.Done():
			return
		case <-ticker.C:
			n.discoverPeers()
			n.pruneStale()
		}
	}
}

func (n *Node) discoverPeers() {
	n.mu.RLock()
	currentPeers := len(n.peers)
	n.mu.RUnlock()
	if currentPeers >= n.maxPeers {
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()

	peerChan, err := n.discovery.FindPeers(ctx, rendezvous)
	if err != nil {
		return
	}

	for p := range peerChan {
		if p.ID == n.host.ID() || len(p.Addrs) == 0 {
			continue
		}
		n.mu.RLock()
		_, exists := n.peers[p.ID]
		n.mu.RUnlock()

		if !exists && len(n.peers) < n.maxPeers {
			if err := n.host.Connect(ctx, p); err == nil {
				n.addPeer(p.ID, p.Addrs)
			}
		}
	}
}

func (n *Node) pruneStale() {
	n.mu.Lock()
	defer n.mu.Unlock()

	staleThreshold := time.Now().Add(-5 * time.Minute)
	for id, p := range n.peers {
		if p.LastSeen.Before(staleThreshold) {
			n.host.Network().ClosePeer(id)
			delete(n.peers, id)
		}
	}
}

// SetHandler registers the handler for a topic ("nova/blocks",
// "nova/transactions", "nova/votes", or "nova/ntp").
func (n *Node) SetHandler(topic string, handler MessageHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[topic] = handler
}

// Publish broadcasts data on the given topic.
func (n *Node) Publish(topic string, data []byte) error {
	n.mu.RLock()
	t, ok := n.topics[topic]
	n.mu.RUnlock()
	if !ok {
		return fmt.Errorf("p2p: not subscribed to topic %q", topic)
	}
	return t.Publish(n.ctx, data)
}

func (n *Node) connectToPeer(addr string) error {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	peerInfo, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(n.ctx, 10*time.Second)
	defer cancel()

	if err := n.host.Connect(ctx, *peerInfo); err != nil {
		return err
	}
	n.addPeer(peerInfo.ID, peerInfo.Addrs)
	return nil
}

func (n *Node) addPeer(id peer.ID, addrs []multiaddr.Multiaddr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[id] = &PeerInfo{ID: id, Addrs: addrs, ConnectedAt: time.Now(), LastSeen: time.Now()}
}

func (n *Node) onPeerConnected(_ network.Network, conn network.Conn) {
	n.addPeer(conn.RemotePeer(), []multiaddr.Multiaddr{conn.RemoteMultiaddr()})
}

func (n *Node) onPeerDisconnected(_ network.Network, conn network.Conn) {
	n.mu.Lock()
	delete(n.peers, conn.RemotePeer())
	n.mu.Unlock()
}

func (n *Node) setupMDNS() error {
	service := mdns.NewMdnsService(n.host, rendezvous, &mdnsNotifee{node: n})
	return service.Start()
}

type mdnsNotifee struct {
	node *Node
}

func (m *mdnsNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == m.node.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(m.node.ctx, 5*time.Second)
	defer cancel()
	m.node.host.Connect(ctx, pi)
}

// ID returns the node's peer ID.
func (n *Node) ID() peer.ID { return n.host.ID() }

// Addrs returns the node's listen addresses.
func (n *Node) Addrs() []multiaddr.Multiaddr { return n.host.Addrs() }

// PeerCount returns the number of connected peers.
func (n *Node) PeerCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.peers)
}

// Peers returns information about connected peers.
func (n *Node) Peers() []*PeerInfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	peers := make([]*PeerInfo, 0, len(n.peers))
	for _, p := range n.peers {
		peers = append(peers, p)
	}
	return peers
}

// Close shuts down the node.
func (n *Node) Close() error {
	n.cancel()
	for _, sub := range n.subs {
		sub.Cancel()
	}
	if n.dht != nil {
		n.dht.Close()
	}
	return n.host.Close()
}

// RegisterProtocol registers a custom stream protocol handler, used by
// the NTP transport for direct (non-gossip) handshake exchanges.
func (n *Node) RegisterProtocol(protoID protocol.ID, handler network.StreamHandler) {
	n.host.SetStreamHandler(protoID, handler)
}
