// Package gossip implements the application-layer epidemic propagation
// layer sitting above the libp2p GossipSub mesh in internal/p2p.
// Every outbound message carries a TTL and a content-hash id; inbound
// messages are deduplicated through a bounded LRU of seen ids, and a
// first-seen message is re-published once onto its topic with TTL
// decremented; GossipSub's mesh chooses the peers it reaches.
package gossip

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/sirupsen/logrus"

	"github.com/novafoundation/nova-core/internal/crypto"
	"github.com/novafoundation/nova-core/internal/p2p"
	"github.com/novafoundation/nova-core/pkg/types"
)

// DefaultFanout is the protocol's frozen fanout constant, used as the
// initial TTL of every originated message.
const DefaultFanout = 8

// seenCacheSize bounds the dedup LRU. Sized generously above any
// plausible in-flight message count for a single TTL window.
const seenCacheSize = 65536

// Errors.
var (
	ErrTTLExhausted = errors.New("gossip: message TTL already zero, not forwarded")
)

// Envelope wraps a topic payload with the epidemic layer's TTL and
// content-hash id.
type Envelope struct {
	ID      types.Hash
	TTL     uint8
	Topic   string
	Payload []byte
}

func envelopeID(topic string, payload []byte) types.Hash {
	return crypto.HashConcat([]byte(topic), payload)
}

// encodeEnvelope serializes an envelope for wire transmission: id (32),
// ttl (1), topic length+bytes, payload.
func encodeEnvelope(e *Envelope) []byte {
	buf := make([]byte, 0, 32+1+4+len(e.Topic)+4+len(e.Payload))
	buf = append(buf, e.ID[:]...)
	buf = append(buf, e.TTL)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Topic)))
	buf = append(buf, e.Topic...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(e.Payload)))
	buf = append(buf, e.Payload...)
	return buf
}

func decodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) < 32+1+4 {
		return nil, errors.New("gossip: envelope too short")
	}
	e := &Envelope{}
	copy(e.ID[:], data[:32])
	e.TTL = data[32]
	pos := 33

	topicLen := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if pos+int(topicLen) > len(data) {
		return nil, errors.New("gossip: envelope topic truncated")
	}
	e.Topic = string(data[pos : pos+int(topicLen)])
	pos += int(topicLen)

	if pos+4 > len(data) {
		return nil, errors.New("gossip: envelope missing payload length")
	}
	payloadLen := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4
	if pos+int(payloadLen) > len(data) {
		return nil, errors.New("gossip: envelope payload truncated")
	}
	e.Payload = data[pos : pos+int(payloadLen)]
	return e, nil
}

// Handler processes a deduplicated, first-seen payload from topic.
type Handler func(ctx context.Context, payload []byte) error

// Layer is the epidemic propagation layer for one node: it publishes
// and receives Envelopes over the node's GossipSub topics, dropping
// anything already seen and refusing to forward TTL-exhausted
// messages.
type Layer struct {
	node   *p2p.Node
	log    *logrus.Logger
	fanout uint8
	seen   *lru.Cache[types.Hash, struct{}]

	handlers map[string]Handler
}

// New constructs a gossip layer over node with the protocol's default
// fanout.
func New(node *p2p.Node, log *logrus.Logger) (*Layer, error) {
	if log == nil {
		log = logrus.New()
	}
	cache, err := lru.New[types.Hash, struct{}](seenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("gossip: create dedup cache: %w", err)
	}
	l := &Layer{
		node:     node,
		log:      log,
		fanout:   DefaultFanout,
		seen:     cache,
		handlers: make(map[string]Handler),
	}

	node.SetHandler(p2p.BlockTopic, l.onRawMessage)
	node.SetHandler(p2p.TransactionTopic, l.onRawMessage)
	node.SetHandler(p2p.VoteTopic, l.onRawMessage)
	node.SetHandler(p2p.NTPTopic, l.onRawMessage)

	return l, nil
}

// OnTopic registers the handler invoked for first-seen payloads on
// topic.
func (l *Layer) OnTopic(topic string, h Handler) {
	l.handlers[topic] = h
}

// Broadcast originates a new message on topic: wraps payload in a
// fresh envelope at full TTL, marks its id seen, and publishes it.
func (l *Layer) Broadcast(topic string, payload []byte) error {
	env := &Envelope{
		ID:      envelopeID(topic, payload),
		TTL:     l.fanout,
		Topic:   topic,
		Payload: payload,
	}
	l.seen.Add(env.ID, struct{}{})
	return l.node.Publish(topic, encodeEnvelope(env))
}

// onRawMessage adapts an inbound GossipSub message into envelope dedup
// and forwarding. The same handler is registered for every topic;
// msg.GetTopic() disambiguates which one this message arrived on.
func (l *Layer) onRawMessage(ctx context.Context, msg *pubsub.Message) error {
	return l.handleEnvelopeBytes(ctx, msg.GetTopic(), msg.GetData())
}

func (l *Layer) handleEnvelopeBytes(ctx context.Context, topic string, data []byte) error {
	env, err := decodeEnvelope(data)
	if err != nil {
		return fmt.Errorf("gossip: decode envelope: %w", err)
	}

	if _, ok := l.seen.Get(env.ID); ok {
		return nil
	}
	l.seen.Add(env.ID, struct{}{})

	if h, ok := l.handlers[topic]; ok {
		if err := h(ctx, env.Payload); err != nil {
			l.log.WithError(err).WithField("topic", topic).Warn("gossip handler failed")
		}
	}

	if env.TTL == 0 {
		return ErrTTLExhausted
	}

	forwarded := &Envelope{ID: env.ID, TTL: env.TTL - 1, Topic: topic, Payload: env.Payload}
	return l.node.Publish(topic, encodeEnvelope(forwarded))
}

// GossipSub's own mesh already handles peer fanout at the transport
// layer, so the epidemic layer's "random subset up to fanout" is
// realized by GossipSub's mesh degree rather than a second, manual peer
// sample on top of it — re-publishing onto the topic is sufficient and
// avoids fighting the pubsub library's own peer selection.
