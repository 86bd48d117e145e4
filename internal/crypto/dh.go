package crypto

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// X25519KeySize is the size in bytes of an X25519 public or private
// key.
const X25519KeySize = 32

// SessionKeySize is the size in bytes of the derived AES-256 session
// key.
const SessionKeySize = 32

// EphemeralKeypair is a one-shot X25519 key used for a single NTP
// handshake. It is never persisted and never reused
// across sessions.
type EphemeralKeypair struct {
	private [X25519KeySize]byte
	public  [X25519KeySize]byte
}

// NewEphemeralKeypair generates a fresh X25519 keypair for a handshake.
func NewEphemeralKeypair() (*EphemeralKeypair, error) {
	var priv [X25519KeySize]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("crypto: generate ephemeral key: %w", err)
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("crypto: derive ephemeral public key: %w", err)
	}
	var kp EphemeralKeypair
	copy(kp.private[:], priv[:])
	copy(kp.public[:], pub)
	return &kp, nil
}

// PublicKey returns the handshake's public share, sent to the peer.
func (kp *EphemeralKeypair) PublicKey() []byte {
	out := make([]byte, X25519KeySize)
	copy(out, kp.public[:])
	return out
}

// DeriveSessionKey runs X25519 against the peer's public share and
// expands the shared secret into a 32-byte AES-256-GCM key via
// HKDF-SHA256, salted with both parties' public shares so that session
// keys are bound to the specific handshake that produced them.
func (kp *EphemeralKeypair) DeriveSessionKey(peerPublic []byte, sessionID []byte) ([]byte, error) {
	if len(peerPublic) != X25519KeySize {
		return nil, ErrInvalidKeySize
	}
	shared, err := curve25519.X25519(kp.private[:], peerPublic)
	if err != nil {
		return nil, fmt.Errorf("crypto: x25519 key agreement: %w", err)
	}

	// Order the two shares the same way on both sides, so initiator and
	// responder arrive at the same salt and therefore the same key.
	first, second := kp.public[:], peerPublic
	if bytes.Compare(first, second) > 0 {
		first, second = second, first
	}
	salt := make([]byte, 0, X25519KeySize*2)
	salt = append(salt, first...)
	salt = append(salt, second...)

	reader := hkdf.New(sha256.New, shared, salt, append([]byte("nova-ntp-session-key/"), sessionID...))
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("crypto: hkdf expand: %w", err)
	}
	return key, nil
}
