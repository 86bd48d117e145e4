// Package crypto implements the cryptographic primitives of the NOVA
// settlement engine: Ed25519 identity keys, X25519 session handshakes,
// AES-256-GCM session encryption, and general-purpose hashing.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/novafoundation/nova-core/pkg/types"
)

// Errors returned by key operations. Messages are deliberately vague
// about which check failed, so a verifier cannot be used as an oracle
// to distinguish a malformed key from a forged signature.
var (
	ErrInvalidKeySize  = errors.New("crypto: invalid key material")
	ErrVerifyFailed    = errors.New("crypto: verification failed")
	ErrKeyAlreadyZeroed = errors.New("crypto: secret key already released")
)

// Keypair holds an Ed25519 identity. The secret key is held in memory
// only for the lifetime of the process that generated or loaded it;
// Release overwrites it with zeroes once the caller no longer needs it.
type Keypair struct {
	public []byte
	secret []byte
}

// GenerateKeypair creates a new random Ed25519 identity.
func GenerateKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate keypair: %w", err)
	}
	return &Keypair{public: pub, secret: priv}, nil
}

// KeypairFromSeed deterministically derives a keypair from a 32-byte
// seed, e.g. recovered from a wallet backup.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, ErrInvalidKeySize
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keypair{public: []byte(pub), secret: []byte(priv)}, nil
}

// PublicKey returns the 32-byte Ed25519 public key.
func (k *Keypair) PublicKey() []byte {
	out := make([]byte, len(k.public))
	copy(out, k.public)
	return out
}

// Address returns the NOVA address derived from this identity's public
// key.
func (k *Keypair) Address() types.Address {
	return types.DeriveAddress(k.public)
}

// Sign produces an Ed25519 signature over msg. It panics if the secret
// key has already been released, since that indicates a use-after-free
// in the caller.
func (k *Keypair) Sign(msg []byte) []byte {
	if k.secret == nil {
		panic("crypto: sign called on released keypair")
	}
	return ed25519.Sign(k.secret, msg)
}

// Release overwrites the secret key material with zeroes. Subsequent
// calls to Sign panic.
func (k *Keypair) Release() {
	for i := range k.secret {
		k.secret[i] = 0
	}
	k.secret = nil
}

// Verify checks an Ed25519 signature against a public key and message
// using the standard library's strict (cofactored, RFC 8032) rules,
// which already reject the small-order and malleable signature forms a
// lenient verifier would accept.
func Verify(publicKey, msg, signature []byte) error {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return ErrVerifyFailed
	}
	if !ed25519.Verify(publicKey, msg, signature) {
		return ErrVerifyFailed
	}
	return nil
}

// SignTransaction signs a transaction's canonical body, attaching the
// resulting signature and public key. It does not mutate the
// transaction's Id, since the id is a function of the canonical body
// only.
func SignTransaction(k *Keypair, tx *types.Transaction) {
	tx.Signature = k.Sign(tx.CanonicalBody())
	tx.SenderPublicKey = k.PublicKey()
}

// VerifyTransaction checks a transaction's signature against its
// attached sender public key, and that the public key derives the
// claimed sender address.
func VerifyTransaction(tx *types.Transaction) error {
	if len(tx.Signature) == 0 || len(tx.SenderPublicKey) == 0 {
		return types.ErrMissingSignature
	}
	if types.DeriveAddress(tx.SenderPublicKey) != tx.Sender {
		return types.ErrBadSignature
	}
	if err := Verify(tx.SenderPublicKey, tx.CanonicalBody(), tx.Signature); err != nil {
		return types.ErrBadSignature
	}
	return nil
}
