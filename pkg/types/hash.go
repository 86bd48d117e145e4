// Package types defines the core data structures of the NOVA settlement
// engine: hashes, addresses, amounts, transactions, accounts, blocks and
// votes.
package types

import "encoding/hex"

// Protocol-wide sizing constants.
const (
	// HashSize is the size of a content hash in bytes (BLAKE3-256 or
	// double SHA-256, depending on context).
	HashSize = 32

	// AddressSize is the size of the raw address payload in bytes, before
	// prefix and checksum encoding.
	AddressSize = 20

	// SignatureSize is the size of an Ed25519 signature in bytes.
	SignatureSize = 64

	// PublicKeySize is the size of an Ed25519 public key in bytes.
	PublicKeySize = 32
)

// Hash is a 32-byte content hash.
type Hash [HashSize]byte

// EmptyHash is the all-zero hash, used as the state tree root of an empty
// tree and as the sentinel "no value" hash.
var EmptyHash = Hash{}

// IsEmpty reports whether h is the all-zero hash.
func (h Hash) IsEmpty() bool {
	return h == EmptyHash
}

// Bytes returns h as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String returns the hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromBytes builds a Hash from a byte slice, truncating or
// zero-padding as needed.
func HashFromBytes(b []byte) Hash {
	var h Hash
	copy(h[:], b)
	return h
}

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

// Bytes returns sig as a byte slice.
func (sig Signature) Bytes() []byte {
	return sig[:]
}

// IsEmpty reports whether sig has never been set.
func (sig Signature) IsEmpty() bool {
	return sig == Signature{}
}
