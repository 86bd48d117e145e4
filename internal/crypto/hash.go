package crypto

import (
	"crypto/sha256"

	"github.com/zeebo/blake3"

	"github.com/novafoundation/nova-core/pkg/types"
)

// Hash computes the general-purpose BLAKE3-256 digest used throughout
// the engine (state-tree leaves, block headers, gossip message ids).
// Transaction identifiers are the one exception: those are frozen to
// double SHA-256, computed in pkg/types.Transaction.Id directly.
func Hash(data []byte) types.Hash {
	return types.Hash(blake3.Sum256(data))
}

// DoubleSHA256 computes SHA-256(SHA-256(data)), matching the
// transaction-id rule in pkg/types.
func DoubleSHA256(data []byte) types.Hash {
	first := sha256.Sum256(data)
	second := sha256.Sum256(first[:])
	return second
}

// HashConcat hashes the concatenation of its arguments, used by the
// state tree to combine sibling nodes.
func HashConcat(parts ...[]byte) types.Hash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}
