package types

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// BlockHeader carries everything that is hashed to produce a block's
// identity. Blocks form a single linear chain keyed by height, not a
// DAG: each header names exactly one parent.
type BlockHeader struct {
	PreviousHash Hash
	Height       uint64
	TimestampMs  uint64
	Proposer     Address
	StateRoot    Hash
	TxRoot       Hash
}

// canonicalBytes serializes the header fields in a fixed order for
// hashing and signing.
func (h *BlockHeader) canonicalBytes() []byte {
	buf := make([]byte, 0, HashSize*3+AddressSize+16)
	buf = append(buf, h.PreviousHash[:]...)
	buf = append(buf, uint64Bytes(h.Height)...)
	buf = append(buf, uint64Bytes(h.TimestampMs)...)
	buf = append(buf, h.Proposer[:]...)
	buf = append(buf, h.StateRoot[:]...)
	buf = append(buf, h.TxRoot[:]...)
	return buf
}

// Hash returns the BLAKE3 digest of the header's canonical bytes.
func (h *BlockHeader) Hash() Hash {
	sum := blake3.Sum256(h.canonicalBytes())
	return Hash(sum)
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Block is a header plus the ordered list of transactions it commits,
// together with the proposer's signature over the header hash.
type Block struct {
	Header            BlockHeader
	Transactions      []*Transaction
	ProposerSignature []byte
}

// Hash returns the block's identity: the hash of its header. Two blocks
// with identical headers are the same block regardless of any
// difference in transaction ordering bugs upstream, since TxRoot already
// commits to the ordered transaction set.
func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

// Genesis builds the height-0 block: no parent, no transactions, and no
// proposer signature (genesis is accepted by fiat, not by vote).
func Genesis(stateRoot Hash, timestampMs uint64) *Block {
	return &Block{
		Header: BlockHeader{
			PreviousHash: EmptyHash,
			Height:       0,
			TimestampMs:  timestampMs,
			Proposer:     EmptyAddress,
			StateRoot:    stateRoot,
			TxRoot:       EmptyHash,
		},
	}
}
