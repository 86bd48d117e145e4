package types

import "encoding/binary"

// Vote is a validator's endorsement of a proposed block at a given
// consensus round. A quorum of matching votes finalizes the
// block.
type Vote struct {
	VoterPublicKey []byte
	BlockHash      Hash
	Height         uint64
	Round          uint32
	Signature      []byte
}

// canonicalBytes serializes the fields covered by Signature, in order.
func (v *Vote) canonicalBytes() []byte {
	buf := make([]byte, 0, HashSize+12)
	buf = append(buf, v.BlockHash[:]...)
	buf = append(buf, uint64Bytes(v.Height)...)
	roundBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(roundBytes, v.Round)
	buf = append(buf, roundBytes...)
	return buf
}

// SigningBytes returns the bytes a validator signs to cast this vote.
func (v *Vote) SigningBytes() []byte {
	return v.canonicalBytes()
}
