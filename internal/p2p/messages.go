// Package p2p provides wire-level message encoding for gossip payloads.
package p2p

import (
	"encoding/binary"
	"errors"

	"github.com/novafoundation/nova-core/pkg/types"
)

// Gossip message types, one per topic plus a handful of direct request
// message kinds used by chain sync.
const (
	MsgTypeBlock       uint8 = 0x01
	MsgTypeTransaction uint8 = 0x02
	MsgTypeVote        uint8 = 0x03
	MsgTypeNTPEnvelope uint8 = 0x04
	MsgTypeGetBlocks   uint8 = 0x10
	MsgTypeStatus      uint8 = 0x20
)

// Message errors.
var (
	ErrInvalidMessageType = errors.New("p2p: invalid message type")
	ErrMessageTooLarge    = errors.New("p2p: message too large")
	ErrMessageTooShort    = errors.New("p2p: message too short")
)

// MaxMessageSize bounds a single gossip payload, generously above
// MaxTxSizeBytes to allow for whole blocks of transactions.
const MaxMessageSize = 32 * 1024 * 1024

// StatusMessage exchanges chain-tip information between peers during
// sync, using a height-based comparison rather than a DAG-era
// best-hash/genesis-hash exchange.
type StatusMessage struct {
	NetworkID   uint32
	Height      uint64
	TipHash     types.Hash
	GenesisHash types.Hash
}

// GetBlocksMessage requests a contiguous range of blocks by height
// rather than a hash-anchored DAG request: there is no parent
// ambiguity to resolve in a linear chain.
type GetBlocksMessage struct {
	FromHeight uint64
	Count      uint32
}

// EncodeTransaction serializes a transaction for gossip.
func EncodeTransaction(tx *types.Transaction) []byte {
	buf := make([]byte, 0, 256+len(tx.Payload)+len(tx.Memo)+len(tx.ZKProof))
	buf = append(buf, tx.Id[:]...)
	buf = append(buf, byte(tx.Kind))
	buf = append(buf, tx.Sender[:]...)
	buf = append(buf, tx.Receiver[:]...)
	buf = appendUint64(buf, tx.Amount.Value)
	buf = append(buf, byte(tx.Amount.Currency.Kind))
	buf = appendBytes(buf, []byte(tx.Amount.Currency.Ticker))
	buf = appendUint64(buf, tx.Fee)
	buf = appendUint64(buf, tx.Nonce)
	buf = appendUint64(buf, tx.TimestampMs)
	buf = appendBytes(buf, tx.Payload)
	buf = appendBytes(buf, tx.Memo)
	buf = appendBytes(buf, tx.ZKProof)
	buf = appendBytes(buf, tx.Signature)
	buf = appendBytes(buf, tx.SenderPublicKey)
	return buf
}

// DecodeTransaction deserializes a transaction encoded by
// EncodeTransaction.
func DecodeTransaction(data []byte) (*types.Transaction, error) {
	r := &byteReader{data: data}

	var id types.Hash
	if !r.readFixed(id[:]) {
		return nil, ErrMessageTooShort
	}
	kind, ok := r.readByte()
	if !ok {
		return nil, ErrMessageTooShort
	}
	var sender, receiver types.Address
	if !r.readFixed(sender[:]) || !r.readFixed(receiver[:]) {
		return nil, ErrMessageTooShort
	}
	amountValue, ok := r.readUint64()
	if !ok {
		return nil, ErrMessageTooShort
	}
	currencyKind, ok := r.readByte()
	if !ok {
		return nil, ErrMessageTooShort
	}
	ticker, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}
	fee, ok := r.readUint64()
	if !ok {
		return nil, ErrMessageTooShort
	}
	nonce, ok := r.readUint64()
	if !ok {
		return nil, ErrMessageTooShort
	}
	timestampMs, ok := r.readUint64()
	if !ok {
		return nil, ErrMessageTooShort
	}
	payload, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}
	memo, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}
	zkProof, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}
	signature, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}
	senderPK, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}

	tx := &types.Transaction{
		Id:              id,
		Kind:            types.TxKind(kind),
		Sender:          sender,
		Receiver:        receiver,
		Fee:             fee,
		Nonce:           nonce,
		TimestampMs:     timestampMs,
		Payload:         payload,
		Memo:            memo,
		ZKProof:         zkProof,
		Signature:       signature,
		SenderPublicKey: senderPK,
	}
	tx.Amount = types.Amount{
		Value:    amountValue,
		Currency: types.Currency{Kind: types.CurrencyKind(currencyKind), Ticker: string(ticker)},
	}
	return tx, nil
}

// EncodeBlock serializes a block and its transactions for gossip.
func EncodeBlock(block *types.Block) []byte {
	h := block.Header
	buf := make([]byte, 0, 256)
	buf = append(buf, h.PreviousHash[:]...)
	buf = appendUint64(buf, h.Height)
	buf = appendUint64(buf, h.TimestampMs)
	buf = append(buf, h.Proposer[:]...)
	buf = append(buf, h.StateRoot[:]...)
	buf = append(buf, h.TxRoot[:]...)
	buf = appendBytes(buf, block.ProposerSignature)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(block.Transactions)))
	for _, tx := range block.Transactions {
		txData := EncodeTransaction(tx)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(txData)))
		buf = append(buf, txData...)
	}
	return buf
}

// DecodeBlock deserializes a block encoded by EncodeBlock.
func DecodeBlock(data []byte) (*types.Block, error) {
	r := &byteReader{data: data}

	var header types.BlockHeader
	if !r.readFixed(header.PreviousHash[:]) {
		return nil, ErrMessageTooShort
	}
	var ok bool
	if header.Height, ok = r.readUint64(); !ok {
		return nil, ErrMessageTooShort
	}
	if header.TimestampMs, ok = r.readUint64(); !ok {
		return nil, ErrMessageTooShort
	}
	if !r.readFixed(header.Proposer[:]) || !r.readFixed(header.StateRoot[:]) || !r.readFixed(header.TxRoot[:]) {
		return nil, ErrMessageTooShort
	}
	sig, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}

	count, ok := r.readUint32()
	if !ok {
		return nil, ErrMessageTooShort
	}
	txs := make([]*types.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		txLen, ok := r.readUint32()
		if !ok {
			return nil, ErrMessageTooShort
		}
		txData, ok := r.readN(int(txLen))
		if !ok {
			return nil, ErrMessageTooShort
		}
		tx, err := DecodeTransaction(txData)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	return &types.Block{Header: header, Transactions: txs, ProposerSignature: sig}, nil
}

// EncodeVote serializes a consensus vote for gossip.
func EncodeVote(vote *types.Vote) []byte {
	buf := make([]byte, 0, 128+len(vote.VoterPublicKey)+len(vote.Signature))
	buf = appendBytes(buf, vote.VoterPublicKey)
	buf = append(buf, vote.BlockHash[:]...)
	buf = appendUint64(buf, vote.Height)
	buf = binary.BigEndian.AppendUint32(buf, vote.Round)
	buf = appendBytes(buf, vote.Signature)
	return buf
}

// DecodeVote deserializes a vote encoded by EncodeVote.
func DecodeVote(data []byte) (*types.Vote, error) {
	r := &byteReader{data: data}

	voterPK, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}
	var blockHash types.Hash
	if !r.readFixed(blockHash[:]) {
		return nil, ErrMessageTooShort
	}
	height, ok := r.readUint64()
	if !ok {
		return nil, ErrMessageTooShort
	}
	round, ok := r.readUint32()
	if !ok {
		return nil, ErrMessageTooShort
	}
	signature, ok := r.readBytes()
	if !ok {
		return nil, ErrMessageTooShort
	}

	return &types.Vote{
		VoterPublicKey: voterPK,
		BlockHash:      blockHash,
		Height:         height,
		Round:          round,
		Signature:      signature,
	}, nil
}

// EncodeStatus serializes a status message.
func EncodeStatus(status *StatusMessage) []byte {
	buf := make([]byte, 0, 4+8+types.HashSize*2)
	buf = binary.BigEndian.AppendUint32(buf, status.NetworkID)
	buf = appendUint64(buf, status.Height)
	buf = append(buf, status.TipHash[:]...)
	buf = append(buf, status.GenesisHash[:]...)
	return buf
}

// DecodeStatus deserializes a status message.
func DecodeStatus(data []byte) (*StatusMessage, error) {
	want := 4 + 8 + types.HashSize*2
	if len(data) < want {
		return nil, ErrMessageTooShort
	}
	status := &StatusMessage{
		NetworkID: binary.BigEndian.Uint32(data[0:4]),
		Height:    binary.BigEndian.Uint64(data[4:12]),
	}
	copy(status.TipHash[:], data[12:12+types.HashSize])
	copy(status.GenesisHash[:], data[12+types.HashSize:want])
	return status, nil
}

// EncodeGetBlocks serializes a block range request.
func EncodeGetBlocks(req *GetBlocksMessage) []byte {
	buf := make([]byte, 0, 12)
	buf = appendUint64(buf, req.FromHeight)
	buf = binary.BigEndian.AppendUint32(buf, req.Count)
	return buf
}

// DecodeGetBlocks deserializes a block range request.
func DecodeGetBlocks(data []byte) (*GetBlocksMessage, error) {
	if len(data) < 12 {
		return nil, ErrMessageTooShort
	}
	return &GetBlocksMessage{
		FromHeight: binary.BigEndian.Uint64(data[0:8]),
		Count:      binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	return binary.BigEndian.AppendUint64(buf, v)
}

func appendBytes(buf []byte, b []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(b)))
	return append(buf, b...)
}

// byteReader sequentially consumes a length-prefixed wire buffer.
type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) readFixed(dst []byte) bool {
	if r.pos+len(dst) > len(r.data) {
		return false
	}
	copy(dst, r.data[r.pos:r.pos+len(dst)])
	r.pos += len(dst)
	return true
}

func (r *byteReader) readN(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, false
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, true
}

func (r *byteReader) readByte() (byte, bool) {
	if r.pos+1 > len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *byteReader) readUint32() (uint32, bool) {
	if r.pos+4 > len(r.data) {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}

func (r *byteReader) readUint64() (uint64, bool) {
	if r.pos+8 > len(r.data) {
		return 0, false
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v, true
}

func (r *byteReader) readBytes() ([]byte, bool) {
	n, ok := r.readUint32()
	if !ok {
		return nil, false
	}
	if n == 0 {
		return nil, true
	}
	return r.readN(int(n))
}
