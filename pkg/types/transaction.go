package types

import (
	"crypto/sha256"
	"errors"

	"github.com/novafoundation/nova-core/pkg/common"
)

// TxKind is the closed tagged variant of transaction kinds.
type TxKind uint8

const (
	TxTransfer TxKind = iota
	TxCreditRequest
	TxCreditSettlement
	TxTokenMint
	TxTokenBurn
)

// Protocol-wide transaction limits.
const (
	MinTxFeePhotons      = 100
	FeePerByte           = 10
	ShieldedFeeMultiplier = 3
	MaxTxFeePhotons      = 10_000_000

	MaxTxSizeBytes = 256 * 1024
	MaxMemoBytes   = 512
	MaxTxInputs    = 256
	MaxTxOutputs   = 256

	// MaxClockSkewMs is the tolerance validators allow between each
	// other's clocks; it is not the transaction future-timestamp bound.
	MaxClockSkewMs = 500

	// MaxFutureTimestampMs bounds how far into the future a transaction
	// timestamp may sit before ValidateStructure rejects it.
	MaxFutureTimestampMs = 5 * 60 * 1000
)

// Transaction structure errors.
var (
	ErrTxTooLarge       = errors.New("transaction exceeds maximum size")
	ErrMemoTooLarge     = errors.New("memo exceeds maximum length")
	ErrFeeTooLow        = errors.New("fee below protocol minimum")
	ErrFeeTooHigh       = errors.New("fee above protocol cap")
	ErrFeePerByteTooLow = errors.New("fee per byte below floor")
	ErrMissingSignature = errors.New("transaction is not signed")
	ErrBadSignature     = errors.New("signature invalid for transaction body")
	ErrFutureTimestamp  = errors.New("timestamp too far in the future")
)

// Transaction is immutable once signed. Its identifier is a pure function
// of the canonical body (everything but Id, Signature, ZKProof, and
// SenderPublicKey), so attaching a signature never changes Id.
type Transaction struct {
	Id     Hash
	Kind   TxKind
	Sender Address
	Receiver Address
	Amount Amount
	Fee    uint64
	Nonce  uint64

	// TimestampMs is the transaction's creation time in Unix
	// milliseconds.
	TimestampMs uint64

	// Payload is an optional opaque byte string (e.g. NTP session
	// metadata for a transfer originated by the NTP protocol).
	Payload []byte

	// Memo is an optional user-facing note, capped at MaxMemoBytes.
	Memo []byte

	// ZKProof is an optional balance-sufficiency proof attached to the
	// transaction (populated by NTP step 2).
	ZKProof []byte

	// Signature and SenderPublicKey are attached by Sign; both are nil
	// until the transaction is signed.
	Signature       []byte
	SenderPublicKey []byte
}

// NewTransaction constructs an unsigned transaction with the given
// fields. Callers must still call Sign before broadcast.
func NewTransaction(kind TxKind, sender, receiver Address, amount Amount, fee, nonce, timestampMs uint64) *Transaction {
	tx := &Transaction{
		Kind:        kind,
		Sender:      sender,
		Receiver:    receiver,
		Amount:      amount,
		Fee:         fee,
		Nonce:       nonce,
		TimestampMs: timestampMs,
	}
	tx.Id = tx.computeId()
	return tx
}

// CanonicalBody serializes every field except Id, Signature, ZKProof, and
// SenderPublicKey, in a fixed byte order. This is what Id hashes and what
// Sign/Verify operate on directly, not a hash of it, so a signature
// produced over the canonical body by any conforming implementation
// verifies here.
func (tx *Transaction) CanonicalBody() []byte {
	buf := make([]byte, 0, 128+len(tx.Payload)+len(tx.Memo))
	buf = append(buf, byte(tx.Kind))
	buf = append(buf, tx.Sender[:]...)
	buf = append(buf, tx.Receiver[:]...)
	buf = append(buf, common.Uint64ToBytes(tx.Amount.Value)...)
	buf = append(buf, byte(tx.Amount.Currency.Kind))
	buf = append(buf, encodeString(tx.Amount.Currency.Ticker)...)
	buf = append(buf, common.Uint64ToBytes(tx.Fee)...)
	buf = append(buf, common.Uint64ToBytes(tx.Nonce)...)
	buf = append(buf, common.Uint64ToBytes(tx.TimestampMs)...)
	buf = append(buf, encodeBytes(tx.Payload)...)
	buf = append(buf, encodeBytes(tx.Memo)...)
	return buf
}

func encodeBytes(b []byte) []byte {
	out := make([]byte, 0, 4+len(b))
	out = append(out, common.Uint64ToBytes(uint64(len(b)))[4:]...)
	out = append(out, b...)
	return out
}

func encodeString(s string) []byte {
	return encodeBytes([]byte(s))
}

// computeId derives the transaction identifier: the double SHA-256 of
// the canonical body. Double hashing blunts length-extension attacks.
// Signing never touches the canonical body, so Id is stable across
// signing.
func (tx *Transaction) computeId() Hash {
	first := sha256.Sum256(tx.CanonicalBody())
	second := sha256.Sum256(first[:])
	return second
}

// Size estimates the serialized size of the transaction in bytes, used
// for fee-per-byte and the MaxTxSizeBytes limit.
func (tx *Transaction) Size() int {
	size := len(tx.CanonicalBody())
	size += len(tx.ZKProof)
	size += len(tx.Signature)
	size += len(tx.SenderPublicKey)
	return size
}

// FeePerByte returns the transaction's fee rate, used for mempool
// prioritization.
func (tx *Transaction) FeePerByte() float64 {
	size := tx.Size()
	if size == 0 {
		return 0
	}
	return float64(tx.Fee) / float64(size)
}

// MinFeeFor returns the minimum acceptable fee for a transaction in the
// given currency: the protocol floor, tripled for non-native (shielded)
// transfers.
func MinFeeFor(currency Currency) uint64 {
	if currency.Kind != CurrencyNative {
		return MinTxFeePhotons * ShieldedFeeMultiplier
	}
	return MinTxFeePhotons
}

// ValidateStructure checks the structural invariants (size, memo
// length, fee bounds) that do not require cryptographic
// verification. nowMs is the caller's current time, used for the
// MaxFutureTimestampMs bound on the transaction timestamp.
func (tx *Transaction) ValidateStructure(nowMs uint64) error {
	if tx.Size() > MaxTxSizeBytes {
		return ErrTxTooLarge
	}
	if len(tx.Memo) > MaxMemoBytes {
		return ErrMemoTooLarge
	}
	minFee := MinFeeFor(tx.Amount.Currency)
	if tx.Fee < minFee {
		return ErrFeeTooLow
	}
	if tx.Fee > MaxTxFeePhotons {
		return ErrFeeTooHigh
	}
	if size := tx.Size(); size > 0 && float64(tx.Fee)/float64(size) < FeePerByte {
		return ErrFeePerByteTooLow
	}
	if tx.TimestampMs > nowMs+MaxFutureTimestampMs {
		return ErrFutureTimestamp
	}
	return nil
}
