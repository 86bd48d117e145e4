package types

import (
	"encoding/base32"
	"errors"
	"strings"

	"github.com/zeebo/blake3"
)

// Address is the raw 20-byte payload of a NOVA address: the leading bytes
// of BLAKE3(public_key). The human-readable form is produced by Encode.
type Address [AddressSize]byte

// EmptyAddress is the zero address.
var EmptyAddress = Address{}

// IsEmpty reports whether a is the zero address.
func (a Address) IsEmpty() bool {
	return a == EmptyAddress
}

// Bytes returns a as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// Network-specific human-readable prefixes.
const (
	MainnetPrefix = "nova"
	TestnetPrefix = "tnova"
	DevnetPrefix  = "dnova"

	addressChecksumLen = 4
)

var addrEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ErrInvalidAddress is returned when an encoded address fails checksum or
// length validation.
var ErrInvalidAddress = errors.New("invalid address encoding")

// DeriveAddress computes the address for an Ed25519 public key: the first
// AddressSize bytes of BLAKE3(pubkey). Derivation is a pure function of
// the public key.
func DeriveAddress(publicKey []byte) Address {
	sum := blake3.Sum256(publicKey)
	var a Address
	copy(a[:], sum[:AddressSize])
	return a
}

// Encode renders a as a checksummed, prefixed, human-readable string, e.g.
// "nova1a2b3c...". The checksum is the first 4 bytes of
// BLAKE3(prefix || payload), guarding against transcription errors.
func (a Address) Encode(prefix string) string {
	checksum := addressChecksum(prefix, a[:])
	payload := append(append([]byte{}, a[:]...), checksum...)
	return prefix + "1" + strings.ToLower(addrEncoding.EncodeToString(payload))
}

// DecodeAddress parses a human-readable address, verifying its checksum
// against the given expected prefix.
func DecodeAddress(s string, expectedPrefix string) (Address, error) {
	sep := strings.Index(s, "1")
	if sep <= 0 || s[:sep] != expectedPrefix {
		return Address{}, ErrInvalidAddress
	}

	// Re-encoding rejects strings whose final character differs only in
	// padding bits that the base32 decoder ignores.
	encoded := strings.ToUpper(s[sep+1:])
	raw, err := addrEncoding.DecodeString(encoded)
	if err != nil || len(raw) != AddressSize+addressChecksumLen || addrEncoding.EncodeToString(raw) != encoded {
		return Address{}, ErrInvalidAddress
	}

	payload, checksum := raw[:AddressSize], raw[AddressSize:]
	if !equalBytes(addressChecksum(expectedPrefix, payload), checksum) {
		return Address{}, ErrInvalidAddress
	}

	var a Address
	copy(a[:], payload)
	return a, nil
}

func addressChecksum(prefix string, payload []byte) []byte {
	h := blake3.New()
	h.Write([]byte(prefix))
	h.Write(payload)
	sum := h.Sum(nil)
	return sum[:addressChecksumLen]
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
