package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressEncodeDecodeRoundTrip(t *testing.T) {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i)
	}
	addr := DeriveAddress(pub)

	encoded := addr.Encode(MainnetPrefix)
	require.Contains(t, encoded, MainnetPrefix+"1")

	decoded, err := DecodeAddress(encoded, MainnetPrefix)
	require.NoError(t, err)
	require.Equal(t, addr, decoded)
}

func TestDecodeAddressWrongPrefixRejected(t *testing.T) {
	addr := DeriveAddress([]byte("some public key"))
	encoded := addr.Encode(TestnetPrefix)

	_, err := DecodeAddress(encoded, MainnetPrefix)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestDecodeAddressCorruptedChecksumRejected(t *testing.T) {
	addr := DeriveAddress([]byte("another key"))
	encoded := addr.Encode(DevnetPrefix)

	corrupted := []byte(encoded)
	corrupted[len(corrupted)-1]++

	_, err := DecodeAddress(string(corrupted), DevnetPrefix)
	require.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressIsEmpty(t *testing.T) {
	require.True(t, EmptyAddress.IsEmpty())
	require.False(t, DeriveAddress([]byte("x")).IsEmpty())
}
