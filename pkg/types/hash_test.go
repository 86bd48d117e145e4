package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFromBytesPadsAndTruncates(t *testing.T) {
	short := HashFromBytes([]byte{1, 2, 3})
	require.Equal(t, byte(1), short[0])
	require.Equal(t, byte(0), short[HashSize-1])

	long := make([]byte, HashSize+10)
	for i := range long {
		long[i] = byte(i)
	}
	truncated := HashFromBytes(long)
	require.Equal(t, byte(0), truncated[0])
	require.Len(t, truncated.Bytes(), HashSize)
}

func TestHashStringIsHex(t *testing.T) {
	h := Hash{0xde, 0xad, 0xbe, 0xef}
	require.Contains(t, h.String(), "deadbeef")
}

func TestHashIsEmpty(t *testing.T) {
	require.True(t, EmptyHash.IsEmpty())
	require.False(t, Hash{1}.IsEmpty())
}
