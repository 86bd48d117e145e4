package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoteSigningBytesDeterministic(t *testing.T) {
	v1 := &Vote{BlockHash: Hash{1, 2, 3}, Height: 10, Round: 2}
	v2 := &Vote{BlockHash: Hash{1, 2, 3}, Height: 10, Round: 2}
	require.Equal(t, v1.SigningBytes(), v2.SigningBytes())

	v3 := &Vote{BlockHash: Hash{1, 2, 3}, Height: 10, Round: 3}
	require.NotEqual(t, v1.SigningBytes(), v3.SigningBytes())
}
