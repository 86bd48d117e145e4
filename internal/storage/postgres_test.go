package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// PostgresStore's Get/Put/Delete/AtomicBatch/IterPrefix all require a
// live Postgres connection and are exercised against a real database in
// integration testing rather than here. This file covers the pure
// helpers that back them.

func TestPrefixUpperBoundIncrementsLastByte(t *testing.T) {
	require.Equal(t, []byte{0x01, 0x03}, prefixUpperBound([]byte{0x01, 0x02}))
}

func TestPrefixUpperBoundCarriesOverTrailingFF(t *testing.T) {
	require.Equal(t, []byte{0x02}, prefixUpperBound([]byte{0x01, 0xFF}))
}

func TestPrefixUpperBoundAllFFAppendsByte(t *testing.T) {
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF}, prefixUpperBound([]byte{0xFF, 0xFF}))
}

func TestDefaultConfigIsLocalDevDatabase(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, "localhost", cfg.Host)
	require.Equal(t, "nova", cfg.Database)
	require.Equal(t, "disable", cfg.SSLMode)
}
