// Package storage implements the narrow KVStore persistence surface
// over PostgreSQL. Persistence is an external collaborator to the
// protocol core, not a query layer: every logical table (blocks, state,
// transactions, metadata) is addressed by opaque key/value pairs, never
// by bespoke SQL per field.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Common errors.
var (
	ErrNotFound     = errors.New("storage: key not found")
	ErrDBConnection = errors.New("storage: database connection error")
)

// Table names the four logical tables a KVStore partitions keys into.
type Table string

const (
	TableBlocks       Table = "blocks"
	TableState        Table = "state"
	TableTransactions Table = "transactions"
	TableMetadata     Table = "metadata"
)

// KVStore is the narrow persistence surface every protocol component
// depends on: get/put/delete, an atomic multi-key batch, and
// prefix iteration, each scoped to one logical table.
type KVStore interface {
	Get(ctx context.Context, table Table, key []byte) ([]byte, error)
	Put(ctx context.Context, table Table, key, value []byte) error
	Delete(ctx context.Context, table Table, key []byte) error
	AtomicBatch(ctx context.Context, ops []BatchOp) error
	IterPrefix(ctx context.Context, table Table, prefix []byte, fn func(key, value []byte) error) error
	Close()
}

// BatchOp is one write in an AtomicBatch call.
type BatchOp struct {
	Table  Table
	Key    []byte
	Value  []byte // written unless Delete is set
	Delete bool
}

// Config holds database configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "nova",
		Password: "",
		Database: "nova",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// PostgresStore implements KVStore over a single table with a
// (table, key, value) schema, one physical table standing in for the
// four logical ones via a leading table discriminator column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresStoreFromDSN opens a pool directly from a connection
// string (e.g. NOVA_POSTGRES_DSN), for callers that carry a single DSN
// rather than the broken-out Config fields.
func NewPostgresStoreFromDSN(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Schema creates the backing table and indices, if absent. Callers run
// this once at startup; it is not part of the KVStore interface since
// most callers never need it (test doubles, migrations-managed
// deployments).
func (s *PostgresStore) Schema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kv_store (
			store_table TEXT NOT NULL,
			key         BYTEA NOT NULL,
			value       BYTEA NOT NULL,
			PRIMARY KEY (store_table, key)
		)
	`)
	return err
}

// Get returns the value for key in table, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, table Table, key []byte) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_store WHERE store_table = $1 AND key = $2`,
		string(table), key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get: %w", err)
	}
	return value, nil
}

// Put inserts or overwrites the value for key in table.
func (s *PostgresStore) Put(ctx context.Context, table Table, key, value []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv_store (store_table, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (store_table, key) DO UPDATE SET value = $3
	`, string(table), key, value)
	if err != nil {
		return fmt.Errorf("storage: put: %w", err)
	}
	return nil
}

// Delete removes key from table, if present.
func (s *PostgresStore) Delete(ctx context.Context, table Table, key []byte) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM kv_store WHERE store_table = $1 AND key = $2`,
		string(table), key,
	)
	if err != nil {
		return fmt.Errorf("storage: delete: %w", err)
	}
	return nil
}

// AtomicBatch applies every op in a single transaction, all-or-nothing.
// Block finalization uses this to persist a block, its transactions,
// and the post-apply state diff as one unit.
func (s *PostgresStore) AtomicBatch(ctx context.Context, ops []BatchOp) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range ops {
		if op.Delete {
			if _, err := tx.Exec(ctx,
				`DELETE FROM kv_store WHERE store_table = $1 AND key = $2`,
				string(op.Table), op.Key,
			); err != nil {
				return fmt.Errorf("storage: batch delete: %w", err)
			}
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO kv_store (store_table, key, value) VALUES ($1, $2, $3)
			ON CONFLICT (store_table, key) DO UPDATE SET value = $3
		`, string(op.Table), op.Key, op.Value); err != nil {
			return fmt.Errorf("storage: batch put: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// IterPrefix calls fn for every key in table with the given prefix, in
// ascending key order. Iteration stops at the first error fn returns.
func (s *PostgresStore) IterPrefix(ctx context.Context, table Table, prefix []byte, fn func(key, value []byte) error) error {
	upper := prefixUpperBound(prefix)
	if len(upper) > len(prefix) {
		upper = nil // all-0xFF prefix: scan with no upper bound
	}
	rows, err := s.pool.Query(ctx, `
		SELECT key, value FROM kv_store
		WHERE store_table = $1 AND key >= $2 AND ($3::bytea IS NULL OR key < $3)
		ORDER BY key ASC
	`, string(table), prefix, upper)
	if err != nil {
		return fmt.Errorf("storage: iter prefix: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("storage: iter prefix scan: %w", err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return rows.Err()
}

// prefixUpperBound returns the smallest byte string strictly greater
// than every string with prefix, for a half-open range scan. An
// all-0xFF prefix (or an empty one) has no such bound; it then returns
// the prefix with 0xFF appended, and IterPrefix scans without an upper
// bound.
func prefixUpperBound(prefix []byte) []byte {
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return append(upper, 0xFF)
}
