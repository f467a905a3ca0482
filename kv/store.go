// Package kv defines the ordered key-value contract that the tag index
// is built on: tables addressed by name, point get/set/delete,
// ascending range cursors, and serializable transactions. ForwardCursor
// lets a range scan express an inclusive or exclusive starting key
// without a throwaway Next() call.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by Bucket.Get when the key is absent.
	ErrKeyNotFound = errors.New("kv: key not found")
	// ErrTxNotWritable is returned by Put/Delete called on a Tx opened
	// with View.
	ErrTxNotWritable = errors.New("kv: transaction is not writable")
)

// Store is a table-addressed, ordered key-value store offering
// serializable read and read-write transactions.
type Store interface {
	// View opens a transaction that must not write to any table.
	View(ctx context.Context, fn func(Tx) error) error
	// Update opens a transaction that may read and write.
	Update(ctx context.Context, fn func(Tx) error) error
	// Clear removes every key from every table. Used by tests.
	Clear(ctx context.Context) error
	// Checkpoint forces previously committed writes to stable storage.
	// Used by benchmarks; a Store that is always durable on commit may
	// implement this as a no-op.
	Checkpoint(ctx context.Context) error
}

// Tx is a single transaction against a Store. A Tx and every Bucket or
// Cursor it produced must not be used after the function passed to
// View/Update returns.
type Tx interface {
	// Table returns the named table. In a read-write transaction it is
	// created if it does not exist; in a read-only one a missing table
	// is not created and reads as empty.
	Table(name []byte) (Bucket, error)
	Context() context.Context
}

// Bucket is a single ordered table within a transaction.
type Bucket interface {
	Get(key []byte) ([]byte, error)
	// Put should error with ErrTxNotWritable if the owning Tx is read-only.
	Put(key, value []byte) error
	// Delete should error with ErrTxNotWritable if the owning Tx is read-only.
	Delete(key []byte) error
	// ForwardCursor opens an ascending cursor. With no options the
	// cursor starts at the first key of the table. WithSeek positions it
	// at the first key >= seek; combined with WithExclusiveSeek the
	// cursor instead starts at the first key > seek.
	ForwardCursor(opts ...CursorOption) (Cursor, error)
}

// Cursor walks a Bucket in ascending key order.
type Cursor interface {
	// Next returns the next key/value pair, or (nil, nil) when
	// exhausted.
	Next() (k, v []byte)
	// Close releases any resources held by the cursor. It is safe to
	// call Close without exhausting Next.
	Close() error
}

// CursorOption configures a ForwardCursor call.
type CursorOption func(*cursorConfig)

type cursorConfig struct {
	seek      []byte
	exclusive bool
}

// WithSeek starts the cursor at the first key >= seek (or > seek, if
// combined with WithExclusiveSeek).
func WithSeek(seek []byte) CursorOption {
	return func(c *cursorConfig) { c.seek = seek }
}

// WithExclusiveSeek makes the seek key from WithSeek an exclusive lower
// bound, used to resume a paginated scan after the last-seen key.
func WithExclusiveSeek() CursorOption {
	return func(c *cursorConfig) { c.exclusive = true }
}

// NewCursorConfig applies opts and returns the resulting configuration.
// Store adapters call this at the top of ForwardCursor.
func NewCursorConfig(opts ...CursorOption) (seek []byte, exclusive bool) {
	var c cursorConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c.seek, c.exclusive
}
