// Package bolt adapts go.etcd.io/bbolt to the kv.Store contract:
// open/close a single file, wrap bbolt's *bolt.Tx and *bolt.Bucket
// behind the generic interfaces, and translate bbolt's sentinel errors
// into the kv package's.
package bolt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opentracing/opentracing-go"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/mentalblood0/dream/kv"
	"github.com/mentalblood0/dream/logger"
)

// Store is a kv.Store backed by a single bbolt file.
type Store struct {
	path   string
	db     *bolt.DB
	logger *zap.Logger
}

// NewStore returns a Store that will open the bbolt file at path.
func NewStore(path string) *Store {
	return &Store{
		path:   path,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger used for lifecycle events.
func (s *Store) WithLogger(l *zap.Logger) {
	s.logger = l
}

// contextLogger prefers a logger attached to ctx (as Index.View/Update
// do) over the store's own, so per-transaction log lines end up scoped
// to whatever the caller attached.
func (s *Store) contextLogger(ctx context.Context) *zap.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// Open creates the bbolt file (and its parent directory) if it does not
// already exist, then opens it.
func (s *Store) Open(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "bolt.Store.Open")
	defer span.Finish()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("unable to create directory %s: %w", filepath.Dir(s.path), err)
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("unable to open bbolt file %s: %w", s.path, err)
	}
	s.db = db

	s.logger.Info("store opened", zap.String("path", s.path))
	return nil
}

// Close releases the underlying bbolt file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// View implements kv.Store.
func (s *Store) View(ctx context.Context, fn func(kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "bolt.Store.View")
	defer span.Finish()

	s.contextLogger(ctx).Debug("view", zap.String("path", s.path))
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx, ctx: ctx})
	})
}

// Update implements kv.Store.
func (s *Store) Update(ctx context.Context, fn func(kv.Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "bolt.Store.Update")
	defer span.Finish()

	s.contextLogger(ctx).Debug("update", zap.String("path", s.path))
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(&Tx{tx: tx, ctx: ctx})
	})
}

// Clear removes every key from every bucket. It is meant for tests.
func (s *Store) Clear(ctx context.Context) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			return clearBucket(tx, name, b)
		})
	})
}

func clearBucket(tx *bolt.Tx, name []byte, b *bolt.Bucket) error {
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if err := c.Delete(); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint forces previously committed writes to stable storage.
func (s *Store) Checkpoint(ctx context.Context) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "bolt.Store.Checkpoint")
	defer span.Finish()

	return s.db.Sync()
}

// Tx wraps a *bolt.Tx to implement kv.Tx.
type Tx struct {
	tx  *bolt.Tx
	ctx context.Context
}

// Context returns the context the transaction was opened with.
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// Table returns the named bucket. A writable transaction creates it if
// necessary; a read-only one returns an empty bucket for a missing name.
func (tx *Tx) Table(name []byte) (kv.Bucket, error) {
	if tx.tx.Writable() {
		b, err := tx.tx.CreateBucketIfNotExists(name)
		if err != nil {
			return nil, err
		}
		return &Bucket{bucket: b}, nil
	}

	b := tx.tx.Bucket(name)
	if b == nil {
		return &Bucket{bucket: nil}, nil
	}
	return &Bucket{bucket: b}, nil
}

// Bucket wraps a *bolt.Bucket to implement kv.Bucket.
type Bucket struct {
	bucket *bolt.Bucket
}

// Get implements kv.Bucket.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	if b.bucket == nil {
		return nil, kv.ErrKeyNotFound
	}
	val := b.bucket.Get(key)
	if val == nil {
		return nil, kv.ErrKeyNotFound
	}
	// bbolt's returned slice is only valid for the life of the
	// transaction; copy it so callers can hold onto it afterwards.
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Put implements kv.Bucket.
func (b *Bucket) Put(key, value []byte) error {
	if b.bucket == nil {
		return kv.ErrTxNotWritable
	}
	if err := b.bucket.Put(key, value); err != nil {
		if err == bolt.ErrTxNotWritable {
			return kv.ErrTxNotWritable
		}
		return err
	}
	return nil
}

// Delete implements kv.Bucket.
func (b *Bucket) Delete(key []byte) error {
	if b.bucket == nil {
		return kv.ErrTxNotWritable
	}
	if err := b.bucket.Delete(key); err != nil {
		if err == bolt.ErrTxNotWritable {
			return kv.ErrTxNotWritable
		}
		return err
	}
	return nil
}

// ForwardCursor implements kv.Bucket.
func (b *Bucket) ForwardCursor(opts ...kv.CursorOption) (kv.Cursor, error) {
	seek, exclusive := kv.NewCursorConfig(opts...)

	if b.bucket == nil {
		return &Cursor{done: true}, nil
	}

	c := b.bucket.Cursor()
	var k, v []byte
	if seek == nil {
		k, v = c.First()
	} else {
		k, v = c.Seek(seek)
		if exclusive && k != nil && bytesEqual(k, seek) {
			k, v = c.Next()
		}
	}

	return &Cursor{cursor: c, k: k, v: v, started: true}, nil
}

func bytesEqual(a, b []byte) bool {
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

// Cursor wraps a *bolt.Cursor, pre-seeded to its first element, to
// implement kv.Cursor's "peek then advance" Next semantics over bbolt's
// "advance then peek" Cursor.
type Cursor struct {
	cursor  *bolt.Cursor
	k, v    []byte
	started bool
	done    bool
}

// Next implements kv.Cursor.
func (c *Cursor) Next() ([]byte, []byte) {
	if c.done {
		return nil, nil
	}
	if c.k == nil {
		c.done = true
		return nil, nil
	}
	k, v := c.k, c.v
	c.k, c.v = c.cursor.Next()
	return k, v
}

// Close implements kv.Cursor. bbolt cursors need no explicit release.
func (c *Cursor) Close() error {
	return nil
}
