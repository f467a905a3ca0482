// Package dream implements a persistent tag index over an ordered,
// transactional, cursor-scannable key-value store: objects and tags are
// opaque byte blobs, identified by content hash, and a query finds every
// object bearing all of one set of tags and none of another.
package dream

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"github.com/mentalblood0/dream/errs"
	"github.com/mentalblood0/dream/kv"
	"github.com/mentalblood0/dream/logger"
	"github.com/mentalblood0/dream/schema"
)

// Index is the top-level handle on a tag index. It owns one kv.Store
// and is safe for concurrent use to the extent the underlying store is;
// the index itself adds no locking of its own.
type Index struct {
	store kv.Store
	log   *zap.Logger
}

// Open wraps an already-constructed, not-yet-open kv.Store, opens it,
// and stamps the schema version into the Meta table the first time the
// store is used.
func Open(ctx context.Context, store kv.Store) (*Index, error) {
	type opener interface {
		Open(context.Context) error
	}
	if o, ok := store.(opener); ok {
		if err := o.Open(ctx); err != nil {
			return nil, errs.New(errs.CodeKVFailure, "Open", err)
		}
	}

	ix := &Index{store: store, log: zap.NewNop()}
	if err := ix.ensureSchemaVersion(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

// WithLogger sets the logger attached to every transaction's context.
// The default is a no-op logger.
func (ix *Index) WithLogger(l *zap.Logger) {
	ix.log = l
}

func (ix *Index) ensureSchemaVersion(ctx context.Context) error {
	return ix.store.Update(ctx, func(kvTx kv.Tx) error {
		meta, err := kvTx.Table(schema.Meta)
		if err != nil {
			return errs.New(errs.CodeKVFailure, "Index.ensureSchemaVersion", err)
		}
		_, err = meta.Get(schema.SchemaVersionKey)
		if err == nil {
			return nil
		}
		if err != kv.ErrKeyNotFound {
			return errs.New(errs.CodeKVFailure, "Index.ensureSchemaVersion", err)
		}
		return wrapKV("Index.ensureSchemaVersion", meta.Put(schema.SchemaVersionKey, schema.EncodeCount(schema.CurrentVersion)))
	})
}

// Close releases the underlying store.
func (ix *Index) Close() error {
	type closer interface {
		Close() error
	}
	if c, ok := ix.store.(closer); ok {
		return c.Close()
	}
	return nil
}

// Clear removes every table's contents, leaving the store open and
// usable. It is meant for tests.
func (ix *Index) Clear(ctx context.Context) error {
	if err := ix.store.Clear(ctx); err != nil {
		return errs.New(errs.CodeKVFailure, "Index.Clear", err)
	}
	return ix.ensureSchemaVersion(ctx)
}

// Checkpoint forces any buffered writes to durable storage.
func (ix *Index) Checkpoint(ctx context.Context) error {
	if err := ix.store.Checkpoint(ctx); err != nil {
		return errs.New(errs.CodeKVFailure, "Index.Checkpoint", err)
	}
	return nil
}

// View runs fn in a read-only transaction. Writes attempted through it
// fail with CodeKVFailure, surfacing the store's ErrTxNotWritable.
func (ix *Index) View(ctx context.Context, fn func(*Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Index.View")
	defer span.Finish()
	ctx = logger.NewContextWithLogger(ctx, ix.log)

	return ix.store.View(ctx, func(kvTx kv.Tx) error {
		return fn(newTx(kvTx))
	})
}

// Update runs fn in a read-write transaction. The transaction requires
// an explicit commit: fn must call Tx.Commit before returning nil, or
// the whole transaction is dropped exactly as if fn had returned an
// error. This makes an accidental "forgot to persist" bug visible
// instead of silently committing whatever partial state fn left behind.
func (ix *Index) Update(ctx context.Context, fn func(*Tx) error) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Index.Update")
	defer span.Finish()
	ctx = logger.NewContextWithLogger(ctx, ix.log)

	return ix.store.Update(ctx, func(kvTx kv.Tx) error {
		tx := newTx(kvTx)
		if err := fn(tx); err != nil {
			return err
		}
		if !tx.committed {
			return errs.New(errs.CodeInvalidInput, "Index.Update", errUpdateDroppedWithoutCommit)
		}
		return nil
	})
}

// Commit marks the transaction for persistence. Aborting a transaction
// is implicit: simply return an error, or return nil without calling
// Commit, and every write made through it is rolled back.
func (t *Tx) Commit() error {
	t.committed = true
	return nil
}
