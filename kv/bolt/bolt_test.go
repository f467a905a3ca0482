package bolt_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentalblood0/dream/kv"
	"github.com/mentalblood0/dream/kv/bolt"
)

// newTestStore returns a fresh bbolt file in a temp directory, opened
// and ready, with a cleanup func.
func newTestStore(t *testing.T) *bolt.Store {
	t.Helper()

	f, err := os.CreateTemp("", "dream-bolt-")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())
	require.NoError(t, os.Remove(path))

	store := bolt.NewStore(path)
	require.NoError(t, store.Open(context.Background()))

	t.Cleanup(func() {
		store.Close()
		os.Remove(path)
	})
	return store
}

func TestPutGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		return b.Put([]byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		v, err := b.Get([]byte("k"))
		require.NoError(t, err)
		require.Equal(t, []byte("v"), v)
		return nil
	})
	require.NoError(t, err)

	err = store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		return b.Delete([]byte("k"))
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		_, err = b.Get([]byte("k"))
		require.ErrorIs(t, err, kv.ErrKeyNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestViewRejectsWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		_, err := tx.Table([]byte("t"))
		return err
	}))

	err := store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		return b.Put([]byte("k"), []byte("v"))
	})
	require.ErrorIs(t, err, kv.ErrTxNotWritable)
}

func TestForwardCursorOrderAndSeek(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keys := [][]byte{{0x01}, {0x02}, {0x03}, {0x04}}
	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		for _, k := range keys {
			if err := b.Put(k, k); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)

		cur, err := b.ForwardCursor()
		require.NoError(t, err)
		defer cur.Close()

		var got [][]byte
		for k, _ := cur.Next(); k != nil; k, _ = cur.Next() {
			got = append(got, k)
		}
		require.Len(t, got, 4)
		require.Equal(t, keys[0], got[0])
		require.Equal(t, keys[3], got[3])
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)

		cur, err := b.ForwardCursor(kv.WithSeek([]byte{0x02}), kv.WithExclusiveSeek())
		require.NoError(t, err)
		defer cur.Close()

		k, _ := cur.Next()
		require.Equal(t, []byte{0x03}, k)
		return nil
	}))
}

func TestClearEmptiesAllBuckets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		return b.Put([]byte("k"), []byte("v"))
	}))

	require.NoError(t, store.Clear(ctx))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Table([]byte("t"))
		require.NoError(t, err)
		_, err = b.Get([]byte("k"))
		require.ErrorIs(t, err, kv.ErrKeyNotFound)
		return nil
	}))
}

func TestCheckpointIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Checkpoint(context.Background()))
	require.NoError(t, store.Checkpoint(context.Background()))
}
