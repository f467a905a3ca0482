package dream_test

import (
	"context"
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentalblood0/dream"
)

// populate loads n objects, each bearing tagsPerObject tags drawn from
// an alphabet of alphabetSize tags, in one transaction, then checkpoints
// so the timed section never pays for the load's buffered writes.
func populate(b *testing.B, ix *dream.Index, n, alphabetSize, tagsPerObject int) {
	b.Helper()
	rng := rand.New(rand.NewSource(42))

	err := ix.Update(context.Background(), func(tx *dream.Tx) error {
		for i := 0; i < n; i++ {
			object := dream.Raw([]byte("object-" + strconv.Itoa(i)))
			perm := rng.Perm(alphabetSize)
			tags := make([]dream.BlobOrId, tagsPerObject)
			for j := range tags {
				tags[j] = dream.Raw([]byte("tag-" + strconv.Itoa(perm[j])))
			}
			if err := tx.Add(object, tags...); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	require.NoError(b, err)
	require.NoError(b, ix.Checkpoint(context.Background()))
}

func benchQuery(present []string, absent ...string) dream.Query {
	q := dream.Query{}
	for _, p := range present {
		q.Present = append(q.Present, dream.Raw([]byte(p)))
	}
	for _, a := range absent {
		q.Absent = append(q.Absent, dream.Raw([]byte(a)))
	}
	return q
}

func BenchmarkAdd(b *testing.B) {
	ix := newTestIndex(b)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		object := dream.Raw([]byte("object-" + strconv.Itoa(i)))
		err := ix.Update(ctx, func(tx *dream.Tx) error {
			if err := tx.Add(object,
				dream.Raw([]byte("tag-"+strconv.Itoa(i%16))),
				dream.Raw([]byte("tag-"+strconv.Itoa((i+1)%16))),
				dream.Raw([]byte("tag-"+strconv.Itoa((i+2)%16))),
			); err != nil {
				return err
			}
			return tx.Commit()
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindSingleTag(b *testing.B) {
	ix := newTestIndex(b)
	populate(b, ix, 5000, 16, 3)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := ix.View(ctx, func(tx *dream.Tx) error {
			_, err := tx.Find(benchQuery([]string{"tag-3"}))
			return err
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindTwoTagIntersection(b *testing.B) {
	ix := newTestIndex(b)
	populate(b, ix, 5000, 16, 3)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := ix.View(ctx, func(tx *dream.Tx) error {
			_, err := tx.Find(benchQuery([]string{"tag-3", "tag-7"}))
			return err
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindThreeTagsWithAbsent(b *testing.B) {
	ix := newTestIndex(b)
	populate(b, ix, 5000, 16, 5)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := ix.View(ctx, func(tx *dream.Tx) error {
			_, err := tx.Find(benchQuery([]string{"tag-1", "tag-5", "tag-9"}, "tag-12"))
			return err
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFindPaginated(b *testing.B) {
	ix := newTestIndex(b)
	populate(b, ix, 5000, 16, 3)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var startAfter *dream.Id
		for {
			q := benchQuery([]string{"tag-3", "tag-7"})
			q.Limit = 50
			q.StartAfter = startAfter

			var page dream.FindResult
			err := ix.View(ctx, func(tx *dream.Tx) error {
				var err error
				page, err = tx.Find(q)
				return err
			})
			if err != nil {
				b.Fatal(err)
			}
			if page.Next == nil {
				break
			}
			startAfter = page.Next
		}
	}
}
