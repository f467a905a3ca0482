package dream

import (
	"github.com/mentalblood0/dream/errs"
	"github.com/mentalblood0/dream/kv"
	"github.com/mentalblood0/dream/schema"
)

// Tx is the public transaction façade: every mutating or read operation
// the library exposes hangs off one of these, and a sequence of calls
// against the same Tx shares one underlying kv.Tx, so later calls
// observe earlier writes within the same transaction.
type Tx struct {
	tx        kv.Tx
	committed bool
}

func newTx(tx kv.Tx) *Tx {
	return &Tx{tx: tx}
}

// resolve turns a BlobOrId into an Id, digesting raw blobs but never
// writing an identity row. Used on read paths (Find, HasTag, GetTags)
// where the tag or object in question may not exist at all.
func resolve(v BlobOrId) (Id, error) {
	if v.isId {
		return v.id, nil
	}
	return Digest(v.blob)
}

// resolveAndRecord turns a BlobOrId into an Id, and for raw blobs also
// writes (or refreshes) its identity row so the Id remains resolvable
// via Resolve for as long as any posting references it. Used on write
// paths (Add).
func (t *Tx) resolveAndRecord(v BlobOrId) (Id, error) {
	id, err := resolve(v)
	if err != nil {
		return id, err
	}
	if v.isId {
		return id, nil
	}

	blobs, err := t.tx.Table(schema.IdToBlob)
	if err != nil {
		return id, errs.New(errs.CodeKVFailure, "Tx.resolveAndRecord", err)
	}
	if err := blobs.Put(id.Bytes(), v.blob); err != nil {
		return id, errs.New(errs.CodeKVFailure, "Tx.resolveAndRecord", err)
	}
	return id, nil
}

// Resolve returns the original blob for id, or CodeAbsent if no
// identity row exists for it.
func (t *Tx) Resolve(id Id) ([]byte, error) {
	blobs, err := t.tx.Table(schema.IdToBlob)
	if err != nil {
		return nil, errs.New(errs.CodeKVFailure, "Tx.Resolve", err)
	}
	v, err := blobs.Get(id.Bytes())
	if err != nil {
		if err == kv.ErrKeyNotFound {
			return nil, errs.New(errs.CodeAbsent, "Tx.Resolve", err)
		}
		return nil, errs.New(errs.CodeKVFailure, "Tx.Resolve", err)
	}
	return v, nil
}

// HasTag reports whether object bears tag.
func (t *Tx) HasTag(object, tag BlobOrId) (bool, error) {
	objectId, err := resolve(object)
	if err != nil {
		return false, err
	}
	tagId, err := resolve(tag)
	if err != nil {
		return false, err
	}
	return t.hasPosting(tagId, objectId)
}

func (t *Tx) hasPosting(tagId, objectId Id) (bool, error) {
	fwd, err := t.tx.Table(schema.TagToObject)
	if err != nil {
		return false, errs.New(errs.CodeKVFailure, "Tx.hasPosting", err)
	}
	_, err = fwd.Get(schema.PostingKey(tagId, objectId))
	if err == nil {
		return true, nil
	}
	if err == kv.ErrKeyNotFound {
		return false, nil
	}
	return false, errs.New(errs.CodeKVFailure, "Tx.hasPosting", err)
}

// GetTags returns every tag Id currently attached to object, in
// ascending order (the natural order of an object-to-tag prefix scan).
func (t *Tx) GetTags(object BlobOrId) ([]Id, error) {
	objectId, err := resolve(object)
	if err != nil {
		return nil, err
	}

	rev, err := t.tx.Table(schema.ObjectToTag)
	if err != nil {
		return nil, errs.New(errs.CodeKVFailure, "Tx.GetTags", err)
	}
	cur, err := rev.ForwardCursor(kv.WithSeek(objectId.Bytes()))
	if err != nil {
		return nil, errs.New(errs.CodeKVFailure, "Tx.GetTags", err)
	}
	defer cur.Close()

	var tags []Id
	for k, _ := cur.Next(); k != nil; k, _ = cur.Next() {
		leading, trailing, err := schema.SplitPostingKey(k)
		if err != nil {
			return nil, err
		}
		if leading != objectId {
			break
		}
		tags = append(tags, trailing)
	}
	return tags, nil
}

// Add attaches every tag in tags to object, resolving and recording
// identity rows for any raw blobs along the way. Re-adding a tag
// already attached to object is a no-op for that tag; each tag is
// handled independently, so a partially-overlapping call still adds
// the tags that were missing. tags must be non-empty: an object with
// no tags would have no object-count row, leaving it resolvable
// forever but never reachable through Delete.
func (t *Tx) Add(object BlobOrId, tags ...BlobOrId) error {
	if len(tags) == 0 {
		return errs.New(errs.CodeInvalidInput, "Tx.Add", errAddRequiresAtLeastOneTag)
	}

	objectId, err := t.resolveAndRecord(object)
	if err != nil {
		return err
	}

	var added uint32
	for _, tag := range tags {
		tagId, err := t.resolveAndRecord(tag)
		if err != nil {
			return err
		}

		exists, err := t.hasPosting(tagId, objectId)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		if err := t.putPosting(tagId, objectId); err != nil {
			return err
		}
		if err := t.incrTagCount(tagId); err != nil {
			return err
		}
		added++
	}

	if added > 0 {
		if err := t.incrObjectCount(objectId, added); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tx) putPosting(tagId, objectId Id) error {
	fwd, err := t.tx.Table(schema.TagToObject)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.putPosting", err)
	}
	if err := fwd.Put(schema.PostingKey(tagId, objectId), nil); err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.putPosting", err)
	}

	rev, err := t.tx.Table(schema.ObjectToTag)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.putPosting", err)
	}
	if err := rev.Put(schema.PostingKey(objectId, tagId), nil); err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.putPosting", err)
	}
	return nil
}

func (t *Tx) deletePosting(tagId, objectId Id) error {
	fwd, err := t.tx.Table(schema.TagToObject)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.deletePosting", err)
	}
	if err := fwd.Delete(schema.PostingKey(tagId, objectId)); err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.deletePosting", err)
	}

	rev, err := t.tx.Table(schema.ObjectToTag)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.deletePosting", err)
	}
	if err := rev.Delete(schema.PostingKey(objectId, tagId)); err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.deletePosting", err)
	}
	return nil
}

// Delete removes object and every posting that references it.
func (t *Tx) Delete(object BlobOrId) error {
	objectId, err := resolve(object)
	if err != nil {
		return err
	}

	objectCounts, err := t.tx.Table(schema.ObjectCount)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.Delete", err)
	}
	if _, err := objectCounts.Get(objectId.Bytes()); err != nil {
		if err == kv.ErrKeyNotFound {
			return errs.New(errs.CodeAbsent, "Tx.Delete", err)
		}
		return errs.New(errs.CodeKVFailure, "Tx.Delete", err)
	}

	rev, err := t.tx.Table(schema.ObjectToTag)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.Delete", err)
	}
	cur, err := rev.ForwardCursor(kv.WithSeek(objectId.Bytes()))
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.Delete", err)
	}

	var tagIds []Id
	for k, _ := cur.Next(); k != nil; k, _ = cur.Next() {
		leading, trailing, err := schema.SplitPostingKey(k)
		if err != nil {
			return err
		}
		if leading != objectId {
			break
		}
		tagIds = append(tagIds, trailing)
	}
	// collect then mutate: the cursor must not be outlived by writes to
	// the bucket it is walking.
	cur.Close()

	for _, tagId := range tagIds {
		if err := t.deletePosting(tagId, objectId); err != nil {
			return err
		}
		if err := t.decrTagCount(tagId); err != nil {
			return err
		}
	}

	if err := objectCounts.Delete(objectId.Bytes()); err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.Delete", err)
	}
	blobs, err := t.tx.Table(schema.IdToBlob)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.Delete", err)
	}
	if err := blobs.Delete(objectId.Bytes()); err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.Delete", err)
	}
	return nil
}

// DeleteTags removes only the listed tags from object. If no postings
// remain for object afterwards, its identity and count rows are also
// removed.
func (t *Tx) DeleteTags(object BlobOrId, tags ...BlobOrId) error {
	objectId, err := resolve(object)
	if err != nil {
		return err
	}

	for _, tag := range tags {
		tagId, err := resolve(tag)
		if err != nil {
			return err
		}

		exists, err := t.hasPosting(tagId, objectId)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}

		if err := t.deletePosting(tagId, objectId); err != nil {
			return err
		}
		if err := t.decrTagCount(tagId); err != nil {
			return err
		}
		if err := t.decrObjectCount(objectId, 1); err != nil {
			return err
		}
	}

	remaining, err := t.GetTags(ById(objectId))
	if err != nil {
		return err
	}
	if len(remaining) == 0 {
		blobs, err := t.tx.Table(schema.IdToBlob)
		if err != nil {
			return errs.New(errs.CodeKVFailure, "Tx.DeleteTags", err)
		}
		if err := blobs.Delete(objectId.Bytes()); err != nil {
			return errs.New(errs.CodeKVFailure, "Tx.DeleteTags", err)
		}
		objectCounts, err := t.tx.Table(schema.ObjectCount)
		if err != nil {
			return errs.New(errs.CodeKVFailure, "Tx.DeleteTags", err)
		}
		if err := objectCounts.Delete(objectId.Bytes()); err != nil {
			return errs.New(errs.CodeKVFailure, "Tx.DeleteTags", err)
		}
	}
	return nil
}

// tagCardinality returns the stored count of postings bearing tagId,
// or (0, false) if the tag has no recorded postings at all.
func (t *Tx) tagCardinality(tagId Id) (uint32, bool, error) {
	counts, err := t.tx.Table(schema.TagCount)
	if err != nil {
		return 0, false, errs.New(errs.CodeKVFailure, "Tx.tagCardinality", err)
	}
	v, err := counts.Get(tagId.Bytes())
	if err != nil {
		if err == kv.ErrKeyNotFound {
			return 0, false, nil
		}
		return 0, false, errs.New(errs.CodeKVFailure, "Tx.tagCardinality", err)
	}
	n, err := schema.DecodeCount(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (t *Tx) incrTagCount(tagId Id) error {
	counts, err := t.tx.Table(schema.TagCount)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.incrTagCount", err)
	}
	n, _, err := t.tagCardinality(tagId)
	if err != nil {
		return err
	}
	return wrapKV("Tx.incrTagCount", counts.Put(tagId.Bytes(), schema.EncodeCount(n+1)))
}

// decrTagCount enforces the decrement-must-find-a-row contract:
// decrementing an absent count is corruption, not a silent no-op. When
// the count reaches zero the row (and the tag's identity row) is
// removed; a missing row means "zero, and the tag is gone".
func (t *Tx) decrTagCount(tagId Id) error {
	n, ok, err := t.tagCardinality(tagId)
	if err != nil {
		return err
	}
	if !ok || n == 0 {
		return errs.New(errs.CodeCorruption, "Tx.decrTagCount", errDecrementAbsentCount)
	}

	counts, err := t.tx.Table(schema.TagCount)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.decrTagCount", err)
	}

	if n == 1 {
		if err := counts.Delete(tagId.Bytes()); err != nil {
			return errs.New(errs.CodeKVFailure, "Tx.decrTagCount", err)
		}
		blobs, err := t.tx.Table(schema.IdToBlob)
		if err != nil {
			return errs.New(errs.CodeKVFailure, "Tx.decrTagCount", err)
		}
		if err := blobs.Delete(tagId.Bytes()); err != nil {
			return errs.New(errs.CodeKVFailure, "Tx.decrTagCount", err)
		}
		return nil
	}
	return wrapKV("Tx.decrTagCount", counts.Put(tagId.Bytes(), schema.EncodeCount(n-1)))
}

func (t *Tx) objectCardinality(objectId Id) (uint32, bool, error) {
	counts, err := t.tx.Table(schema.ObjectCount)
	if err != nil {
		return 0, false, errs.New(errs.CodeKVFailure, "Tx.objectCardinality", err)
	}
	v, err := counts.Get(objectId.Bytes())
	if err != nil {
		if err == kv.ErrKeyNotFound {
			return 0, false, nil
		}
		return 0, false, errs.New(errs.CodeKVFailure, "Tx.objectCardinality", err)
	}
	n, err := schema.DecodeCount(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (t *Tx) incrObjectCount(objectId Id, by uint32) error {
	if by == 0 {
		return nil
	}
	counts, err := t.tx.Table(schema.ObjectCount)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.incrObjectCount", err)
	}
	n, _, err := t.objectCardinality(objectId)
	if err != nil {
		return err
	}
	return wrapKV("Tx.incrObjectCount", counts.Put(objectId.Bytes(), schema.EncodeCount(n+by)))
}

func (t *Tx) decrObjectCount(objectId Id, by uint32) error {
	n, ok, err := t.objectCardinality(objectId)
	if err != nil {
		return err
	}
	if !ok || n < by {
		return errs.New(errs.CodeCorruption, "Tx.decrObjectCount", errDecrementAbsentCount)
	}

	counts, err := t.tx.Table(schema.ObjectCount)
	if err != nil {
		return errs.New(errs.CodeKVFailure, "Tx.decrObjectCount", err)
	}
	if n == by {
		return wrapKV("Tx.decrObjectCount", counts.Delete(objectId.Bytes()))
	}
	return wrapKV("Tx.decrObjectCount", counts.Put(objectId.Bytes(), schema.EncodeCount(n-by)))
}

func wrapKV(op string, err error) error {
	if err == nil {
		return nil
	}
	return errs.New(errs.CodeKVFailure, op, err)
}
