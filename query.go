package dream

// BlobOrId is the polymorphic argument every public operation accepts
// for an object or a tag: either the raw content, which is hashed
// (and, inside a mutation, has its identity row written) on first use,
// or an Id the caller already resolved, which skips both. The interior
// of the package operates exclusively on Ids; this type exists only at
// the public edge.
type BlobOrId struct {
	blob []byte
	id   Id
	isId bool
}

// Raw wraps a blob to be hashed on first use.
func Raw(blob []byte) BlobOrId {
	return BlobOrId{blob: blob}
}

// ById wraps an already-resolved Id, skipping digesting.
func ById(id Id) BlobOrId {
	return BlobOrId{id: id, isId: true}
}

// Query describes a conjunctive search: objects bearing every tag in
// Present and none of the tags in Absent.
type Query struct {
	// Present must contain at least one tag.
	Present []BlobOrId
	// Absent, if non-empty, filters out any candidate bearing one of
	// these tags.
	Absent []BlobOrId
	// StartAfter, if set, resumes a paginated scan strictly after this
	// object Id (exclusive).
	StartAfter *Id
	// Limit bounds the number of Ids returned. Zero means unbounded.
	Limit int
}

// FindResult is the result of a Find call.
type FindResult struct {
	// Ids is the page of matching object Ids, in ascending order.
	Ids []Id
	// Next is the StartAfter to pass to continue the scan. It is nil when
	// the scan ended before reaching Limit; a page that stops at Limit
	// always carries a Next, even if no further match exists, in which
	// case the following call returns an empty page.
	Next *Id
}
