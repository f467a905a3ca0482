// Package schema defines the on-disk layout of the tag index: the
// posting, identity, and count tables (plus meta, for the version
// marker) and the fixed-width key encodings that make range scans over
// "all objects for a tag" or "all tags for an object" a simple
// bucket-prefix walk.
package schema

import (
	"encoding/binary"
	"errors"

	"github.com/mentalblood0/dream/errs"
)

var (
	errWrongKeyWidth   = errors.New("posting key is not 32 bytes")
	errWrongCountWidth = errors.New("count value is not 4 bytes")
)

// Table names double as bbolt bucket names.
var (
	TagToObject = []byte("tag_to_object")
	ObjectToTag = []byte("object_to_tag")
	IdToBlob    = []byte("id_to_blob")
	TagCount    = []byte("tag_count")
	ObjectCount = []byte("object_count")
	Meta        = []byte("meta")
)

// SchemaVersionKey is the fixed key in the Meta table holding the
// big-endian uint32 on-disk schema version.
var SchemaVersionKey = []byte("schema_version")

// CurrentVersion is written to SchemaVersionKey the first time a store
// is opened.
const CurrentVersion uint32 = 1

const idSize = 16

// PostingKey encodes the key used in TagToObject (tag||object) and
// ObjectToTag (object||tag): two 16-byte Ids concatenated, leading then
// trailing, with no separator. Both halves are fixed width so
// concatenation is unambiguous.
func PostingKey(leading, trailing [16]byte) []byte {
	key := make([]byte, idSize*2)
	copy(key[:idSize], leading[:])
	copy(key[idSize:], trailing[:])
	return key
}

// SplitPostingKey reverses PostingKey, returning the leading and
// trailing 16-byte halves. It returns CodeCorruption if key is not
// exactly 32 bytes, which indicates the store itself is damaged (a
// well-formed key of the wrong width should never have been written).
func SplitPostingKey(key []byte) (leading, trailing [16]byte, err error) {
	if len(key) != idSize*2 {
		return leading, trailing, errs.New(errs.CodeCorruption, "schema.SplitPostingKey", errWrongKeyWidth)
	}
	copy(leading[:], key[:idSize])
	copy(trailing[:], key[idSize:])
	return leading, trailing, nil
}

// EncodeCount encodes a 32-bit count as big-endian bytes.
func EncodeCount(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

// DecodeCount decodes a big-endian 32-bit count. It returns
// CodeCorruption if b is not exactly 4 bytes.
func DecodeCount(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, errs.New(errs.CodeCorruption, "schema.DecodeCount", errWrongCountWidth)
	}
	return binary.BigEndian.Uint32(b), nil
}
