package dream

import (
	"bytes"
	"encoding/hex"
	"errors"

	"github.com/twmb/murmur3"

	"github.com/mentalblood0/dream/errs"
)

var (
	errDigestEmpty    = errors.New("blob is empty")
	errDigestTooLarge = errors.New("blob exceeds MaxBlobSize")
	errIdWrongWidth   = errors.New("id is not IdSize bytes")
)

// IdSize is the fixed width, in bytes, of every Id in the store.
const IdSize = 16

// MaxBlobSize bounds the length of any object or tag blob accepted by
// Digest. It exists because the store has no streaming path: a blob is
// always held in memory whole.
const MaxBlobSize = 1 << 20 // 1 MiB

// Id is a 16-byte content fingerprint. Ids compare and sort
// byte-lexicographically, which is exactly the ordering the underlying
// key-value store uses for its keys, so an Id can be concatenated
// directly into a key without any further encoding step.
type Id [IdSize]byte

// Bytes returns id's underlying bytes. The caller must not modify the
// returned slice.
func (id Id) Bytes() []byte {
	return id[:]
}

// String renders id as lowercase hex. It is deliberately undashed so it
// is never mistaken for a UUID: an Id is a content hash, not an
// allocated identity.
func (id Id) String() string {
	return hex.EncodeToString(id[:])
}

// Compare returns -1, 0, or 1 as id sorts before, equal to, or after
// other, using the same byte order the key-value store uses for keys.
func (id Id) Compare(other Id) int {
	return bytes.Compare(id[:], other[:])
}

// IsZero reports whether id is the zero value (16 zero bytes). The zero
// Id is used as the inclusive lower bound of a scan with no pagination
// cursor.
func (id Id) IsZero() bool {
	return id == Id{}
}

// IdFromBytes copies b into an Id. It returns CodeInvalidInput if b is
// not exactly IdSize bytes.
func IdFromBytes(b []byte) (Id, error) {
	var id Id
	if len(b) != IdSize {
		return id, errs.New(errs.CodeInvalidInput, "IdFromBytes", errIdWrongWidth)
	}
	copy(id[:], b)
	return id, nil
}

// IdFromHex parses a hex string produced by Id.String back into an Id.
func IdFromHex(s string) (Id, error) {
	var id Id
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, errs.New(errs.CodeInvalidInput, "IdFromHex", err)
	}
	return IdFromBytes(b)
}

// Digest derives the Id of blob via a 128-bit murmur3 hash, folded into
// big-endian bytes. Two distinct blobs collide with negligible
// probability at the populations this store is designed for;
// collisions are not detected or handled.
func Digest(blob []byte) (Id, error) {
	var id Id
	if len(blob) == 0 {
		return id, errs.New(errs.CodeInvalidInput, "Digest", errDigestEmpty)
	}
	if len(blob) > MaxBlobSize {
		return id, errs.New(errs.CodeInvalidInput, "Digest", errDigestTooLarge)
	}

	h1, h2 := murmur3.Sum128(blob)
	putUint64(id[0:8], h1)
	putUint64(id[8:16], h2)
	return id, nil
}

func putUint64(b []byte, v uint64) {
	b[0] = byte(v >> 56)
	b[1] = byte(v >> 48)
	b[2] = byte(v >> 40)
	b[3] = byte(v >> 32)
	b[4] = byte(v >> 24)
	b[5] = byte(v >> 16)
	b[6] = byte(v >> 8)
	b[7] = byte(v)
}
