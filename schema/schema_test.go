package schema_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentalblood0/dream/errs"
	"github.com/mentalblood0/dream/schema"
)

func TestPostingKeyRoundTrips(t *testing.T) {
	var leading, trailing [16]byte
	leading[0], leading[15] = 0xAB, 0xCD
	trailing[0], trailing[15] = 0x01, 0xFF

	key := schema.PostingKey(leading, trailing)
	require.Len(t, key, 32)

	gotLeading, gotTrailing, err := schema.SplitPostingKey(key)
	require.NoError(t, err)
	require.Equal(t, leading, gotLeading)
	require.Equal(t, trailing, gotTrailing)
}

func TestSplitPostingKeyRejectsWrongWidth(t *testing.T) {
	_, _, err := schema.SplitPostingKey([]byte{1, 2, 3})
	require.Error(t, err)
	require.Equal(t, errs.CodeCorruption, errs.GetCode(err))
}

func TestCountRoundTrips(t *testing.T) {
	for _, n := range []uint32{0, 1, 42, 1 << 31} {
		encoded := schema.EncodeCount(n)
		require.Len(t, encoded, 4)

		decoded, err := schema.DecodeCount(encoded)
		require.NoError(t, err)
		require.Equal(t, n, decoded)
	}
}

func TestDecodeCountRejectsWrongWidth(t *testing.T) {
	_, err := schema.DecodeCount([]byte{1, 2, 3})
	require.Error(t, err)
	require.Equal(t, errs.CodeCorruption, errs.GetCode(err))
}

func TestPostingKeyOrdersByLeadingThenTrailing(t *testing.T) {
	var a, b [16]byte
	a[0] = 1
	b[0] = 2

	keyAHigh := schema.PostingKey(a, b)
	keyBLow := schema.PostingKey(b, a)
	require.Less(t, keyAHigh[0], keyBLow[0])
}
