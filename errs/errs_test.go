package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mentalblood0/dream/errs"
)

func TestGetCode(t *testing.T) {
	t.Run("plain error has no code", func(t *testing.T) {
		require.Equal(t, errs.Code(""), errs.GetCode(errors.New("boom")))
	})

	t.Run("single layer returns its own code", func(t *testing.T) {
		e := errs.New(errs.CodeAbsent, "Tx.Resolve", errors.New("not found"))
		require.Equal(t, errs.CodeAbsent, errs.GetCode(e))
	})

	t.Run("outer code wins over a wrapped inner code", func(t *testing.T) {
		inner := errs.New(errs.CodeInvalidInput, "Digest", errors.New("empty blob"))
		outer := errs.New(errs.CodeKVFailure, "Tx.Add", inner)
		require.Equal(t, errs.CodeKVFailure, errs.GetCode(outer))
	})

	t.Run("empty outer code falls through to the wrapped error", func(t *testing.T) {
		inner := errs.New(errs.CodeCorruption, "schema.SplitPostingKey", errors.New("bad width"))
		outer := &errs.Error{Op: "Tx.GetTags", Err: inner}
		require.Equal(t, errs.CodeCorruption, errs.GetCode(outer))
	})
}

func TestIs(t *testing.T) {
	e := errs.New(errs.CodeAbsent, "Tx.Delete", errors.New("not found"))
	require.True(t, errs.Is(e, errs.CodeAbsent))
	require.False(t, errs.Is(e, errs.CodeCorruption))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	e := errs.New(errs.CodeKVFailure, "Index.Checkpoint", cause)
	require.True(t, errors.Is(e, cause))
	require.Equal(t, "Index.Checkpoint: disk full", e.Error())
}
