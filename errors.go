package dream

import "errors"

var (
	errDecrementAbsentCount       = errors.New("decrement applied to an absent or insufficient count")
	errEmptyPresentTags           = errors.New("find requires at least one present tag")
	errUpdateDroppedWithoutCommit = errors.New("update transaction returned without calling Commit")
	errAddRequiresAtLeastOneTag   = errors.New("add requires at least one tag")
)
