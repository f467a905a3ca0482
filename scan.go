package dream

import (
	"sort"

	"github.com/mentalblood0/dream/errs"
	"github.com/mentalblood0/dream/kv"
	"github.com/mentalblood0/dream/schema"
)

// cursorState is a single live range cursor over the tag-to-object
// table, pinned to one present tag. Its position is the trailing 16
// bytes of the last key it read, the object Id, tracked in obj. Once a
// step leaves the cursor's tag prefix, live is false and it is never
// advanced again.
type cursorState struct {
	tagId Id
	cur   kv.Cursor
	live  bool
	obj   Id
}

// advance reads the next tag-to-object entry and updates obj/live. It
// is called once right after the cursor is opened (to load its first
// position) and again on every subsequent step.
func (cs *cursorState) advance() error {
	k, _ := cs.cur.Next()
	if k == nil {
		cs.live = false
		return nil
	}
	leading, trailing, err := schema.SplitPostingKey(k)
	if err != nil {
		return err
	}
	if leading != cs.tagId {
		cs.live = false
		return nil
	}
	cs.obj = trailing
	cs.live = true
	return nil
}

// openCursor opens a tag-to-object cursor for tagId seeked at seek
// (inclusive, unless exclusive is set) and loads its first position.
func (t *Tx) openCursor(tagId, seek Id, exclusive bool) (*cursorState, error) {
	fwd, err := t.tx.Table(schema.TagToObject)
	if err != nil {
		return nil, errs.New(errs.CodeKVFailure, "Tx.openCursor", err)
	}

	opts := []kv.CursorOption{kv.WithSeek(schema.PostingKey(tagId, seek))}
	if exclusive {
		opts = append(opts, kv.WithExclusiveSeek())
	}
	cur, err := fwd.ForwardCursor(opts...)
	if err != nil {
		return nil, errs.New(errs.CodeKVFailure, "Tx.openCursor", err)
	}

	cs := &cursorState{tagId: tagId, cur: cur}
	if err := cs.advance(); err != nil {
		return nil, err
	}
	return cs, nil
}

// admitsAbsent reports whether object passes the absent-tag filter:
// none of absentIds (pre-sorted descending by cardinality) has a
// posting for object. The first hit short-circuits.
func (t *Tx) admitsAbsent(object Id, absentIds []Id) (bool, error) {
	for _, a := range absentIds {
		has, err := t.hasPosting(a, object)
		if err != nil {
			return false, err
		}
		if has {
			return false, nil
		}
	}
	return true, nil
}

// scanner is the multi-cursor AND-scan state machine: one cursor per
// present tag, coordinated by two rotating indices so that no posting
// list is ever materialised in memory. It is deliberately an explicit
// struct with a step-by-step Next method, not a goroutine or generator:
// the rotating indices and the termination conditions ARE the
// algorithm, and hiding them behind syntactic sugar obscures them.
type scanner struct {
	tx      *Tx
	tags    []Id // present tag ids, ascending cardinality; tags[0] is the primary
	cursors []*cursorState
	opened  int
	i1, i2  int

	terminated bool
}

func newScanner(tx *Tx, tags []Id) *scanner {
	return &scanner{
		tx:      tx,
		tags:    tags,
		cursors: make([]*cursorState, len(tags)),
		i1:      0,
		i2:      1,
	}
}

// init positions the primary cursor (the rarest tag's) at
// tags[0]||start.
func (s *scanner) init(start Id, exclusive bool) error {
	c0, err := s.tx.openCursor(s.tags[0], start, exclusive)
	if err != nil {
		return err
	}
	s.cursors[0] = c0
	s.opened = 1
	if !c0.live {
		s.terminated = true
	}
	return nil
}

// frontier returns the largest object Id among currently opened
// cursors, the lower bound a newly lazily-created cursor must start at:
// no match can be smaller than a position some cursor already passed.
func (s *scanner) frontier() Id {
	var max Id
	first := true
	for _, cs := range s.cursors {
		if cs == nil {
			continue
		}
		if first || cs.obj.Compare(max) > 0 {
			max = cs.obj
			first = false
		}
	}
	return max
}

// openSlot lazily creates the cursor for tags[idx], seeded at the
// current frontier, if it does not exist yet.
func (s *scanner) openSlot(idx int) error {
	if s.cursors[idx] != nil {
		return nil
	}
	cs, err := s.tx.openCursor(s.tags[idx], s.frontier(), false)
	if err != nil {
		return err
	}
	s.cursors[idx] = cs
	s.opened++
	if !cs.live {
		s.terminated = true
	}
	return nil
}

// Next runs the step loop until it either emits the next matching
// object Id (ok=true) or the scan terminates (ok=false, err=nil).
// Every iteration either emits a match and advances the primary
// cursor, or strictly advances at least one cursor within its finite
// posting range, so the scan halts.
func (s *scanner) Next() (obj Id, ok bool, err error) {
	if s.terminated {
		return Id{}, false, nil
	}
	k := len(s.tags)

	for {
		// Step 1: match check.
		if s.opened == k && s.cursors[0].live {
			matched := true
			o0 := s.cursors[0].obj
			for i := 1; i < k; i++ {
				if !s.cursors[i].live || s.cursors[i].obj != o0 {
					matched = false
					break
				}
			}
			if matched {
				candidate := o0
				if err := s.cursors[0].advance(); err != nil {
					return Id{}, false, err
				}
				if !s.cursors[0].live {
					s.terminated = true
				}
				s.i1, s.i2 = 0, 1

				return candidate, true, nil
			}
		}
		if s.terminated {
			return Id{}, false, nil
		}

		// Step 2: lazy cursor creation.
		if err := s.openSlot(s.i1); err != nil {
			return Id{}, false, err
		}
		if s.terminated {
			return Id{}, false, nil
		}
		if err := s.openSlot(s.i2); err != nil {
			return Id{}, false, err
		}
		if s.terminated {
			return Id{}, false, nil
		}

		// Step 3: pairwise catch-up.
		c1, c2 := s.cursors[s.i1], s.cursors[s.i2]
		for c2.live && c2.obj.Compare(c1.obj) < 0 {
			if err := c2.advance(); err != nil {
				return Id{}, false, err
			}
		}
		if !c2.live {
			s.terminated = true
			return Id{}, false, nil
		}

		// Step 4: dispatch. Equal positions rotate the pair onward;
		// otherwise c2 has established a new frontier and the primary
		// must be re-seated at or past it.
		if c2.obj == c1.obj {
			s.i1 = (s.i1 + 1) % k
			s.i2 = (s.i2 + 1) % k
			continue
		}

		c0 := s.cursors[0]
		for c0.live && c0.obj.Compare(c2.obj) < 0 {
			if err := c0.advance(); err != nil {
				return Id{}, false, err
			}
		}
		if !c0.live {
			s.terminated = true
			return Id{}, false, nil
		}
		s.i1, s.i2 = 0, 1
	}
}

// cardinalitiesOrEmpty returns the cardinality of each tag id, in the
// same order. ok is false the moment any tag has no recorded
// cardinality at all: such a tag has no postings, so the caller must
// return an empty result without scanning.
func (t *Tx) cardinalitiesOrEmpty(ids []Id) (counts []uint32, ok bool, err error) {
	counts = make([]uint32, len(ids))
	for i, id := range ids {
		n, known, err := t.tagCardinality(id)
		if err != nil {
			return nil, false, err
		}
		if !known {
			return nil, false, nil
		}
		counts[i] = n
	}
	return counts, true, nil
}

// sortedAbsentIds resolves absent tag blobs/ids and orders them by
// descending cardinality, most common first, so a common absent tag
// rejects a candidate fastest. Unknown-cardinality tags
// (never recorded) sort last; they never match any posting, so their
// position does not affect correctness.
func (t *Tx) sortedAbsentIds(absent []BlobOrId) ([]Id, error) {
	ids := make([]Id, len(absent))
	counts := make([]uint32, len(absent))
	for i, a := range absent {
		id, err := resolve(a)
		if err != nil {
			return nil, err
		}
		ids[i] = id
		n, _, err := t.tagCardinality(id)
		if err != nil {
			return nil, err
		}
		counts[i] = n
	}
	sort.Stable(sort.Reverse(byCardinality{ids: ids, counts: counts}))
	return ids, nil
}

// Find answers q against the index: every object bearing all of
// q.Present and none of q.Absent. Results are returned in ascending
// object Id order, bounded by q.Limit.
func (t *Tx) Find(q Query) (FindResult, error) {
	if len(q.Present) == 0 {
		return FindResult{}, errs.New(errs.CodeInvalidInput, "Tx.Find", errEmptyPresentTags)
	}

	presentIds := make([]Id, len(q.Present))
	for i, p := range q.Present {
		id, err := resolve(p)
		if err != nil {
			return FindResult{}, err
		}
		presentIds[i] = id
	}

	counts, known, err := t.cardinalitiesOrEmpty(presentIds)
	if err != nil {
		return FindResult{}, err
	}
	if !known {
		return FindResult{}, nil
	}

	absentIds, err := t.sortedAbsentIds(q.Absent)
	if err != nil {
		return FindResult{}, err
	}

	var start Id
	exclusive := false
	if q.StartAfter != nil {
		start = *q.StartAfter
		exclusive = true
	}

	var emit func(yield func(Id) (more bool, err error)) error

	if len(presentIds) == 1 {
		emit = func(yield func(Id) (bool, error)) error {
			return t.singleTagScan(presentIds[0], start, exclusive, absentIds, yield)
		}
	} else {
		sort.Sort(byCardinality{ids: presentIds, counts: counts})
		emit = func(yield func(Id) (bool, error)) error {
			return t.multiTagScan(presentIds, start, exclusive, absentIds, yield)
		}
	}

	var result FindResult
	count := 0
	stoppedEarly := false
	err = emit(func(id Id) (bool, error) {
		result.Ids = append(result.Ids, id)
		count++
		if q.Limit > 0 && count >= q.Limit {
			stoppedEarly = true
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return FindResult{}, err
	}

	if stoppedEarly && len(result.Ids) > 0 {
		last := result.Ids[len(result.Ids)-1]
		result.Next = &last
	}
	return result, nil
}

// singleTagScan is a direct range walk over one tag's posting list
// with absent-tag rejection at emission.
func (t *Tx) singleTagScan(tagId, start Id, exclusive bool, absentIds []Id, yield func(Id) (bool, error)) error {
	cs, err := t.openCursor(tagId, start, exclusive)
	if err != nil {
		return err
	}
	for cs.live {
		admits, err := t.admitsAbsent(cs.obj, absentIds)
		if err != nil {
			return err
		}
		if admits {
			more, err := yield(cs.obj)
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		if err := cs.advance(); err != nil {
			return err
		}
	}
	return nil
}

// multiTagScan intersects the posting lists of presentIds (pre-sorted
// ascending by cardinality) via the scanner state machine.
func (t *Tx) multiTagScan(presentIds []Id, start Id, exclusive bool, absentIds []Id, yield func(Id) (bool, error)) error {
	s := newScanner(t, presentIds)
	if err := s.init(start, exclusive); err != nil {
		return err
	}

	for {
		obj, ok, err := s.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		admits, err := t.admitsAbsent(obj, absentIds)
		if err != nil {
			return err
		}
		if !admits {
			continue
		}
		more, err := yield(obj)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

type byCardinality struct {
	ids    []Id
	counts []uint32
}

func (b byCardinality) Len() int      { return len(b.ids) }
func (b byCardinality) Swap(i, j int) {
	b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
	b.counts[i], b.counts[j] = b.counts[j], b.counts[i]
}
func (b byCardinality) Less(i, j int) bool { return b.counts[i] < b.counts[j] }
