package extent

import (
	"github.com/google/btree"

	"github.com/objectfs/hsmextent/pkg/errors"
	"github.com/objectfs/hsmextent/pkg/types"
)

// DefaultDegree is the btree degree used when none is configured.
const DefaultDegree = 16

// Set is an offset-ordered collection of MarkableExtents.
//
// Active (unmarked) entries never overlap. Marked entries are invisible to
// coverage queries but remain physically present, and counted by Len and
// IsEmpty, until Sweep removes them. Inserting at an offset held by a marked
// entry takes over its slot.
//
// A Set is not safe for concurrent use.
type Set struct {
	tree   *btree.BTreeG[*MarkableExtent]
	marked int
}

func byOffset(a, b *MarkableExtent) bool {
	return a.Offset < b.Offset
}

func pivot(offset uint64) *MarkableExtent {
	return &MarkableExtent{Extent: Extent{Offset: offset}}
}

// NewSet creates an empty set. A degree below 2 selects DefaultDegree.
func NewSet(degree int) *Set {
	if degree < 2 {
		degree = DefaultDegree
	}
	return &Set{tree: btree.NewG(degree, byOffset)}
}

// Len returns the number of entries, marked ones included.
func (s *Set) Len() int {
	return s.tree.Len()
}

// Marked returns the number of entries pending deletion.
func (s *Set) Marked() int {
	return s.marked
}

// Active returns the number of unmarked entries.
func (s *Set) Active() int {
	return s.tree.Len() - s.marked
}

// IsEmpty reports whether the set physically holds no entries.
func (s *Set) IsEmpty() bool {
	return s.tree.Len() == 0
}

// Get returns the entry keyed at offset.
func (s *Set) Get(offset uint64) (*MarkableExtent, bool) {
	return s.tree.Get(pivot(offset))
}

// Insert adds e as a new active entry.
func (s *Set) Insert(e Extent) error {
	if !e.Valid() {
		return errors.Newf(errors.ErrCodeInvalidExtent, "cannot insert extent %s", e).
			WithComponent("extent_set").
			WithOperation("insert")
	}

	if existing, ok := s.tree.Get(pivot(e.Offset)); ok {
		if !existing.MarkedForDelete {
			return errors.Newf(errors.ErrCodeInternalConsistency,
				"active extent %s already keyed at offset %d", existing.Extent, e.Offset).
				WithComponent("extent_set").
				WithOperation("insert")
		}
		s.marked--
	}

	entry := NewMarkable(e)
	s.tree.ReplaceOrInsert(&entry)
	return nil
}

// Mark flags entry for deletion. The entry must belong to this set.
func (s *Set) Mark(entry *MarkableExtent) {
	if entry.MarkedForDelete {
		return
	}
	entry.MarkedForDelete = true
	s.marked++
}

// Overlapping returns the active entries sharing a byte with e, in ascending
// offset order. With includeAdjacent, entries ending at e.Offset or starting
// at e.End() are returned too.
func (s *Set) Overlapping(e Extent, includeAdjacent bool) []*MarkableExtent {
	if e.IsEmpty() {
		return nil
	}

	hit := e.Intersects
	if includeAdjacent {
		hit = e.Touches
	}

	var out []*MarkableExtent

	// Only the nearest active predecessor can reach into e.
	if e.Offset > 0 {
		s.tree.DescendLessOrEqual(pivot(e.Offset-1), func(item *MarkableExtent) bool {
			if item.MarkedForDelete {
				return true
			}
			if hit(item.Extent) {
				out = append(out, item)
			}
			return false
		})
	}

	s.tree.AscendGreaterOrEqual(pivot(e.Offset), func(item *MarkableExtent) bool {
		if item.Offset > e.End() {
			return false
		}
		if !item.MarkedForDelete && hit(item.Extent) {
			out = append(out, item)
		}
		return true
	})

	return out
}

// Ascend calls fn for every entry, marked ones included, in offset order
// until fn returns false.
func (s *Set) Ascend(fn func(entry *MarkableExtent) bool) {
	s.tree.Ascend(fn)
}

// Entries returns a copy of every entry in offset order.
func (s *Set) Entries() []MarkableExtent {
	out := make([]MarkableExtent, 0, s.tree.Len())
	s.tree.Ascend(func(item *MarkableExtent) bool {
		out = append(out, *item)
		return true
	})
	return out
}

// ActiveExtents returns the unmarked entries in offset order.
func (s *Set) ActiveExtents() []Extent {
	out := make([]Extent, 0, s.Active())
	s.tree.Ascend(func(item *MarkableExtent) bool {
		if !item.MarkedForDelete {
			out = append(out, item.Extent)
		}
		return true
	})
	return out
}

// Sweep removes every marked entry and returns how many were removed.
func (s *Set) Sweep() int {
	if s.marked == 0 {
		return 0
	}

	var doomed []*MarkableExtent
	s.tree.Ascend(func(item *MarkableExtent) bool {
		if item.MarkedForDelete {
			doomed = append(doomed, item)
		}
		return true
	})
	for _, item := range doomed {
		s.tree.Delete(item)
	}
	s.marked = 0
	return len(doomed)
}

// CoveredLength returns the number of bytes covered by active entries.
func (s *Set) CoveredLength() uint64 {
	var total uint64
	s.tree.Ascend(func(item *MarkableExtent) bool {
		if !item.MarkedForDelete {
			total += item.Length
		}
		return true
	})
	return total
}

// Validate checks that no two active entries overlap and that none is empty.
func (s *Set) Validate() error {
	var (
		prev    *MarkableExtent
		failure error
	)
	s.tree.Ascend(func(item *MarkableExtent) bool {
		if item.MarkedForDelete {
			return true
		}
		if !item.Valid() {
			failure = errors.Newf(errors.ErrCodeInternalConsistency, "invalid entry %s", item.Extent).
				WithComponent("extent_set").
				WithOperation("validate")
			return false
		}
		if prev != nil && prev.End() > item.Offset {
			failure = errors.Newf(errors.ErrCodeInternalConsistency,
				"entries %s and %s overlap", prev.Extent, item.Extent).
				WithComponent("extent_set").
				WithOperation("validate")
			return false
		}
		prev = item
		return true
	})
	return failure
}

// Stats summarizes the set.
func (s *Set) Stats() types.SetStats {
	return types.SetStats{
		Entries:      s.tree.Len(),
		Marked:       s.marked,
		CoveredBytes: s.CoveredLength(),
	}
}
