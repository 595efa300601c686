package extent

import (
	"fmt"
	"math"
)

// Extent is a contiguous byte range [Offset, Offset+Length) within an object.
// The zero value is the empty extent.
type Extent struct {
	Offset uint64 `json:"offset" yaml:"offset"`
	Length uint64 `json:"length" yaml:"length"`
}

// New returns the extent starting at offset and spanning length bytes.
func New(offset, length uint64) Extent {
	return Extent{Offset: offset, Length: length}
}

// FromBounds returns the extent [start, end). It is empty when end <= start.
func FromBounds(start, end uint64) Extent {
	if end <= start {
		return Extent{}
	}
	return Extent{Offset: start, Length: end - start}
}

// End returns the exclusive upper bound.
func (e Extent) End() uint64 {
	return e.Offset + e.Length
}

// IsEmpty reports whether the extent holds no bytes.
func (e Extent) IsEmpty() bool {
	return e.Length == 0
}

// Valid reports whether the extent is non-empty and its end fits in a uint64.
func (e Extent) Valid() bool {
	return e.Length > 0 && e.Length <= math.MaxUint64-e.Offset
}

// Intersects reports whether e and o share at least one byte.
// Empty extents intersect nothing, themselves included.
func (e Extent) Intersects(o Extent) bool {
	if e.IsEmpty() || o.IsEmpty() {
		return false
	}
	return e.Offset < o.End() && o.Offset < e.End()
}

// Touches reports whether e and o intersect or are directly adjacent.
func (e Extent) Touches(o Extent) bool {
	if e.IsEmpty() || o.IsEmpty() {
		return false
	}
	return e.Offset <= o.End() && o.Offset <= e.End()
}

// Contains reports whether every byte of o lies within e.
func (e Extent) Contains(o Extent) bool {
	if e.IsEmpty() || o.IsEmpty() {
		return false
	}
	return e.Offset <= o.Offset && e.End() >= o.End()
}

// Intersection returns the bytes shared by e and o, or the empty extent.
func (e Extent) Intersection(o Extent) Extent {
	if !e.Intersects(o) {
		return Extent{}
	}
	return FromBounds(max(e.Offset, o.Offset), min(e.End(), o.End()))
}

// Union returns the smallest extent covering both e and o. An empty operand
// is ignored.
func (e Extent) Union(o Extent) Extent {
	switch {
	case e.IsEmpty():
		return o
	case o.IsEmpty():
		return e
	}
	return FromBounds(min(e.Offset, o.Offset), max(e.End(), o.End()))
}

// Subtract returns the pieces of e outside o in ascending order: none when o
// covers e, one when o clips an edge, two when o punches a hole in the middle.
func (e Extent) Subtract(o Extent) []Extent {
	if !e.Intersects(o) {
		if e.IsEmpty() {
			return nil
		}
		return []Extent{e}
	}

	var pieces []Extent
	if left := FromBounds(e.Offset, o.Offset); !left.IsEmpty() {
		pieces = append(pieces, left)
	}
	if right := FromBounds(o.End(), e.End()); !right.IsEmpty() {
		pieces = append(pieces, right)
	}
	return pieces
}

// String renders the extent as a half-open interval.
func (e Extent) String() string {
	return fmt.Sprintf("[%d,%d)", e.Offset, e.End())
}

// MarkableExtent is an Extent carrying a deletion-pending flag. Marked
// entries stay in their set until an explicit sweep removes them.
type MarkableExtent struct {
	Extent
	MarkedForDelete bool `json:"marked_for_delete" yaml:"marked_for_delete"`
}

// NewMarkable wraps e in an unmarked MarkableExtent.
func NewMarkable(e Extent) MarkableExtent {
	return MarkableExtent{Extent: e}
}

// Span returns the smallest extent covering all of the given extents.
func Span(extents []Extent) Extent {
	var out Extent
	for _, e := range extents {
		out = out.Union(e)
	}
	return out
}

// TotalLength sums the lengths of the given extents.
func TotalLength(extents []Extent) uint64 {
	var total uint64
	for _, e := range extents {
		total += e.Length
	}
	return total
}
