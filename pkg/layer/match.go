package layer

import "github.com/objectfs/hsmextent/pkg/extent"

// MatchCode classifies how a requested extent relates to a layer's coverage.
type MatchCode int

const (
	// MatchError reports invalid input or a broken extent set.
	MatchError MatchCode = iota
	// MatchNone means no entry shares a byte with the request.
	MatchNone
	// MatchPartial means some bytes are covered but no single entry holds the
	// whole request; the rest must come from elsewhere.
	MatchPartial
	// MatchFull means one entry contains the whole request.
	MatchFull
)

func (c MatchCode) String() string {
	switch c {
	case MatchError:
		return "EM_ERROR"
	case MatchNone:
		return "EM_NONE"
	case MatchPartial:
		return "EM_PARTIAL"
	case MatchFull:
		return "EM_FULL"
	default:
		return "EM_UNKNOWN"
	}
}

// MatchType selects what Match.Extent reports.
type MatchType int

const (
	// MatchIntersect reports the covered part of the request.
	MatchIntersect MatchType = iota
	// MatchMerge reports the union the request would form with the entries it
	// intersects, without storing it.
	MatchMerge
)

func (t MatchType) String() string {
	switch t {
	case MatchIntersect:
		return "EMT_INTERSECT"
	case MatchMerge:
		return "EMT_MERGE"
	default:
		return "EMT_UNKNOWN"
	}
}

// Match is the outcome of CompositeLayer.MatchExtent.
type Match struct {
	Code    MatchCode
	Mode    MatchType
	Request extent.Extent
	// Extent under MatchIntersect is a covered part of the request and never
	// includes uncovered bytes: the whole covered span when Covered is
	// contiguous, otherwise its first piece. Under MatchMerge it is the extent
	// a merging add of the request would store. Empty for MatchNone and
	// MatchError.
	Extent extent.Extent
	// Covered holds the intersection of the request with each intersecting
	// entry, in ascending offset order. Together with Gaps it is the complete
	// answer when the coverage is split.
	Covered []extent.Extent
}

// CoveredLength returns how many requested bytes the layer already holds.
func (m Match) CoveredLength() uint64 {
	return extent.TotalLength(m.Covered)
}

// Gaps returns the parts of the request the layer does not hold, in
// ascending order.
func (m Match) Gaps() []extent.Extent {
	if m.Code == MatchError || m.Request.IsEmpty() {
		return nil
	}

	var gaps []extent.Extent
	cursor := m.Request.Offset
	for _, c := range m.Covered {
		if gap := extent.FromBounds(cursor, c.Offset); !gap.IsEmpty() {
			gaps = append(gaps, gap)
		}
		cursor = c.End()
	}
	if tail := extent.FromBounds(cursor, m.Request.End()); !tail.IsEmpty() {
		gaps = append(gaps, tail)
	}
	return gaps
}
