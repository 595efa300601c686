package layer

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/objectfs/hsmextent/pkg/errors"
	"github.com/objectfs/hsmextent/pkg/extent"
	"github.com/objectfs/hsmextent/pkg/types"
)

const component = "composite_layer"

// CompositeLayer tracks the read and write coverage one storage layer holds
// for an object.
//
// Deletion is two-phase: operations that retire entries only mark them, and
// DeleteMarkedExtents sweeps them out. Marked entries no longer count as
// coverage but are still reported by HasReadExtents/HasWriteExtents until
// swept.
//
// A CompositeLayer is not safe for concurrent use. Mutating operations
// (AddExtent, ExtentSubtract, MarkForDeletion, DeleteMarkedExtents, and
// MatchExtent with deletePrevious) need exclusive access; read-only queries
// may share access with each other. Stack provides this locking.
type CompositeLayer struct {
	ID       uuid.UUID
	ParentID uuid.UUID
	Priority uint32

	reads  *extent.Set
	writes *extent.Set

	validateOnSweep bool
	logger          *zap.Logger
	metrics         types.MetricsCollector
}

// Option configures a CompositeLayer.
type Option func(*CompositeLayer)

// WithID sets the layer ID instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(l *CompositeLayer) { l.ID = id }
}

// WithParentID sets the layer this one is stacked upon.
func WithParentID(id uuid.UUID) Option {
	return func(l *CompositeLayer) { l.ParentID = id }
}

// WithTreeDegree sets the btree degree of both extent sets.
func WithTreeDegree(degree int) Option {
	return func(l *CompositeLayer) {
		l.reads = extent.NewSet(degree)
		l.writes = extent.NewSet(degree)
	}
}

// WithValidateOnSweep re-checks the no-overlap invariant after every sweep.
func WithValidateOnSweep(enabled bool) Option {
	return func(l *CompositeLayer) { l.validateOnSweep = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *CompositeLayer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(l *CompositeLayer) {
		if m != nil {
			l.metrics = m
		}
	}
}

// New creates an empty layer with the given priority and a random ID.
func New(priority uint32, opts ...Option) *CompositeLayer {
	l := &CompositeLayer{
		ID:       uuid.New(),
		Priority: priority,
		reads:    extent.NewSet(extent.DefaultDegree),
		writes:   extent.NewSet(extent.DefaultDegree),
		logger:   zap.NewNop(),
		metrics:  types.NopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(zap.Stringer("layer", l.ID), zap.Uint32("priority", l.Priority))
	return l
}

// Less orders layers by priority; lower values scan first.
func (l *CompositeLayer) Less(other *CompositeLayer) bool {
	return l.Priority < other.Priority
}

// SortByPriority sorts layers into scan order. Layers of equal priority keep
// their relative order, which carries no meaning.
func SortByPriority(layers []*CompositeLayer) {
	slices.SortStableFunc(layers, func(a, b *CompositeLayer) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
}

func setName(isWrite bool) string {
	if isWrite {
		return "write"
	}
	return "read"
}

func (l *CompositeLayer) set(isWrite bool) *extent.Set {
	if isWrite {
		return l.writes
	}
	return l.reads
}

func (l *CompositeLayer) invalidExtent(operation string, in extent.Extent, isWrite bool) error {
	return errors.Newf(errors.ErrCodeInvalidExtent, "extent %s is empty or overflows", in).
		WithComponent(component).
		WithOperation(operation).
		WithContext("layer", l.ID.String()).
		WithContext("set", setName(isWrite)).
		WithDetail("offset", in.Offset).
		WithDetail("length", in.Length)
}

func (l *CompositeLayer) record(operation string, isWrite bool, in extent.Extent, start time.Time, err error) {
	l.metrics.RecordOperation(operation, setName(isWrite), time.Since(start), in.Length, err == nil)
	if err != nil {
		l.metrics.RecordError(operation, err)
	}
}

// AddExtent records that in now holds data in this layer's read or write set.
//
// If in overlaps existing coverage and overwrite is false, the call fails
// with EXTENT_OVERLAP and nothing changes. With overwrite, in is coalesced
// with every entry it overlaps or abuts, transitively, and the consumed
// entries are marked for deletion. Without overwrite, an extent that only
// abuts existing entries is stored as its own entry.
func (l *CompositeLayer) AddExtent(in extent.Extent, isWrite, overwrite bool) error {
	start := time.Now()
	err := l.addExtent(in, isWrite, overwrite)
	l.record("add_extent", isWrite, in, start, err)
	return err
}

func (l *CompositeLayer) addExtent(in extent.Extent, isWrite, overwrite bool) error {
	if !in.Valid() {
		return l.invalidExtent("add_extent", in, isWrite)
	}

	set := l.set(isWrite)
	touching := set.Overlapping(in, true)
	if len(touching) == 0 {
		return set.Insert(in)
	}

	for _, entry := range touching {
		if entry.Intersects(in) && !overwrite {
			return errors.Newf(errors.ErrCodeExtentOverlap, "extent %s overlaps existing %s", in, entry.Extent).
				WithComponent(component).
				WithOperation("add_extent").
				WithContext("layer", l.ID.String()).
				WithContext("set", setName(isWrite))
		}
	}

	if !overwrite {
		return set.Insert(in)
	}

	merged, touching := coalesce(set, in)

	for _, entry := range touching {
		set.Mark(entry)
	}
	if err := set.Insert(merged); err != nil {
		return err
	}

	l.logger.Debug("merged extent",
		zap.String("set", setName(isWrite)),
		zap.Stringer("extent", in),
		zap.Stringer("merged", merged),
		zap.Int("consumed", len(touching)))
	return nil
}

// coalesce returns the hull of in and every active entry reachable from it
// through overlapping or abutting entries, along with those entries.
func coalesce(set *extent.Set, in extent.Extent) (extent.Extent, []*extent.MarkableExtent) {
	merged := in
	touching := set.Overlapping(merged, true)
	for {
		grown := merged
		for _, entry := range touching {
			grown = grown.Union(entry.Extent)
		}
		if grown == merged {
			return merged, touching
		}
		merged = grown
		touching = set.Overlapping(merged, true)
	}
}

// AddMergeReadExtent records a read, coalescing it with any read coverage it
// overlaps or abuts. Overlapping reads are harmless cache fills.
func (l *CompositeLayer) AddMergeReadExtent(in extent.Extent) error {
	return l.AddExtent(in, false, true)
}

// MatchExtent reports how in relates to the coverage of the selected set.
//
// All intersecting entries are visited in ascending offset order and the
// result accumulates over them. Under MatchMerge, Match.Extent is the extent
// AddExtent with overwrite would store, abutting neighbors included.
//
// With deletePrevious the entries that would be replaced are marked: under
// MatchIntersect every intersecting entry lying inside the span of
// Match.Covered (or all of them on a full match), under MatchMerge every
// entry the merged extent absorbs. Otherwise the layer is not modified.
func (l *CompositeLayer) MatchExtent(in extent.Extent, mode MatchType, isWrite, deletePrevious bool) (Match, error) {
	start := time.Now()
	m, err := l.matchExtent(in, mode, isWrite, deletePrevious)
	l.record("match_extent", isWrite, in, start, err)
	return m, err
}

func (l *CompositeLayer) matchExtent(in extent.Extent, mode MatchType, isWrite, deletePrevious bool) (Match, error) {
	failed := Match{Code: MatchError, Mode: mode, Request: in}

	if !in.Valid() {
		return failed, l.invalidExtent("match_extent", in, isWrite)
	}
	if mode != MatchIntersect && mode != MatchMerge {
		return failed, errors.Newf(errors.ErrCodeInvalidExtent, "unknown match type %d", int(mode)).
			WithComponent(component).
			WithOperation("match_extent")
	}

	set := l.set(isWrite)
	hits := set.Overlapping(in, false)
	if len(hits) == 0 {
		return Match{Code: MatchNone, Mode: mode, Request: in}, nil
	}

	for i := 1; i < len(hits); i++ {
		if hits[i-1].End() > hits[i].Offset {
			err := errors.Newf(errors.ErrCodeInternalConsistency,
				"entries %s and %s overlap", hits[i-1].Extent, hits[i].Extent).
				WithComponent(component).
				WithOperation("match_extent").
				WithContext("layer", l.ID.String()).
				WithContext("set", setName(isWrite)).
				WithStack()
			l.logger.Error("extent set is inconsistent",
				zap.String("set", setName(isWrite)),
				zap.Stringer("request", in),
				zap.String("recommendation", err.GetRecommendation()),
				zap.Error(err))
			return failed, err
		}
	}

	m := Match{Code: MatchPartial, Mode: mode, Request: in}
	for _, h := range hits {
		m.Covered = append(m.Covered, in.Intersection(h.Extent))
		if h.Contains(in) {
			m.Code = MatchFull
		}
	}

	var (
		bound   extent.Extent
		retired = hits
	)
	if mode == MatchMerge {
		bound, retired = coalesce(set, in)
		m.Extent = bound
	} else {
		bound = extent.Span(m.Covered)
		m.Extent = bound
		if !contiguous(m.Covered) {
			m.Extent = m.Covered[0]
		}
	}

	if deletePrevious {
		for _, h := range retired {
			if m.Code == MatchFull || bound.Contains(h.Extent) {
				set.Mark(h)
			}
		}
	}

	return m, nil
}

func contiguous(extents []extent.Extent) bool {
	for i := 1; i < len(extents); i++ {
		if extents[i-1].End() != extents[i].Offset {
			return false
		}
	}
	return true
}

// ExtentSubtract removes in from the selected set's coverage. Each entry it
// overlaps is marked and replaced by the parts lying outside in. layerEmpty
// reports that no active coverage is left in the set.
func (l *CompositeLayer) ExtentSubtract(in extent.Extent, isWrite bool) (layerEmpty bool, err error) {
	start := time.Now()
	layerEmpty, err = l.extentSubtract(in, isWrite)
	l.record("extent_subtract", isWrite, in, start, err)
	return layerEmpty, err
}

func (l *CompositeLayer) extentSubtract(in extent.Extent, isWrite bool) (bool, error) {
	if !in.Valid() {
		return false, l.invalidExtent("extent_subtract", in, isWrite)
	}

	set := l.set(isWrite)
	hits := set.Overlapping(in, false)

	// Remainders go in only after every hit is marked, so a remainder keyed at
	// a hit's offset takes over that marked slot.
	var remainders []extent.Extent
	for _, h := range hits {
		set.Mark(h)
		remainders = append(remainders, h.Subtract(in)...)
	}
	for _, r := range remainders {
		if err := set.Insert(r); err != nil {
			return false, err
		}
	}

	if len(hits) > 0 {
		l.logger.Debug("subtracted extent",
			zap.String("set", setName(isWrite)),
			zap.Stringer("extent", in),
			zap.Int("entries", len(hits)),
			zap.Int("remainders", len(remainders)))
	}
	return set.Active() == 0, nil
}

// MarkForDeletion marks the entry equal to in, or else the entry fully
// containing in, leaving every other entry alone.
func (l *CompositeLayer) MarkForDeletion(in extent.Extent, isWrite bool) error {
	start := time.Now()
	err := l.markForDeletion(in, isWrite)
	l.record("mark_for_deletion", isWrite, in, start, err)
	return err
}

func (l *CompositeLayer) markForDeletion(in extent.Extent, isWrite bool) error {
	if !in.Valid() {
		return l.invalidExtent("mark_for_deletion", in, isWrite)
	}

	set := l.set(isWrite)
	if entry, ok := set.Get(in.Offset); ok && !entry.MarkedForDelete && entry.Extent == in {
		set.Mark(entry)
		return nil
	}
	for _, entry := range set.Overlapping(in, false) {
		if entry.Contains(in) {
			set.Mark(entry)
			return nil
		}
	}

	return errors.Newf(errors.ErrCodeExtentNotFound, "no %s extent holds %s", setName(isWrite), in).
		WithComponent(component).
		WithOperation("mark_for_deletion").
		WithContext("layer", l.ID.String())
}

// DeleteMarkedExtents sweeps every marked entry out of the selected set and
// returns how many were removed.
func (l *CompositeLayer) DeleteMarkedExtents(isWrite bool) int {
	start := time.Now()
	set := l.set(isWrite)
	removed := set.Sweep()

	var err error
	if l.validateOnSweep {
		if err = set.Validate(); err != nil {
			l.logger.Error("extent set is inconsistent after sweep",
				zap.String("set", setName(isWrite)),
				zap.Error(err))
		}
	}
	l.record("delete_marked_extents", isWrite, extent.Extent{}, start, err)

	if removed > 0 {
		l.logger.Debug("swept marked extents",
			zap.String("set", setName(isWrite)),
			zap.Int("removed", removed))
	}
	return removed
}

// DumpExtents renders the selected set in offset order. Without details the
// entries are space-separated half-open intervals; with details each entry
// gets its own line including its delete mark.
func (l *CompositeLayer) DumpExtents(details, isWrite bool) string {
	var sb strings.Builder
	l.set(isWrite).Ascend(func(entry *extent.MarkableExtent) bool {
		if details {
			fmt.Fprintf(&sb, "offset=%d length=%d marked=%t\n", entry.Offset, entry.Length, entry.MarkedForDelete)
			return true
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(entry.Extent.String())
		return true
	})
	return sb.String()
}

// HasReadExtents reports whether the read set holds any entry, including
// entries marked but not yet swept.
func (l *CompositeLayer) HasReadExtents() bool {
	return !l.reads.IsEmpty()
}

// HasWriteExtents reports whether the write set holds any entry, including
// entries marked but not yet swept.
func (l *CompositeLayer) HasWriteExtents() bool {
	return !l.writes.IsEmpty()
}

// Extents returns a copy of the selected set's entries in offset order.
func (l *CompositeLayer) Extents(isWrite bool) []extent.MarkableExtent {
	return l.set(isWrite).Entries()
}

// Stats summarizes both sets.
func (l *CompositeLayer) Stats() types.LayerStats {
	stats := types.LayerStats{
		LayerID:  l.ID.String(),
		Priority: l.Priority,
		Reads:    l.reads.Stats(),
		Writes:   l.writes.Stats(),
	}
	if l.ParentID != uuid.Nil {
		stats.ParentID = l.ParentID.String()
	}
	return stats
}
