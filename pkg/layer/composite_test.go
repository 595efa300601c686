package layer

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/objectfs/hsmextent/pkg/errors"
	"github.com/objectfs/hsmextent/pkg/extent"
)

func newTestLayer(t *testing.T, isWrite bool, extents ...extent.Extent) *CompositeLayer {
	t.Helper()
	l := New(0)
	for _, e := range extents {
		require.NoError(t, l.AddExtent(e, isWrite, false))
	}
	return l
}

func activeExtents(l *CompositeLayer, isWrite bool) []extent.Extent {
	var out []extent.Extent
	for _, e := range l.Extents(isWrite) {
		if !e.MarkedForDelete {
			out = append(out, e.Extent)
		}
	}
	return out
}

func TestNew(t *testing.T) {
	parent := uuid.New()
	id := uuid.New()
	l := New(7, WithID(id), WithParentID(parent), WithTreeDegree(4))

	assert.Equal(t, id, l.ID)
	assert.Equal(t, parent, l.ParentID)
	assert.Equal(t, uint32(7), l.Priority)
	assert.False(t, l.HasReadExtents())
	assert.False(t, l.HasWriteExtents())

	base := New(0)
	assert.NotEqual(t, uuid.Nil, base.ID)
	assert.Equal(t, uuid.Nil, base.ParentID)
	assert.Empty(t, base.Stats().ParentID)
}

func TestAddExtent_ReadAndWriteAreSeparate(t *testing.T) {
	l := New(0)
	require.NoError(t, l.AddExtent(extent.New(0, 10), true, false))

	assert.True(t, l.HasWriteExtents())
	assert.False(t, l.HasReadExtents())

	require.NoError(t, l.AddExtent(extent.New(5, 10), false, false))
	assert.Equal(t, []extent.Extent{extent.New(0, 10)}, activeExtents(l, true))
	assert.Equal(t, []extent.Extent{extent.New(5, 10)}, activeExtents(l, false))
}

func TestAddExtent_NoOverlapAfterSweep(t *testing.T) {
	l := New(0)
	ops := []struct {
		add       bool
		e         extent.Extent
		wantErr   bool
		overwrite bool
	}{
		{add: true, e: extent.New(0, 100), overwrite: true},
		{add: true, e: extent.New(50, 100), overwrite: true},
		{add: false, e: extent.New(20, 10)},
		{add: true, e: extent.New(300, 10)},
		{add: true, e: extent.New(305, 10), wantErr: true},
		{add: true, e: extent.New(310, 10)},
		{add: true, e: extent.New(100, 250), overwrite: true},
		{add: false, e: extent.New(0, 5)},
		{add: true, e: extent.New(25, 1), overwrite: true},
		{add: false, e: extent.New(140, 30)},
	}

	for _, op := range ops {
		var err error
		if op.add {
			err = l.AddExtent(op.e, true, op.overwrite)
		} else {
			_, err = l.ExtentSubtract(op.e, true)
		}
		if op.wantErr {
			assert.Error(t, err, "op on %s", op.e)
		} else {
			require.NoError(t, err, "op on %s", op.e)
		}

		l.DeleteMarkedExtents(true)
		entries := l.Extents(true)
		for i := 1; i < len(entries); i++ {
			assert.LessOrEqual(t, entries[i-1].End(), entries[i].Offset,
				"entries %s and %s overlap after %s", entries[i-1].Extent, entries[i].Extent, op.e)
		}
		for _, e := range entries {
			assert.False(t, e.MarkedForDelete)
		}
	}
}

// coverageModel mirrors one extent set as a byte bitmap.
type coverageModel [512]bool

func (c *coverageModel) count(e extent.Extent) uint64 {
	var n uint64
	for b := e.Offset; b < e.End(); b++ {
		if c[b] {
			n++
		}
	}
	return n
}

func (c *coverageModel) fill(e extent.Extent, v bool) {
	for b := e.Offset; b < e.End(); b++ {
		c[b] = v
	}
}

func TestRandomOperationsMatchBitmap(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		l := New(0)
		var model coverageModel

		for step := 0; step < 300; step++ {
			in := extent.New(uint64(rng.Intn(480)), uint64(1+rng.Intn(32)))

			switch op := rng.Intn(5); op {
			case 0, 1:
				overwrite := op == 0
				err := l.AddExtent(in, true, overwrite)
				if !overwrite && model.count(in) > 0 {
					require.True(t, errors.IsCode(err, errors.ErrCodeExtentOverlap), "seed %d step %d add %s", seed, step, in)
					break
				}
				require.NoError(t, err, "seed %d step %d add %s", seed, step, in)
				model.fill(in, true)
			case 2:
				empty, err := l.ExtentSubtract(in, true)
				require.NoError(t, err)
				model.fill(in, false)
				assert.Equal(t, model.count(extent.New(0, uint64(len(model)))) == 0, empty,
					"seed %d step %d subtract %s", seed, step, in)
			case 3:
				m, err := l.MatchExtent(in, MatchIntersect, true, false)
				require.NoError(t, err)
				covered := model.count(in)
				assert.Equal(t, covered, m.CoveredLength(), "seed %d step %d match %s", seed, step, in)
				assert.Equal(t, covered == 0, m.Code == MatchNone)
				if m.Code == MatchFull {
					assert.Equal(t, in.Length, covered)
				}
				assert.Equal(t, m.Extent.Length, model.count(m.Extent), "match extent %s holds uncovered bytes", m.Extent)
			case 4:
				l.DeleteMarkedExtents(true)
				require.NoError(t, l.writes.Validate())
				for _, e := range l.Extents(true) {
					require.False(t, e.MarkedForDelete)
				}
			}

			var got coverageModel
			active := activeExtents(l, true)
			for i, e := range active {
				if i > 0 {
					require.LessOrEqual(t, active[i-1].End(), e.Offset, "seed %d step %d", seed, step)
				}
				got.fill(e, true)
			}
			require.Equal(t, model, got, "seed %d step %d", seed, step)
		}
	}
}

func TestAddExtent_MergeIdempotent(t *testing.T) {
	l := New(0)
	in := extent.New(100, 50)

	require.NoError(t, l.AddExtent(in, true, true))
	l.DeleteMarkedExtents(true)
	once := l.Stats().Writes.CoveredBytes

	require.NoError(t, l.AddExtent(in, true, true))
	l.DeleteMarkedExtents(true)

	assert.Equal(t, once, l.Stats().Writes.CoveredBytes)
	assert.Equal(t, uint64(50), once)
	assert.Equal(t, []extent.Extent{in}, activeExtents(l, true))
}

func TestAddExtent_MergeCoalescesTransitively(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 10), extent.New(20, 10))

	require.NoError(t, l.AddExtent(extent.New(10, 10), true, true))
	assert.Equal(t, []extent.Extent{extent.New(0, 30)}, activeExtents(l, true))

	l.DeleteMarkedExtents(true)
	assert.Equal(t, []extent.MarkableExtent{extent.NewMarkable(extent.New(0, 30))}, l.Extents(true))
}

func TestAddExtent_MergeReachesAdjacentChain(t *testing.T) {
	// Adjacent entries stored without overwrite are pulled in by a later merge.
	l := newTestLayer(t, true, extent.New(0, 10), extent.New(10, 10), extent.New(20, 10))
	assert.Len(t, activeExtents(l, true), 3)

	require.NoError(t, l.AddExtent(extent.New(25, 10), true, true))
	l.DeleteMarkedExtents(true)

	assert.Equal(t, []extent.Extent{extent.New(0, 35)}, activeExtents(l, true))
}

func TestAddExtent_OverwriteRejected(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 10))

	err := l.AddExtent(extent.New(5, 10), true, false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExtentOverlap))

	assert.Equal(t, []extent.MarkableExtent{extent.NewMarkable(extent.New(0, 10))}, l.Extents(true))
}

func TestAddExtent_AdjacentWithoutOverwrite(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 10))

	require.NoError(t, l.AddExtent(extent.New(10, 10), true, false))
	assert.Equal(t, []extent.Extent{extent.New(0, 10), extent.New(10, 10)}, activeExtents(l, true))
}

func TestAddMergeReadExtent(t *testing.T) {
	l := New(0)

	require.NoError(t, l.AddMergeReadExtent(extent.New(0, 10)))
	require.NoError(t, l.AddMergeReadExtent(extent.New(5, 10)))
	require.NoError(t, l.AddMergeReadExtent(extent.New(15, 5)))

	assert.Equal(t, []extent.Extent{extent.New(0, 20)}, activeExtents(l, false))
	assert.False(t, l.HasWriteExtents())
}

func TestMatchExtent(t *testing.T) {
	tests := []struct {
		name        string
		entries     []extent.Extent
		in          extent.Extent
		mode        MatchType
		wantCode    MatchCode
		wantExtent  extent.Extent
		wantCovered uint64
		wantGaps    []extent.Extent
	}{
		{
			name:        "full",
			entries:     []extent.Extent{extent.New(0, 100)},
			in:          extent.New(10, 10),
			mode:        MatchIntersect,
			wantCode:    MatchFull,
			wantExtent:  extent.New(10, 10),
			wantCovered: 10,
		},
		{
			name:        "partial union",
			entries:     []extent.Extent{extent.New(0, 10), extent.New(20, 10)},
			in:          extent.New(5, 20),
			mode:        MatchIntersect,
			wantCode:    MatchPartial,
			wantExtent:  extent.New(5, 5),
			wantCovered: 10,
			wantGaps:    []extent.Extent{extent.New(10, 10)},
		},
		{
			name:        "partial across abutting entries",
			entries:     []extent.Extent{extent.New(0, 10), extent.New(10, 10)},
			in:          extent.New(5, 15),
			mode:        MatchIntersect,
			wantCode:    MatchPartial,
			wantExtent:  extent.New(5, 15),
			wantCovered: 15,
		},
		{
			name:     "none",
			entries:  []extent.Extent{extent.New(50, 10)},
			in:       extent.New(0, 10),
			mode:     MatchIntersect,
			wantCode: MatchNone,
			wantGaps: []extent.Extent{extent.New(0, 10)},
		},
		{
			name:     "adjacent is none",
			entries:  []extent.Extent{extent.New(0, 10)},
			in:       extent.New(10, 10),
			mode:     MatchIntersect,
			wantCode: MatchNone,
			wantGaps: []extent.Extent{extent.New(10, 10)},
		},
		{
			name:        "partial tail",
			entries:     []extent.Extent{extent.New(0, 10)},
			in:          extent.New(5, 10),
			mode:        MatchIntersect,
			wantCode:    MatchPartial,
			wantExtent:  extent.New(5, 5),
			wantCovered: 5,
			wantGaps:    []extent.Extent{extent.New(10, 5)},
		},
		{
			name:        "merge previews union",
			entries:     []extent.Extent{extent.New(0, 10), extent.New(20, 10)},
			in:          extent.New(5, 20),
			mode:        MatchMerge,
			wantCode:    MatchPartial,
			wantExtent:  extent.New(0, 30),
			wantCovered: 10,
			wantGaps:    []extent.Extent{extent.New(10, 10)},
		},
		{
			name:        "merge pulls in abutting chain",
			entries:     []extent.Extent{extent.New(0, 10), extent.New(10, 10)},
			in:          extent.New(15, 10),
			mode:        MatchMerge,
			wantCode:    MatchPartial,
			wantExtent:  extent.New(0, 25),
			wantCovered: 5,
			wantGaps:    []extent.Extent{extent.New(20, 5)},
		},
		{
			name:        "merge of contained request",
			entries:     []extent.Extent{extent.New(0, 100)},
			in:          extent.New(10, 10),
			mode:        MatchMerge,
			wantCode:    MatchFull,
			wantExtent:  extent.New(0, 100),
			wantCovered: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLayer(t, true, tt.entries...)
			before := l.Extents(true)

			m, err := l.MatchExtent(tt.in, tt.mode, true, false)
			require.NoError(t, err)

			assert.Equal(t, tt.wantCode, m.Code)
			assert.Equal(t, tt.mode, m.Mode)
			assert.Equal(t, tt.in, m.Request)
			assert.Equal(t, tt.wantExtent, m.Extent)
			assert.Equal(t, tt.wantCovered, m.CoveredLength())
			assert.Equal(t, tt.wantGaps, m.Gaps())
			assert.Equal(t, before, l.Extents(true), "match without deletePrevious must not mutate")

			if tt.mode == MatchIntersect {
				var inside uint64
				for _, c := range m.Covered {
					inside += c.Intersection(m.Extent).Length
				}
				assert.Equal(t, m.Extent.Length, inside, "%s reaches past the covered bytes", m.Extent)
			}
		})
	}
}

func TestMatchExtent_DeletePrevious(t *testing.T) {
	t.Run("full match marks the container", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(0, 100), extent.New(200, 10))

		m, err := l.MatchExtent(extent.New(10, 10), MatchIntersect, true, true)
		require.NoError(t, err)
		assert.Equal(t, MatchFull, m.Code)

		assert.Equal(t, []extent.Extent{extent.New(200, 10)}, activeExtents(l, true))
		assert.True(t, l.HasWriteExtents())
		assert.Equal(t, 1, l.DeleteMarkedExtents(true))
	})

	t.Run("intersect partial marks only entries inside the span", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(0, 10), extent.New(12, 3), extent.New(20, 10))

		m, err := l.MatchExtent(extent.New(5, 20), MatchIntersect, true, true)
		require.NoError(t, err)
		assert.Equal(t, MatchPartial, m.Code)
		assert.Equal(t, extent.New(5, 20), extent.Span(m.Covered))
		assert.Equal(t, extent.New(5, 5), m.Extent)

		assert.Equal(t, []extent.Extent{extent.New(0, 10), extent.New(20, 10)}, activeExtents(l, true))
	})

	t.Run("merge partial marks every hit", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(0, 10), extent.New(20, 10))

		m, err := l.MatchExtent(extent.New(5, 20), MatchMerge, true, true)
		require.NoError(t, err)
		assert.Equal(t, extent.New(0, 30), m.Extent)

		assert.Empty(t, activeExtents(l, true))
		assert.Equal(t, 2, l.DeleteMarkedExtents(true))
		assert.False(t, l.HasWriteExtents())
	})

	t.Run("merge marks what a merging add would absorb", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(0, 10), extent.New(10, 10), extent.New(40, 10))

		m, err := l.MatchExtent(extent.New(15, 10), MatchMerge, true, true)
		require.NoError(t, err)
		assert.Equal(t, extent.New(0, 25), m.Extent)
		assert.Equal(t, []extent.Extent{extent.New(40, 10)}, activeExtents(l, true))

		require.NoError(t, l.AddExtent(m.Extent, true, false))
		l.DeleteMarkedExtents(true)
		assert.Equal(t, []extent.Extent{extent.New(0, 25), extent.New(40, 10)}, activeExtents(l, true))
	})

	t.Run("none leaves the set alone", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(50, 10))

		m, err := l.MatchExtent(extent.New(0, 10), MatchMerge, true, true)
		require.NoError(t, err)
		assert.Equal(t, MatchNone, m.Code)
		assert.Equal(t, 0, l.DeleteMarkedExtents(true))
	})
}

func TestMatchExtent_InconsistentSet(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	l := New(0, WithLogger(zap.New(core)))
	require.NoError(t, l.AddExtent(extent.New(0, 10), true, false))
	require.NoError(t, l.AddExtent(extent.New(20, 10), true, false))

	// Stretch the first entry over the second behind the set's back.
	entry, ok := l.writes.Get(0)
	require.True(t, ok)
	entry.Length = 25

	m, err := l.MatchExtent(extent.New(5, 20), MatchIntersect, true, false)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInternalConsistency))
	assert.Equal(t, MatchError, m.Code)

	var hsmErr *errors.HSMError
	require.ErrorAs(t, err, &hsmErr)
	assert.NotEmpty(t, hsmErr.Stack)

	require.Equal(t, 1, logs.Len())
	logEntry := logs.All()[0]
	assert.Equal(t, "extent set is inconsistent", logEntry.Message)
	assert.Equal(t, hsmErr.GetRecommendation(), logEntry.ContextMap()["recommendation"])
}

func TestMatchPreviewAgreesWithMergingAdd(t *testing.T) {
	seed := []extent.Extent{extent.New(0, 10), extent.New(10, 10), extent.New(30, 5), extent.New(35, 5)}
	requests := []extent.Extent{
		extent.New(15, 10),
		extent.New(20, 10),
		extent.New(25, 3),
		extent.New(5, 40),
		extent.New(100, 1),
	}

	for _, in := range requests {
		l := newTestLayer(t, true, seed...)

		m, err := l.MatchExtent(in, MatchMerge, true, false)
		require.NoError(t, err)

		require.NoError(t, l.AddExtent(in, true, true))
		l.DeleteMarkedExtents(true)

		var stored extent.Extent
		for _, e := range activeExtents(l, true) {
			if e.Contains(in) {
				stored = e
			}
		}
		if m.Code == MatchNone {
			// A miss reports no extent; the add still stores the request.
			assert.True(t, stored.Contains(in), "request %s", in)
			continue
		}
		assert.Equal(t, stored, m.Extent, "request %s", in)
	}
}

func TestMatchExtent_InvalidInput(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 10))

	m, err := l.MatchExtent(extent.New(0, 10), MatchType(9), true, false)
	assert.Error(t, err)
	assert.Equal(t, MatchError, m.Code)
	assert.Nil(t, m.Gaps())
}

func TestExtentSubtract_SplitsEntry(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 100))

	empty, err := l.ExtentSubtract(extent.New(40, 50), true)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, []extent.Extent{extent.New(0, 40), extent.New(90, 10)}, activeExtents(l, true))

	l.DeleteMarkedExtents(true)
	assert.Equal(t, []extent.MarkableExtent{
		extent.NewMarkable(extent.New(0, 40)),
		extent.NewMarkable(extent.New(90, 10)),
	}, l.Extents(true))
}

func TestExtentSubtract_EmptiesLayer(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 10))

	empty, err := l.ExtentSubtract(extent.New(0, 10), true)
	require.NoError(t, err)
	assert.True(t, empty)
	assert.Empty(t, activeExtents(l, true))

	l.DeleteMarkedExtents(true)
	assert.False(t, l.HasWriteExtents())
}

func TestExtentSubtract_SpansEntries(t *testing.T) {
	l := newTestLayer(t, false, extent.New(0, 10), extent.New(20, 10), extent.New(40, 10))

	empty, err := l.ExtentSubtract(extent.New(5, 40), false)
	require.NoError(t, err)
	assert.False(t, empty)

	// [0,5) took over the slot of [0,10), leaving two marked entries.
	assert.Equal(t, 2, l.DeleteMarkedExtents(false))
	assert.Equal(t, []extent.Extent{extent.New(0, 5), extent.New(45, 5)}, activeExtents(l, false))
}

func TestExtentSubtract_Miss(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 10))

	empty, err := l.ExtentSubtract(extent.New(50, 10), true)
	require.NoError(t, err)
	assert.False(t, empty)
	assert.Equal(t, 0, l.DeleteMarkedExtents(true))

	empty, err = New(0).ExtentSubtract(extent.New(0, 10), true)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestMarkAndSweepDeferral(t *testing.T) {
	l := newTestLayer(t, false, extent.New(0, 10))

	require.NoError(t, l.MarkForDeletion(extent.New(0, 10), false))

	assert.True(t, l.HasReadExtents(), "marked entry is present until swept")
	assert.Empty(t, activeExtents(l, false))
	assert.Equal(t, "offset=0 length=10 marked=true\n", l.DumpExtents(true, false))

	m, err := l.MatchExtent(extent.New(0, 10), MatchIntersect, false, false)
	require.NoError(t, err)
	assert.Equal(t, MatchNone, m.Code, "marked entries do not count as coverage")

	assert.Equal(t, 1, l.DeleteMarkedExtents(false))
	assert.False(t, l.HasReadExtents())
	assert.Equal(t, 0, l.DeleteMarkedExtents(false))
}

func TestMarkForDeletion(t *testing.T) {
	t.Run("containing entry", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(0, 100), extent.New(200, 10))

		require.NoError(t, l.MarkForDeletion(extent.New(10, 10), true))
		assert.Equal(t, []extent.Extent{extent.New(200, 10)}, activeExtents(l, true))
	})

	t.Run("not found", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(0, 10), extent.New(10, 10))

		err := l.MarkForDeletion(extent.New(5, 10), true)
		assert.True(t, errors.IsCode(err, errors.ErrCodeExtentNotFound))
		assert.Len(t, activeExtents(l, true), 2)

		err = l.MarkForDeletion(extent.New(0, 10), false)
		assert.True(t, errors.IsCode(err, errors.ErrCodeExtentNotFound))
	})

	t.Run("already marked", func(t *testing.T) {
		l := newTestLayer(t, true, extent.New(0, 10))

		require.NoError(t, l.MarkForDeletion(extent.New(0, 10), true))
		err := l.MarkForDeletion(extent.New(0, 10), true)
		assert.True(t, errors.IsCode(err, errors.ErrCodeExtentNotFound))
	})
}

func TestZeroLengthRejected(t *testing.T) {
	zero := extent.New(5, 0)
	l := newTestLayer(t, true, extent.New(0, 10))
	before := l.Extents(true)

	assert.True(t, errors.IsCode(l.AddExtent(zero, true, true), errors.ErrCodeInvalidExtent))
	assert.True(t, errors.IsCode(l.AddMergeReadExtent(zero), errors.ErrCodeInvalidExtent))

	m, err := l.MatchExtent(zero, MatchIntersect, true, true)
	assert.Error(t, err)
	assert.Equal(t, MatchError, m.Code)

	empty, err := l.ExtentSubtract(zero, true)
	assert.Error(t, err)
	assert.False(t, empty)

	assert.True(t, errors.IsCode(l.MarkForDeletion(zero, true), errors.ErrCodeInvalidExtent))

	assert.Equal(t, before, l.Extents(true))
	assert.False(t, l.HasReadExtents())
	assert.Equal(t, 0, l.DeleteMarkedExtents(true))
}

func TestDumpExtents(t *testing.T) {
	l := newTestLayer(t, true, extent.New(0, 10), extent.New(20, 5))

	assert.Equal(t, "[0,10) [20,25)", l.DumpExtents(false, true))
	assert.Equal(t, "offset=0 length=10 marked=false\noffset=20 length=5 marked=false\n", l.DumpExtents(true, true))
	assert.Equal(t, "", l.DumpExtents(false, false))
	assert.Equal(t, "", l.DumpExtents(true, false))
}

func TestDeleteMarkedExtents_Validate(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	l := New(0, WithLogger(zap.New(core)), WithValidateOnSweep(true))
	require.NoError(t, l.AddExtent(extent.New(0, 10), true, false))
	require.NoError(t, l.AddExtent(extent.New(20, 10), true, false))

	l.DeleteMarkedExtents(true)
	assert.Equal(t, 0, logs.Len())

	entry, ok := l.writes.Get(0)
	require.True(t, ok)
	entry.Length = 25

	l.DeleteMarkedExtents(true)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "extent set is inconsistent after sweep", logs.All()[0].Message)
}

func TestStats(t *testing.T) {
	parent := uuid.New()
	l := New(2, WithParentID(parent))
	require.NoError(t, l.AddExtent(extent.New(0, 10), true, false))
	require.NoError(t, l.AddExtent(extent.New(20, 10), true, false))
	require.NoError(t, l.AddMergeReadExtent(extent.New(0, 4)))
	require.NoError(t, l.MarkForDeletion(extent.New(20, 10), true))

	stats := l.Stats()
	assert.Equal(t, l.ID.String(), stats.LayerID)
	assert.Equal(t, parent.String(), stats.ParentID)
	assert.Equal(t, uint32(2), stats.Priority)
	assert.Equal(t, 2, stats.Writes.Entries)
	assert.Equal(t, 1, stats.Writes.Marked)
	assert.Equal(t, uint64(10), stats.Writes.CoveredBytes)
	assert.Equal(t, 1, stats.Reads.Entries)
	assert.Equal(t, uint64(4), stats.Reads.CoveredBytes)
}

func TestSortByPriority(t *testing.T) {
	layers := []*CompositeLayer{New(3), New(1), New(2)}

	SortByPriority(layers)

	var got []uint32
	for _, l := range layers {
		got = append(got, l.Priority)
	}
	assert.Equal(t, []uint32{1, 2, 3}, got)

	assert.True(t, layers[0].Less(layers[1]))
	assert.False(t, layers[1].Less(layers[0]))
	assert.False(t, layers[0].Less(New(1)))
}

func TestMatchStrings(t *testing.T) {
	assert.Equal(t, "EM_NONE", MatchNone.String())
	assert.Equal(t, "EM_FULL", MatchFull.String())
	assert.Equal(t, "EM_PARTIAL", MatchPartial.String())
	assert.Equal(t, "EM_ERROR", MatchError.String())
	assert.Equal(t, "EMT_INTERSECT", MatchIntersect.String())
	assert.Equal(t, "EMT_MERGE", MatchMerge.String())
}
