package layer

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/objectfs/hsmextent/internal/config"
	"github.com/objectfs/hsmextent/internal/metrics"
	"github.com/objectfs/hsmextent/pkg/errors"
	"github.com/objectfs/hsmextent/pkg/extent"
	"github.com/objectfs/hsmextent/pkg/types"
	"github.com/objectfs/hsmextent/pkg/utils"
)

// Stack holds the layers of one object in scan order and serializes access
// to them.
type Stack struct {
	mu     sync.RWMutex
	layers []*CompositeLayer

	degree          int
	validateOnSweep bool
	logger          *zap.Logger
	metrics         types.MetricsCollector
}

// StackOptions configures a Stack. Zero values select the defaults.
type StackOptions struct {
	TreeDegree      int
	ValidateOnSweep bool
	Logger          *zap.Logger
	Metrics         types.MetricsCollector
}

// Placement is a byte range served by one layer.
type Placement struct {
	LayerID uuid.UUID     `json:"layer_id"`
	Extent  extent.Extent `json:"extent"`
}

// Location describes where the bytes of a request live across a stack.
type Location struct {
	Request    extent.Extent   `json:"request"`
	Placements []Placement     `json:"placements"`
	Gaps       []extent.Extent `json:"gaps"`
}

// Complete reports whether every requested byte was found.
func (l Location) Complete() bool {
	return len(l.Gaps) == 0
}

// NewStack creates an empty stack.
func NewStack(opts StackOptions) *Stack {
	s := &Stack{
		degree:          opts.TreeDegree,
		validateOnSweep: opts.ValidateOnSweep,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
	}
	if s.degree < 2 {
		s.degree = extent.DefaultDegree
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = types.NopMetrics{}
	}
	return s
}

// NewStackFromConfig creates a stack whose logger, metrics collector and
// extent set settings come from cfg. The returned collector is nil when
// metrics are disabled.
func NewStackFromConfig(cfg *config.Configuration) (*Stack, *metrics.Collector, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, errors.NewError(errors.ErrCodeConfigValidation, "invalid configuration").
			WithComponent("stack").
			WithCause(err)
	}

	logConfig := utils.DefaultLoggerConfig()
	logConfig.Level = cfg.Global.LogLevel
	logConfig.Format = cfg.Global.LogFormat
	logger, err := utils.NewLogger(logConfig)
	if err != nil {
		return nil, nil, errors.NewError(errors.ErrCodeInvalidConfig, "failed to create logger").
			WithComponent("stack").
			WithCause(err)
	}

	opts := StackOptions{
		TreeDegree:      cfg.Extents.TreeDegree,
		ValidateOnSweep: cfg.Extents.ValidateOnSweep,
		Logger:          logger,
	}

	var collector *metrics.Collector
	if cfg.Monitoring.Metrics.Enabled {
		collector, err = metrics.NewCollector(metrics.ConfigFrom(cfg.Monitoring.Metrics))
		if err != nil {
			return nil, nil, err
		}
		opts.Metrics = collector
	}

	return NewStack(opts), collector, nil
}

// NewLayer creates a layer carrying the stack's logger, metrics and set
// settings, and adds it.
func (s *Stack) NewLayer(priority uint32, opts ...Option) (*CompositeLayer, error) {
	base := []Option{
		WithLogger(s.logger),
		WithMetrics(s.metrics),
		WithTreeDegree(s.degree),
		WithValidateOnSweep(s.validateOnSweep),
	}
	l := New(priority, append(base, opts...)...)
	if err := s.Add(l); err != nil {
		return nil, err
	}
	return l, nil
}

// Add inserts l in priority order after any layers of equal priority.
func (s *Stack) Add(l *CompositeLayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(l.ID) >= 0 {
		return errors.Newf(errors.ErrCodeLayerExists, "layer %s already in stack", l.ID).
			WithComponent("stack").
			WithOperation("add")
	}

	s.layers = append(s.layers, l)
	SortByPriority(s.layers)
	s.publish(l)

	s.logger.Debug("added layer",
		zap.Stringer("layer", l.ID),
		zap.Uint32("priority", l.Priority),
		zap.Int("layers", len(s.layers)))
	return nil
}

// Remove takes the layer out of the stack and returns it.
func (s *Stack) Remove(id uuid.UUID) (*CompositeLayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, s.notFound(id, "remove")
	}
	l := s.layers[i]
	s.layers = slices.Delete(s.layers, i, i+1)
	s.metrics.ForgetLayer(id.String())

	s.logger.Debug("removed layer", zap.Stringer("layer", id))
	return l, nil
}

// Get returns the layer with the given ID. The caller must not use it
// outside Update or View while the stack is shared.
func (s *Stack) Get(id uuid.UUID) (*CompositeLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.layers[i], true
	}
	return nil, false
}

// Len returns the number of layers.
func (s *Stack) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Layers returns the layers in scan order.
func (s *Stack) Layers() []*CompositeLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.layers)
}

// Update runs fn with exclusive access to the layer and republishes its
// set gauges afterwards.
func (s *Stack) Update(id uuid.UUID, fn func(*CompositeLayer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.notFound(id, "update")
	}
	l := s.layers[i]
	err := fn(l)
	s.publish(l)
	return err
}

// View runs fn with shared access to the layer. fn must only call read-only
// operations.
func (s *Stack) View(id uuid.UUID, fn func(*CompositeLayer) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return s.notFound(id, "view")
	}
	return fn(s.layers[i])
}

// Locate scans the layers in priority order and attributes each byte of in
// to the first layer holding it. Bytes no layer holds are returned as gaps.
func (s *Stack) Locate(in extent.Extent, isWrite bool) (Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !in.Valid() {
		return Location{Request: in}, errors.Newf(errors.ErrCodeInvalidExtent, "extent %s is empty or overflows", in).
			WithComponent("stack").
			WithOperation("locate")
	}

	loc := Location{Request: in}
	pending := []extent.Extent{in}

	for _, l := range s.layers {
		if len(pending) == 0 {
			break
		}

		var next []extent.Extent
		for _, gap := range pending {
			m, err := l.MatchExtent(gap, MatchIntersect, isWrite, false)
			if err != nil {
				return Location{Request: in}, err
			}
			for _, c := range m.Covered {
				loc.Placements = append(loc.Placements, Placement{LayerID: l.ID, Extent: c})
			}
			next = append(next, m.Gaps()...)
		}
		pending = next
	}

	slices.SortFunc(loc.Placements, func(a, b Placement) int {
		switch {
		case a.Extent.Offset < b.Extent.Offset:
			return -1
		case a.Extent.Offset > b.Extent.Offset:
			return 1
		default:
			return 0
		}
	})
	loc.Gaps = pending
	return loc, nil
}

// Evict drops in from the layer's selected set and sweeps the result
// immediately. It reports whether the set is left empty.
func (s *Stack) Evict(id uuid.UUID, in extent.Extent, isWrite bool) (bool, error) {
	var empty bool
	err := s.Update(id, func(l *CompositeLayer) error {
		var err error
		if empty, err = l.ExtentSubtract(in, isWrite); err != nil {
			return err
		}
		removed := l.DeleteMarkedExtents(isWrite)
		s.logger.Debug("evicted extent",
			zap.Stringer("layer", id),
			zap.String("set", setName(isWrite)),
			zap.Stringer("extent", in),
			zap.String("size", utils.FormatBytes(in.Length)),
			zap.Int("removed", removed),
			zap.Bool("empty", empty))
		return nil
	})
	return empty, err
}

// Prune removes every layer holding no read or write entries and returns
// their IDs.
func (s *Stack) Prune() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned []uuid.UUID
	s.layers = slices.DeleteFunc(s.layers, func(l *CompositeLayer) bool {
		if l.HasReadExtents() || l.HasWriteExtents() {
			return false
		}
		pruned = append(pruned, l.ID)
		return true
	})

	for _, id := range pruned {
		s.metrics.ForgetLayer(id.String())
	}
	if len(pruned) > 0 {
		s.logger.Info("pruned empty layers",
			zap.Int("pruned", len(pruned)),
			zap.Int("layers", len(s.layers)))
	}
	return pruned
}

// Stats returns the stats of every layer in scan order.
func (s *Stack) Stats() []types.LayerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.LayerStats, 0, len(s.layers))
	for _, l := range s.layers {
		out = append(out, l.Stats())
	}
	return out
}

func (s *Stack) indexOf(id uuid.UUID) int {
	return slices.IndexFunc(s.layers, func(l *CompositeLayer) bool { return l.ID == id })
}

func (s *Stack) notFound(id uuid.UUID, operation string) error {
	return errors.Newf(errors.ErrCodeLayerNotFound, "layer %s not in stack", id).
		WithComponent("stack").
		WithOperation(operation)
}

func (s *Stack) publish(l *CompositeLayer) {
	stats := l.Stats()
	s.metrics.UpdateSetStats(stats.LayerID, "read", stats.Reads)
	s.metrics.UpdateSetStats(stats.LayerID, "write", stats.Writes)
}
