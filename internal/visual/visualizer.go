package visual

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/guidoenr/ringbars/internal/params"
	"go.uber.org/zap"
)

// ErrDisposed is returned by writers after Dispose.
var ErrDisposed = errors.New("visualizer disposed")

// state is published as a whole so a tick never mixes an old mapping with a
// new configuration.
type state struct {
	cfg       params.Config
	mapping   *Mapping
	bins      int
	binWidth  float64
	bassIndex int
}

// Visualizer owns the mapping and configuration for one ring of bars.
// Tick is meant to be called from a single loop goroutine; Configure and
// Rebind may be called from anywhere.
type Visualizer struct {
	mu       sync.Mutex
	cur      atomic.Pointer[state]
	disposed atomic.Bool
	log      *zap.Logger
}

// New validates cfg and returns a Visualizer with no analysis bound yet.
func New(cfg params.Config, log *zap.Logger) (*Visualizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("visual config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	v := &Visualizer{log: log}
	v.cur.Store(&state{cfg: cfg, bassIndex: -1})
	return v, nil
}

// Configure swaps in a new configuration. The mapping is rebuilt when the
// element count changes. Invalid input leaves the previous state in place.
func (v *Visualizer) Configure(cfg params.Config) error {
	if v.disposed.Load() {
		return ErrDisposed
	}
	if err := cfg.Validate(); err != nil {
		v.log.Warn("rejected configuration", zap.Error(err))
		return fmt.Errorf("visual config: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	old := v.cur.Load()
	next := *old
	next.cfg = cfg
	if cfg.ElementCount != old.cfg.ElementCount {
		m, err := buildMapping(cfg.ElementCount, old.bins)
		if err != nil {
			return err
		}
		next.mapping = m
		v.log.Debug("rebuilt mapping",
			zap.Int("elements", cfg.ElementCount),
			zap.Int("bins", old.bins))
	}
	v.cur.Store(&next)
	return nil
}

// Rebind attaches the visualizer to an analysis with the given bin count and
// bin width in Hz. A bin count of zero detaches it.
func (v *Visualizer) Rebind(bins int, binWidth float64) error {
	if v.disposed.Load() {
		return ErrDisposed
	}
	if bins < 0 {
		return fmt.Errorf("rebind: %w (got %d)", ErrInvalidBufferLength, bins)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	old := v.cur.Load()
	m, err := buildMapping(old.cfg.ElementCount, bins)
	if err != nil {
		return err
	}
	next := *old
	next.mapping = m
	next.bins = bins
	next.binWidth = binWidth
	next.bassIndex = -1
	if bins > 0 {
		next.bassIndex = BassIndex(binWidth)
	}
	v.cur.Store(&next)
	v.log.Debug("rebound analysis",
		zap.Int("bins", bins),
		zap.Float64("binWidthHz", binWidth),
		zap.Int("bassIndex", next.bassIndex))
	return nil
}

// Tick renders one frame from buffer. It never fails: without a usable
// buffer every bar sits at MinHeight.
func (v *Visualizer) Tick(buffer []uint8) Frame {
	if v.disposed.Load() {
		return Frame{}
	}
	s := v.cur.Load()
	return RenderFrame(buffer, s.mapping, s.cfg, s.bassIndex)
}

// Config returns the active configuration.
func (v *Visualizer) Config() params.Config {
	return v.cur.Load().cfg
}

// Bins returns a copy of the active bin assignment, nil when detached.
func (v *Visualizer) Bins() []int {
	m := v.cur.Load().mapping
	if m == nil {
		return nil
	}
	out := make([]int, len(m.Bins))
	copy(out, m.Bins)
	return out
}

// BufferLength reports the bin count the mapping was built for.
func (v *Visualizer) BufferLength() int {
	return v.cur.Load().bins
}

// BassBin is the bin sampled for the bass pulse, -1 when detached.
func (v *Visualizer) BassBin() int {
	return v.cur.Load().bassIndex
}

// Dispose drops the mapping; later ticks return an empty frame.
func (v *Visualizer) Dispose() {
	if v.disposed.Swap(true) {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	old := v.cur.Load()
	v.cur.Store(&state{cfg: old.cfg, bassIndex: -1})
}

func buildMapping(elements, bins int) (*Mapping, error) {
	if bins == 0 {
		return nil, nil
	}
	m, err := NewMapping(elements, bins)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	return m, nil
}
