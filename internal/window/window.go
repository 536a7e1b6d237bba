// Package window hosts the visualizer in a native ebiten window. The window
// owns the animation callback and drives the host one tick per update.
package window

import (
	"context"
	"errors"
	"math"

	"github.com/guidoenr/ringbars/internal/visual"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when the binary was built without window support.
var ErrUnavailable = errors.New("window backend not compiled in (build with -tags ebiten)")

// Host is the application side of the window.
type Host interface {
	Advance(delta float64) (visual.Frame, float64, error)
	HandleRune(r rune) bool
	StatusText() string
	Appearance() (colorMode, floor string)
}

// Options configures the window. The window closes when Context is done.
type Options struct {
	Context context.Context
	Width   int
	Height  int
	Title   string
	TPS     int
	Log     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 960
	}
	if o.Height <= 0 {
		o.Height = 540
	}
	if o.Title == "" {
		o.Title = "ringbars"
	}
	if o.TPS <= 0 {
		o.TPS = 60
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	return o
}

// orbitPerPixel converts a mouse drag into camera orbit radians.
const orbitPerPixel = 0.005

// dragOrbit turns a cursor move from (px, py) to (x, y) into orbit deltas.
// Dragging right turns the ring to the right and dragging down raises the eye.
func dragOrbit(px, py, x, y int) (dAzimuth, dElevation float64) {
	return -float64(x-px) * orbitPerPixel, float64(y-py) * orbitPerPixel
}

// channel converts a colour component to a byte, clamping out-of-range input.
func channel(v float64) uint8 {
	return uint8(math.Round(math.Min(1, math.Max(0, v)) * 255))
}
