//go:build ebiten

package window

import (
	"errors"
	"image/color"

	"github.com/guidoenr/ringbars/internal/render"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"
)

var (
	background = color.RGBA{7, 7, 10, 0xff}
	floorColor = color.RGBA{42, 42, 52, 0xff}
)

// Supported reports whether the window backend is available.
func Supported() bool { return true }

type game struct {
	host     Host
	opts     Options
	width    int
	height   int
	chars    []rune
	frame    []render.Bar
	floor    [][2]float64
	failed   int
	camera   render.Camera
	dragging bool
	dragX    int
	dragY    int
}

// Run opens the window and blocks until it is closed or the host asks to quit.
// It must be called from the main goroutine.
func Run(host Host, opts Options) error {
	opts = opts.withDefaults()
	ebiten.SetWindowSize(opts.Width, opts.Height)
	ebiten.SetWindowTitle(opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(opts.TPS)

	g := &game{
		host:   host,
		opts:   opts,
		width:  opts.Width,
		height: opts.Height,
		camera: render.DefaultCamera(),
	}
	err := ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

func (g *game) Update() error {
	if g.opts.Context.Err() != nil || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	g.updateOrbit()
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.host.HandleRune(' ')
	}
	g.chars = ebiten.AppendInputChars(g.chars[:0])
	for _, r := range g.chars {
		if r == ' ' {
			continue
		}
		if g.host.HandleRune(r) {
			return ebiten.Termination
		}
	}

	frame, spin, err := g.host.Advance(1.0 / float64(g.opts.TPS))
	if err != nil {
		g.failed++
		g.opts.Log.Warn("tick failed", zap.Error(err), zap.Int("consecutive", g.failed))
		return nil
	}
	g.failed = 0

	colorMode, floor := g.host.Appearance()
	g.frame = render.Surface(frame, g.camera, spin, g.width, g.height, colorMode)
	g.floor = render.FloorPoints(floor, frame, g.camera, spin, g.width, g.height)
	return nil
}

// updateOrbit orbits the camera while the left mouse button is dragged.
func (g *game) updateOrbit() {
	x, y := ebiten.CursorPosition()
	switch {
	case inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft):
		g.dragging = true
	case g.dragging && ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft):
		g.camera = g.camera.Orbit(dragOrbit(g.dragX, g.dragY, x, y))
	default:
		g.dragging = false
	}
	g.dragX, g.dragY = x, y
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	for _, p := range g.floor {
		vector.DrawFilledRect(screen, float32(p[0]), float32(p[1]), 1, 1, floorColor, false)
	}
	for _, b := range g.frame {
		c := color.RGBA{
			R: channel(b.Color.R),
			G: channel(b.Color.G),
			B: channel(b.Color.B),
			A: 0xff,
		}
		x := float32(b.X - b.HalfWidth)
		w := float32(2 * b.HalfWidth)
		if w < 1 {
			w = 1
		}
		vector.DrawFilledRect(screen, x, float32(b.Top), w, float32(b.Bottom-b.Top), c, true)
	}
	ebitenutil.DebugPrint(screen, g.host.StatusText())
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 {
		g.width, g.height = outsideWidth, outsideHeight
	}
	return g.width, g.height
}
