package render

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/guidoenr/ringbars/internal/analyzer"
	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/visual"
	"gonum.org/v1/gonum/spatial/r3"
)

type colorMode string
type backend int

const (
	colorModeBase     colorMode = "base"
	colorModeSpectrum colorMode = "spectrum"
	colorModeMono     colorMode = "mono"
)

const (
	backendTerminal backend = iota
	backendSDL
)

// cellAspect is the width of a terminal cell relative to its height.
const cellAspect = 0.5

const (
	floorGlyph = '.'
	floorColor = 238
)

// ErrRendererQuit is returned by Present when the user closed the window.
var ErrRendererQuit = errors.New("renderer closed")

var colorModeNames = []string{
	string(colorModeBase),
	string(colorModeSpectrum),
	string(colorModeMono),
}

// ColorModeNames returns the supported color modes.
func ColorModeNames() []string {
	out := make([]string, len(colorModeNames))
	copy(out, colorModeNames)
	sort.Strings(out)
	return out
}

// NextColorMode returns the mode after name, wrapping around.
func NextColorMode(name string) string {
	current := parseColorMode(name)
	for i, n := range colorModeNames {
		if n == string(current) {
			return colorModeNames[(i+1)%len(colorModeNames)]
		}
	}
	return colorModeNames[0]
}

func parseColorMode(name string) colorMode {
	switch strings.ToLower(name) {
	case "spectrum", "rainbow", "hue":
		return colorModeSpectrum
	case "mono", "monochrome", "bw", "gray":
		return colorModeMono
	default:
		return colorModeBase
	}
}

// Status is the information shown in the status bar.
type Status struct {
	Source      string
	Elements    int
	Sensitivity float64
	Levels      analyzer.Levels
	Paused      bool
	FPS         float64
}

// Renderer draws visualizer frames as ASCII, or into an SDL window when
// built with the sdl tag.
type Renderer struct {
	width         int
	height        int
	palette       []rune
	paletteName   string
	colorMode     colorMode
	floor         floorFunc
	floorName     string
	floorRadius   float64
	floorPoints   []r3.Vec
	useANSI       bool
	camera        Camera
	bars          []Bar
	cells         []cell
	statusBuilder strings.Builder
	mode          backend
	sdl           *sdlState
}

type cell struct {
	glyph rune
	color int
}

// Frame contains the rendered lines and status text. Present is set by
// windowed backends and must be called to show the frame.
type Frame struct {
	Lines   []string
	Status  string
	Present func(status string) error
}

var (
	resetANSI       = "\x1b[0m"
	precomputedANSI [256]string
)

func init() {
	for i := range precomputedANSI {
		precomputedANSI[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
	}
}

// New creates a terminal Renderer.
func New(width, height int, paletteName, colorModeName, floorName string, useANSI bool) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d height=%d", width, height)
	}

	r := &Renderer{
		width:       width,
		height:      height,
		useANSI:     useANSI,
		camera:      DefaultCamera(),
		floorRadius: -1,
	}
	r.Configure(paletteName, colorModeName, floorName)
	return r, nil
}

// Configure updates palette, color mode and floor style.
func (r *Renderer) Configure(paletteName, colorModeName, floorName string) {
	if !slices.Contains(PaletteNames(), paletteName) {
		paletteName = "default"
	}
	r.palette = Palette(paletteName)
	r.paletteName = paletteName

	key := strings.ToLower(floorName)
	if key == "" {
		key = "grid"
	}
	fn, ok := floorRegistry[key]
	if !ok {
		key, fn = "grid", floorGrid
	}
	if key != r.floorName {
		r.floorPoints = nil
		r.floorRadius = -1
	}
	r.floor = fn
	r.floorName = key

	r.colorMode = parseColorMode(colorModeName)
}

// Resize updates the framebuffer dimensions.
func (r *Renderer) Resize(width, height int) {
	changed := false
	if width > 0 && r.width != width {
		r.width = width
		changed = true
	}
	if height > 0 && r.height != height {
		r.height = height
		changed = true
	}
	if changed {
		r.cells = nil
		r.resizeSDL()
	}
}

// EnableSDL switches the renderer to an SDL window.
func (r *Renderer) EnableSDL() error {
	return r.initSDL(r.width, r.height)
}

// Windowed reports whether frames are shown in a window rather than printed.
func (r *Renderer) Windowed() bool { return r.windowedSDL() }

// Close releases window resources.
func (r *Renderer) Close() error { return r.closeSDL() }

func (r *Renderer) PaletteName() string   { return r.paletteName }
func (r *Renderer) ColorModeName() string { return string(r.colorMode) }
func (r *Renderer) FloorName() string     { return r.floorName }

// Render draws frame with the scene rotated by spin radians.
func (r *Renderer) Render(frame visual.Frame, spin float64, st Status) Frame {
	if r.width <= 0 || r.height <= 0 {
		return Frame{}
	}
	if r.mode == backendSDL {
		return r.renderSDL(frame, spin, st)
	}

	vp := viewport{width: r.width, height: r.height, pixelAspect: cellAspect}
	r.rasterize(frame, spin, vp)

	width := r.width
	height := r.height
	useANSI := r.useANSI
	cells := r.cells
	lines := make([]string, height)

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > height {
		numWorkers = height
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	var wg sync.WaitGroup
	rowJobs := make(chan int, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rowJobs {
				var builder strings.Builder
				builder.Grow(width * 8)
				lastColor := -1
				row := cells[y*width : (y+1)*width]
				for _, c := range row {
					if useANSI && c.glyph != ' ' && c.color != lastColor {
						builder.WriteString(colorCode(c.color))
						lastColor = c.color
					}
					builder.WriteRune(c.glyph)
				}
				if useANSI {
					builder.WriteString(resetANSI)
				}
				lines[y] = builder.String()
			}
		}()
	}

	for y := 0; y < height; y++ {
		rowJobs <- y
	}
	close(rowJobs)
	wg.Wait()

	return Frame{
		Lines:  lines,
		Status: r.buildStatus(frame, st),
	}
}

// rasterize fills r.cells with the floor and the bars, far bars first.
func (r *Renderer) rasterize(frame visual.Frame, spin float64, vp viewport) {
	size := vp.width * vp.height
	if len(r.cells) != size {
		r.cells = make([]cell, size)
	}
	for i := range r.cells {
		r.cells[i] = cell{glyph: ' '}
	}

	v := r.camera.view()
	rot := r3.NewRotation(spin, yAxis)
	for _, p := range r.floorFor(ringRadius(frame)) {
		x, y, _, ok := v.project(rot.Rotate(p), vp)
		if !ok {
			continue
		}
		r.plot(int(math.Floor(x)), int(math.Floor(y)), cell{glyph: floorGlyph, color: floorColor})
	}

	r.bars = Layout(frame, r.camera, spin, vp, r.bars)
	count := len(frame.Elements)
	for _, b := range r.bars {
		c := barColor(r.colorMode, b, count)
		body := cell{glyph: r.glyphFor(b.Level), color: rgbToANSI(c.R, c.G, c.B)}
		capCell := cell{glyph: r.palette[len(r.palette)-1], color: body.color}

		x0, x1 := barColumns(b)
		y0, y1 := barRows(b)
		for y := y0; y <= y1; y++ {
			fill := body
			if y == y0 {
				fill = capCell
			}
			for x := x0; x <= x1; x++ {
				r.plot(x, y, fill)
			}
		}
	}
}

func (r *Renderer) plot(x, y int, c cell) {
	if x < 0 || y < 0 || x >= r.width || y >= r.height {
		return
	}
	r.cells[y*r.width+x] = c
}

func (r *Renderer) floorFor(radius float64) []r3.Vec {
	if r.floorRadius != radius {
		r.floorPoints = r.floor(radius)
		r.floorRadius = radius
	}
	return r.floorPoints
}

// glyphFor picks a non-empty glyph for a bar of the given level.
func (r *Renderer) glyphFor(level float64) rune {
	n := len(r.palette)
	if n < 2 {
		return '#'
	}
	idx := 1 + int(clamp01(level)*float64(n-2)+0.5)
	return r.palette[clampInt(idx, 1, n-1)]
}

func barColumns(b Bar) (int, int) {
	x0 := int(math.Floor(b.X - b.HalfWidth + 0.5))
	x1 := int(math.Floor(b.X + b.HalfWidth - 0.5))
	if x1 < x0 {
		x0 = int(math.Floor(b.X))
		x1 = x0
	}
	return x0, x1
}

// barRows is the inclusive row span of b. A bar shorter than a row still
// covers one.
func barRows(b Bar) (int, int) {
	y0 := int(math.Floor(b.Top))
	y1 := int(math.Ceil(b.Bottom)) - 1
	if y1 < y0 {
		y1 = y0
	}
	return y0, y1
}

// barColor shades a bar by its level according to the color mode.
func barColor(mode colorMode, b Bar, count int) params.RGB {
	shade := 0.45 + 0.55*b.Level
	switch mode {
	case colorModeSpectrum:
		h := 0.0
		if count > 0 {
			h = float64(b.Index) / float64(count)
		}
		rr, gg, bb := hsvToRGB(h, 0.8, clamp01(shade))
		return params.RGB{R: rr, G: gg, B: bb}
	case colorModeMono:
		l := clamp01(luminance(b.Color) * shade)
		return params.RGB{R: l, G: l, B: l}
	default:
		return b.Color.Scale(shade)
	}
}

func luminance(c params.RGB) float64 {
	return 0.2126*c.R + 0.7152*c.G + 0.0722*c.B
}

func colorCode(index int) string {
	if index < 0 {
		index = 0
	} else if index >= len(precomputedANSI) {
		index = len(precomputedANSI) - 1
	}
	return precomputedANSI[index]
}

func hsvToRGB(h, s, v float64) (float64, float64, float64) {
	h = clamp01(h)
	s = clamp01(s)
	v = clamp01(v)

	if s == 0 {
		return v, v, v
	}

	hv := h * 6.0
	i := math.Floor(hv)
	f := hv - i
	p := v * (1.0 - s)
	q := v * (1.0 - s*f)
	t := v * (1.0 - s*(1.0-f))

	switch int(i) % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	// grayscale ramp
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func (r *Renderer) buildStatus(frame visual.Frame, st Status) string {
	builder := &r.statusBuilder
	builder.Reset()
	builder.Grow(128)
	builder.WriteString(strings.ToUpper(string(r.colorMode)))
	builder.WriteString(" | palette=")
	builder.WriteString(r.paletteName)
	builder.WriteString(" floor=")
	builder.WriteString(r.floorName)
	builder.WriteString(" | src ")
	if st.Source == "" {
		builder.WriteString("none")
	} else {
		builder.WriteString(st.Source)
	}
	if st.Paused {
		builder.WriteString(" (paused)")
	}
	builder.WriteString(" | n=")
	builder.WriteString(strconv.Itoa(st.Elements))
	builder.WriteString(" sens ")
	appendFloat(builder, st.Sensitivity, 2)
	builder.WriteString(" | bass ")
	appendFloat(builder, st.Levels.Bass, 2)
	builder.WriteString(" mid ")
	appendFloat(builder, st.Levels.Mid, 2)
	builder.WriteString(" treble ")
	appendFloat(builder, st.Levels.Treble, 2)
	builder.WriteString(" pulse ")
	appendFloat(builder, frame.Bass, 2)
	builder.WriteString(" fps ")
	appendFloat(builder, st.FPS, 1)
	return builder.String()
}

func appendFloat(builder *strings.Builder, value float64, precision int) {
	var buf [32]byte
	b := strconv.AppendFloat(buf[:0], value, 'f', precision, 64)
	builder.Write(b)
}
