package render

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/visual"
	"gonum.org/v1/gonum/spatial/r3"
)

func testFrame(t *testing.T, level uint8) visual.Frame {
	t.Helper()
	cfg := params.Defaults()
	cfg.ElementCount = 32
	mapping, err := visual.NewMapping(cfg.ElementCount, 1024)
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}
	buffer := make([]uint8, 1024)
	for i := range buffer {
		buffer[i] = level
	}
	return visual.RenderFrame(buffer, mapping, cfg, -1)
}

func TestCameraProjectsTargetToCentre(t *testing.T) {
	cam := DefaultCamera()
	x, y, ok := cam.Project(r3.Vec{}, 80, 40, cellAspect)
	if !ok {
		t.Fatalf("target not visible")
	}
	if math.Abs(x-40) > 1e-9 || math.Abs(y-20) > 1e-9 {
		t.Fatalf("target at (%f,%f), want centre", x, y)
	}

	if x, _, _ := cam.Project(r3.Vec{X: 3}, 80, 40, cellAspect); x <= 40 {
		t.Fatalf("+X should be right of centre, got %f", x)
	}
	if _, y, _ := cam.Project(r3.Vec{Y: 3}, 80, 40, cellAspect); y >= 20 {
		t.Fatalf("+Y should be above centre, got %f", y)
	}
	if _, _, ok := cam.Project(r3.Vec{Y: 6, Z: 30}, 80, 40, cellAspect); ok {
		t.Fatalf("point behind the camera reported visible")
	}
}

func TestLayoutSortsFarToNear(t *testing.T) {
	frame := testFrame(t, 255)
	vp := viewport{width: 120, height: 40, pixelAspect: cellAspect}
	bars := Layout(frame, DefaultCamera(), 0, vp, nil)
	if len(bars) != len(frame.Elements) {
		t.Fatalf("bars=%d elements=%d", len(bars), len(frame.Elements))
	}
	for i, b := range bars {
		if b.Top >= b.Bottom {
			t.Fatalf("bar %d top %f not above bottom %f", b.Index, b.Top, b.Bottom)
		}
		if b.HalfWidth <= 0 {
			t.Fatalf("bar %d has no width", b.Index)
		}
		if i > 0 && b.Depth > bars[i-1].Depth {
			t.Fatalf("bars not sorted far to near at %d", i)
		}
	}
}

func TestLayoutTallerForLouderInput(t *testing.T) {
	vp := viewport{width: 120, height: 40, pixelAspect: cellAspect}
	quiet := Layout(testFrame(t, 0), DefaultCamera(), 0, vp, nil)
	loud := Layout(testFrame(t, 255), DefaultCamera(), 0, vp, nil)

	height := func(bars []Bar, index int) float64 {
		for _, b := range bars {
			if b.Index == index {
				return b.Bottom - b.Top
			}
		}
		t.Fatalf("bar %d missing", index)
		return 0
	}
	if height(loud, 0) <= height(quiet, 0) {
		t.Fatalf("loud bar %f not taller than quiet bar %f", height(loud, 0), height(quiet, 0))
	}
}

func TestLayoutSpin(t *testing.T) {
	frame := testFrame(t, 128)
	vp := viewport{width: 120, height: 40, pixelAspect: cellAspect}
	find := func(bars []Bar) Bar {
		for _, b := range bars {
			if b.Index == 0 {
				return b
			}
		}
		t.Fatalf("bar 0 missing")
		return Bar{}
	}
	still := find(Layout(frame, DefaultCamera(), 0, vp, nil))
	turned := find(Layout(frame, DefaultCamera(), math.Pi, vp, nil))
	if still.X <= 60 || turned.X >= 60 {
		t.Fatalf("half turn should mirror element 0: still=%f turned=%f", still.X, turned.X)
	}
}

func TestRenderFrameDimensions(t *testing.T) {
	r, err := New(80, 24, "blocks", "spectrum", "grid", false)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out := r.Render(testFrame(t, 200), 0, Status{Source: "synthetic", Elements: 32, Sensitivity: 1})
	if len(out.Lines) != 24 {
		t.Fatalf("lines=%d", len(out.Lines))
	}
	drawn := false
	for i, line := range out.Lines {
		if n := utf8.RuneCountInString(line); n != 80 {
			t.Fatalf("line %d has %d cells", i, n)
		}
		if strings.ContainsAny(line, string(blocksPalette[1:])) {
			drawn = true
		}
	}
	if !drawn {
		t.Fatalf("no bar glyphs drawn")
	}
	if !strings.Contains(out.Status, "palette=blocks") || !strings.Contains(out.Status, "src synthetic") {
		t.Fatalf("unexpected status %q", out.Status)
	}
	if out.Present != nil {
		t.Fatalf("terminal frames are printed, not presented")
	}
}

func TestRenderANSIResetsEachLine(t *testing.T) {
	r, err := New(40, 12, "default", "base", "none", true)
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	out := r.Render(testFrame(t, 255), 0, Status{})
	for i, line := range out.Lines {
		if !strings.HasSuffix(line, resetANSI) {
			t.Fatalf("line %d missing reset", i)
		}
	}
	if !strings.Contains(out.Status, "src none") {
		t.Fatalf("status %q", out.Status)
	}
}

func TestNewRejectsEmptySurface(t *testing.T) {
	if _, err := New(0, 10, "", "", "", false); err == nil {
		t.Fatalf("expected error for zero width")
	}
}

func TestConfigureFallbacks(t *testing.T) {
	r, _ := New(10, 10, "", "", "", false)
	if r.PaletteName() != "default" || r.ColorModeName() != "base" || r.FloorName() != "grid" {
		t.Fatalf("defaults: %s %s %s", r.PaletteName(), r.ColorModeName(), r.FloorName())
	}
	r.Configure("sparkles", "gray", "checkerboard")
	if r.PaletteName() != "default" || r.ColorModeName() != "mono" || r.FloorName() != "grid" {
		t.Fatalf("aliases: %s %s", r.ColorModeName(), r.FloorName())
	}
}

func TestCycling(t *testing.T) {
	if got := NextColorMode("base"); got != "spectrum" {
		t.Fatalf("after base got %s", got)
	}
	if got := NextColorMode("mono"); got != "base" {
		t.Fatalf("after mono got %s", got)
	}
	if got := NextPalette("lines"); got != "default" {
		t.Fatalf("after lines got %s", got)
	}
	if got := NextPalette("unknown"); got != "default" {
		t.Fatalf("unknown palette got %s", got)
	}
	names := ColorModeNames()
	if len(names) != 3 || names[0] != "base" {
		t.Fatalf("color modes %v", names)
	}
	if len(FloorNames()) != len(floorRegistry) {
		t.Fatalf("floor names %v", FloorNames())
	}
}

func TestRGBToANSI(t *testing.T) {
	cases := map[string]struct {
		r, g, b float64
		want    int
	}{
		"red":   {1, 0, 0, 196},
		"black": {0, 0, 0, 232},
		"white": {1, 1, 1, 255},
		"over":  {2, 0, 0, 196},
	}
	for name, tc := range cases {
		if got := rgbToANSI(tc.r, tc.g, tc.b); got != tc.want {
			t.Fatalf("%s: got %d want %d", name, got, tc.want)
		}
	}
}

func TestBarColorModes(t *testing.T) {
	b := Bar{Index: 8, Level: 1, Color: params.RGB{R: 0.2, G: 0.8, B: 1}}
	base := barColor(colorModeBase, b, 32)
	if math.Abs(base.R-b.Color.R) > 1e-9 || math.Abs(base.B-b.Color.B) > 1e-9 {
		t.Fatalf("full level should keep the base colour, got %+v", base)
	}
	mono := barColor(colorModeMono, b, 32)
	if mono.R != mono.G || mono.G != mono.B {
		t.Fatalf("mono not gray: %+v", mono)
	}
	hue := barColor(colorModeSpectrum, b, 32)
	if hue == base {
		t.Fatalf("spectrum should ignore the base colour")
	}
}

func TestSurfaceClampsPulsedColour(t *testing.T) {
	cfg := params.Defaults()
	mapping, err := visual.NewMapping(cfg.ElementCount, 1024)
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}
	buffer := make([]uint8, 1024)
	for i := range buffer {
		buffer[i] = 255
	}
	frame := visual.RenderFrame(buffer, mapping, cfg, 2)
	if frame.Color.B <= 1 {
		t.Fatalf("expected the bass pulse to push blue past 1, got %f", frame.Color.B)
	}

	bars := Surface(frame, DefaultCamera(), 0, 640, 360, "base")
	if len(bars) == 0 {
		t.Fatalf("no bars on surface")
	}
	for _, b := range bars {
		for _, ch := range []float64{b.Color.R, b.Color.G, b.Color.B} {
			if ch < 0 || ch > 1 {
				t.Fatalf("bar %d colour %+v out of range", b.Index, b.Color)
			}
		}
	}
}

func TestCameraOrbit(t *testing.T) {
	cam := DefaultCamera()
	dist := r3.Norm(r3.Sub(cam.Eye, cam.Target))

	same := cam.Orbit(0, 0)
	if r3.Norm(r3.Sub(same.Eye, cam.Eye)) > 1e-9 {
		t.Fatalf("zero orbit moved the eye to %+v", same.Eye)
	}

	quarter := cam.Orbit(math.Pi/2, 0)
	if math.Abs(r3.Norm(r3.Sub(quarter.Eye, quarter.Target))-dist) > 1e-9 {
		t.Fatalf("orbit changed the distance")
	}
	if quarter.Eye.X <= 0 || math.Abs(quarter.Eye.Z) > 1e-9 || math.Abs(quarter.Eye.Y-cam.Eye.Y) > 1e-9 {
		t.Fatalf("quarter turn eye %+v", quarter.Eye)
	}

	top := cam.Orbit(0, 10)
	if got := math.Asin(top.Eye.Y / dist); math.Abs(got-maxElevation) > 1e-9 {
		t.Fatalf("elevation %f not clamped to %f", got, maxElevation)
	}
	low := cam.Orbit(0, -10)
	if low.Eye.Y <= 0 {
		t.Fatalf("orbit went below the floor: %+v", low.Eye)
	}
	if x, y, ok := top.Project(r3.Vec{}, 80, 40, 1); !ok || math.Abs(x-40) > 1e-6 || math.Abs(y-20) > 1e-6 {
		t.Fatalf("orbited camera lost the target: (%f,%f,%v)", x, y, ok)
	}
}

func TestBarRowsCoverShortBars(t *testing.T) {
	cases := map[string]struct {
		top, bottom float64
		y0, y1      int
	}{
		"sub-row":   {10.2, 10.6, 10, 10},
		"tall":      {3.5, 9, 3, 8},
		"exact row": {4, 5, 4, 4},
	}
	for name, tc := range cases {
		y0, y1 := barRows(Bar{Top: tc.top, Bottom: tc.bottom})
		if y0 != tc.y0 || y1 != tc.y1 {
			t.Fatalf("%s: got %d..%d want %d..%d", name, y0, y1, tc.y0, tc.y1)
		}
	}
}
