package render

import (
	"math"
	"sort"

	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/visual"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// SpinRate is the scene rotation about +Y in radians per second.
	SpinRate = 0.02
	barWidth = 0.25
)

var (
	unitBottom = r3.Vec{Y: -0.5}
	unitTop    = r3.Vec{Y: 0.5}
	yAxis      = r3.Vec{Y: 1}
)

// Bar is one element projected onto a surface.
type Bar struct {
	Index     int
	X         float64
	Top       float64
	Bottom    float64
	HalfWidth float64
	Depth     float64
	Level     float64 // height relative to the frame's max height
	Color     params.RGB
}

// Layout projects every element of frame, spun by spin radians about +Y, and
// returns them sorted far to near. dst is reused when large enough.
func Layout(frame visual.Frame, cam Camera, spin float64, vp viewport, dst []Bar) []Bar {
	dst = dst[:0]
	v := cam.view()
	rot := r3.NewRotation(spin, yAxis)

	for i, el := range frame.Elements {
		bottom := rot.Rotate(el.Apply(unitBottom))
		top := rot.Rotate(el.Apply(unitTop))
		bx, by, depth, okBottom := v.project(bottom, vp)
		_, ty, _, okTop := v.project(top, vp)
		if !okBottom || !okTop {
			continue
		}

		level := 0.0
		if frame.MaxHeight > 0 {
			level = clamp01(el.Height / frame.MaxHeight)
		}
		dst = append(dst, Bar{
			Index:     i,
			X:         bx,
			Top:       math.Min(ty, by),
			Bottom:    math.Max(ty, by),
			HalfWidth: barWidth / 2 * v.pixelsPerUnit(depth, vp),
			Depth:     depth,
			Level:     level,
			Color:     frame.Color,
		})
	}

	sort.SliceStable(dst, func(i, j int) bool {
		return dst[i].Depth > dst[j].Depth
	})
	return dst
}

// ringRadius recovers the circle radius from the first element.
func ringRadius(frame visual.Frame) float64 {
	if len(frame.Elements) == 0 {
		return params.DefaultRadius
	}
	p := frame.Elements[0].Position
	return math.Hypot(p.X, p.Z)
}

// Surface lays frame out for a surface of square pixels seen through cam.
// Each bar's colour is shaded for colorModeName and clamped to [0, 1].
func Surface(frame visual.Frame, cam Camera, spin float64, width, height int, colorModeName string) []Bar {
	vp := viewport{width: width, height: height, pixelAspect: 1}
	bars := Layout(frame, cam, spin, vp, nil)
	mode := parseColorMode(colorModeName)
	for i := range bars {
		c := barColor(mode, bars[i], len(frame.Elements))
		bars[i].Color = params.RGB{R: clamp01(c.R), G: clamp01(c.G), B: clamp01(c.B)}
	}
	return bars
}

// FloorPoints projects the named floor style onto a surface of square pixels.
func FloorPoints(floorName string, frame visual.Frame, cam Camera, spin float64, width, height int) [][2]float64 {
	fn, ok := floorRegistry[floorName]
	if !ok {
		fn = floorGrid
	}
	vp := viewport{width: width, height: height, pixelAspect: 1}
	v := cam.view()
	rot := r3.NewRotation(spin, yAxis)

	pts := fn(ringRadius(frame))
	out := make([][2]float64, 0, len(pts))
	for _, p := range pts {
		x, y, _, ok := v.project(rot.Rotate(p), vp)
		if ok {
			out = append(out, [2]float64{x, y})
		}
	}
	return out
}
