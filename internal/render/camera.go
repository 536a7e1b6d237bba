package render

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const nearPlane = 0.1

// Camera is a perspective camera looking from Eye at Target with +Y up.
type Camera struct {
	Eye    r3.Vec
	Target r3.Vec
	FOV    float64 // vertical, degrees
}

// DefaultCamera frames a ring of radius ~6 from slightly above.
func DefaultCamera() Camera {
	return Camera{
		Eye: r3.Vec{Y: 6, Z: 18},
		FOV: 60,
	}
}

const (
	minElevation = 0.05
	maxElevation = 1.45
)

// Orbit moves the eye around Target by the given azimuth and elevation deltas
// in radians, keeping its distance. Elevation stays above the floor and short
// of straight down.
func (c Camera) Orbit(dAzimuth, dElevation float64) Camera {
	offset := r3.Sub(c.Eye, c.Target)
	dist := r3.Norm(offset)
	if dist == 0 {
		return c
	}
	azimuth := math.Atan2(offset.X, offset.Z) + dAzimuth
	elevation := math.Asin(clampFloat(offset.Y/dist, -1, 1)) + dElevation
	elevation = clampFloat(elevation, minElevation, maxElevation)

	c.Eye = r3.Add(c.Target, r3.Vec{
		X: dist * math.Cos(elevation) * math.Sin(azimuth),
		Y: dist * math.Sin(elevation),
		Z: dist * math.Cos(elevation) * math.Cos(azimuth),
	})
	return c
}

type view struct {
	eye     r3.Vec
	right   r3.Vec
	up      r3.Vec
	forward r3.Vec
	focal   float64
}

func (c Camera) view() view {
	forward := r3.Unit(r3.Sub(c.Target, c.Eye))
	right := r3.Cross(forward, r3.Vec{Y: 1})
	if r3.Norm2(right) == 0 {
		right = r3.Vec{X: 1}
	}
	right = r3.Unit(right)
	return view{
		eye:     c.Eye,
		right:   right,
		up:      r3.Cross(right, forward),
		forward: forward,
		focal:   1 / math.Tan(c.FOV*math.Pi/360),
	}
}

// viewport describes the drawing surface. PixelAspect is pixel width divided
// by pixel height (terminal cells are roughly 0.5).
type viewport struct {
	width       int
	height      int
	pixelAspect float64
}

func (vp viewport) aspect() float64 {
	if vp.height == 0 {
		return 1
	}
	pa := vp.pixelAspect
	if pa <= 0 {
		pa = 1
	}
	return float64(vp.width) * pa / float64(vp.height)
}

// project maps p to surface coordinates. ok is false for points behind the near plane.
func (v view) project(p r3.Vec, vp viewport) (x, y, depth float64, ok bool) {
	d := r3.Sub(p, v.eye)
	depth = r3.Dot(d, v.forward)
	if depth <= nearPlane {
		return 0, 0, depth, false
	}
	ndcX := v.focal * r3.Dot(d, v.right) / (depth * vp.aspect())
	ndcY := v.focal * r3.Dot(d, v.up) / depth
	x = (ndcX + 1) / 2 * float64(vp.width)
	y = (1 - ndcY) / 2 * float64(vp.height)
	return x, y, depth, true
}

// pixelsPerUnit is the horizontal size of one world unit at depth.
func (v view) pixelsPerUnit(depth float64, vp viewport) float64 {
	if depth <= nearPlane {
		return 0
	}
	return v.focal / (depth * vp.aspect()) * float64(vp.width) / 2
}

// Project maps a world point onto a width x height surface.
func (c Camera) Project(p r3.Vec, width, height int, pixelAspect float64) (x, y float64, ok bool) {
	x, y, _, ok = c.view().project(p, viewport{width: width, height: height, pixelAspect: pixelAspect})
	return x, y, ok
}
