package render

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// floorFunc returns the world points drawn under a ring of the given radius.
type floorFunc func(radius float64) []r3.Vec

var floorRegistry = map[string]floorFunc{
	"grid":  floorGrid,
	"rings": floorRings,
	"none":  floorNone,
}

// FloorNames returns the available floor styles.
func FloorNames() []string {
	names := make([]string, 0, len(floorRegistry))
	for name := range floorRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// floorGrid is a 20x20 grid of side 40 centred at the origin, sampled along
// its lines.
func floorGrid(float64) []r3.Vec {
	const (
		half      = 20.0
		divisions = 20
		step      = 2 * half / divisions
		sample    = 0.5
	)
	var pts []r3.Vec
	for i := 0; i <= divisions; i++ {
		line := -half + float64(i)*step
		for s := -half; s <= half; s += sample {
			pts = append(pts, r3.Vec{X: line, Z: s}, r3.Vec{X: s, Z: line})
		}
	}
	return pts
}

func floorRings(radius float64) []r3.Vec {
	if radius <= 0 {
		radius = 1
	}
	var pts []r3.Vec
	for _, k := range []float64{0.5, 1, 1.5} {
		r := radius * k
		n := int(math.Max(16, r*12))
		for i := 0; i < n; i++ {
			s, c := math.Sincos(2 * math.Pi * float64(i) / float64(n))
			pts = append(pts, r3.Vec{X: c * r, Z: s * r})
		}
	}
	return pts
}

func floorNone(float64) []r3.Vec { return nil }
