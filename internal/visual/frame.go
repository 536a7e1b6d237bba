package visual

import (
	"math"

	"github.com/guidoenr/ringbars/internal/params"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// HeightScale is the bar height reached by a full-scale sample at sensitivity 1.
	HeightScale = 8.0
	// SampleMax is the resolution of the byte spectrum.
	SampleMax = 255.0
	// BassHz is the frequency sampled for the colour pulse.
	BassHz = 50.0

	pulseBase    = 0.6
	pulseGain    = 1.5
	emissiveBase = 0.35
	emissiveGain = 1.5
)

var up = r3.Vec{Y: 1}

// Transform places one unit-height bar.
type Transform struct {
	Position    r3.Vec
	Orientation quat.Number
	Scale       r3.Vec
	Height      float64
	Bin         int
}

// Apply maps a point of the unit bar into world space (scale, rotate, translate).
func (t Transform) Apply(local r3.Vec) r3.Vec {
	scaled := r3.Vec{X: local.X * t.Scale.X, Y: local.Y * t.Scale.Y, Z: local.Z * t.Scale.Z}
	return r3.Add(Rotate(t.Orientation, scaled), t.Position)
}

// Frame is everything a surface needs to draw one tick.
type Frame struct {
	Elements          []Transform
	Color             params.RGB
	EmissiveIntensity float64
	Bass              float64
	MaxHeight         float64
}

// RenderFrame computes one frame. buffer and mapping may be nil; any element
// whose mapping does not fit the buffer is drawn at MinHeight.
func RenderFrame(buffer []uint8, mapping *Mapping, cfg params.Config, bassIndex int) Frame {
	count := cfg.ElementCount
	usable := mapping != nil && len(buffer) > 0 && mapping.BufferLength == len(buffer)
	if usable {
		count = len(mapping.Bins)
	}
	if count < 0 {
		count = 0
	}

	frame := Frame{
		Elements:  make([]Transform, count),
		MaxHeight: math.Max(cfg.MinHeight, cfg.Sensitivity*HeightScale),
	}

	for i := range frame.Elements {
		bin := -1
		magnitude := 0.0
		if usable {
			bin = mapping.Bins[i]
			if bin >= 0 && bin < len(buffer) {
				magnitude = float64(buffer[bin]) / SampleMax
			}
		}
		frame.Elements[i] = placeElement(i, count, bin, elementHeight(magnitude, cfg), cfg.Radius)
	}

	if usable && bassIndex >= 0 && bassIndex < len(buffer) {
		frame.Bass = float64(buffer[bassIndex]) / SampleMax
	}
	frame.Color = cfg.BaseColor.Scale(pulseBase + math.Min(1, frame.Bass*pulseGain))
	frame.EmissiveIntensity = emissiveBase + frame.Bass*emissiveGain
	return frame
}

func elementHeight(magnitude float64, cfg params.Config) float64 {
	h := magnitude * cfg.Sensitivity * HeightScale
	if math.IsNaN(h) || h < cfg.MinHeight {
		return cfg.MinHeight
	}
	return h
}

func placeElement(i, count, bin int, height, radius float64) Transform {
	angle := float64(i) / float64(count) * 2 * math.Pi
	sin, cos := math.Sincos(angle)
	pos := r3.Vec{X: cos * radius, Y: height / 2, Z: sin * radius}
	return Transform{
		Position:    pos,
		Orientation: lookAt(pos, r3.Vec{Y: pos.Y}, up),
		Scale:       r3.Vec{X: 1, Y: height, Z: 1},
		Height:      height,
		Bin:         bin,
	}
}

// lookAt builds the rotation whose local +Z points from target to eye,
// matching the matrix lookAt convention used by scene graphs.
func lookAt(eye, target, upDir r3.Vec) quat.Number {
	z := r3.Sub(eye, target)
	if r3.Norm2(z) == 0 {
		z.Z = 1
	}
	z = r3.Unit(z)
	x := r3.Cross(upDir, z)
	if r3.Norm2(x) == 0 {
		// up and z are parallel; nudge z
		if math.Abs(upDir.Z) == 1 {
			z.X += 0.0001
		} else {
			z.Z += 0.0001
		}
		z = r3.Unit(z)
		x = r3.Cross(upDir, z)
	}
	x = r3.Unit(x)
	y := r3.Cross(z, x)
	return fromBasis(x, y, z)
}

// fromBasis converts the rotation matrix with columns x, y, z to a quaternion.
func fromBasis(x, y, z r3.Vec) quat.Number {
	m11, m12, m13 := x.X, y.X, z.X
	m21, m22, m23 := x.Y, y.Y, z.Y
	m31, m32, m33 := x.Z, y.Z, z.Z

	trace := m11 + m22 + m33
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		return quat.Number{Real: 0.25 / s, Imag: (m32 - m23) * s, Jmag: (m13 - m31) * s, Kmag: (m21 - m12) * s}
	case m11 > m22 && m11 > m33:
		s := 2 * math.Sqrt(1+m11-m22-m33)
		return quat.Number{Real: (m32 - m23) / s, Imag: 0.25 * s, Jmag: (m12 + m21) / s, Kmag: (m13 + m31) / s}
	case m22 > m33:
		s := 2 * math.Sqrt(1+m22-m11-m33)
		return quat.Number{Real: (m13 - m31) / s, Imag: (m12 + m21) / s, Jmag: 0.25 * s, Kmag: (m23 + m32) / s}
	default:
		s := 2 * math.Sqrt(1+m33-m11-m22)
		return quat.Number{Real: (m21 - m12) / s, Imag: (m13 + m31) / s, Jmag: (m23 + m32) / s, Kmag: 0.25 * s}
	}
}

// Rotate applies the unit quaternion q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
