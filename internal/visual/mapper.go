// Package visual turns a byte frequency spectrum into per-bar transforms for
// a ring of bars.
package visual

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidElementCount = errors.New("element count must be positive")
	ErrInvalidBufferLength = errors.New("buffer length must not be negative")
	ErrNoBins              = errors.New("no frequency bins available")
)

// curveOctaves controls how strongly low bins are favoured.
const curveOctaves = 8

// Mapping assigns one frequency bin to each element. It is immutable once built.
type Mapping struct {
	Bins         []int
	BufferLength int
}

// Len reports the number of elements covered.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.Bins)
}

// BinMap spreads elementCount elements over bufferLength bins on an
// exponential curve, so bass bins get more bars than the top of the spectrum.
// The result is non-decreasing and every value is in [0, bufferLength).
func BinMap(elementCount, bufferLength int) ([]int, error) {
	if elementCount <= 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidElementCount, elementCount)
	}
	if bufferLength < 0 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidBufferLength, bufferLength)
	}
	if bufferLength == 0 {
		return nil, ErrNoBins
	}

	denom := math.Exp2(curveOctaves) - 1
	last := bufferLength - 1
	bins := make([]int, elementCount)
	for i := range bins {
		t := float64(i) / float64(elementCount)
		idx := int(math.Floor((math.Exp2(curveOctaves*t) - 1) / denom * float64(last)))
		bins[i] = clampInt(idx, 0, last)
	}
	return bins, nil
}

// NewMapping wraps BinMap into a Mapping.
func NewMapping(elementCount, bufferLength int) (*Mapping, error) {
	bins, err := BinMap(elementCount, bufferLength)
	if err != nil {
		return nil, err
	}
	return &Mapping{Bins: bins, BufferLength: bufferLength}, nil
}

// BassIndex returns the bin nearest below BassHz for the given bin width, or
// -1 when the width is unusable.
func BassIndex(binWidth float64) int {
	if binWidth <= 0 || math.IsNaN(binWidth) || math.IsInf(binWidth, 0) {
		return -1
	}
	return int(math.Floor(BassHz / binWidth))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
