package analyzer

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Levels summarises a byte spectrum for status displays.
type Levels struct {
	Bass    float64 `json:"bass"`
	Mid     float64 `json:"mid"`
	Treble  float64 `json:"treble"`
	Overall float64 `json:"overall"`
	PeakHz  float64 `json:"peakHz"`
}

// Summarize computes band averages in [0,1] for spectrum with the given bin width.
func Summarize(spectrum []uint8, binWidth float64) Levels {
	if len(spectrum) == 0 || binWidth <= 0 {
		return Levels{}
	}
	values := make([]float64, len(spectrum))
	for i, v := range spectrum {
		values[i] = float64(v) / 255
	}

	l := Levels{
		Bass:    bandEnergy(values, binWidth, 20, 250),
		Mid:     bandEnergy(values, binWidth, 250, 2000),
		Treble:  bandEnergy(values, binWidth, 2000, 8000),
		Overall: floats.Sum(values) / float64(len(values)),
	}
	if peak := floats.MaxIdx(values); values[peak] > 0 {
		l.PeakHz = float64(peak) * binWidth
	}
	return l
}

func bandEnergy(values []float64, resolution, minHz, maxHz float64) float64 {
	if minHz >= maxHz {
		return 0
	}
	lo := int(math.Floor(minHz / resolution))
	hi := int(math.Ceil(maxHz/resolution)) + 1
	if hi > len(values) {
		hi = len(values)
	}
	if lo >= hi {
		return 0
	}
	return clamp(floats.Sum(values[lo:hi])/float64(hi-lo), 0, 1)
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
