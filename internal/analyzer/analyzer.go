package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	MinFFTSize = 32
	MaxFFTSize = 32768

	DefaultFFTSize     = 2048
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

var (
	ErrInvalidFFTSize    = errors.New("fft size must be a power of two between 32 and 32768")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidRange      = errors.New("min decibels must be below max decibels")
)

// Analyzer produces byte magnitude spectra the way a browser AnalyserNode does:
// Blackman window, FFT, time smoothing, then a dB range squeezed into 0..255.
type Analyzer struct {
	sampleRate  float64
	fftSize     int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	buffer   []float64
	window   []float64
	smoothed []float64
}

// Config controls Analyzer behavior. Zero fields take the defaults.
type Config struct {
	SampleRate  float64
	FFTSize     int
	Smoothing   float64
	MinDecibels float64
	MaxDecibels float64
}

// New validates cfg and precomputes the window.
func New(cfg Config) (*Analyzer, error) {
	if cfg.SampleRate <= 0 || math.IsNaN(cfg.SampleRate) {
		return nil, fmt.Errorf("%w (got %v)", ErrInvalidSampleRate, cfg.SampleRate)
	}
	if cfg.FFTSize == 0 {
		cfg.FFTSize = DefaultFFTSize
	}
	if !validFFTSize(cfg.FFTSize) {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidFFTSize, cfg.FFTSize)
	}
	if cfg.Smoothing <= 0 || cfg.Smoothing >= 1 {
		cfg.Smoothing = DefaultSmoothing
	}
	if cfg.MinDecibels == 0 && cfg.MaxDecibels == 0 {
		cfg.MinDecibels = DefaultMinDecibels
		cfg.MaxDecibels = DefaultMaxDecibels
	}
	if cfg.MinDecibels >= cfg.MaxDecibels {
		return nil, fmt.Errorf("%w (%v >= %v)", ErrInvalidRange, cfg.MinDecibels, cfg.MaxDecibels)
	}

	a := &Analyzer{
		sampleRate:  cfg.SampleRate,
		fftSize:     cfg.FFTSize,
		smoothing:   cfg.Smoothing,
		minDecibels: cfg.MinDecibels,
		maxDecibels: cfg.MaxDecibels,
		buffer:      make([]float64, cfg.FFTSize),
		smoothed:    make([]float64, cfg.FFTSize/2),
	}
	a.window = make([]float64, cfg.FFTSize)
	for i := range a.window {
		a.window[i] = 1
	}
	window.Blackman(a.window)
	return a, nil
}

// FFTSize returns the analysis window length.
func (a *Analyzer) FFTSize() int { return a.fftSize }

// FrequencyBinCount is FFTSize/2.
func (a *Analyzer) FrequencyBinCount() int { return a.fftSize / 2 }

// SampleRate returns the rate the analyzer was built for.
func (a *Analyzer) SampleRate() float64 { return a.sampleRate }

// BinWidth is the width of one frequency bin in Hz.
func (a *Analyzer) BinWidth() float64 { return a.sampleRate / float64(a.fftSize) }

// Reset forgets the smoothing history.
func (a *Analyzer) Reset() {
	for i := range a.smoothed {
		a.smoothed[i] = 0
	}
}

// ByteFrequencyData analyses the most recent FFTSize samples and writes
// min(len(dst), FrequencyBinCount) bytes into dst. Short input is padded with
// silence at the front. It returns the number of bytes written.
func (a *Analyzer) ByteFrequencyData(samples []float32, dst []uint8) int {
	size := a.fftSize
	buffer := a.buffer

	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}
	pad := size - len(samples)
	for i := 0; i < pad; i++ {
		buffer[i] = 0
	}
	for i, s := range samples {
		buffer[pad+i] = float64(s) * a.window[pad+i]
	}

	spectrum := fft.FFTReal(buffer)

	bins := a.FrequencyBinCount()
	n := min(len(dst), bins)
	scale := 1.0 / float64(size)
	rangeScale := 255.0 / (a.maxDecibels - a.minDecibels)
	for k := 0; k < bins; k++ {
		mag := cmag(spectrum[k]) * scale
		if math.IsNaN(mag) || math.IsInf(mag, 0) {
			mag = 0
		}
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		if k >= n {
			continue
		}
		dst[k] = toByte(a.smoothed[k], a.minDecibels, rangeScale)
	}
	return n
}

func toByte(mag, minDB, rangeScale float64) uint8 {
	if mag <= 0 {
		return 0
	}
	db := 20 * math.Log10(mag)
	v := math.Floor(rangeScale * (db - minDB))
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func validFFTSize(n int) bool {
	return n >= MinFFTSize && n <= MaxFFTSize && n&(n-1) == 0
}

func cmag(c complex128) float64 {
	return math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
}

// NextPow2 rounds n up to a power of two.
func NextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}
