package app

import (
	"math"
	"math/rand"
	"sync"

	"github.com/guidoenr/ringbars/internal/audio"
)

const syntheticRate = 44100

// synthSource is a deterministic test signal: a pulsing bass tone, a mid tone
// and a treble shimmer over a little noise.
type synthSource struct {
	mu        sync.Mutex
	rng       *rand.Rand
	t         float64
	phaseBass float64
	phaseMid  float64
	phaseHigh float64
}

func newSynthSource(seed int64) *synthSource {
	return &synthSource{rng: rand.New(rand.NewSource(seed))}
}

// SyntheticOpener returns an opener for the built-in test signal.
func SyntheticOpener(seed int64) audio.Opener {
	return func() (audio.Source, error) {
		return newSynthSource(seed), nil
	}
}

func (f *synthSource) Kind() audio.Kind   { return audio.KindSynthetic }
func (f *synthSource) Label() string       { return "synthetic" }
func (f *synthSource) SampleRate() float64 { return syntheticRate }
func (f *synthSource) Close() error        { return nil }

// Samples writes the next len(dst) samples of the signal.
func (f *synthSource) Samples(dst []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	const dt = 1.0 / syntheticRate
	for i := range dst {
		tt := f.t + float64(i)*dt
		bass := 0.5 + 0.5*math.Sin(2*math.Pi*0.7*tt)
		mid := 0.4 + 0.4*math.Sin(2*math.Pi*0.3*tt+0.5)
		high := 0.3 + 0.3*math.Sin(2*math.Pi*1.1*tt+1.0)

		v := 0.55*bass*math.Sin(f.phaseBass) +
			0.3*mid*math.Sin(f.phaseMid) +
			0.12*high*math.Sin(f.phaseHigh) +
			0.02*(f.rng.Float64()*2-1)
		dst[i] = float32(v)

		f.phaseBass += 2 * math.Pi * 55 * dt
		f.phaseMid += 2 * math.Pi * 440 * dt
		f.phaseHigh += 2 * math.Pi * 3520 * dt
	}
	f.t += float64(len(dst)) * dt
	f.phaseBass = math.Mod(f.phaseBass, 2*math.Pi)
	f.phaseMid = math.Mod(f.phaseMid, 2*math.Pi)
	f.phaseHigh = math.Mod(f.phaseHigh, 2*math.Pi)
}
