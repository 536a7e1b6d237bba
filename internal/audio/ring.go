package audio

import "sync"

// Ring keeps the most recent mono samples written by an audio callback.
type Ring struct {
	mu     sync.RWMutex
	buffer []float32
	index  int
}

// NewRing allocates a ring holding size samples.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = defaultRingSize
	}
	return &Ring{buffer: make([]float32, size)}
}

// Size returns the capacity in samples.
func (r *Ring) Size() int { return len(r.buffer) }

// Write appends samples, overwriting the oldest ones.
func (r *Ring) Write(in []float32) {
	if len(in) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(in) >= len(r.buffer) {
		copy(r.buffer, in[len(in)-len(r.buffer):])
		r.index = 0
		return
	}

	if r.index+len(in) <= len(r.buffer) {
		copy(r.buffer[r.index:], in)
		r.index += len(in)
		if r.index == len(r.buffer) {
			r.index = 0
		}
		return
	}

	remaining := len(r.buffer) - r.index
	copy(r.buffer[r.index:], in[:remaining])
	copy(r.buffer, in[remaining:])
	r.index = len(in) - remaining
}

// Latest fills dst with the most recent len(dst) samples, oldest first.
// When dst is larger than the ring the leading part is zeroed.
func (r *Ring) Latest(dst []float32) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := len(r.buffer)
	n := min(len(dst), size)
	lead := len(dst) - n
	clear(dst[:lead])
	out := dst[lead:]

	start := (r.index - n + size) % size
	if start+n <= size {
		copy(out, r.buffer[start:start+n])
		return
	}
	first := copy(out, r.buffer[start:])
	copy(out[first:], r.buffer[:n-first])
}

// Reset zeroes the ring.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buffer)
	r.index = 0
}

// downmix averages interleaved frames into mono, reusing dst when it fits.
func downmix(in []float32, channels int, dst []float32) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	if cap(dst) < frames {
		dst = make([]float32, frames)
	}
	dst = dst[:frames]
	for i := range dst {
		sum := float32(0)
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			sum += in[base+ch]
		}
		dst[i] = sum / float32(channels)
	}
	return dst
}
