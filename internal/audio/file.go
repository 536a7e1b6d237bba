package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// SpeakerRate is the output rate; files at other rates are resampled.
const SpeakerRate beep.SampleRate = 44100

const resampleQuality = 4

// ErrUnsupportedFormat is returned for extensions other than wav, mp3 and flac.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Pauser is implemented by sources that can be paused.
type Pauser interface {
	SetPaused(paused bool)
	Paused() bool
}

// Ender is implemented by sources that can run out of samples.
type Ender interface {
	Ended() bool
}

// FileConfig controls file playback.
type FileConfig struct {
	Loop     bool
	RingSize int
}

// FilePlayer decodes a file, plays it on the speaker and records what is
// played into a Ring for analysis.
type FilePlayer struct {
	path     string
	file     *os.File
	decoder  beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	ring     *Ring
	tap      *tap
	duration time.Duration

	closeOnce sync.Once
	closeErr  error
}

var (
	speakerMu    sync.Mutex
	speakerReady bool
)

func ensureSpeaker() error {
	speakerMu.Lock()
	defer speakerMu.Unlock()
	if speakerReady {
		return nil
	}
	if err := speaker.Init(SpeakerRate, SpeakerRate.N(time.Second/20)); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}
	speakerReady = true
	return nil
}

// SupportedExtensions lists the file patterns OpenFile understands.
func SupportedExtensions() []string {
	return []string{"*.wav", "*.mp3", "*.flac"}
}

func decode(f *os.File, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(ext) {
	case ".wav":
		return wav.Decode(f)
	case ".mp3":
		return mp3.Decode(f)
	case ".flac":
		return flac.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// OpenFile starts playing path and returns the running player.
func OpenFile(path string, cfg FileConfig) (*FilePlayer, error) {
	ext := filepath.Ext(path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder, format, err := decode(f, ext)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	var stream beep.Streamer = decoder
	if cfg.Loop {
		stream = beep.Loop(-1, decoder)
	}
	if format.SampleRate != SpeakerRate {
		stream = beep.Resample(resampleQuality, format.SampleRate, SpeakerRate, stream)
	}

	p := &FilePlayer{
		path:     path,
		file:     f,
		decoder:  decoder,
		format:   format,
		ring:     NewRing(cfg.RingSize),
		duration: format.SampleRate.D(decoder.Len()),
	}
	p.ctrl = &beep.Ctrl{Streamer: stream}

	if err := ensureSpeaker(); err != nil {
		_ = decoder.Close()
		_ = f.Close()
		return nil, err
	}
	p.tap = newTap(p.ctrl, p.ring)
	speaker.Play(p.tap)
	return p, nil
}

// FileOpener adapts OpenFile to the Switcher.
func FileOpener(path string, cfg FileConfig) Opener {
	return func() (Source, error) {
		p, err := OpenFile(path, cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func (p *FilePlayer) Kind() Kind              { return KindFile }
func (p *FilePlayer) Label() string           { return filepath.Base(p.path) }
func (p *FilePlayer) SampleRate() float64     { return float64(SpeakerRate) }
func (p *FilePlayer) Duration() time.Duration { return p.duration }

// Samples copies the most recently played mono samples.
func (p *FilePlayer) Samples(dst []float32) {
	p.ring.Latest(dst)
}

// Ended reports whether playback reached the end of a non-looping file.
func (p *FilePlayer) Ended() bool {
	return p.tap.ended.Load()
}

// SetPaused pauses or resumes playback; a paused player feeds silence.
func (p *FilePlayer) SetPaused(paused bool) {
	speaker.Lock()
	p.ctrl.Paused = paused
	speaker.Unlock()
}

// Paused reports the playback state.
func (p *FilePlayer) Paused() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return p.ctrl.Paused
}

// Close detaches the player from the speaker and releases the file.
func (p *FilePlayer) Close() error {
	p.closeOnce.Do(func() {
		speaker.Lock()
		p.ctrl.Streamer = nil
		speaker.Unlock()
		speaker.Clear()

		p.closeErr = p.decoder.Close()
		// decoders that own the reader have already closed it
		if err := p.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) && p.closeErr == nil {
			p.closeErr = err
		}
	})
	return p.closeErr
}

// tap records the stereo stream it forwards as mono samples. Once the source
// is drained the ring is zeroed so readers see silence.
type tap struct {
	source beep.Streamer
	ring   *Ring
	mono   []float32
	ended  atomic.Bool
}

func newTap(src beep.Streamer, ring *Ring) *tap {
	return &tap{source: src, ring: ring}
}

func (t *tap) Stream(samples [][2]float64) (int, bool) {
	n, ok := t.source.Stream(samples)
	if n > 0 {
		if cap(t.mono) < n {
			t.mono = make([]float32, n)
		}
		mono := t.mono[:n]
		for i := 0; i < n; i++ {
			mono[i] = float32((samples[i][0] + samples[i][1]) * 0.5)
		}
		t.ring.Write(mono)
	}
	if !ok && !t.ended.Swap(true) {
		t.ring.Reset()
	}
	return n, ok
}

func (t *tap) Err() error { return t.source.Err() }
