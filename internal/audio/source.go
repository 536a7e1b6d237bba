package audio

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Kind identifies where samples come from.
type Kind string

const (
	KindFile       Kind = "file"
	KindMicrophone Kind = "microphone"
	KindSynthetic  Kind = "synthetic"
)

const defaultRingSize = 8192

// ErrNoSource is returned when an operation needs an active source.
var ErrNoSource = errors.New("no active audio source")

// Source is a live stream of mono samples.
type Source interface {
	Kind() Kind
	Label() string
	SampleRate() float64
	// Samples fills dst with the most recent samples, oldest first.
	Samples(dst []float32)
	Close() error
}

// Opener creates a source. It runs only after the previous one is released.
type Opener func() (Source, error)

// Switcher keeps at most one source attached.
type Switcher struct {
	mu     sync.Mutex
	active Source
	log    *zap.Logger
}

// NewSwitcher returns an empty switcher.
func NewSwitcher(log *zap.Logger) *Switcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Switcher{log: log}
}

// Switch releases the current source and attaches the one returned by open.
// When open fails no source is left attached.
func (s *Switcher) Switch(open Opener) (Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseLocked()
	src, err := open()
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	if src == nil {
		return nil, ErrNoSource
	}
	s.active = src
	s.log.Info("audio source attached",
		zap.String("kind", string(src.Kind())),
		zap.String("label", src.Label()),
		zap.Float64("sampleRate", src.SampleRate()))
	return src, nil
}

// Active returns the attached source or nil.
func (s *Switcher) Active() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Release detaches and closes the current source.
func (s *Switcher) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

func (s *Switcher) releaseLocked() {
	if s.active == nil {
		return
	}
	src := s.active
	s.active = nil
	// teardown failures (already stopped, already closed) are not actionable
	if err := src.Close(); err != nil {
		s.log.Debug("audio source close", zap.String("label", src.Label()), zap.Error(err))
	}
	s.log.Info("audio source released", zap.String("kind", string(src.Kind())), zap.String("label", src.Label()))
}
