package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unicode"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/ringbars/internal/audio"
	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/render"
	"github.com/ncruces/zenity"
	"go.uber.org/zap"
)

type inputEvent int

const (
	inputEventQuit inputEvent = iota
	inputEventSensitivityUp
	inputEventSensitivityDown
	inputEventCycleElements
	inputEventCycleColor
	inputEventCyclePalette
	inputEventCycleFloor
	inputEventMicrophone
	inputEventOpenFile
	inputEventSynthetic
	inputEventTogglePause
)

const sensitivityStep = 0.1

func eventForRune(r rune) (inputEvent, bool) {
	switch unicode.ToLower(r) {
	case 'q':
		return inputEventQuit, true
	case '+', '=':
		return inputEventSensitivityUp, true
	case '-', '_':
		return inputEventSensitivityDown, true
	case 'b':
		return inputEventCycleElements, true
	case 'c':
		return inputEventCycleColor, true
	case 'p':
		return inputEventCyclePalette, true
	case 'g':
		return inputEventCycleFloor, true
	case 'm':
		return inputEventMicrophone, true
	case 'o':
		return inputEventOpenFile, true
	case 's':
		return inputEventSynthetic, true
	case ' ':
		return inputEventTogglePause, true
	}
	return 0, false
}

// HandleRune applies a typed character and reports whether it asks to quit.
func (a *App) HandleRune(r rune) bool {
	evt, ok := eventForRune(r)
	if !ok {
		return false
	}
	return a.apply(evt)
}

// apply runs on the loop goroutine and reports whether to quit.
func (a *App) apply(evt inputEvent) bool {
	switch evt {
	case inputEventQuit:
		return true
	case inputEventSensitivityUp, inputEventSensitivityDown:
		delta := sensitivityStep
		if evt == inputEventSensitivityDown {
			delta = -delta
		}
		cfg := a.vis.Config().WithSensitivity(delta)
		if err := a.vis.Configure(cfg); err == nil {
			a.log.Debug("sensitivity changed", zap.Float64("sensitivity", cfg.Sensitivity))
		}
	case inputEventCycleElements:
		cfg := a.vis.Config()
		cfg.ElementCount = params.NextElementCount(cfg.ElementCount)
		if err := a.vis.Configure(cfg); err == nil {
			a.log.Info("element count changed", zap.Int("elements", cfg.ElementCount))
		}
	case inputEventCycleColor:
		a.updateLook(func(l *appearance) { l.colorMode = render.NextColorMode(l.colorMode) })
	case inputEventCyclePalette:
		a.updateLook(func(l *appearance) { l.palette = render.NextPalette(l.palette) })
	case inputEventCycleFloor:
		a.updateLook(func(l *appearance) { l.floor = nextName(render.FloorNames(), l.floor) })
	case inputEventMicrophone:
		a.switchSource(a.openerFor(SourceMicrophone))
	case inputEventOpenFile:
		a.promptForFile()
	case inputEventSynthetic:
		a.switchSource(SyntheticOpener(a.cfg.Seed))
	case inputEventTogglePause:
		if p, ok := a.switcher.Active().(audio.Pauser); ok {
			p.SetPaused(!p.Paused())
		}
	}
	return false
}

// promptForFile shows the file dialog off the loop and queues the switch.
func (a *App) promptForFile() {
	go func() {
		path, err := zenity.SelectFile(
			zenity.Title("Open audio file"),
			zenity.FileFilters{{
				Name:     "Audio",
				Patterns: audio.SupportedExtensions(),
			}},
		)
		if err != nil {
			if errors.Is(err, zenity.ErrCanceled) {
				a.log.Debug("file dialog cancelled")
				return
			}
			a.log.Warn("file dialog failed", zap.Error(err))
			return
		}
		a.post(func() { a.switchSource(a.fileOpener(path)) })
	}()
}

func (a *App) post(fn func()) {
	select {
	case a.requests <- fn:
	default:
		a.log.Warn("request queue full, dropping request")
	}
}

func nextName(names []string, current string) string {
	for i, n := range names {
		if n == current {
			return names[(i+1)%len(names)]
		}
	}
	if len(names) == 0 {
		return current
	}
	return names[0]
}

// StatusText is a one-line summary for window titles and overlays.
func (a *App) StatusText() string {
	snap := a.latest.Load()
	if snap == nil {
		return "ringbars"
	}
	st := snap.Status
	src := st.Source
	if src == "" {
		src = "none"
	}
	if st.Paused {
		src += " (paused)"
	}
	return fmt.Sprintf("%s | n=%d sens %.2f | bass %.2f mid %.2f treble %.2f | fps %.0f",
		src, st.Elements, st.Sensitivity, st.Levels.Bass, st.Levels.Mid, st.Levels.Treble, st.FPS)
}

// Appearance returns the current colour mode and floor style.
func (a *App) Appearance() (colorMode, floor string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.look.colorMode, a.look.floor
}

func (a *App) startInputListener(ctx context.Context) {
	if err := keyboard.Open(); err != nil {
		a.log.Info("keyboard input disabled", zap.Error(err))
		a.inputEvents = nil
		return
	}

	events := make(chan inputEvent, 16)
	a.inputEvents = events

	closeOnce := &sync.Once{}
	go func() {
		<-ctx.Done()
		closeOnce.Do(func() {
			_ = keyboard.Close()
		})
	}()

	go func() {
		defer close(events)
		defer closeOnce.Do(func() {
			_ = keyboard.Close()
		})
		for {
			char, key, err := keyboard.GetKey()
			if err != nil {
				return
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			var (
				evt inputEvent
				ok  bool
			)
			switch key {
			case keyboard.KeyEsc, keyboard.KeyCtrlC:
				evt, ok = inputEventQuit, true
			case keyboard.KeySpace:
				evt, ok = inputEventTogglePause, true
			default:
				evt, ok = eventForRune(char)
			}
			if !ok {
				continue
			}
			if evt == inputEventQuit {
				events <- evt
				return
			}
			select {
			case events <- evt:
			default:
			}
		}
	}()
}
