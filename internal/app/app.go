package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guidoenr/ringbars/internal/analyzer"
	"github.com/guidoenr/ringbars/internal/audio"
	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/render"
	"github.com/guidoenr/ringbars/internal/visual"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// Source names accepted by Config.Source.
const (
	SourceMicrophone = "microphone"
	SourceFile       = "file"
	SourceSynthetic  = "synthetic"
	SourceNone       = "none"
)

// Config configures the application runtime.
type Config struct {
	Visual        params.Config
	Palette       string
	ColorMode     string
	Floor         string
	Width         int
	Height        int
	TargetFPS     float64
	FFTSize       int
	ShowStatusBar bool
	UseANSI       bool
	UseSDL        bool
	Source        string
	FilePath      string
	Loop          bool
	DeviceName    string
	BufferSize    int
	ProfilePath   string
	Seed          int64
	Log           *zap.Logger
}

// Snapshot is the result of one tick.
type Snapshot struct {
	Frame  visual.Frame
	Spin   float64
	Status render.Status
}

type appearance struct {
	palette   string
	colorMode string
	floor     string
}

// App ties together audio sources, analysis, the visualizer and a surface.
type App struct {
	cfg          Config
	log          *zap.Logger
	vis          *visual.Visualizer
	renderer     *render.Renderer
	switcher     *audio.Switcher
	analyzer     *analyzer.Analyzer
	samples      []float32
	spectrum     []uint8
	profiler     *profiler
	spin         float64
	fps          float64
	last         time.Time
	width        int
	height       int
	renderHeight int
	inputEvents  chan inputEvent
	requests     chan func()

	mu             sync.Mutex
	look           appearance
	lookVersion    uint64
	appliedVersion uint64

	latest atomic.Pointer[Snapshot]
}

// New constructs the application and attaches the configured source. A source
// that fails to open is logged and leaves the ring at its resting height.
func New(cfg Config) (*App, error) {
	if cfg.TargetFPS <= 0 {
		cfg.TargetFPS = 30
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Width <= 0 {
		cfg.Width = 80
	}
	if cfg.Height <= 0 {
		cfg.Height = 24
	}
	if cfg.FFTSize == 0 {
		cfg.FFTSize = analyzer.DefaultFFTSize
	}
	if cfg.Visual == (params.Config{}) {
		cfg.Visual = params.Defaults()
	}
	renderHeight := cfg.Height
	if cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}

	vis, err := visual.New(cfg.Visual, cfg.Log.Named("visual"))
	if err != nil {
		return nil, err
	}
	renderer, err := render.New(cfg.Width, renderHeight, cfg.Palette, cfg.ColorMode, cfg.Floor, cfg.UseANSI)
	if err != nil {
		return nil, err
	}
	if cfg.UseSDL {
		if err := renderer.EnableSDL(); err != nil {
			return nil, fmt.Errorf("sdl backend: %w", err)
		}
	}

	app := &App{
		cfg:          cfg,
		log:          cfg.Log,
		vis:          vis,
		renderer:     renderer,
		switcher:     audio.NewSwitcher(cfg.Log.Named("audio")),
		width:        cfg.Width,
		height:       cfg.Height,
		renderHeight: renderHeight,
		requests:     make(chan func(), 8),
		look: appearance{
			palette:   renderer.PaletteName(),
			colorMode: renderer.ColorModeName(),
			floor:     renderer.FloorName(),
		},
	}
	app.profiler = newProfiler(cfg.ProfilePath, app.log)

	if open := app.openerFor(cfg.Source); open != nil {
		app.switchSource(open)
	}
	app.last = time.Now()
	return app, nil
}

// Run starts the frame loop until ctx is cancelled or the user quits.
func (a *App) Run(ctx context.Context) error {
	frameDuration := time.Duration(float64(time.Second) / a.cfg.TargetFPS)
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	terminal := !a.renderer.Windowed()
	if terminal {
		enterAltScreen()
		clearScreen()
		hideCursor()
		defer func() {
			showCursor()
			exitAltScreen()
		}()
	}

	inputCtx, cancelInput := context.WithCancel(ctx)
	defer cancelInput()
	a.startInputListener(inputCtx)
	if terminal {
		a.ensureDimensions()
	}

	for {
		select {
		case <-ctx.Done():
			if terminal {
				moveCursorHome()
			}
			return ctx.Err()
		case evt, ok := <-a.inputEvents:
			if !ok {
				a.inputEvents = nil
				continue
			}
			if a.apply(evt) {
				return nil
			}
		case fn := <-a.requests:
			fn()
		case <-ticker.C:
			if err := a.step(); err != nil {
				if errors.Is(err, render.ErrRendererQuit) {
					return nil
				}
				a.log.Warn("frame failed", zap.Error(err))
			}
		}
	}
}

// Advance runs one tick for hosts that own the animation callback.
func (a *App) Advance(delta float64) (frame visual.Frame, spin float64, err error) {
	defer a.recoverTick(&err)
	a.drainRequests()
	snap := a.advance(delta)
	a.profiler.endFrame()
	return snap.Frame, snap.Spin, nil
}

// Close releases the source, the visualizer and any window.
func (a *App) Close() error {
	a.switcher.Release()
	a.vis.Dispose()
	return errors.Join(a.renderer.Close(), a.profiler.Close())
}

func (a *App) recoverTick(err *error) {
	if r := recover(); r != nil {
		a.log.Error("tick panicked", zap.Any("panic", r), zap.Stack("stack"))
		*err = fmt.Errorf("tick panic: %v", r)
	}
}

func (a *App) drainRequests() {
	for {
		select {
		case fn := <-a.requests:
			fn()
		default:
			return
		}
	}
}

func (a *App) step() (err error) {
	defer a.recoverTick(&err)

	windowed := a.renderer.Windowed()
	if !windowed {
		a.ensureDimensions()
	}

	now := time.Now()
	delta := now.Sub(a.last).Seconds()
	if delta <= 0 {
		delta = 1.0 / a.cfg.TargetFPS
	}
	a.last = now

	snap := a.advance(delta)
	frame := a.renderer.Render(snap.Frame, snap.Spin, snap.Status)
	a.profiler.markSection("render")
	defer a.profiler.endFrame()

	if frame.Present != nil {
		return frame.Present(frame.Status)
	}

	moveCursorHome()
	for _, line := range frame.Lines {
		fmt.Println(line)
	}
	if a.cfg.ShowStatusBar {
		fmt.Print(statusBar(frame.Status, a.width))
	}
	return nil
}

// advance reads the active source, analyses it and ticks the visualizer.
func (a *App) advance(delta float64) *Snapshot {
	a.applyAppearance()
	a.profiler.beginFrame()

	src := a.switcher.Active()
	paused := isPaused(src)
	var (
		buffer []uint8
		levels analyzer.Levels
	)
	if src != nil && a.analyzer != nil {
		if paused || hasEnded(src) {
			clear(a.samples)
		} else {
			src.Samples(a.samples)
		}
		a.profiler.markSection("samples")
		n := a.analyzer.ByteFrequencyData(a.samples, a.spectrum)
		buffer = a.spectrum[:n]
		levels = analyzer.Summarize(buffer, a.analyzer.BinWidth())
		a.profiler.markSection("analyze")
	}

	frame := a.vis.Tick(buffer)
	a.profiler.markSection("tick")

	a.spin = math.Mod(a.spin+render.SpinRate*delta, 2*math.Pi)
	if delta > 0 {
		a.fps = 1 / delta
	}

	cfg := a.vis.Config()
	snap := &Snapshot{
		Frame: frame,
		Spin:  a.spin,
		Status: render.Status{
			Source:      sourceLabel(src),
			Elements:    cfg.ElementCount,
			Sensitivity: cfg.Sensitivity,
			Levels:      levels,
			Paused:      paused,
			FPS:         a.fps,
		},
	}
	a.latest.Store(snap)
	return snap
}

func (a *App) applyAppearance() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.appliedVersion == a.lookVersion {
		return
	}
	a.renderer.Configure(a.look.palette, a.look.colorMode, a.look.floor)
	a.look = appearance{
		palette:   a.renderer.PaletteName(),
		colorMode: a.renderer.ColorModeName(),
		floor:     a.renderer.FloorName(),
	}
	a.appliedVersion = a.lookVersion
	a.log.Debug("appearance changed",
		zap.String("palette", a.look.palette),
		zap.String("colorMode", a.look.colorMode),
		zap.String("floor", a.look.floor))
}

func (a *App) updateLook(fn func(*appearance)) {
	a.mu.Lock()
	fn(&a.look)
	a.lookVersion++
	a.mu.Unlock()
}

func (a *App) openerFor(kind string) audio.Opener {
	switch strings.ToLower(kind) {
	case SourceMicrophone, "mic":
		return audio.MicrophoneOpener(audio.MicConfig{
			DeviceName: a.cfg.DeviceName,
			BufferSize: a.cfg.BufferSize,
			Channels:   2,
		})
	case SourceFile:
		if a.cfg.FilePath == "" {
			a.log.Warn("file source requested without a path")
			return nil
		}
		return a.fileOpener(a.cfg.FilePath)
	case SourceSynthetic:
		return SyntheticOpener(a.cfg.Seed)
	default:
		return nil
	}
}

func (a *App) fileOpener(path string) audio.Opener {
	return audio.FileOpener(path, audio.FileConfig{Loop: a.cfg.Loop})
}

// switchSource releases the current source, opens the next one and rebinds
// the visualizer to the new analyzer. Any failure leaves no source bound.
func (a *App) switchSource(open audio.Opener) {
	if open == nil {
		return
	}
	a.analyzer = nil
	src, err := a.switcher.Switch(open)
	if err != nil {
		a.log.Warn("audio source unavailable", zap.Error(err))
		a.unbind()
		return
	}

	an, err := analyzer.New(analyzer.Config{
		SampleRate: src.SampleRate(),
		FFTSize:    a.cfg.FFTSize,
	})
	if err != nil {
		a.log.Warn("analyzer setup failed", zap.Error(err))
		a.switcher.Release()
		a.unbind()
		return
	}
	a.analyzer = an
	a.samples = make([]float32, an.FFTSize())
	a.spectrum = make([]uint8, an.FrequencyBinCount())
	if err := a.vis.Rebind(an.FrequencyBinCount(), an.BinWidth()); err != nil {
		a.log.Warn("visualizer rebind failed", zap.Error(err))
		return
	}
	a.log.Info("analyzer ready",
		zap.Int("bins", an.FrequencyBinCount()),
		zap.Float64("binWidth", an.BinWidth()))
}

func (a *App) unbind() {
	if err := a.vis.Rebind(0, 0); err != nil && !errors.Is(err, visual.ErrDisposed) {
		a.log.Warn("visualizer unbind failed", zap.Error(err))
	}
}

func isPaused(src audio.Source) bool {
	p, ok := src.(audio.Pauser)
	return ok && p.Paused()
}

func hasEnded(src audio.Source) bool {
	e, ok := src.(audio.Ender)
	return ok && e.Ended()
}

func sourceLabel(src audio.Source) string {
	if src == nil {
		return ""
	}
	return string(src.Kind()) + ":" + src.Label()
}

func (a *App) ensureDimensions() {
	fd := int(os.Stdout.Fd())
	if fd < 0 {
		return
	}
	w, h, err := term.GetSize(fd)
	if err != nil || w <= 0 || h <= 0 {
		return
	}

	renderHeight := h
	if a.cfg.ShowStatusBar && renderHeight > 1 {
		renderHeight--
	}
	if renderHeight <= 0 {
		renderHeight = 1
	}

	if w == a.width && h == a.height && renderHeight == a.renderHeight {
		return
	}

	a.width = w
	a.height = h
	a.renderHeight = renderHeight
	a.renderer.Resize(w, renderHeight)
}

func statusBar(text string, width int) string {
	if width <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return text + strings.Repeat(" ", width-len(runes))
}

func clearScreen() {
	fmt.Print("\x1b[2J")
	moveCursorHome()
}

func moveCursorHome() {
	fmt.Print("\x1b[H")
}

func hideCursor() {
	fmt.Print("\x1b[?25l")
}

func showCursor() {
	fmt.Print("\x1b[?25h")
}

func enterAltScreen() {
	fmt.Print("\x1b[?1049h")
}

func exitAltScreen() {
	fmt.Print("\x1b[?1049l\x1b[0m")
}
