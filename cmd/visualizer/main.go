package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guidoenr/ringbars/internal/app"
	"github.com/guidoenr/ringbars/internal/audio"
	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/render"
	"github.com/guidoenr/ringbars/internal/web"
	"github.com/guidoenr/ringbars/internal/window"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const (
	backendTerminal = "terminal"
	backendSDL      = "sdl"
	backendWindow   = "ebiten"
)

func main() {
	var (
		width       = flag.Int("width", 0, "Frame width (terminal cells or window pixels, 0 = auto)")
		height      = flag.Int("height", 0, "Frame height (terminal cells or window pixels, 0 = auto)")
		targetFPS   = flag.Float64("fps", 30, "Target frames per second")
		fftSize     = flag.Int("fft-size", 2048, "Analyser FFT size (power of two)")
		source      = flag.String("source", app.SourceMicrophone, "Audio source (microphone|file|synthetic|none)")
		filePath    = flag.String("file", "", "Audio file to play when source=file (.mp3|.wav|.flac)")
		loop        = flag.Bool("loop", true, "Loop file playback (-loop=false plays once)")
		deviceName  = flag.String("audio-device", "", "Optional PortAudio device name (substring match)")
		bufferSize  = flag.Int("buffer-size", 512, "PortAudio frames per callback")
		palette     = flag.String("palette", "default", "ASCII palette (default|blocks|dots|lines)")
		colorMode   = flag.String("color-mode", "base", "Color mode (base|spectrum|mono)")
		floor       = flag.String("floor", "grid", "Floor style (grid|rings|none)")
		baseColor   = flag.String("color", params.DefaultColor, "Base bar color as #rrggbb")
		elements    = flag.Int("elements", params.DefaultElementCount, "Number of bars in the ring")
		sensitivity = flag.Float64("sensitivity", params.DefaultSensitivity, "Height multiplier")
		minHeight   = flag.Float64("min-height", params.DefaultMinHeight, "Resting bar height")
		radius      = flag.Float64("radius", params.DefaultRadius, "Ring radius")
		noColor     = flag.Bool("no-color", false, "Disable ANSI color output")
		showStatus  = flag.Bool("status", true, "Display status bar")
		backend     = flag.String("backend", backendTerminal, "Output backend (terminal|sdl|ebiten)")
		webPort     = flag.Int("web-port", 0, "Serve the control panel on this port (0 = disabled)")
		configPath  = flag.String("config", "", "Load settings saved by the control panel")
		profilePath = flag.String("profile", "", "Append per-frame timings to this CSV file")
		debug       = flag.Bool("debug", false, "Enable verbose logging")
		logFile     = flag.String("log-file", "", "Write logs to this file instead of stderr")
		listDevs    = flag.Bool("list-audio-devices", false, "List available audio input devices and exit")
		seed        = flag.Int64("seed", 1, "Seed for the synthetic source")
	)

	flag.Parse()

	logger, err := newLogger(*debug, *logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if *listDevs {
		listDevices(logger)
		return
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	visualCfg := params.Defaults()
	settingsPath := params.SettingsPath()
	if *configPath != "" {
		settingsPath = *configPath
		s, err := params.LoadSettings(*configPath)
		if err != nil {
			logger.Fatal("load settings", zap.String("path", *configPath), zap.Error(err))
		}
		visualCfg = s.Visual
		if !set["palette"] && s.Palette != "" {
			*palette = s.Palette
		}
		if !set["color-mode"] && s.ColorMode != "" {
			*colorMode = s.ColorMode
		}
		if !set["floor"] && s.Floor != "" {
			*floor = s.Floor
		}
		if !set["fft-size"] && s.FFTSize > 0 {
			*fftSize = s.FFTSize
		}
		if !set["fps"] && s.TargetFPS > 0 {
			*targetFPS = s.TargetFPS
		}
	}
	if set["elements"] || *configPath == "" {
		visualCfg.ElementCount = *elements
	}
	if set["sensitivity"] || *configPath == "" {
		visualCfg.Sensitivity = *sensitivity
	}
	if set["min-height"] || *configPath == "" {
		visualCfg.MinHeight = *minHeight
	}
	if set["radius"] || *configPath == "" {
		visualCfg.Radius = *radius
	}
	if set["color"] || *configPath == "" {
		c, err := params.ParseColor(*baseColor)
		if err != nil {
			logger.Fatal("invalid color", zap.String("color", *baseColor), zap.Error(err))
		}
		visualCfg.BaseColor = c
	}
	if err := visualCfg.Validate(); err != nil {
		logger.Fatal("invalid visual settings", zap.Error(err))
	}

	if *targetFPS <= 0 {
		logger.Fatal("fps must be positive", zap.Float64("fps", *targetFPS))
	}
	if *width < 0 || *height < 0 {
		logger.Fatal("invalid dimensions", zap.Int("width", *width), zap.Int("height", *height))
	}

	switch *backend {
	case backendTerminal:
		if fd := int(os.Stdout.Fd()); *width == 0 || *height == 0 {
			if w, h, err := term.GetSize(fd); err == nil {
				if *width == 0 && w > 0 {
					*width = w
				}
				if *height == 0 && h > 0 {
					*height = h
				}
			}
		}
	case backendSDL:
		if !render.SupportsSDL() {
			logger.Fatal("sdl backend not compiled in (build with -tags sdl)")
		}
	case backendWindow:
		if !window.Supported() {
			logger.Fatal("window backend not available", zap.Error(window.ErrUnavailable))
		}
	default:
		logger.Fatal("unknown backend", zap.String("backend", *backend))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defer audio.Terminate()

	a, err := app.New(app.Config{
		Visual:        visualCfg,
		Palette:       *palette,
		ColorMode:     *colorMode,
		Floor:         *floor,
		Width:         *width,
		Height:        *height,
		TargetFPS:     *targetFPS,
		FFTSize:       *fftSize,
		ShowStatusBar: *showStatus,
		UseANSI:       !*noColor,
		UseSDL:        *backend == backendSDL,
		Source:        *source,
		FilePath:      *filePath,
		Loop:          *loop,
		DeviceName:    *deviceName,
		BufferSize:    *bufferSize,
		ProfilePath:   *profilePath,
		Seed:          *seed,
		Log:           logger,
	})
	if err != nil {
		logger.Fatal("failed to create app", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("cleanup error", zap.Error(err))
		}
	}()

	if *webPort > 0 {
		srv := web.NewServer(a, settingsPath, logger.Named("web"))
		go func() {
			if err := srv.Start(ctx, *webPort); err != nil {
				logger.Error("control panel stopped", zap.Error(err))
			}
		}()
		logger.Info("control panel listening", zap.Int("port", *webPort))
	}

	if *backend == backendWindow {
		err := window.Run(a, window.Options{
			Context: ctx,
			Width:   *width,
			Height:  *height,
			TPS:     int(*targetFPS),
			Log:     logger.Named("window"),
		})
		if err != nil {
			logger.Error("window error", zap.Error(err))
		}
		return
	}

	if err := a.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nExiting...")
			return
		}
		logger.Error("runtime error", zap.Error(err))
	}

	time.Sleep(50 * time.Millisecond)
}

// newLogger logs to a file when one is given. Otherwise only warnings reach
// stderr so the terminal frame stays readable.
func newLogger(debug bool, path string) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	if path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
		if !debug {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	} else {
		cfg.OutputPaths = []string{"stderr"}
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func listDevices(logger *zap.Logger) {
	defer audio.Terminate()
	devices, err := audio.ListInputDevices()
	if err != nil {
		logger.Fatal("list devices", zap.Error(err))
	}
	fmt.Printf("\n=== Audio Input Devices ===\n\n")
	for _, dev := range devices {
		markers := ""
		if dev.IsDefaultInput {
			markers += " (default)"
		}
		fmt.Printf("- %s [%s]%s\n    inputs:%d outputs:%d sample:%.0f Hz\n",
			dev.Name, dev.HostAPI, markers, dev.MaxInput, dev.MaxOutput, dev.DefaultSampleHz)
	}
	if dev, err := audio.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels)\n", dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels)
	}
}
