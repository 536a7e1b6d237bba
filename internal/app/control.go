package app

import (
	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/visual"
	"github.com/guidoenr/ringbars/internal/web"
)

var _ web.Controller = (*App)(nil)

// Status reports the latest tick for the web panel.
func (a *App) Status() web.StatusResponse {
	cfg := a.vis.Config()
	a.mu.Lock()
	look := a.look
	a.mu.Unlock()

	resp := web.StatusResponse{
		Config: cfg,
		Color:  cfg.BaseColor.Hex(),
		Renderer: web.RendererStatus{
			Palette:   look.palette,
			ColorMode: look.colorMode,
			Floor:     look.floor,
		},
		Bins: a.vis.BufferLength(),
	}
	if snap := a.latest.Load(); snap != nil {
		resp.FPS = snap.Status.FPS
		resp.Source = snap.Status.Source
		resp.Paused = snap.Status.Paused
		resp.Levels = snap.Status.Levels
	}
	if src := a.switcher.Active(); src != nil {
		resp.SourceKind = string(src.Kind())
	}
	return resp
}

// LatestFrame returns the most recent frame and scene spin.
func (a *App) LatestFrame() (visual.Frame, float64, bool) {
	snap := a.latest.Load()
	if snap == nil {
		return visual.Frame{}, 0, false
	}
	return snap.Frame, snap.Spin, true
}

// Config returns the visualizer configuration.
func (a *App) Config() params.Config { return a.vis.Config() }

// Configure validates cfg and hands it to the visualizer for the next tick.
func (a *App) Configure(cfg params.Config) error { return a.vis.Configure(cfg) }

// SetAppearance queues renderer changes for the next tick.
func (a *App) SetAppearance(palette, colorMode, floor string) {
	a.updateLook(func(l *appearance) {
		*l = appearance{palette: palette, colorMode: colorMode, floor: floor}
	})
}

// Settings captures what the save action persists.
func (a *App) Settings() params.Settings {
	a.mu.Lock()
	look := a.look
	a.mu.Unlock()
	return params.Settings{
		Visual:    a.vis.Config(),
		Palette:   look.palette,
		ColorMode: look.colorMode,
		Floor:     look.floor,
		FFTSize:   a.cfg.FFTSize,
		TargetFPS: a.cfg.TargetFPS,
	}
}
