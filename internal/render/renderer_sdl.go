//go:build sdl

package render

import (
	"fmt"
	"math"
	"unsafe"

	"github.com/guidoenr/ringbars/internal/visual"
	"github.com/veandco/go-sdl2/sdl"
	"gonum.org/v1/gonum/spatial/r3"
)

type sdlState struct {
	initialized bool
	window      *sdl.Window
	renderer    *sdl.Renderer
	texture     *sdl.Texture
	pixelBuffer []byte
	width       int
	height      int
	pitch       int
	windowTitle string
}

func (r *Renderer) initSDL(width, height int) error {
	if r.sdl != nil {
		r.mode = backendSDL
		r.useANSI = false
		return nil
	}
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		return err
	}
	r.sdl = &sdlState{
		initialized: true,
	}
	r.mode = backendSDL
	r.useANSI = false
	return nil
}

func (r *Renderer) ensureSDLResources() error {
	if r.sdl == nil {
		return fmt.Errorf("SDL backend not initialized")
	}
	state := r.sdl
	if !state.initialized {
		if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
			return err
		}
		state.initialized = true
	}
	if state.window == nil {
		window, err := sdl.CreateWindow(
			"ringbars",
			sdl.WINDOWPOS_CENTERED, sdl.WINDOWPOS_CENTERED,
			int32(r.width), int32(r.height),
			sdl.WINDOW_SHOWN,
		)
		if err != nil {
			return err
		}
		state.window = window
	}
	if state.renderer == nil {
		renderer, err := sdl.CreateRenderer(state.window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
		if err != nil {
			return err
		}
		state.renderer = renderer
		_ = renderer.SetLogicalSize(int32(r.width), int32(r.height))
	}
	if state.texture == nil || state.width != r.width || state.height != r.height {
		if state.texture != nil {
			state.texture.Destroy()
			state.texture = nil
		}
		tex, err := state.renderer.CreateTexture(
			sdl.PIXELFORMAT_ABGR8888,
			sdl.TEXTUREACCESS_STREAMING,
			int32(r.width), int32(r.height),
		)
		if err != nil {
			return err
		}
		state.texture = tex
		state.width = r.width
		state.height = r.height
		state.pitch = r.width * 4
		state.pixelBuffer = make([]byte, state.pitch*r.height)
	} else if len(state.pixelBuffer) != state.pitch*r.height {
		state.pixelBuffer = make([]byte, state.pitch*r.height)
	}
	return nil
}

var (
	sdlBackground = [3]byte{7, 7, 10}
	sdlFloor      = [3]byte{42, 42, 52}
)

func (r *Renderer) renderSDL(frame visual.Frame, spin float64, st Status) Frame {
	if err := r.ensureSDLResources(); err != nil {
		return Frame{
			Status: fmt.Sprintf("SDL init error: %v", err),
			Present: func(string) error {
				return err
			},
		}
	}
	state := r.sdl
	width := r.width
	height := r.height
	vp := viewport{width: width, height: height, pixelAspect: 1}

	for i := 0; i < len(state.pixelBuffer); i += 4 {
		state.pixelBuffer[i+0] = sdlBackground[0]
		state.pixelBuffer[i+1] = sdlBackground[1]
		state.pixelBuffer[i+2] = sdlBackground[2]
		state.pixelBuffer[i+3] = 255
	}

	v := r.camera.view()
	rot := r3.NewRotation(spin, yAxis)
	for _, p := range r.floorFor(ringRadius(frame)) {
		x, y, _, ok := v.project(rot.Rotate(p), vp)
		if !ok {
			continue
		}
		state.set(int(math.Floor(x)), int(math.Floor(y)), sdlFloor[0], sdlFloor[1], sdlFloor[2])
	}

	r.bars = Layout(frame, r.camera, spin, vp, r.bars)
	count := len(frame.Elements)
	for _, b := range r.bars {
		c := barColor(r.colorMode, b, count)
		rr := byte(clampFloat(c.R*255, 0, 255))
		gg := byte(clampFloat(c.G*255, 0, 255))
		bb := byte(clampFloat(c.B*255, 0, 255))
		x0, x1 := barColumns(b)
		y0, y1 := barRows(b)
		for y := y0; y <= y1; y++ {
			for x := x0; x <= x1; x++ {
				state.set(x, y, rr, gg, bb)
			}
		}
	}

	status := r.buildStatus(frame, st)

	return Frame{
		Status: status,
		Present: func(status string) error {
			if status != "" && status != state.windowTitle && state.window != nil {
				state.window.SetTitle(status)
				state.windowTitle = status
			}
			if err := state.texture.Update(nil, unsafe.Pointer(&state.pixelBuffer[0]), state.pitch); err != nil {
				return err
			}
			if err := state.renderer.Clear(); err != nil {
				return err
			}
			if err := state.renderer.Copy(state.texture, nil, nil); err != nil {
				return err
			}
			state.renderer.Present()
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				switch event.(type) {
				case *sdl.QuitEvent:
					return ErrRendererQuit
				}
			}
			return nil
		},
	}
}

func (s *sdlState) set(x, y int, r, g, b byte) {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return
	}
	offset := y*s.pitch + x*4
	s.pixelBuffer[offset+0] = r
	s.pixelBuffer[offset+1] = g
	s.pixelBuffer[offset+2] = b
}

func (r *Renderer) resizeSDL() {
	if r.sdl == nil {
		return
	}
	r.sdl.width = 0
	r.sdl.height = 0
}

func (r *Renderer) closeSDL() error {
	if r.sdl == nil {
		return nil
	}
	if r.sdl.texture != nil {
		r.sdl.texture.Destroy()
		r.sdl.texture = nil
	}
	if r.sdl.renderer != nil {
		r.sdl.renderer.Destroy()
		r.sdl.renderer = nil
	}
	if r.sdl.window != nil {
		r.sdl.window.Destroy()
		r.sdl.window = nil
	}
	r.sdl.pixelBuffer = nil
	if r.sdl.initialized {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		r.sdl.initialized = false
	}
	r.sdl = nil
	return nil
}

func (r *Renderer) windowedSDL() bool {
	return r.sdl != nil
}

func SupportsSDL() bool { return true }
