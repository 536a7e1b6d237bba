package web

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/visual"
)

type fakeController struct {
	cfg        params.Config
	appearance RendererStatus
	frame      visual.Frame
}

func newFakeController() *fakeController {
	cfg := params.Defaults()
	mapping, _ := visual.NewMapping(cfg.ElementCount, 1024)
	buffer := make([]uint8, 1024)
	for i := range buffer {
		buffer[i] = 128
	}
	return &fakeController{
		cfg:        cfg,
		appearance: RendererStatus{Palette: "default", ColorMode: "base", Floor: "grid"},
		frame:      visual.RenderFrame(buffer, mapping, cfg, 2),
	}
}

func (f *fakeController) Status() StatusResponse {
	return StatusResponse{
		Source:   "synthetic",
		Config:   f.cfg,
		Color:    f.cfg.BaseColor.Hex(),
		Renderer: f.appearance,
		Bins:     1024,
	}
}

func (f *fakeController) LatestFrame() (visual.Frame, float64, bool) {
	return f.frame, 0.5, true
}

func (f *fakeController) Config() params.Config { return f.cfg }

func (f *fakeController) Configure(cfg params.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.cfg = cfg
	return nil
}

func (f *fakeController) SetAppearance(palette, colorMode, floor string) {
	f.appearance = RendererStatus{Palette: palette, ColorMode: colorMode, Floor: floor}
}

func (f *fakeController) Settings() params.Settings {
	return params.Settings{
		Visual:    f.cfg,
		Palette:   f.appearance.Palette,
		ColorMode: f.appearance.ColorMode,
		Floor:     f.appearance.Floor,
		FFTSize:   2048,
		TargetFPS: 30,
	}
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusReflectsConfig(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, filepath.Join(t.TempDir(), "cfg.json"), nil)

	rec := do(t, s, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	var got StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != "status" || got.Config.ElementCount != ctrl.cfg.ElementCount || got.Source != "synthetic" {
		t.Fatalf("unexpected status %+v", got)
	}
	if got.Color != "#44ccff" {
		t.Fatalf("color %s", got.Color)
	}
}

func TestUpdateAppliesConfig(t *testing.T) {
	ctrl := newFakeController()
	s := NewServer(ctrl, filepath.Join(t.TempDir(), "cfg.json"), nil)

	rec := do(t, s, http.MethodPost, "/api/update", `{"elementCount":128,"sensitivity":2,"color":"#ff0000","palette":"dots"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d: %s", rec.Code, rec.Body.String())
	}
	if ctrl.cfg.ElementCount != 128 || ctrl.cfg.Sensitivity != 2 {
		t.Fatalf("config not applied: %+v", ctrl.cfg)
	}
	if ctrl.cfg.BaseColor != (params.RGB{R: 1}) {
		t.Fatalf("color not applied: %+v", ctrl.cfg.BaseColor)
	}
	if ctrl.appearance.Palette != "dots" || ctrl.appearance.ColorMode != "base" || ctrl.appearance.Floor != "grid" {
		t.Fatalf("appearance %+v", ctrl.appearance)
	}
}

func TestUpdateRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"zero elements":  `{"elementCount":0}`,
		"huge elements":  `{"elementCount":100000000}`,
		"negative sens":  `{"sensitivity":-1}`,
		"bad color":      `{"color":"blue"}`,
		"malformed body": `{"elementCount":`,
	}
	for name, body := range cases {
		ctrl := newFakeController()
		before := ctrl.cfg
		s := NewServer(ctrl, filepath.Join(t.TempDir(), "cfg.json"), nil)
		rec := do(t, s, http.MethodPost, "/api/update", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status code %d", name, rec.Code)
		}
		if ctrl.cfg != before {
			t.Fatalf("%s: config changed to %+v", name, ctrl.cfg)
		}
	}
}

func TestUpdateRequiresPost(t *testing.T) {
	s := NewServer(newFakeController(), filepath.Join(t.TempDir(), "cfg.json"), nil)
	if rec := do(t, s, http.MethodGet, "/api/update", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status code %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/save", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("save status code %d", rec.Code)
	}
}

func TestSaveWritesSettings(t *testing.T) {
	ctrl := newFakeController()
	ctrl.cfg.Sensitivity = 2.5
	path := filepath.Join(t.TempDir(), "cfg.json")
	s := NewServer(ctrl, path, nil)

	rec := do(t, s, http.MethodPost, "/api/save", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d: %s", rec.Code, rec.Body.String())
	}
	loaded, err := params.LoadSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Visual.Sensitivity != 2.5 || loaded.Floor != "grid" {
		t.Fatalf("saved settings %+v", loaded)
	}
}

func TestListings(t *testing.T) {
	s := NewServer(newFakeController(), filepath.Join(t.TempDir(), "cfg.json"), nil)

	var counts []int
	if err := json.NewDecoder(do(t, s, http.MethodGet, "/api/elementCounts", "").Body).Decode(&counts); err != nil {
		t.Fatalf("decode counts: %v", err)
	}
	if len(counts) != 3 || counts[0] != 32 || counts[2] != 128 {
		t.Fatalf("counts %v", counts)
	}

	var modes []string
	if err := json.NewDecoder(do(t, s, http.MethodGet, "/api/colorModes", "").Body).Decode(&modes); err != nil {
		t.Fatalf("decode modes: %v", err)
	}
	if len(modes) != 3 {
		t.Fatalf("modes %v", modes)
	}

	rec := do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "<canvas") {
		t.Fatalf("index not served")
	}
	if rec := do(t, s, http.MethodGet, "/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown path code %d", rec.Code)
	}
}

func TestNewFrameMessage(t *testing.T) {
	ctrl := newFakeController()
	msg := NewFrameMessage(ctrl.frame, 0.25)
	if msg.Type != "frame" || len(msg.Heights) != ctrl.cfg.ElementCount {
		t.Fatalf("message %+v", msg)
	}
	if math.Abs(msg.Radius-ctrl.cfg.Radius) > 1e-9 {
		t.Fatalf("radius %f", msg.Radius)
	}
	if msg.Bass == 0 || msg.Spin != 0.25 {
		t.Fatalf("bass %f spin %f", msg.Bass, msg.Spin)
	}
}

func TestWebSocketStreamsFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(newFakeController(), filepath.Join(t.TempDir(), "cfg.json"), nil)
	go s.broadcastLoop(ctx)
	go s.frameLoop(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg FrameMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "frame" || len(msg.Heights) == 0 {
		t.Fatalf("unexpected message %s", data)
	}
}
