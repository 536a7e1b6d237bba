package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/guidoenr/ringbars/internal/analyzer"
	"github.com/guidoenr/ringbars/internal/params"
	"github.com/guidoenr/ringbars/internal/render"
	"github.com/guidoenr/ringbars/internal/visual"
	"go.uber.org/zap"
)

//go:embed static/index.html
var indexHTML []byte

const (
	frameInterval  = time.Second / 30
	statusInterval = 500 * time.Millisecond
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
)

// Controller is the part of the running visualizer the panel can see and change.
type Controller interface {
	Status() StatusResponse
	LatestFrame() (visual.Frame, float64, bool)
	Config() params.Config
	Configure(cfg params.Config) error
	SetAppearance(palette, colorMode, floor string)
	Settings() params.Settings
}

type Server struct {
	mu           sync.RWMutex
	app          Controller
	clients      map[*websocketClient]bool
	broadcast    chan []byte
	upgrader     websocket.Upgrader
	settingsPath string
	log          *zap.Logger
}

type websocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

type StatusResponse struct {
	Type       string          `json:"type"`
	FPS        float64         `json:"fps"`
	Source     string          `json:"source"`
	SourceKind string          `json:"sourceKind"`
	Paused     bool            `json:"paused"`
	Config     params.Config   `json:"config"`
	Color      string          `json:"color"`
	Renderer   RendererStatus  `json:"renderer"`
	Levels     analyzer.Levels `json:"levels"`
	Bins       int             `json:"bins"`
}

type RendererStatus struct {
	Palette   string `json:"palette"`
	ColorMode string `json:"colorMode"`
	Floor     string `json:"floor"`
}

// UpdateRequest is a partial update; nil fields are left alone.
type UpdateRequest struct {
	ElementCount *int     `json:"elementCount,omitempty"`
	Sensitivity  *float64 `json:"sensitivity,omitempty"`
	MinHeight    *float64 `json:"minHeight,omitempty"`
	Radius       *float64 `json:"radius,omitempty"`
	Color        *string  `json:"color,omitempty"`
	Palette      *string  `json:"palette,omitempty"`
	ColorMode    *string  `json:"colorMode,omitempty"`
	Floor        *string  `json:"floor,omitempty"`
}

// FrameMessage carries one frame to the panel's canvas.
type FrameMessage struct {
	Type      string    `json:"type"`
	Heights   []float64 `json:"heights"`
	Radius    float64   `json:"radius"`
	MaxHeight float64   `json:"maxHeight"`
	Color     string    `json:"color"`
	Emissive  float64   `json:"emissive"`
	Bass      float64   `json:"bass"`
	Spin      float64   `json:"spin"`
}

// NewServer builds a server for app. Saved settings go to settingsPath, or
// params.SettingsPath when empty.
func NewServer(app Controller, settingsPath string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if settingsPath == "" {
		settingsPath = params.SettingsPath()
	}
	return &Server{
		app:          app,
		clients:      make(map[*websocketClient]bool),
		broadcast:    make(chan []byte, 256),
		settingsPath: settingsPath,
		log:          log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/update", s.handleUpdate)
	mux.HandleFunc("/api/save", s.handleSave)
	mux.HandleFunc("/api/elementCounts", s.handleElementCounts)
	mux.HandleFunc("/api/colorModes", s.handleColorModes)
	mux.HandleFunc("/api/palettes", s.handlePalettes)
	mux.HandleFunc("/api/floors", s.handleFloors)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return mux
}

// Start serves on port until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("web server starting", zap.String("addr", "http://0.0.0.0"+addr))

	go s.broadcastLoop(ctx)
	go s.statusUpdateLoop(ctx)
	go s.frameLoop(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := s.app.Status()
	s.mu.RUnlock()
	status.Type = "status"
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.app.Config()
	changed := false
	if req.ElementCount != nil {
		cfg.ElementCount = *req.ElementCount
		changed = true
	}
	if req.Sensitivity != nil {
		cfg.Sensitivity = *req.Sensitivity
		changed = true
	}
	if req.MinHeight != nil {
		cfg.MinHeight = *req.MinHeight
		changed = true
	}
	if req.Radius != nil {
		cfg.Radius = *req.Radius
		changed = true
	}
	if req.Color != nil {
		color, err := params.ParseColor(*req.Color)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cfg.BaseColor = color
		changed = true
	}
	if changed {
		if err := s.app.Configure(cfg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if req.Palette != nil || req.ColorMode != nil || req.Floor != nil {
		current := s.app.Status().Renderer
		palette, colorMode, floor := current.Palette, current.ColorMode, current.Floor
		if req.Palette != nil {
			palette = *req.Palette
		}
		if req.ColorMode != nil {
			colorMode = *req.ColorMode
		}
		if req.Floor != nil {
			floor = *req.Floor
		}
		s.app.SetAppearance(palette, colorMode, floor)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	settings := s.app.Settings()
	s.mu.RUnlock()

	if err := params.SaveSettings(s.settingsPath, settings); err != nil {
		s.log.Warn("save settings failed", zap.String("path", s.settingsPath), zap.Error(err))
		http.Error(w, fmt.Sprintf("failed to save config: %v", err), http.StatusInternalServerError)
		return
	}
	s.log.Info("settings saved", zap.String("path", s.settingsPath))
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": s.settingsPath})
}

func (s *Server) handleElementCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, params.ElementCountOptions)
}

func (s *Server) handleColorModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, render.ColorModeNames())
}

func (s *Server) handlePalettes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, render.PaletteNames())
}

func (s *Server) handleFloors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, render.FloorNames())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &websocketClient{
		conn:   conn,
		send:   make(chan []byte, 256),
		server: s,
	}

	s.mu.Lock()
	s.clients[client] = true
	s.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			for client := range s.clients {
				close(client.send)
				delete(s.clients, client)
			}
			s.mu.Unlock()
			return
		case message := <-s.broadcast:
			s.mu.Lock()
			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(s.clients, client)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Server) publish(data []byte) {
	select {
	case s.broadcast <- data:
	default:
		// slow consumers lose messages
	}
}

func (s *Server) statusUpdateLoop(ctx context.Context) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.mu.RLock()
		status := s.app.Status()
		s.mu.RUnlock()
		status.Type = "status"
		if data, err := json.Marshal(status); err == nil {
			s.publish(data)
		}
	}
}

func (s *Server) frameLoop(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		frame, spin, ok := s.app.LatestFrame()
		if !ok {
			continue
		}
		if data, err := json.Marshal(NewFrameMessage(frame, spin)); err == nil {
			s.publish(data)
		}
	}
}

// NewFrameMessage flattens a frame for the panel.
func NewFrameMessage(frame visual.Frame, spin float64) FrameMessage {
	msg := FrameMessage{
		Type:      "frame",
		Heights:   make([]float64, len(frame.Elements)),
		MaxHeight: frame.MaxHeight,
		Color:     frame.Color.Hex(),
		Emissive:  frame.EmissiveIntensity,
		Bass:      frame.Bass,
		Spin:      spin,
	}
	for i, el := range frame.Elements {
		msg.Heights[i] = el.Height
	}
	if len(frame.Elements) > 0 {
		p := frame.Elements[0].Position
		msg.Radius = math.Hypot(p.X, p.Z)
	}
	return msg
}

func (c *websocketClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		c.server.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *websocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
