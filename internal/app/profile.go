package app

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// profileSections are the CSV columns, in the order the loop marks them.
var profileSections = []string{"samples", "analyze", "tick", "render"}

// profiler appends one CSV row of section timings per frame.
type profiler struct {
	mu      sync.Mutex
	file    *os.File
	w       *csv.Writer
	start   time.Time
	last    time.Time
	timings map[string]float64
}

func newProfiler(path string, log *zap.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warn("profiler disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	p := &profiler{
		file:    f,
		w:       csv.NewWriter(f),
		timings: make(map[string]float64, len(profileSections)),
	}
	// appending to an earlier run keeps its header
	if info, err := f.Stat(); err == nil && info.Size() == 0 {
		header := append([]string{"timestamp"}, profileSections...)
		_ = p.w.Write(append(header, "total"))
	}
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.start, p.last = now, now
	clear(p.timings)
}

// markSection records the time since the previous mark under name.
func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.timings[name] += millis(now.Sub(p.last))
	p.last = now
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return
	}
	row := make([]string, 0, len(profileSections)+2)
	row = append(row, p.start.Format(time.RFC3339Nano))
	for _, name := range profileSections {
		row = append(row, strconv.FormatFloat(p.timings[name], 'f', 3, 64))
	}
	row = append(row, strconv.FormatFloat(millis(time.Since(p.start)), 'f', 3, 64))
	_ = p.w.Write(row)
	p.w.Flush()
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.w == nil {
		return nil
	}
	p.w.Flush()
	p.w = nil
	return p.file.Close()
}

func millis(d time.Duration) float64 {
	return d.Seconds() * 1000
}
