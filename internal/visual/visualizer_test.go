package visual

import (
	"errors"
	"sync"
	"testing"

	"github.com/guidoenr/ringbars/internal/params"
)

const binWidth44k = 44100.0 / 2048

func newTestVisualizer(t *testing.T) *Visualizer {
	t.Helper()
	v, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := params.Defaults()
	cfg.ElementCount = 0
	if _, err := New(cfg, nil); !errors.Is(err, params.ErrElementCount) {
		t.Fatalf("expected element count error, got %v", err)
	}
}

func TestTickBeforeRebindDrawsMinHeight(t *testing.T) {
	v := newTestVisualizer(t)
	frame := v.Tick(filled(1024, 255))
	if len(frame.Elements) != 32 {
		t.Fatalf("got %d elements", len(frame.Elements))
	}
	for i, el := range frame.Elements {
		if el.Height != v.Config().MinHeight {
			t.Fatalf("element %d height %f", i, el.Height)
		}
	}
}

func TestRebindBuildsMapping(t *testing.T) {
	v := newTestVisualizer(t)
	if err := v.Rebind(1024, binWidth44k); err != nil {
		t.Fatalf("Rebind: %v", err)
	}
	bins := v.Bins()
	if len(bins) != 32 || v.BufferLength() != 1024 {
		t.Fatalf("bins=%d length=%d", len(bins), v.BufferLength())
	}
	frame := v.Tick(filled(1024, 255))
	if frame.Elements[0].Height != HeightScale {
		t.Fatalf("height=%f", frame.Elements[0].Height)
	}
	if frame.Bass != 1 {
		t.Fatalf("expected bass pulse after rebind, got %f", frame.Bass)
	}
}

func TestInvalidConfigKeepsLastMapping(t *testing.T) {
	v := newTestVisualizer(t)
	_ = v.Rebind(1024, binWidth44k)
	before := v.Bins()

	bad := v.Config()
	bad.ElementCount = 0
	if err := v.Configure(bad); err == nil {
		t.Fatalf("expected error")
	}
	after := v.Bins()
	if len(after) != len(before) {
		t.Fatalf("mapping changed: %d -> %d", len(before), len(after))
	}
	if v.Config().ElementCount != 32 {
		t.Fatalf("config changed to %d", v.Config().ElementCount)
	}
	if err := v.Rebind(-1, binWidth44k); !errors.Is(err, ErrInvalidBufferLength) {
		t.Fatalf("expected buffer length error, got %v", err)
	}
	if v.BufferLength() != 1024 {
		t.Fatalf("buffer length changed to %d", v.BufferLength())
	}
}

func TestConfigureTakesEffectNextTick(t *testing.T) {
	v := newTestVisualizer(t)
	_ = v.Rebind(1024, binWidth44k)
	buf := filled(1024, 255)

	cfg := v.Config()
	cfg.ElementCount = 128
	cfg.Sensitivity = 0.5
	if err := v.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	frame := v.Tick(buf)
	if len(frame.Elements) != 128 {
		t.Fatalf("got %d elements", len(frame.Elements))
	}
	if frame.Elements[10].Height != 4 {
		t.Fatalf("height=%f want 4", frame.Elements[10].Height)
	}
	if len(v.Bins()) != 128 {
		t.Fatalf("mapping not rebuilt: %d", len(v.Bins()))
	}
}

func TestRebindZeroDetaches(t *testing.T) {
	v := newTestVisualizer(t)
	_ = v.Rebind(1024, binWidth44k)
	if err := v.Rebind(0, 0); err != nil {
		t.Fatalf("Rebind(0): %v", err)
	}
	if v.Bins() != nil {
		t.Fatalf("expected no mapping")
	}
	frame := v.Tick(filled(1024, 255))
	for _, el := range frame.Elements {
		if el.Height != v.Config().MinHeight {
			t.Fatalf("height=%f", el.Height)
		}
	}
	if frame.EmissiveIntensity != emissiveBase {
		t.Fatalf("emissive=%f", frame.EmissiveIntensity)
	}
}

func TestStaleBufferLengthIsIgnored(t *testing.T) {
	v := newTestVisualizer(t)
	_ = v.Rebind(1024, binWidth44k)
	frame := v.Tick(filled(512, 255))
	for i, el := range frame.Elements {
		if el.Height != v.Config().MinHeight {
			t.Fatalf("element %d read a stale buffer: %f", i, el.Height)
		}
	}
}

func TestDispose(t *testing.T) {
	v := newTestVisualizer(t)
	_ = v.Rebind(1024, binWidth44k)
	v.Dispose()
	v.Dispose()
	if frame := v.Tick(filled(1024, 255)); len(frame.Elements) != 0 {
		t.Fatalf("expected empty frame after dispose")
	}
	if err := v.Configure(v.Config()); !errors.Is(err, ErrDisposed) {
		t.Fatalf("Configure after dispose: %v", err)
	}
	if err := v.Rebind(1024, binWidth44k); !errors.Is(err, ErrDisposed) {
		t.Fatalf("Rebind after dispose: %v", err)
	}
}

func TestConcurrentConfigureNeverMixesState(t *testing.T) {
	v := newTestVisualizer(t)
	_ = v.Rebind(1024, binWidth44k)
	buf := filled(1024, 200)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		cfg := v.Config()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			cfg.ElementCount = params.ElementCountOptions[i%len(params.ElementCountOptions)]
			_ = v.Configure(cfg)
			if i%7 == 0 {
				_ = v.Rebind(1024, binWidth44k)
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		frame := v.Tick(buf)
		n := len(frame.Elements)
		if n != 32 && n != 64 && n != 128 {
			close(stop)
			wg.Wait()
			t.Fatalf("unexpected element count %d", n)
		}
		for _, el := range frame.Elements {
			if el.Bin < 0 || el.Bin >= len(buf) {
				close(stop)
				wg.Wait()
				t.Fatalf("bin %d outside buffer", el.Bin)
			}
		}
	}
	close(stop)
	wg.Wait()
}
