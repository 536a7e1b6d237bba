package audio

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// Microphone wraps a PortAudio input stream and feeds a Ring.
type Microphone struct {
	stream     *portaudio.Stream
	sampleRate float64
	channels   int
	device     *portaudio.DeviceInfo
	ring       *Ring
	mono       []float32
	closeOnce  sync.Once
	closeErr   error
}

// MicConfig controls how a Microphone is opened.
type MicConfig struct {
	DeviceName string
	BufferSize int
	Channels   int
	RingSize   int
}

const defaultBufferSize = 1024

// OpenMicrophone opens and starts a PortAudio input stream.
func OpenMicrophone(cfg MicConfig) (*Microphone, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	device, err := findDevice(cfg.DeviceName)
	if err != nil {
		return nil, err
	}
	if device.MaxInputChannels < cfg.Channels {
		cfg.Channels = device.MaxInputChannels
	}

	mic := &Microphone{
		sampleRate: device.DefaultSampleRate,
		channels:   cfg.Channels,
		device:     device,
		ring:       NewRing(cfg.RingSize),
	}

	framesPerBuffer := cfg.BufferSize / cfg.Channels
	if framesPerBuffer < 64 {
		framesPerBuffer = portaudio.FramesPerBufferUnspecified
	}

	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		Output:          portaudio.StreamDeviceParameters{},
		SampleRate:      mic.sampleRate,
		FramesPerBuffer: framesPerBuffer,
	}, mic.process)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	mic.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}
	return mic, nil
}

// MicrophoneOpener adapts OpenMicrophone to the Switcher.
func MicrophoneOpener(cfg MicConfig) Opener {
	return func() (Source, error) {
		if err := Initialize(); err != nil {
			return nil, fmt.Errorf("portaudio: %w", err)
		}
		mic, err := OpenMicrophone(cfg)
		if err != nil {
			return nil, err
		}
		return mic, nil
	}
}

func (m *Microphone) Kind() Kind          { return KindMicrophone }
func (m *Microphone) SampleRate() float64 { return m.sampleRate }

func (m *Microphone) Label() string {
	if m.device == nil {
		return "microphone"
	}
	return m.device.Name
}

// Samples copies the latest mono samples.
func (m *Microphone) Samples(dst []float32) {
	m.ring.Latest(dst)
}

// Close stops and closes the stream. Later calls return the first result.
func (m *Microphone) Close() error {
	m.closeOnce.Do(func() {
		if m.stream == nil {
			return
		}
		if err := m.stream.Stop(); err != nil && !errorsIsInvalidStreamState(err) {
			m.closeErr = err
		}
		if err := m.stream.Close(); err != nil && m.closeErr == nil {
			m.closeErr = err
		}
	})
	return m.closeErr
}

// process runs on the PortAudio callback thread.
func (m *Microphone) process(in []float32) {
	m.mono = downmix(in, m.channels, m.mono)
	m.ring.Write(m.mono)
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	if candidate := pickBestDevice(devices); candidate != nil {
		return candidate, nil
	}
	return nil, fmt.Errorf("no suitable audio input device found")
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	needle := strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), needle) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// pickBestDevice prefers the default input, then anything that looks like a
// monitor or loopback of the system output.
func pickBestDevice(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}

	keywords := []string{"monitor", "loopback", "stereo mix", "what u hear"}
	defaultInputIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInputIndex = def.Index
	}

	var results []scored
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		score := d.MaxInputChannels
		if d.Index == defaultInputIndex {
			score += 50
		}
		lower := strings.ToLower(d.Name)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score += 20
				break
			}
		}
		results = append(results, scored{dev: d, score: score})
	}
	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})
	return results[0].dev
}

// errorsIsInvalidStreamState reports whether err comes from stopping an already stopped stream.
func errorsIsInvalidStreamState(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "PaErrorCode -9986") || strings.Contains(err.Error(), "Stream is stopped")
}

// AutoDetectDevice returns the input device a Microphone would pick without a name.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findDevice("")
}
