package audio

import (
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paMu     sync.Mutex
	paActive bool
)

// Initialize starts PortAudio once. It is called lazily by the microphone
// opener and device listing so file and synthetic sessions never touch it.
func Initialize() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paActive {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	paActive = true
	return nil
}

// Terminate balances Initialize. Safe to call when PortAudio was never started.
func Terminate() {
	paMu.Lock()
	defer paMu.Unlock()
	if !paActive {
		return
	}
	_ = portaudio.Terminate()
	paActive = false
}
