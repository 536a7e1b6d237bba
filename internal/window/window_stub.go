//go:build !ebiten

package window

// Supported reports whether the window backend is available.
func Supported() bool { return false }

// Run always fails without the ebiten build tag.
func Run(Host, Options) error { return ErrUnavailable }
