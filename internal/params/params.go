package params

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RGB is a linear colour with components in [0,1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// Scale multiplies every component by f.
func (c RGB) Scale(f float64) RGB {
	return RGB{R: c.R * f, G: c.G * f, B: c.B * f}
}

// Hex formats the colour as #rrggbb, clamping each channel.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", channelByte(c.R), channelByte(c.G), channelByte(c.B))
}

// ParseColor accepts #rrggbb, rrggbb or #rgb.
func ParseColor(s string) (RGB, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return RGB{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return RGB{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}, nil
}

// Config is the visualization snapshot handed to the renderer once per tick.
type Config struct {
	ElementCount int     `json:"elementCount"`
	Sensitivity  float64 `json:"sensitivity"`
	BaseColor    RGB     `json:"baseColor"`
	MinHeight    float64 `json:"minHeight"`
	Radius       float64 `json:"radius"`
}

var (
	ErrElementCount = errors.New("element count must be between 1 and 1024")
	ErrSensitivity  = errors.New("sensitivity must be a non-negative number")
	ErrMinHeight    = errors.New("min height must be a non-negative number")
	ErrRadius       = errors.New("radius must be positive")
)

// ElementCountOptions lists the bar counts offered by the controls.
var ElementCountOptions = []int{32, 64, 128}

const (
	DefaultElementCount = 64
	DefaultSensitivity  = 1.0
	DefaultMinHeight    = 0.1
	DefaultRadius       = 6.0
	DefaultColor        = "#44ccff"

	MaxSensitivity  = 4.0
	MaxElementCount = 1024
)

// Defaults mirrors the stock controls of the original page.
func Defaults() Config {
	color, _ := ParseColor(DefaultColor)
	return Config{
		ElementCount: DefaultElementCount,
		Sensitivity:  DefaultSensitivity,
		BaseColor:    color,
		MinHeight:    DefaultMinHeight,
		Radius:       DefaultRadius,
	}
}

// Validate reports the first field that cannot be rendered.
func (c Config) Validate() error {
	if c.ElementCount <= 0 || c.ElementCount > MaxElementCount {
		return fmt.Errorf("%w (got %d)", ErrElementCount, c.ElementCount)
	}
	if math.IsNaN(c.Sensitivity) || math.IsInf(c.Sensitivity, 0) || c.Sensitivity < 0 {
		return fmt.Errorf("%w (got %v)", ErrSensitivity, c.Sensitivity)
	}
	if math.IsNaN(c.MinHeight) || math.IsInf(c.MinHeight, 0) || c.MinHeight < 0 {
		return fmt.Errorf("%w (got %v)", ErrMinHeight, c.MinHeight)
	}
	if math.IsNaN(c.Radius) || math.IsInf(c.Radius, 0) || c.Radius <= 0 {
		return fmt.Errorf("%w (got %v)", ErrRadius, c.Radius)
	}
	return nil
}

// WithSensitivity returns a copy with sensitivity moved by delta, kept in [0, MaxSensitivity].
func (c Config) WithSensitivity(delta float64) Config {
	c.Sensitivity = clamp(c.Sensitivity+delta, 0, MaxSensitivity)
	// round to hundredths so repeated presses do not drift
	c.Sensitivity = math.Round(c.Sensitivity*100) / 100
	return c
}

// NextElementCount returns the option following current, wrapping around.
func NextElementCount(current int) int {
	for i, n := range ElementCountOptions {
		if n == current {
			return ElementCountOptions[(i+1)%len(ElementCountOptions)]
		}
	}
	for _, n := range ElementCountOptions {
		if n > current {
			return n
		}
	}
	return ElementCountOptions[0]
}

func channelByte(v float64) uint8 {
	return uint8(math.Round(clamp(v, 0, 1) * 255))
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
