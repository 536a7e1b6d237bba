package params

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults rejected: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   error
	}{
		"zero elements":        {func(c *Config) { c.ElementCount = 0 }, ErrElementCount},
		"negative elements":    {func(c *Config) { c.ElementCount = -4 }, ErrElementCount},
		"huge elements":        {func(c *Config) { c.ElementCount = 1 << 30 }, ErrElementCount},
		"negative sensitivity": {func(c *Config) { c.Sensitivity = -1 }, ErrSensitivity},
		"nan sensitivity":      {func(c *Config) { c.Sensitivity = math.NaN() }, ErrSensitivity},
		"negative min height":  {func(c *Config) { c.MinHeight = -0.1 }, ErrMinHeight},
		"zero radius":          {func(c *Config) { c.Radius = 0 }, ErrRadius},
	}
	for name, tc := range cases {
		cfg := Defaults()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v want %v", name, err, tc.want)
		}
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.R != 1 || c.B != 0 || math.Abs(c.G-128.0/255) > 1e-9 {
		t.Fatalf("unexpected color %+v", c)
	}
	short, err := ParseColor("0f0")
	if err != nil {
		t.Fatalf("parse short: %v", err)
	}
	if short.G != 1 || short.R != 0 {
		t.Fatalf("unexpected short color %+v", short)
	}
	if got := c.Hex(); got != "#ff8000" {
		t.Fatalf("hex=%s", got)
	}
	if _, err := ParseColor("#12345"); err == nil {
		t.Fatalf("expected error for bad length")
	}
	if _, err := ParseColor("zzzzzz"); err == nil {
		t.Fatalf("expected error for non-hex")
	}
}

func TestNextElementCountCycles(t *testing.T) {
	cases := map[int]int{
		32:  64,
		64:  128,
		128: 32,
		50:  64,
		500: 32,
	}
	for in, want := range cases {
		if got := NextElementCount(in); got != want {
			t.Fatalf("NextElementCount(%d)=%d want=%d", in, got, want)
		}
	}
}

func TestWithSensitivityClamps(t *testing.T) {
	cfg := Defaults()
	cfg.Sensitivity = 0.05
	if got := cfg.WithSensitivity(-0.1).Sensitivity; got != 0 {
		t.Fatalf("expected clamp at 0, got %f", got)
	}
	cfg.Sensitivity = MaxSensitivity
	if got := cfg.WithSensitivity(0.1).Sensitivity; got != MaxSensitivity {
		t.Fatalf("expected clamp at max, got %f", got)
	}
	cfg.Sensitivity = 1
	if got := cfg.WithSensitivity(0.1).Sensitivity; got != 1.1 {
		t.Fatalf("expected 1.1, got %f", got)
	}
}

func TestSettingsSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	in := Settings{Visual: Defaults(), Palette: "blocks", ColorMode: "mono", FFTSize: 4096, TargetFPS: 30}
	in.Visual.ElementCount = 128
	in.Visual.BaseColor, _ = ParseColor("#ff0000")
	if err := SaveSettings(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.Visual.ElementCount != 128 || out.Palette != "blocks" || out.FFTSize != 4096 {
		t.Fatalf("unexpected settings %+v", out)
	}
	if out.Visual.BaseColor.Hex() != "#ff0000" {
		t.Fatalf("color lost: %s", out.Visual.BaseColor.Hex())
	}
}

func TestValidateElementCountBounds(t *testing.T) {
	cfg := Defaults()
	cfg.ElementCount = MaxElementCount
	if err := cfg.Validate(); err != nil {
		t.Fatalf("max element count rejected: %v", err)
	}
	cfg.ElementCount = MaxElementCount + 1
	if err := cfg.Validate(); !errors.Is(err, ErrElementCount) {
		t.Fatalf("expected ErrElementCount, got %v", err)
	}
}
