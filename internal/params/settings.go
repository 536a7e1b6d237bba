package params

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is the on-disk form written by the web panel's save action.
type Settings struct {
	Visual    Config  `json:"visual"`
	Color     string  `json:"color"`
	Palette   string  `json:"palette"`
	ColorMode string  `json:"colorMode"`
	Floor     string  `json:"floor"`
	FFTSize   int     `json:"fftSize"`
	TargetFPS float64 `json:"targetFPS"`
}

// SettingsPath picks a file next to the binary, falling back to the home directory.
func SettingsPath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "ringbars-config.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ringbars-config.json")
}

// SaveSettings writes s as indented JSON.
func SaveSettings(path string, s Settings) error {
	s.Color = s.Visual.BaseColor.Hex()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSettings reads a settings file. The hex color, when present, wins over
// the numeric baseColor so hand-edited files stay simple.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	s := Settings{Visual: Defaults()}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if s.Color != "" {
		color, err := ParseColor(s.Color)
		if err != nil {
			return Settings{}, err
		}
		s.Visual.BaseColor = color
	}
	if err := s.Visual.Validate(); err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}
