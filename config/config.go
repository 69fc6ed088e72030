package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jamseq/musictime"
)

// EngineConfig holds the scheduler and pattern settings that used to be
// global. It is passed into patches and the room player at creation.
type EngineConfig struct {
	PatternCount    int       `json:"patternCount"`    // pattern slots per patch (A-D)
	TickIntervalMS  int       `json:"tickIntervalMs"`  // periodic scheduler tick
	ChunkSizeFactor float64   `json:"chunkSizeFactor"` // window = tick interval * factor
	VelocityTiers   []float64 `json:"velocityTiers"`   // click cycles through these
	ShiftTier       int       `json:"shiftTier"`       // tier toggled by shift-click
	QuantizeStart   bool      `json:"quantizeStart"`   // start playback on the next measure
	DefaultTempo    float64   `json:"defaultTempo"`
}

// OutputConfig defines the MIDI output for scheduled events
type OutputConfig struct {
	PortName string            `json:"portName,omitempty"`
	Channels map[string]uint8  `json:"channels,omitempty"` // instrument ID -> MIDI channel (1-16)
	Legends  map[string]string `json:"legends,omitempty"`  // instrument ID -> legend name or file
}

// UIConfig stores UI preferences
type UIConfig struct {
	LastInstrument string `json:"lastInstrument,omitempty"`
	Palette        string `json:"palette,omitempty"` // GIMP palette path
}

// Config is the main configuration structure
type Config struct {
	Engine  EngineConfig `json:"engine"`
	Output  OutputConfig `json:"output,omitempty"`
	Presets string       `json:"presets,omitempty"` // preset directory, defaults under ConfigDir
	UI      UIConfig     `json:"ui,omitempty"`
}

// DefaultEngine returns the engine defaults
func DefaultEngine() EngineConfig {
	return EngineConfig{
		PatternCount:    4,
		TickIntervalMS:  2500,
		ChunkSizeFactor: 1.15,
		VelocityTiers:   []float64{0.33, 0.66, 1.0},
		ShiftTier:       2,
		QuantizeStart:   true,
		DefaultTempo:    120,
	}
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: DefaultEngine(),
	}
}

// TickInterval returns the tick interval as a duration
func (e EngineConfig) TickInterval() time.Duration {
	return time.Duration(e.TickIntervalMS) * time.Millisecond
}

// Validate rejects settings that would break the scheduler's window walk
func (e EngineConfig) Validate() error {
	if e.PatternCount <= 0 {
		return fmt.Errorf("patternCount must be positive, got %d", e.PatternCount)
	}
	if e.TickIntervalMS <= 0 {
		return fmt.Errorf("tickIntervalMs must be positive, got %d", e.TickIntervalMS)
	}
	if e.ChunkSizeFactor <= 1 {
		return fmt.Errorf("chunkSizeFactor must be greater than 1, got %v", e.ChunkSizeFactor)
	}
	if len(e.VelocityTiers) == 0 {
		return fmt.Errorf("velocityTiers is empty")
	}
	for _, v := range e.VelocityTiers {
		if v <= 0 || v > 1 {
			return fmt.Errorf("velocity tier %v outside (0,1]", v)
		}
	}
	if e.ShiftTier < 0 || e.ShiftTier >= len(e.VelocityTiers) {
		return fmt.Errorf("shiftTier %d out of range", e.ShiftTier)
	}
	if !musictime.ValidSample(e.DefaultTempo, 0) {
		return fmt.Errorf("defaultTempo must be in (0,%v], got %v", musictime.MaxTempo, e.DefaultTempo)
	}
	return nil
}

// Validate checks the whole config
func (c *Config) Validate() error {
	return c.Engine.Validate()
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "jamseq"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// PresetDir returns the preset directory, falling back to ConfigDir/presets
func (c *Config) PresetDir() (string, error) {
	if c.Presets != "" {
		return c.Presets, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "presets"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config from path. Fields missing from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveFile(path)
}

// SaveFile writes the config to path, creating the directory
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ChannelFor returns the MIDI channel (1-16) for an instrument, or fallback
func (c *Config) ChannelFor(instrumentID string, fallback uint8) uint8 {
	if ch, ok := c.Output.Channels[instrumentID]; ok && ch >= 1 && ch <= 16 {
		return ch
	}
	return fallback
}
