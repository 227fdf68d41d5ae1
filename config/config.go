// Package config holds the tunables of the duck scene. Defaults reproduce the
// stock scene; a TOML file may override any subset of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"
)

// Duration is a time.Duration written as "500ms" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

type Config struct {
	Window   Window   `toml:"window"`
	Model    Model    `toml:"model"`
	Camera   Camera   `toml:"camera"`
	Lights   Lights   `toml:"lights"`
	Fallback Fallback `toml:"fallback"`
	Audio    Audio    `toml:"audio"`
	Fetch    Fetch    `toml:"fetch"`
}

type Window struct {
	Width          int      `toml:"width"`
	Height         int      `toml:"height"`
	Title          string   `toml:"title"`
	ResizeDebounce Duration `toml:"resize_debounce"`
}

type Model struct {
	URL          string      `toml:"url"`
	ClipPriority []string    `toml:"clip_priority"`
	Placeholder  Placeholder `toml:"placeholder"`
}

type Placeholder struct {
	Size     float32    `toml:"size"`
	Color    uint32     `toml:"color"`
	Position [3]float32 `toml:"position"`
}

type Camera struct {
	FOV      float32    `toml:"fov"` // degrees
	Position [3]float32 `toml:"position"`
	Near     float32    `toml:"near"`
	Far      float32    `toml:"far"`
}

type Lights struct {
	AmbientColor         uint32     `toml:"ambient_color"`
	AmbientIntensity     float32    `toml:"ambient_intensity"`
	DirectionalColor     uint32     `toml:"directional_color"`
	DirectionalIntensity float32    `toml:"directional_intensity"`
	DirectionalPosition  [3]float32 `toml:"directional_position"`
	ShadowMapSize        int        `toml:"shadow_map_size"`
}

// Fallback is the synthetic wiggle used when the model has no clips.
type Fallback struct {
	Duration  Duration `toml:"duration"`
	Frequency float32  `toml:"frequency"` // rad/s
	Amplitude float32  `toml:"amplitude"` // rad
}

type Cue struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

type Step struct {
	Cue    string   `toml:"cue"`
	Offset Duration `toml:"offset"`
}

type Audio struct {
	SampleRate     int    `toml:"sample_rate"`
	Cues           []Cue  `toml:"cues"`
	Sequence       []Step `toml:"sequence"`
	Alternate      []Step `toml:"alternate"`
	AlternateEvery int    `toml:"alternate_every"` // 0 disables the alternate sequence
}

type Fetch struct {
	Timeout Duration `toml:"timeout"`
}

// Default returns the stock duck scene.
func Default() Config {
	return Config{
		Window: Window{
			Width:          1280,
			Height:         720,
			Title:          "Metal Duck",
			ResizeDebounce: Duration{100 * time.Millisecond},
		},
		Model: Model{
			URL:          "assets/models/duck.glb",
			ClipPriority: []string{"guitar_play", "animation_0"},
			Placeholder: Placeholder{
				Size:     1,
				Color:    0xffcc00,
				Position: [3]float32{0, 0.5, 0},
			},
		},
		Camera: Camera{
			FOV:      50,
			Position: [3]float32{0, 1.5, 4},
			Near:     0.1,
			Far:      1000,
		},
		Lights: Lights{
			AmbientColor:         0xffffff,
			AmbientIntensity:     1.0,
			DirectionalColor:     0xffffff,
			DirectionalIntensity: 2.5,
			DirectionalPosition:  [3]float32{5, 10, 7.5},
			ShadowMapSize:        1024,
		},
		Fallback: Fallback{
			Duration:  Duration{500 * time.Millisecond},
			Frequency: 10,
			Amplitude: 0.2,
		},
		Audio: Audio{
			SampleRate: 44100,
			Cues: []Cue{
				{Name: "primary", URL: "assets/sounds/cuack.mp3"},
				{Name: "secondary", URL: "assets/sounds/guitar_riff.mp3"},
			},
			Sequence: []Step{
				{Cue: "primary"},
				{Cue: "secondary"},
			},
			Alternate: []Step{
				{Cue: "primary"},
				{Cue: "primary", Offset: Duration{250 * time.Millisecond}},
				{Cue: "secondary", Offset: Duration{500 * time.Millisecond}},
			},
			AlternateEvery: 5,
		},
		Fetch: Fetch{
			Timeout: Duration{30 * time.Second},
		},
	}
}

// Load overlays the TOML file at path on Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as TOML, creating the parent directory.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) Validate() error {
	var errs []error
	if c.Model.URL == "" {
		errs = append(errs, errors.New("model.url is empty"))
	}
	if c.Fallback.Duration.Duration <= 0 {
		errs = append(errs, errors.New("fallback.duration must be positive"))
	}
	if c.Audio.AlternateEvery < 0 {
		errs = append(errs, errors.New("audio.alternate_every must not be negative"))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, errors.New("audio.sample_rate must be positive"))
	}
	known := make(map[string]bool, len(c.Audio.Cues))
	for _, cue := range c.Audio.Cues {
		known[cue.Name] = true
	}
	for _, seq := range [][]Step{c.Audio.Sequence, c.Audio.Alternate} {
		for _, s := range seq {
			if s.Offset.Duration < 0 {
				errs = append(errs, fmt.Errorf("cue %q: negative offset %s", s.Cue, s.Offset))
			}
			if !known[s.Cue] {
				errs = append(errs, fmt.Errorf("sequence references unknown cue %q", s.Cue))
			}
		}
	}
	return multierr.Combine(errs...)
}
