package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/voxelray/engine/core"
	"github.com/spaghettifunk/voxelray/engine/world"
)

type WindowConfig struct {
	// The application name used in windowing.
	Title string `toml:"title"`
	// Window starting position.
	X uint32 `toml:"x"`
	Y uint32 `toml:"y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	Validation bool   `toml:"validation"`
	ShaderDir  string `toml:"shader_dir"`
	HotReload  bool   `toml:"hot_reload"`
}

type WorldConfig struct {
	// Fill is one of cuboid, sphere, full or empty.
	Fill string `toml:"fill"`
	// Range is the cuboid extent in chunks.
	Range [3]int `toml:"range"`
	// Radius in chunks, sphere only.
	Radius int `toml:"radius"`
	// Content is generated (GPU kernel) or staged (host built, uploaded).
	Content string `toml:"content"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type DebugConfig struct {
	// DirectoryDump is where the directory atlas is written after setup. Empty disables it.
	DirectoryDump string `toml:"directory_dump"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	World    WorldConfig    `toml:"world"`
	Log      LogConfig      `toml:"log"`
	Debug    DebugConfig    `toml:"debug"`
}

const (
	ContentGenerated = "generated"
	ContentStaged    = "staged"
)

func DefaultConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Window: WindowConfig{
			Title:  "voxelray",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			ShaderDir: "shaders",
		},
		World: WorldConfig{
			Fill:    "cuboid",
			Range:   [3]int{16, 8, 16},
			Radius:  8,
			Content: ContentGenerated,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*ApplicationConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogInfo("No configuration at %s, using defaults.", path)
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%s: %s: %w", path, strict.String(), core.ErrInvalidConfig)
		}
		return nil, fmt.Errorf("%s: %v: %w", path, err, core.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d: %w", c.Window.Width, c.Window.Height, core.ErrInvalidConfig)
	}
	if _, err := c.FillPolicy(); err != nil {
		return err
	}
	switch c.World.Content {
	case ContentGenerated, ContentStaged:
	default:
		return fmt.Errorf("unknown world content %q: %w", c.World.Content, core.ErrInvalidConfig)
	}
	if _, err := core.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// FillPolicy builds the initial world fill named by the configuration.
func (c *ApplicationConfig) FillPolicy() (world.FillPolicy, error) {
	switch c.World.Fill {
	case "cuboid":
		for _, e := range c.World.Range {
			if e < 1 || e > world.WorldChunks {
				return nil, fmt.Errorf("world range %v outside [1,%d]: %w", c.World.Range, world.WorldChunks, core.ErrInvalidConfig)
			}
		}
		return world.CenteredCuboid(c.World.Range), nil
	case "sphere":
		if c.World.Radius < 1 || c.World.Radius > world.WorldChunks/2 {
			return nil, fmt.Errorf("world radius %d outside [1,%d]: %w", c.World.Radius, world.WorldChunks/2, core.ErrInvalidConfig)
		}
		const mid = world.WorldChunks / 2
		return world.SphereFill{Center: world.Coord{mid, mid, mid}, Radius: c.World.Radius}, nil
	case "full":
		return world.FullFill{}, nil
	case "empty":
		return world.EmptyFill{}, nil
	}
	return nil, fmt.Errorf("unknown world fill %q: %w", c.World.Fill, core.ErrInvalidConfig)
}
