package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/voxelray/engine/core"
	"github.com/spaghettifunk/voxelray/engine/world"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voxelray.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("got %+v, want the defaults", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[window]
width = 800
height = 600

[world]
fill = "sphere"
radius = 6
content = "staged"

[debug]
directory_dump = "dir.bmp"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Window.Width != 800 || cfg.Window.Height != 600 {
		t.Errorf("window = %+v", cfg.Window)
	}
	if cfg.Window.Title != "voxelray" {
		t.Errorf("title default lost: %q", cfg.Window.Title)
	}
	if cfg.World.Content != ContentStaged || cfg.Debug.DirectoryDump != "dir.bmp" {
		t.Errorf("world = %+v debug = %+v", cfg.World, cfg.Debug)
	}
	fill, err := cfg.FillPolicy()
	if err != nil {
		t.Fatal(err)
	}
	if s, ok := fill.(world.SphereFill); !ok || s.Radius != 6 || s.Center != (world.Coord{16, 16, 16}) {
		t.Errorf("fill = %#v", fill)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero width", "[window]\nwidth = 0\n"},
		{"unknown fill", "[world]\nfill = \"torus\"\n"},
		{"range too large", "[world]\nrange = [33, 1, 1]\n"},
		{"range empty", "[world]\nrange = [0, 4, 4]\n"},
		{"sphere radius", "[world]\nfill = \"sphere\"\nradius = 0\n"},
		{"unknown content", "[world]\ncontent = \"disk\"\n"},
		{"unknown level", "[log]\nlevel = \"loud\"\n"},
		{"unknown key", "[renderer]\nvsync = true\n"},
		{"not toml", "[window\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if !errors.Is(err, core.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestDefaultFillIsCenteredCuboid(t *testing.T) {
	fill, err := DefaultConfig().FillPolicy()
	if err != nil {
		t.Fatal(err)
	}
	c, ok := fill.(world.CuboidFill)
	if !ok || c.Origin != (world.Coord{8, 12, 8}) {
		t.Errorf("fill = %#v", fill)
	}
}
