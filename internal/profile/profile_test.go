package profile

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/plan"
)

func TestGetFallback(t *testing.T) {
	p := Get("nonexistent")
	if p.Name != "nonexistent" {
		t.Errorf("name: got %q", p.Name)
	}
	if p.TileSize != plan.DefaultTileSize {
		t.Errorf("tile size: got %d", p.TileSize)
	}
	if !reflect.DeepEqual(p.Formats, []layout.Format{layout.JPG}) {
		t.Errorf("formats: got %v", p.Formats)
	}
}

func TestBuiltinsValid(t *testing.T) {
	for _, name := range Known() {
		p, err := Lookup(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Lookup("nope"); !errors.Is(err, ErrUnknownProfile) {
		t.Errorf("got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	p := Get("archival")
	p.Formats[0] = layout.PNG
	if Get("archival").Formats[0] != layout.JPG {
		t.Error("built-in profile was modified through a returned copy")
	}
}

func TestDefaultPlan(t *testing.T) {
	if got := Get(DefaultName).Plan(); got != plan.DefaultConfig() {
		t.Errorf("got %+v", got)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "magick-tile.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
name = "museum"
tile_size = 256
formats = ["png", "jpg"]
max_area = 4000000
workers = 3
engine = "native"
`)
	p, err := LoadFile(path, Get(DefaultName))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "museum" || p.TileSize != 256 || p.Workers != 3 || p.Engine != "native" {
		t.Errorf("got %+v", p)
	}
	if !reflect.DeepEqual(p.Formats, []layout.Format{layout.PNG, layout.JPG}) {
		t.Errorf("formats: got %v", p.Formats)
	}
	if p.MaxArea == nil || *p.MaxArea != 4000000 {
		t.Errorf("max_area: got %v", p.MaxArea)
	}
	if p.MaxWidth != nil || p.MaxHeight != nil {
		t.Error("unset limits should stay nil")
	}
	// Keys absent from the file keep the base values.
	if p.MinDownsizeExp != plan.DefaultMinDownsizeExp || p.MaxScaleExp != plan.DefaultMaxScaleExp {
		t.Errorf("exponents: got %d, %d", p.MinDownsizeExp, p.MaxScaleExp)
	}
}

func TestLoadFileKeepsBaseFormats(t *testing.T) {
	p, err := LoadFile(writeConfig(t, "tile_size = 1024\n"), Get("archival"))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.Formats, []layout.Format{layout.JPG, layout.TIF}) {
		t.Errorf("formats: got %v", p.Formats)
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"unknown key", "tile_sise = 256\n", "unknown keys"},
		{"bad format", `formats = ["bmp"]` + "\n", "unknown image format"},
		{"bad syntax", "tile_size = \n", "config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body), Get(DefaultName))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"), Get(DefaultName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file: got %v", err)
	}
}

func TestValidate(t *testing.T) {
	zero, neg := 0, -5
	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"zero tile size", func(p *Profile) { p.TileSize = 0 }},
		{"no formats", func(p *Profile) { p.Formats = nil }},
		{"duplicate format", func(p *Profile) { p.Formats = []layout.Format{layout.JPG, layout.JPG} }},
		{"invalid format", func(p *Profile) { p.Formats = []layout.Format{layout.Format(0)} }},
		{"zero max width", func(p *Profile) { p.MaxWidth = &zero }},
		{"negative max area", func(p *Profile) { p.MaxArea = &neg }},
		{"negative workers", func(p *Profile) { p.Workers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Get(DefaultName)
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
