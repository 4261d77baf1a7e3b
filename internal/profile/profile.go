// Package profile holds named conversion presets and the TOML file that can
// override them.
package profile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/manifest"
	"github.com/mdlincoln/magick-tile/internal/plan"
)

// DefaultName is the profile used when none is requested.
const DefaultName = "default"

// ErrUnknownProfile is returned by Lookup.
var ErrUnknownProfile = errors.New("unknown profile")

// Profile defines the conversion parameters of a pyramid.
type Profile struct {
	Name           string          `toml:"name"`
	TileSize       int             `toml:"tile_size"`
	Formats        []layout.Format `toml:"formats"` // preferred order
	MinDownsizeExp int             `toml:"min_downsize_exp"`
	MaxScaleExp    int             `toml:"max_scale_exp"`
	MaxWidth       *int            `toml:"max_width"`
	MaxHeight      *int            `toml:"max_height"`
	MaxArea        *int            `toml:"max_area"`
	Workers        int             `toml:"workers"` // 0 = NumCPU
	Engine         string          `toml:"engine"`
}

// Built-in profiles.
var profiles = map[string]Profile{
	"default": {
		Name:           "default",
		TileSize:       plan.DefaultTileSize,
		Formats:        []layout.Format{layout.JPG},
		MinDownsizeExp: plan.DefaultMinDownsizeExp,
		MaxScaleExp:    plan.DefaultMaxScaleExp,
	},
	"small-tiles": {
		Name:           "small-tiles",
		TileSize:       256,
		Formats:        []layout.Format{layout.JPG},
		MinDownsizeExp: 7,
		MaxScaleExp:    plan.DefaultMaxScaleExp,
	},
	"archival": {
		Name:           "archival",
		TileSize:       1024,
		Formats:        []layout.Format{layout.JPG, layout.TIF},
		MinDownsizeExp: plan.DefaultMinDownsizeExp,
		MaxScaleExp:    plan.DefaultMaxScaleExp,
	},
}

// Get returns a profile by name. Falls back to default if unknown.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p.clone()
	}
	p := profiles[DefaultName].clone()
	p.Name = name // preserve requested name
	return p
}

// Lookup is Get without the fallback.
func Lookup(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (known: %v)", ErrUnknownProfile, name, Known())
	}
	return p.clone(), nil
}

// Known lists the built-in profile names, sorted.
func Known() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadFile decodes a TOML file over base. Keys missing from the file keep
// base's values; unknown keys are an error.
func LoadFile(path string, base Profile) (Profile, error) {
	p := base.clone()
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return Profile{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("config %s: unknown keys %v", path, undecoded)
	}
	return p, nil
}

// Plan returns the planner configuration of the profile.
func (p Profile) Plan() plan.Config {
	return plan.Config{
		TileSize:       p.TileSize,
		MinDownsizeExp: p.MinDownsizeExp,
		MaxScaleExp:    p.MaxScaleExp,
	}
}

// Limits returns the optional info.json limits of the profile.
func (p Profile) Limits() manifest.Limits {
	return manifest.Limits{MaxWidth: p.MaxWidth, MaxHeight: p.MaxHeight, MaxArea: p.MaxArea}
}

// Validate checks the values a file or flags may have set.
func (p Profile) Validate() error {
	if err := p.Plan().Validate(); err != nil {
		return err
	}
	if len(p.Formats) == 0 {
		return fmt.Errorf("profile %s: at least one format is required", p.Name)
	}
	seen := map[layout.Format]bool{}
	for _, f := range p.Formats {
		if !f.Valid() {
			return fmt.Errorf("profile %s: %w", p.Name, layout.ErrUnknownFormat)
		}
		if seen[f] {
			return fmt.Errorf("profile %s: format %s listed twice", p.Name, f)
		}
		seen[f] = true
	}
	limits := []struct {
		key string
		v   *int
	}{{"max_width", p.MaxWidth}, {"max_height", p.MaxHeight}, {"max_area", p.MaxArea}}
	for _, l := range limits {
		if l.v != nil && *l.v <= 0 {
			return fmt.Errorf("profile %s: %s must be positive, got %d", p.Name, l.key, *l.v)
		}
	}
	if p.Workers < 0 {
		return fmt.Errorf("profile %s: workers must not be negative, got %d", p.Name, p.Workers)
	}
	return nil
}

func (p Profile) clone() Profile {
	p.Formats = append([]layout.Format(nil), p.Formats...)
	return p
}
