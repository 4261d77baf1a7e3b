package manifest

import (
	"fmt"
	"os"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/plan"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

// Check reports structural problems with a manifest.
func Check(m *Manifest) []string {
	var errs []string

	for _, c := range []struct{ key, got, want string }{
		{"@context", m.Context, Context},
		{"type", m.Type, Type},
		{"protocol", m.Protocol, Protocol},
		{"profile", m.Profile, Profile},
	} {
		if c.got != c.want {
			errs = append(errs, fmt.Sprintf("%s: got %q, want %q", c.key, c.got, c.want))
		}
	}
	if m.ID == "" {
		errs = append(errs, "id: missing")
	}
	if m.Width <= 0 || m.Height <= 0 {
		errs = append(errs, fmt.Sprintf("invalid dimensions %dx%d", m.Width, m.Height))
	}
	for _, l := range []struct {
		key string
		v   *int
	}{{"maxWidth", m.MaxWidth}, {"maxHeight", m.MaxHeight}, {"maxArea", m.MaxArea}} {
		if l.v != nil && *l.v <= 0 {
			errs = append(errs, fmt.Sprintf("%s: must be positive, got %d", l.key, *l.v))
		}
	}

	if len(m.PreferredFormats) == 0 {
		errs = append(errs, "preferredFormats: empty")
	}
	for _, f := range m.PreferredFormats {
		if _, err := layout.ParseFormat(f); err != nil {
			errs = append(errs, fmt.Sprintf("preferredFormats: %v", err))
		}
	}

	prev := 0
	for i, s := range m.Sizes {
		if s.Height != MaxHeight {
			errs = append(errs, fmt.Sprintf("sizes[%d]: height %q, want %q", i, s.Height, MaxHeight))
		}
		if s.Width <= prev {
			errs = append(errs, fmt.Sprintf("sizes[%d]: width %d not increasing", i, s.Width))
		}
		if m.Width > 0 && s.Width >= m.Width {
			errs = append(errs, fmt.Sprintf("sizes[%d]: width %d not smaller than image width %d", i, s.Width, m.Width))
		}
		prev = s.Width
	}

	if len(m.Tiles) == 0 {
		errs = append(errs, "tiles: empty")
	}
	for i, t := range m.Tiles {
		if t.Width <= 0 {
			errs = append(errs, fmt.Sprintf("tiles[%d]: invalid width %d", i, t.Width))
		}
		prev := 1
		for _, sf := range t.ScaleFactors {
			if sf <= prev || sf&(sf-1) != 0 {
				errs = append(errs, fmt.Sprintf("tiles[%d]: scale factors %v must be increasing powers of two above 1", i, t.ScaleFactors))
				break
			}
			prev = sf
		}
	}
	return errs
}

// ExpectedFiles lists every file a manifest implies under root: each tile
// of each scale factor and each reduced version, in every preferred format.
func ExpectedFiles(m *Manifest, root string) ([]string, error) {
	formats := make([]layout.Format, 0, len(m.PreferredFormats))
	for _, s := range m.PreferredFormats {
		f, err := layout.ParseFormat(s)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}

	dims := probe.Dimensions{Width: m.Width, Height: m.Height}
	var files []string
	for _, t := range m.Tiles {
		p := plan.Pyramid{Dimensions: dims, TileSize: t.Width, ScalingFactors: t.ScaleFactors}
		for _, f := range formats {
			for _, d := range p.Tiles(f) {
				files = append(files, layout.ResizedTilePath(root, d, t.Width))
			}
		}
	}
	for _, s := range m.Sizes {
		for _, f := range formats {
			files = append(files, layout.DownsizedVersionPath(root, s.Width, f))
		}
	}
	return files, nil
}

// MissingFiles returns the expected files that do not exist under root.
func MissingFiles(m *Manifest, root string) ([]string, error) {
	files, err := ExpectedFiles(m, root)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			missing = append(missing, f)
		}
	}
	return missing, nil
}
