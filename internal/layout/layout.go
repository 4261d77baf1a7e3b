// Package layout maps tiles and reduced versions to the static-file paths of
// the IIIF Image API Level-0 convention:
//
//	OUTPUT/{x},{y},{w},{h}/{fileW},/0/default.{fmt}
//	OUTPUT/full/{W},/0/default.{fmt}
//
// It also owns the intermediate file naming used between the crop and the
// resize steps: "{cropSize},{scaleFactor},{x},{y},{w},{h}.{fmt}".
package layout

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Region is the untransformed pixel rectangle cropped out of the source.
type Region struct {
	X, Y int
	W, H int
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.W, r.H)
}

// TileDescriptor identifies one cropped tile before it is resized.
type TileDescriptor struct {
	CropSize    int
	ScaleFactor int
	Region      Region
	Format      Format
	// Path is where the crop was written, when known.
	Path string
}

// Geometry is an ImageMagick-style WxH box. A zero component is left out,
// so {512, 0} renders as "512x".
type Geometry struct {
	Width  int
	Height int
}

func (g Geometry) String() string {
	var b strings.Builder
	if g.Width > 0 {
		b.WriteString(strconv.Itoa(g.Width))
	}
	b.WriteByte('x')
	if g.Height > 0 {
		b.WriteString(strconv.Itoa(g.Height))
	}
	return b.String()
}

// ResizedTarget returns the on-disk box a cropped tile is shrunk into.
//
// Both dimensions are gated on the crop width: an edge tile narrower than a
// full crop gets ceil(w/sf) x floor(h/sf), anything else gets the tile size
// in both directions. Viewers look tiles up by the resulting directory name,
// so the rounding must not change.
func ResizedTarget(d TileDescriptor, tileSize int) Geometry {
	sf := d.ScaleFactor
	if d.Region.W < tileSize*sf {
		return Geometry{
			Width:  (d.Region.W + sf - 1) / sf,
			Height: d.Region.H / sf,
		}
	}
	return Geometry{Width: tileSize, Height: tileSize}
}

// ResizedTilePath is the final location of a resized tile under root.
func ResizedTilePath(root string, d TileDescriptor, tileSize int) string {
	g := ResizedTarget(d, tileSize)
	return filepath.Join(root, d.Region.String(), fmt.Sprintf("%d,", g.Width), "0", "default."+d.Format.Extension())
}

// DownsizedVersionPath is the location of a reduced whole-image version.
func DownsizedVersionPath(root string, width int, f Format) string {
	return filepath.Join(root, "full", fmt.Sprintf("%d,", width), "0", "default."+f.Extension())
}
