package pipeline

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/manifest"
)

// Output kinds.
const (
	KindTile     = "tile"
	KindFull     = "full"
	KindManifest = "manifest"
	KindOther    = "other"
)

// Output represents a file found in a conversion's output directory.
type Output struct {
	// AbsPath is the path to the file on disk.
	AbsPath string
	// RelPath is the path relative to the output directory, with forward
	// slashes.
	RelPath string
	// Kind is one of the Kind constants.
	Kind string
	// Format is set for tiles and reduced versions.
	Format layout.Format
	// Region is the source region of a tile.
	Region layout.Region
	// Width is the pixel width encoded in the path of a tile or reduced
	// version.
	Width int
	// Size is the file size in bytes.
	Size int64
}

// ScanOutput walks a conversion output directory and classifies every file
// by its place in the IIIF layout.
func ScanOutput(root string) ([]Output, error) {
	var outputs []Output

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			// Skip hidden directories.
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		o := classify(filepath.ToSlash(relPath))
		o.AbsPath = path
		o.Size = info.Size()
		outputs = append(outputs, o)
		return nil
	})

	return outputs, err
}

// classify parses {region}/{width},/0/default.{ext}, where region is
// either "full" or x,y,w,h.
func classify(rel string) Output {
	o := Output{RelPath: rel, Kind: KindOther}
	if rel == manifest.FileName {
		o.Kind = KindManifest
		return o
	}

	parts := strings.Split(rel, "/")
	if len(parts) != 4 || parts[2] != "0" || !strings.HasSuffix(parts[1], ",") {
		return o
	}
	name, ext, ok := strings.Cut(parts[3], ".")
	if !ok || name != "default" {
		return o
	}
	f, err := layout.ParseFormat(ext)
	if err != nil {
		return o
	}
	width, err := strconv.Atoi(strings.TrimSuffix(parts[1], ","))
	if err != nil || width <= 0 {
		return o
	}

	if parts[0] == "full" {
		o.Kind, o.Format, o.Width = KindFull, f, width
		return o
	}
	fields := strings.Split(parts[0], ",")
	if len(fields) != 4 {
		return o
	}
	var v [4]int
	for i, s := range fields {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return o
		}
		v[i] = n
	}
	o.Kind, o.Format, o.Width = KindTile, f, width
	o.Region = layout.Region{X: v[0], Y: v[1], W: v[2], H: v[3]}
	return o
}
