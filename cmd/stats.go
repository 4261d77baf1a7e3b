package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/manifest"
	"github.com/mdlincoln/magick-tile/internal/pipeline"
	"github.com/mdlincoln/magick-tile/internal/plan"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats OUTPUT",
		Short: "Display file counts and sizes for a converted image",
		Args:  exactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runStats(c, root, args[0])
		},
	}
}

type fileStats struct {
	count int
	bytes uint64
}

func (s *fileStats) add(size int64) {
	s.count++
	s.bytes += uint64(size)
}

func runStats(c *cobra.Command, root *rootOptions, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return &ArgError{Err: fmt.Errorf("stat %s: %w", dir, err)}
	}
	if !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	outputs, err := pipeline.ScanOutput(dir)
	if err != nil {
		return fmt.Errorf("scan %s: %w", dir, err)
	}
	root.logVerbose("scanned %d files under %s", len(outputs), dir)

	// A missing or broken info.json still lets the file breakdown print.
	m, mErr := manifest.Read(dir)

	printStats(c.OutOrStdout(), m, mErr, outputs)
	return nil
}

func printStats(w io.Writer, m *manifest.Manifest, mErr error, outputs []pipeline.Output) {
	fmt.Fprintln(w)
	if mErr != nil {
		fmt.Fprintf(w, "  info.json:     %v\n", mErr)
	} else {
		fmt.Fprintf(w, "  Identifier:    %s\n", m.ID)
		fmt.Fprintf(w, "  Dimensions:    %dx%d\n", m.Width, m.Height)
		for _, t := range m.Tiles {
			fmt.Fprintf(w, "  Tile size:     %d (scale factors %v)\n", t.Width, t.ScaleFactors)
		}
		widths := make([]int, len(m.Sizes))
		for i, s := range m.Sizes {
			widths[i] = s.Width
		}
		fmt.Fprintf(w, "  Sizes:         %v\n", widths)
	}
	fmt.Fprintln(w)

	var total, tiles, full fileStats
	byFormat := map[layout.Format]*fileStats{}
	byPath := map[string]pipeline.Output{}
	var other []string
	for _, o := range outputs {
		total.add(o.Size)
		switch o.Kind {
		case pipeline.KindTile, pipeline.KindFull:
			if byFormat[o.Format] == nil {
				byFormat[o.Format] = &fileStats{}
			}
			byFormat[o.Format].add(o.Size)
			if o.Kind == pipeline.KindTile {
				tiles.add(o.Size)
			} else {
				full.add(o.Size)
			}
			byPath[o.RelPath] = o
		case pipeline.KindOther:
			other = append(other, o.RelPath)
		}
	}

	fmt.Fprintf(w, "  Total:         %d files  %s\n", total.count, bytefmt.ByteSize(total.bytes))
	fmt.Fprintf(w, "  Tiles:         %d files  %s\n", tiles.count, bytefmt.ByteSize(tiles.bytes))
	fmt.Fprintf(w, "  Full versions: %d files  %s\n", full.count, bytefmt.ByteSize(full.bytes))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  Format breakdown:")
	for _, f := range layout.AllFormats() {
		if fs, ok := byFormat[f]; ok {
			fmt.Fprintf(w, "    %-5s  %5d files  %s\n", f, fs.count, bytefmt.ByteSize(fs.bytes))
		}
	}
	fmt.Fprintln(w)

	if m != nil {
		printLevels(w, m, byPath)
	}

	if len(other) > 0 {
		sort.Strings(other)
		fmt.Fprintf(w, "  Unrecognized files (%d):\n", len(other))
		for _, rel := range other {
			fmt.Fprintf(w, "    ⚠ %s\n", rel)
		}
		fmt.Fprintln(w)
	}
}

// printLevels groups the tiles on disk by the scale factor that produced
// them, using the crop grid the manifest implies.
func printLevels(w io.Writer, m *manifest.Manifest, byPath map[string]pipeline.Output) {
	dims := probe.Dimensions{Width: m.Width, Height: m.Height}
	for _, t := range m.Tiles {
		if len(t.ScaleFactors) == 0 {
			continue
		}
		p := plan.Pyramid{Dimensions: dims, TileSize: t.Width, ScalingFactors: t.ScaleFactors}
		levels := map[int]*fileStats{}
		expected := map[int]int{}
		for _, ext := range m.PreferredFormats {
			f, err := layout.ParseFormat(ext)
			if err != nil {
				continue
			}
			for _, d := range p.Tiles(f) {
				expected[d.ScaleFactor]++
				rel := filepath.ToSlash(layout.ResizedTilePath("", d, t.Width))
				o, ok := byPath[rel]
				if !ok {
					continue
				}
				if levels[d.ScaleFactor] == nil {
					levels[d.ScaleFactor] = &fileStats{}
				}
				levels[d.ScaleFactor].add(o.Size)
			}
		}

		fmt.Fprintf(w, "  Levels (tile %d):\n", t.Width)
		for _, sf := range t.ScaleFactors {
			got := levels[sf]
			if got == nil {
				got = &fileStats{}
			}
			fmt.Fprintf(w, "    sf %-5d  %5d / %-5d tiles  %s\n", sf, got.count, expected[sf], bytefmt.ByteSize(got.bytes))
		}
		fmt.Fprintln(w)
	}
}
