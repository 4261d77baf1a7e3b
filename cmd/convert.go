package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/mdlincoln/magick-tile/internal/engine"
	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/manifest"
	"github.com/mdlincoln/magick-tile/internal/metrics"
	"github.com/mdlincoln/magick-tile/internal/pipeline"
	"github.com/mdlincoln/magick-tile/internal/profile"
)

// formatsFlag is a repeatable --format flag. The first value given on the
// command line replaces the default list; later values append.
type formatsFlag struct {
	formats []layout.Format
	set     bool
}

func (f *formatsFlag) String() string {
	return strings.Join(layout.Extensions(f.formats), ",")
}

func (f *formatsFlag) Set(s string) error {
	if !f.set {
		f.formats, f.set = nil, true
	}
	for _, part := range strings.Split(s, ",") {
		format, err := layout.ParseFormat(strings.TrimSpace(part))
		if err != nil {
			return err
		}
		f.formats = append(f.formats, format)
	}
	return nil
}

func (f *formatsFlag) Type() string { return "format" }

type convertOptions struct {
	*rootOptions

	profile        string
	config         string
	tileSize       int
	formats        formatsFlag
	engine         string
	workers        int
	maxWidth       int
	maxHeight      int
	maxArea        int
	minDownsizeExp int
	maxScaleExp    int
	scratchDir     string
	keepScratch    bool
	metricsFile    string
}

func newConvertCmd(root *rootOptions) *cobra.Command {
	o := &convertOptions{rootOptions: root}
	def := profile.Get(profile.DefaultName)
	o.formats.formats = def.Formats

	c := &cobra.Command{
		Use:   "convert SOURCE OUTPUT IDENTIFIER",
		Short: "Generate the IIIF tile pyramid and info.json for an image",
		Long: `Probes SOURCE, crops it at every power-of-two scale factor that yields
more than one tile, resizes the crops into OUTPUT/{x},{y},{w},{h}/{w},/0/,
writes reduced versions under OUTPUT/full/ and finally OUTPUT/info.json with
IDENTIFIER as its id.

Settings are layered: the --profile preset, then the --config TOML file,
then any flag given explicitly.`,
		Example: `  magick-tile convert page1.tif ./iiif/page1 https://example.org/iiif/page1
  magick-tile convert page1.jpg out id --format jpg --format webp --tile-size 256`,
		Args: exactArgs(3),
		RunE: func(c *cobra.Command, args []string) error {
			return o.run(c, args[0], args[1], args[2])
		},
	}

	flags := c.Flags()
	flags.StringVarP(&o.profile, "profile", "p", profile.DefaultName, "preset ("+strings.Join(profile.Known(), ", ")+")")
	flags.StringVarP(&o.config, "config", "c", "", "TOML file overriding the preset")
	flags.IntVarP(&o.tileSize, "tile-size", "t", def.TileSize, "tile edge length in pixels")
	flags.VarP(&o.formats, "format", "f", "output format, repeatable, in preference order ("+strings.Join(layout.Extensions(layout.AllFormats()), ", ")+")")
	flags.StringVarP(&o.engine, "engine", "e", engine.DefaultName, "image engine ("+strings.Join(engine.Names(), ", ")+")")
	flags.IntVarP(&o.workers, "workers", "w", 0, "parallel resize workers (0 = NumCPU)")
	flags.IntVar(&o.maxWidth, "max-width", 0, "maxWidth advertised in info.json")
	flags.IntVar(&o.maxHeight, "max-height", 0, "maxHeight advertised in info.json")
	flags.IntVar(&o.maxArea, "max-area", 0, "maxArea advertised in info.json")
	flags.IntVar(&o.minDownsizeExp, "min-downsize-exp", def.MinDownsizeExp, "smallest reduced version is 2^N pixels wide")
	flags.IntVar(&o.maxScaleExp, "max-scale-exp", def.MaxScaleExp, "largest scale factor considered is 2^N")
	flags.StringVar(&o.scratchDir, "scratch-dir", "", "parent directory for intermediate crops (default system temp)")
	flags.BoolVar(&o.keepScratch, "keep-scratch", false, "keep intermediate crops after the run")
	flags.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	return c
}

// resolve layers preset, config file and explicit flags, lowest first.
func (o *convertOptions) resolve(c *cobra.Command) (profile.Profile, error) {
	prof := profile.Get(profile.DefaultName)
	if c.Flags().Changed("profile") {
		p, err := profile.Lookup(o.profile)
		if err != nil {
			return profile.Profile{}, &ArgError{Err: err}
		}
		prof = p
	}
	if o.config != "" {
		p, err := profile.LoadFile(o.config, prof)
		if err != nil {
			return profile.Profile{}, &ArgError{Err: err}
		}
		prof = p
	}

	changed := c.Flags().Changed
	positive := map[string]int{}
	if changed("tile-size") {
		prof.TileSize = o.tileSize
		positive["--tile-size"] = o.tileSize
	}
	if changed("format") {
		prof.Formats = append([]layout.Format(nil), o.formats.formats...)
	}
	if changed("engine") {
		prof.Engine = o.engine
	}
	if changed("workers") {
		prof.Workers = o.workers
	}
	if changed("max-width") {
		prof.MaxWidth = intPtr(o.maxWidth)
		positive["--max-width"] = o.maxWidth
	}
	if changed("max-height") {
		prof.MaxHeight = intPtr(o.maxHeight)
		positive["--max-height"] = o.maxHeight
	}
	if changed("max-area") {
		prof.MaxArea = intPtr(o.maxArea)
		positive["--max-area"] = o.maxArea
	}
	if changed("min-downsize-exp") {
		prof.MinDownsizeExp = o.minDownsizeExp
		positive["--min-downsize-exp"] = o.minDownsizeExp
	}
	if changed("max-scale-exp") {
		prof.MaxScaleExp = o.maxScaleExp
		positive["--max-scale-exp"] = o.maxScaleExp
	}
	for _, name := range []string{"--tile-size", "--max-width", "--max-height", "--max-area", "--min-downsize-exp", "--max-scale-exp"} {
		if v, ok := positive[name]; ok && v <= 0 {
			return profile.Profile{}, &ArgError{Err: fmt.Errorf("%s must be positive, got %d", name, v)}
		}
	}
	if err := prof.Validate(); err != nil {
		return profile.Profile{}, &ArgError{Err: err}
	}
	return prof, nil
}

func (o *convertOptions) run(c *cobra.Command, source, output, id string) error {
	start := time.Now()

	if err := checkSource(source); err != nil {
		return err
	}
	if err := checkOutput(output); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return &ArgError{Err: errors.New("IDENTIFIER must not be empty")}
	}
	prof, err := o.resolve(c)
	if err != nil {
		return err
	}
	eng, err := engine.Lookup(prof.Engine)
	if err != nil {
		return &ArgError{Err: err}
	}

	o.logVerbose("source:  %s", source)
	o.logVerbose("output:  %s", output)
	o.logVerbose("profile: %s (tile=%d, formats=%s, workers=%d)",
		prof.Name, prof.TileSize, strings.Join(layout.Extensions(prof.Formats), ","), prof.Workers)

	var rec *metrics.Recorder
	if o.metricsFile != "" {
		rec = metrics.New()
	}

	p := pipeline.New(pipeline.Config{
		Source:      source,
		OutputDir:   output,
		Identifier:  id,
		Plan:        prof.Plan(),
		Formats:     prof.Formats,
		Limits:      prof.Limits(),
		Engine:      eng,
		Workers:     prof.Workers,
		ScratchDir:  o.scratchDir,
		KeepScratch: o.keepScratch,
		Logf:        o.logVerbose,
		Metrics:     rec,
	})
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	res, runErr := p.Run(ctx)

	if o.metricsFile != "" {
		if err := rec.WriteFile(o.metricsFile); err != nil {
			if runErr == nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			o.logVerbose("write metrics: %v", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("convert %s: %w", source, runErr)
	}

	printConvertReport(c.OutOrStdout(), output, res, time.Since(start))
	return nil
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ArgError{Err: fmt.Errorf("SOURCE: %w", err)}
	}
	if !info.Mode().IsRegular() {
		return &ArgError{Err: fmt.Errorf("SOURCE %s is not a regular file", path)}
	}
	f, err := os.Open(path)
	if err != nil {
		return &ArgError{Err: fmt.Errorf("SOURCE: %w", err)}
	}
	return f.Close()
}

func checkOutput(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return &ArgError{Err: fmt.Errorf("OUTPUT: %w", err)}
	case !info.IsDir():
		return &ArgError{Err: fmt.Errorf("OUTPUT %s exists and is not a directory", path)}
	}
	return nil
}

func intPtr(v int) *int { return &v }

func printConvertReport(w io.Writer, output string, res *pipeline.Result, elapsed time.Duration) {
	var tileBytes, fullBytes uint64
	for _, rel := range res.Outputs {
		info, err := os.Stat(filepath.Join(output, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		if strings.HasPrefix(rel, "full/") {
			fullBytes += uint64(info.Size())
		} else {
			tileBytes += uint64(info.Size())
		}
	}

	m := res.Manifest
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Source:        %s (%s)\n", res.Dimensions, plural(res.Dimensions.Width*res.Dimensions.Height, "pixel"))
	fmt.Fprintf(w, "  Scale factors: %v\n", res.Pyramid.ScalingFactors)
	fmt.Fprintf(w, "  Sizes:         %v\n", res.Pyramid.DownsizingLevels)
	fmt.Fprintf(w, "  Formats:       %s\n", strings.Join(m.PreferredFormats, ", "))
	fmt.Fprintf(w, "  Tiles:         %d (%s)\n", res.Tiles, bytefmt.ByteSize(tileBytes))
	fmt.Fprintf(w, "  Full versions: %d (%s)\n", res.Downsized, bytefmt.ByteSize(fullBytes))
	fmt.Fprintf(w, "  Manifest:      %s (%s)\n", filepath.Join(output, manifest.FileName), res.ManifestHash)
	fmt.Fprintf(w, "  Fingerprint:   %s\n", res.Fingerprint)
	if res.ScratchDir != "" {
		fmt.Fprintf(w, "  Scratch:       %s\n", res.ScratchDir)
	}
	fmt.Fprintf(w, "  Time:          %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintln(w)
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
