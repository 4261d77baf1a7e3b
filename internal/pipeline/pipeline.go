// Package pipeline runs a conversion: probe the source, crop it at every
// scale factor, resize the crops into the IIIF tile layout, write the
// reduced full-image versions and finally info.json.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mdlincoln/magick-tile/internal/engine"
	"github.com/mdlincoln/magick-tile/internal/hasher"
	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/manifest"
	"github.com/mdlincoln/magick-tile/internal/metrics"
	"github.com/mdlincoln/magick-tile/internal/plan"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

// Stage names used in logs and metrics.
const (
	StageProbe    = "probe"
	StageCrop     = "crop"
	StageResize   = "resize"
	StageDownsize = "downsize"
	StageManifest = "manifest"
)

// Config holds all parameters for a conversion run.
type Config struct {
	Source      string
	OutputDir   string
	Identifier  string // id written into info.json
	Plan        plan.Config
	Formats     []layout.Format // preferred order
	Limits      manifest.Limits
	Engine      engine.Engine
	Workers     int    // resize/downsize concurrency; 0 = NumCPU
	ScratchDir  string // parent of the run's scratch directory; "" = os.TempDir
	KeepScratch bool

	// Logf receives progress lines. Nil is silent.
	Logf func(format string, args ...any)
	// Metrics is optional.
	Metrics *metrics.Recorder
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Dimensions probe.Dimensions
	Pyramid    plan.Pyramid
	Manifest   *manifest.Manifest
	// ManifestHash is the xxHash64 of the info.json bytes written.
	ManifestHash string
	Tiles        int
	Downsized    int
	// Outputs lists every image written, relative to OutputDir, sorted.
	Outputs     []string
	Fingerprint string
	// ScratchDir is set when the scratch directory was kept.
	ScratchDir string
	Elapsed    time.Duration
}

// Pipeline orchestrates a conversion.
type Pipeline struct {
	cfg    Config
	prober probe.Prober
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Plan == (plan.Config{}) {
		cfg.Plan = plan.DefaultConfig()
	}
	p := &Pipeline{cfg: cfg}
	if cfg.Engine != nil {
		p.prober = probe.NewCached(probe.ProberFunc(cfg.Engine.Probe))
	}
	return p
}

// Run executes the conversion. Any engine failure aborts the run before
// info.json is written.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logf := p.logger(res.RunID)

	if err := p.check(); err != nil {
		return nil, err
	}
	eng := p.cfg.Engine
	logf("%s", engine.Describe(eng))

	// Step 1: Probe the source.
	t := time.Now()
	dims, err := p.prober.Probe(ctx, p.cfg.Source)
	p.cfg.Metrics.Operation(StageProbe, err)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.Stage(StageProbe, time.Since(t))
	p.cfg.Metrics.Source(dims.Width, dims.Height)
	res.Dimensions = dims

	pyr, err := plan.New(dims, p.cfg.Plan)
	if err != nil {
		return nil, err
	}
	res.Pyramid = pyr
	logf("source %s: %s, scale factors %v, sizes %v", p.cfg.Source, dims, pyr.ScalingFactors, pyr.DownsizingLevels)

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	scratch, err := os.MkdirTemp(p.cfg.ScratchDir, "magick-tile-"+res.RunID[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if p.cfg.KeepScratch {
		res.ScratchDir = scratch
		logf("keeping scratch dir %s", scratch)
	} else {
		defer os.RemoveAll(scratch)
	}

	// Step 2: Crop the source once per scale factor and format.
	t = time.Now()
	tiles, err := p.crop(ctx, pyr, scratch, logf)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.Stage(StageCrop, time.Since(t))

	// Step 3: Resize every crop into the tile layout.
	t = time.Now()
	tilePaths, err := p.resize(ctx, tiles, pyr.TileSize)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.Stage(StageResize, time.Since(t))
	res.Tiles = len(tilePaths)
	logf("wrote %d tiles", res.Tiles)

	// Step 4: Reduced versions of the whole image.
	t = time.Now()
	fullPaths, err := p.downsize(ctx, pyr.DownsizingLevels)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.Stage(StageDownsize, time.Since(t))
	res.Downsized = len(fullPaths)
	logf("wrote %d reduced versions", res.Downsized)

	// Step 5: info.json, written last so its presence marks a complete run.
	t = time.Now()
	m := manifest.Build(p.cfg.Identifier, pyr, p.cfg.Formats, p.cfg.Limits)
	data, err := manifest.Write(m, p.cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	p.cfg.Metrics.Stage(StageManifest, time.Since(t))
	res.Manifest = m
	res.ManifestHash = hasher.ContentHash(data, 16)

	outputs := make([]string, 0, len(tilePaths)+len(fullPaths))
	for _, path := range append(tilePaths, fullPaths...) {
		rel, err := filepath.Rel(p.cfg.OutputDir, path)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, filepath.ToSlash(rel))
	}
	sort.Strings(outputs)
	res.Outputs = outputs
	res.Fingerprint = hasher.Fingerprint(outputs, 16)
	res.Elapsed = time.Since(start)
	p.cfg.Metrics.Succeeded(time.Now())
	logf("done in %s (fingerprint %s)", res.Elapsed.Round(time.Millisecond), res.Fingerprint)
	return res, nil
}

func (p *Pipeline) check() error {
	c := p.cfg
	switch {
	case c.Engine == nil:
		return errors.New("no engine configured")
	case c.Source == "":
		return errors.New("no source image")
	case c.OutputDir == "":
		return errors.New("no output directory")
	case c.Identifier == "":
		return errors.New("no identifier")
	case len(c.Formats) == 0:
		return errors.New("no output formats")
	}
	if err := c.Plan.Validate(); err != nil {
		return err
	}
	if !c.Engine.Available() {
		return fmt.Errorf("%w: %s", engine.ErrUnavailable, c.Engine.Name())
	}
	return engine.CheckFormats(c.Engine, c.Formats)
}

// crop runs one bulk crop per (scale factor, format) pair, each into its
// own scratch subdirectory so no pass sees another pass's files.
func (p *Pipeline) crop(ctx context.Context, pyr plan.Pyramid, scratch string, logf func(string, ...any)) ([]layout.TileDescriptor, error) {
	var tiles []layout.TileDescriptor
	for _, sf := range pyr.ScalingFactors {
		for _, f := range p.cfg.Formats {
			req := engine.CropRequest{
				Source:      p.cfg.Source,
				Dir:         filepath.Join(scratch, fmt.Sprintf("%d-%s", sf, f.Extension())),
				CropSize:    pyr.CropSize(sf),
				ScaleFactor: sf,
				Format:      f,
			}
			got, err := p.cfg.Engine.Crop(ctx, req)
			p.cfg.Metrics.Operation(StageCrop, err)
			if err != nil {
				return nil, fmt.Errorf("crop at scale factor %d (%s): %w", sf, f, err)
			}
			logf("scale factor %d %s: %d crops of %dpx", sf, f, len(got), req.CropSize)
			tiles = append(tiles, got...)
		}
	}
	return tiles, nil
}

func (p *Pipeline) resize(ctx context.Context, tiles []layout.TileDescriptor, tileSize int) ([]string, error) {
	paths := make([]string, len(tiles))
	err := runPool(ctx, p.cfg.Workers, len(tiles), func(ctx context.Context, i int) error {
		d := tiles[i]
		dst := layout.ResizedTilePath(p.cfg.OutputDir, d, tileSize)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create tile dir: %w", err)
		}
		err := p.cfg.Engine.Resize(ctx, d.Path, layout.ResizedTarget(d, tileSize), dst)
		p.cfg.Metrics.Operation(StageResize, err)
		if err != nil {
			return fmt.Errorf("resize %s: %w", filepath.Base(d.Path), err)
		}
		p.cfg.Metrics.FileWritten(KindTile, d.Format.Extension())
		paths[i] = dst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (p *Pipeline) downsize(ctx context.Context, levels []int) ([]string, error) {
	type job struct {
		width  int
		format layout.Format
	}
	var jobs []job
	for _, w := range levels {
		for _, f := range p.cfg.Formats {
			jobs = append(jobs, job{w, f})
		}
	}

	paths := make([]string, len(jobs))
	err := runPool(ctx, p.cfg.Workers, len(jobs), func(ctx context.Context, i int) error {
		j := jobs[i]
		dst := layout.DownsizedVersionPath(p.cfg.OutputDir, j.width, j.format)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("create size dir: %w", err)
		}
		err := p.cfg.Engine.Downsize(ctx, p.cfg.Source, j.width, dst)
		p.cfg.Metrics.Operation(StageDownsize, err)
		if err != nil {
			return fmt.Errorf("downsize to %dpx (%s): %w", j.width, j.format, err)
		}
		p.cfg.Metrics.FileWritten(KindFull, j.format.Extension())
		paths[i] = dst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

func (p *Pipeline) logger(runID string) func(string, ...any) {
	if p.cfg.Logf == nil {
		return func(string, ...any) {}
	}
	short := runID[:8]
	return func(format string, args ...any) {
		p.cfg.Logf("%s "+format, append([]any{short}, args...)...)
	}
}
