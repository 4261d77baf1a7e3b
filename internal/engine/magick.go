package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

// tileGeometry is the -set filename:tile expression: ImageMagick reports
// the offset and size of every tile it cut, including clipped edge tiles.
const tileGeometry = "%[fx:page.x],%[fx:page.y],%[fx:w],%[fx:h]"

// Runner runs an external command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tools names the ImageMagick binaries. Empty fields are looked up on PATH.
type Tools struct {
	Convert  string
	Identify string
}

// ToolsFromEnv reads MAGICK_TILE_CONVERT and MAGICK_TILE_IDENTIFY.
func ToolsFromEnv() Tools {
	return Tools{
		Convert:  os.Getenv("MAGICK_TILE_CONVERT"),
		Identify: os.Getenv("MAGICK_TILE_IDENTIFY"),
	}
}

// Magick delegates all image work to ImageMagick's convert and identify.
// When those are not on PATH the ImageMagick 7 "magick" front-end is used.
// Install: brew install imagemagick / apt install imagemagick
type Magick struct {
	tools    Tools
	run      Runner
	lookPath func(string) (string, error)

	once      sync.Once
	available bool
	convert   []string
	identify  []string
}

// NewMagick returns an engine running the real ImageMagick binaries.
func NewMagick(tools Tools) *Magick {
	return &Magick{tools: tools, run: execRunner, lookPath: exec.LookPath}
}

// NewMagickWithRunner returns an engine that hands every command to run
// instead of executing it. Binaries are taken as named, without PATH lookup.
func NewMagickWithRunner(tools Tools, run Runner) *Magick {
	return &Magick{tools: tools, run: run, lookPath: func(name string) (string, error) { return name, nil }}
}

func (m *Magick) Name() string { return "magick" }

func (m *Magick) Available() bool {
	m.once.Do(func() {
		m.convert = m.resolve(m.tools.Convert, "convert", nil)
		m.identify = m.resolve(m.tools.Identify, "identify", []string{"identify"})
		m.available = m.convert != nil && m.identify != nil
	})
	return m.available
}

// resolve finds a binary: the configured one, the classic name, or the
// magick front-end followed by sub.
func (m *Magick) resolve(configured, classic string, sub []string) []string {
	if configured != "" {
		if path, err := m.lookPath(configured); err == nil {
			return []string{path}
		}
		return nil
	}
	if path, err := m.lookPath(classic); err == nil {
		return []string{path}
	}
	if path, err := m.lookPath("magick"); err == nil {
		return append([]string{path}, sub...)
	}
	return nil
}

// Supports returns true for every IIIF format; ImageMagick delegates
// decide at run time whether jp2, pdf or webp can actually be written.
func (m *Magick) Supports(f layout.Format) bool {
	return f.Valid()
}

func (m *Magick) Probe(ctx context.Context, path string) (probe.Dimensions, error) {
	if !m.Available() {
		return probe.Dimensions{}, &probe.Error{Path: path, Err: fmt.Errorf("%w: identify not found in PATH", ErrUnavailable)}
	}
	out, err := m.exec(ctx, m.identify, "-ping", "-format", `%wx%h\n`, path)
	if err != nil {
		var te *ToolError
		output := string(out)
		if errors.As(err, &te) && output == "" {
			output = te.Output
		}
		return probe.Dimensions{}, &probe.Error{Path: path, Output: output, Err: err}
	}
	return probe.ParseIdentify(path, out)
}

func (m *Magick) Crop(ctx context.Context, req CropRequest) ([]layout.TileDescriptor, error) {
	if !m.Available() {
		return nil, fmt.Errorf("%w: convert not found in PATH", ErrUnavailable)
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create crop dir: %w", err)
	}

	crop := layout.Geometry{Width: req.CropSize, Height: req.CropSize}
	_, err := m.exec(ctx, m.convert,
		req.Source,
		"-crop", crop.String(),
		"-set", "filename:tile", tileGeometry,
		"+repage",
		"+adjoin",
		filepath.Join(req.Dir, layout.TileNameTemplate(req.CropSize, req.ScaleFactor, req.Format)),
	)
	if err != nil {
		return nil, err
	}
	return CollectTiles(req)
}

// CollectTiles decodes every file in req.Dir into a tile descriptor. Any
// file that is not a crop of req is an error.
func CollectTiles(req CropRequest) ([]layout.TileDescriptor, error) {
	entries, err := os.ReadDir(req.Dir)
	if err != nil {
		return nil, fmt.Errorf("read crop dir: %w", err)
	}
	tiles := make([]layout.TileDescriptor, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			return nil, &layout.MalformedNameError{Name: e.Name(), Reason: "unexpected directory"}
		}
		d, err := layout.DecodeTileName(filepath.Join(req.Dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if d.CropSize != req.CropSize || d.ScaleFactor != req.ScaleFactor || d.Format != req.Format {
			return nil, &layout.MalformedNameError{
				Name:   e.Name(),
				Reason: fmt.Sprintf("does not belong to the %d/%d %s crop", req.CropSize, req.ScaleFactor, req.Format),
			}
		}
		tiles = append(tiles, d)
	}
	return tiles, nil
}

func (m *Magick) Resize(ctx context.Context, src string, box layout.Geometry, dst string) error {
	if !m.Available() {
		return fmt.Errorf("%w: convert not found in PATH", ErrUnavailable)
	}
	_, err := m.exec(ctx, m.convert, src, "-resize", box.String(), dst)
	return err
}

func (m *Magick) Downsize(ctx context.Context, src string, width int, dst string) error {
	if !m.Available() {
		return fmt.Errorf("%w: convert not found in PATH", ErrUnavailable)
	}
	_, err := m.exec(ctx, m.convert, src, "-geometry", layout.Geometry{Width: width}.String(), dst)
	return err
}

func (m *Magick) exec(ctx context.Context, argv []string, args ...string) ([]byte, error) {
	full := append(append([]string(nil), argv[1:]...), args...)
	out, err := m.run(ctx, argv[0], full...)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return out, err
		}
		return out, &ToolError{Tool: argv[0], Args: full, Err: err}
	}
	return out, nil
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &ToolError{Tool: name, Args: args, Output: strings.TrimSpace(stderr.String()), Err: err}
	}
	return out, nil
}
