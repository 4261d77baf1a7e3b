// Package engine performs the pixel work of a conversion: probing, cropping
// tiles out of the source and resizing. The core never decodes images; it
// hands requests to an Engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

var (
	// ErrUnavailable is returned when an engine's backing tool is missing.
	ErrUnavailable = errors.New("engine not available")

	// ErrUnsupportedFormat is returned for formats an engine cannot write.
	ErrUnsupportedFormat = errors.New("format not supported by engine")
)

// Engine does the image work delegated by the pipeline.
type Engine interface {
	// Name returns the engine name ("magick", "native").
	Name() string

	// Available returns true if the engine is ready to use.
	Available() bool

	// Supports reports whether the engine can write f.
	Supports(f layout.Format) bool

	// Probe returns the dimensions of the image at path.
	Probe(ctx context.Context, path string) (probe.Dimensions, error)

	// Crop cuts the source into CropSize x CropSize tiles written to
	// req.Dir under the intermediate naming convention and returns one
	// descriptor per file written.
	Crop(ctx context.Context, req CropRequest) ([]layout.TileDescriptor, error)

	// Resize shrinks the image at src to fit inside box and writes dst.
	Resize(ctx context.Context, src string, box layout.Geometry, dst string) error

	// Downsize writes a copy of the whole source at the given width,
	// preserving the aspect ratio.
	Downsize(ctx context.Context, src string, width int, dst string) error
}

// CropRequest describes one bulk crop of the source at a scale factor.
type CropRequest struct {
	Source      string
	Dir         string
	CropSize    int
	ScaleFactor int
	Format      layout.Format
}

// ToolError reports a failed external tool invocation.
type ToolError struct {
	Tool   string
	Args   []string
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ToolError) Unwrap() error { return e.Err }

// CheckFormats returns an error naming the first format e cannot write.
func CheckFormats(e Engine, formats []layout.Format) error {
	for _, f := range formats {
		if !e.Supports(f) {
			return fmt.Errorf("%w: %s cannot write %s", ErrUnsupportedFormat, e.Name(), f)
		}
	}
	return nil
}
