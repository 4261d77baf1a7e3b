// Package probe finds the pixel dimensions of a source image.
package probe

import (
	"context"
	"fmt"
	"image"
	"os"
	"regexp"
	"strconv"
	"sync"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions is the width and height of an image in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ShorterSide returns min(width, height).
func (d Dimensions) ShorterSide() int {
	return min(d.Width, d.Height)
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Error reports that the dimensions of an image could not be determined.
// Output holds whatever the probing tool printed.
type Error struct {
	Path   string
	Output string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("cannot determine dimensions of %s", e.Path)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += fmt.Sprintf(" (output: %q)", e.Output)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Prober returns the dimensions of the image at path.
type Prober interface {
	Probe(ctx context.Context, path string) (Dimensions, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, path string) (Dimensions, error)

func (f ProberFunc) Probe(ctx context.Context, path string) (Dimensions, error) {
	return f(ctx, path)
}

var geometryPattern = regexp.MustCompile(`(\d+)x(\d+)`)

// ParseIdentify extracts the first WIDTHxHEIGHT pair from identify output.
func ParseIdentify(path string, output []byte) (Dimensions, error) {
	m := geometryPattern.FindSubmatch(output)
	if m == nil {
		return Dimensions{}, &Error{Path: path, Output: string(output), Err: fmt.Errorf("no WIDTHxHEIGHT in identify output")}
	}
	w, errW := strconv.Atoi(string(m[1]))
	h, errH := strconv.Atoi(string(m[2]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return Dimensions{}, &Error{Path: path, Output: string(output), Err: fmt.Errorf("invalid geometry %q", m[0])}
	}
	return Dimensions{Width: w, Height: h}, nil
}

// Native reads the dimensions from the image header with the decoders
// registered in the image package (jpeg, png, gif, bmp, tiff, webp).
func Native(_ context.Context, path string) (Dimensions, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dimensions{}, &Error{Path: path, Err: err}
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Dimensions{}, &Error{Path: path, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Dimensions{}, &Error{Path: path, Err: fmt.Errorf("%s header reports %dx%d", format, cfg.Width, cfg.Height)}
	}
	return Dimensions{Width: cfg.Width, Height: cfg.Height}, nil
}

// Cached probes once per path and remembers the answer, errors included.
type Cached struct {
	p       Prober
	mu      sync.Mutex
	results map[string]cachedResult
}

type cachedResult struct {
	dims Dimensions
	err  error
}

// NewCached wraps p.
func NewCached(p Prober) *Cached {
	return &Cached{p: p, results: make(map[string]cachedResult)}
}

func (c *Cached) Probe(ctx context.Context, path string) (Dimensions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.results[path]; ok {
		return r.dims, r.err
	}
	dims, err := c.p.Probe(ctx, path)
	c.results[path] = cachedResult{dims, err}
	return dims, err
}
