package engine

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/plan"
	"github.com/mdlincoln/magick-tile/internal/probe"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// jpegQuality matches ImageMagick's default when the source has no
// quality estimate.
const jpegQuality = 92

// Native does the image work in-process with imaging. It needs no external
// tool but only writes formats with a pure Go encoder.
type Native struct {
	mu     sync.Mutex
	path   string
	source image.Image
}

// NewNative returns an in-process engine.
func NewNative() *Native {
	return &Native{}
}

func (n *Native) Name() string    { return "native" }
func (n *Native) Available() bool { return true }

func (n *Native) Supports(f layout.Format) bool {
	switch f {
	case layout.JPG, layout.PNG, layout.GIF, layout.TIF:
		return true
	}
	return false
}

func (n *Native) Probe(ctx context.Context, path string) (probe.Dimensions, error) {
	return probe.Native(ctx, path)
}

// Crop computes the crop grid itself, so the descriptors it returns are
// built directly rather than parsed back out of the file names.
func (n *Native) Crop(ctx context.Context, req CropRequest) ([]layout.TileDescriptor, error) {
	if !n.Supports(req.Format) {
		return nil, fmt.Errorf("%w: native cannot write %s", ErrUnsupportedFormat, req.Format)
	}
	src, err := n.open(req.Source)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create crop dir: %w", err)
	}

	b := src.Bounds()
	dims := probe.Dimensions{Width: b.Dx(), Height: b.Dy()}
	regions := plan.CropGrid(dims, req.CropSize)
	tiles := make([]layout.TileDescriptor, 0, len(regions))
	for _, r := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rect := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H).Add(b.Min)
		path := filepath.Join(req.Dir, layout.EncodeTileName(req.CropSize, req.ScaleFactor, r, req.Format))
		if err := save(imaging.Crop(src, rect), path); err != nil {
			return nil, err
		}
		tiles = append(tiles, layout.TileDescriptor{
			CropSize:    req.CropSize,
			ScaleFactor: req.ScaleFactor,
			Region:      r,
			Format:      req.Format,
			Path:        path,
		})
	}
	return tiles, nil
}

func (n *Native) Resize(ctx context.Context, src string, box layout.Geometry, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	b := img.Bounds()
	w, h := FitBox(b.Dx(), b.Dy(), box)
	return save(imaging.Resize(img, w, h, imaging.Lanczos), dst)
}

func (n *Native) Downsize(ctx context.Context, src string, width int, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := n.open(src)
	if err != nil {
		return err
	}
	b := img.Bounds()
	w, h := FitBox(b.Dx(), b.Dy(), layout.Geometry{Width: width})
	return save(imaging.Resize(img, w, h, imaging.Lanczos), dst)
}

// open decodes the source once and keeps it for later crops and
// downsizes of the same file.
func (n *Native) open(path string) (image.Image, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.source != nil && n.path == path {
		return n.source, nil
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	n.path, n.source = path, img
	return img, nil
}

// FitBox scales w x h to fit inside box keeping the aspect ratio, the way
// ImageMagick's -resize WxH does. A zero box dimension is unconstrained.
// The result is never smaller than 1x1.
func FitBox(w, h int, box layout.Geometry) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	sx, sy := math.Inf(1), math.Inf(1)
	if box.Width > 0 {
		sx = float64(box.Width) / float64(w)
	}
	if box.Height > 0 {
		sy = float64(box.Height) / float64(h)
	}
	s := math.Min(sx, sy)
	if math.IsInf(s, 1) {
		return w, h
	}
	return max(1, int(math.Round(float64(w)*s))), max(1, int(math.Round(float64(h)*s)))
}

func save(img image.Image, path string) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(jpegQuality)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
