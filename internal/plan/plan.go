// Package plan derives the tile pyramid of an image: the scale factors tiles
// are produced at, the widths of the reduced full-image versions, and the
// crop grid at each scale factor.
package plan

import (
	"errors"
	"fmt"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

const (
	DefaultTileSize       = 512
	DefaultMinDownsizeExp = 8  // smallest reduced version is 256px wide
	DefaultMaxScaleExp    = 20 // largest scale factor considered is 2^20
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid pyramid configuration")

// Config bounds the pyramid. The zero value is not usable; start from
// DefaultConfig or call WithDefaults.
type Config struct {
	TileSize       int
	MinDownsizeExp int
	MaxScaleExp    int
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		TileSize:       DefaultTileSize,
		MinDownsizeExp: DefaultMinDownsizeExp,
		MaxScaleExp:    DefaultMaxScaleExp,
	}
}

// WithDefaults fills in default values for unset fields.
func (c Config) WithDefaults() Config {
	if c.TileSize == 0 {
		c.TileSize = DefaultTileSize
	}
	if c.MinDownsizeExp == 0 {
		c.MinDownsizeExp = DefaultMinDownsizeExp
	}
	if c.MaxScaleExp == 0 {
		c.MaxScaleExp = DefaultMaxScaleExp
	}
	return c
}

// Validate rejects values the planner arithmetic cannot work with.
func (c Config) Validate() error {
	switch {
	case c.TileSize <= 0:
		return fmt.Errorf("%w: tile size must be positive, got %d", ErrInvalidConfig, c.TileSize)
	case c.MinDownsizeExp < 0 || c.MinDownsizeExp > 30:
		return fmt.Errorf("%w: minimum downsize exponent must be in [0, 30], got %d", ErrInvalidConfig, c.MinDownsizeExp)
	case c.MaxScaleExp < 1 || c.MaxScaleExp > 30:
		return fmt.Errorf("%w: maximum scale exponent must be in [1, 30], got %d", ErrInvalidConfig, c.MaxScaleExp)
	}
	return nil
}

// ScalingFactors returns the powers of two, starting at 2, that are strictly
// smaller than ceil(shorterSide / tileSize), up to 2^maxExp. The result is
// empty (not nil) when the image is not much larger than one tile.
func ScalingFactors(shorterSide, tileSize, maxExp int) []int {
	factors := []int{}
	if tileSize <= 0 || shorterSide <= 0 {
		return factors
	}
	limit := (shorterSide + tileSize - 1) / tileSize
	for exp := 1; exp <= maxExp; exp++ {
		sf := 1 << exp
		if sf >= limit {
			break
		}
		factors = append(factors, sf)
	}
	return factors
}

// DownsizingLevels returns the powers of two, starting at 2^minExp, that are
// strictly narrower than width. The result is empty (not nil) when the image
// is narrower than the smallest level.
func DownsizingLevels(width, minExp int) []int {
	levels := []int{}
	if minExp < 0 {
		return levels
	}
	for w := 1 << minExp; w < width; w *= 2 {
		levels = append(levels, w)
	}
	return levels
}

// CropGrid enumerates the regions a -crop of cropSize x cropSize produces
// over an image, row by row. Tiles on the right and bottom edges are clipped
// to the image.
func CropGrid(dims probe.Dimensions, cropSize int) []layout.Region {
	if cropSize <= 0 {
		return nil
	}
	var regions []layout.Region
	for y := 0; y < dims.Height; y += cropSize {
		h := min(cropSize, dims.Height-y)
		for x := 0; x < dims.Width; x += cropSize {
			regions = append(regions, layout.Region{X: x, Y: y, W: min(cropSize, dims.Width-x), H: h})
		}
	}
	return regions
}

// Pyramid is the full plan for one image.
type Pyramid struct {
	Dimensions       probe.Dimensions
	TileSize         int
	ScalingFactors   []int
	DownsizingLevels []int
}

// New plans the pyramid for an image of the given dimensions.
func New(dims probe.Dimensions, cfg Config) (Pyramid, error) {
	if err := cfg.Validate(); err != nil {
		return Pyramid{}, err
	}
	return Pyramid{
		Dimensions:       dims,
		TileSize:         cfg.TileSize,
		ScalingFactors:   ScalingFactors(dims.ShorterSide(), cfg.TileSize, cfg.MaxScaleExp),
		DownsizingLevels: DownsizingLevels(dims.Width, cfg.MinDownsizeExp),
	}, nil
}

// CropSize is the edge length of the source crop at scale factor sf.
func (p Pyramid) CropSize(sf int) int {
	return p.TileSize * sf
}

// Tiles enumerates every tile descriptor the pyramid implies for format f.
func (p Pyramid) Tiles(f layout.Format) []layout.TileDescriptor {
	var tiles []layout.TileDescriptor
	for _, sf := range p.ScalingFactors {
		crop := p.CropSize(sf)
		for _, r := range CropGrid(p.Dimensions, crop) {
			tiles = append(tiles, layout.TileDescriptor{
				CropSize:    crop,
				ScaleFactor: sf,
				Region:      r,
				Format:      f,
			})
		}
	}
	return tiles
}
