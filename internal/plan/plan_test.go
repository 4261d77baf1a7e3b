package plan

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

func TestReferenceImage(t *testing.T) {
	p, err := New(probe.Dimensions{Width: 2676, Height: 1572}, DefaultConfig())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !reflect.DeepEqual(p.ScalingFactors, []int{2}) {
		t.Errorf("scaling factors: got %v, want [2]", p.ScalingFactors)
	}
	if !reflect.DeepEqual(p.DownsizingLevels, []int{256, 512, 1024, 2048}) {
		t.Errorf("downsizing levels: got %v", p.DownsizingLevels)
	}
}

func TestScalingFactors(t *testing.T) {
	tests := []struct {
		shorter, tile, maxExp int
		want                  []int
	}{
		{1572, 512, 20, []int{2}},
		{4000, 512, 20, []int{2, 4}},
		{8193, 512, 20, []int{2, 4, 8, 16}},
		{8193, 512, 2, []int{2, 4}},
		{1025, 512, 20, []int{2}},
		{1024, 512, 20, []int{}},
		{512, 512, 20, []int{}},
		{100, 512, 20, []int{}},
		{100, 0, 20, []int{}},
	}
	for _, tt := range tests {
		got := ScalingFactors(tt.shorter, tt.tile, tt.maxExp)
		if got == nil {
			t.Errorf("(%d, %d): got nil, want empty slice", tt.shorter, tt.tile)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("(%d, %d, %d): got %v, want %v", tt.shorter, tt.tile, tt.maxExp, got, tt.want)
		}
	}
}

func TestScalingFactorsEmptyWhenNotLargerThanTile(t *testing.T) {
	for _, tile := range []int{1, 7, 256, 512, 1000} {
		for _, shorter := range []int{1, tile / 2, tile} {
			if shorter <= 0 {
				continue
			}
			if got := ScalingFactors(shorter, tile, DefaultMaxScaleExp); len(got) != 0 {
				t.Errorf("(%d, %d): got %v, want empty", shorter, tile, got)
			}
		}
	}
}

func TestDownsizingLevelsProperties(t *testing.T) {
	for _, minExp := range []int{0, 4, 8} {
		for _, width := range []int{(1 << minExp) + 1, 300, 513, 1024, 1025, 2676, 10000, 65537} {
			if width <= 1<<minExp {
				continue
			}
			levels := DownsizingLevels(width, minExp)
			if len(levels) == 0 {
				t.Errorf("width %d, exp %d: no levels", width, minExp)
			}
			prev := 0
			for _, l := range levels {
				if l <= prev {
					t.Errorf("width %d: not strictly increasing: %v", width, levels)
				}
				if l&(l-1) != 0 || l < 1<<minExp {
					t.Errorf("width %d: %d is not a power of two >= 2^%d", width, l, minExp)
				}
				if l >= width {
					t.Errorf("width %d: level %d not smaller than the image", width, l)
				}
				prev = l
			}
			// The next power of two would reach the width.
			if next := levels[len(levels)-1] * 2; next < width {
				t.Errorf("width %d: level %d missing", width, next)
			}
		}
	}
}

func TestDownsizingLevelsEdges(t *testing.T) {
	if got := DownsizingLevels(256, 8); got == nil || len(got) != 0 {
		t.Errorf("width equal to minimum: got %v", got)
	}
	if got := DownsizingLevels(100, 8); len(got) != 0 {
		t.Errorf("narrow image: got %v", got)
	}
	if got := DownsizingLevels(257, 8); !reflect.DeepEqual(got, []int{256}) {
		t.Errorf("got %v", got)
	}
}

func TestCropGrid(t *testing.T) {
	regions := CropGrid(probe.Dimensions{Width: 2676, Height: 1572}, 1024)
	want := []layout.Region{
		{X: 0, Y: 0, W: 1024, H: 1024}, {X: 1024, Y: 0, W: 1024, H: 1024}, {X: 2048, Y: 0, W: 628, H: 1024},
		{X: 0, Y: 1024, W: 1024, H: 548}, {X: 1024, Y: 1024, W: 1024, H: 548}, {X: 2048, Y: 1024, W: 628, H: 548},
	}
	if !reflect.DeepEqual(regions, want) {
		t.Errorf("got %v", regions)
	}

	if got := CropGrid(probe.Dimensions{Width: 100, Height: 50}, 512); !reflect.DeepEqual(got, []layout.Region{{X: 0, Y: 0, W: 100, H: 50}}) {
		t.Errorf("single tile: got %v", got)
	}
}

func TestPyramidTiles(t *testing.T) {
	p, err := New(probe.Dimensions{Width: 4000, Height: 3000}, DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	// sf 2: 1024 crops -> 4x3, sf 4: 2048 crops -> 2x2
	tiles := p.Tiles(layout.PNG)
	if len(tiles) != 12+4 {
		t.Fatalf("got %d tiles", len(tiles))
	}
	for _, d := range tiles {
		if d.Format != layout.PNG || d.CropSize != 512*d.ScaleFactor {
			t.Errorf("bad descriptor %+v", d)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []Config{
		{TileSize: 0, MinDownsizeExp: 8, MaxScaleExp: 20},
		{TileSize: -512, MinDownsizeExp: 8, MaxScaleExp: 20},
		{TileSize: 512, MinDownsizeExp: -1, MaxScaleExp: 20},
		{TileSize: 512, MinDownsizeExp: 8, MaxScaleExp: 0},
	}
	for _, c := range bad {
		if _, err := New(probe.Dimensions{Width: 10, Height: 10}, c); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%+v: expected ErrInvalidConfig, got %v", c, err)
		}
	}
	if err := (Config{}).WithDefaults().Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}
