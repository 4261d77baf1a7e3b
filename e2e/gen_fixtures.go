//go:build ignore

// gen_fixtures creates source images for the E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
//
//	page.jpg   2676x1572, scale factors [2], sizes 256..2048
//	plate.png  1100x700 with a checkerboard so tile seams are visible
//	thumb.jpg  300x200, smaller than one tile: no scale factors
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}

	write(filepath.Join(dir, "page.jpg"), gradient(2676, 1572))
	write(filepath.Join(dir, "plate.png"), checkerboard(1100, 700, 64))
	write(filepath.Join(dir, "thumb.jpg"), gradient(300, 200))

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created 3 fixtures in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func checkerboard(w, h, cell int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 30, G: 30, B: 30, A: 255}
			if (x/cell+y/cell)%2 == 0 {
				c = color.NRGBA{R: 230, G: 220, B: 200, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func write(path string, img image.Image) {
	if err := imaging.Save(img, path, imaging.JPEGQuality(85)); err != nil {
		panic(err)
	}
}
