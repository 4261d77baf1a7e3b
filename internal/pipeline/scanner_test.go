package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mdlincoln/magick-tile/internal/layout"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		rel    string
		kind   string
		format layout.Format
		width  int
	}{
		{"info.json", KindManifest, 0, 0},
		{"full/256,/0/default.jpg", KindFull, layout.JPG, 256},
		{"0,0,1024,1024/512,/0/default.png", KindTile, layout.PNG, 512},
		{"2048,1024,628,548/314,/0/default.tif", KindTile, layout.TIF, 314},
		{"full/256/0/default.jpg", KindOther, 0, 0},
		{"full/256,/90/default.jpg", KindOther, 0, 0},
		{"full/256,/0/gray.jpg", KindOther, 0, 0},
		{"full/256,/0/default.bmp", KindOther, 0, 0},
		{"0,0,1024/512,/0/default.jpg", KindOther, 0, 0},
		{"0,-1,1024,1024/512,/0/default.jpg", KindOther, 0, 0},
		{"notes.txt", KindOther, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			o := classify(tt.rel)
			if o.Kind != tt.kind || o.Format != tt.format || o.Width != tt.width {
				t.Errorf("got kind=%s format=%v width=%d", o.Kind, o.Format, o.Width)
			}
		})
	}
	if r := classify("2048,1024,628,548/314,/0/default.jpg").Region; r != (layout.Region{X: 2048, Y: 1024, W: 628, H: 548}) {
		t.Errorf("region: got %v", r)
	}
}

func TestScanOutput(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"info.json":                       "{}",
		"full/256,/0/default.jpg":         "abcd",
		"0,0,512,512/256,/0/default.jpg":  "ab",
		".cache/full/256,/0/default.jpg":  "hidden",
		"0,0,512,512/256,/0/default.jpg~": "x",
	}
	for rel, body := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	outputs, err := ScanOutput(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(outputs) != 4 {
		t.Fatalf("got %d outputs, want 4 (hidden dir skipped): %+v", len(outputs), outputs)
	}
	byRel := map[string]Output{}
	for _, o := range outputs {
		byRel[o.RelPath] = o
	}
	if o := byRel["full/256,/0/default.jpg"]; o.Kind != KindFull || o.Size != 4 {
		t.Errorf("full: %+v", o)
	}
	if o := byRel["0,0,512,512/256,/0/default.jpg~"]; o.Kind != KindOther {
		t.Errorf("backup file: %+v", o)
	}
}
