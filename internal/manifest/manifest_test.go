package manifest

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/plan"
	"github.com/mdlincoln/magick-tile/internal/probe"
)

func examplePyramid() plan.Pyramid {
	return plan.Pyramid{
		Dimensions:       probe.Dimensions{Width: 6000, Height: 4000},
		TileSize:         512,
		ScalingFactors:   []int{4, 2},
		DownsizingLevels: []int{512},
	}
}

func intPtr(v int) *int { return &v }

func TestManifestJSON(t *testing.T) {
	m := Build("https://example.com/images/foobar", examplePyramid(), []layout.Format{layout.JPG}, Limits{})
	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var want map[string]any
	wantJSON := `{
		"@context": "http://iiif.io/api/image/3/context.json",
		"id": "https://example.com/images/foobar",
		"type": "ImageService3",
		"protocol": "http://iiif.io/api/image",
		"profile": "level0",
		"width": 6000,
		"height": 4000,
		"preferredFormats": ["jpg"],
		"sizes": [{"width": 512, "height": "max"}],
		"tiles": [{"width": 512, "scaleFactors": [4, 2]}]
	}`
	if err := json.Unmarshal([]byte(wantJSON), &want); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("manifest mismatch:\ngot  %s\nwant %s", data, wantJSON)
	}
}

func TestManifestOmitsUnsetLimits(t *testing.T) {
	data, err := Marshal(Build("id", examplePyramid(), []layout.Format{layout.JPG}, Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"maxWidth", "maxHeight", "maxArea", "null"} {
		if strings.Contains(string(data), key) {
			t.Errorf("unexpected %q in %s", key, data)
		}
	}
}

func TestManifestIncludesSetLimits(t *testing.T) {
	m := Build("id", examplePyramid(), []layout.Format{layout.JPG}, Limits{MaxArea: intPtr(1000000)})
	data, err := Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"maxArea": 1000000`) {
		t.Errorf("maxArea missing: %s", data)
	}
	if strings.Contains(string(data), "maxWidth") || strings.Contains(string(data), "maxHeight") {
		t.Errorf("unset limits present: %s", data)
	}

	m = Build("id", examplePyramid(), []layout.Format{layout.JPG}, Limits{MaxWidth: intPtr(3000), MaxHeight: intPtr(2000)})
	data, _ = Marshal(m)
	if !strings.Contains(string(data), `"maxWidth": 3000`) || !strings.Contains(string(data), `"maxHeight": 2000`) {
		t.Errorf("limits missing: %s", data)
	}
}

func TestManifestEmptyPyramid(t *testing.T) {
	p := plan.Pyramid{Dimensions: probe.Dimensions{Width: 200, Height: 100}, TileSize: 512, ScalingFactors: []int{}, DownsizingLevels: []int{}}
	data, err := Marshal(Build("id", p, []layout.Format{layout.PNG, layout.JPG}, Limits{}))
	if err != nil {
		t.Fatal(err)
	}
	for _, frag := range []string{`"sizes": []`, `"scaleFactors": []`, `"preferredFormats": [`} {
		if !strings.Contains(string(data), frag) {
			t.Errorf("missing %s in %s", frag, data)
		}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m.PreferredFormats, []string{"png", "jpg"}) {
		t.Errorf("format order: got %v", m.PreferredFormats)
	}
}

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	m := Build("https://example.com/iiif/x", examplePyramid(), []layout.Format{layout.JPG, layout.WEBP}, Limits{MaxArea: intPtr(42)})

	data, err := Write(m, dir)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	onDisk, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(onDisk) != string(data) {
		t.Error("returned bytes differ from file contents")
	}

	back, err := Read(dir)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	if !reflect.DeepEqual(back, m) {
		t.Errorf("read back differs:\ngot  %+v\nwant %+v", back, m)
	}
}

func TestWriteFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does", "not", "exist")
	_, err := Write(Build("id", examplePyramid(), []layout.Format{layout.JPG}, Limits{}), missing)
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected *WriteError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("underlying error not wrapped: %v", err)
	}
}

func TestCheck(t *testing.T) {
	good := Build("id", plan.Pyramid{
		Dimensions: probe.Dimensions{Width: 2676, Height: 1572}, TileSize: 512,
		ScalingFactors: []int{2}, DownsizingLevels: []int{256, 512, 1024, 2048},
	}, []layout.Format{layout.JPG}, Limits{})
	if errs := Check(good); len(errs) != 0 {
		t.Errorf("valid manifest flagged: %v", errs)
	}

	bad := *good
	bad.Profile = "level2"
	bad.Sizes = []Size{{Width: 1024, Height: "max"}, {Width: 512, Height: "full"}}
	bad.Tiles = []Tile{{Width: 512, ScaleFactors: []int{2, 3}}}
	bad.PreferredFormats = []string{"jpeg"}
	bad.MaxArea = intPtr(0)
	if errs := Check(&bad); len(errs) != 6 {
		t.Errorf("expected 6 problems, got %d: %v", len(errs), errs)
	}
}

func TestMissingFiles(t *testing.T) {
	root := t.TempDir()
	m := Build("id", plan.Pyramid{
		Dimensions: probe.Dimensions{Width: 2676, Height: 1572}, TileSize: 512,
		ScalingFactors: []int{2}, DownsizingLevels: []int{256, 512, 1024, 2048},
	}, []layout.Format{layout.JPG}, Limits{})

	files, err := ExpectedFiles(m, root)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 6+4 {
		t.Fatalf("expected 10 files, got %d: %v", len(files), files)
	}
	want := filepath.Join(root, "0,0,1024,1024", "512,", "0", "default.jpg")
	if files[0] != want {
		t.Errorf("first file: got %q, want %q", files[0], want)
	}

	for _, f := range files[1:] {
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	missing, err := MissingFiles(m, root)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(missing, []string{want}) {
		t.Errorf("missing: got %v", missing)
	}
}
