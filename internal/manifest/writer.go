package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mdlincoln/magick-tile/internal/layout"
	"github.com/mdlincoln/magick-tile/internal/plan"
)

// WriteError reports a failure to write info.json.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Build assembles the info.json for a planned pyramid. It does no I/O.
func Build(id string, p plan.Pyramid, formats []layout.Format, limits Limits) *Manifest {
	sizes := make([]Size, 0, len(p.DownsizingLevels))
	for _, w := range p.DownsizingLevels {
		sizes = append(sizes, Size{Width: w, Height: MaxHeight})
	}
	factors := make([]int, len(p.ScalingFactors))
	copy(factors, p.ScalingFactors)

	return &Manifest{
		Context:          Context,
		ID:               id,
		Type:             Type,
		Protocol:         Protocol,
		Profile:          Profile,
		Width:            p.Dimensions.Width,
		Height:           p.Dimensions.Height,
		MaxWidth:         limits.MaxWidth,
		MaxHeight:        limits.MaxHeight,
		MaxArea:          limits.MaxArea,
		PreferredFormats: layout.Extensions(formats),
		Sizes:            sizes,
		Tiles:            []Tile{{Width: p.TileSize, ScaleFactors: factors}},
	}
}

// Marshal serializes the manifest as indented JSON with a trailing newline.
func Marshal(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write stores the manifest as dir/info.json and returns the bytes written.
func Write(m *Manifest, dir string) (data []byte, err error) {
	path := filepath.Join(dir, FileName)
	data, err = Marshal(m)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			data, err = nil, &WriteError{Path: path, Err: cerr}
		}
	}()

	if _, err := f.Write(data); err != nil {
		return nil, &WriteError{Path: path, Err: err}
	}
	return data, nil
}

// Read loads dir/info.json, or the file itself when path is not a directory.
func Read(path string) (*Manifest, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}
