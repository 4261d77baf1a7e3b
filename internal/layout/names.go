package layout

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// MalformedNameError is returned when a file in a crop directory does not
// follow the intermediate tile naming convention.
type MalformedNameError struct {
	Name   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed tile file name %q: %s", e.Name, e.Reason)
}

// EncodeTileName returns the intermediate file name of a cropped tile.
func EncodeTileName(cropSize, scaleFactor int, r Region, f Format) string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%d.%s", cropSize, scaleFactor, r.X, r.Y, r.W, r.H, f.Extension())
}

// TileNameTemplate is the output file template handed to ImageMagick's
// -crop. The tool substitutes %[filename:tile] with "x,y,w,h" of each tile,
// which is the part only it knows for edge tiles.
func TileNameTemplate(cropSize, scaleFactor int, f Format) string {
	return fmt.Sprintf("%d,%d,%%[filename:tile].%s", cropSize, scaleFactor, f.Extension())
}

// DecodeTileName parses an intermediate file name (a bare name or a path)
// back into a TileDescriptor. Path is set to name as given.
func DecodeTileName(name string) (TileDescriptor, error) {
	base := filepath.Base(name)
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 {
		return TileDescriptor{}, &MalformedNameError{Name: base, Reason: "missing extension"}
	}
	f, err := ParseFormat(base[dot+1:])
	if err != nil {
		return TileDescriptor{}, &MalformedNameError{Name: base, Reason: "unrecognized extension"}
	}

	fields := strings.Split(base[:dot], ",")
	if len(fields) != 6 {
		return TileDescriptor{}, &MalformedNameError{Name: base, Reason: fmt.Sprintf("want 6 comma-separated integers, got %d fields", len(fields))}
	}
	var n [6]int
	for i, s := range fields {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 || s == "" || s[0] == '+' {
			return TileDescriptor{}, &MalformedNameError{Name: base, Reason: fmt.Sprintf("field %d (%q) is not a non-negative integer", i+1, s)}
		}
		n[i] = v
	}
	if n[0] == 0 || n[1] == 0 || n[4] == 0 || n[5] == 0 {
		return TileDescriptor{}, &MalformedNameError{Name: base, Reason: "crop size, scale factor and extents must be positive"}
	}

	return TileDescriptor{
		CropSize:    n[0],
		ScaleFactor: n[1],
		Region:      Region{X: n[2], Y: n[3], W: n[4], H: n[5]},
		Format:      f,
		Path:        name,
	}, nil
}
