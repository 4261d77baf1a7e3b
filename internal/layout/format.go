package layout

import (
	"errors"
	"fmt"
	"strings"
)

// Format is an output image format a IIIF Level-0 tile set can be written in.
type Format int

const (
	JPG Format = iota + 1
	TIF
	PNG
	GIF
	JP2
	PDF
	WEBP
)

// ErrUnknownFormat is returned when a format name is not one of the IIIF formats.
var ErrUnknownFormat = errors.New("unknown image format")

var formatExtensions = map[Format]string{
	JPG:  "jpg",
	TIF:  "tif",
	PNG:  "png",
	GIF:  "gif",
	JP2:  "jp2",
	PDF:  "pdf",
	WEBP: "webp",
}

// AllFormats lists every supported format in declaration order.
func AllFormats() []Format {
	return []Format{JPG, TIF, PNG, GIF, JP2, PDF, WEBP}
}

// ParseFormat maps an extension name ("jpg", "png", ...) to its Format.
// Matching is exact and case-sensitive, like the IIIF format parameter.
func ParseFormat(s string) (Format, error) {
	for f, ext := range formatExtensions {
		if ext == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, s, formatNames())
}

// Extension returns the file extension without dot.
func (f Format) Extension() string {
	return formatExtensions[f]
}

// Valid reports whether f is one of the declared formats.
func (f Format) Valid() bool {
	_, ok := formatExtensions[f]
	return ok
}

func (f Format) String() string {
	if ext, ok := formatExtensions[f]; ok {
		return ext
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
	}
	return []byte(f.Extension()), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	parsed, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Extensions converts formats to their extension strings, preserving order.
func Extensions(formats []Format) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = f.Extension()
	}
	return out
}

func formatNames() string {
	return strings.Join(Extensions(AllFormats()), ", ")
}
