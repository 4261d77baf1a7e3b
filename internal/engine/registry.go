package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mdlincoln/magick-tile/internal/layout"
)

// DefaultName is the engine used when none is requested.
const DefaultName = "magick"

// ErrUnknownEngine is returned by Lookup for names it does not know.
var ErrUnknownEngine = errors.New("unknown engine")

// Names lists the known engines in priority order.
func Names() []string {
	return []string{"magick", "native"}
}

// Lookup returns a fresh engine by name.
func Lookup(name string) (Engine, error) {
	switch strings.ToLower(name) {
	case "", "magick":
		return NewMagick(ToolsFromEnv()), nil
	case "native":
		return NewNative(), nil
	}
	return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownEngine, name, strings.Join(Names(), ", "))
}

// Describe returns a summary of engine availability and formats.
func Describe(e Engine) string {
	if !e.Available() {
		return fmt.Sprintf("engine %s: not available", e.Name())
	}
	var formats []string
	for _, f := range layout.AllFormats() {
		if e.Supports(f) {
			formats = append(formats, f.Extension())
		}
	}
	return fmt.Sprintf("engine %s: %s", e.Name(), strings.Join(formats, ", "))
}
