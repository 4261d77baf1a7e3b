package manifest

// IIIF Image API 3.0 constants written into every info.json.
const (
	Context  = "http://iiif.io/api/image/3/context.json"
	Type     = "ImageService3"
	Protocol = "http://iiif.io/api/image"
	Profile  = "level0"

	// MaxHeight is the height marker of a size entry: keep the aspect
	// ratio and fit to the width.
	MaxHeight = "max"

	// FileName is the name of the descriptor in the output directory.
	FileName = "info.json"
)

// Manifest is the IIIF info.json of a static Level-0 image service.
// Field order follows the order keys are written in.
type Manifest struct {
	Context          string   `json:"@context"`
	ID               string   `json:"id"`
	Type             string   `json:"type"`
	Protocol         string   `json:"protocol"`
	Profile          string   `json:"profile"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	MaxWidth         *int     `json:"maxWidth,omitempty"`
	MaxHeight        *int     `json:"maxHeight,omitempty"`
	MaxArea          *int     `json:"maxArea,omitempty"`
	PreferredFormats []string `json:"preferredFormats"`
	Sizes            []Size   `json:"sizes"`
	Tiles            []Tile   `json:"tiles"`
}

// Size declares one reduced full-image version.
type Size struct {
	Width  int    `json:"width"`
	Height string `json:"height"` // always "max"
}

// Tile declares a tile width and the scale factors it is available at.
type Tile struct {
	Width        int   `json:"width"`
	ScaleFactors []int `json:"scaleFactors"`
}

// Limits holds the optional maxWidth/maxHeight/maxArea values. A nil
// pointer leaves the key out of info.json.
type Limits struct {
	MaxWidth  *int
	MaxHeight *int
	MaxArea   *int
}
