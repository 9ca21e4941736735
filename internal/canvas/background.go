package canvas

import (
	"image"
	"image/color"
)

// Mode is the active background source.
type Mode string

const (
	ModeColor  Mode = "color"
	ModeImage  Mode = "image"
	ModeWebcam Mode = "webcam"
)

// Background is exactly one of ColorBackground, ImageBackground or
// WebcamBackground.
type Background interface {
	Mode() Mode
}

// ColorBackground paints the surface with a solid colour.
type ColorBackground struct {
	Color color.NRGBA
}

// ImageBackground is a decoded image cover-fitted and centred on the surface.
// It never receives pointer input.
type ImageBackground struct {
	Image     image.Image
	Placement Placement
}

// WebcamBackground draws the latest frame of a live stream.
type WebcamBackground struct {
	Stream Stream
}

func (ColorBackground) Mode() Mode  { return ModeColor }
func (ImageBackground) Mode() Mode  { return ModeImage }
func (WebcamBackground) Mode() Mode { return ModeWebcam }
