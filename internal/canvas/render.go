package canvas

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

var (
	pageFill   = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	pageBorder = color.NRGBA{R: 0xd1, G: 0xd5, B: 0xdb, A: 0xff}
)

// Render returns a copy of the current composite.
func (s *Surface) Render() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raster == nil {
		if s.unmounted {
			return imaging.New(int(s.size.Width), int(s.size.Height), s.color)
		}
		s.paintLocked()
	}
	return imaging.Clone(s.raster)
}

// paintLocked recomposes the surface: fill colour, background source,
// worksheet page, then the design object on top.
func (s *Surface) paintLocked() {
	fill := s.color
	if bg, ok := s.background.(ColorBackground); ok {
		fill = bg.Color
	}
	dst := imaging.New(int(math.Round(s.size.Width)), int(math.Round(s.size.Height)), fill)

	switch bg := s.background.(type) {
	case ImageBackground:
		drawScaled(dst, bg.Image, Point{X: bg.Placement.Left, Y: bg.Placement.Top},
			Scale{X: bg.Placement.Scale, Y: bg.Placement.Scale}, xdraw.CatmullRom)
	case WebcamBackground:
		if bg.Stream != nil {
			if frame := bg.Stream.Frame(); frame != nil {
				fit := ContainFit(boundsSize(frame), s.size)
				drawScaled(dst, frame, Point{X: fit.Left, Y: fit.Top}, Scale{X: fit.Scale, Y: fit.Scale}, xdraw.ApproxBiLinear)
			}
		}
	}

	if s.doc != nil {
		s.paintPageLocked(dst)
	}
	if s.object != nil {
		drawScaled(dst, s.object.Image, s.object.Position, s.object.Scale, xdraw.CatmullRom)
	}
	s.raster = dst
}

// paintPageLocked draws the current worksheet page as a bordered sheet
// contain-fitted to the surface. A page that fails to rasterize is shown
// blank so paging keeps working.
func (s *Surface) paintPageLocked(dst *image.NRGBA) {
	size, err := s.doc.PageSize(s.page)
	if err != nil {
		return
	}
	fit := ContainFit(size, s.size)
	scaled := fit.Size(size)
	sheet := image.Rect(
		int(math.Round(fit.Left)),
		int(math.Round(fit.Top)),
		int(math.Round(fit.Left+scaled.Width)),
		int(math.Round(fit.Top+scaled.Height)),
	)
	xdraw.Draw(dst, sheet, image.NewUniform(pageBorder), image.Point{}, xdraw.Src)
	inner := sheet.Inset(1)
	if inner.Empty() {
		return
	}
	page, err := s.doc.RenderPage(s.page, inner.Dx(), inner.Dy())
	if err != nil {
		xdraw.Draw(dst, inner, image.NewUniform(pageFill), image.Point{}, xdraw.Src)
		return
	}
	xdraw.Draw(dst, inner, page, page.Bounds().Min, xdraw.Src)
}

func drawScaled(dst *image.NRGBA, src image.Image, pos Point, scale Scale, interp xdraw.Interpolator) {
	b := src.Bounds()
	rect := image.Rect(
		int(math.Round(pos.X)),
		int(math.Round(pos.Y)),
		int(math.Round(pos.X+float64(b.Dx())*scale.X)),
		int(math.Round(pos.Y+float64(b.Dy())*scale.Y)),
	)
	if rect.Empty() {
		return
	}
	interp.Scale(dst, rect, src, b, xdraw.Over, nil)
}
