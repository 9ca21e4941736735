package canvas

import "math"

// Size is a width and height in surface units.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a top-left position in surface units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale holds independent horizontal and vertical scale factors.
type Scale struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Placement positions a source of some natural size inside a target with a
// uniform scale.
type Placement struct {
	Left  float64 `json:"left"`
	Top   float64 `json:"top"`
	Scale float64 `json:"scale"`
}

// Size returns the scaled size of src under p.
func (p Placement) Size(src Size) Size {
	return Size{Width: src.Width * p.Scale, Height: src.Height * p.Scale}
}

func (s Size) empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// ClampPosition keeps an object of the given scaled size inside bounds. An
// object larger than bounds on an axis is pinned to the origin on that axis.
func ClampPosition(pos Point, object, bounds Size) Point {
	clamp := func(v, limit float64) float64 {
		return math.Max(math.Min(v, limit), 0)
	}
	return Point{
		X: clamp(pos.X, bounds.Width-object.Width),
		Y: clamp(pos.Y, bounds.Height-object.Height),
	}
}

// ClampScale limits a requested scale so the object's right and bottom edges
// stay inside bounds, then raises each axis to at least minSize units. Each
// axis is recomputed from target size over natural size. The minimum wins over
// the edge, so callers re-clamp the position against the resulting size.
func ClampScale(natural Size, pos Point, requested Scale, bounds Size, minSize float64) Scale {
	if natural.empty() {
		return requested
	}
	out := requested
	if natural.Width*out.X+pos.X > bounds.Width {
		out.X = (bounds.Width - pos.X) / natural.Width
	}
	if natural.Height*out.Y+pos.Y > bounds.Height {
		out.Y = (bounds.Height - pos.Y) / natural.Height
	}
	if natural.Width*out.X < minSize {
		out.X = minSize / natural.Width
	}
	if natural.Height*out.Y < minSize {
		out.Y = minSize / natural.Height
	}
	return out
}

// ContainFit scales src to fit entirely inside dst, centred with letterbox
// offsets.
func ContainFit(src, dst Size) Placement {
	if src.empty() || dst.empty() {
		return Placement{}
	}
	return centred(src, dst, math.Min(dst.Width/src.Width, dst.Height/src.Height))
}

// CoverFit scales src to cover dst completely, centred. Offsets are negative
// on the cropped axis.
func CoverFit(src, dst Size) Placement {
	if src.empty() || dst.empty() {
		return Placement{}
	}
	return centred(src, dst, math.Max(dst.Width/src.Width, dst.Height/src.Height))
}

// FitPreview scales src so its longest side equals box and centres it in the
// surface. On a surface smaller than box the longest side is capped at the
// surface's shorter side, so the preview always starts fully inside.
func FitPreview(src, surface Size, box float64) Placement {
	if src.empty() || box <= 0 {
		return Placement{}
	}
	if !surface.empty() {
		box = math.Min(box, math.Min(surface.Width, surface.Height))
	}
	p := centred(src, surface, math.Min(box/src.Width, box/src.Height))
	if !surface.empty() {
		pos := ClampPosition(Point{X: p.Left, Y: p.Top}, p.Size(src), surface)
		p.Left, p.Top = pos.X, pos.Y
	}
	return p
}

func centred(src, dst Size, scale float64) Placement {
	return Placement{
		Left:  (dst.Width - src.Width*scale) / 2,
		Top:   (dst.Height - src.Height*scale) / 2,
		Scale: scale,
	}
}
