package canvas

import (
	"image/color"
	"math"
	"testing"
)

func TestClampPosition(t *testing.T) {
	bounds := Size{Width: 800, Height: 600}
	object := Size{Width: 200, Height: 150}

	cases := []struct {
		name string
		in   Point
		want Point
	}{
		{"past bottom right", Point{X: 750, Y: 550}, Point{X: 600, Y: 450}},
		{"negative", Point{X: -20, Y: -5}, Point{X: 0, Y: 0}},
		{"inside", Point{X: 100, Y: 100}, Point{X: 100, Y: 100}},
		{"exact edge", Point{X: 600, Y: 450}, Point{X: 600, Y: 450}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClampPosition(tc.in, object, bounds); got != tc.want {
				t.Fatalf("ClampPosition(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestClampPositionPinsOversizedObjectToOrigin(t *testing.T) {
	got := ClampPosition(Point{X: 30, Y: 40}, Size{Width: 300, Height: 100}, Size{Width: 200, Height: 150})
	if got != (Point{X: 0, Y: 40}) {
		t.Fatalf("expected oversized axis pinned to 0, got %v", got)
	}
}

func TestClampScale(t *testing.T) {
	natural := Size{Width: 100, Height: 100}
	bounds := Size{Width: 800, Height: 600}

	got := ClampScale(natural, Point{X: 700, Y: 550}, Scale{X: 3, Y: 3}, bounds, 50)
	if got.X != 1 {
		t.Fatalf("expected x scale clamped to right edge (1), got %v", got.X)
	}
	if got.Y != 0.5 {
		t.Fatalf("expected y scale clamped to bottom edge (0.5), got %v", got.Y)
	}

	got = ClampScale(natural, Point{}, Scale{X: 0.1, Y: 0.2}, bounds, 50)
	if got != (Scale{X: 0.5, Y: 0.5}) {
		t.Fatalf("expected minimum size scale 0.5, got %v", got)
	}

	got = ClampScale(natural, Point{X: 10, Y: 10}, Scale{X: 2, Y: 1.5}, bounds, 50)
	if got != (Scale{X: 2, Y: 1.5}) {
		t.Fatalf("expected in-bounds scale unchanged, got %v", got)
	}
}

func TestFits(t *testing.T) {
	surface := Size{Width: 800, Height: 600}

	contain := ContainFit(Size{Width: 1920, Height: 1080}, surface)
	if math.Abs(contain.Scale-800.0/1920.0) > 1e-9 || contain.Left != 0 || math.Abs(contain.Top-75) > 1e-9 {
		t.Fatalf("unexpected contain fit %+v", contain)
	}

	cover := CoverFit(Size{Width: 400, Height: 400}, surface)
	if cover.Scale != 2 || cover.Left != 0 || cover.Top != -100 {
		t.Fatalf("unexpected cover fit %+v", cover)
	}

	preview := FitPreview(Size{Width: 500, Height: 250}, surface, 250)
	if preview.Scale != 0.5 || preview.Left != 275 || preview.Top != 237.5 {
		t.Fatalf("unexpected preview fit %+v", preview)
	}

	if (ContainFit(Size{}, surface) != Placement{}) {
		t.Fatal("expected zero placement for empty source")
	}
}

func approx(got, want Placement) bool {
	const eps = 1e-9
	return math.Abs(got.Left-want.Left) < eps && math.Abs(got.Top-want.Top) < eps && math.Abs(got.Scale-want.Scale) < eps
}

func TestFitPreviewStaysInsideSmallSurface(t *testing.T) {
	surface := Size{Width: 200, Height: 150}
	src := Size{Width: 500, Height: 500}

	p := FitPreview(src, surface, 250)
	size := p.Size(src)
	if p.Left < 0 || p.Top < 0 || p.Left+size.Width > surface.Width+1e-9 || p.Top+size.Height > surface.Height+1e-9 {
		t.Fatalf("preview %+v of size %v escapes %v surface", p, size, surface)
	}
	if !approx(p, Placement{Left: 25, Top: 0, Scale: 0.3}) {
		t.Fatalf("unexpected small-surface fit %+v", p)
	}

	wide := FitPreview(Size{Width: 1000, Height: 100}, surface, 250)
	if !approx(wide, Placement{Left: 25, Top: 67.5, Scale: 0.15}) {
		t.Fatalf("unexpected wide fit %+v", wide)
	}
}

func TestParseColor(t *testing.T) {
	cases := map[string]color.NRGBA{
		"#f9fafb":   {R: 0xf9, G: 0xfa, B: 0xfb, A: 0xff},
		"fff":       {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		"#00000080": {A: 0x80},
	}
	for in, want := range cases {
		got, err := ParseColor(in)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseColor(%q) = %v, want %v", in, got, want)
		}
	}
	for _, bad := range []string{"", "#12", "#gggggg", "red"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
	if FormatColor(color.NRGBA{R: 0xf9, G: 0xfa, B: 0xfb, A: 0xff}) != "#f9fafb" {
		t.Fatal("unexpected opaque colour format")
	}
}
