package canvas

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/multierr"

	"github.com/loomline/designvault/pkg/enums"
	pkgerrors "github.com/loomline/designvault/pkg/errors"
	"github.com/loomline/designvault/pkg/metrics"
)

const (
	DefaultColor         = "#f9fafb"
	DefaultPreviewBox    = 250
	DefaultMinObjectSize = 50
	DefaultMaxBackground = 5 << 20
	DefaultWebcamWidth   = 1920
	DefaultWebcamHeight  = 1080
)

const (
	resourceFrame      = "frame"
	resourceStream     = "stream"
	resourceObjectURLs = "object-urls"
	resourceDocument   = "document"
)

// Options configure a surface at mount time.
type Options struct {
	Width              int
	Height             int
	Color              string
	ViewMode           enums.ViewMode
	PreviewBox         float64
	MinObjectSize      float64
	MaxBackgroundBytes int64
	Webcam             Constraints

	Assets    AssetResolver
	Media     MediaDevices
	Frames    FrameScheduler
	Documents DocumentOpener
	Notifier  Notifier
	Metrics   *metrics.PreviewMetrics
}

// Object is the interactive design image on the surface.
type Object struct {
	DesignNo string
	Image    image.Image
	Natural  Size
	Position Point
	Scale    Scale
}

// ScaledSize is the object's rendered size.
func (o *Object) ScaledSize() Size {
	return Size{Width: o.Natural.Width * o.Scale.X, Height: o.Natural.Height * o.Scale.Y}
}

// Surface is one mounted drawing surface. A surface holds one background and
// at most one foreground: a design image or a worksheet document.
type Surface struct {
	mu   sync.Mutex
	opts Options
	size Size

	color      color.NRGBA
	background Background
	object     *Object
	doc        Document
	docDesign  string
	page       int

	cancelFrame func()
	frameSeq    uint64
	frames      uint64
	loadSeq     uint64
	webcamSeq   uint64

	urls      *ObjectURLs
	res       resources
	raster    *image.NRGBA
	err       error
	unmounted bool
}

// Mount creates a surface sized to its container with the given colour as
// background.
func Mount(opts Options) (*Surface, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "surface width and height must be positive")
	}
	if opts.Frames == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "frame scheduler required")
	}
	if strings.TrimSpace(opts.Color) == "" {
		opts.Color = DefaultColor
	}
	initial, err := ParseColor(opts.Color)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid background colour")
	}
	if !opts.ViewMode.IsValid() {
		opts.ViewMode = enums.ViewModeDesign
	}
	if opts.PreviewBox <= 0 {
		opts.PreviewBox = DefaultPreviewBox
	}
	if opts.MinObjectSize <= 0 {
		opts.MinObjectSize = DefaultMinObjectSize
	}
	if opts.MaxBackgroundBytes <= 0 {
		opts.MaxBackgroundBytes = DefaultMaxBackground
	}
	if opts.Webcam.Width <= 0 || opts.Webcam.Height <= 0 {
		opts.Webcam = Constraints{Width: DefaultWebcamWidth, Height: DefaultWebcamHeight}
	}
	if opts.Documents == nil {
		opts.Documents = PDFOpener{}
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}

	s := &Surface{
		opts:       opts,
		size:       Size{Width: float64(opts.Width), Height: float64(opts.Height)},
		color:      initial,
		background: ColorBackground{Color: initial},
		urls:       NewObjectURLs(),
	}
	s.res.add(resourceFrame, func() error {
		s.cancelFrameLocked()
		return nil
	})
	s.res.add(resourceStream, s.stopStreamLocked)
	s.res.add(resourceObjectURLs, func() error {
		s.urls.RevokeAll()
		return nil
	})
	s.res.add(resourceDocument, s.closeDocumentLocked)
	s.paintLocked()
	return s, nil
}

// SetColor switches to a solid colour background. The colour also becomes
// the fallback painted behind webcam frames.
func (s *Surface) SetColor(value string) error {
	c, err := ParseColor(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid background colour")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mountedLocked(); err != nil {
		return err
	}
	s.webcamSeq++
	s.color = c
	return s.transitionLocked(ColorBackground{Color: c})
}

// SetImage installs a static image background cover-fitted to the surface.
// The type and size are checked before any decode is attempted.
func (s *Surface) SetImage(ctx context.Context, contentType string, size int64, r io.Reader) error {
	limit := s.opts.MaxBackgroundBytes
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/") {
		return s.reject(ctx, pkgerrors.New(pkgerrors.CodeUnsupported, "please upload an image file"))
	}
	if size > limit {
		return s.reject(ctx, pkgerrors.Newf(pkgerrors.CodeTooLarge, "image must be at most %d MB", limit>>20))
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return s.reject(ctx, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not read image"))
	}
	if int64(len(data)) > limit {
		return s.reject(ctx, pkgerrors.Newf(pkgerrors.CodeTooLarge, "image must be at most %d MB", limit>>20))
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return s.reject(ctx, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "could not decode image"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mountedLocked(); err != nil {
		return err
	}
	s.webcamSeq++
	return s.transitionLocked(ImageBackground{
		Image:     img,
		Placement: CoverFit(boundsSize(img), s.size),
	})
}

// LoadDesign replaces the foreground with the design's image, scaled to the
// preview box and centred.
func (s *Surface) LoadDesign(ctx context.Context, designNo string) error {
	seq, err := s.beginLoad()
	if err != nil {
		return err
	}

	asset, err := s.opts.Assets.DesignImage(ctx, designNo)
	if err != nil {
		return s.loadFailed(ctx, seq, err)
	}
	url := s.urls.Create(asset.Data, asset.ContentType)
	data, _, ok := s.urls.Open(url)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "design load superseded")
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	s.urls.Revoke(url)
	if err != nil {
		return s.loadFailed(ctx, seq, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to decode design image"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted || seq != s.loadSeq {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "design load superseded")
	}
	natural := boundsSize(img)
	fit := FitPreview(natural, s.size, s.opts.PreviewBox)
	s.object = &Object{
		DesignNo: strings.TrimSpace(designNo),
		Image:    img,
		Natural:  natural,
		Position: Point{X: fit.Left, Y: fit.Top},
		Scale:    Scale{X: fit.Scale, Y: fit.Scale},
	}
	s.paintLocked()
	return nil
}

// LoadWorksheet replaces the foreground with the design's worksheet and shows
// its first page.
func (s *Surface) LoadWorksheet(ctx context.Context, designNo string) error {
	seq, err := s.beginLoad()
	if err != nil {
		return err
	}

	asset, err := s.opts.Assets.Worksheet(ctx, designNo)
	if err != nil {
		return s.loadFailed(ctx, seq, err)
	}
	url := s.urls.Create(asset.Data, asset.ContentType)
	data, _, ok := s.urls.Open(url)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "worksheet load superseded")
	}
	doc, err := s.opts.Documents.Open(data)
	s.urls.Revoke(url)
	if err != nil {
		return s.loadFailed(ctx, seq, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to open worksheet"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted || seq != s.loadSeq {
		_ = doc.Close()
		return pkgerrors.New(pkgerrors.CodeStateConflict, "worksheet load superseded")
	}
	s.doc = doc
	s.docDesign = strings.TrimSpace(designNo)
	s.page = 1
	s.paintLocked()
	return nil
}

// NextPage advances the worksheet page. It is a no-op on the last page or
// without a worksheet.
func (s *Surface) NextPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil && s.page < s.doc.NumPages() {
		s.page++
		s.paintLocked()
	}
	return s.page
}

// PreviousPage steps the worksheet back one page, stopping at page 1.
func (s *Surface) PreviousPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc != nil && s.page > 1 {
		s.page--
		s.paintLocked()
	}
	return s.page
}

// CurrentPage is the 1-based worksheet page, or 0 without a worksheet.
func (s *Surface) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// TotalPages is the worksheet page count, or 0 without a worksheet.
func (s *Surface) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return 0
	}
	return s.doc.NumPages()
}

// CurrentPagePDF returns the displayed worksheet page as a standalone PDF
// along with its page number.
func (s *Surface) CurrentPagePDF() ([]byte, int, error) {
	s.mu.Lock()
	doc, page := s.doc, s.page
	s.mu.Unlock()
	if doc == nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeNotFound, "no worksheet loaded")
	}
	data, err := doc.PagePDF(page)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extract worksheet page")
	}
	return data, page, nil
}

// Move drags the design object, keeping it inside the surface.
func (s *Surface) Move(x, y float64) (Point, error) {
	if !finite(x) || !finite(y) {
		return Point{}, pkgerrors.New(pkgerrors.CodeValidation, "position must be a finite number")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.objectLocked(); err != nil {
		return Point{}, err
	}
	s.object.Position = ClampPosition(Point{X: x, Y: y}, s.object.ScaledSize(), s.size)
	s.paintLocked()
	return s.object.Position, nil
}

// Scale resizes the design object. Edges past the surface and sizes under
// the minimum are corrected rather than rejected.
func (s *Surface) Scale(sx, sy float64) (Scale, error) {
	if !finite(sx) || !finite(sy) || sx <= 0 || sy <= 0 {
		return Scale{}, pkgerrors.New(pkgerrors.CodeValidation, "scale must be a positive number")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.objectLocked(); err != nil {
		return Scale{}, err
	}
	s.object.Scale = ClampScale(s.object.Natural, s.object.Position, Scale{X: sx, Y: sy}, s.size, s.opts.MinObjectSize)
	s.object.Position = ClampPosition(s.object.Position, s.object.ScaledSize(), s.size)
	s.paintLocked()
	return s.object.Scale, nil
}

// Mode is the active background mode.
func (s *Surface) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background.Mode()
}

// ViewMode is the foreground kind the surface was mounted for.
func (s *Surface) ViewMode() enums.ViewMode {
	return s.opts.ViewMode
}

// Err is the last load failure, cleared by the next load.
func (s *Surface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unmount releases the frame callback, camera stream, object URLs and
// worksheet. Every release runs even when an earlier one fails.
func (s *Surface) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted {
		return nil
	}
	s.unmounted = true
	s.webcamSeq++
	s.loadSeq++
	err := s.res.releaseAll()
	s.object = nil
	s.background = ColorBackground{Color: s.color}
	s.raster = nil
	return err
}

// transitionLocked tears down the current background before installing next.
func (s *Surface) transitionLocked(next Background) error {
	err := multierr.Combine(s.res.run(resourceFrame), s.res.run(resourceStream))
	s.background = next
	if next.Mode() == ModeWebcam {
		s.scheduleFrameLocked()
	}
	s.opts.Metrics.Transition(string(next.Mode()))
	s.paintLocked()
	return err
}

func (s *Surface) beginLoad() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mountedLocked(); err != nil {
		return 0, err
	}
	if s.opts.Assets == nil {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, "asset resolver required")
	}
	s.object = nil
	_ = s.res.run(resourceDocument)
	s.urls.RevokeAll()
	s.err = nil
	s.loadSeq++
	s.paintLocked()
	return s.loadSeq, nil
}

func (s *Surface) loadFailed(ctx context.Context, seq uint64, err error) error {
	s.mu.Lock()
	if !s.unmounted && seq == s.loadSeq {
		s.object = nil
		_ = s.res.run(resourceDocument)
		s.err = err
		s.paintLocked()
	}
	s.mu.Unlock()
	s.opts.Notifier.Error(ctx, err)
	return err
}

func (s *Surface) reject(ctx context.Context, err error) error {
	s.opts.Notifier.Error(ctx, err)
	return err
}

func (s *Surface) mountedLocked() error {
	if s.unmounted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "surface is unmounted")
	}
	return nil
}

func (s *Surface) objectLocked() error {
	if err := s.mountedLocked(); err != nil {
		return err
	}
	if s.object == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no design object on the surface")
	}
	return nil
}

func (s *Surface) stopStreamLocked() error {
	wb, ok := s.background.(WebcamBackground)
	if !ok {
		return nil
	}
	s.background = ColorBackground{Color: s.color}
	if wb.Stream == nil {
		return nil
	}
	return wb.Stream.Stop()
}

func (s *Surface) closeDocumentLocked() error {
	doc := s.doc
	s.doc = nil
	s.docDesign = ""
	s.page = 0
	if doc == nil {
		return nil
	}
	return doc.Close()
}

func boundsSize(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: float64(b.Dx()), Height: float64(b.Dy())}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
