package canvas

import (
	"context"
	"image"

	"github.com/loomline/designvault/internal/assets"
	"github.com/loomline/designvault/pkg/pdfdoc"
)

// AssetResolver fetches design files by design number.
type AssetResolver interface {
	DesignImage(ctx context.Context, designNo string) (*assets.Asset, error)
	Worksheet(ctx context.Context, designNo string) (*assets.Asset, error)
}

// Constraints are the preferred capture resolution.
type Constraints struct {
	Width  int
	Height int
}

// Stream is a live video capture.
type Stream interface {
	// Frame returns the most recent frame, or nil before the first arrives.
	Frame() image.Image
	// Stop ends every track of the stream. It is idempotent.
	Stop() error
	// Live reports whether any track is still running.
	Live() bool
}

// MediaDevices grants capture streams.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// FrameScheduler runs fn once before the next frame. fn must not be called
// synchronously from RequestFrame. The returned func cancels the request.
type FrameScheduler interface {
	RequestFrame(fn func()) (cancel func())
}

// Document is an opened paginated document.
type Document interface {
	NumPages() int
	PageSize(n int) (Size, error)
	// RenderPage rasterizes page n stretched to width x height.
	RenderPage(n, width, height int) (image.Image, error)
	// PagePDF returns page n as a standalone document.
	PagePDF(n int) ([]byte, error)
	Close() error
}

// DocumentOpener decodes paginated documents.
type DocumentOpener interface {
	Open(data []byte) (Document, error)
}

// Notifier receives user-visible failures.
type Notifier interface {
	Error(ctx context.Context, err error)
}

// PDFOpener opens worksheets with pdfdoc.
type PDFOpener struct{}

func (PDFOpener) Open(data []byte) (Document, error) {
	doc, err := pdfdoc.Open(data)
	if err != nil {
		return nil, err
	}
	return pdfDocument{doc: doc}, nil
}

type pdfDocument struct {
	doc *pdfdoc.Document
}

func (p pdfDocument) NumPages() int { return p.doc.NumPages() }

func (p pdfDocument) PageSize(n int) (Size, error) {
	size, err := p.doc.PageSize(n)
	if err != nil {
		return Size{}, err
	}
	return Size{Width: size.Width, Height: size.Height}, nil
}

func (p pdfDocument) RenderPage(n, width, height int) (image.Image, error) {
	return p.doc.RenderPage(n, width, height)
}

func (p pdfDocument) PagePDF(n int) ([]byte, error) { return p.doc.PagePDF(n) }

func (p pdfDocument) Close() error { return p.doc.Close() }

type noopNotifier struct{}

func (noopNotifier) Error(context.Context, error) {}
