package canvas

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/loomline/designvault/internal/assets"
	"github.com/loomline/designvault/pkg/pdfdoc/pdftest"
)

type fakeScheduler struct {
	mu      sync.Mutex
	next    int
	pending map[int]func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: map[int]func(){}}
}

func (f *fakeScheduler) RequestFrame(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.pending[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.pending, id)
		f.mu.Unlock()
	}
}

func (f *fakeScheduler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// fire runs every pending callback once.
func (f *fakeScheduler) fire() {
	f.mu.Lock()
	callbacks := make([]func(), 0, len(f.pending))
	for id, fn := range f.pending {
		callbacks = append(callbacks, fn)
		delete(f.pending, id)
	}
	f.mu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

type fakeStream struct {
	mu      sync.Mutex
	frame   image.Image
	stopped bool
}

func (s *fakeStream) Frame() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeStream) Live() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

type fakeMedia struct {
	mu      sync.Mutex
	err     error
	streams []*fakeStream
	asked   []Constraints
}

func (m *fakeMedia) GetUserMedia(_ context.Context, c Constraints) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asked = append(m.asked, c)
	if m.err != nil {
		return nil, m.err
	}
	stream := &fakeStream{frame: solidImage(160, 90, color.NRGBA{R: 0xff, A: 0xff})}
	m.streams = append(m.streams, stream)
	return stream, nil
}

func (m *fakeMedia) live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.streams {
		if s.Live() {
			n++
		}
	}
	return n
}

type fakeAssets struct {
	images     map[string][]byte
	worksheets map[string][]byte
}

func (f *fakeAssets) DesignImage(_ context.Context, designNo string) (*assets.Asset, error) {
	data, ok := f.images[designNo]
	if !ok {
		return nil, errors.New("design image not found")
	}
	return &assets.Asset{Key: designNo + ".PNG", ContentType: "image/png", Data: data}, nil
}

func (f *fakeAssets) Worksheet(_ context.Context, designNo string) (*assets.Asset, error) {
	data, ok := f.worksheets[designNo]
	if !ok {
		return nil, errors.New("worksheet not found")
	}
	return &assets.Asset{Key: designNo + ".pdf", ContentType: "application/pdf", Data: data}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	errs []error
}

func (n *recordingNotifier) Error(_ context.Context, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errs = append(n.errs, err)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errs)
}

type closeTrackingOpener struct {
	docs []*trackedDocument
}

type trackedDocument struct {
	Document
	closed bool
}

func (d *trackedDocument) Close() error {
	d.closed = true
	return d.Document.Close()
}

func (o *closeTrackingOpener) Open(data []byte) (Document, error) {
	doc, err := PDFOpener{}.Open(data)
	if err != nil {
		return nil, err
	}
	tracked := &trackedDocument{Document: doc}
	o.docs = append(o.docs, tracked)
	return tracked, nil
}

type harness struct {
	surface   *Surface
	scheduler *fakeScheduler
	media     *fakeMedia
	assets    *fakeAssets
	notifier  *recordingNotifier
	opener    *closeTrackingOpener
}

func mountHarness(t *testing.T, width, height int) *harness {
	t.Helper()
	h := &harness{
		scheduler: newFakeScheduler(),
		media:     &fakeMedia{},
		assets: &fakeAssets{
			images: map[string][]byte{
				"AB001": encodePNG(t, solidImage(500, 250, color.NRGBA{B: 0xff, A: 0xff})),
				"AB002": encodePNG(t, solidImage(100, 400, color.NRGBA{G: 0xff, A: 0xff})),
				"BAD":   []byte("not an image"),
			},
			worksheets: map[string][]byte{
				"AB001": pdftest.Build([]pdftest.Page{{Width: 612, Height: 792}, {Width: 612, Height: 792}, {Width: 842, Height: 595}}),
				"INK": pdftest.Build([]pdftest.Page{
					{Width: 400, Height: 300},
					{Width: 400, Height: 300, Content: "0 0 0 rg 0 0 400 300 re f"},
				}),
				"BAD": []byte("%PDF-broken"),
			},
		},
		notifier: &recordingNotifier{},
		opener:   &closeTrackingOpener{},
	}
	surface, err := Mount(Options{
		Width:     width,
		Height:    height,
		Color:     "#f9fafb",
		Assets:    h.assets,
		Media:     h.media,
		Frames:    h.scheduler,
		Documents: h.opener,
		Notifier:  h.notifier,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	h.surface = surface
	return h
}

func solidImage(w, h int, c color.NRGBA) image.Image {
	return imaging.New(w, h, c)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
