package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrClosed is returned by accessors after Close.
var ErrClosed = errors.New("pdfdoc: document closed")

var disableConfigDir sync.Once

// Size is a page size in PDF user space units.
type Size struct {
	Width  float64
	Height float64
}

// page keeps the media box origin so content coordinates can be shifted to
// the page's lower-left corner.
type page struct {
	size    Size
	originX float64
	originY float64
	content []byte
}

// Document is an opened, validated PDF held in memory.
type Document struct {
	mu     sync.Mutex
	data   []byte
	pages  []page
	closed bool
}

func configuration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open validates data as a PDF and reads each page's geometry and content
// stream. A page whose content cannot be decoded opens as blank.
func Open(data []byte) (*Document, error) {
	if len(data) == 0 {
		return nil, errors.New("pdfdoc: empty document")
	}
	ctx, err := api.ReadAndValidate(bytes.NewReader(data), configuration())
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: read document: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("pdfdoc: read page dimensions: %w", err)
	}
	if len(dims) == 0 || len(dims) != ctx.PageCount {
		return nil, errors.New("pdfdoc: document has no readable pages")
	}

	pages := make([]page, len(dims))
	for i, d := range dims {
		pages[i].size = Size{Width: d.Width, Height: d.Height}
		dict, _, inherited, err := ctx.PageDict(i+1, false)
		if err != nil {
			return nil, fmt.Errorf("pdfdoc: page %d: %w", i+1, err)
		}
		if inherited != nil && inherited.MediaBox != nil {
			pages[i].originX = inherited.MediaBox.LL.X
			pages[i].originY = inherited.MediaBox.LL.Y
		}
		if content, err := ctx.PageContent(dict, i+1); err == nil {
			pages[i].content = content
		}
	}
	return &Document{data: data, pages: pages}, nil
}

// NumPages returns the page count, or 0 once closed.
func (d *Document) NumPages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}
	return len(d.pages)
}

func (d *Document) pageLocked(n int) (page, error) {
	if d.closed {
		return page{}, ErrClosed
	}
	if n < 1 || n > len(d.pages) {
		return page{}, fmt.Errorf("pdfdoc: page %d out of range [1,%d]", n, len(d.pages))
	}
	return d.pages[n-1], nil
}

// PageSize returns the size of the 1-based page n.
func (d *Document) PageSize(n int) (Size, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, err := d.pageLocked(n)
	return p.size, err
}

// PagePDF returns page n as a standalone single-page PDF.
func (d *Document) PagePDF(n int) ([]byte, error) {
	d.mu.Lock()
	if _, err := d.pageLocked(n); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	data := d.data
	d.mu.Unlock()

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &out, []string{strconv.Itoa(n)}, configuration()); err != nil {
		return nil, fmt.Errorf("pdfdoc: extract page %d: %w", n, err)
	}
	return out.Bytes(), nil
}

// Bytes returns the raw document.
func (d *Document) Bytes() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}
	return d.data, nil
}

// Close drops the document. It is safe to call more than once.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.data = nil
	d.pages = nil
	return nil
}
