// Package pdftest builds small PDFs for tests.
package pdftest

import (
	"bytes"
	"fmt"
)

// Page is a page's media box size and an optional uncompressed content
// stream. A page without content is blank.
type Page struct {
	Width   float64
	Height  float64
	Content string
}

// Build writes a minimal PDF with one page per entry.
func Build(pages []Page) []byte {
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)),
	}
	var streams []string
	for _, p := range pages {
		contents := ""
		if p.Content != "" {
			contents = fmt.Sprintf(" /Contents %d 0 R", 3+len(pages)+len(streams))
			streams = append(streams, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(p.Content), p.Content))
		}
		objects = append(objects, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] /Resources << >>%s >>", p.Width, p.Height, contents))
	}
	objects = append(objects, streams...)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
