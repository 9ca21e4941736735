package pdfdoc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"golang.org/x/image/vector"
)

var paper = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// RenderPage rasterizes page n onto a white width x height image, stretching
// the page to fill it. Filled vector paths are painted in their fill colour.
// Text, strokes and embedded images are not rasterized; PagePDF carries the
// complete page for viewers that need them.
func (d *Document) RenderPage(n, width, height int) (*image.NRGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.New("pdfdoc: render size must be positive")
	}
	d.mu.Lock()
	p, err := d.pageLocked(n)
	d.mu.Unlock()
	if err != nil {
		return nil, err
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(paper), image.Point{}, draw.Src)
	if len(p.content) == 0 || p.size.Width <= 0 || p.size.Height <= 0 {
		return dst, nil
	}

	sx := float64(width) / p.size.Width
	sy := float64(height) / p.size.Height
	pt := &painter{
		dst:    dst,
		raster: vector.NewRasterizer(width, height),
		state: graphicsState{
			// user space (origin bottom-left) to pixels (origin top-left)
			ctm:  matrix{sx, 0, 0, -sy, -p.originX * sx, (p.originY + p.size.Height) * sy},
			fill: color.NRGBA{A: 0xff},
		},
	}
	pt.run(p.content)
	return dst, nil
}

// matrix is a PDF transformation [a b c d e f].
type matrix [6]float64

// then returns m followed by n.
func (m matrix) then(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float32, float32) {
	return float32(m[0]*x + m[2]*y + m[4]), float32(m[1]*x + m[3]*y + m[5])
}

type graphicsState struct {
	ctm  matrix
	fill color.NRGBA
}

type segment struct {
	op  byte // 'm', 'l', 'c' or 'h'
	pts [6]float32
}

type painter struct {
	dst    *image.NRGBA
	raster *vector.Rasterizer
	state  graphicsState
	saved  []graphicsState
	path   []segment

	// current point in user space, for the v curve shorthand
	curX, curY float64
}

func (p *painter) run(content []byte) {
	lex := lexer{src: content}
	var operands []float64
	for {
		tok, ok := lex.next()
		if !ok {
			return
		}
		switch tok.kind {
		case tokenNumber:
			operands = append(operands, tok.num)
			continue
		case tokenOther:
			// names, strings, arrays and dicts only matter to operators
			// that are not rasterized
			continue
		}
		if tok.word == "BI" {
			lex.skipInlineImage()
		} else {
			p.exec(tok.word, operands)
		}
		operands = operands[:0]
	}
}

func (p *painter) exec(op string, args []float64) {
	switch op {
	case "q":
		p.saved = append(p.saved, p.state)
	case "Q":
		if n := len(p.saved); n > 0 {
			p.state = p.saved[n-1]
			p.saved = p.saved[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			p.state.ctm = matrix{args[0], args[1], args[2], args[3], args[4], args[5]}.then(p.state.ctm)
		}
	case "g", "rg", "k", "sc", "scn":
		if c, ok := deviceColor(args); ok {
			p.state.fill = c
		}
	case "cs":
		p.state.fill = color.NRGBA{A: 0xff}
	case "m":
		if len(args) == 2 {
			p.add('m', args[0], args[1])
		}
	case "l":
		if len(args) == 2 {
			p.add('l', args[0], args[1])
		}
	case "c":
		if len(args) == 6 {
			p.add('c', args...)
		}
	case "v":
		if len(args) == 4 {
			p.add('c', p.curX, p.curY, args[0], args[1], args[2], args[3])
		}
	case "y":
		if len(args) == 4 {
			p.add('c', args[0], args[1], args[2], args[3], args[2], args[3])
		}
	case "h":
		p.path = append(p.path, segment{op: 'h'})
	case "re":
		if len(args) == 4 {
			x, y, w, h := args[0], args[1], args[2], args[3]
			p.add('m', x, y)
			p.add('l', x+w, y)
			p.add('l', x+w, y+h)
			p.add('l', x, y+h)
			p.path = append(p.path, segment{op: 'h'})
		}
	case "f", "F", "f*", "B", "B*", "b", "b*":
		p.fillPath()
	case "S", "s", "n":
		p.path = p.path[:0]
	}
}

// add records a path segment with its points mapped through the current
// transformation.
func (p *painter) add(op byte, coords ...float64) {
	seg := segment{op: op}
	for i := 0; i+1 < len(coords); i += 2 {
		seg.pts[i], seg.pts[i+1] = p.state.ctm.apply(coords[i], coords[i+1])
	}
	p.curX, p.curY = coords[len(coords)-2], coords[len(coords)-1]
	p.path = append(p.path, seg)
}

func (p *painter) fillPath() {
	defer func() { p.path = p.path[:0] }()
	if len(p.path) == 0 {
		return
	}
	b := p.dst.Bounds()
	p.raster.Reset(b.Dx(), b.Dy())
	open := false
	for _, seg := range p.path {
		switch seg.op {
		case 'm':
			if open {
				p.raster.ClosePath()
			}
			p.raster.MoveTo(seg.pts[0], seg.pts[1])
			open = true
		case 'l':
			p.raster.LineTo(seg.pts[0], seg.pts[1])
		case 'c':
			p.raster.CubeTo(seg.pts[0], seg.pts[1], seg.pts[2], seg.pts[3], seg.pts[4], seg.pts[5])
		case 'h':
			if open {
				p.raster.ClosePath()
				open = false
			}
		}
	}
	if open {
		p.raster.ClosePath()
	}
	p.raster.DrawOp = draw.Over
	p.raster.Draw(p.dst, b, image.NewUniform(p.state.fill), image.Point{})
}

// deviceColor reads a gray, RGB or CMYK colour from its component count.
func deviceColor(args []float64) (color.NRGBA, bool) {
	c := func(v float64) uint8 { return uint8(math.Round(255 * math.Max(0, math.Min(1, v)))) }
	switch len(args) {
	case 1:
		return color.NRGBA{R: c(args[0]), G: c(args[0]), B: c(args[0]), A: 0xff}, true
	case 3:
		return color.NRGBA{R: c(args[0]), G: c(args[1]), B: c(args[2]), A: 0xff}, true
	case 4:
		k := 1 - args[3]
		return color.NRGBA{R: c((1 - args[0]) * k), G: c((1 - args[1]) * k), B: c((1 - args[2]) * k), A: 0xff}, true
	}
	return color.NRGBA{}, false
}

type tokenKind int

const (
	tokenNumber tokenKind = iota
	tokenOperator
	tokenOther
)

type token struct {
	kind tokenKind
	num  float64
	word string
}

// lexer splits a content stream into numbers, operators and everything else.
type lexer struct {
	src []byte
	pos int
}

func isSpace(b byte) bool {
	switch b {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(b byte) bool {
	return bytes.IndexByte([]byte("()<>[]{}/%"), b) >= 0
}

func (l *lexer) next() (token, bool) {
	for l.pos < len(l.src) {
		b := l.src[l.pos]
		switch {
		case isSpace(b):
			l.pos++
		case b == '%':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
				l.pos++
			}
		case b == '(':
			l.skipString()
			return token{kind: tokenOther}, true
		case b == '<':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '<' {
				l.pos += 2
			} else if end := bytes.IndexByte(l.src[l.pos:], '>'); end >= 0 {
				l.pos += end + 1
			} else {
				l.pos = len(l.src)
			}
			return token{kind: tokenOther}, true
		case b == '/':
			l.pos++
			l.word()
			return token{kind: tokenOther}, true
		case isDelimiter(b):
			l.pos++
			return token{kind: tokenOther}, true
		default:
			w := l.word()
			if n, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokenNumber, num: n}, true
			}
			return token{kind: tokenOperator, word: w}, true
		}
	}
	return token{}, false
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.src) && !isSpace(l.src[l.pos]) && !isDelimiter(l.src[l.pos]) {
		l.pos++
	}
	return string(l.src[start:l.pos])
}

// skipString moves past a literal string, honouring nested parentheses and
// backslash escapes.
func (l *lexer) skipString() {
	depth := 0
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				return
			}
		}
		l.pos++
	}
}

// skipInlineImage moves past the ID ... EI data of an inline image.
func (l *lexer) skipInlineImage() {
	for {
		tok, ok := l.next()
		if !ok {
			return
		}
		if tok.kind == tokenOperator && tok.word == "ID" {
			break
		}
	}
	for i := l.pos; i+1 < len(l.src); i++ {
		if l.src[i] != 'E' || l.src[i+1] != 'I' || (i > 0 && !isSpace(l.src[i-1])) {
			continue
		}
		if i+2 == len(l.src) || isSpace(l.src[i+2]) {
			l.pos = i + 2
			return
		}
	}
	l.pos = len(l.src)
}
