package receipt

import (
	"bytes"
	"strings"
)

// ESC/POS control bytes.
const (
	ESC = 0x1B
	GS  = 0x1D
	LF  = 0x0A
)

const (
	AlignLeft   = 0
	AlignCenter = 1
)

const (
	Width58mm = 32
	Width80mm = 48
)

// Document accumulates an ESC/POS byte stream together with a plain-text
// preview of the printed lines.
type Document struct {
	buf     bytes.Buffer
	preview []string
	width   int
}

// NewDocument starts a document for a printer with the given character
// width. Non-positive widths fall back to 58mm paper.
func NewDocument(width int) *Document {
	if width <= 0 {
		width = Width58mm
	}
	d := &Document{width: width}
	d.buf.Write([]byte{ESC, '@'})
	return d
}

func (d *Document) Align(align int) *Document {
	d.buf.Write([]byte{ESC, 'a', byte(align)})
	return d
}

func (d *Document) Bold(on bool) *Document {
	b := byte(0)
	if on {
		b = 1
	}
	d.buf.Write([]byte{ESC, 'E', b})
	return d
}

// Text writes one line, truncated to the paper width.
func (d *Document) Text(s string) *Document {
	s = clip(s, d.width)
	d.buf.WriteString(s)
	d.buf.WriteByte(LF)
	d.preview = append(d.preview, s)
	return d
}

func (d *Document) Separator(char byte) *Document {
	return d.Text(strings.Repeat(string(char), d.width))
}

// KeyValue prints key flush left and value flush right.
func (d *Document) KeyValue(key, value string) *Document {
	return d.Text(padBetween(key, value, d.width))
}

// Columns lays out an item row: name flush left, then qty and amount in
// fixed right-aligned columns.
func (d *Document) Columns(name, qty, amount string) *Document {
	amountWidth := 10
	qtyWidth := 8
	nameWidth := d.width - amountWidth - qtyWidth
	if nameWidth < 4 {
		nameWidth = 4
	}
	row := padRight(clip(name, nameWidth), nameWidth) +
		padLeft(clip(qty, qtyWidth), qtyWidth) +
		padLeft(clip(amount, amountWidth), amountWidth)
	return d.Text(row)
}

func (d *Document) Feed(n int) *Document {
	for range n {
		d.buf.WriteByte(LF)
	}
	return d
}

// Cut feeds and performs a partial cut.
func (d *Document) Cut() *Document {
	d.buf.Write([]byte{GS, 'V', 'A', 0x10})
	return d
}

func (d *Document) Bytes() []byte {
	return bytes.Clone(d.buf.Bytes())
}

func (d *Document) Preview() string {
	return strings.Join(d.preview, "\n")
}

func clip(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width])
}

func padRight(s string, width int) string {
	n := width - len([]rune(s))
	if n <= 0 {
		return s
	}
	return s + strings.Repeat(" ", n)
}

func padLeft(s string, width int) string {
	n := width - len([]rune(s))
	if n <= 0 {
		return s
	}
	return strings.Repeat(" ", n) + s
}

func padBetween(left, right string, width int) string {
	spaces := width - len([]rune(left)) - len([]rune(right))
	if spaces < 1 {
		spaces = 1
	}
	return left + strings.Repeat(" ", spaces) + right
}
