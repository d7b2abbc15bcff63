package main

import (
	"fmt"
	"html"
	"strings"

	"github.com/hinshun/vt10x"
)

// Attribute mode bits used by vt10x glyphs (the engine keeps them
// unexported; the order is reverse, underline, bold, gfx, italic, blink).
const (
	attrReverse   = 1 << 0
	attrUnderline = 1 << 1
	attrBold      = 1 << 2
	attrItalic    = 1 << 4
	attrBlink     = 1 << 5
)

// Screen wraps a virtual terminal emulator to interpret ANSI escape
// sequences and expose the composed screen. TUI applications position the
// cursor freely; instead of stripping escape codes (which destroys the
// layout), we emulate a terminal and read what a human would see.
type Screen struct {
	term vt10x.Terminal
	cols int
	rows int
}

// NewScreen creates a virtual terminal with the given dimensions.
// Dimensions must match the PTY size for correct cursor positioning.
func NewScreen(cols, rows int) *Screen {
	return &Screen{
		term: vt10x.New(vt10x.WithSize(cols, rows)),
		cols: cols,
		rows: rows,
	}
}

// Feed advances the screen model with raw PTY output.
func (s *Screen) Feed(data []byte) {
	_, _ = s.term.Write(data)
}

// Size returns the current dimensions.
func (s *Screen) Size() (cols, rows int) {
	return s.cols, s.rows
}

// Resize reshapes the virtual terminal. Resizing to the current
// dimensions is a no-op.
func (s *Screen) Resize(cols, rows int) {
	if cols == s.cols && rows == s.rows {
		return
	}
	s.cols = cols
	s.rows = rows
	s.term.Resize(cols, rows)
}

// Cursor returns the cursor position and visibility.
func (s *Screen) Cursor() (col, row int, visible bool) {
	c := s.term.Cursor()
	return c.X, c.Y, s.term.CursorVisible()
}

// Text returns the visible screen as plain text: one line per row, every
// row padded with spaces to the full width, rows joined by newlines with
// no trailing newline.
func (s *Screen) Text() string {
	var b strings.Builder
	b.Grow(s.rows * (s.cols + 1))

	for row := 0; row < s.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		for col := 0; col < s.cols; col++ {
			ch := s.term.Cell(col, row).Char
			if ch == 0 {
				ch = ' '
			}
			b.WriteRune(ch)
		}
	}

	return b.String()
}

// HTML returns the visible screen rendered as HTML, one div per row with
// span runs carrying color and attribute classes. Indexed colors become
// fg-N/bg-N classes; RGB colors become inline styles.
func (s *Screen) HTML() string {
	var b strings.Builder

	for row := 0; row < s.rows; row++ {
		b.WriteString(`<div class="row">`)

		var run strings.Builder
		var runFG, runBG vt10x.Color
		var runMode int16
		open := false

		flush := func() {
			if !open {
				return
			}
			b.WriteString(spanOpen(runFG, runBG, runMode))
			b.WriteString(html.EscapeString(run.String()))
			b.WriteString("</span>")
			run.Reset()
			open = false
		}

		for col := 0; col < s.cols; col++ {
			cell := s.term.Cell(col, row)
			if !open || cell.FG != runFG || cell.BG != runBG || cell.Mode != runMode {
				flush()
				runFG, runBG, runMode = cell.FG, cell.BG, cell.Mode
				open = true
			}
			ch := cell.Char
			if ch == 0 {
				ch = ' '
			}
			run.WriteRune(ch)
		}
		flush()

		b.WriteString("</div>\n")
	}

	return b.String()
}

// spanOpen builds the opening span tag for a run of cells sharing the same
// foreground, background and attribute bits.
func spanOpen(fg, bg vt10x.Color, mode int16) string {
	var classes []string
	var styles []string

	if mode&attrBold != 0 {
		classes = append(classes, "bold")
	}
	if mode&attrItalic != 0 {
		classes = append(classes, "italic")
	}
	if mode&attrUnderline != 0 {
		classes = append(classes, "underline")
	}
	if mode&attrBlink != 0 {
		classes = append(classes, "blink")
	}
	if mode&attrReverse != 0 {
		classes = append(classes, "reverse")
	}

	if fg != vt10x.DefaultFG {
		if fg < 256 {
			classes = append(classes, fmt.Sprintf("fg-%d", fg))
		} else {
			styles = append(styles, fmt.Sprintf("color:rgb(%d,%d,%d)",
				(fg>>16)&0xff, (fg>>8)&0xff, fg&0xff))
		}
	}
	if bg != vt10x.DefaultBG {
		if bg < 256 {
			classes = append(classes, fmt.Sprintf("bg-%d", bg))
		} else {
			styles = append(styles, fmt.Sprintf("background-color:rgb(%d,%d,%d)",
				(bg>>16)&0xff, (bg>>8)&0xff, bg&0xff))
		}
	}

	var b strings.Builder
	b.WriteString("<span")
	if len(classes) > 0 {
		b.WriteString(` class="`)
		b.WriteString(strings.Join(classes, " "))
		b.WriteString(`"`)
	}
	if len(styles) > 0 {
		b.WriteString(` style="`)
		b.WriteString(strings.Join(styles, ";"))
		b.WriteString(`"`)
	}
	b.WriteString(">")
	return b.String()
}
