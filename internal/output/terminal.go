package output

import (
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/dshills/runpane/internal/integration/filter"
)

// Terminal is a Sink writing styled lines to a terminal or a plain
// stream.
type Terminal struct {
	w      io.Writer
	styles *Styles
	color  bool

	// showLocations appends the location of a line after its text.
	showLocations bool

	mu   sync.Mutex
	next filter.LineID
	open bool
	line strings.Builder
	id   filter.LineID
	loc  *filter.Location
	err  error
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithColor forces styled output on or off.
func WithColor(on bool) TerminalOption {
	return func(t *Terminal) {
		t.color = on
	}
}

// WithLocations appends " (file:line:col)" to lines that carry a location.
func WithLocations(on bool) TerminalOption {
	return func(t *Terminal) {
		t.showLocations = on
	}
}

// NewTerminal creates a terminal sink. Styling is enabled when w is a
// terminal.
func NewTerminal(w io.Writer, styles *Styles, opts ...TerminalOption) *Terminal {
	t := &Terminal{
		w:      w,
		styles: styles,
		color:  IsTerminal(w),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// StartLine implements filter.Sink.
func (t *Terminal) StartLine() filter.LineID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		t.flush()
	}
	t.id = t.next
	t.next++
	t.open = true
	return t.id
}

// Write implements filter.Sink.
func (t *Terminal) Write(text, style string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		t.id = t.next
		t.next++
		t.open = true
	}
	t.line.WriteString(t.render(style, text))
}

// EndLine implements filter.Sink.
func (t *Terminal) EndLine() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open {
		t.flush()
	}
}

// SetLocation implements filter.Sink. Locations of lines already written
// are dropped.
func (t *Terminal) SetLocation(id filter.LineID, loc filter.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.open && id == t.id {
		t.loc = &loc
	}
}

// Err returns the first write error.
func (t *Terminal) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Terminal) render(style, text string) string {
	if !t.color || t.styles == nil {
		return text
	}
	return t.styles.Render(style, text)
}

func (t *Terminal) flush() {
	if t.showLocations && t.loc != nil && t.loc.File != "" {
		t.line.WriteString(t.render("output-location", " ("+t.loc.String()+")"))
	}
	t.line.WriteByte('\n')

	if t.err == nil {
		_, t.err = io.WriteString(t.w, t.line.String())
	}
	t.line.Reset()
	t.loc = nil
	t.open = false
}
