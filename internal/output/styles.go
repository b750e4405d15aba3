// Package output provides the sinks annotated command output is written to.
package output

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gdamore/tcell/v2"
)

// DefaultStyleSpecs maps the builtin style names to their specs.
func DefaultStyleSpecs() map[string]string {
	return map[string]string{
		"output-stdout":   "",
		"output-stderr":   "",
		"output-message":  "blue bold",
		"output-error":    "red bold",
		"output-warning":  "yellow",
		"output-location": "teal underline",
	}
}

// Styles maps style names to terminal styles. Unknown names render plain.
type Styles struct {
	specs  map[string]string
	styles map[string]lipgloss.Style
	plain  lipgloss.Style
}

// NewStyles builds the default styles overridden by specs. r may be nil
// for the default renderer.
func NewStyles(r *lipgloss.Renderer, specs map[string]string) (*Styles, error) {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}

	merged := DefaultStyleSpecs()
	for name, spec := range specs {
		merged[name] = spec
	}

	s := &Styles{
		specs:  merged,
		styles: make(map[string]lipgloss.Style, len(merged)),
		plain:  r.NewStyle(),
	}
	for name, spec := range merged {
		st, err := ParseStyle(r, spec)
		if err != nil {
			return nil, fmt.Errorf("style %s: %w", name, err)
		}
		s.styles[name] = st
	}
	return s, nil
}

// Get returns the style registered for name.
func (s *Styles) Get(name string) lipgloss.Style {
	if st, ok := s.styles[name]; ok {
		return st
	}
	return s.plain
}

// Render renders text in the named style.
func (s *Styles) Render(name, text string) string {
	if text == "" {
		return ""
	}
	return s.Get(name).Render(text)
}

// Names returns the known style names, sorted.
func (s *Styles) Names() []string {
	names := make([]string, 0, len(s.specs))
	for n := range s.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Spec returns the spec a style was built from.
func (s *Styles) Spec(name string) string {
	return s.specs[name]
}

// ParseStyle parses a style spec: whitespace separated words, each a color
// or one of bold, italic, underline, faint, reverse. The first color is the
// foreground; a color after "on" is the background. Colors are tcell
// color names, #rrggbb or palette:N.
func ParseStyle(r *lipgloss.Renderer, spec string) (lipgloss.Style, error) {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	st := r.NewStyle()

	background := false
	haveFg := false
	for _, word := range strings.Fields(strings.ToLower(spec)) {
		switch word {
		case "bold":
			st = st.Bold(true)
		case "italic":
			st = st.Italic(true)
		case "underline":
			st = st.Underline(true)
		case "faint":
			st = st.Faint(true)
		case "reverse":
			st = st.Reverse(true)
		case "on":
			background = true
		default:
			c, err := parseColor(word)
			if err != nil {
				return st, err
			}
			switch {
			case background:
				st = st.Background(c)
				background = false
			case !haveFg:
				st = st.Foreground(c)
				haveFg = true
			default:
				return st, fmt.Errorf("unexpected color %q", word)
			}
		}
	}
	if background {
		return st, fmt.Errorf("missing background color in %q", spec)
	}
	return st, nil
}

// parseColor converts a tcell color name to a lipgloss color. Palette
// colors stay ANSI indexes so the terminal theme applies.
func parseColor(s string) (lipgloss.Color, error) {
	if n, ok := strings.CutPrefix(s, "palette:"); ok {
		i, err := strconv.Atoi(n)
		if err != nil || i < 0 || i > 255 {
			return "", fmt.Errorf("invalid palette color %q", s)
		}
		return lipgloss.Color(strconv.Itoa(i)), nil
	}

	c := tcell.GetColor(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown color %q", s)
	}
	if c&tcell.ColorIsRGB == 0 {
		return lipgloss.Color(strconv.Itoa(int(c - tcell.ColorValid))), nil
	}
	return lipgloss.Color(fmt.Sprintf("#%06x", c.Hex())), nil
}
