package filter

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/dshills/runpane/internal/integration/process"
	"github.com/dshills/runpane/internal/logging"
)

// FilterSet is the compiled, immutable form of a filter. One FilterSet may
// be shared by any number of engines.
type FilterSet struct {
	// ID identifies the filter in a Registry.
	ID string

	// Name is the display name.
	Name string

	patterns []*Pattern
	dropped  []*PatternError
	streams  [2]*streamMatcher
}

// CompileOptions configures Compile.
type CompileOptions struct {
	// MatchTimeout bounds a single regex evaluation. Zero means no limit.
	MatchTimeout time.Duration

	Logger *logging.Logger
}

// Compile builds a FilterSet from rules. Rules that fail to compile are
// dropped with a warning and reported by Dropped; the rest keep their
// declaration order.
func Compile(id, name string, rules []Rule, opts CompileOptions) *FilterSet {
	return compileSet(id, name, rules, nil, opts)
}

// compileSet compiles rules, dropping rule i up front when invalid[i] is
// non-nil.
func compileSet(id, name string, rules []Rule, invalid []error, opts CompileOptions) *FilterSet {
	log := logging.OrNull(opts.Logger).WithField("filter", id)

	set := &FilterSet{ID: id, Name: name}
	for i, rule := range rules {
		var p *Pattern
		var err error
		if i < len(invalid) && invalid[i] != nil {
			err = &PatternError{Index: i, Expr: rule.Expr, Err: invalid[i]}
		} else {
			p, err = compilePattern(i, rule, opts.MatchTimeout)
		}
		if err != nil {
			pe := err.(*PatternError)
			log.Warn("dropping %v", pe)
			set.dropped = append(set.dropped, pe)
			continue
		}
		set.patterns = append(set.patterns, p)
	}

	for _, stream := range []process.Stream{process.Stdout, process.Stderr} {
		set.streams[stream] = newStreamMatcher(set.patterns, stream, opts.MatchTimeout, log)
	}
	return set
}

// Patterns returns the compiled patterns in declaration order.
func (s *FilterSet) Patterns() []*Pattern {
	return s.patterns
}

// Dropped returns the rules that failed to compile.
func (s *FilterSet) Dropped() []*PatternError {
	return s.dropped
}

// Find returns the first match on stream at or after rune offset start.
func (s *FilterSet) Find(stream process.Stream, text []rune, start int) *Match {
	return s.streams[stream].find(text, start)
}

// Combined reports whether stream has a combined probe. It is false when
// the alternation failed to compile and patterns are searched one by one.
func (s *FilterSet) Combined(stream process.Stream) bool {
	return s.streams[stream].combined != nil
}

// Match is one pattern hit inside a line. Offsets are in runes.
type Match struct {
	Pattern *Pattern
	Start   int
	End     int

	m *regexp2.Match
}

// Text returns the matched text.
func (m *Match) Text() string {
	return m.m.String()
}

// Group returns the text of the named group, or "" when the group does not
// exist or did not participate.
func (m *Match) Group(name string) string {
	g := m.m.GroupByName(name)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

// streamMatcher holds the patterns that apply to one stream.
type streamMatcher struct {
	patterns []*Pattern

	// combined is the alternation of all pattern sources. It only locates
	// the earliest position at which some pattern may match.
	combined *regexp2.Regexp

	log *logging.Logger
}

func newStreamMatcher(all []*Pattern, stream process.Stream, timeout time.Duration, log *logging.Logger) *streamMatcher {
	sm := &streamMatcher{log: log}

	var parts []string
	numbered := false
	for _, p := range all {
		if p.Output.Applies(stream) {
			sm.patterns = append(sm.patterns, p)
			parts = append(parts, "(?:"+p.Expr+")")
			numbered = numbered || hasNumberedBackref(p.Expr)
		}
	}
	if len(parts) == 0 {
		return sm
	}
	if numbered && len(parts) > 1 {
		// Alternation renumbers groups, so \1 would point at another
		// pattern's group.
		log.Debug("%s patterns use numbered backreferences, matching patterns one by one", stream)
		return sm
	}

	combined, err := regexp2.Compile(strings.Join(parts, "|"), regexp2.None)
	if err != nil {
		log.Warn("combined %s pattern does not compile, matching patterns one by one: %v", stream, err)
		return sm
	}
	if timeout > 0 {
		combined.MatchTimeout = timeout
	}
	sm.combined = combined
	return sm
}

func (sm *streamMatcher) find(text []rune, start int) *Match {
	if len(sm.patterns) == 0 {
		return nil
	}

	for pos := start; pos < len(text); {
		at := sm.probe(text, pos)
		if at < 0 {
			return nil
		}
		if m := sm.matchAt(text, at); m != nil {
			return m
		}
		// Nothing non-empty matches exactly here; move on.
		pos = at + 1
	}
	return nil
}

// probe returns the earliest position at or after pos where some pattern
// matches, or -1.
func (sm *streamMatcher) probe(text []rune, pos int) int {
	if sm.combined != nil {
		m, err := sm.combined.FindRunesMatchStartingAt(text, pos)
		if err != nil {
			sm.log.Debug("combined match: %v", err)
			return -1
		}
		if m == nil {
			return -1
		}
		return m.Index
	}

	earliest := -1
	for _, p := range sm.patterns {
		m, err := p.re.FindRunesMatchStartingAt(text, pos)
		if err != nil {
			sm.log.Debug("pattern %d: %v", p.Index, err)
			continue
		}
		if m != nil && (earliest < 0 || m.Index < earliest) {
			earliest = m.Index
		}
	}
	return earliest
}

// matchAt runs each pattern anchored at pos and returns the first
// non-empty match in declaration order.
func (sm *streamMatcher) matchAt(text []rune, pos int) *Match {
	for _, p := range sm.patterns {
		m, err := p.anchored.FindRunesMatchStartingAt(text, pos)
		if err != nil {
			sm.log.Debug("pattern %d: %v", p.Index, err)
			continue
		}
		if m == nil || m.Length == 0 {
			continue
		}
		return &Match{
			Pattern: p,
			Start:   m.Index,
			End:     m.Index + m.Length,
			m:       m,
		}
	}
	return nil
}

// hasNumberedBackref reports whether expr refers to a group by number:
// \1 through \9, \k<1>, \k'1' or a (?(1)...) conditional.
func hasNumberedBackref(expr string) bool {
	for i := 0; i < len(expr)-1; i++ {
		switch {
		case expr[i] == '\\':
			next := expr[i+1]
			if next >= '1' && next <= '9' {
				return true
			}
			if next == 'k' && i+3 < len(expr) && (expr[i+2] == '<' || expr[i+2] == '\'') && isDigit(expr[i+3]) {
				return true
			}
			// Skip the escaped character.
			i++
		case strings.HasPrefix(expr[i:], "(?(") && i+3 < len(expr) && isDigit(expr[i+3]):
			return true
		}
	}
	return false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
