package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/dshills/runpane/internal/integration/process"
)

// Output restricts a rule to one or both output streams.
type Output int

const (
	// OutputAll applies a rule to stdout and stderr.
	OutputAll Output = iota
	// OutputStdout applies a rule to stdout only.
	OutputStdout
	// OutputStderr applies a rule to stderr only.
	OutputStderr
)

// String returns the definition-file name of the output.
func (o Output) String() string {
	switch o {
	case OutputAll:
		return "all"
	case OutputStdout:
		return "stdout"
	case OutputStderr:
		return "stderr"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Applies reports whether a rule with this output sees lines of stream.
func (o Output) Applies(stream process.Stream) bool {
	switch o {
	case OutputStdout:
		return stream == process.Stdout
	case OutputStderr:
		return stream == process.Stderr
	default:
		return true
	}
}

// ParseOutput parses "all", "stdout" or "stderr". Empty means all.
func ParseOutput(s string) (Output, error) {
	switch strings.ToLower(s) {
	case "", "all", "both":
		return OutputAll, nil
	case "stdout":
		return OutputStdout, nil
	case "stderr":
		return OutputStderr, nil
	default:
		return OutputAll, fmt.Errorf("invalid output %q", s)
	}
}

// ActionKind is the operation an action performs on a context stack.
type ActionKind int

const (
	// ActionPush pushes a value onto a stack.
	ActionPush ActionKind = iota
	// ActionPop removes the top of a stack.
	ActionPop
)

// String returns the definition-file name of the kind.
func (k ActionKind) String() string {
	if k == ActionPop {
		return "pop"
	}
	return "push"
}

// Target selects the file stack or the directory stack.
type Target int

const (
	// TargetFile is the current-file stack.
	TargetFile Target = iota
	// TargetDir is the current-directory stack.
	TargetDir
)

// String returns the definition-file name of the target.
func (t Target) String() string {
	if t == TargetDir {
		return "directory"
	}
	return "file"
}

// Action mutates a context stack after its rule matched.
type Action struct {
	Kind   ActionKind
	Target Target

	// Source names the capture group a push reads its value from.
	Source string
}

// ParseAction builds an Action from its definition-file fields.
func ParseAction(kind, target, source string) (Action, error) {
	var a Action

	switch strings.ToLower(kind) {
	case "push":
		a.Kind = ActionPush
	case "pop":
		a.Kind = ActionPop
	default:
		return a, fmt.Errorf("invalid action type %q", kind)
	}

	switch strings.ToLower(target) {
	case "file":
		a.Target = TargetFile
	case "directory", "dir":
		a.Target = TargetDir
	default:
		return a, fmt.Errorf("invalid action target %q", target)
	}

	a.Source = source
	return a, nil
}

// Rule is an uncompiled pattern.
type Rule struct {
	// Expr is the regular expression. It may use the named groups
	// file, line and character.
	Expr string

	Output Output

	// Style is the sink style of matched text. Empty means the stream style.
	Style string

	// Span is the number of lines the match styles, counting its own
	// line. 0 and 1 style only the matched line.
	Span int

	Actions []Action
}

// Pattern is a compiled Rule. Patterns are immutable.
type Pattern struct {
	Rule

	// Index is the declaration position within the filter.
	Index int

	// re finds the pattern anywhere after a position.
	re *regexp2.Regexp

	// anchored only matches at the position it is started from.
	anchored *regexp2.Regexp
}

// PatternError reports a rule that could not be compiled.
type PatternError struct {
	Index int
	Expr  string
	Err   error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("pattern %d %q: %v", e.Index, e.Expr, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

func compilePattern(index int, rule Rule, timeout time.Duration) (*Pattern, error) {
	if rule.Expr == "" {
		return nil, &PatternError{Index: index, Err: ErrEmptyPattern}
	}
	if rule.Span < 0 {
		return nil, &PatternError{Index: index, Expr: rule.Expr, Err: fmt.Errorf("negative span %d", rule.Span)}
	}

	re, err := regexp2.Compile(rule.Expr, regexp2.None)
	if err != nil {
		return nil, &PatternError{Index: index, Expr: rule.Expr, Err: err}
	}
	anchored, err := regexp2.Compile(`\G(?:`+rule.Expr+`)`, regexp2.None)
	if err != nil {
		return nil, &PatternError{Index: index, Expr: rule.Expr, Err: err}
	}
	if timeout > 0 {
		re.MatchTimeout = timeout
		anchored.MatchTimeout = timeout
	}

	return &Pattern{
		Rule:     rule,
		Index:    index,
		re:       re,
		anchored: anchored,
	}, nil
}
