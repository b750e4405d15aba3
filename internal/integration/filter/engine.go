package filter

import (
	"os"
	"path/filepath"

	"github.com/dshills/runpane/internal/integration/process"
	"github.com/dshills/runpane/internal/logging"
)

// Default stream styles.
const (
	StyleStdout = "output-stdout"
	StyleStderr = "output-stderr"
)

// LineFilter consumes the output of one command at a time. Line methods
// return true when the line was written to the sink and needs no further
// handling.
//
// A LineFilter is used from the loop goroutine only.
type LineFilter interface {
	CmdStart(workingDir string)
	SetActiveFile(path string)
	AddActiveDirs(dirs ...string)
	StdoutLine(text string) bool
	StderrLine(text string) bool
	CmdExit(status process.ExitStatus) bool
}

// matchContext is the per-run state of an Engine.
type matchContext struct {
	files []string
	dirs  []string

	spanRemaining int
	spanStyle     string
	spanLocation  *Location
}

func (c *matchContext) reset() {
	*c = matchContext{}
}

// Engine is the regex LineFilter. It splits every line into segments at
// the matches of its FilterSet, styles them, attaches locations and keeps
// the file and directory context stacks.
type Engine struct {
	set  *FilterSet
	sink Sink
	log  *logging.Logger

	exists func(string) bool

	stdoutStyle string
	stderrStyle string

	activeFile string
	activeDirs []string

	ctx matchContext
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger used for context stack errors.
func WithEngineLogger(l *logging.Logger) EngineOption {
	return func(e *Engine) {
		e.log = logging.OrNull(l)
	}
}

// WithStreamStyles overrides the default stdout and stderr styles.
func WithStreamStyles(stdout, stderr string) EngineOption {
	return func(e *Engine) {
		if stdout != "" {
			e.stdoutStyle = stdout
		}
		if stderr != "" {
			e.stderrStyle = stderr
		}
	}
}

// WithExistsFunc replaces the file existence check used to resolve
// relative paths.
func WithExistsFunc(fn func(path string) bool) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.exists = fn
		}
	}
}

// NewEngine creates an engine writing to sink.
func NewEngine(set *FilterSet, sink Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		set:         set,
		sink:        sink,
		log:         logging.NullLogger,
		exists:      fileExists,
		stdoutStyle: StyleStdout,
		stderrStyle: StyleStderr,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("filter", set.ID)
	return e
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CmdStart resets the context for a new command run in workingDir.
func (e *Engine) CmdStart(workingDir string) {
	e.ctx.reset()
	e.activeDirs = e.activeDirs[:0]
	if workingDir != "" {
		e.activeDirs = append(e.activeDirs, workingDir)
	}
}

// SetActiveFile sets the file used when a match has a line but no file.
func (e *Engine) SetActiveFile(path string) {
	e.activeFile = path
}

// AddActiveDirs appends directories relative paths are resolved against.
func (e *Engine) AddActiveDirs(dirs ...string) {
	for _, d := range dirs {
		if d != "" {
			e.activeDirs = append(e.activeDirs, d)
		}
	}
}

// StdoutLine processes a stdout line.
func (e *Engine) StdoutLine(text string) bool {
	return e.ProcessLine(process.Stdout, text)
}

// StderrLine processes a stderr line.
func (e *Engine) StderrLine(text string) bool {
	return e.ProcessLine(process.Stderr, text)
}

// CmdExit ends the run. The exit is never consumed.
func (e *Engine) CmdExit(process.ExitStatus) bool {
	e.ctx.spanRemaining = 0
	e.ctx.spanLocation = nil
	return false
}

// ProcessLine writes one line of stream to the sink. It always consumes
// the line.
func (e *Engine) ProcessLine(stream process.Stream, text string) bool {
	if e.ctx.spanRemaining > 0 {
		e.continueSpan(text)
		return true
	}

	def := e.streamStyle(stream)
	runes := []rune(text)
	id := e.sink.StartLine()

	if len(runes) == 0 {
		e.sink.Write("", def)
	}

	pos := 0
	for pos < len(runes) {
		m := e.set.Find(stream, runes, pos)
		if m == nil {
			break
		}

		if m.Start > pos {
			e.sink.Write(string(runes[pos:m.Start]), def)
		}

		style := m.Pattern.Style
		if style == "" {
			style = def
		}
		e.sink.Write(string(runes[m.Start:m.End]), style)

		loc, hasLoc := e.location(m)
		if hasLoc {
			e.sink.SetLocation(id, loc)
		}

		e.runActions(m)
		pos = m.End

		if span := m.Pattern.Span; span >= 1 {
			if pos < len(runes) {
				e.sink.Write(string(runes[pos:]), style)
				pos = len(runes)
			}
			if span > 1 {
				e.ctx.spanRemaining = span - 1
				e.ctx.spanStyle = style
				e.ctx.spanLocation = nil
				if hasLoc {
					l := loc
					e.ctx.spanLocation = &l
				}
			}
			break
		}
	}

	if pos < len(runes) {
		e.sink.Write(string(runes[pos:]), def)
	}
	e.sink.EndLine()
	return true
}

func (e *Engine) continueSpan(text string) {
	id := e.sink.StartLine()
	e.sink.Write(text, e.ctx.spanStyle)
	if e.ctx.spanLocation != nil {
		e.sink.SetLocation(id, *e.ctx.spanLocation)
	}
	e.sink.EndLine()

	e.ctx.spanRemaining--
	if e.ctx.spanRemaining == 0 {
		e.ctx.spanStyle = ""
		e.ctx.spanLocation = nil
	}
}

func (e *Engine) streamStyle(stream process.Stream) string {
	if stream == process.Stderr {
		return e.stderrStyle
	}
	return e.stdoutStyle
}

// location builds the location of a match from its file, line and
// character groups.
func (e *Engine) location(m *Match) (Location, bool) {
	file := m.Group("file")
	line := m.Group("line")
	if file == "" && line == "" {
		return Location{}, false
	}

	if file != "" {
		file = e.resolve(file)
	} else if top := peek(e.ctx.files); top != "" {
		file = top
	} else {
		file = e.activeFile
	}
	if file == "" {
		e.log.Debug("no file for line %q", line)
		return Location{}, false
	}

	return Location{
		File:      file,
		Line:      parseIndex(line),
		Character: parseIndex(m.Group("character")),
	}, true
}

// resolve tries a relative path against the directory stack top, then
// against each active directory.
func (e *Engine) resolve(path string) string {
	dirs := make([]string, 0, len(e.activeDirs)+1)
	if top := peek(e.ctx.dirs); top != "" {
		dirs = append(dirs, top)
	}
	dirs = append(dirs, e.activeDirs...)
	return resolvePath(path, dirs, e.exists)
}

func (e *Engine) runActions(m *Match) {
	for _, a := range m.Pattern.Actions {
		switch a.Kind {
		case ActionPush:
			e.push(a, m)
		case ActionPop:
			e.pop(a)
		}
	}
}

// push always pushes, even an empty value, so that pops stay balanced.
func (e *Engine) push(a Action, m *Match) {
	var value string
	if a.Source != "" {
		value = m.Group(a.Source)
	}

	switch a.Target {
	case TargetFile:
		switch {
		case value != "":
			value = e.resolve(value)
		case peek(e.ctx.files) != "":
			value = peek(e.ctx.files)
		default:
			value = e.activeFile
		}
		e.ctx.files = append(e.ctx.files, value)

	case TargetDir:
		top := peek(e.ctx.dirs)
		switch {
		case value != "":
			base := top
			if base == "" && len(e.activeDirs) > 0 {
				base = e.activeDirs[0]
			}
			if !filepath.IsAbs(value) && base != "" {
				value = filepath.Join(base, value)
			}
		case top != "":
			value = top
		case len(e.activeDirs) > 0:
			value = e.activeDirs[0]
		}
		e.ctx.dirs = append(e.ctx.dirs, value)
	}
}

func (e *Engine) pop(a Action) {
	stack := &e.ctx.files
	if a.Target == TargetDir {
		stack = &e.ctx.dirs
	}
	if len(*stack) == 0 {
		e.log.Warn("pop on empty %s stack", a.Target)
		return
	}
	*stack = (*stack)[:len(*stack)-1]
}

func peek(stack []string) string {
	if len(stack) == 0 {
		return ""
	}
	return stack[len(stack)-1]
}
