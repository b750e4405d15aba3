// Package script runs output filters written in Lua.
//
// A script defines any of the global functions
//
//	cmd_start(working_dir)
//	stdout_line(text) -> bool
//	stderr_line(text) -> bool
//	cmd_exit(status) -> bool
//
// and writes to the output through the runpane table: write, write_line,
// start_line, end_line, set_location, active_file, active_dirs and log.
// A line function that returns a false value leaves the line to the
// caller.
//
// Scripts run with only the base, table, string and math libraries.
package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/dshills/runpane/internal/integration/filter"
	"github.com/dshills/runpane/internal/integration/process"
	"github.com/dshills/runpane/internal/logging"
)

// DefaultTimeout bounds each call into a script.
const DefaultTimeout = 2 * time.Second

// ErrClosed is returned when a closed filter is used.
var ErrClosed = errors.New("script filter is closed")

// Program is a compiled script. One Program backs any number of filters.
type Program struct {
	Name  string
	proto *lua.FunctionProto
}

// CompileFile compiles the script at path.
func CompileFile(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Compile(path, src)
}

// Compile compiles script source. name is used in error messages.
func Compile(name string, src []byte) (*Program, error) {
	chunk, err := parse.Parse(bytes.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Program{Name: name, proto: proto}, nil
}

// Options configures filters created from a Program.
type Options struct {
	Timeout time.Duration
	Logger  *logging.Logger
}

// Factory returns a filter.Factory creating filters from p.
func Factory(p *Program, opts Options) filter.Factory {
	return func(sink filter.Sink, log *logging.Logger) (filter.LineFilter, error) {
		o := opts
		if o.Logger == nil {
			o.Logger = log
		}
		f, err := p.NewFilter(sink, o)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
}

// Filter is a LineFilter backed by its own Lua state. Like every
// LineFilter it is used from one goroutine.
type Filter struct {
	L    *lua.LState
	sink filter.Sink
	log  *logging.Logger

	timeout time.Duration

	activeFile string
	activeDirs []string

	closed bool
}

// NewFilter creates a Lua state, installs the host table and runs the
// program's top level.
func (p *Program) NewFilter(sink filter.Sink, opts Options) (*Filter, error) {
	f := &Filter{
		sink:    sink,
		log:     logging.OrNull(opts.Logger).WithField("script", p.Name),
		timeout: opts.Timeout,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	f.L = L
	f.installHost()

	L.Push(L.NewFunctionFromProto(p.proto))
	if err := f.pcall(0, 0); err != nil {
		L.Close()
		return nil, fmt.Errorf("run %s: %w", p.Name, err)
	}
	return f, nil
}

// openSafeLibraries opens base, table, string and math and removes the
// loaders of base.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

func (f *Filter) installHost() {
	mod := f.L.SetFuncs(f.L.NewTable(), map[string]lua.LGFunction{
		"write":        f.luaWrite,
		"write_line":   f.luaWriteLine,
		"start_line":   f.luaStartLine,
		"end_line":     f.luaEndLine,
		"set_location": f.luaSetLocation,
		"active_file":  f.luaActiveFile,
		"active_dirs":  f.luaActiveDirs,
		"log":          f.luaLog,
	})
	f.L.SetGlobal("runpane", mod)
}

// pcall calls the function and nargs arguments on the stack with the
// filter timeout.
func (f *Filter) pcall(nargs, nret int) (err error) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	f.L.SetContext(ctx)
	defer f.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return f.L.PCall(nargs, nret, nil)
}

// call runs the global fn with args and reports its first result as a
// boolean. A missing function yields false.
func (f *Filter) call(fn string, args ...lua.LValue) bool {
	if f.closed {
		return false
	}

	fnVal := f.L.GetGlobal(fn)
	if fnVal.Type() != lua.LTFunction {
		return false
	}

	f.L.Push(fnVal)
	for _, a := range args {
		f.L.Push(a)
	}
	if err := f.pcall(len(args), 1); err != nil {
		f.log.Warn("%s: %v", fn, err)
		return false
	}

	ret := f.L.Get(-1)
	f.L.Pop(1)
	return lua.LVAsBool(ret)
}

// CmdStart resets the active directories and calls cmd_start.
func (f *Filter) CmdStart(workingDir string) {
	f.activeDirs = f.activeDirs[:0]
	if workingDir != "" {
		f.activeDirs = append(f.activeDirs, workingDir)
	}
	f.call("cmd_start", lua.LString(workingDir))
}

// SetActiveFile sets the value returned by runpane.active_file.
func (f *Filter) SetActiveFile(path string) {
	f.activeFile = path
}

// AddActiveDirs extends the value returned by runpane.active_dirs.
func (f *Filter) AddActiveDirs(dirs ...string) {
	for _, d := range dirs {
		if d != "" {
			f.activeDirs = append(f.activeDirs, d)
		}
	}
}

// StdoutLine calls stdout_line.
func (f *Filter) StdoutLine(text string) bool {
	return f.call("stdout_line", lua.LString(text))
}

// StderrLine calls stderr_line.
func (f *Filter) StderrLine(text string) bool {
	return f.call("stderr_line", lua.LString(text))
}

// CmdExit calls cmd_exit with a table describing status.
func (f *Filter) CmdExit(status process.ExitStatus) bool {
	if f.closed {
		return false
	}
	t := f.L.NewTable()
	t.RawSetString("kind", lua.LString(status.Kind.String()))
	t.RawSetString("code", lua.LNumber(status.Code))
	t.RawSetString("signal", lua.LNumber(int(status.Signal)))
	t.RawSetString("core_dumped", lua.LBool(status.CoreDumped))
	t.RawSetString("success", lua.LBool(status.Success()))
	return f.call("cmd_exit", t)
}

// Close releases the Lua state.
func (f *Filter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.L.Close()
	return nil
}

func (f *Filter) luaWrite(L *lua.LState) int {
	f.sink.Write(L.CheckString(1), L.OptString(2, ""))
	return 0
}

func (f *Filter) luaWriteLine(L *lua.LState) int {
	id := filter.WriteLine(f.sink, L.CheckString(1), L.OptString(2, ""))
	L.Push(lua.LNumber(id))
	return 1
}

func (f *Filter) luaStartLine(L *lua.LState) int {
	L.Push(lua.LNumber(f.sink.StartLine()))
	return 1
}

func (f *Filter) luaEndLine(L *lua.LState) int {
	f.sink.EndLine()
	return 0
}

// luaSetLocation takes 1-based line and character numbers; 0 or nil
// means unknown.
func (f *Filter) luaSetLocation(L *lua.LState) int {
	id := filter.LineID(L.CheckInt(1))
	f.sink.SetLocation(id, filter.Location{
		File:      L.CheckString(2),
		Line:      zeroBased(L.OptInt(3, 0)),
		Character: zeroBased(L.OptInt(4, 0)),
	})
	return 0
}

func zeroBased(n int) int {
	if n <= 0 {
		return -1
	}
	return n - 1
}

func (f *Filter) luaActiveFile(L *lua.LState) int {
	L.Push(lua.LString(f.activeFile))
	return 1
}

func (f *Filter) luaActiveDirs(L *lua.LState) int {
	t := L.NewTable()
	for _, d := range f.activeDirs {
		t.Append(lua.LString(d))
	}
	L.Push(t)
	return 1
}

func (f *Filter) luaLog(L *lua.LState) int {
	f.log.Info("%s", L.CheckString(1))
	return 0
}
