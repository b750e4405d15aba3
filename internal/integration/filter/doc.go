// Package filter annotates command output.
//
// A filter is an ordered list of rules. Each rule is a regular expression
// that may capture the named groups file, line and character, a style for
// the matched text, a span of continuation lines and actions on the file
// and directory context stacks. Rules are compiled once into an immutable
// FilterSet; per stream, a combined alternation of every rule locates the
// earliest candidate position and the rules are then tried anchored there
// in declaration order, so the first declared rule wins.
//
// An Engine runs a FilterSet over the lines of one command and writes
// styled segments to a Sink:
//
//	set := filter.Compile("gcc", "GCC", rules, filter.CompileOptions{})
//	buf := filter.NewBuffer(1000)
//	eng := filter.NewEngine(set, buf)
//	eng.CmdStart("/src/project")
//	eng.StderrLine("main.c:42: error: missing semicolon")
//
// Engines are not safe for concurrent use; they run on the loop goroutine
// of the command that feeds them. FilterSets may be shared.
//
// Registry maps filter ids to FilterSets or to factories of other
// LineFilter implementations, and always holds the builtin filters.
package filter
