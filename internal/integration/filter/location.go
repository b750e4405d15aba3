package filter

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// Location is a position in a file. Line and Character are 0-based; -1
// means unknown.
type Location struct {
	File      string
	Line      int
	Character int
}

// String formats the location as file:line:char with 1-based numbers.
func (l Location) String() string {
	s := l.File
	if l.Line >= 0 {
		s += fmt.Sprintf(":%d", l.Line+1)
		if l.Character >= 0 {
			s += fmt.Sprintf(":%d", l.Character+1)
		}
	}
	return s
}

// parseIndex converts a 1-based number to 0-based. Empty, zero, negative
// and unparsable values give -1.
func parseIndex(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return -1
	}
	return n - 1
}

// resolvePath makes a relative path absolute against the first of dirs in
// which it exists. The path is returned unchanged when none matches.
func resolvePath(path string, dirs []string, exists func(string) bool) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, path)
		if exists(candidate) {
			return candidate
		}
	}
	return path
}
