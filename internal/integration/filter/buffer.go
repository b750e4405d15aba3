package filter

import (
	"strings"
	"sync"
)

// Segment is a run of text written in one style.
type Segment struct {
	Text  string
	Style string
}

// Line is a finished line held by a Buffer.
type Line struct {
	ID       LineID
	Segments []Segment
	Location *Location
}

// Text returns the line content without styles.
func (l Line) Text() string {
	var b strings.Builder
	for _, s := range l.Segments {
		b.WriteString(s.Text)
	}
	return b.String()
}

// Buffer is a Sink that keeps the last lines in a ring.
type Buffer struct {
	lines    []Line
	capacity int
	head     int
	count    int

	next LineID
	open *Line

	mu sync.RWMutex
}

// NewBuffer creates a buffer holding up to capacity lines.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Buffer{
		lines:    make([]Line, capacity),
		capacity: capacity,
	}
}

// StartLine begins a new line, ending any open one.
func (b *Buffer) StartLine() LineID {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open != nil {
		b.add(*b.open)
	}
	id := b.next
	b.next++
	b.open = &Line{ID: id}
	return id
}

// Write appends a segment to the open line. A line is started if none is
// open.
func (b *Buffer) Write(text, style string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open == nil {
		b.open = &Line{ID: b.next}
		b.next++
	}
	if text == "" && len(b.open.Segments) > 0 {
		return
	}
	b.open.Segments = append(b.open.Segments, Segment{Text: text, Style: style})
}

// EndLine finishes the open line.
func (b *Buffer) EndLine() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open == nil {
		return
	}
	b.add(*b.open)
	b.open = nil
}

// SetLocation attaches loc to the line id if it is still held.
func (b *Buffer) SetLocation(id LineID, loc Location) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open != nil && b.open.ID == id {
		b.open.Location = &loc
		return
	}
	for i := 0; i < b.count; i++ {
		l := &b.lines[(b.head+i)%b.capacity]
		if l.ID == id {
			l.Location = &loc
			return
		}
	}
}

func (b *Buffer) add(line Line) {
	idx := (b.head + b.count) % b.capacity
	b.lines[idx] = line

	if b.count < b.capacity {
		b.count++
	} else {
		b.head = (b.head + 1) % b.capacity
	}
}

// Lines returns the finished lines in order.
func (b *Buffer) Lines() []Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Line, b.count)
	for i := 0; i < b.count; i++ {
		result[i] = b.lines[(b.head+i)%b.capacity]
	}
	return result
}

// Count returns the number of finished lines held.
func (b *Buffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}

// Text returns the finished lines joined by newlines.
func (b *Buffer) Text() string {
	lines := b.Lines()
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = l.Text()
	}
	return strings.Join(parts, "\n")
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
	b.open = nil
}
