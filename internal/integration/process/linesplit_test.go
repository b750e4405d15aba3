package process

import (
	"reflect"
	"testing"
)

func splitAll(chunks [][]byte) []string {
	var s LineSplitter
	var lines []string
	for _, c := range chunks {
		lines = append(lines, s.Feed(c)...)
	}
	if last, ok := s.Flush(); ok {
		lines = append(lines, last)
	}
	return lines
}

func TestLineSplitter_Basic(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"single", "hello\n", []string{"hello"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"blank lines", "\n\nx\n", []string{"", "", "x"}},
		{"carriage return kept", "a\r\nb\r\n", []string{"a\r", "b\r"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitAll([][]byte{[]byte(tt.input)})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestLineSplitter_ChunkIndependence(t *testing.T) {
	input := []byte("first line\nsecond\n\nthird with more text\r\npartial tail")
	want := splitAll([][]byte{input})

	for size := 1; size <= len(input); size++ {
		var chunks [][]byte
		for i := 0; i < len(input); i += size {
			end := i + size
			if end > len(input) {
				end = len(input)
			}
			chunks = append(chunks, input[i:end])
		}

		got := splitAll(chunks)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("chunk size %d: expected %q, got %q", size, want, got)
		}
	}
}

func TestLineSplitter_RetainsPartial(t *testing.T) {
	var s LineSplitter

	if lines := s.Feed([]byte("abc")); len(lines) != 0 {
		t.Errorf("expected no lines, got %q", lines)
	}
	if s.Pending() != 3 {
		t.Errorf("expected 3 pending bytes, got %d", s.Pending())
	}

	lines := s.Feed([]byte("def\ngh"))
	if !reflect.DeepEqual(lines, []string{"abcdef"}) {
		t.Errorf("expected [abcdef], got %q", lines)
	}

	last, ok := s.Flush()
	if !ok || last != "gh" {
		t.Errorf("expected flush of %q, got %q (%v)", "gh", last, ok)
	}

	if _, ok := s.Flush(); ok {
		t.Error("expected second flush to be empty")
	}
}
