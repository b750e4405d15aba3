package process

import "bytes"

// LineSplitter cuts a byte stream into lines on '\n'.
//
// Bytes after the last newline are retained until more data arrives or
// Flush is called. Carriage returns are left in place.
type LineSplitter struct {
	buf []byte
}

// Feed appends p to the stream and returns the lines it completed,
// without their terminating newline.
func (s *LineSplitter) Feed(p []byte) []string {
	var lines []string

	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			s.buf = append(s.buf, p...)
			break
		}

		if len(s.buf) > 0 {
			s.buf = append(s.buf, p[:i]...)
			lines = append(lines, string(s.buf))
			s.buf = s.buf[:0]
		} else {
			lines = append(lines, string(p[:i]))
		}

		p = p[i+1:]
	}

	return lines
}

// Flush returns the retained partial line, if any, and resets the splitter.
func (s *LineSplitter) Flush() (string, bool) {
	if len(s.buf) == 0 {
		return "", false
	}
	line := string(s.buf)
	s.buf = s.buf[:0]
	return line, true
}

// Pending returns the number of retained bytes.
func (s *LineSplitter) Pending() int {
	return len(s.buf)
}
