package filter

// LineID identifies a line started in a Sink.
type LineID int

// Sink consumes annotated output. A line is built by StartLine, any number
// of Write calls and EndLine. SetLocation may be called for a line after
// it was started.
type Sink interface {
	StartLine() LineID
	Write(text, style string)
	EndLine()
	SetLocation(id LineID, loc Location)
}

// WriteLine writes text as one whole line in style.
func WriteLine(s Sink, text, style string) LineID {
	id := s.StartLine()
	s.Write(text, style)
	s.EndLine()
	return id
}
