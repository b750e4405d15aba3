package output

import (
	"io"
	"sync"

	"github.com/tidwall/sjson"

	"github.com/dshills/runpane/internal/integration/filter"
)

// JSONLines is a Sink writing one JSON object per line:
//
//	{"id":3,"location":{"file":"main.c","line":3,"character":-1},
//	 "text":"main.c:4: error: x","segments":[{"text":"...","style":"output-error"}]}
type JSONLines struct {
	w   io.Writer
	job string

	mu   sync.Mutex
	next filter.LineID
	open bool
	id   filter.LineID
	text []byte
	segs []segment
	doc  []byte
	err  error
}

type segment struct {
	Text  string `json:"text"`
	Style string `json:"style"`
}

// NewJSONLines creates a JSON-lines sink. job, when set, is written to
// every object.
func NewJSONLines(w io.Writer, job string) *JSONLines {
	return &JSONLines{w: w, job: job}
}

// StartLine implements filter.Sink.
func (j *JSONLines) StartLine() filter.LineID {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.open {
		j.flush()
	}
	j.begin()
	return j.id
}

func (j *JSONLines) begin() {
	j.id = j.next
	j.next++
	j.open = true
	j.text = j.text[:0]
	j.segs = nil
	j.doc = []byte(`{}`)
	j.set("id", int(j.id))
	if j.job != "" {
		j.set("job", j.job)
	}
}

// Write implements filter.Sink.
func (j *JSONLines) Write(text, style string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.open {
		j.begin()
	}
	j.text = append(j.text, text...)
	j.segs = append(j.segs, segment{Text: text, Style: style})
}

// EndLine implements filter.Sink.
func (j *JSONLines) EndLine() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.open {
		j.flush()
	}
}

// SetLocation implements filter.Sink. Locations of lines already written
// are dropped.
func (j *JSONLines) SetLocation(id filter.LineID, loc filter.Location) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.open || id != j.id {
		return
	}
	j.set("location.file", loc.File)
	j.set("location.line", loc.Line)
	j.set("location.character", loc.Character)
}

// Err returns the first encoding or write error.
func (j *JSONLines) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *JSONLines) set(path string, value any) {
	doc, err := sjson.SetBytes(j.doc, path, value)
	if err != nil {
		if j.err == nil {
			j.err = err
		}
		return
	}
	j.doc = doc
}

func (j *JSONLines) flush() {
	j.set("text", string(j.text))
	if len(j.segs) > 0 {
		j.set("segments", j.segs)
	}
	j.open = false

	if j.err != nil {
		return
	}
	_, j.err = j.w.Write(append(j.doc, '\n'))
}
