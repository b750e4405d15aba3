package process

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dshills/runpane/internal/logging"
)

var errDeviceGone = errors.New("device gone")

type failingReader struct {
	data string
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.data != "" {
		n := copy(p, f.data)
		f.data = f.data[n:]
		return n, nil
	}
	return 0, errDeviceGone
}

func (f *failingReader) Close() error { return nil }

// exitedRunner returns a runner whose process has already exited with
// status and which waits for one stream.
func exitedRunner(loop *Loop, status ExitStatus, got *[]ExitStatus) *Runner {
	return &Runner{
		loop:    loop,
		logger:  logging.NullLogger,
		decoder: &lineDecoder{},
		open:    1,
		exited:  true,
		status:  status,
		done:    make(chan struct{}),
		cb: Callbacks{
			OnExit: func(st ExitStatus) { *got = append(*got, st) },
		},
	}
}

func TestRunner_ReadErrorRecorded(t *testing.T) {
	tests := []struct {
		name    string
		status  ExitStatus
		data    string
		wantErr bool
	}{
		{"failed run without output", ExitStatus{Kind: ExitNormal, Code: 1}, "", true},
		{"successful run", ExitStatus{Kind: ExitNormal, Code: 0}, "", false},
		{"failed run with output", ExitStatus{Kind: ExitNormal, Code: 1}, "partial\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := NewLoop()
			defer loop.Close()

			var exits []ExitStatus
			r := exitedRunner(loop, tt.status, &exits)
			go r.read(Stdout, &failingReader{data: tt.data})

			select {
			case <-r.Done():
			case <-time.After(5 * time.Second):
				t.Fatal("runner did not finish")
			}

			if len(exits) != 1 {
				t.Fatalf("expected one exit, got %d", len(exits))
			}
			err := exits[0].Err
			if tt.wantErr {
				if !errors.Is(err, errDeviceGone) || !strings.Contains(err.Error(), "stdout") {
					t.Errorf("expected stdout read error, got %v", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}
