package process

import (
	"sync"
	"testing"
	"time"
)

func TestLoop_RunsInOrder(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() { got = append(got, i) })
	}

	var n int
	loop.Do(func() { n = len(got) })

	if n != 100 {
		t.Fatalf("expected 100 calls, got %d", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("expected %d at position %d, got %d", i, i, v)
		}
	}
}

func TestLoop_ConcurrentPosters(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	count := 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				loop.Post(func() { count++ })
			}
		}()
	}
	wg.Wait()

	var got int
	loop.Do(func() { got = count })
	if got != 400 {
		t.Errorf("expected 400, got %d", got)
	}
}

func TestLoop_PanicRecovered(t *testing.T) {
	loop := NewLoop()
	defer loop.Close()

	loop.Post(func() { panic("boom") })

	ran := false
	if !loop.Do(func() { ran = true }) {
		t.Fatal("expected Do to succeed after a panicking callback")
	}
	if !ran {
		t.Error("expected later callback to run")
	}
}

func TestLoop_Close(t *testing.T) {
	loop := NewLoop()

	ran := make(chan struct{})
	loop.Post(func() { close(ran) })
	loop.Close()

	select {
	case <-loop.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}

	select {
	case <-ran:
	default:
		t.Error("queued callback should run before the loop stops")
	}

	if loop.Post(func() {}) {
		t.Error("expected Post to fail after Close")
	}
	if loop.Do(func() {}) {
		t.Error("expected Do to fail after Close")
	}
}
