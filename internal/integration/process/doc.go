// Package process runs external commands and delivers their output as lines.
//
// The package is built around a Loop: a single goroutine on which every
// callback runs. Readers and the exit watcher run on their own goroutines
// but only post events to the loop, so code driven by callbacks needs no
// locking.
//
// # Runner
//
// A Runner owns one child process and its two output pipes:
//
//	loop := process.NewLoop()
//	defer loop.Close()
//
//	var r *process.Runner
//	loop.Do(func() {
//	    r, err = process.Spawn(loop, process.Spec{Argv: []string{"make"}}, process.Callbacks{
//	        OnLine: func(s process.Stream, line string) { fmt.Println(s, line) },
//	        OnExit: func(st process.ExitStatus) { fmt.Println(st) },
//	    })
//	})
//	<-r.Done()
//
// OnExit fires exactly once, after the child has exited and both pipes have
// been drained, so every line is delivered before the exit notification.
//
// # Abort
//
// Abort signals the child's whole process group and detaches both readers.
// After Abort returns no further OnLine callback fires; OnExit still fires
// once the process has been reaped. Abort must be called on the loop.
//
// # Line splitting
//
// LineSplitter cuts raw bytes on '\n' and keeps a trailing partial line
// until more data arrives or the stream closes. Its output does not depend
// on how the input was chunked.
package process
