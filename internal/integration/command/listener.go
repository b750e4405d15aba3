package command

import "github.com/dshills/runpane/internal/integration/process"

// Listener observes jobs. Its methods run on the loop. A line or exit
// method that returns true consumes the event: neither the filter nor
// the default output sees it.
type Listener interface {
	JobStarted(job *Job)
	JobFinished(job *Job)
	StdoutLine(job *Job, text string) bool
	StderrLine(job *Job, text string) bool
	CmdExit(job *Job, status process.ExitStatus) bool
}

// NopListener consumes nothing. Embed it to implement part of Listener.
type NopListener struct{}

// JobStarted implements Listener.
func (NopListener) JobStarted(*Job) {}

// JobFinished implements Listener.
func (NopListener) JobFinished(*Job) {}

// StdoutLine implements Listener.
func (NopListener) StdoutLine(*Job, string) bool { return false }

// StderrLine implements Listener.
func (NopListener) StderrLine(*Job, string) bool { return false }

// CmdExit implements Listener.
func (NopListener) CmdExit(*Job, process.ExitStatus) bool { return false }
