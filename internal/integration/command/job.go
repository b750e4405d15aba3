package command

import (
	"io"

	"github.com/dshills/runpane/internal/integration/filter"
	"github.com/dshills/runpane/internal/integration/jobs"
	"github.com/dshills/runpane/internal/integration/process"
)

// Job is a started command.
type Job struct {
	// ID is the registry id of the job.
	ID string

	// Name is the job name, Display the command shown to the user.
	Name    string
	Display string

	exec     *Executor
	req      Request
	runner   *process.Runner
	entry    *jobs.Job
	filter   filter.LineFilter
	listener Listener

	// untracked is set when the job could not be registered. Its runner is
	// aborted and nothing more is reported for it.
	untracked bool

	status process.ExitStatus
	done   chan struct{}
}

// Abort aborts the command. It must be called on the loop; use
// Executor.Abort elsewhere.
func (j *Job) Abort() {
	if j.runner != nil {
		j.runner.Abort()
	}
}

// Done is closed after the exit has been handled and the job unregistered.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Status blocks until the job is done and returns its exit status.
func (j *Job) Status() process.ExitStatus {
	<-j.done
	return j.status
}

// Pid returns the process ID of the command.
func (j *Job) Pid() int {
	return j.runner.Pid()
}

// Aborted reports whether the job was aborted.
func (j *Job) Aborted() bool {
	return j.runner.Aborted()
}

// Output returns the collected text of stream once the job is done.
func (j *Job) Output(stream process.Stream) string {
	<-j.done
	return j.runner.Output(stream)
}

// line dispatches one output line: listener, then filter, then the sink.
func (j *Job) line(stream process.Stream, text string) {
	if j.untracked {
		return
	}
	if stream == process.Stderr {
		if j.listener.StderrLine(j, text) {
			return
		}
		if j.filter != nil && j.filter.StderrLine(text) {
			return
		}
		filter.WriteLine(j.req.Sink, text, j.exec.config.StderrStyle)
		return
	}

	if j.listener.StdoutLine(j, text) {
		return
	}
	if j.filter != nil && j.filter.StdoutLine(text) {
		return
	}
	filter.WriteLine(j.req.Sink, text, j.exec.config.StdoutStyle)
}

func (j *Job) exit(status process.ExitStatus) {
	j.status = status
	if j.untracked {
		close(j.done)
		return
	}

	handled := j.listener.CmdExit(j, status)
	if !handled && j.filter != nil {
		handled = j.filter.CmdExit(status)
	}
	if !handled {
		msg, ok := ExitMessage(status)
		style := j.exec.config.ErrorStyle
		if ok {
			style = j.exec.config.MessageStyle
		}
		filter.WriteLine(j.req.Sink, msg, style)
	}

	j.exec.jobs.Unregister(j.entry)
	j.listener.JobFinished(j)
	j.closeFilter()
	close(j.done)
}

func (j *Job) closeFilter() {
	if c, ok := j.filter.(io.Closer); ok && j.req.Filter == nil {
		_ = c.Close()
	}
}
