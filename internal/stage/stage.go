// Package stage runs one unit of pipeline work (fetch or transcribe) and
// reduces it to a typed Outcome. A failing stage is reported, never raised:
// Run always returns control to the caller.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/backmassage/reelrunner/internal/display"
)

// Well-known stage names.
const (
	Fetch      = "fetch"
	Transcribe = "transcribe"
)

// Status is the coarse result of a stage invocation.
type Status int

const (
	Succeeded Status = iota
	Failed
)

func (s Status) String() string {
	if s == Succeeded {
		return "succeeded"
	}
	return "failed"
}

// Outcome is the result of one stage invocation. ExitCode is the child's exit
// status, or -1 when the child never ran or was killed by a signal.
type Outcome struct {
	Stage    string
	Status   Status
	ExitCode int
	Err      error
	Elapsed  time.Duration
}

// OK reports whether the stage succeeded.
func (o Outcome) OK() bool { return o.Status == Succeeded }

// Stage is one unit of pipeline work. Implementations report failure through
// the returned Outcome and must not panic on ordinary errors.
type Stage interface {
	Name() string
	Execute(ctx context.Context) Outcome
}

// Logger is the subset of the logging API used by Run.
type Logger interface {
	Success(string, ...interface{})
	Error(string, ...interface{})
}

// Run executes s and logs exactly one success or failure line for it. A panic
// inside an in-process stage is converted into a failed Outcome so the next
// stage still runs.
func Run(ctx context.Context, log Logger, s Stage) (out Outcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{
				Stage:    s.Name(),
				Status:   Failed,
				ExitCode: -1,
				Err:      fmt.Errorf("stage panicked: %v", r),
				Elapsed:  time.Since(start),
			}
		}
		logOutcome(log, out)
	}()

	out = s.Execute(ctx)
	if out.Stage == "" {
		out.Stage = s.Name()
	}
	if out.Elapsed == 0 {
		out.Elapsed = time.Since(start)
	}
	return out
}

func logOutcome(log Logger, o Outcome) {
	elapsed := display.FormatElapsed(o.Elapsed)
	if o.OK() {
		log.Success("Stage %s succeeded in %s", o.Stage, elapsed)
		return
	}
	switch {
	case o.Err != nil && o.ExitCode >= 0:
		log.Error("Stage %s failed (exit %d) after %s: %v", o.Stage, o.ExitCode, elapsed, o.Err)
	case o.Err != nil:
		log.Error("Stage %s failed after %s: %v", o.Stage, elapsed, o.Err)
	default:
		log.Error("Stage %s failed (exit %d) after %s", o.Stage, o.ExitCode, elapsed)
	}
}
