package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/backmassage/reelrunner/internal/display"
	"github.com/backmassage/reelrunner/internal/lock"
	"github.com/backmassage/reelrunner/internal/stage"
)

// ErrInvalidInterval is returned by RunForever for a zero or negative interval.
var ErrInvalidInterval = errors.New("interval must be positive")

// Logger is the logging interface used by the controller and its stages.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(string, ...interface{})
}

// Cycle is the fixed stage sequence of one pass.
type Cycle struct {
	Fetch      stage.Stage
	Transcribe stage.Stage
}

// Controller drives the state machine described in the package doc.
type Controller struct {
	log     Logger
	now     func() time.Time
	after   func(time.Duration) <-chan time.Time
	newID   func() string
	onState func(State)

	state State
	seq   int
	stats RunStats
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now for boundary timestamps.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithAfter replaces time.After for the inter-cycle sleep.
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Controller) { c.after = after }
}

// WithIDs replaces the cycle id generator.
func WithIDs(newID func() string) Option { return func(c *Controller) { c.newID = newID } }

// WithStateHook registers fn to be called on every state transition.
func WithStateHook(fn func(State)) Option { return func(c *Controller) { c.onState = fn } }

// New returns a controller in StateStart.
func New(log Logger, opts ...Option) *Controller {
	c := &Controller{
		log:   log,
		now:   time.Now,
		after: time.After,
		newID: func() string { return uuid.NewString()[:8] },
		state: StateStart,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Stats returns the aggregate outcome counters so far.
func (c *Controller) Stats() RunStats { return c.stats }

func (c *Controller) transition(to State) {
	if to != c.state {
		c.log.Debug("State %s -> %s", c.state, to)
	}
	c.state = to
	if c.onState != nil {
		c.onState(to)
	}
}

// Start runs the preflight states. validate is the environment check;
// acquire takes the instance lock and returns its release func. Either
// failure is logged here (one line) and returned; the caller exits non-zero
// without running any stage. On success the caller must defer release.
func (c *Controller) Start(validate func() error, acquire func() (release func() error, err error)) (func() error, error) {
	c.transition(StateStart)

	c.transition(StateValidateEnv)
	if err := validate(); err != nil {
		c.log.Error("%v", err)
		c.transition(StateEnd)
		return nil, err
	}

	c.transition(StateAcquireLock)
	release, err := acquire()
	if err != nil {
		if errors.Is(err, lock.ErrBusy) {
			c.log.Warn("Another instance is already running, exiting: %v", err)
		} else {
			c.log.Error("Cannot acquire instance lock: %v", err)
		}
		c.transition(StateEnd)
		return nil, err
	}
	return release, nil
}

// RunOnce runs exactly one cycle and ends. Stage failures are reflected in
// the result only.
func (c *Controller) RunOnce(ctx context.Context, cy Cycle) CycleResult {
	res := c.runCycle(ctx, cy)
	c.transition(StateEnd)
	return res
}

// RunForever runs cycles separated by interval until ctx is cancelled, then
// returns nil. The interval is measured from the end of one cycle to the
// start of the next; stage run time is not counted against it.
func (c *Controller) RunForever(ctx context.Context, cy Cycle, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w (got %s)", ErrInvalidInterval, interval)
	}
	for {
		if ctx.Err() != nil {
			break
		}
		c.runCycle(ctx, cy)
		if ctx.Err() != nil {
			break
		}

		c.transition(StateSleep)
		c.log.Info("Sleeping %s until next cycle (at %s)", interval, c.now().Add(interval).Format(time.RFC3339))
		if !c.sleep(ctx, interval) {
			c.log.Warn("Interrupted while sleeping, stopping")
			break
		}
	}
	c.transition(StateEnd)
	return nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// interval elapsed.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.after(d):
		return true
	}
}

func (c *Controller) runCycle(ctx context.Context, cy Cycle) CycleResult {
	c.seq++
	res := CycleResult{Seq: c.seq, ID: c.newID(), Started: c.now()}
	c.log.Info("=== Cycle #%d (%s) started at %s ===", res.Seq, res.ID, res.Started.Format(time.RFC3339))

	steps := []struct {
		state State
		stage stage.Stage
		out   **stage.Outcome
	}{
		{StateRunFetch, cy.Fetch, &res.Fetch},
		{StateRunTranscribe, cy.Transcribe, &res.Transcribe},
	}
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		c.transition(step.state)
		out := stage.Run(ctx, c.log, step.stage)
		*step.out = &out
	}
	// Also covers a cancel that lands while the last stage is running.
	res.Interrupted = ctx.Err() != nil

	res.Finished = c.now()
	c.stats.add(res)
	c.logFinish(res)
	return res
}

func (c *Controller) logFinish(r CycleResult) {
	line := fmt.Sprintf("=== Cycle #%d (%s) finished at %s in %s: fetch=%s transcribe=%s ===",
		r.Seq, r.ID, r.Finished.Format(time.RFC3339), display.FormatElapsed(r.Elapsed()),
		label(r.Fetch), label(r.Transcribe))
	if r.Interrupted {
		c.log.Warn("%s (interrupted)", line)
		return
	}
	c.log.Info("%s", line)
}

// LogSummary writes the aggregate counters, for shutdown.
func (c *Controller) LogSummary() {
	s := c.stats
	c.log.Info("=== Summary ===")
	c.log.Info("Cycles: %d (interrupted: %d)", s.Cycles, s.Interrupted)
	c.log.Info("Fetch: %d ok, %d failed", s.FetchOK, s.FetchFailed)
	c.log.Info("Transcribe: %d ok, %d failed", s.TranscribeOK, s.TranscribeFailed)
}

func label(o *stage.Outcome) string {
	if o == nil {
		return "skipped"
	}
	return display.OutcomeLabel(o.OK())
}
