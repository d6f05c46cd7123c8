package pipeline

import (
	"time"

	"github.com/backmassage/reelrunner/internal/stage"
)

// CycleResult describes one pass through fetch and transcribe. A nil stage
// outcome means the stage was skipped because the context was cancelled.
type CycleResult struct {
	Seq         int
	ID          string
	Started     time.Time
	Finished    time.Time
	Fetch       *stage.Outcome
	Transcribe  *stage.Outcome
	Interrupted bool
}

// Elapsed is the wall time of the cycle.
func (r CycleResult) Elapsed() time.Duration { return r.Finished.Sub(r.Started) }

// RunStats aggregates outcomes across the cycles run by one process.
type RunStats struct {
	Cycles           int
	Interrupted      int
	FetchOK          int
	FetchFailed      int
	TranscribeOK     int
	TranscribeFailed int
}

func (s *RunStats) add(r CycleResult) {
	s.Cycles++
	if r.Interrupted {
		s.Interrupted++
	}
	count(r.Fetch, &s.FetchOK, &s.FetchFailed)
	count(r.Transcribe, &s.TranscribeOK, &s.TranscribeFailed)
}

func count(o *stage.Outcome, ok, failed *int) {
	switch {
	case o == nil:
	case o.OK():
		*ok++
	default:
		*failed++
	}
}
