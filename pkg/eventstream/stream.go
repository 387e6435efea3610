// Package eventstream implements the monotonic (run_id, seq) event record
// stream of spec §4.E, grounded on the teacher's tape.Recorder (monotonic
// mutex-guarded sequence counter) and interfaces.Event.
package eventstream

import (
	"sync"
	"time"

	"github.com/owliabot/ais-sub001/pkg/enginerr"
	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

// Stream is a sequence counter for one run's events.
type Stream struct {
	mu    sync.Mutex
	runID string
	seq   uint64
}

// New creates a Stream starting at startSeq.
func New(runID string, startSeq uint64) *Stream {
	return &Stream{runID: runID, seq: startSeq}
}

// NextRecord builds the next Record, incrementing the internal counter with
// saturation (never wraps past ^uint64(0)).
func (s *Stream) NextRecord(ts time.Time, event enginevents.Event) enginevents.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := s.seq
	if s.seq != ^uint64(0) {
		s.seq++
	}

	return enginevents.Record{
		SchemaTag: planmodel.SchemaEvent,
		RunID:     s.runID,
		Seq:       seq,
		Ts:        ts,
		Event:     event,
	}
}

// NextSeq returns the sequence number that would be assigned to the next
// record, without consuming it.
func (s *Stream) NextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// EnsureMonotonicSequence validates that records form a zero-based, gapless,
// strictly increasing sequence, per spec §4.E.
func EnsureMonotonicSequence(records []enginevents.Record) error {
	if len(records) == 0 {
		return &enginerr.SequenceError{Kind: "Empty"}
	}
	if records[0].Seq != 0 {
		return &enginerr.SequenceError{Kind: "InvalidStart", Actual: records[0].Seq}
	}
	for i := 1; i < len(records); i++ {
		expected := records[i-1].Seq + 1
		if records[i].Seq != expected {
			return &enginerr.SequenceError{
				Kind:     "NonMonotonic",
				Index:    i,
				Expected: expected,
				Actual:   records[i].Seq,
			}
		}
	}
	return nil
}
