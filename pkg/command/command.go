// Package command implements the typed command envelope pipeline of spec
// §4.F: deduplication and emission of accept/reject events, grounded on the
// teacher's contracts.Envelope shape and executor.SafeExecutor's
// checkIdempotency idiom.
package command

import (
	"time"

	"github.com/owliabot/ais-sub001/pkg/enginevents"
	"github.com/owliabot/ais-sub001/pkg/eventstream"
	"github.com/owliabot/ais-sub001/pkg/planmodel"
)

// Type is a command envelope type.
type Type string

const (
	ApplyPatches   Type = "apply_patches"
	UserConfirm    Type = "user_confirm"
	SelectProvider Type = "select_provider"
	Cancel         Type = "cancel"
)

// Envelope is the typed command input (spec §3).
type Envelope struct {
	SchemaTag string                    `json:"schema_tag"`
	Command   struct {
		ID   string                 `json:"id"`
		Type Type                   `json:"type"`
		Data map[string]any `json:"data"`
	} `json:"command"`
}

// DedupMode controls how a duplicate command id is handled.
type DedupMode string

const (
	AcceptNoop DedupMode = "accept_noop"
	Reject     DedupMode = "reject"
)

// Deduper tracks accepted command ids for one run.
type Deduper struct {
	mode DedupMode
	seen map[string]bool
}

// NewDeduper creates a Deduper with no prior history.
func NewDeduper(mode DedupMode) *Deduper {
	return &Deduper{mode: mode, seen: make(map[string]bool)}
}

// WithSeenIDs seeds a Deduper's accepted-id set, used on restart from a
// checkpoint.
func WithSeenIDs(mode DedupMode, ids []string) *Deduper {
	d := NewDeduper(mode)
	for _, id := range ids {
		d.seen[id] = true
	}
	return d
}

// SeenIDs returns all accepted command ids.
func (d *Deduper) SeenIDs() []string {
	out := make([]string, 0, len(d.seen))
	for id := range d.seen {
		out = append(out, id)
	}
	return out
}

// Outcome describes how a command id was processed against the dedup set.
type Outcome struct {
	Accepted  bool
	Duplicate bool
	Noop      bool
	Reason    string
}

// Check processes a command id against the dedup set and records it as seen
// if accepted, per spec §4.F.
func (d *Deduper) Check(commandID string) Outcome {
	if d.seen[commandID] {
		switch d.mode {
		case AcceptNoop:
			return Outcome{Accepted: true, Duplicate: true, Noop: true, Reason: "duplicate_command_id"}
		default: // Reject
			return Outcome{Accepted: false, Duplicate: true, Reason: "duplicate_command_id"}
		}
	}
	d.seen[commandID] = true
	return Outcome{Accepted: true}
}

// EmitAcceptedOrRejected builds the command_accepted/command_rejected event
// for a dedup Outcome and appends it to the stream.
func EmitAcceptedOrRejected(stream *eventstream.Stream, ts time.Time, commandID string, outcome Outcome) enginevents.Record {
	data := enginevents.NewOrderedMap().
		Set("command_id", commandID).
		Set("accepted", outcome.Accepted)
	if outcome.Duplicate {
		data.Set("duplicate", true)
		data.Set("reason", outcome.Reason)
	}
	if outcome.Noop {
		data.Set("noop", true)
	}

	eventType := enginevents.CommandAccepted
	if !outcome.Accepted {
		eventType = enginevents.CommandRejected
	}

	return stream.NextRecord(ts, enginevents.Event{Type: eventType, Data: data})
}

// SchemaTag for command envelopes, spec §6.
const SchemaTag = planmodel.SchemaCommand
