// Package enginevents defines the closed EventType enum of spec §4.E and
// the ordered-map Event/Record shapes, shared by the runner, command
// pipeline, event stream, trace, and replay.
package enginevents

import "time"

// EventType is one of the closed set of event kinds spec §4.E enumerates.
type EventType string

const (
	PlanReady        EventType = "plan_ready"
	NodeReady        EventType = "node_ready"
	NodeBlocked      EventType = "node_blocked"
	NeedUserConfirm  EventType = "need_user_confirm"
	QueryResult      EventType = "query_result"
	TxPrepared       EventType = "tx_prepared"
	TxSent           EventType = "tx_sent"
	TxConfirmed      EventType = "tx_confirmed"
	NodeWaiting      EventType = "node_waiting"
	CheckpointSaved  EventType = "checkpoint_saved"
	EnginePaused     EventType = "engine_paused"
	ErrorEvent       EventType = "error"
	SolverApplied    EventType = "solver_applied"
	NodePaused       EventType = "node_paused"
	Skipped          EventType = "skipped"
	CommandAccepted  EventType = "command_accepted"
	CommandRejected  EventType = "command_rejected"
	PatchApplied     EventType = "patch_applied"
	PatchRejected    EventType = "patch_rejected"
)

// OrderedMap preserves key insertion order for deterministic JSON encoding
// of the event "data"/"extensions" fields, which spec §3 requires to be
// ordered maps.
type OrderedMap struct {
	keys   []string
	values map[string]any
}

// NewOrderedMap creates an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]any)}
}

// Set inserts or updates a key, preserving first-insertion order.
func (m *OrderedMap) Set(key string, value any) *OrderedMap {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value for key and whether it was present.
func (m *OrderedMap) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns keys in insertion order.
func (m *OrderedMap) Keys() []string {
	return append([]string(nil), m.keys...)
}

// MarshalJSON encodes the map preserving insertion order.
func (m *OrderedMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return marshalOrdered(m.keys, m.values)
}

// UnmarshalJSON decodes a JSON object preserving source key order using the
// standard decoder's token stream.
func (m *OrderedMap) UnmarshalJSON(b []byte) error {
	keys, values, err := decodeOrdered(b)
	if err != nil {
		return err
	}
	m.keys = keys
	m.values = values
	return nil
}

// Event is the inner event payload of an Event record.
type Event struct {
	Type       EventType   `json:"type"`
	NodeID     string      `json:"node_id,omitempty"`
	Data       *OrderedMap `json:"data"`
	Extensions *OrderedMap `json:"extensions,omitempty"`
}

// Record is one line of the event stream (spec §3's Event record).
type Record struct {
	SchemaTag string    `json:"schema_tag"`
	RunID     string    `json:"run_id"`
	Seq       uint64    `json:"seq"`
	Ts        time.Time `json:"ts"`
	Event     Event     `json:"event"`
}
