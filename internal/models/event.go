package models

import "encoding/json"

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// RecordEvent is a change notification for one record of a collection.
type RecordEvent struct {
	Kind       EventKind       `json:"kind"`
	Collection string          `json:"collection"`
	RecordID   string          `json:"record_id"`
	Record     json.RawMessage `json:"record,omitempty"`
}

// Decode unmarshals the record payload into out.
func (e RecordEvent) Decode(out any) error {
	return json.Unmarshal(e.Record, out)
}
