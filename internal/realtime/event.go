package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/PouplarWesel/Shrubbi-sub000/internal/domain"
)

// Operation is the change kind carried by a stream event.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// Table names the stream publishes changes for.
const (
	TableMessages    = "channel_messages"
	TableThreads     = "channel_threads"
	TableAttachments = "message_attachments"
	TableReactions   = "message_reactions"
	TableEvents      = "city_events"
	TableAttendees   = "event_attendees"
)

// ChangeEvent is one row-change notification. Record carries the new row for
// INSERT/UPDATE; OldRecord carries the prior row for UPDATE/DELETE. Payloads
// are decoded per table with the typed helpers below rather than accessed as
// untyped maps.
type ChangeEvent struct {
	Table     string          `json:"table"`
	Op        Operation       `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// DecodeEvent parses a raw stream payload.
func DecodeEvent(payload []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("decode change event: %w", err)
	}
	switch ev.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return ChangeEvent{}, fmt.Errorf("decode change event: unknown operation %q", ev.Op)
	}
	if ev.Table == "" {
		return ChangeEvent{}, fmt.Errorf("decode change event: missing table")
	}
	return ev, nil
}

// row returns the payload the handler should act on: the new row when
// present, otherwise the old row (DELETE events only carry old_record).
func (e ChangeEvent) row() json.RawMessage {
	if len(e.Record) > 0 {
		return e.Record
	}
	return e.OldRecord
}

func (e ChangeEvent) Message() (domain.Message, error) {
	var m domain.Message
	if err := json.Unmarshal(e.row(), &m); err != nil {
		return domain.Message{}, fmt.Errorf("decode message row: %w", err)
	}
	return m, nil
}

func (e ChangeEvent) Thread() (domain.Thread, error) {
	var t domain.Thread
	if err := json.Unmarshal(e.row(), &t); err != nil {
		return domain.Thread{}, fmt.Errorf("decode thread row: %w", err)
	}
	return t, nil
}

func (e ChangeEvent) Attachment() (domain.Attachment, error) {
	var a domain.Attachment
	if err := json.Unmarshal(e.row(), &a); err != nil {
		return domain.Attachment{}, fmt.Errorf("decode attachment row: %w", err)
	}
	return a, nil
}

func (e ChangeEvent) Reaction() (domain.Reaction, error) {
	var r domain.Reaction
	if err := json.Unmarshal(e.row(), &r); err != nil {
		return domain.Reaction{}, fmt.Errorf("decode reaction row: %w", err)
	}
	return r, nil
}
