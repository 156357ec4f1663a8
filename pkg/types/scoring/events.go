package scoringtypes

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// EventsTopic is the in-process topic carrying DbEvents.
const EventsTopic = "scoring.events"

// Metadata keys set on every event message.
const (
	MetadataEventType  = "event_type"
	MetadataRecordKind = "record_kind"
)

// EventType is the mutation an event describes.
type EventType string

const (
	EventAdd    EventType = "add"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ErrUnknownRecordKind is returned when decoding a message with an unexpected kind.
var ErrUnknownRecordKind = errors.New("unknown record kind")

// DbEvent describes one committed mutation. Record carries the full field
// snapshot (the state before removal for deletes).
type DbEvent struct {
	Type   EventType `json:"type"`
	Record Record    `json:"record"`
}

func Added(r Record) DbEvent   { return DbEvent{Type: EventAdd, Record: r} }
func Updated(r Record) DbEvent { return DbEvent{Type: EventUpdate, Record: r} }
func Deleted(r Record) DbEvent { return DbEvent{Type: EventDelete, Record: r} }

// Redacted returns the event with secrets removed from its record.
func (e DbEvent) Redacted() DbEvent {
	e.Record = Redact(e.Record)
	return e
}

// NewMessage encodes e as a watermill message. The record is the payload; the
// event type, record kind and correlation id travel as metadata.
func NewMessage(e DbEvent, correlationID string) (*message.Message, error) {
	if e.Record == nil {
		return nil, errors.New("event has no record")
	}
	payload, err := json.Marshal(e.Record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s record: %w", e.Record.Kind(), err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(MetadataEventType, string(e.Type))
	msg.Metadata.Set(MetadataRecordKind, string(e.Record.Kind()))
	if correlationID != "" {
		middleware.SetCorrelationID(correlationID, msg)
	}
	return msg, nil
}

// DecodeMessage is the inverse of NewMessage.
func DecodeMessage(msg *message.Message) (DbEvent, error) {
	evt := DbEvent{Type: EventType(msg.Metadata.Get(MetadataEventType))}
	switch evt.Type {
	case EventAdd, EventUpdate, EventDelete:
	default:
		return DbEvent{}, fmt.Errorf("unknown event type %q", evt.Type)
	}

	var (
		rec Record
		err error
	)
	switch kind := RecordKind(msg.Metadata.Get(MetadataRecordKind)); kind {
	case KindCompetition:
		rec, err = unmarshalRecord[Competition](msg.Payload)
	case KindTask:
		rec, err = unmarshalRecord[Task](msg.Payload)
	case KindPlayer:
		rec, err = unmarshalRecord[Player](msg.Payload)
	case KindSolve:
		rec, err = unmarshalRecord[Solve](msg.Payload)
	default:
		return DbEvent{}, fmt.Errorf("%w: %q", ErrUnknownRecordKind, kind)
	}
	if err != nil {
		return DbEvent{}, err
	}
	evt.Record = rec
	return evt, nil
}

func unmarshalRecord[R Record](payload []byte) (Record, error) {
	var r R
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s record: %w", r.Kind(), err)
	}
	return r, nil
}
