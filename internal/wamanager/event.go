package wamanager

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

// EventKind enumerates the canonical event kinds every raw protocol
// notification is normalized into.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventReady         EventKind = "ready"
	EventAuthenticated EventKind = "authenticated"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
	EventMessage       EventKind = "message"
	EventMessageCreate EventKind = "message_create"
	EventMessageAck    EventKind = "message_ack"
	EventMessageRevoke EventKind = "message_revoke"
	EventGroupJoin     EventKind = "group_join"
	EventGroupLeave    EventKind = "group_leave"
	EventGroupUpdate   EventKind = "group_update"
	EventCall          EventKind = "call"
)

// Event is the canonical envelope published to the bus and journaled.
type Event struct {
	ID         int64       `json:"id,string"`
	InstanceID int64       `json:"instance_id,string"`
	Kind       EventKind   `json:"kind"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode serializes the envelope for the journal and webhook bodies.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent deserializes a journaled envelope. Payload shape is kind
// dependent and decodes as generic JSON.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
