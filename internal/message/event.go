package message

import (
	"encoding/json"
	"fmt"
)

// Stream event kinds emitted while an assistant message is generated.
const (
	EventStart  = "start"
	EventPart   = "part"
	EventFinish = "finish"
	EventError  = "error"
)

// Event is one unit of the assistant stream. Part events carry the
// full current value of the part at (MessageID, Index); consumers
// replace, never append, when the same slot arrives again.
type Event struct {
	Kind      string
	MessageID string
	Role      string // start only
	Index     int    // part only
	Part      Part   // part only
	ErrorText string // error only
}

// StartEvent begins an assistant message.
func StartEvent(messageID string) Event {
	return Event{Kind: EventStart, MessageID: messageID, Role: RoleAssistant}
}

// PartEvent updates one part slot of a message.
func PartEvent(messageID string, index int, p Part) Event {
	return Event{Kind: EventPart, MessageID: messageID, Index: index, Part: p}
}

// FinishEvent ends a message stream normally.
func FinishEvent(messageID string) Event {
	return Event{Kind: EventFinish, MessageID: messageID}
}

// ErrorEvent ends a message stream with a terminal error.
func ErrorEvent(messageID, errText string) Event {
	return Event{Kind: EventError, MessageID: messageID, ErrorText: errText}
}

type eventEnvelope struct {
	MessageID string          `json:"messageId"`
	Role      string          `json:"role,omitempty"`
	Index     *int            `json:"index,omitempty"`
	Part      json.RawMessage `json:"part,omitempty"`
	ErrorText string          `json:"errorText,omitempty"`
}

// Payload returns the wire body for the event. The kind travels
// out of band as the SSE event name.
func (e Event) Payload() ([]byte, error) {
	env := eventEnvelope{MessageID: e.MessageID, Role: e.Role, ErrorText: e.ErrorText}
	if e.Kind == EventPart {
		idx := e.Index
		env.Index = &idx
		data, err := MarshalPart(e.Part)
		if err != nil {
			return nil, err
		}
		env.Part = data
	}
	return json.Marshal(env)
}

// ParseEvent decodes an event from its SSE name and payload.
func ParseEvent(kind string, payload []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, fmt.Errorf("decoding %s event: %w", kind, err)
	}

	ev := Event{Kind: kind, MessageID: env.MessageID, Role: env.Role, ErrorText: env.ErrorText}
	switch kind {
	case EventStart, EventFinish, EventError:
	case EventPart:
		if env.Index == nil {
			return Event{}, fmt.Errorf("part event missing index")
		}
		ev.Index = *env.Index
		p, err := UnmarshalPart(env.Part)
		if err != nil {
			return Event{}, err
		}
		ev.Part = p
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", kind)
	}
	return ev, nil
}
