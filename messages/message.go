package messages

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ModelMessage is implemented by every payload a Message can carry.
type ModelMessage interface {
	message()
	// Role is the chat role of the payload: system, user or assistant.
	Role() string
}

// Request is a payload sent to the model.
type Request interface {
	ModelMessage
	request()
}

// Response is a payload produced by the model.
type Response interface {
	ModelMessage
	response()
}

// InstructionsMessage holds the rendered system instructions of an agent.
type InstructionsMessage struct {
	Content string `json:"content"`
}

func (InstructionsMessage) message()     {}
func (InstructionsMessage) Role() string { return "system" }

// UserMessage is a prompt addressed to an agent.
type UserMessage struct {
	Content string `json:"content"`
}

func (UserMessage) message()     {}
func (UserMessage) request()     {}
func (UserMessage) Role() string { return "user" }

// AssistantMessage is a (possibly partial) reply of the model.
type AssistantMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

func (AssistantMessage) message()     {}
func (AssistantMessage) response()    {}
func (AssistantMessage) Role() string { return "assistant" }

// Message is a payload with its conversation metadata.
type Message[T ModelMessage] struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Payload   T               `json:"payload"`
	Sender    string          `json:"sender,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

// Text returns the textual content of the payload.
func (m Message[T]) Text() string {
	switch p := any(m.Payload).(type) {
	case UserMessage:
		return p.Content
	case AssistantMessage:
		if p.Content == "" {
			return p.Refusal
		}
		return p.Content
	case InstructionsMessage:
		return p.Content
	}
	return ""
}

func payloadType(p ModelMessage) (string, error) {
	switch p.(type) {
	case UserMessage:
		return "user", nil
	case AssistantMessage:
		return "assistant", nil
	case InstructionsMessage:
		return "instructions", nil
	default:
		return "", fmt.Errorf("unknown message payload %T", p)
	}
}

// MarshalJSON writes the message as a flat object tagged with the payload type.
func (m Message[T]) MarshalJSON() ([]byte, error) {
	tpe, err := payloadType(m.Payload)
	if err != nil {
		return nil, err
	}
	result, err := sjson.SetBytes([]byte(`{}`), "type", tpe)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "run_id", m.RunID.String()); err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", m.TurnID.String()); err != nil {
		return nil, err
	}
	if m.Sender != "" {
		if result, err = sjson.SetBytes(result, "sender", m.Sender); err != nil {
			return nil, err
		}
	}
	if !time.Time(m.Timestamp).IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", m.Timestamp.String()); err != nil {
			return nil, err
		}
	}
	if m.Meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(m.Meta.Raw)); err != nil {
			return nil, err
		}
	}

	switch p := any(m.Payload).(type) {
	case UserMessage:
		result, err = sjson.SetBytes(result, "content", p.Content)
	case AssistantMessage:
		if result, err = sjson.SetBytes(result, "content", p.Content); err == nil && p.Refusal != "" {
			result, err = sjson.SetBytes(result, "refusal", p.Refusal)
		}
	case InstructionsMessage:
		result, err = sjson.SetBytes(result, "content", p.Content)
	}
	return result, err
}

// UnmarshalJSON reads a message written by MarshalJSON. The payload type in the
// document must be assignable to T.
func (m *Message[T]) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}
	doc := gjson.ParseBytes(data)

	var payload ModelMessage
	switch tpe := doc.Get("type").String(); tpe {
	case "user":
		payload = UserMessage{Content: doc.Get("content").String()}
	case "assistant":
		payload = AssistantMessage{Content: doc.Get("content").String(), Refusal: doc.Get("refusal").String()}
	case "instructions":
		payload = InstructionsMessage{Content: doc.Get("content").String()}
	default:
		return fmt.Errorf("missing or unknown message type %q", tpe)
	}
	typed, ok := payload.(T)
	if !ok {
		var zero T
		return fmt.Errorf("message of type %T can't be decoded into %T", payload, zero)
	}
	m.Payload = typed

	if v := doc.Get("run_id"); v.Exists() {
		if err := m.RunID.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid run_id: %w", err)
		}
	}
	if v := doc.Get("turn_id"); v.Exists() {
		if err := m.TurnID.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid turn_id: %w", err)
		}
	}
	m.Sender = doc.Get("sender").String()
	if v := doc.Get("timestamp"); v.Exists() {
		if err := m.Timestamp.UnmarshalText([]byte(v.String())); err != nil {
			return fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if v := doc.Get("meta"); v.Exists() {
		m.Meta = v
	}
	return nil
}
