package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/provider"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Stage names a step of book production.
type Stage string

const (
	StageOutline  Stage = "outline"
	StageResearch Stage = "research"
	StageDraft    Stage = "draft"
	StageContinue Stage = "continue"
	StageReview   Stage = "review"
	StageRevise   Stage = "revise"
	StageSaved    Stage = "saved"
	StageBuild    Stage = "build"
	StageDone     Stage = "done"
	StageFailed   Stage = "failed"
)

// Event is a serializable hook callback.
type Event interface {
	event()
}

type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) event() {}

type Request struct {
	RunID     uuid.UUID            `json:"run_id"`
	TurnID    uuid.UUID            `json:"turn_id"`
	Message   messages.UserMessage `json:"message"`
	Sender    string               `json:"sender,omitempty"`
	Timestamp strfmt.DateTime      `json:"timestamp,omitempty"`
	Meta      gjson.Result         `json:"meta,omitempty"`
}

func (Request) event() {}

type Chunk struct {
	RunID     uuid.UUID                 `json:"run_id"`
	TurnID    uuid.UUID                 `json:"turn_id"`
	Chunk     messages.AssistantMessage `json:"chunk"`
	Sender    string                    `json:"sender,omitempty"`
	Timestamp strfmt.DateTime           `json:"timestamp,omitempty"`
	Meta      gjson.Result              `json:"meta,omitempty"`
}

func (Chunk) event() {}

type Response struct {
	RunID     uuid.UUID                 `json:"run_id"`
	TurnID    uuid.UUID                 `json:"turn_id"`
	Response  messages.AssistantMessage `json:"response"`
	Sender    string                    `json:"sender,omitempty"`
	Timestamp strfmt.DateTime           `json:"timestamp,omitempty"`
	Meta      gjson.Result              `json:"meta,omitempty"`
}

func (Response) event() {}

// Progress reports a stage transition of the production workflow. Chapter is
// zero for book level stages.
type Progress struct {
	Book      string          `json:"book,omitempty"`
	Stage     Stage           `json:"stage"`
	Chapter   int             `json:"chapter,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (Progress) event() {}

// Error is an agent failure with the run it happened in.
type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Sender    string          `json:"sender,omitempty"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) event() {}

func (e Error) Error() string {
	if e.Sender == "" {
		return fmt.Sprintf("run %s: %v", e.RunID, e.Err)
	}
	return fmt.Sprintf("%s (run %s): %v", e.Sender, e.RunID, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// FromStreamEvent converts a provider event and attributes it to sender.
func FromStreamEvent(ev provider.StreamEvent, sender string) Event {
	switch e := ev.(type) {
	case provider.Delim:
		return Delim{RunID: e.RunID, TurnID: e.TurnID, Delim: e.Delim}
	case provider.Chunk:
		return Chunk{RunID: e.RunID, TurnID: e.TurnID, Chunk: e.Chunk, Sender: sender, Timestamp: e.Timestamp, Meta: e.Meta}
	case provider.Response:
		return Response{RunID: e.RunID, TurnID: e.TurnID, Response: e.Response, Sender: sender, Timestamp: e.Timestamp, Meta: e.Meta}
	case provider.Error:
		return Error{RunID: e.RunID, TurnID: e.TurnID, Sender: sender, Err: e.Err, Timestamp: e.Timestamp, Meta: e.Meta}
	default:
		panic(fmt.Sprintf("unknown stream event %T", ev))
	}
}

type header struct {
	runID, turnID uuid.UUID
	sender        string
	ts            strfmt.DateTime
	meta          gjson.Result
}

func (h header) write(tpe string) ([]byte, error) {
	result, err := sjson.SetBytes([]byte(`{}`), "type", tpe)
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "run_id", h.runID.String()); err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", h.turnID.String()); err != nil {
		return nil, err
	}
	if h.sender != "" {
		if result, err = sjson.SetBytes(result, "sender", h.sender); err != nil {
			return nil, err
		}
	}
	if !time.Time(h.ts).IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", h.ts.String()); err != nil {
			return nil, err
		}
	}
	if h.meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(h.meta.Raw)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func readHeader(doc gjson.Result) (header, error) {
	var h header
	if v := doc.Get("run_id"); v.Exists() {
		if err := h.runID.UnmarshalText([]byte(v.String())); err != nil {
			return h, fmt.Errorf("invalid run_id: %w", err)
		}
	}
	if v := doc.Get("turn_id"); v.Exists() {
		if err := h.turnID.UnmarshalText([]byte(v.String())); err != nil {
			return h, fmt.Errorf("invalid turn_id: %w", err)
		}
	}
	h.sender = doc.Get("sender").String()
	if v := doc.Get("timestamp"); v.Exists() {
		if err := h.ts.UnmarshalText([]byte(v.String())); err != nil {
			return h, fmt.Errorf("invalid timestamp: %w", err)
		}
	}
	if v := doc.Get("meta"); v.Exists() {
		h.meta = v
	}
	return h, nil
}

// ToJSON serializes an event with its type tag.
func ToJSON(event Event) ([]byte, error) {
	switch e := event.(type) {
	case Delim:
		b, err := header{runID: e.RunID, turnID: e.TurnID}.write("delim")
		if err != nil {
			return nil, err
		}
		return sjson.SetBytes(b, "delim", e.Delim)
	case Request:
		b, err := header{e.RunID, e.TurnID, e.Sender, e.Timestamp, e.Meta}.write("request")
		if err != nil {
			return nil, err
		}
		return setRaw(b, "message", e.Message)
	case Chunk:
		b, err := header{e.RunID, e.TurnID, e.Sender, e.Timestamp, e.Meta}.write("chunk")
		if err != nil {
			return nil, err
		}
		return setRaw(b, "chunk", e.Chunk)
	case Response:
		b, err := header{e.RunID, e.TurnID, e.Sender, e.Timestamp, e.Meta}.write("response")
		if err != nil {
			return nil, err
		}
		return setRaw(b, "response", e.Response)
	case Progress:
		b, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		return sjson.SetBytes(b, "type", "progress")
	case Error:
		b, err := header{e.RunID, e.TurnID, e.Sender, e.Timestamp, e.Meta}.write("error")
		if err != nil {
			return nil, err
		}
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		return sjson.SetBytes(b, "error", msg)
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}
}

func setRaw(b []byte, path string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return sjson.SetRawBytes(b, path, raw)
}

// FromJSON parses an event written by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}
	doc := gjson.ParseBytes(data)
	tpe := doc.Get("type").String()

	if tpe == "progress" {
		var p Progress
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	}

	h, err := readHeader(doc)
	if err != nil {
		return nil, err
	}
	switch tpe {
	case "delim":
		return Delim{RunID: h.runID, TurnID: h.turnID, Delim: doc.Get("delim").String()}, nil
	case "request":
		var msg messages.UserMessage
		if err := json.Unmarshal([]byte(doc.Get("message").Raw), &msg); err != nil {
			return nil, fmt.Errorf("invalid message: %w", err)
		}
		return Request{RunID: h.runID, TurnID: h.turnID, Message: msg, Sender: h.sender, Timestamp: h.ts, Meta: h.meta}, nil
	case "chunk":
		var msg messages.AssistantMessage
		if err := json.Unmarshal([]byte(doc.Get("chunk").Raw), &msg); err != nil {
			return nil, fmt.Errorf("invalid chunk: %w", err)
		}
		return Chunk{RunID: h.runID, TurnID: h.turnID, Chunk: msg, Sender: h.sender, Timestamp: h.ts, Meta: h.meta}, nil
	case "response":
		var msg messages.AssistantMessage
		if err := json.Unmarshal([]byte(doc.Get("response").Raw), &msg); err != nil {
			return nil, fmt.Errorf("invalid response: %w", err)
		}
		return Response{RunID: h.runID, TurnID: h.turnID, Response: msg, Sender: h.sender, Timestamp: h.ts, Meta: h.meta}, nil
	case "error":
		return Error{RunID: h.runID, TurnID: h.turnID, Sender: h.sender, Err: errors.New(doc.Get("error").String()), Timestamp: h.ts, Meta: h.meta}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", tpe)
	}
}
