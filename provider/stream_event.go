package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	delimJSON    = []byte(`{"type":"delim"}`)
	chunkJSON    = []byte(`{"type":"chunk"}`)
	responseJSON = []byte(`{"type":"response"}`)
	errorJSON    = []byte(`{"type":"error"}`)
)

type StreamEvent interface {
	streamEvent()
}

type Delim struct {
	RunID  uuid.UUID `json:"run_id"`
	TurnID uuid.UUID `json:"turn_id"`
	Delim  string    `json:"delim"`
}

func (Delim) streamEvent() {}

type Chunk struct {
	RunID     uuid.UUID                 `json:"run_id"`
	TurnID    uuid.UUID                 `json:"turn_id"`
	Chunk     messages.AssistantMessage `json:"chunk"`
	Timestamp strfmt.DateTime           `json:"timestamp,omitempty"`
	Meta      gjson.Result              `json:"meta,omitempty"`
}

func (Chunk) streamEvent() {}

type Response struct {
	RunID      uuid.UUID                  `json:"run_id"`
	TurnID     uuid.UUID                  `json:"turn_id"`
	Checkpoint shorttermmemory.Checkpoint `json:"checkpoint"`
	Response   messages.AssistantMessage  `json:"response"`
	Timestamp  strfmt.DateTime            `json:"timestamp,omitempty"`
	Meta       gjson.Result               `json:"meta,omitempty"`
}

func (Response) streamEvent() {}

type Error struct {
	RunID     uuid.UUID       `json:"run_id"`
	TurnID    uuid.UUID       `json:"turn_id"`
	Err       error           `json:"error"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
	Meta      gjson.Result    `json:"meta,omitempty"`
}

func (Error) streamEvent() {}

func (e Error) Error() string {
	return fmt.Sprintf("run_id: %s, turn_id: %s, timestamp: %s, error: %v", e.RunID, e.TurnID, e.Timestamp, e.Err)
}

func (e Error) Unwrap() error {
	return e.Err
}

// envelope writes the fields shared by every event.
func envelope(tpl []byte, runID, turnID uuid.UUID, ts strfmt.DateTime, meta gjson.Result) ([]byte, error) {
	result, err := sjson.SetBytes(tpl, "run_id", runID.String())
	if err != nil {
		return nil, err
	}
	if result, err = sjson.SetBytes(result, "turn_id", turnID.String()); err != nil {
		return nil, err
	}
	if !time.Time(ts).IsZero() {
		if result, err = sjson.SetBytes(result, "timestamp", ts.String()); err != nil {
			return nil, err
		}
	}
	if meta.Exists() {
		if result, err = sjson.SetRawBytes(result, "meta", []byte(meta.Raw)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// readEnvelope validates the type tag and reads the shared fields.
func readEnvelope(data []byte, tpe string, runID, turnID *uuid.UUID, ts *strfmt.DateTime, meta *gjson.Result) (gjson.Result, error) {
	if !gjson.ValidBytes(data) {
		return gjson.Result{}, fmt.Errorf("invalid json: %s", data)
	}
	doc := gjson.ParseBytes(data)
	if doc.Get("type").String() != tpe {
		return doc, fmt.Errorf("missing or invalid type, expected '%s'", tpe)
	}

	rid := doc.Get("run_id")
	if !rid.Exists() {
		return doc, errors.New("missing required field 'run_id'")
	}
	if err := runID.UnmarshalText([]byte(rid.String())); err != nil {
		return doc, fmt.Errorf("invalid run_id: %w", err)
	}
	tid := doc.Get("turn_id")
	if !tid.Exists() {
		return doc, errors.New("missing required field 'turn_id'")
	}
	if err := turnID.UnmarshalText([]byte(tid.String())); err != nil {
		return doc, fmt.Errorf("invalid turn_id: %w", err)
	}
	if ts != nil {
		if v := doc.Get("timestamp"); v.Exists() {
			if err := ts.UnmarshalText([]byte(v.String())); err != nil {
				return doc, fmt.Errorf("invalid timestamp: %w", err)
			}
		}
	}
	if meta != nil {
		if v := doc.Get("meta"); v.Exists() {
			*meta = v
		}
	}
	return doc, nil
}

func (d Delim) MarshalJSON() ([]byte, error) {
	result, err := envelope(delimJSON, d.RunID, d.TurnID, strfmt.DateTime{}, gjson.Result{})
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(result, "delim", d.Delim)
}

func (d *Delim) UnmarshalJSON(data []byte) error {
	doc, err := readEnvelope(data, "delim", &d.RunID, &d.TurnID, nil, nil)
	if err != nil {
		return err
	}
	delim := doc.Get("delim")
	if !delim.Exists() {
		return errors.New("missing required field 'delim'")
	}
	d.Delim = delim.String()
	return nil
}

func (c Chunk) MarshalJSON() ([]byte, error) {
	result, err := envelope(chunkJSON, c.RunID, c.TurnID, c.Timestamp, c.Meta)
	if err != nil {
		return nil, err
	}
	chunk, err := json.Marshal(c.Chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk: %w", err)
	}
	return sjson.SetRawBytes(result, "chunk", chunk)
}

func (c *Chunk) UnmarshalJSON(data []byte) error {
	doc, err := readEnvelope(data, "chunk", &c.RunID, &c.TurnID, &c.Timestamp, &c.Meta)
	if err != nil {
		return err
	}
	chunk := doc.Get("chunk")
	if !chunk.Exists() {
		return errors.New("missing required field 'chunk'")
	}
	if err := json.Unmarshal([]byte(chunk.Raw), &c.Chunk); err != nil {
		return fmt.Errorf("invalid chunk: %w", err)
	}
	return nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	result, err := envelope(responseJSON, r.RunID, r.TurnID, r.Timestamp, r.Meta)
	if err != nil {
		return nil, err
	}
	cp, err := json.Marshal(r.Checkpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if result, err = sjson.SetRawBytes(result, "checkpoint", cp); err != nil {
		return nil, err
	}
	resp, err := json.Marshal(r.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return sjson.SetRawBytes(result, "response", resp)
}

func (r *Response) UnmarshalJSON(data []byte) error {
	doc, err := readEnvelope(data, "response", &r.RunID, &r.TurnID, &r.Timestamp, &r.Meta)
	if err != nil {
		return err
	}
	cp := doc.Get("checkpoint")
	if !cp.Exists() {
		return errors.New("missing required field 'checkpoint'")
	}
	if err := json.Unmarshal([]byte(cp.Raw), &r.Checkpoint); err != nil {
		return fmt.Errorf("invalid checkpoint: %w", err)
	}
	resp := doc.Get("response")
	if !resp.Exists() {
		return errors.New("missing required field 'response'")
	}
	if err := json.Unmarshal([]byte(resp.Raw), &r.Response); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

func (e Error) MarshalJSON() ([]byte, error) {
	result, err := envelope(errorJSON, e.RunID, e.TurnID, e.Timestamp, e.Meta)
	if err != nil {
		return nil, err
	}
	if e.Err == nil {
		return result, nil
	}
	return sjson.SetBytes(result, "error", e.Err.Error())
}

func (e *Error) UnmarshalJSON(data []byte) error {
	doc, err := readEnvelope(data, "error", &e.RunID, &e.TurnID, &e.Timestamp, &e.Meta)
	if err != nil {
		return err
	}
	msg := doc.Get("error")
	if !msg.Exists() {
		return errors.New("missing required field 'error'")
	}
	e.Err = errors.New(msg.String())
	return nil
}
