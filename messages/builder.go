package messages

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// New starts a message builder stamped with the current time.
func New() messageBuilder {
	return messageBuilder{timestamp: strfmt.DateTime(time.Now())}
}

type messageBuilder struct {
	runID     uuid.UUID
	turnID    uuid.UUID
	sender    string
	timestamp strfmt.DateTime
	meta      gjson.Result
}

func (b messageBuilder) WithSender(sender string) messageBuilder {
	b.sender = sender
	return b
}

func (b messageBuilder) WithRunID(id uuid.UUID) messageBuilder {
	b.runID = id
	return b
}

func (b messageBuilder) WithTurnID(id uuid.UUID) messageBuilder {
	b.turnID = id
	return b
}

func (b messageBuilder) WithTimestamp(ts strfmt.DateTime) messageBuilder {
	b.timestamp = ts
	return b
}

func (b messageBuilder) WithMeta(meta gjson.Result) messageBuilder {
	b.meta = meta
	return b
}

func (b messageBuilder) UserPrompt(content string) Message[UserMessage] {
	return build(b, UserMessage{Content: content})
}

func (b messageBuilder) AssistantMessage(content string) Message[AssistantMessage] {
	return build(b, AssistantMessage{Content: content})
}

func (b messageBuilder) Instructions(content string) Message[InstructionsMessage] {
	return build(b, InstructionsMessage{Content: content})
}

func build[T ModelMessage](b messageBuilder, payload T) Message[T] {
	return Message[T]{
		RunID:     b.runID,
		TurnID:    b.turnID,
		Payload:   payload,
		Sender:    b.sender,
		Timestamp: b.timestamp,
		Meta:      b.meta,
	}
}
