package shorttermmemory

import (
	"iter"
	"slices"

	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/pkg/uuidx"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// AggregatedMessages is an ordered list of conversation messages.
type AggregatedMessages []messages.Message[messages.ModelMessage]

func (a AggregatedMessages) Len() int {
	return len(a)
}

// New creates an empty thread with a fresh id.
func New() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: make(AggregatedMessages, 0),
	}
}

// Aggregator is a conversation thread. It is not safe for concurrent use; fork
// it to hand a copy to another goroutine.
type Aggregator struct {
	id       uuid.UUID
	messages AggregatedMessages
	initLen  int // length at fork time
	usage    Usage
}

func (a *Aggregator) ID() uuid.UUID {
	return a.id
}

func (a *Aggregator) Len() int {
	return a.messages.Len()
}

// TurnLen is the number of messages added since the thread was forked.
func (a *Aggregator) TurnLen() int {
	return len(a.messages) - a.initLen
}

// Messages returns a copy of the messages.
func (a *Aggregator) Messages() AggregatedMessages {
	return slices.Clone(a.messages)
}

func (a *Aggregator) MessagesIter() iter.Seq[messages.Message[messages.ModelMessage]] {
	return slices.Values(a.messages)
}

// Last returns the most recent message, if any.
func (a *Aggregator) Last() (messages.Message[messages.ModelMessage], bool) {
	if len(a.messages) == 0 {
		return messages.Message[messages.ModelMessage]{}, false
	}
	return a.messages[len(a.messages)-1], true
}

func eraseType[T messages.ModelMessage](m messages.Message[T]) messages.Message[messages.ModelMessage] {
	return messages.Message[messages.ModelMessage]{
		RunID:     m.RunID,
		TurnID:    m.TurnID,
		Payload:   m.Payload,
		Sender:    m.Sender,
		Timestamp: m.Timestamp,
		Meta:      m.Meta,
	}
}

// AddMessage appends a message of any payload type.
func AddMessage[T messages.ModelMessage](a *Aggregator, m messages.Message[T]) {
	a.add(eraseType(m))
}

func (a *Aggregator) AddUserPrompt(m messages.Message[messages.UserMessage]) {
	a.add(eraseType(m))
}

func (a *Aggregator) AddAssistantMessage(m messages.Message[messages.AssistantMessage]) {
	a.add(eraseType(m))
}

func (a *Aggregator) add(m messages.Message[messages.ModelMessage]) {
	a.messages = append(a.messages, m)
}

func (a *Aggregator) Usage() Usage {
	return a.usage
}

func (a *Aggregator) AddUsage(u *Usage) {
	a.usage.AddUsage(u)
}

// Fork returns a new thread holding a copy of the current messages. Only the
// messages added to the fork after this call are carried back by Join.
func (a *Aggregator) Fork() *Aggregator {
	return &Aggregator{
		id:       uuidx.New(),
		messages: slices.Clone(a.messages),
		initLen:  a.Len(),
	}
}

// Join appends the messages b gained since it was forked and adds its usage.
//
//	original := New()            // [1,2]
//	forked := original.Fork()    // [1,2], initLen=2
//	original.AddUserPrompt(m3)   // [1,2,3]
//	forked.AddUserPrompt(m4)     // [1,2,4]
//	original.Join(forked)        // [1,2,3,4]
func (a *Aggregator) Join(b *Aggregator) {
	a.messages = append(a.messages, b.messages[b.initLen:]...)
	a.usage.AddUsage(&b.usage)
}

// Checkpoint snapshots the thread.
func (a *Aggregator) Checkpoint() Checkpoint {
	return Checkpoint{
		id:       a.id,
		messages: slices.Clone(a.messages),
		usage:    a.usage,
		initLen:  a.initLen,
	}
}

// Checkpoint is an immutable snapshot of a thread.
type Checkpoint struct {
	id       uuid.UUID
	messages AggregatedMessages
	usage    Usage
	initLen  int
}

// NewCheckpoint builds a checkpoint that carries only usage. Providers use it
// to report the tokens spent on a response.
func NewCheckpoint(id uuid.UUID, usage Usage) Checkpoint {
	return Checkpoint{id: id, usage: usage}
}

func (c *Checkpoint) ID() uuid.UUID {
	return c.id
}

func (c *Checkpoint) Messages() AggregatedMessages {
	return slices.Clone(c.messages)
}

func (c *Checkpoint) Usage() Usage {
	return c.usage
}

// MergeInto appends the checkpoint's messages past its fork point to other and
// adds its usage.
func (c *Checkpoint) MergeInto(other *Aggregator) {
	if c.initLen < len(c.messages) {
		other.messages = append(other.messages, c.messages[c.initLen:]...)
	}
	other.usage.AddUsage(&c.usage)
	if other.id == uuid.Nil {
		other.id = c.id
	}
}

func (c Checkpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       string                                     `json:"id"`
		Messages []*messages.Message[messages.ModelMessage] `json:"messages"`
		Usage    Usage                                      `json:"usage"`
		InitLen  int                                        `json:"init_len"`
	}{
		ID:       c.id.String(),
		Messages: ptrSlice(c.messages),
		Usage:    c.usage,
		InitLen:  c.initLen,
	})
}

func ptrSlice[T any](in []T) (out []*T) {
	out = make([]*T, len(in))
	for i := range in {
		out[i] = &in[i]
	}
	return
}

func (c *Checkpoint) UnmarshalJSON(data []byte) error {
	var tmp struct {
		ID       string                                    `json:"id"`
		Messages []messages.Message[messages.ModelMessage] `json:"messages"`
		Usage    Usage                                     `json:"usage"`
		InitLen  int                                       `json:"init_len"`
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	id, err := uuid.Parse(tmp.ID)
	if err != nil {
		return err
	}
	c.id = id
	c.messages = tmp.Messages
	c.usage = tmp.Usage
	c.initLen = tmp.InitLen
	return nil
}
