// Package anthropic implements provider.Provider with the Anthropic messages
// API. Replies are always requested in one piece; a streaming request gets the
// whole reply as a single chunk followed by the response.
package anthropic

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/provider"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
)

const defaultMaxTokens = 4096

var _ provider.Provider = (*Provider)(nil)

type Provider struct {
	client *anthropic.Client
}

func New(options ...option.RequestOption) *Provider {
	opts := append([]option.RequestOption{option.WithMaxRetries(0)}, options...)
	client := anthropic.NewClient(opts...)
	return &Provider{client: &client}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (anthropic.MessageNewParams, error) {
	if params.Model == nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("model is required")
	}
	if params.Thread == nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("thread is required")
	}

	maxTokens := int64(defaultMaxTokens)
	if params.MaxTokens > 0 {
		maxTokens = int64(params.MaxTokens)
	}
	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(params.Model.Name()),
		Messages:  messagesToAnthropic(params.Thread.MessagesIter()),
		MaxTokens: maxTokens,
	}
	if params.Temperature != nil {
		req.Temperature = anthropic.Float(*params.Temperature)
	}

	system, err := systemPrompt(params)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}
	if system != "" {
		req.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return req, nil
}

// systemPrompt appends the response schema to the instructions; the messages
// API has no native structured output.
func systemPrompt(params *provider.CompletionParams) (string, error) {
	rs := params.ResponseSchema
	if rs == nil || rs.Schema == nil {
		return params.Instructions, nil
	}
	schema, err := json.Marshal(rs.Schema)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response schema: %w", err)
	}
	var b strings.Builder
	b.WriteString(params.Instructions)
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Reply with a single JSON document named %q", rs.Name)
	if rs.Description != "" {
		fmt.Fprintf(&b, " (%s)", rs.Description)
	}
	fmt.Fprintf(&b, " that validates against this JSON schema, without any other text:\n%s", schema)
	return b.String(), nil
}

func messagesToAnthropic(msgs iter.Seq[messages.Message[messages.ModelMessage]]) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	for message := range msgs {
		switch msg := message.Payload.(type) {
		case messages.UserMessage:
			if msg.Content != "" {
				result = append(result, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
			}
		case messages.AssistantMessage:
			if msg.Content != "" {
				result = append(result, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
			}
		}
	}
	return result
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	req, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 4)
	go func() {
		defer close(events)
		turnID := params.Thread.ID()

		resp, err := p.client.Messages.New(ctx, req)
		if err != nil {
			events <- provider.Error{
				RunID:     params.RunID,
				TurnID:    turnID,
				Err:       fmt.Errorf("anthropic api error: %w", err),
				Timestamp: strfmt.DateTime(time.Now()),
			}
			return
		}

		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.AsText().Text)
			}
		}
		reply := messages.AssistantMessage{Content: text.String()}
		now := strfmt.DateTime(time.Now())

		if params.Stream {
			events <- provider.Delim{RunID: params.RunID, TurnID: turnID, Delim: "start"}
			events <- provider.Chunk{RunID: params.RunID, TurnID: turnID, Chunk: reply, Timestamp: now}
			events <- provider.Delim{RunID: params.RunID, TurnID: turnID, Delim: "end"}
		}

		usage := shorttermmemory.Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
			Requests:         1,
		}
		events <- provider.Response{
			RunID:      params.RunID,
			TurnID:     turnID,
			Checkpoint: shorttermmemory.NewCheckpoint(turnID, usage),
			Response:   reply,
			Timestamp:  now,
		}
	}()
	return events, nil
}
