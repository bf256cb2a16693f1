package openai

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/provider"
	"github.com/go-openapi/strfmt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var _ provider.Provider = (*Provider)(nil)

type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	opts := append([]option.RequestOption{option.WithMaxRetries(0)}, options...)
	return &Provider{
		client: openai.NewClient(opts...),
	}
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (openai.ChatCompletionNewParams, error) {
	if params.Model == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("model is required")
	}
	if params.Thread == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("thread is required")
	}

	msgs, user := messagesToOpenAI(params.Instructions, params.Thread.MessagesIter())
	oaiParams := openai.ChatCompletionNewParams{
		Messages: openai.F(msgs),
		Model:    openai.F(params.Model.Name()),
		N:        openai.Int(1),
	}
	if params.Temperature != nil {
		oaiParams.Temperature = openai.Float(*params.Temperature)
	}
	if params.MaxTokens > 0 {
		oaiParams.MaxCompletionTokens = openai.Int(int64(params.MaxTokens))
	}
	if strings.TrimSpace(user) != "" {
		oaiParams.User = openai.String(user)
	}
	if params.Stream {
		oaiParams.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		})
	}

	if rs := params.ResponseSchema; rs != nil && rs.Schema != nil {
		schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   openai.F(rs.Name),
			Schema: openai.F[any](rs.Schema),
			Strict: openai.Bool(true),
		}
		if rs.Description != "" {
			schemaParam.Description = openai.F(rs.Description)
		}
		oaiParams.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type:       openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(schemaParam),
			},
		)
	}

	return oaiParams, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	chatParams, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if params.Stream {
			p.runStream(ctx, chatParams, &params, events)
		} else {
			p.runOnce(ctx, chatParams, &params, events)
		}
	}()
	return events, nil
}

func errorEvent(command *provider.CompletionParams, err error) provider.Error {
	return provider.Error{
		Err:       err,
		RunID:     command.RunID,
		TurnID:    command.Thread.ID(),
		Timestamp: strfmt.DateTime(time.Now()),
	}
}

func (p *Provider) runStream(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	strm := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer strm.Close()

	if strm.Err() != nil {
		events <- errorEvent(command, strm.Err())
		return
	}

	var started bool
	var acc openai.ChatCompletionAccumulator
	for strm.Next() {
		if err := ctx.Err(); err != nil {
			events <- errorEvent(command, err)
			return
		}
		if !started {
			started = true
			events <- provider.Delim{RunID: command.RunID, TurnID: command.Thread.ID(), Delim: "start"}
		}

		chunk := strm.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			events <- provider.Chunk{
				RunID:     command.RunID,
				TurnID:    command.Thread.ID(),
				Chunk:     messages.AssistantMessage{Content: chunk.Choices[0].Delta.Content},
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}
	}
	if err := strm.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}
	if err := ctx.Err(); err != nil {
		events <- errorEvent(command, err)
		return
	}
	if !started {
		events <- errorEvent(command, fmt.Errorf("stream ended without any completion chunks"))
		return
	}

	events <- provider.Delim{RunID: command.RunID, TurnID: command.Thread.ID(), Delim: "end"}
	events <- completionToStreamEvent(&acc.ChatCompletion, command)
}

func (p *Provider) runOnce(ctx context.Context, params openai.ChatCompletionNewParams, command *provider.CompletionParams, events chan<- provider.StreamEvent) {
	chat, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		events <- errorEvent(command, err)
		return
	}
	events <- completionToStreamEvent(chat, command)
}

func messagesToOpenAI(instructions string, msgs iter.Seq[messages.Message[messages.ModelMessage]]) ([]openai.ChatCompletionMessageParamUnion, string) {
	result := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(instructions),
	}
	var user string
	for message := range msgs {
		switch msg := message.Payload.(type) {
		case messages.UserMessage:
			if message.Sender != "" {
				user = message.Sender
			}
			if msg.Content != "" {
				result = append(result, openai.UserMessage(msg.Content))
			}
		case messages.AssistantMessage:
			if msg.Content != "" {
				result = append(result, openai.AssistantMessage(msg.Content))
			}
		case messages.InstructionsMessage:
			result = append(result, openai.SystemMessage(msg.Content))
		}
	}
	return result, user
}

func completionToStreamEvent(chat *openai.ChatCompletion, command *provider.CompletionParams) provider.StreamEvent {
	if len(chat.Choices) == 0 {
		return errorEvent(command, fmt.Errorf("completion %q has no choices", chat.ID))
	}

	choice := chat.Choices[0].Message
	usage := shorttermmemory.Usage{
		PromptTokens:     chat.Usage.PromptTokens,
		CompletionTokens: chat.Usage.CompletionTokens,
		TotalTokens:      chat.Usage.TotalTokens,
		Requests:         1,
	}
	return provider.Response{
		RunID:      command.RunID,
		TurnID:     command.Thread.ID(),
		Checkpoint: shorttermmemory.NewCheckpoint(command.Thread.ID(), usage),
		Response: messages.AssistantMessage{
			Content: choice.Content,
			Refusal: choice.Refusal,
		},
		Timestamp: strfmt.DateTime(time.Now()),
	}
}
