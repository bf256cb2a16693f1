package ollama

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/provider"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// DefaultBaseURL is where a local Ollama daemon listens.
const DefaultBaseURL = "http://localhost:11434"

var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.ModelLister = (*Provider)(nil)
)

var (
	WithBaseURL    = opts.ForName[Provider, string]("baseURL")
	WithHTTPClient = opts.ForName[Provider, *http.Client]("client")
)

// StatusError is returned for non-2xx replies from the daemon.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

type Provider struct {
	baseURL string
	client  *http.Client
}

func New(options ...opts.Option[Provider]) *Provider {
	p := &Provider{
		baseURL: DefaultBaseURL,
		client:  http.DefaultClient,
	}
	if err := opts.Apply(p, options); err != nil {
		panic(err)
	}
	p.baseURL = strings.TrimRight(p.baseURL, "/")
	if p.baseURL == "" {
		p.baseURL = DefaultBaseURL
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	return p
}

type generateOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	System  string           `json:"system,omitempty"`
	Stream  bool             `json:"stream"`
	Format  json.RawMessage  `json:"format,omitempty"`
	Options *generateOptions `json:"options,omitempty"`
}

func (p *Provider) buildRequest(params *provider.CompletionParams) (generateRequest, error) {
	if params.Model == nil {
		return generateRequest{}, errors.New("model is required")
	}
	if params.Thread == nil {
		return generateRequest{}, errors.New("thread is required")
	}

	req := generateRequest{
		Model:  params.Model.Name(),
		Prompt: flattenThread(params.Thread.MessagesIter()),
		System: params.Instructions,
		Stream: params.Stream,
	}
	if params.Temperature != nil || params.MaxTokens > 0 {
		req.Options = &generateOptions{Temperature: params.Temperature, NumPredict: params.MaxTokens}
	}
	if rs := params.ResponseSchema; rs != nil && rs.Schema != nil {
		schema, err := json.Marshal(rs.Schema)
		if err != nil {
			return generateRequest{}, fmt.Errorf("failed to marshal response schema: %w", err)
		}
		req.Format = schema
	}
	return req, nil
}

// flattenThread renders the thread as a prompt. A thread with a single user
// message is sent as is.
func flattenThread(msgs iter.Seq[messages.Message[messages.ModelMessage]]) string {
	var turns []messages.Message[messages.ModelMessage]
	for m := range msgs {
		if m.Text() != "" {
			turns = append(turns, m)
		}
	}
	if len(turns) == 1 {
		if _, ok := turns[0].Payload.(messages.UserMessage); ok {
			return turns[0].Text()
		}
	}

	var b strings.Builder
	for i, m := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch m.Payload.(type) {
		case messages.AssistantMessage:
			b.WriteString("Assistant: ")
		case messages.InstructionsMessage:
			b.WriteString("System: ")
		default:
			b.WriteString("User: ")
		}
		b.WriteString(m.Text())
	}
	if len(turns) > 1 {
		b.WriteString("\n\nAssistant:")
	}
	return b.String()
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	body, err := p.buildRequest(&params)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	events := make(chan provider.StreamEvent, 10)
	go func() {
		defer close(events)
		if err := p.generate(ctx, payload, &params, events); err != nil {
			events <- provider.Error{
				RunID:     params.RunID,
				TurnID:    params.Thread.ID(),
				Err:       err,
				Timestamp: strfmt.DateTime(time.Now()),
			}
		}
	}()
	return events, nil
}

func (p *Provider) generate(ctx context.Context, payload []byte, params *provider.CompletionParams, events chan<- provider.StreamEvent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	turnID := params.Thread.ID()
	var content strings.Builder
	var started bool

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) {
			return fmt.Errorf("ollama: invalid json line: %s", line)
		}
		doc := gjson.ParseBytes(line)
		if msg := doc.Get("error"); msg.Exists() {
			return fmt.Errorf("ollama: %s", msg.String())
		}

		piece := doc.Get("response").String()
		content.WriteString(piece)
		if params.Stream {
			if !started {
				started = true
				events <- provider.Delim{RunID: params.RunID, TurnID: turnID, Delim: "start"}
			}
			if piece != "" {
				events <- provider.Chunk{
					RunID:     params.RunID,
					TurnID:    turnID,
					Chunk:     messages.AssistantMessage{Content: piece},
					Timestamp: strfmt.DateTime(time.Now()),
				}
			}
		}

		if doc.Get("done").Bool() {
			if params.Stream {
				events <- provider.Delim{RunID: params.RunID, TurnID: turnID, Delim: "end"}
			}
			prompt := doc.Get("prompt_eval_count").Int()
			completion := doc.Get("eval_count").Int()
			events <- provider.Response{
				RunID:  params.RunID,
				TurnID: turnID,
				Checkpoint: shorttermmemory.NewCheckpoint(turnID, shorttermmemory.Usage{
					PromptTokens:     prompt,
					CompletionTokens: completion,
					TotalTokens:      prompt + completion,
					Requests:         1,
				}),
				Response:  messages.AssistantMessage{Content: content.String()},
				Timestamp: strfmt.DateTime(time.Now()),
				Meta:      gjson.Parse(fmt.Sprintf(`{"model":%q,"done_reason":%q}`, doc.Get("model").String(), doc.Get("done_reason").String())),
			}
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("ollama: response ended before done")
}

// ListModels returns the models installed on the daemon.
func (p *Provider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var tags struct {
		Models []struct {
			Name       string    `json:"name"`
			Size       int64     `json:"size"`
			ModifiedAt time.Time `json:"modified_at"`
			Details    struct {
				Family string `json:"family"`
			} `json:"details"`
		} `json:"models"`
	}
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, fmt.Errorf("ollama: invalid tags response: %w", err)
	}
	result := make([]provider.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		result = append(result, provider.ModelInfo{
			Name:       m.Name,
			Size:       m.Size,
			Family:     m.Details.Family,
			ModifiedAt: m.ModifiedAt,
		})
	}
	return result, nil
}
