package ollama

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/pkg/stdx"
	"github.com/casualjim/bookstart/provider"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(WithBaseURL(server.URL + "/"))
}

func collect(t *testing.T, events <-chan provider.StreamEvent) []provider.StreamEvent {
	t.Helper()
	var got []provider.StreamEvent //nolint:prealloc
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestGenerate(t *testing.T) {
	var body gjson.Result
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body = gjson.ParseBytes(data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3","response":"A tale of bees.","done":true,"done_reason":"stop","prompt_eval_count":20,"eval_count":5}`)
	})

	thread := shorttermmemory.New()
	thread.AddUserPrompt(messages.New().UserPrompt("Summarize the book"))

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Instructions: "You are a librarian",
		Thread:       thread,
		Model:        Model("llama3"),
		Temperature:  stdx.Ptr(0.7),
		MaxTokens:    256,
		ResponseSchema: &provider.StructuredOutput{
			Name:   "summary",
			Schema: &jsonschema.Schema{Type: "object"},
		},
	})
	require.NoError(t, err)
	got := collect(t, events)
	require.Len(t, got, 1)

	resp, ok := got[0].(provider.Response)
	require.True(t, ok, "got %T", got[0])
	assert.Equal(t, "A tale of bees.", resp.Response.Content)
	assert.Equal(t, int64(25), resp.Checkpoint.Usage().TotalTokens)
	assert.Equal(t, "stop", resp.Meta.Get("done_reason").String())

	assert.Equal(t, "llama3", body.Get("model").String())
	assert.Equal(t, "Summarize the book", body.Get("prompt").String())
	assert.Equal(t, "You are a librarian", body.Get("system").String())
	assert.False(t, body.Get("stream").Bool())
	assert.Equal(t, "object", body.Get("format.type").String())
	assert.InDelta(t, 0.7, body.Get("options.temperature").Float(), 0.0001)
	assert.Equal(t, int64(256), body.Get("options.num_predict").Int())
}

func TestGenerateSendsZeroTemperature(t *testing.T) {
	bodies := make(chan gjson.Result, 2)
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies <- gjson.ParseBytes(data)
		_, _ = io.WriteString(w, `{"response":"ok","done":true}`)
	})

	for _, temperature := range []*float64{stdx.Ptr(0.0), nil} {
		events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
			Thread:      shorttermmemory.New(),
			Model:       Model("llama3"),
			Temperature: temperature,
		})
		require.NoError(t, err)
		collect(t, events)
	}

	deterministic := <-bodies
	require.True(t, deterministic.Get("options.temperature").Exists())
	assert.Zero(t, deterministic.Get("options.temperature").Float())

	unset := <-bodies
	assert.False(t, unset.Get("options").Exists())
}

func TestGenerateStream(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		assert.True(t, gjson.GetBytes(data, "stream").Bool())

		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, piece := range []string{"The", " hive", " wakes."} {
			fmt.Fprintf(w, "{\"response\":%q,\"done\":false}\n", piece)
			flusher.Flush()
		}
		fmt.Fprint(w, "{\"response\":\"\",\"done\":true,\"prompt_eval_count\":3,\"eval_count\":3}\n")
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  Model("llama3"),
		Stream: true,
	})
	require.NoError(t, err)
	got := collect(t, events)

	require.Len(t, got, 6)
	assert.Equal(t, "start", got[0].(provider.Delim).Delim)
	assert.Equal(t, " hive", got[2].(provider.Chunk).Chunk.Content)
	assert.Equal(t, "end", got[4].(provider.Delim).Delim)
	assert.Equal(t, "The hive wakes.", got[5].(provider.Response).Response.Content)
}

func TestGenerateHTTPError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'nope' not found"}`, http.StatusNotFound)
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  Model("nope"),
	})
	require.NoError(t, err)
	got := collect(t, events)
	require.Len(t, got, 1)

	ev, ok := got[0].(provider.Error)
	require.True(t, ok)
	var se *StatusError
	require.ErrorAs(t, ev.Err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Body, "not found")
}

func TestGenerateStreamError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{\"response\":\"Hi\",\"done\":false}\n{\"error\":\"out of memory\"}\n")
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  Model("llama3"),
	})
	require.NoError(t, err)
	got := collect(t, events)
	require.Len(t, got, 1)
	assert.ErrorContains(t, got[0].(provider.Error).Err, "out of memory")
}

func TestGenerateTruncated(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "{\"response\":\"Hi\",\"done\":false}\n")
	})

	events, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Thread: shorttermmemory.New(),
		Model:  Model("llama3"),
	})
	require.NoError(t, err)
	got := collect(t, events)
	require.Len(t, got, 1)
	assert.IsType(t, provider.Error{}, got[0])
}

func TestListModels(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = io.WriteString(w, `{"models":[{"name":"llama3:latest","size":4661224676,"modified_at":"2024-05-01T10:00:00Z","details":{"family":"llama"}},{"name":"mistral:7b","size":1,"modified_at":"2024-05-02T10:00:00Z","details":{"family":"mistral"}}]}`)
	})

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3:latest", models[0].Name)
	assert.Equal(t, "llama", models[0].Family)
	assert.Equal(t, int64(4661224676), models[0].Size)
}

func TestFlattenThread(t *testing.T) {
	single := []messages.Message[messages.ModelMessage]{
		{Payload: messages.UserMessage{Content: "just this"}},
	}
	assert.Equal(t, "just this", flattenThread(slices.Values(single)))

	multi := []messages.Message[messages.ModelMessage]{
		{Payload: messages.UserMessage{Content: "Write chapter 1"}},
		{Payload: messages.AssistantMessage{Content: "It began."}},
		{Payload: messages.UserMessage{Content: "Continue"}},
	}
	assert.Equal(t, "User: Write chapter 1\n\nAssistant: It began.\n\nUser: Continue\n\nAssistant:", flattenThread(slices.Values(multi)))
}

func TestNewDefaults(t *testing.T) {
	p := New()
	assert.Equal(t, DefaultBaseURL, p.baseURL)
	assert.NotNil(t, p.client)

	_, err := p.ChatCompletion(context.Background(), provider.CompletionParams{Thread: shorttermmemory.New()})
	assert.Error(t, err)
}
