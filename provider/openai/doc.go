/*
Package openai implements provider.Provider on top of the OpenAI chat
completions API.

Models are created lazily and cached by name:

	model := openai.Model("gpt-4o-mini", option.WithAPIKey(os.Getenv("OPENAI_API_KEY")))

Streaming requests are accumulated with openai.ChatCompletionAccumulator so the
final Response event carries the full reply and the token usage reported by the
API. Structured output is requested through a json_schema response format.

The SDK's own retries are disabled; retries are driven by the executor's retry
policy so every provider behaves the same way under failure.
*/
package openai
