// Package llm provides chat completion clients used to turn transcripts into
// structured notes.
//
// Two providers are supported behind the Completer interface:
//   - openai: any OpenAI-compatible chat endpoint (OpenAI, MiniMax, DeepSeek,
//     local gateways) through github.com/sashabaranov/go-openai
//   - gemini: Google Gemini through google.golang.org/genai
//
// # Entry Points
//
// NewFromConfig: build a Completer from the summary configuration.
// Completer.Complete: send system/user prompts and receive the reply text.
// CleanReply: strip the code fences some models wrap Markdown in.
//
// # Retry Behaviour
//
// Clients retry on HTTP 408/429/5xx errors, network timeouts and empty
// replies with exponential backoff (base 1s, max 10s, up to 3 attempts by
// default). Context cancellation aborts retries immediately.
package llm
