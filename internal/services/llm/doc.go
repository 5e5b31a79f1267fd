// Package llm provides an OpenAI-compatible chat completion client (OpenRouter
// by default) shared by the emotion classifier and the narrative generator.
//
// The Client is immutable after construction and safe for concurrent use by
// many job executions. Complete returns free text; CompleteJSON requests a
// JSON object and DecodeLLMJSON tolerates code fences and surrounding prose.
//
// The client retries on HTTP 408/429/5xx, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s, up to 5 attempts by
// default). Context cancellation aborts retries immediately. Errors are never
// swallowed: an empty or refused completion is an error, so callers can map
// it to a failed job instead of storing blank text.
package llm
