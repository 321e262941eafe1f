package ai

import "context"

// Runtime is implemented by chat backends: the OpenAI-compatible HTTP client,
// a local Ollama runtime, and decorators such as the reply cache.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used across the CLI for selection.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

// NeedsToken reports whether the provider authenticates with a bearer token.
func NeedsToken(provider string) bool {
	return provider != ProviderOllama
}
