package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// GenerateRequest is the uniform request contract every model backend
// implements: a prompt plus sampling parameters, optionally grounded on
// context snippets appended to the prompt.
type GenerateRequest struct {
	Operation   string   `json:"operation"`
	Prompt      string   `json:"prompt"`
	Context     []string `json:"context"`
	Temperature float64  `json:"temperature"`
	MaxOutput   int      `json:"max_output"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}
