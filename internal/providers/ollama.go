package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// OllamaProvider is the locally-run open-model backend. It serves generation
// via /api/generate and embeddings via /api/embeddings.
type OllamaProvider struct {
	alias      string
	baseURL    string
	genModel   string
	embedModel string
	client     *http.Client
}

func NewOllamaProvider(alias string, timeoutSecs int) *OllamaProvider {
	baseURL := strings.TrimSpace(os.Getenv("REVIEWFLOW_OLLAMA_BASE_URL"))
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if timeoutSecs <= 0 {
		timeoutSecs = 90
	}
	return &OllamaProvider{
		alias:      alias,
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   resolveOllamaModel("REVIEWFLOW_OLLAMA_MODEL", alias, "llama3.1"),
		embedModel: resolveOllamaModel("REVIEWFLOW_OLLAMA_EMBED_MODEL", alias, "nomic-embed-text"),
		client:     &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second},
	}
}

func (o *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.genModel, Key: o.alias}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt += "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	options := map[string]any{"temperature": req.Temperature}
	if req.MaxOutput > 0 {
		options["num_predict"] = req.MaxOutput
	}
	payload, _ := json.Marshal(map[string]any{
		"model":   o.genModel,
		"prompt":  prompt,
		"stream":  false,
		"options": options,
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return GenerateResponse{}, info, fmt.Errorf("ollama generate error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return GenerateResponse{}, info, fmt.Errorf("decode ollama generate response: %w", err)
	}
	if strings.TrimSpace(parsed.Response) == "" {
		return GenerateResponse{}, info, fmt.Errorf("ollama returned empty response")
	}
	return GenerateResponse{Text: parsed.Response}, info, nil
}

func (o *OllamaProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	info := ProviderInfo{Name: "ollama", Model: o.embedModel, Key: o.alias}
	if len(req.Inputs) == 0 {
		return nil, info, fmt.Errorf("no embedding inputs")
	}
	out := make([][]float32, 0, len(req.Inputs))
	for _, text := range req.Inputs {
		payload, _ := json.Marshal(map[string]any{
			"model":  o.embedModel,
			"prompt": text,
		})
		httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(payload))
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(httpReq)
		if err != nil {
			return nil, info, fmt.Errorf("ollama embedding request failed: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 400 {
			return nil, info, fmt.Errorf("ollama embedding error %d: %s", resp.StatusCode, string(body))
		}
		var parsed struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return nil, info, fmt.Errorf("decode ollama embedding response: %w", err)
		}
		if len(parsed.Embedding) == 0 {
			return nil, info, fmt.Errorf("ollama returned empty embedding")
		}
		out = append(out, matchDimension(parsed.Embedding, req.Dimension))
	}
	return out, info, nil
}

func resolveOllamaModel(envKey, alias, fallback string) string {
	alias = strings.TrimSpace(alias)
	if alias != "" {
		if v := strings.TrimSpace(os.Getenv(envKey + "_" + sanitizeEnvToken(alias))); v != "" {
			return v
		}
		// Allow a direct model name in the provider list, e.g. ollama:llama3.1
		if strings.Contains(alias, "-") || strings.Contains(alias, "/") || strings.Contains(alias, ".") {
			return alias
		}
	}
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v
	}
	return fallback
}

func sanitizeEnvToken(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	s = strings.ReplaceAll(s, "/", "_")
	return s
}

func matchDimension(v []float32, target int) []float32 {
	if target <= 0 || len(v) == target {
		return v
	}
	if len(v) > target {
		return v[:target]
	}
	out := make([]float32, target)
	copy(out, v)
	return out
}
