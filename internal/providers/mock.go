package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MockProvider is the deterministic fallback backend. Embeddings are seeded
// from the input text; generation returns well-formed structured output for
// each pipeline operation so the system runs end to end without keys.
type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	op := strings.ToLower(req.Operation)
	switch {
	case strings.Contains(op, "score"):
		return GenerateResponse{Text: `{"score": 6.5, "rationale": "Solid contribution held back by evaluation gaps."}`}, info, nil
	case strings.Contains(op, "review"):
		return GenerateResponse{Text: `{
  "significance": "The paper addresses a relevant problem with a reasonable method; novelty is incremental.",
  "accept_reasons": ["Clear problem statement", "Reproducible experimental setup"],
  "reject_reasons": ["Limited baseline comparison", "No ablation on key parameters"],
  "suggestions": ["Add stronger baselines", "Report variance across runs"],
  "formula_highlights": ["Eq. (3) defines the core objective"]
}`}, info, nil
	case strings.Contains(op, "innovation"), strings.Contains(op, "assess"):
		b := strings.Builder{}
		b.WriteString("{\n")
		dims := []string{
			"technical_novelty", "conceptual_originality", "potential_impact",
			"methodological_innovation", "application_innovation", "solution_innovation",
		}
		for i, d := range dims {
			score := 5 + i%3
			b.WriteString(fmt.Sprintf("  %q: {\"score\": %d, \"explanation\": \"Deterministic assessment of %s.\"}", d, score, strings.ReplaceAll(d, "_", " ")))
			if i < len(dims)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString("}")
		return GenerateResponse{Text: b.String()}, info, nil
	case strings.Contains(op, "qa"), strings.Contains(op, "ask"):
		b := strings.Builder{}
		b.WriteString("Deterministic answer based on retrieved evidence.")
		for i := range req.Context {
			b.WriteString(" [C")
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString("]")
		}
		return GenerateResponse{Text: b.String()}, info, nil
	default:
		return GenerateResponse{Text: "Mock response."}, info, nil
	}
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		v := float32(u%2000)/1000.0 - 1.0
		vec[i] = v
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)+1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}
