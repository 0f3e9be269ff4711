package providers

import (
	"fmt"
	"strings"

	"reviewflow/internal/config"
)

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type NamedEmbedProvider struct {
	Ref      ProviderRef
	Provider EmbeddingProvider
}

// Manager holds the closed set of configured backends. Review and scoring
// backends are selected by name through this set; there is no free-form
// provider branching anywhere else.
type Manager struct {
	llmProviders   []NamedLLMProvider
	embedProviders []NamedEmbedProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	llmRefs := ParseProviderList(cfg.LLMProviders)
	embedRefs := ParseProviderList(cfg.EmbedProviders)

	m := &Manager{}
	for _, ref := range llmRefs {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		llm, ok := p.(LLMProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support generation", ref.Raw)
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: llm})
	}
	for _, ref := range embedRefs {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		embed, ok := p.(EmbeddingProvider)
		if !ok {
			return nil, fmt.Errorf("provider %s does not support embeddings", ref.Raw)
		}
		m.embedProviders = append(m.embedProviders, NamedEmbedProvider{Ref: ref, Provider: embed})
	}
	if len(m.embedProviders) == 0 {
		m.embedProviders = []NamedEmbedProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(cfg.EmbedDim)}}
	}
	if len(m.llmProviders) == 0 {
		m.llmProviders = []NamedLLMProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider(cfg.EmbedDim)}}
	}
	return m, nil
}

func (m *Manager) LLMProviderByIndex(i int) (LLMProvider, ProviderRef) {
	if i < 0 || i >= len(m.llmProviders) {
		i = 0
	}
	return m.llmProviders[i].Provider, m.llmProviders[i].Ref
}

func (m *Manager) EmbedProviderByIndex(i int) (EmbeddingProvider, ProviderRef) {
	if i < 0 || i >= len(m.embedProviders) {
		i = 0
	}
	return m.embedProviders[i].Provider, m.embedProviders[i].Ref
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

func (m *Manager) EmbedCount() int {
	return len(m.embedProviders)
}

func (m *Manager) LLMRefs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.llmProviders))
	for i := range m.llmProviders {
		out = append(out, m.llmProviders[i].Ref)
	}
	return out
}

// FindLLMProviderIndex resolves a backend name (or name:alias) to its index
// in the closed set; -1 when not configured.
func (m *Manager) FindLLMProviderIndex(name string) int {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return -1
	}
	for i := range m.llmProviders {
		ref := m.llmProviders[i].Ref
		if strings.ToLower(ref.Name) == target || strings.ToLower(ref.Raw) == target {
			return i
		}
	}
	return -1
}

// FindEmbedProviderIndex resolves the embed backend recorded at index time so
// query embedding stays in the same vector space.
func (m *Manager) FindEmbedProviderIndex(name string) int {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return -1
	}
	for i := range m.embedProviders {
		ref := m.embedProviders[i].Ref
		if strings.ToLower(ref.Name) == target || strings.ToLower(ref.Raw) == target {
			return i
		}
	}
	return -1
}

func buildProvider(ref ProviderRef, cfg config.Config) (any, error) {
	switch strings.ToLower(ref.Name) {
	case "mock":
		return NewMockProvider(cfg.EmbedDim), nil
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias, cfg.ModelTimeoutSecs), nil
	case "ollama":
		return NewOllamaProvider(ref.KeyAlias, cfg.ModelTimeoutSecs), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias, cfg.ModelTimeoutSecs), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
