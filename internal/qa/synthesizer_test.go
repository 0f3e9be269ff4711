package qa

import (
	"context"
	"errors"
	"testing"

	"reviewflow/internal/models"
	"reviewflow/internal/providers"
	"reviewflow/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedLLM struct {
	text     string
	err      error
	lastReq  providers.GenerateRequest
	numCalls int
}

func (f *fixedLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	f.lastReq = req
	f.numCalls++
	if f.err != nil {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, f.err
	}
	return providers.GenerateResponse{Text: f.text}, providers.ProviderInfo{Name: "fixed", Model: "fixed-v1"}, nil
}

func retrievedChunks() []models.ChunkResult {
	return []models.ChunkResult{
		{ChunkID: "a", ChunkIndex: 0, Section: "introduction", Score: 0.9, ChunkText: "The method uses attention."},
		{ChunkID: "b", ChunkIndex: 3, Section: "method", Score: 0.8, ChunkText: "Training runs for ten epochs."},
	}
}

func TestSynthesizeGroundsAnswerAndExtractsRefs(t *testing.T) {
	llm := &fixedLLM{text: "The method uses attention [C1] and trains for ten epochs [C2]. See also [C2]."}
	session, info, err := Synthesize(context.Background(), llm, "fp-1", "How does it train?", retrievedChunks(), nil)
	require.NoError(t, err)
	assert.Equal(t, "fixed-v1", info.Model)
	assert.Equal(t, []string{"C1", "C2"}, session.UsedRefs)
	assert.Len(t, session.Retrieved, 2)
	assert.Contains(t, llm.lastReq.Prompt, "[C1] (introduction)")
	assert.Contains(t, llm.lastReq.Prompt, "How does it train?")
	assert.NotEmpty(t, session.SessionID)
}

func TestSynthesizeDropsRefsBeyondRetrieved(t *testing.T) {
	llm := &fixedLLM{text: "Claim [C1], bogus [C7], also [C0]."}
	session, _, err := Synthesize(context.Background(), llm, "fp-1", "q", retrievedChunks(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C1"}, session.UsedRefs)
}

func TestSynthesizeEmptyRetrievalReturnsCanonicalAnswer(t *testing.T) {
	llm := &fixedLLM{text: "should not be called"}

	session, _, err := Synthesize(context.Background(), llm, "fp-1", "q", nil, util.ErrEmptyRetrieval)
	require.NoError(t, err)
	assert.Equal(t, InsufficientContextAnswer, session.Answer)
	assert.Empty(t, session.UsedRefs)
	assert.Zero(t, llm.numCalls)

	session, _, err = Synthesize(context.Background(), llm, "fp-1", "q", []models.ChunkResult{}, nil)
	require.NoError(t, err)
	assert.Equal(t, InsufficientContextAnswer, session.Answer)
	assert.Zero(t, llm.numCalls)
}

func TestSynthesizePropagatesRealRetrievalErrors(t *testing.T) {
	boom := errors.New("connection refused")
	_, _, err := Synthesize(context.Background(), &fixedLLM{}, "fp-1", "q", nil, boom)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSynthesizeProviderErrorSurfaces(t *testing.T) {
	llm := &fixedLLM{err: errors.New("rate limit exceeded")}
	_, _, err := Synthesize(context.Background(), llm, "fp-1", "q", retrievedChunks(), nil)
	assert.Error(t, err)
}

func TestSynthesizeWithMockProviderCitesContext(t *testing.T) {
	session, _, err := Synthesize(context.Background(), providers.NewMockProvider(8), "fp-1", "q", retrievedChunks(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, session.UsedRefs)
	for _, ref := range session.UsedRefs {
		assert.Contains(t, []string{"C1", "C2"}, ref)
	}
}
