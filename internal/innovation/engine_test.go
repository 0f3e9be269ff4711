package innovation

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

type scriptedLLM struct {
	responses []string
	requests  []providers.GenerateRequest
}

func (s *scriptedLLM) Generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, providers.ProviderInfo, error) {
	s.requests = append(s.requests, req)
	if len(s.responses) == 0 {
		return providers.GenerateResponse{}, providers.ProviderInfo{}, errors.New("script exhausted")
	}
	text := s.responses[0]
	s.responses = s.responses[1:]
	return providers.GenerateResponse{Text: text}, providers.ProviderInfo{Name: "scripted", Model: "scripted-v1"}, nil
}

func testPaper() models.Paper {
	return models.Paper{
		Fingerprint: "fp-abc",
		Title:       "Novel Widget Alignment",
		Sections:    []models.Section{{Name: "body", Order: 0, Text: "Widgets are aligned."}},
	}
}

const validAssessmentJSON = `{
  "technical_novelty": {"score": 7, "explanation": "New alignment operator."},
  "conceptual_originality": {"score": 6, "explanation": "Fresh framing."},
  "potential_impact": {"score": 5, "explanation": "Niche applicability."},
  "methodological_innovation": {"score": 8, "explanation": "New protocol."},
  "application_innovation": {"score": 4, "explanation": "Standard domain."},
  "solution_innovation": {"score": 12, "explanation": "Clamp me."}
}`

func TestAssessParsesAllDimensionsInCanonicalOrder(t *testing.T) {
	llm := &scriptedLLM{responses: []string{validAssessmentJSON}}
	a, _, err := Assess(context.Background(), llm, testPaper(), "openai:gpt")
	require.NoError(t, err)
	require.Len(t, a.Dimensions, 6)
	for i, name := range models.InnovationDimensions {
		assert.Equal(t, name, a.Dimensions[i].Name)
	}
	assert.Equal(t, "fp-abc", a.Fingerprint)
	assert.Equal(t, 7.0, a.Dimensions[0].AIScore)
	assert.Nil(t, a.Dimensions[0].HumanScore)
}

func TestAssessClampsDimensionScores(t *testing.T) {
	llm := &scriptedLLM{responses: []string{validAssessmentJSON}}
	a, _, err := Assess(context.Background(), llm, testPaper(), "m")
	require.NoError(t, err)
	dim, ok := a.Dimension(models.DimSolutionInnovation)
	require.True(t, ok)
	assert.Equal(t, 10.0, dim.AIScore)
}

func TestAssessRetriesOnceThenFails(t *testing.T) {
	missing := `{"technical_novelty": {"score": 7, "explanation": "only one"}}`
	llm := &scriptedLLM{responses: []string{"prose answer", missing}}
	_, _, err := Assess(context.Background(), llm, testPaper(), "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrAssessmentParse)
	require.Len(t, llm.requests, 2)
	assert.Equal(t, "innovation_assess_strict", llm.requests[1].Operation)
}

func TestAssessRecoversOnStrictRetry(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"not json", validAssessmentJSON}}
	a, _, err := Assess(context.Background(), llm, testPaper(), "m")
	require.NoError(t, err)
	assert.Len(t, a.Dimensions, 6)
}

func TestAssessWithMockProvider(t *testing.T) {
	a, _, err := Assess(context.Background(), providers.NewMockProvider(8), testPaper(), "mock:default")
	require.NoError(t, err)
	require.Len(t, a.Dimensions, 6)
	for _, d := range a.Dimensions {
		assert.GreaterOrEqual(t, d.AIScore, 1.0)
		assert.LessOrEqual(t, d.AIScore, 10.0)
		assert.NotEmpty(t, d.AIExplanation)
	}
}
