package workflows

import (
	"context"
	"errors"
	"testing"

	"reviewflow/internal/activities"
	"reviewflow/internal/converter"
	"reviewflow/internal/models"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"
)

func registerActivityName[T any](env *testsuite.TestWorkflowEnvironment, name string, fn T) {
	env.RegisterActivityWithOptions(fn, activity.RegisterOptions{Name: name})
}

func reviewEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PaperReviewWorkflow)
	registerActivityName(env, "ConvertPaperActivity", func(context.Context, activities.ConvertPaperInput) (activities.ConvertPaperOutput, error) {
		return activities.ConvertPaperOutput{}, nil
	})
	registerActivityName(env, "NormalizePaperActivity", func(context.Context, activities.NormalizePaperInput) (activities.NormalizePaperOutput, error) {
		return activities.NormalizePaperOutput{}, nil
	})
	registerActivityName(env, "CacheNormalizedActivity", func(context.Context, activities.CacheNormalizedInput) error { return nil })
	registerActivityName(env, "ChunkPaperActivity", func(context.Context, activities.ChunkPaperInput) (activities.ChunkPaperOutput, error) {
		return activities.ChunkPaperOutput{}, nil
	})
	registerActivityName(env, "EmbedChunksActivity", func(context.Context, activities.EmbedChunksInput) (activities.EmbedChunksOutput, error) {
		return activities.EmbedChunksOutput{}, nil
	})
	registerActivityName(env, "IndexChunksActivity", func(context.Context, activities.IndexChunksInput) (activities.IndexChunksOutput, error) {
		return activities.IndexChunksOutput{}, nil
	})
	registerActivityName(env, "GenerateReviewActivity", func(context.Context, activities.GenerateReviewInput) (activities.GenerateReviewOutput, error) {
		return activities.GenerateReviewOutput{}, nil
	})
	registerActivityName(env, "ScoreReviewActivity", func(context.Context, activities.ScoreReviewInput) (activities.ScoreReviewOutput, error) {
		return activities.ScoreReviewOutput{}, nil
	})
	registerActivityName(env, "AssessInnovationActivity", func(context.Context, activities.AssessInnovationInput) (activities.AssessInnovationOutput, error) {
		return activities.AssessInnovationOutput{}, nil
	})
	registerActivityName(env, "UpdatePaperStatusActivity", func(context.Context, activities.UpdatePaperStatusInput) error { return nil })
	registerActivityName(env, "LogModelCallActivity", func(context.Context, activities.LogModelCallInput) error { return nil })
	return env
}

func normalizedPaper() models.Paper {
	return models.Paper{
		Fingerprint: "fp-xyz",
		Title:       "Test Paper",
		Sections:    []models.Section{{Name: "body", Order: 0, Text: "body text"}},
	}
}

func testDraft(modelID string) models.ReviewDraft {
	return models.ReviewDraft{
		Fingerprint:   "fp-xyz",
		ModelID:       modelID,
		Significance:  "fine",
		AcceptReasons: []string{"clear"},
		RejectReasons: []string{"thin evaluation"},
	}
}

func TestPaperReviewWorkflowSuccess(t *testing.T) {
	env := reviewEnv(t)

	env.OnActivity("ConvertPaperActivity", mock.Anything, activities.ConvertPaperInput{PaperPath: "/tmp/p.pdf"}).
		Return(activities.ConvertPaperOutput{Doc: converter.Document{Sections: []converter.Section{{Name: "body", Text: "body text"}}}}, nil)
	env.OnActivity("NormalizePaperActivity", mock.Anything, mock.Anything).
		Return(activities.NormalizePaperOutput{Paper: normalizedPaper()}, nil)
	env.OnActivity("CacheNormalizedActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkPaperOutput{Chunks: []models.Chunk{{ChunkID: "c1", Fingerprint: "fp-xyz", Text: "body text"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1, 0.2}}, ProviderName: "mock", Model: "mock-embed"}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{ChunkCount: 1}, nil)
	env.OnActivity("GenerateReviewActivity", mock.Anything, mock.Anything).
		Return(activities.GenerateReviewOutput{Draft: testDraft("mock"), ProviderName: "mock", Model: "mock-llm-v1"}, nil)
	env.OnActivity("ScoreReviewActivity", mock.Anything, mock.Anything).
		Return(activities.ScoreReviewOutput{Result: models.ScoreResult{Fingerprint: "fp-xyz", ModelID: "mock", Score: 6.5}}, nil)
	env.OnActivity("AssessInnovationActivity", mock.Anything, mock.Anything).
		Return(activities.AssessInnovationOutput{Assessment: models.InnovationAssessment{Fingerprint: "fp-xyz"}, ProviderName: "mock"}, nil)
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogModelCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PaperReviewWorkflow, PaperReviewInput{
		PaperPath:      "/tmp/p.pdf",
		Filename:       "p.pdf",
		EmbedProviders: 1,
		LLMProviders:   1,
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "processed", out)

	qr, err := env.QueryWorkflow(QueryGetReviewStatus)
	require.NoError(t, err)
	var status ReviewStatus
	require.NoError(t, qr.Get(&status))
	require.Equal(t, "fp-xyz", status.Fingerprint)
	require.Equal(t, "assessed", status.Stage)
	require.Equal(t, "done", status.Reviews["default"])
	require.Equal(t, 6.5, status.Scores["default"])
}

func TestPaperReviewWorkflowNoContentFailsGracefully(t *testing.T) {
	env := reviewEnv(t)

	env.OnActivity("ConvertPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ConvertPaperOutput{}, errors.New("no extractable text or sections in converter output"))
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PaperReviewWorkflow, PaperReviewInput{PaperPath: "/tmp/empty.pdf", Filename: "empty.pdf", EmbedProviders: 1, LLMProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)
}

func TestPaperReviewWorkflowAssessFailureYieldsPartialResult(t *testing.T) {
	env := reviewEnv(t)

	env.OnActivity("ConvertPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ConvertPaperOutput{Doc: converter.Document{Sections: []converter.Section{{Name: "body", Text: "body text"}}}}, nil)
	env.OnActivity("NormalizePaperActivity", mock.Anything, mock.Anything).
		Return(activities.NormalizePaperOutput{Paper: normalizedPaper()}, nil)
	env.OnActivity("CacheNormalizedActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkPaperOutput{Chunks: []models.Chunk{{ChunkID: "c1", Fingerprint: "fp-xyz", Text: "body text"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1}}, ProviderName: "mock", Model: "mock-embed"}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{ChunkCount: 1}, nil)
	env.OnActivity("GenerateReviewActivity", mock.Anything, mock.Anything).
		Return(activities.GenerateReviewOutput{Draft: testDraft("mock"), ProviderName: "mock", Model: "mock-llm-v1"}, nil)
	env.OnActivity("ScoreReviewActivity", mock.Anything, mock.Anything).
		Return(activities.ScoreReviewOutput{Result: models.ScoreResult{Fingerprint: "fp-xyz", ModelID: "mock", Score: 6.5}}, nil)
	env.OnActivity("AssessInnovationActivity", mock.Anything, mock.Anything).
		Return(activities.AssessInnovationOutput{}, errors.New("insufficient_quota: monthly limit reached"))
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogModelCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PaperReviewWorkflow, PaperReviewInput{PaperPath: "/tmp/p.pdf", Filename: "p.pdf", EmbedProviders: 1, LLMProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "processed", out)

	qr, err := env.QueryWorkflow(QueryGetReviewStatus)
	require.NoError(t, err)
	var status ReviewStatus
	require.NoError(t, qr.Get(&status))
	require.Equal(t, "done", status.Reviews["default"])
	require.Equal(t, 6.5, status.Scores["default"])
	require.Equal(t, "failed", status.Steps["assess"])
	require.NotEmpty(t, status.AssessError)
	require.Equal(t, "scored", status.Stage)
	require.Empty(t, status.FailReason)
}

func TestPaperReviewWorkflowEmbedFailoverExhaustsOnTransientErrors(t *testing.T) {
	env := reviewEnv(t)

	env.OnActivity("ConvertPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ConvertPaperOutput{Doc: converter.Document{Sections: []converter.Section{{Name: "body", Text: "x"}}}}, nil)
	env.OnActivity("NormalizePaperActivity", mock.Anything, mock.Anything).
		Return(activities.NormalizePaperOutput{Paper: normalizedPaper()}, nil)
	env.OnActivity("CacheNormalizedActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkPaperOutput{Chunks: []models.Chunk{{ChunkID: "c1", Text: "x"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{}, errors.New("503 service unavailable"))
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogModelCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PaperReviewWorkflow, PaperReviewInput{PaperPath: "/tmp/p.pdf", Filename: "p.pdf", EmbedProviders: 1, LLMProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unavailable")
}

func TestPaperReviewWorkflowFailsWhenAllReviewBackendsFail(t *testing.T) {
	env := reviewEnv(t)

	env.OnActivity("ConvertPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ConvertPaperOutput{Doc: converter.Document{Sections: []converter.Section{{Name: "body", Text: "x"}}}}, nil)
	env.OnActivity("NormalizePaperActivity", mock.Anything, mock.Anything).
		Return(activities.NormalizePaperOutput{Paper: normalizedPaper()}, nil)
	env.OnActivity("CacheNormalizedActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("ChunkPaperActivity", mock.Anything, mock.Anything).
		Return(activities.ChunkPaperOutput{Chunks: []models.Chunk{{ChunkID: "c1", Text: "x"}}}, nil)
	env.OnActivity("EmbedChunksActivity", mock.Anything, mock.Anything).
		Return(activities.EmbedChunksOutput{Vectors: [][]float32{{0.1}}, ProviderName: "mock"}, nil)
	env.OnActivity("IndexChunksActivity", mock.Anything, mock.Anything).
		Return(activities.IndexChunksOutput{}, nil)
	env.OnActivity("GenerateReviewActivity", mock.Anything, mock.Anything).
		Return(activities.GenerateReviewOutput{}, errors.New("review response after strict retry: model output could not be parsed into review fields"))
	env.OnActivity("UpdatePaperStatusActivity", mock.Anything, mock.Anything).Return(nil)
	env.OnActivity("LogModelCallActivity", mock.Anything, mock.Anything).Return(nil)

	env.ExecuteWorkflow(PaperReviewWorkflow, PaperReviewInput{PaperPath: "/tmp/p.pdf", Filename: "p.pdf", EmbedProviders: 1, LLMProviders: 1})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var out string
	require.NoError(t, env.GetWorkflowResult(&out))
	require.Equal(t, "failed", out)

	qr, err := env.QueryWorkflow(QueryGetReviewStatus)
	require.NoError(t, err)
	var status ReviewStatus
	require.NoError(t, qr.Get(&status))
	require.Equal(t, "failed", status.Reviews["default"])
	require.Equal(t, "every review backend failed", status.FailReason)
}
