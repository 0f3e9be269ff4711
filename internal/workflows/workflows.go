package workflows

import (
	"fmt"
	"strings"
	"time"

	"reviewflow/internal/activities"
	"reviewflow/internal/cache"
	"reviewflow/internal/models"
	"reviewflow/internal/providers"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const QueryGetReviewStatus = "GetReviewStatus"

type providerState struct {
	disabledUntil map[int]time.Time
	retries       map[string]int
}

func newProviderState() providerState {
	return providerState{disabledUntil: map[int]time.Time{}, retries: map[string]int{}}
}

// PaperReviewWorkflow drives one paper through the full pipeline:
// convert, normalize, chunk, embed, index, review per model backend,
// score, innovation assessment. Each stage transition is mirrored to the
// paper status record so the API can answer without a live query.
func PaperReviewWorkflow(ctx workflow.Context, input PaperReviewInput) (string, error) {
	status := ReviewStatus{
		Filename:    input.Filename,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
		Reviews:     map[string]string{},
		Scores:      map[string]float64{},
		RetryCounts: map[string]int{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetReviewStatus, func() (ReviewStatus, error) {
		return status, nil
	}); err != nil {
		return "", err
	}

	maxAttempts := int32(3)
	if input.MaxAttempts > 0 {
		maxAttempts = int32(input.MaxAttempts)
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2,
			MaximumInterval:    20 * time.Second,
			MaximumAttempts:    maxAttempts,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	cooldown := durationOrDefault(input.CooldownSeconds, 900)
	embedProviders := defaultCount(input.EmbedProviders)
	llmProviders := defaultCount(input.LLMProviders)
	embedState := newProviderState()
	llmState := newProviderState()

	status.CurrentStep = "convert"
	status.Stage = string(cache.StageUploaded)
	status.Steps[status.CurrentStep] = "processing"
	var convertOut activities.ConvertPaperOutput
	if err := workflow.ExecuteActivity(ctx, "ConvertPaperActivity", activities.ConvertPaperInput{PaperPath: input.PaperPath}).Get(ctx, &convertOut); err != nil {
		if isNoContentError(err) {
			return failPaper(ctx, &status, input, "converter produced no extractable content")
		}
		return "", err
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "normalize"
	status.Steps[status.CurrentStep] = "processing"
	var normOut activities.NormalizePaperOutput
	if err := workflow.ExecuteActivity(ctx, "NormalizePaperActivity", activities.NormalizePaperInput{Doc: convertOut.Doc}).Get(ctx, &normOut); err != nil {
		if isNoContentError(err) {
			return failPaper(ctx, &status, input, "no usable sections after normalization")
		}
		return "", err
	}
	paper := normOut.Paper
	status.Fingerprint = paper.Fingerprint
	status.Title = paper.Title
	if err := workflow.ExecuteActivity(ctx, "CacheNormalizedActivity", activities.CacheNormalizedInput{Paper: paper}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Stage = string(cache.StageNormalized)
	status.Steps[status.CurrentStep] = "done"
	updateStatus(ctx, &status, input)

	status.CurrentStep = "chunk"
	status.Steps[status.CurrentStep] = "processing"
	var chunkOut activities.ChunkPaperOutput
	if err := workflow.ExecuteActivity(ctx, "ChunkPaperActivity", activities.ChunkPaperInput{
		Paper:        paper,
		ChunkSize:    input.ChunkSize,
		ChunkOverlap: input.ChunkOverlap,
	}).Get(ctx, &chunkOut); err != nil {
		return "", err
	}
	status.ChunkCount = len(chunkOut.Chunks)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "embed"
	status.Steps[status.CurrentStep] = "processing"
	inputs := make([]string, 0, len(chunkOut.Chunks))
	for _, c := range chunkOut.Chunks {
		inputs = append(inputs, c.Text)
	}
	embedOut, err := callEmbedWithFailover(ctx, &embedState, embedProviders, cooldown, activities.EmbedChunksInput{
		Operation: "chunk_embed",
		Inputs:    inputs,
	}, status.RetryCounts, paper.Fingerprint)
	if err != nil {
		return "", err
	}
	status.Providers = append(status.Providers, embedOut.ProviderName)
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "index"
	status.Steps[status.CurrentStep] = "processing"
	if err := workflow.ExecuteActivity(ctx, "IndexChunksActivity", activities.IndexChunksInput{
		Fingerprint:   paper.Fingerprint,
		Chunks:        chunkOut.Chunks,
		Vectors:       embedOut.Vectors,
		EmbedProvider: embedOut.ProviderName,
		EmbedModel:    embedOut.Model,
	}).Get(ctx, nil); err != nil {
		return "", err
	}
	status.Stage = string(cache.StageIndexed)
	status.Steps[status.CurrentStep] = "done"
	updateStatus(ctx, &status, input)

	status.CurrentStep = "review"
	status.Steps[status.CurrentStep] = "processing"
	refs := input.ReviewProviderRefs
	if len(refs) == 0 {
		refs = []string{""}
	}
	type labeledDraft struct {
		label string
		out   activities.GenerateReviewOutput
	}
	drafts := make([]labeledDraft, 0, len(refs))
	for _, ref := range refs {
		label := refLabel(ref)
		var reviewOut activities.GenerateReviewOutput
		err := workflow.ExecuteActivity(ctx, "GenerateReviewActivity", activities.GenerateReviewInput{
			ProviderRef: ref,
			Paper:       paper,
		}).Get(ctx, &reviewOut)
		if err != nil {
			status.Reviews[label] = "failed"
			logModelCall(ctx, "review_generate", paper.Fingerprint, label, "", "failed", providers.ClassifyError(err))
			continue
		}
		status.Reviews[label] = "done"
		if reviewOut.Cached {
			status.Reviews[label] = "cached"
		}
		logModelCall(ctx, "review_generate", paper.Fingerprint, reviewOut.ProviderName, reviewOut.Model, "ok", "")
		drafts = append(drafts, labeledDraft{label: label, out: reviewOut})
	}
	reviewed := len(drafts)
	if reviewed == 0 {
		return failPaper(ctx, &status, input, "every review backend failed")
	}
	status.Stage = string(cache.StageReviewed)
	status.Steps[status.CurrentStep] = "done"
	updateStatus(ctx, &status, input)

	status.CurrentStep = "score"
	status.Steps[status.CurrentStep] = "processing"
	for _, d := range drafts {
		scoreRef := input.ScoringProviderRef
		if scoreRef == "" {
			scoreRef = d.out.Draft.ModelID
		}
		var scoreOut activities.ScoreReviewOutput
		err := workflow.ExecuteActivity(ctx, "ScoreReviewActivity", activities.ScoreReviewInput{
			ProviderRef: scoreRef,
			Draft:       d.out.Draft,
		}).Get(ctx, &scoreOut)
		if err != nil {
			status.Reviews[d.label] = "score_failed"
			logModelCall(ctx, "review_score", paper.Fingerprint, scoreRef, "", "failed", providers.ClassifyError(err))
			continue
		}
		status.Scores[d.label] = scoreOut.Result.Score
		logModelCall(ctx, "review_score", paper.Fingerprint, scoreOut.ProviderName, scoreOut.Model, "ok", "")
	}
	status.Stage = string(cache.StageScored)
	status.Steps[status.CurrentStep] = "done"
	updateStatus(ctx, &status, input)

	status.CurrentStep = "assess"
	status.Steps[status.CurrentStep] = "processing"
	assessOut, err := callAssessWithFailover(ctx, &llmState, llmProviders, cooldown, paper, status.RetryCounts)
	if err != nil {
		// Review and score already landed; the paper finishes as a
		// partial result with the assessment facet marked failed.
		status.Steps[status.CurrentStep] = "failed"
		status.AssessError = err.Error()
	} else {
		status.Providers = append(status.Providers, assessOut.ProviderName)
		status.Stage = string(cache.StageAssessed)
		status.Steps[status.CurrentStep] = "done"
	}

	status.CurrentStep = "done"
	status.Status = "processed"
	updateStatus(ctx, &status, input)
	return status.Status, nil
}

func failPaper(ctx workflow.Context, status *ReviewStatus, input PaperReviewInput, reason string) (string, error) {
	status.Status = "failed"
	status.FailReason = reason
	status.Steps[status.CurrentStep] = "failed"
	updateStatus(ctx, status, input)
	return status.Status, nil
}

func updateStatus(ctx workflow.Context, status *ReviewStatus, input PaperReviewInput) {
	if status.Fingerprint == "" {
		return
	}
	_ = workflow.ExecuteActivity(ctx, "UpdatePaperStatusActivity", activities.UpdatePaperStatusInput{
		Fingerprint: status.Fingerprint,
		Filename:    input.Filename,
		Title:       status.Title,
		Stage:       status.Stage,
		Status:      status.Status,
		FailReason:  status.FailReason,
	}).Get(ctx, nil)
}

func logModelCall(ctx workflow.Context, operation, fingerprint, providerName, model, callStatus string, errType providers.ErrorType) {
	_ = workflow.ExecuteActivity(ctx, "LogModelCallActivity", activities.LogModelCallInput{
		Operation:    operation,
		Fingerprint:  fingerprint,
		ProviderName: providerName,
		Model:        model,
		RequestID:    fmt.Sprintf("%s-%s", operation, fingerprint),
		Status:       callStatus,
		ErrorType:    string(errType),
	}).Get(ctx, nil)
}

func callEmbedWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, input activities.EmbedChunksInput, retryCounts map[string]int, fingerprint string) (activities.EmbedChunksOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		input.ProviderIndex = idx
		var out activities.EmbedChunksOutput
		err := workflow.ExecuteActivity(ctx, "EmbedChunksActivity", input).Get(ctx, &out)
		if err == nil {
			logModelCall(ctx, input.Operation, fingerprint, out.ProviderName, out.Model, "ok", "")
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		logModelCall(ctx, input.Operation, fingerprint, fmt.Sprintf("provider-%d", idx), "", "failed", errType)
		key := fmt.Sprintf("embed-%d", idx)
		retryCounts[key]++
		switch {
		case errType == providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case errType == providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.Retryable(errType):
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all embed providers exhausted")
	}
	return activities.EmbedChunksOutput{}, lastErr
}

func callAssessWithFailover(ctx workflow.Context, state *providerState, providerCount int, cooldown time.Duration, paper models.Paper, retryCounts map[string]int) (activities.AssessInnovationOutput, error) {
	if retryCounts == nil {
		retryCounts = map[string]int{}
	}
	var lastErr error
	for attempt := 0; attempt < providerCount*4; attempt++ {
		idx := attempt % providerCount
		if isProviderDisabled(ctx, state, idx) {
			continue
		}
		var out activities.AssessInnovationOutput
		err := workflow.ExecuteActivity(ctx, "AssessInnovationActivity", activities.AssessInnovationInput{
			ProviderIndex: idx,
			Paper:         paper,
		}).Get(ctx, &out)
		if err == nil {
			logModelCall(ctx, "innovation_assess", paper.Fingerprint, out.ProviderName, out.Model, "ok", "")
			return out, nil
		}
		lastErr = err
		errType := providers.ClassifyError(err)
		logModelCall(ctx, "innovation_assess", paper.Fingerprint, fmt.Sprintf("provider-%d", idx), "", "failed", errType)
		if isParseError(err) {
			// Malformed output from one backend; try the next, no cooldown.
			continue
		}
		key := fmt.Sprintf("assess-%d", idx)
		retryCounts[key]++
		switch {
		case errType == providers.ErrorQuota:
			disableProviderUntil(ctx, state, idx, cooldown)
		case errType == providers.ErrorRate:
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key]*2)*time.Second)
				attempt--
			} else {
				disableProviderUntil(ctx, state, idx, 2*time.Minute)
			}
		case providers.Retryable(errType):
			if retryCounts[key] <= 2 {
				workflow.Sleep(ctx, time.Duration(retryCounts[key])*time.Second)
				attempt--
			}
		default:
			disableProviderUntil(ctx, state, idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("all assessment providers exhausted")
	}
	return activities.AssessInnovationOutput{}, lastErr
}

func isProviderDisabled(ctx workflow.Context, state *providerState, idx int) bool {
	until, ok := state.disabledUntil[idx]
	if !ok {
		return false
	}
	return workflow.Now(ctx).Before(until)
}

func disableProviderUntil(ctx workflow.Context, state *providerState, idx int, d time.Duration) {
	state.disabledUntil[idx] = workflow.Now(ctx).Add(d)
}

func isNoContentError(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no extractable text")
}

func isParseError(err error) bool {
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "could not be parsed")
}

func refLabel(ref string) string {
	if strings.TrimSpace(ref) == "" {
		return "default"
	}
	return ref
}

func durationOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

func defaultCount(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
