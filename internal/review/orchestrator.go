package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"reviewflow/internal/models"
	"reviewflow/internal/providers"
	"reviewflow/internal/util"
)

type reviewPayload struct {
	Significance      string   `json:"significance"`
	AcceptReasons     []string `json:"accept_reasons"`
	RejectReasons     []string `json:"reject_reasons"`
	Suggestions       []string `json:"suggestions"`
	FormulaHighlights []string `json:"formula_highlights"`
}

// GenerateReview asks one model backend for a structured review. A malformed
// response triggers exactly one retry with a stricter format instruction;
// a second malformed response fails with util.ErrReviewParse so the caller
// can surface a parse failure distinctly from a provider failure.
func GenerateReview(ctx context.Context, llm providers.LLMProvider, paper models.Paper, modelID string) (models.ReviewDraft, providers.ProviderInfo, error) {
	resp, info, err := llm.Generate(ctx, providers.GenerateRequest{
		Operation:   "review_generate",
		Prompt:      BuildReviewPrompt(paper),
		Temperature: 0.2,
		MaxOutput:   1400,
	})
	if err != nil {
		return models.ReviewDraft{}, info, fmt.Errorf("generate review: %w", err)
	}

	draft, parseErr := ParseReview(resp.Text)
	if parseErr != nil {
		resp, info, err = llm.Generate(ctx, providers.GenerateRequest{
			Operation:   "review_generate_strict",
			Prompt:      BuildStrictReviewPrompt(paper),
			Temperature: 0,
			MaxOutput:   1400,
		})
		if err != nil {
			return models.ReviewDraft{}, info, fmt.Errorf("generate review retry: %w", err)
		}
		draft, parseErr = ParseReview(resp.Text)
		if parseErr != nil {
			return models.ReviewDraft{}, info, fmt.Errorf("review response after strict retry: %v: %w", parseErr, util.ErrReviewParse)
		}
	}

	draft.Fingerprint = paper.Fingerprint
	draft.ModelID = modelID
	draft.Model = info.Model
	draft.GeneratedAt = time.Now().UTC()
	return draft, info, nil
}

// ParseReview decodes a structured review from raw model output. The response
// must contain a JSON object with a non-empty significance and at least one
// accept or reject reason.
func ParseReview(raw string) (models.ReviewDraft, error) {
	obj, ok := util.ExtractJSONObject(raw)
	if !ok {
		return models.ReviewDraft{}, fmt.Errorf("no JSON object in response")
	}
	var payload reviewPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return models.ReviewDraft{}, fmt.Errorf("decode review JSON: %w", err)
	}
	draft := models.ReviewDraft{
		Significance:      strings.TrimSpace(payload.Significance),
		AcceptReasons:     cleanReasons(payload.AcceptReasons),
		RejectReasons:     cleanReasons(payload.RejectReasons),
		Suggestions:       cleanReasons(payload.Suggestions),
		FormulaHighlights: cleanReasons(payload.FormulaHighlights),
	}
	if draft.Significance == "" {
		return models.ReviewDraft{}, fmt.Errorf("missing significance")
	}
	if len(draft.AcceptReasons) == 0 && len(draft.RejectReasons) == 0 {
		return models.ReviewDraft{}, fmt.Errorf("no accept or reject reasons")
	}
	return draft, nil
}

func cleanReasons(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
