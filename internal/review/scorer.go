package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"reviewflow/internal/models"
	"reviewflow/internal/providers"
	"reviewflow/internal/util"
)

type scorePayload struct {
	Score     *float64 `json:"score"`
	Rationale string   `json:"rationale"`
}

// ScoreReview derives one numeric score from a finished review draft. The
// raw model value is clamped into [1,10]; a clamp is recorded on the result
// and logged, never silently absorbed. A missing or non-numeric score after
// the strict retry fails with util.ErrScoreParse.
func ScoreReview(ctx context.Context, llm providers.LLMProvider, draft models.ReviewDraft) (models.ScoreResult, providers.ProviderInfo, error) {
	prompt := BuildScorePrompt(draft)
	resp, info, err := llm.Generate(ctx, providers.GenerateRequest{
		Operation:   "review_score",
		Prompt:      prompt,
		Temperature: 0,
		MaxOutput:   400,
	})
	if err != nil {
		return models.ScoreResult{}, info, fmt.Errorf("score review: %w", err)
	}

	payload, parseErr := parseScore(resp.Text)
	if parseErr != nil {
		resp, info, err = llm.Generate(ctx, providers.GenerateRequest{
			Operation:   "review_score_strict",
			Prompt:      strictFormatReminder + "\n\n" + prompt,
			Temperature: 0,
			MaxOutput:   400,
		})
		if err != nil {
			return models.ScoreResult{}, info, fmt.Errorf("score review retry: %w", err)
		}
		payload, parseErr = parseScore(resp.Text)
		if parseErr != nil {
			return models.ScoreResult{}, info, fmt.Errorf("score response after strict retry: %v: %w", parseErr, util.ErrScoreParse)
		}
	}

	score, clamped := clampScore(*payload.Score)
	if clamped {
		log.Printf("[scorer] clamped raw score %.2f to %.2f fingerprint=%s model=%s",
			*payload.Score, score, draft.Fingerprint, draft.ModelID)
	}
	return models.ScoreResult{
		Fingerprint: draft.Fingerprint,
		ModelID:     draft.ModelID,
		Score:       score,
		Rationale:   groundRationale(payload.Rationale, draft),
		Clamped:     clamped,
		GeneratedAt: time.Now().UTC(),
	}, info, nil
}

func parseScore(raw string) (scorePayload, error) {
	obj, ok := util.ExtractJSONObject(raw)
	if !ok {
		return scorePayload{}, fmt.Errorf("no JSON object in response")
	}
	var payload scorePayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return scorePayload{}, fmt.Errorf("decode score JSON: %w", err)
	}
	if payload.Score == nil {
		return scorePayload{}, fmt.Errorf("missing score")
	}
	if math.IsNaN(*payload.Score) || math.IsInf(*payload.Score, 0) {
		return scorePayload{}, fmt.Errorf("non-finite score")
	}
	return payload, nil
}

// groundRationale guarantees the rationale cites the draft's own reasons.
// When a populated reason list goes unreferenced, its first entry is appended
// so the score always traces back to the review.
func groundRationale(rationale string, draft models.ReviewDraft) string {
	rationale = strings.TrimSpace(rationale)
	if rationale == "" {
		rationale = strings.TrimSpace(draft.Significance)
	}
	if r, ok := unreferencedReason(rationale, draft.AcceptReasons); ok {
		rationale = strings.TrimSpace(rationale + " Strength: " + r)
	}
	if r, ok := unreferencedReason(rationale, draft.RejectReasons); ok {
		rationale = strings.TrimSpace(rationale + " Weakness: " + r)
	}
	return rationale
}

// unreferencedReason returns the first non-empty reason when the rationale
// mentions none of the list.
func unreferencedReason(rationale string, reasons []string) (string, bool) {
	lower := strings.ToLower(rationale)
	first := ""
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if first == "" {
			first = r
		}
		if strings.Contains(lower, strings.ToLower(strings.TrimRight(r, "."))) {
			return "", false
		}
	}
	if first == "" {
		return "", false
	}
	return first, true
}

func clampScore(raw float64) (float64, bool) {
	switch {
	case raw < 1:
		return 1, true
	case raw > 10:
		return 10, true
	default:
		return raw, false
	}
}
