package innovation

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

const strictFormatReminder = `Your previous response was not valid JSON.
Respond with ONLY a single JSON object matching the schema.
No markdown fences, no commentary, no text before or after the object.`

type dimensionPayload struct {
	Score       *float64 `json:"score"`
	Explanation string   `json:"explanation"`
}

// Assess scores all six innovation dimensions in one model pass. Every
// dimension must come back with a numeric score; a malformed or incomplete
// response gets exactly one stricter-format retry before failing with
// util.ErrAssessmentParse.
func Assess(ctx context.Context, llm providers.LLMProvider, paper models.Paper, modelID string) (models.InnovationAssessment, providers.ProviderInfo, error) {
	prompt := buildAssessmentPrompt(paper)
	resp, info, err := llm.Generate(ctx, providers.GenerateRequest{
		Operation:   "innovation_assess",
		Prompt:      prompt,
		Temperature: 0.2,
		MaxOutput:   1200,
	})
	if err != nil {
		return models.InnovationAssessment{}, info, fmt.Errorf("assess innovation: %w", err)
	}

	dims, parseErr := ParseAssessment(resp.Text)
	if parseErr != nil {
		resp, info, err = llm.Generate(ctx, providers.GenerateRequest{
			Operation:   "innovation_assess_strict",
			Prompt:      strictFormatReminder + "\n\n" + prompt,
			Temperature: 0,
			MaxOutput:   1200,
		})
		if err != nil {
			return models.InnovationAssessment{}, info, fmt.Errorf("assess innovation retry: %w", err)
		}
		dims, parseErr = ParseAssessment(resp.Text)
		if parseErr != nil {
			return models.InnovationAssessment{}, info, fmt.Errorf("assessment response after strict retry: %v: %w", parseErr, util.ErrAssessmentParse)
		}
	}

	return models.InnovationAssessment{
		Fingerprint: paper.Fingerprint,
		ModelID:     modelID,
		Dimensions:  dims,
		GeneratedAt: time.Now().UTC(),
	}, info, nil
}

// ParseAssessment decodes the six-dimension object. Dimensions come back in
// canonical order regardless of response ordering; scores are clamped into
// [1,10].
func ParseAssessment(raw string) ([]models.DimensionAssessment, error) {
	obj, ok := util.ExtractJSONObject(raw)
	if !ok {
		return nil, fmt.Errorf("no JSON object in response")
	}
	var payload map[string]dimensionPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, fmt.Errorf("decode assessment JSON: %w", err)
	}
	dims := make([]models.DimensionAssessment, 0, len(models.InnovationDimensions))
	for _, name := range models.InnovationDimensions {
		d, ok := payload[name]
		if !ok || d.Score == nil {
			return nil, fmt.Errorf("missing dimension %s", name)
		}
		score := *d.Score
		if score < 1 {
			score = 1
		}
		if score > 10 {
			score = 10
		}
		dims = append(dims, models.DimensionAssessment{
			Name:          name,
			AIScore:       score,
			AIExplanation: strings.TrimSpace(d.Explanation),
		})
	}
	return dims, nil
}

func buildAssessmentPrompt(p models.Paper) string {
	var b strings.Builder
	b.WriteString("Assess the originality of the scientific paper below along six dimensions.\n")
	b.WriteString("Score each dimension from 1 (derivative) to 10 (groundbreaking).\n\n")
	b.WriteString("Output STRICT JSON with exactly these keys:\n{\n")
	for i, name := range models.InnovationDimensions {
		fmt.Fprintf(&b, "  %q: {\"score\": number, \"explanation\": \"string\"}", name)
		if i < len(models.InnovationDimensions)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\nRules:\n")
	b.WriteString("- Every explanation cites concrete evidence from the paper.\n")
	b.WriteString("- Judge against the current state of the field, not in isolation.\n\n")
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Untitled Paper"
	}
	fmt.Fprintf(&b, "Title: %s\n", title)
	if abs := strings.TrimSpace(p.Abstract); abs != "" {
		fmt.Fprintf(&b, "\nAbstract:\n%s\n", abs)
	}
	for _, s := range p.Sections {
		fmt.Fprintf(&b, "\n## %s\n%s\n", s.Name, truncateRunes(s.Text, 3000))
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + " ..."
}
