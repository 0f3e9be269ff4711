package review

import (
	"fmt"
	"strings"

	"reviewflow/internal/models"
)

const reviewSchema = `{
  "significance": "string",
  "accept_reasons": ["string"],
  "reject_reasons": ["string"],
  "suggestions": ["string"],
  "formula_highlights": ["string"]
}`

const strictFormatReminder = `Your previous response was not valid JSON.
Respond with ONLY a single JSON object matching the schema.
No markdown fences, no commentary, no text before or after the object.`

// BuildReviewPrompt renders the full-paper review request. Section bodies are
// truncated per section so long papers still fit the model context window.
func BuildReviewPrompt(p models.Paper) string {
	var b strings.Builder
	b.WriteString("You are a rigorous peer reviewer for a scientific venue.\n")
	b.WriteString("Review the paper below and produce a structured assessment.\n\n")
	b.WriteString("Output STRICT JSON with this schema:\n")
	b.WriteString(reviewSchema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- significance is a short paragraph on the contribution and its weight.\n")
	b.WriteString("- accept_reasons and reject_reasons each hold concrete, evidence-backed points.\n")
	b.WriteString("- suggestions are actionable improvements.\n")
	b.WriteString("- formula_highlights names notable formulas, or [] when none stand out.\n")
	b.WriteString("- Ground every point in the paper text. Do not invent results.\n\n")
	writePaperDigest(&b, p)
	return b.String()
}

// BuildStrictReviewPrompt is the single-retry variant used after a parse
// failure.
func BuildStrictReviewPrompt(p models.Paper) string {
	return strictFormatReminder + "\n\n" + BuildReviewPrompt(p)
}

// BuildScorePrompt renders the scoring request from a finished draft rather
// than the raw paper, so the score is grounded in the review's own reasons.
func BuildScorePrompt(d models.ReviewDraft) string {
	var b strings.Builder
	b.WriteString("You are scoring a peer review of a scientific paper.\n")
	b.WriteString("Assign one overall score from 1 (reject) to 10 (strong accept).\n\n")
	b.WriteString("Output STRICT JSON: {\"score\": number, \"rationale\": \"string\"}\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- score must be a number between 1 and 10.\n")
	b.WriteString("- rationale must reference at least one strength and one weakness from the review when both exist.\n\n")
	b.WriteString("Review significance:\n")
	b.WriteString(d.Significance)
	b.WriteString("\n\nStrengths:\n")
	writeBullets(&b, d.AcceptReasons)
	b.WriteString("\nWeaknesses:\n")
	writeBullets(&b, d.RejectReasons)
	b.WriteString("\nSuggestions:\n")
	writeBullets(&b, d.Suggestions)
	return b.String()
}

func writePaperDigest(b *strings.Builder, p models.Paper) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = "Untitled Paper"
	}
	fmt.Fprintf(b, "Title: %s\n", title)
	if abs := strings.TrimSpace(p.Abstract); abs != "" {
		fmt.Fprintf(b, "\nAbstract:\n%s\n", abs)
	}
	for _, s := range p.Sections {
		fmt.Fprintf(b, "\n## %s\n%s\n", s.Name, truncateRunes(s.Text, 4000))
	}
	if len(p.Formulas) > 0 {
		b.WriteString("\nFormulas:\n")
		writeBullets(b, p.Formulas)
	}
	if len(p.Figures) > 0 {
		b.WriteString("\nFigures:\n")
		writeBullets(b, p.Figures)
	}
}

func writeBullets(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("- (none)\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + " ..."
}
