package models

import "time"

// Section is one ordered body section of a normalized paper.
type Section struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// Paper is the normalized form of one converted document. It is immutable:
// the fingerprint is a sha256 over the canonical normalized text, so the same
// converter output always yields the same Paper.
type Paper struct {
	Fingerprint string    `json:"fingerprint"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract,omitempty"`
	Sections    []Section `json:"sections"`
	Formulas    []string  `json:"formulas,omitempty"`
	Figures     []string  `json:"figures,omitempty"`
}

// PaperRecord mirrors per-paper pipeline status into Postgres so the API can
// list and resume papers without an active workflow.
type PaperRecord struct {
	Fingerprint string    `json:"fingerprint"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title,omitempty"`
	Stage       string    `json:"stage"`
	Status      string    `json:"status"`
	FailReason  string    `json:"fail_reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Chunk is a bounded, ordered span of one section's text. Offsets are rune
// offsets within the owning section; ordering by ChunkIndex reconstructs the
// paper.
type Chunk struct {
	ChunkID      string `json:"chunk_id"`
	Fingerprint  string `json:"fingerprint"`
	ChunkIndex   int    `json:"chunk_index"`
	Section      string `json:"section"`
	SectionOrder int    `json:"section_order"`
	StartOffset  int    `json:"start_offset"`
	EndOffset    int    `json:"end_offset"`
	Text         string `json:"text"`
}

// ChunkResult is one retrieval hit with its similarity score.
type ChunkResult struct {
	Fingerprint string  `json:"fingerprint"`
	ChunkID     string  `json:"chunk_id"`
	ChunkIndex  int     `json:"chunk_index"`
	Section     string  `json:"section"`
	Score       float64 `json:"score"`
	Snippet     string  `json:"snippet"`
	ChunkText   string  `json:"chunk_text,omitempty"`
}

// ReviewDraft is one model backend's structured review of a paper. One draft
// per (fingerprint, model id); regenerable but cached.
type ReviewDraft struct {
	Fingerprint       string    `json:"fingerprint"`
	ModelID           string    `json:"model_id"`
	Model             string    `json:"model,omitempty"`
	Significance      string    `json:"significance"`
	AcceptReasons     []string  `json:"accept_reasons"`
	RejectReasons     []string  `json:"reject_reasons"`
	Suggestions       []string  `json:"suggestions"`
	FormulaHighlights []string  `json:"formula_highlights,omitempty"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// ScoreResult is the numeric score derived from a ReviewDraft. Score is
// always within [1,10]; Clamped records that the raw model value was not.
type ScoreResult struct {
	Fingerprint string    `json:"fingerprint"`
	ModelID     string    `json:"model_id"`
	Score       float64   `json:"score"`
	Rationale   string    `json:"rationale"`
	Clamped     bool      `json:"clamped,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// QASession is one retrieval-augmented answer. Ephemeral: reproducible from
// the paper, query, and retrieval configuration, never a cached stage.
type QASession struct {
	SessionID   string        `json:"session_id"`
	Fingerprint string        `json:"fingerprint"`
	Query       string        `json:"query"`
	Retrieved   []ChunkResult `json:"retrieved"`
	UsedRefs    []string      `json:"used_refs"`
	Answer      string        `json:"answer"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Innovation dimension names, in canonical order.
const (
	DimTechnicalNovelty         = "technical_novelty"
	DimConceptualOriginality    = "conceptual_originality"
	DimPotentialImpact          = "potential_impact"
	DimMethodologicalInnovation = "methodological_innovation"
	DimApplicationInnovation    = "application_innovation"
	DimSolutionInnovation       = "solution_innovation"
)

// InnovationDimensions is the closed set of assessment axes.
var InnovationDimensions = []string{
	DimTechnicalNovelty,
	DimConceptualOriginality,
	DimPotentialImpact,
	DimMethodologicalInnovation,
	DimApplicationInnovation,
	DimSolutionInnovation,
}

// DimensionAssessment holds the AI score for one axis plus an optional human
// adjustment. A human adjustment never overwrites the AI fields.
type DimensionAssessment struct {
	Name          string     `json:"name"`
	AIScore       float64    `json:"ai_score"`
	AIExplanation string     `json:"ai_explanation"`
	HumanScore    *float64   `json:"human_score,omitempty"`
	HumanReason   string     `json:"human_reason,omitempty"`
	AdjustedAt    *time.Time `json:"adjusted_at,omitempty"`
}

// InnovationAssessment is the six-dimension originality scoring for a paper.
type InnovationAssessment struct {
	Fingerprint string                `json:"fingerprint"`
	ModelID     string                `json:"model_id"`
	Dimensions  []DimensionAssessment `json:"dimensions"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Dimension returns the entry for a canonical dimension name.
func (a *InnovationAssessment) Dimension(name string) (*DimensionAssessment, bool) {
	for i := range a.Dimensions {
		if a.Dimensions[i].Name == name {
			return &a.Dimensions[i], true
		}
	}
	return nil, false
}

// FeedbackRecord is one append-only human-adjustment event. Records are never
// mutated or deleted; the log is the source of truth for exports.
type FeedbackRecord struct {
	RecordID      string    `json:"record_id"`
	Fingerprint   string    `json:"fingerprint"`
	Dimension     string    `json:"dimension"`
	AIScore       float64   `json:"ai_score"`
	AIExplanation string    `json:"ai_explanation"`
	HumanScore    float64   `json:"human_score"`
	HumanReason   string    `json:"human_reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// LearningSample is one fine-tuning pair derived from a FeedbackRecord whose
// human score differs from the AI score.
type LearningSample struct {
	Fingerprint     string    `json:"fingerprint"`
	Dimension       string    `json:"dimension"`
	InputContext    string    `json:"input_context"`
	AIOutput        string    `json:"ai_output"`
	CorrectedOutput string    `json:"corrected_output"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}
