package innovation

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"reviewflow/internal/models"
	"reviewflow/internal/util"

	"github.com/google/uuid"
)

// FeedbackSink appends one feedback record. Implementations must be
// append-only; the log is never rewritten.
type FeedbackSink interface {
	Insert(ctx context.Context, rec models.FeedbackRecord) error
}

// ApplyAdjustment records a human correction on one dimension. The AI score
// and explanation stay untouched; the human fields are set alongside them and
// the event is appended to the feedback log.
//
// A failed log append returns util.ErrFeedbackPersist but the adjusted
// assessment is still valid in memory, so callers can retry the append
// without redoing the adjustment.
func ApplyAdjustment(ctx context.Context, sink FeedbackSink, assessment *models.InnovationAssessment, dimension string, humanScore float64, reason string) (models.FeedbackRecord, error) {
	dim, ok := assessment.Dimension(dimension)
	if !ok {
		return models.FeedbackRecord{}, fmt.Errorf("unknown dimension %q", dimension)
	}
	if humanScore < 1 || humanScore > 10 {
		return models.FeedbackRecord{}, fmt.Errorf("human score %.2f outside [1,10]", humanScore)
	}

	now := time.Now().UTC()
	score := humanScore
	dim.HumanScore = &score
	dim.HumanReason = reason
	dim.AdjustedAt = &now

	rec := models.FeedbackRecord{
		RecordID:      uuid.NewString(),
		Fingerprint:   assessment.Fingerprint,
		Dimension:     dimension,
		AIScore:       dim.AIScore,
		AIExplanation: dim.AIExplanation,
		HumanScore:    humanScore,
		HumanReason:   reason,
		CreatedAt:     now,
	}
	if err := sink.Insert(ctx, rec); err != nil {
		log.Printf("[innovation] feedback append failed fingerprint=%s dimension=%s: %v", rec.Fingerprint, dimension, err)
		return rec, fmt.Errorf("%v: %w", err, util.ErrFeedbackPersist)
	}
	return rec, nil
}

// BuildLearningSamples turns disagreement records into fine-tuning pairs.
// Records where the human agreed with the AI produce nothing.
func BuildLearningSamples(records []models.FeedbackRecord) []models.LearningSample {
	samples := make([]models.LearningSample, 0, len(records))
	for _, rec := range records {
		if rec.AIScore == rec.HumanScore {
			continue
		}
		samples = append(samples, models.LearningSample{
			Fingerprint:     rec.Fingerprint,
			Dimension:       rec.Dimension,
			InputContext:    fmt.Sprintf("Assess the %s of paper %s on a 1-10 scale.", rec.Dimension, rec.Fingerprint),
			AIOutput:        fmt.Sprintf("%.1f: %s", rec.AIScore, rec.AIExplanation),
			CorrectedOutput: fmt.Sprintf("%.1f", rec.HumanScore),
			Reason:          rec.HumanReason,
			CreatedAt:       rec.CreatedAt,
		})
	}
	return samples
}

// ExportSamples writes learning samples as JSONL under dir and returns the
// file path. The write is atomic so a partial export is never visible.
func ExportSamples(dir string, samples []models.LearningSample) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("learning-samples-%s.jsonl", time.Now().UTC().Format("20060102-150405")))
	rows := make([]any, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, s)
	}
	if err := util.WriteJSONLinesAtomic(path, rows); err != nil {
		return "", fmt.Errorf("export learning samples: %w", err)
	}
	return path, nil
}
