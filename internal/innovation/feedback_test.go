package innovation

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reviewflow/internal/models"
	"reviewflow/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	records []models.FeedbackRecord
	err     error
}

func (m *memSink) Insert(ctx context.Context, rec models.FeedbackRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func testAssessment() models.InnovationAssessment {
	dims := make([]models.DimensionAssessment, 0, len(models.InnovationDimensions))
	for _, name := range models.InnovationDimensions {
		dims = append(dims, models.DimensionAssessment{Name: name, AIScore: 6, AIExplanation: "baseline"})
	}
	return models.InnovationAssessment{Fingerprint: "fp-abc", ModelID: "m", Dimensions: dims}
}

func TestApplyAdjustmentSetsHumanFieldsOnly(t *testing.T) {
	a := testAssessment()
	sink := &memSink{}

	rec, err := ApplyAdjustment(context.Background(), sink, &a, models.DimPotentialImpact, 8.5, "underrated impact")
	require.NoError(t, err)

	dim, ok := a.Dimension(models.DimPotentialImpact)
	require.True(t, ok)
	assert.Equal(t, 6.0, dim.AIScore)
	assert.Equal(t, "baseline", dim.AIExplanation)
	require.NotNil(t, dim.HumanScore)
	assert.Equal(t, 8.5, *dim.HumanScore)
	assert.Equal(t, "underrated impact", dim.HumanReason)
	assert.NotNil(t, dim.AdjustedAt)

	require.Len(t, sink.records, 1)
	assert.Equal(t, rec.RecordID, sink.records[0].RecordID)
	assert.Equal(t, 6.0, rec.AIScore)
	assert.Equal(t, 8.5, rec.HumanScore)

	other, _ := a.Dimension(models.DimTechnicalNovelty)
	assert.Nil(t, other.HumanScore)
}

func TestApplyAdjustmentValidates(t *testing.T) {
	a := testAssessment()
	sink := &memSink{}

	_, err := ApplyAdjustment(context.Background(), sink, &a, "velocity", 5, "r")
	assert.Error(t, err)

	_, err = ApplyAdjustment(context.Background(), sink, &a, models.DimPotentialImpact, 11, "r")
	assert.Error(t, err)
	assert.Empty(t, sink.records)
}

func TestApplyAdjustmentSinkFailureKeepsAdjustment(t *testing.T) {
	a := testAssessment()
	sink := &memSink{err: errors.New("db down")}

	rec, err := ApplyAdjustment(context.Background(), sink, &a, models.DimPotentialImpact, 9, "r")
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrFeedbackPersist)
	assert.NotEmpty(t, rec.RecordID)

	dim, _ := a.Dimension(models.DimPotentialImpact)
	require.NotNil(t, dim.HumanScore)
	assert.Equal(t, 9.0, *dim.HumanScore)
}

func TestBuildLearningSamplesSkipsAgreement(t *testing.T) {
	now := time.Now().UTC()
	records := []models.FeedbackRecord{
		{Fingerprint: "fp", Dimension: models.DimTechnicalNovelty, AIScore: 6, HumanScore: 6, CreatedAt: now},
		{Fingerprint: "fp", Dimension: models.DimPotentialImpact, AIScore: 6, AIExplanation: "e", HumanScore: 8, HumanReason: "under", CreatedAt: now},
	}
	samples := BuildLearningSamples(records)
	require.Len(t, samples, 1)
	assert.Equal(t, models.DimPotentialImpact, samples[0].Dimension)
	assert.Contains(t, samples[0].AIOutput, "6.0")
	assert.Equal(t, "8.0", samples[0].CorrectedOutput)
	assert.Equal(t, "under", samples[0].Reason)
}

func TestExportSamplesWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	samples := []models.LearningSample{
		{Fingerprint: "fp", Dimension: models.DimPotentialImpact, AIOutput: "6.0: e", CorrectedOutput: "8.0"},
		{Fingerprint: "fp", Dimension: models.DimTechnicalNovelty, AIOutput: "6.0: e", CorrectedOutput: "4.0"},
	}
	path, err := ExportSamples(dir, samples)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var s models.LearningSample
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		lines++
	}
	assert.Equal(t, 2, lines)
}
