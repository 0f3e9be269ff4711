package activities

import (
	"context"
	"encoding/json"
	"fmt"

	"reviewflow/internal/cache"
	"reviewflow/internal/config"
	"reviewflow/internal/converter"
	"reviewflow/internal/ingest"
	"reviewflow/internal/innovation"
	"reviewflow/internal/models"
	"reviewflow/internal/providers"
	"reviewflow/internal/review"
	"reviewflow/internal/storage"
	"reviewflow/internal/vector"
)

type Activities struct {
	cfg            config.Config
	paperRepo      *storage.PaperRepo
	chunkRepo      *storage.ChunkRepo
	modelAuditRepo *storage.ModelAuditRepo
	providers      *providers.Manager
	coordinator    *cache.Coordinator
	converter      *converter.Client
}

func New(cfg config.Config, db *storage.DB) (*Activities, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	return &Activities{
		cfg:            cfg,
		paperRepo:      storage.NewPaperRepo(db),
		chunkRepo:      storage.NewChunkRepo(db),
		modelAuditRepo: storage.NewModelAuditRepo(db),
		providers:      pm,
		coordinator:    cache.NewCoordinator(cfg.CacheRoot),
		converter:      converter.NewClient(cfg.ConverterURL),
	}, nil
}

func (a *Activities) ConvertPaperActivity(ctx context.Context, in ConvertPaperInput) (ConvertPaperOutput, error) {
	doc, err := a.converter.Convert(ctx, in.PaperPath)
	if err != nil {
		return ConvertPaperOutput{}, err
	}
	return ConvertPaperOutput{Doc: doc}, nil
}

func (a *Activities) NormalizePaperActivity(ctx context.Context, in NormalizePaperInput) (NormalizePaperOutput, error) {
	_ = ctx
	paper, err := ingest.Normalize(in.Doc)
	if err != nil {
		return NormalizePaperOutput{}, err
	}
	return NormalizePaperOutput{Paper: paper}, nil
}

func (a *Activities) CacheNormalizedActivity(ctx context.Context, in CacheNormalizedInput) error {
	_ = ctx
	return a.coordinator.Put(in.Paper.Fingerprint, cache.StageNormalized, "", in.Paper)
}

func (a *Activities) ChunkPaperActivity(ctx context.Context, in ChunkPaperInput) (ChunkPaperOutput, error) {
	_ = ctx
	cfg := ingest.ChunkConfig{Size: in.ChunkSize, Overlap: in.ChunkOverlap}
	if cfg.Size <= 0 {
		cfg.Size = a.cfg.ChunkSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg.Overlap = a.cfg.ChunkOverlap
	}
	chunks, err := ingest.Split(in.Paper, cfg)
	if err != nil {
		return ChunkPaperOutput{}, err
	}
	return ChunkPaperOutput{Chunks: chunks}, nil
}

func (a *Activities) EmbedChunksActivity(ctx context.Context, in EmbedChunksInput) (EmbedChunksOutput, error) {
	provider, _ := a.providers.EmbedProviderByIndex(in.ProviderIndex)
	vectors, info, err := provider.Embed(ctx, providers.EmbedRequest{
		Operation: in.Operation,
		Inputs:    in.Inputs,
		Dimension: a.cfg.EmbedDim,
	})
	if err != nil {
		return EmbedChunksOutput{}, err
	}
	if len(vectors) != len(in.Inputs) {
		return EmbedChunksOutput{}, fmt.Errorf("embedding count mismatch: %d inputs, %d vectors", len(in.Inputs), len(vectors))
	}
	return EmbedChunksOutput{Vectors: vectors, ProviderName: info.Name, Model: info.Model}, nil
}

// IndexChunksActivity replaces the paper's chunk rows wholesale and records
// which embedding backend produced the vectors. Queries for this paper must
// embed with the same backend from now on.
func (a *Activities) IndexChunksActivity(ctx context.Context, in IndexChunksInput) (IndexChunksOutput, error) {
	records := make([]storage.ChunkRecord, 0, len(in.Chunks))
	for i, c := range in.Chunks {
		var embedding *string
		if i < len(in.Vectors) && len(in.Vectors[i]) > 0 {
			lit := vector.ToLiteral(in.Vectors[i])
			embedding = &lit
		}
		records = append(records, storage.ChunkRecord{
			ChunkID:         c.ChunkID,
			Fingerprint:     c.Fingerprint,
			ChunkIndex:      c.ChunkIndex,
			Section:         c.Section,
			SectionOrder:    c.SectionOrder,
			StartOffset:     c.StartOffset,
			EndOffset:       c.EndOffset,
			Text:            c.Text,
			EmbeddingVector: embedding,
		})
	}
	if err := a.chunkRepo.ReplaceChunks(ctx, in.Fingerprint, records); err != nil {
		return IndexChunksOutput{}, err
	}
	if err := a.paperRepo.SetEmbedProvider(ctx, in.Fingerprint, in.EmbedProvider); err != nil {
		return IndexChunksOutput{}, err
	}
	summary := map[string]any{
		"chunk_count":    len(records),
		"embed_provider": in.EmbedProvider,
		"embed_model":    in.EmbedModel,
		"embed_dim":      a.cfg.EmbedDim,
	}
	if err := a.coordinator.Put(in.Fingerprint, cache.StageIndexed, "", summary); err != nil {
		return IndexChunksOutput{}, err
	}
	return IndexChunksOutput{ChunkCount: len(records)}, nil
}

// GenerateReviewActivity produces one model backend's review, served from the
// stage cache when the artifact already exists.
func (a *Activities) GenerateReviewActivity(ctx context.Context, in GenerateReviewInput) (GenerateReviewOutput, error) {
	if in.ProviderRef != "" {
		if idx := a.providers.FindLLMProviderIndex(in.ProviderRef); idx >= 0 {
			in.ProviderIndex = idx
		} else {
			return GenerateReviewOutput{}, fmt.Errorf("llm provider ref not configured in worker: %s", in.ProviderRef)
		}
	}
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)

	var lastInfo providers.ProviderInfo
	data, hit, err := a.coordinator.GetOrCompute(ctx, in.Paper.Fingerprint, cache.StageReviewed, ref.Raw, func(ctx context.Context) (any, error) {
		draft, info, err := review.GenerateReview(ctx, provider, in.Paper, ref.Raw)
		lastInfo = info
		if err != nil {
			return nil, err
		}
		return draft, nil
	})
	if err != nil {
		return GenerateReviewOutput{ProviderName: lastInfo.Name, Model: lastInfo.Model}, fmt.Errorf("review via %s failed: %w", ref.Raw, err)
	}
	var draft models.ReviewDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return GenerateReviewOutput{}, fmt.Errorf("decode cached review: %w", err)
	}
	return GenerateReviewOutput{Draft: draft, ProviderName: ref.Name, Model: draft.Model, Cached: hit}, nil
}

func (a *Activities) ScoreReviewActivity(ctx context.Context, in ScoreReviewInput) (ScoreReviewOutput, error) {
	if in.ProviderRef != "" {
		if idx := a.providers.FindLLMProviderIndex(in.ProviderRef); idx >= 0 {
			in.ProviderIndex = idx
		} else {
			return ScoreReviewOutput{}, fmt.Errorf("llm provider ref not configured in worker: %s", in.ProviderRef)
		}
	}
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)

	data, hit, err := a.coordinator.GetOrCompute(ctx, in.Draft.Fingerprint, cache.StageScored, in.Draft.ModelID, func(ctx context.Context) (any, error) {
		result, _, err := review.ScoreReview(ctx, provider, in.Draft)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return ScoreReviewOutput{}, fmt.Errorf("score via %s failed: %w", ref.Raw, err)
	}
	var result models.ScoreResult
	if err := json.Unmarshal(data, &result); err != nil {
		return ScoreReviewOutput{}, fmt.Errorf("decode cached score: %w", err)
	}
	return ScoreReviewOutput{Result: result, ProviderName: ref.Name, Model: ref.Raw, Cached: hit}, nil
}

func (a *Activities) AssessInnovationActivity(ctx context.Context, in AssessInnovationInput) (AssessInnovationOutput, error) {
	if in.ProviderRef != "" {
		if idx := a.providers.FindLLMProviderIndex(in.ProviderRef); idx >= 0 {
			in.ProviderIndex = idx
		} else {
			return AssessInnovationOutput{}, fmt.Errorf("llm provider ref not configured in worker: %s", in.ProviderRef)
		}
	}
	provider, ref := a.providers.LLMProviderByIndex(in.ProviderIndex)

	data, hit, err := a.coordinator.GetOrCompute(ctx, in.Paper.Fingerprint, cache.StageAssessed, ref.Raw, func(ctx context.Context) (any, error) {
		assessment, _, err := innovation.Assess(ctx, provider, in.Paper, ref.Raw)
		if err != nil {
			return nil, err
		}
		return assessment, nil
	})
	if err != nil {
		return AssessInnovationOutput{}, fmt.Errorf("assessment via %s failed: %w", ref.Raw, err)
	}
	var assessment models.InnovationAssessment
	if err := json.Unmarshal(data, &assessment); err != nil {
		return AssessInnovationOutput{}, fmt.Errorf("decode cached assessment: %w", err)
	}
	return AssessInnovationOutput{Assessment: assessment, ProviderName: ref.Name, Model: ref.Raw, Cached: hit}, nil
}

func (a *Activities) UpdatePaperStatusActivity(ctx context.Context, in UpdatePaperStatusInput) error {
	return a.paperRepo.UpsertPaper(ctx, models.PaperRecord{
		Fingerprint: in.Fingerprint,
		Filename:    in.Filename,
		Title:       in.Title,
		Stage:       in.Stage,
		Status:      in.Status,
		FailReason:  in.FailReason,
	})
}

func (a *Activities) LogModelCallActivity(ctx context.Context, in LogModelCallInput) error {
	return a.modelAuditRepo.Insert(ctx, storage.ModelCallRecord{
		CallID:       in.CallID,
		Operation:    in.Operation,
		Fingerprint:  in.Fingerprint,
		ProviderName: in.ProviderName,
		Model:        in.Model,
		RequestID:    in.RequestID,
		Status:       in.Status,
		ErrorType:    in.ErrorType,
	})
}
