package activities

import (
	"reviewflow/internal/converter"
	"reviewflow/internal/models"
)

type ConvertPaperInput struct {
	PaperPath string `json:"paper_path"`
}

type ConvertPaperOutput struct {
	Doc converter.Document `json:"doc"`
}

type NormalizePaperInput struct {
	Doc converter.Document `json:"doc"`
}

type NormalizePaperOutput struct {
	Paper models.Paper `json:"paper"`
}

type CacheNormalizedInput struct {
	Paper models.Paper `json:"paper"`
}

type ChunkPaperInput struct {
	Paper        models.Paper `json:"paper"`
	ChunkSize    int          `json:"chunk_size"`
	ChunkOverlap int          `json:"chunk_overlap"`
}

type ChunkPaperOutput struct {
	Chunks []models.Chunk `json:"chunks"`
}

type EmbedChunksInput struct {
	ProviderIndex int      `json:"provider_index"`
	Operation     string   `json:"operation"`
	Inputs        []string `json:"inputs"`
}

type EmbedChunksOutput struct {
	Vectors      [][]float32 `json:"vectors"`
	ProviderName string      `json:"provider_name"`
	Model        string      `json:"model"`
}

type IndexChunksInput struct {
	Fingerprint   string         `json:"fingerprint"`
	Chunks        []models.Chunk `json:"chunks"`
	Vectors       [][]float32    `json:"vectors"`
	EmbedProvider string         `json:"embed_provider"`
	EmbedModel    string         `json:"embed_model"`
}

type IndexChunksOutput struct {
	ChunkCount int `json:"chunk_count"`
}

type GenerateReviewInput struct {
	ProviderIndex int          `json:"provider_index"`
	ProviderRef   string       `json:"provider_ref"`
	Paper         models.Paper `json:"paper"`
}

type GenerateReviewOutput struct {
	Draft        models.ReviewDraft `json:"draft"`
	ProviderName string             `json:"provider_name"`
	Model        string             `json:"model"`
	Cached       bool               `json:"cached"`
}

type ScoreReviewInput struct {
	ProviderIndex int                `json:"provider_index"`
	ProviderRef   string             `json:"provider_ref"`
	Draft         models.ReviewDraft `json:"draft"`
}

type ScoreReviewOutput struct {
	Result       models.ScoreResult `json:"result"`
	ProviderName string             `json:"provider_name"`
	Model        string             `json:"model"`
	Cached       bool               `json:"cached"`
}

type AssessInnovationInput struct {
	ProviderIndex int          `json:"provider_index"`
	ProviderRef   string       `json:"provider_ref"`
	Paper         models.Paper `json:"paper"`
}

type AssessInnovationOutput struct {
	Assessment   models.InnovationAssessment `json:"assessment"`
	ProviderName string                      `json:"provider_name"`
	Model        string                      `json:"model"`
	Cached       bool                        `json:"cached"`
}

type UpdatePaperStatusInput struct {
	Fingerprint string `json:"fingerprint"`
	Filename    string `json:"filename"`
	Title       string `json:"title,omitempty"`
	Stage       string `json:"stage"`
	Status      string `json:"status"`
	FailReason  string `json:"fail_reason,omitempty"`
}

type LogModelCallInput struct {
	CallID       string `json:"call_id,omitempty"`
	Operation    string `json:"operation"`
	Fingerprint  string `json:"fingerprint,omitempty"`
	ProviderName string `json:"provider_name"`
	Model        string `json:"model"`
	RequestID    string `json:"request_id,omitempty"`
	Status       string `json:"status"`
	ErrorType    string `json:"error_type,omitempty"`
}
