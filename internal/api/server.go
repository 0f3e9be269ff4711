package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"reviewflow/internal/cache"
	"reviewflow/internal/config"
	"reviewflow/internal/innovation"
	"reviewflow/internal/models"
	"reviewflow/internal/providers"
	"reviewflow/internal/qa"
	"reviewflow/internal/storage"
	"reviewflow/internal/util"
	"reviewflow/internal/vector"
	"reviewflow/internal/workflows"

	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
)

type Server struct {
	cfg          config.Config
	db           *storage.DB
	paperRepo    *storage.PaperRepo
	chunkRepo    *storage.ChunkRepo
	feedbackRepo *storage.FeedbackRepo
	searcher     *vector.Searcher
	providers    *providers.Manager
	coordinator  *cache.Coordinator
	temporal     tclient.Client
}

func NewServer(cfg config.Config) *Server {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		panic(err)
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		panic(err)
	}
	tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		panic(err)
	}
	return &Server{
		cfg:          cfg,
		db:           db,
		paperRepo:    storage.NewPaperRepo(db),
		chunkRepo:    storage.NewChunkRepo(db),
		feedbackRepo: storage.NewFeedbackRepo(db),
		searcher:     vector.NewSearcher(db.Pool),
		providers:    pm,
		coordinator:  cache.NewCoordinator(cfg.CacheRoot),
		temporal:     tc,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/papers", s.handlePapers)
	mux.HandleFunc("/papers/", s.handlePapersScoped)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.HandleFunc("/export/learning-samples", s.handleExportSamples)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		papers, err := s.paperRepo.ListPapers(r.Context())
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

// handleUpload stores the PDF under a content-addressed name. Re-uploading
// identical bytes lands on the same upload ID, so the workflow and its cached
// stages are shared.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(128 << 20); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		if single, ok := firstSingleFile(r.MultipartForm.File); ok {
			files = append(files, single)
		}
	}
	if len(files) == 0 {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	fh := files[0]
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("only pdf uploads are supported"))
		return
	}
	if err := util.EnsureDir(s.cfg.UploadDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	uploadID, savedPath, err := saveUploadedFile(s.cfg.UploadDir, fh)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.coordinator.Put(uploadID, cache.StageUploaded, "", map[string]any{
		"upload_id":   uploadID,
		"filename":    filepath.Base(fh.Filename),
		"stored_path": savedPath,
		"uploaded_at": time.Now().UTC(),
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"upload_id": uploadID,
		"filename":  filepath.Base(fh.Filename),
	})
}

func (s *Server) handlePapersScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/papers/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	id := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
			return
		}
		paper, err := s.paperRepo.GetPaper(r.Context(), id)
		if err != nil {
			writeErr(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, paper)
		return
	}

	switch parts[1] {
	case "process":
		s.handleProcess(w, r, id)
	case "status":
		s.handleStatus(w, r, id)
	case "chunks":
		s.handleChunks(w, r, id)
	case "cancel":
		s.handleCancel(w, r, id)
	case "reviews":
		s.handleStageRead(w, r, id, cache.StageReviewed, "reviews")
	case "scores":
		s.handleStageRead(w, r, id, cache.StageScored, "scores")
	case "assessment":
		if len(parts) == 3 && parts[2] == "feedback" {
			s.handleFeedback(w, r, id)
			return
		}
		s.handleAssessmentRead(w, r, id)
	case "feedback":
		s.handleFeedbackList(w, r, id)
	case "invalidate":
		s.handleInvalidate(w, r, id)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, uploadID string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var meta struct {
		Filename   string `json:"filename"`
		StoredPath string `json:"stored_path"`
	}
	found, err := s.coordinator.Get(uploadID, cache.StageUploaded, "", &meta)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Errorf("upload not found"))
		return
	}

	var req struct {
		ReviewProviders []string `json:"review_providers,omitempty"`
		ScoringProvider string   `json:"scoring_provider,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	refs := req.ReviewProviders
	if len(refs) == 0 {
		for _, ref := range s.providers.LLMRefs() {
			refs = append(refs, ref.Raw)
		}
	}
	scoringRef := req.ScoringProvider
	if scoringRef == "" {
		scoringRef = s.cfg.ScoringProvider
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       "paper-" + uploadID,
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.PaperReviewWorkflow, workflows.PaperReviewInput{
		PaperPath:          meta.StoredPath,
		Filename:           meta.Filename,
		ChunkSize:          s.cfg.ChunkSize,
		ChunkOverlap:       s.cfg.ChunkOverlap,
		EmbedProviders:     s.providers.EmbedCount(),
		LLMProviders:       s.providers.LLMCount(),
		ReviewProviderRefs: refs,
		ScoringProviderRef: scoringRef,
		CooldownSeconds:    s.cfg.ProviderCooldownSecs,
		MaxAttempts:        s.cfg.ModelMaxAttempts,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"workflow_id": we.GetID(), "run_id": we.GetRunID()})
}

// handleStatus answers from the live workflow when one exists, otherwise from
// the status record in Postgres. The id is the upload hash for workflow
// queries and the content fingerprint for record lookups.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	resp, err := s.temporal.QueryWorkflow(r.Context(), "paper-"+id, "", workflows.QueryGetReviewStatus)
	if err == nil {
		var status workflows.ReviewStatus
		if err := resp.Get(&status); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}
	paper, dbErr := s.paperRepo.GetPaper(r.Context(), id)
	if dbErr != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("no workflow or record for paper"))
		return
	}
	embedded, _ := s.chunkRepo.CountEmbedded(r.Context(), paper.Fingerprint)
	writeJSON(w, http.StatusOK, workflows.ReviewStatus{
		Fingerprint: paper.Fingerprint,
		Filename:    paper.Filename,
		Title:       paper.Title,
		Stage:       paper.Stage,
		Status:      paper.Status,
		FailReason:  paper.FailReason,
		ChunkCount:  embedded,
	})
}

// handleChunks lists a paper's indexed chunks without their vectors, in
// chunk-index order.
func (s *Server) handleChunks(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	chunks, err := s.chunkRepo.ListChunksByPaper(r.Context(), fingerprint)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fingerprint": fingerprint,
		"chunk_count": len(chunks),
		"chunks":      chunks,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if err := s.temporal.CancelWorkflow(r.Context(), "paper-"+id, ""); err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

// handleStageRead serves cached stage artifacts: one when ?model= is given,
// every model variant otherwise.
func (s *Server) handleStageRead(w http.ResponseWriter, r *http.Request, fingerprint string, stage cache.Stage, key string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	if model := strings.TrimSpace(r.URL.Query().Get("model")); model != "" {
		var payload json.RawMessage
		found, err := s.coordinator.Get(fingerprint, stage, model, &payload)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		if !found {
			writeErr(w, http.StatusNotFound, fmt.Errorf("no %s artifact for model", key))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{key: []json.RawMessage{payload}})
		return
	}
	payloads, err := s.coordinator.List(fingerprint, stage)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	raw := make([]json.RawMessage, 0, len(payloads))
	for _, p := range payloads {
		raw = append(raw, json.RawMessage(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{key: raw})
}

func (s *Server) handleAssessmentRead(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	assessment, _, err := s.loadAssessment(fingerprint, r.URL.Query().Get("model"))
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, assessment)
}

// handleFeedback applies a human adjustment to one assessment dimension. The
// AI fields stay as generated; the event is appended to the feedback log and
// the updated assessment artifact is rewritten.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Dimension  string  `json:"dimension"`
		HumanScore float64 `json:"human_score"`
		Reason     string  `json:"reason"`
		Model      string  `json:"model,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if strings.TrimSpace(req.Dimension) == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("dimension is required"))
		return
	}

	assessment, model, err := s.loadAssessment(fingerprint, req.Model)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}
	rec, err := innovation.ApplyAdjustment(r.Context(), s.feedbackRepo, &assessment, req.Dimension, req.HumanScore, req.Reason)
	if err != nil {
		if errors.Is(err, util.ErrFeedbackPersist) {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := s.coordinator.Put(fingerprint, cache.StageAssessed, model, assessment); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"record": rec, "assessment": assessment})
}

func (s *Server) handleFeedbackList(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	records, err := s.feedbackRepo.ListByPaper(r.Context(), fingerprint)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleInvalidate cascades cache invalidation from a stage downstream. The
// vector index rows go with the indexed stage; the feedback log is never
// touched.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request, fingerprint string) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		FromStage string `json:"from_stage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	from := cache.Stage(strings.TrimSpace(req.FromStage))
	cascade, err := s.coordinator.Invalidate(fingerprint, from)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	for _, st := range cascade {
		if st == cache.StageIndexed {
			if err := s.chunkRepo.DeleteChunks(r.Context(), fingerprint); err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invalidated": cascade})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		Fingerprint string  `json:"fingerprint"`
		Question    string  `json:"question"`
		TopK        int     `json:"top_k,omitempty"`
		MinScore    float64 `json:"min_score,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.Fingerprint = strings.TrimSpace(req.Fingerprint)
	req.Question = strings.TrimSpace(req.Question)
	if req.Fingerprint == "" || req.Question == "" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("fingerprint and question are required"))
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.cfg.TopK
	}
	if req.MinScore <= 0 {
		req.MinScore = s.cfg.MinSimilarity
	}

	// Query embedding must use the backend recorded at index time so both
	// vectors live in the same space.
	embedName, err := s.paperRepo.GetEmbedProvider(r.Context(), req.Fingerprint)
	if err != nil {
		writeErr(w, http.StatusNotFound, fmt.Errorf("paper is not indexed"))
		return
	}
	embedIdx := s.providers.FindEmbedProviderIndex(embedName)
	if embedIdx < 0 {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("embed backend %q not configured", embedName))
		return
	}
	embedProvider, _ := s.providers.EmbedProviderByIndex(embedIdx)
	vectors, _, err := embedProvider.Embed(r.Context(), providers.EmbedRequest{
		Operation: "qa_query_embed",
		Inputs:    []string{req.Question},
		Dimension: s.cfg.EmbedDim,
	})
	if err != nil || len(vectors) == 0 {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("embedding backend unavailable"))
		return
	}

	retrieved, retrievalErr := s.searcher.SearchChunks(r.Context(), req.Fingerprint, vectors[0], req.TopK, req.MinScore)
	if retrievalErr != nil && !errors.Is(retrievalErr, util.ErrEmptyRetrieval) {
		writeErr(w, http.StatusInternalServerError, retrievalErr)
		return
	}

	llm, _ := s.providers.LLMProviderByIndex(0)
	session, info, err := qa.Synthesize(r.Context(), llm, req.Fingerprint, req.Question, retrieved, retrievalErr)
	if err != nil {
		writeErr(w, http.StatusBadGateway, fmt.Errorf("answer generation failed: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":      session,
		"llm_provider": info.Name,
		"llm_model":    info.Model,
	})
}

func (s *Server) handleExportSamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	records, err := s.feedbackRepo.ListDiffering(r.Context())
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	samples := innovation.BuildLearningSamples(records)
	path, err := innovation.ExportSamples(s.cfg.FeedbackExportDir, samples)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":    path,
		"samples": len(samples),
	})
}

// loadAssessment fetches the assessment artifact for a model, or the only
// one present when no model is named.
func (s *Server) loadAssessment(fingerprint, model string) (models.InnovationAssessment, string, error) {
	model = strings.TrimSpace(model)
	if model != "" {
		var a models.InnovationAssessment
		found, err := s.coordinator.Get(fingerprint, cache.StageAssessed, model, &a)
		if err != nil {
			return models.InnovationAssessment{}, "", err
		}
		if !found {
			return models.InnovationAssessment{}, "", fmt.Errorf("no assessment for model %q", model)
		}
		return a, model, nil
	}
	payloads, err := s.coordinator.List(fingerprint, cache.StageAssessed)
	if err != nil {
		return models.InnovationAssessment{}, "", err
	}
	if len(payloads) == 0 {
		return models.InnovationAssessment{}, "", fmt.Errorf("paper has no assessment")
	}
	var a models.InnovationAssessment
	if err := json.Unmarshal(payloads[0], &a); err != nil {
		return models.InnovationAssessment{}, "", fmt.Errorf("decode assessment: %w", err)
	}
	return a, a.ModelID, nil
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (uploadID, path string, err error) {
	src, err := fh.Open()
	if err != nil {
		return "", "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()

	if _, err := io.Copy(tmp, src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return "", "", fmt.Errorf("rewind upload: %w", err)
	}
	uploadID, err = util.SHA256HexFromReader(tmp)
	if err != nil {
		return "", "", fmt.Errorf("hash upload: %w", err)
	}

	finalPath := filepath.Join(dstDir, uploadID+".pdf")
	if err := tmp.Close(); err != nil {
		return "", "", err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", "", fmt.Errorf("atomic move upload: %w", err)
	}
	return uploadID, finalPath, nil
}

func firstSingleFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "RF-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500 && status != http.StatusBadGateway:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "RF-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "RF-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "RF-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "RF-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "RF-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "RF-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "RF-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusBadGateway:
		code = "RF-API-5020"
		msg = "Upstream model backend unavailable. Retry shortly."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "fingerprint and question are required"):
			msg = "Both paper fingerprint and question are required."
		case strings.Contains(raw, "dimension is required"):
			msg = "A feedback dimension is required."
		case strings.Contains(raw, "outside [1,10]"):
			msg = "Human score must be between 1 and 10."
		case strings.Contains(raw, "unknown dimension"):
			msg = "Unknown assessment dimension."
		case strings.Contains(raw, "unknown stage"):
			msg = "Unknown pipeline stage."
		case strings.Contains(raw, "no files provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "only pdf uploads"):
			msg = "Only PDF uploads are supported."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
