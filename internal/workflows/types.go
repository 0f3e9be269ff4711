package workflows

type PaperReviewInput struct {
	PaperPath          string   `json:"paper_path"`
	Filename           string   `json:"filename"`
	ChunkSize          int      `json:"chunk_size,omitempty"`
	ChunkOverlap       int      `json:"chunk_overlap,omitempty"`
	EmbedProviders     int      `json:"embed_providers"`
	LLMProviders       int      `json:"llm_providers"`
	ReviewProviderRefs []string `json:"review_provider_refs,omitempty"`
	ScoringProviderRef string   `json:"scoring_provider_ref,omitempty"`
	CooldownSeconds    int      `json:"cooldown_seconds,omitempty"`
	MaxAttempts        int      `json:"max_attempts,omitempty"`
}

type ReviewStatus struct {
	Fingerprint string             `json:"fingerprint"`
	Filename    string             `json:"filename"`
	Title       string             `json:"title,omitempty"`
	CurrentStep string             `json:"current_step"`
	Stage       string             `json:"stage"`
	Status      string             `json:"status"`
	FailReason  string             `json:"fail_reason,omitempty"`
	Steps       map[string]string  `json:"steps"`
	Reviews     map[string]string  `json:"reviews"`
	Scores      map[string]float64 `json:"scores"`
	AssessError string             `json:"assessment_error,omitempty"`
	Providers   []string           `json:"providers_used,omitempty"`
	RetryCounts map[string]int     `json:"retry_counts,omitempty"`
	ChunkCount  int                `json:"chunk_count,omitempty"`
}
