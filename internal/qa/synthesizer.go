package qa

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"reviewflow/internal/models"
	"reviewflow/internal/providers"
	"reviewflow/internal/util"

	"github.com/google/uuid"
)

// InsufficientContextAnswer is the fixed response for queries whose retrieval
// came back empty. The synthesizer never invents content without evidence.
const InsufficientContextAnswer = "I do not have enough context from this paper to answer that question."

var refPattern = regexp.MustCompile(`\[C(\d+)\]`)

// Synthesize produces a grounded answer from retrieved chunks. Each chunk is
// labeled [C1]..[Cn] in the prompt; UsedRefs is the subset of those labels the
// model actually cited, so it can never exceed what was retrieved.
//
// A retrieval of zero chunks (or an upstream util.ErrEmptyRetrieval) yields
// the canonical insufficient-context answer with no model call.
func Synthesize(ctx context.Context, llm providers.LLMProvider, fingerprint, query string, retrieved []models.ChunkResult, retrievalErr error) (models.QASession, providers.ProviderInfo, error) {
	session := models.QASession{
		SessionID:   uuid.NewString(),
		Fingerprint: fingerprint,
		Query:       query,
		Retrieved:   retrieved,
		CreatedAt:   time.Now().UTC(),
	}

	if retrievalErr != nil && !errors.Is(retrievalErr, util.ErrEmptyRetrieval) {
		return models.QASession{}, providers.ProviderInfo{}, fmt.Errorf("retrieve context: %w", retrievalErr)
	}
	if errors.Is(retrievalErr, util.ErrEmptyRetrieval) || len(retrieved) == 0 {
		session.Retrieved = nil
		session.UsedRefs = []string{}
		session.Answer = InsufficientContextAnswer
		return session, providers.ProviderInfo{}, nil
	}

	contextBlocks := make([]string, 0, len(retrieved))
	for i, c := range retrieved {
		contextBlocks = append(contextBlocks, fmt.Sprintf("[C%d] (%s) %s", i+1, c.Section, util.DisplaySnippet(c.ChunkText, 1200)))
	}

	resp, info, err := llm.Generate(ctx, providers.GenerateRequest{
		Operation:   "qa_answer",
		Prompt:      buildQAPrompt(query, contextBlocks),
		Context:     contextBlocks,
		Temperature: 0.1,
		MaxOutput:   800,
	})
	if err != nil {
		return models.QASession{}, info, fmt.Errorf("synthesize answer: %w", err)
	}

	answer := strings.TrimSpace(resp.Text)
	if answer == "" {
		answer = InsufficientContextAnswer
	}
	session.Answer = answer
	session.UsedRefs = extractUsedRefs(answer, len(retrieved))
	return session, info, nil
}

func buildQAPrompt(query string, contextBlocks []string) string {
	var b strings.Builder
	b.WriteString("Answer the question using ONLY the numbered context passages below.\n")
	b.WriteString("Cite every claim with its passage label, e.g. [C1].\n")
	b.WriteString("If the passages do not contain the answer, say so plainly instead of guessing.\n\n")
	b.WriteString("Context:\n")
	for _, block := range contextBlocks {
		b.WriteString(block)
		b.WriteString("\n")
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(query))
	b.WriteString("\nAnswer:")
	return b.String()
}

// extractUsedRefs collects the distinct [C#] labels cited in the answer,
// dropping labels outside the retrieved range.
func extractUsedRefs(answer string, retrievedCount int) []string {
	seen := map[int]struct{}{}
	for _, m := range refPattern.FindAllStringSubmatch(answer, -1) {
		var n int
		if _, err := fmt.Sscanf(m[1], "%d", &n); err != nil {
			continue
		}
		if n < 1 || n > retrievedCount {
			continue
		}
		seen[n] = struct{}{}
	}
	nums := make([]int, 0, len(seen))
	for n := range seen {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	refs := make([]string, 0, len(nums))
	for _, n := range nums {
		refs = append(refs, fmt.Sprintf("C%d", n))
	}
	return refs
}
