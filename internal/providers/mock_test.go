package providers

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestMockEmbedDeterministic(t *testing.T) {
	m := NewMockProvider(16)
	a, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"same text"}, Dimension: 16})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := m.Embed(context.Background(), EmbedRequest{Inputs: []string{"same text"}, Dimension: 16})
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 1 || len(a[0]) != 16 {
		t.Fatalf("unexpected vector shape: %d x %d", len(a), len(a[0]))
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
}

func TestMockGenerateReviewIsParseableJSON(t *testing.T) {
	m := NewMockProvider(8)
	resp, _, err := m.Generate(context.Background(), GenerateRequest{Operation: "review"})
	if err != nil {
		t.Fatal(err)
	}
	var parsed struct {
		Significance  string   `json:"significance"`
		AcceptReasons []string `json:"accept_reasons"`
		RejectReasons []string `json:"reject_reasons"`
	}
	if err := json.Unmarshal([]byte(resp.Text), &parsed); err != nil {
		t.Fatalf("review output not JSON: %v", err)
	}
	if parsed.Significance == "" || len(parsed.AcceptReasons) == 0 || len(parsed.RejectReasons) == 0 {
		t.Fatalf("review output missing fields: %+v", parsed)
	}
}

func TestMockGenerateQACitesContext(t *testing.T) {
	m := NewMockProvider(8)
	resp, _, err := m.Generate(context.Background(), GenerateRequest{Operation: "qa_answer", Context: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Text, "[C1]") || !strings.Contains(resp.Text, "[C2]") {
		t.Fatalf("expected citations in answer: %q", resp.Text)
	}
}
