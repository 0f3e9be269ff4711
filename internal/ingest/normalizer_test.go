package ingest

import (
	"testing"

	"reviewflow/internal/converter"

	"github.com/stretchr/testify/require"
)

func TestNormalizeProducesStableFingerprint(t *testing.T) {
	doc := converter.Document{
		Title:    "A Study",
		Abstract: "We study things.",
		Sections: []converter.Section{
			{Name: "intro", Order: 0, Text: "Introduction text."},
			{Name: "method", Order: 1, Text: "Method text."},
		},
		Formulas: []string{"E = mc^2"},
	}
	a, err := Normalize(doc)
	require.NoError(t, err)
	b, err := Normalize(doc)
	require.NoError(t, err)
	require.Equal(t, a.Fingerprint, b.Fingerprint)
	require.NotEmpty(t, a.Fingerprint)
	require.Len(t, a.Sections, 2)
}

func TestNormalizeOrdersSections(t *testing.T) {
	doc := converter.Document{
		Sections: []converter.Section{
			{Name: "conclusion", Order: 2, Text: "End."},
			{Name: "intro", Order: 0, Text: "Start."},
			{Name: "method", Order: 1, Text: "Middle."},
		},
	}
	p, err := Normalize(doc)
	require.NoError(t, err)
	require.Equal(t, []string{"intro", "method", "conclusion"}, []string{p.Sections[0].Name, p.Sections[1].Name, p.Sections[2].Name})
	for i, s := range p.Sections {
		require.Equal(t, i, s.Order)
	}
}

func TestNormalizeFingerprintChangesWithContent(t *testing.T) {
	doc := converter.Document{Sections: []converter.Section{{Name: "intro", Order: 0, Text: "Original."}}}
	a, err := Normalize(doc)
	require.NoError(t, err)

	doc.Sections[0].Text = "Changed."
	b, err := Normalize(doc)
	require.NoError(t, err)
	require.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestNormalizeRejectsEmptyDocument(t *testing.T) {
	_, err := Normalize(converter.Document{})
	require.Error(t, err)

	_, err = Normalize(converter.Document{Sections: []converter.Section{{Name: "intro", Order: 0, Text: "   \x00 "}}})
	require.Error(t, err)
}
