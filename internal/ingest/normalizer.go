package ingest

import (
	"fmt"
	"sort"
	"strings"

	"reviewflow/internal/converter"
	"reviewflow/internal/models"
	"reviewflow/internal/util"
)

// Normalize turns converter output into an immutable Paper. It is pure: no
// network, no cache. The fingerprint is a sha256 over the canonical
// normalized text, so the same converter output always maps to the same
// Paper.
func Normalize(doc converter.Document) (models.Paper, error) {
	sections := make([]models.Section, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		text := util.SanitizeText(s.Text)
		if text == "" {
			continue
		}
		name := strings.TrimSpace(s.Name)
		if name == "" {
			name = fmt.Sprintf("section-%d", s.Order)
		}
		sections = append(sections, models.Section{Name: name, Order: s.Order, Text: text})
	}
	if len(sections) == 0 {
		return models.Paper{}, util.ErrNoExtractableContent
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })
	for i := range sections {
		sections[i].Order = i
	}

	p := models.Paper{
		Title:    util.SanitizeText(doc.Title),
		Abstract: util.SanitizeText(doc.Abstract),
		Sections: sections,
		Formulas: cleanList(doc.Formulas),
		Figures:  cleanList(doc.Figures),
	}
	p.Fingerprint = Fingerprint(p)
	return p, nil
}

// Fingerprint computes the content hash over the canonical normalized text.
func Fingerprint(p models.Paper) string {
	b := strings.Builder{}
	b.WriteString(p.Title)
	b.WriteString("\n")
	b.WriteString(p.Abstract)
	b.WriteString("\n")
	for _, s := range p.Sections {
		b.WriteString(s.Name)
		b.WriteString("\n")
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return util.SHA256Hex([]byte(b.String()))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = util.SanitizeText(v)
		if v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
