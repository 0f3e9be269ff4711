package ingest

import (
	"fmt"
	"strings"

	"reviewflow/internal/models"
	"reviewflow/internal/util"
)

type ChunkConfig struct {
	Size    int
	Overlap int
}

func (c ChunkConfig) validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d", c.Overlap, c.Size)
	}
	return nil
}

// Split cuts every section of a paper into overlapping chunks. Chunks never
// cross a section boundary; consecutive chunks within a section share exactly
// Overlap runes. The split is deterministic: identical paper and config
// always yield the same sequence, offsets and IDs. Text is carried verbatim
// so Reconstruct can rebuild each section exactly.
func Split(p models.Paper, cfg ChunkConfig) ([]models.Chunk, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	step := cfg.Size - cfg.Overlap
	out := make([]models.Chunk, 0)
	idx := 0
	for _, sec := range p.Sections {
		runes := []rune(sec.Text)
		for start := 0; start < len(runes); start += step {
			end := start + cfg.Size
			if end > len(runes) {
				end = len(runes)
			}
			text := string(runes[start:end])
			out = append(out, models.Chunk{
				ChunkID:      chunkID(p.Fingerprint, idx, text),
				Fingerprint:  p.Fingerprint,
				ChunkIndex:   idx,
				Section:      sec.Name,
				SectionOrder: sec.Order,
				StartOffset:  start,
				EndOffset:    end,
				Text:         text,
			})
			idx++
			if end == len(runes) {
				break
			}
		}
	}
	return out, nil
}

// Reconstruct rebuilds one section's text from its chunks by dropping the
// trailing overlap of every chunk except the last.
func Reconstruct(chunks []models.Chunk, section string, overlap int) string {
	parts := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Section == section {
			parts = append(parts, c)
		}
	}
	b := strings.Builder{}
	for i, c := range parts {
		text := []rune(c.Text)
		if i < len(parts)-1 && len(text) > overlap {
			text = text[:len(text)-overlap]
		}
		b.WriteString(string(text))
	}
	return b.String()
}

func chunkID(fingerprint string, index int, text string) string {
	contentHash := util.SHA256Hex([]byte(text))
	return util.SHA256Hex([]byte(fmt.Sprintf("%s:%d:%s", fingerprint, index, contentHash)))
}
