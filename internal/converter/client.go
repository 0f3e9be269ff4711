package converter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"reviewflow/internal/util"

	"github.com/ledongthuc/pdf"
)

// Document is the structured output of the external conversion service:
// ordered sections with names plus optional formula and figure markers.
type Document struct {
	Title    string    `json:"title"`
	Abstract string    `json:"abstract,omitempty"`
	Sections []Section `json:"sections"`
	Formulas []string  `json:"formulas,omitempty"`
	Figures  []string  `json:"figures,omitempty"`
}

type Section struct {
	Name  string `json:"name"`
	Order int    `json:"order"`
	Text  string `json:"text"`
}

// Client talks to the conversion service. When no service URL is configured
// it falls back to local plain-text extraction, producing a single-section
// document for development runs.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// Convert turns a PDF file into a structured Document.
func (c *Client) Convert(ctx context.Context, path string) (Document, error) {
	if c.baseURL == "" {
		return localExtract(path)
	}
	return c.remoteConvert(ctx, path)
}

func (c *Client) remoteConvert(ctx context.Context, path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open paper file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", path)
	if err != nil {
		return Document{}, fmt.Errorf("build convert request: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return Document{}, fmt.Errorf("read paper file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Document{}, fmt.Errorf("finish convert request: %w", err)
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("converter request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return Document{}, fmt.Errorf("converter error %d: %s", resp.StatusCode, string(body))
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("decode converter response: %w", err)
	}
	return doc, nil
}

func localExtract(path string) (Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return Document{}, fmt.Errorf("read extracted text: %w", err)
	}
	text := util.SanitizeText(buf.String())
	if text == "" {
		return Document{}, util.ErrNoExtractableContent
	}
	return Document{
		Title:    firstLine(text),
		Sections: []Section{{Name: "body", Order: 0, Text: text}},
	}, nil
}

// firstLine returns the first non-empty line, used as a title guess for
// plain-text extractions.
func firstLine(text string) string {
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}
