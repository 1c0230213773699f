package app

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hyperifyio/ptsnap/internal/extract"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// manifestEntry records exactly which text a snapshot produced.
type manifestEntry struct {
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	SHA256   string   `json:"sha256"`
	Words    int      `json:"words"`
	Chars    int      `json:"chars"`
	Excluded []string `json:"excluded"`
	Rendered bool     `json:"rendered"`
}

// manifestMeta captures run details that aid reproducibility.
type manifestMeta struct {
	Model       string    `json:"model,omitempty"`
	LLMBaseURL  string    `json:"llm_base_url,omitempty"`
	PageCache   bool      `json:"page_cache"`
	LLMCache    bool      `json:"llm_cache"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
}

func computeSHA256Hex(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func buildManifestEntry(page protocol.PageText, rendered bool) manifestEntry {
	content := strings.TrimSpace(page.Text)
	stats := extract.Count(content)
	excluded := page.Excluded
	if excluded == nil {
		excluded = []string{}
	}
	return manifestEntry{
		URL:      strings.TrimSpace(page.URL),
		Title:    strings.TrimSpace(page.Title),
		SHA256:   computeSHA256Hex(content),
		Words:    stats.Words,
		Chars:    stats.Characters,
		Excluded: excluded,
		Rendered: rendered,
	}
}

// appendEmbeddedManifest appends a compact Markdown section naming the page,
// the digest of the extracted text and every excluded element.
func appendEmbeddedManifest(markdown string, meta manifestMeta, e manifestEntry) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(markdown, "\n"))
	b.WriteString("\n\n## Manifest\n\n")
	b.WriteString("- URL: ")
	b.WriteString(e.URL)
	b.WriteString("\n- Text: sha256=")
	b.WriteString(e.SHA256)
	b.WriteString("; words=")
	b.WriteString(strconv.Itoa(e.Words))
	b.WriteString("; chars=")
	b.WriteString(strconv.Itoa(e.Chars))
	b.WriteString("\n- Rendered: ")
	b.WriteString(strconv.FormatBool(e.Rendered))
	b.WriteString("\n- Generated: ")
	b.WriteString(meta.GeneratedAt.UTC().Format(time.RFC3339))
	b.WriteString("\n")
	if len(e.Excluded) > 0 {
		b.WriteString("\nExcluded elements:\n\n")
		for i, d := range e.Excluded {
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(". `")
			b.WriteString(d)
			b.WriteString("`\n")
		}
	}
	return b.String()
}

// marshalManifestJSON encodes a machine-readable sidecar manifest.
func marshalManifestJSON(meta manifestMeta, e manifestEntry) ([]byte, error) {
	payload := struct {
		Meta manifestMeta  `json:"meta"`
		Page manifestEntry `json:"page"`
	}{Meta: meta, Page: e}
	return json.MarshalIndent(payload, "", "  ")
}

// deriveManifestSidecarPath returns a sidecar JSON path next to the output.
func deriveManifestSidecarPath(outputPath string) string {
	return outputPath + ".manifest.json"
}
