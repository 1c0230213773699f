package app

import (
	"strconv"
	"strings"
)

// appendReproFooter appends a deterministic footer that records what the
// snapshot was produced with: the model, its base URL, how many elements were
// excluded and whether page and LLM caching were active.
func appendReproFooter(markdown, model, baseURL string, excluded int, pageCache, llmCache bool) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(markdown, "\n"))
	b.WriteString("\n\n---\n")
	b.WriteString("Reproducibility: ")
	b.WriteString("model=")
	b.WriteString(orNone(model))
	b.WriteString("; llm_base_url=")
	b.WriteString(orNone(baseURL))
	b.WriteString("; excluded=")
	b.WriteString(strconv.Itoa(excluded))
	b.WriteString("; page_cache=")
	b.WriteString(strconv.FormatBool(pageCache))
	b.WriteString("; llm_cache=")
	b.WriteString(strconv.FormatBool(llmCache))
	b.WriteString("; version=")
	b.WriteString(BuildVersion)
	b.WriteString("\n")
	return b.String()
}

func orNone(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "none"
	}
	return s
}
