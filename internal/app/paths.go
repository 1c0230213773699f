package app

import (
	"path/filepath"
	"strings"

	"github.com/hyperifyio/ptsnap/internal/bento"
)

// bentoPaths returns where the digest exports go. With neither path
// configured the HTML export lands next to the text output, named after the
// page title; an explicit PDF path alone disables the HTML default.
func bentoPaths(cfg Config, title string) (htmlPath, pdfPath string) {
	htmlPath = strings.TrimSpace(cfg.BentoHTMLPath)
	pdfPath = strings.TrimSpace(cfg.BentoPDFPath)
	if htmlPath != "" || pdfPath != "" {
		return htmlPath, pdfPath
	}
	dir := "."
	if out := strings.TrimSpace(cfg.OutputPath); out != "" && out != "-" {
		dir = filepath.Dir(out)
	}
	return filepath.Join(dir, bento.Filename(title)+".html"), ""
}

// toStdout reports whether the text output goes to standard output.
func toStdout(cfg Config) bool {
	out := strings.TrimSpace(cfg.OutputPath)
	return out == "" || out == "-"
}
