package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/bento"
	"github.com/hyperifyio/ptsnap/internal/extract"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// Result is everything one run produced.
type Result struct {
	Snapshot Snapshot
	Summary  string
	Bento    *bento.Result
}

type summaryDoc struct {
	Type   string `json:"type"`
	Length string `json:"length"`
	Format string `json:"format"`
	Text   string `json:"text"`
}

type jsonDocument struct {
	protocol.PageText
	Stats    extract.Stats  `json:"stats"`
	Markdown string         `json:"markdown,omitempty"`
	Summary  *summaryDoc    `json:"summary,omitempty"`
	Bento    *bento.Result  `json:"bento,omitempty"`
	Meta     manifestMeta   `json:"meta"`
	Manifest *manifestEntry `json:"manifest,omitempty"`
}

func (a *App) meta() manifestMeta {
	m := manifestMeta{
		PageCache:   a.pageCache != nil,
		LLMCache:    a.llmCache != nil,
		Version:     BuildVersion,
		GeneratedAt: time.Now().UTC(),
	}
	if a.cfg.needsLLM() {
		m.Model = a.cfg.LLMModel
		m.LLMBaseURL = a.cfg.LLMBaseURL
	}
	return m
}

func (a *App) summaryDoc(text string) *summaryDoc {
	if text == "" {
		return nil
	}
	opts, _ := summaryOptions(a.cfg)
	return &summaryDoc{Type: string(opts.Type), Length: string(opts.Length), Format: string(opts.Format), Text: text}
}

// render writes res in the configured format. A summary requested for
// streaming is produced here, so its chunks reach w as they arrive.
func (a *App) render(ctx context.Context, w io.Writer, res *Result) error {
	page := res.Snapshot.Page
	meta := a.meta()
	switch a.cfg.Format {
	case FormatJSON:
		doc := jsonDocument{
			PageText: page,
			Stats:    extract.Count(page.Text),
			Markdown: res.Snapshot.Markdown,
			Summary:  a.summaryDoc(res.Summary),
			Bento:    res.Bento,
			Meta:     meta,
		}
		if doc.Excluded == nil {
			doc.Excluded = []string{}
		}
		if a.cfg.Manifest {
			e := buildManifestEntry(page, res.Snapshot.Rendered)
			doc.Manifest = &e
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)

	case FormatMarkdown:
		_, err := io.WriteString(w, a.markdownDocument(res, meta))
		return err
	}

	if _, err := io.WriteString(w, strings.TrimRight(page.Text, "\n")+"\n"); err != nil {
		return err
	}
	streaming := a.cfg.Summary && a.cfg.SummaryStream && strings.TrimSpace(page.Text) != ""
	if res.Summary == "" && !streaming {
		return nil
	}
	if _, err := io.WriteString(w, "\n--- summary ---\n"); err != nil {
		return err
	}
	if res.Summary == "" {
		s, err := a.streamSummary(ctx, w, page.Text)
		if err != nil {
			return err
		}
		res.Summary = s
	} else if _, err := io.WriteString(w, res.Summary); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// markdownDocument lays the snapshot out as one Markdown page with the
// summary first and the reproducibility footer last.
func (a *App) markdownDocument(res *Result, meta manifestMeta) string {
	page := res.Snapshot.Page
	var b strings.Builder
	title := strings.TrimSpace(page.Title)
	if title == "" {
		title = "Untitled page"
	}
	b.WriteString("# " + title + "\n\n")
	if page.URL != "" {
		b.WriteString("Source: <" + page.URL + ">\n\n")
	}
	if res.Summary != "" {
		b.WriteString("## Summary\n\n" + strings.TrimSpace(res.Summary) + "\n\n")
	}
	body := res.Snapshot.Markdown
	if strings.TrimSpace(body) == "" {
		body = page.Text
	}
	b.WriteString("## Page text\n\n")
	b.WriteString(strings.TrimSpace(body))
	md := b.String()
	if a.cfg.Manifest {
		md = appendEmbeddedManifest(md, meta, buildManifestEntry(page, res.Snapshot.Rendered))
	}
	return appendReproFooter(md, meta.Model, meta.LLMBaseURL, page.ExcludedCount, meta.PageCache, meta.LLMCache)
}

// writeOutput renders res to the configured destination and, when asked,
// writes the sidecar manifest.
func (a *App) writeOutput(ctx context.Context, res *Result) error {
	if err := a.writeText(ctx, res); err != nil {
		return err
	}
	if p := strings.TrimSpace(a.cfg.PDFPath); p != "" {
		if err := writeSimplePDF(a.markdownDocument(res, a.meta()), p); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("out", p).Msg("wrote pdf")
	}
	return nil
}

func (a *App) writeText(ctx context.Context, res *Result) error {
	if toStdout(a.cfg) {
		bw := bufio.NewWriter(os.Stdout)
		if err := a.render(ctx, flushEach{bw}, res); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return bw.Flush()
	}
	f, err := os.Create(a.cfg.OutputPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := a.render(ctx, bw, res); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("out", a.cfg.OutputPath).Msg("wrote output")

	if a.cfg.Manifest && a.cfg.Format != FormatJSON {
		data, err := marshalManifestJSON(a.meta(), buildManifestEntry(res.Snapshot.Page, res.Snapshot.Rendered))
		if err == nil {
			err = writeFile(deriveManifestSidecarPath(a.cfg.OutputPath), data)
		}
		if err != nil {
			log.Warn().Err(err).Msg("manifest not written")
		}
	}
	return nil
}

// flushEach flushes after every write so streamed chunks show up at once.
type flushEach struct{ w *bufio.Writer }

func (f flushEach) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, f.w.Flush()
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
