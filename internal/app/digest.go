package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/bento"
	"github.com/hyperifyio/ptsnap/internal/summarize"
)

func summaryOptions(cfg Config) (summarize.Options, error) {
	t, err := summarize.ParseType(cfg.SummaryType)
	if err != nil {
		return summarize.Options{}, err
	}
	l, err := summarize.ParseLength(cfg.SummaryLength)
	if err != nil {
		return summarize.Options{}, err
	}
	f, err := summarize.ParseFormat(cfg.SummaryFormat)
	if err != nil {
		return summarize.Options{}, err
	}
	return summarize.Options{
		Type:          t,
		Length:        l,
		Format:        f,
		Language:      trim(cfg.Language),
		SharedContext: trim(cfg.SharedContext),
	}, nil
}

func (a *App) summarizer() *summarize.Summarizer {
	return &summarize.Summarizer{
		Client:    a.ai,
		Cache:     a.llmCache,
		Model:     a.cfg.LLMModel,
		CacheOnly: a.cfg.LLMCacheOnly,
	}
}

// summarize returns the summary of text in one piece.
func (a *App) summarize(ctx context.Context, text string) (string, error) {
	opts, err := summaryOptions(a.cfg)
	if err != nil {
		return "", err
	}
	summary, err := a.summarizer().Summarize(ctx, text, opts)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	log.Info().Str("type", string(opts.Type)).Int("chars", len(summary)).Msg("summary ready")
	return summary, nil
}

// streamSummary writes summary chunks to w as they arrive and returns the
// whole text.
func (a *App) streamSummary(ctx context.Context, w io.Writer, text string) (string, error) {
	opts, err := summaryOptions(a.cfg)
	if err != nil {
		return "", err
	}
	chunks, errc := a.summarizer().Stream(ctx, text, opts)
	var acc strings.Builder
	for chunk := range chunks {
		acc.WriteString(chunk)
		if _, err := io.WriteString(w, chunk); err != nil {
			return "", fmt.Errorf("write summary: %w", err)
		}
	}
	if err := <-errc; err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}
	return acc.String(), nil
}

func article(p Snapshot) summarize.Article {
	return summarize.Article{Title: p.Page.Title, URL: p.Page.URL}
}

// digest builds the bento grid for snap and writes the configured exports.
func (a *App) digest(ctx context.Context, snap Snapshot) (*bento.Result, error) {
	art := article(snap)
	bundle, err := a.summarizer().Bundle(ctx, art, snap.Page.Text)
	if err != nil {
		return nil, fmt.Errorf("summary bundle: %w", err)
	}
	gen := &bento.Generator{Client: a.ai, Model: a.cfg.LLMModel, Cache: a.llmCache}
	res, err := gen.Generate(ctx, bento.NewJob(art, bundle), func(p bento.Progress) {
		log.Info().Str("stage", string(p.Stage)).Float64("progress", p.Fraction).Msg(p.Detail)
	})
	if err != nil {
		return nil, fmt.Errorf("bento: %w", err)
	}

	htmlPath, pdfPath := bentoPaths(a.cfg, art.Title)
	if htmlPath != "" {
		b, err := bento.ExportHTML(res.Layout, art)
		if err != nil {
			return nil, err
		}
		if err := writeFile(htmlPath, b); err != nil {
			return nil, err
		}
		log.Info().Str("out", htmlPath).Msg("wrote bento html")
	}
	if pdfPath != "" {
		b, err := bento.ExportPDF(res.Layout, art)
		if err != nil {
			return nil, err
		}
		if err := writeFile(pdfPath, b); err != nil {
			return nil, err
		}
		log.Info().Str("out", pdfPath).Msg("wrote bento pdf")
	}
	return &res, nil
}
