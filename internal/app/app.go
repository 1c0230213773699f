package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/ptsnap/internal/bridge"
	"github.com/hyperifyio/ptsnap/internal/cache"
	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/fetch"
	"github.com/hyperifyio/ptsnap/internal/llm"
	"github.com/hyperifyio/ptsnap/internal/server"
)

// ErrNoText is returned when the page yields no visible text after the
// exclusions were applied. The CLI maps it to exit code 2.
var ErrNoText = errors.New("no visible text")

// App wires a run: page loading, the in-page engine, and the optional model
// backed summary and digest.
type App struct {
	cfg       Config
	ai        llm.Client
	closeAI   func() error
	loader    *fetch.Loader
	pageCache *cache.PageCache
	llmCache  *cache.LLMCache
}

// New prepares caches, the page loader and, when the run needs one, the
// model client.
func New(ctx context.Context, cfg Config) (*App, error) {
	cfg.Format = strings.ToLower(trim(cfg.Format))
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if trim(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	a := &App{cfg: cfg}

	if cfg.CacheDir != "" {
		pageDir := filepath.Join(cfg.CacheDir, "pages")
		llmDir := filepath.Join(cfg.CacheDir, "llm")
		if cfg.CacheClear {
			_ = cache.ClearDir(cfg.CacheDir)
		}
		if cfg.CacheMaxAge > 0 {
			// best effort; a failed purge must not block the run
			_, _ = cache.PurgePageCacheByAge(pageDir, cfg.CacheMaxAge)
			_, _ = cache.PurgeLLMCacheByAge(llmDir, cfg.CacheMaxAge)
		}
		if cfg.CacheMaxBytes > 0 || cfg.CacheMaxCount > 0 {
			if n, err := cache.EnforcePageCacheLimits(pageDir, cfg.CacheMaxBytes, cfg.CacheMaxCount); err == nil && n > 0 {
				log.Debug().Int("count", n).Msg("evicted cached pages")
			}
			if n, err := cache.EnforceLLMCacheLimits(llmDir, cfg.CacheMaxBytes, cfg.CacheMaxCount); err == nil && n > 0 {
				log.Debug().Int("count", n).Msg("evicted llm cache entries")
			}
		}
		a.pageCache = &cache.PageCache{Dir: pageDir, StrictPerms: cfg.CacheStrictPerms}
		a.llmCache = &cache.LLMCache{Dir: llmDir, StrictPerms: cfg.CacheStrictPerms}
	}

	httpClient := newHTTPClient()
	a.loader = &fetch.Loader{
		Client: &fetch.Client{
			HTTPClient:        httpClient,
			UserAgent:         cfg.UserAgent,
			MaxAttempts:       2,
			PerRequestTimeout: 15 * time.Second,
			Cache:             a.pageCache,
			BypassCache:       cfg.CacheClear,
			RedirectMaxHops:   5,
			MaxConcurrent:     4,
		},
		Renderer: &fetch.Renderer{ControlURL: cfg.BrowserURL, Bin: cfg.BrowserBin},
		Render:   cfg.Render,
		Cache:    a.pageCache,
		MaxAge:   cfg.CacheMaxAge,
	}

	if cfg.needsLLM() {
		if err := a.connectLLM(ctx, httpClient); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) connectLLM(ctx context.Context, httpClient *http.Client) error {
	switch strings.ToLower(trim(a.cfg.LLMProvider)) {
	case ProviderGemini:
		g, err := llm.NewGemini(ctx, a.cfg.GeminiAPIKey)
		if err != nil {
			return fmt.Errorf("init gemini: %w", err)
		}
		a.ai, a.closeAI = g, g.Close
	default:
		a.ai = llm.NewOpenAI(a.cfg.LLMBaseURL, a.cfg.LLMAPIKey, httpClient)
	}
	if a.cfg.LLMCacheOnly {
		return nil
	}

	// Preflight is best effort: an unreachable model surfaces later as a
	// summary error, which the CLI maps to its exit code policy.
	lister, ok := a.ai.(llm.ModelLister)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("LLM model list failed; continuing")
	case len(models.Models) == 0:
		log.Warn().Msg("LLM returned zero models")
	default:
		log.Info().Int("count", len(models.Models)).Msg("LLM models available")
	}
	return nil
}

// Close releases the model client.
func (a *App) Close() {
	if a.closeAI != nil {
		if err := a.closeAI(); err != nil {
			log.Debug().Err(err).Msg("closing llm client")
		}
	}
}

// Run takes one snapshot, optionally summarizes it and builds the digest,
// and writes the result.
func (a *App) Run(ctx context.Context) error {
	snap, err := a.Capture(ctx)
	if err != nil {
		return err
	}
	res := &Result{Snapshot: snap}
	if strings.TrimSpace(snap.Page.Text) == "" {
		// still write what little there is so the caller sees the metadata
		if werr := a.writeOutput(ctx, res); werr != nil {
			log.Warn().Err(werr).Msg("output not written")
		}
		return ErrNoText
	}

	// The summary and the digest are independent model calls.
	streamLater := a.cfg.Summary && a.cfg.SummaryStream && a.cfg.Format == FormatText
	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Summary && !streamLater {
		g.Go(func() error {
			s, err := a.summarize(gctx, snap.Page.Text)
			if err != nil {
				return err
			}
			res.Summary = s
			return nil
		})
	}
	if a.cfg.Bento {
		g.Go(func() error {
			b, err := a.digest(gctx, snap)
			if err != nil {
				return err
			}
			res.Bento = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return a.writeOutput(ctx, res)
}

// Serve exposes page contexts over HTTP and WebSocket until ctx ends. A
// configured page source is loaded and opened while the listener starts.
func (a *App) Serve(ctx context.Context) error {
	srv := server.New(bridge.NewHub())
	srv.AllowedOrigins = a.cfg.AllowedOrigins
	addr := trim(a.cfg.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	// The listener is up while a slow render is still loading; a failed
	// preload stops it.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
	if src := a.cfg.Source(); src != "" {
		g.Go(func() error {
			id, err := a.preload(gctx, srv, src)
			if err != nil {
				return err
			}
			log.Info().Str("ctx", id).Str("src", src).Msg("preloaded page context")
			return nil
		})
	}
	return g.Wait()
}

// preload loads src and opens it as a page context of srv.
func (a *App) preload(ctx context.Context, srv *server.Server, src string) (string, error) {
	page, err := a.loader.Load(ctx, src)
	if err != nil {
		return "", fmt.Errorf("load page: %w", err)
	}
	doc, err := dom.Parse(bytes.NewReader(page.HTML), page.URL)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	doc.ImportBoxes()
	return srv.Open(ctx, doc), nil
}
