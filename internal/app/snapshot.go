package app

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/bridge"
	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/fetch"
	"github.com/hyperifyio/ptsnap/internal/host"
	"github.com/hyperifyio/ptsnap/internal/inpage"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// cliContext names the single page context of a command-line run.
const cliContext = "cli"

// Snapshot is the extraction result of one run.
type Snapshot struct {
	Page     protocol.PageText
	Markdown string
	Rendered bool
}

// pageSession is one page attached to an in-process hub with a host surface
// listening, the same arrangement a browser extension has with one tab.
type pageSession struct {
	loop    *inpage.Loop
	surface *host.Surface
	stop    func()
}

func openSession(ctx context.Context, doc *dom.Document) *pageSession {
	hub := bridge.NewHub()
	comp, _ := inpage.Attach(doc, hub.Emitter(cliContext))
	loop := inpage.NewLoop(comp)
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(loopCtx)
	}()
	unregister := hub.Register(cliContext, loop.Command)
	surface := host.New(cliContext, bridge.NewSender(hub))
	unsubscribe := hub.Subscribe(surface.Listener())
	return &pageSession{
		loop:    loop,
		surface: surface,
		stop: func() {
			unsubscribe()
			unregister()
			cancel()
			<-done
		},
	}
}

// paths resolves selector to the hit-test path of every match.
func (s *pageSession) paths(ctx context.Context, selector string) ([][]*dom.Node, error) {
	var (
		out  [][]*dom.Node
		qerr error
	)
	err := s.loop.Do(ctx, func(c *inpage.Component) {
		var nodes []*dom.Node
		nodes, qerr = c.Document().Query(selector)
		for _, n := range nodes {
			out = append(out, n.Path())
		}
	})
	if err != nil {
		return nil, err
	}
	if qerr != nil {
		return nil, fmt.Errorf("selector %q: %w", selector, qerr)
	}
	return out, nil
}

// exclude picks every match of selector the way a user would: start a
// selection session and click the element.
func (s *pageSession) exclude(ctx context.Context, selector string) (int, error) {
	paths, err := s.paths(ctx, selector)
	if err != nil {
		return 0, err
	}
	before := s.surface.Snapshot().ExcludedCount
	for _, p := range paths {
		if err := s.surface.StartSelection(ctx); err != nil {
			return 0, fmt.Errorf("start selection: %w", err)
		}
		if _, err := s.loop.Input(ctx, inpage.MouseButton{Kind: inpage.ButtonClick, Path: p}); err != nil {
			return 0, err
		}
	}
	if s.surface.Snapshot().Active {
		_ = s.surface.StopSelection(ctx)
	}
	return s.surface.Snapshot().ExcludedCount - before, nil
}

// restore right-clicks every match of selector outside selection mode.
func (s *pageSession) restore(ctx context.Context, selector string) (int, error) {
	paths, err := s.paths(ctx, selector)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, p := range paths {
		d, err := s.loop.Input(ctx, inpage.ContextMenu{Path: p})
		if err != nil {
			return restored, err
		}
		if d.PreventDefault {
			restored++
		}
	}
	return restored, nil
}

func (s *pageSession) markdown(ctx context.Context) (string, error) {
	var (
		md   string
		merr error
	)
	if err := s.loop.Do(ctx, func(c *inpage.Component) { md, merr = c.Pipeline().Markdown() }); err != nil {
		return "", err
	}
	return md, merr
}

// Capture loads the configured page, replays the configured exclusions and
// restores, then extracts the visible text.
func (a *App) Capture(ctx context.Context) (Snapshot, error) {
	page, err := a.loader.Load(ctx, a.cfg.Source())
	if err != nil {
		return Snapshot{}, fmt.Errorf("load page: %w", err)
	}
	return a.captureFrom(ctx, page)
}

func (a *App) captureFrom(ctx context.Context, page fetch.Page) (Snapshot, error) {
	doc, err := dom.Parse(bytes.NewReader(page.HTML), page.URL)
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse page: %w", err)
	}
	if n := doc.ImportBoxes(); n > 0 {
		log.Debug().Int("count", n).Msg("imported layout boxes")
	}

	s := openSession(ctx, doc)
	defer s.stop()

	for _, sel := range a.cfg.Exclude {
		n, err := s.exclude(ctx, sel)
		if err != nil {
			return Snapshot{}, err
		}
		log.Info().Str("selector", sel).Int("count", n).Msg("excluded")
	}
	for _, sel := range a.cfg.Restore {
		n, err := s.restore(ctx, sel)
		if err != nil {
			return Snapshot{}, err
		}
		log.Info().Str("selector", sel).Int("count", n).Msg("restored")
	}

	text, err := s.surface.Extract(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("extract: %w", err)
	}
	snap := Snapshot{Page: text, Rendered: page.Rendered}
	if a.cfg.Format == FormatMarkdown {
		md, err := s.markdown(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("markdown conversion failed; using plain text")
			md = text.Text
		}
		snap.Markdown = md
	}
	stats := s.surface.Stats()
	log.Info().
		Str("url", text.URL).
		Int("excluded", text.ExcludedCount).
		Int("words", stats.Words).
		Int("chars", stats.Characters).
		Msg("page text extracted")
	return snap, nil
}
