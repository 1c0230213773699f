// Package server exposes page contexts over HTTP and WebSocket so remote
// host surfaces can drive them.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/bridge"
	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/inpage"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// maxPageBytes bounds uploaded documents.
const maxPageBytes = 10 << 20

// ContextInfo describes one attached page context.
type ContextInfo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type pageContext struct {
	info   ContextInfo
	loop   *inpage.Loop
	cancel context.CancelFunc
	done   chan struct{}
}

// Server owns the page contexts and routes commands to them through Hub.
type Server struct {
	Hub *bridge.Hub
	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string

	mu       sync.Mutex
	contexts map[string]*pageContext
	upgrader websocket.Upgrader
}

// New returns a server routing through hub.
func New(hub *bridge.Hub) *Server {
	return &Server{
		Hub:      hub,
		contexts: make(map[string]*pageContext),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Open attaches the in-page component to doc under a fresh id and starts its
// loop. The loop stops when ctx ends or the context is closed.
func (s *Server) Open(ctx context.Context, doc *dom.Document) string {
	id := uuid.NewString()
	s.OpenAs(ctx, id, doc)
	return id
}

// OpenAs is Open with a caller-chosen id. An existing context with the same
// id is closed first.
func (s *Server) OpenAs(ctx context.Context, id string, doc *dom.Document) {
	s.Close(id)
	comp, _ := inpage.Attach(doc, s.Hub.Emitter(id))
	loopCtx, cancel := context.WithCancel(ctx)
	pc := &pageContext{
		info:   ContextInfo{ID: id, URL: doc.URL()},
		loop:   inpage.NewLoop(comp),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(pc.done)
		_ = pc.loop.Run(loopCtx)
		s.Hub.Unregister(id)
	}()
	s.mu.Lock()
	s.contexts[id] = pc
	s.mu.Unlock()
	s.Hub.Register(id, pc.loop.Command)
	log.Info().Str("ctx", id).Str("url", pc.info.URL).Msg("page context opened")
}

// Close stops the context id. It reports whether it existed.
func (s *Server) Close(id string) bool {
	s.mu.Lock()
	pc, ok := s.contexts[id]
	delete(s.contexts, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.Hub.Unregister(id)
	pc.cancel()
	<-pc.done
	log.Info().Str("ctx", id).Msg("page context closed")
	return true
}

// Loop returns the event loop of context id.
func (s *Server) Loop(id string) (*inpage.Loop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc, ok := s.contexts[id]
	if !ok {
		return nil, false
	}
	return pc.loop, true
}

// Contexts lists the open contexts sorted by id.
func (s *Server) Contexts() []ContextInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ContextInfo, 0, len(s.contexts))
	for _, pc := range s.contexts {
		out = append(out, pc.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/contexts", func(cr chi.Router) {
		cr.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.Contexts())
		})
		cr.Post("/", s.handleOpen)
		cr.Delete("/{id}", s.handleClose)
		cr.Post("/{id}/commands", s.handleCommand)
		cr.Post("/{id}/input", s.handleInput)
		cr.Get("/{id}/ws", s.handleWS)
	})
	return r
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	doc, err := dom.Parse(io.LimitReader(r.Body, maxPageBytes), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// the page outlives the upload request
	id := s.Open(context.WithoutCancel(r.Context()), doc)
	writeJSON(w, http.StatusCreated, ContextInfo{ID: id, URL: doc.URL()})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.Close(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, bridge.ErrNoReceiver)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd protocol.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode command: %w", err))
		return
	}
	resp, err := s.Hub.Send(r.Context(), chi.URLParam(r, "id"), cmd)
	switch {
	case errors.Is(err, bridge.ErrNoReceiver):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	loop, ok := s.Loop(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, bridge.ErrNoReceiver)
		return
	}
	var wire inpage.WireInput
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode input: %w", err))
		return
	}
	var (
		disp       inpage.Disposition
		resolveErr error
	)
	err := loop.Do(r.Context(), func(c *inpage.Component) {
		var in inpage.Input
		in, resolveErr = wire.Resolve(c.Document())
		if resolveErr == nil {
			disp = c.Dispatch(in)
		}
	})
	switch {
	case err != nil:
		writeError(w, http.StatusNotFound, err)
	case resolveErr != nil:
		writeError(w, http.StatusBadRequest, resolveErr)
	default:
		writeJSON(w, http.StatusOK, disp)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	loop, ok := s.Loop(id)
	if !ok {
		writeError(w, http.StatusNotFound, bridge.ErrNoReceiver)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("ctx", id).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()
	if err := bridge.ServeConn(r.Context(), conn, id, loop.Command, s.Hub); err != nil {
		log.Debug().Err(err).Str("ctx", id).Msg("ws session ended")
	}
}

// ListenAndServe serves the router on addr until ctx ends, then shuts down
// gracefully and closes every page context.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	for _, info := range s.Contexts() {
		s.Close(info.ID)
	}
	return err
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("http")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
