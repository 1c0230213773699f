package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type chatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	log.Info().Str("addr", addr).Str("model", model).Msg("openai-stub listening")
	if err := http.ListenAndServe(addr, newMux(model)); err != nil {
		log.Fatal().Err(err).Msg("serve")
	}
}

func newMux(model string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sys, user := "", ""
		if len(req.Messages) > 0 {
			sys = strings.TrimSpace(req.Messages[0].Content)
		}
		if len(req.Messages) > 1 {
			user = req.Messages[len(req.Messages)-1].Content
		}
		content, ok := answer(sys, user)
		if !ok {
			http.Error(w, "unexpected system", http.StatusBadRequest)
			return
		}
		if req.Stream {
			streamAnswer(w, model, content)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	})
	return mux
}

// answer picks a canned reply by the system prompt of the request.
func answer(sys, user string) (string, bool) {
	switch {
	case strings.Contains(sys, "UI content composer"):
		b, _ := json.Marshal(stubLayout())
		return string(b), true
	case strings.Contains(sys, "structured summary"):
		b, _ := json.Marshal(map[string]any{
			"headline": "Stub page in brief",
			"abstract": "A deterministic abstract of the page.",
			"bullets":  []string{"First point.", "Second point.", "Third point."},
			"quotes":   []map[string]string{{"speaker": "Editor", "quote": "Quoted text."}},
			"stats":    []map[string]string{{"label": "Readers", "value": "42", "unit": "k"}},
			"links":    []map[string]string{{"label": "Example", "url": "https://example.com/"}},
		})
		return string(b), true
	case strings.Contains(sys, "single headline"):
		return "Stub headline", true
	case strings.Contains(sys, "bulleted list"):
		if strings.Contains(user, "plain text") {
			return "• First point.\n• Second point.\n• Third point.", true
		}
		return "- First point.\n- Second point.\n- Third point.", true
	case strings.Contains(sys, "summarize web pages"):
		return "A short neutral overview of the page.", true
	}
	return "", false
}

func stubLayout() map[string]any {
	card := func(kind, title, size string) map[string]any {
		return map[string]any{"kind": kind, "title": title, "body": title + " body.", "size": size}
	}
	return map[string]any{
		"header": map[string]any{"title": "Stub page in brief", "subtitle": "A deterministic abstract of the page."},
		"cards": []map[string]any{
			card("lead", "What happened", "l"),
			card("takeaway", "Why it matters", "m"),
			{"kind": "stat", "title": "Readers", "body": "42k", "size": "s", "emphasis": "accent"},
			{"kind": "list", "title": "Key points", "bullets": []string{"First point.", "Second point."}, "size": "m"},
			{"kind": "quote", "title": "Editor", "body": "Quoted text.", "size": "s", "emphasis": "dark"},
		},
	}
}

// streamAnswer writes content as server-sent chat chunks, one word each.
func streamAnswer(w http.ResponseWriter, model, content string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	words := strings.SplitAfter(content, " ")
	for _, word := range words {
		b, _ := json.Marshal(map[string]any{
			"model":   model,
			"object":  "chat.completion.chunk",
			"choices": []map[string]any{{"index": 0, "delta": map[string]string{"content": word}}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}
