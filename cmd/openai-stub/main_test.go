package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperifyio/ptsnap/internal/app"
	"github.com/hyperifyio/ptsnap/internal/llm"
	"github.com/hyperifyio/ptsnap/internal/summarize"
)

func TestStubServesSummaries(t *testing.T) {
	srv := httptest.NewServer(newMux("stub-model"))
	defer srv.Close()

	client := llm.NewOpenAI(srv.URL+"/v1", "", srv.Client())
	models, err := client.ListModels(context.Background())
	if err != nil || len(models.Models) != 1 || models.Models[0].ID != "stub-model" {
		t.Fatalf("models=%+v err=%v", models, err)
	}

	s := &summarize.Summarizer{Client: client, Model: "stub-model"}
	out, err := s.Summarize(context.Background(), "Some page text.", summarize.Options{Type: summarize.KeyPoints})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(out, "First point.") {
		t.Fatalf("key points=%q", out)
	}
	out, err = s.Summarize(context.Background(), "Some page text.", summarize.Options{Type: summarize.Headline})
	if err != nil || out != "Stub headline" {
		t.Fatalf("headline=%q err=%v", out, err)
	}

	chunks, errc := s.Stream(context.Background(), "Other page text.", summarize.Options{Type: summarize.TLDR})
	var acc strings.Builder
	n := 0
	for c := range chunks {
		acc.WriteString(c)
		n++
	}
	if err := <-errc; err != nil {
		t.Fatalf("stream: %v", err)
	}
	if acc.String() != "A short neutral overview of the page." || n < 2 {
		t.Fatalf("streamed %d chunks: %q", n, acc.String())
	}
}

func TestStubRejectsUnknownPrompt(t *testing.T) {
	if _, ok := answer("You are a poet.", ""); ok {
		t.Fatalf("unknown system prompt should be rejected")
	}
}

// End to end: one run against the stub produces a summary and a bento
// digest.
func TestAppRunAgainstStub(t *testing.T) {
	srv := httptest.NewServer(newMux("stub-model"))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "page.html")
	page := `<html><head><title>Stub page</title></head><body><article><p>Readers reached 42k.</p></article><aside class="promo">Subscribe</aside></body></html>`
	if err := os.WriteFile(in, []byte(page), 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}
	out := filepath.Join(dir, "out.json")
	htmlPath := filepath.Join(dir, "digest.html")
	cfg := app.Config{
		InputPath:     in,
		OutputPath:    out,
		Format:        app.FormatJSON,
		Exclude:       []string{".promo"},
		Summary:       true,
		SummaryType:   string(summarize.KeyPoints),
		Bento:         true,
		BentoHTMLPath: htmlPath,
		LLMBaseURL:    srv.URL + "/v1",
		LLMModel:      "stub-model",
		CacheDir:      filepath.Join(dir, "cache"),
	}
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var doc struct {
		Text    string `json:"text"`
		Summary struct {
			Text string `json:"text"`
		} `json:"summary"`
		Bento struct {
			Data struct {
				Cards []json.RawMessage `json:"cards"`
			} `json:"data"`
		} `json:"bento"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(doc.Text, "Subscribe") {
		t.Fatalf("excluded text leaked: %q", doc.Text)
	}
	if !strings.Contains(doc.Summary.Text, "First point.") {
		t.Fatalf("summary=%q", doc.Summary.Text)
	}
	if len(doc.Bento.Data.Cards) != 5 {
		t.Fatalf("cards=%d, want 5", len(doc.Bento.Data.Cards))
	}
	h, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("read digest: %v", err)
	}
	if !strings.Contains(string(h), "Stub page in brief") {
		t.Fatalf("digest html missing header")
	}
}
