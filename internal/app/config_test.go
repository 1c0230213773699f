package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/ptsnap/internal/summarize"
)

const yamlConfig = `
input: page.html
format: markdown
exclude: ["nav", ".ad"]
browser:
  render: true
  url: ws://127.0.0.1:9222
summary:
  enable: true
  type: tldr
  length: short
llm:
  base: http://localhost:11434/v1
  model: llama3
cache:
  dir: /tmp/c
  maxAge: 24h
  maxCount: 50
server:
  addr: ":8080"
  origins: ["https://example.com"]
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfigFile_YAML(t *testing.T) {
	fc, err := LoadConfigFile(writeConfig(t, "ptsnap.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if fc.Input != "page.html" || fc.Format != "markdown" {
		t.Fatalf("top level: %+v", fc)
	}
	if len(fc.Exclude) != 2 || fc.Exclude[1] != ".ad" {
		t.Fatalf("exclude=%v", fc.Exclude)
	}
	if !fc.Browser.Render || fc.LLM.Model != "llama3" || fc.Cache.MaxAge != 24*time.Hour {
		t.Fatalf("sections: %+v", fc)
	}
}

func TestLoadConfigFile_JSONAndUnknownExtension(t *testing.T) {
	body := `{"url":"https://example.com","llm":{"model":"m"},"summary":{"enable":true}}`
	for _, name := range []string{"cfg.json", "cfg.conf"} {
		fc, err := LoadConfigFile(writeConfig(t, name, body))
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if fc.URL != "https://example.com" || fc.LLM.Model != "m" || !fc.Summary.Enable {
			t.Fatalf("%s: %+v", name, fc)
		}
	}
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	if _, err := LoadConfigFile(writeConfig(t, "bad.json", "{")); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "none.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestApplyFileConfig_RespectsExplicitValues(t *testing.T) {
	fc, err := LoadConfigFile(writeConfig(t, "ptsnap.yml", yamlConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := Config{
		Format:        DefaultFormat,
		CacheDir:      DefaultCacheDir,
		Addr:          DefaultAddr,
		UserAgent:     defaultUserAgent,
		SummaryType:   string(summarize.KeyPoints),
		SummaryLength: string(summarize.Medium),
		SummaryFormat: string(summarize.Markdown),
		LLMModel:      "flag-model",
		Restore:       []string{"#keep"},
	}
	ApplyFileConfig(&cfg, fc)

	if cfg.InputPath != "page.html" || cfg.Format != "markdown" {
		t.Fatalf("input=%q format=%q", cfg.InputPath, cfg.Format)
	}
	if cfg.LLMModel != "flag-model" {
		t.Fatalf("flag value overwritten: %q", cfg.LLMModel)
	}
	if cfg.SummaryType != "tldr" || cfg.SummaryLength != "short" || cfg.SummaryFormat != string(summarize.Markdown) {
		t.Fatalf("summary: %q %q %q", cfg.SummaryType, cfg.SummaryLength, cfg.SummaryFormat)
	}
	if !cfg.Summary || !cfg.Render || cfg.BrowserURL != "ws://127.0.0.1:9222" {
		t.Fatalf("flags: summary=%v render=%v browser=%q", cfg.Summary, cfg.Render, cfg.BrowserURL)
	}
	if cfg.CacheDir != "/tmp/c" || cfg.CacheMaxAge != 24*time.Hour || cfg.CacheMaxCount != 50 {
		t.Fatalf("cache: %q %v %d", cfg.CacheDir, cfg.CacheMaxAge, cfg.CacheMaxCount)
	}
	if cfg.Addr != ":8080" || len(cfg.AllowedOrigins) != 1 {
		t.Fatalf("server: %q %v", cfg.Addr, cfg.AllowedOrigins)
	}
	if strings.Join(cfg.Exclude, ",") != "nav,.ad" || strings.Join(cfg.Restore, ",") != "#keep" {
		t.Fatalf("selectors: %v %v", cfg.Exclude, cfg.Restore)
	}
}

func TestValidateConfig(t *testing.T) {
	ok := Config{InputPath: "page.html", Format: FormatText}
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"serve without source", func(c *Config) { c.InputPath = ""; c.Serve = true }, ""},
		{"no source", func(c *Config) { c.InputPath = "" }, "input path or url"},
		{"bad format", func(c *Config) { c.Format = "xml" }, "unknown format"},
		{"bad provider", func(c *Config) { c.LLMProvider = "acme" }, "unknown llm provider"},
		{"summary without model", func(c *Config) { c.Summary = true }, "llm.model"},
		{"bento without model", func(c *Config) { c.Bento = true }, "llm.model"},
		{"bad summary type", func(c *Config) { c.Summary = true; c.LLMModel = "m"; c.SummaryType = "essay" }, "config:"},
		{"negative limit", func(c *Config) { c.CacheMaxCount = -1 }, "negative"},
		{"empty selector", func(c *Config) { c.Exclude = []string{" "} }, "empty selector"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := ok
			tc.mutate(&cfg)
			err := ValidateConfig(cfg)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err=%v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestConfigSourcePrefersURL(t *testing.T) {
	c := Config{InputPath: "a.html", URL: " https://x.test "}
	if got := c.Source(); got != "https://x.test" {
		t.Fatalf("source=%q", got)
	}
	if got := (Config{InputPath: "a.html"}).Source(); got != "a.html" {
		t.Fatalf("source=%q", got)
	}
}
