package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/hyperifyio/ptsnap/internal/summarize"
)

// FileConfig represents the single-file configuration schema.
// Nested sections map naturally to flags and env.
type FileConfig struct {
	Input    string   `yaml:"input" json:"input"`
	URL      string   `yaml:"url" json:"url"`
	Output   string   `yaml:"output" json:"output"`
	Format   string   `yaml:"format" json:"format"`
	PDF      string   `yaml:"pdf" json:"pdf"`
	Manifest bool     `yaml:"manifest" json:"manifest"`
	Exclude  []string `yaml:"exclude" json:"exclude"`
	Restore  []string `yaml:"restore" json:"restore"`
	Language string   `yaml:"language" json:"language"`
	Verbose  bool     `yaml:"verbose" json:"verbose"`

	Browser struct {
		Render    bool   `yaml:"render" json:"render"`
		URL       string `yaml:"url" json:"url"`
		Bin       string `yaml:"bin" json:"bin"`
		UserAgent string `yaml:"userAgent" json:"userAgent"`
	} `yaml:"browser" json:"browser"`

	Summary struct {
		Enable  bool   `yaml:"enable" json:"enable"`
		Type    string `yaml:"type" json:"type"`
		Length  string `yaml:"length" json:"length"`
		Format  string `yaml:"format" json:"format"`
		Stream  bool   `yaml:"stream" json:"stream"`
		Context string `yaml:"context" json:"context"`
	} `yaml:"summary" json:"summary"`

	Bento struct {
		Enable bool   `yaml:"enable" json:"enable"`
		HTML   string `yaml:"html" json:"html"`
		PDF    string `yaml:"pdf" json:"pdf"`
	} `yaml:"bento" json:"bento"`

	LLM struct {
		Provider  string `yaml:"provider" json:"provider"`
		BaseURL   string `yaml:"base" json:"base"`
		Model     string `yaml:"model" json:"model"`
		APIKey    string `yaml:"key" json:"key"`
		GeminiKey string `yaml:"geminiKey" json:"geminiKey"`
		CacheOnly bool   `yaml:"cacheOnly" json:"cacheOnly"`
	} `yaml:"llm" json:"llm"`

	Cache struct {
		Dir         string        `yaml:"dir" json:"dir"`
		MaxAge      time.Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool          `yaml:"clear" json:"clear"`
		StrictPerms bool          `yaml:"strictPerms" json:"strictPerms"`
		MaxBytes    int64         `yaml:"maxBytes" json:"maxBytes"`
		MaxCount    int           `yaml:"maxCount" json:"maxCount"`
	} `yaml:"cache" json:"cache"`

	Server struct {
		Addr    string   `yaml:"addr" json:"addr"`
		Origins []string `yaml:"origins" json:"origins"`
	} `yaml:"server" json:"server"`
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// Flag defaults a config file may replace.
const (
	DefaultFormat   = FormatText
	DefaultCacheDir = ".ptsnap-cache"
	DefaultAddr     = "127.0.0.1:8787"
)

// ApplyFileConfig overlays values from FileConfig into cfg for any fields that
// are unset or still at their flag default.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	str := func(dst *string, v, def string) {
		if (*dst == "" || *dst == def) && v != "" {
			*dst = v
		}
	}
	flag := func(dst *bool, v bool) {
		if !*dst && v {
			*dst = true
		}
	}
	list := func(dst *[]string, v []string) {
		if len(*dst) == 0 && len(v) > 0 {
			*dst = append([]string{}, v...)
		}
	}

	str(&cfg.InputPath, fc.Input, "")
	str(&cfg.URL, fc.URL, "")
	str(&cfg.OutputPath, fc.Output, "")
	str(&cfg.Format, fc.Format, DefaultFormat)
	str(&cfg.PDFPath, fc.PDF, "")
	flag(&cfg.Manifest, fc.Manifest)
	list(&cfg.Exclude, fc.Exclude)
	list(&cfg.Restore, fc.Restore)
	str(&cfg.Language, fc.Language, "")
	flag(&cfg.Verbose, fc.Verbose)

	flag(&cfg.Render, fc.Browser.Render)
	str(&cfg.BrowserURL, fc.Browser.URL, "")
	str(&cfg.BrowserBin, fc.Browser.Bin, "")
	str(&cfg.UserAgent, fc.Browser.UserAgent, defaultUserAgent)

	flag(&cfg.Summary, fc.Summary.Enable)
	str(&cfg.SummaryType, fc.Summary.Type, string(summarize.KeyPoints))
	str(&cfg.SummaryLength, fc.Summary.Length, string(summarize.Medium))
	str(&cfg.SummaryFormat, fc.Summary.Format, string(summarize.Markdown))
	flag(&cfg.SummaryStream, fc.Summary.Stream)
	str(&cfg.SharedContext, fc.Summary.Context, "")

	flag(&cfg.Bento, fc.Bento.Enable)
	str(&cfg.BentoHTMLPath, fc.Bento.HTML, "")
	str(&cfg.BentoPDFPath, fc.Bento.PDF, "")

	str(&cfg.LLMProvider, fc.LLM.Provider, "")
	str(&cfg.LLMBaseURL, fc.LLM.BaseURL, "")
	str(&cfg.LLMModel, fc.LLM.Model, "")
	str(&cfg.LLMAPIKey, fc.LLM.APIKey, "")
	str(&cfg.GeminiAPIKey, fc.LLM.GeminiKey, "")
	flag(&cfg.LLMCacheOnly, fc.LLM.CacheOnly)

	str(&cfg.CacheDir, fc.Cache.Dir, DefaultCacheDir)
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = fc.Cache.MaxAge
	}
	flag(&cfg.CacheClear, fc.Cache.Clear)
	flag(&cfg.CacheStrictPerms, fc.Cache.StrictPerms)
	if cfg.CacheMaxBytes == 0 && fc.Cache.MaxBytes > 0 {
		cfg.CacheMaxBytes = fc.Cache.MaxBytes
	}
	if cfg.CacheMaxCount == 0 && fc.Cache.MaxCount > 0 {
		cfg.CacheMaxCount = fc.Cache.MaxCount
	}

	str(&cfg.Addr, fc.Server.Addr, DefaultAddr)
	list(&cfg.AllowedOrigins, fc.Server.Origins)
}

// ValidateConfig performs minimal schema validation for required settings.
func ValidateConfig(cfg Config) error {
	if !cfg.Serve && cfg.Source() == "" {
		return errors.New("config: input path or url is required")
	}
	switch strings.ToLower(trim(cfg.Format)) {
	case "", FormatText, FormatJSON, FormatMarkdown:
	default:
		return fmt.Errorf("config: unknown format %q (want text, json or markdown)", cfg.Format)
	}
	switch strings.ToLower(trim(cfg.LLMProvider)) {
	case "", ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown llm provider %q", cfg.LLMProvider)
	}
	if cfg.needsLLM() && trim(cfg.LLMModel) == "" {
		return errors.New("config: llm.model is required for summaries (or set LLM_MODEL)")
	}
	if cfg.Summary {
		if _, err := summaryOptions(cfg); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	if cfg.CacheMaxBytes < 0 || cfg.CacheMaxCount < 0 {
		return errors.New("config: negative cache limits are not allowed")
	}
	for _, sel := range append(append([]string{}, cfg.Exclude...), cfg.Restore...) {
		if trim(sel) == "" {
			return errors.New("config: empty selector")
		}
	}
	return nil
}

func trim(s string) string { return strings.TrimSpace(s) }
