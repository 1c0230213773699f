package app

import "time"

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds runtime configuration for the application.
type Config struct {
	// Page source: a file path or an http(s) URL. URL wins when both are set.
	InputPath string
	URL       string

	// Headless rendering
	Render     bool
	BrowserURL string
	BrowserBin string
	UserAgent  string

	// Exclusions replayed before extraction, as CSS selectors.
	Exclude []string
	Restore []string

	// Output; empty or "-" writes to stdout.
	OutputPath string
	Format     string
	Manifest   bool
	// PDFPath additionally writes the Markdown document as a PDF.
	PDFPath string

	// Summary
	Summary       bool
	SummaryType   string
	SummaryLength string
	SummaryFormat string
	SummaryStream bool
	Language      string
	SharedContext string

	// Bento digest
	Bento         bool
	BentoHTMLPath string
	BentoPDFPath  string

	// LLM
	LLMProvider  string
	LLMBaseURL   string
	LLMModel     string
	LLMAPIKey    string
	GeminiAPIKey string

	// Cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool
	CacheMaxBytes    int64
	CacheMaxCount    int
	LLMCacheOnly     bool

	// Server
	Serve          bool
	Addr           string
	AllowedOrigins []string

	Verbose bool
}

// Source returns the page source the run reads.
func (c Config) Source() string {
	if trim(c.URL) != "" {
		return trim(c.URL)
	}
	return trim(c.InputPath)
}

// needsLLM reports whether the run calls a model.
func (c Config) needsLLM() bool { return c.Summary || c.Bento }
