package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/app"
	"github.com/hyperifyio/ptsnap/internal/summarize"
)

// errConfig marks failures the user fixes by changing flags, env or the
// config file.
var errConfig = errors.New("configuration error")

// listFlag collects a repeatable, comma-separated string flag. The first Set
// replaces whatever the list held so explicit flags win over file values.
type listFlag struct {
	dst     *[]string
	touched bool
}

func (l *listFlag) String() string {
	if l == nil || l.dst == nil {
		return ""
	}
	return strings.Join(*l.dst, ",")
}

func (l *listFlag) Set(v string) error {
	if !l.touched {
		*l.dst = nil
		l.touched = true
	}
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			*l.dst = append(*l.dst, s)
		}
	}
	return nil
}

type options struct {
	configPath string
	envFiles   []string
	version    bool
}

// newFlagSet binds every flag to cfg and opts. Registration writes the
// defaults, so an unparsed set leaves cfg holding exactly the defaults.
func newFlagSet(cfg *app.Config, opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet("ptsnap", flag.ContinueOnError)

	fs.StringVar(&cfg.InputPath, "input", "", "Path to a saved HTML page")
	fs.StringVar(&cfg.URL, "url", "", "Page URL to fetch (wins over -input)")
	fs.BoolVar(&cfg.Render, "render", false, "Render the URL in a headless browser before extracting")
	fs.StringVar(&cfg.BrowserURL, "browser.url", "", "DevTools WebSocket URL of a running browser (default: launch one)")
	fs.StringVar(&cfg.BrowserBin, "browser.bin", "", "Browser binary to launch for -render")
	fs.StringVar(&cfg.UserAgent, "ua", "ptsnap/1.0 (+https://github.com/hyperifyio/ptsnap)", "User-Agent for page fetches")
	fs.Var(&listFlag{dst: &cfg.Exclude}, "exclude", "CSS selector of elements to exclude; repeatable or comma-separated")
	fs.Var(&listFlag{dst: &cfg.Restore}, "restore", "CSS selector of excluded elements to restore; repeatable or comma-separated")

	fs.StringVar(&cfg.OutputPath, "output", "", "Output path; empty or - writes to stdout")
	fs.StringVar(&cfg.Format, "format", app.DefaultFormat, "Output format: text, json or markdown")
	fs.StringVar(&cfg.PDFPath, "pdf", "", "Also write the Markdown document as a PDF to this path")
	fs.BoolVar(&cfg.Manifest, "manifest", false, "Record a manifest of the extracted text and exclusions")

	fs.BoolVar(&cfg.Summary, "summary", false, "Summarize the extracted text with the configured model")
	fs.StringVar(&cfg.SummaryType, "summary.type", string(summarize.KeyPoints), "Summary type: key-points, tldr, teaser or headline")
	fs.StringVar(&cfg.SummaryLength, "summary.length", string(summarize.Medium), "Summary length: short, medium or long")
	fs.StringVar(&cfg.SummaryFormat, "summary.format", string(summarize.Markdown), "Summary format: markdown or plain-text")
	fs.BoolVar(&cfg.SummaryStream, "summary.stream", false, "Stream the summary to stdout as it is generated (text format)")
	fs.StringVar(&cfg.SharedContext, "summary.context", "", "Background the model may use but must not summarize")
	fs.StringVar(&cfg.Language, "lang", "", "Optional output language, e.g. 'en' or 'fi'")

	fs.BoolVar(&cfg.Bento, "bento", false, "Build a bento digest of the page")
	fs.StringVar(&cfg.BentoHTMLPath, "bento.html", "", "Path for the bento HTML export (default: next to the output)")
	fs.StringVar(&cfg.BentoPDFPath, "bento.pdf", "", "Path for the bento PDF export")

	fs.StringVar(&cfg.LLMProvider, "llm.provider", "", "Model provider: openai (default) or gemini")
	fs.StringVar(&cfg.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL")
	fs.StringVar(&cfg.LLMModel, "llm.model", "", "Model name")
	fs.StringVar(&cfg.LLMAPIKey, "llm.key", "", "API key for the OpenAI-compatible server")
	fs.StringVar(&cfg.GeminiAPIKey, "llm.geminiKey", "", "API key for Gemini")
	fs.BoolVar(&cfg.LLMCacheOnly, "llm.cacheOnly", false, "Answer model calls from the cache only")

	fs.StringVar(&cfg.CacheDir, "cache.dir", app.DefaultCacheDir, "Cache directory path; empty disables caching")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Max age of cache entries (e.g. 24h); also how long a rendered page is reused; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear cache directory before run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.Int64Var(&cfg.CacheMaxBytes, "cache.maxBytes", 0, "Evict oldest cache entries beyond this many bytes; 0 disables")
	fs.IntVar(&cfg.CacheMaxCount, "cache.maxCount", 0, "Evict oldest cache entries beyond this count; 0 disables")

	fs.BoolVar(&cfg.Serve, "serve", false, "Serve page contexts over HTTP and WebSocket instead of a single run")
	fs.StringVar(&cfg.Addr, "addr", app.DefaultAddr, "Listen address for -serve")
	fs.Var(&listFlag{dst: &cfg.AllowedOrigins}, "origins", "Allowed CORS origins for -serve; repeatable or comma-separated")

	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")

	opts.envFiles = []string{".env"}
	fs.StringVar(&opts.configPath, "config", "", "YAML or JSON config file")
	fs.Var(&listFlag{dst: &opts.envFiles}, "env", "Dotenv files to load; later files win")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	return fs
}

// loadConfig resolves the configuration: flags over environment over the
// config file over defaults.
func loadConfig(args []string, stderr io.Writer) (app.Config, options, error) {
	var (
		probe app.Config
		opts  options
	)
	fs := newFlagSet(&probe, &opts)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return app.Config{}, opts, err
	}
	if fs.NArg() > 0 {
		return app.Config{}, opts, fmt.Errorf("%w: unexpected arguments %v", errConfig, fs.Args())
	}
	if opts.version {
		return probe, opts, nil
	}
	if err := app.LoadEnvFiles(opts.envFiles...); err != nil {
		return app.Config{}, opts, fmt.Errorf("%w: %w", errConfig, err)
	}

	var cfg app.Config
	final := newFlagSet(&cfg, &options{})
	final.SetOutput(io.Discard)
	if opts.configPath != "" {
		fc, err := app.LoadConfigFile(opts.configPath)
		if err != nil {
			return app.Config{}, opts, fmt.Errorf("%w: %w", errConfig, err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)
	if err := final.Parse(args); err != nil {
		return app.Config{}, opts, err
	}
	app.ApplyEnvToConfig(&cfg)

	if err := app.ValidateConfig(cfg); err != nil {
		return app.Config{}, opts, fmt.Errorf("%w: %w", errConfig, err)
	}
	return cfg, opts, nil
}

func main() {
	// Logging setup
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, opts, err := loadConfig(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	if opts.version {
		fmt.Printf("ptsnap %s (commit %s, built %s)\n", app.BuildVersion, app.BuildCommit, app.BuildDate)
		return
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("run failed")
	}
	os.Exit(exitCode(err))
}

// exitCode maps a run error to the process exit status: 2 when the page
// had no visible text, 1 for configuration problems, otherwise 0. main logs
// every non-nil error before exiting.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrNoText):
		return 2
	case errors.Is(err, errConfig):
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg app.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: init app: %w", errConfig, err)
	}
	defer a.Close()

	if cfg.Serve {
		err := a.Serve(ctx)
		log.Info().Msg("server stopped")
		return err
	}
	return a.Run(ctx)
}
