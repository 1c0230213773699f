// Package summarize turns extracted page text into summaries with a chat
// model.
package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/ptsnap/internal/budget"
	"github.com/hyperifyio/ptsnap/internal/cache"
	"github.com/hyperifyio/ptsnap/internal/llm"
)

// ErrEmptySummary indicates the model produced no usable text.
var ErrEmptySummary = errors.New("empty summary")

// Summarizer calls a chat model to summarize page text.
type Summarizer struct {
	Client llm.Client
	Cache  *cache.LLMCache
	Model  string
	// CacheOnly answers from the cache and fails fast on a miss.
	CacheOnly bool
}

// sleepFunc is the pause before the single retry; tests replace it.
var sleepFunc = time.Sleep

const retryDelay = 100 * time.Millisecond

type prepared struct {
	req       openai.ChatCompletionRequest
	key       string
	truncated bool
}

func (s *Summarizer) prepare(text string, opts Options) (prepared, error) {
	if s == nil || s.Client == nil || strings.TrimSpace(s.Model) == "" {
		return prepared{}, errors.New("summarizer not configured")
	}
	if err := opts.Validate(); err != nil {
		return prepared{}, err
	}
	opts = opts.withDefaults()
	profile := GetProfile(opts.Type)
	system := profile.SystemPrompt
	head := buildUserMessage(profile, opts)

	maxOut := opts.Length.maxOutputTokens()
	room := budget.RemainingContextWithHeadroom(s.Model, maxOut, budget.EstimatePromptTokens(system, head, nil))
	body, truncated := budget.TruncateToTokens(strings.TrimSpace(text), room)
	if truncated {
		log.Debug().Int("chars", len(text)).Int("kept", len(body)).Str("model", s.Model).Msg("page text truncated to fit context")
	}
	user := head + "\n\nPage text:\n\n" + body

	return prepared{
		req: openai.ChatCompletionRequest{
			Model: s.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
			Temperature: 0.2,
			MaxTokens:   maxOut,
			N:           1,
		},
		key:       cache.KeyFrom(s.Model, "summary", string(opts.Type), system, user),
		truncated: truncated,
	}, nil
}

func buildUserMessage(p Profile, opts Options) string {
	var sb strings.Builder
	sb.WriteString(p.Instruction)
	sb.WriteString("\nLength: ")
	sb.WriteString(p.Size(opts.Length))
	sb.WriteString(".")
	switch opts.Format {
	case PlainText:
		sb.WriteString("\nFormat: plain text without any Markdown.")
		if opts.Type == KeyPoints {
			sb.WriteString(" Start each point on its own line with \"• \".")
		}
	default:
		sb.WriteString("\nFormat: Markdown.")
		if opts.Type == KeyPoints {
			sb.WriteString(" Use \"- \" list items.")
		}
	}
	if opts.Language != "" {
		sb.WriteString("\nWrite in language: ")
		sb.WriteString(opts.Language)
	}
	if ctx := strings.TrimSpace(opts.SharedContext); ctx != "" {
		sb.WriteString("\nBackground (do not summarize this): ")
		sb.WriteString(ctx)
	}
	return sb.String()
}

type cachedSummary struct {
	Summary string `json:"summary"`
}

// Summarize returns the complete summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string, opts Options) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptySummary
	}
	p, err := s.prepare(text, opts)
	if err != nil {
		return "", err
	}
	var hit cachedSummary
	if s.Cache.GetJSON(ctx, p.key, &hit) && strings.TrimSpace(hit.Summary) != "" {
		log.Debug().Str("type", string(opts.withDefaults().Type)).Msg("summary served from cache")
		return hit.Summary, nil
	}
	if s.CacheOnly {
		return "", fmt.Errorf("cache only: %w", ErrEmptySummary)
	}

	resp, err := s.complete(ctx, p.req)
	if err != nil {
		return "", fmt.Errorf("summary call: %w", err)
	}
	out := clean(llm.FirstContent(resp), opts.withDefaults())
	if out == "" {
		return "", ErrEmptySummary
	}
	s.save(ctx, p.key, out)
	return out, nil
}

// complete calls the model with one short retry on failure. ctx still
// bounds both attempts.
func (s *Summarizer) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	resp, err := s.Client.CreateChatCompletion(ctx, req)
	if err == nil {
		return resp, nil
	}
	if ctx.Err() != nil {
		return resp, err
	}
	log.Debug().Err(err).Msg("model call failed, retrying once")
	sleepFunc(retryDelay)
	resp, err = s.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return resp, fmt.Errorf("after retry: %w", err)
	}
	return resp, nil
}

func (s *Summarizer) save(ctx context.Context, key, summary string) {
	if err := s.Cache.SaveJSON(ctx, key, cachedSummary{Summary: summary}); err != nil {
		log.Warn().Err(err).Msg("summary cache save failed")
	}
}

// Stream delivers the summary incrementally. When the client cannot stream,
// or the answer is cached, the whole summary arrives as one chunk. The error
// channel receives at most one value and both channels are closed when done.
func (s *Summarizer) Stream(ctx context.Context, text string, opts Options) (<-chan string, <-chan error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(out)
		if err := s.stream(ctx, text, opts, out); err != nil {
			errc <- err
		}
	}()
	return out, errc
}

func (s *Summarizer) stream(ctx context.Context, text string, opts Options, out chan<- string) error {
	emit := func(chunk string) error {
		select {
		case out <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	whole := func() error {
		summary, err := s.Summarize(ctx, text, opts)
		if err != nil {
			return err
		}
		return emit(summary)
	}

	streamer, ok := s.Client.(llm.Streamer)
	if !ok || strings.TrimSpace(text) == "" {
		return whole()
	}
	p, err := s.prepare(text, opts)
	if err != nil {
		return err
	}
	var hit cachedSummary
	if s.CacheOnly || s.Cache.GetJSON(ctx, p.key, &hit) {
		return whole()
	}

	st, err := streamer.CreateChatStream(ctx, p.req)
	if err != nil {
		log.Debug().Err(err).Msg("stream unavailable, falling back to a single completion")
		return whole()
	}
	defer st.Close()

	var acc strings.Builder
	for {
		chunk, err := st.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("summary stream: %w", err)
		}
		if chunk == "" {
			continue
		}
		acc.WriteString(chunk)
		if err := emit(chunk); err != nil {
			return err
		}
	}
	final := clean(acc.String(), opts.withDefaults())
	if final == "" {
		return ErrEmptySummary
	}
	s.save(ctx, p.key, final)
	return nil
}

var (
	fenceRe    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n(.*?)\\n?```$")
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisRe = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	bulletRe   = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
)

// clean trims model noise: code fences around the whole answer, and for
// plain text the Markdown the model added anyway. Headlines lose wrapping
// quotes and a trailing period.
func clean(s string, opts Options) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if opts.Format == PlainText {
		s = headingRe.ReplaceAllString(s, "")
		s = emphasisRe.ReplaceAllString(s, "$1$2")
		s = bulletRe.ReplaceAllString(s, "• ")
	}
	if opts.Type == Headline {
		s = strings.Trim(s, "\"'“”# ")
		s = strings.TrimSuffix(s, ".")
	}
	return strings.TrimSpace(s)
}

// decodeJSON decodes a JSON answer, tolerating a surrounding code fence or
// prose before the first brace.
func decodeJSON(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	if i := strings.IndexByte(raw, '{'); i > 0 {
		raw = raw[i:]
	}
	if i := strings.LastIndexByte(raw, '}'); i >= 0 && i < len(raw)-1 {
		raw = raw[:i+1]
	}
	return json.Unmarshal([]byte(raw), v)
}
