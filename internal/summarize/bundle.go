package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/ptsnap/internal/budget"
	"github.com/hyperifyio/ptsnap/internal/cache"
	"github.com/hyperifyio/ptsnap/internal/llm"
)

// Article identifies the page a bundle was made from.
type Article struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	SiteName string `json:"siteName,omitempty"`
}

// Domain returns SiteName, or the host of URL when no site name is known.
func (a Article) Domain() string {
	if a.SiteName != "" {
		return a.SiteName
	}
	if u, err := url.Parse(a.URL); err == nil && u.Host != "" {
		return strings.TrimPrefix(u.Host, "www.")
	}
	return ""
}

// Quote is an attributed quotation from the page.
type Quote struct {
	Speaker string `json:"speaker"`
	Quote   string `json:"quote"`
}

// Stat is a number worth showing on its own.
type Stat struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// Link is a page link worth keeping.
type Link struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Bundle is the structured summary the bento digest is composed from.
type Bundle struct {
	Headline string   `json:"headline"`
	Abstract string   `json:"abstract"`
	Bullets  []string `json:"bullets"`
	Quotes   []Quote  `json:"quotes"`
	Stats    []Stat   `json:"stats"`
	Links    []Link   `json:"links"`
}

const maxBundleBullets = 8

const bundleSystem = "You extract a structured summary from a web page. Use only the provided page text. Return one JSON object and nothing else."

const bundleShape = `Return a JSON object with exactly these keys:
{"headline": string (at most 12 words),
 "abstract": string (one sentence),
 "bullets": [string] (3 to 8 key points),
 "quotes": [{"speaker": string, "quote": string}] (verbatim quotations only, may be empty),
 "stats": [{"label": string, "value": string, "unit": string}] (numbers stated in the text, may be empty),
 "links": [{"label": string, "url": string}] (absolute http(s) URLs found in the text, may be empty)}`

// Bundle asks the model for headline, abstract, bullets, quotes, stats and
// links in one JSON-mode call. If the answer cannot be decoded it falls back
// to three plain summaries (headline, short tldr, key points).
func (s *Summarizer) Bundle(ctx context.Context, article Article, text string) (Bundle, error) {
	if strings.TrimSpace(text) == "" {
		return Bundle{}, ErrEmptySummary
	}
	if s == nil || s.Client == nil || strings.TrimSpace(s.Model) == "" {
		return Bundle{}, errors.New("summarizer not configured")
	}
	head := fmt.Sprintf("Page title: %s\nURL: %s\n\n%s", orUnknown(article.Title), orUnknown(article.URL), bundleShape)
	room := budget.RemainingContextWithHeadroom(s.Model, 1024, budget.EstimatePromptTokens(bundleSystem, head, nil))
	body, _ := budget.TruncateToTokens(strings.TrimSpace(text), room)
	user := head + "\n\nPage text:\n\n" + body
	key := cache.KeyFrom(s.Model, "bundle", bundleSystem, user)

	var b Bundle
	if s.Cache.GetJSON(ctx, key, &b) && !b.empty() {
		return b, nil
	}
	if s.CacheOnly {
		return Bundle{}, fmt.Errorf("cache only: %w", ErrEmptySummary)
	}

	req := openai.ChatCompletionRequest{
		Model: s.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: bundleSystem},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0.2,
		MaxTokens:      1024,
		N:              1,
	}
	resp, err := s.complete(ctx, req)
	if err != nil {
		return Bundle{}, fmt.Errorf("bundle call: %w", err)
	}
	if derr := decodeJSON(llm.FirstContent(resp), &b); derr != nil || b.empty() {
		log.Warn().Err(derr).Msg("bundle answer unusable, composing from plain summaries")
		b, err = s.composeBundle(ctx, text)
		if err != nil {
			return Bundle{}, err
		}
	}
	b = b.normalize()
	if err := s.Cache.SaveJSON(ctx, key, b); err != nil {
		log.Warn().Err(err).Msg("bundle cache save failed")
	}
	return b, nil
}

func (s *Summarizer) composeBundle(ctx context.Context, text string) (Bundle, error) {
	headline, err := s.Summarize(ctx, text, Options{Type: Headline, Length: Short, Format: PlainText})
	if err != nil {
		return Bundle{}, fmt.Errorf("headline: %w", err)
	}
	abstract, err := s.Summarize(ctx, text, Options{Type: TLDR, Length: Short, Format: PlainText})
	if err != nil {
		return Bundle{}, fmt.Errorf("abstract: %w", err)
	}
	points, err := s.Summarize(ctx, text, Options{Type: KeyPoints, Length: Long, Format: PlainText})
	if err != nil {
		return Bundle{}, fmt.Errorf("key points: %w", err)
	}
	return Bundle{Headline: headline, Abstract: abstract, Bullets: SplitPoints(points)}, nil
}

// SplitPoints turns a key-points summary into one string per point.
func SplitPoints(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*+•· ")
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func (b Bundle) empty() bool {
	return strings.TrimSpace(b.Headline) == "" && strings.TrimSpace(b.Abstract) == "" && len(b.Bullets) == 0
}

// normalize trims strings, drops empty entries and links that are not
// absolute http(s) URLs, and caps bullets. Slices are never nil so the bento
// prompt always shows [] for missing parts.
func (b Bundle) normalize() Bundle {
	out := Bundle{
		Headline: strings.TrimSpace(b.Headline),
		Abstract: strings.TrimSpace(b.Abstract),
		Bullets:  []string{},
		Quotes:   []Quote{},
		Stats:    []Stat{},
		Links:    []Link{},
	}
	for _, v := range b.Bullets {
		if v = strings.TrimSpace(v); v != "" && len(out.Bullets) < maxBundleBullets {
			out.Bullets = append(out.Bullets, v)
		}
	}
	for _, q := range b.Quotes {
		if strings.TrimSpace(q.Quote) != "" {
			out.Quotes = append(out.Quotes, Quote{Speaker: strings.TrimSpace(q.Speaker), Quote: strings.TrimSpace(q.Quote)})
		}
	}
	for _, st := range b.Stats {
		if strings.TrimSpace(st.Value) != "" {
			out.Stats = append(out.Stats, Stat{Label: strings.TrimSpace(st.Label), Value: strings.TrimSpace(st.Value), Unit: strings.TrimSpace(st.Unit)})
		}
	}
	for _, l := range b.Links {
		u, err := url.Parse(strings.TrimSpace(l.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		label := strings.TrimSpace(l.Label)
		if label == "" {
			label = u.Host
		}
		out.Links = append(out.Links, Link{Label: label, URL: u.String()})
	}
	return out
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
