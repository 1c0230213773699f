// Package bento composes a card-grid digest of a page from its summary
// bundle and exports it as standalone HTML or PDF.
package bento

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrIncomplete indicates the model answer lacks a header or enough cards.
var ErrIncomplete = errors.New("incomplete bento layout")

// Card kinds.
const (
	KindLead     = "lead"
	KindTakeaway = "takeaway"
	KindStat     = "stat"
	KindQuote    = "quote"
	KindList     = "list"
	KindLinks    = "links"
	KindTip      = "tip"
)

// Card sizes span one, two or four grid columns.
const (
	SizeS = "s"
	SizeM = "m"
	SizeL = "l"
)

// Card emphasis styles.
const (
	EmphasisDefault = "default"
	EmphasisAccent  = "accent"
	EmphasisDark    = "dark"
)

// Card count bounds accepted from the model.
const (
	MinCards = 4
	MaxCards = 10
)

// CTA is the header call to action.
type CTA struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Header heads the grid.
type Header struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	CTA      *CTA   `json:"cta,omitempty"`
}

// Card is one tile of the grid. A progress pair is drawn only when both
// percentages are present.
type Card struct {
	Kind               string   `json:"kind"`
	Title              string   `json:"title"`
	Body               string   `json:"body,omitempty"`
	Bullets            []string `json:"bullets,omitempty"`
	Tag                string   `json:"tag,omitempty"`
	ProgressLabelLeft  string   `json:"progressLabelLeft,omitempty"`
	ProgressLabelRight string   `json:"progressLabelRight,omitempty"`
	ProgressLeftPct    *float64 `json:"progressLeftPct,omitempty"`
	ProgressRightPct   *float64 `json:"progressRightPct,omitempty"`
	Size               string   `json:"size"`
	Emphasis           string   `json:"emphasis,omitempty"`
	SourceAnchors      []string `json:"sourceAnchors,omitempty"`
}

// HasProgress reports whether the card carries a comparative pair.
func (c Card) HasProgress() bool {
	return c.ProgressLeftPct != nil && c.ProgressRightPct != nil
}

// Layout is the whole digest.
type Layout struct {
	Header Header `json:"header"`
	Cards  []Card `json:"cards"`
}

// Schema is the JSON Schema the model's answer must satisfy.
var Schema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "header": {
      "type": "object",
      "properties": {
        "title": {"type": "string"},
        "subtitle": {"type": "string"},
        "cta": {
          "type": "object",
          "properties": {"label": {"type": "string"}, "url": {"type": "string"}},
          "required": ["label", "url"]
        }
      },
      "required": ["title", "subtitle"]
    },
    "cards": {
      "type": "array",
      "minItems": 4,
      "maxItems": 10,
      "items": {
        "type": "object",
        "properties": {
          "kind": {"type": "string", "enum": ["lead", "takeaway", "stat", "quote", "list", "links", "tip"]},
          "title": {"type": "string"},
          "body": {"type": "string"},
          "bullets": {"type": "array", "items": {"type": "string"}},
          "tag": {"type": "string"},
          "progressLabelLeft": {"type": "string"},
          "progressLabelRight": {"type": "string"},
          "progressLeftPct": {"type": "number", "minimum": 0, "maximum": 100},
          "progressRightPct": {"type": "number", "minimum": 0, "maximum": 100},
          "size": {"type": "string", "enum": ["s", "m", "l"]},
          "emphasis": {"type": "string", "enum": ["default", "accent", "dark"]},
          "sourceAnchors": {"type": "array", "items": {"type": "string"}}
        },
        "required": ["kind", "title", "size"]
      }
    }
  },
  "required": ["header", "cards"]
}`)

// Normalize decodes a model answer into a Layout. The answer may be the
// layout object itself, a JSON string holding it, or an object whose
// "output" field is either of those.
func Normalize(raw []byte) (Layout, error) {
	data := []byte(strings.TrimSpace(string(raw)))
	if len(data) == 0 {
		return Layout{}, errors.New("model returned no data")
	}
	for depth := 0; depth < 4; depth++ {
		switch data[0] {
		case '"':
			var s string
			if err := json.Unmarshal(data, &s); err != nil {
				return Layout{}, fmt.Errorf("decode layout string: %w", err)
			}
			data = []byte(strings.TrimSpace(stripFence(s)))
			if len(data) == 0 {
				return Layout{}, errors.New("model returned no data")
			}
			continue
		case '{':
			var probe map[string]json.RawMessage
			if err := json.Unmarshal(data, &probe); err != nil {
				return Layout{}, fmt.Errorf("decode layout: %w", err)
			}
			if out, ok := probe["output"]; ok {
				data = []byte(strings.TrimSpace(string(out)))
				if len(data) == 0 || string(data) == "null" {
					return Layout{}, errors.New("model returned no data")
				}
				continue
			}
			var l Layout
			if err := json.Unmarshal(data, &l); err != nil {
				return Layout{}, fmt.Errorf("decode layout: %w", err)
			}
			return l, nil
		default:
			if s := stripFence(string(data)); s != string(data) {
				data = []byte(strings.TrimSpace(s))
				continue
			}
			return Layout{}, errors.New("unexpected model response")
		}
	}
	return Layout{}, errors.New("unexpected model response")
}

func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}

// Validate checks that l has a titled header and MinCards to MaxCards
// titled cards.
func (l Layout) Validate() error {
	if strings.TrimSpace(l.Header.Title) == "" {
		return fmt.Errorf("%w: missing header", ErrIncomplete)
	}
	if n := len(l.Cards); n < MinCards || n > MaxCards {
		return fmt.Errorf("%w: %d cards, want %d to %d", ErrIncomplete, n, MinCards, MaxCards)
	}
	for i, c := range l.Cards {
		if strings.TrimSpace(c.Title) == "" {
			return fmt.Errorf("%w: card %d has no title", ErrIncomplete, i+1)
		}
	}
	return nil
}

// Tidy fills defaults the renderers rely on: unknown sizes become "s",
// unknown emphasis "default", unknown kinds "takeaway", percentages are
// clamped to 0..100 and a header without a CTA links to the article.
func (l Layout) Tidy(articleURL string) Layout {
	out := Layout{Header: l.Header, Cards: make([]Card, 0, len(l.Cards))}
	if out.Header.CTA == nil && articleURL != "" {
		out.Header.CTA = &CTA{Label: "Read original", URL: articleURL}
	}
	for _, c := range l.Cards {
		switch c.Size {
		case SizeS, SizeM, SizeL:
		default:
			c.Size = SizeS
		}
		switch c.Emphasis {
		case EmphasisDefault, EmphasisAccent, EmphasisDark:
		default:
			c.Emphasis = EmphasisDefault
		}
		switch c.Kind {
		case KindLead, KindTakeaway, KindStat, KindQuote, KindList, KindLinks, KindTip:
		default:
			c.Kind = KindTakeaway
		}
		if c.ProgressLeftPct != nil {
			v := ClampPercent(*c.ProgressLeftPct)
			c.ProgressLeftPct = &v
		}
		if c.ProgressRightPct != nil {
			v := ClampPercent(*c.ProgressRightPct)
			c.ProgressRightPct = &v
		}
		out.Cards = append(out.Cards, c)
	}
	return out
}

// ClampPercent limits v to 0..100. NaN becomes 0.
func ClampPercent(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
