package bento

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperifyio/ptsnap/internal/summarize"
)

// Prompt is the chat request text for one layout.
type Prompt struct {
	System string
	User   string
}

// String joins both parts, for cache keys and logging lengths.
func (p Prompt) String() string { return p.System + "\n\n" + p.User }

const systemPrompt = "You are a UI content composer. Produce compact, factual bento cards from a news or blog article. " +
	"Return strictly valid JSON matching the provided JSON Schema. No markdown. No extra keys."

// BuildPrompt asks for a layout built only from the summary bundle.
func BuildPrompt(article summarize.Article, b summarize.Bundle) Prompt {
	title := orUnknown(article.Title)
	link := orUnknown(article.URL)

	var sb strings.Builder
	sb.WriteString("Here is the article context:\n")
	fmt.Fprintf(&sb, "- Title: %s\n", title)
	fmt.Fprintf(&sb, "- URL: %s\n", link)
	fmt.Fprintf(&sb, "- Domain: %s\n", orUnknown(article.Domain()))
	sb.WriteString("\nSummaries to use (already computed):\n")
	fmt.Fprintf(&sb, "- Headline: %s\n", b.Headline)
	fmt.Fprintf(&sb, "- One-sentence abstract: %s\n", b.Abstract)
	fmt.Fprintf(&sb, "- Key bullets (at most 8): %s\n", jsonList(b.Bullets))
	fmt.Fprintf(&sb, "- Notable quotes (speaker + quote): %s\n", jsonList(b.Quotes))
	fmt.Fprintf(&sb, "- Important numbers (label + value + unit): %s\n", jsonList(b.Stats))
	fmt.Fprintf(&sb, "- Relevant links (label + url): %s\n", jsonList(b.Links))

	sb.WriteString(`
Task:
1) Create a concise header:
   - title: a crisp 4 to 8 word headline using the article's topic.
   - subtitle: a single informative line of at most 22 words.
`)
	fmt.Fprintf(&sb, "   - cta: label \"Read original\" and url = %s.\n", link)
	sb.WriteString(`
2) Create 6 to 8 cards balancing these kinds:
   - lead (1): the big idea; use size "l".
   - takeaway (2 to 3): key ideas; size "m" or "s".
   - stat (1): one or two metrics; may use progress bars if a comparative percentage is available.
   - quote (0 to 1): one impactful quotation with attribution in body.
   - list or links (1): a short bullet list (3 to 6 bullets) or curated links.

3) Populate fields:
   - title: at most 60 characters.
   - body: at most 220 characters, plain text.
   - bullets: optional, 3 to 6 short items.
   - tag: a 1 to 2 word category such as "Overview", "Impact" or "Market".
   - size: s, m or l per the layout guidelines above.
   - emphasis: "default", "accent" for a highlight, or "dark" for contrast.
   - For a comparative stat, include progressLabelLeft/Right and progressLeftPct/progressRightPct.

4) Output strictly valid JSON that matches this schema. No commentary.
`)
	sb.Write(Schema)
	return Prompt{System: systemPrompt, User: sb.String()}
}

// jsonList renders a slice for the prompt; empty or nil is [].
func jsonList[T any](v []T) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
