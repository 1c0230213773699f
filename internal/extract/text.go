package extract

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/ptsnap/internal/dom"
)

// InnerText returns the rendered text of n the way a browser's innerText
// does: non-rendered subtrees contribute nothing, block boxes start on a new
// line and whitespace is collapsed per line.
func InnerText(n *dom.Node) string {
	if n == nil || n.Hidden() {
		return ""
	}
	w := &textWriter{}
	collectText(w, n.Document(), n.Raw(), false)
	return normalizeWhitespace(w.b.String())
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"dd": true, "details": true, "dialog": true, "div": true, "dl": true,
	"dt": true, "fieldset": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "header": true, "main": true, "nav": true,
	"ol": true, "section": true, "summary": true, "table": true, "tr": true,
	"ul": true, "caption": true, "body": true, "li": true, "pre": true,
}

// textWriter merges adjacent block boundaries: the largest pending break
// count wins and breaks before the first or after the last text are dropped.
type textWriter struct {
	b       strings.Builder
	pending int
}

func (w *textWriter) requireBreaks(n int) {
	if n > w.pending {
		w.pending = n
	}
}

func (w *textWriter) text(s string) {
	if s == "" {
		return
	}
	// inter-element whitespace next to a block boundary renders nothing
	if w.pending > 0 && s != "\n" && strings.TrimSpace(s) == "" {
		return
	}
	if w.b.Len() > 0 && w.pending > 0 {
		w.b.WriteString(strings.Repeat("\n", w.pending))
	}
	w.pending = 0
	w.b.WriteString(s)
}

func collectText(w *textWriter, doc *dom.Document, n *html.Node, inPre bool) {
	var name string
	if n.Type == html.ElementNode {
		if doc.Wrap(n).Hidden() {
			return
		}
		name = strings.ToLower(n.Data)
		switch {
		case name == "br":
			w.text("\n")
			return
		case name == "hr":
			w.requireBreaks(2)
			return
		case name == "p", isHeading(name):
			w.requireBreaks(2)
		case name == "td", name == "th":
			w.text("\t")
		case blockTags[name]:
			w.requireBreaks(1)
		}
		if name == "pre" {
			inPre = true
		}
	}

	if n.Type == html.TextNode {
		data := n.Data
		if inPre {
			data = strings.ReplaceAll(data, "\r", "")
		} else {
			data = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(data)
			if strings.TrimSpace(data) == "" {
				data = " "
			}
		}
		w.text(data)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(w, doc, c, inPre)
	}

	if n.Type == html.ElementNode {
		switch {
		case name == "p", isHeading(name):
			w.requireBreaks(2)
		case blockTags[name]:
			w.requireBreaks(1)
		}
	}
}

func isHeading(name string) bool {
	return len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6'
}

func normalizeWhitespace(s string) string {
	// Collapse multiple spaces and blank lines
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			// Keep at most one consecutive blank
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[0] == "" {
		out = out[1:]
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
