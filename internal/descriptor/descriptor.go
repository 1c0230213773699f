// Package descriptor renders short human-readable labels for page elements.
package descriptor

import (
	"strings"

	"github.com/hyperifyio/ptsnap/internal/dom"
)

// Fallback is shown by callers when an element has no descriptor.
const Fallback = "element"

// Describe returns tag, then "#id", then at most the first two class tokens
// and finally " [aria-label]" when present. Non-elements yield "".
func Describe(n *dom.Node) string {
	if !n.IsElement() {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.TagName())
	if id := n.ID(); id != "" {
		b.WriteString("#")
		b.WriteString(id)
	}
	classes := n.ClassList()
	if len(classes) > 2 {
		classes = classes[:2]
	}
	for _, c := range classes {
		b.WriteString(".")
		b.WriteString(c)
	}
	if label := n.Attribute("aria-label"); label != "" {
		b.WriteString(" [")
		b.WriteString(label)
		b.WriteString("]")
	}
	return b.String()
}

// OrDefault substitutes Fallback for an empty descriptor.
func OrDefault(s string) string {
	if s == "" {
		return Fallback
	}
	return s
}
