// Package extract turns the visible part of a page into plain text.
package extract

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/exclusion"
	"github.com/hyperifyio/ptsnap/internal/mask"
	"github.com/hyperifyio/ptsnap/internal/protocol"
)

// TextFunc computes the text of the body while excluded elements are hidden.
type TextFunc func(body *dom.Node) (string, error)

// Pipeline extracts the page text with the store's elements masked out.
type Pipeline struct {
	Doc   *dom.Document
	Store *exclusion.Store
	// Text defaults to InnerText.
	Text TextFunc
}

// Extract prunes detached entries, reads the body text under the mask and
// packages it with the page metadata. A failing text computation yields an
// empty text; the metadata is still accurate.
func (p *Pipeline) Extract() protocol.PageText {
	p.Store.Prune()
	text, err := p.visibleText()
	if err != nil {
		log.Warn().Err(err).Str("url", p.Doc.URL()).Msg("text extraction failed")
		text = ""
	}
	return protocol.PageText{
		Text:          text,
		Title:         p.Doc.Title(),
		URL:           p.Doc.URL(),
		ExcludedCount: p.Store.Len(),
		Excluded:      p.Store.Descriptors(),
	}
}

func (p *Pipeline) visibleText() (text string, err error) {
	body := p.Doc.Body()
	if body == nil {
		return "", nil
	}
	compute := p.Text
	if compute == nil {
		compute = func(n *dom.Node) (string, error) { return InnerText(n), nil }
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("panic during extraction: %v", r)
		}
	}()
	return mask.WithHidden(p.targets(), func() (string, error) { return compute(body) })
}

func (p *Pipeline) targets() []mask.Target {
	nodes := p.Store.Nodes()
	out := make([]mask.Target, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n)
	}
	return out
}
