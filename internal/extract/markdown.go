package extract

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"

	"github.com/hyperifyio/ptsnap/internal/dom"
	"github.com/hyperifyio/ptsnap/internal/mask"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown renders the visible body as Markdown, with excluded elements
// masked out the same way Extract masks them.
func (p *Pipeline) Markdown() (string, error) {
	p.Store.Prune()
	body := p.Doc.Body()
	if body == nil {
		return "", nil
	}
	visible, err := mask.WithHidden(p.targets(), func() (*html.Node, error) {
		return cloneVisible(p.Doc, body.Raw()), nil
	})
	if err != nil {
		return "", err
	}
	out, err := mdConverter.ConvertNode(visible, converter.WithDomain(p.Doc.URL()))
	if err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// cloneVisible deep-copies n without the subtrees that are not rendered.
func cloneVisible(doc *dom.Document, n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      append([]html.Attribute(nil), n.Attr...),
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && doc.Wrap(ch).Hidden() {
			continue
		}
		c.AppendChild(cloneVisible(doc, ch))
	}
	return c
}
