package dom

import (
	"strings"

	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// PriorityImportant is the priority string used for !important declarations.
const PriorityImportant = "important"

// declarations parses the inline style one segment at a time. Empty
// segments and segments the parser rejects are skipped, the way browsers
// drop invalid declarations.
func (e *Node) declarations() []*css.Declaration {
	raw, ok := e.LookupAttribute("style")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []*css.Declaration
	for _, seg := range splitDeclarations(raw) {
		// The parser only finalizes a declaration at ';' or '}'.
		decls, err := parser.ParseDeclarations(seg + ";")
		if err != nil {
			continue
		}
		for _, d := range decls {
			if d.Property != "" {
				out = append(out, d)
			}
		}
	}
	return out
}

// splitDeclarations cuts raw at top-level semicolons, keeping those inside
// quotes or parentheses, and drops blank parts.
func splitDeclarations(raw string) []string {
	var (
		parts []string
		quote rune
		depth int
		start int
	)
	flush := func(end int) {
		if seg := strings.TrimSpace(raw[start:end]); seg != "" {
			parts = append(parts, seg)
		}
	}
	for i, r := range raw {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '(':
			depth++
		case r == ')' && depth > 0:
			depth--
		case r == ';' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(raw))
	return parts
}

func (e *Node) writeDeclarations(decls []*css.Declaration) {
	if len(decls) == 0 {
		e.RemoveAttribute("style")
		return
	}
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		s := d.Property + ": " + d.Value
		if d.Important {
			s += " !important"
		}
		parts = append(parts, s+";")
	}
	e.SetAttribute("style", strings.Join(parts, " "))
}

// StyleProperty returns the inline value of name and its priority
// ("important" or ""). The last declaration of a property wins.
func (e *Node) StyleProperty(name string) (value, priority string) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, d := range e.declarations() {
		if strings.ToLower(d.Property) != name {
			continue
		}
		value, priority = d.Value, ""
		if d.Important {
			priority = PriorityImportant
		}
	}
	return value, priority
}

// SetStyleProperty sets an inline declaration. An empty value removes it.
func (e *Node) SetStyleProperty(name, value, priority string) {
	if !e.IsElement() {
		return
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if value == "" {
		e.RemoveStyleProperty(name)
		return
	}
	important := strings.EqualFold(priority, PriorityImportant)
	decls := e.declarations()
	replaced := false
	out := decls[:0]
	for _, d := range decls {
		if strings.ToLower(d.Property) == name {
			if replaced {
				continue
			}
			d.Value, d.Important = value, important
			replaced = true
		}
		out = append(out, d)
	}
	if !replaced {
		out = append(out, &css.Declaration{Property: name, Value: value, Important: important})
	}
	e.writeDeclarations(out)
}

// RemoveStyleProperty drops every inline declaration of name.
func (e *Node) RemoveStyleProperty(name string) {
	if !e.IsElement() {
		return
	}
	name = strings.ToLower(strings.TrimSpace(name))
	decls := e.declarations()
	out := decls[:0]
	for _, d := range decls {
		if strings.ToLower(d.Property) != name {
			out = append(out, d)
		}
	}
	e.writeDeclarations(out)
}

// Hidden reports whether an element contributes no rendered content: it is
// non-rendered by tag, carries the hidden attribute or has inline
// display:none.
func (e *Node) Hidden() bool {
	if !e.IsElement() {
		return false
	}
	switch e.TagName() {
	case "script", "style", "noscript", "template", "head":
		return true
	}
	if _, ok := e.LookupAttribute("hidden"); ok {
		return true
	}
	v, _ := e.StyleProperty("display")
	return strings.EqualFold(strings.TrimSpace(v), "none")
}
