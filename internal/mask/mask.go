// Package mask hides elements for the duration of a computation and puts
// their inline state back afterwards.
package mask

// Target is the slice of element behaviour the mask needs.
type Target interface {
	Connected() bool
	StyleProperty(name string) (value, priority string)
	SetStyleProperty(name, value, priority string)
	RemoveStyleProperty(name string)
	LookupAttribute(key string) (string, bool)
	SetAttribute(key, val string)
	RemoveAttribute(key string)
}

// Snapshot is the inline state of one target before it was hidden. Style
// is the raw attribute text so declarations the style parser drops survive.
type Snapshot struct {
	Display         string
	DisplayPriority string
	Style           string
	HasStyle        bool
	AriaHidden      string
	HasAriaHidden   bool
}

// Capture records the current inline style, display and aria-hidden of t.
func Capture(t Target) Snapshot {
	var s Snapshot
	s.Display, s.DisplayPriority = t.StyleProperty("display")
	s.Style, s.HasStyle = t.LookupAttribute("style")
	s.AriaHidden, s.HasAriaHidden = t.LookupAttribute("aria-hidden")
	return s
}

// Hide forces t out of rendering and out of the accessibility tree.
func Hide(t Target) {
	t.SetStyleProperty("display", "none", "important")
	t.SetAttribute("aria-hidden", "true")
}

// Revert puts back what Capture saw. The style attribute is restored
// verbatim; without one, only the display declaration is undone.
func (s Snapshot) Revert(t Target) {
	if s.HasAriaHidden {
		t.SetAttribute("aria-hidden", s.AriaHidden)
	} else {
		t.RemoveAttribute("aria-hidden")
	}
	switch {
	case s.HasStyle:
		t.SetAttribute("style", s.Style)
	case s.Display != "":
		t.SetStyleProperty("display", s.Display, s.DisplayPriority)
	default:
		t.RemoveStyleProperty("display")
	}
}

type masked struct {
	target Target
	snap   Snapshot
}

// WithHidden hides every connected target, runs compute and restores the
// targets in order. Restoration also runs when compute panics; the panic is
// re-raised afterwards. Targets detached in the meantime are skipped.
func WithHidden[T any](targets []Target, compute func() (T, error)) (T, error) {
	hidden := make([]masked, 0, len(targets))
	defer func() {
		for _, m := range hidden {
			if !m.target.Connected() {
				continue
			}
			m.snap.Revert(m.target)
		}
	}()
	for _, t := range targets {
		if t == nil || !t.Connected() {
			continue
		}
		hidden = append(hidden, masked{target: t, snap: Capture(t)})
		Hide(t)
	}
	return compute()
}
