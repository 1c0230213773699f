package summarize

import (
	"fmt"
	"strings"
)

// Type selects what kind of summary is produced.
type Type string

const (
	KeyPoints Type = "key-points"
	TLDR      Type = "tldr"
	Teaser    Type = "teaser"
	Headline  Type = "headline"
)

// Length is the relative size of a summary. What it means depends on the
// Type: bullets for key points, sentences for tldr and teaser, words for a
// headline.
type Length string

const (
	Short  Length = "short"
	Medium Length = "medium"
	Long   Length = "long"
)

// Format is the markup of the returned summary.
type Format string

const (
	Markdown  Format = "markdown"
	PlainText Format = "plain-text"
)

// Options tune one summary request.
type Options struct {
	Type   Type
	Length Length
	Format Format
	// Language is a BCP 47 tag for the output. Empty keeps the input language.
	Language string
	// SharedContext is background the model may use but should not summarize.
	SharedContext string
}

// DefaultOptions are medium markdown key points.
func DefaultOptions() Options {
	return Options{Type: KeyPoints, Length: Medium, Format: Markdown}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Type == "" {
		o.Type = d.Type
	}
	if o.Length == "" {
		o.Length = d.Length
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	return o
}

// Validate rejects values outside the known sets. Empty fields are allowed
// and take defaults.
func (o Options) Validate() error {
	switch o.Type {
	case "", KeyPoints, TLDR, Teaser, Headline:
	default:
		return fmt.Errorf("unknown summary type %q", o.Type)
	}
	switch o.Length {
	case "", Short, Medium, Long:
	default:
		return fmt.Errorf("unknown summary length %q", o.Length)
	}
	switch o.Format {
	case "", Markdown, PlainText:
	default:
		return fmt.Errorf("unknown summary format %q", o.Format)
	}
	return nil
}

// ParseType maps user input, including common aliases, to a Type.
func ParseType(s string) (Type, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "", "key-points", "keypoints", "key points", "bullets", "points":
		return KeyPoints, nil
	case "tldr", "tl;dr", "tl-dr", "summary", "abstract":
		return TLDR, nil
	case "teaser", "hook", "blurb":
		return Teaser, nil
	case "headline", "title":
		return Headline, nil
	}
	return "", fmt.Errorf("unknown summary type %q", s)
}

// ParseLength maps user input to a Length.
func ParseLength(s string) (Length, error) {
	switch v := Length(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return Medium, nil
	case Short, Medium, Long:
		return v, nil
	}
	return "", fmt.Errorf("unknown summary length %q", s)
}

// ParseFormat maps user input to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return Markdown, nil
	case "plain-text", "plain", "text", "txt":
		return PlainText, nil
	}
	return "", fmt.Errorf("unknown summary format %q", s)
}

// maxOutputTokens is the completion cap for a length.
func (l Length) maxOutputTokens() int {
	switch l {
	case Short:
		return 256
	case Long:
		return 1024
	}
	return 512
}
