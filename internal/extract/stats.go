package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Stats counts words and characters of an extracted text.
type Stats struct {
	Words      int `json:"words"`
	Characters int `json:"characters"`
}

// Count computes Stats for text.
func Count(text string) Stats {
	return Stats{
		Words:      len(strings.Fields(text)),
		Characters: utf8.RuneCountInString(text),
	}
}

var printer = message.NewPrinter(language.English)

// String formats the counts for display, e.g. "1,204 words · 6,873 characters".
func (s Stats) String() string {
	return printer.Sprintf("%d words · %d characters", s.Words, s.Characters)
}
