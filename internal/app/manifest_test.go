package app

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/ptsnap/internal/protocol"
)

func TestBuildManifestEntry(t *testing.T) {
	page := protocol.PageText{Text: "  one two three \n", Title: " T ", URL: "https://x.test/a"}
	e := buildManifestEntry(page, true)
	if e.SHA256 != computeSHA256Hex("one two three") {
		t.Fatalf("digest should cover trimmed text")
	}
	if e.Words != 3 || e.Chars != len("one two three") {
		t.Fatalf("stats: words=%d chars=%d", e.Words, e.Chars)
	}
	if e.Title != "T" || !e.Rendered {
		t.Fatalf("entry: %+v", e)
	}
	if e.Excluded == nil {
		t.Fatalf("excluded should be an empty list, not nil")
	}
}

func TestAppendEmbeddedManifest_ListsExcluded(t *testing.T) {
	meta := manifestMeta{GeneratedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	e := manifestEntry{URL: "https://x.test/", SHA256: "abc", Words: 2, Chars: 7, Excluded: []string{"nav#menu", "aside.ad"}}
	out := appendEmbeddedManifest("# Doc\n", meta, e)
	for _, want := range []string{
		"## Manifest",
		"- URL: https://x.test/",
		"- Text: sha256=abc; words=2; chars=7",
		"- Generated: 2024-05-01T12:00:00Z",
		"1. `nav#menu`",
		"2. `aside.ad`",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q:\n%s", want, out)
		}
	}
}

func TestAppendEmbeddedManifest_NoExcludedSection(t *testing.T) {
	out := appendEmbeddedManifest("# Doc", manifestMeta{}, manifestEntry{})
	if strings.Contains(out, "Excluded elements") {
		t.Fatalf("unexpected excluded section:\n%s", out)
	}
}

func TestMarshalManifestJSON(t *testing.T) {
	b, err := marshalManifestJSON(manifestMeta{Model: "m", Version: "v"}, manifestEntry{URL: "u", Excluded: []string{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got struct {
		Meta struct {
			Model string `json:"model"`
		} `json:"meta"`
		Page struct {
			URL      string   `json:"url"`
			Excluded []string `json:"excluded"`
		} `json:"page"`
	}
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Meta.Model != "m" || got.Page.URL != "u" || got.Page.Excluded == nil {
		t.Fatalf("decoded: %+v", got)
	}
	if p := deriveManifestSidecarPath("out/page.md"); p != "out/page.md.manifest.json" {
		t.Fatalf("sidecar path=%q", p)
	}
}
