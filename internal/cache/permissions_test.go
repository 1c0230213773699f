package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func assertMode(t *testing.T, path string, want os.FileMode) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	if got := info.Mode() & 0o777; got != want {
		t.Fatalf("%s mode = %o, want %o", filepath.Base(path), got, want)
	}
}

// Strict mode keeps summaries private to the user: 0700 dirs, 0600 files.
func TestLLMCache_StrictPerms(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "llm")
	c := &LLMCache{Dir: dir, StrictPerms: true}
	key := KeyFrom("model", "summary", "key-points")
	if err := c.SaveJSON(context.Background(), key, map[string]string{"summary": "- a"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	assertMode(t, dir, 0o700)
	assertMode(t, filepath.Join(dir, key+".json"), 0o600)
}

func TestPageCache_StrictPerms(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "pages")
	c := &PageCache{Dir: dir, StrictPerms: true}
	u := "https://example.com/x"
	if err := c.Store(context.Background(), PageEntry{URL: u, Variant: Rendered}, []byte("<html></html>")); err != nil {
		t.Fatalf("store: %v", err)
	}
	assertMode(t, dir, 0o700)
	key := pageKey(Rendered, u)
	assertMode(t, c.bodyPath(key), 0o600)
	assertMode(t, c.metaPath(key), 0o600)
}
