package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Page variants. A rendered page carries layout boxes, so it is stored apart
// from the raw response for the same URL.
const (
	Raw      = "raw"
	Rendered = "rendered"
)

// PageEntry describes one stored page. ETag and LastModified allow
// conditional revalidation of raw responses; rendered pages have neither
// and are reused by age alone.
type PageEntry struct {
	URL          string    `json:"url"`
	Variant      string    `json:"variant"`
	FinalURL     string    `json:"final_url,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
}

// Fresh reports whether e was saved less than maxAge before now. A
// non-positive maxAge is never fresh.
func (e PageEntry) Fresh(maxAge time.Duration, now time.Time) bool {
	return maxAge > 0 && now.Sub(e.SavedAt) < maxAge
}

// PageCache stores pages on disk as <key>.meta.json and <key>.body where
// key is sha256(variant, url).
type PageCache struct {
	Dir         string
	StrictPerms bool
}

func (c *PageCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("cache dir not configured")
	}
	return ensureDir(c.Dir, c.StrictPerms)
}

func pageKey(variant, url string) string {
	if variant == "" {
		variant = Raw
	}
	h := sha256.Sum256([]byte(variant + "\x00" + url))
	return hex.EncodeToString(h[:])
}

func (c *PageCache) metaPath(key string) string { return filepath.Join(c.Dir, key+".meta.json") }
func (c *PageCache) bodyPath(key string) string { return filepath.Join(c.Dir, key+".body") }

// Meta returns the entry stored for url in variant.
func (c *PageCache) Meta(_ context.Context, variant, url string) (*PageEntry, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(c.metaPath(pageKey(variant, url)))
	if err != nil {
		return nil, err
	}
	var e PageEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode page meta: %w", err)
	}
	return &e, nil
}

// Body returns the stored markup and marks the entry recently used.
func (c *PageCache) Body(_ context.Context, variant, url string) ([]byte, error) {
	if err := c.ensureDir(); err != nil {
		return nil, err
	}
	p := c.bodyPath(pageKey(variant, url))
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return b, nil
}

// Store saves body under e.URL and e.Variant, stamping SavedAt. The body is
// written first and the metadata renamed into place, so a reader never sees
// metadata without its body.
func (c *PageCache) Store(_ context.Context, e PageEntry, body []byte) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	if e.Variant == "" {
		e.Variant = Raw
	}
	e.SavedAt = time.Now().UTC()
	key := pageKey(e.Variant, e.URL)
	mode := fileMode(c.StrictPerms)
	if err := os.WriteFile(c.bodyPath(key), body, mode); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	b, err := json.Marshal(&e)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	tmp := c.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, b, mode); err != nil {
		return fmt.Errorf("write meta: %w", err)
	}
	return os.Rename(tmp, c.metaPath(key))
}
