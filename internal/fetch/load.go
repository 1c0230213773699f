package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/ptsnap/internal/cache"
)

// Page is raw page markup plus the URL it should be attributed to.
type Page struct {
	HTML []byte
	URL  string
	// Rendered is set when the markup came from a headless browser and
	// carries layout boxes.
	Rendered bool
}

// LoadFile reads a saved page from disk. Its URL is the file:// form of the
// absolute path.
func LoadFile(path string) (Page, error) {
	if strings.TrimSpace(path) == "" {
		return Page{}, errors.New("empty path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Page{}, fmt.Errorf("read page: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return Page{HTML: b, URL: u.String()}, nil
}

// PageRenderer produces a page after its scripts ran. *Renderer is the
// headless browser implementation.
type PageRenderer interface {
	Render(ctx context.Context, pageURL string) (Page, error)
}

// Loader picks a source for a page: a file path, a plain HTTP fetch or a
// headless render.
type Loader struct {
	Client   *Client
	Renderer PageRenderer
	// Render selects the headless browser for URLs.
	Render bool
	// Cache keeps rendered pages. They are reused while younger than
	// MaxAge; a zero MaxAge stores them without ever reusing one.
	Cache  *cache.PageCache
	MaxAge time.Duration
}

// Load resolves src. Anything with an http or https scheme is fetched;
// everything else is read from disk.
func (l *Loader) Load(ctx context.Context, src string) (Page, error) {
	u, err := url.Parse(src)
	if err != nil || !isHTTPScheme(u) {
		return LoadFile(src)
	}
	if l.Render {
		if l.Renderer == nil {
			return Page{}, errors.New("render requested but no renderer configured")
		}
		return l.render(ctx, src)
	}
	c := l.Client
	if c == nil {
		c = &Client{MaxAttempts: 2}
	}
	body, _, err := c.Get(ctx, src)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", src, err)
	}
	return Page{HTML: body, URL: src}, nil
}

func (l *Loader) render(ctx context.Context, src string) (Page, error) {
	if l.Cache != nil {
		if e, err := l.Cache.Meta(ctx, cache.Rendered, src); err == nil && e.Fresh(l.MaxAge, time.Now()) {
			if body, err := l.Cache.Body(ctx, cache.Rendered, src); err == nil {
				log.Debug().Str("url", src).Time("saved", e.SavedAt).Msg("rendered page served from cache")
				final := e.FinalURL
				if final == "" {
					final = src
				}
				return Page{HTML: body, URL: final, Rendered: true}, nil
			}
		}
	}
	p, err := l.Renderer.Render(ctx, src)
	if err != nil {
		return Page{}, err
	}
	if l.Cache != nil {
		e := cache.PageEntry{URL: src, Variant: cache.Rendered, FinalURL: p.URL, ContentType: "text/html"}
		if err := l.Cache.Store(ctx, e, p.HTML); err != nil {
			log.Warn().Err(err).Str("url", src).Msg("rendered page cache save failed")
		}
	}
	return p, nil
}
