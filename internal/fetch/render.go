package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// recordBoxes stamps every rendered element with its viewport box so the
// document model can hit-test without a live browser.
const recordBoxes = `() => {
	for (const el of document.querySelectorAll('body, body *')) {
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) continue;
		el.setAttribute('data-pts-box', [r.x, r.y, r.width, r.height].map(Math.round).join(','));
	}
}`

// Renderer loads pages in headless Chrome and returns the DOM after scripts
// ran.
type Renderer struct {
	// ControlURL connects to a running browser. Empty launches a local one.
	ControlURL string
	// Bin overrides the browser binary used by the launcher.
	Bin string
	// Timeout bounds one render. Zero means 30s.
	Timeout time.Duration
	// Settle is how long the DOM must stay unchanged before capture.
	Settle time.Duration
}

// Render navigates to pageURL, waits for the load event and a quiet DOM,
// records layout boxes and returns the serialized document.
func (r *Renderer) Render(ctx context.Context, pageURL string) (Page, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	controlURL := r.ControlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(true)
		if r.Bin != "" {
			l = l.Bin(r.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return Page{}, fmt.Errorf("launch browser: %w", err)
		}
		defer l.Cleanup()
		defer l.Kill()
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return Page{}, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.Debug().Err(err).Msg("browser close")
		}
	}()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return Page{}, fmt.Errorf("open page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return Page{}, fmt.Errorf("wait load: %w", err)
	}
	settle := r.Settle
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	if err := page.WaitDOMStable(settle, 0); err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("dom did not settle")
	}
	if _, err := page.Eval(recordBoxes); err != nil {
		log.Warn().Err(err).Str("url", pageURL).Msg("layout boxes not recorded")
	}
	markup, err := page.HTML()
	if err != nil {
		return Page{}, fmt.Errorf("serialize page: %w", err)
	}
	final := pageURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		final = info.URL
	}
	log.Debug().Str("url", final).Int("bytes", len(markup)).Msg("page rendered")
	return Page{HTML: []byte(markup), URL: final, Rendered: true}, nil
}
