package bento

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hyperifyio/ptsnap/internal/summarize"
)

// Render limits per card.
const (
	MaxBullets = 6
	MaxAnchors = 3
)

var strict = bluemonday.StrictPolicy()

// plain strips any markup the model put into a field. The policy escapes
// what it keeps, so the result is unescaped again and html/template does the
// final escaping exactly once.
func plain(s string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

type progressView struct {
	Label string
	Pct   float64
	Shown int
}

type anchorView struct {
	N   int
	URL string
}

type cardView struct {
	Class      string
	TitleClass string
	Tag        string
	Title      string
	Body       string
	Bullets    []string
	Dark       bool
	Progress   []progressView
	Anchors    []anchorView
}

type pageView struct {
	DocTitle string
	Title    string
	Subtitle string
	CTALabel string
	CTAURL   string
	Cards    []cardView
}

var spanClass = map[string]string{SizeS: "card-span-s", SizeM: "card-span-m", SizeL: "card-span-l"}

func view(l Layout, article summarize.Article) pageView {
	l = l.Tidy(article.URL)
	v := pageView{
		DocTitle: "Bento Digest",
		Title:    plain(l.Header.Title),
		Subtitle: plain(l.Header.Subtitle),
		CTALabel: "Read original",
		CTAURL:   "#",
	}
	if t := plain(article.Title); t != "" {
		v.DocTitle = t + " | Bento Digest"
	}
	if v.Title == "" {
		v.Title = "Bento Digest"
	}
	if cta := l.Header.CTA; cta != nil {
		if label := plain(cta.Label); label != "" {
			v.CTALabel = label
		}
		if u := safeURL(cta.URL); u != "" {
			v.CTAURL = u
		}
	}
	for _, c := range l.Cards {
		cv := cardView{
			Class: "card " + spanClass[c.Size],
			Tag:   plain(c.Tag),
			Title: plain(c.Title),
			Body:  plain(c.Body),
			Dark:  c.Emphasis == EmphasisDark,
		}
		if cv.Dark {
			cv.Class = "card darkcard " + spanClass[c.Size]
		}
		if c.Emphasis == EmphasisAccent {
			cv.TitleClass = "grad-text"
		}
		for _, b := range c.Bullets {
			if len(cv.Bullets) == MaxBullets {
				break
			}
			if b = plain(b); b != "" {
				cv.Bullets = append(cv.Bullets, b)
			}
		}
		if c.HasProgress() {
			cv.Progress = []progressView{
				progress(c.ProgressLabelLeft, "Left", *c.ProgressLeftPct),
				progress(c.ProgressLabelRight, "Right", *c.ProgressRightPct),
			}
		}
		for _, a := range c.SourceAnchors {
			if len(cv.Anchors) == MaxAnchors {
				break
			}
			if u := safeURL(a); u != "" {
				cv.Anchors = append(cv.Anchors, anchorView{N: len(cv.Anchors) + 1, URL: u})
			}
		}
		v.Cards = append(v.Cards, cv)
	}
	return v
}

func progress(label, fallback string, pct float64) progressView {
	label = plain(label)
	if label == "" {
		label = fallback
	}
	pct = ClampPercent(pct)
	return progressView{Label: label, Pct: pct, Shown: int(math.Round(pct))}
}

// safeURL keeps absolute http(s) URLs only.
func safeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}

var page = template.Must(template.New("bento").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>{{.DocTitle}}</title>
<style>
body{font-family:Inter,ui-sans-serif,system-ui;background:#f8fafc;margin:0;color:#0f172a}
.shell{max-width:1100px;margin:0 auto;padding:32px 20px 64px}
header{text-align:center;margin-bottom:28px}
.grad-text{background:linear-gradient(90deg,#c084fc,#7e22ce);-webkit-background-clip:text;-webkit-text-fill-color:transparent}
.grad-bg{background:linear-gradient(90deg,#c084fc,#7e22ce)}
.cta{display:inline-block;margin-top:16px;padding:12px 20px;border-radius:12px;color:#fff;text-decoration:none;font-weight:700}
.grid{display:grid;grid-template-columns:repeat(1,minmax(0,1fr));gap:1rem}
@media (min-width:768px){.grid{grid-template-columns:repeat(2,minmax(0,1fr))}.card-span-m,.card-span-l{grid-column:span 2}}
@media (min-width:1024px){.grid{grid-template-columns:repeat(4,minmax(0,1fr))}.card-span-l{grid-column:span 4}}
.card{background:#fff;border:1px solid #f1f5f9;border-radius:20px;padding:24px;box-shadow:0 6px 18px rgba(15,23,42,.08)}
.darkcard{background:#0f172a;color:#e2e8f0;border-color:#0f172a}
.tag{display:inline-block;padding:4px 12px;border-radius:999px;font-size:.75rem;font-weight:600;background:#f1f5f9;color:#475569;text-transform:uppercase;letter-spacing:.04em}
.card-title{margin:8px 0 4px;font-size:1.25rem}
.card-body{margin:0;color:#475569;font-size:.95rem}
.darkcard .card-body,.darkcard .card-list li{color:#e2e8f0}
.card-list{margin:8px 0 0;padding-left:1.2rem}
.progress-pair{display:grid;gap:8px;margin-top:12px}
.progress-labels{display:flex;justify-content:space-between;font-size:.8rem}
.progress-track{width:100%;height:10px;border-radius:999px;background:#e2e8f0;overflow:hidden}
.progress-fill{height:100%;border-radius:inherit;background:#94a3b8}
.progress-fill.lead{background:linear-gradient(90deg,#c084fc,#7e22ce)}
.card-sources{margin-top:12px;font-size:.8rem;color:#64748b}
</style>
</head>
<body>
<div class="shell">
<header>
<h1 class="grad-text">{{.Title}}</h1>
{{if .Subtitle}}<p>{{.Subtitle}}</p>{{end}}
<a class="cta grad-bg" href="{{.CTAURL}}" target="_blank" rel="noopener">{{.CTALabel}}</a>
</header>
<section class="grid">
{{range .Cards}}<div class="{{.Class}}">
{{if .Tag}}<span class="tag">{{.Tag}}</span>{{end}}
<h3 class="card-title {{.TitleClass}}">{{.Title}}</h3>
{{if .Body}}<p class="card-body">{{.Body}}</p>{{end}}
{{if .Bullets}}<ul class="card-list">{{range .Bullets}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Progress}}<div class="progress-pair">{{range $i, $p := .Progress}}
<div><div class="progress-labels"><span>{{$p.Label}}</span><span>{{$p.Shown}}%</span></div>
<div class="progress-track"><div class="progress-fill{{if eq $i 0}} lead{{end}}" style="width:{{$p.Pct}}%"></div></div></div>{{end}}
</div>{{end}}
{{if .Anchors}}<div class="card-sources">Sources: {{range $i, $a := .Anchors}}{{if $i}} • {{end}}<a href="{{$a.URL}}" target="_blank" rel="noopener">{{$a.N}}</a>{{end}}</div>{{end}}
</div>
{{end}}</section>
</div>
</body>
</html>
`))

// ExportHTML renders l as a standalone page that needs no script to show.
func ExportHTML(l Layout, article summarize.Article) ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, view(l, article)); err != nil {
		return nil, fmt.Errorf("render bento html: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)
	dashRun    = regexp.MustCompile(`-+`)
)

// DefaultFilename is used when a title has no usable characters.
const DefaultFilename = "bento-digest"

// Filename turns an article title into a lower-case file stem of letters,
// digits, '_' and single dashes.
func Filename(title string) string {
	s := unsafeName.ReplaceAllString(title, "-")
	s = dashRun.ReplaceAllString(s, "-")
	s = strings.ToLower(strings.Trim(s, "-"))
	if s == "" {
		return DefaultFilename
	}
	return s
}
