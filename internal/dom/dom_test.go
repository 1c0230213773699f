package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html><html><head><title> Hello </title></head>
<body><main id="m" class="content wide"><p id="p1">one</p><aside id="ad" class="ad">buy</aside></main></body></html>`

func mustParse(t *testing.T, markup string) *Document {
	t.Helper()
	d, err := ParseString(markup, "https://example.com/a")
	require.NoError(t, err)
	return d
}

func TestWrapIsStable(t *testing.T) {
	d := mustParse(t, page)
	a := d.GetElementByID("p1")
	require.NotNil(t, a)
	b, err := d.QueryOne("#p1")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestDocumentAccessors(t *testing.T) {
	d := mustParse(t, page)
	assert.Equal(t, "Hello", d.Title())
	assert.Equal(t, "https://example.com/a", d.URL())
	require.NotNil(t, d.Body())
	assert.Equal(t, "body", d.Body().TagName())
	assert.True(t, d.DocumentElement().IsDocumentElement())
	assert.False(t, d.Body().IsDocumentElement())
}

func TestQueryRejectsBadSelector(t *testing.T) {
	d := mustParse(t, page)
	_, err := d.Query("[[")
	assert.Error(t, err)
}

func TestClassListEdits(t *testing.T) {
	d := mustParse(t, page)
	m := d.GetElementByID("m")
	assert.Equal(t, []string{"content", "wide"}, m.ClassList())
	m.AddClass("pts-excluded")
	m.AddClass("pts-excluded")
	assert.Equal(t, "content wide pts-excluded", m.Attribute("class"))
	m.RemoveClass("pts-excluded")
	assert.False(t, m.HasClass("pts-excluded"))

	p := d.GetElementByID("p1")
	p.AddClass("x")
	p.RemoveClass("x")
	_, ok := p.LookupAttribute("class")
	assert.False(t, ok, "empty class attribute is dropped")
}

func TestInlineStyleRoundTrip(t *testing.T) {
	d := mustParse(t, `<html><body><div id="x" style="color: red; display:block !important">x</div></body></html>`)
	x := d.GetElementByID("x")

	v, prio := x.StyleProperty("display")
	assert.Equal(t, "block", v)
	assert.Equal(t, PriorityImportant, prio)

	x.SetStyleProperty("display", "none", "important")
	v, prio = x.StyleProperty("display")
	assert.Equal(t, "none", v)
	assert.Equal(t, "important", prio)
	assert.True(t, x.Hidden())

	x.RemoveStyleProperty("display")
	v, _ = x.StyleProperty("display")
	assert.Empty(t, v)
	c, _ := x.StyleProperty("color")
	assert.Equal(t, "red", c)

	x.RemoveStyleProperty("color")
	_, ok := x.LookupAttribute("style")
	assert.False(t, ok)
}

func TestStyleWithoutTrailingSemicolon(t *testing.T) {
	d := mustParse(t, `<html><body><div id="x" style="display: none">x</div></body></html>`)
	v, _ := d.GetElementByID("x").StyleProperty("display")
	assert.Equal(t, "none", v)
}

func TestConnectedAndRemove(t *testing.T) {
	d := mustParse(t, page)
	ad := d.GetElementByID("ad")
	assert.True(t, ad.Connected())
	ad.Remove()
	assert.False(t, ad.Connected())
	assert.Nil(t, d.GetElementByID("ad"))

	el := d.CreateElement("DIV")
	assert.Equal(t, "div", el.TagName())
	assert.False(t, el.Connected())
	d.Body().AppendChild(el)
	assert.True(t, el.Connected())
}

func TestPathEndsAtRoot(t *testing.T) {
	d := mustParse(t, page)
	path := d.GetElementByID("p1").Path()
	var tags []string
	for _, n := range path {
		tags = append(tags, n.TagName())
	}
	assert.Equal(t, "p main body html", strings.Join(tags, " "))
}

func TestHitTestDeepestWins(t *testing.T) {
	d := mustParse(t, page)
	main := d.GetElementByID("m")
	ad := d.GetElementByID("ad")
	d.SetBox(d.Body(), Rect{0, 0, 800, 600})
	d.SetBox(main, Rect{0, 0, 800, 400})
	d.SetBox(ad, Rect{600, 0, 200, 200})

	path := d.HitTest(650, 50)
	require.NotEmpty(t, path)
	assert.Same(t, ad, path[0])
	assert.Same(t, main, path[1])

	path = d.HitTest(10, 500)
	assert.Same(t, d.Body(), path[0])
}

func TestHitTestSkipsHidden(t *testing.T) {
	d := mustParse(t, page)
	ad := d.GetElementByID("ad")
	d.SetBox(ad, Rect{0, 0, 100, 100})
	ad.SetStyleProperty("display", "none", "")
	path := d.HitTest(5, 5)
	assert.Same(t, d.Body(), path[0])
}

func TestLoadOrStore(t *testing.T) {
	d := mustParse(t, page)
	calls := 0
	mk := func() any { calls++; return calls }
	v, loaded := d.LoadOrStore("k", mk)
	assert.False(t, loaded)
	v2, loaded := d.LoadOrStore("k", mk)
	assert.True(t, loaded)
	assert.Equal(t, v, v2)
	assert.Equal(t, 1, calls)
}

func TestImportBoxes(t *testing.T) {
	d := mustParse(t, `<html><body><div id="a" data-pts-box="10,20,300,40">a</div><div id="b" data-pts-box="nope">b</div></body></html>`)
	assert.Equal(t, 1, d.ImportBoxes())

	a := d.GetElementByID("a")
	r, ok := d.Box(a)
	require.True(t, ok)
	assert.Equal(t, Rect{X: 10, Y: 20, Width: 300, Height: 40}, r)
	_, has := a.LookupAttribute(BoxAttribute)
	assert.False(t, has)

	_, ok = d.Box(d.GetElementByID("b"))
	assert.False(t, ok)
	assert.Same(t, a, d.HitTest(15, 25)[0])
}

func TestStyleToleratesStraySemicolons(t *testing.T) {
	cases := map[string]string{
		"doubled":  `color: red;; font-weight: bold; display: none`,
		"leading":  `;color: red; display: none`,
		"junk":     `color: red; ???; display: none;`,
		"data url": `background: url("data:image/png;base64,AAAA"); display: none`,
	}
	for name, style := range cases {
		t.Run(name, func(t *testing.T) {
			d := mustParse(t, `<html><body><div id="x">x</div></body></html>`)
			x := d.GetElementByID("x")
			x.SetAttribute("style", style)
			v, _ := x.StyleProperty("display")
			assert.Equal(t, "none", v)
			assert.True(t, x.Hidden())

			x.RemoveStyleProperty("display")
			got, ok := x.LookupAttribute("style")
			require.True(t, ok, "other declarations must survive")
			assert.NotContains(t, got, "display")
		})
	}
}

func TestSplitDeclarations(t *testing.T) {
	assert.Equal(t, []string{"a: 1", "b: 2"}, splitDeclarations(" ;a: 1;; b: 2 ;"))
	assert.Equal(t, []string{`content: "x;y"`, "background: url(a;b)"}, splitDeclarations(`content: "x;y"; background: url(a;b)`))
	assert.Empty(t, splitDeclarations(" ; ;"))
}
