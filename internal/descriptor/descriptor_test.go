package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperifyio/ptsnap/internal/dom"
)

func TestDescribe(t *testing.T) {
	d, err := dom.ParseString(`<html><body>
<DIV id="promo" class="ad sticky extra" aria-label="Sponsored">x</DIV>
<p class="lead">y</p>
<span aria-label="">z</span>
</body></html>`, "")
	require.NoError(t, err)

	cases := map[string]string{
		"#promo": "div#promo.ad.sticky [Sponsored]",
		"p":      "p.lead",
		"span":   "span",
	}
	for sel, want := range cases {
		n, err := d.QueryOne(sel)
		require.NoError(t, err)
		assert.Equal(t, want, Describe(n), sel)
	}
}

func TestDescribeNonElement(t *testing.T) {
	d, err := dom.ParseString(`<html><body>text</body></html>`, "")
	require.NoError(t, err)
	text := d.Wrap(d.Body().Raw().FirstChild)
	assert.Equal(t, "", Describe(text))
	assert.Equal(t, "", Describe(nil))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "element", OrDefault(""))
	assert.Equal(t, "p", OrDefault("p"))
}
