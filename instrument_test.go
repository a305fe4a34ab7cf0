package livesync

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livefir/livesync/internal/editor"
)

const page = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Demo</title>
</head>
<body>
  <ul class='items'>
    <li>one</li>
    <li data-x=a>two<br></li>
  </ul>
  <img src="a.png" alt="">
  <!-- note -->
  <p>x &amp; y</p>
</body>
</html>
`

func TestGenerateInstrumentedMarkup_RoundTrip(t *testing.T) {
	e := newTestEngine()
	buf := editor.NewBuffer("/site/page.html", page)

	out, err := e.GenerateInstrumentedMarkup(buf, "")
	require.NoError(t, err)
	assert.Equal(t, page, stripIDs(out))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)

	tagged := doc.Find("[data-tracking-id]")
	assert.Equal(t, 11, tagged.Length())

	seen := make(map[string]bool)
	tagged.Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-tracking-id")
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	})

	id, ok := doc.Find("li[data-x]").Attr("data-tracking-id")
	require.True(t, ok)
	assert.Equal(t, "8", id)

	assert.Equal(t, int64(1), e.Metrics().GetMetrics().DocumentsInstrumented)
}

func TestGenerateInstrumentedMarkup_Injection(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		inject string
		want   string
	}{
		{
			name:   "after head",
			text:   "<html><head><title>t</title></head><body></body></html>",
			inject: `<script src="/live.js"></script>`,
			want: `<html data-tracking-id="1"><head data-tracking-id="2"><script src="/live.js"></script>` +
				`<title data-tracking-id="3">t</title></head><body data-tracking-id="4"></body></html>`,
		},
		{
			name:   "head with attributes",
			text:   `<html><head lang="en"></head></html>`,
			inject: "<style></style>",
			want:   `<html data-tracking-id="1"><head data-tracking-id="2" lang="en"><style></style></head></html>`,
		},
		{
			name:   "no head",
			text:   "<div>x</div>",
			inject: "<i>z</i>",
			want:   `<div data-tracking-id="1">x</div><i>z</i>`,
		},
		{
			name: "nothing to inject",
			text: "<div>x</div>",
			want: `<div data-tracking-id="1">x</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(WithInjectionMinify(false))
			buf := editor.NewBuffer("/site/inject.html", tt.text)

			out, err := e.GenerateInstrumentedMarkup(buf, tt.inject)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestGenerateInstrumentedMarkup_TextInjectionKeptVerbatim(t *testing.T) {
	const text = "<html><head></head><body></body></html>"

	for _, inject := range []string{"hello   \n  world", "   "} {
		e := newTestEngine()
		buf := editor.NewBuffer("/site/text-inject.html", text)

		out, err := e.GenerateInstrumentedMarkup(buf, inject)
		require.NoError(t, err)
		assert.Contains(t, out, `<head data-tracking-id="2">`+inject+`</head>`)
	}
}

func TestGenerateInstrumentedMarkup_MinifiedInjection(t *testing.T) {
	e := newTestEngine()
	buf := editor.NewBuffer("/site/page.html", page)
	inject := "<script>\n  console.log( \"live\" );\n</script>"

	out, err := e.GenerateInstrumentedMarkup(buf, inject)
	require.NoError(t, err)

	minified := MinifyFragment(inject)
	assert.LessOrEqual(t, len(minified), len(inject))
	assert.Equal(t, page, stripIDs(strings.Replace(out, minified, "", 1)))

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	script := doc.Find("head").Children().First()
	assert.True(t, script.Is("script"))
	assert.Contains(t, script.Text(), "console.log")
}

func TestGenerateInstrumentedMarkup_AfterIncrementalUpdate(t *testing.T) {
	e := newTestEngine()
	buf := openDocument(t, e, "<div><p>hi</p><p>yo</p></div>")

	change, err := buf.Replace(8, 10, "hello")
	require.NoError(t, err)
	result := e.ComputeUnappliedEdits(buf, []Change{change})
	require.Empty(t, result.Errors)
	require.True(t, result.Incremental)

	// the second <p> still carries its pre-edit offsets; its marker does not
	out, err := e.GenerateInstrumentedMarkup(buf, "")
	require.NoError(t, err)
	assert.Equal(t, `<div data-tracking-id="1"><p data-tracking-id="2">hello</p><p data-tracking-id="3">yo</p></div>`, out)
	assert.Equal(t, int64(0), e.Metrics().GetMetrics().MissingMarkers)
}

func TestGenerateInstrumentedMarkup_MissingMarker(t *testing.T) {
	e := newTestEngine()
	buf := openDocument(t, e, "<div><p>hi</p><p>yo</p></div>")

	change, err := buf.Replace(8, 10, "ab")
	require.NoError(t, err)
	result := e.ComputeUnappliedEdits(buf, []Change{change})
	require.True(t, result.Incremental)

	for _, m := range buf.Markers().All() {
		if m.TagID() == 3 {
			buf.Markers().Clear(m)
		}
	}

	out, err := e.GenerateInstrumentedMarkup(buf, "")
	require.NoError(t, err)
	assert.Equal(t, `<div data-tracking-id="1"><p data-tracking-id="2">ab</p><p data-tracking-id="3">yo</p></div>`, out)
	assert.Equal(t, int64(1), e.Metrics().GetMetrics().MissingMarkers)
}

func TestGenerateInstrumentedMarkup_InvalidDocument(t *testing.T) {
	e := newTestEngine()
	buf := editor.NewBuffer("/site/broken.html", "<div><span></div>")

	_, err := e.GenerateInstrumentedMarkup(buf, "")
	assert.True(t, errors.Is(err, ErrInvalidDocument))
}
