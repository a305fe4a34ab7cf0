package livesync

import (
	"strings"
	"sync"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

var (
	minifier *minify.M
	once     sync.Once
)

// getMinifier returns a configured HTML minifier (singleton). Inline scripts
// and styles are minified too.
func getMinifier() *minify.M {
	once.Do(func() {
		minifier = minify.New()
		minifier.AddFunc("text/html", html.Minify)
		minifier.AddFunc("text/css", css.Minify)
		minifier.AddFunc("application/javascript", js.Minify)
		minifier.AddFunc("text/javascript", js.Minify)
	})
	return minifier
}

// MinifyFragment shrinks a markup fragment before it is injected into a
// document. Text without tags is returned as is, and so is a fragment the
// minifier would reduce to nothing.
func MinifyFragment(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return fragment
	}

	minified, err := getMinifier().String("text/html", fragment)
	if err != nil || minified == "" {
		// If minification fails, fall back to original content
		return fragment
	}
	return minified
}
