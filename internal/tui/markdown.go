package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

const markdownCacheLimit = 256

// markdownRenderer renders post and turn bodies. One glamour renderer is kept
// per wrap width; output is cached by width and body.
type markdownRenderer struct {
	renderers map[int]*glamour.TermRenderer
	cache     map[markdownKey]string
	style     string
	disabled  bool
}

type markdownKey struct {
	width int
	body  string
}

func newMarkdownRenderer(style string) *markdownRenderer {
	return &markdownRenderer{
		renderers: map[int]*glamour.TermRenderer{},
		cache:     map[markdownKey]string{},
		style:     nullCoalesce(style, "dark"),
	}
}

// plainMarkdown returns a renderer that only wraps text.
func plainMarkdown() *markdownRenderer {
	r := newMarkdownRenderer("")
	r.disabled = true
	return r
}

func (r *markdownRenderer) Render(body string, width int) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	width = maxInt(20, width)
	if r.disabled {
		return wrapText(body, width)
	}
	cacheKey := markdownKey{width: width, body: body}
	if out, ok := r.cache[cacheKey]; ok {
		return out
	}
	renderer, ok := r.renderers[width]
	if !ok {
		created, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return wrapText(body, width)
		}
		renderer = created
		r.renderers[width] = renderer
	}
	out, err := renderer.Render(body)
	if err != nil {
		return wrapText(body, width)
	}
	out = strings.Trim(out, "\n")
	if len(r.cache) >= markdownCacheLimit {
		r.cache = map[markdownKey]string{}
	}
	r.cache[cacheKey] = out
	return out
}
