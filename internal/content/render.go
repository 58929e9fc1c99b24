package content

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// RenderNewsHTML converts the content of n from Markdown to HTML. Raw HTML in
// the content is omitted.
func RenderNewsHTML(n *NewsItem) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(n.Content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
