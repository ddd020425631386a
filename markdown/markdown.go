// Package markdown renders post content to HTML for previews and pages.
//
// Rendering is delegated to goldmark with GitHub-flavoured extensions. Raw
// HTML in the source is never emitted and links with unsafe schemes
// (javascript:, vbscript:, data: other than images) are dropped by
// goldmark's default renderer, so the output is safe to embed.
package markdown

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// Placeholder is shown by Preview while the content field is empty.
const Placeholder = "_Start typing markdown to preview here…_"

// engine is safe for concurrent use; goldmark instances hold no per-call state.
var engine = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.TaskList),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// Render converts Markdown source to sanitized HTML.
func Render(md string) (string, error) {
	var buf bytes.Buffer
	if err := RenderTo(&buf, md); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo writes the HTML for md to w.
func RenderTo(w io.Writer, md string) error {
	return engine.Convert([]byte(md), w)
}

// Preview renders the in-progress content of a draft, substituting the
// placeholder while it is empty.
func Preview(md string) (string, error) {
	if md == "" {
		md = Placeholder
	}
	return Render(md)
}

// Markdown returns a templ.Component that renders md as HTML.
func Markdown(md string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return RenderTo(w, md)
	})
}

// PreviewComponent renders md inside the preview container markup,
// substituting the placeholder while it is empty.
func PreviewComponent(md string) templ.Component {
	if md == "" {
		md = Placeholder
	}
	body := Markdown(md)
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="prose markdown-preview">`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}
