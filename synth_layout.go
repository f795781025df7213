// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package docflip

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"

	"github.com/nicholasgasior/docflip-go/internal/pdfrender"
)

// LayoutBackend renders a DOCX without an office suite. The document body is
// turned into HTML, normalized to Markdown and laid out block by block, so
// headings, lists, tables, emphasis and links survive.
type LayoutBackend struct{}

// NewLayoutBackend creates a new LayoutBackend.
func NewLayoutBackend() *LayoutBackend {
	return &LayoutBackend{}
}

func (b *LayoutBackend) Convert(ctx context.Context, src, dst string) error {
	doc, err := docxToHTML(src)
	if err != nil {
		return err
	}
	title, body, err := splitHTMLDocument(doc)
	if err != nil {
		return fmt.Errorf("parse DOCX HTML: %w", err)
	}
	md, err := convertHTMLToMarkdown(body)
	if err != nil {
		return fmt.Errorf("convert DOCX HTML to markdown: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r := pdfrender.New(pdfrender.Options{Title: title})
	renderMarkdown(r, []byte(md))
	return stageOutput(ctx, dst, mimePDF, r.WriteFile)
}

// convertHTMLToMarkdown converts HTML to markdown using html-to-markdown.
func convertHTMLToMarkdown(htmlStr string) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithHeadingStyle("atx"),
			),
			table.NewTablePlugin(),
		),
	)
	return conv.ConvertString(htmlStr)
}

// splitHTMLDocument returns the document title and the serialized <body>.
func splitHTMLDocument(htmlStr string) (title, body string, err error) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return "", "", err
	}

	var bodyNode *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "body":
				bodyNode = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if bodyNode == nil {
		return title, htmlStr, nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, bodyNode); err != nil {
		return "", "", err
	}
	return title, buf.String(), nil
}

// renderMarkdown lays out the block structure of a Markdown document.
func renderMarkdown(r *pdfrender.Renderer, src []byte) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))
	walkBlocks(r, doc, src)
}

func walkBlocks(r *pdfrender.Renderer, node ast.Node, src []byte) {
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Heading:
			r.Heading(n.Level, spansText(inlineSpans(n, src)))
		case *ast.Paragraph, *ast.TextBlock:
			if spans := inlineSpans(n, src); len(spans) > 0 {
				r.Paragraph(spans...)
			}
		case *ast.List:
			renderList(r, n, src, 0)
		case *ast.FencedCodeBlock:
			r.Code(blockLines(n, src))
		case *ast.CodeBlock:
			r.Code(blockLines(n, src))
		case *ast.ThematicBreak:
			r.Rule()
		case *ast.Blockquote:
			walkBlocks(r, n, src)
		case *extast.Table:
			r.Table(tableRows(n, src))
		}
	}
}

func renderList(r *pdfrender.Renderer, list *ast.List, src []byte, depth int) {
	num := list.Start
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "•"
		if list.IsOrdered() {
			marker = strconv.Itoa(num) + "."
			num++
		}

		var spans []pdfrender.Span
		var nested []*ast.List
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				nested = append(nested, sub)
				continue
			}
			if len(spans) > 0 {
				spans = append(spans, pdfrender.Span{Text: " "})
			}
			spans = append(spans, inlineSpans(c, src)...)
		}
		r.ListItem(depth, marker, spans...)
		for _, sub := range nested {
			renderList(r, sub, src, depth+1)
		}
	}
}

func tableRows(t *extast.Table, src []byte) [][]string {
	var rows [][]string
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		var cells []string
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, spansText(inlineSpans(cell, src)))
		}
		rows = append(rows, cells)
	}
	return rows
}

func blockLines(n ast.Node, src []byte) []string {
	lines := n.Lines()
	out := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, strings.TrimRight(string(seg.Value(src)), "\r\n"))
	}
	return out
}

// inlineSpans flattens the inline children of n into styled spans.
func inlineSpans(n ast.Node, src []byte) []pdfrender.Span {
	var spans []pdfrender.Span
	var walk func(ast.Node, pdfrender.Span)
	walk = func(node ast.Node, style pdfrender.Span) {
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			switch n := c.(type) {
			case *ast.Text:
				s := style
				s.Text = inlineValue(n.Segment.Value(src), style.Mono)
				switch {
				case n.HardLineBreak():
					s.Text += "\n"
				case n.SoftLineBreak():
					s.Text += " "
				}
				spans = append(spans, s)
			case *ast.String:
				s := style
				s.Text = inlineValue(n.Value, style.Mono)
				spans = append(spans, s)
			case *ast.Emphasis:
				s := style
				if n.Level >= 2 {
					s.Bold = true
				} else {
					s.Italic = true
				}
				walk(n, s)
			case *ast.CodeSpan:
				s := style
				s.Mono = true
				walk(n, s)
			case *ast.Link:
				s := style
				s.Link = string(n.Destination)
				walk(n, s)
			case *ast.AutoLink:
				s := style
				s.Link = string(n.URL(src))
				s.Text = string(n.Label(src))
				spans = append(spans, s)
			case *ast.RawHTML:
				// Only line breaks survive from inline HTML.
				for i := 0; i < n.Segments.Len(); i++ {
					seg := n.Segments.At(i)
					if strings.HasPrefix(strings.ToLower(string(seg.Value(src))), "<br") {
						s := style
						s.Text = "\n"
						spans = append(spans, s)
						break
					}
				}
			default:
				walk(c, style)
			}
		}
	}
	walk(n, pdfrender.Span{})
	return spans
}

// inlineValue resolves backslash escapes and entity references the way a
// Markdown renderer would. Code spans are taken literally.
func inlineValue(v []byte, literal bool) string {
	if literal {
		return string(v)
	}
	v = util.UnescapePunctuations(v)
	v = util.ResolveNumericReferences(v)
	v = util.ResolveEntityNames(v)
	return string(v)
}

func spansText(spans []pdfrender.Span) string {
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return strings.TrimSpace(b.String())
}
