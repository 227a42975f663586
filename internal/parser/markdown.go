// Package parser extracts display metadata from the documents and workflow
// files served by the AL-Go repository.
package parser

import (
	"bytes"
	"path"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// frontMatter holds the front matter fields we care about
type frontMatter struct {
	Title string `yaml:"title" toml:"title" json:"title"`
}

var markdown = goldmark.New()

// ExtractTitle returns the display title of a document.
// Tries in order: first level-one heading, front matter title, file name without extension.
func ExtractTitle(content, name string) string {
	var meta frontMatter
	body, err := frontmatter.Parse(strings.NewReader(content), &meta)
	if err != nil {
		// Malformed front matter is treated as plain markdown
		body = []byte(content)
		meta = frontMatter{}
	}

	if heading := firstHeading(body); heading != "" {
		return heading
	}

	if title := strings.TrimSpace(meta.Title); title != "" {
		return title
	}

	return strings.TrimSuffix(name, path.Ext(name))
}

// firstHeading returns the text of the first level-one heading in source
func firstHeading(source []byte) string {
	doc := markdown.Parser().Parse(text.NewReader(source))

	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 {
			return ast.WalkContinue, nil
		}
		if t := strings.TrimSpace(extractTextFromNode(heading, source)); t != "" {
			title = t
			return ast.WalkStop, nil
		}
		return ast.WalkSkipChildren, nil
	})

	return title
}

// extractTextFromNode concatenates the inline text below node
func extractTextFromNode(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch n := child.(type) {
		case *ast.Text:
			buf.Write(n.Segment.Value(source))
			if n.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(n.Value)
		default:
			buf.WriteString(extractTextFromNode(n, source))
		}
	}
	return buf.String()
}
