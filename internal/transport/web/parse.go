package web

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/keywords"
)

// NoHeading is used when a page has no <h1>.
const NoHeading = "No heading found"

type htmlNode = html.Node

func parseHTML(r io.Reader) (*html.Node, error) {
	return html.Parse(r)
}

// parseArticle extracts heading, content and keywords.
// Content is the text of every <p> inside the first <article>, else the first <main>,
// else the whole document.
func parseArticle(root *html.Node) domain.ArticleRecord {
	heading := NoHeading
	if h1 := findFirst(root, atom.H1); h1 != nil {
		heading = strings.TrimSpace(textOf(h1))
	}

	container := findFirst(root, atom.Article)
	if container == nil {
		container = findFirst(root, atom.Main)
	}
	if container == nil {
		container = root
	}

	var paragraphs []string
	walk(container, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.P {
			if text := strings.TrimSpace(textOf(n)); text != "" {
				paragraphs = append(paragraphs, text)
			}
			return false
		}
		return true
	})
	content := strings.Join(paragraphs, domain.ParagraphSeparator)

	return domain.ArticleRecord{
		Heading:  heading,
		Content:  content,
		Keywords: keywords.FromArticle(heading, content),
	}
}

// links collects href attributes of <a> elements in document order.
func links(root *html.Node) []string {
	var out []string
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key == "href" && attr.Val != "" {
					out = append(out, attr.Val)
				}
			}
		}
		return true
	})
	return out
}

func findFirst(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits n depth-first; visit returns false to skip the node's children.
func walk(n *html.Node, visit func(*html.Node) bool) {
	if !visit(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
		case html.ElementNode:
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				return false
			}
		}
		return true
	})
	return b.String()
}
