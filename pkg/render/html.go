package render

import (
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/russross/blackfriday/v2"
)

const extensions = blackfriday.NoIntraEmphasis |
	blackfriday.Tables |
	blackfriday.FencedCode |
	blackfriday.Autolink |
	blackfriday.Strikethrough |
	blackfriday.SpaceHeadings |
	blackfriday.BackslashLineBreak

var blankLines = regexp.MustCompile(`\n{3,}`)

// ToHTML converts model Markdown into the subset of HTML Telegram accepts.
func ToHTML(markdown string) string {
	out := blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(extensions),
		blackfriday.WithRenderer(&telegramRenderer{}),
	)
	return strings.TrimSpace(blankLines.ReplaceAllString(string(out), "\n\n"))
}

// telegramRenderer emits only b, i, s, code, pre, a and blockquote tags; everything else becomes text.
type telegramRenderer struct{}

func (r *telegramRenderer) RenderHeader(io.Writer, *blackfriday.Node) {}
func (r *telegramRenderer) RenderFooter(io.Writer, *blackfriday.Node) {}

func (r *telegramRenderer) RenderNode(w io.Writer, node *blackfriday.Node, entering bool) blackfriday.WalkStatus {
	switch node.Type {
	case blackfriday.Text, blackfriday.HTMLSpan:
		escape(w, node.Literal)

	case blackfriday.HTMLBlock:
		escape(w, node.Literal)
		io.WriteString(w, "\n\n")

	case blackfriday.Strong, blackfriday.Heading:
		tag(w, "b", entering)
		if node.Type == blackfriday.Heading && !entering {
			io.WriteString(w, "\n\n")
		}

	case blackfriday.Emph:
		tag(w, "i", entering)

	case blackfriday.Del:
		tag(w, "s", entering)

	case blackfriday.Code:
		io.WriteString(w, "<code>")
		escape(w, node.Literal)
		io.WriteString(w, "</code>")

	case blackfriday.CodeBlock:
		lang := strings.Fields(string(node.Info))
		if len(lang) > 0 {
			io.WriteString(w, `<pre><code class="language-`+html.EscapeString(lang[0])+`">`)
			escape(w, node.Literal)
			io.WriteString(w, "</code></pre>\n\n")
		} else {
			io.WriteString(w, "<pre>")
			escape(w, node.Literal)
			io.WriteString(w, "</pre>\n\n")
		}

	case blackfriday.Link, blackfriday.Image:
		if entering {
			io.WriteString(w, `<a href="`+html.EscapeString(string(node.LinkData.Destination))+`">`)
		} else {
			io.WriteString(w, "</a>")
		}

	case blackfriday.Paragraph:
		if !entering && !insideItem(node) {
			io.WriteString(w, "\n\n")
		}

	case blackfriday.BlockQuote:
		tag(w, "blockquote", entering)
		if !entering {
			io.WriteString(w, "\n\n")
		}

	case blackfriday.List:
		if entering && insideItem(node) {
			io.WriteString(w, "\n")
		}
		if !entering && !insideItem(node) {
			io.WriteString(w, "\n\n")
		}

	case blackfriday.Item:
		if entering {
			io.WriteString(w, strings.Repeat("  ", listDepth(node)-1))
			io.WriteString(w, bullet(node))
		} else if node.Next != nil {
			io.WriteString(w, "\n")
		}

	case blackfriday.Softbreak, blackfriday.Hardbreak:
		io.WriteString(w, "\n")

	case blackfriday.HorizontalRule:
		io.WriteString(w, "———\n\n")

	case blackfriday.TableCell:
		if !entering && node.Next != nil {
			io.WriteString(w, " | ")
		}

	case blackfriday.TableRow:
		if !entering {
			io.WriteString(w, "\n")
		}

	case blackfriday.Table:
		if !entering {
			io.WriteString(w, "\n")
		}
	}

	return blackfriday.GoToNext
}

func tag(w io.Writer, name string, entering bool) {
	if entering {
		io.WriteString(w, "<"+name+">")
	} else {
		io.WriteString(w, "</"+name+">")
	}
}

func escape(w io.Writer, text []byte) {
	io.WriteString(w, html.EscapeString(string(text)))
}

func insideItem(node *blackfriday.Node) bool {
	return node.Parent != nil && node.Parent.Type == blackfriday.Item
}

func listDepth(node *blackfriday.Node) int {
	depth := 0
	for n := node.Parent; n != nil; n = n.Parent {
		if n.Type == blackfriday.List {
			depth++
		}
	}
	return max(depth, 1)
}

func bullet(item *blackfriday.Node) string {
	if item.ListFlags&blackfriday.ListTypeOrdered == 0 {
		return "• "
	}

	n := 1
	for prev := item.Prev; prev != nil; prev = prev.Prev {
		n++
	}
	return strconv.Itoa(n) + ". "
}

// Split cuts text into parts of at most limit runes, preferring to cut before a code block
// or at a line break so tags are not torn apart.
func Split(text string, limit int) []string {
	var parts []string
	text = strings.Trim(text, "\n")
	for text != "" {
		runes := []rune(text)
		if len(runes) <= limit {
			parts = append(parts, text)
			break
		}

		head := string(runes[:limit])
		cut := len(head)
		if i := strings.LastIndex(head, "<pre>"); i > 0 {
			cut = i
		} else if i := strings.LastIndex(head, "\n"); i > 0 {
			cut = i
		}

		parts = append(parts, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	return parts
}

