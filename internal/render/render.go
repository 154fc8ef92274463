// Package render converts a page's Markdown body to HTML.
//
// Rendering is a single depth-first walk of the goldmark AST that drives a
// small state machine: headings are captured to build the table of contents
// and to receive an anchor id, and code blocks are syntax highlighted line by
// line. Every other node is emitted by goldmark's own HTML renderers.
package render

import (
	"bufio"
	"bytes"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

// Options configures a Renderer.
type Options struct {
	// Theme is the chroma style name used for code blocks. Defaults to
	// DefaultTheme.
	Theme string
}

// Page is a rendered page.
type Page struct {
	TOC  *Section `json:"toc"`
	HTML string   `json:"content"`
}

// Renderer renders Markdown documents. It is safe for concurrent use.
type Renderer struct {
	md    goldmark.Markdown
	funcs map[ast.NodeKind]renderer.NodeRendererFunc
	style *chroma.Style
}

// registry collects goldmark node renderers.
type registry map[ast.NodeKind]renderer.NodeRendererFunc

func (r registry) Register(k ast.NodeKind, f renderer.NodeRendererFunc) {
	r[k] = f
}

// New returns a Renderer using GitHub flavored Markdown.
func New(opts *Options) *Renderer {
	style := defaults().style
	if opts != nil && opts.Theme != "" {
		style = styles.Get(opts.Theme)
	}
	reg := registry{}
	for _, nr := range []renderer.NodeRenderer{
		html.NewRenderer(),
		extension.NewTableHTMLRenderer(),
		extension.NewStrikethroughHTMLRenderer(),
		extension.NewTaskCheckBoxHTMLRenderer(),
	} {
		nr.RegisterFuncs(reg)
	}
	return &Renderer{
		md:    goldmark.New(goldmark.WithExtensions(extension.GFM)),
		funcs: reg,
		style: style,
	}
}

// Render converts source to HTML. title and link describe the page and
// become the root of the table of contents.
func (r *Renderer) Render(source []byte, title, link string) (*Page, error) {
	doc := r.md.Parser().Parse(text.NewReader(source))
	var buf bytes.Buffer
	m := &machine{
		source: source,
		funcs:  r.funcs,
		style:  r.style,
		out:    bufio.NewWriter(&buf),
		toc:    newTOC(title, link),
		phase:  normalPhase{},
	}
	if err := ast.Walk(doc, m.visit); err != nil {
		return nil, err
	}
	if _, ok := m.phase.(normalPhase); !ok {
		return nil, fmt.Errorf("%w: document ended in %T", errIllegalTransition, m.phase)
	}
	if err := m.out.Flush(); err != nil {
		return nil, err
	}
	return &Page{TOC: m.toc.root, HTML: buf.String()}, nil
}

// visit maps AST nodes to machine events.
func (m *machine) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n := n.(type) {
	case *ast.Heading:
		if entering {
			return ast.WalkContinue, m.transition(headingStartEvent{level: n.Level})
		}
		return ast.WalkContinue, m.transition(headingEndEvent{})
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		if !entering {
			return ast.WalkContinue, m.transition(codeEndEvent{})
		}
		var lang string
		if f, ok := n.(*ast.FencedCodeBlock); ok {
			lang = string(f.Language(m.source))
		}
		lines := n.Lines()
		var code strings.Builder
		for i := range lines.Len() {
			seg := lines.At(i)
			code.Write(seg.Value(m.source))
		}
		if err := m.transition(codeStartEvent{lang: lang, code: code.String(), lines: lines.Len()}); err != nil {
			return ast.WalkStop, err
		}
		for i := range lines.Len() {
			seg := lines.At(i)
			if err := m.transition(textEvent{value: string(seg.Value(m.source))}); err != nil {
				return ast.WalkStop, err
			}
		}
		return ast.WalkSkipChildren, nil
	case *ast.Text:
		if !entering {
			return ast.WalkContinue, nil
		}
		value := n.Segment.Value(m.source)
		if !n.IsRaw() {
			value = decode(value)
		}
		s := string(value)
		if n.SoftLineBreak() || n.HardLineBreak() {
			s += " "
		}
		return ast.WalkContinue, m.transition(textEvent{node: n, value: s})
	case *ast.String:
		if !entering {
			return ast.WalkContinue, nil
		}
		return ast.WalkContinue, m.transition(textEvent{node: n, value: string(n.Value)})
	case *ast.CodeSpan:
		// goldmark writes the children itself and skips them.
		if h, ok := m.phase.(*headingPhase); ok && entering {
			for c := n.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					h.title.Write(t.Segment.Value(m.source))
				}
			}
		}
		return m.render(m.writer(), n, entering)
	default:
		return m.render(m.writer(), n, entering)
	}
}

// decode resolves backslash escapes and character references the way
// goldmark writes text.
func decode(raw []byte) []byte {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	html.DefaultWriter.Write(w, raw)
	_ = w.Flush()
	return []byte(stdhtml.UnescapeString(buf.String()))
}
