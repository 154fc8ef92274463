package render

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/maruel/wikimark/internal/page"
)

var errIllegalTransition = errors.New("illegal render transition")

// phase is the state of the machine. Exactly one of normalPhase, *codePhase
// or *headingPhase.
type phase interface {
	isPhase()
}

type normalPhase struct{}

// codePhase is inside a code block; text is highlighted.
type codePhase struct {
	hl *highlighter
}

// headingPhase is inside a heading; text is collected as the title and the
// inner markup is buffered until the id is known.
type headingPhase struct {
	level int
	title strings.Builder
	buf   bytes.Buffer
	w     *bufio.Writer
}

func (normalPhase) isPhase()   {}
func (*codePhase) isPhase()    {}
func (*headingPhase) isPhase() {}

// event is one step of the document walk.
type event interface {
	isEvent()
}

// textEvent is a run of text. node is the originating AST node, nil for a
// code block line.
type textEvent struct {
	node  ast.Node
	value string
}

type codeStartEvent struct {
	lang  string
	code  string
	lines int
}

type codeEndEvent struct{}

type headingStartEvent struct {
	level int
}

type headingEndEvent struct{}

func (textEvent) isEvent()         {}
func (codeStartEvent) isEvent()    {}
func (codeEndEvent) isEvent()      {}
func (headingStartEvent) isEvent() {}
func (headingEndEvent) isEvent()   {}

// machine renders one document.
type machine struct {
	source []byte
	funcs  map[ast.NodeKind]renderer.NodeRendererFunc
	style  *chroma.Style
	out    *bufio.Writer
	toc    *tocBuilder
	phase  phase
}

// transition applies e to the current phase.
func (m *machine) transition(e event) error {
	switch p := m.phase.(type) {
	case normalPhase:
		switch e := e.(type) {
		case textEvent:
			return m.writeText(m.out, e)
		case codeStartEvent:
			hl := newHighlighter(m.style, e.lang, e.code, e.lines)
			_, _ = m.out.WriteString(hl.open())
			m.phase = &codePhase{hl: hl}
			return nil
		case headingStartEvent:
			m.toc.open(e.level)
			h := &headingPhase{level: e.level}
			h.w = bufio.NewWriter(&h.buf)
			m.phase = h
			return nil
		}
	case *codePhase:
		switch e := e.(type) {
		case textEvent:
			_, _ = m.out.WriteString(p.hl.line(e.value))
			return nil
		case codeEndEvent:
			_, _ = m.out.WriteString(p.hl.close())
			m.phase = normalPhase{}
			return nil
		}
	case *headingPhase:
		switch e := e.(type) {
		case textEvent:
			p.title.WriteString(e.value)
			return m.writeText(p.w, e)
		case headingEndEvent:
			if err := p.w.Flush(); err != nil {
				return err
			}
			s := m.toc.current()
			s.Title = p.title.String()
			s.Link = page.Slug(s.Title)
			lvl := strconv.Itoa(p.level)
			_, _ = m.out.WriteString(`<h` + lvl + ` id="` + s.Link + `"><a class="anchor" href="#` + s.Link + `"></a>`)
			_, _ = m.out.Write(p.buf.Bytes())
			_, _ = m.out.WriteString(`</h` + lvl + ">\n")
			m.phase = normalPhase{}
			return nil
		}
	}
	return fmt.Errorf("%w: %T in %T", errIllegalTransition, e, m.phase)
}

// writer is where non-core nodes render in the current phase.
func (m *machine) writer() util.BufWriter {
	if h, ok := m.phase.(*headingPhase); ok {
		return h.w
	}
	return m.out
}

func (m *machine) writeText(w util.BufWriter, e textEvent) error {
	if e.node == nil {
		_, _ = w.WriteString(html.EscapeString(e.value))
		return nil
	}
	_, err := m.render(w, e.node, true)
	return err
}

// render delegates a node to goldmark's HTML renderer for its kind.
func (m *machine) render(w util.BufWriter, n ast.Node, entering bool) (ast.WalkStatus, error) {
	f := m.funcs[n.Kind()]
	if f == nil {
		return ast.WalkContinue, nil
	}
	return f(w, m.source, n, entering)
}
