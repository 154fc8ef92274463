package render

import (
	"html"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// DefaultTheme is the chroma style used when Options.Theme is empty.
const DefaultTheme = "monokai"

// highlighting holds the shared read-only highlighting resources.
type highlighting struct {
	style *chroma.Style
	plain chroma.Lexer
}

// defaults is built on first use and never mutated afterwards.
var defaults = sync.OnceValue(func() *highlighting {
	return &highlighting{
		style: styles.Get(DefaultTheme),
		plain: chroma.Coalesce(lexers.Fallback),
	}
})

// ValidTheme reports whether name is a known chroma style.
func ValidTheme(name string) bool {
	_, ok := styles.Registry[name]
	return ok
}

// lexerFor returns the lexer for a fenced block info string, matched by name,
// alias or file extension. Unknown or empty hints get the plain text lexer.
func lexerFor(hint string) chroma.Lexer {
	if hint != "" {
		if l := lexers.Get(hint); l != nil {
			return chroma.Coalesce(l)
		}
	}
	return defaults().plain
}

// highlighter emits one code block line at a time.
//
// The whole block is tokenized up front so that lexer state spanning lines
// (block comments, strings) is honored.
type highlighter struct {
	style *chroma.Style
	lines [][]chroma.Token
	next  int
}

func newHighlighter(style *chroma.Style, lang, code string, nlines int) *highlighter {
	h := &highlighter{style: style}
	it, err := lexerFor(lang).Tokenise(nil, code)
	if err != nil {
		return h
	}
	lines := chroma.SplitTokensIntoLines(it.Tokens())
	if len(lines) == nlines {
		h.lines = lines
	}
	return h
}

// open returns the markup starting a code block.
func (h *highlighter) open() string {
	bg := h.style.Get(chroma.Background)
	var css strings.Builder
	if bg.Background.IsSet() {
		css.WriteString("background-color:" + bg.Background.String() + ";")
	}
	if bg.Colour.IsSet() {
		css.WriteString("color:" + bg.Colour.String() + ";")
	}
	if css.Len() == 0 {
		return `<pre class="chroma"><code>`
	}
	return `<pre class="chroma" style="` + css.String() + `"><code>`
}

// close returns the markup ending a code block.
func (*highlighter) close() string {
	return "</code></pre>\n"
}

// line returns the highlighted form of the next line of the block. raw is
// emitted escaped when tokenization was not usable.
func (h *highlighter) line(raw string) string {
	if h.next >= len(h.lines) {
		h.next++
		return html.EscapeString(raw)
	}
	tokens := h.lines[h.next]
	h.next++
	var b strings.Builder
	for _, t := range tokens {
		text := html.EscapeString(t.Value)
		css := h.css(t.Type)
		if css == "" {
			b.WriteString(text)
			continue
		}
		b.WriteString(`<span style="` + css + `">` + text + `</span>`)
	}
	return b.String()
}

// css returns the inline style of a token type, without the background
// already set on the block.
func (h *highlighter) css(tt chroma.TokenType) string {
	e := h.style.Get(tt)
	base := h.style.Get(chroma.Background)
	var b strings.Builder
	if e.Colour.IsSet() && e.Colour != base.Colour {
		b.WriteString("color:" + e.Colour.String() + ";")
	}
	if e.Background.IsSet() && e.Background != base.Background {
		b.WriteString("background-color:" + e.Background.String() + ";")
	}
	if e.Bold == chroma.Yes {
		b.WriteString("font-weight:bold;")
	}
	if e.Italic == chroma.Yes {
		b.WriteString("font-style:italic;")
	}
	if e.Underline == chroma.Yes {
		b.WriteString("text-decoration:underline;")
	}
	return b.String()
}
