package render

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/maruel/wikimark/internal/page"
)

func TestRenderTOC(t *testing.T) {
	t.Parallel()
	r := New(nil)

	// shape prints a TOC as nested titles.
	var shape func(s *Section) string
	shape = func(s *Section) string {
		out := s.Title
		if len(s.Children) == 0 {
			return out
		}
		parts := make([]string, len(s.Children))
		for i, c := range s.Children {
			parts[i] = shape(c)
		}
		return out + "(" + strings.Join(parts, " ") + ")"
	}

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"Flat", "# a\n# b\n", "page(a b)"},
		{"Nested", "# a\n## b\n## c\n# d\n", "page(a(b c) d)"},
		{"Skipped", "# a\n### b\n## c\n", "page(a(b c))"},
		{"Shallower", "## a\n# b\n", "page(a b)"},
		{"Deep", "# a\n## b\n### c\n## d\n", "page(a(b(c) d))"},
		{"None", "just text\n", "page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := r.Render([]byte(tt.src), "page", "dir/page")
			if err != nil {
				t.Fatalf("Render() failed: %v", err)
			}
			if got := shape(p.TOC); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
			if p.TOC.Level != 0 || p.TOC.Link != "dir/page" {
				t.Errorf("root = %+v", p.TOC)
			}
			checkLevels(t, p.TOC)
		})
	}
}

func checkLevels(t *testing.T, s *Section) {
	t.Helper()
	for _, c := range s.Children {
		if c.Level <= s.Level {
			t.Errorf("child %q level %d under %q level %d", c.Title, c.Level, s.Title, s.Level)
		}
		checkLevels(t, c)
	}
}

func TestRenderHeading(t *testing.T) {
	t.Parallel()
	r := New(nil)
	p, err := r.Render([]byte("# Hello World\n\n## Hello *there*\n"), "t", "t")
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	want := `<h1 id="hello-world"><a class="anchor" href="#hello-world"></a>Hello World</h1>` + "\n" +
		`<h2 id="hello-there"><a class="anchor" href="#hello-there"></a>Hello <em>there</em></h2>` + "\n"
	if p.HTML != want {
		t.Errorf("got\n%s\nwant\n%s", p.HTML, want)
	}
	h := p.TOC.Children[0]
	if h.Title != "Hello World" || h.Link != "hello-world" || h.Level != 1 {
		t.Errorf("got %+v", h)
	}
	if c := h.Children[0]; c.Title != "Hello there" || c.Link != "hello-there" {
		t.Errorf("got %+v", c)
	}
}

func TestRenderHeadingCodeSpan(t *testing.T) {
	t.Parallel()
	p, err := New(nil).Render([]byte("## Use `foo` now\n"), "t", "t")
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	want := `<h2 id="use-foo-now"><a class="anchor" href="#use-foo-now"></a>Use <code>foo</code> now</h2>` + "\n"
	if p.HTML != want {
		t.Errorf("got\n%s\nwant\n%s", p.HTML, want)
	}
	if h := p.TOC.Children[0]; h.Title != "Use foo now" {
		t.Errorf("got %+v", h)
	}
}

func TestRenderHeadingText(t *testing.T) {
	t.Parallel()
	r := New(nil)
	tests := []struct {
		name, src   string
		title, link string
		inner       string
	}{
		{"Entity", "# A &amp; B\n", "A & B", "a-b", "A &amp; B"},
		{"Escape", "# a\\*b\n", "a*b", "a-b", "a*b"},
		{"Setext", "Foo\nbar\n===\n", "Foo bar", "foo-bar", "Foo\nbar"},
		{"CJK", "# 你好\n", "你好", page.Slug("你好"), "你好"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := r.Render([]byte(tt.src), "t", "t")
			if err != nil {
				t.Fatalf("Render() failed: %v", err)
			}
			h := p.TOC.Children[0]
			if h.Title != tt.title || h.Link != tt.link {
				t.Errorf("got %+v, want title %q link %q", h, tt.title, tt.link)
			}
			if h.Link == "" {
				t.Error("empty anchor")
			}
			want := `<h1 id="` + tt.link + `"><a class="anchor" href="#` + tt.link + `"></a>` + tt.inner + "</h1>\n"
			if p.HTML != want {
				t.Errorf("got\n%s\nwant\n%s", p.HTML, want)
			}
		})
	}
}

func TestRenderPassThrough(t *testing.T) {
	t.Parallel()
	r := New(nil)
	p, err := r.Render([]byte("Some *text* & more.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n~~gone~~\n"), "t", "t")
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	for _, want := range []string{"<p>Some <em>text</em> &amp; more.</p>\n", "<table>", "<td>1</td>", "<del>gone</del>"} {
		if !strings.Contains(p.HTML, want) {
			t.Errorf("missing %q in\n%s", want, p.HTML)
		}
	}
}

func TestRenderCode(t *testing.T) {
	t.Parallel()
	r := New(&Options{Theme: "monokai"})

	t.Run("Highlighted", func(t *testing.T) {
		t.Parallel()
		src := "```go\n/* multi\nline */\nfunc main() {}\n```\n"
		p, err := r.Render([]byte(src), "t", "t")
		if err != nil {
			t.Fatalf("Render() failed: %v", err)
		}
		if !strings.HasPrefix(p.HTML, `<pre class="chroma" style="background-color:`) {
			t.Errorf("unexpected opening: %s", p.HTML)
		}
		if !strings.HasSuffix(p.HTML, "</code></pre>\n") {
			t.Errorf("unexpected closing: %s", p.HTML)
		}
		if !strings.Contains(p.HTML, "<span style=") {
			t.Errorf("no highlighting: %s", p.HTML)
		}
		// The second line is still a comment.
		if !strings.Contains(p.HTML, "line */") {
			t.Errorf("missing comment: %s", p.HTML)
		}
		if strings.Contains(p.HTML, "language-go") {
			t.Errorf("goldmark markup leaked: %s", p.HTML)
		}
	})

	t.Run("Escaped", func(t *testing.T) {
		t.Parallel()
		for _, src := range []string{"```\n<b>&</b>\n```\n", "```nosuchlanguage\n<b>&</b>\n```\n", "    <b>&</b>\n"} {
			p, err := r.Render([]byte(src), "t", "t")
			if err != nil {
				t.Fatalf("Render() failed: %v", err)
			}
			if !strings.Contains(p.HTML, "&lt;b&gt;&amp;&lt;/b&gt;") {
				t.Errorf("%q: not escaped: %s", src, p.HTML)
			}
			if strings.Contains(p.HTML, "<b>") {
				t.Errorf("%q: raw markup: %s", src, p.HTML)
			}
		}
	})

	t.Run("NotInTOC", func(t *testing.T) {
		t.Parallel()
		p, err := r.Render([]byte("```\n# not a heading\n```\n"), "t", "t")
		if err != nil {
			t.Fatal(err)
		}
		if len(p.TOC.Children) != 0 {
			t.Errorf("got %+v", p.TOC.Children)
		}
	})
}

func TestTransition(t *testing.T) {
	t.Parallel()
	newMachine := func() *machine {
		var buf bytes.Buffer
		return &machine{
			style: defaults().style,
			out:   bufio.NewWriter(&buf),
			toc:   newTOC("t", "t"),
			phase: normalPhase{},
		}
	}

	tests := []struct {
		name   string
		events []event
	}{
		{"CodeEndInNormal", []event{codeEndEvent{}}},
		{"HeadingEndInNormal", []event{headingEndEvent{}}},
		{"CodeInHeading", []event{headingStartEvent{level: 1}, codeStartEvent{}}},
		{"HeadingInHeading", []event{headingStartEvent{level: 1}, headingStartEvent{level: 2}}},
		{"HeadingInCode", []event{codeStartEvent{}, headingStartEvent{level: 1}}},
		{"CodeInCode", []event{codeStartEvent{}, codeStartEvent{}}},
		{"HeadingEndInCode", []event{codeStartEvent{}, headingEndEvent{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := newMachine()
			var err error
			for _, e := range tt.events {
				if err = m.transition(e); err != nil {
					break
				}
			}
			if !errors.Is(err, errIllegalTransition) {
				t.Errorf("got %v, want errIllegalTransition", err)
			}
		})
	}

	t.Run("Legal", func(t *testing.T) {
		t.Parallel()
		m := newMachine()
		for _, e := range []event{
			textEvent{value: "a<"},
			headingStartEvent{level: 2},
			textEvent{value: "Title"},
			headingEndEvent{},
			codeStartEvent{lines: 1, code: "x\n"},
			textEvent{value: "x\n"},
			codeEndEvent{},
		} {
			if err := m.transition(e); err != nil {
				t.Fatalf("transition(%T) failed: %v", e, err)
			}
		}
		if _, ok := m.phase.(normalPhase); !ok {
			t.Errorf("ended in %T", m.phase)
		}
		if got := m.toc.root.Children[0]; got.Title != "Title" || got.Link != "title" || got.Level != 2 {
			t.Errorf("got %+v", got)
		}
	})
}
