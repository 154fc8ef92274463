package wiki

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maruel/wikimark/internal/page"
	"github.com/maruel/wikimark/internal/storage/git"
)

func newTestWiki(t *testing.T) (*Wiki, *git.Repo) {
	t.Helper()
	now := time.Date(2024, 3, 5, 10, 4, 5, 0, time.UTC)
	repo, err := git.Open(t.Context(), t.TempDir(), &git.Options{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return New(repo, nil), repo
}

func save(t *testing.T, w *Wiki, dir, title, content string, private bool) string {
	t.Helper()
	link, _, err := w.Save(t.Context(), &SaveRequest{
		Author: "alice",
		Dir:    dir,
		Page:   page.New(page.Metadata{Title: title, Private: private}, content),
	})
	if err != nil {
		t.Fatalf("Save(%q) failed: %v", title, err)
	}
	return link
}

func TestSave(t *testing.T) {
	t.Parallel()

	t.Run("HelloWorld", func(t *testing.T) {
		t.Parallel()
		w, repo := newTestWiki(t)
		ctx := t.Context()
		save(t, w, "", "First", "1", false)
		prev, err := repo.Head(ctx, git.DefaultBranch)
		if err != nil {
			t.Fatal(err)
		}

		link, id, err := w.Save(ctx, &SaveRequest{
			Author: "alice",
			Page:   page.New(page.Metadata{Title: "Hello World"}, "# Hi\ntext"),
		})
		if err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if link != "hello-world" {
			t.Errorf("link = %q", link)
		}
		obj, err := repo.Resolve(ctx, "master:hello-world.md")
		if err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
		if obj.Kind != git.KindBlob {
			t.Errorf("kind = %s", obj.Kind)
		}
		c, err := repo.ReadCommit(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if len(c.ParentHashes) != 1 || c.ParentHashes[0] != prev {
			t.Errorf("parents = %v, want [%s]", c.ParentHashes, prev)
		}
		if c.Author.Email != "alice@localhost" {
			t.Errorf("email = %q", c.Author.Email)
		}

		log, err := w.Log(ctx, 0)
		if err != nil {
			t.Fatalf("Log() failed: %v", err)
		}
		if len(log) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(log))
		}
		if log[0].Message != `Edited "Hello World" from web` || log[0].Hash != id.String() || log[0].Author != "alice" {
			t.Errorf("got %+v", log[0])
		}
		if log[0].Date != "Tue, 5 Mar 2024 10:04:05 +0000" {
			t.Errorf("date = %q", log[0].Date)
		}

		p, err := w.Page(ctx, link)
		if err != nil {
			t.Fatalf("Page() failed: %v", err)
		}
		if p.Meta.Title != "Hello World" || p.Content != "# Hi\ntext" {
			t.Errorf("got %+v", p)
		}
	})

	t.Run("NonASCIITitles", func(t *testing.T) {
		t.Parallel()
		w, _ := newTestWiki(t)
		ctx := t.Context()
		if link := save(t, w, "", "Привет мир", "ru", false); link != "privet-mir" {
			t.Errorf("link = %q", link)
		}
		cafe := save(t, w, "", "Café", "accent", false)
		caf := save(t, w, "", "Caf", "plain", false)
		if cafe != "cafe" || caf != "caf" {
			t.Fatalf("links = %q, %q", cafe, caf)
		}
		p, err := w.Page(ctx, cafe)
		if err != nil {
			t.Fatalf("Page() failed: %v", err)
		}
		if p.Meta.Title != "Café" || p.Content != "accent" {
			t.Errorf("got %+v", p)
		}
	})

	t.Run("SubdirAndMessage", func(t *testing.T) {
		t.Parallel()
		w, _ := newTestWiki(t)
		ctx := t.Context()
		link, _, err := w.Save(ctx, &SaveRequest{
			Author:  "bob",
			Dir:     "/notes/2024/",
			Page:    page.New(page.Metadata{Title: "Trip Log"}, "body"),
			Message: "custom",
		})
		if err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if link != "notes/2024/trip-log" {
			t.Errorf("link = %q", link)
		}
		log, err := w.Log(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if log[0].Message != "custom" || log[0].Author != "bob" {
			t.Errorf("got %+v", log[0])
		}
	})

	t.Run("PreservesUntouchedBytes", func(t *testing.T) {
		t.Parallel()
		w, repo := newTestWiki(t)
		ctx := t.Context()
		doc := "---\ntitle:   Kept\n# odd comment\nextra: {a: 1}\n---\nbody\n"
		p, err := page.Parse(doc)
		if err != nil {
			t.Fatal(err)
		}
		if _, _, err := w.Save(ctx, &SaveRequest{Author: "alice", Page: p}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		got, err := repo.ReadFile(ctx, git.DefaultBranch, "kept.md")
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != doc {
			t.Errorf("got %q, want %q", got, doc)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()
		w, repo := newTestWiki(t)
		ctx := t.Context()
		if _, _, err := w.Save(ctx, &SaveRequest{Author: "alice", Page: page.New(page.Metadata{Title: "!!!"}, "")}); !errors.Is(err, page.ErrFormat) {
			t.Errorf("got %v, want ErrFormat", err)
		}
		if _, _, err := w.Save(ctx, &SaveRequest{Author: "", Page: page.New(page.Metadata{Title: "x"}, "")}); !errors.Is(err, git.ErrSignature) {
			t.Errorf("got %v, want ErrSignature", err)
		}
		if _, _, err := w.Save(ctx, &SaveRequest{Author: "alice", Dir: "..", Page: page.New(page.Metadata{Title: "x"}, "")}); !errors.Is(err, git.ErrInvalidPath) {
			t.Errorf("got %v, want ErrInvalidPath", err)
		}
		head, _ := repo.Head(ctx, git.DefaultBranch)
		if !head.IsZero() {
			t.Error("failed saves created a commit")
		}
	})

	t.Run("Concurrent", func(t *testing.T) {
		t.Parallel()
		w, _ := newTestWiki(t)
		ctx := t.Context()
		titles := []string{"One", "Two", "Three", "Four"}
		var wg sync.WaitGroup
		for _, title := range titles {
			wg.Go(func() {
				if _, _, err := w.Save(ctx, &SaveRequest{Author: "alice", Page: page.New(page.Metadata{Title: title}, title)}); err != nil {
					t.Errorf("Save(%q) failed: %v", title, err)
				}
			})
		}
		wg.Wait()
		log, err := w.Log(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(log) != len(titles) {
			t.Errorf("expected %d commits, got %d", len(titles), len(log))
		}
		entries, err := w.List(ctx, "", false)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != len(titles) {
			t.Errorf("expected %d pages, got %+v", len(titles), entries)
		}
	})
}

func TestList(t *testing.T) {
	t.Parallel()
	w, repo := newTestWiki(t)
	ctx := t.Context()

	entries, err := w.List(ctx, "", false)
	if err != nil {
		t.Fatalf("List() on an empty wiki failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %+v", entries)
	}

	save(t, w, "", "Beta", "b", false)
	save(t, w, "", "Alpha", "a", false)
	save(t, w, "", "Secret", "s", true)
	save(t, w, "sub", "Nested", "n", false)

	links := func(entries []page.PageEntry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.Link)
		}
		return out
	}
	entries, err = w.List(ctx, "", false)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if got, want := links(entries), []string{"alpha", "beta"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	entries, err = w.List(ctx, "/", true)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := links(entries), []string{"alpha", "beta", "secret"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if !entries[2].Meta.Private || entries[2].Meta.Title != "Secret" {
		t.Errorf("got %+v", entries[2])
	}
	entries, err = w.List(ctx, "sub", false)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := links(entries), []string{"sub/nested"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := w.List(ctx, "missing", false); !errors.Is(err, git.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := w.List(ctx, "alpha.md", false); !errors.Is(err, git.ErrTypeMismatch) {
		t.Errorf("got %v, want ErrTypeMismatch", err)
	}

	// A page that does not decode fails the listing.
	head, _ := repo.Head(ctx, git.DefaultBranch)
	base, _ := repo.CommitTree(ctx, head)
	p := git.NewPatch()
	_ = p.Upsert("broken.md", []byte("no front matter"))
	tree, err := repo.ApplyPatch(ctx, base, p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Commit(ctx, git.DefaultBranch, git.Author{Name: "x"}, "break", tree); err != nil {
		t.Fatal(err)
	}
	if _, err := w.List(ctx, "", false); !errors.Is(err, page.ErrFormat) {
		t.Errorf("got %v, want ErrFormat", err)
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	w, _ := newTestWiki(t)
	ctx := t.Context()
	link := save(t, w, "docs", "Guide", "# Install\n## Linux\n# Use\n", false)

	r, err := w.Render(ctx, link)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if r.TOC.Title != "Guide" || r.TOC.Link != "docs/guide" {
		t.Errorf("root = %+v", r.TOC)
	}
	if len(r.TOC.Children) != 2 || len(r.TOC.Children[0].Children) != 1 {
		t.Errorf("toc = %+v", r.TOC)
	}
	if !strings.Contains(r.HTML, `<h2 id="linux">`) {
		t.Errorf("html = %s", r.HTML)
	}
	if _, err := w.Render(ctx, "docs/missing"); !errors.Is(err, git.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()
	w, repo := newTestWiki(t)
	ctx := t.Context()
	keep := save(t, w, "", "Keep", "k", false)
	gone := save(t, w, "dir", "Gone", "g", false)

	if _, err := w.Delete(ctx, "alice", gone, ""); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := w.Page(ctx, gone); !errors.Is(err, git.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := repo.Resolve(ctx, "master:dir"); !errors.Is(err, git.ErrNotFound) {
		t.Errorf("empty directory kept: %v", err)
	}
	if _, err := w.Page(ctx, keep); err != nil {
		t.Errorf("Page(%q) failed: %v", keep, err)
	}
	log, err := w.Log(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if log[0].Message != `Deleted "dir/gone" from web` {
		t.Errorf("message = %q", log[0].Message)
	}
	if _, err := w.Delete(ctx, "alice", gone, ""); !errors.Is(err, git.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := w.Delete(ctx, "alice", "/", ""); !errors.Is(err, git.ErrInvalidPath) {
		t.Errorf("got %v, want ErrInvalidPath", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("LoadConfig() failed: %v", err)
		}
		if *cfg != DefaultConfig() {
			t.Errorf("got %+v", cfg)
		}
		if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
			t.Errorf("config.json not created: %v", err)
		}
		again, err := LoadConfig(dir)
		if err != nil {
			t.Fatal(err)
		}
		if *again != *cfg {
			t.Errorf("got %+v, want %+v", again, cfg)
		}
	})

	t.Run("Override", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"branch":"main","theme":"github"}`), 0o600); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadConfig(dir)
		if err != nil {
			t.Fatalf("LoadConfig() failed: %v", err)
		}
		if cfg.Branch != "main" || cfg.Theme != "github" || cfg.HistoryLimit != 100 {
			t.Errorf("got %+v", cfg)
		}
	})

	tests := []struct {
		name string
		data string
	}{
		{"BadJSON", `{`},
		{"BadBranch", `{"branch":"a b"}`},
		{"BadTheme", `{"theme":"no-such-theme"}`},
		{"NegativeRate", `{"write_rate_per_min":-1}`},
		{"BadDomain", `{"email_domain":"a@b"}`},
		{"BadHistory", `{"history_limit":0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(tt.data), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(dir); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
