// Package wiki ties the page codec, the renderer and the git object store
// into the read and write paths of the wiki.
//
// A page with link "a/b" is stored at "a/b.md" on the configured branch.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"

	"github.com/maruel/wikimark/internal/page"
	"github.com/maruel/wikimark/internal/render"
	"github.com/maruel/wikimark/internal/storage/git"
)

// Ext is the extension of page blobs.
const Ext = ".md"

// Wiki serves pages from a branch of a repository.
//
// All methods are synchronous and safe for concurrent use. Writers to the
// same branch are serialized in-process; a writer in another process that
// moves the branch first makes the save fail with git.ErrRefConflict.
type Wiki struct {
	repo         *git.Repo
	branch       string
	renderer     *render.Renderer
	historyLimit int
}

// New returns a Wiki on repo.
func New(repo *git.Repo, cfg *Config) *Wiki {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	return &Wiki{
		repo:         repo,
		branch:       cfg.Branch,
		renderer:     render.New(&render.Options{Theme: cfg.Theme}),
		historyLimit: cfg.HistoryLimit,
	}
}

// Branch returns the branch the wiki reads and writes.
func (w *Wiki) Branch() string {
	return w.branch
}

// Page returns the decoded page at link.
func (w *Wiki) Page(ctx context.Context, link string) (*page.RawPage, error) {
	p, err := blobPath(link)
	if err != nil {
		return nil, err
	}
	data, err := w.repo.ReadFile(ctx, w.branch, p)
	if err != nil {
		return nil, err
	}
	raw, err := page.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return raw, nil
}

// Rendered is a page with its rendered body.
type Rendered struct {
	Meta page.Metadata `json:"meta"`
	render.Page
}

// Render returns the page at link rendered to HTML. The page title and link
// are the root of the table of contents.
func (w *Wiki) Render(ctx context.Context, link string) (*Rendered, error) {
	raw, err := w.Page(ctx, link)
	if err != nil {
		return nil, err
	}
	out, err := w.renderer.Render([]byte(raw.Content), raw.Meta.Title, strings.Trim(link, "/"))
	if err != nil {
		return nil, err
	}
	return &Rendered{Meta: raw.Meta, Page: *out}, nil
}

// List returns the pages directly under dir. Subdirectories and files that
// are not pages are skipped. Private pages are only returned when
// includePrivate is set.
//
// Listing the root of a branch without commits returns no page.
func (w *Wiki) List(ctx context.Context, dir string, includePrivate bool) ([]page.PageEntry, error) {
	dir = strings.Trim(dir, "/")
	obj, err := w.repo.ResolvePath(ctx, w.branch, dir)
	if err != nil {
		if dir == "" && errors.Is(err, git.ErrNotFound) {
			if head, herr := w.repo.Head(ctx, w.branch); herr == nil && head.IsZero() {
				return []page.PageEntry{}, nil
			}
		}
		return nil, err
	}
	if obj.Kind != git.KindTree {
		return nil, fmt.Errorf("%w: %q is a %s", git.ErrTypeMismatch, dir, obj.Kind)
	}
	fsys := w.repo.TreeFS(ctx, obj.ID)
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	out := []page.PageEntry{}
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), Ext)
		if e.IsDir() || !ok || name == "" {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		link := path.Join(dir, name)
		raw, err := page.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", link, Ext, err)
		}
		if raw.Meta.Private && !includePrivate {
			continue
		}
		out = append(out, page.PageEntry{Meta: raw.Meta, Link: link})
	}
	return out, nil
}

// SaveRequest describes a page write.
type SaveRequest struct {
	// Author is the already authenticated identity of the writer.
	Author string
	// Dir is the directory the page is stored in. Empty for the root.
	Dir string
	// Page is the page to store. Its link is derived from its title.
	Page *page.RawPage
	// Message is the commit message. Defaults to `Edited "<title>" from web`.
	Message string
}

// Save stores a page and commits it. It returns the page link and the new
// commit.
func (w *Wiki) Save(ctx context.Context, req *SaveRequest) (string, plumbing.Hash, error) {
	if req.Page == nil {
		return "", plumbing.ZeroHash, fmt.Errorf("%w: no page", page.ErrFormat)
	}
	s := page.Slug(req.Page.Meta.Title)
	if s == "" {
		return "", plumbing.ZeroHash, fmt.Errorf("%w: title %q yields an empty link", page.ErrFormat, req.Page.Meta.Title)
	}
	link := path.Join(strings.Trim(req.Dir, "/"), s)
	text, err := page.Serialize(req.Page)
	if err != nil {
		return "", plumbing.ZeroHash, fmt.Errorf("%w: %w", page.ErrFormat, err)
	}
	msg := req.Message
	if msg == "" {
		msg = "Edited \"" + req.Page.Meta.Title + "\" from web"
	}
	id, err := w.commit(ctx, req.Author, msg, func(p *git.Patch) error {
		return p.Upsert(link+Ext, []byte(text))
	})
	if err != nil {
		return "", plumbing.ZeroHash, err
	}
	slog.InfoContext(ctx, "Saved page", "link", link, "author", req.Author, "commit", id.String())
	return link, id, nil
}

// Delete removes the page at link and commits the removal. The message
// defaults to `Deleted "<link>" from web`.
func (w *Wiki) Delete(ctx context.Context, author, link, message string) (plumbing.Hash, error) {
	p, err := blobPath(link)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if message == "" {
		message = "Deleted \"" + strings.TrimSuffix(p, Ext) + "\" from web"
	}
	id, err := w.commit(ctx, author, message, func(patch *git.Patch) error {
		return patch.Remove(p)
	})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	slog.InfoContext(ctx, "Deleted page", "link", link, "author", author, "commit", id.String())
	return id, nil
}

// Log returns up to n entries of the branch history, newest first. n <= 0
// uses the configured history limit.
func (w *Wiki) Log(ctx context.Context, n int) ([]*git.CommitLog, error) {
	if n <= 0 {
		n = w.historyLimit
	}
	return w.repo.History(ctx, w.branch, n)
}

// commit applies the changes made by fill on top of the branch head and
// commits the result, holding the branch lock throughout.
func (w *Wiki) commit(ctx context.Context, author, message string, fill func(*git.Patch) error) (plumbing.Hash, error) {
	patch := git.NewPatch()
	if err := fill(patch); err != nil {
		return plumbing.ZeroHash, err
	}
	unlock := w.repo.LockBranch(w.branch)
	defer unlock()
	head, err := w.repo.Head(ctx, w.branch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var base plumbing.Hash
	if !head.IsZero() {
		if base, err = w.repo.CommitTree(ctx, head); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	tree, err := w.repo.ApplyPatch(ctx, base, patch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return w.repo.CommitOnto(ctx, w.branch, head, git.Author{Name: author}, message, tree)
}

// blobPath returns the blob path of a page link.
func blobPath(link string) (string, error) {
	link = strings.Trim(link, "/")
	if link == "" {
		return "", fmt.Errorf("%w: empty link", git.ErrInvalidPath)
	}
	return link + Ext, nil
}
