// Implements the object store on top of go-git's storer.

package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"
)

// Repo is a bare git repository used as a content-addressable object store.
//
// Objects are immutable; the only mutable state is the set of branch
// references, which only move through AdvanceBranch.
type Repo struct {
	dir  string
	opts Options
	repo *gogit.Repository

	refMu       sync.Mutex
	branchLocks sync.Map // branch -> *sync.Mutex
}

// Open opens the bare repository at dir, initializing an empty one if none
// exists.
func Open(ctx context.Context, dir string, opts *Options) (*Repo, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("%w: failed to create repo directory: %w", ErrStorage, err)
	}
	repo, err := gogit.PlainOpen(dir)
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		slog.InfoContext(ctx, "Initializing bare repository", "dir", dir)
		repo, err = gogit.PlainInit(dir, true)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open repository %s: %w", ErrStorage, dir, err)
	}
	return &Repo{dir: dir, opts: opts.withDefaults(), repo: repo}, nil
}

// Dir returns the repository directory.
func (r *Repo) Dir() string {
	return r.dir
}

// ParseSpec splits a "<branch>:<path>" revision spec.
func ParseSpec(spec string) (branch, path string, err error) {
	branch, path, ok := strings.Cut(spec, ":")
	if !ok || branch == "" {
		return "", "", fmt.Errorf("%w: revision spec %q", ErrInvalidPath, spec)
	}
	return branch, path, nil
}

// Resolve resolves a "<branch>:<path>" revision spec. An empty path is the
// branch's root tree.
func (r *Repo) Resolve(ctx context.Context, spec string) (Object, error) {
	branch, path, err := ParseSpec(spec)
	if err != nil {
		return Object{}, err
	}
	return r.ResolvePath(ctx, branch, path)
}

// ResolvePath resolves path against the head of branch.
func (r *Repo) ResolvePath(ctx context.Context, branch, path string) (Object, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Object{}, err
	}
	head, err := r.Head(ctx, branch)
	if err != nil {
		return Object{}, err
	}
	if head.IsZero() {
		return Object{}, fmt.Errorf("%w: branch %q", ErrNotFound, branch)
	}
	root, err := r.CommitTree(ctx, head)
	if err != nil {
		return Object{}, err
	}
	return r.walk(ctx, root, segs)
}

// walk descends from the tree root following segs.
func (r *Repo) walk(ctx context.Context, root plumbing.Hash, segs []string) (Object, error) {
	obj := Object{ID: root, Kind: KindTree}
	for i, seg := range segs {
		if obj.Kind != KindTree {
			return Object{}, fmt.Errorf("%w: %q is a %s, not a tree", ErrTypeMismatch, strings.Join(segs[:i], "/"), obj.Kind)
		}
		entries, err := r.ReadTree(ctx, obj.ID)
		if err != nil {
			return Object{}, err
		}
		idx := slices.IndexFunc(entries, func(e TreeEntry) bool { return e.Name == seg })
		if idx < 0 {
			return Object{}, fmt.Errorf("%w: %q", ErrNotFound, strings.Join(segs[:i+1], "/"))
		}
		obj = Object{ID: entries[idx].ID, Kind: entries[idx].Kind()}
	}
	return obj, nil
}

// ReadFile returns the content of the blob at path on branch.
func (r *Repo) ReadFile(ctx context.Context, branch, path string) ([]byte, error) {
	obj, err := r.ResolvePath(ctx, branch, path)
	if err != nil {
		return nil, err
	}
	if obj.Kind != KindBlob {
		return nil, fmt.Errorf("%w: %q is a %s, not a blob", ErrTypeMismatch, path, obj.Kind)
	}
	return r.ReadBlob(ctx, obj.ID)
}

// ReadBlob returns the content of a blob.
func (r *Repo) ReadBlob(_ context.Context, id plumbing.Hash) ([]byte, error) {
	o, err := r.object(id, plumbing.BlobObject)
	if err != nil {
		return nil, err
	}
	rd, err := o.Reader()
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s: %w", ErrCorruptObject, id, err)
	}
	defer func() { _ = rd.Close() }()
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, fmt.Errorf("%w: blob %s: %w", ErrCorruptObject, id, err)
	}
	return data, nil
}

// ReadTree returns the entries of a tree in stored order.
func (r *Repo) ReadTree(_ context.Context, id plumbing.Hash) ([]TreeEntry, error) {
	o, err := r.object(id, plumbing.TreeObject)
	if err != nil {
		return nil, err
	}
	t, err := object.DecodeTree(r.repo.Storer, o)
	if err != nil {
		return nil, fmt.Errorf("%w: tree %s: %w", ErrCorruptObject, id, err)
	}
	entries := make([]TreeEntry, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = TreeEntry{Name: e.Name, Mode: e.Mode, ID: e.Hash}
	}
	return entries, nil
}

// ReadCommit returns a decoded commit.
func (r *Repo) ReadCommit(_ context.Context, id plumbing.Hash) (*object.Commit, error) {
	o, err := r.object(id, plumbing.CommitObject)
	if err != nil {
		return nil, err
	}
	c, err := object.DecodeCommit(r.repo.Storer, o)
	if err != nil {
		return nil, fmt.Errorf("%w: commit %s: %w", ErrCorruptObject, id, err)
	}
	return c, nil
}

// CommitTree returns the root tree of a commit.
func (r *Repo) CommitTree(ctx context.Context, commit plumbing.Hash) (plumbing.Hash, error) {
	c, err := r.ReadCommit(ctx, commit)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return c.TreeHash, nil
}

func (r *Repo) object(id plumbing.Hash, want plumbing.ObjectType) (plumbing.EncodedObject, error) {
	o, err := r.repo.Storer.EncodedObject(plumbing.AnyObject, id)
	if errors.Is(err, plumbing.ErrObjectNotFound) {
		return nil, fmt.Errorf("%w: object %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: object %s: %w", ErrStorage, id, err)
	}
	if o.Type() != want {
		return nil, fmt.Errorf("%w: object %s is a %s, not a %s", ErrTypeMismatch, id, o.Type(), want)
	}
	return o, nil
}

// WriteBlob stores data and returns its id. Writing identical content twice
// returns the same id.
func (r *Repo) WriteBlob(_ context.Context, data []byte) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: failed to create blob: %w", ErrStorage, err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, fmt.Errorf("%w: failed to write blob: %w", ErrStorage, err)
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: failed to write blob: %w", ErrStorage, err)
	}
	return r.store(obj)
}

// WriteTree stores a tree and returns its id.
//
// The entries are stored in git canonical order regardless of the order they
// are passed in. Duplicate or malformed names are rejected.
func (r *Repo) WriteTree(_ context.Context, entries []TreeEntry) (plumbing.Hash, error) {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, compareEntries)
	seen := make(map[string]struct{}, len(sorted))
	t := &object.Tree{Entries: make([]object.TreeEntry, len(sorted))}
	for i, e := range sorted {
		if err := validName(e.Name); err != nil {
			return plumbing.ZeroHash, err
		}
		if _, ok := seen[e.Name]; ok {
			return plumbing.ZeroHash, fmt.Errorf("%w: duplicate tree entry %q", ErrConflict, e.Name)
		}
		seen[e.Name] = struct{}{}
		t.Entries[i] = object.TreeEntry{Name: e.Name, Mode: e.Mode, Hash: e.ID}
	}
	obj := r.repo.Storer.NewEncodedObject()
	if err := t.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: failed to encode tree: %w", ErrStorage, err)
	}
	return r.store(obj)
}

// WriteCommit stores a commit object. It does not move any branch.
func (r *Repo) WriteCommit(_ context.Context, tree plumbing.Hash, parents []plumbing.Hash, author, committer object.Signature, message string) (plumbing.Hash, error) {
	c := &object.Commit{
		Author:       author,
		Committer:    committer,
		Message:      message,
		TreeHash:     tree,
		ParentHashes: parents,
	}
	obj := r.repo.Storer.NewEncodedObject()
	if err := c.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: failed to encode commit: %w", ErrStorage, err)
	}
	return r.store(obj)
}

func (r *Repo) store(obj plumbing.EncodedObject) (plumbing.Hash, error) {
	h, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: failed to store %s: %w", ErrStorage, obj.Type(), err)
	}
	return h, nil
}

// Head returns the commit the branch points to, or the zero hash when the
// branch does not exist yet.
func (r *Repo) Head(_ context.Context, branch string) (plumbing.Hash, error) {
	if err := validBranch(branch); err != nil {
		return plumbing.ZeroHash, err
	}
	ref, err := r.repo.Storer.Reference(plumbing.NewBranchReferenceName(branch))
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: failed to read branch %q: %w", ErrStorage, branch, err)
	}
	return ref.Hash(), nil
}

// AdvanceBranch moves branch from expected to next.
//
// It is a compare-and-swap: if the branch does not currently point at
// expected (or exists while expected is zero), ErrRefConflict is returned and
// nothing changes.
func (r *Repo) AdvanceBranch(ctx context.Context, branch string, expected, next plumbing.Hash) error {
	if err := validBranch(branch); err != nil {
		return err
	}
	name := plumbing.NewBranchReferenceName(branch)
	newRef := plumbing.NewHashReference(name, next)

	r.refMu.Lock()
	defer r.refMu.Unlock()

	cur, err := r.repo.Storer.Reference(name)
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		if !expected.IsZero() {
			return fmt.Errorf("%w: branch %q is gone, expected %s", ErrRefConflict, branch, expected)
		}
		if err := r.createBranch(newRef); err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("%w: failed to read branch %q: %w", ErrStorage, branch, err)
	case cur.Hash() != expected:
		return fmt.Errorf("%w: branch %q is at %s, expected %s", ErrRefConflict, branch, cur.Hash(), expected)
	default:
		old := plumbing.NewHashReference(name, expected)
		if err := r.repo.Storer.CheckAndSetReference(newRef, old); err != nil {
			if errors.Is(err, storage.ErrReferenceHasChanged) {
				return fmt.Errorf("%w: branch %q: %w", ErrRefConflict, branch, err)
			}
			return fmt.Errorf("%w: failed to update branch %q: %w", ErrStorage, branch, err)
		}
	}
	slog.DebugContext(ctx, "Advanced branch", "branch", branch, "from", expected.String(), "to", next.String())
	return nil
}

// createBranch writes ref while holding "<ref>.lock", created exclusively as
// git does, so that two processes cannot both create the same branch.
func (r *Repo) createBranch(ref *plumbing.Reference) error {
	name := ref.Name()
	st, ok := r.repo.Storer.(interface{ Filesystem() billy.Filesystem })
	if !ok {
		if err := r.repo.Storer.SetReference(ref); err != nil {
			return fmt.Errorf("%w: failed to create %s: %w", ErrStorage, name, err)
		}
		return nil
	}
	fsys := st.Filesystem()
	lock := name.String() + ".lock"
	if err := fsys.MkdirAll(path.Dir(lock), 0o755); err != nil { //nolint:gosec // G301: same mode as git's refs directories
		return fmt.Errorf("%w: failed to create %s: %w", ErrStorage, name, err)
	}
	f, err := fsys.OpenFile(lock, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%w: %s is locked by another writer", ErrRefConflict, name)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to lock %s: %w", ErrStorage, name, err)
	}
	defer func() {
		_ = f.Close()
		_ = fsys.Remove(lock)
	}()
	if cur, err := r.repo.Storer.Reference(name); err == nil {
		return fmt.Errorf("%w: %s was created at %s", ErrRefConflict, name, cur.Hash())
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return fmt.Errorf("%w: failed to read %s: %w", ErrStorage, name, err)
	}
	if err := r.repo.Storer.SetReference(ref); err != nil {
		return fmt.Errorf("%w: failed to create %s: %w", ErrStorage, name, err)
	}
	return nil
}

// LockBranch acquires the writer lock of branch and returns its release
// function. Writers hold it across patch, commit and advance.
func (r *Repo) LockBranch(branch string) func() {
	v, _ := r.branchLocks.LoadOrStore(branch, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func compareEntries(a, b TreeEntry) int {
	return strings.Compare(a.sortKey(), b.sortKey())
}

// splitPath splits a slash separated path into its segments. Leading and
// trailing slashes are ignored; an empty path has no segments.
func splitPath(p string) ([]string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, nil
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if err := validName(s); err != nil {
			return nil, fmt.Errorf("%w in %q", err, p)
		}
	}
	return segs, nil
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: segment %q", ErrInvalidPath, name)
	}
	return nil
}

func validBranch(branch string) error {
	if branch == "" || strings.Contains(branch, "..") || strings.ContainsAny(branch, " :~^?*[\\\x00\t\n") {
		return fmt.Errorf("%w: branch %q", ErrInvalidPath, branch)
	}
	return nil
}
