// Exposes a tree snapshot as a read-only fs.FS.

package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// TreeFS returns a read-only filesystem view of the tree id.
//
// The view is a snapshot: later commits do not affect it. ctx is used for
// every object read made through the returned filesystem.
func (r *Repo) TreeFS(ctx context.Context, id plumbing.Hash) fs.FS {
	return &treeFS{ctx: ctx, repo: r, root: id}
}

// treeFS implements fs.FS, fs.ReadDirFS and fs.ReadFileFS over a tree.
type treeFS struct {
	ctx  context.Context
	repo *Repo
	root plumbing.Hash
}

func (t *treeFS) lookup(op, name string) (Object, error) {
	if !fs.ValidPath(name) {
		return Object{}, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	var segs []string
	if name != "." {
		segs = strings.Split(name, "/")
	}
	obj, err := t.repo.walk(t.ctx, t.root, segs)
	if err != nil {
		return Object{}, &fs.PathError{Op: op, Path: name, Err: fsError(err)}
	}
	return obj, nil
}

func (t *treeFS) Open(name string) (fs.File, error) {
	obj, err := t.lookup("open", name)
	if err != nil {
		return nil, err
	}
	switch obj.Kind {
	case KindTree:
		entries, err := t.readDir(obj.ID)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &treeDir{name: name, entries: entries}, nil
	case KindBlob:
		data, err := t.repo.ReadBlob(t.ctx, obj.ID)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &memFile{name: path.Base(name), data: data}, nil
	default:
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
}

func (t *treeFS) ReadFile(name string) ([]byte, error) {
	obj, err := t.lookup("read", name)
	if err != nil {
		return nil, err
	}
	if obj.Kind != KindBlob {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fmt.Errorf("%w: is a %s", ErrTypeMismatch, obj.Kind)}
	}
	data, err := t.repo.ReadBlob(t.ctx, obj.ID)
	if err != nil {
		return nil, &fs.PathError{Op: "read", Path: name, Err: err}
	}
	return data, nil
}

func (t *treeFS) ReadDir(name string) ([]fs.DirEntry, error) {
	obj, err := t.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if obj.Kind != KindTree {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fmt.Errorf("%w: is a %s", ErrTypeMismatch, obj.Kind)}
	}
	entries, err := t.readDir(obj.ID)
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	return entries, nil
}

// readDir returns the entries of a tree sorted by name, as fs.ReadDir does.
func (t *treeFS) readDir(id plumbing.Hash) ([]fs.DirEntry, error) {
	entries, err := t.repo.ReadTree(t.ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = &dirEntry{fs: t, entry: e}
	}
	slices.SortFunc(out, func(a, b fs.DirEntry) int { return strings.Compare(a.Name(), b.Name()) })
	return out, nil
}

func fsError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTypeMismatch):
		return fmt.Errorf("%w: %w", fs.ErrNotExist, err)
	case errors.Is(err, ErrInvalidPath):
		return fmt.Errorf("%w: %w", fs.ErrInvalid, err)
	default:
		return err
	}
}

// dirEntry implements fs.DirEntry for a tree entry.
type dirEntry struct {
	fs    *treeFS
	entry TreeEntry
}

func (d *dirEntry) Name() string { return d.entry.Name }
func (d *dirEntry) IsDir() bool  { return d.entry.Kind() == KindTree }

func (d *dirEntry) Type() fs.FileMode {
	if d.IsDir() {
		return fs.ModeDir
	}
	return 0
}

func (d *dirEntry) Info() (fs.FileInfo, error) {
	if d.IsDir() {
		return &dirInfo{name: d.entry.Name}, nil
	}
	o, err := d.fs.repo.repo.Storer.EncodedObject(plumbing.AnyObject, d.entry.ID)
	if err != nil {
		return nil, &fs.PathError{Op: "stat", Path: d.entry.Name, Err: fsError(fmt.Errorf("%w: %w", ErrNotFound, err))}
	}
	return &fileInfo{name: d.entry.Name, size: o.Size()}, nil
}

// treeDir implements fs.ReadDirFile for a directory in a tree.
type treeDir struct {
	name    string
	entries []fs.DirEntry
	off     int
}

func (d *treeDir) Stat() (fs.FileInfo, error) {
	return &dirInfo{name: path.Base(d.name)}, nil
}

func (d *treeDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *treeDir) Close() error {
	return nil
}

func (d *treeDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.off:]
	if n <= 0 {
		d.off = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.off += n
	return rest[:n], nil
}

// dirInfo implements fs.FileInfo for a directory.
type dirInfo struct {
	name string
}

func (d *dirInfo) Name() string       { return d.name }
func (d *dirInfo) Size() int64        { return 0 }
func (d *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o755 }
func (d *dirInfo) ModTime() time.Time { return time.Time{} }
func (d *dirInfo) IsDir() bool        { return true }
func (d *dirInfo) Sys() any           { return nil }

// memFile implements fs.File for a blob read in memory.
type memFile struct {
	name   string
	data   []byte
	offset int
}

func (f *memFile) Stat() (fs.FileInfo, error) {
	return &fileInfo{name: f.name, size: int64(len(f.data))}, nil
}

func (f *memFile) Read(b []byte) (int, error) {
	if f.offset >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(b, f.data[f.offset:])
	f.offset += n
	return n, nil
}

func (f *memFile) Close() error {
	return nil
}

// fileInfo implements fs.FileInfo for a blob.
type fileInfo struct {
	name string
	size int64
}

func (f *fileInfo) Name() string       { return f.name }
func (f *fileInfo) Size() int64        { return f.size }
func (f *fileInfo) Mode() fs.FileMode  { return 0o644 }
func (f *fileInfo) ModTime() time.Time { return time.Time{} }
func (f *fileInfo) IsDir() bool        { return false }
func (f *fileInfo) Sys() any           { return nil }
