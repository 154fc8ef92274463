// Rebuilds trees from a sparse set of path changes.

package git

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// Patch is a set of pending changes to a tree, grouped per directory.
//
// A Patch is not safe for concurrent use.
type Patch struct {
	root pending
	n    int
}

// pending holds the changes of one directory level, keyed by entry name.
type pending map[string]*change

// change is either a blob write, a removal, or a nested directory of changes.
type change struct {
	data   []byte
	remove bool
	sub    pending
}

func (c *change) isDir() bool {
	return c.sub != nil
}

// NewPatch returns an empty patch.
func NewPatch() *Patch {
	return &Patch{root: pending{}}
}

// Len returns the number of leaf changes recorded.
func (p *Patch) Len() int {
	return p.n
}

// Upsert records that path must contain data. A later Upsert of the same path
// replaces the earlier one.
func (p *Patch) Upsert(path string, data []byte) error {
	return p.set(path, &change{data: data})
}

// Remove records that path must be removed.
func (p *Patch) Remove(path string) error {
	return p.set(path, &change{remove: true})
}

func (p *Patch) set(path string, c *change) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	level := p.root
	for i, seg := range segs[:len(segs)-1] {
		cur, ok := level[seg]
		if !ok {
			cur = &change{sub: pending{}}
			level[seg] = cur
		} else if !cur.isDir() {
			return fmt.Errorf("%w: %q is already a pending file", ErrConflict, strings.Join(segs[:i+1], "/"))
		}
		level = cur.sub
	}
	leaf := segs[len(segs)-1]
	if cur, ok := level[leaf]; ok {
		if cur.isDir() {
			return fmt.Errorf("%w: %q is already a pending directory", ErrConflict, path)
		}
	} else {
		p.n++
	}
	level[leaf] = c
	return nil
}

// ApplyPatch returns the id of base with patch applied.
//
// Only the trees on the path from each changed leaf to the root are
// rewritten; every other entry is reused by id. An empty patch returns base
// unchanged. A zero base is treated as the empty tree.
func (r *Repo) ApplyPatch(ctx context.Context, base plumbing.Hash, patch *Patch) (plumbing.Hash, error) {
	if patch.Len() == 0 && !base.IsZero() {
		return base, nil
	}
	entries, err := r.rebuild(ctx, base, patch.root, "")
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return r.WriteTree(ctx, entries)
}

// rebuild returns the entries of the tree at dir once the pending changes are
// applied. The caller writes them.
func (r *Repo) rebuild(ctx context.Context, base plumbing.Hash, changes pending, dir string) ([]TreeEntry, error) {
	var existing []TreeEntry
	if !base.IsZero() {
		var err error
		if existing, err = r.ReadTree(ctx, base); err != nil {
			return nil, err
		}
	}
	byName := make(map[string]TreeEntry, len(existing))
	for _, e := range existing {
		byName[e.Name] = e
	}

	out := make([]TreeEntry, 0, len(existing)+len(changes))
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		c := changes[name]
		full := joinPath(dir, name)
		old, exists := byName[name]
		switch {
		case c.remove:
			if !exists {
				return nil, fmt.Errorf("%w: %q", ErrNotFound, full)
			}
		case c.isDir():
			if exists && old.Kind() != KindTree {
				return nil, fmt.Errorf("%w: %q is a %s, cannot hold %d pending entries", ErrConflict, full, old.Kind(), len(c.sub))
			}
			var subBase plumbing.Hash
			if exists {
				subBase = old.ID
			}
			sub, err := r.rebuild(ctx, subBase, c.sub, full)
			if err != nil {
				return nil, err
			}
			if len(sub) == 0 {
				// Git has no empty directories.
				continue
			}
			id, err := r.WriteTree(ctx, sub)
			if err != nil {
				return nil, err
			}
			out = insertSorted(out, TreeEntry{Name: name, Mode: filemode.Dir, ID: id})
		default:
			if exists && old.Kind() == KindTree {
				return nil, fmt.Errorf("%w: %q is a directory, cannot be replaced by a file", ErrConflict, full)
			}
			id, err := r.WriteBlob(ctx, c.data)
			if err != nil {
				return nil, err
			}
			mode := filemode.Regular
			if exists && old.Mode == filemode.Executable {
				mode = old.Mode
			}
			out = insertSorted(out, TreeEntry{Name: name, Mode: mode, ID: id})
		}
	}

	for _, e := range existing {
		if _, ok := changes[e.Name]; ok {
			continue
		}
		out = insertSorted(out, e)
	}
	return out, nil
}

// insertSorted inserts e at its canonical position.
func insertSorted(entries []TreeEntry, e TreeEntry) []TreeEntry {
	i, _ := slices.BinarySearchFunc(entries, e, compareEntries)
	return slices.Insert(entries, i, e)
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
