// Defines the Manager and the shared types for the git object store.

// Package git stores wiki pages as objects in a bare git repository.
//
// It exposes the repository as a content-addressable object store (blobs,
// trees, commits), a tree patcher that rewrites only the touched subtrees, a
// commit engine that advances a branch with compare-and-swap semantics, and a
// first-parent history walker.
package git

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
)

// DefaultBranch is the branch used when none is configured.
const DefaultBranch = "master"

// Options configures a Repo.
type Options struct {
	// EmailDomain is appended to the author name to synthesize the commit
	// contact address. Defaults to "localhost".
	EmailDomain string
	// Now returns the commit timestamp. Defaults to time.Now.
	Now func() time.Time
}

func (o *Options) withDefaults() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.EmailDomain == "" {
		out.EmailDomain = "localhost"
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	return out
}

// Manager opens and caches bare repositories below a root directory.
//
// The returned *Repo is safe for concurrent use, so one handle per directory
// is shared by every caller.
type Manager struct {
	rootDir string
	opts    Options
	repos   sync.Map // path -> *Repo
}

// NewManager creates a new repository manager rooted at rootDir.
func NewManager(rootDir string, opts *Options) *Manager {
	return &Manager{rootDir: rootDir, opts: opts.withDefaults()}
}

// Repo returns or creates the repository for the given subdirectory.
// The subdir is relative to the manager's root directory.
func (m *Manager) Repo(ctx context.Context, subdir string) (*Repo, error) {
	dir := filepath.Join(m.rootDir, subdir)
	if r, ok := m.repos.Load(dir); ok {
		return r.(*Repo), nil
	}
	r, err := Open(ctx, dir, &m.opts)
	if err != nil {
		return nil, err
	}
	actual, _ := m.repos.LoadOrStore(dir, r)
	return actual.(*Repo), nil
}

// Kind is the type of object a tree entry points to.
type Kind int

const (
	// KindBlob is file content.
	KindBlob Kind = iota
	// KindTree is a directory listing.
	KindTree
	// KindSubmodule is a gitlink to a commit in another repository.
	KindSubmodule
)

func (k Kind) String() string {
	switch k {
	case KindBlob:
		return "blob"
	case KindTree:
		return "tree"
	case KindSubmodule:
		return "submodule"
	default:
		return "unknown"
	}
}

func kindOf(mode filemode.FileMode) Kind {
	switch mode {
	case filemode.Dir:
		return KindTree
	case filemode.Submodule:
		return KindSubmodule
	default:
		return KindBlob
	}
}

// TreeEntry is one named entry of a tree.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	ID   plumbing.Hash
}

// Kind returns the kind of object the entry points to.
func (e TreeEntry) Kind() Kind {
	return kindOf(e.Mode)
}

// sortKey is the key git sorts tree entries by: the name, with a trailing
// slash for trees.
func (e TreeEntry) sortKey() string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// Object is a resolved object reference.
type Object struct {
	ID   plumbing.Hash
	Kind Kind
}

// Author identifies who made a change.
//
// When Email is empty it is synthesized as "<Name>@<EmailDomain>".
type Author struct {
	Name  string
	Email string
}

// CommitLog is one row of a branch history.
type CommitLog struct {
	Author  string `json:"author"`
	Message string `json:"message"` // Summary line.
	Hash    string `json:"hash"`
	Date    string `json:"date"` // RFC 2822, in the commit's own offset.
}
