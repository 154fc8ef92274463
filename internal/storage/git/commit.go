// Wraps trees into commits and advances branches.

package git

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit records tree as a new commit on branch, on top of the branch's
// current head (or as a root commit when the branch does not exist).
//
// ErrRefConflict is returned if the branch moved between reading its head and
// advancing it.
func (r *Repo) Commit(ctx context.Context, branch string, author Author, message string, tree plumbing.Hash) (plumbing.Hash, error) {
	head, err := r.Head(ctx, branch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return r.CommitOnto(ctx, branch, head, author, message, tree)
}

// CommitOnto is like Commit with an explicit expected parent. Use it when tree
// was derived from parent's tree so a concurrent writer cannot be overwritten.
func (r *Repo) CommitOnto(ctx context.Context, branch string, parent plumbing.Hash, author Author, message string, tree plumbing.Hash) (plumbing.Hash, error) {
	sig, err := r.signature(author)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var parents []plumbing.Hash
	if !parent.IsZero() {
		parents = []plumbing.Hash{parent}
	}
	id, err := r.WriteCommit(ctx, tree, parents, sig, sig, message)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := r.AdvanceBranch(ctx, branch, parent, id); err != nil {
		return plumbing.ZeroHash, err
	}
	slog.DebugContext(ctx, "Committed", "branch", branch, "commit", id.String(), "author", sig.Name)
	return id, nil
}

func (r *Repo) signature(a Author) (object.Signature, error) {
	if a.Name == "" || strings.TrimSpace(a.Name) != a.Name {
		return object.Signature{}, fmt.Errorf("%w: author %q", ErrSignature, a.Name)
	}
	email := a.Email
	if email == "" {
		email = a.Name + "@" + r.opts.EmailDomain
	}
	for _, s := range []string{a.Name, email} {
		if strings.ContainsAny(s, "<>\n\r\x00") {
			return object.Signature{}, fmt.Errorf("%w: %q cannot be encoded", ErrSignature, s)
		}
	}
	return object.Signature{Name: a.Name, Email: email, When: r.opts.Now()}, nil
}
