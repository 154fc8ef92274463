// Walks the first-parent history of a branch.

package git

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// RFC2822 is the layout of CommitLog.Date.
const RFC2822 = "Mon, 2 Jan 2006 15:04:05 -0700"

// maxHistory caps History.
const maxHistory = 1000

// Log walks the history of branch from its head following first parents,
// newest first. Each call starts a fresh walk.
//
// An unborn branch yields nothing. A missing or malformed ancestor yields an
// error and ends the sequence.
func (r *Repo) Log(ctx context.Context, branch string) iter.Seq2[*CommitLog, error] {
	return func(yield func(*CommitLog, error) bool) {
		id, err := r.Head(ctx, branch)
		if err != nil {
			yield(nil, err)
			return
		}
		for !id.IsZero() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			c, err := r.ReadCommit(ctx, id)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					err = fmt.Errorf("%w: broken history: %w", ErrStorage, err)
				}
				yield(nil, err)
				return
			}
			if !yield(toCommitLog(c), nil) {
				return
			}
			if len(c.ParentHashes) == 0 {
				return
			}
			id = c.ParentHashes[0]
		}
	}
}

// History returns up to n entries of the branch history.
// n is capped at 1000. If n <= 0, defaults to 1000.
func (r *Repo) History(ctx context.Context, branch string, n int) ([]*CommitLog, error) {
	if n <= 0 || n > maxHistory {
		n = maxHistory
	}
	var out []*CommitLog
	for c, err := range r.Log(ctx, branch) {
		if err != nil {
			return nil, err
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

func toCommitLog(c *object.Commit) *CommitLog {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return &CommitLog{
		Author:  c.Author.Name,
		Message: subject,
		Hash:    c.Hash.String(),
		Date:    c.Committer.When.Format(RFC2822),
	}
}
