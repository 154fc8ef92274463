// Package dto defines API request and response types.
//
// Request types bind their fields from the path, the query string and the
// JSON body with `path`, `query` and `json` struct tags. The package has no
// dependency on the wiki core; handlers convert between both.
package dto

import (
	"strings"

	"github.com/maruel/wikimark/internal/errors"
)

// maxLogLimit bounds the history page size.
const maxLogLimit = 1000

// validLink reports whether a link or directory is a clean relative path.
func validLink(s string) bool {
	for p := range strings.SplitSeq(strings.Trim(s, "/"), "/") {
		if p == "." || p == ".." || strings.HasPrefix(p, ".") {
			return false
		}
	}
	return !strings.ContainsAny(s, "\\\x00:")
}

// HealthRequest is a request to check server health.
type HealthRequest struct{}

// Validate is a no-op.
func (r *HealthRequest) Validate() error {
	return nil
}

// ListPagesRequest is a request to list the pages of a directory.
type ListPagesRequest struct {
	Dir     string `query:"dir"`
	Private bool   `query:"private"`
}

// Validate validates the list pages request fields.
func (r *ListPagesRequest) Validate() error {
	if r.Dir != "" && !validLink(r.Dir) {
		return errors.InvalidPath("invalid dir").WithDetail("dir", r.Dir)
	}
	return nil
}

// GetPageRequest is a request to get a page, rendered or raw.
type GetPageRequest struct {
	Link string `path:"link"`
}

// Validate validates the get page request fields.
func (r *GetPageRequest) Validate() error {
	if strings.Trim(r.Link, "/") == "" {
		return errors.MissingField("link")
	}
	if !validLink(r.Link) {
		return errors.InvalidPath("invalid link").WithDetail("link", r.Link)
	}
	return nil
}

// SavePageRequest is a request to create or replace a page.
//
// The link of the page is derived from the title in Meta.
type SavePageRequest struct {
	Dir     string         `json:"dir"`
	Meta    map[string]any `json:"meta"`
	Content string         `json:"content"`
	Message string         `json:"message,omitempty"`
}

// Validate validates the save page request fields.
func (r *SavePageRequest) Validate() error {
	if r.Dir != "" && !validLink(r.Dir) {
		return errors.InvalidPath("invalid dir").WithDetail("dir", r.Dir)
	}
	if r.Meta == nil {
		return errors.MissingField("meta")
	}
	if t, _ := r.Meta["title"].(string); strings.TrimSpace(t) == "" {
		return errors.MissingField("meta.title")
	}
	return nil
}

// DeletePageRequest is a request to delete a page.
type DeletePageRequest struct {
	Link    string `path:"link"`
	Message string `json:"message,omitempty"`
}

// Validate validates the delete page request fields.
func (r *DeletePageRequest) Validate() error {
	if strings.Trim(r.Link, "/") == "" {
		return errors.MissingField("link")
	}
	if !validLink(r.Link) {
		return errors.InvalidPath("invalid link").WithDetail("link", r.Link)
	}
	return nil
}

// LogRequest is a request for the branch history.
type LogRequest struct {
	// Limit is the maximum number of entries. 0 uses the configured default.
	Limit int `query:"limit"`
}

// Validate validates the log request fields.
func (r *LogRequest) Validate() error {
	if r.Limit < 0 || r.Limit > maxLogLimit {
		return errors.BadRequest("limit must be between 0 and 1000").WithDetail("limit", r.Limit)
	}
	return nil
}
