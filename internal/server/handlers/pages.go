// Handles page listing, reading, saving and history requests.

package handlers

import (
	"context"
	"strings"

	"github.com/maruel/wikimark/internal/page"
	"github.com/maruel/wikimark/internal/server/dto"
	"github.com/maruel/wikimark/internal/wiki"
)

// PageHandler serves the pages of a wiki.
type PageHandler struct {
	wiki *wiki.Wiki
}

// NewPageHandler creates a new page handler.
func NewPageHandler(w *wiki.Wiki) *PageHandler {
	return &PageHandler{wiki: w}
}

// ListPages returns the pages directly under a directory.
func (h *PageHandler) ListPages(ctx context.Context, req *dto.ListPagesRequest) (*dto.ListPagesResponse, error) {
	entries, err := h.wiki.List(ctx, req.Dir, req.Private)
	if err != nil {
		return nil, apiError(err, "")
	}
	resp := &dto.ListPagesResponse{Pages: make([]dto.PageSummary, 0, len(entries))}
	for _, e := range entries {
		resp.Pages = append(resp.Pages, dto.PageSummary{Link: e.Link, Meta: e.Meta.Map()})
	}
	return resp, nil
}

// GetPage returns a page rendered to HTML with its table of contents.
func (h *PageHandler) GetPage(ctx context.Context, req *dto.GetPageRequest) (*dto.GetPageResponse, error) {
	link := strings.Trim(req.Link, "/")
	r, err := h.wiki.Render(ctx, link)
	if err != nil {
		return nil, apiError(err, link)
	}
	return &dto.GetPageResponse{
		Link: link,
		Meta: r.Meta.Map(),
		TOC:  sectionToDTO(r.TOC),
		HTML: r.HTML,
	}, nil
}

// GetRawPage returns a page as stored.
func (h *PageHandler) GetRawPage(ctx context.Context, req *dto.GetPageRequest) (*dto.GetRawPageResponse, error) {
	link := strings.Trim(req.Link, "/")
	raw, err := h.wiki.Page(ctx, link)
	if err != nil {
		return nil, apiError(err, link)
	}
	text, err := page.Serialize(raw)
	if err != nil {
		return nil, apiError(err, link)
	}
	return &dto.GetRawPageResponse{Link: link, Meta: raw.Meta.Map(), Content: raw.Content, Text: text}, nil
}

// SavePage stores a page on behalf of user.
func (h *PageHandler) SavePage(ctx context.Context, user string, req *dto.SavePageRequest) (*dto.SavePageResponse, error) {
	meta, err := page.MetadataFromMap(req.Meta)
	if err != nil {
		return nil, apiError(err, "")
	}
	link, id, err := h.wiki.Save(ctx, &wiki.SaveRequest{
		Author:  user,
		Dir:     req.Dir,
		Page:    page.New(meta, req.Content),
		Message: req.Message,
	})
	if err != nil {
		return nil, apiError(err, link)
	}
	return &dto.SavePageResponse{Link: link, Commit: id.String()}, nil
}

// DeletePage removes a page on behalf of user.
func (h *PageHandler) DeletePage(ctx context.Context, user string, req *dto.DeletePageRequest) (*dto.DeletePageResponse, error) {
	link := strings.Trim(req.Link, "/")
	id, err := h.wiki.Delete(ctx, user, link, req.Message)
	if err != nil {
		return nil, apiError(err, link)
	}
	return &dto.DeletePageResponse{Commit: id.String()}, nil
}

// Log returns the branch history, newest first.
func (h *PageHandler) Log(ctx context.Context, req *dto.LogRequest) (*dto.LogResponse, error) {
	commits, err := h.wiki.Log(ctx, req.Limit)
	if err != nil {
		return nil, apiError(err, "")
	}
	return &dto.LogResponse{Commits: commitsToDTO(commits)}, nil
}
