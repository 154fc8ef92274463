// Converts between wiki core types and dto types.

package handlers

import (
	"github.com/maruel/wikimark/internal/render"
	"github.com/maruel/wikimark/internal/server/dto"
	"github.com/maruel/wikimark/internal/storage/git"
)

func sectionToDTO(s *render.Section) *dto.Section {
	if s == nil {
		return nil
	}
	out := &dto.Section{Link: s.Link, Title: s.Title, Level: s.Level}
	for _, c := range s.Children {
		out.Children = append(out.Children, sectionToDTO(c))
	}
	return out
}

func commitsToDTO(in []*git.CommitLog) []dto.Commit {
	out := make([]dto.Commit, 0, len(in))
	for _, c := range in {
		out = append(out, dto.Commit{Hash: c.Hash, Author: c.Author, Date: c.Date, Message: c.Message})
	}
	return out
}
