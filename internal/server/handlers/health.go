package handlers

import (
	"context"

	"github.com/maruel/wikimark/internal/server/dto"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	version string
	branch  string
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version, branch string) *HealthHandler {
	return &HealthHandler{version: version, branch: branch}
}

// Health handles health check requests.
func (h *HealthHandler) Health(ctx context.Context, req *dto.HealthRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{Status: "ok", Version: h.version, Branch: h.branch}, nil
}
