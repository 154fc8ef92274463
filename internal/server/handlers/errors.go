// Maps wiki errors to API errors and writes error responses.

package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/maruel/wikimark/internal/errors"
	"github.com/maruel/wikimark/internal/page"
	"github.com/maruel/wikimark/internal/server/dto"
	"github.com/maruel/wikimark/internal/storage/git"
)

// apiError converts an error of the wiki core to an APIError. Errors that
// already carry a status are returned unchanged.
func apiError(err error, link string) error {
	if err == nil {
		return nil
	}
	var ews apierrors.ErrorWithStatus
	if errors.As(err, &ews) {
		return err
	}
	switch {
	case errors.Is(err, git.ErrNotFound):
		if link != "" {
			return apierrors.PageNotFound(link).Wrap(err)
		}
		return apierrors.NotFound("directory").Wrap(err)
	case errors.Is(err, git.ErrInvalidPath), errors.Is(err, git.ErrTypeMismatch):
		return apierrors.InvalidPath("invalid path").Wrap(err)
	case errors.Is(err, git.ErrConflict), errors.Is(err, git.ErrRefConflict):
		return apierrors.Conflict("conflicting change").Wrap(err)
	case errors.Is(err, page.ErrFormat), errors.Is(err, page.ErrEncoding), errors.Is(err, git.ErrSignature):
		return apierrors.InvalidPage("cannot process page").Wrap(err)
	case errors.Is(err, git.ErrStorage), errors.Is(err, git.ErrCorruptObject):
		return apierrors.Storage(err)
	default:
		return apierrors.InternalWithError("internal error", err)
	}
}

// WriteErrorResponse writes err as a JSON error response.
func WriteErrorResponse(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	errorCode := apierrors.ErrInternal
	message := "internal error"
	var details map[string]any

	var ewsErr apierrors.ErrorWithStatus
	if errors.As(err, &ewsErr) {
		statusCode = ewsErr.StatusCode()
		errorCode = ewsErr.Code()
		message = ewsErr.Error()
		details = ewsErr.Details()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := dto.ErrorResponse{
		Error: dto.ErrorDetails{
			Code:    string(errorCode),
			Message: message,
		},
		Details: details,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
