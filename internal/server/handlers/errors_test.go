package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	apierrors "github.com/maruel/wikimark/internal/errors"
	"github.com/maruel/wikimark/internal/page"
	"github.com/maruel/wikimark/internal/server/dto"
	"github.com/maruel/wikimark/internal/storage/git"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		link   string
		status int
		code   apierrors.ErrorCode
	}{
		{"PageNotFound", fmt.Errorf("%w: a.md", git.ErrNotFound), "a", http.StatusNotFound, apierrors.ErrPageNotFound},
		{"DirNotFound", fmt.Errorf("%w: d", git.ErrNotFound), "", http.StatusNotFound, apierrors.ErrNotFound},
		{"InvalidPath", fmt.Errorf("%w: ..", git.ErrInvalidPath), "", http.StatusBadRequest, apierrors.ErrInvalidPath},
		{"TypeMismatch", fmt.Errorf("%w: x", git.ErrTypeMismatch), "", http.StatusBadRequest, apierrors.ErrInvalidPath},
		{"Conflict", fmt.Errorf("%w: a", git.ErrConflict), "", http.StatusConflict, apierrors.ErrConflict},
		{"RefConflict", fmt.Errorf("%w: master", git.ErrRefConflict), "", http.StatusConflict, apierrors.ErrConflict},
		{"Format", fmt.Errorf("a.md: %w", page.ErrFormat), "a", http.StatusUnprocessableEntity, apierrors.ErrInvalidPage},
		{"Encoding", page.ErrEncoding, "a", http.StatusUnprocessableEntity, apierrors.ErrInvalidPage},
		{"Signature", fmt.Errorf("%w: <", git.ErrSignature), "", http.StatusUnprocessableEntity, apierrors.ErrInvalidPage},
		{"Storage", fmt.Errorf("%w: disk", git.ErrStorage), "", http.StatusInternalServerError, apierrors.ErrStorageError},
		{"Corrupt", git.ErrCorruptObject, "", http.StatusInternalServerError, apierrors.ErrStorageError},
		{"Other", errors.New("boom"), "", http.StatusInternalServerError, apierrors.ErrInternal},
		{"Passthrough", apierrors.BadRequest("bad"), "", http.StatusBadRequest, apierrors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ews apierrors.ErrorWithStatus
			if !errors.As(apiError(tt.err, tt.link), &ews) {
				t.Fatal("not an ErrorWithStatus")
			}
			if ews.StatusCode() != tt.status || ews.Code() != tt.code {
				t.Errorf("got %d %s, want %d %s", ews.StatusCode(), ews.Code(), tt.status, tt.code)
			}
		})
	}
	if apiError(nil, "") != nil {
		t.Error("nil must stay nil")
	}
	if err := apiError(fmt.Errorf("%w: x", git.ErrNotFound), "x"); !errors.Is(err, git.ErrNotFound) {
		t.Errorf("cause lost: %v", err)
	}
	boom := errors.New("boom")
	if err := apiError(boom, ""); !errors.Is(err, boom) || err.Error() == "" {
		t.Errorf("internal cause lost: %v", err)
	}
}

func TestWriteErrorResponse(t *testing.T) {
	t.Run("APIError", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteErrorResponse(w, apierrors.PageNotFound("a/b"))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var resp dto.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error.Code != "PAGE_NOT_FOUND" || resp.Error.Message != "page not found" || resp.Details["link"] != "a/b" {
			t.Errorf("got %+v", resp)
		}
	})
	t.Run("Plain", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteErrorResponse(w, errors.New("secret detail"))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", w.Code)
		}
		var resp dto.ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Error.Code != "INTERNAL_ERROR" || resp.Error.Message != "internal error" {
			t.Errorf("got %+v", resp)
		}
	})
}
