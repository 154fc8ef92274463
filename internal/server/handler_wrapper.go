// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	apierrors "github.com/maruel/wikimark/internal/errors"
	"github.com/maruel/wikimark/internal/server/dto"
	"github.com/maruel/wikimark/internal/server/handlers"
	"github.com/maruel/wikimark/internal/server/ratelimit"
	"github.com/maruel/wikimark/internal/server/reqctx"
)

// writeTier is the rate limit tier name of the write endpoints.
const writeTier = "write"

// checkRateLimit checks rate limit and wraps the response writer.
// Returns the wrapped writer and whether the request should proceed.
func checkRateLimit(w http.ResponseWriter, limiter *ratelimit.Limiter, user string) (http.ResponseWriter, bool) {
	if limiter == nil {
		return w, true
	}
	result := limiter.Allow(ratelimit.BuildKey(user, writeTier))
	w = ratelimit.NewResponseWriter(w, result)
	if !result.Allowed {
		writeRateLimitError(w, result)
		return w, false
	}
	return w, true
}

// readAndDecodeBody reads the request body with size limit and decodes JSON into input.
// Returns false if an error occurred and was written to the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, cfg *Config) bool {
	if cfg.MaxRequestBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxRequestBodyBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			handlers.WriteErrorResponse(w, apierrors.PayloadTooLarge(maxBytesErr.Limit))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		handlers.WriteErrorResponse(w, apierrors.BadRequest("Failed to read request body"))
		return false
	}
	if len(body) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.WarnContext(ctx, "Failed to decode request body", "err", err)
			handlers.WriteErrorResponse(w, apierrors.BadRequest("Invalid request body"))
			return false
		}
	}
	return true
}

// decodeInput binds the body, path and query of r into a new In and
// validates it. Returns nil if an error was written to the response.
func decodeInput[In any, PtrIn interface {
	*In
	dto.Validatable
}](ctx context.Context, w http.ResponseWriter, r *http.Request, cfg *Config) PtrIn {
	input := new(In)
	if !readAndDecodeBody(ctx, w, r, input, cfg) {
		return nil
	}
	populatePathParams(r, input)
	populateQueryParams(r, input)
	if err := PtrIn(input).Validate(); err != nil {
		slog.WarnContext(ctx, "Validation error", "err", err)
		var ews apierrors.ErrorWithStatus
		if !errors.As(err, &ews) {
			err = apierrors.BadRequest(err.Error())
		}
		handlers.WriteErrorResponse(w, err)
		return nil
	}
	return PtrIn(input)
}

// writeJSONResponse writes a JSON response or error response.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		statusCode := http.StatusInternalServerError
		var ews apierrors.ErrorWithStatus
		if errors.As(err, &ews) {
			statusCode = ews.StatusCode()
		}
		if statusCode >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "Handler error", "err", err, "statusCode", statusCode)
		} else {
			slog.InfoContext(ctx, "Handler error", "err", err, "statusCode", statusCode)
		}
		handlers.WriteErrorResponse(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, *In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`
// and query parameters with `query:"name"`.
// *In must implement dto.Validatable.
//
// Example:
//
//	type GetPageRequest struct {
//	    Link string `path:"link"`
//	}
//
//	func (h *Handler) GetPage(ctx context.Context, req *GetPageRequest) (*Response, error)
func Wrap[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, PtrIn) (*Out, error), cfg *Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		input := decodeInput[In, PtrIn](ctx, w, r, cfg)
		if input == nil {
			return
		}
		output, err := fn(ctx, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// WrapAuth wraps a handler that writes to the wiki. It requires an identity
// and applies the per-identity write rate limit.
// The function must have signature: func(context.Context, string, *In) (*Out, error)
// where the string is the identity of the caller.
// *In must implement dto.Validatable.
func WrapAuth[In any, PtrIn interface {
	*In
	dto.Validatable
}, Out any](fn func(context.Context, string, PtrIn) (*Out, error), cfg *Config, limiter *ratelimit.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		user := reqctx.GetUser(r, cfg.User)
		if user == "" {
			slog.InfoContext(ctx, "Anonymous write rejected", "ip", reqctx.ClientIP(ctx))
			handlers.WriteErrorResponse(w, apierrors.Unauthorized())
			return
		}
		ctx = reqctx.WithUser(ctx, user)
		var ok bool
		if w, ok = checkRateLimit(w, limiter, user); !ok {
			slog.InfoContext(ctx, "Rate limited", "user", user)
			return
		}
		input := decodeInput[In, PtrIn](ctx, w, r, cfg)
		if input == nil {
			return
		}
		output, err := fn(ctx, user, input)
		writeJSONResponse(ctx, w, output, err)
	})
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" || field.Type.Kind() != reflect.String {
			continue
		}
		if v := r.PathValue(tag); v != "" {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`.
func populateQueryParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		paramValue := query.Get(tag)
		if paramValue == "" {
			continue
		}
		fieldVal := elem.Field(i)
		switch field.Type.Kind() {
		case reflect.String:
			fieldVal.SetString(paramValue)
		case reflect.Int:
			if intVal, err := strconv.Atoi(paramValue); err == nil {
				fieldVal.SetInt(int64(intVal))
			} else {
				// Out of range for every request type.
				fieldVal.SetInt(-1)
			}
		case reflect.Bool:
			if b, err := strconv.ParseBool(paramValue); err == nil {
				fieldVal.SetBool(b)
			}
		default:
			if fieldVal.CanAddr() {
				if unmarshaler, ok := fieldVal.Addr().Interface().(encoding.TextUnmarshaler); ok {
					_ = unmarshaler.UnmarshalText([]byte(paramValue))
				}
			}
		}
	}
}

// writeRateLimitError writes a 429 rate limit error response.
func writeRateLimitError(w http.ResponseWriter, result ratelimit.Result) {
	retryAfter := int(result.RetryAfter.Seconds())
	handlers.WriteErrorResponse(w, apierrors.NewAPIError(http.StatusTooManyRequests, apierrors.ErrRateLimited, "Too many requests").WithDetail("retry_after", retryAfter))
}
