package response

import (
	"errors"
	"net/http"

	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/logger"
)

type ErrorBody struct {
	Errors ErrorPayload `json:"errors"`
}

// ErrorPayload is either a business error (display_error + internal_error_code)
// or a validation error (empty display_error + field_errors).
type ErrorPayload struct {
	DisplayError      string              `json:"display_error"`
	InternalErrorCode int                 `json:"internal_error_code,omitempty"`
	FieldErrors       map[string][]string `json:"field_errors,omitempty"`
}

// WriteError converts a domain error into the JSON error response.
// Non-domain errors are treated as internal errors (500) without leaking details.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.ErrInternal(err)
	}

	status := de.Status()
	if status >= http.StatusInternalServerError {
		logger.WithCtx(r.Context()).Error().
			Err(err).
			Str("code", de.Code).
			Str("path", r.URL.Path).
			Msg("request failed")
	}

	payload := ErrorPayload{
		DisplayError:      de.Message,
		InternalErrorCode: de.InternalCode,
	}
	if de.Kind == domain.KindValidation {
		payload = ErrorPayload{DisplayError: de.Message, FieldErrors: de.Fields}
		if payload.FieldErrors == nil {
			payload.FieldErrors = map[string][]string{}
		}
	}
	if de.Kind == domain.KindRateLimited {
		w.Header().Set("Retry-After", retryAfter(de))
	}

	WriteJSON(w, status, ErrorBody{Errors: payload})
}

func retryAfter(de *domain.Error) string {
	if v := de.Meta["retry_after"]; v != "" {
		return v
	}
	return "60"
}
