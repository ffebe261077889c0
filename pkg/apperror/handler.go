package apperror

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

// ErrorResponse is the JSON structure returned to clients
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Handler handles error responses in HTTP handlers
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle writes an error response to the client
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	appErr := h.toAppError(err)

	// Log internal errors with full details
	if appErr.HTTPStatus >= 500 {
		h.logger.Error("internal error",
			"error", appErr.Error(),
			"code", appErr.Code,
			"path", r.URL.Path,
			"method", r.Method,
		)
	} else {
		h.logger.Debug("client error",
			"code", appErr.Code,
			"message", appErr.Message,
			"path", r.URL.Path,
		)
	}

	h.writeError(w, appErr)
}

// HandleWithContext handles error with additional context
func (h *Handler) HandleWithContext(w http.ResponseWriter, r *http.Request, err error, context map[string]interface{}) {
	appErr := h.toAppError(err)

	// Merge context into details
	if appErr.Details == nil {
		appErr.Details = context
	} else {
		for k, v := range context {
			appErr.Details[k] = v
		}
	}

	h.Handle(w, r, appErr)
}

// toAppError converts any error to an AppError
func (h *Handler) toAppError(err error) *AppError {
	// Check if already an AppError
	if appErr, ok := GetAppError(err); ok {
		return appErr
	}

	// Map domain errors to AppErrors
	return MapDomainError(err)
}

// MapDomainError maps a core domain error to the AppError a handler
// should respond with. Handlers that don't go through Handler.Handle can
// call this directly.
func MapDomainError(err error) *AppError {
	if appErr, ok := GetAppError(err); ok {
		return appErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		return Validation("url is not a valid rental search url")
	case errors.Is(err, domain.ErrInvalidQuery):
		return Validation("query could not be canonicalized")
	case errors.Is(err, domain.ErrFetchFailed):
		return UpstreamFailed("fetch failed after retries")
	case errors.Is(err, domain.ErrStorageFailure):
		return InternalWithMessage("storage operation failed", err)
	case errors.Is(err, domain.ErrQueryNotFound):
		return NotFound("query")
	case errors.Is(err, domain.ErrSessionNotFound):
		return NotFound("crawl session")
	case errors.Is(err, domain.ErrNotFound):
		return NotFound("resource")
	case errors.Is(err, domain.ErrUnauthorized):
		return Unauthorized("")
	case errors.Is(err, domain.ErrForbidden):
		return Forbidden("")

	default:
		return Internal(err)
	}
}

// writeError writes the error response
func (h *Handler) writeError(w http.ResponseWriter, appErr *AppError) {
	response := ErrorResponse{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a created JSON response
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteNoContent writes a no content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
