package http

import (
	"net/http"

	"github.com/rentwatch/rentwatch-api/pkg/httputil"
)

// PaginatedResponse represents a paginated response
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int32       `json:"page"`
	Limit int32       `json:"limit"`
}

// DataResponse represents a single data response
type DataResponse struct {
	Data interface{} `json:"data"`
}

// SuccessResponse wraps a result envelope with an explicit success flag,
// used by endpoints whose contract calls for {success, data: ...}.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.JSON(w, status, data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, ErrorResponse{Error: message})
}
