package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rentwatch/rentwatch-api/internal/core/port"
	"github.com/rentwatch/rentwatch-api/pkg/util"
)

// QueryHandler handles the read-side and administrative query endpoints.
type QueryHandler struct {
	service port.QueryService
}

func NewQueryHandler(service port.QueryService) *QueryHandler {
	return &QueryHandler{service: service}
}

func (h *QueryHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/parse", h.Parse)
	r.Get("/statistics", h.Statistics)
	r.Get("/{id}/rentals", h.Rentals)
	r.Get("/{id}/similar", h.Similar)
	r.Delete("/{id}/clear", h.Clear)
	return r
}

// ListQueriesRoutes registers the top-level GET /queries endpoint, kept
// separate from Routes since it lives outside the /query/{id} subtree.
func (h *QueryHandler) ListQueriesRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}

type parseQueryRequest struct {
	URL string `json:"url"`
}

func (h *QueryHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.service.ParseQuery(r.Context(), req.URL)
	if err != nil {
		writeDomainError(w, err, "failed to parse query")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *QueryHandler) Rentals(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := parseIntQuery(r, "limit", 50)
	sinceDate := util.StringPtr(r.URL.Query().Get("sinceDate"))

	query, listings, err := h.service.GetRentals(r.Context(), id, limit, sinceDate)
	if err != nil {
		writeDomainError(w, err, "failed to get rentals")
		return
	}

	respondJSON(w, http.StatusOK, DataResponse{Data: map[string]interface{}{
		"query":   query,
		"rentals": listings,
	}})
}

func (h *QueryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := port.ListQueriesFilter{
		Limit:     parseIntQuery(r, "limit", 50),
		Offset:    parseIntQuery(r, "offset", 0),
		Region:    util.StringPtr(r.URL.Query().Get("region")),
		SinceDate: util.StringPtr(r.URL.Query().Get("sinceDate")),
	}
	if v := r.URL.Query().Get("hasRentals"); v != "" {
		filter.HasRentals = util.BoolPtr(v == "true")
	}

	queries, total, err := h.service.ListQueries(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err, "failed to list queries")
		return
	}

	respondJSON(w, http.StatusOK, PaginatedResponse{
		Data:  queries,
		Total: total,
		Page:  int32(filter.Offset/max(filter.Limit, 1)) + 1,
		Limit: int32(filter.Limit),
	})
}

func (h *QueryHandler) Similar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := parseIntQuery(r, "limit", 10)

	similar, err := h.service.SimilarQueries(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err, "failed to find similar queries")
		return
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: similar})
}

func (h *QueryHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		writeDomainError(w, err, "failed to compute statistics")
		return
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: stats})
}

func (h *QueryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, http.StatusBadRequest, "clear requires confirm=true")
		return
	}

	result, err := h.service.ClearQuery(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to clear query")
		return
	}
	respondJSON(w, http.StatusOK, DataResponse{Data: result})
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
