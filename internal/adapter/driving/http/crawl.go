package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
	"github.com/rentwatch/rentwatch-api/pkg/apperror"
	"github.com/rentwatch/rentwatch-api/pkg/validation"
)

// CrawlHandler handles the crawl-triggering endpoint.
type CrawlHandler struct {
	service port.CrawlService
}

func NewCrawlHandler(service port.CrawlService) *CrawlHandler {
	return &CrawlHandler{service: service}
}

func (h *CrawlHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Crawl)
	return r
}

type crawlRequest struct {
	URL          string `json:"url"`
	MaxLatest    *int   `json:"maxLatest"`
	NotifyMode   string `json:"notifyMode"`
	FilteredMode string `json:"filteredMode"`
	Filter       *struct {
		MRTDistanceThreshold *int `json:"mrtDistanceThreshold"`
	} `json:"filter"`
	MultiStationOptions *struct {
		MaxConcurrent        *int  `json:"maxConcurrent"`
		DelayBetweenRequests *int  `json:"delayBetweenRequests"`
		MergeResults         *bool `json:"mergeResults"`
		IncludeStationInfo   *bool `json:"includeStationInfo"`
	} `json:"multiStationOptions"`
}

func (h *CrawlHandler) Crawl(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	v := validation.New()
	v.Required("url", req.URL)
	v.If(req.NotifyMode != "", func(v *validation.Validator) {
		v.Enum("notifyMode", req.NotifyMode, []string{"all", "filtered", "none"})
	})
	v.If(req.FilteredMode != "", func(v *validation.Validator) {
		v.Enum("filteredMode", req.FilteredMode, []string{"normal", "silent", "none"})
	})
	if v.HasErrors() {
		respondError(w, http.StatusBadRequest, v.Error().Message)
		return
	}

	notifyMode := domain.NotifyMode(req.NotifyMode)
	if notifyMode == "" {
		notifyMode = domain.NotifyModeFiltered
	}
	filteredMode := domain.FilteredMode(req.FilteredMode)
	if filteredMode == "" {
		filteredMode = domain.FilteredModeSilent
	}

	var filter domain.FilterOptions
	if req.Filter != nil {
		filter.MRTDistanceThreshold = req.Filter.MRTDistanceThreshold
	}

	var multiStation port.MultiStationOptions
	if req.MultiStationOptions != nil {
		multiStation = port.MultiStationOptions{
			MaxConcurrent:        req.MultiStationOptions.MaxConcurrent,
			DelayBetweenRequests: req.MultiStationOptions.DelayBetweenRequests,
			MergeResults:         req.MultiStationOptions.MergeResults,
			IncludeStationInfo:   req.MultiStationOptions.IncludeStationInfo,
		}
	}

	opts := port.CrawlOptions{
		MaxLatest:           req.MaxLatest,
		NotifyMode:          notifyMode,
		FilteredMode:        filteredMode,
		Filter:              filter,
		MultiStationOptions: multiStation,
	}

	result, err := h.service.Crawl(ctx, req.URL, opts)
	if err != nil {
		writeDomainError(w, err, "crawl failed")
		return
	}

	respondJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: result})
}

func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	appErr := apperror.MapDomainError(err)
	if appErr != nil {
		respondError(w, appErr.HTTPStatus, appErr.Message)
		return
	}
	slog.Error(fallback, "error", err)
	respondError(w, http.StatusInternalServerError, fallback)
}
