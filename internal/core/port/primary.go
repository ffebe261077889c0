package port

import (
	"context"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

// ============================================================================
// PRIMARY PORTS (Driving)
// These interfaces define what the application OFFERS to the outside world.
// They are IMPLEMENTED by the core services.
// They are CALLED by adapters (http handlers, the recrawl worker, tests).
// ============================================================================

// CrawlService defines the primary port for running an orchestration.
type CrawlService interface {
	Crawl(ctx context.Context, rawURL string, opts CrawlOptions) (*CrawlResult, error)
}

// QueryService defines the primary port for the REST façade's read-side
// and administrative operations.
type QueryService interface {
	ParseQuery(ctx context.Context, rawURL string) (*ParseResult, error)
	GetRentals(ctx context.Context, queryID string, limit int, sinceDate *string) (*domain.Query, []domain.Listing, error)
	ListQueries(ctx context.Context, filter ListQueriesFilter) ([]*domain.Query, int64, error)
	SimilarQueries(ctx context.Context, queryID string, limit int) ([]domain.SimilarQuery, error)
	Statistics(ctx context.Context) (*domain.QueryStatistics, error)
	ClearQuery(ctx context.Context, queryID string) (ClearResult, error)
}

// CrawlOptions is the explicit option record replacing the source's ad-hoc
// argument bag for a single crawl invocation.
type CrawlOptions struct {
	MaxLatest           *int                `json:"maxLatest"`
	NotifyMode          domain.NotifyMode   `json:"notifyMode"`
	FilteredMode        domain.FilteredMode `json:"filteredMode"`
	Filter              domain.FilterOptions `json:"filter"`
	MultiStationOptions MultiStationOptions `json:"multiStationOptions"`
}

// MultiStationOptions tunes the Crawl Coordinator's fan-out for a single
// orchestration.
type MultiStationOptions struct {
	MaxConcurrent        *int  `json:"maxConcurrent"`
	DelayBetweenRequests *int  `json:"delayBetweenRequests"`
	MergeResults         *bool `json:"mergeResults"`
	IncludeStationInfo   *bool `json:"includeStationInfo"`
}

// CrawlResult is the Orchestrator's top-level envelope.
type CrawlResult struct {
	Rentals []domain.ObservedListing `json:"rentals"`
	Summary CrawlSummary             `json:"summary"`
}

// CrawlSummary is the result envelope's `summary` block.
type CrawlSummary struct {
	TotalRentals      int                 `json:"totalRentals"`
	NewRentals        int                 `json:"newRentals"`
	NotificationsSent bool                `json:"notificationsSent"`
	NotifyMode        domain.NotifyMode   `json:"notifyMode"`
	FilteredMode      domain.FilteredMode `json:"filteredMode"`
	MultiStation      bool                `json:"multiStation"`
	StationCount      int                 `json:"stationCount"`
	Stations          []string            `json:"stations"`
	CrawlErrors       []string            `json:"crawlErrors"`
}

// ParseResult is the `/query/parse` endpoint's payload.
type ParseResult struct {
	QueryID        string          `json:"queryId"`
	Description    string          `json:"description"`
	NormalizedURL  string          `json:"normalizedUrl"`
	EquivalentURLs []string        `json:"equivalentUrls"`
	SearchCriteria CanonicalResult `json:"searchCriteria"`
}
