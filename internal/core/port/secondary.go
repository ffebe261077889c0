package port

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

// ============================================================================
// SECONDARY PORTS (Driven)
// These interfaces define what the application NEEDS from the outside world.
// They are IMPLEMENTED by adapters (postgres, webhook, temporal, etc.)
// ============================================================================

// CanonicalResult is the URL Canonicalizer's output.
type CanonicalResult struct {
	QueryID            string   `json:"queryId"`
	Description        string   `json:"description"`
	CanonicalURL       string   `json:"canonicalUrl"`
	EquivalentVariants []string `json:"equivalentVariants"`
	Region             string   `json:"region"`
	Kind               string   `json:"kind"`
	Stations           []string `json:"stations"`
	MetroLine          string   `json:"metroLine"`
	PriceMin           *int     `json:"priceMin"`
	PriceMax           *int     `json:"priceMax"`
	Sections           []string `json:"sections"`
	Rooms              []string `json:"rooms"`
	Floor              string   `json:"floor"`
}

// Canonicalizer normalizes a search URL into a deterministic query identity.
type Canonicalizer interface {
	Canonicalize(rawURL string) (*CanonicalResult, error)
}

// Fetcher performs a retrying, backoff-aware HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// Parser extracts listing records from a fetched document.
type Parser interface {
	Parse(body []byte) ([]domain.Listing, error)
}

// StationResult is one sub-crawl's outcome within a fan-out.
type StationResult struct {
	StationID string
	Listings  []domain.Listing
	Err       error
}

// Fanner splits a multi-station URL into one URL per station and runs the
// bounded-concurrency, paced fan-out described in the Crawl Coordinator.
type Fanner interface {
	FanOut(ctx context.Context, canonical *CanonicalResult, opts FanOutOptions) ([]StationResult, error)
}

// FanOutOptions parameterizes a single fan-out invocation.
type FanOutOptions struct {
	MaxConcurrent        int
	DelayBetweenRequests int // milliseconds
	Headers              map[string]string
}

// PersistSummary is the terminal state recorded for a CrawlSession.
type PersistSummary struct {
	TotalListings     int
	NewListings       int
	NotificationsSent bool
	ErrorCount        int
}

// StateStore is the capability set the orchestrator needs from durable
// storage: upsertQuery, getExistingPropertyIds, openSession,
// persistListings, closeSession, clearQuery, and the REST façade's readers.
type StateStore interface {
	UpsertQuery(ctx context.Context, canonical *CanonicalResult) (*domain.Query, error)
	GetExistingPropertyIDs(ctx context.Context, queryID string) (map[string]struct{}, error)
	OpenSession(ctx context.Context, queryID string, opts json.RawMessage, stationCount int, multiStation bool) (string, error)
	PersistListings(ctx context.Context, sessionID, queryID string, observed []domain.ObservedListing, newIDs map[string]struct{}) error
	CloseSession(ctx context.Context, sessionID string, summary PersistSummary) error
	ClearQuery(ctx context.Context, queryID string) (ClearResult, error)

	GetQuery(ctx context.Context, queryID string) (*domain.Query, error)
	ListQueryRentals(ctx context.Context, queryID string, limit int, sinceDate *string) ([]domain.Listing, error)
	ListQueries(ctx context.Context, filter ListQueriesFilter) ([]*domain.Query, int64, error)
	ListSimilarQueries(ctx context.Context, queryID string, limit int) ([]domain.SimilarQuery, error)
	Statistics(ctx context.Context) (*domain.QueryStatistics, error)

	// ListQueriesDueForRecrawl is consulted by the scheduled re-crawl
	// worker, not the REST façade: it returns queries whose lastSeenAt
	// predates olderThan, up to limit, ordered stalest-first.
	ListQueriesDueForRecrawl(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Query, error)
}

// ClearResult reports how many rows a clearQuery cascade removed.
type ClearResult struct {
	SessionsDeleted       int `json:"sessionsDeleted"`
	QueryListingsDeleted  int `json:"queryListingsDeleted"`
	ListingsDeleted       int `json:"listingsDeleted"`
	MetroDistancesDeleted int `json:"metroDistancesDeleted"`
}

// ListQueriesFilter narrows a ListQueries read.
type ListQueriesFilter struct {
	Region     *string
	SinceDate  *string
	HasRentals *bool
	Limit      int
	Offset     int
}

// NotificationItem is one entry in an ordered Dispatcher batch.
type NotificationItem struct {
	Listing domain.Listing
	Silent  bool
}

// Dispatcher sends ordered webhook payloads with a per-item silent flag.
// Dispatch reports per-item send failures as one aggregate error after
// trying every item; the orchestrator logs that error and does not fail
// the crawl on it (NotificationFailure).
type Dispatcher interface {
	Dispatch(ctx context.Context, queryID string, items []NotificationItem) error
	DispatchError(ctx context.Context, queryID string, err error)
}

