// Package mocks provides hand-rolled fakes for the core ports, used by
// service-level unit tests.
package mocks

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

// ============================================================================
// MOCK CANONICALIZER
// ============================================================================

type MockCanonicalizer struct {
	Result *port.CanonicalResult
	Err    error
}

func (m *MockCanonicalizer) Canonicalize(rawURL string) (*port.CanonicalResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// ============================================================================
// MOCK FANNER
// ============================================================================

type MockFanner struct {
	Results []port.StationResult
	Err     error

	CallCount int
}

func (m *MockFanner) FanOut(ctx context.Context, canonical *port.CanonicalResult, opts port.FanOutOptions) ([]port.StationResult, error) {
	m.CallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Results, nil
}

// ============================================================================
// MOCK DISPATCHER
// ============================================================================

type MockDispatcher struct {
	mu sync.Mutex

	Dispatched   [][]port.NotificationItem
	DispatchErr  error
	ErrorsSeen   []error
}

func (m *MockDispatcher) Dispatch(ctx context.Context, queryID string, items []port.NotificationItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DispatchErr != nil {
		return m.DispatchErr
	}
	m.Dispatched = append(m.Dispatched, items)
	return nil
}

func (m *MockDispatcher) DispatchError(ctx context.Context, queryID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorsSeen = append(m.ErrorsSeen, err)
}

// ============================================================================
// MOCK STATE STORE
// ============================================================================

// MockStateStore is an in-memory port.StateStore, keyed on QueryId, good
// enough for exercising Orchestrator and QueryService logic without a
// database.
type MockStateStore struct {
	mu sync.Mutex

	Queries         map[string]*domain.Query
	ExistingIDs     map[string]map[string]struct{}
	Listings        map[string][]domain.Listing
	ClearedQueries  []string

	UpsertErr error
	OpenErr   error
	PersistErr error
	CloseErr  error
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		Queries:     make(map[string]*domain.Query),
		ExistingIDs: make(map[string]map[string]struct{}),
		Listings:    make(map[string][]domain.Listing),
	}
}

func (m *MockStateStore) UpsertQuery(ctx context.Context, canonical *port.CanonicalResult) (*domain.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	q, ok := m.Queries[canonical.QueryID]
	if !ok {
		q = &domain.Query{
			ID:           canonical.QueryID,
			Description:  canonical.Description,
			CanonicalURL: canonical.CanonicalURL,
			Region:       canonical.Region,
			Kind:        canonical.Kind,
			Stations:    canonical.Stations,
			MetroLine:   canonical.MetroLine,
			PriceMin:    canonical.PriceMin,
			PriceMax:    canonical.PriceMax,
			Sections:    canonical.Sections,
			Rooms:       canonical.Rooms,
			Floor:       canonical.Floor,
		}
		m.Queries[canonical.QueryID] = q
	}
	return q, nil
}

func (m *MockStateStore) GetExistingPropertyIDs(ctx context.Context, queryID string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.ExistingIDs[queryID]
	if !ok {
		return map[string]struct{}{}, nil
	}
	return ids, nil
}

func (m *MockStateStore) OpenSession(ctx context.Context, queryID string, opts json.RawMessage, stationCount int, multiStation bool) (string, error) {
	if m.OpenErr != nil {
		return "", m.OpenErr
	}
	return "session-" + queryID, nil
}

func (m *MockStateStore) PersistListings(ctx context.Context, sessionID, queryID string, observed []domain.ObservedListing, newIDs map[string]struct{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PersistErr != nil {
		return m.PersistErr
	}
	ids := m.ExistingIDs[queryID]
	if ids == nil {
		ids = make(map[string]struct{})
	}
	listings := m.Listings[queryID]
	for _, ol := range observed {
		ids[ol.ID] = struct{}{}
		listings = append(listings, ol.Listing)
	}
	m.ExistingIDs[queryID] = ids
	m.Listings[queryID] = listings
	return nil
}

func (m *MockStateStore) CloseSession(ctx context.Context, sessionID string, summary port.PersistSummary) error {
	return m.CloseErr
}

func (m *MockStateStore) ClearQuery(ctx context.Context, queryID string) (port.ClearResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearedQueries = append(m.ClearedQueries, queryID)
	n := len(m.Listings[queryID])
	delete(m.Listings, queryID)
	delete(m.ExistingIDs, queryID)
	delete(m.Queries, queryID)
	return port.ClearResult{ListingsDeleted: n}, nil
}

func (m *MockStateStore) GetQuery(ctx context.Context, queryID string) (*domain.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.Queries[queryID]
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	return q, nil
}

func (m *MockStateStore) ListQueryRentals(ctx context.Context, queryID string, limit int, sinceDate *string) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listings := m.Listings[queryID]
	if limit > 0 && limit < len(listings) {
		listings = listings[:limit]
	}
	return listings, nil
}

func (m *MockStateStore) ListQueries(ctx context.Context, filter port.ListQueriesFilter) ([]*domain.Query, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Query
	for _, q := range m.Queries {
		out = append(out, q)
	}
	return out, int64(len(out)), nil
}

func (m *MockStateStore) ListSimilarQueries(ctx context.Context, queryID string, limit int) ([]domain.SimilarQuery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.Queries[queryID]
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	var out []domain.SimilarQuery
	for id, q := range m.Queries {
		if id == queryID {
			continue
		}
		score := domain.SimilarityScore(ref, q)
		if score > 0 {
			out = append(out, domain.SimilarQuery{Query: q, Score: score})
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStateStore) Statistics(ctx context.Context) (*domain.QueryStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.QueryStatistics{
		TotalQueries: int64(len(m.Queries)),
		ByRegion:     make(map[string]int64),
	}
	for _, q := range m.Queries {
		stats.ByRegion[q.Region]++
	}
	for _, ls := range m.Listings {
		stats.TotalListings += int64(len(ls))
	}
	return stats, nil
}

func (m *MockStateStore) ListQueriesDueForRecrawl(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Query, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []*domain.Query
	for _, q := range m.Queries {
		if q.LastSeenAt.Before(olderThan) {
			due = append(due, q)
		}
	}
	if limit > 0 && limit < len(due) {
		due = due[:limit]
	}
	return due, nil
}
