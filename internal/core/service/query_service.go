package service

import (
	"context"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

// QueryService implements port.QueryService, the REST façade's read-side
// and administrative operations.
type QueryService struct {
	canonicalizer port.Canonicalizer
	store         port.StateStore
}

func NewQueryService(canonicalizer port.Canonicalizer, store port.StateStore) *QueryService {
	return &QueryService{canonicalizer: canonicalizer, store: store}
}

func (s *QueryService) ParseQuery(ctx context.Context, rawURL string) (*port.ParseResult, error) {
	canonical, err := s.canonicalizer.Canonicalize(rawURL)
	if err != nil {
		return nil, err
	}
	return &port.ParseResult{
		QueryID:        canonical.QueryID,
		Description:    canonical.Description,
		NormalizedURL:  canonical.CanonicalURL,
		EquivalentURLs: canonical.EquivalentVariants,
		SearchCriteria: *canonical,
	}, nil
}

func (s *QueryService) GetRentals(ctx context.Context, queryID string, limit int, sinceDate *string) (*domain.Query, []domain.Listing, error) {
	query, err := s.store.GetQuery(ctx, queryID)
	if err != nil {
		return nil, nil, err
	}
	listings, err := s.store.ListQueryRentals(ctx, queryID, limit, sinceDate)
	if err != nil {
		return nil, nil, err
	}
	return query, listings, nil
}

func (s *QueryService) ListQueries(ctx context.Context, filter port.ListQueriesFilter) ([]*domain.Query, int64, error) {
	return s.store.ListQueries(ctx, filter)
}

func (s *QueryService) SimilarQueries(ctx context.Context, queryID string, limit int) ([]domain.SimilarQuery, error) {
	return s.store.ListSimilarQueries(ctx, queryID, limit)
}

func (s *QueryService) Statistics(ctx context.Context) (*domain.QueryStatistics, error) {
	return s.store.Statistics(ctx)
}

func (s *QueryService) ClearQuery(ctx context.Context, queryID string) (port.ClearResult, error) {
	return s.store.ClearQuery(ctx, queryID)
}
