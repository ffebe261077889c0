package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
	"github.com/rentwatch/rentwatch-api/internal/core/service/mocks"
	"github.com/rentwatch/rentwatch-api/internal/policy"
)

func TestOrchestrator_Crawl_SingleStation_NotifiesAll(t *testing.T) {
	canonical := &port.CanonicalResult{
		QueryID:      "region1_stations4232",
		Description:  "region 1, near Central",
		CanonicalURL: "https://example.test/list?region=1&station=4232",
		Region:       "1",
		Kind:         "0",
		Stations:     []string{"4232"},
	}
	canonicalizer := &mocks.MockCanonicalizer{Result: canonical}
	fanner := &mocks.MockFanner{Results: []port.StationResult{
		{StationID: "4232", Listings: []domain.Listing{{ID: "prop-1", Title: "Studio near Central"}}},
	}}
	store := mocks.NewMockStateStore()
	dispatcher := &mocks.MockDispatcher{}

	orch := NewOrchestrator(canonicalizer, fanner, store, dispatcher, policy.New())

	result, err := orch.Crawl(context.Background(), "https://example.test/list?region=1&station=4232", port.CrawlOptions{
		NotifyMode: domain.NotifyModeAll,
	})

	require.NoError(t, err)
	assert.Len(t, result.Rentals, 1)
	assert.Equal(t, 1, result.Summary.NewRentals)
	assert.True(t, result.Summary.NotificationsSent)
	assert.True(t, result.Rentals[0].Notification.WillNotify)
	assert.False(t, result.Rentals[0].Notification.IsSilent)
	assert.Len(t, dispatcher.Dispatched, 1)
}

func TestOrchestrator_Crawl_NotifyModeNone_SendsNothing(t *testing.T) {
	canonical := &port.CanonicalResult{QueryID: "region1", Region: "1"}
	canonicalizer := &mocks.MockCanonicalizer{Result: canonical}
	fanner := &mocks.MockFanner{Results: []port.StationResult{
		{StationID: "", Listings: []domain.Listing{{ID: "prop-1"}}},
	}}
	store := mocks.NewMockStateStore()
	dispatcher := &mocks.MockDispatcher{}

	orch := NewOrchestrator(canonicalizer, fanner, store, dispatcher, policy.New())

	result, err := orch.Crawl(context.Background(), "https://example.test/list?region=1", port.CrawlOptions{
		NotifyMode: domain.NotifyModeNone,
	})

	require.NoError(t, err)
	assert.False(t, result.Summary.NotificationsSent)
	assert.Empty(t, dispatcher.Dispatched)
}

func TestOrchestrator_Crawl_SecondPass_OnlyNewListingsAreNew(t *testing.T) {
	canonical := &port.CanonicalResult{QueryID: "region1", Region: "1"}
	canonicalizer := &mocks.MockCanonicalizer{Result: canonical}
	store := mocks.NewMockStateStore()
	dispatcher := &mocks.MockDispatcher{}

	fanner := &mocks.MockFanner{Results: []port.StationResult{
		{Listings: []domain.Listing{{ID: "prop-1"}}},
	}}
	orch := NewOrchestrator(canonicalizer, fanner, store, dispatcher, policy.New())
	_, err := orch.Crawl(context.Background(), "u", port.CrawlOptions{NotifyMode: domain.NotifyModeAll})
	require.NoError(t, err)

	fanner.Results = []port.StationResult{
		{Listings: []domain.Listing{{ID: "prop-1"}, {ID: "prop-2"}}},
	}
	result, err := orch.Crawl(context.Background(), "u", port.CrawlOptions{NotifyMode: domain.NotifyModeAll})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Summary.TotalRentals)
	assert.Equal(t, 1, result.Summary.NewRentals)
}

func TestOrchestrator_Crawl_PartialStationFailure_StillReturnsResults(t *testing.T) {
	canonical := &port.CanonicalResult{QueryID: "region1", Region: "1", Stations: []string{"1", "2"}}
	canonicalizer := &mocks.MockCanonicalizer{Result: canonical}
	fanner := &mocks.MockFanner{Results: []port.StationResult{
		{StationID: "1", Listings: []domain.Listing{{ID: "prop-1"}}},
		{StationID: "2", Err: assertErr{}},
	}}
	store := mocks.NewMockStateStore()
	dispatcher := &mocks.MockDispatcher{}

	orch := NewOrchestrator(canonicalizer, fanner, store, dispatcher, policy.New())
	result, err := orch.Crawl(context.Background(), "u", port.CrawlOptions{NotifyMode: domain.NotifyModeAll})

	require.NoError(t, err)
	assert.Len(t, result.Rentals, 1)
	assert.Len(t, result.Summary.CrawlErrors, 1)
}

type assertErr struct{}

func (assertErr) Error() string { return "station fetch failed" }

func TestOrchestrator_Crawl_SecondPass_PreviouslySeenListingsAreNotRenotified(t *testing.T) {
	canonical := &port.CanonicalResult{QueryID: "region1", Region: "1"}
	canonicalizer := &mocks.MockCanonicalizer{Result: canonical}
	store := mocks.NewMockStateStore()
	dispatcher := &mocks.MockDispatcher{}

	fanner := &mocks.MockFanner{Results: []port.StationResult{
		{Listings: []domain.Listing{{ID: "prop-1"}}},
	}}
	orch := NewOrchestrator(canonicalizer, fanner, store, dispatcher, policy.New())
	_, err := orch.Crawl(context.Background(), "u", port.CrawlOptions{NotifyMode: domain.NotifyModeFiltered})
	require.NoError(t, err)
	dispatcher.Dispatched = nil

	fanner.Results = []port.StationResult{
		{Listings: []domain.Listing{{ID: "prop-1"}, {ID: "prop-2"}}},
	}
	result, err := orch.Crawl(context.Background(), "u", port.CrawlOptions{NotifyMode: domain.NotifyModeFiltered})
	require.NoError(t, err)

	require.Len(t, dispatcher.Dispatched, 1)
	assert.Len(t, dispatcher.Dispatched[0], 1)
	assert.Equal(t, "prop-2", dispatcher.Dispatched[0][0].Listing.ID)

	var seenOld, seenNew bool
	for _, r := range result.Rentals {
		if r.Listing.ID == "prop-1" {
			seenOld = true
			assert.False(t, r.Notification.WillNotify)
		}
		if r.Listing.ID == "prop-2" {
			seenNew = true
			assert.True(t, r.Notification.WillNotify)
		}
	}
	assert.True(t, seenOld)
	assert.True(t, seenNew)
}

func TestOrchestrator_Crawl_MaxLatest_LimitsCandidatesRegardlessOfNewness(t *testing.T) {
	canonical := &port.CanonicalResult{QueryID: "region1", Region: "1"}
	canonicalizer := &mocks.MockCanonicalizer{Result: canonical}
	store := mocks.NewMockStateStore()
	dispatcher := &mocks.MockDispatcher{}

	fanner := &mocks.MockFanner{Results: []port.StationResult{
		{Listings: []domain.Listing{{ID: "prop-1"}, {ID: "prop-2"}, {ID: "prop-3"}}},
	}}
	orch := NewOrchestrator(canonicalizer, fanner, store, dispatcher, policy.New())

	maxLatest := 1
	result, err := orch.Crawl(context.Background(), "u", port.CrawlOptions{
		NotifyMode: domain.NotifyModeAll,
		MaxLatest:  &maxLatest,
	})
	require.NoError(t, err)

	require.Len(t, dispatcher.Dispatched, 1)
	assert.Len(t, dispatcher.Dispatched[0], 1)
	assert.Equal(t, "prop-1", dispatcher.Dispatched[0][0].Listing.ID)
	assert.Equal(t, 3, result.Summary.TotalRentals)
}
