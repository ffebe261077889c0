package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

func TestMerge_DedupesByID_PreservesFirstSeenOrder(t *testing.T) {
	stationA := []domain.Listing{{ID: "p1", Title: "Studio A"}, {ID: "p2", Title: "Studio B"}}
	stationB := []domain.Listing{{ID: "p2", Title: "Studio B"}, {ID: "p3", Title: "Studio C"}}

	merged := Merge([][]domain.Listing{stationA, stationB})

	assert.Len(t, merged, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, idsOf(merged))
}

func TestMerge_UnionsMetroDistanceFacets(t *testing.T) {
	stationIDA, stationIDB := "4232", "4233"
	stationA := []domain.Listing{{
		ID:             "p1",
		MetroDistances: []domain.MetroDistance{{ListingID: "p1", StationID: &stationIDA, MetroValueText: "5 min"}},
	}}
	stationB := []domain.Listing{{
		ID:             "p1",
		MetroDistances: []domain.MetroDistance{{ListingID: "p1", StationID: &stationIDB, MetroValueText: "8 min"}},
	}}

	merged := Merge([][]domain.Listing{stationA, stationB})

	assert.Len(t, merged, 1)
	assert.Len(t, merged[0].MetroDistances, 2)
}

func idsOf(listings []domain.Listing) []string {
	ids := make([]string, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	return ids
}
