// Package merge implements the Merge Engine: it combines per-station
// fan-out results into a single listing set, keyed by PropertyId, unioning
// metroDistance facets for listings seen from more than one station while
// preserving first-seen order.
package merge

import "github.com/rentwatch/rentwatch-api/internal/core/domain"

// Merge dedupes listings across one or more per-station result sets on
// Listing.ID, unioning each duplicate's MetroDistances and keeping the
// order in which each ID was first encountered.
func Merge(stationResults [][]domain.Listing) []domain.Listing {
	order := make([]string, 0)
	byID := make(map[string]domain.Listing)

	for _, listings := range stationResults {
		for _, l := range listings {
			existing, ok := byID[l.ID]
			if !ok {
				byID[l.ID] = l
				order = append(order, l.ID)
				continue
			}
			existing.MetroDistances = domain.MergeMetroDistances(existing.MetroDistances, l.MetroDistances)
			byID[l.ID] = existing
		}
	}

	merged := make([]domain.Listing, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	return merged
}
