package domain

import "time"

// Query is the durable identity of a search against the site.
type Query struct {
	ID           string    `json:"id"`
	Description  string    `json:"description"`
	CanonicalURL string    `json:"canonicalUrl"`
	Region       string    `json:"region"`
	Kind        string    `json:"kind"`
	Stations    []string  `json:"stations"`
	MetroLine   string    `json:"metroLine"`
	PriceMin    *int      `json:"priceMin"`
	PriceMax    *int      `json:"priceMax"`
	Sections    []string  `json:"sections"`
	Rooms       []string  `json:"rooms"`
	Floor       string    `json:"floor"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	LastSeenAt  time.Time `json:"lastSeenAt"`
}

// StationCount mirrors the spec's rule that an empty station list still
// counts as a single logical station for reporting purposes.
func (q *Query) StationCount() int {
	if len(q.Stations) == 0 {
		return 1
	}
	return len(q.Stations)
}

// MultiStation reports whether this query fans out into more than one
// parallel per-station sub-crawl.
func (q *Query) MultiStation() bool {
	return len(q.Stations) > 1
}

// QueryListing links a Query to a Listing it has ever observed.
type QueryListing struct {
	QueryID     string    `json:"queryId"`
	ListingID   string    `json:"listingId"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
}

// QueryStatistics summarizes crawl activity across all queries.
type QueryStatistics struct {
	TotalQueries   int64            `json:"totalQueries"`
	TotalListings  int64            `json:"totalListings"`
	TotalSessions  int64            `json:"totalSessions"`
	ByRegion       map[string]int64 `json:"byRegion"`
	CrawlFrequency map[string]int64 `json:"crawlFrequency"` // bucket label -> count
}

// SimilarQuery is a Query annotated with a similarity score against some
// reference query.
type SimilarQuery struct {
	Query *Query `json:"query"`
	Score int    `json:"score"`
}

// SimilarityScore rates how similar candidate is to ref. Candidates from a
// different region never match; otherwise the score is 50*stationJaccard
// plus 50*priceOverlapFraction, capped at 100.
func SimilarityScore(ref, candidate *Query) int {
	if ref == nil || candidate == nil || ref.Region != candidate.Region {
		return 0
	}

	score := 0.0
	score += 50 * stationJaccard(ref.Stations, candidate.Stations)
	score += 50 * priceOverlapFraction(ref.PriceMin, ref.PriceMax, candidate.PriceMin, candidate.PriceMax)

	if score > 100 {
		score = 100
	}
	return int(score)
}

func stationJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	setA := make(map[string]struct{}, len(a))
	for _, s := range a {
		setA[s] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, s := range b {
		setB[s] = struct{}{}
	}

	intersection := 0
	for s := range setA {
		if _, ok := setB[s]; ok {
			intersection++
		}
	}
	union := len(setA)
	for s := range setB {
		if _, ok := setA[s]; !ok {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// priceOverlapFraction reports what fraction of ref's price range is
// covered by candidate's price range. A missing min counts as 0 and a
// missing max as a very large value, so a missing bound never vetoes the
// overlap.
func priceOverlapFraction(refMin, refMax, candMin, candMax *int) float64 {
	rMin, rMax := rangeOrDefault(refMin, refMax)
	cMin, cMax := rangeOrDefault(candMin, candMax)

	if rMax < rMin || cMax < cMin {
		return 0
	}

	overlapMin := rMin
	if cMin > overlapMin {
		overlapMin = cMin
	}
	overlapMax := rMax
	if cMax < overlapMax {
		overlapMax = cMax
	}
	if overlapMax < overlapMin {
		return 0
	}

	refSpan := rMax - rMin
	if refSpan == 0 {
		return 1
	}
	return float64(overlapMax-overlapMin) / float64(refSpan)
}

func rangeOrDefault(min, max *int) (int, int) {
	const unboundedMin, unboundedMax = 0, 1 << 30
	lo, hi := unboundedMin, unboundedMax
	if min != nil {
		lo = *min
	}
	if max != nil {
		hi = *max
	}
	return lo, hi
}
