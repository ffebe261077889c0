// Package fanout implements the Crawl Coordinator: it splits a
// multi-station query into one sub-crawl per station and runs them with
// bounded concurrency and inter-request pacing, station-id-ascending.
package fanout

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

const (
	DefaultMaxConcurrent        = 3
	DefaultDelayBetweenRequests = 1000 // milliseconds
)

// Fanner implements port.Fanner over a Fetcher and Parser pair, running
// one fetch+parse per station.
type Fanner struct {
	fetcher port.Fetcher
	parser  port.Parser
}

func New(fetcher port.Fetcher, parser port.Parser) *Fanner {
	return &Fanner{fetcher: fetcher, parser: parser}
}

func (f *Fanner) FanOut(ctx context.Context, canonical *port.CanonicalResult, opts port.FanOutOptions) ([]port.StationResult, error) {
	stations := make([]string, len(canonical.Stations))
	copy(stations, canonical.Stations)
	sort.Strings(stations)

	if len(stations) == 0 {
		stations = []string{""}
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	delay := time.Duration(opts.DelayBetweenRequests) * time.Millisecond
	if opts.DelayBetweenRequests <= 0 {
		delay = DefaultDelayBetweenRequests * time.Millisecond
	}

	results := make([]port.StationResult, len(stations))
	sem := make(chan struct{}, maxConcurrent)
	group, gctx := errgroup.WithContext(ctx)

	var pacingMu sync.Mutex
	var lastDispatch time.Time

	for i, stationID := range stations {
		i, stationID := i, stationID
		group.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			pacingMu.Lock()
			wait := time.Until(lastDispatch.Add(delay))
			if wait > 0 {
				pacingMu.Unlock()
				select {
				case <-time.After(wait):
				case <-gctx.Done():
					return gctx.Err()
				}
				pacingMu.Lock()
			}
			lastDispatch = time.Now()
			pacingMu.Unlock()

			url := stationURL(canonical.CanonicalURL, stationID)
			body, err := f.fetcher.Fetch(gctx, url, opts.Headers)
			if err != nil {
				results[i] = port.StationResult{StationID: stationID, Err: err}
				return nil
			}

			listings, err := f.parser.Parse(body)
			if err != nil {
				results[i] = port.StationResult{StationID: stationID, Err: err}
				return nil
			}

			results[i] = port.StationResult{StationID: stationID, Listings: listings}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// stationURL rewrites a canonical URL's station parameter to a single id,
// used for the per-station sub-crawl requests the Coordinator issues.
func stationURL(canonicalURL, stationID string) string {
	if stationID == "" {
		return canonicalURL
	}
	if strings.Contains(canonicalURL, "station=") {
		idx := strings.Index(canonicalURL, "station=")
		end := strings.IndexByte(canonicalURL[idx:], '&')
		if end == -1 {
			return canonicalURL[:idx] + "station=" + stationID
		}
		return canonicalURL[:idx] + "station=" + stationID + canonicalURL[idx+end:]
	}
	sep := "?"
	if strings.Contains(canonicalURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sstation=%s", canonicalURL, sep, stationID)
}

// ErrAggregate summarizes the per-station errors a fan-out partially
// failed with.
type ErrAggregate struct {
	Failures map[string]error
}

func (e *ErrAggregate) Error() string {
	var parts []string
	for station, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", station, err))
	}
	return "fan-out errors: " + strings.Join(parts, "; ")
}

// CollectErrors extracts the per-station failures from a result set,
// leaving the orchestrator free to proceed with the listings it did get.
func CollectErrors(results []port.StationResult) []string {
	var errs []string
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Sprintf("station %s: %v", r.StationID, r.Err))
		}
	}
	return errs
}
