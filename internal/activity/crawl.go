// Package activity implements the Temporal activities the scheduled
// re-crawl worker invokes: one to find queries due for a refresh, one to
// re-run the same orchestration the REST façade calls, so the recurring
// worker never duplicates orchestration logic.
package activity

import (
	"context"
	"log/slog"
	"time"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

// RunCrawlInput names the query a scheduled recrawl should re-run.
type RunCrawlInput struct {
	QueryID      string `json:"queryId"`
	CanonicalURL string `json:"canonicalUrl"`
}

// RunCrawlResult summarizes the crawl an activity attempt produced.
type RunCrawlResult struct {
	TotalRentals      int  `json:"totalRentals"`
	NewRentals        int  `json:"newRentals"`
	NotificationsSent bool `json:"notificationsSent"`
}

// ListDueQueriesInput bounds the scan the poll workflow runs each pass.
type ListDueQueriesInput struct {
	OlderThan time.Time `json:"olderThan"`
	Limit     int       `json:"limit"`
}

// DueQuery is the minimal shape the workflow needs to re-crawl a query:
// its id and the canonical URL to re-fetch.
type DueQuery struct {
	QueryID      string `json:"queryId"`
	CanonicalURL string `json:"canonicalUrl"`
}

// ListDueQueriesResult is the poll activity's output.
type ListDueQueriesResult struct {
	Queries []DueQuery `json:"queries"`
}

// Activities bundles the recrawl worker's Temporal activities. Registered
// as a struct so its exported methods become individually addressable
// activity names, matching the teacher's registration pattern.
type Activities struct {
	crawlService port.CrawlService
	store        port.StateStore
}

func NewActivities(crawlService port.CrawlService, store port.StateStore) *Activities {
	return &Activities{crawlService: crawlService, store: store}
}

// ListDueQueries returns the queries whose lastSeenAt predates the cutoff,
// the set a recrawl pass re-crawls.
func (a *Activities) ListDueQueries(ctx context.Context, input ListDueQueriesInput) (*ListDueQueriesResult, error) {
	queries, err := a.store.ListQueriesDueForRecrawl(ctx, input.OlderThan, input.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]DueQuery, 0, len(queries))
	for _, q := range queries {
		out = append(out, DueQuery{QueryID: q.ID, CanonicalURL: q.CanonicalURL})
	}
	return &ListDueQueriesResult{Queries: out}, nil
}

// RunCrawl re-runs the orchestration for a single query on its canonical
// URL, using the same notifyMode/filteredMode defaults as an un-parameterized
// POST /crawl.
func (a *Activities) RunCrawl(ctx context.Context, input RunCrawlInput) (*RunCrawlResult, error) {
	slog.Info("scheduled recrawl activity starting", "query_id", input.QueryID)

	result, err := a.crawlService.Crawl(ctx, input.CanonicalURL, port.CrawlOptions{
		NotifyMode:   domain.NotifyModeFiltered,
		FilteredMode: domain.FilteredModeSilent,
	})
	if err != nil {
		slog.Error("scheduled recrawl activity failed", "query_id", input.QueryID, "error", err)
		return nil, err
	}

	return &RunCrawlResult{
		TotalRentals:      result.Summary.TotalRentals,
		NewRentals:        result.Summary.NewRentals,
		NotificationsSent: result.Summary.NotificationsSent,
	}, nil
}
