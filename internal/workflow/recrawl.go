// Package workflow holds the Temporal workflow definitions the recrawl
// worker runs. There is one: a cron-scheduled poller that finds every
// query due for a refresh and re-runs the crawl orchestration for each,
// through the same activity wrapper rather than duplicating orchestration
// logic in the workflow.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/rentwatch/rentwatch-api/internal/activity"
)

const (
	// ListDueQueriesActivityName matches Activities.ListDueQueries.
	ListDueQueriesActivityName = "ListDueQueries"
	// RunCrawlActivityName matches Activities.RunCrawl.
	RunCrawlActivityName = "RunCrawl"
)

// RecrawlPollInput parameterizes one poll pass: how stale a query must be
// to qualify, and how many to re-crawl in a single pass.
type RecrawlPollInput struct {
	StaleAfter time.Duration `json:"staleAfter"`
	Limit      int           `json:"limit"`
}

// RecrawlPollOutput reports how many queries this pass re-crawled and how
// many of those re-crawls failed.
type RecrawlPollOutput struct {
	QueriesScanned int `json:"queriesScanned"`
	QueriesFailed  int `json:"queriesFailed"`
	NewRentals     int `json:"newRentals"`
}

// RecrawlPollWorkflow runs one scan-and-recrawl pass. Temporal's
// CronSchedule start option re-invokes this workflow function on its own
// schedule, so the workflow body itself only ever handles one pass; a
// per-query activity failure is logged and does not abort the remaining
// queries in the pass.
func RecrawlPollWorkflow(ctx workflow.Context, input RecrawlPollInput) (*RecrawlPollOutput, error) {
	logger := workflow.GetLogger(ctx)

	shortRetry := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	}
	listCtx := workflow.WithActivityOptions(ctx, shortRetry)

	var due activity.ListDueQueriesResult
	err := workflow.ExecuteActivity(listCtx, ListDueQueriesActivityName, activity.ListDueQueriesInput{
		OlderThan: workflow.Now(ctx).Add(-input.StaleAfter),
		Limit:     input.Limit,
	}).Get(listCtx, &due)
	if err != nil {
		logger.Error("recrawl poll: listing due queries failed", "error", err)
		return nil, err
	}

	crawlRetry := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    5,
		},
	}
	crawlCtx := workflow.WithActivityOptions(ctx, crawlRetry)

	output := &RecrawlPollOutput{QueriesScanned: len(due.Queries)}
	for _, q := range due.Queries {
		var result activity.RunCrawlResult
		err := workflow.ExecuteActivity(crawlCtx, RunCrawlActivityName, activity.RunCrawlInput{
			QueryID:      q.QueryID,
			CanonicalURL: q.CanonicalURL,
		}).Get(crawlCtx, &result)
		if err != nil {
			logger.Error("recrawl poll: crawl failed", "query_id", q.QueryID, "error", err)
			output.QueriesFailed++
			continue
		}
		output.NewRentals += result.NewRentals
	}

	return output, nil
}
