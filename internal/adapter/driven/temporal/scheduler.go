// Package temporal starts the single recurring workflow the scheduled
// recrawl worker runs, on the Temporal SDK.
package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/rentwatch/rentwatch-api/internal/workflow"
)

// recrawlPollWorkflowID is fixed rather than per-query: there is exactly
// one poller per deployment, scanning for every query due for a refresh.
const recrawlPollWorkflowID = "rentwatch-recrawl-poller"

// StartRecrawlPoller starts (or, if already running, no-ops against) the
// recurring workflow that scans for queries due for a refresh and
// re-crawls each one. cronSchedule follows the standard five-field cron
// syntax Temporal's CronSchedule start option accepts (e.g. "0 */6 * * *"
// for every six hours). Starting against an already-running cron workflow
// returns WorkflowExecutionAlreadyStartedError, which this treats as success
// so worker restarts are idempotent.
func StartRecrawlPoller(ctx context.Context, c client.Client, taskQueue, cronSchedule string, input workflow.RecrawlPollInput) error {
	options := client.StartWorkflowOptions{
		ID:           recrawlPollWorkflowID,
		TaskQueue:    taskQueue,
		CronSchedule: cronSchedule,
	}

	_, err := c.ExecuteWorkflow(ctx, options, workflow.RecrawlPollWorkflow, input)
	if err != nil {
		var alreadyStarted *client.WorkflowExecutionAlreadyStartedError
		if errors.As(err, &alreadyStarted) {
			return nil
		}
		return fmt.Errorf("failed to start recrawl poller: %w", err)
	}
	return nil
}
