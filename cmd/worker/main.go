package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/worker"

	"github.com/rentwatch/rentwatch-api/internal/activity"
	"github.com/rentwatch/rentwatch-api/internal/adapter/driven/postgres"
	temporalAdapter "github.com/rentwatch/rentwatch-api/internal/adapter/driven/temporal"
	"github.com/rentwatch/rentwatch-api/internal/adapter/driven/webhook"
	"github.com/rentwatch/rentwatch-api/internal/canon"
	"github.com/rentwatch/rentwatch-api/internal/config"
	"github.com/rentwatch/rentwatch-api/internal/core/service"
	"github.com/rentwatch/rentwatch-api/internal/fanout"
	"github.com/rentwatch/rentwatch-api/internal/fetch"
	"github.com/rentwatch/rentwatch-api/internal/parse"
	"github.com/rentwatch/rentwatch-api/internal/policy"
	"github.com/rentwatch/rentwatch-api/internal/workflow"

	"github.com/rentwatch/rentwatch-api/pkg/database"
	"github.com/rentwatch/rentwatch-api/pkg/observability"
	temporalClientPkg "github.com/rentwatch/rentwatch-api/pkg/temporal"
)

// main runs the scheduled re-crawl worker: a single Temporal worker
// process that polls for queries due for a refresh and re-runs the same
// CrawlService the REST façade calls. It never scales out beyond one
// process, matching the specification's single-instance non-goal.
func main() {
	observability.InitLogger("info", "json")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPoolFromDSN(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		panic(err)
	}
	defer pool.Close()

	c, err := temporalClientPkg.GetClient()
	if err != nil {
		slog.Error("failed to create temporal client", "error", err)
		panic(err)
	}
	defer temporalClientPkg.Close()

	// Same driven adapters and orchestrator the REST façade wires: the
	// recrawl activity is a thin caller of CrawlService, never a second
	// implementation of the orchestration.
	canonicalizer := canon.New(canon.Config{ListPath: cfg.CanonListPath})
	fetcher := fetch.New(fetch.Config{
		Retries:        cfg.FetcherRetries,
		Backoff:        cfg.FetcherBackoff,
		RequestTimeout: cfg.FetcherRequestTimeout,
	})
	parser := parse.New(cfg.SiteOrigin)
	fanner := fanout.New(fetcher, parser)
	store := postgres.NewStateStore(pool)
	dispatcher := webhook.New(cfg.WebhookURL, cfg.WebhookInterNotificationDelay)
	policyEngine := policy.New()

	orchestrator := service.NewOrchestrator(canonicalizer, fanner, store, dispatcher, policyEngine)
	activities := activity.NewActivities(orchestrator, store)

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflow.RecrawlPollWorkflow)
	w.RegisterActivity(activities)

	go func() {
		slog.Info("starting temporal worker", "task_queue", cfg.TemporalTaskQueue)
		if err := w.Run(worker.InterruptCh()); err != nil {
			slog.Error("worker error", "error", err)
		}
	}()

	cron := cronEveryNHours(cfg.RecrawlInterval)
	pollInput := workflow.RecrawlPollInput{StaleAfter: cfg.RecrawlInterval, Limit: 100}
	if err := temporalAdapter.StartRecrawlPoller(ctx, c, cfg.TemporalTaskQueue, cron, pollInput); err != nil {
		slog.Error("failed to start recrawl poller", "error", err)
	} else {
		slog.Info("recrawl poller started", "cron", cron, "stale_after", cfg.RecrawlInterval)
	}

	<-ctx.Done()
	slog.Info("shutting down worker...")
	w.Stop()
	slog.Info("worker exited")
}

// cronEveryNHours renders a five-field cron expression that fires every N
// hours, where N is the interval truncated to whole hours (at least 1).
// Intervals of 24 hours or more fire once a day at midnight.
func cronEveryNHours(d time.Duration) string {
	hours := int(d.Hours())
	if hours <= 0 {
		hours = 1
	}
	if hours >= 24 {
		return "0 0 * * *"
	}
	return fmt.Sprintf("0 */%d * * *", hours)
}
