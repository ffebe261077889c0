package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
	"github.com/rentwatch/rentwatch-api/internal/fanout"
	"github.com/rentwatch/rentwatch-api/internal/merge"
	"github.com/rentwatch/rentwatch-api/internal/policy"
)

// Orchestrator implements port.CrawlService, composing the Canonicalizer,
// Crawl Coordinator, Merge Engine, Distance & Policy Engine, State Store
// and Notification Dispatcher into a single crawl run.
type Orchestrator struct {
	canonicalizer port.Canonicalizer
	fanner        port.Fanner
	store         port.StateStore
	dispatcher    port.Dispatcher
	policy        *policy.Engine
}

func NewOrchestrator(
	canonicalizer port.Canonicalizer,
	fanner port.Fanner,
	store port.StateStore,
	dispatcher port.Dispatcher,
	policyEngine *policy.Engine,
) *Orchestrator {
	if policyEngine == nil {
		policyEngine = policy.New()
	}
	return &Orchestrator{
		canonicalizer: canonicalizer,
		fanner:        fanner,
		store:         store,
		dispatcher:    dispatcher,
		policy:        policyEngine,
	}
}

func (o *Orchestrator) Crawl(ctx context.Context, rawURL string, opts port.CrawlOptions) (result *port.CrawlResult, err error) {
	errNotifyID := rawURL
	defer func() {
		if err != nil && opts.NotifyMode != domain.NotifyModeNone {
			o.dispatcher.DispatchError(ctx, errNotifyID, err)
		}
	}()

	canonical, err := o.canonicalizer.Canonicalize(rawURL)
	if err != nil {
		return nil, err
	}

	query, err := o.store.UpsertQuery(ctx, canonical)
	if err != nil {
		return nil, err
	}
	errNotifyID = query.ID

	existingIDs, err := o.store.GetExistingPropertyIDs(ctx, query.ID)
	if err != nil {
		return nil, err
	}

	optsJSON, err := json.Marshal(opts)
	if err != nil {
		optsJSON = json.RawMessage("{}")
	}

	sessionID, err := o.store.OpenSession(ctx, query.ID, optsJSON, query.StationCount(), query.MultiStation())
	if err != nil {
		return nil, err
	}

	fanOutOpts := buildFanOutOptions(opts.MultiStationOptions)
	stationResults, err := o.fanner.FanOut(ctx, canonical, fanOutOpts)
	if err != nil {
		return nil, err
	}
	crawlErrors := fanout.CollectErrors(stationResults)

	var perStation [][]domain.Listing
	for _, r := range stationResults {
		if r.Err == nil {
			perStation = append(perStation, r.Listings)
		}
	}
	merged := merge.Merge(perStation)

	observed := make([]domain.ObservedListing, 0, len(merged))
	newIDs := make(map[string]struct{})
	now := time.Now()
	for _, l := range merged {
		l.FirstSeenAt = now
		l.LastSeenAt = now
		observed = append(observed, domain.ObservedListing{Listing: l})
		if _, ok := existingIDs[l.ID]; !ok {
			newIDs[l.ID] = struct{}{}
		}
	}

	// The candidate subset is what the Policy Engine may actually notify
	// on: either the first maxLatest observed listings, or those not
	// already known for this query. Every other observed listing still
	// gets its distance/threshold metadata computed, but is evaluated as
	// notifyMode none and so is never notified.
	isCandidate := make([]bool, len(observed))
	if opts.MaxLatest != nil {
		n := *opts.MaxLatest
		if n > len(observed) {
			n = len(observed)
		}
		for i := 0; i < n; i++ {
			isCandidate[i] = true
		}
	} else {
		for i, ol := range observed {
			if _, ok := newIDs[ol.Listing.ID]; ok {
				isCandidate[i] = true
			}
		}
	}
	for i, ol := range observed {
		notifyMode := opts.NotifyMode
		if !isCandidate[i] {
			notifyMode = domain.NotifyModeNone
		}
		observed[i].Notification = o.policy.Evaluate(ol.Listing.MetroDistances, notifyMode, opts.FilteredMode, opts.Filter)
	}

	if err := o.store.PersistListings(ctx, sessionID, query.ID, observed, newIDs); err != nil {
		return nil, err
	}

	var toNotify []port.NotificationItem
	for _, ol := range observed {
		if ol.Notification.WillNotify {
			toNotify = append(toNotify, port.NotificationItem{Listing: ol.Listing, Silent: ol.Notification.IsSilent})
		}
	}

	// notificationsSent records intent, not delivery: it flips true as soon
	// as a notification is attempted and never flips back on a dispatch
	// failure, which is logged and swallowed rather than surfaced here.
	notificationsSent := len(toNotify) > 0
	if notificationsSent {
		if err := o.dispatcher.Dispatch(ctx, query.ID, toNotify); err != nil {
			o.dispatcher.DispatchError(ctx, query.ID, err)
			slog.Error("notification dispatch failed", "query_id", query.ID, "error", err)
		}
	}

	summary := port.PersistSummary{
		TotalListings:     len(observed),
		NewListings:       len(newIDs),
		NotificationsSent: notificationsSent,
		ErrorCount:        len(crawlErrors),
	}
	if err := o.store.CloseSession(ctx, sessionID, summary); err != nil {
		return nil, err
	}

	return &port.CrawlResult{
		Rentals: observed,
		Summary: port.CrawlSummary{
			TotalRentals:      len(observed),
			NewRentals:        len(newIDs),
			NotificationsSent: notificationsSent,
			NotifyMode:        opts.NotifyMode,
			FilteredMode:      opts.FilteredMode,
			MultiStation:      query.MultiStation(),
			StationCount:      query.StationCount(),
			Stations:          query.Stations,
			CrawlErrors:       crawlErrors,
		},
	}, nil
}

func buildFanOutOptions(opts port.MultiStationOptions) port.FanOutOptions {
	out := port.FanOutOptions{
		MaxConcurrent:        fanout.DefaultMaxConcurrent,
		DelayBetweenRequests: fanout.DefaultDelayBetweenRequests,
	}
	if opts.MaxConcurrent != nil {
		out.MaxConcurrent = *opts.MaxConcurrent
	}
	if opts.DelayBetweenRequests != nil {
		out.DelayBetweenRequests = *opts.DelayBetweenRequests
	}
	return out
}
