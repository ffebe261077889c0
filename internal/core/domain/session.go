package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CrawlSession is one crawl event for a Query.
type CrawlSession struct {
	ID                uuid.UUID       `json:"id"`
	QueryID           string          `json:"queryId"`
	StartedAt         time.Time       `json:"startedAt"`
	FinishedAt        *time.Time      `json:"finishedAt"`
	StationCount      int             `json:"stationCount"`
	MultiStation      bool            `json:"multiStation"`
	TotalListings     int             `json:"totalListings"`
	NewListings       int             `json:"newListings"`
	NotificationsSent bool            `json:"notificationsSent"`
	ErrorCount        int             `json:"errorCount"`
	Options           json.RawMessage `json:"options"`
}

// Interrupted reports whether a session never reached closeSession, i.e.
// finishedAt is still unset. Statistics does not look at finishedAt: its
// TotalSessions counts interrupted sessions together with finished ones.
func (s *CrawlSession) Interrupted() bool {
	return s.FinishedAt == nil
}
