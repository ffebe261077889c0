// Package policy implements the Distance & Policy Engine: it resolves a
// listing's metroValueText facets into distances, picks the single
// "effective distance" used for filtering, and decides whether and how
// loudly to notify on a listing.
package policy

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

// DefaultWalkingSpeedMetersPerMinute is used to convert a walking-time
// facet ("5 min walk") into meters when the source gives no distance
// directly.
const DefaultWalkingSpeedMetersPerMinute = 80

var (
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*min`)
	metersPattern  = regexp.MustCompile(`(?i)(\d+)\s*m\b`)
	kmPattern      = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*km`)
)

// Engine evaluates the notification policy for an observed listing.
type Engine struct {
	WalkingSpeed int // meters per minute, defaults to DefaultWalkingSpeedMetersPerMinute
}

func New() *Engine {
	return &Engine{WalkingSpeed: DefaultWalkingSpeedMetersPerMinute}
}

// ResolveDistance parses a single metro facet's free-text value into
// meters. Returns nil when the text yields no usable number, which the
// caller must treat as "unknown", never as "far".
func (e *Engine) ResolveDistance(metroValueText string) *int {
	speed := e.WalkingSpeed
	if speed <= 0 {
		speed = DefaultWalkingSpeedMetersPerMinute
	}

	text := strings.TrimSpace(metroValueText)
	if text == "" {
		return nil
	}

	if m := kmPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			meters := int(v * 1000)
			return &meters
		}
	}
	if m := metersPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return &v
		}
	}
	if m := minutesPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			meters := v * speed
			return &meters
		}
	}
	return nil
}

// EffectiveDistance resolves every facet on a listing and returns the
// minimum resolved distance across them. Facets that fail to parse are
// skipped; if none parse, distance is unknown (nil), which is never "far".
func (e *Engine) EffectiveDistance(facets []domain.MetroDistance) *int {
	var min *int
	for _, f := range facets {
		d := f.DistanceMeters
		if d == nil {
			d = e.ResolveDistance(f.MetroValueText)
		}
		if d == nil {
			continue
		}
		if min == nil || *d < *min {
			v := *d
			min = &v
		}
	}
	return min
}

// Evaluate decides whether a listing should be notified on, and whether
// that notification should be silent, per the six-row table:
//
//	notifyMode=none                      -> never notify
//	notifyMode=all                       -> always notify, never silent
//	notifyMode=filtered, filteredMode=none, far       -> suppressed
//	notifyMode=filtered, filteredMode=none, !far      -> notify, not silent
//	notifyMode=filtered, filteredMode=normal, far     -> suppressed
//	notifyMode=filtered, filteredMode=normal, !far    -> notify, not silent
//	notifyMode=filtered, filteredMode=silent, far     -> notify, silent
//	notifyMode=filtered, filteredMode=silent, !far    -> notify, not silent
//
// A listing with unknown distance is never "far" regardless of mode.
func (e *Engine) Evaluate(facets []domain.MetroDistance, notifyMode domain.NotifyMode, filteredMode domain.FilteredMode, filter domain.FilterOptions) domain.Notification {
	distance := e.EffectiveDistance(facets)
	threshold := filter.MRTDistanceThreshold

	isFar := false
	if distance != nil && threshold != nil {
		isFar = *distance > *threshold
	}

	n := domain.Notification{
		DistanceFromMRT:   distance,
		DistanceThreshold: threshold,
		IsFarFromMRT:      isFar,
	}

	switch notifyMode {
	case domain.NotifyModeNone:
		n.WillNotify = false
		return n
	case domain.NotifyModeAll:
		n.WillNotify = true
		n.IsSilent = false
		return n
	case domain.NotifyModeFiltered:
		switch filteredMode {
		case domain.FilteredModeNone:
			n.WillNotify = !isFar
			n.IsSilent = false
		case domain.FilteredModeNormal:
			n.WillNotify = !isFar
			n.IsSilent = false
		case domain.FilteredModeSilent:
			n.WillNotify = true
			n.IsSilent = isFar
		default:
			n.WillNotify = true
		}
		return n
	default:
		n.WillNotify = false
		return n
	}
}
