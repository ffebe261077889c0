package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

func ptr(v int) *int { return &v }

func TestResolveDistance(t *testing.T) {
	e := New()

	assert.Equal(t, 400, *e.ResolveDistance("5 min walk"))
	assert.Equal(t, 350, *e.ResolveDistance("350m"))
	assert.Equal(t, 1500, *e.ResolveDistance("1.5km"))
	assert.Nil(t, e.ResolveDistance(""))
	assert.Nil(t, e.ResolveDistance("nearby"))
}

func TestEffectiveDistance_TakesMinimumAcrossFacets(t *testing.T) {
	e := New()
	facets := []domain.MetroDistance{
		{MetroValueText: "10 min walk"}, // 800m
		{MetroValueText: "300m"},
		{MetroValueText: "unknown"},
	}
	d := e.EffectiveDistance(facets)
	assert.Equal(t, 300, *d)
}

func TestEffectiveDistance_AllUnknown_IsNil(t *testing.T) {
	e := New()
	d := e.EffectiveDistance([]domain.MetroDistance{{MetroValueText: "n/a"}})
	assert.Nil(t, d)
}

func TestEvaluate_SixRowTable(t *testing.T) {
	e := New()
	threshold := 500
	farFacets := []domain.MetroDistance{{DistanceMeters: ptr(900)}}
	nearFacets := []domain.MetroDistance{{DistanceMeters: ptr(100)}}

	cases := []struct {
		name         string
		facets       []domain.MetroDistance
		notifyMode   domain.NotifyMode
		filteredMode domain.FilteredMode
		wantNotify   bool
		wantSilent   bool
	}{
		{"none always suppresses", farFacets, domain.NotifyModeNone, domain.FilteredModeNormal, false, false},
		{"all always notifies, far", farFacets, domain.NotifyModeAll, domain.FilteredModeNormal, true, false},
		{"all always notifies, near", nearFacets, domain.NotifyModeAll, domain.FilteredModeNormal, true, false},
		{"filtered+none suppresses far", farFacets, domain.NotifyModeFiltered, domain.FilteredModeNone, false, false},
		{"filtered+none notifies near", nearFacets, domain.NotifyModeFiltered, domain.FilteredModeNone, true, false},
		{"filtered+normal suppresses far", farFacets, domain.NotifyModeFiltered, domain.FilteredModeNormal, false, false},
		{"filtered+normal notifies near", nearFacets, domain.NotifyModeFiltered, domain.FilteredModeNormal, true, false},
		{"filtered+silent silences far", farFacets, domain.NotifyModeFiltered, domain.FilteredModeSilent, true, true},
		{"filtered+silent notifies near normally", nearFacets, domain.NotifyModeFiltered, domain.FilteredModeSilent, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := e.Evaluate(tc.facets, tc.notifyMode, tc.filteredMode, domain.FilterOptions{MRTDistanceThreshold: &threshold})
			assert.Equal(t, tc.wantNotify, n.WillNotify, "WillNotify")
			assert.Equal(t, tc.wantSilent, n.IsSilent, "IsSilent")
		})
	}
}

func TestEvaluate_UnknownDistanceIsNeverFar(t *testing.T) {
	e := New()
	threshold := 500
	n := e.Evaluate(nil, domain.NotifyModeFiltered, domain.FilteredModeNormal, domain.FilterOptions{MRTDistanceThreshold: &threshold})
	assert.False(t, n.IsFarFromMRT)
	assert.True(t, n.WillNotify)
}
