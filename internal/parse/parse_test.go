package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `
<html><body>
<div class="listing-item">
  <a class="listing-link" href="/room/123456">link</a>
  <div class="listing-title">Cozy studio near Central station</div>
  <div class="house-type">1R</div>
  <span class="line rooms">1F</span>
  <div class="price">¥80,000</div>
  <span class="tag">pets-ok</span>
  <img src="/img/a.jpg">
  <div class="metro-distance" data-station-id="4232">
    <span class="station-name">Central</span>
    <span class="metro-value">5 min walk</span>
  </div>
</div>
<div class="listing-item">
  <div class="listing-title"></div>
</div>
</body></html>
`

func TestParse_ExtractsListingFields(t *testing.T) {
	p := New("https://example.test")
	listings, err := p.Parse([]byte(samplePage))
	require.NoError(t, err)
	require.Len(t, listings, 1)

	l := listings[0]
	assert.Equal(t, "123456", l.ID)
	assert.Equal(t, "Cozy studio near Central station", l.Title)
	assert.Equal(t, "https://example.test/room/123456", l.Link)
	assert.Equal(t, "1R", l.HouseType)
	assert.Len(t, l.MetroDistances, 1)
}

func TestParse_SkipsListingsWithEmptyTitle(t *testing.T) {
	p := New("")
	listings, err := p.Parse([]byte(samplePage))
	require.NoError(t, err)
	assert.Len(t, listings, 1)
}

func TestParse_AbsolutizesRelativeLinks(t *testing.T) {
	p := New("https://example.test")
	listings, err := p.Parse([]byte(samplePage))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "https://example.test/room/123456", listings[0].Link)
}

func TestParse_LeavesAbsoluteLinksAndBlankOriginAlone(t *testing.T) {
	p := New("")
	listings, err := p.Parse([]byte(samplePage))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "/room/123456", listings[0].Link)

	withOrigin := New("https://example.test")
	assert.Equal(t, "https://other.test/room/1", withOrigin.absolutize("https://other.test/room/1"))
}

func TestDerivePropertyID_PrefersNumericSegment(t *testing.T) {
	assert.Equal(t, "123456", derivePropertyID("/room/123456", "Anything", "Central"))
}

func TestDerivePropertyID_FallsBackToStationComposite(t *testing.T) {
	id := derivePropertyID("/room/abc", "Cozy studio", "Central")
	assert.Equal(t, "cozy-studio-central", id)
}

func TestDerivePropertyID_FallsBackToTitleSlug(t *testing.T) {
	assert.Equal(t, "plain-studio", derivePropertyID("", "Plain Studio", ""))
}

const noLinkIDPage = `
<html><body>
<div class="listing-item">
  <a class="listing-link" href="/rooms/list">browse</a>
  <div class="listing-title">Bright loft</div>
  <div class="metro-distance" data-station-id="9001">
    <span class="station-name">Shibuya</span>
    <span class="metro-value">3 min walk</span>
  </div>
</div>
</body></html>
`

func TestParse_UsesParsedStationNameForPropertyIDWhenLinkHasNoNumericSegment(t *testing.T) {
	p := New("")
	listings, err := p.Parse([]byte(noLinkIDPage))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "bright-loft-shibuya", listings[0].ID)
	assert.Equal(t, "bright-loft-shibuya", listings[0].MetroDistances[0].ListingID)
}
