package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

func TestCanonicalize_BuildsExpectedQueryID(t *testing.T) {
	c := New(Config{ListPath: "/list"})

	result, err := c.Canonicalize("https://example.test/list?region=1&kind=0&station=4233,4232&rentprice=15000,30000")

	require.NoError(t, err)
	assert.Equal(t, "region1_stations4232-4233_price15000,30000", result.QueryID)
}

func TestCanonicalize_EquivalentURLs_ProduceSameQueryID(t *testing.T) {
	c := New(Config{ListPath: "/list"})

	a, err := c.Canonicalize("https://example.test/list?region=1&station=4233,4232")
	require.NoError(t, err)

	b, err := c.Canonicalize("https://example.test/list?region=1&station=4232&station=4233&kind=0")
	require.NoError(t, err)

	assert.Equal(t, a.QueryID, b.QueryID)
}

func TestCanonicalize_RejectsNonListingsURL(t *testing.T) {
	c := New(Config{ListPath: "/list"})

	_, err := c.Canonicalize("https://example.test/other?region=1")

	assert.ErrorIs(t, err, domain.ErrInvalidURL)
}

func TestCanonicalize_RejectsMissingRegion(t *testing.T) {
	c := New(Config{ListPath: "/list"})

	_, err := c.Canonicalize("https://example.test/list?station=1")

	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestCanonicalize_MemoizesResult(t *testing.T) {
	c := New(Config{ListPath: "/list"})
	url := "https://example.test/list?region=1"

	first, err := c.Canonicalize(url)
	require.NoError(t, err)
	second, err := c.Canonicalize(url)
	require.NoError(t, err)

	assert.Same(t, first, second)
}
