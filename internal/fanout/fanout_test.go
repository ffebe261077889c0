package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
	"github.com/rentwatch/rentwatch-api/internal/core/port"
)

// boundedFetcher tracks the high-water mark of concurrently in-flight
// Fetch calls, the property spec.md §8 names as testable.
type boundedFetcher struct {
	inFlight  int32
	maxSeen   int32
	failURLs  map[string]error
	fetchTime time.Duration
}

func (f *boundedFetcher) Fetch(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	if f.fetchTime > 0 {
		time.Sleep(f.fetchTime)
	}
	if err, ok := f.failURLs[url]; ok {
		return nil, err
	}
	return []byte(url), nil
}

type echoParser struct{}

func (echoParser) Parse(body []byte) ([]domain.Listing, error) {
	return []domain.Listing{{ID: string(body)}}, nil
}

func TestFanOut_NeverExceedsMaxConcurrent(t *testing.T) {
	fetcher := &boundedFetcher{fetchTime: 10 * time.Millisecond}
	fanner := New(fetcher, echoParser{})

	canonical := &port.CanonicalResult{
		CanonicalURL: "https://example.test/list?region=1",
		Stations:     []string{"5", "1", "9", "2", "7", "3"},
	}

	_, err := fanner.FanOut(context.Background(), canonical, port.FanOutOptions{
		MaxConcurrent:        2,
		DelayBetweenRequests: 1,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, int(atomic.LoadInt32(&fetcher.maxSeen)), 2)
}

func TestFanOut_OrdersResultsByAscendingStationID(t *testing.T) {
	fetcher := &boundedFetcher{}
	fanner := New(fetcher, echoParser{})

	canonical := &port.CanonicalResult{
		CanonicalURL: "https://example.test/list?region=1",
		Stations:     []string{"30", "10", "20"},
	}

	results, err := fanner.FanOut(context.Background(), canonical, port.FanOutOptions{MaxConcurrent: 3, DelayBetweenRequests: 1})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"10", "20", "30"}, []string{results[0].StationID, results[1].StationID, results[2].StationID})
}

func TestFanOut_SingleStationWhenCanonicalHasNone(t *testing.T) {
	fetcher := &boundedFetcher{}
	fanner := New(fetcher, echoParser{})

	canonical := &port.CanonicalResult{CanonicalURL: "https://example.test/list?region=1"}

	results, err := fanner.FanOut(context.Background(), canonical, port.FanOutOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "", results[0].StationID)
}

func TestFanOut_PerStationFailureDoesNotAbortOthers(t *testing.T) {
	fetcher := &boundedFetcher{failURLs: map[string]error{
		"https://example.test/list?region=1&station=2": errors.New("boom"),
	}}
	fanner := New(fetcher, echoParser{})

	canonical := &port.CanonicalResult{
		CanonicalURL: "https://example.test/list?region=1",
		Stations:     []string{"1", "2"},
	}

	results, err := fanner.FanOut(context.Background(), canonical, port.FanOutOptions{MaxConcurrent: 2, DelayBetweenRequests: 1})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Nil(t, results[0].Err)
	assert.Error(t, results[1].Err)

	errs := CollectErrors(results)
	assert.Len(t, errs, 1)
}

func TestFanOut_RespectsPacingDelay(t *testing.T) {
	fetcher := &boundedFetcher{}
	fanner := New(fetcher, echoParser{})

	canonical := &port.CanonicalResult{
		CanonicalURL: "https://example.test/list?region=1",
		Stations:     []string{"1", "2"},
	}

	start := time.Now()
	_, err := fanner.FanOut(context.Background(), canonical, port.FanOutOptions{
		MaxConcurrent:        1,
		DelayBetweenRequests: 50,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
