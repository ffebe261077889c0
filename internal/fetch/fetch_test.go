package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentwatch/rentwatch-api/internal/core/domain"
)

func TestFetch_SucceedsOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	f := New(Config{Backoff: time.Millisecond})
	body, err := f.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(body))
}

func TestFetch_RetriesOnServerErrorThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{Retries: 3, Backoff: time.Millisecond})
	body, err := f.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetch_ReturnsWrappedErrorAfterExhaustingRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{Retries: 2, Backoff: time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_DoublesBackoffOn429(t *testing.T) {
	var mu []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu = append(mu, time.Now())
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(Config{Retries: 3, Backoff: 20 * time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.Len(t, mu, 3)

	firstWait := mu[1].Sub(mu[0])
	secondWait := mu[2].Sub(mu[1])
	assert.GreaterOrEqual(t, secondWait, firstWait*2-5*time.Millisecond)
}

func TestFetch_SetsRequestHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rentwatch-crawler", r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Config{Backoff: time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL, map[string]string{"User-Agent": "rentwatch-crawler"})
	require.NoError(t, err)
}

func TestFetch_AbortsOnContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := New(Config{Retries: 5, Backoff: 50 * time.Millisecond})

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
