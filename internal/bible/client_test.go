package bible

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dpshade/scriptureqa/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const john316 = `{
  "reference": "John 3:16",
  "verses": [{"book_id": "JHN", "book_name": "John", "chapter": 3, "verse": 16,
    "text": "For God so loved the world, that he gave his only begotten Son.\n"}],
  "text": "For God so loved the world, that he gave his only begotten Son.\n",
  "translation_id": "kjv",
  "translation_name": "King James Version"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.BibleConfig{
		BaseURL:     srv.URL,
		Translation: "kjv",
		Timeout:     config.Duration{Duration: timeout},
	})
}

func TestLookup_Success(t *testing.T) {
	var gotPath, gotTranslation string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTranslation = r.URL.Query().Get("translation")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(john316))
	}, time.Second)

	text, ok := c.Lookup(context.Background(), "John 3:16")

	require.True(t, ok)
	assert.Equal(t, "For God so loved the world, that he gave his only begotten Son.", text)
	assert.Equal(t, "/John 3:16", gotPath)
	assert.Equal(t, "kjv", gotTranslation)
}

func TestLookup_NonOKStatusIsAbsence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}, time.Second)

	text, ok := c.Lookup(context.Background(), "Hezekiah 1:1")

	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestLookup_MalformedBodyIsAbsence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}, time.Second)

	_, ok := c.Lookup(context.Background(), "John 3:16")

	assert.False(t, ok)
}

func TestLookup_MissingTextIsAbsence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reference":"John 3:16","verses":[]}`))
	}, time.Second)

	_, ok := c.Lookup(context.Background(), "John 3:16")

	assert.False(t, ok)
}

func TestLookup_TimeoutIsAbsence(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, ok := c.Lookup(context.Background(), "John 3:16")

	assert.False(t, ok)
}

func TestLookup_TransportErrorIsAbsence(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(config.BibleConfig{
		BaseURL:     srv.URL,
		Translation: "kjv",
		Timeout:     config.Duration{Duration: time.Second},
	})

	_, ok := c.Lookup(context.Background(), "John 3:16")

	assert.False(t, ok)
}

func TestLookup_IsStableAcrossCalls(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(john316))
	}, time.Second)

	first, ok1 := c.Lookup(context.Background(), "John 3:16")
	second, ok2 := c.Lookup(context.Background(), "John 3:16")

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, first, second)
	// No caching: both lookups reach the service.
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_StatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}, time.Second)

	_, err := c.Fetch(context.Background(), "John 3:16")

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestFetch_CancelledRateLimitWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(john316))
	}))
	defer srv.Close()
	c := NewClient(config.BibleConfig{
		BaseURL:           srv.URL,
		Translation:       "kjv",
		Timeout:           config.Duration{Duration: time.Second},
		RequestsPerSecond: 0.001,
		Burst:             1,
	})

	_, err := c.Fetch(context.Background(), "John 3:16")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx, "John 3:16")

	assert.Error(t, err)
}

func TestFetch_TimeoutCoversRateLimitWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(john316))
	}))
	defer srv.Close()
	c := NewClient(config.BibleConfig{
		BaseURL:           srv.URL,
		Translation:       "kjv",
		Timeout:           config.Duration{Duration: 100 * time.Millisecond},
		RequestsPerSecond: 0.001,
		Burst:             1,
	})

	_, err := c.Fetch(context.Background(), "John 3:16")
	require.NoError(t, err)

	start := time.Now()
	_, ok := c.Lookup(context.Background(), "Romans 6:23")

	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}
