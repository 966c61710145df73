package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestClient(opts ...Option) *Client {
	return New(append([]Option{WithRateLimit(1000)}, opts...)...)
}

func TestFetch(t *testing.T) {
	t.Run("returns body on 200", func(t *testing.T) {
		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Write([]byte("<html>ok</html>"))
		}))
		defer srv.Close()

		body, err := newTestClient(WithUserAgent("test-agent")).Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "<html>ok</html>", string(body))
		assert.Equal(t, "test-agent", gotUA)
	})

	t.Run("classifies 404 as permanent http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestClient().Fetch(context.Background(), srv.URL)
		require.Error(t, err)

		var fetchErr *Error
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, KindHTTPStatus, fetchErr.Kind)
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.False(t, fetchErr.Transient())
	})

	t.Run("classifies 503 as transient http status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newTestClient().Fetch(context.Background(), srv.URL)

		var fetchErr *Error
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, KindHTTPStatus, fetchErr.Kind)
		assert.True(t, fetchErr.Transient())
	})

	t.Run("enforces timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		start := time.Now()
		_, err := newTestClient(WithTimeout(50*time.Millisecond)).Fetch(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)

		var fetchErr *Error
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, KindTimeout, fetchErr.Kind)
		assert.True(t, fetchErr.Transient())
	})

	t.Run("classifies refused connection as network", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		_, err := newTestClient().Fetch(context.Background(), url)

		var fetchErr *Error
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, KindNetwork, fetchErr.Kind)
		assert.True(t, fetchErr.Transient())
	})

	t.Run("rejects oversized body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(strings.Repeat("x", 100)))
		}))
		defer srv.Close()

		body, err := newTestClient(WithMaxBodyBytes(10)).Fetch(context.Background(), srv.URL)
		require.Error(t, err)
		assert.Nil(t, body)

		var fetchErr *Error
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, KindBodyTooLarge, fetchErr.Kind)
		assert.Equal(t, int64(10), fetchErr.Limit)
		assert.False(t, fetchErr.Transient())
		assert.Contains(t, err.Error(), "exceeds 10 bytes")
	})

	t.Run("accepts body at the limit", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("0123456789"))
		}))
		defer srv.Close()

		body, err := newTestClient(WithMaxBodyBytes(10)).Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "0123456789", string(body))
	})
}

func TestWithRateLimit(t *testing.T) {
	t.Run("sets requests per second", func(t *testing.T) {
		c := New(WithRateLimit(2.5))
		assert.Equal(t, rate.Limit(2.5), c.limiter.Limit())
	})

	t.Run("non-positive rate keeps the default", func(t *testing.T) {
		for _, rps := range []float64{0, -1} {
			c := New(WithRateLimit(rps))
			assert.Equal(t, rate.Every(time.Second), c.limiter.Limit())
		}
	})
}
