package crawler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.DefaultTimeout = 5 * time.Second
	return cfg
}

func TestFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><body><h1>Hello</h1></body></html>"))
	}))
	defer ts.Close()

	page, err := New(testConfig()).Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.True(t, page.IsSuccess())
	assert.Equal(t, ts.URL, page.URL)
	assert.Contains(t, string(page.Body), "<h1>Hello</h1>")
	assert.Contains(t, page.ContentType, "text/html")
	assert.Greater(t, page.ResponseTime, time.Duration(0))
}

func TestFetchStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{name: "not_found", statusCode: http.StatusNotFound},
		{name: "too_many_requests", statusCode: http.StatusTooManyRequests},
		{name: "server_error", statusCode: http.StatusInternalServerError},
		{name: "forbidden", statusCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte("<html><body>error page</body></html>"))
			}))
			defer ts.Close()

			page, err := New(testConfig()).Fetch(context.Background(), ts.URL)
			require.NoError(t, err, "HTTP error statuses are returned as pages")
			assert.Equal(t, tt.statusCode, page.StatusCode)
			assert.False(t, page.IsSuccess())
			assert.Contains(t, string(page.Body), "error page")
		})
	}
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	page, err := New(testConfig()).Fetch(context.Background(), ts.URL+"/old")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, ts.URL+"/old", page.URL)
	assert.Equal(t, ts.URL+"/new", page.FinalURL)
}

func TestFetchSendsHeaders(t *testing.T) {
	var gotUA, gotLang, gotCookie string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotLang = r.Header.Get("Accept-Language")
		gotCookie = r.Header.Get("Cookie")
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	cfg := testConfig()
	cfg.UserAgent = "TestAgent/1.0"
	c := New(cfg)

	_, err := c.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, "TestAgent/1.0", gotUA)
	assert.Equal(t, cfg.AcceptLanguage, gotLang)
	assert.Empty(t, gotCookie, "cookies must not carry over between fetches")
}

func TestFetchTransportFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	page, err := New(testConfig()).Fetch(context.Background(), "http://"+addr+"/p/1")
	assert.Nil(t, page)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 0, fetchErr.StatusCode)
	assert.Equal(t, "http://"+addr+"/p/1", fetchErr.URL)
}

func TestFetchInvalidURL(t *testing.T) {
	tests := []string{"", "not a url", "/relative/path", "http://"}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := New(testConfig()).Fetch(context.Background(), raw)
			var fetchErr *FetchError
			assert.ErrorAs(t, err, &fetchErr)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("slow"))
	}))
	defer ts.Close()

	cfg := testConfig()
	cfg.DefaultTimeout = 50 * time.Millisecond

	_, err := New(cfg).Fetch(context.Background(), ts.URL)
	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestFetchContextCancellation(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte("late"))
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := New(testConfig()).Fetch(ctx, ts.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchCancellationAbortsRequest(t *testing.T) {
	aborted := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(aborted)
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	cfg := testConfig()
	cfg.DefaultTimeout = 30 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(cfg).Fetch(ctx, ts.URL)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("request kept running after the context ended")
	}
}

func TestFetchAlreadyCancelled(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig()).Fetch(ctx, ts.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestFetchRateLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	cfg := testConfig()
	cfg.RateLimit = 10
	c := New(cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), ts.URL)
		require.NoError(t, err)
	}
	// Burst of one: the second and third requests wait ~100ms each
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestNewWithNilConfig(t *testing.T) {
	c := New(nil, "worker-1")
	assert.Equal(t, DefaultConfig().UserAgent, c.GetUserAgent())
	assert.Equal(t, 30*time.Second, c.Config().DefaultTimeout)
}

func TestFetchErrorUnwrap(t *testing.T) {
	base := errors.New("connection reset")
	err := &FetchError{URL: "https://comp.example", StatusCode: 502, Err: base}

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "status 502")
}
