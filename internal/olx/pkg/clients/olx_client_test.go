package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"olxmarket_api/config/values"
	"olxmarket_api/internal/olx/business/services"
	"olxmarket_api/pkg/logger"
)

type staticTokens struct {
	token        string
	refreshed    string
	refreshCalls int32
}

func (s *staticTokens) Token(_ context.Context, _ int64) (string, error) {
	if atomic.LoadInt32(&s.refreshCalls) > 0 && s.refreshed != "" {
		return s.refreshed, nil
	}
	return s.token, nil
}

func (s *staticTokens) Refresh(_ context.Context, _ int64) (string, error) {
	atomic.AddInt32(&s.refreshCalls, 1)
	return s.refreshed, nil
}

func testVals() values.OlxValues {
	return values.OlxValues{
		Retry: values.RetryConfig{
			InitialDelay: time.Millisecond,
			Multiplier:   1.0,
			MaxAttempts:  3,
		},
		RateLimitRPS: 1000,
	}
}

func testClient(baseURL string, tokens TokenSource) *OlxClient {
	return NewOlxClient(baseURL, tokens, testVals(), logger.NewLogger(io.Discard, "[test]"))
}

func TestDoRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id":"olx-1"}`))
	}))
	defer srv.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := testClient(srv.URL, &staticTokens{token: "tok"}).
		Do(context.Background(), 1, http.MethodGet, "/listings", nil, &out)
	if err != nil {
		t.Fatalf("Do after transient failures: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("server saw %d calls, want 3", got)
	}
	if out.ID != "olx-1" {
		t.Fatalf("out = %+v", out)
	}
}

func TestDoGivesUpAfterAttemptBudget(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := testClient(srv.URL, &staticTokens{token: "tok"}).
		Do(context.Background(), 1, http.MethodGet, "/listings", nil, nil)
	if err == nil {
		t.Fatal("want error after exhausting the retry budget")
	}
	if !services.IsTransient(err) {
		t.Fatalf("exhaustion should still unwrap to the transient cause, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("server saw %d calls, want 3", got)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad category", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := testClient(srv.URL, &staticTokens{token: "tok"}).
		Do(context.Background(), 1, http.MethodPost, "/listings", map[string]string{"title": "x"}, nil)
	if err == nil {
		t.Fatal("want error on 400")
	}
	if services.IsTransient(err) {
		t.Fatalf("4xx must not be transient: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("server saw %d calls, want 1 (no retries)", got)
	}
}

func TestDoRefreshesTokenOnUnauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "stale", refreshed: "fresh"}
	err := testClient(srv.URL, tokens).
		Do(context.Background(), 1, http.MethodGet, "/listings", nil, nil)
	if err != nil {
		t.Fatalf("Do with token refresh: %v", err)
	}
	if got := atomic.LoadInt32(&tokens.refreshCalls); got != 1 {
		t.Fatalf("refresh called %d times, want 1", got)
	}
}

func TestDoUnauthorizedAfterRefreshIsAuthError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	// refresh hands back the same rejected token
	tokens := &staticTokens{token: "stale", refreshed: "stale"}
	err := testClient(srv.URL, tokens).
		Do(context.Background(), 1, http.MethodGet, "/listings", nil, nil)
	if !services.IsAuthError(err) {
		t.Fatalf("want AuthError after failed refresh, got %v", err)
	}
	if got := atomic.LoadInt32(&tokens.refreshCalls); got != 1 {
		t.Fatalf("refresh called %d times, want exactly 1", got)
	}
}

func TestDoHonoursContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := testClient(srv.URL, &staticTokens{token: "tok"}).
		Do(ctx, 1, http.MethodGet, "/listings", nil, nil)
	if err == nil {
		t.Fatal("want error on cancelled context")
	}
}
