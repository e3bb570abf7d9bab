package erp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testConfig(baseURL string, mode AuthMode) Config {
	return Config{
		BaseURL:        baseURL,
		AuthMode:       mode,
		ClientID:       "app",
		ClientSecret:   "s3cret",
		PageSize:       2,
		MinInterval:    time.Millisecond,
		MaxRetries:     2,
		BackoffInitial: time.Millisecond,
		Timeout:        5 * time.Second,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func tokenHandler(w http.ResponseWriter, r *http.Request, issued *int32) bool {
	if r.URL.Path != tokenPath {
		return false
	}
	n := atomic.AddInt32(issued, 1)
	writeJSON(w, map[string]interface{}{
		"code": 0,
		"data": map[string]interface{}{"access_token": fmt.Sprintf("token-%d", n), "expires_in": 7200},
	})
	return true
}

func pageHandler(w http.ResponseWriter, r *http.Request, totalPage int) {
	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	pageNo := int(body["pageNo"].(float64))
	writeJSON(w, map[string]interface{}{
		"code": 0,
		"msg":  "success",
		"data": map[string]interface{}{
			"rows": []map[string]interface{}{
				{"asin": fmt.Sprintf("B00000000%d", pageNo*2-1), "fba_available": 1},
				{"asin": fmt.Sprintf("B00000000%d", pageNo*2), "fba_available": 2},
			},
			"totalPage":  totalPage,
			"totalCount": totalPage * 2,
		},
	})
}

func TestProductAnalyticsPagesWithOAuth(t *testing.T) {
	var issued int32
	var mu sync.Mutex
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenHandler(w, r, &issued) {
			if r.URL.Query().Get("grant_type") != "client_credentials" || r.URL.Query().Get("client_secret") != "s3cret" {
				t.Errorf("unexpected token query: %s", r.URL.RawQuery)
			}
			return
		}
		if r.URL.Path != ProductAnalyticsPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected authorization %q", got)
		}
		mu.Lock()
		pages = append(pages, r.Method)
		mu.Unlock()
		pageHandler(w, r, 3)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, AuthOAuth), zap.NewNop())
	rows, err := c.ProductAnalytics(context.Background(), time.Date(2025, 7, 27, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows over 3 pages, got %d", len(rows))
	}
	if len(pages) != 3 || pages[0] != http.MethodPost {
		t.Fatalf("expected 3 POST pages, got %v", pages)
	}
	if atomic.LoadInt32(&issued) != 1 {
		t.Fatalf("token should be cached, issued %d", atomic.LoadInt32(&issued))
	}
	if _, ok := rows[0]["fba_available"].(json.Number); !ok {
		t.Fatalf("numbers should decode as json.Number, got %T", rows[0]["fba_available"])
	}
}

func TestRefreshesTokenOnceOn401(t *testing.T) {
	var issued, calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenHandler(w, r, &issued) {
			return
		}
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") == "Bearer token-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		pageHandler(w, r, 1)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, AuthOAuth), zap.NewNop())
	rows, err := c.FBAInventory(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 2 || atomic.LoadInt32(&issued) != 2 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("rows=%d issued=%d calls=%d", len(rows), atomic.LoadInt32(&issued), atomic.LoadInt32(&calls))
	}
}

func TestPersistent401IsAuthError(t *testing.T) {
	var issued int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenHandler(w, r, &issued) {
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, AuthOAuth), zap.NewNop())
	_, err := c.WarehouseItems(context.Background())
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if atomic.LoadInt32(&issued) != 2 {
		t.Fatalf("expected exactly one refresh, issued %d tokens", atomic.LoadInt32(&issued))
	}
}

func TestSignedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		params := map[string]string{}
		for k := range q {
			params[k] = q.Get(k)
		}
		if q.Get("sign_method") != "md5" || q.Get("v") != "1.0" || q.Get("client_id") != "app" {
			t.Errorf("missing signing params: %s", r.URL.RawQuery)
		}
		if q.Get("timestamp") != "1700000000" {
			t.Errorf("unexpected timestamp %q", q.Get("timestamp"))
		}
		if q.Get("pageNo") != "1" {
			t.Errorf("business params must be signed too: %s", r.URL.RawQuery)
		}
		if want := Sign(params, "s3cret"); q.Get("sign") != want {
			t.Errorf("sign = %q, want %q", q.Get("sign"), want)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("signed mode must not send a bearer token")
		}
		pageHandler(w, r, 1)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, AuthSign), zap.NewNop())
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	if _, err := c.FetchAll(context.Background(), FBAInventoryPath, nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
}

func TestSignVector(t *testing.T) {
	got := Sign(map[string]string{
		"timestamp": "1700000000",
		"a":         "1",
		"client_id": "app",
		"sign":      "ignored",
	}, "s3cret")
	if got != "3a40a7fe749318812d396b22d7e395f4" {
		t.Fatalf("unexpected sign %q", got)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		pageHandler(w, r, 1)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, AuthSign), zap.NewNop())
	rows, err := c.FetchAll(context.Background(), WarehouseItemsPath, nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(rows) != 2 || atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("rows=%d calls=%d", len(rows), atomic.LoadInt32(&calls))
	}
}

func TestGivesUpAsUpstreamError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, AuthSign), zap.NewNop())
	_, err := c.FetchAll(context.Background(), WarehouseItemsPath, nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", atomic.LoadInt32(&calls))
	}
}

func TestBusinessErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]interface{}{"code": "1001", "msg": "bad date"})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL, AuthSign), zap.NewNop())
	_, err := c.FetchAll(context.Background(), ProductAnalyticsPath, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "1001" {
		t.Fatalf("expected APIError 1001, got %v", err)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("business errors should count as upstream failures, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("business errors must not be retried, got %d calls", atomic.LoadInt32(&calls))
	}
}

func TestRequestsAreSpaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageHandler(w, r, 3)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL, AuthSign)
	cfg.MinInterval = 40 * time.Millisecond
	c := NewClient(cfg, zap.NewNop())

	start := time.Now()
	if _, err := c.FetchAll(context.Background(), ProductAnalyticsPath, nil); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("3 requests finished in %v, expected at least 2 intervals", elapsed)
	}
}

func TestCancelledContextStopsPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageHandler(w, r, 5)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(testConfig(srv.URL, AuthSign), zap.NewNop())
	if _, err := c.FetchAll(ctx, ProductAnalyticsPath, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
