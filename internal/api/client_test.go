package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	cleared bool
}

func (f *fakeTokens) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared = true
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"code":200,"message":"ok","data":{}}`))
	}))
	defer srv.Close()

	t.Run("with token", func(t *testing.T) {
		client := NewClient(srv.URL, 0, WithTokenSource(&fakeTokens{token: "abc123"}))
		if _, err := client.get(context.Background(), "/api/transactions", nil, requestOptions{}); err != nil {
			t.Fatalf("get() error = %v", err)
		}
		if gotAuth != "Bearer abc123" {
			t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer abc123")
		}
	})

	t.Run("without token", func(t *testing.T) {
		client := NewClient(srv.URL, 0, WithTokenSource(&fakeTokens{}))
		if _, err := client.get(context.Background(), "/api/transactions", nil, requestOptions{}); err != nil {
			t.Fatalf("get() error = %v", err)
		}
		if gotAuth != "" {
			t.Errorf("Authorization = %q, want empty", gotAuth)
		}
	})
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":200,"message":"ok","data":{"id":"tx1","type":"expense","amount":50}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 0)
	resp, err := client.get(context.Background(), "/api/transactions/tx1", nil, requestOptions{})
	if err != nil {
		t.Fatalf("get() error = %v", err)
	}
	if resp.Code != 200 || resp.Message != "ok" {
		t.Errorf("envelope = code %d message %q, want 200/ok", resp.Code, resp.Message)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if payload["id"] != "tx1" {
		t.Errorf("data id = %v, want tx1", payload["id"])
	}
}

func TestClient_APIError(t *testing.T) {
	t.Run("server message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":400,"message":"金额无效"}`))
		}))
		defer srv.Close()

		client := NewClient(srv.URL, 0)
		_, err := client.get(context.Background(), "/api/transactions", nil, requestOptions{})

		var apiErr *Error
		if !asError(err, &apiErr) {
			t.Fatalf("error = %v, want *Error", err)
		}
		if apiErr.Kind != KindAPI || apiErr.Status != http.StatusBadRequest {
			t.Errorf("error = kind %s status %d, want api/400", apiErr.Kind, apiErr.Status)
		}
		if apiErr.Message != "金额无效" {
			t.Errorf("message = %q, want server message", apiErr.Message)
		}
	})

	t.Run("fallback message for empty body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		client := NewClient(srv.URL, 0)
		_, err := client.get(context.Background(), "/api/transactions", nil, requestOptions{})

		var apiErr *Error
		if !asError(err, &apiErr) {
			t.Fatalf("error = %v, want *Error", err)
		}
		if apiErr.Message != "请求失败，状态码：500" {
			t.Errorf("message = %q, want status fallback", apiErr.Message)
		}
	})
}

func TestClient_AuthFailurePurgesAndRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":401,"message":"unauthorized"}`))
	}))
	defer srv.Close()

	tokens := &fakeTokens{token: "stale"}
	redirected := false
	client := NewClient(srv.URL, 0,
		WithTokenSource(tokens),
		WithAuthFailureHook(func() { redirected = true }))

	_, err := client.get(context.Background(), "/api/tasks", nil, requestOptions{})

	if !IsAuth(err) {
		t.Fatalf("error = %v, want auth kind", err)
	}
	if !tokens.cleared {
		t.Error("token should be purged on 401")
	}
	if !redirected {
		t.Error("auth failure hook should fire on 401")
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(srv.URL, 0)
	_, err := client.get(context.Background(), "/api/transactions", nil, requestOptions{})

	if !IsTransport(err) {
		t.Fatalf("error = %v, want transport kind", err)
	}
}

func TestCompactQuery(t *testing.T) {
	query := url.Values{}
	query.Set("page", "2")
	query.Set("startDate", "")
	query.Set("type", "expense")

	compacted := compactQuery(query)

	if compacted.Get("page") != "2" || compacted.Get("type") != "expense" {
		t.Errorf("compactQuery() dropped non-empty values: %v", compacted)
	}
	if _, ok := compacted["startDate"]; ok {
		t.Error("compactQuery() should drop empty values")
	}
}

type countingIndicator struct {
	mu    sync.Mutex
	shows int
	hides int
}

func (c *countingIndicator) Show(string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shows++
}

func (c *countingIndicator) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hides++
}

func TestLoadingTracker_RefCounting(t *testing.T) {
	indicator := &countingIndicator{}
	tracker := newLoadingTracker(indicator)

	tracker.begin("a", true)
	tracker.begin("b", true)
	tracker.begin("c", false)
	if indicator.shows != 1 {
		t.Errorf("shows = %d after 3 overlapping begins, want 1", indicator.shows)
	}

	tracker.end()
	tracker.end()
	if indicator.hides != 0 {
		t.Errorf("hides = %d while requests still in flight, want 0", indicator.hides)
	}

	tracker.end()
	if indicator.hides != 1 {
		t.Errorf("hides = %d after last request finished, want 1", indicator.hides)
	}

	// Unbalanced end must not go negative or re-hide
	tracker.end()
	if indicator.hides != 1 {
		t.Errorf("hides = %d after unbalanced end, want 1", indicator.hides)
	}
}

// asError is a tiny errors.As wrapper to keep the call sites short.
func asError(err error, target **Error) bool {
	if err == nil {
		return false
	}
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}
