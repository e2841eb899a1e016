package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClient_FollowsRedirectsUpToLimit(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer ts.Close()

	c, err := New(Config{Timeout: 5 * time.Second, MaxRedirects: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/start", nil)
	resp, err := c.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestClient_StopsAfterMaxRedirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	}))
	defer ts.Close()

	c, _ := New(Config{Timeout: 5 * time.Second, MaxRedirects: 2})
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/loop", nil)
	_, err := c.Do(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "redirects") {
		t.Errorf("expected redirect limit error, got %v", err)
	}
}

func TestClient_RedirectCheckBlocksHop(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://blocked.internal/", http.StatusFound)
	}))
	defer ts.Close()

	blocked := errors.New("destination not allowed")
	c, _ := New(Config{
		Timeout:      5 * time.Second,
		MaxRedirects: 5,
		RedirectCheck: func(req *http.Request) error {
			if req.URL.Host == "blocked.internal" {
				return blocked
			}
			return nil
		},
	})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	_, err := c.Do(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "redirect blocked") {
		t.Errorf("expected redirect to be blocked, got %v", err)
	}
}

func TestClient_NilContext(t *testing.T) {
	c, _ := New(Config{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	if _, err := c.Do(nil, req); err == nil { //nolint:staticcheck
		t.Error("expected error for nil context")
	}
}
