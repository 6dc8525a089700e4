package gerbango

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestUpstreamCallSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items" {
			t.Errorf("Expected path /items, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Expected Accept application/json, got %q", got)
		}
		w.Write([]byte(`{"id":1}`))
	}))
	defer server.Close()

	up := NewUpstream(server.URL, "", nil)
	res, err := up.Call(context.Background(), Operation{Name: "get_item", Path: "/items"}, Request{})
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", res.StatusCode)
	}
}

func TestUpstreamQueryEncodingSorted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "a=1&b=two&c=true" {
			t.Errorf("Expected sorted query, got %q", r.URL.RawQuery)
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	up := NewUpstream(server.URL, "", nil)
	_, err := up.Call(context.Background(),
		Operation{Name: "op", Path: "/x"},
		Request{Args: map[string]any{"c": true, "a": 1, "b": "two"}},
	)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
}

func TestUpstreamClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{http.StatusInternalServerError, KindTransient},
		{http.StatusBadGateway, KindTransient},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadRequest, KindClientError},
		{http.StatusNotFound, KindClientError},
		{http.StatusUnauthorized, KindFatal},
		{http.StatusForbidden, KindFatal},
	}

	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		up := NewUpstream(server.URL, "", nil)
		_, err := up.Call(context.Background(), Operation{Name: "op", Path: "/x"}, Request{})
		if err == nil {
			t.Errorf("Status %d: expected an error", tc.status)
		} else if got := ClassifyError(err); got != tc.kind {
			t.Errorf("Status %d: expected kind %v, got %v", tc.status, tc.kind, got)
		}
		server.Close()
	}
}

func TestUpstreamRetryAfterExtraction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "12")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	up := NewUpstream(server.URL, "", nil)
	_, err := up.Call(context.Background(), Operation{Name: "op", Path: "/x"}, Request{})
	if got := RetryAfterHint(err); got != 12*time.Second {
		t.Errorf("Expected 12s hint, got %v", got)
	}
}

func TestUpstreamCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	up := NewUpstream(server.URL, "", nil)
	_, err := up.Call(ctx, Operation{Name: "op", Path: "/x"}, Request{})
	if ClassifyError(err) != KindCancelled {
		t.Errorf("Expected Cancelled, got %v", err)
	}
}

func TestUpstreamConnectionRefused(t *testing.T) {
	up := NewUpstream("http://127.0.0.1:1", "", nil)
	_, err := up.Call(context.Background(), Operation{Name: "op", Path: "/x"}, Request{})
	if ClassifyError(err) != KindTransient {
		t.Errorf("Expected Transient for a refused connection, got %v", err)
	}
}

func TestUpstreamErrorMessageTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer server.Close()

	up := NewUpstream(server.URL, "", nil)
	_, err := up.Call(context.Background(), Operation{Name: "op", Path: "/x"}, Request{})

	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("Expected *Error")
	}
	if len(e.Message) > 200 {
		t.Errorf("Expected message truncated to 200 chars, got %d", len(e.Message))
	}
}
