package publishers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"
)

func TestHTTPPublisherSuccess(t *testing.T) {
	var received nostr.Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("X-Test"); got != "1" {
			t.Errorf("missing header, got %s", got)
		}
		if got := r.Header.Get("X-Nostr-Event-Id"); got != "evt-1" {
			t.Errorf("missing event id header, got %s", got)
		}
		if got := r.Header.Get("X-Source-Link"); got != "https://www.instagram.com/p/abc/" {
			t.Errorf("missing source link header, got %s", got)
		}
		if got := r.Header.Get("X-Nostr-Kind"); got != "1" {
			t.Errorf("missing kind header, got %s", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ep, _ := ParseEndpoint(srv.URL)
	pub, err := newHTTPPublisher(context.Background(), ep, Options{
		Timeout:     2 * time.Second,
		HTTPHeaders: map[string]string{"X-Test": "1"},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}

	if err := pub.Publish(context.Background(), nostr.Event{
		ID:      "evt-1",
		Kind:    nostr.KindTextNote,
		Content: "hi",
		Tags:    nostr.Tags{{"u", "https://www.instagram.com/p/abc/"}},
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if received.ID != "evt-1" || received.Content != "hi" {
		t.Fatalf("server received %+v", received)
	}
}

func TestHTTPPublisherErrorOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	ep, _ := ParseEndpoint(srv.URL)
	pub, err := newHTTPPublisher(context.Background(), ep, Options{Timeout: time.Second}, nil)
	if err != nil {
		t.Fatalf("newHTTPPublisher: %v", err)
	}

	if err := pub.Publish(context.Background(), nostr.Event{}); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}
