package notifications

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"murmur/internal/config"
)

func TestNoopWhenTopicUnset(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""

	svc := NewService(&cfg)
	if _, ok := svc.(noopService); !ok {
		t.Fatalf("expected noop service, got %T", svc)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("noop TestNotification: %v", err)
	}
}

func TestItemDroppedSendsHeaders(t *testing.T) {
	var gotTitle, gotTags, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := NewService(&cfg)
	err := svc.NotifyItemDropped(context.Background(), "item-1", "transcription", "server kept failing")
	if err != nil {
		t.Fatalf("NotifyItemDropped: %v", err)
	}
	if gotTitle != "Murmur - Sync Item Dropped" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if !strings.Contains(gotTags, "dropped") {
		t.Fatalf("expected dropped tag, got %q", gotTags)
	}
	if !strings.Contains(gotBody, "item-1") || !strings.Contains(gotBody, "server kept failing") {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestStorageCleanupFormatsBytes(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := NewService(&cfg)
	if err := svc.NotifyStorageCleanup(context.Background(), 5*1024*1024, 3); err != nil {
		t.Fatalf("NotifyStorageCleanup: %v", err)
	}
	if !strings.Contains(gotBody, "5.2 MB") || !strings.Contains(gotBody, "3 items") {
		t.Fatalf("unexpected body %q", gotBody)
	}
}

func TestSendReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic rejected", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
