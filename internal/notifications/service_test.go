package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voxport/internal/config"
	"voxport/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyExportReady(context.Background(), "hausa", 50, 10, "https://example.test/x.zip"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	type captured struct {
		title    string
		tags     string
		priority string
		body     string
	}

	var got captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyExportReady(context.Background(), "hausa", 25, 120, "https://example.test/hausa.zip"); err != nil {
		t.Fatalf("NotifyExportReady: %v", err)
	}
	if got.title != "Voxport - Export Ready" {
		t.Fatalf("title = %q", got.title)
	}
	if got.tags != "voxport,export,ready" {
		t.Fatalf("tags = %q", got.tags)
	}
	if got.priority != "high" {
		t.Fatalf("priority = %q", got.priority)
	}
	if !strings.Contains(got.body, "Hausa 25%") || !strings.Contains(got.body, "120 samples") {
		t.Fatalf("body = %q", got.body)
	}
	if !strings.Contains(got.body, "https://example.test/hausa.zip") {
		t.Fatalf("body missing download url: %q", got.body)
	}

	if err := svc.NotifyExportFailed(context.Background(), "yoruba", 12.5, "no matching samples found"); err != nil {
		t.Fatalf("NotifyExportFailed: %v", err)
	}
	if got.title != "Voxport - Export Failed" {
		t.Fatalf("title = %q", got.title)
	}
	if !strings.Contains(got.body, "Yoruba 12.5%") || !strings.Contains(got.body, "no matching samples found") {
		t.Fatalf("body = %q", got.body)
	}
}

func TestNtfyServiceSurfacesServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}
