package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"voxport/internal/config"
)

const userAgent = "Voxport-Go/0.1.0"

// Service defines the notification surface exposed to the export pipeline.
type Service interface {
	NotifyExportReady(ctx context.Context, lang string, pct float64, samples int, downloadURL string) error
	NotifyExportFailed(ctx context.Context, lang string, pct float64, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

var languageTitle = cases.Title(language.Und)

func displayLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return "unknown"
	}
	return languageTitle.String(lang)
}

func (n *ntfyService) NotifyExportReady(ctx context.Context, lang string, pct float64, samples int, downloadURL string) error {
	message := fmt.Sprintf("Export ready: %s %g%% (%d samples)", displayLanguage(lang), pct, samples)
	if downloadURL = strings.TrimSpace(downloadURL); downloadURL != "" {
		message = fmt.Sprintf("%s\n%s", message, downloadURL)
	}
	data := payload{
		title:    "Voxport - Export Ready",
		message:  message,
		tags:     []string{"voxport", "export", "ready"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyExportFailed(ctx context.Context, lang string, pct float64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Voxport - Export Failed",
		message:  fmt.Sprintf("Export failed: %s %g%%\n%s", displayLanguage(lang), pct, reason),
		tags:     []string{"voxport", "export", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Voxport - Test",
		message:  "Notification system test",
		tags:     []string{"voxport", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyExportReady(context.Context, string, float64, int, string) error { return nil }
func (noopService) NotifyExportFailed(context.Context, string, float64, string) error    { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
