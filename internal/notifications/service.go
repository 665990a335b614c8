package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"murmur/internal/config"
)

const userAgent = "Murmur-Go/0.1.0"

// Service defines the notification surface exposed to background components.
type Service interface {
	NotifyItemDropped(ctx context.Context, itemID, kind, reason string) error
	NotifyStorageCleanup(ctx context.Context, freedBytes int64, itemsRemoved int) error
	NotifyCredentialFailure(ctx context.Context, detail string) error
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

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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

func (n *ntfyService) NotifyItemDropped(ctx context.Context, itemID, kind, reason string) error {
	data := payload{
		title:   "Murmur - Sync Item Dropped",
		message: fmt.Sprintf("Gave up on %s item %s: %s", kind, itemID, strings.TrimSpace(reason)),
		tags:    []string{"murmur", "queue", "dropped"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyStorageCleanup(ctx context.Context, freedBytes int64, itemsRemoved int) error {
	data := payload{
		title: "Murmur - Storage Cleanup",
		message: fmt.Sprintf("Freed %s by removing %d items to keep local storage writable",
			humanize.Bytes(uint64(max(freedBytes, 0))), itemsRemoved),
		tags: []string{"murmur", "storage", "cleanup"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyCredentialFailure(ctx context.Context, detail string) error {
	data := payload{
		title:    "Murmur - Credential Problem",
		message:  fmt.Sprintf("The inference API rejected the stored credential: %s", strings.TrimSpace(detail)),
		tags:     []string{"murmur", "credential", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Murmur - Test",
		message:  "Notification system test",
		tags:     []string{"murmur", "test"},
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
	if data.priority != "" {
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

func (noopService) NotifyItemDropped(context.Context, string, string, string) error { return nil }
func (noopService) NotifyStorageCleanup(context.Context, int64, int) error          { return nil }
func (noopService) NotifyCredentialFailure(context.Context, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
