package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vench/internal/config"
)

const userAgent = "vench/0.1.0"

// Event enumerates the notifications the workflow can publish.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Recognised keys: "jobID" (int64), "kind",
// "title", "message" and "error" (error or string).
type Payload map[string]any

// Service publishes workflow events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed notifier, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{endpoint: topic, client: &http.Client{Timeout: timeout}}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	jobLabel := fmt.Sprintf("job #%d", int64Value(payload["jobID"]))
	if kind := stringValue(payload["kind"]); kind != "" {
		jobLabel = fmt.Sprintf("%s (%s)", jobLabel, kind)
	}
	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("Analysis complete: %s", jobLabel)
		if title := stringValue(payload["title"]); title != "" {
			body = fmt.Sprintf("%s\n%s", body, title)
		}
		return message{
			title: "Vench - Complete",
			body:  body,
			tags:  []string{"vench", "job", "completed"},
		}, true
	case EventJobFailed:
		reason := stringValue(payload["error"])
		if reason == "" {
			reason = stringValue(payload["message"])
		}
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "Vench - Failed",
			body:     fmt.Sprintf("Analysis failed: %s\n%s", jobLabel, reason),
			tags:     []string{"vench", "job", "failed"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Vench - Test",
			body:     "Notification system test",
			tags:     []string{"vench", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case error:
		return strings.TrimSpace(val.Error())
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func int64Value(v any) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	default:
		return 0
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
