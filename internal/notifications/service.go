package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"burnin/internal/config"
	"burnin/internal/metadata"
)

const userAgent = "burnin-notify/1"

// Service defines the notification surface used by the job orchestrator.
type Service interface {
	JobSaved(ctx context.Context, rec *metadata.Record) error
	JobFailed(ctx context.Context, rec *metadata.Record, cause error) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
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

func (n *ntfyService) JobSaved(ctx context.Context, rec *metadata.Record) error {
	if rec == nil {
		return nil
	}
	message := fmt.Sprintf("✅ %s ready (%s)", displayName(rec), rec.Resolution)
	if rec.StreamURL != "" {
		message += "\n" + rec.StreamURL
	}
	return n.send(ctx, payload{
		title:   "burnin - Job Saved",
		message: message,
		tags:    []string{"burnin", "job", "saved"},
	})
}

func (n *ntfyService) JobFailed(ctx context.Context, rec *metadata.Record, cause error) error {
	if rec == nil {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "❌ %s failed", displayName(rec))
	if rec.ErrorKind != "" {
		fmt.Fprintf(&builder, " (%s)", rec.ErrorKind)
	}
	builder.WriteString(": ")
	if cause != nil {
		builder.WriteString(strings.TrimSpace(cause.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "burnin - Job Failed",
		message:  builder.String(),
		tags:     []string{"burnin", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "burnin - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"burnin", "test"},
		priority: "low",
	})
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

func displayName(rec *metadata.Record) string {
	name := strings.TrimSpace(rec.OriginalFilename)
	if name == "" {
		return rec.JobID
	}
	return fmt.Sprintf("%s [%s]", name, rec.JobID)
}

type noopService struct{}

func (noopService) JobSaved(context.Context, *metadata.Record) error         { return nil }
func (noopService) JobFailed(context.Context, *metadata.Record, error) error { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
