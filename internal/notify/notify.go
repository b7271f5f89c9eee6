// Package notify delivers system notifications via a pluggable service.
//
// The default implementation publishes to an ntfy topic and degrades to a
// no-op when none is configured. Callers must check Enabled before relying
// on delivery; absence of a transport is never an error.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const userAgent = "ezber/0.1"

// Service is the notification surface the alarm sink depends on.
type Service interface {
	// Enabled reports whether notifications can be delivered at all.
	// It stands in for a granted notification permission.
	Enabled() bool
	Notify(ctx context.Context, title, body string) error
}

// NewService builds an ntfy-backed service, or a no-op one when the topic
// is empty.
func NewService(topic string, timeout time.Duration) Service {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return noopService{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Enabled() bool { return true }

func (n *ntfyService) Notify(ctx context.Context, title, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if title != "" {
		req.Header.Set("Title", title)
	}
	req.Header.Set("Tags", "ezber,review")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy notification failed: status %d", resp.StatusCode)
	}
	return nil
}

type noopService struct{}

func (noopService) Enabled() bool { return false }

func (noopService) Notify(context.Context, string, string) error { return nil }
