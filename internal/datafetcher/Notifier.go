/*
This file contains the reference notification sinks: a webhook sink that
POSTs alert payloads to an external URL, and a log sink for deployments
without a webhook.
*/

package datafetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sonicnav/riskengine/internal/logger"
	"github.com/sonicnav/riskengine/internal/types"
)

var notifierLogger = logger.GetForComponent("notifier")

const notifyTimeout = 10 * time.Second

// WebhookSink delivers notifications to an external webhook.
type WebhookSink struct {
	url    string
	client *http.Client
}

// NewWebhookSink builds a webhook notification sink.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: notifyTimeout},
	}
}

// Notify posts one alert notification. A non-2xx response is an error; the
// caller decides whether that matters.
func (s *WebhookSink) Notify(ctx context.Context, owner, title, message string, severity types.AlertSeverity) error {
	payload, err := json.Marshal(map[string]string{
		"owner":    owner,
		"title":    title,
		"message":  message,
		"severity": string(severity),
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook delivery failed: %w", types.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned status %d", types.ErrUpstreamUnavailable, resp.StatusCode)
	}
	return nil
}

// LogSink writes notifications to the structured log.
type LogSink struct{}

// Notify logs the notification and never fails.
func (LogSink) Notify(ctx context.Context, owner, title, message string, severity types.AlertSeverity) error {
	notifierLogger.Info().
		Str("owner", owner).
		Str("title", title).
		Str("severity", string(severity)).
		Msg(message)
	return nil
}
