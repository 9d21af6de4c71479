package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/config"
)

// ErrUnsupportedChannel is returned when the configured chat type has no
// known payload shape.
var ErrUnsupportedChannel = errors.New("notify: unsupported chat channel")

// messageField maps a chat type to the JSON field carrying the text of an
// incoming-webhook message.
var messageField = map[string]string{
	"slack":   "text",
	"discord": "content",
}

// WebhookNotifier posts proposal outcomes to a chat incoming webhook.
type WebhookNotifier struct {
	channel string
	url     string
	client  *http.Client
}

var _ Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier posts to url using the payload shape of channel
// ("slack" or "discord").
func NewWebhookNotifier(channel, url string) *WebhookNotifier {
	return &WebhookNotifier{
		channel: channel,
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// FromConfig returns the configured notifier, or nil when none is set.
func FromConfig(cfg config.NotifyConfig) Notifier {
	if cfg.WebhookURL == "" {
		return nil
	}
	return NewWebhookNotifier(cfg.Type, cfg.WebhookURL)
}

func (w *WebhookNotifier) payload(message string) ([]byte, error) {
	field, ok := messageField[w.channel]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedChannel, w.channel)
	}
	return json.Marshal(map[string]string{field: message})
}

// Notify posts message to the chat channel. Any non-2xx answer is an error.
func (w *WebhookNotifier) Notify(ctx context.Context, message string) error {
	body, err := w.payload(message)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build %s request: %w", w.channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: post to %s: %w", w.channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	logger.WithFields(logger.Fields{
		"channel": w.channel,
		"status":  resp.StatusCode,
	}).Debugf("[notify] rejected: %s", strings.TrimSpace(string(detail)))
	return fmt.Errorf("notify: %s rejected message: %s", w.channel, resp.Status)
}
