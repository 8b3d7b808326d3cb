package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/backend-cafe/internal/obs"
)

// Webhook delivers signed event payloads to a configured endpoint. Retries
// and backoff are handled by the task queue, not here: a non-2xx response
// or transport failure is returned as an error.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
}

type eventEnvelope struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// Deliver posts one event to the endpoint. The signature covers the
// timestamp, event id, and body so receivers can verify both integrity
// and freshness.
func (w *Webhook) Deliver(ctx context.Context, eventID, topic string, data json.RawMessage, occurredAt time.Time) error {
	if w == nil || w.URL == "" {
		return errors.New("notify: webhook not configured")
	}
	if err := validateURL(w.URL); err != nil {
		return err
	}
	client := w.Client
	if client == nil {
		client = HTTPClient(5 * time.Second)
	}

	ctx, span := otel.Tracer("notify.Webhook").Start(ctx, "Webhook.Deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.event_id", eventID),
		attribute.String("webhook.topic", topic),
	)

	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	body, err := json.Marshal(eventEnvelope{
		EventID:    eventID,
		Topic:      topic,
		Data:       data,
		OccurredAt: occurredAt,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: encode envelope: %w", err)
	}

	ts := time.Now().Unix()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "cafe-api-webhooks/1.0")
	req.Header.Set("X-Event-ID", eventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", ComputeSignature(w.Secret, ts, eventID, body))

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		span.RecordError(err)
		observeDelivery("failed", start)
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observeDelivery("failed", start)
		return fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
	}
	observeDelivery("delivered", start)
	return nil
}

func observeDelivery(result string, start time.Time) {
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues(result).Inc()
	}
	if obs.WebhookAttemptLatency != nil {
		obs.WebhookAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("notify: invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("notify: webhook url must be http or https")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("notify: http webhook only allowed for localhost")
		}
	}
	if parsed.Host == "" {
		return errors.New("notify: webhook url must include host")
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload.
// The format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the endpoint
// secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPClient returns an HTTP client configured for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
