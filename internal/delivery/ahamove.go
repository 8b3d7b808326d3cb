package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-cafe/internal/pricing"
	"github.com/noah-isme/backend-cafe/internal/resilience"
)

// Ahamove quotes delivery fees from an Ahamove-style estimate endpoint.
type Ahamove struct {
	BaseURL string
	APIKey  string
	HTTP    resilience.HTTPClient
}

// NewAhamove builds a client with tracing-instrumented transport and a
// circuit breaker around the estimate calls.
func NewAhamove(baseURL, apiKey string, timeout time.Duration, breaker *resilience.Breaker) *Ahamove {
	return &Ahamove{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     breaker,
			BaseBackoff: 200 * time.Millisecond,
			MaxAttempts: 3,
			Jitter:      0.2,
			Timeout:     timeout,
		},
	}
}

type estimateRequest struct {
	PickupAddress  string `json:"pickupAddress"`
	DropoffAddress string `json:"dropoffAddress"`
	DistanceMeters int    `json:"distanceMeters,omitempty"`
	OrderValue     int64  `json:"orderValue"`
}

type estimateResponse struct {
	TotalFee   int64 `json:"totalFee"`
	EtaMinutes int   `json:"etaMinutes"`
}

// QuoteFee calls the estimate endpoint and maps the response.
func (a *Ahamove) QuoteFee(ctx context.Context, req QuoteReq) (Quote, error) {
	if a == nil || a.BaseURL == "" {
		return Quote{}, errors.New("delivery: provider not configured")
	}
	body, err := json.Marshal(estimateRequest{
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		DistanceMeters: req.DistanceMeters,
		OrderValue:     int64(req.OrderValue),
	})
	if err != nil {
		return Quote{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.BaseURL+"/v1/order/estimated_fee", bytes.NewReader(body))
	if err != nil {
		return Quote{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.APIKey)
	}
	resp, err := a.HTTP.Do(ctx, httpReq)
	if err != nil {
		return Quote{}, fmt.Errorf("delivery: estimate call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("delivery: estimate returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var parsed estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Quote{}, fmt.Errorf("delivery: decode estimate: %w", err)
	}
	if parsed.TotalFee < 0 {
		return Quote{}, errors.New("delivery: negative fee in estimate")
	}
	return Quote{
		Fee:        pricing.Money(parsed.TotalFee),
		EtaMinutes: parsed.EtaMinutes,
		Provider:   "ahamove",
	}, nil
}

// WithFallback wraps a provider so quoting degrades to the fallback when the
// primary fails. Checkout must keep working through courier outages.
type WithFallback struct {
	Primary  Provider
	Fallback Provider
}

// QuoteFee tries the primary provider first.
func (w WithFallback) QuoteFee(ctx context.Context, req QuoteReq) (Quote, error) {
	quote, err := w.Primary.QuoteFee(ctx, req)
	if err == nil {
		return quote, nil
	}
	if w.Fallback == nil {
		return Quote{}, err
	}
	return w.Fallback.QuoteFee(ctx, req)
}
