package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAhamoveQuoteFee(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/order/estimated_fee" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		var req estimateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(estimateResponse{TotalFee: 18_000, EtaMinutes: 25})
	}))
	defer server.Close()

	client := NewAhamove(server.URL, "test-key", time.Second, nil)
	quote, err := client.QuoteFee(context.Background(), QuoteReq{
		PickupAddress:  "1 Cafe St",
		DropoffAddress: "99 Customer Ave",
		OrderValue:     100_000,
	})
	if err != nil {
		t.Fatalf("quote fee: %v", err)
	}
	if quote.Fee != 18_000 || quote.EtaMinutes != 25 || quote.Provider != "ahamove" {
		t.Fatalf("unexpected quote %+v", quote)
	}
}

func TestAhamoveQuoteFeeUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewAhamove(server.URL, "", time.Second, nil)
	client.HTTP.MaxAttempts = 1
	if _, err := client.QuoteFee(context.Background(), QuoteReq{}); err == nil {
		t.Fatalf("expected error on 502")
	}
}

type failingProvider struct{}

func (failingProvider) QuoteFee(context.Context, QuoteReq) (Quote, error) {
	return Quote{}, errors.New("provider down")
}

func TestWithFallback(t *testing.T) {
	p := WithFallback{Primary: failingProvider{}, Fallback: Flat{Fee: 15_000}}
	quote, err := p.QuoteFee(context.Background(), QuoteReq{})
	if err != nil {
		t.Fatalf("fallback should absorb primary failure: %v", err)
	}
	if quote.Fee != 15_000 || quote.Provider != "flat" {
		t.Fatalf("unexpected quote %+v", quote)
	}
}
