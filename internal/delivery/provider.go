package delivery

import (
	"context"

	"github.com/noah-isme/backend-cafe/internal/pricing"
)

// QuoteReq describes a shipping fee request for one drop-off.
type QuoteReq struct {
	PickupAddress  string
	DropoffAddress string
	DistanceMeters int
	OrderValue     pricing.Money
}

// Quote is a provider's answer: the fee plus an estimated duration.
type Quote struct {
	Fee        pricing.Money `json:"fee"`
	EtaMinutes int           `json:"etaMinutes"`
	Provider   string        `json:"provider"`
}

// Provider quotes a delivery fee for a checkout.
type Provider interface {
	QuoteFee(ctx context.Context, req QuoteReq) (Quote, error)
}

// Flat quotes a fixed fee regardless of the request. It is both the
// development default and the fallback when the upstream provider is down.
type Flat struct {
	Fee pricing.Money
}

// QuoteFee returns the configured flat fee.
func (f Flat) QuoteFee(ctx context.Context, req QuoteReq) (Quote, error) {
	_ = ctx
	_ = req
	return Quote{Fee: f.Fee, EtaMinutes: 30, Provider: "flat"}, nil
}
