package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-cafe/internal/cart"
	"github.com/noah-isme/backend-cafe/internal/delivery"
	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/order"
	"github.com/noah-isme/backend-cafe/internal/pricing"
	"github.com/noah-isme/backend-cafe/internal/settle"
	"github.com/noah-isme/backend-cafe/internal/voucher"
)

// ErrEmptyCart is returned when an order submission carries no purchasable lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrShippingQuote is returned when the delivery provider cannot quote a fee.
// The breakdown is never composed with a made-up fee; wire a fallback
// provider when degraded quoting is acceptable.
var ErrShippingQuote = errors.New("shipping fee unavailable")

type productResolver interface {
	PricingProducts(ctx context.Context, ids []string) (map[string]pricing.Product, error)
}

type voucherResolver interface {
	Resolve(ctx context.Context, code string) (*pricing.Voucher, error)
}

type settlementEnqueuer interface {
	EnqueueOrderSettlement(ctx context.Context, payload settle.OrderPayload) error
}

// Address is the drop-off destination for an order.
type Address struct {
	ReceiverName string `json:"receiverName" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	AddressLine  string `json:"addressLine" validate:"required"`
	Ward         string `json:"ward"`
	District     string `json:"district"`
	City         string `json:"city"`
}

// QuoteInput is a cart snapshot plus an optional voucher code.
type QuoteInput struct {
	Items       []cart.ItemPayload `json:"items" validate:"required,dive"`
	VoucherCode string             `json:"voucherCode"`
	Address     *Address           `json:"address"`
}

// QuoteOutput is the full pricing preview for the snapshot.
type QuoteOutput struct {
	Breakdown    pricing.Breakdown `json:"breakdown"`
	DisplayTotal string            `json:"displayTotal"`
	EtaMinutes   int               `json:"etaMinutes,omitempty"`
}

// SubmitInput is QuoteInput plus the delivery and note details an order needs.
type SubmitInput struct {
	Items       []cart.ItemPayload `json:"items" validate:"required,min=1,dive"`
	VoucherCode string             `json:"voucherCode"`
	Address     Address            `json:"address" validate:"required"`
	Note        string             `json:"note" validate:"max=500"`
}

// SubmitOutput identifies the created order and echoes its pricing.
type SubmitOutput struct {
	OrderID      string            `json:"orderId"`
	Status       string            `json:"status"`
	Breakdown    pricing.Breakdown `json:"breakdown"`
	DisplayTotal string            `json:"displayTotal"`
}

// Service computes checkout quotes and turns accepted quotes into orders.
type Service struct {
	Catalog     productResolver
	Vouchers    voucherResolver
	Delivery    delivery.Provider
	Orders      *order.Store
	Pool        *pgxpool.Pool
	Events      *events.Bus
	Tasks       settlementEnqueuer
	Validator   *validator.Validate
	EarnRateBps int32
	Now         func() time.Time
}

// Quote prices a cart snapshot without side effects. Invalid voucher codes
// degrade to the no-voucher price with the reason attached; they never fail
// the quote.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (QuoteOutput, error) {
	if s == nil || s.Catalog == nil {
		return QuoteOutput{}, errors.New("checkout service not configured")
	}
	model, err := s.buildCart(ctx, in.Items)
	if err != nil {
		return QuoteOutput{}, err
	}
	if len(model) == 0 {
		return QuoteOutput{
			Breakdown:    pricing.Breakdown{},
			DisplayTotal: pricing.FormatVND(0),
		}, nil
	}

	applied, voucherErr := s.resolveVoucher(ctx, in.VoucherCode, model)

	fee, eta, err := s.shippingFee(ctx, in.Address, model.Subtotal())
	if err != nil {
		return QuoteOutput{}, err
	}
	breakdown := pricing.Compose(model, applied, fee, voucherErr, s.EarnRateBps)
	return QuoteOutput{
		Breakdown:    breakdown,
		DisplayTotal: pricing.FormatVND(breakdown.FinalPrice),
		EtaMinutes:   eta,
	}, nil
}

// Submit validates the payload, prices it the same way Quote does, and
// persists the order. Settlement side effects run asynchronously afterwards.
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (SubmitOutput, error) {
	if s == nil || s.Catalog == nil || s.Orders == nil || s.Pool == nil {
		return SubmitOutput{}, errors.New("checkout service not configured")
	}
	if s.Validator != nil {
		if err := s.Validator.Struct(in); err != nil {
			return SubmitOutput{}, fmt.Errorf("invalid submission: %w", err)
		}
	}
	model, err := s.buildCart(ctx, in.Items)
	if err != nil {
		return SubmitOutput{}, err
	}
	if len(model) == 0 || model.Subtotal() == 0 {
		return SubmitOutput{}, ErrEmptyCart
	}

	applied, voucherErr := s.resolveVoucher(ctx, in.VoucherCode, model)
	fee, _, err := s.shippingFee(ctx, &in.Address, model.Subtotal())
	if err != nil {
		return SubmitOutput{}, err
	}
	breakdown := pricing.Compose(model, applied, fee, voucherErr, s.EarnRateBps)

	params := order.CreateParams{
		UserID:    userID,
		Breakdown: breakdown,
		Items:     buildOrderItems(model, in.Items),
	}
	if applied != nil && voucherErr == "" {
		params.VoucherCode = pgtype.Text{String: applied.Code, Valid: true}
		if id, err := parseUUID(applied.ID); err == nil {
			params.VoucherID = id
		}
	} else if voucherErr != "" {
		params.VoucherError = pgtype.Text{String: voucherErr, Valid: true}
	}
	if in.Note != "" {
		params.Note = pgtype.Text{String: in.Note, Valid: true}
	}
	if addr, err := json.Marshal(in.Address); err == nil {
		params.Address = addr
	}

	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return SubmitOutput{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	row, err := s.Orders.CreateTx(ctx, tx, params)
	if err != nil {
		return SubmitOutput{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return SubmitOutput{}, err
	}

	if s.Events != nil {
		_, _ = s.Events.Emit(ctx, events.TopicOrderCreated, row.ID, map[string]any{
			"orderId":    uuidString(row.ID),
			"userId":     userID,
			"finalPrice": breakdown.FinalPrice,
		})
	}
	if s.Tasks != nil {
		payload := settle.OrderPayload{
			OrderID:      uuidString(row.ID),
			UserID:       userID,
			EarnedPoints: breakdown.EarnedPoints,
			FinalPrice:   int64(breakdown.FinalPrice),
		}
		if applied != nil && voucherErr == "" {
			payload.VoucherID = applied.ID
		}
		_ = s.Tasks.EnqueueOrderSettlement(ctx, payload)
	}

	return SubmitOutput{
		OrderID:      uuidString(row.ID),
		Status:       row.Status,
		Breakdown:    breakdown,
		DisplayTotal: pricing.FormatVND(breakdown.FinalPrice),
	}, nil
}

func (s *Service) buildCart(ctx context.Context, items []cart.ItemPayload) (pricing.Cart, error) {
	if len(items) == 0 {
		return pricing.Cart{}, nil
	}
	products, err := s.Catalog.PricingProducts(ctx, cart.ProductIDs(items))
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}
	return cart.BuildCart(products, items), nil
}

// resolveVoucher maps a code to either an applied voucher or a reason string.
// Both nil and "" means no code was supplied.
func (s *Service) resolveVoucher(ctx context.Context, code string, model pricing.Cart) (*pricing.Voucher, string) {
	if code == "" || s.Vouchers == nil {
		return nil, ""
	}
	v, err := s.Vouchers.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, voucher.ErrNotFound) {
			return nil, "voucher code not found"
		}
		return nil, "voucher lookup failed"
	}
	verdict := pricing.Validate(v, model, model.Subtotal(), s.now())
	if !verdict.Valid {
		return nil, verdict.Reason
	}
	return v, ""
}

func (s *Service) shippingFee(ctx context.Context, addr *Address, orderValue pricing.Money) (pricing.Money, int, error) {
	if s.Delivery == nil || addr == nil {
		return 0, 0, nil
	}
	quote, err := s.Delivery.QuoteFee(ctx, delivery.QuoteReq{
		DropoffAddress: addr.AddressLine,
		OrderValue:     orderValue,
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrShippingQuote, err)
	}
	return quote.Fee, quote.EtaMinutes, nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func buildOrderItems(model pricing.Cart, items []cart.ItemPayload) []order.CreateItem {
	// Recover the raw selections for display on the order. Payload keys and
	// line slot keys share the same canonical form, so two lines of the same
	// product with different selections each find their own payload.
	selections := make(map[string]map[string][]string, len(items))
	for _, raw := range items {
		key := raw.Key()
		if _, ok := selections[key]; !ok {
			selections[key] = raw.Selections
		}
	}
	out := make([]order.CreateItem, 0, len(model))
	for _, line := range model {
		out = append(out, order.CreateItem{
			ProductID:   line.Product.ID,
			ProductName: line.Product.Name,
			UnitPrice:   line.UnitPrice(),
			Qty:         line.Qty,
			Selections:  selections[line.SlotKey()],
		})
	}
	return out
}

func parseUUID(value string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func uuidString(id pgtype.UUID) string {
	if !id.Valid {
		return ""
	}
	u, err := uuid.FromBytes(id.Bytes[:])
	if err != nil {
		return ""
	}
	return u.String()
}
