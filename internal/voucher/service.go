package voucher

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-cafe/internal/pricing"
)

// ErrNotFound is returned when no voucher matches the requested code.
var ErrNotFound = errors.New("voucher not found")

// storeProvider captures the persistence methods the service needs.
type storeProvider interface {
	GetByCode(ctx context.Context, code string) (Row, error)
	List(ctx context.Context) ([]Row, error)
}

// Service resolves voucher codes into pricing models and ranks candidates
// for display. All rule evaluation lives in the pricing package; this layer
// only loads and maps rows.
type Service struct {
	Store storeProvider
	Now   func() time.Time
}

// Resolve looks up a voucher by code, case-insensitively.
func (s *Service) Resolve(ctx context.Context, code string) (*pricing.Voucher, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("voucher service not configured")
	}
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, ErrNotFound
	}
	row, err := s.Store.GetByCode(ctx, trimmed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v := FromRow(row)
	return &v, nil
}

// Check validates the given code against a cart snapshot. A missing code
// yields an invalid verdict rather than an error so the checkout flow can
// degrade gracefully.
func (s *Service) Check(ctx context.Context, code string, cart pricing.Cart) (pricing.Validation, error) {
	v, err := s.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pricing.Validation{Reason: "voucher code not found"}, nil
		}
		return pricing.Validation{}, err
	}
	return pricing.Validate(v, cart, cart.Subtotal(), s.now()), nil
}

// Browse returns every voucher annotated with eligibility against the cart,
// ranked best savings first.
func (s *Service) Browse(ctx context.Context, cart pricing.Cart) ([]pricing.Candidate, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("voucher service not configured")
	}
	rows, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	vouchers := make([]pricing.Voucher, 0, len(rows))
	for _, row := range rows {
		vouchers = append(vouchers, FromRow(row))
	}
	return pricing.Rank(vouchers, cart, cart.Subtotal(), s.now()), nil
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// FromRow converts a stored voucher into the pricing model.
func FromRow(row Row) pricing.Voucher {
	v := pricing.Voucher{
		ID:            uuidString(row.ID),
		Code:          row.Code,
		Description:   row.Description.String,
		Kind:          discountKind(row.Kind),
		Amount:        row.Amount,
		MinOrderValue: row.MinOrderValue,
		StartAt:       row.StartAt,
		EndAt:         row.EndAt,
		UsageCount:    row.UsageCount,
		Status:        voucherStatus(row.Status),
		Scope:         scopeKind(row.Scope),
	}
	if row.PercentBps.Valid {
		v.PercentBps = row.PercentBps.Int32
	}
	if row.MaxDiscount.Valid {
		max := pricing.Money(row.MaxDiscount.Int64)
		v.MaxDiscount = &max
	}
	if row.UsageLimit.Valid {
		limit := row.UsageLimit.Int32
		v.UsageLimit = &limit
	}
	for _, id := range row.ProductIDs {
		v.ProductIDs = append(v.ProductIDs, uuidString(id))
	}
	for _, id := range row.CategoryIDs {
		v.CategoryIDs = append(v.CategoryIDs, uuidString(id))
	}
	return v
}

func discountKind(kind string) pricing.DiscountKind {
	if strings.EqualFold(kind, "percent") {
		return pricing.DiscountPercent
	}
	return pricing.DiscountFixed
}

func voucherStatus(status string) pricing.VoucherStatus {
	switch strings.ToUpper(status) {
	case "ACTIVE":
		return pricing.StatusActive
	case "UPCOMING":
		return pricing.StatusUpcoming
	case "DEPLETED":
		return pricing.StatusDepleted
	default:
		return pricing.StatusExpired
	}
}

func scopeKind(scope string) pricing.ScopeKind {
	switch strings.ToLower(scope) {
	case "product":
		return pricing.ScopeProductSpecific
	case "category":
		return pricing.ScopeCategorySpecific
	default:
		return pricing.ScopeUniversal
	}
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

func parseUUID(value string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}
