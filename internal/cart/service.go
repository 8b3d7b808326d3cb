package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-cafe/internal/lock"
)

// ErrNotFound indicates the requested cart could not be located.
var ErrNotFound = errors.New("cart not found")

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// Session is a server-side cart stored in Redis, keyed by an opaque id the
// mini-app keeps on the client.
type Session struct {
	ID          string        `json:"id"`
	Items       []ItemPayload `json:"items"`
	VoucherCode string        `json:"voucherCode,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Service stores cart sessions as JSON blobs with a sliding TTL. Mutations
// for one cart id are serialized through the optional Locker so concurrent
// taps from the mini app cannot lose updates.
type Service struct {
	R    *redis.Client
	Lock *lock.Locker
	TTL  time.Duration
	Now  func() time.Time
}

func (s *Service) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func cartKey(id string) string {
	return "cafe:cart:" + id
}

// Create allocates an empty cart session.
func (s *Service) Create(ctx context.Context) (Session, error) {
	if s == nil || s.R == nil {
		return Session{}, errors.New("cart service not configured")
	}
	session := Session{ID: uuid.NewString(), Items: []ItemPayload{}, UpdatedAt: s.now()}
	if err := s.save(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// Get loads a session by id.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	if s == nil || s.R == nil {
		return Session{}, errors.New("cart service not configured")
	}
	data, err := s.R.Get(ctx, cartKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("load cart: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decode cart: %w", err)
	}
	return session, nil
}

// mutate loads the session, applies fn, stamps it, and saves it back. With a
// Locker configured the whole read-modify-write cycle holds the cart's lock.
func (s *Service) mutate(ctx context.Context, id string, fn func(*Session)) (Session, error) {
	var out Session
	op := func(ctx context.Context) error {
		session, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		fn(&session)
		session.UpdatedAt = s.now()
		if err := s.save(ctx, session); err != nil {
			return err
		}
		out = session
		return nil
	}
	if s.Lock != nil {
		if err := s.Lock.WithLock(ctx, cartKey(id)+":lock", 5*time.Second, op); err != nil {
			return Session{}, err
		}
		return out, nil
	}
	if err := op(ctx); err != nil {
		return Session{}, err
	}
	return out, nil
}

// AddItem appends an item to the session, merging into an existing slot when
// the product and selections match.
func (s *Service) AddItem(ctx context.Context, id string, item ItemPayload) (Session, error) {
	if item.ProductID == "" {
		return Session{}, fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	if item.Quantity <= 0 {
		return Session{}, fmt.Errorf("quantity must be positive: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(session *Session) {
		session.Items = MergeItems(append(session.Items, item))
	})
}

// SetQuantity updates the quantity of the slot matching the given item. A
// quantity of zero or less removes the slot entirely.
func (s *Service) SetQuantity(ctx context.Context, id string, item ItemPayload) (Session, error) {
	if item.ProductID == "" {
		return Session{}, fmt.Errorf("productId is required: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(session *Session) {
		key := item.Key()
		items := session.Items[:0]
		found := false
		for _, existing := range session.Items {
			if existing.Key() == key {
				found = true
				if item.Quantity > 0 {
					existing.Quantity = item.Quantity
					items = append(items, existing)
				}
				continue
			}
			items = append(items, existing)
		}
		if !found && item.Quantity > 0 {
			items = append(items, item)
		}
		session.Items = items
	})
}

// ApplyVoucher pins a voucher code to the session. Eligibility is checked at
// quote time; storing an invalid code here is allowed.
func (s *Service) ApplyVoucher(ctx context.Context, id, code string) (Session, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return Session{}, fmt.Errorf("voucher code is required: %w", ErrInvalidInput)
	}
	return s.mutate(ctx, id, func(session *Session) {
		session.VoucherCode = strings.ToUpper(trimmed)
	})
}

// ClearVoucher removes any pinned voucher code from the session.
func (s *Service) ClearVoucher(ctx context.Context, id string) (Session, error) {
	return s.mutate(ctx, id, func(session *Session) {
		session.VoucherCode = ""
	})
}

// Clear empties the session without deleting the id.
func (s *Service) Clear(ctx context.Context, id string) (Session, error) {
	return s.mutate(ctx, id, func(session *Session) {
		session.Items = []ItemPayload{}
	})
}

func (s *Service) save(ctx context.Context, session Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.R.Set(ctx, cartKey(session.ID), data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("store cart: %w", err)
	}
	return nil
}
