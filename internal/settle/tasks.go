package settle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cafe/internal/events"
	"github.com/noah-isme/backend-cafe/internal/loyalty"
	"github.com/noah-isme/backend-cafe/internal/obs"
)

// TypeOrderSettle is the asynq task type for post-checkout settlement.
const TypeOrderSettle = "order:settle"

// OrderPayload carries everything the settlement task needs. Counters and the
// ledger move here, after the order is committed, never during quoting.
type OrderPayload struct {
	OrderID      string `json:"orderId"`
	UserID       string `json:"userId"`
	VoucherID    string `json:"voucherId,omitempty"`
	EarnedPoints int64  `json:"earnedPoints"`
	FinalPrice   int64  `json:"finalPrice"`
}

// Enqueuer schedules settlement tasks on the asynq queue.
type Enqueuer struct {
	Client *asynq.Client
}

// EnqueueOrderSettlement queues the settlement for background processing.
// The task id is derived from the order so duplicate submissions collapse.
func (e *Enqueuer) EnqueueOrderSettlement(ctx context.Context, payload OrderPayload) error {
	if e == nil || e.Client == nil {
		return errors.New("settle: enqueuer not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("settle: encode payload: %w", err)
	}
	task := asynq.NewTask(TypeOrderSettle, data)
	_, err = e.Client.EnqueueContext(ctx, task,
		asynq.TaskID("settle-"+payload.OrderID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("settle: enqueue: %w", err)
	}
	return nil
}

type voucherSettler interface {
	IncrementUsage(ctx context.Context, id pgtype.UUID) (depleted bool, err error)
}

type ledgerAppender interface {
	Append(ctx context.Context, userID string, orderID pgtype.UUID, kind loyalty.EntryKind, points int64) error
}

type orderSettler interface {
	MarkSettled(ctx context.Context, id pgtype.UUID) (bool, error)
}

// Handler processes settlement tasks: bump the voucher usage counter, credit
// loyalty points, flip the order to SETTLED, and emit the settled event.
type Handler struct {
	Vouchers voucherSettler
	Ledger   ledgerAppender
	Orders   orderSettler
	Events   *events.Bus
	Logger   *zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload OrderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("settle: decode payload: %w", err)
	}
	orderID, err := parseUUID(payload.OrderID)
	if err != nil {
		// Malformed ids never become valid; drop instead of retrying.
		h.logErr(err, payload, "invalid order id in settlement task")
		return nil
	}

	settled, err := h.Orders.MarkSettled(ctx, orderID)
	if err != nil {
		countSettle("error")
		return err
	}
	if !settled {
		// Already settled by an earlier attempt.
		countSettle("duplicate")
		return nil
	}

	if payload.VoucherID != "" && h.Vouchers != nil {
		voucherID, err := parseUUID(payload.VoucherID)
		if err == nil {
			depleted, err := h.Vouchers.IncrementUsage(ctx, voucherID)
			if err != nil {
				return err
			}
			if depleted && h.Events != nil {
				_, _ = h.Events.Emit(ctx, events.TopicVoucherDepleted, voucherID, map[string]any{
					"voucherId": payload.VoucherID,
				})
			}
		}
	}
	if payload.EarnedPoints > 0 && h.Ledger != nil {
		if err := h.Ledger.Append(ctx, payload.UserID, orderID, loyalty.KindEarn, payload.EarnedPoints); err != nil {
			return err
		}
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(ctx, events.TopicOrderSettled, orderID, map[string]any{
			"orderId":      payload.OrderID,
			"userId":       payload.UserID,
			"earnedPoints": payload.EarnedPoints,
			"finalPrice":   payload.FinalPrice,
		})
	}
	countSettle("ok")
	return nil
}

func countSettle(result string) {
	if obs.OrderSettleTotal != nil {
		obs.OrderSettleTotal.WithLabelValues(result).Inc()
	}
}

func (h *Handler) logErr(err error, payload OrderPayload, msg string) {
	if h.Logger == nil {
		return
	}
	h.Logger.Error().Err(err).Str("order_id", payload.OrderID).Msg(msg)
}

func parseUUID(value string) (pgtype.UUID, error) {
	var id pgtype.UUID
	if err := id.Scan(value); err != nil {
		return pgtype.UUID{}, err
	}
	return id, nil
}
