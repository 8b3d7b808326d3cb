package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-cafe/internal/events"
)

// TypeEventWebhook is the asynq task type for outbound event webhooks.
const TypeEventWebhook = "notify:webhook"

type taskPayload struct {
	EventID    string          `json:"eventId"`
	Topic      string          `json:"topic"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// TaskNotifier queues a webhook delivery for every emitted domain event.
// It plugs into the event bus, so delivery failures never surface into the
// request that produced the event.
type TaskNotifier struct {
	Client *asynq.Client
	Topics []string
}

// Notify implements events.Notifier.
func (n *TaskNotifier) Notify(ctx context.Context, event events.DomainEvent) error {
	if n == nil || n.Client == nil {
		return nil
	}
	if !n.wants(event.Topic) {
		return nil
	}
	eventID := uuidFrom(event.ID)
	if eventID == "" {
		return nil
	}
	data, err := json.Marshal(taskPayload{
		EventID:    eventID,
		Topic:      event.Topic,
		Data:       json.RawMessage(event.Payload),
		OccurredAt: event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("notify: encode task payload: %w", err)
	}
	task := asynq.NewTask(TypeEventWebhook, data)
	_, err = n.Client.EnqueueContext(ctx, task,
		asynq.TaskID("webhook-"+eventID),
		asynq.MaxRetry(5),
		asynq.Timeout(15*time.Second),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("notify: enqueue webhook: %w", err)
	}
	return nil
}

func (n *TaskNotifier) wants(topic string) bool {
	if len(n.Topics) == 0 {
		return true
	}
	for _, t := range n.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// TaskHandler delivers queued webhooks. Returning an error hands the task
// back to asynq for retry with backoff.
type TaskHandler struct {
	Webhook *Webhook
	Logger  *zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h *TaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload taskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		// Malformed payloads never become valid; drop instead of retrying.
		if h.Logger != nil {
			h.Logger.Error().Err(err).Msg("invalid webhook task payload")
		}
		return nil
	}
	if h.Webhook == nil {
		return errors.New("notify: webhook not configured")
	}
	if err := h.Webhook.Deliver(ctx, payload.EventID, payload.Topic, payload.Data, payload.OccurredAt); err != nil {
		if h.Logger != nil {
			h.Logger.Warn().Err(err).Str("event_id", payload.EventID).Str("topic", payload.Topic).Msg("webhook delivery failed")
		}
		return err
	}
	return nil
}

func uuidFrom(value pgtype.UUID) string {
	if !value.Valid {
		return ""
	}
	id, err := uuid.FromBytes(value.Bytes[:])
	if err != nil {
		return ""
	}
	return id.String()
}
