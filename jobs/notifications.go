package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stonecrest/backoffice/internal/notify"
)

// Enqueuer queues an email for the worker.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// SubscribeNotifications enqueues customer emails for committed events.
func SubscribeNotifications(bus *notify.Bus, enqueuer Enqueuer, logger *slog.Logger) func() {
	return bus.Subscribe("email-notifications", NotificationHandler(enqueuer, logger),
		notify.QuoteStatusChanged, notify.InvoiceCreated, notify.InvoicePaid)
}

// NotificationHandler renders and enqueues the email for one event.
func NotificationHandler(enqueuer Enqueuer, logger *slog.Logger) notify.Handler {
	return func(ctx context.Context, evt notify.Event) error {
		msg, ok, err := Compose(evt)
		if err != nil || !ok {
			return err
		}
		// one email per document transition even if the event is replayed
		taskID := fmt.Sprintf("%s:%s:%s", msg.Template, evt.EntityID, evt.At.UTC().Format("20060102T150405.000"))
		info, err := enqueuer.EnqueueSendEmail(ctx, msg, asynq.TaskID(taskID), asynq.MaxRetry(5))
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("enqueue %s email: %w", msg.Template, err)
		}
		if logger != nil && info != nil {
			logger.Debug("email enqueued", slog.String("task_id", info.ID), slog.String("template", msg.Template))
		}
		return nil
	}
}
