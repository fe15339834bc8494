package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/stonecrest/backoffice/internal/jobs"
)

// OverdueMarker moves past-due invoices to Overdue.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

// OverdueJob runs the scheduled overdue sweep.
type OverdueJob struct {
	Invoices OverdueMarker
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// Handle processes TaskInvoicesMarkOverdue.
func (j *OverdueJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Invoices == nil {
		return errors.New("mark overdue: handler not configured")
	}
	tracker := j.Metrics.Track(TaskInvoicesMarkOverdue)
	defer func() { err = tracker.End(err) }()

	changed, err := j.Invoices.MarkOverdue(ctx)
	if err != nil {
		return err
	}
	j.Metrics.InvoicesMarkedOverdue(changed)
	if j.Logger != nil {
		j.Logger.Info("overdue sweep complete", slog.Int("invoices", changed))
	}
	return nil
}
