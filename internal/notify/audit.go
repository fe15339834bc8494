package notify

import (
	"context"

	"github.com/stonecrest/backoffice/internal/shared"
)

// AuditRecorder is satisfied by *shared.AuditLogger.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AuditHandler writes every event to the audit trail.
func AuditHandler(recorder AuditRecorder) Handler {
	return func(ctx context.Context, evt Event) error {
		meta := make(map[string]any, len(evt.Data)+1)
		for k, v := range evt.Data {
			meta[k] = v
		}
		if evt.Number != "" {
			meta["number"] = evt.Number
		}
		return recorder.Record(ctx, shared.AuditLog{
			Actor:    evt.Actor,
			Action:   evt.Type,
			Entity:   evt.Entity,
			EntityID: evt.EntityID,
			Meta:     meta,
			At:       evt.At,
		})
	}
}
