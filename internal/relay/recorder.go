package relay

import (
	"context"

	"go.uber.org/zap"

	"shiprelay/internal/model"
	"shiprelay/internal/store"
)

// Recorder is the best-effort audit side channel. Every write is wrapped in
// its own failure boundary: a failed audit write is logged and swallowed so
// it can never mask or replace the primary operation's outcome.
type Recorder struct {
	Store store.Store
	Log   *zap.SugaredLogger
}

func NewRecorder(s store.Store, log *zap.SugaredLogger) *Recorder {
	return &Recorder{Store: s, Log: log}
}

// Record creates an audit entry.
func (r *Recorder) Record(ctx context.Context, e model.AuditLogEntry) {
	if _, err := r.Store.SaveAuditLog(ctx, e); err != nil {
		r.Log.Errorw("audit save failed",
			"orderId", e.ExternalOrderID, "eventType", e.EventType, "status", e.Status, "err", err)
	}
}

// Update mutates the latest entry for (externalOrderId, eventType), creating
// one when none exists.
func (r *Recorder) Update(ctx context.Context, externalOrderID, eventType string, upd model.AuditLogUpdate) {
	if err := r.Store.UpdateAuditLog(ctx, externalOrderID, eventType, upd); err != nil {
		r.Log.Errorw("audit update failed",
			"orderId", externalOrderID, "eventType", eventType, "status", upd.Status, "err", err)
	}
}
