package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shiprelay/internal/model"
)

// Store is the persistence interface used by the relay. Every call reads or
// writes the durable backend directly; there is no in-process caching, since
// the orchestrators depend on always seeing the latest audit state.
type Store interface {
	// Audit trail
	SaveAuditLog(ctx context.Context, entry model.AuditLogEntry) (int64, error)
	UpdateAuditLog(ctx context.Context, externalOrderID, eventType string, upd model.AuditLogUpdate) error
	ListAuditLogsForOrder(ctx context.Context, externalOrderID string, limit int) ([]model.AuditLogEntry, error)
	ListAuditLogs(ctx context.Context, shop string, limit int) ([]model.AuditLogEntry, error)
	PurgeAuditLogsOlderThan(ctx context.Context, age time.Duration) (int64, error)

	// Per-shop logistics backend configuration
	GetLogisticCenter(ctx context.Context, shop string) (model.LogisticCenter, error)
	GetLogisticCenterByToken(ctx context.Context, token string) (model.LogisticCenter, error)
	UpsertLogisticCenter(ctx context.Context, lc model.LogisticCenter) error

	// Commerce-platform sessions
	GetSession(ctx context.Context, shop string) (model.Session, error)
	ListActiveSessions(ctx context.Context) ([]model.Session, error)
	UpsertSession(ctx context.Context, s model.Session) error

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// ErrValidation wraps audit writes rejected for missing required fields.
var ErrValidation = errors.New("missing required field")

// validateEntry enforces the audit write contract shared by both
// implementations.
func validateEntry(e model.AuditLogEntry) error {
	switch {
	case e.ExternalOrderID == "":
		return fmt.Errorf("externalOrderId: %w", ErrValidation)
	case e.Shop == "":
		return fmt.Errorf("shop: %w", ErrValidation)
	case e.EventType == "":
		return fmt.Errorf("eventType: %w", ErrValidation)
	case e.Status == "":
		return fmt.Errorf("status: %w", ErrValidation)
	}
	return nil
}
