package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"shiprelay/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	entries []*model.AuditLogEntry          // append order == creation order
	centers map[string]model.LogisticCenter // shop -> config
	tokens  map[string]string               // webhook token -> shop
	sess    map[string]model.Session        // shop -> session
}

func NewMemory() *Memory {
	return &Memory{
		centers: map[string]model.LogisticCenter{},
		tokens:  map[string]string{},
		sess:    map[string]model.Session{},
	}
}

func (m *Memory) SaveAuditLog(ctx context.Context, e model.AuditLogEntry) (int64, error) {
	if err := validateEntry(e); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	cp := e
	m.entries = append(m.entries, &cp)
	return e.ID, nil
}

func (m *Memory) UpdateAuditLog(ctx context.Context, externalOrderID, eventType string, upd model.AuditLogUpdate) error {
	m.mu.Lock()
	var latest *model.AuditLogEntry
	for _, e := range m.entries {
		if e.ExternalOrderID == externalOrderID && e.EventType == eventType {
			if latest == nil || e.CreatedAt.After(latest.CreatedAt) || (e.CreatedAt.Equal(latest.CreatedAt) && e.ID > latest.ID) {
				latest = e
			}
		}
	}
	if latest != nil {
		applyUpdate(latest, upd)
		latest.UpdatedAt = time.Now().UTC()
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	// No current entry: degrade to create.
	_, err := m.SaveAuditLog(ctx, entryFromUpdate(externalOrderID, eventType, upd))
	return err
}

func (m *Memory) ListAuditLogsForOrder(ctx context.Context, externalOrderID string, limit int) ([]model.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AuditLogEntry{}
	for _, e := range m.entries {
		if e.ExternalOrderID == externalOrderID {
			out = append(out, *e)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ListAuditLogs(ctx context.Context, shop string, limit int) ([]model.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.AuditLogEntry{}
	for _, e := range m.entries {
		if shop == "" || e.Shop == shop {
			out = append(out, *e)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) PurgeAuditLogsOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-age)
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	var deleted int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return deleted, nil
}

func (m *Memory) GetLogisticCenter(ctx context.Context, shop string) (model.LogisticCenter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lc, ok := m.centers[shop]
	if !ok {
		return model.LogisticCenter{}, ErrNotFound
	}
	return lc, nil
}

func (m *Memory) GetLogisticCenterByToken(ctx context.Context, token string) (model.LogisticCenter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shop, ok := m.tokens[token]
	if !ok {
		return model.LogisticCenter{}, ErrNotFound
	}
	return m.centers[shop], nil
}

func (m *Memory) UpsertLogisticCenter(ctx context.Context, lc model.LogisticCenter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := m.centers[lc.Shop]; ok {
		lc.CreatedAt = prev.CreatedAt
		if prev.WebhookToken != "" && prev.WebhookToken != lc.WebhookToken {
			delete(m.tokens, prev.WebhookToken)
		}
	} else {
		lc.CreatedAt = now
	}
	lc.UpdatedAt = now
	m.centers[lc.Shop] = lc
	if lc.WebhookToken != "" {
		m.tokens[lc.WebhookToken] = lc.Shop
	}
	return nil
}

func (m *Memory) GetSession(ctx context.Context, shop string) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sess[shop]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListActiveSessions(ctx context.Context) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []model.Session{}
	for _, s := range m.sess {
		if s.Active(now) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Shop < out[j].Shop })
	return out, nil
}

func (m *Memory) UpsertSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess[s.Shop] = s
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func sortNewestFirst(entries []model.AuditLogEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
}

// applyUpdate merges only the explicitly provided fields.
func applyUpdate(e *model.AuditLogEntry, upd model.AuditLogUpdate) {
	if upd.Status != "" {
		e.Status = upd.Status
	}
	if upd.ResponseData != nil {
		e.ResponseData = upd.ResponseData
	}
	if upd.ErrorMessage != "" {
		e.ErrorMessage = upd.ErrorMessage
	}
	if upd.HTTPStatus != nil {
		e.HTTPStatus = *upd.HTTPStatus
	}
	if upd.RetryCount != nil && *upd.RetryCount >= 0 {
		e.RetryCount = *upd.RetryCount
	}
}

// entryFromUpdate builds the create used when an update finds no current
// entry. Status defaults to pending.
func entryFromUpdate(externalOrderID, eventType string, upd model.AuditLogUpdate) model.AuditLogEntry {
	e := model.AuditLogEntry{
		ExternalOrderID: externalOrderID,
		OrderLabel:      upd.OrderLabel,
		Shop:            upd.Shop,
		EventType:       eventType,
		Status:          upd.Status,
		RequestData:     upd.RequestData,
		ResponseData:    upd.ResponseData,
		ErrorMessage:    upd.ErrorMessage,
	}
	if e.Status == "" {
		e.Status = model.StatusPending
	}
	if upd.HTTPStatus != nil {
		e.HTTPStatus = *upd.HTTPStatus
	}
	if upd.RetryCount != nil && *upd.RetryCount >= 0 {
		e.RetryCount = *upd.RetryCount
	}
	return e
}
