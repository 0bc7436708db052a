package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"shiprelay/internal/model"
)

func TestSaveAuditLogValidation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.SaveAuditLog(ctx, model.AuditLogEntry{
		Shop: "s1.myshopify.com", EventType: model.EventOrderPaid, Status: model.StatusPending,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("missing externalOrderId: got %v, want ErrValidation", err)
	}

	id, err := m.SaveAuditLog(ctx, model.AuditLogEntry{
		ExternalOrderID: "1001", Shop: "s1.myshopify.com",
		EventType: model.EventOrderPaid, Status: model.StatusPending,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if id == 0 {
		t.Fatal("save returned zero id")
	}
}

func TestUpdateAuditLogTargetsLatest(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	old := model.AuditLogEntry{
		ExternalOrderID: "1001", Shop: "s1.myshopify.com",
		EventType: model.EventOrderPaid, Status: model.StatusError,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	if _, err := m.SaveAuditLog(ctx, old); err != nil {
		t.Fatalf("save old: %v", err)
	}
	latest := old
	latest.Status = model.StatusPending
	latest.CreatedAt = time.Now().UTC()
	latestID, err := m.SaveAuditLog(ctx, latest)
	if err != nil {
		t.Fatalf("save latest: %v", err)
	}

	status := 201
	err = m.UpdateAuditLog(ctx, "1001", model.EventOrderPaid, model.AuditLogUpdate{
		Status: model.StatusSuccess, HTTPStatus: &status,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	entries, err := m.ListAuditLogsForOrder(ctx, "1001", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// newest first
	if entries[0].ID != latestID {
		t.Fatalf("newest first: got id %d, want %d", entries[0].ID, latestID)
	}
	if entries[0].Status != model.StatusSuccess || entries[0].HTTPStatus != 201 {
		t.Fatalf("latest not updated: %+v", entries[0])
	}
	if entries[1].Status != model.StatusError {
		t.Fatalf("older entry mutated: %+v", entries[1])
	}
}

func TestUpdateAuditLogDegradesToCreate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.UpdateAuditLog(ctx, "2002", model.EventShipmentCompleted, model.AuditLogUpdate{
		Shop: "s1.myshopify.com", ErrorMessage: "late event",
	})
	if err != nil {
		t.Fatalf("update-as-create: %v", err)
	}
	entries, _ := m.ListAuditLogsForOrder(ctx, "2002", 0)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Status != model.StatusPending {
		t.Fatalf("degraded create status: got %s, want pending", entries[0].Status)
	}

	// A provided status is kept on the degraded create.
	err = m.UpdateAuditLog(ctx, "2004", model.EventOrderPaid, model.AuditLogUpdate{
		Shop: "s1.myshopify.com", Status: model.StatusSuccess, ResponseData: []byte(`{"ok":true}`),
	})
	if err != nil {
		t.Fatalf("update-as-create with status: %v", err)
	}
	entries, _ = m.ListAuditLogsForOrder(ctx, "2004", 0)
	if len(entries) != 1 || entries[0].Status != model.StatusSuccess {
		t.Fatalf("provided status lost: %+v", entries)
	}

	// Without a shop the degraded create must fail validation.
	err = m.UpdateAuditLog(ctx, "2003", model.EventShipmentCompleted, model.AuditLogUpdate{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("degraded create without shop: got %v, want ErrValidation", err)
	}
}

func TestPartialUpdateKeepsUnsetFields(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.SaveAuditLog(ctx, model.AuditLogEntry{
		ExternalOrderID: "3003", Shop: "s1.myshopify.com",
		EventType: model.EventOrderPaid, Status: model.StatusPending,
		ErrorMessage: "transient", HTTPStatus: 502, RetryCount: 2,
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.UpdateAuditLog(ctx, "3003", model.EventOrderPaid, model.AuditLogUpdate{
		Status: model.StatusSuccess,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	entries, _ := m.ListAuditLogsForOrder(ctx, "3003", 0)
	got := entries[0]
	if got.Status != model.StatusSuccess {
		t.Fatalf("status: got %s", got.Status)
	}
	if got.ErrorMessage != "transient" || got.HTTPStatus != 502 || got.RetryCount != 2 {
		t.Fatalf("unset fields mutated: %+v", got)
	}
}

func TestPurgeAuditLogsOlderThan(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stale := model.AuditLogEntry{
		ExternalOrderID: "old", Shop: "s1.myshopify.com",
		EventType: model.EventOrderPaid, Status: model.StatusSuccess,
		CreatedAt: time.Now().UTC().Add(-16 * 24 * time.Hour),
	}
	fresh := stale
	fresh.ExternalOrderID = "fresh"
	fresh.CreatedAt = time.Now().UTC()
	if _, err := m.SaveAuditLog(ctx, stale); err != nil {
		t.Fatalf("save stale: %v", err)
	}
	if _, err := m.SaveAuditLog(ctx, fresh); err != nil {
		t.Fatalf("save fresh: %v", err)
	}

	n, err := m.PurgeAuditLogsOlderThan(ctx, 15*24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Fatalf("purged %d, want 1", n)
	}

	// Idempotent: nothing left to purge.
	n, err = m.PurgeAuditLogsOlderThan(ctx, 15*24*time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("second purge: n=%d err=%v", n, err)
	}

	entries, _ := m.ListAuditLogs(ctx, "", 0)
	if len(entries) != 1 || entries[0].ExternalOrderID != "fresh" {
		t.Fatalf("wrong survivor: %+v", entries)
	}
}

func TestLogisticCenterTokenRouting(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lc := model.LogisticCenter{
		Shop: "s1.myshopify.com", BaseURL: "https://backend.example",
		AccessToken: "tok", WebhookToken: "wh-abc",
	}
	if err := m.UpsertLogisticCenter(ctx, lc); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := m.GetLogisticCenterByToken(ctx, "wh-abc")
	if err != nil || got.Shop != lc.Shop {
		t.Fatalf("by token: %+v err=%v", got, err)
	}

	// Rotating the token drops the old mapping.
	lc.WebhookToken = "wh-new"
	if err := m.UpsertLogisticCenter(ctx, lc); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := m.GetLogisticCenterByToken(ctx, "wh-abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stale token: got %v, want ErrNotFound", err)
	}
	if _, err := m.GetLogisticCenterByToken(ctx, "wh-new"); err != nil {
		t.Fatalf("new token: %v", err)
	}
}

func TestListActiveSessions(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.UpsertSession(ctx, model.Session{ID: "1", Shop: "a.myshopify.com", AccessToken: "t1"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := m.UpsertSession(ctx, model.Session{
		ID: "2", Shop: "b.myshopify.com", AccessToken: "t2",
		Expires: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("upsert expired: %v", err)
	}

	active, err := m.ListActiveSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].Shop != "a.myshopify.com" {
		t.Fatalf("active sessions: %+v", active)
	}
}
