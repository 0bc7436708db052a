package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shiprelay/internal/metrics"
	"shiprelay/internal/model"
	"shiprelay/internal/relay"
	"shiprelay/internal/store"
	"shiprelay/internal/webhooks"
)

const maxWebhookBody = 1 << 20

func intPtr(v int) *int { return &v }

// OrderPaidHandler receives the commerce platform's orders/paid webhook and
// relays the order to the shop's logistics backend. Every outcome except a
// signature failure is acknowledged with 200 so the platform never retries;
// failures live in the audit trail instead.
func (s *Server) OrderPaidHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "use POST", r.URL.Path)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeWebhookErr(w, http.StatusOK, "unreadable body")
		return
	}
	shop := r.Header.Get("X-Shopify-Shop-Domain")

	if s.Cfg.ShopifyWebhookSecret != "" {
		sig := r.Header.Get("X-Shopify-Hmac-Sha256")
		if !webhooks.VerifyShopifyHMAC(s.Cfg.ShopifyWebhookSecret, body, sig) {
			s.Log.Warnw("webhook signature rejected", "shop", shop)
			s.Recorder.Record(r.Context(), model.AuditLogEntry{
				ExternalOrderID: model.UnknownOrderID,
				Shop:            orDefault(shop, model.UnknownOrderID),
				EventType:       model.EventError,
				Status:          model.StatusError,
				ErrorMessage:    "webhook HMAC verification failed",
				HTTPStatus:      http.StatusUnauthorized,
			})
			writeWebhookErr(w, http.StatusUnauthorized, "invalid webhook signature")
			return
		}
	}

	var order model.ShopifyOrder
	if err := json.Unmarshal(body, &order); err != nil || order.OrderID() == "" {
		msg := "order payload missing id"
		if err != nil {
			msg = "invalid order payload: " + err.Error()
		}
		s.Recorder.Record(r.Context(), model.AuditLogEntry{
			ExternalOrderID: model.UnknownOrderID,
			Shop:            orDefault(shop, model.UnknownOrderID),
			EventType:       model.EventError,
			Status:          model.StatusError,
			RequestData:     json.RawMessage(body),
			ErrorMessage:    msg,
		})
		writeWebhookErr(w, http.StatusOK, msg)
		return
	}
	orderID := order.OrderID()

	// Only paid orders cross over; everything else is a silent ack.
	if !strings.EqualFold(order.FinancialStatus, "paid") {
		s.Log.Infow("order not paid, skipping", "shop", shop, "orderId", orderID, "financialStatus", order.FinancialStatus)
		writeWebhookOK(w, http.StatusOK, "order not paid, nothing to relay", nil)
		return
	}

	lc, err := s.Store.GetLogisticCenter(r.Context(), shop)
	if err != nil || !lc.Configured() {
		msg := "logistics backend not configured for shop"
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			msg = "logistic center lookup failed: " + err.Error()
		}
		s.Recorder.Record(r.Context(), model.AuditLogEntry{
			ExternalOrderID: orderID,
			OrderLabel:      order.Label(),
			Shop:            orDefault(shop, model.UnknownOrderID),
			EventType:       model.EventError,
			Status:          model.StatusError,
			ErrorMessage:    msg,
		})
		writeWebhookErr(w, http.StatusOK, msg)
		return
	}

	s.Recorder.Record(r.Context(), model.AuditLogEntry{
		ExternalOrderID: orderID,
		OrderLabel:      order.Label(),
		Shop:            shop,
		EventType:       model.EventOrderPaid,
		Status:          model.StatusPending,
		RequestData:     json.RawMessage(body),
	})

	start := time.Now()
	respData, status, err := s.Backend.RelayPaidOrder(r.Context(), lc, order, shop)
	metrics.OutboundLatency.WithLabelValues(strconv.Itoa(status)).
		Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		var te *relay.TransportError
		httpStatus := 0
		if errors.As(err, &te) {
			httpStatus = te.Status
		}
		s.Recorder.Update(r.Context(), orderID, model.EventOrderPaid, model.AuditLogUpdate{
			Status:       model.StatusError,
			Shop:         shop,
			OrderLabel:   order.Label(),
			ErrorMessage: err.Error(),
			HTTPStatus:   intPtr(httpStatus),
		})
		metrics.RelayAttempts.WithLabelValues("outbound", model.EventOrderPaid, model.StatusError).Inc()
		s.Broker.Publish(shop, RelayEvent{Type: model.EventOrderPaid, Data: map[string]any{
			"orderId": orderID, "status": model.StatusError, "error": err.Error(),
		}})
		writeWebhookErr(w, http.StatusOK, "relay to logistics backend failed")
		return
	}

	s.Recorder.Update(r.Context(), orderID, model.EventOrderPaid, model.AuditLogUpdate{
		Status:       model.StatusSuccess,
		Shop:         shop,
		OrderLabel:   order.Label(),
		ResponseData: respData,
		HTTPStatus:   intPtr(status),
	})
	metrics.RelayAttempts.WithLabelValues("outbound", model.EventOrderPaid, model.StatusSuccess).Inc()
	s.Broker.Publish(shop, RelayEvent{Type: model.EventOrderPaid, Data: map[string]any{
		"orderId": orderID, "status": model.StatusSuccess,
	}})
	writeWebhookOK(w, http.StatusOK, "order relayed", map[string]any{"orderId": orderID})
}

// LogisticsEventHandler receives status webhooks from the logistics backend
// and reflects them into the commerce platform as fulfillment updates.
// Failures here return real error statuses because the backend retries.
func (s *Server) LogisticsEventHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "use POST", r.URL.Path)
		return
	}
	token := strings.Trim(strings.TrimPrefix(r.URL.Path, "/webhooks/logistics"), "/")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeWebhookErr(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ev, err := relay.ParseEvent(body)
	if err != nil {
		writeWebhookErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if ev.Kind == relay.KindUnrecognized {
		s.Log.Infow("unrecognized logistics event", "status", ev.StatusLabel, "packageId", ev.PackageID)
		writeWebhookOK(w, http.StatusOK, "event not processed: "+ev.StatusLabel, nil)
		return
	}

	shop, ok := s.resolveShop(w, r, token)
	if !ok {
		return
	}

	sess, err := s.Store.GetSession(r.Context(), shop)
	if err != nil || !sess.Active(time.Now()) {
		writeWebhookErr(w, http.StatusNotFound, "no active session for shop")
		return
	}

	eventType := ev.EventType()
	switch ev.Kind {
	case relay.KindPackageCreated:
		if ev.ExternalOrderID == "" {
			// No order to act on; note it and ack so the backend stops retrying.
			s.Recorder.Record(r.Context(), model.AuditLogEntry{
				ExternalOrderID: model.UnknownOrderID,
				Shop:            shop,
				EventType:       model.EventError,
				Status:          model.StatusError,
				RequestData:     json.RawMessage(body),
				ErrorMessage:    "package_created without order id, package " + ev.PackageID,
			})
			writeWebhookOK(w, http.StatusOK, "package created, no order to update", nil)
			return
		}
		s.Recorder.Record(r.Context(), model.AuditLogEntry{
			ExternalOrderID: ev.ExternalOrderID,
			Shop:            shop,
			EventType:       eventType,
			Status:          model.StatusPending,
			RequestData:     json.RawMessage(body),
		})
		err = s.Shopify.AdvanceToInProgress(r.Context(), shop, sess.AccessToken, ev.ExternalOrderID)
	case relay.KindShipmentCompleted:
		if ev.ExternalOrderID == "" {
			writeWebhookErr(w, http.StatusBadRequest, "shipment_completed without order id")
			return
		}
		ev.EnsureTracking()
		s.Recorder.Record(r.Context(), model.AuditLogEntry{
			ExternalOrderID: ev.ExternalOrderID,
			Shop:            shop,
			EventType:       eventType,
			Status:          model.StatusPending,
			RequestData:     json.RawMessage(body),
		})
		err = s.Shopify.CreateFulfillmentWithTracking(r.Context(), shop, sess.AccessToken,
			ev.ExternalOrderID, ev.TrackingNumber, ev.TrackingURL)
	}

	if err != nil {
		var te *relay.TransportError
		httpStatus := 0
		if errors.As(err, &te) {
			httpStatus = te.Status
		}
		s.Recorder.Update(r.Context(), ev.ExternalOrderID, eventType, model.AuditLogUpdate{
			Status:       model.StatusError,
			Shop:         shop,
			ErrorMessage: err.Error(),
			HTTPStatus:   intPtr(httpStatus),
		})
		metrics.RelayAttempts.WithLabelValues("inbound", eventType, model.StatusError).Inc()
		s.Broker.Publish(shop, RelayEvent{Type: eventType, Data: map[string]any{
			"orderId": ev.ExternalOrderID, "status": model.StatusError, "error": err.Error(),
		}})
		writeWebhookErr(w, http.StatusInternalServerError, "fulfillment update failed")
		return
	}

	upd := model.AuditLogUpdate{
		Status:     model.StatusSuccess,
		Shop:       shop,
		HTTPStatus: intPtr(http.StatusOK),
	}
	if ev.Kind == relay.KindShipmentCompleted {
		upd.ResponseData, _ = json.Marshal(map[string]string{
			"trackingNumber": ev.TrackingNumber, "trackingUrl": ev.TrackingURL,
		})
	}
	s.Recorder.Update(r.Context(), ev.ExternalOrderID, eventType, upd)
	metrics.RelayAttempts.WithLabelValues("inbound", eventType, model.StatusSuccess).Inc()
	s.Broker.Publish(shop, RelayEvent{Type: eventType, Data: map[string]any{
		"orderId": ev.ExternalOrderID, "status": model.StatusSuccess,
	}})
	writeWebhookOK(w, http.StatusOK, "event processed", map[string]any{"orderId": ev.ExternalOrderID})
}

// resolveShop attributes an inbound logistics webhook to a shop. The path
// token is authoritative when present; without one the lookup falls back to
// the single active session, which only works for single-tenant installs.
func (s *Server) resolveShop(w http.ResponseWriter, r *http.Request, token string) (string, bool) {
	if token != "" {
		lc, err := s.Store.GetLogisticCenterByToken(r.Context(), token)
		if err != nil {
			writeWebhookErr(w, http.StatusNotFound, "unknown webhook token")
			return "", false
		}
		return lc.Shop, true
	}
	sessions, err := s.Store.ListActiveSessions(r.Context())
	if err != nil {
		writeWebhookErr(w, http.StatusInternalServerError, "session lookup failed")
		return "", false
	}
	switch len(sessions) {
	case 1:
		return sessions[0].Shop, true
	case 0:
		writeWebhookErr(w, http.StatusBadRequest, "no active sessions")
		return "", false
	default:
		writeWebhookErr(w, http.StatusBadRequest, "ambiguous tenant, use the tokened webhook path")
		return "", false
	}
}

// CleanupHandler purges audit entries older than the retention age.
// POST runs the purge; callers may override the age with ?olderThanDays=N.
// GET describes the operation without running it.
func (s *Server) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, map[string]any{
			"usage":      "POST to purge audit entries older than the retention age",
			"params":     map[string]string{"olderThanDays": "optional override, positive integer"},
			"defaultAge": s.Cfg.RetentionAge.String(),
		})
		return
	}
	if r.Method != http.MethodPost {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "use GET or POST", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
		return
	}
	age := s.Cfg.RetentionAge
	if v := r.URL.Query().Get("olderThanDays"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 1 {
			writeProblem(w, http.StatusBadRequest, "invalid olderThanDays", "must be a positive integer", r.URL.Path)
			return
		}
		age = time.Duration(days) * 24 * time.Hour
	}
	n, err := s.Store.PurgeAuditLogsOlderThan(r.Context(), age)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "cleanup failed", err.Error(), r.URL.Path)
		return
	}
	if n > 0 {
		metrics.AuditPurged.Add(float64(n))
	}
	s.Log.Infow("audit cleanup", "deleted", n, "olderThan", age.String(), "by", p.Shop)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": n, "olderThan": age.String()})
}

// AuditLogsHandler lists audit entries, newest first. Filter with ?orderId=
// or ?shop=; non-admin callers are pinned to their own shop.
func (s *Server) AuditLogsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "use GET", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var (
		entries []model.AuditLogEntry
		err     error
	)
	if orderID := r.URL.Query().Get("orderId"); orderID != "" {
		entries, err = s.Store.ListAuditLogsForOrder(r.Context(), orderID, limit)
	} else {
		shop := r.URL.Query().Get("shop")
		if !p.IsAdmin() || shop == "" {
			shop = p.Shop
		}
		entries, err = s.Store.ListAuditLogs(r.Context(), shop, limit)
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "audit lookup failed", err.Error(), r.URL.Path)
		return
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// LogisticCenterHandler reads and writes the per-shop backend configuration.
func (s *Server) LogisticCenterHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
		return
	}
	shop := r.URL.Query().Get("shop")
	if shop == "" {
		shop = p.Shop
	}
	if shop == "" {
		writeProblem(w, http.StatusBadRequest, "missing shop", "pass ?shop= or a shop-scoped token", r.URL.Path)
		return
	}

	switch r.Method {
	case http.MethodGet:
		lc, err := s.Store.GetLogisticCenter(r.Context(), shop)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "not configured", "no logistic center for shop", r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "lookup failed", err.Error(), r.URL.Path)
			return
		}
		lc.AccessToken = redactToken(lc.AccessToken)
		writeJSON(w, http.StatusOK, lc)
	case http.MethodPut:
		var lc model.LogisticCenter
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&lc); err != nil {
			writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
			return
		}
		lc.Shop = shop
		if !lc.Configured() {
			writeProblem(w, http.StatusBadRequest, "incomplete config", "baseUrl and accessToken are required", r.URL.Path)
			return
		}
		if err := s.Store.UpsertLogisticCenter(r.Context(), lc); err != nil {
			writeProblem(w, http.StatusInternalServerError, "save failed", err.Error(), r.URL.Path)
			return
		}
		s.Log.Infow("logistic center updated", "shop", shop)
		writeJSON(w, http.StatusOK, map[string]any{"saved": true, "shop": shop})
	default:
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "use GET or PUT", r.URL.Path)
	}
}

// HealthHandler is a liveness probe.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler is a readiness probe that checks the store.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "store unavailable", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func redactToken(tok string) string {
	if len(tok) <= 4 {
		return "****"
	}
	return "****" + tok[len(tok)-4:]
}
