package api

import (
	"fmt"
	"net/http"
	"time"
)

// AuditStreamHandler streams relay outcomes for a shop as server-sent events.
// Useful for dashboards tailing the audit trail without polling.
func (s *Server) AuditStreamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "use GET", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	shop := r.URL.Query().Get("shop")
	if !p.IsAdmin() || shop == "" {
		shop = p.Shop
	}
	if shop == "" {
		writeProblem(w, http.StatusBadRequest, "missing shop", "pass ?shop= or a shop-scoped token", r.URL.Path)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(shop)
	defer s.Broker.Unsubscribe(shop, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\n")
		fmt.Fprintf(w, "data: {\"shop\":%q,\"ts\":%q}\n\n", shop, time.Now().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()

	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, err := encodeEvent(evt)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", b)
			flusher.Flush()
		case <-time.After(15 * time.Second):
			heartbeat()
		}
	}
}
