package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsSubscribePayload struct {
	Shop string `json:"shop"`
}

func encodeEvent(evt RelayEvent) ([]byte, error) { return json.Marshal(evt.Data) }

// AuditWSHandler is the WebSocket flavor of the audit tail. The protocol is a
// small subset of graphql-transport-ws: connection_init/connection_ack,
// subscribe with a {shop} payload, next frames per event, complete on stop.
func (s *Server) AuditWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	type sub struct {
		shop string
		ch   chan RelayEvent
	}
	subs := map[string]sub{}
	defer func() {
		for _, su := range subs {
			s.Broker.Unsubscribe(su.shop, su.ch)
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	write := func(v any) error { return conn.WriteJSON(v) }

	pr := s.getPrincipal(r)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(20 * time.Second)
				defer ticker.Stop()
				for range ticker.C {
					if err := write(wsMessage{Type: "ping"}); err != nil {
						return
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			var pl wsSubscribePayload
			_ = json.Unmarshal(msg.Payload, &pl)
			shop := pl.Shop
			if !pr.IsAdmin() || shop == "" {
				shop = pr.Shop
			}
			if shop == "" {
				_ = write(wsMessage{Type: "error", ID: msg.ID, Payload: []byte(`{"message":"shop required"}`)})
				_ = write(wsMessage{Type: "complete", ID: msg.ID})
				continue
			}
			ch := s.Broker.Subscribe(shop)
			subs[msg.ID] = sub{shop: shop, ch: ch}
			go func(id string, c chan RelayEvent) {
				for evt := range c {
					payload, err := json.Marshal(evt)
					if err != nil {
						continue
					}
					if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
						return
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if su, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(su.shop, su.ch)
				delete(subs, msg.ID)
			}
		}
	}
}
