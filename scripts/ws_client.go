// Package main runs a demo WebSocket client tailing the audit trail.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	shop := os.Getenv("SHOP")
	if shop == "" {
		shop = "demo.myshopify.com"
	}

	// Configure a logistic center so the demo webhook below gets relayed.
	lcBody := []byte(`{"baseUrl":"http://localhost:9090","accessToken":"demo-token","externalId":"42"}`)
	req, _ := http.NewRequest(http.MethodPut, base+"/v1/admin/logistic-center?shop="+url.QueryEscape(shop), bytes.NewReader(lcBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shop", shop)
	req.Header.Set("X-Role", "admin")
	if _, err := http.DefaultClient.Do(req); err != nil {
		log.Fatal(err)
	}

	// Connect WS
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/audit-logs/ws"}
	hdr := http.Header{}
	hdr.Set("X-Shop", shop)
	hdr.Set("X-Role", "admin")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// connection_init
	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	// subscribe to the shop's relay events
	pl, _ := json.Marshal(map[string]any{"shop": shop})
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1", Payload: pl}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	// Trigger a relay via the orders/paid webhook
	time.Sleep(500 * time.Millisecond)
	order := []byte(`{"id":1001,"name":"#1001","financial_status":"paid","line_items":[{"id":1,"name":"Widget","quantity":2}]}`)
	whReq, _ := http.NewRequest(http.MethodPost, base+"/webhooks/orders/paid", bytes.NewReader(order))
	whReq.Header.Set("Content-Type", "application/json")
	whReq.Header.Set("X-Shopify-Shop-Domain", shop)
	_, _ = http.DefaultClient.Do(whReq)

	// Wait briefly to receive a few messages
	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
