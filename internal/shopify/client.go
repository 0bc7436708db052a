// Package shopify is a minimal client for the commerce platform's GraphQL
// admin API, covering the fulfillment-order operations the relay needs.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"shiprelay/internal/relay"
)

const defaultAPIVersion = "2024-10"

// Client issues GraphQL calls against a shop's admin endpoint using its
// session access token. Calls are throttled through a shared limiter since
// the platform enforces per-app rate limits.
type Client struct {
	HTTP       *http.Client
	Limiter    *rate.Limiter
	APIVersion string
	Log        *zap.SugaredLogger

	// BaseURL overrides the per-shop admin endpoint; tests point it at a
	// local server. Empty in production.
	BaseURL string
}

func NewClient(log *zap.SugaredLogger, apiVersion string) *Client {
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	return &Client{
		HTTP:       &http.Client{Timeout: 15 * time.Second},
		Limiter:    rate.NewLimiter(rate.Limit(2), 4),
		APIVersion: apiVersion,
		Log:        log,
	}
}

func (c *Client) endpoint(shop string) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shop, c.APIVersion)
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors,omitempty"`
}

// do executes one GraphQL call and decodes data into out. A non-2xx response
// or an errors array is a *relay.TransportError.
func (c *Client) do(ctx context.Context, shop, accessToken, query string, variables map[string]any, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	body, err := json.Marshal(gqlRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(shop), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &relay.TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &relay.TransportError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &relay.TransportError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var gr gqlResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return &relay.TransportError{Status: resp.StatusCode, Err: err}
	}
	if len(gr.Errors) > 0 {
		msgs, _ := json.Marshal(gr.Errors)
		return &relay.TransportError{Status: resp.StatusCode, Body: "graphql errors: " + string(msgs)}
	}
	if out != nil && gr.Data != nil {
		return json.Unmarshal(gr.Data, out)
	}
	return nil
}

func orderGID(orderID string) string { return "gid://shopify/Order/" + orderID }
