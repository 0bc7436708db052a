package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"shiprelay/internal/model"
)

// BackendClient sends package-creation requests to a shop's logistics
// backend.
type BackendClient struct {
	HTTP *http.Client
	Log  *zap.SugaredLogger
}

func NewBackendClient(log *zap.SugaredLogger) *BackendClient {
	return &BackendClient{
		HTTP: &http.Client{Timeout: 15 * time.Second},
		Log:  log,
	}
}

// webhookURL templates the backend's ingestion endpoint:
// {baseUrl}/webhook/{accessToken}/shopify
func webhookURL(lc model.LogisticCenter) string {
	return fmt.Sprintf("%s/webhook/%s/shopify", strings.TrimRight(lc.BaseURL, "/"), lc.AccessToken)
}

// BuildPackagePayload assembles the package-creation body for a paid order.
func BuildPackagePayload(lc model.LogisticCenter, order model.ShopifyOrder, shop string) model.PackagePayload {
	items := order.LineItems
	if items == nil {
		items = []model.LineItem{}
	}
	return model.PackagePayload{
		ShopifyOrderID:     order.OrderID(),
		OrderName:          order.Label(),
		OrderNumber:        order.OrderNumber.String(),
		FinancialStatus:    order.FinancialStatus,
		LineItems:          items,
		ShippingAddress:    order.ShippingAddress,
		BillingAddress:     order.BillingAddress,
		Customer:           order.Customer,
		TotalPrice:         order.TotalPrice,
		SubtotalPrice:      order.SubtotalPrice,
		TotalShippingPrice: order.ShippingAmount(),
		Currency:           order.Currency,
		CreatedAt:          order.CreatedAt,
		UpdatedAt:          order.UpdatedAt,
		Shop:               shop,
		EcommerceID:        model.SourcePlatformID,
		ClientID:           lc.ExternalID,
	}
}

// RelayPaidOrder posts the package payload for a paid order to the logistics
// backend. The caller has already checked financial status and config
// completeness. Returns the parsed response body and the HTTP status. A
// non-2xx response or a network failure is a *TransportError.
func (c *BackendClient) RelayPaidOrder(ctx context.Context, lc model.LogisticCenter, order model.ShopifyOrder, shop string) (json.RawMessage, int, error) {
	payload := BuildPackagePayload(lc, order, shop)
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}

	url := webhookURL(lc)
	c.Log.Infow("relaying paid order", "shop", shop, "order", payload.OrderName, "orderId", payload.ShopifyOrderID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.Log.Errorw("logistics backend rejected package", "shop", shop, "status", resp.StatusCode, "body", string(respBody))
		return nil, resp.StatusCode, &TransportError{Status: resp.StatusCode, Body: string(respBody)}
	}

	// The backend answers with a JSON body describing the created package.
	if !json.Valid(respBody) {
		respBody, _ = json.Marshal(map[string]string{"raw": string(respBody)})
	}
	c.Log.Infow("package created on logistics backend", "shop", shop, "order", payload.OrderName, "status", resp.StatusCode)
	return respBody, resp.StatusCode, nil
}
