package shopify

import (
	"context"
)

// Fulfillment-order states the relay acts on.
const (
	foStatusOpen       = "OPEN"
	foStatusInProgress = "IN_PROGRESS"
	foReqUnsubmitted   = "UNSUBMITTED"
	fulfillmentCarrier = "Recibelo"
)

const fulfillmentOrdersQuery = `
query getFulfillmentOrders($orderId: ID!) {
  order(id: $orderId) {
    id
    fulfillmentOrders(first: 10) {
      edges {
        node {
          id
          status
          requestStatus
        }
      }
    }
  }
}`

const fulfillmentOrderUpdateMutation = `
mutation fulfillmentOrderUpdate($id: ID!, $status: FulfillmentOrderStatus!) {
  fulfillmentOrderUpdate(id: $id, status: $status) {
    fulfillmentOrder { id status }
    userErrors { field message }
  }
}`

const fulfillmentCreateMutation = `
mutation fulfillmentCreateV2($fulfillment: FulfillmentV2Input!) {
  fulfillmentCreateV2(fulfillment: $fulfillment) {
    fulfillment {
      id
      status
      trackingInfo { number url company }
    }
    userErrors { field message }
  }
}`

type fulfillmentOrder struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	RequestStatus string `json:"requestStatus"`
}

type fulfillmentOrdersData struct {
	Order *struct {
		ID                string `json:"id"`
		FulfillmentOrders struct {
			Edges []struct {
				Node fulfillmentOrder `json:"node"`
			} `json:"edges"`
		} `json:"fulfillmentOrders"`
	} `json:"order"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// fetchFulfillmentOrders runs the query phase shared by both operations. A
// failure here aborts the whole operation.
func (c *Client) fetchFulfillmentOrders(ctx context.Context, shop, accessToken, orderID string) ([]fulfillmentOrder, error) {
	var data fulfillmentOrdersData
	err := c.do(ctx, shop, accessToken, fulfillmentOrdersQuery,
		map[string]any{"orderId": orderGID(orderID)}, &data)
	if err != nil {
		return nil, err
	}
	if data.Order == nil {
		return nil, nil
	}
	out := make([]fulfillmentOrder, 0, len(data.Order.FulfillmentOrders.Edges))
	for _, e := range data.Order.FulfillmentOrders.Edges {
		out = append(out, e.Node)
	}
	return out, nil
}

// AdvanceToInProgress moves each OPEN/UNSUBMITTED fulfillment order of the
// given order to IN_PROGRESS. Already-advanced or cancelled fulfillment
// orders are left untouched. Per-item mutation failures are logged and do
// not abort the loop; only a query-phase failure propagates.
func (c *Client) AdvanceToInProgress(ctx context.Context, shop, accessToken, orderID string) error {
	fos, err := c.fetchFulfillmentOrders(ctx, shop, accessToken, orderID)
	if err != nil {
		return err
	}
	for _, fo := range fos {
		if fo.Status != foStatusOpen || fo.RequestStatus != foReqUnsubmitted {
			continue
		}
		var res struct {
			FulfillmentOrderUpdate struct {
				UserErrors []userError `json:"userErrors"`
			} `json:"fulfillmentOrderUpdate"`
		}
		err := c.do(ctx, shop, accessToken, fulfillmentOrderUpdateMutation,
			map[string]any{"id": fo.ID, "status": foStatusInProgress}, &res)
		if err != nil {
			c.Log.Errorw("fulfillment order update failed", "shop", shop, "fulfillmentOrder", fo.ID, "err", err)
			continue
		}
		if len(res.FulfillmentOrderUpdate.UserErrors) > 0 {
			c.Log.Errorw("fulfillment order update rejected", "shop", shop, "fulfillmentOrder", fo.ID,
				"userErrors", res.FulfillmentOrderUpdate.UserErrors)
			continue
		}
		c.Log.Infow("fulfillment order advanced", "shop", shop, "fulfillmentOrder", fo.ID, "status", foStatusInProgress)
	}
	return nil
}

// CreateFulfillmentWithTracking creates a fulfillment with tracking info and
// customer notification for each IN_PROGRESS or OPEN fulfillment order of the
// given order. Same per-item failure isolation as AdvanceToInProgress.
func (c *Client) CreateFulfillmentWithTracking(ctx context.Context, shop, accessToken, orderID, trackingNumber, trackingURL string) error {
	fos, err := c.fetchFulfillmentOrders(ctx, shop, accessToken, orderID)
	if err != nil {
		return err
	}
	for _, fo := range fos {
		if fo.Status != foStatusInProgress && fo.Status != foStatusOpen {
			continue
		}
		var res struct {
			FulfillmentCreateV2 struct {
				UserErrors []userError `json:"userErrors"`
			} `json:"fulfillmentCreateV2"`
		}
		vars := map[string]any{
			"fulfillment": map[string]any{
				"fulfillmentOrderId": fo.ID,
				"trackingInfo": map[string]any{
					"number":  trackingNumber,
					"url":     trackingURL,
					"company": fulfillmentCarrier,
				},
				"notifyCustomer": true,
			},
		}
		err := c.do(ctx, shop, accessToken, fulfillmentCreateMutation, vars, &res)
		if err != nil {
			c.Log.Errorw("fulfillment create failed", "shop", shop, "fulfillmentOrder", fo.ID, "err", err)
			continue
		}
		if len(res.FulfillmentCreateV2.UserErrors) > 0 {
			c.Log.Errorw("fulfillment create rejected", "shop", shop, "fulfillmentOrder", fo.ID,
				"userErrors", res.FulfillmentCreateV2.UserErrors)
			continue
		}
		// Creating the fulfillment flips the fulfillment order to FULFILLED.
		c.Log.Infow("fulfillment created", "shop", shop, "fulfillmentOrder", fo.ID, "tracking", trackingNumber)
	}
	return nil
}
