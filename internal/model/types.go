// Package model defines the wire and storage types shared across the relay.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Audit event types.
const (
	EventOrderPaid          = "order_paid"
	EventPackageCreated     = "package_created"
	EventShipmentCompleted  = "shipment_completed"
	EventFulfillmentUpdated = "fulfillment_updated"
	EventError              = "error"
)

// Audit entry statuses.
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusError   = "error"
	StatusRetry   = "retry"
)

// UnknownOrderID is the sentinel used when the platform order id cannot be
// determined (auth failures, unparseable payloads).
const UnknownOrderID = "unknown"

// AuditLogEntry is one durable record of a relay attempt.
type AuditLogEntry struct {
	ID              int64           `json:"id"`
	ExternalOrderID string          `json:"externalOrderId"`
	OrderLabel      string          `json:"orderLabel,omitempty"`
	Shop            string          `json:"shop"`
	EventType       string          `json:"eventType"`
	Status          string          `json:"status"`
	RequestData     json.RawMessage `json:"requestData,omitempty"`
	ResponseData    json.RawMessage `json:"responseData,omitempty"`
	ErrorMessage    string          `json:"errorMessage,omitempty"`
	HTTPStatus      int             `json:"httpStatus,omitempty"`
	RetryCount      int             `json:"retryCount"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// AuditLogUpdate carries a partial update for the latest entry matching
// (externalOrderId, eventType). Zero-valued fields are left untouched.
// HTTPStatus and RetryCount use pointers so an explicit zero can be told
// apart from "not provided"; RetryCount is applied only when non-negative.
// Shop and OrderLabel only matter when the update degrades to a create.
type AuditLogUpdate struct {
	Status       string
	Shop         string
	OrderLabel   string
	RequestData  json.RawMessage
	ResponseData json.RawMessage
	ErrorMessage string
	HTTPStatus   *int
	RetryCount   *int
}

// LogisticCenter is the per-shop configuration for the logistics backend.
// WebhookToken is the opaque routing token carried in the inbound webhook
// path so events can be attributed to a shop without session inference.
type LogisticCenter struct {
	Shop         string    `json:"shop"`
	BaseURL      string    `json:"baseUrl"`
	AccessToken  string    `json:"accessToken"`
	ExternalID   string    `json:"externalId"`
	WebhookToken string    `json:"webhookToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Configured reports whether the center has everything the outbound relay needs.
func (lc LogisticCenter) Configured() bool {
	return lc.BaseURL != "" && lc.AccessToken != ""
}

// Session is a commerce-platform access token for a shop.
type Session struct {
	ID          string    `json:"id"`
	Shop        string    `json:"shop"`
	AccessToken string    `json:"accessToken"`
	Expires     time.Time `json:"expires,omitempty"` // zero means non-expiring
}

// Active reports whether the session is usable at time now.
func (s Session) Active(now time.Time) bool {
	return s.AccessToken != "" && (s.Expires.IsZero() || s.Expires.After(now))
}

// FlexID decodes a JSON field that may arrive as a number or a string.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// Address is a shipping or billing address on an inbound order.
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Address1  string `json:"address1,omitempty"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	Country   string `json:"country,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Customer is the buyer summary on an inbound order.
type Customer struct {
	ID        FlexID `json:"id,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// LineItem is one order line on an inbound order.
type LineItem struct {
	ID        FlexID `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	SKU       string `json:"sku,omitempty"`
	VariantID FlexID `json:"variant_id,omitempty"`
	Price     string `json:"price,omitempty"`
}

// ShopifyOrder is the orders/paid webhook payload as delivered by the
// commerce platform.
type ShopifyOrder struct {
	ID                 FlexID     `json:"id"`
	Name               string     `json:"name,omitempty"`
	OrderNumber        FlexID     `json:"order_number,omitempty"`
	FinancialStatus    string     `json:"financial_status"`
	LineItems          []LineItem `json:"line_items,omitempty"`
	ShippingAddress    *Address   `json:"shipping_address,omitempty"`
	BillingAddress     *Address   `json:"billing_address,omitempty"`
	Customer           *Customer  `json:"customer,omitempty"`
	TotalPrice         string     `json:"total_price,omitempty"`
	SubtotalPrice      string     `json:"subtotal_price,omitempty"`
	TotalShippingPrice string     `json:"total_shipping_price,omitempty"`
	TotalShippingSet   *MoneySet  `json:"total_shipping_price_set,omitempty"`
	Currency           string     `json:"currency,omitempty"`
	CreatedAt          string     `json:"created_at,omitempty"`
	UpdatedAt          string     `json:"updated_at,omitempty"`
}

// MoneySet mirrors the platform's price-set wrapper.
type MoneySet struct {
	ShopMoney *Money `json:"shop_money,omitempty"`
}

type Money struct {
	Amount string `json:"amount,omitempty"`
}

const orderGIDPrefix = "gid://shopify/Order/"

// OrderID returns the bare platform order id, stripping the GraphQL gid
// prefix when present. Empty when the payload carried no id.
func (o ShopifyOrder) OrderID() string {
	return strings.TrimPrefix(o.ID.String(), orderGIDPrefix)
}

// Label returns the human-readable order name, falling back to the order
// number and finally the order id.
func (o ShopifyOrder) Label() string {
	if o.Name != "" {
		return o.Name
	}
	if o.OrderNumber != "" {
		return o.OrderNumber.String()
	}
	return o.OrderID()
}

// ShippingAmount prefers the price-set amount over the flat field, matching
// how the platform reports shipping totals on newer API versions.
func (o ShopifyOrder) ShippingAmount() string {
	if o.TotalShippingSet != nil && o.TotalShippingSet.ShopMoney != nil && o.TotalShippingSet.ShopMoney.Amount != "" {
		return o.TotalShippingSet.ShopMoney.Amount
	}
	return o.TotalShippingPrice
}

// SourcePlatformID tags outbound payloads with the originating platform.
const SourcePlatformID = 1

// PackagePayload is the package-creation body sent to the logistics backend.
type PackagePayload struct {
	ShopifyOrderID     string     `json:"shopify_order_id"`
	OrderName          string     `json:"order_name"`
	OrderNumber        string     `json:"order_number,omitempty"`
	FinancialStatus    string     `json:"financial_status"`
	LineItems          []LineItem `json:"line_items"`
	ShippingAddress    *Address   `json:"shipping_address"`
	BillingAddress     *Address   `json:"billing_address"`
	Customer           *Customer  `json:"customer"`
	TotalPrice         string     `json:"total_price,omitempty"`
	SubtotalPrice      string     `json:"subtotal_price,omitempty"`
	TotalShippingPrice string     `json:"total_shipping_price,omitempty"`
	Currency           string     `json:"currency,omitempty"`
	CreatedAt          string     `json:"created_at,omitempty"`
	UpdatedAt          string     `json:"updated_at,omitempty"`
	Shop               string     `json:"shop"`
	EcommerceID        int        `json:"ecommerce_id"`
	ClientID           string     `json:"client_id,omitempty"`
}
