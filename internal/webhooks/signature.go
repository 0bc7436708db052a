// Package webhooks verifies inbound webhook signatures.
package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// VerifyShopifyHMAC checks the base64 HMAC-SHA256 signature the commerce
// platform sends in X-Shopify-Hmac-Sha256 over the raw request body.
func VerifyShopifyHMAC(secret string, body []byte, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(provided)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// SignShopifyHMAC returns the base64 signature for a body; used by tests and
// the dev webhook-test tooling.
func SignShopifyHMAC(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
