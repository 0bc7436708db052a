package webhooks

import "testing"

func TestVerifyShopifyHMAC(t *testing.T) {
	secret := "shhh"
	body := []byte(`{"id":1001,"financial_status":"paid"}`)

	sig := SignShopifyHMAC(secret, body)
	if !VerifyShopifyHMAC(secret, body, sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifyShopifyHMAC(secret, []byte(`{"id":1002}`), sig) {
		t.Fatal("signature accepted for different body")
	}
	if VerifyShopifyHMAC("other", body, sig) {
		t.Fatal("signature accepted with wrong secret")
	}
	if VerifyShopifyHMAC(secret, body, "") {
		t.Fatal("empty signature accepted")
	}
	if VerifyShopifyHMAC("", body, sig) {
		t.Fatal("empty secret accepted")
	}
	if VerifyShopifyHMAC(secret, body, "not base64!!") {
		t.Fatal("malformed signature accepted")
	}
}
