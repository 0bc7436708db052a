// Package auth provides token verification for the admin endpoints.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

// Verifier validates admin tokens and extracts shop/role claims.
// Modes: dev (shop:role tokens, no verification) and hmac (HS256 JWT).
type Verifier struct {
	Mode       string
	HMACSecret []byte
	ShopClaim  string
	RoleClaim  string
}

type Principal struct {
	Shop string
	Role string
}

func NewVerifier(mode, secret string) *Verifier {
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:       strings.ToLower(mode),
		HMACSecret: []byte(secret),
		ShopClaim:  "shop",
		RoleClaim:  "role",
	}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		// token format: shop:role
		parts := strings.Split(token, ":")
		if len(parts) >= 2 {
			return Principal{Shop: parts[0], Role: strings.ToLower(parts[1])}, nil
		}
		return Principal{}, errors.New("invalid dev token; expected shop:role")
	}
	if v.Mode != "hmac" {
		return Principal{}, errors.New("unsupported auth mode")
	}

	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr map[string]any
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	if alg, _ := hdr["alg"].(string); alg != "HS256" {
		return Principal{}, errors.New("unsupported alg for hmac")
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, errors.New("bad signature")
	}

	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	shop, _ := claims[v.ShopClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	if role == "" {
		role = "user"
	}
	return Principal{Shop: shop, Role: strings.ToLower(role)}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
