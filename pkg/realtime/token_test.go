package realtime

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestMintToken(t *testing.T) {
	signed, err := MintToken("key-id.key-secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parsed, err := jwt.Parse(signed, func(tok *jwt.Token) (any, error) {
		return []byte("key-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse minted token: %v", err)
	}
	if !parsed.Valid {
		t.Fatal("minted token is not valid")
	}
	if parsed.Header["sign_type"] != "SIGN" {
		t.Errorf("sign_type header = %v, want SIGN", parsed.Header["sign_type"])
	}

	claims := parsed.Claims.(jwt.MapClaims)
	if claims["api_key"] != "key-id" {
		t.Errorf("api_key claim = %v, want key-id", claims["api_key"])
	}
	exp, ts := int64(claims["exp"].(float64)), int64(claims["timestamp"].(float64))
	if exp-ts != 3600 {
		t.Errorf("exp-timestamp = %d, want 3600", exp-ts)
	}
}

func TestMintToken_BadKeyFormat(t *testing.T) {
	for _, key := range []string{"", "nodot", ".secretonly", "idonly."} {
		if _, err := MintToken(key, time.Hour); err == nil {
			t.Errorf("key %q: expected error", key)
		}
	}
}

func TestServerEvent_IsRateLimit(t *testing.T) {
	evt := &ServerEvent{
		Type:  "error",
		Error: &ServerErrorDetail{Code: "rate_limit_error", Message: "slow down"},
	}
	if !evt.IsRateLimit() {
		t.Error("expected rate-limit detection for error event")
	}

	evt.Error.Code = "invalid_request"
	if evt.IsRateLimit() {
		t.Error("non-rate-limit code must not match")
	}
	if (&ServerEvent{Type: "response.done"}).IsRateLimit() {
		t.Error("non-error event must not match")
	}
}
