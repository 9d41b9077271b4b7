package realtime

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the validity period of minted session tokens.
const DefaultTokenTTL = time.Hour

// MintToken derives a signed HS256 bearer token from an API key of the form
// "keyID.secret". The endpoint authenticates WebSocket dials with this token
// rather than the raw key.
func MintToken(apiKey string, ttl time.Duration) (string, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok || id == "" || secret == "" {
		return "", fmt.Errorf("realtime: api key must have the form keyID.secret")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"api_key":   id,
		"exp":       now.Add(ttl).Unix(),
		"timestamp": now.Unix(),
	})
	// The endpoint requires a non-standard sign_type header alongside alg.
	tok.Header["sign_type"] = "SIGN"

	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("realtime: sign token: %w", err)
	}
	return signed, nil
}
