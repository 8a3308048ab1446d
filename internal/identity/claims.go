package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// ParseClaims extracts the claims from a JWT-shaped credential without
// verifying its signature. Signature verification belongs to the backend;
// the client only reads identity fields out of the payload, the same way
// the provider's own SDK does.
func ParseClaims(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, fmt.Errorf("credential is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("decode credential payload: %w", err)
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return Claims{}, fmt.Errorf("parse credential payload: %w", err)
	}
	return claims, nil
}

// UsernameFor derives the backend username from claims: the provider
// nickname when present, otherwise the local part of the email address.
func UsernameFor(claims Claims) string {
	if claims.Nickname != "" {
		return claims.Nickname
	}
	if at := strings.Index(claims.Email, "@"); at > 0 {
		return claims.Email[:at]
	}
	return claims.Email
}
