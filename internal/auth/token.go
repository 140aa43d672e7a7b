// Package auth verifies the signed bearer credential a client presents
// during the websocket handshake. Verification happens exactly once per
// connection; the resulting identity is trusted afterwards.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/devcollab/server/internal/domain"
)

type claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier checks HMAC-signed access tokens.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token and returns the embedded identity.
// Any failure maps to domain.ErrAuthentication; the caller must not leak
// the underlying cause to the wire.
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.ErrAuthentication
	}

	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return domain.Identity{}, domain.ErrAuthentication
	}

	id, err := domain.NewIdentity(domain.UserID(c.UserID), c.Username, c.Email)
	if err != nil {
		return domain.Identity{}, domain.ErrAuthentication
	}
	return id, nil
}
