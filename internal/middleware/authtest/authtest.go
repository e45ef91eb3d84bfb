// Package authtest issues signed tokens for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/techsolutions/agency-chat/internal/middleware"
	"github.com/techsolutions/agency-chat/internal/model"
)

// Secret is the signing secret used across tests.
const Secret = "test-secret"

// Token signs an HS256 token for p that expires in an hour.
func Token(t testing.TB, p model.Principal) string {
	t.Helper()

	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Email,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: p.ID,
		Email:  p.Email,
		Role:   string(p.Role),
		Name:   p.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(Secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
