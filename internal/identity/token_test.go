package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, userID, username string, expiresAt time.Time) string {
	t.Helper()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestPeekReadsClaims(t *testing.T) {
	token := signedToken(t, "u-42", "alice", time.Now().Add(time.Hour))

	claims, err := Peek(token)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if claims.UserID != "u-42" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Expired(time.Now()) {
		t.Fatalf("token should not read as expired")
	}
}

func TestPeekExpiry(t *testing.T) {
	token := signedToken(t, "u-1", "bob", time.Now().Add(-time.Minute))

	claims, err := Peek(token)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if !claims.Expired(time.Now()) {
		t.Fatalf("token should read as expired")
	}
}

func TestPeekRejectsGarbage(t *testing.T) {
	if _, err := Peek("not-a-token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
}
