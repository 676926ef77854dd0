package devserver

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Claims are the token claims the dev server issues and validates.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTConfig holds dev-server token settings.
type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
}

// GenerateToken creates a signed HS256 token for the given user.
func GenerateToken(cfg *JWTConfig, userID, username string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(cfg.Secret)
}

// ValidateToken parses and validates a token issued by GenerateToken.
func ValidateToken(cfg *JWTConfig, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return cfg.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

type account struct {
	userID       string
	passwordHash string
}

// Accounts is an in-memory user registry for the dev server.
type Accounts struct {
	mu    sync.Mutex
	users map[string]account
	next  int
}

// NewAccounts constructs an empty registry.
func NewAccounts() *Accounts {
	return &Accounts{users: make(map[string]account)}
}

// Register creates a new user with a bcrypt-hashed password and returns its id.
func (a *Accounts) Register(username, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.users[username]; exists {
		return "", ErrUserExists
	}
	a.next++
	id := fmt.Sprintf("u-%d", a.next)
	a.users[username] = account{userID: id, passwordHash: string(hash)}
	return id, nil
}

// Login verifies the password and returns the user id.
func (a *Accounts) Login(username, password string) (string, error) {
	a.mu.Lock()
	acc, exists := a.users[username]
	a.mu.Unlock()
	if !exists {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return acc.userID, nil
}
