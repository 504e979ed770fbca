package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tahfidz/internal/model"
)

// Token is a signed access token and its metadata.
type Token struct {
	AccessToken string
	ID          string
	ExpiresAt   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Role    model.Role `json:"role"`
	Name    string     `json:"name"`
	ChildID string     `json:"childId,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c Claims) UserID() string { return c.Subject }

// User rebuilds the session user carried by the token.
func (c Claims) User() model.User {
	return model.User{ID: c.Subject, Name: c.Name, Role: c.Role, ChildID: c.ChildID}
}

// Issue signs an access token for u. The token id doubles as the session
// key so logout can revoke it.
func Issue(u model.User, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	id := uuid.NewString()
	claims := Claims{
		Role:    u.Role,
		Name:    u.Name,
		ChildID: u.ChildID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    issuer,
			Subject:   u.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ID: id, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
