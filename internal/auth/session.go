package auth

import (
	"context"
	"errors"
	"time"

	"tahfidz/internal/localstore"
	"tahfidz/internal/model"
)

// ErrSessionRevoked is returned for a token whose session was logged out.
var ErrSessionRevoked = errors.New("session ended")

// Session is what the local store keeps per issued token.
type Session struct {
	User      model.User `json:"user"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Sessions tracks live tokens in the local key-value store.
type Sessions struct {
	kv localstore.KV
}

func NewSessions(kv localstore.KV) *Sessions {
	return &Sessions{kv: kv}
}

// Start records the session for a freshly issued token.
func (s *Sessions) Start(ctx context.Context, tok Token, u model.User) error {
	return localstore.SaveJSON(ctx, s.kv, localstore.SessionKey(tok.ID), Session{User: u.Public(), ExpiresAt: tok.ExpiresAt})
}

// Check confirms the token id still has a live session.
func (s *Sessions) Check(ctx context.Context, tokenID string) (Session, error) {
	var sess Session
	ok, err := localstore.LoadJSON(ctx, s.kv, localstore.SessionKey(tokenID), &sess)
	if err != nil {
		return Session{}, err
	}
	if !ok || (!sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt)) {
		return Session{}, ErrSessionRevoked
	}
	return sess, nil
}

// End removes the session so the token stops working.
func (s *Sessions) End(ctx context.Context, tokenID string) error {
	return s.kv.Delete(ctx, localstore.SessionKey(tokenID))
}
