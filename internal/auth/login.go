package auth

import (
	"crypto/subtle"
	"errors"

	"tahfidz/internal/model"
)

// ErrInvalidCredentials is the only login failure callers ever see.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticate matches staff and parent accounts first, then students by
// username or NIS. A student match becomes a parent session scoped to the
// student itself.
func Authenticate(users []model.User, students []model.Student, username, password string) (model.User, error) {
	if username == "" || password == "" {
		return model.User{}, ErrInvalidCredentials
	}
	for _, u := range users {
		if u.Username == username && equal(u.Password, password) {
			return u, nil
		}
	}
	for _, s := range students {
		if (s.Username == username || s.NIS == username) && equal(s.Password, password) {
			return model.User{
				ID:       s.ID,
				Name:     s.Name,
				Role:     model.RoleParent,
				ChildID:  s.ID,
				Username: s.Username,
			}, nil
		}
	}
	return model.User{}, ErrInvalidCredentials
}

func equal(stored, given string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
