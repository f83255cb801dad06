// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
)

const (
	MaxUserIDLen   = 128
	MaxUsernameLen = 64
	MaxPictureLen  = 2048
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
)

type UserID string

// User is a verified identity handed out by the auth gate.
type User struct {
	ID       UserID `json:"id"`
	Username string `json:"name"`
	Picture  string `json:"picture,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id UserID, username, picture string) (*User, error) {
	if len(id) == 0 {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	u := &User{ID: id}
	if err := u.SetUsername(username); err != nil {
		return nil, err
	}
	u.SetPicture(picture)
	return u, nil
}

func (u *User) SetUsername(username string) error {
	if len(username) == 0 {
		return ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Username = username
	return nil
}

// SetPicture keeps the avatar reference only when it fits.
func (u *User) SetPicture(picture string) {
	if len(picture) > MaxPictureLen {
		return
	}
	u.Picture = picture
}
