// Package domain contains entity without logic, just meta-data
package domain

import (
	"bytes"
	"errors"
	"strconv"

	json "github.com/goccy/go-json"
)

const MaxUserIDLen = 64

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type (
	UserID  string
	GroupID string
)

type User struct {
	ID       UserID `json:"id"`
	Username string `json:"username,omitempty"`
}

// ParseUserID validates a raw identity taken from config or the CLI.
func ParseUserID(raw string) (UserID, error) {
	if len(raw) == 0 {
		return "", ErrUserIDEmpty
	}
	if len(raw) > MaxUserIDLen {
		return "", ErrUserIDTooLong
	}
	return UserID(raw), nil
}

// UnmarshalJSON accepts both string and numeric ids.
func (u *UserID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*u = UserID(s)
	return nil
}

func (g *GroupID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalID(data)
	if err != nil {
		return err
	}
	*g = GroupID(s)
	return nil
}

func unmarshalID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return "", errors.New("id must be a string or a number")
	}
	return string(data), nil
}
