package entity

import (
	"fmt"
	"strings"
)

// UserPreference is a key/value setting owned by one user, unique per (username, key).
type UserPreference struct {
	Username string
	Key      string
	Value    string
}

// NewUserPreference validates owner and key.
func NewUserPreference(username, key, value string) (UserPreference, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(key) == "" {
		return UserPreference{}, fmt.Errorf("%w: preference needs username and key", ErrInvalidArgument)
	}
	return UserPreference{Username: username, Key: key, Value: value}, nil
}
