package entity

import (
	"fmt"
	"strings"
	"time"
)

// UserPassword is one entry of a user's credential history.
//
// Two credentials are equal when they belong to the same username and carry the
// same password value. Values are immutable once constructed.
type UserPassword struct {
	id        int64
	username  string
	password  string
	createdAt time.Time
}

// NewUserPassword builds a credential for username from a raw password.
func NewUserPassword(username, password string) (*UserPassword, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidArgument)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidArgument)
	}
	return &UserPassword{username: username, password: password, createdAt: time.Now().UTC()}, nil
}

// RestoreUserPassword rebuilds a stored credential. Repositories use it when loading history.
func RestoreUserPassword(id int64, username, password string, createdAt time.Time) *UserPassword {
	return &UserPassword{id: id, username: username, password: password, createdAt: createdAt}
}

func (p *UserPassword) ID() int64            { return p.id }
func (p *UserPassword) Username() string     { return p.username }
func (p *UserPassword) Password() string     { return p.password }
func (p *UserPassword) CreatedAt() time.Time { return p.createdAt }

// IsNew reports whether the credential has not been written to storage yet.
func (p *UserPassword) IsNew() bool { return p.id == 0 }

// WithPassword returns a copy holding a different password value, keeping owner and timestamp.
// The history policy uses it to swap the raw value for its stored form.
func (p *UserPassword) WithPassword(password string) *UserPassword {
	return &UserPassword{id: p.id, username: p.username, password: password, createdAt: p.createdAt}
}

// WithID returns a copy carrying the storage identity assigned on insert.
func (p *UserPassword) WithID(id int64) *UserPassword {
	return &UserPassword{id: id, username: p.username, password: p.password, createdAt: p.createdAt}
}

// Equal compares owner and password value.
func (p *UserPassword) Equal(o *UserPassword) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.username == o.username && p.password == o.password
}

// String never prints the password value.
func (p *UserPassword) String() string {
	return fmt.Sprintf("UserPassword{username=%s, createdAt=%s}", p.username, p.createdAt.Format(time.RFC3339))
}
