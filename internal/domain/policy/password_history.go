package policy

import (
	"errors"
	"fmt"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
)

var (
	// ErrInvalidPassword is returned when a new password was already used by the user.
	ErrInvalidPassword = errors.New("password was used before")
)

// PasswordHistory rejects any password found anywhere in a user's credential history.
// History is never truncated.
type PasswordHistory struct {
	Encoder Encoder
}

func NewPasswordHistory(enc Encoder) *PasswordHistory {
	if enc == nil {
		enc = NewBcryptEncoder(0)
	}
	return &PasswordHistory{Encoder: enc}
}

// ValidateAndAccept appends cred to u's history when it has not been used before.
// It only mutates u; persisting the result is up to the caller.
func (p *PasswordHistory) ValidateAndAccept(u *entity.User, cred *entity.UserPassword) error {
	if u == nil || cred == nil {
		return fmt.Errorf("%w: user and credential are required", entity.ErrInvalidArgument)
	}
	if cred.Username() != u.Username {
		return fmt.Errorf("%w: credential of %q cannot be applied to %q", entity.ErrInvalidArgument, cred.Username(), u.Username)
	}
	if p.Used(u, cred) {
		return ErrInvalidPassword
	}
	stored, err := p.Encoder.Encode(cred.Password())
	if err != nil {
		return fmt.Errorf("encode password: %w", err)
	}
	u.Passwords = append(u.Passwords, cred.WithPassword(stored))
	return nil
}

// Used reports whether cred matches any credential in u's history.
func (p *PasswordHistory) Used(u *entity.User, cred *entity.UserPassword) bool {
	for _, old := range u.Passwords {
		if old.Username() != cred.Username() {
			continue
		}
		if p.Encoder.Matches(cred.Password(), old.Password()) {
			return true
		}
	}
	return false
}
