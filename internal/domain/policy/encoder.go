package policy

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Encoder turns a raw password into its stored form and compares raw input against it.
type Encoder interface {
	Encode(raw string) (string, error)
	Matches(raw, stored string) bool
}

// BcryptEncoder stores passwords as bcrypt hashes.
type BcryptEncoder struct {
	Cost int
}

// NewBcryptEncoder clamps cost into bcrypt's accepted range; 0 means bcrypt.DefaultCost.
func NewBcryptEncoder(cost int) *BcryptEncoder {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptEncoder{Cost: cost}
}

func (e *BcryptEncoder) Encode(raw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(raw), e.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Matches also accepts a stored value that is not a bcrypt hash when it equals raw,
// so histories imported in plain form still block reuse.
func (e *BcryptEncoder) Matches(raw, stored string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(raw))
	if err == nil {
		return true
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	return raw == stored
}

// PlainEncoder keeps the value as is.
type PlainEncoder struct{}

func (PlainEncoder) Encode(raw string) (string, error) { return raw, nil }

func (PlainEncoder) Matches(raw, stored string) bool { return raw == stored }
