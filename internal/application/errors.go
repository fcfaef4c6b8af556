package application

import (
	"errors"
	"fmt"

	"github.com/oksasatya/go-ddd-user-management/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/policy"
	"github.com/oksasatya/go-ddd-user-management/internal/domain/repository"
)

var (
	ErrIllegalArgument = errors.New("illegal argument")
	ErrUserNotFound    = errors.New("user not found")
)

// Kind classifies a ServiceError so callers can branch without matching strings.
type Kind int

const (
	KindUnknown Kind = iota
	KindIllegalArgument
	KindUserNotFound
	KindInvalidPassword
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindIllegalArgument:
		return "illegal argument"
	case KindUserNotFound:
		return "user not found"
	case KindInvalidPassword:
		return "invalid password"
	case KindPersistence:
		return "persistence failure"
	}
	return "unknown"
}

// ServiceError is returned by every Service operation that fails.
// Err is the cause and stays reachable through errors.Is / errors.As.
type ServiceError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// KindOf returns the kind of the first ServiceError in err's chain.
func KindOf(err error) Kind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

func illegalArgument(op, msg string) error {
	return &ServiceError{Op: op, Kind: KindIllegalArgument, Err: fmt.Errorf("%w: %s", ErrIllegalArgument, msg)}
}

func userNotFound(op, username string) error {
	return &ServiceError{Op: op, Kind: KindUserNotFound, Err: fmt.Errorf("%w: %s", ErrUserNotFound, username)}
}

// wrapError classifies err coming out of the domain or a repository.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, policy.ErrInvalidPassword):
		return &ServiceError{Op: op, Kind: KindInvalidPassword, Err: err}
	case errors.Is(err, entity.ErrInvalidArgument):
		return &ServiceError{Op: op, Kind: KindIllegalArgument, Err: fmt.Errorf("%w: %w", ErrIllegalArgument, err)}
	case errors.Is(err, repository.ErrNotFound):
		return &ServiceError{Op: op, Kind: KindUserNotFound, Err: fmt.Errorf("%w: %w", ErrUserNotFound, err)}
	}
	return &ServiceError{Op: op, Kind: KindPersistence, Err: err}
}
