package entity

import "errors"

var (
	// ErrInvalidArgument is returned when a domain value is constructed from missing or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
)
