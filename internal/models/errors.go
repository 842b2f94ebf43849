package models

import (
	"errors"
	"fmt"
)

// ErrInvalid matches every validation failure reported by this package.
var ErrInvalid = errors.New("invalid argument")

type validationError struct {
	msg string
}

func (e validationError) Error() string { return e.msg }

func (e validationError) Is(target error) bool { return target == ErrInvalid }

func invalidf(format string, args ...any) error {
	return validationError{msg: fmt.Sprintf(format, args...)}
}
