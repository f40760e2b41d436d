package errs

import (
	"github.com/pkg/errors"
)

// New builds an error with a formatted message and a captured stack.
func New(format string, args ...any) error {
	return errors.Errorf(format, args...)
}

// Wrap annotates err with msg; returns nil if err is nil.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message; returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	return errors.Wrapf(err, format, args...)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func Cause(err error) error { return errors.Cause(err) }
