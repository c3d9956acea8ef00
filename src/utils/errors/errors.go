// Package errors annotates errors with the caller's file and line.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

func caller() (string, int) {
	_, file, line, _ := runtime.Caller(2)
	return file, line
}

// WrapE wraps originalErr under a static sentinel so both match errors.Is.
func WrapE(staticErr, originalErr error) error {
	file, line := caller()
	return fmt.Errorf("%s:%d: %w: %w", file, line, staticErr, originalErr)
}

func Wrap(err error, msg string) error {
	file, line := caller()
	return fmt.Errorf("%s:%d: %w: %s", file, line, err, msg)
}

func Wrapf(err error, format string, args ...any) error {
	file, line := caller()
	return fmt.Errorf("%s:%d: %w: %s", file, line, err, fmt.Sprintf(format, args...))
}

// Wrapef keeps both the sentinel and the cause in the chain and adds a
// formatted message.
func Wrapef(staticErr, originalErr error, format string, args ...any) error {
	file, line := caller()
	return fmt.Errorf("%s:%d: %w: %s: %w", file, line, staticErr, fmt.Sprintf(format, args...), originalErr)
}

func New(text string) error {
	file, line := caller()
	return fmt.Errorf("%s:%d: %s", file, line, text)
}

func Newf(format string, args ...any) error {
	file, line := caller()
	return fmt.Errorf("%s:%d: %s", file, line, fmt.Sprintf(format, args...))
}

func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target any) bool {
	return stderrors.As(err, target)
}

func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
