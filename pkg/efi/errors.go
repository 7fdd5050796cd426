// pkg/efi/errors.go
package efi

import (
	"errors"
	"fmt"
)

var (
	// ErrBootServicesExited is returned by every boot-phase capability once
	// ExitBootServices has completed.
	ErrBootServicesExited = errors.New("efi: boot services have been exited")

	// ErrExitInProgress is returned by ExitBootServices while another call
	// is running the exit hooks or waiting on firmware.
	ErrExitInProgress = errors.New("efi: exit of boot services in progress")

	// ErrNotInitialized is returned by helpers used before their Init.
	ErrNotInitialized = errors.New("efi: helpers not initialized")
)

// StatusError is a failure reported by firmware.
type StatusError struct {
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("efi: %s (%#x)", e.Status, uint64(e.Status))
}

// Is matches another *StatusError with the same code.
func (e *StatusError) Is(target error) bool {
	t, ok := target.(*StatusError)
	return ok && t.Status == e.Status
}

// ArgumentError is a caller contract violation detected before any firmware
// call was issued.
type ArgumentError struct {
	Op     string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("efi: %s: invalid argument: %s", e.Op, e.Reason)
}

// StatusOf extracts the firmware status from err, if err carries one.
func StatusOf(err error) (Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}

	return Success, false
}

// IsStatus reports whether err is a firmware failure with status s.
func IsStatus(err error, s Status) bool {
	code, ok := StatusOf(err)
	return ok && code == s
}

// IsRetryable reports whether repeating the same call could produce a
// different outcome. Phase and argument errors never are.
func IsRetryable(err error) bool {
	code, ok := StatusOf(err)
	if !ok {
		return false
	}

	switch code {
	case NotReady, Timeout, NoResponse:
		return true
	default:
		return false
	}
}
