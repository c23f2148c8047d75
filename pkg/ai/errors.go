package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderUnconfigured indicates no credential is configured for generation.
	ErrProviderUnconfigured = errors.New("generation provider not configured")
	// ErrProviderCallFailed indicates a transport, timeout or HTTP failure.
	ErrProviderCallFailed = errors.New("generation provider call failed")
	// ErrSchemaMismatch indicates a structured call did not produce the requested call.
	ErrSchemaMismatch = errors.New("structured call schema mismatch")
)

// CallError describes a failed provider call.
type CallError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s call failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Provider, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrProviderCallFailed) match any CallError.
func (e *CallError) Is(target error) bool { return target == ErrProviderCallFailed }

func schemaMismatch(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSchemaMismatch, fmt.Sprintf(format, args...))
}
