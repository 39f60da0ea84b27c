package gfxtrack

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceLost indicates the device backing a queue has been lost. Once
	// a queue observes a device loss every subsequent operation against it
	// fails with this error; there is no recovery path short of recreating
	// the device and every object created from it.
	ErrDeviceLost = errors.New("device lost")

	// ErrPoolExhausted is returned when a new recording is requested but
	// every command buffer slot of the queue is still recording or in
	// flight. The caller must wait for an older buffer to retire.
	ErrPoolExhausted = errors.New("command buffer pool exhausted, wait for an in-flight buffer to retire")
)

var insufficientHeapSpaceError = errors.New("insufficient storage space in heap")

// ContractError reports a violation of an API contract: a programmer error
// which was cheap enough to detect. Violations which would require full
// validation-layer bookkeeping to catch are documented preconditions instead
// and are not checked unless StrictValidation is enabled on the queue.
type ContractError struct {
	Op     string
	Detail string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation in %s: %s", e.Op, e.Detail)
}

func contractErrorf(op string, format string, args ...interface{}) error {
	return &ContractError{Op: op, Detail: fmt.Sprintf(format, args...)}
}

// IsContractViolation reports whether err is a ContractError.
func IsContractViolation(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}

// ResolveError reports a submission-time resolution failure, such as two
// conflicting layout requirements for the same image within one submission.
// It is returned synchronously from Submit before any native call is issued.
type ResolveError struct {
	Resource string
	Detail   string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cannot resolve barriers for %s: %s", e.Resource, e.Detail)
}
