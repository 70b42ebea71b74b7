package backend

import (
	"errors"
	"fmt"
)

// The error kinds the core surfaces to callers. TransientError is the only
// kind retried internally; everything else propagates with enough context to
// diagnose without blind retries.

type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

type NotFoundError struct {
	Segment string
	In      string
}

func (e *NotFoundError) Error() string {
	if e.In == "" {
		return fmt.Sprintf("%s does not exist", e.Segment)
	}
	return fmt.Sprintf("%s does not exist in %s", e.Segment, e.In)
}

// AmbiguousNameError reports duplicate sibling names in a remote listing.
// The uniqueness invariant makes this a cache/remote divergence, so it is
// surfaced rather than tie-broken.
type AmbiguousNameError struct {
	Name   string
	Parent ItemID
}

func (e *AmbiguousNameError) Error() string {
	return fmt.Sprintf("name %q is ambiguous under item %d", e.Name, e.Parent)
}

type ConflictError struct {
	Name   string
	Parent ItemID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting entry %q under item %d", e.Name, e.Parent)
}

// TransientError wraps a network or remote hiccup that is safe to retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// TransferFailed is terminal for a transfer session. ItemPartial means the
// remote may hold a partial object and the parent listing must not be
// trusted until refetched.
type TransferFailed struct {
	Path        string
	Attempts    uint
	ItemPartial bool
	Err         error
}

func (e *TransferFailed) Error() string {
	return fmt.Sprintf("transfer of %s failed after %d attempts: %v", e.Path, e.Attempts, e.Err)
}

func (e *TransferFailed) Unwrap() error { return e.Err }

type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// IsTransient reports whether err should be retried by the injected policy.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
