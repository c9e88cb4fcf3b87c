// Package apierr implements the error taxonomy of spec.md §7: a small set of
// error kinds the HTTP layer maps to status codes, distinguishing
// infrastructural failures (which abort the request) from user-facing
// results (which are captured and returned, never raised as crashes).
package apierr

import (
	"errors"
	"fmt"
)

// Kind is one of the taxonomy entries in spec.md §7.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindImageBuildFailed   Kind = "image_build_failed"
	KindSandboxCreateFailed Kind = "sandbox_create_failed"
	KindSandboxNotFound    Kind = "sandbox_not_found"
	KindCodeMissing        Kind = "code_missing"
	KindServiceUnreachable Kind = "service_unreachable"
	KindUpstreamTimeout    Kind = "upstream_timeout"
	KindSchemaMigration    Kind = "schema_migration_failed"
	KindInfra              Kind = "infra"
)

// Error wraps an underlying cause with a taxonomy Kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is an
// *Error; otherwise it returns KindInfra.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInfra
}

// Is reports whether err's Kind equals kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func NotFound(message string) *Error       { return New(KindNotFound, message) }
func Validation(message string) *Error     { return New(KindValidation, message) }
func Conflict(message string) *Error       { return New(KindConflict, message) }
func CodeMissing() *Error                  { return New(KindCodeMissing, "code is required") }
func SandboxNotFound(id string) *Error     { return New(KindSandboxNotFound, "sandbox "+id+" not found") }
