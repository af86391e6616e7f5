package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error is the typed failure raised anywhere in an import run.
//
// Error codes:
//   - IDENTITY: a candidate has no derivable natural key
//   - MISSING_ATTRIBUTE: a candidate fails required-attribute checks
//   - ENDPOINT_NOT_FOUND: no connectable entity at a cable endpoint
//   - ROUTE_NOT_FOUND: a waypoint pair has no tray section in either orientation
//   - REMOTE_SERVICE: the inventory system answered 5xx or refused the session
//   - DATA_INTEGRITY: several matches where exactly one was expected
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Entity is the affected entity type, if known.
	Entity Kind

	// Key is the identity key or external id of the affected item.
	Key string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes import errors.
type ErrorCode string

const (
	ErrCodeIdentity         ErrorCode = "IDENTITY"
	ErrCodeMissingAttribute ErrorCode = "MISSING_ATTRIBUTE"
	ErrCodeEndpointNotFound ErrorCode = "ENDPOINT_NOT_FOUND"
	ErrCodeRouteNotFound    ErrorCode = "ROUTE_NOT_FOUND"
	ErrCodeRemoteService    ErrorCode = "REMOTE_SERVICE"
	ErrCodeDataIntegrity    ErrorCode = "DATA_INTEGRITY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	switch {
	case e.Entity != "" && e.Key != "":
		fmt.Fprintf(&b, " (%s=%s)", e.Entity, e.Key)
	case e.Key != "":
		fmt.Fprintf(&b, " (key=%s)", e.Key)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsIdentityError reports whether err is an identity-key failure.
func IsIdentityError(err error) bool { return hasCode(err, ErrCodeIdentity) }

// IsValidationError reports whether err means the candidate itself is
// malformed. Identity failures count as validation failures.
func IsValidationError(err error) bool {
	return hasCode(err, ErrCodeMissingAttribute) || hasCode(err, ErrCodeIdentity)
}

// IsEndpointNotFound reports whether err is an endpoint lookup failure.
func IsEndpointNotFound(err error) bool { return hasCode(err, ErrCodeEndpointNotFound) }

// IsRouteNotFound reports whether err is a route lookup failure.
func IsRouteNotFound(err error) bool { return hasCode(err, ErrCodeRouteNotFound) }

// IsRemoteServiceError reports whether err came from the remote system.
func IsRemoteServiceError(err error) bool { return hasCode(err, ErrCodeRemoteService) }

// IsDataIntegrityError reports whether err is an ambiguity in stored data.
func IsDataIntegrityError(err error) bool { return hasCode(err, ErrCodeDataIntegrity) }

// NewIdentityError creates an Error for a candidate without a natural key.
func NewIdentityError(kind Kind, missing ...string) *Error {
	return &Error{
		Code:    ErrCodeIdentity,
		Message: fmt.Sprintf("identity key is empty (missing %s)", strings.Join(missing, ", ")),
		Entity:  kind,
	}
}

// NewMissingAttributeError creates an Error listing the failed attributes.
func NewMissingAttributeError(kind Kind, key string, fields map[string]string) *Error {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return &Error{
		Code:    ErrCodeMissingAttribute,
		Message: fmt.Sprintf("missing or invalid attributes: %s", strings.Join(names, ", ")),
		Entity:  kind,
		Key:     key,
		Details: fields,
	}
}

// NewEndpointNotFoundError creates an Error for an unresolvable endpoint.
func NewEndpointNotFoundError(ep EndpointDescriptor, reason string) *Error {
	return &Error{
		Code:    ErrCodeEndpointNotFound,
		Message: reason,
		Entity:  Kind(ep.Kind),
		Key:     ep.ID,
	}
}

// NewRouteNotFoundError creates an Error for a waypoint pair without a tray section.
func NewRouteNotFoundError(from, to EndpointDescriptor, reason string) *Error {
	return &Error{
		Code:    ErrCodeRouteNotFound,
		Message: reason,
		Details: map[string]string{
			"from": from.String(),
			"to":   to.String(),
		},
	}
}

// NewRemoteServiceError creates an Error for a failed remote call.
func NewRemoteServiceError(operation string, status int, message string) *Error {
	return &Error{
		Code:    ErrCodeRemoteService,
		Message: fmt.Sprintf("%s failed with status %d: %s", operation, status, message),
		Details: map[string]string{
			"operation": operation,
			"status":    fmt.Sprintf("%d", status),
		},
	}
}

// NewDataIntegrityError creates an Error for ambiguous stored data.
func NewDataIntegrityError(kind Kind, key string, matches int, what string) *Error {
	return &Error{
		Code:    ErrCodeDataIntegrity,
		Message: fmt.Sprintf("expected exactly one %s, found %d", what, matches),
		Entity:  kind,
		Key:     key,
		Details: map[string]string{"matches": fmt.Sprintf("%d", matches)},
	}
}
