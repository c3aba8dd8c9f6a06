// Package domain defines the core domain models for aerie-cli.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes follow the format AC-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "AC-CONF-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrConfigurationNotFound indicates no host configuration has the requested name.
	ErrConfigurationNotFound = NewDomainError("AC-CONF-4040", "configuration not found")

	// ErrConfigurationConflict indicates a host configuration with the name already exists.
	ErrConfigurationConflict = NewDomainError("AC-CONF-4090", "configuration already exists")

	// ErrConfigurationInvalid indicates a host configuration failed validation.
	ErrConfigurationInvalid = NewDomainError("AC-CONF-4001", "invalid configuration")

	// ErrConfigurationStorage indicates the credential file could not be read or written.
	ErrConfigurationStorage = NewDomainError("AC-CONF-5001", "configuration storage error")
)

// ============================================================================
// Token Errors (TOKN)
// ============================================================================

var (
	// ErrTokenMalformed indicates the token does not have the expected shape or claims.
	ErrTokenMalformed = NewDomainError("AC-TOKN-4000", "malformed token")

	// ErrTokenUndecodable indicates the token payload could not be decoded.
	ErrTokenUndecodable = NewDomainError("AC-TOKN-4001", "undecodable token")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrIncompatibleVersion indicates the host runs a version this client does not support.
	ErrIncompatibleVersion = NewDomainError("AC-AUTH-4260", "incompatible host version")

	// ErrAuthentication indicates the login exchange failed or produced a dead session.
	ErrAuthentication = NewDomainError("AC-AUTH-4010", "authentication failed")

	// ErrUnauthenticated indicates an operation needed a token the session does not carry.
	ErrUnauthenticated = NewDomainError("AC-AUTH-4011", "session is not authenticated")

	// ErrInvalidRole indicates a role outside the token's allowed roles.
	ErrInvalidRole = NewDomainError("AC-AUTH-4030", "invalid role")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrNoActiveSession indicates there is no usable active session.
	ErrNoActiveSession = NewDomainError("AC-SESS-4040", "no active session")

	// ErrSessionStorage indicates the session directory could not be read or written.
	ErrSessionStorage = NewDomainError("AC-SESS-5001", "session storage error")
)

// ============================================================================
// Host Errors (HOST)
// ============================================================================

var (
	// ErrTransport indicates the host was unreachable or answered with a non-2xx status.
	ErrTransport = NewDomainError("AC-HOST-5020", "transport error")

	// ErrProtocol indicates the host answered with an unparseable or failed response.
	ErrProtocol = NewDomainError("AC-HOST-5021", "protocol error")
)

// errorKinds maps codes to the names printed on the console.
var errorKinds = map[string]string{
	ErrConfigurationNotFound.Code: "ConfigurationNotFoundError",
	ErrConfigurationConflict.Code: "ConfigurationConflictError",
	ErrConfigurationInvalid.Code:  "ConfigurationInvalidError",
	ErrConfigurationStorage.Code:  "ConfigurationStorageError",
	ErrTokenMalformed.Code:        "MalformedTokenError",
	ErrTokenUndecodable.Code:      "UndecodableTokenError",
	ErrIncompatibleVersion.Code:   "IncompatibleVersionError",
	ErrAuthentication.Code:        "AuthenticationError",
	ErrUnauthenticated.Code:       "UnauthenticatedError",
	ErrInvalidRole.Code:           "InvalidRoleError",
	ErrNoActiveSession.Code:       "NoActiveSessionError",
	ErrSessionStorage.Code:        "SessionStorageError",
	ErrTransport.Code:             "TransportError",
	ErrProtocol.Code:              "ProtocolError",
}

// Kind returns the taxonomy name of err, or its Go type name when it is
// not a DomainError.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	if name, ok := errorKinds[GetErrorCode(err)]; ok {
		return name
	}
	return fmt.Sprintf("%T", err)
}

// NoSessionCause tags why no active session could be produced.
type NoSessionCause string

const (
	// NoSessionMissing means no record existed on disk.
	NoSessionMissing NoSessionCause = "missing"
	// NoSessionExpired means the newest record was older than the session timeout.
	NoSessionExpired NoSessionCause = "expired"
	// NoSessionUndeserializable means the newest record could not be decoded.
	NoSessionUndeserializable NoSessionCause = "undeserializable"
	// NoSessionRevoked means the host no longer honors the stored token.
	NoSessionRevoked NoSessionCause = "revoked"
)

// NoSessionError is the internal form of ErrNoActiveSession. It matches
// ErrNoActiveSession with errors.Is and keeps the cause for logging.
type NoSessionError struct {
	Cause NoSessionCause
	Err   error
}

// NoActiveSession builds a NoSessionError tagged with cause.
func NoActiveSession(cause NoSessionCause, err error) *NoSessionError {
	return &NoSessionError{Cause: cause, Err: err}
}

func (e *NoSessionError) Error() string {
	return ErrNoActiveSession.WithDetails(string(e.Cause)).Error()
}

// Unwrap exposes both the public kind and the underlying failure.
func (e *NoSessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNoActiveSession}
	}
	return []error{ErrNoActiveSession, e.Err}
}

// NoSessionCauseOf returns the cause tag carried by err, if any.
func NoSessionCauseOf(err error) (NoSessionCause, bool) {
	var nse *NoSessionError
	if errors.As(err, &nse) {
		return nse.Cause, true
	}
	return "", false
}
