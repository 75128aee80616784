package domain

import (
	"errors"
	"fmt"
)

// ErrKind groups domain errors for logging and fallback status mapping.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"
	KindBadRequest     ErrKind = "bad_request"
	KindAuth           ErrKind = "auth"
	KindForbidden      ErrKind = "forbidden"
	KindNotFound       ErrKind = "not_found"
	KindConflict       ErrKind = "conflict"
	KindPrecondition   ErrKind = "precondition"
	KindRateLimited    ErrKind = "rate_limited"
	KindInfrastructure ErrKind = "infrastructure"
	KindInternal       ErrKind = "internal"
)

// Error is a structured domain error.
// - Kind: high-level category
// - Code: stable machine code (do not change casually)
// - Message: display message, safe for clients
// - InternalCode: numeric code; InternalCode/100 is the HTTP status
// - Fields: per-field validation messages (validation errors only)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind         ErrKind
	Code         string
	Message      string
	InternalCode int
	Fields       map[string][]string
	Meta         map[string]string
	Cause        error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s/%d): %s: %v", e.Kind, e.Code, e.InternalCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s/%d): %s", e.Kind, e.Code, e.InternalCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Status returns the HTTP status encoded in the internal code.
func (e *Error) Status() int {
	if e.InternalCode < 100 {
		return 500
	}
	return e.InternalCode / 100
}

func New(kind ErrKind, code string, internal int, msg string) *Error {
	return &Error{Kind: kind, Code: code, InternalCode: internal, Message: msg}
}

func Wrap(kind ErrKind, code string, internal int, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, InternalCode: internal, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Stable codes for the identity taxonomy.
const (
	CodeUsernameAlreadyExists     = "username_already_exists"
	CodeEmailAddressAlreadyExists = "email_address_already_exists"
	CodeTermsNotAccepted          = "terms_not_accepted"
	CodeUserDoesNotExist          = "user_does_not_exist"
	CodeCannotEditUser            = "cannot_edit_user"
	CodeCannotDeleteSelf          = "cannot_delete_self"
	CodeValidationFailed          = "validation_failed"
)

// ----------------------
// Identity taxonomy
// ----------------------

func ErrUsernameAlreadyExists() *Error {
	return New(KindConflict, CodeUsernameAlreadyExists, 40901, "An account with this username already exists.")
}

func ErrEmailAddressAlreadyExists() *Error {
	return New(KindConflict, CodeEmailAddressAlreadyExists, 40902, "An account with this email address already exists.")
}

func ErrTermsNotAccepted() *Error {
	return New(KindPrecondition, CodeTermsNotAccepted, 42901, "You must accept the terms of service.")
}

func ErrUserDoesNotExist() *Error {
	return New(KindNotFound, CodeUserDoesNotExist, 40401, "User does not exists.")
}

func ErrCannotEditUser() *Error {
	return New(KindForbidden, CodeCannotEditUser, 40301, "You can not edit the user due to insufficient privileges")
}

func ErrCannotDeleteSelf() *Error {
	return New(KindBadRequest, CodeCannotDeleteSelf, 40001, "You can not delete yourself.")
}

// ErrValidation carries every violated rule, keyed by field name.
func ErrValidation(fields map[string][]string) *Error {
	e := New(KindValidation, CodeValidationFailed, 42201, "")
	e.Fields = fields
	return e
}

// ----------------------
// Request / auth errors
// ----------------------

func ErrInvalidJSON(cause error) *Error {
	return Wrap(KindBadRequest, "invalid_json", 40002, "invalid JSON body", cause)
}

func ErrPayloadTooLarge() *Error {
	return New(KindBadRequest, "payload_too_large", 41301, "request body too large")
}

// IMPORTANT: use this for login failures to avoid user enumeration.
func ErrInvalidCredentials() *Error {
	return New(KindAuth, "invalid_credentials", 40101, "No active account found with the given credentials")
}

func ErrTokenMissing() *Error {
	return New(KindAuth, "token_missing", 40102, "Authentication credentials were not provided.")
}

func ErrTokenInvalid() *Error {
	return New(KindAuth, "token_invalid", 40103, "Token is invalid or expired")
}

func ErrTokenExpired() *Error {
	return New(KindAuth, "token_expired", 40104, "Token is invalid or expired")
}

func ErrForbidden() *Error {
	return New(KindForbidden, "forbidden", 40302, "You do not have permission to perform this action.")
}

func ErrVerifyTokenNotFound() *Error {
	return New(KindNotFound, "verify_token_not_found", 40402, "verification token not found")
}

func ErrRateLimited(scope string) *Error {
	return WithMeta(New(KindRateLimited, "rate_limited", 42902, "too many requests"), map[string]string{
		"scope": scope,
	})
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", 50001, "internal error", cause)
}

func ErrHashFailed(cause error) *Error {
	return Wrap(KindInternal, "hash_failed", 50002, "password hashing failed", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", 50003, "token signing failed", cause)
}

func ErrRandomFailed(cause error) *Error {
	return Wrap(KindInternal, "random_failed", 50004, "random generation failed", cause)
}

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", 50301, "database unavailable", cause)
}

// ErrTransientConflict is returned for lock-wait timeouts, deadlocks and
// serialization failures. Callers may retry the whole operation.
func ErrTransientConflict(cause error) *Error {
	return Wrap(KindInfrastructure, "transient_conflict", 50302, "the request conflicted with a concurrent update, please retry", cause)
}

func ErrCacheUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "cache_unavailable", 50303, "cache unavailable", cause)
}

func ErrBrokerUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "broker_unavailable", 50304, "message broker unavailable", cause)
}
