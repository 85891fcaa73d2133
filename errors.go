package softdelete

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// Machine readable codes carried by every failure.
const (
	CodePasswordRequired     = "PASSWORD_REQUIRED"
	CodeInvalidPassword      = "INVALID_PASSWORD"
	CodeAccountDeleted       = "ACCOUNT_DELETED"
	CodeEmailBlocked         = "EMAIL_BLOCKED"
	CodeRestoreInputRequired = "RESTORE_INPUT_REQUIRED"
	CodeRestoreRateLimited   = "RESTORE_RATE_LIMITED"
	CodeAccountNotDeleted    = "ACCOUNT_NOT_DELETED"
	CodeNoPasswordCredential = "NO_PASSWORD_CREDENTIAL"
	CodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	CodeContextUnavailable   = "CONTEXT_UNAVAILABLE"
	CodeInvalidTransition    = "INVALID_USER_STATE_TRANSITION"
	CodeRecordNotFound       = "RECORD_NOT_FOUND"
	CodeSessionRequired      = "SESSION_REQUIRED"
)

// ErrPasswordRequired is returned when a delete request has no password.
var ErrPasswordRequired = goerrors.New("password is required to delete account", goerrors.CategoryBadInput).
	WithTextCode(CodePasswordRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidPassword is returned when the delete confirmation password does not match.
var ErrInvalidPassword = goerrors.New("invalid password", goerrors.CategoryBadInput).
	WithTextCode(CodeInvalidPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountDeleted is returned when signing in to a soft deleted account.
var ErrAccountDeleted = goerrors.New("account has been deleted", goerrors.CategoryAuthz).
	WithTextCode(CodeAccountDeleted).
	WithCode(goerrors.CodeForbidden)

// ErrEmailBlocked is returned when signing up with a blocked identifier.
var ErrEmailBlocked = goerrors.New("email is blocked from registration", goerrors.CategoryAuthz).
	WithTextCode(CodeEmailBlocked).
	WithCode(goerrors.CodeForbidden)

// ErrRestoreInputRequired is returned for a missing or malformed restore payload.
var ErrRestoreInputRequired = goerrors.New("email and password are required", goerrors.CategoryValidation).
	WithTextCode(CodeRestoreInputRequired).
	WithCode(goerrors.CodeBadRequest)

// ErrRestoreRateLimited is returned when the restore rate limit rejects a request.
var ErrRestoreRateLimited = goerrors.New("too many restore attempts", goerrors.CategoryRateLimit).
	WithTextCode(CodeRestoreRateLimited).
	WithCode(goerrors.CodeTooManyRequests)

// ErrAccountNotDeleted is returned when restoring an account that is not deleted.
var ErrAccountNotDeleted = goerrors.New("account is not deleted", goerrors.CategoryBadInput).
	WithTextCode(CodeAccountNotDeleted).
	WithCode(goerrors.CodeBadRequest)

// ErrNoPasswordCredential is returned when the account has no password to verify.
var ErrNoPasswordCredential = goerrors.New("account has no password credential", goerrors.CategoryBadInput).
	WithTextCode(CodeNoPasswordCredential).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(CodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionRequired is returned when a delete request carries no
// authenticated user to verify the password against.
var ErrSessionRequired = goerrors.New("an authenticated session is required to delete account", goerrors.CategoryAuth).
	WithTextCode(CodeSessionRequired).
	WithCode(goerrors.CodeUnauthorized)

// ErrContextUnavailable signals a missing host capability.
var ErrContextUnavailable = goerrors.New("required context is unavailable", goerrors.CategoryInternal).
	WithTextCode(CodeContextUnavailable).
	WithCode(goerrors.CodeInternal)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(CodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// ErrRecordNotFound is returned by adapters when FindOne, Update or Delete
// match no row.
var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(CodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// newError returns a clone of base carrying meta. Sentinels are never mutated.
func newError(base *goerrors.Error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

func contextUnavailable(op, capability string) error {
	return newError(ErrContextUnavailable, map[string]any{
		"operation":  op,
		"capability": capability,
	})
}

func wrapInternal(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, fmt.Sprintf(format, args...))
}

// TextCode returns the machine code of the first go-errors value in the chain.
func TextCode(err error) string {
	var gerr *goerrors.Error
	for err != nil {
		if !errors.As(err, &gerr) {
			return ""
		}
		if gerr.TextCode != "" {
			return gerr.TextCode
		}
		err = gerr.Source
	}
	return ""
}

// HasCode reports whether err carries the machine code.
func HasCode(err error, code string) bool {
	return err != nil && TextCode(err) == code
}

// IsRecordNotFound reports whether err means the adapter found no row.
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRecordNotFound) || HasCode(err, CodeRecordNotFound) {
		return true
	}
	return goerrors.IsNotFound(err)
}

// HTTPStatus returns the status code carried by err, 500 otherwise.
func HTTPStatus(err error) int {
	var gerr *goerrors.Error
	if errors.As(err, &gerr) && gerr.Code != 0 {
		return gerr.Code
	}
	return goerrors.CodeInternal
}
