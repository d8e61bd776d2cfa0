package authgate

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeDuplicateEmail       = "DUPLICATE_EMAIL"
	TextCodeTokenNotFound        = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenAlreadyUsed     = "TOKEN_ALREADY_USED"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeUnauthenticated      = "UNAUTHENTICATED"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeTooManyLoginAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeAccountSuspended     = "ACCOUNT_SUSPENDED"
	TextCodeAccountDisabled      = "ACCOUNT_DISABLED"
)

// ErrInvalidCredentials covers both unknown email and wrong password so the
// login surface never reveals which one failed.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail is returned when a signup collides with an existing,
// case-normalized email.
var ErrDuplicateEmail = goerrors.New("email is already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrTokenNotFound is returned when a presented reset token has no record.
var ErrTokenNotFound = goerrors.New("token not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrTokenExpired is returned for tokens past their expiry instant, even if
// otherwise well-formed.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenAlreadyUsed is returned when a single-use token is presented a
// second time.
var ErrTokenAlreadyUsed = goerrors.New("token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenAlreadyUsed).
	WithCode(goerrors.CodeConflict)

// ErrTokenMalformed is returned for tokens that fail parsing or signature
// verification.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated means no usable credential was presented.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden means the caller is authenticated but the role is insufficient.
// The resolver never returns this; call sites decide via RequireRole.
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrTooManyLoginAttempts is returned while an account is cooling down.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithTextCode(TextCodeTooManyLoginAttempts).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountSuspended blocks login for suspended accounts.
var ErrAccountSuspended = goerrors.New("account is suspended", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountSuspended).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled blocks login for disabled accounts.
var ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeUnauthorized)

// IsTokenExpiredError checks for expired token errors, including ones
// produced by external JWT middleware.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError checks for malformed token errors.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsDuplicateEmailError checks for the duplicate email conflict, including
// unique constraint violations bubbled up from the driver.
func IsDuplicateEmailError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeDuplicateEmail {
		return true
	}

	return isUniqueViolation(err)
}

// isUniqueViolation matches the unique-index failure shapes of the drivers we
// run against (sqlite in tests, postgres in deployments).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == code
}
