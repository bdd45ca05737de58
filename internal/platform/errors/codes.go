// Package errors provides coded errors for probe failures with localized
// user-facing messages.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Database errors
	CodeDatabaseUnavailable Code = "DATABASE_UNAVAILABLE"

	// Auth API errors
	CodeChallengeFailed     Code = "CHALLENGE_FAILED"
	CodeLoginFailed         Code = "LOGIN_FAILED"
	CodeTokenVerifyFailed   Code = "TOKEN_VERIFY_FAILED"
	CodeTokenValidateFailed Code = "TOKEN_VALIDATE_FAILED"
	CodeLogoutFailed        Code = "LOGOUT_FAILED"
	CodeTokenNotRevoked     Code = "TOKEN_NOT_REVOKED"
	CodeNoAccessToken       Code = "NO_ACCESS_TOKEN"
	CodeInvalidResponse     Code = "INVALID_RESPONSE"
)
