package apperror

import (
	"fmt"
	"net/http"
)

// CodeInternal marks errors that are never surfaced to clients verbatim.
const CodeInternal = "INTERNAL"

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Merchant Authentication ----

func ErrInvalidAPIKey() *AppError {
	return New("INVALID_API_KEY", "Invalid API key", http.StatusUnauthorized)
}

func ErrMissingAPIKey() *AppError {
	return New("INVALID_API_KEY", "API key is required", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("INVALID_SIGNATURE", "Invalid signature", http.StatusUnauthorized)
}

func ErrMissingSignature() *AppError {
	return New("INVALID_SIGNATURE", "Signature and timestamp headers are required", http.StatusUnauthorized)
}

func ErrExpiredRequest() *AppError {
	return New("EXPIRED_REQUEST", "Request timestamp expired", http.StatusUnauthorized)
}

func ErrMerchantSuspended(status string) *AppError {
	return New("MERCHANT_SUSPENDED", fmt.Sprintf("Merchant is %s", status), http.StatusForbidden)
}

// ---- Mandate Authorization ----

func ErrMandateNotFound() *AppError {
	return New("MANDATE_NOT_FOUND", "Mandate not found", http.StatusNotFound)
}

func ErrAgentNotAuthorized() *AppError {
	return New("AGENT_NOT_AUTHORIZED", "Agent not authorized for this mandate", http.StatusForbidden)
}

func ErrMandateInactive(status string) *AppError {
	return New("MANDATE_INACTIVE", fmt.Sprintf("Mandate is %s", status), http.StatusForbidden)
}

func ErrMandateExpired() *AppError {
	return New("MANDATE_EXPIRED", "Mandate has expired", http.StatusForbidden)
}

func ErrMandateTypeMismatch(expected, got string) *AppError {
	return New("MANDATE_TYPE_MISMATCH",
		fmt.Sprintf("Mandate type mismatch: expected %s, got %s", expected, got),
		http.StatusForbidden)
}

func ErrMandateTypeUnsupported(mandateType string) *AppError {
	return New("MANDATE_TYPE_UNSUPPORTED",
		fmt.Sprintf("Merchant does not support %s mandates", mandateType),
		http.StatusForbidden)
}

// ErrLimitExceeded reports a violated spending/count constraint. The message
// names the violated rule so merchants can remediate.
func ErrLimitExceeded(message string) *AppError {
	return New("LIMIT_EXCEEDED", message, http.StatusUnprocessableEntity)
}

// ---- Transactions ----

func ErrInvalidTransition(from, to string) *AppError {
	return New("INVALID_STATUS_TRANSITION",
		fmt.Sprintf("Invalid transaction status transition: %s -> %s", from, to),
		http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("NOT_FOUND", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- User Authentication ----

func ErrInvalidCredentials() *AppError {
	return New("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New("EMAIL_EXISTS", "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_LIMIT_EXCEEDED", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(CodeInternal, "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a generic INTERNAL error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VALIDATION", message, http.StatusBadRequest)
}
