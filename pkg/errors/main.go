package errors

import (
	"errors"
	"fmt"
	"strings"
)

const (
	StatusOK                  = 200
	StatusNoContent           = 204
	StatusBadRequest          = 400
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRequestTimeout      = 408
	StatusInternalServerError = 500
	StatusServiceUnavailable  = 503
)

const (
	ErrorTypeDatabaseError       = "DATABASE_ERROR"
	ErrorTypeNotFound            = "NOT_FOUND"
	ErrorTypeInvalidRequest      = "INVALID_REQUEST"
	ErrorTypeCaptchaRejected     = "CAPTCHA_REJECTED"
	ErrorTypeServiceUnavailable  = "SERVICE_UNAVAILABLE"
	ErrorTypeSchemaMismatch      = "SCHEMA_MISMATCH"
	ErrorTypeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrorTypeUnknown             = "UNKNOWN_ERROR"
	ErrorTypeRequestTimeout      = "REQUEST_TIMEOUT"
	ErrorTypeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
)

type AppError struct {
	Type    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Type and Message so package-level sentinels work with errors.Is
// even after a cause has been attached.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

func NewAppError(errType, message string, err error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

func NewInvalidRequestError(message string, err error) *AppError {
	return NewAppError(ErrorTypeInvalidRequest, message, err)
}

func NewDatabaseError(message string, err error) *AppError {
	return NewAppError(ErrorTypeDatabaseError, message, err)
}

func NewCaptchaRejectedError(message string, err error) *AppError {
	return NewAppError(ErrorTypeCaptchaRejected, message, err)
}

func NewServiceUnavailableError(message string, err error) *AppError {
	return NewAppError(ErrorTypeServiceUnavailable, message, err)
}

func NewSchemaMismatchError(message string, err error) *AppError {
	return NewAppError(ErrorTypeSchemaMismatch, message, err)
}

func NewInternalServerError(message string, err error) *AppError {
	return NewAppError(ErrorTypeInternalServerError, message, err)
}

// WithCause returns a copy of e carrying err as its cause.
func (e *AppError) WithCause(err error) *AppError {
	return NewAppError(e.Type, e.Message, err)
}

func GetErrorType(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}

	return ErrorTypeUnknown
}

func containsFold(errMsg string, patterns ...string) bool {
	lower := strings.ToLower(errMsg)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// IsDuplicateKeyError matches unique-constraint violations from SQLite
// ("UNIQUE constraint failed") and PostgreSQL (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	return containsFold(err.Error(),
		"duplicate",
		"unique constraint",
		"UNIQUE constraint failed",
		"SQLSTATE 23505",
	)
}

func IsMissingTableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "no such table") || strings.Contains(msg, "sqlstate 42p01") {
		return true
	}
	return strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist") && !strings.Contains(msg, "column")
}

func IsMissingColumnError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "has no column named") || strings.Contains(msg, "no such column") || strings.Contains(msg, "sqlstate 42703") {
		return true
	}
	return strings.Contains(msg, "column") && strings.Contains(msg, "does not exist")
}

func IsNotNullViolationError(err error) bool {
	if err == nil {
		return false
	}
	return containsFold(err.Error(),
		"NOT NULL constraint failed",
		"violates not-null constraint",
		"SQLSTATE 23502",
	)
}
