package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of the
// innermost AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// GetCode returns the code of the outermost AppError in the chain, or "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code
func HasCode(err error, code string) bool {
	return err != nil && GetCode(err) == code
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeSourceNotFound     = "SOURCE_NOT_FOUND"
	CodeSourceReadError    = "SOURCE_READ_ERROR"
	CodeRequestError       = "REQUEST_ERROR"
	CodeParseError         = "PARSE_ERROR"
	CodeRowProcessingError = "ROW_PROCESSING_ERROR"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string, cause error) *AppError {
	return &AppError{Code: CodeDatabaseError, Message: message, Cause: cause}
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func SourceNotFound(path string) *AppError {
	return New(CodeSourceNotFound, fmt.Sprintf("source file not found: %s", path))
}

func SourceReadError(path string, cause error) *AppError {
	return &AppError{
		Code:    CodeSourceReadError,
		Message: fmt.Sprintf("failed to read source %s", path),
		Cause:   cause,
	}
}

// RequestError describes a failed remote call. status is 0 for transport failures.
func RequestError(status int, body string, cause error) *AppError {
	msg := fmt.Sprintf("request failed with status %d", status)
	if status == 0 {
		msg = "request failed"
	}
	if body != "" {
		msg = fmt.Sprintf("%s (response: %s)", msg, body)
	}
	return &AppError{Code: CodeRequestError, Message: msg, Cause: cause}
}

func ParseError(body string) *AppError {
	return New(CodeParseError, fmt.Sprintf("response declared JSON but could not be decoded: %q", body))
}

func RowProcessingError(row interface{}, cause error) *AppError {
	return &AppError{
		Code:    CodeRowProcessingError,
		Message: fmt.Sprintf("failed to process row %v", row),
		Cause:   cause,
	}
}
