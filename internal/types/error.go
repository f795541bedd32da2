package types

import "fmt"

// Error types reported in the "type" field of error responses
const (
	ErrorTypeValidation    = "validation"
	ErrorTypeNotFound      = "not_found"
	ErrorTypeConflict      = "conflict"
	ErrorTypeAuthorization = "authorization"
	ErrorTypeRateLimit     = "rate_limit"
	ErrorTypeInternal      = "internal"
)

// CustomError is an error that carries its HTTP status and response type
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewCustomError creates a CustomError
func NewCustomError(code int, message, errorType string) *CustomError {
	return &CustomError{Code: code, Message: message, Type: errorType}
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("%d: %s [type: %s]", e.Code, e.Message, e.Type)
}
