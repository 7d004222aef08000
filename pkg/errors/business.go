package errors

import "fmt"

// BusinessError is a stable, client-facing error code with a message.
type BusinessError struct {
	Code    string
	Message string
}

func NewBusinessError(code string, message string) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
	}
}

func (e BusinessError) Error() string {
	return fmt.Sprintf("%s - %s", e.Code, e.Message)
}
