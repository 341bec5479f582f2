// Package common defines shared constants and sentinel errors used across
// the SDK services, the transport and the CLI. Callers should use errors.Is
// to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Transport-level errors.
	ErrorNotFound     = errors.New("not found")
	ErrorUnauthorized = errors.New("unauthorized")

	// Session errors.
	ErrLoginFailed = errors.New("login failed - please check details")

	// Integrity errors.
	ErrVerificationFailed = errors.New("decrypted value does not match original value")

	// Protocol violations, raised before any side effect.
	ErrNotItemOwner      = errors.New("only item owner can update shared item")
	ErrUnknownWorkType   = errors.New("unknown client task work type")
	ErrTaskNotStartable  = errors.New("client task cannot be started")
	ErrAlreadyConnected  = errors.New("connection exists between the specified users")
	ErrConnectionInvalid = errors.New("connection is missing a public key")

	// Caller supplied data the platform would reject.
	ErrInvalidArgument = errors.New("invalid argument")

	// Share-scoped not found.
	ErrShareNotFound = errors.New("share not found")
)

// ErrorCode classifies a ServiceError for callers that want to branch on it.
type ErrorCode string

const (
	ErrCodeLoginFailed   ErrorCode = "LoginFailed"
	ErrCodeShareNotFound ErrorCode = "ShareNotFound"
	ErrCodeProtocol      ErrorCode = "ProtocolViolation"
	ErrCodeIntegrity     ErrorCode = "IntegrityFailure"
)

// ServiceError is a user-actionable domain error. Message carries the ids and
// states involved; Err is the sentinel it matches with errors.Is.
type ServiceError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError builds a ServiceError with a formatted message.
func NewServiceError(code ErrorCode, sentinel error, format string, args ...any) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...), Err: sentinel}
}
