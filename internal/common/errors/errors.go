// Package errors provides standardized error handling for the CRM sync engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Authentication / token lifecycle.
	ErrCodeCRMAuthFailed   ErrorCode = "CRM_AUTH_FAILED"
	ErrCodeCRMUnauthorized ErrorCode = "CRM_UNAUTHORIZED"

	// Transport.
	ErrCodeCRMTransport ErrorCode = "CRM_TRANSPORT_ERROR"

	// Structured remote errors (bad request / multiple choices bodies).
	ErrCodeCRMRemote ErrorCode = "CRM_REMOTE_ERROR"

	// Domain validation: programming or configuration defects, never retried.
	ErrCodeUnknownObject       ErrorCode = "UNKNOWN_OBJECT"
	ErrCodeBatchTooLarge       ErrorCode = "BATCH_TOO_LARGE"
	ErrCodeResultCountMismatch ErrorCode = "RESULT_COUNT_MISMATCH"
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"

	ErrCodeRecordNotFound ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeDatabaseFailed ErrorCode = "DATABASE_ERROR"
	ErrCodeAlertSend      ErrorCode = "ALERT_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// HasCode reports whether err is (or wraps) a StandardError with the code.
func HasCode(err error, code ErrorCode) bool {
	var se *StandardError
	return stderrors.As(err, &se) && se.Code == code
}

// NewCRMAuthError signals a failed token exchange: a security or
// configuration defect, fatal for the calling operation.
func NewCRMAuthError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMAuthFailed,
		Message:   "CRM token exchange failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMUnauthorizedError signals credential rejection that persisted
// through one token refresh.
func NewCRMUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMUnauthorized,
		Message:   "CRM rejected credentials after token refresh",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMTransportError signals a connectivity failure that survived the
// single transport retry.
func NewCRMTransportError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMTransport,
		Message:   "CRM request failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCRMRemoteError carries a decoded error body from the CRM.
func NewCRMRemoteError(remoteCode, message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCRMRemote,
		Message:   message,
		Details:   fmt.Sprintf("remoteCode: %s", remoteCode),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownObjectError creates a non-retryable mapping error.
func NewUnknownObjectError(object string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownObject,
		Message:   "No CRM mapping for object type",
		Details:   fmt.Sprintf("object: %s", object),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBatchTooLargeError rejects an oversized upsert batch before any
// network call is made.
func NewBatchTooLargeError(size, limit int) *StandardError {
	return &StandardError{
		Code:      ErrCodeBatchTooLarge,
		Message:   "Upsert batch exceeds the composite request limit",
		Details:   fmt.Sprintf("size: %d, limit: %d", size, limit),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultCountMismatchError signals a response array that cannot be
// attributed back to the input records.
func NewResultCountMismatchError(want, got int) *StandardError {
	return &StandardError{
		Code:      ErrCodeResultCountMismatch,
		Message:   "Upsert result count does not match the request",
		Details:   fmt.Sprintf("sent: %d, received: %d", want, got),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a caller-visible validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Invalid request",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRecordNotFoundError signals that the CRM holds no record for the id.
func NewRecordNotFoundError(object, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "CRM record not found",
		Details:   fmt.Sprintf("object: %s, id: %s", object, id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseError creates a retryable local persistence error.
func NewDatabaseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseFailed,
		Message:   "Database operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlertSendError creates a retryable operator-alert delivery error.
func NewAlertSendError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlertSend,
		Message:   "Operator alert delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
