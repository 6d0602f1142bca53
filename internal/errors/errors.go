// Package errors defines the application error type and the error code
// taxonomy shared by every component. Codes are grouped in ranges so a
// handler can map them to HTTP statuses without string matching.
package errors

import (
	"errors"
	"fmt"

	"github.com/weiwangfds/photosync/internal/i18n"
)

// ErrorCode identifies an error class.
type ErrorCode int

// Error code ranges. 1xxx generic, 2xxx catalog, 3xxx accounts/sessions,
// 4xxx change feed, 5xxx thumbnails, 6xxx mirror.
const (
	ErrSuccess        ErrorCode = 0
	ErrInternalServer ErrorCode = 1000
	ErrInvalidParams  ErrorCode = 1001
	ErrUnauthorized   ErrorCode = 1002
	ErrForbidden      ErrorCode = 1003
	ErrNotFound       ErrorCode = 1004
	ErrConflict       ErrorCode = 1005

	ErrFileNotFound       ErrorCode = 2000
	ErrFileAlreadyIndexed ErrorCode = 2001
	ErrFileReadFailed     ErrorCode = 2002
	ErrFileWriteFailed    ErrorCode = 2003
	ErrReindexInProgress  ErrorCode = 2004
	ErrReindexFailed      ErrorCode = 2005

	ErrAccountNotFound  ErrorCode = 3000
	ErrAccountExists    ErrorCode = 3001
	ErrUsernameReserved ErrorCode = 3002
	ErrUsernameInvalid  ErrorCode = 3003
	ErrPasswordWrong    ErrorCode = 3004
	ErrTokenMissing     ErrorCode = 3005
	ErrTokenInvalid     ErrorCode = 3006

	ErrChangesQueryFailed  ErrorCode = 4000
	ErrChangesRecordFailed ErrorCode = 4001

	ErrThumbnailNotFound    ErrorCode = 5000
	ErrThumbnailFailed      ErrorCode = 5001
	ErrThumbnailUnsupported ErrorCode = 5002

	ErrMirrorConfigNotFound       ErrorCode = 6000
	ErrMirrorConfigInvalid        ErrorCode = 6001
	ErrMirrorProviderNotSupported ErrorCode = 6002
	ErrMirrorSyncFailed           ErrorCode = 6003
)

// AppError is the error type surfaced to handlers.
type AppError struct {
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	Details       string    `json:"details,omitempty"`
	OriginalError error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap exposes the original error to errors.Is/As.
func (e *AppError) Unwrap() error {
	return e.OriginalError
}

// WithDetails attaches detail text and returns the error.
func (e *AppError) WithDetails(details string) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// New creates an application error with the catalog message for code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewByCode creates an application error using the translated message.
func NewByCode(code ErrorCode) *AppError {
	return &AppError{Code: code, Message: GetErrorMessage(code)}
}

// Wrap turns err into an application error, keeping it for Unwrap.
func Wrap(code ErrorCode, message string, err error) *AppError {
	appErr := &AppError{Code: code, Message: message, OriginalError: err}
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// WrapCode is Wrap with the catalog message for code.
func WrapCode(code ErrorCode, err error) *AppError {
	return Wrap(code, GetErrorMessage(code), err)
}

// GetAppError extracts an *AppError from err, unwrapping as needed.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an application error with the given code.
func IsCode(err error, code ErrorCode) bool {
	appErr, ok := GetAppError(err)
	return ok && appErr.Code == code
}

var errorCodeToKeyMap = map[ErrorCode]string{
	ErrSuccess:        "success",
	ErrInternalServer: "internal_server_error",
	ErrInvalidParams:  "invalid_params",
	ErrUnauthorized:   "unauthorized",
	ErrForbidden:      "forbidden",
	ErrNotFound:       "not_found",
	ErrConflict:       "conflict",

	ErrFileNotFound:       "file_not_found",
	ErrFileAlreadyIndexed: "file_already_indexed",
	ErrFileReadFailed:     "file_read_failed",
	ErrFileWriteFailed:    "file_write_failed",
	ErrReindexInProgress:  "reindex_in_progress",
	ErrReindexFailed:      "reindex_failed",

	ErrAccountNotFound:  "account_not_found",
	ErrAccountExists:    "account_exists",
	ErrUsernameReserved: "username_reserved",
	ErrUsernameInvalid:  "username_invalid",
	ErrPasswordWrong:    "password_wrong",
	ErrTokenMissing:     "token_missing",
	ErrTokenInvalid:     "token_invalid",

	ErrChangesQueryFailed:  "changes_query_failed",
	ErrChangesRecordFailed: "changes_record_failed",

	ErrThumbnailNotFound:    "thumbnail_not_found",
	ErrThumbnailFailed:      "thumbnail_failed",
	ErrThumbnailUnsupported: "thumbnail_unsupported",

	ErrMirrorConfigNotFound:       "mirror_config_not_found",
	ErrMirrorConfigInvalid:        "mirror_config_invalid",
	ErrMirrorProviderNotSupported: "mirror_provider_not_supported",
	ErrMirrorSyncFailed:           "mirror_sync_failed",
}

// GetErrorMessage resolves the default-language message for code.
func GetErrorMessage(code ErrorCode) string {
	return GetErrorMessageWithLang(code, i18n.GetInstance().GetDefaultLanguage())
}

// GetErrorMessageWithLang resolves the message for code in lang.
func GetErrorMessageWithLang(code ErrorCode, lang string) string {
	key, exists := errorCodeToKeyMap[code]
	if !exists {
		key = "unknown_error"
	}
	return i18n.GetInstance().Translate(key, lang)
}
