package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorFormatting(t *testing.T) {
	err := New(ErrFileNotFound, "file not found")
	assert.Equal(t, "[2000] file not found", err.Error())

	withDetails := err.WithDetails("id 7")
	assert.Equal(t, "[2000] file not found: id 7", withDetails.Error())
	// WithDetails clones; the original stays untouched.
	assert.Empty(t, err.Details)
}

func TestWrapKeepsOriginal(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrFileReadFailed, "read failed", cause)

	assert.Equal(t, cause, err.Unwrap())
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestGetAppErrorUnwraps(t *testing.T) {
	inner := NewByCode(ErrTokenInvalid)
	wrapped := fmt.Errorf("handling request: %w", inner)

	appErr, ok := GetAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrTokenInvalid, appErr.Code)

	_, ok = GetAppError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestIsCode(t *testing.T) {
	err := NewByCode(ErrReindexInProgress)
	assert.True(t, IsCode(err, ErrReindexInProgress))
	assert.False(t, IsCode(err, ErrReindexFailed))
	assert.False(t, IsCode(nil, ErrReindexFailed))
}

func TestEveryCodeHasAMessage(t *testing.T) {
	codes := []ErrorCode{
		ErrInternalServer, ErrInvalidParams, ErrUnauthorized, ErrForbidden,
		ErrNotFound, ErrConflict,
		ErrFileNotFound, ErrFileAlreadyIndexed, ErrFileReadFailed,
		ErrFileWriteFailed, ErrReindexInProgress, ErrReindexFailed,
		ErrAccountNotFound, ErrAccountExists, ErrUsernameReserved,
		ErrUsernameInvalid, ErrPasswordWrong, ErrTokenMissing, ErrTokenInvalid,
		ErrChangesQueryFailed, ErrChangesRecordFailed,
		ErrThumbnailNotFound, ErrThumbnailFailed, ErrThumbnailUnsupported,
		ErrMirrorConfigNotFound, ErrMirrorConfigInvalid,
		ErrMirrorProviderNotSupported, ErrMirrorSyncFailed,
	}
	for _, code := range codes {
		assert.NotEmpty(t, GetErrorMessage(code), "code %d", code)
	}
}
