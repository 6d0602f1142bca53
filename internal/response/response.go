// Package response provides the unified JSON envelope returned by every
// API endpoint.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/errors"
)

// Response is the envelope for all API responses.
type Response struct {
	// Code is 0 on success, an application error code otherwise.
	Code int `json:"code" example:"0"`
	// Message is a short human-readable status.
	Message string `json:"message" example:"success"`
	// Data carries the payload when present.
	Data interface{} `json:"data,omitempty"`
	// Timestamp is the server time in unix seconds.
	Timestamp int64 `json:"timestamp" example:"1640995200"`
}

// PageData wraps a paginated listing.
type PageData struct {
	List interface{} `json:"list"`
	// Count is the number of records in this page.
	Count int `json:"count" example:"50"`
	// NextCursor is the id to pass as the cursor for the following page.
	// Zero means the listing is exhausted.
	NextCursor int64 `json:"next_cursor" example:"41"`
}

// Success writes a 200 envelope with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// SuccessWithMessage writes a 200 envelope with a custom message.
func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      0,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// SuccessWithPage writes a 200 envelope wrapping a page of records.
func SuccessWithPage(c *gin.Context, list interface{}, count int, nextCursor int64) {
	Success(c, PageData{List: list, Count: count, NextCursor: nextCursor})
}

// Error writes an envelope for an application error code, mapping the
// code range to the HTTP status.
func Error(c *gin.Context, code errors.ErrorCode, message string) {
	c.JSON(httpStatus(code), Response{
		Code:      int(code),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// AppError writes the envelope for err. Non-application errors become an
// internal server error without leaking detail.
func AppError(c *gin.Context, err error) {
	if appErr, ok := errors.GetAppError(err); ok {
		c.JSON(httpStatus(appErr.Code), Response{
			Code:      int(appErr.Code),
			Message:   appErr.Message,
			Timestamp: time.Now().Unix(),
		})
		return
	}
	InternalServerError(c, errors.GetErrorMessage(errors.ErrInternalServer))
}

// BadRequest writes a 400 envelope.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:      int(errors.ErrInvalidParams),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// Unauthorized writes a 401 envelope.
func Unauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:      int(errors.ErrUnauthorized),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// Forbidden writes a 403 envelope.
func Forbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, Response{
		Code:      int(errors.ErrForbidden),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// NotFound writes a 404 envelope.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Response{
		Code:      int(errors.ErrNotFound),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// InternalServerError writes a 500 envelope.
func InternalServerError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Response{
		Code:      int(errors.ErrInternalServer),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// httpStatus maps an application error code to an HTTP status.
func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrSuccess:
		return http.StatusOK
	case errors.ErrInvalidParams, errors.ErrUsernameInvalid, errors.ErrThumbnailUnsupported,
		errors.ErrMirrorConfigInvalid:
		return http.StatusBadRequest
	case errors.ErrUnauthorized, errors.ErrPasswordWrong, errors.ErrTokenMissing, errors.ErrTokenInvalid:
		return http.StatusUnauthorized
	case errors.ErrForbidden, errors.ErrUsernameReserved:
		return http.StatusForbidden
	case errors.ErrNotFound, errors.ErrFileNotFound, errors.ErrAccountNotFound,
		errors.ErrThumbnailNotFound, errors.ErrMirrorConfigNotFound:
		return http.StatusNotFound
	case errors.ErrConflict, errors.ErrFileAlreadyIndexed, errors.ErrAccountExists,
		errors.ErrReindexInProgress:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
