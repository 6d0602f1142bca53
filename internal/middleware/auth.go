// Package middleware provides the gin middleware shared by every route
// group: authentication and request logging.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/response"
	"github.com/weiwangfds/photosync/internal/service/account"
	"github.com/weiwangfds/photosync/internal/service/session"
)

// Context keys set by the auth middleware.
const (
	ContextAccount = "auth_account"
	ContextToken   = "auth_token"
)

// Auth resolves the Token header to an account and stores it in the
// request context. Requests without a valid token pass through
// unauthenticated; RequireLogin rejects them where needed.
func Auth(sessionSvc session.Service, accountSvc account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Token")
		if token == "" {
			c.Next()
			return
		}

		username, err := sessionSvc.Validate(token)
		if err != nil {
			c.Next()
			return
		}
		acc, err := accountSvc.Get(username)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextAccount, acc)
		c.Set(ContextToken, token)
		c.Next()
	}
}

// RequireLogin aborts requests that did not authenticate.
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetAccount(c); !ok {
			response.AppError(c, errors.NewByCode(errors.ErrTokenInvalid))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts requests whose account is not an admin.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := GetAccount(c)
		if !ok {
			response.AppError(c, errors.NewByCode(errors.ErrTokenInvalid))
			c.Abort()
			return
		}
		if !acc.Admin {
			response.AppError(c, errors.NewByCode(errors.ErrForbidden))
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetAccount returns the authenticated account, if any.
func GetAccount(c *gin.Context) (*account.Account, bool) {
	v, ok := c.Get(ContextAccount)
	if !ok {
		return nil, false
	}
	acc, ok := v.(*account.Account)
	return acc, ok
}

// GetToken returns the validated session token, if any.
func GetToken(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextToken)
	if !ok {
		return "", false
	}
	token, ok := v.(string)
	return token, ok
}
