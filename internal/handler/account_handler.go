// Package handler contains the gin HTTP handlers. Handlers parse the
// request, delegate to a service and write the unified envelope; no
// business rules live here.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/middleware"
	"github.com/weiwangfds/photosync/internal/response"
	"github.com/weiwangfds/photosync/internal/service/account"
	"github.com/weiwangfds/photosync/internal/service/session"
)

// AccountHandler serves the account and login endpoints.
type AccountHandler struct {
	accountSvc account.Service
	sessionSvc session.Service
}

// NewAccountHandler creates the account handler.
func NewAccountHandler(accountSvc account.Service, sessionSvc session.Service) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, sessionSvc: sessionSvc}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates and issues a session token.
// @Summary Log in
// @Description Verifies credentials and returns a session token. A still-valid token for the same client address is reused.
// @Tags accounts
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Credentials"
// @Success 200 {object} response.Response "Token"
// @Failure 401 {object} response.Response "Wrong credentials"
// @Router /api/accounts/login [post]
func (h *AccountHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	acc, err := h.accountSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		response.AppError(c, err)
		return
	}
	token, err := h.sessionSvc.Login(acc.Username, c.ClientIP())
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token":    token,
		"username": acc.Username,
		"fullname": acc.Fullname,
		"admin":    acc.Admin,
	})
}

// Logout revokes the current session token.
// @Summary Log out
// @Description Revokes the token carried in the Token header. Unknown tokens succeed silently.
// @Tags accounts
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/accounts/logout [post]
func (h *AccountHandler) Logout(c *gin.Context) {
	token, ok := middleware.GetToken(c)
	if !ok {
		token = c.GetHeader("Token")
	}
	if token != "" {
		if err := h.sessionSvc.Revoke(token); err != nil {
			response.AppError(c, err)
			return
		}
	}
	response.SuccessWithMessage(c, "logged out", nil)
}

type createAccountRequest struct {
	Username string `json:"username" binding:"required"`
	Fullname string `json:"fullname"`
	Password string `json:"password" binding:"required"`
}

// Create registers a new account.
// @Summary Create account
// @Description Registers a new account. Usernames are 3-15 lowercase letters and digits; reserved names are rejected.
// @Tags accounts
// @Accept json
// @Produce json
// @Param account body createAccountRequest true "Account"
// @Success 200 {object} response.Response "Created account"
// @Failure 400 {object} response.Response "Invalid username"
// @Failure 409 {object} response.Response "Username taken"
// @Router /api/accounts/create [put]
func (h *AccountHandler) Create(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	acc, err := h.accountSvc.Create(req.Username, req.Fullname, req.Password)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, acc.Info())
}

// GetUser returns the public view of one account.
// @Summary Get user
// @Tags accounts
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response "Unknown user"
// @Router /api/accounts/get-user/{username} [get]
func (h *AccountHandler) GetUser(c *gin.Context) {
	acc, err := h.accountSvc.Get(c.Param("username"))
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, acc.Info())
}

// GetUsers lists the public view of every account.
// @Summary List users
// @Tags accounts
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/accounts/get-users [get]
func (h *AccountHandler) GetUsers(c *gin.Context) {
	response.Success(c, h.accountSvc.List())
}

// Test confirms the caller's token resolves to an account.
// @Summary Test authentication
// @Tags accounts
// @Produce json
// @Success 200 {object} response.Response "Current account"
// @Failure 401 {object} response.Response "Invalid token"
// @Router /api/accounts/test [get]
func (h *AccountHandler) Test(c *gin.Context) {
	acc, ok := middleware.GetAccount(c)
	if !ok {
		response.Unauthorized(c, "not logged in")
		return
	}
	response.Success(c, gin.H{
		"username": acc.Username,
		"fullname": acc.Fullname,
		"admin":    acc.Admin,
	})
}
