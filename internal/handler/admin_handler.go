package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/middleware"
	"github.com/weiwangfds/photosync/internal/response"
	"github.com/weiwangfds/photosync/internal/service/account"
	"github.com/weiwangfds/photosync/internal/service/session"
)

// AdminHandler serves the admin-only endpoints.
type AdminHandler struct {
	sessionSvc session.Service
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(sessionSvc session.Service) *AdminHandler {
	return &AdminHandler{sessionSvc: sessionSvc}
}

// Test confirms the caller holds an admin token.
// @Summary Test admin authentication
// @Tags admin
// @Produce json
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response "Not an admin"
// @Router /api/admin/test [get]
func (h *AdminHandler) Test(c *gin.Context) {
	acc, _ := middleware.GetAccount(c)
	response.Success(c, gin.H{"username": acc.Username, "admin": acc.Admin})
}

// SwitchIndex re-points the caller's token to the system account so an
// admin can act as the indexer. The response carries the username the
// token bound before, which the client needs to switch back.
// @Summary Act as the system account
// @Tags admin
// @Produce json
// @Success 200 {object} response.Response "Previous username"
// @Failure 401 {object} response.Response "Invalid token"
// @Router /api/admin/switch-index [patch]
func (h *AdminHandler) SwitchIndex(c *gin.Context) {
	token, ok := middleware.GetToken(c)
	if !ok {
		response.Unauthorized(c, "not logged in")
		return
	}

	previous, err := h.sessionSvc.Reassign(token, account.SystemUsername)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, gin.H{"previous_username": previous})
}
