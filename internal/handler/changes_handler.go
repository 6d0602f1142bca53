package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/middleware"
	"github.com/weiwangfds/photosync/internal/response"
	"github.com/weiwangfds/photosync/internal/service/changes"
)

// ChangesHandler serves the change feed endpoints.
type ChangesHandler struct {
	changeSvc changes.Service
}

// NewChangesHandler creates the changes handler.
func NewChangesHandler(changeSvc changes.Service) *ChangesHandler {
	return &ChangesHandler{changeSvc: changeSvc}
}

// Since returns the files touched by changes addressed to the caller
// after a timestamp.
// @Summary Changes since a timestamp
// @Description Returns the distinct file ids of change entries addressed to the caller or the public, recorded strictly after the given unix timestamp.
// @Tags changes
// @Produce json
// @Param since query int false "Unix timestamp (default 0, the whole feed)"
// @Success 200 {object} response.Response "File ids and the latest change id"
// @Router /api/changes/since [get]
func (h *ChangesHandler) Since(c *gin.Context) {
	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil || since < 0 {
		response.BadRequest(c, "invalid since timestamp")
		return
	}

	acc, _ := middleware.GetAccount(c)
	fileIDs, err := h.changeSvc.FileIDsSince(acc.Username, since)
	if err != nil {
		response.AppError(c, err)
		return
	}
	latest, err := h.changeSvc.LatestID()
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"file_ids": fileIDs, "latest_change_id": latest})
}

// SinceID is the timestamp-free variant keyed on the last change id the
// client has seen.
// @Summary Changes since a change id
// @Tags changes
// @Produce json
// @Param id query int false "Last change id seen (default 0)"
// @Success 200 {object} response.Response "File ids and the latest change id"
// @Router /api/changes/since-id [get]
func (h *ChangesHandler) SinceID(c *gin.Context) {
	lastID, err := strconv.ParseInt(c.DefaultQuery("id", "0"), 10, 64)
	if err != nil || lastID < 0 {
		response.BadRequest(c, "invalid change id")
		return
	}

	acc, _ := middleware.GetAccount(c)
	fileIDs, err := h.changeSvc.FileIDsSinceID(acc.Username, lastID)
	if err != nil {
		response.AppError(c, err)
		return
	}
	latest, err := h.changeSvc.LatestID()
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, gin.H{"file_ids": fileIDs, "latest_change_id": latest})
}
