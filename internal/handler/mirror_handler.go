package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/database"
	"github.com/weiwangfds/photosync/internal/response"
	"github.com/weiwangfds/photosync/internal/service/mirror"
)

// MirrorHandler serves the mirror configuration and sync endpoints.
// All routes are admin-only.
type MirrorHandler struct {
	configSvc mirror.ConfigService
	syncSvc   mirror.SyncService
}

// NewMirrorHandler creates the mirror handler.
func NewMirrorHandler(configSvc mirror.ConfigService, syncSvc mirror.SyncService) *MirrorHandler {
	return &MirrorHandler{configSvc: configSvc, syncSvc: syncSvc}
}

func parseConfigID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid mirror config id")
		return 0, false
	}
	return uint(id), true
}

type mirrorConfigRequest struct {
	Name       string `json:"name" binding:"required"`
	Provider   string `json:"provider" binding:"required"`
	Region     string `json:"region"`
	Bucket     string `json:"bucket" binding:"required"`
	AccessKey  string `json:"access_key" binding:"required"`
	SecretKey  string `json:"secret_key" binding:"required"`
	Endpoint   string `json:"endpoint"`
	PathPrefix string `json:"path_prefix"`
}

func (r *mirrorConfigRequest) toModel() *database.MirrorConfig {
	return &database.MirrorConfig{
		Name:       r.Name,
		Provider:   r.Provider,
		Region:     r.Region,
		Bucket:     r.Bucket,
		AccessKey:  r.AccessKey,
		SecretKey:  r.SecretKey,
		Endpoint:   r.Endpoint,
		PathPrefix: r.PathPrefix,
	}
}

// CreateConfig stores a new mirror target.
// @Summary Create mirror config
// @Description Stores a new mirror target after verifying it is reachable. The first config becomes active.
// @Tags mirror
// @Accept json
// @Produce json
// @Param config body mirrorConfigRequest true "Mirror target"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response "Invalid or unreachable target"
// @Router /api/mirror/configs [post]
func (h *MirrorHandler) CreateConfig(c *gin.Context) {
	var req mirrorConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name, provider, bucket and credentials are required")
		return
	}

	cfg := req.toModel()
	if err := h.configSvc.Create(cfg); err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, cfg)
}

// UpdateConfig replaces a mirror target's settings.
// @Summary Update mirror config
// @Tags mirror
// @Accept json
// @Produce json
// @Param id path int true "Config id"
// @Param config body mirrorConfigRequest true "Mirror target"
// @Success 200 {object} response.Response
// @Router /api/mirror/configs/{id} [put]
func (h *MirrorHandler) UpdateConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}
	var req mirrorConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "name, provider, bucket and credentials are required")
		return
	}

	if err := h.configSvc.Update(id, req.toModel()); err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithMessage(c, "mirror config updated", nil)
}

// DeleteConfig removes a mirror target.
// @Summary Delete mirror config
// @Tags mirror
// @Produce json
// @Param id path int true "Config id"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response "Config is active"
// @Router /api/mirror/configs/{id} [delete]
func (h *MirrorHandler) DeleteConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}
	if err := h.configSvc.Delete(id); err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithMessage(c, "mirror config deleted", nil)
}

// ListConfigs returns every mirror target.
// @Summary List mirror configs
// @Tags mirror
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/mirror/configs [get]
func (h *MirrorHandler) ListConfigs(c *gin.Context) {
	configs, err := h.configSvc.List()
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, configs)
}

// ActivateConfig makes one mirror target the active one.
// @Summary Activate mirror config
// @Tags mirror
// @Produce json
// @Param id path int true "Config id"
// @Success 200 {object} response.Response
// @Router /api/mirror/configs/{id}/activate [patch]
func (h *MirrorHandler) ActivateConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}
	if err := h.configSvc.Activate(id); err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithMessage(c, "mirror config activated", nil)
}

// TestConfig verifies a stored mirror target is reachable.
// @Summary Test mirror config
// @Tags mirror
// @Produce json
// @Param id path int true "Config id"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response "Unreachable"
// @Router /api/mirror/configs/{id}/test [post]
func (h *MirrorHandler) TestConfig(c *gin.Context) {
	id, ok := parseConfigID(c)
	if !ok {
		return
	}
	if err := h.configSvc.Test(id); err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithMessage(c, "mirror target reachable", nil)
}

// Sync pushes one file to the active mirror.
// @Summary Mirror a file
// @Tags mirror
// @Produce json
// @Param id path int true "File id"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response "No active config or unknown file"
// @Router /api/mirror/sync/{id} [post]
func (h *MirrorHandler) Sync(c *gin.Context) {
	id, ok := parseFileID(c)
	if !ok {
		return
	}
	if err := h.syncSvc.Sync(id); err != nil {
		response.AppError(c, err)
		return
	}
	response.SuccessWithMessage(c, "file mirrored", nil)
}

// Logs returns a page of mirror attempts.
// @Summary List mirror logs
// @Tags mirror
// @Produce json
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size (default 50)"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/mirror/logs [get]
func (h *MirrorHandler) Logs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))

	logs, total, err := h.syncSvc.Logs(page, pageSize)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, gin.H{"list": logs, "total": total, "page": page, "page_size": pageSize})
}
