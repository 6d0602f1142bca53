package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/middleware"
	"github.com/weiwangfds/photosync/internal/response"
	"github.com/weiwangfds/photosync/internal/service/access"
	"github.com/weiwangfds/photosync/internal/service/catalog"
	"github.com/weiwangfds/photosync/internal/service/thumbnail"
)

// ThumbnailHandler serves preview images.
type ThumbnailHandler struct {
	thumbSvc   thumbnail.Service
	catalogSvc catalog.Service
}

// NewThumbnailHandler creates the thumbnail handler.
func NewThumbnailHandler(thumbSvc thumbnail.Service, catalogSvc catalog.Service) *ThumbnailHandler {
	return &ThumbnailHandler{thumbSvc: thumbSvc, catalogSvc: catalogSvc}
}

func parseSize(c *gin.Context) (int, bool) {
	size, err := strconv.Atoi(c.Param("size"))
	if err != nil || size < 0 || size > 4096 {
		response.BadRequest(c, "invalid thumbnail size")
		return 0, false
	}
	return size, true
}

// canView checks the caller's access to the underlying file.
func (h *ThumbnailHandler) canView(c *gin.Context, fileID int64) bool {
	rec, err := h.catalogSvc.Get(fileID)
	if err != nil {
		response.AppError(c, err)
		return false
	}
	acc, _ := middleware.GetAccount(c)
	if !access.Allowed(rec.Owner, rec.Rights, acc.Username, acc.Admin, true) {
		response.AppError(c, errors.NewByCode(errors.ErrForbidden))
		return false
	}
	return true
}

// Get streams one thumbnail.
// @Summary Get a thumbnail
// @Description Returns the PNG thumbnail of a file at the given edge length. Size 0 selects the configured default.
// @Tags thumbnails
// @Produce image/png
// @Param id path int true "File id"
// @Param size path int true "Edge length in pixels, 0 for default"
// @Success 200 {file} file "PNG thumbnail"
// @Failure 403 {object} response.Response "No access"
// @Failure 404 {object} response.Response "Unknown file"
// @Router /api/timg/get/{id}/{size} [get]
func (h *ThumbnailHandler) Get(c *gin.Context) {
	id, ok := parseFileID(c)
	if !ok {
		return
	}
	size, ok := parseSize(c)
	if !ok {
		return
	}
	if !h.canView(c, id) {
		return
	}

	r, err := h.thumbSvc.Get(id, size)
	if err != nil {
		response.AppError(c, err)
		return
	}
	defer r.Close()

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, r); err != nil {
		c.Abort()
	}
}

type getMultipleRequest struct {
	FileIDs []int64 `json:"file_ids" binding:"required"`
}

// GetMultiple bundles several thumbnails into one zip download.
// @Summary Get multiple thumbnails
// @Description Returns a zip archive with one PNG entry per requested file. The request fails if any id is unknown, inaccessible, or cannot be thumbnailed.
// @Tags thumbnails
// @Accept json
// @Produce application/zip
// @Param size path int true "Edge length in pixels, 0 for default"
// @Param body body getMultipleRequest true "File ids"
// @Success 200 {file} file "thumbnails.zip"
// @Failure 403 {object} response.Response "No access to a requested file"
// @Failure 404 {object} response.Response "Unknown file in the request"
// @Router /api/timg/get-multiple/{size} [post]
func (h *ThumbnailHandler) GetMultiple(c *gin.Context) {
	size, ok := parseSize(c)
	if !ok {
		return
	}
	var req getMultipleRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.FileIDs) == 0 {
		response.BadRequest(c, "file_ids is required")
		return
	}

	// Every id must resolve and be visible to the caller; one bad id
	// fails the whole request before any archive bytes go out.
	acc, _ := middleware.GetAccount(c)
	for _, id := range req.FileIDs {
		rec, err := h.catalogSvc.Get(id)
		if err != nil {
			response.AppError(c, errors.NewByCode(errors.ErrFileNotFound).
				WithDetails(fmt.Sprintf("file %d", id)))
			return
		}
		if !access.Allowed(rec.Owner, rec.Rights, acc.Username, acc.Admin, true) {
			response.AppError(c, errors.NewByCode(errors.ErrForbidden).
				WithDetails(fmt.Sprintf("file %d", id)))
			return
		}
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="thumbnails.zip"`)
	c.Status(http.StatusOK)
	if err := h.thumbSvc.GetMultiple(req.FileIDs, size, c.Writer); err != nil {
		// Headers are already out; all we can do is drop the connection.
		c.Abort()
	}
}
