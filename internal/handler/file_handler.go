package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiwangfds/photosync/internal/errors"
	"github.com/weiwangfds/photosync/internal/logger"
	"github.com/weiwangfds/photosync/internal/middleware"
	"github.com/weiwangfds/photosync/internal/response"
	"github.com/weiwangfds/photosync/internal/service/access"
	"github.com/weiwangfds/photosync/internal/service/catalog"
	"github.com/weiwangfds/photosync/internal/service/changes"
)

// FileHandler serves the catalog endpoints.
type FileHandler struct {
	catalogSvc catalog.Service
	changeSvc  changes.Service
}

// NewFileHandler creates the file handler.
func NewFileHandler(catalogSvc catalog.Service, changeSvc changes.Service) *FileHandler {
	return &FileHandler{catalogSvc: catalogSvc, changeSvc: changeSvc}
}

func parseFileID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid file id")
		return 0, false
	}
	return id, true
}

func viewerFrom(c *gin.Context) catalog.Viewer {
	acc, _ := middleware.GetAccount(c)
	return catalog.Viewer{Username: acc.Username, Admin: acc.Admin}
}

// recordChange appends one feed entry for a mutated record.
func (h *FileHandler) recordChange(actor string, rec *catalog.FileRecord) {
	if _, err := h.changeSvc.Record(actor, []int64{rec.ID}, changes.Recipients(rec.Owner, rec.Rights)); err != nil {
		// The mutation already happened; the feed entry is best effort.
		logger.Warnf("failed to record change for file %d: %v", rec.ID, err)
	}
}

// Upload stores a new file and indexes it under the caller.
// @Summary Upload a file
// @Description Stores the uploaded content in the media directory and indexes it. The caller becomes the owner.
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File content"
// @Param path formData string false "Path relative to the media directory; defaults to the upload filename"
// @Success 200 {object} response.Response "Indexed record"
// @Failure 409 {object} response.Response "Path already indexed"
// @Router /api/files/upload [post]
func (h *FileHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "no file in request")
		return
	}

	relPath := c.PostForm("path")
	if relPath == "" {
		relPath = filepath.Base(file.Filename)
	}

	src, err := file.Open()
	if err != nil {
		response.AppError(c, errors.WrapCode(errors.ErrFileReadFailed, err))
		return
	}
	defer src.Close()

	viewer := viewerFrom(c)
	rec, err := h.catalogSvc.Upload(relPath, viewer.Username, src)
	if err != nil {
		response.AppError(c, err)
		return
	}
	h.recordChange(viewer.Username, rec)

	response.Success(c, rec)
}

// Page returns a window of the catalog in descending capture-date order.
// @Summary Page through the catalog
// @Description Returns up to count records after the cursor, restricted to records the caller may access.
// @Tags files
// @Produce json
// @Param count query int false "Page size (default 50)"
// @Param cursor query int false "Last file id of the previous page"
// @Param before query int false "Only records captured before this unix timestamp (ignored with cursor)"
// @Param own query bool false "Admins: restrict to own and shared files"
// @Success 200 {object} response.Response{data=response.PageData}
// @Router /api/files/page [get]
func (h *FileHandler) Page(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "50"))
	if err != nil || count <= 0 || count > 500 {
		response.BadRequest(c, "count must be between 1 and 500")
		return
	}

	var cursor catalog.Cursor
	if raw := c.Query("cursor"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid cursor")
			return
		}
		cursor.ID = id
	}
	if raw := c.Query("before"); raw != "" && cursor.ID == 0 {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(c, "invalid before timestamp")
			return
		}
		cursor.Timestamp = time.Unix(ts, 0)
	}

	includeAdmin := c.Query("own") != "true"
	page, err := h.catalogSvc.Page(cursor, count, viewerFrom(c), includeAdmin)
	if err != nil {
		response.AppError(c, err)
		return
	}

	var nextCursor int64
	if len(page) == count {
		nextCursor = page[len(page)-1].ID
	}
	response.SuccessWithPage(c, page, len(page), nextCursor)
}

// Get returns one catalog record.
// @Summary Get file record
// @Tags files
// @Produce json
// @Param id path int true "File id"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response "No access"
// @Failure 404 {object} response.Response "Unknown file"
// @Router /api/files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	id, ok := parseFileID(c)
	if !ok {
		return
	}

	rec, err := h.catalogSvc.Get(id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	viewer := viewerFrom(c)
	if !access.Allowed(rec.Owner, rec.Rights, viewer.Username, viewer.Admin, true) {
		response.AppError(c, errors.NewByCode(errors.ErrForbidden))
		return
	}
	response.Success(c, rec)
}

// Download streams the file content.
// @Summary Download file content
// @Tags files
// @Produce application/octet-stream
// @Param id path int true "File id"
// @Success 200 {file} file "Content"
// @Failure 403 {object} response.Response "No access"
// @Failure 404 {object} response.Response "Unknown file"
// @Router /api/files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	id, ok := parseFileID(c)
	if !ok {
		return
	}

	rec, err := h.catalogSvc.Get(id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	viewer := viewerFrom(c)
	if !access.Allowed(rec.Owner, rec.Rights, viewer.Username, viewer.Admin, true) {
		response.AppError(c, errors.NewByCode(errors.ErrForbidden))
		return
	}

	rec, r, err := h.catalogSvc.Open(id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	defer r.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(rec.Path)))
	c.Header("Content-Length", strconv.FormatInt(rec.Size, 10))
	c.DataFromReader(http.StatusOK, rec.Size, "application/octet-stream", r, nil)
}

// Delete quarantines a file and drops its record.
// @Summary Delete a file
// @Description Moves the content to the quarantine directory and removes the catalog record. Owner or admin only.
// @Tags files
// @Produce json
// @Param id path int true "File id"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response "Not the owner"
// @Failure 404 {object} response.Response "Unknown file"
// @Router /api/files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	id, ok := parseFileID(c)
	if !ok {
		return
	}

	rec, err := h.catalogSvc.Get(id)
	if err != nil {
		response.AppError(c, err)
		return
	}
	viewer := viewerFrom(c)
	if rec.Owner != viewer.Username && !viewer.Admin {
		response.AppError(c, errors.NewByCode(errors.ErrForbidden))
		return
	}

	if err := h.catalogSvc.Delete(id); err != nil {
		response.AppError(c, err)
		return
	}
	h.recordChange(viewer.Username, rec)

	response.SuccessWithMessage(c, "file deleted", nil)
}

type setOwnerRequest struct {
	Owner string `json:"owner" binding:"required"`
}

// SetOwner transfers ownership of a file.
// @Summary Transfer ownership
// @Description Sets a new owner. The previous owner keeps access through the rights set.
// @Tags files
// @Accept json
// @Produce json
// @Param id path int true "File id"
// @Param body body setOwnerRequest true "New owner"
// @Success 200 {object} response.Response "Updated record"
// @Failure 403 {object} response.Response "No access"
// @Router /api/files/{id}/owner [patch]
func (h *FileHandler) SetOwner(c *gin.Context) {
	id, ok := parseFileID(c)
	if !ok {
		return
	}
	var req setOwnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "owner is required")
		return
	}

	viewer := viewerFrom(c)
	rec, err := h.catalogSvc.SetOwner(id, viewer, req.Owner)
	if err != nil {
		response.AppError(c, err)
		return
	}
	h.recordChange(viewer.Username, rec)

	response.Success(c, rec)
}

// Reindex walks the media directory and indexes unknown files.
// @Summary Reindex the media directory
// @Description Indexes undiscovered files. With force, also recomputes known records and purges missing ones.
// @Tags files
// @Produce json
// @Param force query bool false "Recompute known records and purge missing paths"
// @Success 200 {object} response.Response "Reindex report"
// @Failure 409 {object} response.Response "Reindex already running"
// @Router /api/files/reindex [post]
func (h *FileHandler) Reindex(c *gin.Context) {
	force := c.Query("force") == "true"
	report, err := h.catalogSvc.Reindex(force)
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, report)
}

// Upgrade rebuilds the catalog while preserving identifiers.
// @Summary Upgrade the catalog
// @Description Rebuilds every record from disk, pinning identifiers by path and merging fields the rebuild lost.
// @Tags files
// @Produce json
// @Success 200 {object} response.Response "Upgrade report"
// @Failure 409 {object} response.Response "Reindex already running"
// @Router /api/files/upgrade [post]
func (h *FileHandler) Upgrade(c *gin.Context) {
	report, err := h.catalogSvc.UpgradeReindex()
	if err != nil {
		response.AppError(c, err)
		return
	}
	response.Success(c, report)
}
