package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/middleware"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	"github.com/noah-isme/classroom-snapshot-api/internal/service"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
	"github.com/noah-isme/classroom-snapshot-api/pkg/response"
)

const maxHistoryLimit = 100

type snapshotValidator interface {
	ValidateRaw(raw []byte, tenant models.Tenant) (*models.Snapshot, dto.ValidationResult, error)
}

type snapshotDiffer interface {
	Diff(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.DiffResult, error)
}

type snapshotImporter interface {
	Import(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.ImportResult, error)
}

type importHistoryService interface {
	List(ctx context.Context, filter models.HistoryFilter) ([]dto.HistoryEntry, int, error)
	Get(ctx context.Context, teacherID, id string) (*models.ImportRecord, error)
	OpenArchive(ctx context.Context, teacherID, id string) (io.ReadCloser, error)
	Export(ctx context.Context, teacherID, format string) (*service.ExportFile, error)
}

// SnapshotHandlerConfig bounds request sizes and listing defaults.
type SnapshotHandlerConfig struct {
	MaxSnapshotBytes int64
	HistoryLimit     int
}

// SnapshotHandler exposes the snapshot validate/diff/import/history endpoints.
type SnapshotHandler struct {
	validator snapshotValidator
	differ    snapshotDiffer
	importer  snapshotImporter
	history   importHistoryService
	cfg       SnapshotHandlerConfig
}

// NewSnapshotHandler constructs the handler.
func NewSnapshotHandler(validator snapshotValidator, differ snapshotDiffer, importer snapshotImporter, history importHistoryService, cfg SnapshotHandlerConfig) *SnapshotHandler {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 20
	}
	return &SnapshotHandler{validator: validator, differ: differ, importer: importer, history: history, cfg: cfg}
}

// Validate godoc
// @Summary Validate a classroom snapshot
// @Description Checks the snapshot document without touching stored data. Invalid snapshots return 200 with isValid=false.
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param snapshot body models.Snapshot true "Classroom snapshot"
// @Success 200 {object} response.Envelope{data=dto.ValidationResult}
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Security BearerAuth
// @Router /snapshots/validate [post]
func (h *SnapshotHandler) Validate(c *gin.Context) {
	tenant, raw, ok := h.readRequest(c)
	if !ok {
		return
	}
	_, result, err := h.validator.ValidateRaw(raw, tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// Diff godoc
// @Summary Preview an import
// @Description Compares the snapshot with stored data and reports what an import would change.
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param snapshot body models.Snapshot true "Classroom snapshot"
// @Success 200 {object} response.Envelope{data=dto.DiffResult}
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /snapshots/diff [post]
func (h *SnapshotHandler) Diff(c *gin.Context) {
	tenant, raw, ok := h.readRequest(c)
	if !ok {
		return
	}
	result, err := h.differ.Diff(c.Request.Context(), raw, tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// Import godoc
// @Summary Import a classroom snapshot
// @Description Merges the snapshot into stored data, one transaction per classroom. Partial and total write failures still return 200 with failures listed.
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param snapshot body models.Snapshot true "Classroom snapshot"
// @Success 200 {object} response.Envelope{data=dto.ImportResult}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /snapshots/import [post]
func (h *SnapshotHandler) Import(c *gin.Context) {
	tenant, raw, ok := h.readRequest(c)
	if !ok {
		return
	}
	result, err := h.importer.Import(c.Request.Context(), raw, tenant)
	if err != nil {
		if result != nil {
			response.ErrorWithData(c, err, result)
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ResponseMeta(c))
}

// History godoc
// @Summary List imports
// @Tags Snapshots
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Param status query string false "success, partial or failure"
// @Success 200 {object} response.Envelope{data=[]dto.HistoryEntry}
// @Security BearerAuth
// @Router /snapshots/history [get]
func (h *SnapshotHandler) History(c *gin.Context) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit", h.cfg.HistoryLimit)
	if err != nil {
		response.Error(c, err)
		return
	}
	if limit == 0 {
		limit = h.cfg.HistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, total, err := h.history.List(c.Request.Context(), models.HistoryFilter{
		TeacherID: tenant.ID,
		Status:    models.ImportStatus(c.Query("status")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: offset/limit + 1, PageSize: limit, TotalCount: total}
	response.JSON(c, http.StatusOK, entries, pagination, middleware.ResponseMeta(c))
}

// HistoryDetail godoc
// @Summary Get one import record
// @Tags Snapshots
// @Produce json
// @Param id path string true "Snapshot ID"
// @Success 200 {object} response.Envelope{data=models.ImportRecord}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /snapshots/history/{id} [get]
func (h *SnapshotHandler) HistoryDetail(c *gin.Context) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.history.Get(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil, middleware.ResponseMeta(c))
}

// HistorySnapshot godoc
// @Summary Download the archived snapshot of an import
// @Tags Snapshots
// @Produce json
// @Param id path string true "Snapshot ID"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /snapshots/history/{id}/snapshot [get]
func (h *SnapshotHandler) HistorySnapshot(c *gin.Context) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id := c.Param("id")
	rc, err := h.history.OpenArchive(c.Request.Context(), tenant.ID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read archived snapshot"))
		return
	}
	response.Attachment(c, id+".json", "application/json", body)
}

// HistoryExport godoc
// @Summary Export import history
// @Tags Snapshots
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /snapshots/history/export [get]
func (h *SnapshotHandler) HistoryExport(c *gin.Context) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.history.Export(c.Request.Context(), tenant.ID, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func (h *SnapshotHandler) readRequest(c *gin.Context) (models.Tenant, []byte, bool) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return models.Tenant{}, nil, false
	}
	if c.Request.Body == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrStructural, "request body is empty"))
		return models.Tenant{}, nil, false
	}
	var reader io.Reader = c.Request.Body
	if h.cfg.MaxSnapshotBytes > 0 {
		// one byte over the limit is enough for the validator to reject it
		reader = io.LimitReader(reader, h.cfg.MaxSnapshotBytes+1)
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read request body"))
		return models.Tenant{}, nil, false
	}
	return tenant, raw, true
}
