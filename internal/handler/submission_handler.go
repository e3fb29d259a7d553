package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/middleware"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
	"github.com/noah-isme/classroom-snapshot-api/pkg/response"
)

type submissionService interface {
	Versions(ctx context.Context, teacherID, submissionID string) (*dto.SubmissionHistory, error)
	Grade(ctx context.Context, teacherID, submissionID string) (*models.Grade, error)
	RecordGrade(ctx context.Context, teacherID, submissionID string, req models.RecordGradeRequest) (*models.Grade, error)
}

// SubmissionHandler exposes submission version history and grade entry.
type SubmissionHandler struct {
	service submissionService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(service submissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

// Versions godoc
// @Summary List every version of a submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope{data=dto.SubmissionHistory}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/versions [get]
func (h *SubmissionHandler) Versions(c *gin.Context) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	history, err := h.service.Versions(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil, middleware.ResponseMeta(c))
}

// Grade godoc
// @Summary Get the grade of a submission version
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope{data=models.Grade}
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/grade [get]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	grade, err := h.service.Grade(c.Request.Context(), tenant.ID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil, middleware.ResponseMeta(c))
}

// RecordGrade godoc
// @Summary Grade the latest version of a submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body models.RecordGradeRequest true "Grade"
// @Success 200 {object} response.Envelope{data=models.Grade}
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /submissions/{id}/grade [post]
func (h *SubmissionHandler) RecordGrade(c *gin.Context) {
	tenant, err := tenantFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.RecordGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	grade, err := h.service.RecordGrade(c.Request.Context(), tenant.ID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil, middleware.ResponseMeta(c))
}
