package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	"github.com/noah-isme/classroom-snapshot-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

type submissionReader interface {
	FindByID(ctx context.Context, teacherID, id string) (*models.Submission, error)
	ListVersions(ctx context.Context, teacherID, assignmentID, studentID string) ([]models.Submission, error)
}

type gradeStore interface {
	FindBySubmission(ctx context.Context, teacherID, submissionID string) (*models.Grade, error)
	ListBySubmissionIDs(ctx context.Context, teacherID string, submissionIDs []string) (map[string]models.Grade, error)
	RecordLatest(ctx context.Context, grade *models.Grade) error
}

// SubmissionService exposes stored submission versions and grade entry.
type SubmissionService struct {
	submissions submissionReader
	grades      gradeStore
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(submissions submissionReader, grades gradeStore, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		submissions: submissions,
		grades:      grades,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Versions returns every version of the pair the submission belongs to,
// each with the grade it was given.
func (s *SubmissionService) Versions(ctx context.Context, teacherID, submissionID string) (*dto.SubmissionHistory, error) {
	sub, err := s.find(ctx, teacherID, submissionID)
	if err != nil {
		return nil, err
	}
	versions, err := s.submissions.ListVersions(ctx, teacherID, sub.AssignmentID, sub.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submission versions")
	}
	ids := make([]string, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.ID)
	}
	grades, err := s.grades.ListBySubmissionIDs(ctx, teacherID, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	history := &dto.SubmissionHistory{
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		Versions:     make([]models.SubmissionVersion, 0, len(versions)),
	}
	for _, v := range versions {
		entry := models.SubmissionVersion{Submission: v}
		if g, ok := grades[v.ID]; ok {
			g := g
			entry.Grade = &g
		}
		history.Versions = append(history.Versions, entry)
	}
	return history, nil
}

// Grade returns the grade of one submission version.
func (s *SubmissionService) Grade(ctx context.Context, teacherID, submissionID string) (*models.Grade, error) {
	if _, err := s.find(ctx, teacherID, submissionID); err != nil {
		return nil, err
	}
	grade, err := s.grades.FindBySubmission(ctx, teacherID, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission has no grade")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// RecordGrade grades the latest version of a submission. Grading a superseded
// version is a conflict.
func (s *SubmissionService) RecordGrade(ctx context.Context, teacherID, submissionID string, req models.RecordGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.MaxScore > 0 && req.Score > req.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score cannot exceed maxScore")
	}
	sub, err := s.find(ctx, teacherID, submissionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsLatest {
		return nil, appErrors.Clone(appErrors.ErrVersionConflict, "only the latest submission version can be graded")
	}

	gradedBy := req.GradedBy
	if gradedBy == "" {
		gradedBy = models.GradedByManual
	}
	gradedAt := s.now()
	grade := &models.Grade{
		SubmissionID: sub.ID,
		TeacherID:    teacherID,
		Score:        req.Score,
		MaxScore:     req.MaxScore,
		Feedback:     req.Feedback,
		GradedBy:     gradedBy,
		GradedAt:     &gradedAt,
	}
	if err := s.grades.RecordLatest(ctx, grade); err != nil {
		switch {
		case errors.Is(err, repository.ErrSubmissionNotLatest):
			return nil, appErrors.Clone(appErrors.ErrVersionConflict, "submission was superseded while grading")
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record grade")
	}
	s.logger.Info("grade recorded",
		zap.String("tenant_id", teacherID),
		zap.String("submission_id", sub.ID),
		zap.Int("version", grade.Version),
		zap.String("graded_by", string(gradedBy)),
	)
	return grade, nil
}

func (s *SubmissionService) find(ctx context.Context, teacherID, submissionID string) (*models.Submission, error) {
	sub, err := s.submissions.FindByID(ctx, teacherID, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return sub, nil
}
