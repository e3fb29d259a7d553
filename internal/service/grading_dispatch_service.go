package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
	"github.com/noah-isme/classroom-snapshot-api/pkg/jobs"
)

const jobKindGradeSubmission = "grade_submission"

// GradeSuggestion is what an external grader proposes for a submission.
type GradeSuggestion struct {
	Score    float64
	MaxScore float64
	Feedback string
}

// Grader is the external grading black box. A nil suggestion with a nil error
// means the grader has nothing to say about the submission.
type Grader interface {
	Grade(ctx context.Context, submission models.Submission) (*GradeSuggestion, error)
}

// LoggingGrader is the default grader: it records that grading was requested
// and proposes nothing.
type LoggingGrader struct {
	logger *zap.Logger
}

// NewLoggingGrader constructs the default grader.
func NewLoggingGrader(logger *zap.Logger) *LoggingGrader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingGrader{logger: logger}
}

// Grade implements Grader.
func (g *LoggingGrader) Grade(_ context.Context, submission models.Submission) (*GradeSuggestion, error) {
	g.logger.Info("grading requested",
		zap.String("tenant_id", submission.TeacherID),
		zap.String("submission_id", submission.ID),
		zap.Int("version", submission.Version),
	)
	return nil, nil
}

type gradeRecorder interface {
	RecordGrade(ctx context.Context, teacherID, submissionID string, req models.RecordGradeRequest) (*models.Grade, error)
}

// GradingDispatchService hands committed submissions to the grader on a
// background queue and records whatever grade comes back.
type GradingDispatchService struct {
	queue  *jobs.Queue
	grader Grader
	grades gradeRecorder
	logger *zap.Logger
}

// NewGradingDispatchService constructs the dispatcher and its worker queue.
func NewGradingDispatchService(grader Grader, grades gradeRecorder, cfg jobs.QueueConfig, logger *zap.Logger) *GradingDispatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if grader == nil {
		grader = NewLoggingGrader(logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger
	}
	s := &GradingDispatchService{grader: grader, grades: grades, logger: logger}
	s.queue = jobs.NewQueue("grading", s.handle, cfg)
	return s
}

// Start launches the workers.
func (s *GradingDispatchService) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop drains nothing; buffered jobs are dropped.
func (s *GradingDispatchService) Stop() { s.queue.Stop() }

// Stats reports queue counters.
func (s *GradingDispatchService) Stats() jobs.Stats { return s.queue.Stats() }

// Dispatch enqueues each submission and returns how many were accepted.
func (s *GradingDispatchService) Dispatch(_ context.Context, teacherID string, submissions []models.Submission) int {
	queued := 0
	for _, sub := range submissions {
		job := jobs.Job{
			ID:       sub.ID,
			Kind:     jobKindGradeSubmission,
			TenantID: teacherID,
			Payload:  sub,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("grading job not queued", zap.String("tenant_id", teacherID), zap.String("submission_id", sub.ID), zap.Error(err))
			continue
		}
		queued++
	}
	return queued
}

func (s *GradingDispatchService) handle(ctx context.Context, job jobs.Job) error {
	sub, ok := job.Payload.(models.Submission)
	if !ok {
		return fmt.Errorf("unexpected payload %T", job.Payload)
	}
	suggestion, err := s.grader.Grade(ctx, sub)
	if err != nil {
		return fmt.Errorf("grade submission %s: %w", sub.ID, err)
	}
	if suggestion == nil {
		return nil
	}

	_, err = s.grades.RecordGrade(ctx, job.TenantID, sub.ID, models.RecordGradeRequest{
		Score:    suggestion.Score,
		MaxScore: suggestion.MaxScore,
		Feedback: suggestion.Feedback,
		GradedBy: models.GradedByAI,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, appErrors.ErrVersionConflict), errors.Is(err, appErrors.ErrNotFound), errors.Is(err, appErrors.ErrValidation):
		// superseded or rejected; retrying cannot help
		s.logger.Info("discarding grader result", zap.String("submission_id", sub.ID), zap.Error(err))
		return nil
	default:
		return err
	}
}
