package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
	"github.com/noah-isme/classroom-snapshot-api/pkg/jobs"
)

type graderStub struct {
	suggestion *GradeSuggestion
	err        error
}

func (g graderStub) Grade(context.Context, models.Submission) (*GradeSuggestion, error) {
	return g.suggestion, g.err
}

type gradeRecorderStub struct {
	mu       sync.Mutex
	err      error
	recorded map[string]models.RecordGradeRequest
	done     chan struct{}
}

func (s *gradeRecorderStub) RecordGrade(_ context.Context, _, submissionID string, req models.RecordGradeRequest) (*models.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.done <- struct{}{} }()
	if s.err != nil {
		return nil, s.err
	}
	s.recorded[submissionID] = req
	return &models.Grade{SubmissionID: submissionID, Score: req.Score}, nil
}

func newRecorderStub() *gradeRecorderStub {
	return &gradeRecorderStub{recorded: map[string]models.RecordGradeRequest{}, done: make(chan struct{}, 8)}
}

func TestGradingDispatchRecordsSuggestion(t *testing.T) {
	recorder := newRecorderStub()
	svc := NewGradingDispatchService(graderStub{suggestion: &GradeSuggestion{Score: 7, MaxScore: 10, Feedback: "ok"}}, recorder, jobs.QueueConfig{Workers: 1}, nil)
	svc.Start(context.Background())
	defer svc.Stop()

	queued := svc.Dispatch(context.Background(), "teacher-1", []models.Submission{{ID: "sub-1"}, {ID: "sub-2"}})
	assert.Equal(t, 2, queued)

	for i := 0; i < 2; i++ {
		select {
		case <-recorder.done:
		case <-time.After(time.Second):
			t.Fatal("grade was not recorded")
		}
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, models.GradedByAI, recorder.recorded["sub-1"].GradedBy)
	assert.Equal(t, 7.0, recorder.recorded["sub-2"].Score)
}

func TestGradingDispatchNotStartedQueuesNothing(t *testing.T) {
	svc := NewGradingDispatchService(nil, newRecorderStub(), jobs.QueueConfig{}, nil)
	assert.Equal(t, 0, svc.Dispatch(context.Background(), "teacher-1", []models.Submission{{ID: "sub-1"}}))
}

func TestGradingDispatchHandleOutcomes(t *testing.T) {
	sub := models.Submission{ID: "sub-1"}
	job := jobs.Job{ID: "sub-1", TenantID: "teacher-1", Payload: sub}

	svc := NewGradingDispatchService(graderStub{}, newRecorderStub(), jobs.QueueConfig{}, nil)
	assert.NoError(t, svc.handle(context.Background(), job), "no suggestion")

	superseded := newRecorderStub()
	superseded.err = appErrors.Clone(appErrors.ErrVersionConflict, "superseded")
	svc = NewGradingDispatchService(graderStub{suggestion: &GradeSuggestion{Score: 1}}, superseded, jobs.QueueConfig{}, nil)
	assert.NoError(t, svc.handle(context.Background(), job), "superseded results are discarded")

	failing := newRecorderStub()
	failing.err = errors.New("db down")
	svc = NewGradingDispatchService(graderStub{suggestion: &GradeSuggestion{Score: 1}}, failing, jobs.QueueConfig{}, nil)
	assert.Error(t, svc.handle(context.Background(), job), "transient errors are retried")

	svc = NewGradingDispatchService(graderStub{err: errors.New("model timeout")}, newRecorderStub(), jobs.QueueConfig{}, nil)
	assert.Error(t, svc.handle(context.Background(), job))

	assert.Error(t, svc.handle(context.Background(), jobs.Job{Payload: "not a submission"}))
}

func TestLoggingGraderProposesNothing(t *testing.T) {
	suggestion, err := NewLoggingGrader(nil).Grade(context.Background(), models.Submission{ID: "sub-1"})
	require.NoError(t, err)
	assert.Nil(t, suggestion)
}
