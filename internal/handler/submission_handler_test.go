package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

type submissionServiceStub struct {
	recorded models.RecordGradeRequest
	err      error
}

func (s *submissionServiceStub) Versions(_ context.Context, _, submissionID string) (*dto.SubmissionHistory, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.SubmissionHistory{AssignmentID: "a-1", StudentID: "st-1", Versions: []models.SubmissionVersion{
		{Submission: models.Submission{ID: submissionID, Version: 2, IsLatest: true}},
	}}, nil
}

func (s *submissionServiceStub) Grade(_ context.Context, _, submissionID string) (*models.Grade, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Grade{SubmissionID: submissionID, Score: 8}, nil
}

func (s *submissionServiceStub) RecordGrade(_ context.Context, _, submissionID string, req models.RecordGradeRequest) (*models.Grade, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.recorded = req
	return &models.Grade{SubmissionID: submissionID, Score: req.Score, MaxScore: req.MaxScore}, nil
}

func TestSubmissionVersionsAndGrade(t *testing.T) {
	f := newHandlerFixture(t, 0)

	w := f.do(http.MethodGet, "/api/v1/submissions/sub-2/versions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"assignmentId":"a-1"`)

	w = f.do(http.MethodGet, "/api/v1/submissions/sub-2/grade", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sub-2"`)
}

func TestSubmissionRecordGrade(t *testing.T) {
	f := newHandlerFixture(t, 0)

	w := f.do(http.MethodPost, "/api/v1/submissions/sub-2/grade", []byte(`{"score": 9, "maxScore": 10, "feedback": "Nice"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 9.0, f.grades.recorded.Score)

	w = f.do(http.MethodPost, "/api/v1/submissions/sub-2/grade", []byte(`{"score": "nine"}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.grades.err = appErrors.Clone(appErrors.ErrVersionConflict, "only the latest submission version can be graded")
	w = f.do(http.MethodPost, "/api/v1/submissions/sub-1/grade", []byte(`{"score": 9}`))
	assert.Equal(t, http.StatusConflict, w.Code)
}
