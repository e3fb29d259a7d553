package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

func TestDiffFirstImportOmitsExistingAndChanges(t *testing.T) {
	svc := NewDiffService(NewSnapshotValidator(0, nil), newMemStore(), NewPlanner(sequentialIDs("id"), fixedClock), nil)

	result, err := svc.Diff(context.Background(), rawSnapshot(t, testSnapshot()), testTenant)
	require.NoError(t, err)
	assert.True(t, result.IsFirstImport)
	assert.Nil(t, result.Existing)
	assert.Nil(t, result.Changes)
	require.NotNil(t, result.New)
	require.Len(t, result.New.Classrooms, 1)
	assert.Equal(t, "c-1", result.New.Classrooms[0].ID)
	assert.Equal(t, 2, result.New.Submissions)
	assert.Equal(t, 1, result.New.Grades)
}

func TestDiffSubsequentImportReportsCountChanges(t *testing.T) {
	f := newReconciliationFixture(t, nil, 1)
	_, err := f.service.Import(context.Background(), rawSnapshot(t, testSnapshot()), testTenant)
	require.NoError(t, err)

	next := testSnapshot()
	next.Classrooms[0].Students = append(next.Classrooms[0].Students, models.SnapshotStudent{ID: "st-3", Name: "Katherine Johnson"})
	next.Classrooms[0].Submissions[1].Content = "x = 6"

	result, err := NewDiffService(NewSnapshotValidator(0, nil), f.store, f.planner, nil).Diff(context.Background(), rawSnapshot(t, next), testTenant)
	require.NoError(t, err)
	assert.False(t, result.IsFirstImport)
	require.NotNil(t, result.Existing)
	assert.Equal(t, 1, result.Existing.Classrooms)
	assert.Equal(t, 2, result.Existing.ActiveEnrollments)
	assert.Equal(t, 1, result.Existing.Graded)

	require.NotNil(t, result.Changes)
	assert.Equal(t, 1, result.Changes.SubmissionsVersioned)
	assert.Equal(t, 1, result.Changes.GradesOrphaned)
	require.Len(t, result.Changes.Classrooms, 1)
	change := result.Changes.Classrooms[0]
	assert.Equal(t, 2, change.Before.Students)
	assert.Equal(t, 3, change.After.Students)
	assert.Equal(t, 1, change.Before.Ungraded)
	assert.Equal(t, 2, change.After.Ungraded)
	assert.Empty(t, result.New.Classrooms)
	assert.Equal(t, 1, result.New.Enrollments)
}

func TestDiffRejectsInvalidSnapshot(t *testing.T) {
	svc := NewDiffService(NewSnapshotValidator(0, nil), newMemStore(), nil, nil)
	s := testSnapshot()
	s.Teacher.Name = ""

	_, err := svc.Diff(context.Background(), rawSnapshot(t, s), testTenant)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSnapshotInvalid))
}
