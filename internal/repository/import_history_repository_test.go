package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

var importRecordRowColumns = []string{"id", "teacher_id", "status", "first_import", "source", "schema_version", "fetched_at",
	"expires_at", "stats", "committed_stats", "failures", "classroom_count", "processing_time_ms", "snapshot_bytes", "archive_path", "created_at"}

func TestImportHistoryRepositoryInsertAssignsID(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewImportHistoryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO import_records")).WillReturnResult(sqlmock.NewResult(0, 1))

	record := &models.ImportRecord{TeacherID: "teacher-1", Status: models.ImportStatusSuccess}
	require.NoError(t, repo.Insert(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportHistoryRepositoryListWithStatus(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewImportHistoryRepository(db)
	created := time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(importRecordRowColumns).
		AddRow("snap-1", "teacher-1", "partial", true, "classroom-export", "1.0", nil, nil,
			[]byte(`{"classroomsCreated":2}`), []byte(`{"classroomsCreated":1}`), []byte(`[{"classroomId":"c-2","error":"boom"}]`),
			2, 120, 2048, nil, created)
	mock.ExpectQuery(regexp.QuoteMeta("FROM import_records WHERE teacher_id = $1 AND status = $2 ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4")).
		WithArgs("teacher-1", models.ImportStatusPartial, 5, 10).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.HistoryFilter{TeacherID: "teacher-1", Status: models.ImportStatusPartial, Limit: 5, Offset: 10})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].CommittedStats.ClassroomsCreated)
	assert.Equal(t, 2, records[0].Stats.ClassroomsCreated)
	require.Len(t, records[0].Failures, 1)
	assert.Equal(t, "c-2", records[0].Failures[0].ClassroomID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportHistoryRepositoryCount(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewImportHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM import_records WHERE teacher_id = $1")).
		WithArgs("teacher-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.Count(context.Background(), models.HistoryFilter{TeacherID: "teacher-1"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportHistoryRepositoryFindByIDNotFound(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewImportHistoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM import_records WHERE id = $1 AND teacher_id = $2")).
		WithArgs("snap-9", "teacher-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "teacher-1", "snap-9")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
