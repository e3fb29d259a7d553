package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

const importRecordColumns = `id, teacher_id, status, first_import, source, schema_version, fetched_at, expires_at, stats,
committed_stats, failures, classroom_count, processing_time_ms, snapshot_bytes, archive_path, created_at`

// ImportHistoryRepository is the append-only store of import attempts.
type ImportHistoryRepository struct {
	db *sqlx.DB
}

// NewImportHistoryRepository constructs the repository.
func NewImportHistoryRepository(db *sqlx.DB) *ImportHistoryRepository {
	return &ImportHistoryRepository{db: db}
}

// Insert appends a record. Records are never updated.
func (r *ImportHistoryRepository) Insert(ctx context.Context, record *models.ImportRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO import_records (id, teacher_id, status, first_import, source, schema_version, fetched_at,
expires_at, stats, committed_stats, failures, classroom_count, processing_time_ms, snapshot_bytes, archive_path, created_at)
VALUES (:id, :teacher_id, :status, :first_import, :source, :schema_version, :fetched_at,
:expires_at, :stats, :committed_stats, :failures, :classroom_count, :processing_time_ms, :snapshot_bytes, :archive_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("insert import record: %w", err)
	}
	return nil
}

// List returns records newest first.
func (r *ImportHistoryRepository) List(ctx context.Context, filter models.HistoryFilter) ([]models.ImportRecord, error) {
	conditions := []string{"teacher_id = $1"}
	args := []interface{}{filter.TeacherID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM import_records WHERE %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		importRecordColumns, strings.Join(conditions, " AND "), len(args)-1, len(args))

	var records []models.ImportRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list import records: %w", err)
	}
	return records, nil
}

// Count returns the number of records matching the filter.
func (r *ImportHistoryRepository) Count(ctx context.Context, filter models.HistoryFilter) (int, error) {
	query := `SELECT COUNT(*) FROM import_records WHERE teacher_id = $1`
	args := []interface{}{filter.TeacherID}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, filter.Status)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, fmt.Errorf("count import records: %w", err)
	}
	return total, nil
}

// FindByID returns one record of the teacher.
func (r *ImportHistoryRepository) FindByID(ctx context.Context, teacherID, id string) (*models.ImportRecord, error) {
	query := `SELECT ` + importRecordColumns + ` FROM import_records WHERE id = $1 AND teacher_id = $2`
	var record models.ImportRecord
	if err := r.db.GetContext(ctx, &record, query, id, teacherID); err != nil {
		return nil, fmt.Errorf("find import record: %w", err)
	}
	return &record, nil
}

// Latest returns the newest record of the teacher.
func (r *ImportHistoryRepository) Latest(ctx context.Context, teacherID string) (*models.ImportRecord, error) {
	query := `SELECT ` + importRecordColumns + ` FROM import_records WHERE teacher_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`
	var record models.ImportRecord
	if err := r.db.GetContext(ctx, &record, query, teacherID); err != nil {
		return nil, fmt.Errorf("latest import record: %w", err)
	}
	return &record, nil
}
