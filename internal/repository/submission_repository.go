package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

const submissionColumns = `id, teacher_id, classroom_id, assignment_id, student_id, external_id, version, is_latest,
content_fingerprint, content, attachments, status, source_state, late, submitted_at, source_updated_at, created_at, updated_at`

// SubmissionRepository persists submission versions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ListLatestByTeacher returns the latest version of every (assignment, student) pair.
func (r *SubmissionRepository) ListLatestByTeacher(ctx context.Context, teacherID string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE teacher_id = $1 AND is_latest = TRUE`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, teacherID); err != nil {
		return nil, fmt.Errorf("list latest submissions: %w", err)
	}
	return submissions, nil
}

// FindByID loads one submission version of the teacher.
func (r *SubmissionRepository) FindByID(ctx context.Context, teacherID, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 AND teacher_id = $2`
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, id, teacherID); err != nil {
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// ListVersions returns every version of the pair, newest first.
func (r *SubmissionRepository) ListVersions(ctx context.Context, teacherID, assignmentID, studentID string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
WHERE teacher_id = $1 AND assignment_id = $2 AND student_id = $3 ORDER BY version DESC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, teacherID, assignmentID, studentID); err != nil {
		return nil, fmt.Errorf("list submission versions: %w", err)
	}
	return submissions, nil
}

func insertSubmission(ctx context.Context, tx sqlx.ExtContext, submission *models.Submission) error {
	const query = `INSERT INTO submissions (id, teacher_id, classroom_id, assignment_id, student_id, external_id, version,
is_latest, content_fingerprint, content, attachments, status, source_state, late, submitted_at, source_updated_at,
created_at, updated_at)
VALUES (:id, :teacher_id, :classroom_id, :assignment_id, :student_id, :external_id, :version,
:is_latest, :content_fingerprint, :content, :attachments, :status, :source_state, :late, :submitted_at, :source_updated_at,
:created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, submission); err != nil {
		return fmt.Errorf("insert submission %s v%d: %w", submission.ExternalID, submission.Version, err)
	}
	return nil
}

// retireSubmission flips the previous latest row. Zero affected rows means a
// concurrent writer already moved the pair on.
func retireSubmission(ctx context.Context, tx sqlx.ExtContext, id string, version int, now time.Time) error {
	const query = `UPDATE submissions SET is_latest = FALSE, updated_at = $3 WHERE id = $1 AND version = $2 AND is_latest = TRUE`
	res, err := tx.ExecContext(ctx, query, id, version, now)
	if err != nil {
		return fmt.Errorf("retire submission %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retire submission %s: %w", id, err)
	}
	if affected != 1 {
		return fmt.Errorf("retire submission %s v%d: %w", id, version, appErrors.ErrVersionConflict)
	}
	return nil
}

// refreshSubmission updates source metadata of an unchanged latest row.
func refreshSubmission(ctx context.Context, tx sqlx.ExtContext, submission *models.Submission) error {
	const query = `UPDATE submissions SET status = :status, source_state = :source_state, late = :late,
submitted_at = :submitted_at, source_updated_at = :source_updated_at, updated_at = :updated_at
WHERE id = :id AND is_latest = TRUE AND content_fingerprint = :content_fingerprint`
	res, err := sqlx.NamedExecContext(ctx, tx, query, submission)
	if err != nil {
		return fmt.Errorf("refresh submission %s: %w", submission.ExternalID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("refresh submission %s: %w", submission.ExternalID, err)
	}
	if affected != 1 {
		return fmt.Errorf("refresh submission %s: %w", submission.ExternalID, appErrors.ErrVersionConflict)
	}
	return nil
}
