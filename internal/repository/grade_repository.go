package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

// ErrSubmissionNotLatest is returned when a grade targets a superseded version.
var ErrSubmissionNotLatest = errors.New("submission is not the latest version")

const gradeColumns = `g.id, g.submission_id, g.teacher_id, g.score, g.max_score, g.feedback, g.graded_by, g.graded_at,
g.version, g.is_latest, g.created_at, g.updated_at`

// GradeRepository persists grades. A grade stays attached to the submission
// version it was given for.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListLatestByTeacher returns grades attached to latest submission versions.
func (r *GradeRepository) ListLatestByTeacher(ctx context.Context, teacherID string) ([]models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades g JOIN submissions s ON s.id = g.submission_id
WHERE s.teacher_id = $1 AND s.is_latest = TRUE`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, teacherID); err != nil {
		return nil, fmt.Errorf("list latest grades: %w", err)
	}
	return grades, nil
}

// FindBySubmission returns the grade of one submission version.
func (r *GradeRepository) FindBySubmission(ctx context.Context, teacherID, submissionID string) (*models.Grade, error) {
	query := `SELECT ` + gradeColumns + ` FROM grades g WHERE g.submission_id = $1 AND g.teacher_id = $2`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, submissionID, teacherID); err != nil {
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// ListBySubmissionIDs returns grades keyed by submission id.
func (r *GradeRepository) ListBySubmissionIDs(ctx context.Context, teacherID string, submissionIDs []string) (map[string]models.Grade, error) {
	result := make(map[string]models.Grade, len(submissionIDs))
	if len(submissionIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT `+gradeColumns+` FROM grades g WHERE g.teacher_id = ? AND g.submission_id IN (?)`, teacherID, submissionIDs)
	if err != nil {
		return nil, fmt.Errorf("build grade lookup: %w", err)
	}
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list grades by submission: %w", err)
	}
	for _, g := range grades {
		result[g.SubmissionID] = g
	}
	return result, nil
}

// RecordLatest upserts a grade on a submission that must still be the latest
// version, and marks the submission graded.
func (r *GradeRepository) RecordLatest(ctx context.Context, grade *models.Grade) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current struct {
		Version  int  `db:"version"`
		IsLatest bool `db:"is_latest"`
	}
	const lockQuery = `SELECT version, is_latest FROM submissions WHERE id = $1 AND teacher_id = $2 FOR UPDATE`
	if err := tx.GetContext(ctx, &current, lockQuery, grade.SubmissionID, grade.TeacherID); err != nil {
		return fmt.Errorf("lock submission: %w", err)
	}
	if !current.IsLatest {
		return ErrSubmissionNotLatest
	}

	now := time.Now().UTC()
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.CreatedAt.IsZero() {
		grade.CreatedAt = now
	}
	grade.UpdatedAt = now
	grade.Version = current.Version
	grade.IsLatest = true

	const upsert = `INSERT INTO grades (id, submission_id, teacher_id, score, max_score, feedback, graded_by, graded_at,
version, is_latest, created_at, updated_at)
VALUES (:id, :submission_id, :teacher_id, :score, :max_score, :feedback, :graded_by, :graded_at,
:version, :is_latest, :created_at, :updated_at)
ON CONFLICT (submission_id) DO UPDATE SET score = EXCLUDED.score, max_score = EXCLUDED.max_score,
feedback = EXCLUDED.feedback, graded_by = EXCLUDED.graded_by, graded_at = EXCLUDED.graded_at, updated_at = EXCLUDED.updated_at
RETURNING id, created_at`
	rows, err := sqlx.NamedQueryContext(ctx, tx, upsert, grade)
	if err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	if rows.Next() {
		if err := rows.Scan(&grade.ID, &grade.CreatedAt); err != nil {
			rows.Close() //nolint:errcheck
			return fmt.Errorf("scan grade: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return fmt.Errorf("read grade: %w", err)
	}
	rows.Close() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `UPDATE submissions SET status = 'graded', updated_at = $2 WHERE id = $1`, grade.SubmissionID, now); err != nil {
		return fmt.Errorf("mark submission graded: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade: %w", err)
	}
	return nil
}

func insertGrade(ctx context.Context, tx sqlx.ExtContext, grade *models.Grade) error {
	const query = `INSERT INTO grades (id, submission_id, teacher_id, score, max_score, feedback, graded_by, graded_at,
version, is_latest, created_at, updated_at)
VALUES (:id, :submission_id, :teacher_id, :score, :max_score, :feedback, :graded_by, :graded_at,
:version, :is_latest, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, grade); err != nil {
		return fmt.Errorf("insert grade for %s: %w", grade.SubmissionID, err)
	}
	return nil
}

// retireGrade keeps the grade on its submission but drops the latest flag.
func retireGrade(ctx context.Context, tx sqlx.ExtContext, submissionID string, now time.Time) error {
	const query = `UPDATE grades SET is_latest = FALSE, updated_at = $2 WHERE submission_id = $1`
	if _, err := tx.ExecContext(ctx, query, submissionID, now); err != nil {
		return fmt.Errorf("retire grade of %s: %w", submissionID, err)
	}
	return nil
}
