package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

const enrollmentColumns = `id, teacher_id, classroom_id, student_id, email, name, status, submission_count, graded_count,
archived_at, created_at, updated_at`

// EnrollmentRepository persists student enrollments. Rows are archived, never deleted.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListByTeacher returns active and archived enrollments of the teacher.
func (r *EnrollmentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE teacher_id = $1 ORDER BY classroom_id, created_at`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListByClassroom returns the enrollments of one classroom.
func (r *EnrollmentRepository) ListByClassroom(ctx context.Context, teacherID, classroomID string) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE teacher_id = $1 AND classroom_id = $2 ORDER BY name`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, teacherID, classroomID); err != nil {
		return nil, fmt.Errorf("list classroom enrollments: %w", err)
	}
	return enrollments, nil
}

func insertEnrollment(ctx context.Context, tx sqlx.ExtContext, enrollment *models.Enrollment) error {
	const query = `INSERT INTO enrollments (id, teacher_id, classroom_id, student_id, email, name, status,
submission_count, graded_count, archived_at, created_at, updated_at)
VALUES (:id, :teacher_id, :classroom_id, :student_id, :email, :name, :status,
:submission_count, :graded_count, :archived_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment %s: %w", enrollment.StudentID, err)
	}
	return nil
}

// updateEnrollment covers both refresh and archive; archive only touches status columns.
func updateEnrollment(ctx context.Context, tx sqlx.ExtContext, enrollment *models.Enrollment, archive bool) error {
	query := `UPDATE enrollments SET email = :email, name = :name, status = :status, submission_count = :submission_count,
graded_count = :graded_count, archived_at = :archived_at, updated_at = :updated_at WHERE id = :id AND classroom_id = :classroom_id`
	if archive {
		query = `UPDATE enrollments SET status = :status, archived_at = :archived_at, updated_at = :updated_at
WHERE id = :id AND classroom_id = :classroom_id AND status = 'active'`
	}
	res, err := sqlx.NamedExecContext(ctx, tx, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment %s: %w", enrollment.StudentID, err)
	}
	return expectOneRow(res, "update enrollment "+enrollment.StudentID)
}
