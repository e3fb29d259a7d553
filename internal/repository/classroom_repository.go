package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

const classroomColumns = `id, teacher_id, external_id, name, section, enrollment_code, course_state, alternate_link,
student_count, assignment_count, submission_count, ungraded_count, created_at, updated_at`

// ClassroomRepository persists classrooms.
type ClassroomRepository struct {
	db *sqlx.DB
}

// NewClassroomRepository constructs the repository.
func NewClassroomRepository(db *sqlx.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// ListByTeacher returns every classroom owned by the teacher.
func (r *ClassroomRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms WHERE teacher_id = $1 ORDER BY created_at ASC`
	var classrooms []models.Classroom
	if err := r.db.SelectContext(ctx, &classrooms, query, teacherID); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classrooms, nil
}

func insertClassroom(ctx context.Context, tx sqlx.ExtContext, classroom *models.Classroom) error {
	const query = `INSERT INTO classrooms (id, teacher_id, external_id, name, section, enrollment_code, course_state, alternate_link,
student_count, assignment_count, submission_count, ungraded_count, created_at, updated_at)
VALUES (:id, :teacher_id, :external_id, :name, :section, :enrollment_code, :course_state, :alternate_link,
:student_count, :assignment_count, :submission_count, :ungraded_count, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, classroom); err != nil {
		return fmt.Errorf("insert classroom %s: %w", classroom.ExternalID, err)
	}
	return nil
}

func updateClassroom(ctx context.Context, tx sqlx.ExtContext, classroom *models.Classroom) error {
	const query = `UPDATE classrooms SET name = :name, section = :section, enrollment_code = :enrollment_code,
course_state = :course_state, alternate_link = :alternate_link, student_count = :student_count,
assignment_count = :assignment_count, submission_count = :submission_count, ungraded_count = :ungraded_count,
updated_at = :updated_at WHERE id = :id AND teacher_id = :teacher_id`
	res, err := sqlx.NamedExecContext(ctx, tx, query, classroom)
	if err != nil {
		return fmt.Errorf("update classroom %s: %w", classroom.ExternalID, err)
	}
	return expectOneRow(res, "update classroom "+classroom.ExternalID)
}
