package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

const assignmentColumns = `id, teacher_id, classroom_id, external_id, title, description, work_type, grading_approach,
due_date, max_score, state, created_at, updated_at`

// AssignmentRepository persists classroom coursework.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByTeacher returns every assignment across the teacher's classrooms.
func (r *AssignmentRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE teacher_id = $1 ORDER BY classroom_id, created_at`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, teacherID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

func insertAssignment(ctx context.Context, tx sqlx.ExtContext, assignment *models.Assignment) error {
	const query = `INSERT INTO assignments (id, teacher_id, classroom_id, external_id, title, description, work_type,
grading_approach, due_date, max_score, state, created_at, updated_at)
VALUES (:id, :teacher_id, :classroom_id, :external_id, :title, :description, :work_type,
:grading_approach, :due_date, :max_score, :state, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, tx, query, assignment); err != nil {
		return fmt.Errorf("insert assignment %s: %w", assignment.ExternalID, err)
	}
	return nil
}

func updateAssignment(ctx context.Context, tx sqlx.ExtContext, assignment *models.Assignment) error {
	const query = `UPDATE assignments SET title = :title, description = :description, work_type = :work_type,
grading_approach = :grading_approach, due_date = :due_date, max_score = :max_score, state = :state,
updated_at = :updated_at WHERE id = :id AND classroom_id = :classroom_id`
	res, err := sqlx.NamedExecContext(ctx, tx, query, assignment)
	if err != nil {
		return fmt.Errorf("update assignment %s: %w", assignment.ExternalID, err)
	}
	return expectOneRow(res, "update assignment "+assignment.ExternalID)
}
