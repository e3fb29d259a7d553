package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

// SnapshotStore loads tenant state for planning and applies classroom batches.
type SnapshotStore struct {
	db          *sqlx.DB
	classrooms  *ClassroomRepository
	assignments *AssignmentRepository
	enrollments *EnrollmentRepository
	submissions *SubmissionRepository
	grades      *GradeRepository
	history     *ImportHistoryRepository
}

// NewSnapshotStore wires the entity repositories over one database handle.
func NewSnapshotStore(db *sqlx.DB) *SnapshotStore {
	return &SnapshotStore{
		db:          db,
		classrooms:  NewClassroomRepository(db),
		assignments: NewAssignmentRepository(db),
		enrollments: NewEnrollmentRepository(db),
		submissions: NewSubmissionRepository(db),
		grades:      NewGradeRepository(db),
		history:     NewImportHistoryRepository(db),
	}
}

// LoadTenantState reads everything a plan needs for one teacher.
func (s *SnapshotStore) LoadTenantState(ctx context.Context, teacherID string) (*models.TenantState, error) {
	state := &models.TenantState{TeacherID: teacherID}
	var err error
	if state.Classrooms, err = s.classrooms.ListByTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	if state.Assignments, err = s.assignments.ListByTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	if state.Enrollments, err = s.enrollments.ListByTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	if state.Submissions, err = s.submissions.ListLatestByTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	if state.Grades, err = s.grades.ListLatestByTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	last, err := s.history.Latest(ctx, teacherID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	state.LastImport = last
	return state, nil
}

// ApplyClassroomPlan writes one classroom and all of its children in a single
// transaction: classroom, assignments, enrollments, submissions, grades.
func (s *SnapshotStore) ApplyClassroomPlan(ctx context.Context, plan *models.ClassroomPlan) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin classroom batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if plan.Op == models.WriteOpCreate {
		err = insertClassroom(ctx, tx, &plan.Classroom)
	} else {
		err = updateClassroom(ctx, tx, &plan.Classroom)
	}
	if err != nil {
		return err
	}

	for i := range plan.Assignments {
		w := &plan.Assignments[i]
		if w.Op == models.WriteOpCreate {
			err = insertAssignment(ctx, tx, &w.Assignment)
		} else {
			err = updateAssignment(ctx, tx, &w.Assignment)
		}
		if err != nil {
			return err
		}
	}

	for i := range plan.Enrollments {
		w := &plan.Enrollments[i]
		switch w.Op {
		case models.WriteOpCreate:
			err = insertEnrollment(ctx, tx, &w.Enrollment)
		case models.WriteOpArchive:
			err = updateEnrollment(ctx, tx, &w.Enrollment, true)
		default:
			err = updateEnrollment(ctx, tx, &w.Enrollment, false)
		}
		if err != nil {
			return err
		}
	}

	for i := range plan.Submissions {
		w := &plan.Submissions[i]
		switch w.Action {
		case models.SubmissionActionUnchanged:
			err = refreshSubmission(ctx, tx, &w.Submission)
		case models.SubmissionActionNewVersion:
			err = retireSubmission(ctx, tx, w.RetireID, w.PreviousVersion, w.Submission.UpdatedAt)
			if err == nil && w.HadGrade {
				err = retireGrade(ctx, tx, w.RetireID, w.Submission.UpdatedAt)
			}
			if err == nil {
				err = insertSubmission(ctx, tx, &w.Submission)
			}
		default:
			err = insertSubmission(ctx, tx, &w.Submission)
		}
		if err != nil {
			return err
		}
	}

	for i := range plan.Grades {
		if err := insertGrade(ctx, tx, &plan.Grades[i].Grade); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit classroom batch %s: %w", plan.Classroom.ExternalID, err)
	}
	return nil
}

func expectOneRow(res sql.Result, action string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s: %w", action, appErrors.Clone(appErrors.ErrConflict, "row changed or disappeared during import"))
	}
	return nil
}
