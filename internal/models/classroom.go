package models

import "time"

// Classroom is a teacher-owned course keyed by its external id.
type Classroom struct {
	ID              string    `db:"id" json:"id"`
	TeacherID       string    `db:"teacher_id" json:"teacherId"`
	ExternalID      string    `db:"external_id" json:"externalId"`
	Name            string    `db:"name" json:"name"`
	Section         string    `db:"section" json:"section,omitempty"`
	EnrollmentCode  string    `db:"enrollment_code" json:"enrollmentCode,omitempty"`
	CourseState     string    `db:"course_state" json:"courseState,omitempty"`
	AlternateLink   string    `db:"alternate_link" json:"alternateLink,omitempty"`
	StudentCount    int       `db:"student_count" json:"studentCount"`
	AssignmentCount int       `db:"assignment_count" json:"assignmentCount"`
	SubmissionCount int       `db:"submission_count" json:"submissionCount"`
	UngradedCount   int       `db:"ungraded_count" json:"ungradedCount"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// ClassroomCounts is the denormalized counter block carried on a classroom.
type ClassroomCounts struct {
	Students    int `json:"students"`
	Assignments int `json:"assignments"`
	Submissions int `json:"submissions"`
	Ungraded    int `json:"ungraded"`
}

// Counts extracts the denormalized counters.
func (c Classroom) Counts() ClassroomCounts {
	return ClassroomCounts{
		Students:    c.StudentCount,
		Assignments: c.AssignmentCount,
		Submissions: c.SubmissionCount,
		Ungraded:    c.UngradedCount,
	}
}

// MatchKey implements Matchable.
func (c Classroom) MatchKey() string { return c.ExternalID }

// Assignment is coursework scoped to a classroom.
type Assignment struct {
	ID              string     `db:"id" json:"id"`
	TeacherID       string     `db:"teacher_id" json:"teacherId"`
	ClassroomID     string     `db:"classroom_id" json:"classroomId"`
	ExternalID      string     `db:"external_id" json:"externalId"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description,omitempty"`
	WorkType        string     `db:"work_type" json:"workType,omitempty"`
	GradingApproach string     `db:"grading_approach" json:"gradingApproach,omitempty"`
	DueDate         *time.Time `db:"due_date" json:"dueDate,omitempty"`
	MaxScore        float64    `db:"max_score" json:"maxScore"`
	State           string     `db:"state" json:"state,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// MatchKey implements Matchable.
func (a Assignment) MatchKey() string { return a.ExternalID }

// EnrollmentStatus captures whether a student still appears in the classroom.
type EnrollmentStatus string

const (
	EnrollmentStatusActive   EnrollmentStatus = "active"
	EnrollmentStatusArchived EnrollmentStatus = "archived"
)

// Enrollment binds a student (by external id, tenant scoped) to a classroom.
type Enrollment struct {
	ID              string           `db:"id" json:"id"`
	TeacherID       string           `db:"teacher_id" json:"teacherId"`
	ClassroomID     string           `db:"classroom_id" json:"classroomId"`
	StudentID       string           `db:"student_id" json:"studentId"`
	Email           string           `db:"email" json:"email,omitempty"`
	Name            string           `db:"name" json:"name"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	SubmissionCount int              `db:"submission_count" json:"submissionCount"`
	GradedCount     int              `db:"graded_count" json:"gradedCount"`
	ArchivedAt      *time.Time       `db:"archived_at" json:"archivedAt,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updatedAt"`
}

// MatchKey implements Matchable.
func (e Enrollment) MatchKey() string { return e.StudentID }
