package models

// WriteOp is the persistence action for a planned row.
type WriteOp string

const (
	WriteOpCreate  WriteOp = "create"
	WriteOpUpdate  WriteOp = "update"
	WriteOpArchive WriteOp = "archive"
)

// SubmissionAction is the versioning decision for an incoming submission.
type SubmissionAction string

const (
	SubmissionActionCreate     SubmissionAction = "create"
	SubmissionActionNewVersion SubmissionAction = "new_version"
	SubmissionActionUnchanged  SubmissionAction = "unchanged"
)

// WritePlan is the complete in-memory set of writes for one import.
type WritePlan struct {
	TeacherID  string
	Context    ImportContext
	Classrooms []ClassroomPlan
	// SkippedClassrooms never become a batch.
	SkippedClassrooms []SkippedEntity
}

// Stats sums every classroom plan.
func (p *WritePlan) Stats() ImportStats {
	total := ImportStats{Skipped: len(p.SkippedClassrooms)}
	for _, c := range p.Classrooms {
		total.Add(c.Stats)
	}
	return total
}

// Skipped lists every entity left out of the plan.
func (p *WritePlan) Skipped() []SkippedEntity {
	out := append([]SkippedEntity(nil), p.SkippedClassrooms...)
	for _, c := range p.Classrooms {
		out = append(out, c.Skipped...)
	}
	return out
}

// ClassroomPlan is one atomic batch: the classroom row and all child writes in
// dependency order.
type ClassroomPlan struct {
	Op            WriteOp
	Classroom     Classroom
	PreviousCount *ClassroomCounts
	Assignments   []AssignmentWrite
	Enrollments   []EnrollmentWrite
	Submissions   []SubmissionWrite
	Grades        []GradeWrite
	Stats         ImportStats
	Skipped       []SkippedEntity
}

// CountsChanged reports whether the denormalized counters move.
func (p ClassroomPlan) CountsChanged() bool {
	return p.PreviousCount == nil || *p.PreviousCount != p.Classroom.Counts()
}

type AssignmentWrite struct {
	Op         WriteOp
	Assignment Assignment
}

type EnrollmentWrite struct {
	Op         WriteOp
	Enrollment Enrollment
}

// SubmissionWrite carries the row to insert (create, new_version) or refresh
// (unchanged). RetireID is the previous latest row for new_version.
type SubmissionWrite struct {
	Action          SubmissionAction
	Submission      Submission
	RetireID        string
	PreviousVersion int
	PreserveGrade   bool
	HadGrade        bool
}

// NeedsGrading is true for fresh, turned-in content that has no grade attached.
func (w SubmissionWrite) NeedsGrading(grades []GradeWrite) bool {
	if w.Action == SubmissionActionUnchanged || w.Submission.Status != SubmissionStatusSubmitted {
		return false
	}
	for _, g := range grades {
		if g.Grade.SubmissionID == w.Submission.ID {
			return false
		}
	}
	return true
}

type GradeWrite struct {
	Op    WriteOp
	Grade Grade
}

// SkippedEntity is an entity excluded from the plan because its identity was ambiguous.
type SkippedEntity struct {
	Kind        string `json:"kind"`
	ClassroomID string `json:"classroomId"`
	ExternalID  string `json:"externalId"`
	Reason      string `json:"reason"`
}
