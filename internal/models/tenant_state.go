package models

import "time"

// TenantState is everything a plan needs about one teacher's persisted data.
// It is loaded per import and discarded afterwards.
type TenantState struct {
	TeacherID   string
	Classrooms  []Classroom
	Assignments []Assignment
	Enrollments []Enrollment
	// Submissions holds latest versions only.
	Submissions []Submission
	// Grades holds grades attached to the latest submissions.
	Grades     []Grade
	LastImport *ImportRecord
}

// ExistingSummary describes persisted state ahead of a subsequent import.
type ExistingSummary struct {
	Classrooms        int        `json:"classrooms"`
	Assignments       int        `json:"assignments"`
	ActiveEnrollments int        `json:"activeEnrollments"`
	Submissions       int        `json:"submissions"`
	Graded            int        `json:"graded"`
	LastImportID      string     `json:"lastImportId,omitempty"`
	LastImportAt      *time.Time `json:"lastImportAt,omitempty"`
}

// ImportContext is either FirstImport or SubsequentImport.
type ImportContext interface {
	isImportContext()
	FirstImport() bool
}

// FirstImportContext applies when the tenant has no persisted classrooms.
type FirstImportContext struct{}

func (FirstImportContext) isImportContext() {}

// FirstImport implements ImportContext.
func (FirstImportContext) FirstImport() bool { return true }

// SubsequentImportContext carries a summary of what already exists.
type SubsequentImportContext struct {
	Existing ExistingSummary
}

func (SubsequentImportContext) isImportContext() {}

// FirstImport implements ImportContext.
func (SubsequentImportContext) FirstImport() bool { return false }

// NewImportContext decides the import variant once from loaded state.
func NewImportContext(state *TenantState) ImportContext {
	if state == nil || len(state.Classrooms) == 0 {
		return FirstImportContext{}
	}
	summary := ExistingSummary{
		Classrooms:  len(state.Classrooms),
		Assignments: len(state.Assignments),
		Submissions: len(state.Submissions),
		Graded:      len(state.Grades),
	}
	for _, e := range state.Enrollments {
		if e.Status == EnrollmentStatusActive {
			summary.ActiveEnrollments++
		}
	}
	if state.LastImport != nil {
		summary.LastImportID = state.LastImport.ID
		at := state.LastImport.CreatedAt
		summary.LastImportAt = &at
	}
	return SubsequentImportContext{Existing: summary}
}
