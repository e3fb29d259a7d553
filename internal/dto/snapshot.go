package dto

import "github.com/noah-isme/classroom-snapshot-api/internal/models"

// ValidationIssue points at a field of the snapshot document in dot notation.
type ValidationIssue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SnapshotStats counts snapshot contents without touching storage.
type SnapshotStats struct {
	Classrooms  int `json:"classrooms"`
	Students    int `json:"students"`
	Assignments int `json:"assignments"`
	Submissions int `json:"submissions"`
	Ungraded    int `json:"ungraded"`
}

// TeacherPreview echoes the snapshot owner.
type TeacherPreview struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ClassroomPreview summarises one classroom of the snapshot.
type ClassroomPreview struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Students    int    `json:"students"`
	Assignments int    `json:"assignments"`
	Submissions int    `json:"submissions"`
	Ungraded    int    `json:"ungraded"`
}

// SnapshotPreview is the human-oriented overview shown before importing.
type SnapshotPreview struct {
	Teacher    TeacherPreview     `json:"teacher"`
	Classrooms []ClassroomPreview `json:"classrooms"`
}

// ValidationResult is returned by POST /snapshots/validate.
type ValidationResult struct {
	IsValid bool              `json:"isValid"`
	Stats   SnapshotStats     `json:"stats"`
	Preview SnapshotPreview   `json:"preview"`
	Issues  []ValidationIssue `json:"issues,omitempty"`
}

// ClassroomRef names a classroom in diff output.
type ClassroomRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ClassroomCountChange reports a classroom whose denormalized counts would move.
type ClassroomCountChange struct {
	ID     string                 `json:"id"`
	Name   string                 `json:"name"`
	Before models.ClassroomCounts `json:"before"`
	After  models.ClassroomCounts `json:"after"`
}

// DiffNew lists what an import would create.
type DiffNew struct {
	Classrooms  []ClassroomRef `json:"classrooms"`
	Assignments int            `json:"assignments"`
	Enrollments int            `json:"enrollments"`
	Submissions int            `json:"submissions"`
	Grades      int            `json:"grades"`
}

// DiffChanges lists deltas against existing state.
type DiffChanges struct {
	Classrooms           []ClassroomCountChange `json:"classrooms"`
	AssignmentsUpdated   int                    `json:"assignmentsUpdated"`
	SubmissionsVersioned int                    `json:"submissionsVersioned"`
	SubmissionsUnchanged int                    `json:"submissionsUnchanged"`
	GradesPreserved      int                    `json:"gradesPreserved"`
	GradesOrphaned       int                    `json:"gradesOrphaned"`
	EnrollmentsArchived  int                    `json:"enrollmentsArchived"`
}

// DiffResult is returned by POST /snapshots/diff. Stats uses the same shape an
// import of the same snapshot against the same state would report.
type DiffResult struct {
	IsFirstImport bool                    `json:"isFirstImport"`
	Existing      *models.ExistingSummary `json:"existing,omitempty"`
	New           *DiffNew                `json:"new,omitempty"`
	Changes       *DiffChanges            `json:"changes,omitempty"`
	Stats         models.ImportStats      `json:"stats"`
	Skipped       []models.SkippedEntity  `json:"skipped,omitempty"`
}

// ImportResult is returned by POST /snapshots/import. Stats counts committed
// classrooms only.
type ImportResult struct {
	SnapshotID       string                    `json:"snapshotId"`
	Status           models.ImportStatus       `json:"status"`
	IsFirstImport    bool                      `json:"isFirstImport"`
	Stats            models.ImportStats        `json:"stats"`
	ProcessingTimeMs int64                     `json:"processingTime"`
	Summary          string                    `json:"summary"`
	Failures         []models.ClassroomFailure `json:"failures,omitempty"`
	Skipped          []models.SkippedEntity    `json:"skipped,omitempty"`
}

// HistoryEntry is one row of GET /snapshots/history.
type HistoryEntry struct {
	ID        string              `json:"id"`
	Timestamp string              `json:"timestamp"`
	Status    models.ImportStatus `json:"status"`
	Stats     models.ImportStats  `json:"stats"`
}
