package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ImportStatus is the terminal outcome of an import attempt.
type ImportStatus string

const (
	ImportStatusSuccess ImportStatus = "success"
	ImportStatusPartial ImportStatus = "partial"
	ImportStatusFailure ImportStatus = "failure"
)

// ImportStats is the per-entity change breakdown of an import or diff.
type ImportStats struct {
	ClassroomsCreated    int `json:"classroomsCreated"`
	ClassroomsUpdated    int `json:"classroomsUpdated"`
	AssignmentsCreated   int `json:"assignmentsCreated"`
	AssignmentsUpdated   int `json:"assignmentsUpdated"`
	SubmissionsCreated   int `json:"submissionsCreated"`
	SubmissionsVersioned int `json:"submissionsVersioned"`
	SubmissionsUnchanged int `json:"submissionsUnchanged"`
	GradesPreserved      int `json:"gradesPreserved"`
	GradesCreated        int `json:"gradesCreated"`
	GradesOrphaned       int `json:"gradesOrphaned"`
	EnrollmentsCreated   int `json:"enrollmentsCreated"`
	EnrollmentsUpdated   int `json:"enrollmentsUpdated"`
	EnrollmentsArchived  int `json:"enrollmentsArchived"`
	Skipped              int `json:"skipped"`
}

// Add accumulates other into s.
func (s *ImportStats) Add(other ImportStats) {
	s.ClassroomsCreated += other.ClassroomsCreated
	s.ClassroomsUpdated += other.ClassroomsUpdated
	s.AssignmentsCreated += other.AssignmentsCreated
	s.AssignmentsUpdated += other.AssignmentsUpdated
	s.SubmissionsCreated += other.SubmissionsCreated
	s.SubmissionsVersioned += other.SubmissionsVersioned
	s.SubmissionsUnchanged += other.SubmissionsUnchanged
	s.GradesPreserved += other.GradesPreserved
	s.GradesCreated += other.GradesCreated
	s.GradesOrphaned += other.GradesOrphaned
	s.EnrollmentsCreated += other.EnrollmentsCreated
	s.EnrollmentsUpdated += other.EnrollmentsUpdated
	s.EnrollmentsArchived += other.EnrollmentsArchived
	s.Skipped += other.Skipped
}

// Value marshals stats to JSON for persistence.
func (s ImportStats) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal import stats: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the stats struct.
func (s *ImportStats) Scan(value interface{}) error {
	data, err := jsonBytes(value, "ImportStats")
	if err != nil {
		return err
	}
	*s = ImportStats{}
	if data == nil {
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal import stats: %w", err)
	}
	return nil
}

// ClassroomFailure describes a classroom batch that did not commit.
type ClassroomFailure struct {
	ClassroomID string `json:"classroomId"`
	Name        string `json:"name,omitempty"`
	Error       string `json:"error"`
}

// FailureList persists as JSONB.
type FailureList []ClassroomFailure

// Value marshals failures to JSON for persistence.
func (l FailureList) Value() (driver.Value, error) {
	if l == nil {
		l = FailureList{}
	}
	data, err := json.Marshal([]ClassroomFailure(l))
	if err != nil {
		return nil, fmt.Errorf("marshal import failures: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the failure list.
func (l *FailureList) Scan(value interface{}) error {
	data, err := jsonBytes(value, "FailureList")
	if err != nil || data == nil {
		*l = nil
		return err
	}
	var out []ClassroomFailure
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal import failures: %w", err)
	}
	*l = out
	return nil
}

// ImportRecord is the append-only audit entry of one import attempt. Stats
// sums every planned classroom; CommittedStats only the ones that committed.
type ImportRecord struct {
	ID               string       `db:"id" json:"id"`
	TeacherID        string       `db:"teacher_id" json:"teacherId"`
	Status           ImportStatus `db:"status" json:"status"`
	FirstImport      bool         `db:"first_import" json:"firstImport"`
	Source           string       `db:"source" json:"source"`
	SchemaVersion    string       `db:"schema_version" json:"schemaVersion"`
	FetchedAt        *time.Time   `db:"fetched_at" json:"fetchedAt,omitempty"`
	ExpiresAt        *time.Time   `db:"expires_at" json:"expiresAt,omitempty"`
	Stats            ImportStats  `db:"stats" json:"stats"`
	CommittedStats   ImportStats  `db:"committed_stats" json:"committedStats"`
	Failures         FailureList  `db:"failures" json:"failures,omitempty"`
	ClassroomCount   int          `db:"classroom_count" json:"classroomCount"`
	ProcessingTimeMs int64        `db:"processing_time_ms" json:"processingTimeMs"`
	SnapshotBytes    int64        `db:"snapshot_bytes" json:"snapshotBytes"`
	ArchivePath      *string      `db:"archive_path" json:"archivePath,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"timestamp"`
}

// HistoryFilter narrows history listings.
type HistoryFilter struct {
	TeacherID string
	Status    ImportStatus
	Limit     int
	Offset    int
}
