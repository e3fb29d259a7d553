package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionStatus is the grading lifecycle of a submission version.
type SubmissionStatus string

const (
	SubmissionStatusPending   SubmissionStatus = "pending"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
)

// Submission is one version of a student's work on an assignment. Exactly one
// row per (assignment, student) pair carries IsLatest.
type Submission struct {
	ID                 string           `db:"id" json:"id"`
	TeacherID          string           `db:"teacher_id" json:"teacherId"`
	ClassroomID        string           `db:"classroom_id" json:"classroomId"`
	AssignmentID       string           `db:"assignment_id" json:"assignmentId"`
	StudentID          string           `db:"student_id" json:"studentId"`
	ExternalID         string           `db:"external_id" json:"externalId"`
	Version            int              `db:"version" json:"version"`
	IsLatest           bool             `db:"is_latest" json:"isLatest"`
	ContentFingerprint string           `db:"content_fingerprint" json:"contentFingerprint"`
	Content            string           `db:"content" json:"content,omitempty"`
	Attachments        AttachmentList   `db:"attachments" json:"attachments,omitempty"`
	Status             SubmissionStatus `db:"status" json:"status"`
	SourceState        string           `db:"source_state" json:"sourceState,omitempty"`
	Late               bool             `db:"late" json:"late"`
	SubmittedAt        *time.Time       `db:"submitted_at" json:"submittedAt,omitempty"`
	SourceUpdatedAt    *time.Time       `db:"source_updated_at" json:"sourceUpdatedAt,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updatedAt"`
}

// MatchKey implements Matchable.
func (s Submission) MatchKey() string { return s.ExternalID }

// PairKey identifies the (assignment, student) scope a submission belongs to.
func (s Submission) PairKey() string { return PairKey(s.AssignmentID, s.StudentID) }

// PairKey builds the submission scope key.
func PairKey(assignmentID, studentID string) string {
	return assignmentID + "/" + studentID
}

// Attachment is a stored submission attachment.
type Attachment struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
}

// AttachmentList persists as JSONB.
type AttachmentList []Attachment

// Value marshals attachments to JSON for persistence.
func (l AttachmentList) Value() (driver.Value, error) {
	if l == nil {
		l = AttachmentList{}
	}
	data, err := json.Marshal([]Attachment(l))
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the attachment list.
func (l *AttachmentList) Scan(value interface{}) error {
	data, err := jsonBytes(value, "AttachmentList")
	if err != nil || data == nil {
		*l = nil
		return err
	}
	var out []Attachment
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("unmarshal attachments: %w", err)
	}
	*l = out
	return nil
}

// GradedBy records who produced a grade.
type GradedBy string

const (
	GradedByManual GradedBy = "manual"
	GradedByAI     GradedBy = "ai"
	GradedByAuto   GradedBy = "auto"
)

// Grade belongs to exactly one submission version and mirrors its version flags.
type Grade struct {
	ID           string     `db:"id" json:"id"`
	SubmissionID string     `db:"submission_id" json:"submissionId"`
	TeacherID    string     `db:"teacher_id" json:"teacherId"`
	Score        float64    `db:"score" json:"score"`
	MaxScore     float64    `db:"max_score" json:"maxScore"`
	Feedback     string     `db:"feedback" json:"feedback,omitempty"`
	GradedBy     GradedBy   `db:"graded_by" json:"gradedBy"`
	GradedAt     *time.Time `db:"graded_at" json:"gradedAt,omitempty"`
	Version      int        `db:"version" json:"version"`
	IsLatest     bool       `db:"is_latest" json:"isLatest"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// SubmissionVersion pairs a submission row with its grade for audit views.
type SubmissionVersion struct {
	Submission
	Grade *Grade `json:"grade,omitempty"`
}

// RecordGradeRequest is a teacher- or grader-authored grade for the latest version.
type RecordGradeRequest struct {
	Score    float64  `json:"score" validate:"gte=0"`
	MaxScore float64  `json:"maxScore" validate:"gte=0"`
	Feedback string   `json:"feedback" validate:"max=10000"`
	GradedBy GradedBy `json:"gradedBy" validate:"omitempty,oneof=manual ai auto"`
}

func jsonBytes(value interface{}, name string) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T for %s", value, name)
	}
}
