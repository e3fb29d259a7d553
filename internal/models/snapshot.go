package models

import (
	"strings"
	"time"

	"github.com/noah-isme/classroom-snapshot-api/pkg/fingerprint"
)

// Snapshot is the typed form of an externally produced classroom export.
// Date-like fields stay strings so malformed values surface as validation
// issues instead of decode failures.
type Snapshot struct {
	Teacher    SnapshotTeacher     `json:"teacher"`
	Classrooms []SnapshotClassroom `json:"classrooms" validate:"dive"`
	Metadata   SnapshotMetadata    `json:"metadata"`
}

type SnapshotTeacher struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

type SnapshotMetadata struct {
	FetchedAt string `json:"fetchedAt" validate:"required,snapshotdate"`
	ExpiresAt string `json:"expiresAt,omitempty" validate:"omitempty,snapshotdate"`
	Source    string `json:"source" validate:"required"`
	Version   string `json:"version" validate:"required"`
}

type SnapshotClassroom struct {
	ID                  string               `json:"id" validate:"required"`
	Name                string               `json:"name" validate:"required"`
	Section             string               `json:"section,omitempty"`
	EnrollmentCode      string               `json:"enrollmentCode,omitempty"`
	CourseState         string               `json:"courseState,omitempty" validate:"omitempty,oneof=ACTIVE ARCHIVED PROVISIONED DECLINED SUSPENDED"`
	AlternateLink       string               `json:"alternateLink,omitempty" validate:"omitempty,url"`
	CourseGroupEmail    string               `json:"courseGroupEmail,omitempty" validate:"omitempty,email"`
	StudentCount        int                  `json:"studentCount" validate:"min=0"`
	AssignmentCount     int                  `json:"assignmentCount" validate:"min=0"`
	UngradedSubmissions int                  `json:"ungradedSubmissions" validate:"min=0"`
	Assignments         []SnapshotAssignment `json:"assignments" validate:"dive"`
	Students            []SnapshotStudent    `json:"students" validate:"dive"`
	Submissions         []SnapshotSubmission `json:"submissions" validate:"dive"`
}

type SnapshotAssignment struct {
	ID              string            `json:"id" validate:"required"`
	Title           string            `json:"title" validate:"required"`
	Description     string            `json:"description,omitempty"`
	WorkType        string            `json:"workType,omitempty" validate:"omitempty,oneof=ASSIGNMENT SHORT_ANSWER_QUESTION MULTIPLE_CHOICE_QUESTION QUIZ MATERIAL"`
	GradingApproach string            `json:"gradingApproach,omitempty" validate:"omitempty,oneof=points rubric pass_fail ungraded"`
	DueDate         string            `json:"dueDate,omitempty" validate:"omitempty,snapshotdate"`
	MaxScore        float64           `json:"maxScore" validate:"min=0"`
	State           string            `json:"state,omitempty" validate:"omitempty,oneof=PUBLISHED DRAFT"`
	AlternateLink   string            `json:"alternateLink,omitempty" validate:"omitempty,url"`
	QuizData        *SnapshotQuizData `json:"quizData,omitempty"`
}

type SnapshotQuizData struct {
	FormID         string  `json:"formId" validate:"required"`
	TotalQuestions int     `json:"totalQuestions" validate:"min=0"`
	TotalPoints    float64 `json:"totalPoints" validate:"min=0"`
}

type SnapshotStudent struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Name  string `json:"name" validate:"required"`
}

type SnapshotSubmission struct {
	ID           string               `json:"id" validate:"required"`
	AssignmentID string               `json:"assignmentId" validate:"required"`
	StudentID    string               `json:"studentId" validate:"required"`
	StudentEmail string               `json:"studentEmail,omitempty" validate:"omitempty,email"`
	StudentName  string               `json:"studentName,omitempty"`
	State        string               `json:"state,omitempty" validate:"omitempty,oneof=NEW CREATED TURNED_IN RETURNED RECLAIMED_BY_STUDENT"`
	Content      string               `json:"content,omitempty"`
	Attachments  []SnapshotAttachment `json:"attachments,omitempty" validate:"dive"`
	SubmittedAt  string               `json:"submittedAt,omitempty" validate:"omitempty,snapshotdate"`
	UpdatedAt    string               `json:"updatedAt,omitempty" validate:"omitempty,snapshotdate"`
	Late         bool                 `json:"late,omitempty"`
	Grade        *SnapshotGrade       `json:"grade,omitempty"`
}

type SnapshotAttachment struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty" validate:"omitempty,url"`
	Content string `json:"content,omitempty"`
}

type SnapshotGrade struct {
	Score    float64 `json:"score" validate:"min=0"`
	MaxScore float64 `json:"maxScore" validate:"min=0"`
	Feedback string  `json:"feedback,omitempty"`
	GradedAt string  `json:"gradedAt,omitempty" validate:"omitempty,snapshotdate"`
	GradedBy string  `json:"gradedBy,omitempty" validate:"omitempty,oneof=manual ai auto"`
}

// Fingerprint digests the submission content and attachments.
func (s SnapshotSubmission) Fingerprint() string {
	attachments := make([]fingerprint.Attachment, 0, len(s.Attachments))
	for _, a := range s.Attachments {
		attachments = append(attachments, fingerprint.Attachment{Title: a.Title, URL: a.URL, Content: a.Content})
	}
	return fingerprint.Submission(s.Content, attachments)
}

// TurnedIn reports whether the student handed the work in.
func (s SnapshotSubmission) TurnedIn() bool {
	switch s.State {
	case "TURNED_IN", "RETURNED":
		return true
	case "":
		return s.SubmittedAt != ""
	default:
		return false
	}
}

// Ungraded is a turned-in submission without a grade.
func (s SnapshotSubmission) Ungraded() bool {
	return s.TurnedIn() && s.Grade == nil
}

// ParseSnapshotTime accepts RFC 3339 timestamps, with or without fractional seconds.
func ParseSnapshotTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
}

// OptionalSnapshotTime returns nil for empty or unparseable values.
func OptionalSnapshotTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := ParseSnapshotTime(raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
