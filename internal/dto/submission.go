package dto

import "github.com/noah-isme/classroom-snapshot-api/internal/models"

// SubmissionHistory is every stored version of one (assignment, student) pair,
// newest first.
type SubmissionHistory struct {
	AssignmentID string                     `json:"assignmentId"`
	StudentID    string                     `json:"studentId"`
	Versions     []models.SubmissionVersion `json:"versions"`
}
