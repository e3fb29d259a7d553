package service

import "github.com/noah-isme/classroom-snapshot-api/internal/models"

// VersionDecision is the versioner's verdict for one incoming submission.
type VersionDecision struct {
	Action        models.SubmissionAction
	Version       int
	PreserveGrade bool
}

// SubmissionVersioner decides between create, new version and unchanged from
// content fingerprints alone. Timestamps never influence the decision.
type SubmissionVersioner struct{}

// Resolve compares the incoming fingerprint with the latest stored version.
//
// A new version never inherits the previous grade: the old grade stays on the
// old row and the new row waits for a fresh grade.
func (SubmissionVersioner) Resolve(incomingFingerprint string, existingLatest *models.Submission) VersionDecision {
	if existingLatest == nil {
		return VersionDecision{Action: models.SubmissionActionCreate, Version: 1}
	}
	if existingLatest.ContentFingerprint == incomingFingerprint {
		return VersionDecision{Action: models.SubmissionActionUnchanged, Version: existingLatest.Version, PreserveGrade: true}
	}
	return VersionDecision{Action: models.SubmissionActionNewVersion, Version: existingLatest.Version + 1}
}
