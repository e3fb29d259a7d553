package service

import (
	"fmt"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

// Matchable exposes the stable external identifier an entity is matched by.
type Matchable interface {
	MatchKey() string
}

// MatchResult is the outcome of matching one incoming entity. Existing is nil
// for new entities; Ambiguous entities must be skipped, never guessed at.
type MatchResult[T Matchable] struct {
	Existing  *T
	Ambiguous bool
	Reason    string
}

// Match finds the candidate sharing externalID.
func Match[T Matchable](externalID string, candidates []T) MatchResult[T] {
	var found []int
	for i := range candidates {
		if candidates[i].MatchKey() == externalID {
			found = append(found, i)
		}
	}
	switch len(found) {
	case 0:
		return MatchResult[T]{}
	case 1:
		existing := candidates[found[0]]
		return MatchResult[T]{Existing: &existing}
	default:
		return MatchResult[T]{Ambiguous: true, Reason: fmt.Sprintf("%d persisted rows share external id %q", len(found), externalID)}
	}
}

// ScopedIndex groups candidates by scope so a match never crosses scopes.
type ScopedIndex[T Matchable] struct {
	byScope map[string][]T
}

// NewScopedIndex indexes items under scope(item).
func NewScopedIndex[T Matchable](items []T, scope func(T) string) *ScopedIndex[T] {
	ix := &ScopedIndex[T]{byScope: make(map[string][]T)}
	for _, item := range items {
		key := scope(item)
		ix.byScope[key] = append(ix.byScope[key], item)
	}
	return ix
}

// Match looks up externalID within one scope.
func (ix *ScopedIndex[T]) Match(scope, externalID string) MatchResult[T] {
	return Match(externalID, ix.byScope[scope])
}

// InScope returns every candidate in the scope.
func (ix *ScopedIndex[T]) InScope(scope string) []T {
	return ix.byScope[scope]
}

// EntityMatcher resolves incoming snapshot entities against one tenant's
// persisted state. Classrooms are scoped to the tenant, assignments and
// enrollments to their classroom, submissions to (assignment, student).
type EntityMatcher struct {
	classrooms  *ScopedIndex[models.Classroom]
	assignments *ScopedIndex[models.Assignment]
	enrollments *ScopedIndex[models.Enrollment]
	submissions *ScopedIndex[models.Submission]
}

// NewEntityMatcher indexes tenant state. Only latest submissions are considered.
func NewEntityMatcher(state *models.TenantState) *EntityMatcher {
	if state == nil {
		state = &models.TenantState{}
	}
	latest := make([]models.Submission, 0, len(state.Submissions))
	for _, s := range state.Submissions {
		if s.IsLatest {
			latest = append(latest, s)
		}
	}
	return &EntityMatcher{
		classrooms:  NewScopedIndex(state.Classrooms, func(models.Classroom) string { return "" }),
		assignments: NewScopedIndex(state.Assignments, func(a models.Assignment) string { return a.ClassroomID }),
		enrollments: NewScopedIndex(state.Enrollments, func(e models.Enrollment) string { return e.ClassroomID }),
		submissions: NewScopedIndex(latest, models.Submission.PairKey),
	}
}

// Classroom matches by external id within the tenant.
func (m *EntityMatcher) Classroom(externalID string) MatchResult[models.Classroom] {
	return m.classrooms.Match("", externalID)
}

// Assignment matches by external id within a persisted classroom.
func (m *EntityMatcher) Assignment(classroomID, externalID string) MatchResult[models.Assignment] {
	return m.assignments.Match(classroomID, externalID)
}

// Enrollment matches a student by external id within a persisted classroom.
func (m *EntityMatcher) Enrollment(classroomID, studentID string) MatchResult[models.Enrollment] {
	return m.enrollments.Match(classroomID, studentID)
}

// Enrollments lists every persisted enrollment of a classroom.
func (m *EntityMatcher) Enrollments(classroomID string) []models.Enrollment {
	return m.enrollments.InScope(classroomID)
}

// Submission matches within the (assignment, student) pair. The pair holds at
// most one latest row; a latest row under a different external id is treated
// as ambiguous.
func (m *EntityMatcher) Submission(assignmentID, studentID, externalID string) MatchResult[models.Submission] {
	candidates := m.submissions.InScope(models.PairKey(assignmentID, studentID))
	switch len(candidates) {
	case 0:
		return MatchResult[models.Submission]{}
	case 1:
		if candidates[0].ExternalID != externalID {
			return MatchResult[models.Submission]{
				Ambiguous: true,
				Reason:    fmt.Sprintf("latest submission for this student is %q, snapshot has %q", candidates[0].ExternalID, externalID),
			}
		}
		existing := candidates[0]
		return MatchResult[models.Submission]{Existing: &existing}
	default:
		return MatchResult[models.Submission]{
			Ambiguous: true,
			Reason:    fmt.Sprintf("%d latest submissions stored for one assignment and student", len(candidates)),
		}
	}
}
