package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

var (
	testTenant = models.Tenant{ID: "teacher-1", Email: "ada@example.edu"}
	testNow    = time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)
)

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func fixedClock() time.Time { return testNow }

func testClassroom(id, name string) models.SnapshotClassroom {
	return models.SnapshotClassroom{
		ID:              id,
		Name:            name,
		CourseState:     "ACTIVE",
		StudentCount:    2,
		AssignmentCount: 1,
		Assignments: []models.SnapshotAssignment{
			{ID: id + "-a1", Title: "Linear equations", MaxScore: 10, State: "PUBLISHED"},
		},
		Students: []models.SnapshotStudent{
			{ID: "st-1", Email: "grace@example.edu", Name: "Grace Hopper"},
			{ID: "st-2", Email: "alan@example.edu", Name: "Alan Turing"},
		},
		Submissions: []models.SnapshotSubmission{
			{ID: id + "-s1", AssignmentID: id + "-a1", StudentID: "st-1", State: "TURNED_IN", Content: "x = 4", SubmittedAt: "2026-09-04T10:00:00Z"},
			{ID: id + "-s2", AssignmentID: id + "-a1", StudentID: "st-2", State: "RETURNED", Content: "x = 3", SubmittedAt: "2026-09-03T09:30:00Z",
				Grade: &models.SnapshotGrade{Score: 8, MaxScore: 10, Feedback: "Check step 2", GradedBy: "manual"}},
		},
	}
}

func testSnapshot(classrooms ...models.SnapshotClassroom) models.Snapshot {
	if len(classrooms) == 0 {
		classrooms = []models.SnapshotClassroom{testClassroom("c-1", "Algebra I")}
	}
	return models.Snapshot{
		Teacher:    models.SnapshotTeacher{Email: "ada@example.edu", Name: "Ada Lovelace"},
		Classrooms: classrooms,
		Metadata:   models.SnapshotMetadata{FetchedAt: "2026-09-06T08:00:00Z", Source: "classroom-export", Version: "1.0"},
	}
}

func rawSnapshot(t *testing.T, s models.Snapshot) []byte {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return raw
}

// memStore keeps tenant data in maps and applies classroom plans atomically,
// enforcing the same latest-version guard as the SQL store.
type memStore struct {
	mu          sync.Mutex
	classrooms  map[string]models.Classroom
	assignments map[string]models.Assignment
	enrollments map[string]models.Enrollment
	submissions map[string]models.Submission
	grades      map[string]models.Grade

	failFor map[string]error
	loadErr error
	onApply func(plan *models.ClassroomPlan)
	applied int
}

func newMemStore() *memStore {
	return &memStore{
		classrooms:  map[string]models.Classroom{},
		assignments: map[string]models.Assignment{},
		enrollments: map[string]models.Enrollment{},
		submissions: map[string]models.Submission{},
		grades:      map[string]models.Grade{},
		failFor:     map[string]error{},
	}
}

func (m *memStore) LoadTenantState(_ context.Context, teacherID string) (*models.TenantState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	state := &models.TenantState{TeacherID: teacherID}
	for _, c := range m.classrooms {
		if c.TeacherID == teacherID {
			state.Classrooms = append(state.Classrooms, c)
		}
	}
	for _, a := range m.assignments {
		if a.TeacherID == teacherID {
			state.Assignments = append(state.Assignments, a)
		}
	}
	for _, e := range m.enrollments {
		if e.TeacherID == teacherID {
			state.Enrollments = append(state.Enrollments, e)
		}
	}
	for _, s := range m.submissions {
		if s.TeacherID == teacherID && s.IsLatest {
			state.Submissions = append(state.Submissions, s)
			if g, ok := m.grades[s.ID]; ok {
				state.Grades = append(state.Grades, g)
			}
		}
	}
	sort.Slice(state.Classrooms, func(i, j int) bool { return state.Classrooms[i].ID < state.Classrooms[j].ID })
	sort.Slice(state.Enrollments, func(i, j int) bool { return state.Enrollments[i].ID < state.Enrollments[j].ID })
	return state, nil
}

func (m *memStore) ApplyClassroomPlan(_ context.Context, plan *models.ClassroomPlan) error {
	if m.onApply != nil {
		m.onApply(plan)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[plan.Classroom.ExternalID]; err != nil {
		return err
	}
	for _, w := range plan.Submissions {
		if w.Action != models.SubmissionActionNewVersion {
			continue
		}
		prev, ok := m.submissions[w.RetireID]
		if !ok || !prev.IsLatest || prev.Version != w.PreviousVersion {
			return appErrors.Clone(appErrors.ErrConflict, "row changed or disappeared during import")
		}
	}

	m.classrooms[plan.Classroom.ID] = plan.Classroom
	for _, w := range plan.Assignments {
		m.assignments[w.Assignment.ID] = w.Assignment
	}
	for _, w := range plan.Enrollments {
		m.enrollments[w.Enrollment.ID] = w.Enrollment
	}
	for _, w := range plan.Submissions {
		if w.Action == models.SubmissionActionNewVersion {
			prev := m.submissions[w.RetireID]
			prev.IsLatest = false
			m.submissions[prev.ID] = prev
			if g, ok := m.grades[prev.ID]; ok {
				g.IsLatest = false
				m.grades[prev.ID] = g
			}
		}
		m.submissions[w.Submission.ID] = w.Submission
	}
	for _, w := range plan.Grades {
		m.grades[w.Grade.SubmissionID] = w.Grade
	}
	m.applied++
	return nil
}

func (m *memStore) seedClassroom(c models.Classroom) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classrooms[c.ID] = c
}

// versions returns every stored row of a snapshot submission, oldest first.
func (m *memStore) versions(externalID string) []models.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Submission
	for _, s := range m.submissions {
		if s.ExternalID == externalID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func (m *memStore) gradeOf(submissionID string) (models.Grade, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grades[submissionID]
	return g, ok
}

func (m *memStore) enrollmentOf(studentID string) models.Enrollment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID {
			return e
		}
	}
	return models.Enrollment{}
}

func (m *memStore) counts() (classrooms, submissions, grades int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.classrooms), len(m.submissions), len(m.grades)
}

// storeTally counts persisted rows by kind so tests can compare what a commit
// actually changed with what the plan promised.
type storeTally struct {
	classrooms          int
	assignments         int
	enrollments         int
	archivedEnrollments int
	latestSubmissions   int
	retiredSubmissions  int
	latestGrades        int
	retiredGrades       int
}

func (m *memStore) tally() storeTally {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := storeTally{
		classrooms:  len(m.classrooms),
		assignments: len(m.assignments),
		enrollments: len(m.enrollments),
	}
	for _, e := range m.enrollments {
		if e.Status == models.EnrollmentStatusArchived {
			t.archivedEnrollments++
		}
	}
	for _, sub := range m.submissions {
		if sub.IsLatest {
			t.latestSubmissions++
		} else {
			t.retiredSubmissions++
		}
	}
	for _, g := range m.grades {
		if g.IsLatest {
			t.latestGrades++
		} else {
			t.retiredGrades++
		}
	}
	return t
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*models.ImportRecord
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, record *models.ImportRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func (f *fakeRecorder) last() *models.ImportRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		return nil
	}
	return f.records[len(f.records)-1]
}

type fakeArchive struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newFakeArchive() *fakeArchive { return &fakeArchive{files: map[string][]byte{}} }

func (f *fakeArchive) Save(filename string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[filename] = append([]byte(nil), data...)
	return filename, nil
}

func (f *fakeArchive) Delete(filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, filename)
	return nil
}

func (f *fakeArchive) Open(filename string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[filename]
	if !ok {
		return nil, fmt.Errorf("open %s: not found", filename)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

type fakeDispatcher struct {
	mu          sync.Mutex
	submissions []models.Submission
}

func (f *fakeDispatcher) Dispatch(_ context.Context, _ string, submissions []models.Submission) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, submissions...)
	return len(submissions)
}
