package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
)

const (
	entityClassroom  = "classroom"
	entityAssignment = "assignment"
	entityStudent    = "student"
	entitySubmission = "submission"
)

// Planner builds the complete write plan for a snapshot against loaded state.
// It performs no I/O, so the diff preview and the import share it verbatim.
type Planner struct {
	newID     func() string
	now       func() time.Time
	versioner SubmissionVersioner
}

// NewPlanner constructs a planner. Nil generators fall back to uuid and UTC now.
func NewPlanner(newID func() string, now func() time.Time) *Planner {
	if newID == nil {
		newID = uuid.NewString
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Planner{newID: newID, now: now}
}

// Plan matches every entity of the snapshot and decides its write. Classrooms
// keep snapshot order; within a classroom assignments come before enrollments
// and enrollments before submissions.
func (p *Planner) Plan(teacherID string, snapshot *models.Snapshot, state *models.TenantState) *models.WritePlan {
	if state == nil {
		state = &models.TenantState{TeacherID: teacherID}
	}
	matcher := NewEntityMatcher(state)
	grades := make(map[string]models.Grade, len(state.Grades))
	for _, g := range state.Grades {
		grades[g.SubmissionID] = g
	}

	plan := &models.WritePlan{
		TeacherID:  teacherID,
		Context:    models.NewImportContext(state),
		Classrooms: make([]models.ClassroomPlan, 0, len(snapshot.Classrooms)),
	}
	now := p.now()
	seen := make(map[string]struct{}, len(snapshot.Classrooms))
	for _, sc := range snapshot.Classrooms {
		if _, dup := seen[sc.ID]; dup {
			plan.SkippedClassrooms = append(plan.SkippedClassrooms, skipped(entityClassroom, sc.ID, sc.ID, "duplicate classroom id in snapshot"))
			continue
		}
		seen[sc.ID] = struct{}{}

		match := matcher.Classroom(sc.ID)
		if match.Ambiguous {
			plan.SkippedClassrooms = append(plan.SkippedClassrooms, skipped(entityClassroom, sc.ID, sc.ID, match.Reason))
			continue
		}
		plan.Classrooms = append(plan.Classrooms, p.planClassroom(teacherID, sc, match.Existing, matcher, grades, now))
	}
	return plan
}

func (p *Planner) planClassroom(teacherID string, sc models.SnapshotClassroom, existing *models.Classroom, matcher *EntityMatcher, grades map[string]models.Grade, now time.Time) models.ClassroomPlan {
	cp := models.ClassroomPlan{}
	if existing != nil {
		cp.Op = models.WriteOpUpdate
		cp.Classroom = *existing
		prev := existing.Counts()
		cp.PreviousCount = &prev
		cp.Stats.ClassroomsUpdated = 1
	} else {
		cp.Op = models.WriteOpCreate
		cp.Classroom = models.Classroom{ID: p.newID(), TeacherID: teacherID, ExternalID: sc.ID, CreatedAt: now}
		cp.Stats.ClassroomsCreated = 1
	}
	c := &cp.Classroom
	c.Name = sc.Name
	c.Section = sc.Section
	c.EnrollmentCode = sc.EnrollmentCode
	c.CourseState = sc.CourseState
	c.AlternateLink = sc.AlternateLink
	c.UpdatedAt = now

	assignmentIDs, maxScores := p.planAssignments(&cp, sc, matcher, now)
	enrollmentIdx := p.planEnrollments(&cp, sc, matcher, now)
	p.planSubmissions(&cp, sc, matcher, grades, assignmentIDs, maxScores, enrollmentIdx, now)

	c.AssignmentCount = len(cp.Assignments)
	c.StudentCount = len(enrollmentIdx)
	c.SubmissionCount = len(cp.Submissions)
	c.UngradedCount = 0
	for _, w := range cp.Submissions {
		if w.Submission.Status == models.SubmissionStatusSubmitted {
			c.UngradedCount++
		}
	}
	cp.Stats.Skipped = len(cp.Skipped)
	return cp
}

func (p *Planner) planAssignments(cp *models.ClassroomPlan, sc models.SnapshotClassroom, matcher *EntityMatcher, now time.Time) (map[string]string, map[string]float64) {
	ids := make(map[string]string, len(sc.Assignments))
	maxScores := make(map[string]float64, len(sc.Assignments))
	for _, sa := range sc.Assignments {
		if _, dup := ids[sa.ID]; dup {
			cp.Skipped = append(cp.Skipped, skipped(entityAssignment, sc.ID, sa.ID, "duplicate assignment id in snapshot"))
			continue
		}
		var match MatchResult[models.Assignment]
		if cp.Op == models.WriteOpUpdate {
			match = matcher.Assignment(cp.Classroom.ID, sa.ID)
		}
		if match.Ambiguous {
			cp.Skipped = append(cp.Skipped, skipped(entityAssignment, sc.ID, sa.ID, match.Reason))
			continue
		}

		write := models.AssignmentWrite{}
		if match.Existing != nil {
			write.Op = models.WriteOpUpdate
			write.Assignment = *match.Existing
			cp.Stats.AssignmentsUpdated++
		} else {
			write.Op = models.WriteOpCreate
			write.Assignment = models.Assignment{
				ID:          p.newID(),
				TeacherID:   cp.Classroom.TeacherID,
				ClassroomID: cp.Classroom.ID,
				ExternalID:  sa.ID,
				CreatedAt:   now,
			}
			cp.Stats.AssignmentsCreated++
		}
		a := &write.Assignment
		a.Title = sa.Title
		a.Description = sa.Description
		a.WorkType = sa.WorkType
		a.GradingApproach = sa.GradingApproach
		a.DueDate = models.OptionalSnapshotTime(sa.DueDate)
		a.MaxScore = sa.MaxScore
		a.State = sa.State
		a.UpdatedAt = now

		ids[sa.ID] = a.ID
		maxScores[sa.ID] = sa.MaxScore
		cp.Assignments = append(cp.Assignments, write)
	}
	return ids, maxScores
}

// planEnrollments returns the index into cp.Enrollments of every student
// present in the snapshot.
func (p *Planner) planEnrollments(cp *models.ClassroomPlan, sc models.SnapshotClassroom, matcher *EntityMatcher, now time.Time) map[string]int {
	present := make(map[string]int, len(sc.Students))
	for _, st := range sc.Students {
		if _, dup := present[st.ID]; dup {
			cp.Skipped = append(cp.Skipped, skipped(entityStudent, sc.ID, st.ID, "duplicate student id in snapshot"))
			continue
		}
		var match MatchResult[models.Enrollment]
		if cp.Op == models.WriteOpUpdate {
			match = matcher.Enrollment(cp.Classroom.ID, st.ID)
		}
		if match.Ambiguous {
			cp.Skipped = append(cp.Skipped, skipped(entityStudent, sc.ID, st.ID, match.Reason))
			continue
		}

		write := models.EnrollmentWrite{}
		if match.Existing != nil {
			write.Op = models.WriteOpUpdate
			write.Enrollment = *match.Existing
			cp.Stats.EnrollmentsUpdated++
		} else {
			write.Op = models.WriteOpCreate
			write.Enrollment = models.Enrollment{
				ID:          p.newID(),
				TeacherID:   cp.Classroom.TeacherID,
				ClassroomID: cp.Classroom.ID,
				StudentID:   st.ID,
				CreatedAt:   now,
			}
			cp.Stats.EnrollmentsCreated++
		}
		e := &write.Enrollment
		e.Email = st.Email
		e.Name = st.Name
		e.Status = models.EnrollmentStatusActive
		e.ArchivedAt = nil
		e.SubmissionCount = 0
		e.GradedCount = 0
		e.UpdatedAt = now

		present[st.ID] = len(cp.Enrollments)
		cp.Enrollments = append(cp.Enrollments, write)
	}

	if cp.Op != models.WriteOpUpdate {
		return present
	}
	for _, existing := range matcher.Enrollments(cp.Classroom.ID) {
		if existing.Status != models.EnrollmentStatusActive {
			continue
		}
		if _, ok := present[existing.StudentID]; ok {
			continue
		}
		archivedAt := now
		existing.Status = models.EnrollmentStatusArchived
		existing.ArchivedAt = &archivedAt
		existing.UpdatedAt = now
		cp.Enrollments = append(cp.Enrollments, models.EnrollmentWrite{Op: models.WriteOpArchive, Enrollment: existing})
		cp.Stats.EnrollmentsArchived++
	}
	return present
}

func (p *Planner) planSubmissions(cp *models.ClassroomPlan, sc models.SnapshotClassroom, matcher *EntityMatcher, grades map[string]models.Grade, assignmentIDs map[string]string, maxScores map[string]float64, enrollmentIdx map[string]int, now time.Time) {
	seenIDs := make(map[string]struct{}, len(sc.Submissions))
	seenPairs := make(map[string]struct{}, len(sc.Submissions))
	for _, ss := range sc.Submissions {
		if _, dup := seenIDs[ss.ID]; dup {
			cp.Skipped = append(cp.Skipped, skipped(entitySubmission, sc.ID, ss.ID, "duplicate submission id in snapshot"))
			continue
		}
		seenIDs[ss.ID] = struct{}{}

		assignmentID, ok := assignmentIDs[ss.AssignmentID]
		if !ok {
			cp.Skipped = append(cp.Skipped, skipped(entitySubmission, sc.ID, ss.ID, "assignment "+ss.AssignmentID+" is not part of this import"))
			continue
		}
		enrollment, ok := enrollmentIdx[ss.StudentID]
		if !ok {
			cp.Skipped = append(cp.Skipped, skipped(entitySubmission, sc.ID, ss.ID, "student "+ss.StudentID+" is not enrolled in this import"))
			continue
		}
		pair := models.PairKey(assignmentID, ss.StudentID)
		if _, dup := seenPairs[pair]; dup {
			cp.Skipped = append(cp.Skipped, skipped(entitySubmission, sc.ID, ss.ID, "second submission for the same assignment and student"))
			continue
		}
		seenPairs[pair] = struct{}{}

		match := matcher.Submission(assignmentID, ss.StudentID, ss.ID)
		if match.Ambiguous {
			cp.Skipped = append(cp.Skipped, skipped(entitySubmission, sc.ID, ss.ID, match.Reason))
			continue
		}

		fp := ss.Fingerprint()
		decision := p.versioner.Resolve(fp, match.Existing)
		write := models.SubmissionWrite{Action: decision.Action, PreserveGrade: decision.PreserveGrade}
		graded := false

		switch decision.Action {
		case models.SubmissionActionUnchanged:
			write.Submission = *match.Existing
			refreshSubmission(&write.Submission, ss, now)
			cp.Stats.SubmissionsUnchanged++
			if _, has := grades[match.Existing.ID]; has {
				write.HadGrade = true
				graded = true
				cp.Stats.GradesPreserved++
			} else if ss.Grade != nil {
				cp.Grades = append(cp.Grades, p.newGrade(cp.Classroom.TeacherID, write.Submission, *ss.Grade, maxScores[ss.AssignmentID], now))
				graded = true
				cp.Stats.GradesCreated++
			}
		case models.SubmissionActionNewVersion:
			write.Submission = p.newSubmission(cp.Classroom, assignmentID, ss, fp, decision.Version, now)
			write.RetireID = match.Existing.ID
			write.PreviousVersion = match.Existing.Version
			cp.Stats.SubmissionsVersioned++
			if _, has := grades[match.Existing.ID]; has {
				write.HadGrade = true
				cp.Stats.GradesOrphaned++
			}
		default:
			write.Submission = p.newSubmission(cp.Classroom, assignmentID, ss, fp, decision.Version, now)
			cp.Stats.SubmissionsCreated++
			if ss.Grade != nil {
				cp.Grades = append(cp.Grades, p.newGrade(cp.Classroom.TeacherID, write.Submission, *ss.Grade, maxScores[ss.AssignmentID], now))
				graded = true
				cp.Stats.GradesCreated++
			}
		}

		write.Submission.Status = submissionStatus(ss, graded)
		cp.Submissions = append(cp.Submissions, write)

		e := &cp.Enrollments[enrollment].Enrollment
		if ss.TurnedIn() {
			e.SubmissionCount++
		}
		if graded {
			e.GradedCount++
		}
	}
}

func (p *Planner) newSubmission(classroom models.Classroom, assignmentID string, ss models.SnapshotSubmission, fp string, version int, now time.Time) models.Submission {
	sub := models.Submission{
		ID:                 p.newID(),
		TeacherID:          classroom.TeacherID,
		ClassroomID:        classroom.ID,
		AssignmentID:       assignmentID,
		StudentID:          ss.StudentID,
		ExternalID:         ss.ID,
		Version:            version,
		IsLatest:           true,
		ContentFingerprint: fp,
		Content:            ss.Content,
		CreatedAt:          now,
	}
	if len(ss.Attachments) > 0 {
		sub.Attachments = make(models.AttachmentList, 0, len(ss.Attachments))
		for _, a := range ss.Attachments {
			sub.Attachments = append(sub.Attachments, models.Attachment{Title: a.Title, URL: a.URL, Content: a.Content})
		}
	}
	refreshSubmission(&sub, ss, now)
	return sub
}

// refreshSubmission copies timestamps and source state; content stays as stored.
func refreshSubmission(sub *models.Submission, ss models.SnapshotSubmission, now time.Time) {
	sub.SourceState = ss.State
	sub.Late = ss.Late
	sub.SubmittedAt = models.OptionalSnapshotTime(ss.SubmittedAt)
	sub.SourceUpdatedAt = models.OptionalSnapshotTime(ss.UpdatedAt)
	sub.UpdatedAt = now
}

func (p *Planner) newGrade(teacherID string, sub models.Submission, sg models.SnapshotGrade, assignmentMax float64, now time.Time) models.GradeWrite {
	maxScore := sg.MaxScore
	if maxScore == 0 {
		maxScore = assignmentMax
	}
	gradedBy := models.GradedBy(sg.GradedBy)
	if gradedBy == "" {
		gradedBy = models.GradedByManual
	}
	return models.GradeWrite{
		Op: models.WriteOpCreate,
		Grade: models.Grade{
			ID:           p.newID(),
			SubmissionID: sub.ID,
			TeacherID:    teacherID,
			Score:        sg.Score,
			MaxScore:     maxScore,
			Feedback:     sg.Feedback,
			GradedBy:     gradedBy,
			GradedAt:     models.OptionalSnapshotTime(sg.GradedAt),
			Version:      sub.Version,
			IsLatest:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

func submissionStatus(ss models.SnapshotSubmission, graded bool) models.SubmissionStatus {
	switch {
	case graded:
		return models.SubmissionStatusGraded
	case ss.TurnedIn():
		return models.SubmissionStatusSubmitted
	default:
		return models.SubmissionStatusPending
	}
}

func skipped(kind, classroomID, externalID, reason string) models.SkippedEntity {
	return models.SkippedEntity{Kind: kind, ClassroomID: classroomID, ExternalID: externalID, Reason: reason}
}
