package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

// Import stages, logged as the "stage" field.
const (
	stageValidating       = "validating"
	stageMatching         = "matching"
	stageWriting          = "writing"
	stageRecordingHistory = "recording_history"
	stageDone             = "done"
	stageFailed           = "failed"
)

type snapshotStore interface {
	tenantStateLoader
	ApplyClassroomPlan(ctx context.Context, plan *models.ClassroomPlan) error
}

type importRecorder interface {
	Record(ctx context.Context, record *models.ImportRecord) error
}

type snapshotArchive interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

type gradingDispatcher interface {
	Dispatch(ctx context.Context, teacherID string, submissions []models.Submission) int
}

// ReconciliationConfig tunes the write stage.
type ReconciliationConfig struct {
	WriteConcurrency int
}

// ReconciliationService imports snapshots: validate, plan against stored
// state, write one transaction per classroom and append an import record.
type ReconciliationService struct {
	validator *SnapshotValidator
	store     snapshotStore
	history   importRecorder
	locker    TenantLocker
	planner   *Planner
	archive   snapshotArchive
	grading   gradingDispatcher
	metrics   *MetricsService
	config    ReconciliationConfig
	logger    *zap.Logger
	newID     func() string
	now       func() time.Time
}

// ReconciliationOption customises optional collaborators.
type ReconciliationOption func(*ReconciliationService)

// WithSnapshotArchive stores raw snapshot bytes for every recorded import.
func WithSnapshotArchive(archive snapshotArchive) ReconciliationOption {
	return func(s *ReconciliationService) { s.archive = archive }
}

// WithGradingDispatcher hands committed, ungraded submissions to the grader.
func WithGradingDispatcher(grading gradingDispatcher) ReconciliationOption {
	return func(s *ReconciliationService) { s.grading = grading }
}

// WithMetrics records import metrics.
func WithMetrics(metrics *MetricsService) ReconciliationOption {
	return func(s *ReconciliationService) { s.metrics = metrics }
}

// WithPlanner overrides the planner, typically to inject deterministic ids.
func WithPlanner(planner *Planner) ReconciliationOption {
	return func(s *ReconciliationService) { s.planner = planner }
}

// WithClock overrides the id generator and clock used for import records.
func WithClock(newID func() string, now func() time.Time) ReconciliationOption {
	return func(s *ReconciliationService) {
		if newID != nil {
			s.newID = newID
		}
		if now != nil {
			s.now = now
		}
	}
}

// NewReconciliationService constructs the import orchestrator.
func NewReconciliationService(validator *SnapshotValidator, store snapshotStore, history importRecorder, locker TenantLocker, config ReconciliationConfig, logger *zap.Logger, opts ...ReconciliationOption) *ReconciliationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = NewLocalTenantLocker(0)
	}
	if config.WriteConcurrency <= 0 {
		config.WriteConcurrency = 1
	}
	s := &ReconciliationService{
		validator: validator,
		store:     store,
		history:   history,
		locker:    locker,
		planner:   NewPlanner(nil, nil),
		config:    config,
		logger:    logger,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import runs one import for tenant. Validation problems and cancellation
// before writing return an error and leave no trace. Once writing has begun
// the result is always returned and an import record is always appended.
func (s *ReconciliationService) Import(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.ImportResult, error) {
	start := time.Now()
	snapshotID := s.newID()
	log := s.logger.With(zap.String("tenant_id", tenant.ID), zap.String("snapshot_id", snapshotID))

	log.Debug("import stage", zap.String("stage", stageValidating))
	snapshot, validation, err := s.validator.ValidateRaw(raw, tenant)
	if err != nil {
		log.Info("import rejected", zap.String("stage", stageFailed), zap.Error(err))
		return nil, err
	}
	if !validation.IsValid {
		log.Info("import rejected", zap.String("stage", stageFailed), zap.Int("issues", len(validation.Issues)))
		return nil, appErrors.WithDetails(appErrors.ErrSnapshotInvalid, validation.Issues)
	}

	lockStart := time.Now()
	unlock, err := s.locker.Lock(ctx, tenant.ID)
	s.metrics.ObserveLockWait(time.Since(lockStart))
	if err != nil {
		log.Info("import lock not acquired", zap.Error(err))
		return nil, err
	}
	defer unlock()

	log.Debug("import stage", zap.String("stage", stageMatching))
	loadStart := time.Now()
	state, err := s.store.LoadTenantState(ctx, tenant.ID)
	s.metrics.ObserveDBQuery("load_tenant_state", time.Since(loadStart))
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.cancelled(log, ctx.Err())
		}
		log.Error("failed to load tenant state", zap.String("stage", stageFailed), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored classroom data")
	}
	plan := s.planner.Plan(tenant.ID, snapshot, state)
	for _, sk := range plan.Skipped() {
		log.Warn("skipping ambiguous entity", zap.String("kind", sk.Kind), zap.String("classroom", sk.ClassroomID), zap.String("external_id", sk.ExternalID), zap.String("reason", sk.Reason))
	}
	if err := ctx.Err(); err != nil {
		return nil, s.cancelled(log, err)
	}

	log.Debug("import stage", zap.String("stage", stageWriting), zap.Int("classrooms", len(plan.Classrooms)))
	outcomes := s.write(ctx, plan)

	var (
		committed      = models.ImportStats{Skipped: len(plan.SkippedClassrooms)}
		failures       = []models.ClassroomFailure{}
		committedCount int
		toGrade        []models.Submission
	)
	for i, batchErr := range outcomes {
		cp := &plan.Classrooms[i]
		s.metrics.ObserveClassroomBatch(batchErr == nil)
		if batchErr != nil {
			log.Warn("classroom batch failed", zap.String("classroom", cp.Classroom.ExternalID), zap.Error(batchErr))
			failures = append(failures, models.ClassroomFailure{ClassroomID: cp.Classroom.ExternalID, Name: cp.Classroom.Name, Error: batchErr.Error()})
			continue
		}
		committedCount++
		committed.Add(cp.Stats)
		for _, w := range cp.Submissions {
			if w.NeedsGrading(cp.Grades) {
				toGrade = append(toGrade, w.Submission)
			}
		}
	}

	status := importStatus(committedCount, len(plan.Classrooms))
	result := &dto.ImportResult{
		SnapshotID:    snapshotID,
		Status:        status,
		IsFirstImport: plan.Context.FirstImport(),
		Stats:         committed,
		Failures:      failures,
		Skipped:       plan.Skipped(),
		Summary:       importSummary(status, committedCount, len(plan.Classrooms), committed),
	}

	log.Debug("import stage", zap.String("stage", stageRecordingHistory))
	record := &models.ImportRecord{
		ID:             snapshotID,
		TeacherID:      tenant.ID,
		Status:         status,
		FirstImport:    plan.Context.FirstImport(),
		Source:         snapshot.Metadata.Source,
		SchemaVersion:  snapshot.Metadata.Version,
		FetchedAt:      models.OptionalSnapshotTime(snapshot.Metadata.FetchedAt),
		ExpiresAt:      models.OptionalSnapshotTime(snapshot.Metadata.ExpiresAt),
		Stats:          plan.Stats(),
		CommittedStats: committed,
		Failures:       failures,
		ClassroomCount: len(plan.Classrooms),
		SnapshotBytes:  int64(len(raw)),
		CreatedAt:      s.now(),
	}
	if s.archive != nil {
		path, archiveErr := s.archive.Save(tenant.ID+"/"+snapshotID+".json", raw)
		if archiveErr != nil {
			log.Warn("failed to archive snapshot", zap.Error(archiveErr))
		} else {
			record.ArchivePath = &path
		}
	}

	elapsed := time.Since(start)
	result.ProcessingTimeMs = elapsed.Milliseconds()
	record.ProcessingTimeMs = result.ProcessingTimeMs
	s.metrics.ObserveImport(status, elapsed)

	if err := s.history.Record(context.WithoutCancel(ctx), record); err != nil {
		log.Error("failed to record import history", zap.String("stage", stageFailed), zap.Error(err))
		if record.ArchivePath != nil {
			if delErr := s.archive.Delete(*record.ArchivePath); delErr != nil {
				log.Warn("failed to remove orphaned snapshot archive", zap.Error(delErr))
			}
		}
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "import written but history could not be recorded")
	}

	if s.grading != nil && len(toGrade) > 0 {
		queued := s.grading.Dispatch(context.WithoutCancel(ctx), tenant.ID, toGrade)
		log.Debug("grading dispatched", zap.Int("submissions", len(toGrade)), zap.Int("queued", queued))
	}

	log.Info("import finished",
		zap.String("stage", stageDone),
		zap.String("status", string(status)),
		zap.Int("classrooms_committed", committedCount),
		zap.Int("classrooms_failed", len(failures)),
		zap.Int64("processing_time_ms", result.ProcessingTimeMs),
	)
	return result, nil
}

// write applies classroom batches with bounded parallelism. A batch that has
// started runs to completion even if ctx is cancelled; batches not yet
// started when ctx is cancelled are reported as failed.
func (s *ReconciliationService) write(ctx context.Context, plan *models.WritePlan) []error {
	outcomes := make([]error, len(plan.Classrooms))
	var g errgroup.Group
	g.SetLimit(s.config.WriteConcurrency)
	for i := range plan.Classrooms {
		if err := ctx.Err(); err != nil {
			outcomes[i] = notStarted(err)
			continue
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[i] = notStarted(err)
				return nil
			}
			outcomes[i] = s.store.ApplyClassroomPlan(context.WithoutCancel(ctx), &plan.Classrooms[i])
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (s *ReconciliationService) cancelled(log *zap.Logger, err error) error {
	log.Info("import cancelled before writing", zap.String("stage", stageFailed))
	return appErrors.Wrap(err, appErrors.ErrImportCancelled.Code, appErrors.ErrImportCancelled.Status, appErrors.ErrImportCancelled.Message)
}

func notStarted(err error) error {
	return fmt.Errorf("batch not started: %w", err)
}

func importStatus(committed, total int) models.ImportStatus {
	switch {
	case committed == total:
		return models.ImportStatusSuccess
	case committed > 0:
		return models.ImportStatusPartial
	default:
		return models.ImportStatusFailure
	}
}

func importSummary(status models.ImportStatus, committed, total int, stats models.ImportStats) string {
	var b strings.Builder
	switch status {
	case models.ImportStatusSuccess:
		fmt.Fprintf(&b, "Imported %d classroom%s", total, plural(total))
	case models.ImportStatusPartial:
		fmt.Fprintf(&b, "Imported %d of %d classrooms", committed, total)
	default:
		fmt.Fprintf(&b, "No classrooms imported (%d failed)", total)
		return b.String()
	}
	fmt.Fprintf(&b, ": %d new and %d versioned submissions, %d grades preserved, %d grades created",
		stats.SubmissionsCreated, stats.SubmissionsVersioned, stats.GradesPreserved, stats.GradesCreated)
	if stats.EnrollmentsArchived > 0 {
		fmt.Fprintf(&b, ", %d enrollments archived", stats.EnrollmentsArchived)
	}
	if stats.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped", stats.Skipped)
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
