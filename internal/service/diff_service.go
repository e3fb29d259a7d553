package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

type tenantStateLoader interface {
	LoadTenantState(ctx context.Context, teacherID string) (*models.TenantState, error)
}

// DiffService previews what an import would change. It never writes.
type DiffService struct {
	validator *SnapshotValidator
	state     tenantStateLoader
	planner   *Planner
	logger    *zap.Logger
}

// NewDiffService constructs a DiffService.
func NewDiffService(validator *SnapshotValidator, state tenantStateLoader, planner *Planner, logger *zap.Logger) *DiffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if planner == nil {
		planner = NewPlanner(nil, nil)
	}
	return &DiffService{validator: validator, state: state, planner: planner, logger: logger}
}

// Diff validates raw and compares it with the tenant's stored state.
func (s *DiffService) Diff(ctx context.Context, raw []byte, tenant models.Tenant) (*dto.DiffResult, error) {
	snapshot, validation, err := s.validator.ValidateRaw(raw, tenant)
	if err != nil {
		return nil, err
	}
	if !validation.IsValid {
		return nil, appErrors.WithDetails(appErrors.ErrSnapshotInvalid, validation.Issues)
	}

	state, err := s.state.LoadTenantState(ctx, tenant.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored classroom data")
	}

	plan := s.planner.Plan(tenant.ID, snapshot, state)
	for _, sk := range plan.Skipped() {
		s.logger.Debug("diff skipped ambiguous entity", zap.String("tenant_id", tenant.ID), zap.String("kind", sk.Kind), zap.String("external_id", sk.ExternalID), zap.String("reason", sk.Reason))
	}
	result := BuildDiff(plan)
	return &result, nil
}

// BuildDiff summarises a write plan. The first import only reports what is new.
func BuildDiff(plan *models.WritePlan) dto.DiffResult {
	stats := plan.Stats()
	result := dto.DiffResult{
		IsFirstImport: plan.Context.FirstImport(),
		Stats:         stats,
		Skipped:       plan.Skipped(),
	}

	fresh := &dto.DiffNew{
		Classrooms:  []dto.ClassroomRef{},
		Assignments: stats.AssignmentsCreated,
		Enrollments: stats.EnrollmentsCreated,
		Submissions: stats.SubmissionsCreated,
		Grades:      stats.GradesCreated,
	}
	changes := &dto.DiffChanges{
		Classrooms:           []dto.ClassroomCountChange{},
		AssignmentsUpdated:   stats.AssignmentsUpdated,
		SubmissionsVersioned: stats.SubmissionsVersioned,
		SubmissionsUnchanged: stats.SubmissionsUnchanged,
		GradesPreserved:      stats.GradesPreserved,
		GradesOrphaned:       stats.GradesOrphaned,
		EnrollmentsArchived:  stats.EnrollmentsArchived,
	}
	for _, cp := range plan.Classrooms {
		if cp.Op == models.WriteOpCreate {
			fresh.Classrooms = append(fresh.Classrooms, dto.ClassroomRef{ID: cp.Classroom.ExternalID, Name: cp.Classroom.Name})
			continue
		}
		if cp.CountsChanged() {
			changes.Classrooms = append(changes.Classrooms, dto.ClassroomCountChange{
				ID:     cp.Classroom.ExternalID,
				Name:   cp.Classroom.Name,
				Before: *cp.PreviousCount,
				After:  cp.Classroom.Counts(),
			})
		}
	}
	result.New = fresh

	if subsequent, ok := plan.Context.(models.SubsequentImportContext); ok {
		existing := subsequent.Existing
		result.Existing = &existing
		result.Changes = changes
	}
	return result
}
