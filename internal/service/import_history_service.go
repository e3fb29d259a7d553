package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
	"github.com/noah-isme/classroom-snapshot-api/pkg/export"
)

type importHistoryRepository interface {
	Insert(ctx context.Context, record *models.ImportRecord) error
	List(ctx context.Context, filter models.HistoryFilter) ([]models.ImportRecord, error)
	Count(ctx context.Context, filter models.HistoryFilter) (int, error)
	FindByID(ctx context.Context, teacherID, id string) (*models.ImportRecord, error)
}

type archiveReader interface {
	Open(filename string) (io.ReadCloser, error)
}

type datasetRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	ContentType() string
	Extension() string
}

// HistoryConfig bounds listing and export sizes.
type HistoryConfig struct {
	DefaultLimit  int
	MaxExportRows int
}

// ExportFile is a rendered history report.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

var historyExportHeaders = []string{
	"id", "timestamp", "status", "source", "classrooms", "failed",
	"classrooms_created", "classrooms_updated", "submissions_created",
	"submissions_versioned", "grades_preserved", "grades_orphaned", "processing_ms",
}

// ImportHistoryService is the append-only import log.
type ImportHistoryService struct {
	repo      importHistoryRepository
	archive   archiveReader
	renderers map[string]datasetRenderer
	cfg       HistoryConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewImportHistoryService constructs the service. archive may be nil when
// snapshots are not archived.
func NewImportHistoryService(repo importHistoryRepository, archive archiveReader, cfg HistoryConfig, logger *zap.Logger) *ImportHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxExportRows <= 0 {
		cfg.MaxExportRows = 500
	}
	return &ImportHistoryService{
		repo:    repo,
		archive: archive,
		renderers: map[string]datasetRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		cfg:    cfg,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends one import record.
func (s *ImportHistoryService) Record(ctx context.Context, record *models.ImportRecord) error {
	if record == nil || record.TeacherID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "import record requires a teacher")
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record import")
	}
	return nil
}

// List returns the newest imports of a teacher first, with the total count.
func (s *ImportHistoryService) List(ctx context.Context, filter models.HistoryFilter) ([]dto.HistoryEntry, int, error) {
	if filter.TeacherID == "" {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "teacher id required")
	}
	if filter.Status != "" && !validImportStatus(filter.Status) {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "status must be success, partial or failure")
	}
	if filter.Limit <= 0 {
		filter.Limit = s.cfg.DefaultLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list imports")
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count imports")
	}

	entries := make([]dto.HistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, dto.HistoryEntry{
			ID:        r.ID,
			Timestamp: r.CreatedAt.UTC().Format(time.RFC3339),
			Status:    r.Status,
			Stats:     r.CommittedStats,
		})
	}
	return entries, total, nil
}

// Get returns the full record of one import.
func (s *ImportHistoryService) Get(ctx context.Context, teacherID, id string) (*models.ImportRecord, error) {
	record, err := s.repo.FindByID(ctx, teacherID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import")
	}
	return record, nil
}

// OpenArchive streams the raw snapshot stored for an import.
func (s *ImportHistoryService) OpenArchive(ctx context.Context, teacherID, id string) (io.ReadCloser, error) {
	record, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if s.archive == nil || record.ArchivePath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot was not archived")
	}
	rc, err := s.archive.Open(*record.ArchivePath)
	if err != nil {
		s.logger.Warn("archived snapshot unreadable", zap.String("import_id", id), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrNotFound, "archived snapshot no longer available")
	}
	return rc, nil
}

// Export renders the newest imports as csv or pdf.
func (s *ImportHistoryService) Export(ctx context.Context, teacherID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	records, err := s.repo.List(ctx, models.HistoryFilter{TeacherID: teacherID, Limit: s.cfg.MaxExportRows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list imports")
	}

	data := export.Dataset{Headers: historyExportHeaders}
	for _, r := range records {
		data.Append(historyRow(r))
	}
	body, err := renderer.Render(data, "Snapshot import history")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("import-history-%s.%s", s.now().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

func historyRow(r models.ImportRecord) map[string]string {
	st := r.CommittedStats
	return map[string]string{
		"id":                    r.ID,
		"timestamp":             r.CreatedAt.UTC().Format(time.RFC3339),
		"status":                string(r.Status),
		"source":                r.Source,
		"classrooms":            strconv.Itoa(r.ClassroomCount),
		"failed":                strconv.Itoa(len(r.Failures)),
		"classrooms_created":    strconv.Itoa(st.ClassroomsCreated),
		"classrooms_updated":    strconv.Itoa(st.ClassroomsUpdated),
		"submissions_created":   strconv.Itoa(st.SubmissionsCreated),
		"submissions_versioned": strconv.Itoa(st.SubmissionsVersioned),
		"grades_preserved":      strconv.Itoa(st.GradesPreserved),
		"grades_orphaned":       strconv.Itoa(st.GradesOrphaned),
		"processing_ms":         strconv.FormatInt(r.ProcessingTimeMs, 10),
	}
}

func validImportStatus(status models.ImportStatus) bool {
	switch status {
	case models.ImportStatusSuccess, models.ImportStatusPartial, models.ImportStatusFailure:
		return true
	}
	return false
}
