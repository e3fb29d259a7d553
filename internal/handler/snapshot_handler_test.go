package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/middleware"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	"github.com/noah-isme/classroom-snapshot-api/internal/service"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

const testSecret = "handler-secret"

var handlerTenant = models.Tenant{ID: "teacher-1", Email: "ada@example.edu"}

type differStub struct {
	result *dto.DiffResult
	err    error
	raw    []byte
}

func (s *differStub) Diff(_ context.Context, raw []byte, _ models.Tenant) (*dto.DiffResult, error) {
	s.raw = raw
	return s.result, s.err
}

type importerStub struct {
	result *dto.ImportResult
	err    error
	tenant models.Tenant
}

func (s *importerStub) Import(_ context.Context, _ []byte, tenant models.Tenant) (*dto.ImportResult, error) {
	s.tenant = tenant
	return s.result, s.err
}

type historyStub struct {
	entries []dto.HistoryEntry
	filter  models.HistoryFilter
	record  *models.ImportRecord
	archive string
	export  *service.ExportFile
	err     error
}

func (s *historyStub) List(_ context.Context, filter models.HistoryFilter) ([]dto.HistoryEntry, int, error) {
	s.filter = filter
	return s.entries, len(s.entries), s.err
}

func (s *historyStub) Get(_ context.Context, _, id string) (*models.ImportRecord, error) {
	if s.record == nil || s.record.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "import not found")
	}
	return s.record, nil
}

func (s *historyStub) OpenArchive(_ context.Context, _, id string) (io.ReadCloser, error) {
	if s.archive == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot was not archived")
	}
	return io.NopCloser(strings.NewReader(s.archive)), nil
}

func (s *historyStub) Export(_ context.Context, _, format string) (*service.ExportFile, error) {
	if format != "csv" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return s.export, nil
}

type handlerFixture struct {
	router   *gin.Engine
	differ   *differStub
	importer *importerStub
	history  *historyStub
	grades   *submissionServiceStub
	token    string
}

func newHandlerFixture(t *testing.T, maxBytes int64) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := service.NewAuthService(service.AuthConfig{Secret: testSecret})
	token, err := auth.IssueToken(handlerTenant, "Ada", time.Hour)
	require.NoError(t, err)

	f := &handlerFixture{
		differ:   &differStub{},
		importer: &importerStub{},
		history:  &historyStub{},
		grades:   &submissionServiceStub{},
		token:    token,
	}
	f.router = gin.New()
	f.router.Use(middleware.WithResponseMeta())
	RegisterRoutes(f.router, "/api/v1", middleware.JWT(auth), Handlers{
		Snapshots:   NewSnapshotHandler(service.NewSnapshotValidator(maxBytes, nil), f.differ, f.importer, f.history, SnapshotHandlerConfig{MaxSnapshotBytes: maxBytes}),
		Submissions: NewSubmissionHandler(f.grades),
		Metrics:     NewMetricsHandler(service.NewMetricsService(), nil),
	})
	return f
}

func (f *handlerFixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data       json.RawMessage    `json:"data"`
	Error      *appErrors.Error   `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
	Meta       map[string]any     `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

const validSnapshot = `{
  "teacher": {"email": "ada@example.edu", "name": "Ada Lovelace"},
  "classrooms": [{
    "id": "c-1", "name": "Algebra I",
    "assignments": [{"id": "a-1", "title": "Equations", "maxScore": 10}],
    "students": [{"id": "st-1", "name": "Grace Hopper"}],
    "submissions": [{"id": "s-1", "assignmentId": "a-1", "studentId": "st-1", "state": "TURNED_IN", "content": "x = 4"}]
  }],
  "metadata": {"fetchedAt": "2026-09-06T08:00:00Z", "source": "classroom-export", "version": "1.0"}
}`

func TestSnapshotValidateReturnsReport(t *testing.T) {
	f := newHandlerFixture(t, 0)

	w := f.do(http.MethodPost, "/api/v1/snapshots/validate", []byte(validSnapshot))
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	var result dto.ValidationResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.IsValid)
	assert.Contains(t, env.Meta, "processing_time_ms")
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestSnapshotValidateInvalidIsStill200(t *testing.T) {
	f := newHandlerFixture(t, 0)
	body := strings.Replace(validSnapshot, `"title": "Equations"`, `"title": ""`, 1)

	w := f.do(http.MethodPost, "/api/v1/snapshots/validate", []byte(body))
	require.Equal(t, http.StatusOK, w.Code)
	var result dto.ValidationResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.False(t, result.IsValid)
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, "classrooms.0.assignments.0.title", result.Issues[0].Path)
}

func TestSnapshotValidateStructuralAndTooLarge(t *testing.T) {
	f := newHandlerFixture(t, 0)
	w := f.do(http.MethodPost, "/api/v1/snapshots/validate", []byte(`{"teacher": {}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrStructural.Code, decodeEnvelope(t, w).Error.Code)

	small := newHandlerFixture(t, 64)
	w = small.do(http.MethodPost, "/api/v1/snapshots/validate", []byte(validSnapshot))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSnapshotRoutesRequireToken(t *testing.T) {
	f := newHandlerFixture(t, 0)
	f.token = "garbage"

	w := f.do(http.MethodPost, "/api/v1/snapshots/import", []byte(validSnapshot))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, f.importer.result)
}

func TestSnapshotDiffPassesBody(t *testing.T) {
	f := newHandlerFixture(t, 0)
	f.differ.result = &dto.DiffResult{IsFirstImport: true, New: &dto.DiffNew{Classrooms: []dto.ClassroomRef{{ID: "c-1", Name: "Algebra I"}}}}

	w := f.do(http.MethodPost, "/api/v1/snapshots/diff", []byte(validSnapshot))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, validSnapshot, string(f.differ.raw))
	var result dto.DiffResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.True(t, result.IsFirstImport)
}

func TestSnapshotImportPartialStill200(t *testing.T) {
	f := newHandlerFixture(t, 0)
	f.importer.result = &dto.ImportResult{SnapshotID: "snap-1", Status: models.ImportStatusPartial, Summary: "Imported 1 of 2 classrooms"}

	w := f.do(http.MethodPost, "/api/v1/snapshots/import", []byte(validSnapshot))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, handlerTenant, f.importer.tenant)
	var result dto.ImportResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.Equal(t, models.ImportStatusPartial, result.Status)
}

func TestSnapshotImportErrorsKeepResult(t *testing.T) {
	f := newHandlerFixture(t, 0)
	f.importer.result = &dto.ImportResult{SnapshotID: "snap-1", Status: models.ImportStatusSuccess}
	f.importer.err = appErrors.Clone(appErrors.ErrInternal, "failed to record import history")

	w := f.do(http.MethodPost, "/api/v1/snapshots/import", []byte(validSnapshot))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Contains(t, string(env.Data), "snap-1")

	f.importer.result = nil
	f.importer.err = appErrors.ErrImportInProgress
	w = f.do(http.MethodPost, "/api/v1/snapshots/import", []byte(validSnapshot))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSnapshotHistoryPagination(t *testing.T) {
	f := newHandlerFixture(t, 0)
	f.history.entries = []dto.HistoryEntry{{ID: "snap-2", Status: models.ImportStatusSuccess}}

	w := f.do(http.MethodGet, "/api/v1/snapshots/history?limit=500&offset=0&status=success", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, f.history.filter.Limit)
	assert.Equal(t, models.ImportStatusSuccess, f.history.filter.Status)
	assert.Equal(t, "teacher-1", f.history.filter.TeacherID)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)

	w = f.do(http.MethodGet, "/api/v1/snapshots/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSnapshotHistoryDetailArchiveAndExport(t *testing.T) {
	f := newHandlerFixture(t, 0)
	f.history.record = &models.ImportRecord{ID: "snap-1", TeacherID: "teacher-1", Status: models.ImportStatusSuccess}
	f.history.archive = validSnapshot
	f.history.export = &service.ExportFile{Filename: "import-history.csv", ContentType: "text/csv", Body: []byte("id\nsnap-1\n")}

	w := f.do(http.MethodGet, "/api/v1/snapshots/history/snap-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, "/api/v1/snapshots/history/snap-9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/api/v1/snapshots/history/snap-1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="snap-1.json"`, w.Header().Get("Content-Disposition"))
	assert.JSONEq(t, validSnapshot, w.Body.String())

	w = f.do(http.MethodGet, "/api/v1/snapshots/history/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	w = f.do(http.MethodGet, "/api/v1/snapshots/history/export?format=xlsx", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTenantFromContextRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := tenantFromContext(c)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
