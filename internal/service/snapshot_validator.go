package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-snapshot-api/internal/dto"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

const snapshotDateTag = "snapshotdate"

var requiredSections = []string{"teacher", "classrooms", "metadata"}

// SnapshotValidator turns raw snapshot bytes into a typed document and reports
// every problem it finds as a path-addressed issue. Only unparseable input or
// missing top-level sections are returned as errors.
type SnapshotValidator struct {
	validate *validator.Validate
	maxBytes int64
	logger   *zap.Logger
}

// NewSnapshotValidator constructs a validator. maxBytes <= 0 disables the size limit.
func NewSnapshotValidator(maxBytes int64, logger *zap.Logger) *SnapshotValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation(snapshotDateTag, func(fl validator.FieldLevel) bool {
		_, err := models.ParseSnapshotTime(fl.Field().String())
		return err == nil
	})
	return &SnapshotValidator{validate: v, maxBytes: maxBytes, logger: logger}
}

// ValidateRaw decodes and validates a raw snapshot. The returned snapshot is
// non-nil whenever err is nil, even if the result is invalid.
func (v *SnapshotValidator) ValidateRaw(raw []byte, tenant models.Tenant) (*models.Snapshot, dto.ValidationResult, error) {
	snapshot, decodeIssues, err := v.Decode(raw)
	if err != nil {
		return nil, dto.ValidationResult{}, err
	}
	result := v.Validate(snapshot, tenant)
	if len(decodeIssues) > 0 {
		result.Issues = append(decodeIssues, result.Issues...)
		result.IsValid = false
	}
	if !result.IsValid {
		v.logger.Debug("snapshot rejected", zap.String("tenant_id", tenant.ID), zap.Int("issues", len(result.Issues)))
	}
	return snapshot, result, nil
}

// Decode parses raw bytes. Values of the wrong JSON type are skipped and
// reported as issues; the rest of the document still decodes.
func (v *SnapshotValidator) Decode(raw []byte) (*models.Snapshot, []dto.ValidationIssue, error) {
	if v.maxBytes > 0 && int64(len(raw)) > v.maxBytes {
		return nil, nil, appErrors.Clone(appErrors.ErrSnapshotTooLarge, fmt.Sprintf("snapshot exceeds %d bytes", v.maxBytes))
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStructural.Code, appErrors.ErrStructural.Status, "snapshot is not a valid JSON object")
	}

	var missing []string
	for _, name := range requiredSections {
		section, ok := sections[name]
		if !ok || bytes.Equal(bytes.TrimSpace(section), []byte("null")) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		issues := make([]dto.ValidationIssue, 0, len(missing))
		for _, name := range missing {
			issues = append(issues, dto.ValidationIssue{Path: name, Message: "section is required"})
		}
		err := appErrors.Clone(appErrors.ErrStructural, "snapshot is missing required sections: "+strings.Join(missing, ", "))
		return nil, nil, appErrors.WithDetails(err, issues)
	}

	snapshot := &models.Snapshot{}
	var issues []dto.ValidationIssue
	decodePart(sections["teacher"], &snapshot.Teacher, "teacher", &issues)
	decodePart(sections["metadata"], &snapshot.Metadata, "metadata", &issues)

	var classrooms []json.RawMessage
	if decodePart(sections["classrooms"], &classrooms, "classrooms", &issues) {
		snapshot.Classrooms = make([]models.SnapshotClassroom, len(classrooms))
		for i, item := range classrooms {
			decodePart(item, &snapshot.Classrooms[i], fmt.Sprintf("classrooms.%d", i), &issues)
		}
	}

	return snapshot, issues, nil
}

// Validate checks a decoded snapshot: struct rules first, then rules that span
// several fields. Stats and preview are always populated.
func (v *SnapshotValidator) Validate(snapshot *models.Snapshot, tenant models.Tenant) dto.ValidationResult {
	result := dto.ValidationResult{
		Stats:   snapshotStats(snapshot),
		Preview: snapshotPreview(snapshot),
	}

	if err := v.validate.Struct(snapshot); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				result.Issues = append(result.Issues, dto.ValidationIssue{Path: namespacePath(fe.Namespace()), Message: fieldMessage(fe)})
			}
		} else {
			result.Issues = append(result.Issues, dto.ValidationIssue{Path: "", Message: err.Error()})
		}
	}

	result.Issues = append(result.Issues, crossFieldIssues(snapshot, tenant)...)
	result.IsValid = len(result.Issues) == 0
	return result
}

func decodePart(raw json.RawMessage, dest interface{}, path string, issues *[]dto.ValidationIssue) bool {
	err := json.Unmarshal(raw, dest)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		fieldPath := path
		if typeErr.Field != "" {
			fieldPath = path + "." + typeErr.Field
		}
		*issues = append(*issues, dto.ValidationIssue{
			Path:    fieldPath,
			Message: fmt.Sprintf("expected %s but got %s", jsonKind(typeErr.Type), typeErr.Value),
		})
		// the decoder keeps going past type mismatches, so dest is still usable
		return reflect.ValueOf(dest).Elem().Kind() != reflect.Slice || reflect.ValueOf(dest).Elem().Len() > 0
	}
	*issues = append(*issues, dto.ValidationIssue{Path: path, Message: err.Error()})
	return false
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// namespacePath turns "Snapshot.classrooms[0].assignments[2].title" into
// "classrooms.0.assignments.2.title".
func namespacePath(ns string) string {
	if idx := strings.IndexByte(ns, '.'); idx >= 0 {
		ns = ns[idx+1:]
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	return strings.ReplaceAll(ns, "]", "")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min", "gte":
		return "must be greater than or equal to " + fe.Param()
	case snapshotDateTag:
		return "must be an RFC 3339 timestamp"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func crossFieldIssues(s *models.Snapshot, tenant models.Tenant) []dto.ValidationIssue {
	var issues []dto.ValidationIssue
	add := func(path, format string, args ...interface{}) {
		issues = append(issues, dto.ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if tenant.Email != "" && s.Teacher.Email != "" && !strings.EqualFold(strings.TrimSpace(s.Teacher.Email), strings.TrimSpace(tenant.Email)) {
		add("teacher.email", "does not match the authenticated teacher")
	}

	if s.Metadata.ExpiresAt != "" {
		fetched, errF := models.ParseSnapshotTime(s.Metadata.FetchedAt)
		expires, errE := models.ParseSnapshotTime(s.Metadata.ExpiresAt)
		if errF == nil && errE == nil && !expires.After(fetched) {
			add("metadata.expiresAt", "must be after fetchedAt")
		}
	}

	classroomSeen := make(map[string]int, len(s.Classrooms))
	for ci, c := range s.Classrooms {
		base := fmt.Sprintf("classrooms.%d", ci)
		if c.ID != "" {
			if first, dup := classroomSeen[c.ID]; dup {
				add(base+".id", "duplicate classroom id %q (first at classrooms.%d)", c.ID, first)
			} else {
				classroomSeen[c.ID] = ci
			}
		}

		assignments := make(map[string]float64, len(c.Assignments))
		for ai, a := range c.Assignments {
			if a.ID == "" {
				continue
			}
			if _, dup := assignments[a.ID]; dup {
				add(fmt.Sprintf("%s.assignments.%d.id", base, ai), "duplicate assignment id %q", a.ID)
				continue
			}
			assignments[a.ID] = a.MaxScore
		}

		students := make(map[string]struct{}, len(c.Students))
		for si, st := range c.Students {
			if st.ID == "" {
				continue
			}
			if _, dup := students[st.ID]; dup {
				add(fmt.Sprintf("%s.students.%d.id", base, si), "duplicate student id %q", st.ID)
				continue
			}
			students[st.ID] = struct{}{}
		}

		submissionIDs := make(map[string]struct{}, len(c.Submissions))
		pairs := make(map[string]struct{}, len(c.Submissions))
		for si, sub := range c.Submissions {
			path := fmt.Sprintf("%s.submissions.%d", base, si)
			if sub.ID != "" {
				if _, dup := submissionIDs[sub.ID]; dup {
					add(path+".id", "duplicate submission id %q", sub.ID)
				}
				submissionIDs[sub.ID] = struct{}{}
			}
			if sub.AssignmentID != "" {
				if _, ok := assignments[sub.AssignmentID]; !ok {
					add(path+".assignmentId", "references unknown assignment %q", sub.AssignmentID)
				}
			}
			if sub.StudentID != "" {
				if _, ok := students[sub.StudentID]; !ok {
					add(path+".studentId", "references unknown student %q", sub.StudentID)
				}
			}
			if sub.AssignmentID != "" && sub.StudentID != "" {
				key := models.PairKey(sub.AssignmentID, sub.StudentID)
				if _, dup := pairs[key]; dup {
					add(path, "duplicate submission for assignment %q and student %q", sub.AssignmentID, sub.StudentID)
				}
				pairs[key] = struct{}{}
			}
			if g := sub.Grade; g != nil && g.MaxScore > 0 && g.Score > g.MaxScore {
				add(path+".grade.score", "must not exceed maxScore (%g)", g.MaxScore)
			}
		}
	}

	return issues
}

func snapshotStats(s *models.Snapshot) dto.SnapshotStats {
	stats := dto.SnapshotStats{Classrooms: len(s.Classrooms)}
	for _, c := range s.Classrooms {
		stats.Students += len(c.Students)
		stats.Assignments += len(c.Assignments)
		stats.Submissions += len(c.Submissions)
		for _, sub := range c.Submissions {
			if sub.Ungraded() {
				stats.Ungraded++
			}
		}
	}
	return stats
}

func snapshotPreview(s *models.Snapshot) dto.SnapshotPreview {
	preview := dto.SnapshotPreview{
		Teacher:    dto.TeacherPreview{Email: s.Teacher.Email, Name: s.Teacher.Name},
		Classrooms: make([]dto.ClassroomPreview, 0, len(s.Classrooms)),
	}
	for _, c := range s.Classrooms {
		item := dto.ClassroomPreview{
			ID:          c.ID,
			Name:        c.Name,
			Students:    len(c.Students),
			Assignments: len(c.Assignments),
			Submissions: len(c.Submissions),
		}
		for _, sub := range c.Submissions {
			if sub.Ungraded() {
				item.Ungraded++
			}
		}
		preview.Classrooms = append(preview.Classrooms, item)
	}
	return preview
}
