package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func snapshotPath(name string) string {
	return filepath.Join("testdata", "snapshots", name)
}

func newGolden(t *testing.T) *goldie.Goldie {
	t.Helper()
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestValidateValidSnapshotText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", TenantEmail: "ADA@example.edu"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{snapshotPath("valid.json")})

	require.NoError(t, cmd.Execute())
	newGolden(t).Assert(t, "validate_valid", buf.Bytes())
}

func TestValidateInvalidSnapshotText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{snapshotPath("invalid.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	newGolden(t).Assert(t, "validate_invalid", buf.Bytes())
}

func TestValidateJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{snapshotPath("valid.json")})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			IsValid bool `json:"isValid"`
			Stats   struct {
				Submissions int `json:"submissions"`
				Ungraded    int `json:"ungraded"`
			} `json:"stats"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.IsValid)
	assert.Equal(t, 2, resp.Data.Stats.Submissions)
	assert.Equal(t, 1, resp.Data.Stats.Ungraded)
}

func TestValidateYAMLKeepsJSONFieldNames(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "yaml"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{snapshotPath("valid.json")})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "isValid: true")

	var resp map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestValidateTenantEmailMismatch(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text", TenantEmail: "someone@example.edu"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{snapshotPath("valid.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "teacher.email: does not match the authenticated teacher")
}

func TestValidateMissingSection(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{snapshotPath("missing_classrooms.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "STRUCTURAL_ERROR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "classrooms")
}

func TestValidateSizeLimit(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--max-bytes", "64", snapshotPath("valid.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "SNAPSHOT_TOO_LARGE")
}

func TestValidateNonExistentFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "FILE_ERROR")
}

func TestValidateReadsStdin(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetIn(bytes.NewBufferString(`{"teacher":{"email":"a@b.co","name":"A"},"classrooms":[],"metadata":{"fetchedAt":"2026-09-06T08:00:00Z","source":"s","version":"1"}}`))
	cmd.SetArgs([]string{"-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Snapshot: valid")
	assert.Contains(t, buf.String(), "Classrooms: 0")
}
