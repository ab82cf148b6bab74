package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dump = `[
  {"code": "ENG01", "name": "Pune Institute of Technology", "location": {"city": "Pune", "district": "Pune", "state": "Maharashtra"},
   "type": "Government", "autonomyStatus": "Autonomous",
   "branches": [
     {"branchName": "Computer Engineering", "cutoffs": {"OPEN": {"$numberDouble": "92.5"}}},
     {"branchName": "Civil Engineering", "cutoffs": {"OPEN": "71"}}
   ]},
  {"code": "ENG02", "name": "Mumbai College", "location": {"city": "Mumbai", "district": "Mumbai", "state": "Maharashtra"},
   "type": "Private", "autonomyStatus": "Non-Autonomous",
   "branches": [{"branchName": "Computer Engg", "cutoffs": {"OPEN": 88}}]}
]`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setupCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "colleges.json")
	require.NoError(t, os.WriteFile(src, []byte(dump), 0o600))

	dbPath := filepath.Join(dir, "catalog.db")
	out, err := execute(t, "import", src, "--db", dbPath, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 colleges")
	return dbPath
}

func TestImportAndPredict(t *testing.T) {
	dbPath := setupCatalog(t)

	out, err := execute(t, "predict", "--db", dbPath, "--log-level", "error",
		"--percentile", "95", "--branch", "computer engineering", "--category", "open")
	require.NoError(t, err)

	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "ENG01")
	assert.Contains(t, out, "92.50")
	assert.Contains(t, out, "ENG02")
	assert.Contains(t, out, "Page 1 of 1 (2 colleges)")
	assert.Less(t, bytes.Index([]byte(out), []byte("ENG01")), bytes.Index([]byte(out), []byte("ENG02")))
}

func TestPredict_JSON(t *testing.T) {
	dbPath := setupCatalog(t)

	out, err := execute(t, "predict", "--db", dbPath, "--log-level", "error", "-o", "json",
		"--min", "80", "--max", "90", "--category", "OPEN")
	require.NoError(t, err)

	var resp struct {
		Colleges []struct {
			Code                 string  `json:"code"`
			RepresentativeCutoff float64 `json:"representativeCutoff"`
		} `json:"colleges"`
		TotalColleges int `json:"totalColleges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, 1, resp.TotalColleges)
	assert.Equal(t, "ENG02", resp.Colleges[0].Code)
	assert.Equal(t, 88.0, resp.Colleges[0].RepresentativeCutoff)
}

func TestPredict_NoMatches(t *testing.T) {
	dbPath := setupCatalog(t)

	out, err := execute(t, "predict", "--db", dbPath, "--log-level", "error",
		"--percentile", "10", "--category", "OPEN")
	require.NoError(t, err)
	assert.Contains(t, out, "No colleges qualify.")
}

func TestPredict_Rejects(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no mode", []string{"--category", "OPEN"}, "percentile or a cutoff range is required"},
		{"half range", []string{"--min", "10"}, "both cutoffRangeMin and cutoffRangeMax are required"},
		{"inverted range", []string{"--min", "90", "--max", "10"}, "must not exceed"},
		{"both modes", []string{"--percentile", "90", "--min", "10"}, "none of the others can be"},
		{"unknown category", []string{"--percentile", "90", "--category", "XYZ"}, "unknown category"},
		{"bad page", []string{"--percentile", "90", "--page", "0"}, "must be at least 1"},
		{"bad output", []string{"--percentile", "90", "-o", "yaml"}, "unknown output format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"predict", "--db", dbPath, "--log-level", "error"}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestImport_InvalidDump(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(src, []byte(`[{"code": "X"}]`), 0o600))

	_, err := execute(t, "import", src, "--db", filepath.Join(dir, "catalog.db"), "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid")
}

func TestImport_ObjectStorageNotConfigured(t *testing.T) {
	_, err := execute(t, "import", "s3://catalog/colleges.json",
		"--db", filepath.Join(t.TempDir(), "catalog.db"), "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "object storage is not configured")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "catalogctl dev")
}
