package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dativo-io/lethe/internal/config"
	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/testutil"
)

func readyDetector(*config.Config) (*detector.Detector, error) {
	return testutil.NewDetector("Maria Silva"), nil
}

func find(t *testing.T, r *Report, name string) CheckResult {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not in report", name)
	return CheckResult{}
}

func TestRun_ConfigAndSystemChecks(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LETHE_DATA_DIR", dir)

	report := Run(context.Background(), Options{NewDetector: readyDetector})

	assert.Equal(t, StatusPass, find(t, report, "data_dir_writable").Status)
	assert.Contains(t, find(t, report, "data_dir_writable").Message, dir)
	assert.Equal(t, StatusPass, find(t, report, "archive_db").Status)
	assert.Contains(t, find(t, report, "archive_stats").Message, "0 mapping(s)")
	assert.Equal(t, StatusPass, find(t, report, "detector_ner").Status)

	// Defaults keep mappings forever and run the API without keys.
	assert.Equal(t, StatusWarn, find(t, report, "archive_retention").Status)
	assert.Equal(t, StatusWarn, find(t, report, "api_keys").Status)
	assert.Equal(t, StatusWarn, report.Status)
	assert.False(t, report.Failed())
}

func TestRun_RetentionAndKeysConfigured(t *testing.T) {
	t.Setenv("LETHE_DATA_DIR", t.TempDir())
	t.Setenv("LETHE_RETENTION_DAYS", "30")
	t.Setenv("LETHE_API_KEYS", "k1,k2")

	report := Run(context.Background(), Options{NewDetector: readyDetector})

	ret := find(t, report, "archive_retention")
	assert.Equal(t, StatusPass, ret.Status)
	assert.Contains(t, ret.Message, "30 days")
	assert.Equal(t, "2 key(s) configured", find(t, report, "api_keys").Message)
	assert.Equal(t, StatusPass, report.Status)
}

func TestRun_InvalidRetentionSchedule(t *testing.T) {
	t.Setenv("LETHE_DATA_DIR", t.TempDir())
	t.Setenv("LETHE_RETENTION_DAYS", "7")
	t.Setenv("LETHE_RETENTION_SCHEDULE", "every day")

	report := Run(context.Background(), Options{})

	c := find(t, report, "archive_retention")
	assert.Equal(t, StatusFail, c.Status)
	assert.NotEmpty(t, c.Fix)
	assert.True(t, report.Failed())
}

func TestRun_DetectorChecks(t *testing.T) {
	tests := []struct {
		name    string
		factory DetectorFactory
		status  string
	}{
		{"ready", readyDetector, StatusPass},
		{"not ready", func(*config.Config) (*detector.Detector, error) {
			return detector.New(&testutil.StubPersonDetector{ReadyErr: detector.ErrDetectorUnavailable})
		}, StatusFail},
		{"factory error", func(*config.Config) (*detector.Detector, error) {
			return nil, errors.New("names file missing")
		}, StatusFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LETHE_DATA_DIR", t.TempDir())
			report := Run(context.Background(), Options{NewDetector: tt.factory})

			c := find(t, report, "detector_ner")
			assert.Equal(t, "detector", c.Category)
			assert.Equal(t, tt.status, c.Status)
			if tt.status == StatusFail {
				assert.Contains(t, c.Fix, "NER sidecar")
			}
		})
	}
}

func TestRun_SkipDetector(t *testing.T) {
	t.Setenv("LETHE_DATA_DIR", t.TempDir())

	report := Run(context.Background(), Options{NewDetector: readyDetector, SkipDetector: true})
	for _, c := range report.Checks {
		assert.NotEqual(t, "detector", c.Category, "detector checks should be skipped")
	}
}

func TestRun_PatternsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LETHE_DATA_DIR", dir)

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`recognizers:
  - name: cnh
    supported_entity: DOC_ID
    validation: rg
    patterns:
      - name: cnh_digits
        regex: '\b\d{11}\b'
`), 0o600))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("recognizers: ["), 0o600))

	tests := []struct {
		path   string
		status string
	}{
		{good, StatusPass},
		{bad, StatusFail},
		{filepath.Join(dir, "missing.yaml"), StatusWarn},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			t.Setenv("LETHE_PATTERNS_FILE", tt.path)
			report := Run(context.Background(), Options{})
			assert.Equal(t, tt.status, find(t, report, "patterns_file_valid").Status)
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LETHE_DATA_DIR", t.TempDir())
	t.Setenv("LETHE_DETECTOR", "regex")

	report := Run(context.Background(), Options{NewDetector: readyDetector})

	require.Len(t, report.Checks, 1)
	assert.Equal(t, "config_load", report.Checks[0].Name)
	assert.Equal(t, StatusFail, report.Status)
}

func TestReport_Tally(t *testing.T) {
	report := &Report{
		Checks: []CheckResult{
			{Status: StatusPass, Name: "a"},
			{Status: StatusPass, Name: "b"},
			{Status: StatusWarn, Name: "c"},
			{Status: StatusFail, Name: "d"},
		},
	}
	report.tally()

	assert.Equal(t, 2, report.Summary.Pass)
	assert.Equal(t, 1, report.Summary.Warn)
	assert.Equal(t, 1, report.Summary.Fail)
	assert.Equal(t, StatusFail, report.Status)
}
