// Package doctor provides preflight checks for a Lethe installation.
// Used by `lethe doctor`.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dativo-io/lethe/internal/archive"
	"github.com/dativo-io/lethe/internal/config"
	"github.com/dativo-io/lethe/internal/detector"
	"github.com/dativo-io/lethe/internal/identifiers"
)

// Check statuses.
const (
	StatusPass = "pass"
	StatusWarn = "warn"
	StatusFail = "fail"
)

// Detector readiness latency thresholds.
const (
	slowDetector     = time.Second
	tooSlowDetector  = 2 * time.Second
	detectorDeadline = 10 * time.Second
)

// CheckResult is a single doctor check outcome.
type CheckResult struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Status   string `json:"status"` // pass, warn, fail
	Message  string `json:"message"`
	Fix      string `json:"fix,omitempty"`
}

// Summary tallies pass/warn/fail counts.
type Summary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Report is the complete doctor output.
type Report struct {
	Status  string        `json:"status"` // worst of all checks
	Checks  []CheckResult `json:"checks"`
	Summary Summary       `json:"summary"`
}

// DetectorFactory builds the configured detector.
type DetectorFactory func(cfg *config.Config) (*detector.Detector, error)

// Options controls which check categories to run.
type Options struct {
	NewDetector  DetectorFactory // nil skips detector checks
	SkipDetector bool            // Skip contacting the detector (for CI/offline)
}

// Run executes all doctor checks and returns a report.
func Run(ctx context.Context, opts Options) *Report {
	report := &Report{}

	cfg, err := config.Load()
	if err != nil {
		report.Checks = append(report.Checks, CheckResult{
			Name: "config_load", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("Cannot load config: %v", err),
			Fix:     "Check LETHE_* variables and lethe.config.yaml",
		})
	} else {
		report.Checks = append(report.Checks, checkConfig(cfg)...)
		if opts.NewDetector != nil && !opts.SkipDetector {
			report.Checks = append(report.Checks, checkDetector(ctx, cfg, opts.NewDetector))
		}
		report.Checks = append(report.Checks, checkArchive(ctx, cfg)...)
	}

	report.tally()
	return report
}

// Failed reports whether any check failed.
func (r *Report) Failed() bool {
	return r.Status == StatusFail
}

func (r *Report) tally() {
	r.Summary = Summary{}
	for _, c := range r.Checks {
		switch c.Status {
		case StatusPass:
			r.Summary.Pass++
		case StatusWarn:
			r.Summary.Warn++
		case StatusFail:
			r.Summary.Fail++
		}
	}

	r.Status = StatusPass
	if r.Summary.Warn > 0 {
		r.Status = StatusWarn
	}
	if r.Summary.Fail > 0 {
		r.Status = StatusFail
	}
}

func checkConfig(cfg *config.Config) []CheckResult {
	results := []CheckResult{checkDataDir(cfg)}
	if cfg.PatternsFile != "" {
		results = append(results, checkPatternsFile(cfg.PatternsFile))
	}
	results = append(results, checkRetention(cfg), checkAPIKeys(cfg))
	return results
}

func checkDataDir(cfg *config.Config) CheckResult {
	if err := cfg.EnsureDataDir(); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", cfg.DataDir, err),
			Fix:     "Ensure directory exists and is writable",
		}
	}
	testFile := filepath.Join(cfg.DataDir, ".doctor-write-test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Name: "data_dir_writable", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s not writable: %v", cfg.DataDir, err),
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{
		Name: "data_dir_writable", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%s (writable)", cfg.DataDir),
	}
}

func checkPatternsFile(path string) CheckResult {
	rf, err := identifiers.LoadRecognizerFile(path)
	if err == nil && rf != nil {
		_, err = identifiers.CompilePatterns(rf.Recognizers)
	}
	if err != nil {
		return CheckResult{
			Name: "patterns_file_valid", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("%s: %v", path, err),
			Fix:     "Fix the recognizer YAML or unset LETHE_PATTERNS_FILE",
		}
	}
	if rf == nil {
		return CheckResult{
			Name: "patterns_file_valid", Category: "config", Status: StatusWarn,
			Message: fmt.Sprintf("%s not found, using embedded patterns only", path),
		}
	}
	return CheckResult{
		Name: "patterns_file_valid", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%s (%d recognizer(s))", path, len(rf.Recognizers)),
	}
}

func checkRetention(cfg *config.Config) CheckResult {
	if cfg.RetentionDays == 0 {
		return CheckResult{
			Name: "archive_retention", Category: "config", Status: StatusWarn,
			Message: "Archived mappings are kept forever",
			Fix:     "Set LETHE_RETENTION_DAYS to purge old mappings",
		}
	}
	if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
		return CheckResult{
			Name: "archive_retention", Category: "config", Status: StatusFail,
			Message: fmt.Sprintf("Invalid schedule %q: %v", cfg.RetentionSchedule, err),
			Fix:     "Use a 5-field cron expression, e.g. \"0 3 * * *\"",
		}
	}
	return CheckResult{
		Name: "archive_retention", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%d days (%s)", cfg.RetentionDays, cfg.RetentionSchedule),
	}
}

func checkAPIKeys(cfg *config.Config) CheckResult {
	if !cfg.AuthEnabled() {
		return CheckResult{
			Name: "api_keys", Category: "config", Status: StatusWarn,
			Message: "HTTP API accepts unauthenticated requests",
			Fix:     "Set LETHE_API_KEYS before exposing `lethe serve` beyond localhost",
		}
	}
	return CheckResult{
		Name: "api_keys", Category: "config", Status: StatusPass,
		Message: fmt.Sprintf("%d key(s) configured", len(cfg.APIKeys)),
	}
}

func checkDetector(ctx context.Context, cfg *config.Config, newDetector DetectorFactory) CheckResult {
	name := "detector_" + cfg.Detector
	d, err := newDetector(cfg)
	if err != nil {
		return CheckResult{
			Name: name, Category: "detector", Status: StatusFail,
			Message: err.Error(),
			Fix:     detectorFix(cfg),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, detectorDeadline)
	defer cancel()
	start := time.Now()
	err = d.Ready(ctx)
	latency := time.Since(start)

	if err != nil {
		return CheckResult{
			Name: name, Category: "detector", Status: StatusFail,
			Message: err.Error(),
			Fix:     detectorFix(cfg),
		}
	}

	res := CheckResult{
		Name: name, Category: "detector", Status: StatusPass,
		Message: fmt.Sprintf("ready (%dms)", latency.Milliseconds()),
	}
	switch {
	case latency > tooSlowDetector:
		res.Status = StatusFail
		res.Message = fmt.Sprintf("ready but slow: %.1fs (> %s threshold)", latency.Seconds(), tooSlowDetector)
		res.Fix = "Run the NER sidecar on the same host"
	case latency > slowDetector:
		res.Status = StatusWarn
		res.Message = fmt.Sprintf("ready but slow: %.1fs (> %s threshold)", latency.Seconds(), slowDetector)
	}
	return res
}

func detectorFix(cfg *config.Config) string {
	if cfg.Detector == config.DetectorGazetteer {
		return "Check LETHE_NAMES_FILE points to a non-empty name list"
	}
	return fmt.Sprintf("Start the NER sidecar at %s or set LETHE_DETECTOR=gazetteer", cfg.NERURL)
}

func checkArchive(ctx context.Context, cfg *config.Config) []CheckResult {
	store, err := archive.NewStore(cfg.ArchiveDBPath())
	if err != nil {
		return []CheckResult{{
			Name: "archive_db", Category: "system", Status: StatusFail,
			Message: err.Error(),
		}}
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		return []CheckResult{{
			Name: "archive_db", Category: "system", Status: StatusFail,
			Message: err.Error(),
		}}
	}
	results := []CheckResult{{
		Name: "archive_db", Category: "system", Status: StatusPass,
		Message: cfg.ArchiveDBPath(),
	}}

	count, err := store.Count(ctx)
	if err == nil {
		sizeStr := "unknown"
		if fi, statErr := os.Stat(cfg.ArchiveDBPath()); statErr == nil {
			sizeStr = fmt.Sprintf("%.1f MB", float64(fi.Size())/(1024*1024))
		}
		results = append(results, CheckResult{
			Name: "archive_stats", Category: "system", Status: StatusPass,
			Message: fmt.Sprintf("%d mapping(s), %s", count, sizeStr),
		})
	}
	return results
}
