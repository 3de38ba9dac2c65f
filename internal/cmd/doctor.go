package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dativo-io/lethe/internal/doctor"
)

var (
	doctorFormat       string
	doctorSkipDetector bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run preflight checks (data dir, detector, archive DB)",
	Long:  "Verifies the data directory is writable, the person detector is ready, the archive database opens, and flags risky settings.",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text", "output format (text, json)")
	doctorCmd.Flags().BoolVar(&doctorSkipDetector, "skip-detector", false, "do not contact the person detector")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	report := doctor.Run(ctx, doctor.Options{
		NewDetector:  buildDetector,
		SkipDetector: doctorSkipDetector,
	})

	out := cmd.OutOrStdout()
	if doctorFormat == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
	} else {
		writeDoctorReport(out, report)
	}

	if report.Failed() {
		return fmt.Errorf("doctor checks failed")
	}
	return nil
}

var statusMarks = map[string]string{
	doctor.StatusPass: "✓",
	doctor.StatusWarn: "⚠",
	doctor.StatusFail: "✗",
}

func writeDoctorReport(w io.Writer, r *doctor.Report) {
	for _, c := range r.Checks {
		fmt.Fprintf(w, "%s %-22s %s\n", statusMarks[c.Status], c.Name, c.Message)
		if c.Fix != "" && c.Status != doctor.StatusPass {
			fmt.Fprintf(w, "  fix: %s\n", c.Fix)
		}
	}
	fmt.Fprintf(w, "\nStatus: %s (%d pass, %d warn, %d fail)\n", r.Status, r.Summary.Pass, r.Summary.Warn, r.Summary.Fail)
}
