package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dativo-io/lethe/internal/config"
	"github.com/dativo-io/lethe/internal/extract"
	"github.com/dativo-io/lethe/internal/vault"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show what Lethe detects, supported formats and active settings",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	kinds := extract.SupportedKinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = strings.ToUpper(string(k))
	}

	fmt.Fprintf(out, "Lethe %s - reversible document anonymizer\n\n", resolvedVersion())
	fmt.Fprintln(out, "Detects and replaces:")
	fmt.Fprintln(out, "  - person names")
	fmt.Fprintln(out, "  - CPF tax IDs (check digits validated)")
	fmt.Fprintln(out, "  - RG identity numbers")
	fmt.Fprintln(out, "  - birth dates (adult range)")
	fmt.Fprintf(out, "\nSupported formats: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(out, "Mapping encryption: AES-256-GCM, PBKDF2-SHA256 (%d iterations)\n", vault.Iterations)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(out, "\nConfiguration: invalid (%v)\n", err)
		return nil
	}
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintf(out, "  data_dir:        %s\n", cfg.DataDir)
	fmt.Fprintf(out, "  detector:        %s\n", cfg.Detector)
	if cfg.Detector == config.DetectorNER {
		fmt.Fprintf(out, "  ner_url:         %s\n", cfg.NERURL)
	} else {
		fmt.Fprintf(out, "  names_file:      %s\n", cfg.NamesFile)
	}
	fmt.Fprintf(out, "  max_document_mb: %d\n", cfg.MaxDocumentMB)
	if cfg.RetentionDays > 0 {
		fmt.Fprintf(out, "  retention:       %d days (%s)\n", cfg.RetentionDays, cfg.RetentionSchedule)
	} else {
		fmt.Fprintln(out, "  retention:       keep forever")
	}
	return nil
}
