package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dativo-io/lethe/internal/anonymizer"
	"github.com/dativo-io/lethe/internal/vault"
)

var (
	revOutput   string
	revPassword string
)

var reverseCmd = &cobra.Command{
	Use:   "reverse <anonymized-file> <mapping-file>",
	Short: "Restore an anonymized document using its encrypted mapping",
	Args:  cobra.ExactArgs(2),
	RunE:  runReverse,
}

func init() {
	reverseCmd.Flags().StringVarP(&revOutput, "output", "o", "", "output file (default: <stem>_restaurado.txt)")
	reverseCmd.Flags().StringVarP(&revPassword, "password", "p", "", "mapping password (default: $"+passwordEnv+")")
	rootCmd.AddCommand(reverseCmd)
}

// Reversal needs no detector, so it works with the NER sidecar offline.
func runReverse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	ctx, span := tracer.Start(ctx, "cmd.reverse")
	defer span.End()

	input, mappingPath := args[0], args[1]
	password, err := resolvePassword(revPassword)
	if err != nil {
		return err
	}

	output := revOutput
	if output == "" {
		output = siblingPath(input, "_restaurado.txt")
	}

	text, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("reading anonymized text: %w", err)
	}

	m, err := vault.LoadFile(ctx, mappingPath, password)
	if err != nil {
		if errors.Is(err, vault.ErrAuthentication) {
			return vault.ErrAuthentication
		}
		return fmt.Errorf("loading mapping: %w", err)
	}
	defer m.Wipe()

	restored := anonymizer.Reverse(ctx, string(text), m)
	if err := os.WriteFile(output, []byte(restored), 0o600); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Restored: %s\n", output)
	return nil
}
