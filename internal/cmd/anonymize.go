package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/lethe/internal/archive"
	"github.com/dativo-io/lethe/internal/config"
	"github.com/dativo-io/lethe/internal/engine"
	"github.com/dativo-io/lethe/internal/extract"
)

var (
	anonOutput      string
	anonMappingPath string
	anonPassword    string
	anonSeed        int64
	anonShowMapping bool
	anonArchive     bool
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize <file>",
	Short: "Anonymize a document and write an encrypted mapping",
	Long: `Extracts text from the document (txt, md, csv, html, pdf, docx), replaces
names, CPFs, RGs and birth dates with fake values, and writes:

  <stem>_anonimizado.txt   the anonymized text
  <stem>_mapping.lethe     the mapping, encrypted with your password

Keep the mapping file and the password: both are needed to reverse.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnonymize,
}

func init() {
	anonymizeCmd.Flags().StringVarP(&anonOutput, "output", "o", "", "output file (default: <stem>_anonimizado.txt)")
	anonymizeCmd.Flags().StringVarP(&anonMappingPath, "mapping", "m", "", "mapping file (default: <stem>_mapping.lethe)")
	anonymizeCmd.Flags().StringVarP(&anonPassword, "password", "p", "", "password protecting the mapping (default: $"+passwordEnv+")")
	anonymizeCmd.Flags().Int64VarP(&anonSeed, "seed", "s", 0, "seed for reproducible replacements")
	anonymizeCmd.Flags().BoolVar(&anonShowMapping, "show-mapping", false, "print the original → replacement table")
	anonymizeCmd.Flags().BoolVar(&anonArchive, "archive", false, "also store the encrypted mapping in the local archive")
	rootCmd.AddCommand(anonymizeCmd)
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	ctx, span := tracer.Start(ctx, "cmd.anonymize")
	defer span.End()

	input := args[0]
	password, err := resolvePassword(anonPassword)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	output := anonOutput
	if output == "" {
		output = siblingPath(input, "_anonimizado.txt")
	}
	mappingPath := anonMappingPath
	if mappingPath == "" {
		mappingPath = siblingPath(input, "_mapping.lethe")
	}

	text, err := extract.NewExtractor(cfg.MaxDocumentMB).ExtractFile(ctx, input)
	if err != nil {
		return fmt.Errorf("extracting text: %w", err)
	}

	eng, err := buildEngine(cfg)
	if err != nil {
		return fmt.Errorf("initializing detector: %w", err)
	}

	var seed *int64
	if cmd.Flags().Changed("seed") {
		seed = &anonSeed
	}
	var opts []engine.AnonymizeOption
	if anonShowMapping {
		opts = append(opts, engine.WithMappingDisclosure())
	}

	res, err := eng.Anonymize(ctx, text, password, seed, opts...)
	if err != nil {
		return fmt.Errorf("anonymizing: %w", err)
	}
	if res.Mapping != nil {
		defer res.Mapping.Wipe()
	}

	if err := os.WriteFile(output, []byte(res.Text), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if err := os.WriteFile(mappingPath, res.Encrypted, 0o600); err != nil {
		return fmt.Errorf("writing mapping: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Anonymized: %s\n", output)
	fmt.Fprintf(out, "✓ Mapping:    %s\n", mappingPath)

	if anonArchive {
		rec, err := archiveMapping(ctx, cfg, filepath.Base(input), res)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Archived:   %s\n", rec.ID)
	}

	fmt.Fprintln(out, "\nReplacements:")
	writeSummary(out, res.Summary)

	if res.Mapping != nil {
		writeMapping(out, res.Mapping)
	}

	fmt.Fprintln(out, "\nKeep the mapping file and the password to reverse this document.")

	log.Info().
		Str("input", filepath.Base(input)).
		Int("entities", res.Summary.Total()).
		Msg("anonymize_completed")
	return nil
}

func archiveMapping(ctx context.Context, cfg *config.Config, document string, res *engine.Result) (*archive.Record, error) {
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := archive.NewStore(cfg.ArchiveDBPath())
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer store.Close()

	rec, err := store.Save(ctx, document, res.Summary, res.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("archiving mapping: %w", err)
	}
	return rec, nil
}
