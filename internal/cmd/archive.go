package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dativo-io/lethe/internal/archive"
	"github.com/dativo-io/lethe/internal/config"
)

var (
	archiveListLimit int
	archivePurgeDays int
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Manage archived encrypted mappings",
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived mappings (metadata only)",
	RunE:  archiveList,
}

var archivePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete archived mappings older than the retention window",
	RunE:  archivePurge,
}

func init() {
	archiveListCmd.Flags().IntVar(&archiveListLimit, "limit", 50, "maximum records to show")
	archivePurgeCmd.Flags().IntVar(&archivePurgeDays, "older-than", 0, "age in days (default: retention_days from config)")
	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archivePurgeCmd)
	rootCmd.AddCommand(archiveCmd)
}

func openArchive() (*archive.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, nil, fmt.Errorf("creating data directory: %w", err)
	}
	store, err := archive.NewStore(cfg.ArchiveDBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	return store, cfg, nil
}

func archiveList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, _, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(ctx, archiveListLimit)
	if err != nil {
		return fmt.Errorf("listing archive: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No archived mappings.")
		return nil
	}
	writeRecords(out, records)
	return nil
}

func archivePurge(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	store, cfg, err := openArchive()
	if err != nil {
		return err
	}
	defer store.Close()

	days := archivePurgeDays
	if days == 0 {
		days = cfg.RetentionDays
	}
	if days <= 0 {
		return fmt.Errorf("no retention window: pass --older-than or set retention_days")
	}

	n, err := archive.NewRetentionScheduler(store, days).RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("purging archive: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Purged %d mapping(s) older than %d days\n", n, days)
	return nil
}
