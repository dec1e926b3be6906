package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/withindevelopment-activate/within-the-app-sub000/internal/bucket"
)

var (
	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Inspect or purge the uploads archived by report runs",
	}

	archiveListCmd = &cobra.Command{
		Use:   "list <run-id>",
		Short: "List the archived uploads of a report run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBucket()
			if err != nil {
				return err
			}
			files, err := b.ListRun(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("can't list run %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(files)
		},
	}

	archiveDeleteCmd = &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete the archived uploads of a report run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBucket()
			if err != nil {
				return err
			}
			return b.DeleteRun(cmd.Context(), args[0])
		},
	}
)

func init() {
	archiveCmd.AddCommand(archiveListCmd, archiveDeleteCmd)
}

func openBucket() (*bucket.Bucket, error) {
	cfg, _, err := bootstrap()
	if err != nil {
		return nil, err
	}
	if !cfg.Bucket.Enabled() {
		return nil, fmt.Errorf("bucket is not configured")
	}
	return cfg.Bucket.New()
}
