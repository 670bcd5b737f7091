package main

import (
	"fmt"

	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/report"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/spf13/cobra"
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Sync the case table to Google Sheets",
	}

	cmd.AddCommand(newReportSyncCmd())
	cmd.AddCommand(newReportWatchCmd())
	return cmd
}

func newReportSyncCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Write the current case table to the spreadsheet once",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, _, err := buildSyncer(cmd, configPath)
			if err != nil {
				return err
			}
			if err := syncer.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Case table synced.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func newReportWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync the case table on the configured cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncer, cfg, err := buildSyncer(cmd, configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Syncing on schedule %q; Ctrl-C to stop.\n", cfg.Sheets.SyncCron)
			return syncer.Run(cmd.Context(), cfg.Sheets.SyncCron)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func buildSyncer(cmd *cobra.Command, configPath string) (*report.Syncer, *config.Config, error) {
	cfg, gdb, err := openFromConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Sheets.SpreadsheetID == "" {
		return nil, nil, fmt.Errorf("sheets.spreadsheet_id is not configured")
	}
	sheets, err := report.NewGoogleSheets(cmd.Context(), cfg.Calendar)
	if err != nil {
		return nil, nil, err
	}
	return report.NewSyncer(store.NewDB(gdb), sheets, cfg.Sheets.SpreadsheetID), cfg, nil
}
