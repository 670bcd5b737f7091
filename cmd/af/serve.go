package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/jilsnshah/alignflow/internal/alerts"
	"github.com/jilsnshah/alignflow/internal/classifier"
	"github.com/jilsnshah/alignflow/internal/config"
	"github.com/jilsnshah/alignflow/internal/media"
	"github.com/jilsnshah/alignflow/internal/notify"
	"github.com/jilsnshah/alignflow/internal/report"
	"github.com/jilsnshah/alignflow/internal/router"
	"github.com/jilsnshah/alignflow/internal/schedule"
	"github.com/jilsnshah/alignflow/internal/store"
	"github.com/jilsnshah/alignflow/internal/workflow"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Long:  "Starts the WhatsApp webhook server, the ops API, and the report syncer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "alignflow.yaml", "path to Alignflow config file")
	return cmd
}

func runServe(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, gdb, err := openFromConfig(configPath)
	if err != nil {
		return err
	}
	dbStore := store.NewDB(gdb)

	oracle, err := classifier.New(ctx, cfg.Classifier)
	if err != nil {
		return err
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	alerter, err := alerts.New(cfg.Alerts)
	if err != nil {
		return err
	}

	mediaStore, err := media.New(ctx, cfg.Media)
	if err != nil {
		return err
	}

	var sched schedule.Scheduler
	if cfg.Calendar.CalendarID != "" {
		cal, err := schedule.New(ctx, cfg.Calendar)
		if err != nil {
			return err
		}
		sched = cal
	}

	rt, err := router.New(router.Opts{
		Cases:        dbStore,
		Sessions:     dbStore,
		Dentists:     dbStore,
		Messages:     dbStore,
		Appointments: dbStore,
		Images:       dbStore,
		Engine:       workflow.New(oracle),
		Oracle:       oracle,
		Notifier:     notifier,
		Alerter:      alerter,
		Media:        mediaStore,
		Fetcher:      media.NewFetcher(cfg.WhatsApp),
		Scheduler:    sched,
		Calendar:     cfg.Calendar,
	})
	if err != nil {
		return err
	}

	if cfg.Sheets.SpreadsheetID != "" {
		sheets, err := report.NewGoogleSheets(ctx, cfg.Calendar)
		if err != nil {
			return err
		}
		syncer := report.NewSyncer(dbStore, sheets, cfg.Sheets.SpreadsheetID)
		go func() {
			if err := syncer.Run(ctx, cfg.Sheets.SyncCron); err != nil && ctx.Err() == nil {
				log.Printf("serve: report syncer stopped: %v", err)
			}
		}()
	}

	var local *media.Local
	if l, ok := mediaStore.(*media.Local); ok {
		local = l
	}

	return router.StartServer(ctx, router.ServerOpts{
		Router:   rt,
		Cases:    dbStore,
		Sessions: dbStore,
		Local:    local,
		Port:     cfg.Server.Port,
	})
}

// buildNotifier returns the Twilio notifier when credentials are configured,
// falling back to console logging for local development.
func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.WhatsApp.AccountSID == "" {
		fmt.Println("No Twilio credentials configured; outbound messages go to the log.")
		return notify.Console{}, nil
	}
	return notify.NewWhatsApp(cfg.WhatsApp)
}
